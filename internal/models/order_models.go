package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus defines the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusCreating  OrderStatus = "CREATING"
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusHold      OrderStatus = "HOLD"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// AllOrderStatuses lists every status in lifecycle order.
var AllOrderStatuses = []OrderStatus{
	OrderStatusCreating,
	OrderStatusPending,
	OrderStatusHold,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// IsValidOrderStatus checks if the provided status string is a known OrderStatus.
func IsValidOrderStatus(status string) bool {
	for _, s := range AllOrderStatuses {
		if string(s) == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CreatorKind identifies who placed the order.
type CreatorKind string

const (
	CreatorStaff    CreatorKind = "STAFF"
	CreatorCustomer CreatorKind = "CUSTOMER"
)

// IsValidCreatorKind checks the creator kind against the known values.
func IsValidCreatorKind(kind string) bool {
	return kind == string(CreatorStaff) || kind == string(CreatorCustomer)
}

// PaymentStatus tracks the payment state recorded on the order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusSuccess  PaymentStatus = "SUCCESS"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// RefundStatus tracks refunds attached to cancellations and returns.
type RefundStatus string

const (
	RefundStatusNone      RefundStatus = "NONE"
	RefundStatusPending   RefundStatus = "PENDING"
	RefundStatusCompleted RefundStatus = "COMPLETED"
)

// Order is the order aggregate root. Items are loaded separately by the repository.
type Order struct {
	ID                   int64           `json:"id" db:"id"`
	OrderNumber          string          `json:"order_number" db:"order_number"`
	Status               OrderStatus     `json:"status" db:"status"`
	TotalAmount          decimal.Decimal `json:"total_amount" db:"total_amount"`
	CustomerName         *string         `json:"customer_name,omitempty" db:"customer_name"`
	CustomerPhone        *string         `json:"customer_phone,omitempty" db:"customer_phone"`
	TableNumber          *string         `json:"table_number,omitempty" db:"table_number"`
	CustomerID           *int64          `json:"customer_id,omitempty" db:"customer_id"`
	Notes                *string         `json:"notes,omitempty" db:"notes"`
	PaymentMethod        *string         `json:"payment_method,omitempty" db:"payment_method"`
	PaymentStatus        PaymentStatus   `json:"payment_status" db:"payment_status"`
	PaymentTransactionID *string         `json:"payment_transaction_id,omitempty" db:"payment_transaction_id"`
	PaidAt               *time.Time      `json:"paid_at,omitempty" db:"paid_at"`
	OrderCreator         CreatorKind     `json:"order_creator" db:"order_creator"`
	CreatorName          string          `json:"creator_name" db:"creator_name"`
	ConfirmedBy          *int64          `json:"confirmed_by,omitempty" db:"confirmed_by"`
	ConfirmedAt          *time.Time      `json:"confirmed_at,omitempty" db:"confirmed_at"`
	HoldName             *string         `json:"hold_name,omitempty" db:"hold_name"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
	Items                []OrderItem     `json:"items"`
}

// OrderItem is a single line of an order.
type OrderItem struct {
	ID               int64           `json:"id" db:"id"`
	OrderID          int64           `json:"order_id" db:"order_id"`
	ProductID        int64           `json:"product_id" db:"product_id"`
	Quantity         int             `json:"quantity" db:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price" db:"unit_price"`
	Subtotal         decimal.Decimal `json:"subtotal" db:"subtotal"`
	SelectedSize     *string         `json:"selected_size,omitempty" db:"selected_size"`
	SelectedToppings []string        `json:"selected_toppings,omitempty" db:"selected_toppings"`
	Note             *string         `json:"note,omitempty" db:"note"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// CalculateSubtotal returns unit price multiplied by quantity.
func (i OrderItem) CalculateSubtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SumItems totals the subtotals of the given items.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal)
	}
	return total
}

// OrderCancellation records a single cancellation of an order.
type OrderCancellation struct {
	ID             int64           `json:"id" db:"id"`
	OrderID        int64           `json:"order_id" db:"order_id"`
	Reason         string          `json:"reason" db:"reason"`
	ReasonCategory *string         `json:"reason_category,omitempty" db:"reason_category"`
	RefundAmount   decimal.Decimal `json:"refund_amount" db:"refund_amount"`
	RefundMethod   *string         `json:"refund_method,omitempty" db:"refund_method"`
	RefundStatus   RefundStatus    `json:"refund_status" db:"refund_status"`
	CancelledBy    *int64          `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// OrderReturn is a batch of returned items for a completed order.
type OrderReturn struct {
	ID           int64             `json:"id" db:"id"`
	OrderID      int64             `json:"order_id" db:"order_id"`
	Reason       *string           `json:"reason,omitempty" db:"reason"`
	RefundAmount decimal.Decimal   `json:"refund_amount" db:"refund_amount"`
	RefundMethod *string           `json:"refund_method,omitempty" db:"refund_method"`
	RefundStatus RefundStatus      `json:"refund_status" db:"refund_status"`
	ProcessedBy  *int64            `json:"processed_by,omitempty" db:"processed_by"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	Items        []OrderReturnItem `json:"items"`
}

// OrderReturnItem references the original order item being returned.
type OrderReturnItem struct {
	ID           int64           `json:"id" db:"id"`
	ReturnID     int64           `json:"return_id" db:"return_id"`
	OrderItemID  int64           `json:"order_item_id" db:"order_item_id"`
	Quantity     int             `json:"quantity" db:"quantity"`
	RefundAmount decimal.Decimal `json:"refund_amount" db:"refund_amount"`
}

// OrderSplit links an original order to one of the orders produced by splitting it.
type OrderSplit struct {
	ID              int64     `json:"id" db:"id"`
	OriginalOrderID int64     `json:"original_order_id" db:"original_order_id"`
	NewOrderID      int64     `json:"new_order_id" db:"new_order_id"`
	SplitBy         *int64    `json:"split_by,omitempty" db:"split_by"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// OrderMerge links a source order to the order it was merged into.
type OrderMerge struct {
	ID            int64     `json:"id" db:"id"`
	MergedOrderID int64     `json:"merged_order_id" db:"merged_order_id"`
	SourceOrderID int64     `json:"source_order_id" db:"source_order_id"`
	MergedBy      *int64    `json:"merged_by,omitempty" db:"merged_by"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// OrderFilters defines the available filters for querying orders.
// This struct is used by both the service and repository layers.
type OrderFilters struct {
	Statuses      []OrderStatus `form:"status"`
	CreatorKind   *CreatorKind  `form:"creator_kind"`
	CreatorName   *string       `form:"creator_name"`
	CustomerPhone *string       `form:"customer_phone"`
	TableNumber   *string       `form:"table_number"`
	Date          *string       `form:"date"` // Expected format YYYY-MM-DD
	ActiveOnly    bool          `form:"active"`
	Page          int           `form:"page"`
	PageSize      int           `form:"page_size"`
}

// Actor identifies who performed a lifecycle operation.
type Actor struct {
	UserID   *int64 `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// SystemActor is used when an operation is triggered without an authenticated user.
var SystemActor = Actor{Username: "system"}
