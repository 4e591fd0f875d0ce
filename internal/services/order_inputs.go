package services

import (
	"fmt"
	"strings"

	"cafe_pos_backend/internal/models"

	"github.com/shopspring/decimal"
)

// --- Data Transfer Objects (DTOs) ---

// OrderItemInput is one requested line. Staff callers set the unit price;
// public requests are repriced from the menu.
type OrderItemInput struct {
	ProductID        int64           `json:"product_id" binding:"required,gt=0"`
	Quantity         int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	SelectedSize     *string         `json:"selected_size"`
	SelectedToppings []string        `json:"selected_toppings"`
	Note             *string         `json:"note"`
}

// CustomerFields are the optional customer identifying fields of an order.
type CustomerFields struct {
	CustomerName  *string `json:"customer_name"`
	CustomerPhone *string `json:"customer_phone"`
	TableNumber   *string `json:"table_number"`
	Notes         *string `json:"notes"`
}

// DraftInput is the live cart of one creator.
type DraftInput struct {
	CreatorKind models.CreatorKind `json:"-"`
	CreatorName string             `json:"creator_name"`
	Items       []OrderItemInput   `json:"items" binding:"dive"`
	CustomerFields
}

// CreateOrderInput is a checkout request.
type CreateOrderInput struct {
	CreatorKind   models.CreatorKind `json:"-"`
	CreatorName   string             `json:"creator_name"`
	Items         []OrderItemInput   `json:"items" binding:"required,min=1,dive"`
	PaymentMethod *string            `json:"payment_method"`
	CustomerFields
}

// CancelInput carries the cancellation reason and refund details.
type CancelInput struct {
	Reason         string           `json:"reason" binding:"required"`
	ReasonCategory *string          `json:"reason_category"`
	RefundAmount   *decimal.Decimal `json:"refund_amount"`
	RefundMethod   *string          `json:"refund_method"`
}

// ReturnItemInput references an original order item.
type ReturnItemInput struct {
	OrderItemID int64 `json:"order_item_id" binding:"required,gt=0"`
	Quantity    int   `json:"quantity" binding:"required,gt=0"`
}

// ReturnInput is one return batch for a completed order.
type ReturnInput struct {
	Items        []ReturnItemInput `json:"items" binding:"required,min=1,dive"`
	Reason       *string           `json:"reason"`
	RefundMethod *string           `json:"refund_method"`
}

// --- End of DTOs ---

func normalizeCustomerFields(f CustomerFields) CustomerFields {
	return CustomerFields{
		CustomerName:  trimmedOrNil(f.CustomerName),
		CustomerPhone: trimmedOrNil(f.CustomerPhone),
		TableNumber:   trimmedOrNil(f.TableNumber),
		Notes:         trimmedOrNil(f.Notes),
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func validateCreator(kind models.CreatorKind, name string) error {
	if !models.IsValidCreatorKind(string(kind)) {
		return &ValidationError{Field: "creator_kind", Expected: "STAFF|CUSTOMER", Actual: string(kind), Message: "unknown creator kind"}
	}
	if strings.TrimSpace(name) == "" {
		return newValidationError("creator_name", "creator name is required")
	}
	return nil
}

// buildOrderItems validates inputs and computes subtotals.
func buildOrderItems(inputs []OrderItemInput) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(inputs))
	for i, in := range inputs {
		if in.ProductID <= 0 {
			return nil, newValidationError(fmt.Sprintf("items[%d].product_id", i), "product id must be positive")
		}
		if in.Quantity <= 0 {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Expected: "> 0", Actual: fmt.Sprint(in.Quantity), Message: "quantity must be positive"}
		}
		if in.UnitPrice.IsNegative() {
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d].unit_price", i), Expected: ">= 0", Actual: in.UnitPrice.String(), Message: "unit price must not be negative"}
		}
		item := models.OrderItem{
			ProductID:        in.ProductID,
			Quantity:         in.Quantity,
			UnitPrice:        in.UnitPrice,
			SelectedSize:     trimmedOrNil(in.SelectedSize),
			SelectedToppings: in.SelectedToppings,
			Note:             trimmedOrNil(in.Note),
		}
		item.Subtotal = item.CalculateSubtotal()
		items = append(items, item)
	}
	return items, nil
}

func stockLinesOf(items []models.OrderItem) []models.StockLine {
	lines := make([]models.StockLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, models.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

// copyItem returns item detached from its order, ready to be inserted elsewhere.
func copyItem(item models.OrderItem) models.OrderItem {
	var toppings []string
	if len(item.SelectedToppings) > 0 {
		toppings = append(toppings, item.SelectedToppings...)
	}
	return models.OrderItem{
		ProductID:        item.ProductID,
		Quantity:         item.Quantity,
		UnitPrice:        item.UnitPrice,
		Subtotal:         item.Subtotal,
		SelectedSize:     item.SelectedSize,
		SelectedToppings: toppings,
		Note:             item.Note,
	}
}
