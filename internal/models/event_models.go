package models

import "time"

// EventKind names a realtime event pushed to subscribers after commit.
type EventKind string

const (
	EventOrderCreated       EventKind = "order_created"
	EventOrderUpdated       EventKind = "order_updated"
	EventOrderStatusChanged EventKind = "order_status_changed"
	EventStockUpdated       EventKind = "stock_updated"
	EventStockAlert         EventKind = "stock_alert"
)

// Event is implemented by every event payload. One struct per kind.
type Event interface {
	Kind() EventKind
}

// OrderCreatedEvent is emitted once a new final order has been committed.
type OrderCreatedEvent struct {
	Order Order `json:"order"`
}

func (OrderCreatedEvent) Kind() EventKind { return EventOrderCreated }

// OrderUpdatedEvent is emitted for draft syncs and any committed order mutation.
type OrderUpdatedEvent struct {
	Order Order `json:"order"`
}

func (OrderUpdatedEvent) Kind() EventKind { return EventOrderUpdated }

// OrderStatusChangedEvent is emitted when a transition has been committed.
type OrderStatusChangedEvent struct {
	OrderID        int64       `json:"order_id"`
	OrderNumber    string      `json:"order_number"`
	PreviousStatus OrderStatus `json:"previous_status"`
	Status         OrderStatus `json:"status"`
	ChangedBy      *int64      `json:"changed_by,omitempty"`
	ChangedAt      time.Time   `json:"changed_at"`
}

func (OrderStatusChangedEvent) Kind() EventKind { return EventOrderStatusChanged }

// StockUpdatedEvent is emitted for each committed stock quantity change.
type StockUpdatedEvent struct {
	Update StockUpdate `json:"update"`
}

func (StockUpdatedEvent) Kind() EventKind { return EventStockUpdated }

// StockAlertEvent is emitted when a new stock alert was created.
type StockAlertEvent struct {
	Alert StockAlert `json:"alert"`
}

func (StockAlertEvent) Kind() EventKind { return EventStockAlert }
