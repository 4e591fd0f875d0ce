package handlers

import (
	"context"

	"cafe_pos_backend/internal/models"
	"cafe_pos_backend/internal/services"

	"github.com/shopspring/decimal"
)

// stubOrderService records the last call and answers with order/err.
type stubOrderService struct {
	order   *models.Order
	orders  []models.Order
	total   int
	ret     *models.OrderReturn
	err     error
	calls   []string
	actor   models.Actor
	create  services.CreateOrderInput
	filters models.OrderFilters
	status  models.OrderStatus
	reason  string
	hold    string
	cancel  services.CancelInput
	splits  [][]int64
	merge   []int64
	orderID int64

	menu     map[int64]decimal.Decimal
	priceErr error
}

var _ services.OrderService = (*stubOrderService)(nil)

func (s *stubOrderService) record(call string, orderID int64, actor models.Actor) {
	s.calls = append(s.calls, call)
	s.orderID = orderID
	s.actor = actor
}

func (s *stubOrderService) CreateOrder(ctx context.Context, input services.CreateOrderInput, actor models.Actor) (*models.Order, error) {
	s.record("CreateOrder", 0, actor)
	s.create = input
	return s.order, s.err
}

func (s *stubOrderService) GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	s.record("GetOrderByID", orderID, models.Actor{})
	return s.order, s.err
}

func (s *stubOrderService) GetOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error) {
	s.record("GetOrders", 0, models.Actor{})
	s.filters = filters
	return s.orders, s.total, s.err
}

func (s *stubOrderService) ChangeStatus(ctx context.Context, orderID int64, target models.OrderStatus, actor models.Actor) (*models.Order, error) {
	s.record("ChangeStatus", orderID, actor)
	s.status = target
	return s.order, s.err
}

func (s *stubOrderService) HoldOrder(ctx context.Context, orderID int64, holdName string, actor models.Actor) (*models.Order, error) {
	s.record("HoldOrder", orderID, actor)
	s.hold = holdName
	return s.order, s.err
}

func (s *stubOrderService) ResumeHold(ctx context.Context, orderID int64, actor models.Actor) (*models.Order, error) {
	s.record("ResumeHold", orderID, actor)
	return s.order, s.err
}

func (s *stubOrderService) VerifyOrder(ctx context.Context, orderID int64, actor models.Actor) (*models.Order, error) {
	s.record("VerifyOrder", orderID, actor)
	return s.order, s.err
}

func (s *stubOrderService) RejectOrder(ctx context.Context, orderID int64, reason string, actor models.Actor) (*models.Order, error) {
	s.record("RejectOrder", orderID, actor)
	s.reason = reason
	return s.order, s.err
}

func (s *stubOrderService) CancelOrder(ctx context.Context, orderID int64, input services.CancelInput, actor models.Actor) (*models.Order, error) {
	s.record("CancelOrder", orderID, actor)
	s.cancel = input
	return s.order, s.err
}

func (s *stubOrderService) ReturnOrder(ctx context.Context, orderID int64, input services.ReturnInput, actor models.Actor) (*models.OrderReturn, error) {
	s.record("ReturnOrder", orderID, actor)
	return s.ret, s.err
}

func (s *stubOrderService) SplitOrder(ctx context.Context, orderID int64, splits [][]int64, actor models.Actor) ([]models.Order, error) {
	s.record("SplitOrder", orderID, actor)
	s.splits = splits
	return s.orders, s.err
}

func (s *stubOrderService) MergeOrders(ctx context.Context, orderIDs []int64, mergedName string, actor models.Actor) (*models.Order, error) {
	s.record("MergeOrders", 0, actor)
	s.merge = orderIDs
	s.hold = mergedName
	return s.order, s.err
}

func (s *stubOrderService) PriceFromMenu(ctx context.Context, items []services.OrderItemInput) ([]services.OrderItemInput, error) {
	s.calls = append(s.calls, "PriceFromMenu")
	if s.priceErr != nil {
		return nil, s.priceErr
	}
	priced := make([]services.OrderItemInput, len(items))
	for i, item := range items {
		item.UnitPrice = s.menu[item.ProductID]
		priced[i] = item
	}
	return priced, nil
}

type stubDraftService struct {
	input   services.DraftInput
	kind    models.CreatorKind
	name    string
	deleted int64
	err     error
}

func (s *stubDraftService) UpsertDraft(ctx context.Context, input services.DraftInput) (*models.Order, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &models.Order{ID: 1, Status: models.OrderStatusCreating, OrderCreator: input.CreatorKind, CreatorName: input.CreatorName}, nil
}

func (s *stubDraftService) DiscardDrafts(ctx context.Context, kind models.CreatorKind, creatorName string) (int64, error) {
	s.kind, s.name = kind, creatorName
	return s.deleted, s.err
}

type stubLoyaltyService struct {
	customer *models.Customer
	delta    int
	reason   string
	actor    models.Actor
	err      error
}

func (s *stubLoyaltyService) GetCustomer(ctx context.Context, customerID int64) (*models.Customer, error) {
	return s.customer, s.err
}

func (s *stubLoyaltyService) AdjustPoints(ctx context.Context, customerID int64, delta int, reason string, actor models.Actor) (*models.Customer, error) {
	s.delta, s.reason, s.actor = delta, reason, actor
	return s.customer, s.err
}

// stubInventoryService only answers the alert inbox calls.
type stubInventoryService struct {
	services.InventoryService
	alerts []models.StockAlert
	read   int64
	err    error
}

func (s *stubInventoryService) GetUnreadAlerts(ctx context.Context) ([]models.StockAlert, error) {
	return s.alerts, s.err
}

func (s *stubInventoryService) MarkAlertRead(ctx context.Context, alertID int64) error {
	s.read = alertID
	return s.err
}

func strPtr(s string) *string { return &s }
