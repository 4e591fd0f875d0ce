package services

import (
	"context"
	"fmt"
	"strings"

	"cafe_pos_backend/internal/models"
	"cafe_pos_backend/internal/repositories"
	"cafe_pos_backend/pkg/utils"
)

// --- OrderService Interface ---
type OrderService interface {
	CreateOrder(ctx context.Context, input CreateOrderInput, actor models.Actor) (*models.Order, error)
	GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error)
	GetOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error)
	ChangeStatus(ctx context.Context, orderID int64, target models.OrderStatus, actor models.Actor) (*models.Order, error)
	HoldOrder(ctx context.Context, orderID int64, holdName string, actor models.Actor) (*models.Order, error)
	ResumeHold(ctx context.Context, orderID int64, actor models.Actor) (*models.Order, error)
	VerifyOrder(ctx context.Context, orderID int64, actor models.Actor) (*models.Order, error)
	RejectOrder(ctx context.Context, orderID int64, reason string, actor models.Actor) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID int64, input CancelInput, actor models.Actor) (*models.Order, error)
	ReturnOrder(ctx context.Context, orderID int64, input ReturnInput, actor models.Actor) (*models.OrderReturn, error)
	SplitOrder(ctx context.Context, orderID int64, splits [][]int64, actor models.Actor) ([]models.Order, error)
	MergeOrders(ctx context.Context, orderIDs []int64, mergedName string, actor models.Actor) (*models.Order, error)

	// PriceFromMenu replaces each item's unit price with the active menu price.
	PriceFromMenu(ctx context.Context, items []OrderItemInput) ([]OrderItemInput, error)
}

// --- orderService Implementation ---
type orderService struct {
	deps      Deps
	inventory *inventoryService
	drafts    *draftService
	loyalty   *loyaltyService
}

// NewOrderService creates the order lifecycle orchestrator.
func NewOrderService(deps Deps) OrderService {
	deps = deps.withDefaults()
	return &orderService{
		deps:      deps,
		inventory: newInventoryService(deps),
		drafts:    newDraftService(deps),
		loyalty:   newLoyaltyService(deps),
	}
}

// txEffects collects what a transaction produced that must only be published
// once it has committed.
type txEffects struct {
	stockUpdates []models.StockUpdate
	events       []models.Event
	changed      bool // the order row was written
}

func (fx *txEffects) addEvent(events ...models.Event) {
	fx.events = append(fx.events, events...)
}

// publish runs after commit: stock alerts first, then stock events, then the
// order events in the order they were recorded.
func (s *orderService) publish(ctx context.Context, fx *txEffects) {
	var events []models.Event
	if len(fx.stockUpdates) > 0 {
		alerts := s.inventory.ProcessAlerts(ctx, fx.stockUpdates)
		for _, u := range fx.stockUpdates {
			events = append(events, models.StockUpdatedEvent{Update: u})
		}
		for _, a := range alerts {
			events = append(events, models.StockAlertEvent{Alert: a})
		}
	}
	events = append(events, fx.events...)
	s.deps.Dispatcher.Dispatch(events...)
}

// --- Method Implementations ---

func (s *orderService) CreateOrder(ctx context.Context, input CreateOrderInput, actor models.Actor) (*models.Order, error) {
	if err := validateCreator(input.CreatorKind, input.CreatorName); err != nil {
		return nil, err
	}
	if len(input.Items) == 0 {
		return nil, &ValidationError{Field: "items", Expected: ">= 1", Actual: "0", Message: "an order needs at least one item"}
	}
	items, err := buildOrderItems(input.Items)
	if err != nil {
		return nil, err
	}
	fields := normalizeCustomerFields(input.CustomerFields)
	creatorName := strings.TrimSpace(input.CreatorName)

	fx := &txEffects{}
	var order *models.Order
	err = s.deps.Transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if _, err := s.drafts.discardDraftsTx(ctx, tx, input.CreatorKind, creatorName); err != nil {
			return err
		}
		if err := s.inventory.Reserve(ctx, tx, stockLinesOf(items)); err != nil {
			return err
		}

		var customerID *int64
		if fields.CustomerPhone != nil {
			customer, err := s.loyalty.resolveCustomer(ctx, tx, *fields.CustomerPhone, fields.CustomerName)
			if err != nil {
				return err
			}
			customerID = &customer.ID
		}

		number, err := nextOrderNumber(ctx, s.deps, tx)
		if err != nil {
			return err
		}

		status := initialStatusFor(input.CreatorKind)
		order = &models.Order{
			OrderNumber:   number,
			Status:        status,
			CustomerName:  fields.CustomerName,
			CustomerPhone: fields.CustomerPhone,
			TableNumber:   fields.TableNumber,
			CustomerID:    customerID,
			Notes:         fields.Notes,
			PaymentMethod: trimmedOrNil(input.PaymentMethod),
			PaymentStatus: models.PaymentStatusPending,
			OrderCreator:  input.CreatorKind,
			CreatorName:   creatorName,
			TotalAmount:   models.SumItems(items),
		}
		if status == models.OrderStatusConfirmed {
			now := s.deps.Clock()
			order.ConfirmedBy = actor.UserID
			order.ConfirmedAt = &now
		}
		if _, err := s.deps.Orders.CreateOrder(ctx, tx, order); err != nil {
			return translateRepoError(err, "order", 0)
		}
		created, err := insertItems(ctx, s.deps, tx, order.ID, items)
		if err != nil {
			return err
		}
		order.Items = created

		if status == models.OrderStatusConfirmed {
			updates, err := s.inventory.Deduct(ctx, tx, refOf(order), stockLinesOf(created), actor)
			if err != nil {
				return err
			}
			fx.stockUpdates = append(fx.stockUpdates, updates...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.LogInfo("Order created", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"status":       string(order.Status),
		"creator_kind": string(order.OrderCreator),
	})
	fx.addEvent(models.OrderCreatedEvent{Order: *order})
	s.publish(ctx, fx)
	return order, nil
}

func (s *orderService) GetOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error) {
	for _, st := range filters.Statuses {
		if !models.IsValidOrderStatus(string(st)) {
			return nil, 0, &ValidationError{Field: "status", Actual: string(st), Message: "unknown order status"}
		}
	}
	if filters.PageSize > 100 {
		filters.PageSize = 100
	}
	orders, totalCount, err := s.deps.Orders.GetOrders(ctx, s.deps.Transactor.Executor(), filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get orders: %w", err)
	}
	return orders, totalCount, nil
}

func (s *orderService) PriceFromMenu(ctx context.Context, items []OrderItemInput) ([]OrderItemInput, error) {
	if len(items) == 0 {
		return items, nil
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	prices, err := s.deps.Products.GetMenuPrices(ctx, s.deps.Transactor.Executor(), ids)
	if err != nil {
		return nil, translateRepoError(err, "product", 0)
	}
	priced := make([]OrderItemInput, len(items))
	for i, item := range items {
		price, ok := prices[item.ProductID]
		if !ok {
			return nil, &NotFoundError{Entity: "product", ID: item.ProductID}
		}
		item.UnitPrice = price
		priced[i] = item
	}
	return priced, nil
}

func (s *orderService) GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.loadOrder(ctx, s.deps.Transactor.Executor(), orderID, false)
}

// loadOrder reads the order with its items; forUpdate takes the row lock.
func (s *orderService) loadOrder(ctx context.Context, executor repositories.SQLExecutor, orderID int64, forUpdate bool) (*models.Order, error) {
	var order *models.Order
	var err error
	if forUpdate {
		order, err = s.deps.Orders.GetOrderForUpdate(ctx, executor, orderID)
	} else {
		order, err = s.deps.Orders.GetOrderByID(ctx, executor, orderID)
	}
	if err != nil {
		return nil, translateRepoError(err, "order", orderID)
	}
	items, err := s.deps.Orders.GetOrderItemsByOrderID(ctx, executor, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items for order ID %d: %w", orderID, err)
	}
	order.Items = items
	return order, nil
}

// applyTransition moves order to target and runs the side effects bound to
// the target status, all through executor. A transition to the current status
// is a no-op. The caller persists nothing further; the order row is updated here.
func (s *orderService) applyTransition(ctx context.Context, executor repositories.SQLExecutor, order *models.Order, target models.OrderStatus, actor models.Actor, fx *txEffects) error {
	if order.Status == target {
		return nil
	}
	if err := validateTransition(order.ID, order.Status, target); err != nil {
		return err
	}
	previous := order.Status
	now := s.deps.Clock()

	switch target {
	case models.OrderStatusConfirmed:
		order.ConfirmedBy = actor.UserID
		order.ConfirmedAt = &now
		updates, err := s.inventory.Deduct(ctx, executor, refOf(order), stockLinesOf(order.Items), actor)
		if err != nil {
			return err
		}
		fx.stockUpdates = append(fx.stockUpdates, updates...)

	case models.OrderStatusCompleted:
		if order.PaidAt == nil {
			order.PaidAt = &now
			order.PaymentStatus = models.PaymentStatusSuccess
		}

	case models.OrderStatusCancelled:
		deducted := hasDeductingHistory(previous)
		if !deducted {
			var err error
			if deducted, err = s.inventory.HasDeducted(ctx, executor, order.ID); err != nil {
				return err
			}
		}
		if deducted {
			reason := fmt.Sprintf("Order %s cancelled", order.OrderNumber)
			updates, err := s.inventory.RestoreOrder(ctx, executor, refOf(order), actor, reason)
			if err != nil {
				return err
			}
			fx.stockUpdates = append(fx.stockUpdates, updates...)
		}
	}

	if target != models.OrderStatusHold {
		order.HoldName = nil
	}
	order.Status = target
	if err := s.deps.Orders.UpdateOrder(ctx, executor, order); err != nil {
		return translateRepoError(err, "order", order.ID)
	}

	if target == models.OrderStatusCompleted {
		if _, err := s.loyalty.creditForCompletedOrder(ctx, executor, order, actor); err != nil {
			return err
		}
		if _, err := s.drafts.discardDraftsTx(ctx, executor, order.OrderCreator, order.CreatorName); err != nil {
			return err
		}
	}

	fx.changed = true
	fx.addEvent(models.OrderStatusChangedEvent{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		PreviousStatus: previous,
		Status:         target,
		ChangedBy:      actor.UserID,
		ChangedAt:      now,
	})
	return nil
}

// mutateOrder runs fn against the locked order in one transaction and
// publishes the collected effects after commit.
func (s *orderService) mutateOrder(ctx context.Context, orderID int64, fn func(tx repositories.SQLExecutor, order *models.Order, fx *txEffects) error) (*models.Order, error) {
	fx := &txEffects{}
	var order *models.Order
	err := s.deps.Transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		var err error
		order, err = s.loadOrder(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		return fn(tx, order, fx)
	})
	if err != nil {
		return nil, err
	}
	if fx.changed {
		fx.addEvent(models.OrderUpdatedEvent{Order: *order})
	}
	s.publish(ctx, fx)
	return order, nil
}

func (s *orderService) ChangeStatus(ctx context.Context, orderID int64, target models.OrderStatus, actor models.Actor) (*models.Order, error) {
	if !models.IsValidOrderStatus(string(target)) {
		return nil, &ValidationError{Field: "status", Actual: string(target), Message: "unknown order status"}
	}
	return s.mutateOrder(ctx, orderID, func(tx repositories.SQLExecutor, order *models.Order, fx *txEffects) error {
		return s.applyTransition(ctx, tx, order, target, actor, fx)
	})
}

// HoldOrder parks a CREATING or PENDING order under a display name. Holding an
// order that is already on hold only renames it.
func (s *orderService) HoldOrder(ctx context.Context, orderID int64, holdName string, actor models.Actor) (*models.Order, error) {
	return s.mutateOrder(ctx, orderID, func(tx repositories.SQLExecutor, order *models.Order, fx *txEffects) error {
		name := utils.NewNullString(holdName)
		if name == nil {
			name = &order.OrderNumber
		}
		switch order.Status {
		case models.OrderStatusHold:
			order.HoldName = name
			if err := s.deps.Orders.UpdateOrder(ctx, tx, order); err != nil {
				return translateRepoError(err, "order", order.ID)
			}
			fx.changed = true
			return nil
		case models.OrderStatusCreating, models.OrderStatusPending:
		default:
			return &ValidationError{Field: "status", Expected: "CREATING|PENDING", Actual: string(order.Status), Message: "only draft or pending orders can be held"}
		}
		order.HoldName = name
		return s.applyTransition(ctx, tx, order, models.OrderStatusHold, actor, fx)
	})
}

// ResumeHold returns a held order to PENDING for customer orders or CONFIRMED
// (with stock deduction) for staff orders.
func (s *orderService) ResumeHold(ctx context.Context, orderID int64, actor models.Actor) (*models.Order, error) {
	return s.mutateOrder(ctx, orderID, func(tx repositories.SQLExecutor, order *models.Order, fx *txEffects) error {
		if order.Status != models.OrderStatusHold {
			return &ValidationError{Field: "status", Expected: string(models.OrderStatusHold), Actual: string(order.Status), Message: "order is not on hold"}
		}
		return s.applyTransition(ctx, tx, order, initialStatusFor(order.OrderCreator), actor, fx)
	})
}

func requireCustomerPending(order *models.Order) error {
	if order.OrderCreator != models.CreatorCustomer {
		return &ValidationError{Field: "order_creator", Expected: string(models.CreatorCustomer), Actual: string(order.OrderCreator), Message: "only customer orders need verification"}
	}
	if order.Status != models.OrderStatusPending {
		return &ValidationError{Field: "status", Expected: string(models.OrderStatusPending), Actual: string(order.Status), Message: "only pending orders can be verified or rejected"}
	}
	return nil
}

// VerifyOrder confirms a pending customer order, deducting its stock.
func (s *orderService) VerifyOrder(ctx context.Context, orderID int64, actor models.Actor) (*models.Order, error) {
	return s.mutateOrder(ctx, orderID, func(tx repositories.SQLExecutor, order *models.Order, fx *txEffects) error {
		if err := requireCustomerPending(order); err != nil {
			return err
		}
		return s.applyTransition(ctx, tx, order, models.OrderStatusConfirmed, actor, fx)
	})
}

// RejectOrder cancels a pending customer order and records why in its notes.
func (s *orderService) RejectOrder(ctx context.Context, orderID int64, reason string, actor models.Actor) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newValidationError("reason", "reason is required")
	}
	return s.mutateOrder(ctx, orderID, func(tx repositories.SQLExecutor, order *models.Order, fx *txEffects) error {
		if err := requireCustomerPending(order); err != nil {
			return err
		}
		order.Notes = utils.AppendNote(order.Notes, "Rejected: "+reason)
		return s.applyTransition(ctx, tx, order, models.OrderStatusCancelled, actor, fx)
	})
}
