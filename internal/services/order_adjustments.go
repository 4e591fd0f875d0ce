package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cafe_pos_backend/internal/models"
	"cafe_pos_backend/internal/repositories"
	"cafe_pos_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

// CancelOrder cancels an order that is not yet completed, records the
// cancellation with its refund and restores any deducted stock. Without an
// explicit refund amount a paid order is refunded in full.
func (s *orderService) CancelOrder(ctx context.Context, orderID int64, input CancelInput, actor models.Actor) (*models.Order, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, newValidationError("reason", "reason is required")
	}
	if input.RefundAmount != nil && input.RefundAmount.IsNegative() {
		return nil, &ValidationError{Field: "refund_amount", Expected: ">= 0", Actual: input.RefundAmount.String(), Message: "refund must not be negative"}
	}

	return s.mutateOrder(ctx, orderID, func(tx repositories.SQLExecutor, order *models.Order, fx *txEffects) error {
		if order.Status.IsTerminal() {
			return &InvalidTransitionError{OrderID: order.ID, From: order.Status, To: models.OrderStatusCancelled, Allowed: AllowedTransitions(order.Status)}
		}

		refund := decimal.Zero
		switch {
		case input.RefundAmount != nil:
			refund = *input.RefundAmount
			if refund.GreaterThan(order.TotalAmount) {
				return &ValidationError{Field: "refund_amount", Expected: "<= " + order.TotalAmount.String(), Actual: refund.String(), Message: "refund exceeds the order total"}
			}
		case order.PaymentStatus == models.PaymentStatusSuccess:
			refund = order.TotalAmount
		}
		refundStatus := models.RefundStatusNone
		if refund.IsPositive() {
			refundStatus = models.RefundStatusPending
		}

		cancellation := &models.OrderCancellation{
			OrderID:        order.ID,
			Reason:         reason,
			ReasonCategory: trimmedOrNil(input.ReasonCategory),
			RefundAmount:   refund,
			RefundMethod:   trimmedOrNil(input.RefundMethod),
			RefundStatus:   refundStatus,
			CancelledBy:    actor.UserID,
		}
		if _, err := s.deps.OrderRecords.CreateCancellation(ctx, tx, cancellation); err != nil {
			return translateRepoError(err, "order cancellation", order.ID)
		}
		order.Notes = utils.AppendNote(order.Notes, "Cancelled: "+reason)
		return s.applyTransition(ctx, tx, order, models.OrderStatusCancelled, actor, fx)
	})
}

// ReturnOrder records a partial or full return for a completed order and puts
// the returned quantities back into stock. The cumulative returned quantity
// of an item never exceeds what was ordered. The order keeps its status.
func (s *orderService) ReturnOrder(ctx context.Context, orderID int64, input ReturnInput, actor models.Actor) (*models.OrderReturn, error) {
	if len(input.Items) == 0 {
		return nil, &ValidationError{Field: "items", Expected: ">= 1", Actual: "0", Message: "a return needs at least one item"}
	}

	var ret *models.OrderReturn
	_, err := s.mutateOrder(ctx, orderID, func(tx repositories.SQLExecutor, order *models.Order, fx *txEffects) error {
		if order.Status != models.OrderStatusCompleted {
			return &ValidationError{Field: "status", Expected: string(models.OrderStatusCompleted), Actual: string(order.Status), Message: "only completed orders can be returned"}
		}
		returned, err := s.deps.OrderRecords.GetReturnedQuantities(ctx, tx, order.ID)
		if err != nil {
			return translateRepoError(err, "order return", order.ID)
		}

		itemsByID := make(map[int64]models.OrderItem, len(order.Items))
		for _, item := range order.Items {
			itemsByID[item.ID] = item
		}

		ret = &models.OrderReturn{
			OrderID:      order.ID,
			Reason:       trimmedOrNil(input.Reason),
			RefundMethod: trimmedOrNil(input.RefundMethod),
			RefundStatus: models.RefundStatusPending,
			ProcessedBy:  actor.UserID,
		}
		var lines []models.StockLine
		var summary []string
		seen := make(map[int64]bool, len(input.Items))
		for i, in := range input.Items {
			field := fmt.Sprintf("items[%d]", i)
			item, ok := itemsByID[in.OrderItemID]
			if !ok {
				return &ValidationError{Field: field + ".order_item_id", Actual: fmt.Sprint(in.OrderItemID), Message: "item does not belong to the order"}
			}
			if seen[in.OrderItemID] {
				return &ValidationError{Field: field + ".order_item_id", Actual: fmt.Sprint(in.OrderItemID), Message: "item listed more than once"}
			}
			seen[in.OrderItemID] = true
			remaining := item.Quantity - returned[item.ID]
			if in.Quantity <= 0 || in.Quantity > remaining {
				return &ValidationError{
					Field:    field + ".quantity",
					Expected: fmt.Sprintf("1..%d", remaining),
					Actual:   fmt.Sprint(in.Quantity),
					Message:  fmt.Sprintf("returned quantity exceeds what is left of item %d", item.ID),
				}
			}

			refund := item.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
			ret.Items = append(ret.Items, models.OrderReturnItem{OrderItemID: item.ID, Quantity: in.Quantity, RefundAmount: refund})
			ret.RefundAmount = ret.RefundAmount.Add(refund)
			lines = append(lines, models.StockLine{ProductID: item.ProductID, Quantity: in.Quantity})
			summary = append(summary, fmt.Sprintf("%dx product %d", in.Quantity, item.ProductID))
		}

		if _, err := s.deps.OrderRecords.CreateReturn(ctx, tx, ret); err != nil {
			return translateRepoError(err, "order return", order.ID)
		}
		updates, err := s.inventory.Restore(ctx, tx, refOf(order), lines, actor, fmt.Sprintf("Return for order %s", order.OrderNumber))
		if err != nil {
			return err
		}
		fx.stockUpdates = append(fx.stockUpdates, updates...)

		order.Notes = utils.AppendNote(order.Notes, fmt.Sprintf("Returned %s (refund %s)", strings.Join(summary, ", "), ret.RefundAmount.String()))
		if err := s.deps.Orders.UpdateOrder(ctx, tx, order); err != nil {
			return translateRepoError(err, "order", order.ID)
		}
		fx.changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func formatIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprint(id))
	}
	return strings.Join(parts, ", ")
}

// validateSplitGroups checks that every item id appears in exactly one group.
func validateSplitGroups(items []models.OrderItem, splits [][]int64) error {
	if len(splits) < 2 {
		return &ValidationError{Field: "splits", Expected: ">= 2", Actual: fmt.Sprint(len(splits)), Message: "a split needs at least two groups"}
	}
	known := make(map[int64]bool, len(items))
	for _, item := range items {
		known[item.ID] = true
	}

	seen := make(map[int64]bool, len(items))
	var duplicates, unknown []int64
	for i, group := range splits {
		if len(group) == 0 {
			return newValidationError(fmt.Sprintf("splits[%d]", i), "split group is empty")
		}
		for _, id := range group {
			switch {
			case !known[id]:
				unknown = append(unknown, id)
			case seen[id]:
				duplicates = append(duplicates, id)
			default:
				seen[id] = true
			}
		}
	}
	var missing []int64
	for _, item := range items {
		if !seen[item.ID] {
			missing = append(missing, item.ID)
		}
	}

	var problems []string
	if len(unknown) > 0 {
		problems = append(problems, "unknown item ids ["+formatIDs(unknown)+"]")
	}
	if len(duplicates) > 0 {
		problems = append(problems, "duplicate item ids ["+formatIDs(duplicates)+"]")
	}
	if len(missing) > 0 {
		problems = append(problems, "missing item ids ["+formatIDs(missing)+"]")
	}
	if len(problems) > 0 {
		return newValidationError("splits", strings.Join(problems, "; "))
	}
	return nil
}

// SplitOrder partitions a PENDING or HOLD order into new PENDING orders, one
// per group of item ids, then cancels the original. Every item must appear in
// exactly one group.
func (s *orderService) SplitOrder(ctx context.Context, orderID int64, splits [][]int64, actor models.Actor) ([]models.Order, error) {
	fx := &txEffects{}
	var original *models.Order
	var created []models.Order
	err := s.deps.Transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		var err error
		original, err = s.loadOrder(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if original.Status != models.OrderStatusPending && original.Status != models.OrderStatusHold {
			return &ValidationError{Field: "status", Expected: "PENDING|HOLD", Actual: string(original.Status), Message: "only pending or held orders can be split"}
		}
		if err := validateSplitGroups(original.Items, splits); err != nil {
			return err
		}

		itemsByID := make(map[int64]models.OrderItem, len(original.Items))
		for _, item := range original.Items {
			itemsByID[item.ID] = item
		}

		numbers := make([]string, 0, len(splits))
		for _, group := range splits {
			items := make([]models.OrderItem, 0, len(group))
			for _, id := range group {
				items = append(items, copyItem(itemsByID[id]))
			}
			part, err := s.createDerivedOrder(ctx, tx, original, items, fmt.Sprintf("Split from order %s", original.OrderNumber))
			if err != nil {
				return err
			}
			if _, err := s.deps.OrderRecords.CreateSplit(ctx, tx, &models.OrderSplit{
				OriginalOrderID: original.ID,
				NewOrderID:      part.ID,
				SplitBy:         actor.UserID,
			}); err != nil {
				return translateRepoError(err, "order split", original.ID)
			}
			created = append(created, *part)
			numbers = append(numbers, part.OrderNumber)
		}

		original.Notes = utils.AppendNote(original.Notes, "Split into "+strings.Join(numbers, ", "))
		return s.applyTransition(ctx, tx, original, models.OrderStatusCancelled, actor, fx)
	})
	if err != nil {
		return nil, err
	}

	for _, o := range created {
		fx.addEvent(models.OrderCreatedEvent{Order: o})
	}
	fx.addEvent(models.OrderUpdatedEvent{Order: *original})
	s.publish(ctx, fx)
	return created, nil
}

// MergeOrders combines two or more unpaid PENDING or HOLD orders of the same
// customer phone into one new PENDING order and cancels the sources.
func (s *orderService) MergeOrders(ctx context.Context, orderIDs []int64, mergedName string, actor models.Actor) (*models.Order, error) {
	ids := make([]int64, 0, len(orderIDs))
	seen := make(map[int64]bool, len(orderIDs))
	for _, id := range orderIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) < 2 {
		return nil, &ValidationError{Field: "order_ids", Expected: ">= 2 distinct", Actual: fmt.Sprint(len(ids)), Message: "a merge needs at least two orders"}
	}
	// Ascending lock order keeps concurrent merges from deadlocking.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fx := &txEffects{}
	var merged *models.Order
	var sources []*models.Order
	err := s.deps.Transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		for _, id := range ids {
			order, err := s.loadOrder(ctx, tx, id, true)
			if err != nil {
				return err
			}
			sources = append(sources, order)
		}

		first := sources[0]
		var items []models.OrderItem
		for _, order := range sources {
			if order.Status != models.OrderStatusPending && order.Status != models.OrderStatusHold {
				return &ValidationError{Field: "status", Expected: "PENDING|HOLD", Actual: string(order.Status),
					Message: fmt.Sprintf("order %s cannot be merged in its current status", order.OrderNumber)}
			}
			if order.PaymentStatus == models.PaymentStatusSuccess || order.PaidAt != nil {
				return &ValidationError{Field: "payment_status", Expected: "unpaid", Actual: string(order.PaymentStatus),
					Message: fmt.Sprintf("order %s is already paid", order.OrderNumber)}
			}
			if utils.DerefString(order.CustomerPhone) != utils.DerefString(first.CustomerPhone) {
				return &ValidationError{Field: "customer_phone", Expected: utils.DerefString(first.CustomerPhone), Actual: utils.DerefString(order.CustomerPhone),
					Message: fmt.Sprintf("order %s belongs to a different customer", order.OrderNumber)}
			}
			for _, item := range order.Items {
				items = append(items, copyItem(item))
			}
		}

		numbers := make([]string, 0, len(sources))
		for _, order := range sources {
			numbers = append(numbers, order.OrderNumber)
		}
		var err error
		merged, err = s.createDerivedOrder(ctx, tx, first, items, "Merged from "+strings.Join(numbers, ", "))
		if err != nil {
			return err
		}
		if name := utils.NewNullString(mergedName); name != nil {
			merged.CustomerName = name
			if err := s.deps.Orders.UpdateOrder(ctx, tx, merged); err != nil {
				return translateRepoError(err, "order", merged.ID)
			}
		}

		for _, order := range sources {
			if _, err := s.deps.OrderRecords.CreateMerge(ctx, tx, &models.OrderMerge{
				MergedOrderID: merged.ID,
				SourceOrderID: order.ID,
				MergedBy:      actor.UserID,
			}); err != nil {
				return translateRepoError(err, "order merge", order.ID)
			}
			order.Notes = utils.AppendNote(order.Notes, "Merged into "+merged.OrderNumber)
			if err := s.applyTransition(ctx, tx, order, models.OrderStatusCancelled, actor, fx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fx.addEvent(models.OrderCreatedEvent{Order: *merged})
	for _, order := range sources {
		fx.addEvent(models.OrderUpdatedEvent{Order: *order})
	}
	s.publish(ctx, fx)
	return merged, nil
}

// createDerivedOrder inserts a new PENDING order carrying the customer fields
// of base and the given items.
func (s *orderService) createDerivedOrder(ctx context.Context, executor repositories.SQLExecutor, base *models.Order, items []models.OrderItem, note string) (*models.Order, error) {
	number, err := nextOrderNumber(ctx, s.deps, executor)
	if err != nil {
		return nil, err
	}
	order := &models.Order{
		OrderNumber:   number,
		Status:        models.OrderStatusPending,
		TotalAmount:   models.SumItems(items),
		CustomerName:  base.CustomerName,
		CustomerPhone: base.CustomerPhone,
		TableNumber:   base.TableNumber,
		CustomerID:    base.CustomerID,
		Notes:         utils.AppendNote(nil, note),
		PaymentMethod: base.PaymentMethod,
		PaymentStatus: models.PaymentStatusPending,
		OrderCreator:  base.OrderCreator,
		CreatorName:   base.CreatorName,
	}
	if _, err := s.deps.Orders.CreateOrder(ctx, executor, order); err != nil {
		return nil, translateRepoError(err, "order", 0)
	}
	created, err := insertItems(ctx, s.deps, executor, order.ID, items)
	if err != nil {
		return nil, err
	}
	order.Items = created
	return order, nil
}
