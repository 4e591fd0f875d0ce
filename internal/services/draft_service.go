package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cafe_pos_backend/internal/models"
	"cafe_pos_backend/internal/repositories"
	"cafe_pos_backend/pkg/utils"
)

// DraftService keeps one CREATING order per (creator kind, creator name).
type DraftService interface {
	UpsertDraft(ctx context.Context, input DraftInput) (*models.Order, error)
	DiscardDrafts(ctx context.Context, kind models.CreatorKind, creatorName string) (int64, error)
}

type draftService struct {
	deps Deps
}

// NewDraftService creates the draft order manager.
func NewDraftService(deps Deps) DraftService {
	return newDraftService(deps.withDefaults())
}

func newDraftService(deps Deps) *draftService {
	return &draftService{deps: deps}
}

// UpsertDraft replaces the creator's draft items wholesale, creating the draft
// when none exists. An empty item list is a valid, cleared cart. A concurrent
// first insert for the same creator loses on the unique draft index; the call
// is then retried once and lands on the winner's row.
func (s *draftService) UpsertDraft(ctx context.Context, input DraftInput) (*models.Order, error) {
	if err := validateCreator(input.CreatorKind, input.CreatorName); err != nil {
		return nil, err
	}
	items, err := buildOrderItems(input.Items)
	if err != nil {
		return nil, err
	}
	fields := normalizeCustomerFields(input.CustomerFields)
	creatorName := strings.TrimSpace(input.CreatorName)

	var draft *models.Order
	for attempt := 0; attempt < 2; attempt++ {
		draft, err = s.upsertOnce(ctx, input.CreatorKind, creatorName, items, fields)
		if err == nil || !errors.Is(err, ErrConflict) {
			break
		}
		utils.LogDebug("Draft upsert conflicted, retrying", map[string]interface{}{
			"creator_kind": string(input.CreatorKind),
			"creator_name": creatorName,
		})
	}
	if err != nil {
		return nil, err
	}

	s.deps.Dispatcher.Dispatch(models.OrderUpdatedEvent{Order: *draft})
	return draft, nil
}

func (s *draftService) upsertOnce(ctx context.Context, kind models.CreatorKind, creatorName string, items []models.OrderItem, fields CustomerFields) (*models.Order, error) {
	var draft *models.Order
	err := s.deps.Transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		existing, err := s.deps.Orders.FindDraftForUpdate(ctx, tx, kind, creatorName)
		switch {
		case err == nil:
			draft = existing
			if _, err := s.deps.Orders.DeleteOrderItemsByOrderID(ctx, tx, draft.ID); err != nil {
				return fmt.Errorf("failed to clear draft items: %w", translateRepoError(err, "order", draft.ID))
			}
		case errors.Is(err, repositories.ErrNotFound):
			number, err := nextOrderNumber(ctx, s.deps, tx)
			if err != nil {
				return err
			}
			draft = &models.Order{
				OrderNumber:   number,
				Status:        models.OrderStatusCreating,
				PaymentStatus: models.PaymentStatusPending,
				OrderCreator:  kind,
				CreatorName:   creatorName,
			}
			if _, err := s.deps.Orders.CreateOrder(ctx, tx, draft); err != nil {
				return translateRepoError(err, "order", 0)
			}
		default:
			return translateRepoError(err, "order", 0)
		}

		created, err := insertItems(ctx, s.deps, tx, draft.ID, items)
		if err != nil {
			return err
		}
		draft.Items = created
		draft.TotalAmount = models.SumItems(created)
		draft.CustomerName = fields.CustomerName
		draft.CustomerPhone = fields.CustomerPhone
		draft.TableNumber = fields.TableNumber
		draft.Notes = fields.Notes
		if err := s.deps.Orders.UpdateOrder(ctx, tx, draft); err != nil {
			return translateRepoError(err, "order", draft.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// DiscardDrafts deletes every CREATING order of the creator.
func (s *draftService) DiscardDrafts(ctx context.Context, kind models.CreatorKind, creatorName string) (int64, error) {
	if err := validateCreator(kind, creatorName); err != nil {
		return 0, err
	}
	creatorName = strings.TrimSpace(creatorName)
	var deleted int64
	err := s.deps.Transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		var err error
		deleted, err = s.discardDraftsTx(ctx, tx, kind, creatorName)
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *draftService) discardDraftsTx(ctx context.Context, executor repositories.SQLExecutor, kind models.CreatorKind, creatorName string) (int64, error) {
	deleted, err := s.deps.Orders.DeleteDrafts(ctx, executor, kind, creatorName)
	if err != nil {
		return 0, translateRepoError(err, "order", 0)
	}
	if deleted > 0 {
		utils.LogDebug("Discarded draft orders", map[string]interface{}{
			"creator_kind": string(kind),
			"creator_name": creatorName,
			"count":        deleted,
		})
	}
	return deleted, nil
}

// insertItems persists items for orderID and returns them with their ids.
func insertItems(ctx context.Context, deps Deps, executor repositories.SQLExecutor, orderID int64, items []models.OrderItem) ([]models.OrderItem, error) {
	created := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		item.ID = 0
		item.OrderID = orderID
		if _, err := deps.Orders.CreateOrderItem(ctx, executor, &item); err != nil {
			return nil, fmt.Errorf("failed to create order item (product_id: %d): %w", item.ProductID, translateRepoError(err, "order item", 0))
		}
		created = append(created, item)
	}
	return created, nil
}
