package repositories

import (
	"context"
	"fmt"
	"time"

	"cafe_pos_backend/internal/models"
)

// OrderRecordRepository stores cancellation, return, split and merge records.
type OrderRecordRepository interface {
	CreateCancellation(ctx context.Context, executor SQLExecutor, cancellation *models.OrderCancellation) (int64, error)
	CreateReturn(ctx context.Context, executor SQLExecutor, ret *models.OrderReturn) (int64, error) // Inserts the return and its items
	GetReturnedQuantities(ctx context.Context, executor SQLExecutor, orderID int64) (map[int64]int, error) // order_item_id -> cumulative returned quantity
	CreateSplit(ctx context.Context, executor SQLExecutor, split *models.OrderSplit) (int64, error)
	CreateMerge(ctx context.Context, executor SQLExecutor, merge *models.OrderMerge) (int64, error)
}

type orderRecordRepository struct{}

// NewOrderRecordRepository creates a new instance of OrderRecordRepository.
func NewOrderRecordRepository() OrderRecordRepository {
	return &orderRecordRepository{}
}

func (r *orderRecordRepository) CreateCancellation(ctx context.Context, executor SQLExecutor, cancellation *models.OrderCancellation) (int64, error) {
	query := `INSERT INTO order_cancellations
	            (order_id, reason, reason_category, refund_amount, refund_method, refund_status, cancelled_by, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id`
	if cancellation.CreatedAt.IsZero() {
		cancellation.CreatedAt = time.Now()
	}
	err := executor.QueryRowContext(ctx, query,
		cancellation.OrderID, cancellation.Reason, cancellation.ReasonCategory, cancellation.RefundAmount,
		cancellation.RefundMethod, cancellation.RefundStatus, cancellation.CancelledBy, cancellation.CreatedAt,
	).Scan(&cancellation.ID)
	if err != nil {
		return 0, wrapDBError(err, fmt.Sprintf("creating cancellation for order ID %d", cancellation.OrderID))
	}
	return cancellation.ID, nil
}

func (r *orderRecordRepository) CreateReturn(ctx context.Context, executor SQLExecutor, ret *models.OrderReturn) (int64, error) {
	query := `INSERT INTO order_returns
	            (order_id, reason, refund_amount, refund_method, refund_status, processed_by, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id`
	if ret.CreatedAt.IsZero() {
		ret.CreatedAt = time.Now()
	}
	err := executor.QueryRowContext(ctx, query,
		ret.OrderID, ret.Reason, ret.RefundAmount, ret.RefundMethod, ret.RefundStatus, ret.ProcessedBy, ret.CreatedAt,
	).Scan(&ret.ID)
	if err != nil {
		return 0, wrapDBError(err, fmt.Sprintf("creating return for order ID %d", ret.OrderID))
	}

	itemQuery := `INSERT INTO order_return_items (return_id, order_item_id, quantity, refund_amount)
	              VALUES ($1, $2, $3, $4)
	              RETURNING id`
	for i := range ret.Items {
		item := &ret.Items[i]
		item.ReturnID = ret.ID
		if err := executor.QueryRowContext(ctx, itemQuery,
			item.ReturnID, item.OrderItemID, item.Quantity, item.RefundAmount,
		).Scan(&item.ID); err != nil {
			return 0, wrapDBError(err, fmt.Sprintf("creating return item (order_item_id: %d)", item.OrderItemID))
		}
	}
	return ret.ID, nil
}

func (r *orderRecordRepository) GetReturnedQuantities(ctx context.Context, executor SQLExecutor, orderID int64) (map[int64]int, error) {
	returned := make(map[int64]int)
	query := `SELECT ri.order_item_id, COALESCE(SUM(ri.quantity), 0)
	          FROM order_return_items ri
	          JOIN order_returns rt ON rt.id = ri.return_id
	          WHERE rt.order_id = $1
	          GROUP BY ri.order_item_id`
	rows, err := executor.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("querying returned quantities for order ID %d", orderID))
	}
	defer rows.Close()

	for rows.Next() {
		var itemID int64
		var qty int
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, fmt.Errorf("%w: scanning returned quantity: %v", ErrDatabaseError, err)
		}
		returned[itemID] = qty
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating returned quantity rows: %v", ErrDatabaseError, err)
	}
	return returned, nil
}

func (r *orderRecordRepository) CreateSplit(ctx context.Context, executor SQLExecutor, split *models.OrderSplit) (int64, error) {
	query := `INSERT INTO order_splits (original_order_id, new_order_id, split_by, created_at)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id`
	if split.CreatedAt.IsZero() {
		split.CreatedAt = time.Now()
	}
	err := executor.QueryRowContext(ctx, query, split.OriginalOrderID, split.NewOrderID, split.SplitBy, split.CreatedAt).Scan(&split.ID)
	if err != nil {
		return 0, wrapDBError(err, fmt.Sprintf("creating split record for order ID %d", split.OriginalOrderID))
	}
	return split.ID, nil
}

func (r *orderRecordRepository) CreateMerge(ctx context.Context, executor SQLExecutor, merge *models.OrderMerge) (int64, error) {
	query := `INSERT INTO order_merges (merged_order_id, source_order_id, merged_by, created_at)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id`
	if merge.CreatedAt.IsZero() {
		merge.CreatedAt = time.Now()
	}
	err := executor.QueryRowContext(ctx, query, merge.MergedOrderID, merge.SourceOrderID, merge.MergedBy, merge.CreatedAt).Scan(&merge.ID)
	if err != nil {
		return 0, wrapDBError(err, fmt.Sprintf("creating merge record for source order ID %d", merge.SourceOrderID))
	}
	return merge.ID, nil
}
