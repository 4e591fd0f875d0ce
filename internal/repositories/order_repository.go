package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cafe_pos_backend/internal/models"

	"github.com/lib/pq"
)

// OrderRepository defines the interface for order-related database operations.
type OrderRepository interface {
	// Order methods
	CreateOrder(ctx context.Context, executor SQLExecutor, order *models.Order) (int64, error)
	GetOrderByID(ctx context.Context, executor SQLExecutor, orderID int64) (*models.Order, error) // Basic order details
	GetOrderForUpdate(ctx context.Context, executor SQLExecutor, orderID int64) (*models.Order, error)
	GetOrders(ctx context.Context, executor SQLExecutor, filters models.OrderFilters) ([]models.Order, int, error) // orders, total count, error
	OrderNumberExists(ctx context.Context, executor SQLExecutor, orderNumber string) (bool, error)
	UpdateOrder(ctx context.Context, executor SQLExecutor, order *models.Order) error
	DeleteOrder(ctx context.Context, executor SQLExecutor, orderID int64) error

	// Draft methods
	FindDraftForUpdate(ctx context.Context, executor SQLExecutor, kind models.CreatorKind, creatorName string) (*models.Order, error)
	DeleteDrafts(ctx context.Context, executor SQLExecutor, kind models.CreatorKind, creatorName string) (int64, error)

	// OrderItem methods
	CreateOrderItem(ctx context.Context, executor SQLExecutor, item *models.OrderItem) (int64, error)
	GetOrderItemsByOrderID(ctx context.Context, executor SQLExecutor, orderID int64) ([]models.OrderItem, error)
	DeleteOrderItemsByOrderID(ctx context.Context, executor SQLExecutor, orderID int64) (int64, error) // Returns rows affected or error
}

type orderRepository struct{}

// NewOrderRepository creates a new instance of OrderRepository.
func NewOrderRepository() OrderRepository {
	return &orderRepository{}
}

const orderColumns = `o.id, o.order_number, o.status, o.total_amount, o.customer_name, o.customer_phone,
	o.table_number, o.customer_id, o.notes, o.payment_method, o.payment_status, o.payment_transaction_id,
	o.paid_at, o.order_creator, o.creator_name, o.confirmed_by, o.confirmed_at, o.hold_name,
	o.created_at, o.updated_at`

func scanOrder(row scanner, extra ...interface{}) (*models.Order, error) {
	o := &models.Order{}
	dest := []interface{}{
		&o.ID, &o.OrderNumber, &o.Status, &o.TotalAmount, &o.CustomerName, &o.CustomerPhone,
		&o.TableNumber, &o.CustomerID, &o.Notes, &o.PaymentMethod, &o.PaymentStatus, &o.PaymentTransactionID,
		&o.PaidAt, &o.OrderCreator, &o.CreatorName, &o.ConfirmedBy, &o.ConfirmedAt, &o.HoldName,
		&o.CreatedAt, &o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return o, nil
}

// --- Order Methods ---

func (r *orderRepository) CreateOrder(ctx context.Context, executor SQLExecutor, order *models.Order) (int64, error) {
	query := `INSERT INTO orders
	            (order_number, status, total_amount, customer_name, customer_phone, table_number,
	             customer_id, notes, payment_method, payment_status, payment_transaction_id, paid_at,
	             order_creator, creator_name, confirmed_by, confirmed_at, hold_name, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	          RETURNING id`

	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = models.PaymentStatusPending
	}

	err := executor.QueryRowContext(ctx, query,
		order.OrderNumber, order.Status, order.TotalAmount, order.CustomerName, order.CustomerPhone, order.TableNumber,
		order.CustomerID, order.Notes, order.PaymentMethod, order.PaymentStatus, order.PaymentTransactionID, order.PaidAt,
		order.OrderCreator, order.CreatorName, order.ConfirmedBy, order.ConfirmedAt, order.HoldName, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return 0, wrapDBError(err, "creating order")
	}
	return order.ID, nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, executor SQLExecutor, orderID int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`
	order, err := scanOrder(executor.QueryRowContext(ctx, query, orderID))
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("getting order by ID %d", orderID))
	}
	return order, nil
}

// GetOrderForUpdate reads the order and holds its row lock until the transaction ends,
// so concurrent transitions on the same order serialize.
func (r *orderRepository) GetOrderForUpdate(ctx context.Context, executor SQLExecutor, orderID int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1 FOR UPDATE`
	order, err := scanOrder(executor.QueryRowContext(ctx, query, orderID))
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("locking order ID %d", orderID))
	}
	return order, nil
}

func (r *orderRepository) GetOrders(ctx context.Context, executor SQLExecutor, filters models.OrderFilters) ([]models.Order, int, error) {
	orders := []models.Order{}
	totalCount := 0

	query, args := buildOrdersQuery(filters)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, wrapDBError(err, "querying orders")
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOrder(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: scanning order: %v", ErrDatabaseError, err)
		}
		orders = append(orders, *o)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating order rows: %v", ErrDatabaseError, err)
	}
	return orders, totalCount, nil
}

// buildOrdersQuery renders the list query for filters with numbered
// placeholders. An unparseable date is ignored.
func buildOrdersQuery(filters models.OrderFilters) (string, []interface{}) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + orderColumns + `, COUNT(*) OVER() AS total_count FROM orders o`)

	var conditions []string
	var args []interface{}
	argCounter := 1

	if len(filters.Statuses) > 0 {
		statuses := make([]string, 0, len(filters.Statuses))
		for _, s := range filters.Statuses {
			statuses = append(statuses, string(s))
		}
		conditions = append(conditions, fmt.Sprintf("o.status = ANY($%d)", argCounter))
		args = append(args, pq.Array(statuses))
		argCounter++
	}
	if filters.CreatorKind != nil {
		conditions = append(conditions, fmt.Sprintf("o.order_creator = $%d", argCounter))
		args = append(args, *filters.CreatorKind)
		argCounter++
	}
	if filters.CreatorName != nil && *filters.CreatorName != "" {
		conditions = append(conditions, fmt.Sprintf("o.creator_name = $%d", argCounter))
		args = append(args, *filters.CreatorName)
		argCounter++
	}
	if filters.CustomerPhone != nil && *filters.CustomerPhone != "" {
		conditions = append(conditions, fmt.Sprintf("o.customer_phone = $%d", argCounter))
		args = append(args, *filters.CustomerPhone)
		argCounter++
	}
	if filters.TableNumber != nil && *filters.TableNumber != "" {
		conditions = append(conditions, fmt.Sprintf("o.table_number = $%d", argCounter))
		args = append(args, *filters.TableNumber)
		argCounter++
	}
	if filters.Date != nil && *filters.Date != "" {
		parsedDate, err := time.Parse("2006-01-02", *filters.Date)
		if err == nil {
			startOfDay := time.Date(parsedDate.Year(), parsedDate.Month(), parsedDate.Day(), 0, 0, 0, 0, parsedDate.Location())
			endOfDay := startOfDay.AddDate(0, 0, 1)
			conditions = append(conditions, fmt.Sprintf("o.created_at >= $%d AND o.created_at < $%d", argCounter, argCounter+1))
			args = append(args, startOfDay, endOfDay)
			argCounter += 2
		}
	}
	if filters.ActiveOnly {
		// Empty carts are displayable drafts but never active orders.
		conditions = append(conditions,
			"o.status NOT IN ('COMPLETED', 'CANCELLED')",
			"EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = o.id)")
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY o.created_at DESC, o.id DESC")

	if filters.PageSize > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", argCounter))
		args = append(args, filters.PageSize)
		argCounter++
		if filters.Page > 0 {
			offset := (filters.Page - 1) * filters.PageSize
			queryBuilder.WriteString(fmt.Sprintf(" OFFSET $%d", argCounter))
			args = append(args, offset)
		}
	}

	return queryBuilder.String(), args
}

func (r *orderRepository) OrderNumberExists(ctx context.Context, executor SQLExecutor, orderNumber string) (bool, error) {
	var exists bool
	err := executor.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)`, orderNumber).Scan(&exists)
	if err != nil {
		return false, wrapDBError(err, "checking order number "+orderNumber)
	}
	return exists, nil
}

func (r *orderRepository) UpdateOrder(ctx context.Context, executor SQLExecutor, order *models.Order) error {
	query := `UPDATE orders SET
	            status = $1, total_amount = $2, customer_name = $3, customer_phone = $4, table_number = $5,
	            customer_id = $6, notes = $7, payment_method = $8, payment_status = $9,
	            payment_transaction_id = $10, paid_at = $11, confirmed_by = $12, confirmed_at = $13,
	            hold_name = $14, updated_at = $15
	          WHERE id = $16`
	order.UpdatedAt = time.Now()
	result, err := executor.ExecContext(ctx, query,
		order.Status, order.TotalAmount, order.CustomerName, order.CustomerPhone, order.TableNumber,
		order.CustomerID, order.Notes, order.PaymentMethod, order.PaymentStatus,
		order.PaymentTransactionID, order.PaidAt, order.ConfirmedBy, order.ConfirmedAt,
		order.HoldName, order.UpdatedAt, order.ID,
	)
	if err != nil {
		return wrapDBError(err, fmt.Sprintf("updating order ID %d", order.ID))
	}
	return expectAffected(result, fmt.Sprintf("order update ID %d", order.ID))
}

func (r *orderRepository) DeleteOrder(ctx context.Context, executor SQLExecutor, orderID int64) error {
	result, err := executor.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return wrapDBError(err, fmt.Sprintf("deleting order ID %d", orderID))
	}
	return expectAffected(result, fmt.Sprintf("deleting order ID %d", orderID))
}

// --- Draft Methods ---

func (r *orderRepository) FindDraftForUpdate(ctx context.Context, executor SQLExecutor, kind models.CreatorKind, creatorName string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o
	          WHERE o.status = 'CREATING' AND o.order_creator = $1 AND o.creator_name = $2
	          ORDER BY o.id
	          LIMIT 1
	          FOR UPDATE`
	order, err := scanOrder(executor.QueryRowContext(ctx, query, kind, creatorName))
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("finding draft for %s/%s", kind, creatorName))
	}
	return order, nil
}

func (r *orderRepository) DeleteDrafts(ctx context.Context, executor SQLExecutor, kind models.CreatorKind, creatorName string) (int64, error) {
	result, err := executor.ExecContext(ctx,
		`DELETE FROM orders WHERE status = 'CREATING' AND order_creator = $1 AND creator_name = $2`,
		kind, creatorName)
	if err != nil {
		return 0, wrapDBError(err, fmt.Sprintf("deleting drafts for %s/%s", kind, creatorName))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: getting rows affected for draft deletion: %v", ErrDatabaseError, err)
	}
	return rowsAffected, nil
}

// --- OrderItem Methods ---

func (r *orderRepository) CreateOrderItem(ctx context.Context, executor SQLExecutor, item *models.OrderItem) (int64, error) {
	query := `INSERT INTO order_items
	            (order_id, product_id, quantity, unit_price, subtotal, selected_size, selected_toppings, note, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING id`
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}

	err := executor.QueryRowContext(ctx, query,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal,
		item.SelectedSize, pq.Array(item.SelectedToppings), item.Note, item.CreatedAt,
	).Scan(&item.ID)
	if err != nil {
		return 0, wrapDBError(err, fmt.Sprintf("creating order item (product_id: %d)", item.ProductID))
	}
	return item.ID, nil
}

func (r *orderRepository) GetOrderItemsByOrderID(ctx context.Context, executor SQLExecutor, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	query := `SELECT id, order_id, product_id, quantity, unit_price, subtotal, selected_size,
	                 selected_toppings, note, created_at
	          FROM order_items
	          WHERE order_id = $1
	          ORDER BY id`

	rows, err := executor.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("querying order items for order ID %d", orderID))
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		var toppings pq.StringArray
		var size, note sql.NullString
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.Subtotal,
			&size, &toppings, &note, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scanning order item for order ID %d: %v", ErrDatabaseError, orderID, err)
		}
		if size.Valid {
			item.SelectedSize = &size.String
		}
		if note.Valid {
			item.Note = &note.String
		}
		if len(toppings) > 0 {
			item.SelectedToppings = []string(toppings)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating order item rows for order ID %d: %v", ErrDatabaseError, orderID, err)
	}
	return items, nil
}

func (r *orderRepository) DeleteOrderItemsByOrderID(ctx context.Context, executor SQLExecutor, orderID int64) (int64, error) {
	result, err := executor.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return 0, wrapDBError(err, fmt.Sprintf("deleting order items for order ID %d", orderID))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: getting rows affected for deleting order items for order ID %d: %v", ErrDatabaseError, orderID, err)
	}
	return rowsAffected, nil
}
