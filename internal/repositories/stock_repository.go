package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cafe_pos_backend/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// StockRepository defines the database operations of the inventory ledger.
type StockRepository interface {
	// Product stock
	LockProductStocks(ctx context.Context, executor SQLExecutor, productIDs []int64) ([]models.Stock, error) // Only tracked (active) rows, ordered by product_id
	DecrementProductStock(ctx context.Context, executor SQLExecutor, productID int64, quantity int) (*models.Stock, error)
	IncrementProductStock(ctx context.Context, executor SQLExecutor, productID int64, quantity int) (*models.Stock, error)

	// Ingredient stock
	LockIngredientStocks(ctx context.Context, executor SQLExecutor, ingredientIDs []int64) ([]models.IngredientStock, error)
	DecrementIngredientStock(ctx context.Context, executor SQLExecutor, ingredientID int64, quantity decimal.Decimal) (*models.IngredientStock, error) // Clamped at zero
	IncrementIngredientStock(ctx context.Context, executor SQLExecutor, ingredientID int64, quantity decimal.Decimal) (*models.IngredientStock, error)

	// Ledger
	HasSaleTransaction(ctx context.Context, executor SQLExecutor, orderID int64, target models.StockTargetKind, targetID int64) (bool, error)
	CreateTransaction(ctx context.Context, executor SQLExecutor, txn *models.StockTransaction) (int64, error)
	GetTransactionsByOrderID(ctx context.Context, executor SQLExecutor, orderID int64, types ...models.StockTransactionType) ([]models.StockTransaction, error) // All types when none are given

	// Alerts
	HasUnreadAlert(ctx context.Context, executor SQLExecutor, target models.StockTargetKind, targetID int64, alertType models.StockAlertType) (bool, error)
	CreateAlert(ctx context.Context, executor SQLExecutor, alert *models.StockAlert) (int64, error)
	GetUnreadAlerts(ctx context.Context, executor SQLExecutor) ([]models.StockAlert, error)
	MarkAlertRead(ctx context.Context, executor SQLExecutor, alertID int64) error
}

type stockRepository struct{}

// NewStockRepository creates a new instance of StockRepository.
func NewStockRepository() StockRepository {
	return &stockRepository{}
}

const stockColumns = `id, product_id, quantity, min_stock, max_stock, unit, is_active, last_updated`
const ingredientStockColumns = `id, ingredient_id, quantity, min_stock, max_stock, unit, is_active, last_updated`

func scanStock(row scanner) (*models.Stock, error) {
	s := &models.Stock{}
	if err := row.Scan(&s.ID, &s.ProductID, &s.Quantity, &s.MinStock, &s.MaxStock, &s.Unit, &s.IsActive, &s.LastUpdated); err != nil {
		return nil, err
	}
	return s, nil
}

func scanIngredientStock(row scanner) (*models.IngredientStock, error) {
	s := &models.IngredientStock{}
	var maxStock decimal.NullDecimal
	if err := row.Scan(&s.ID, &s.IngredientID, &s.Quantity, &s.MinStock, &maxStock, &s.Unit, &s.IsActive, &s.LastUpdated); err != nil {
		return nil, err
	}
	if maxStock.Valid {
		s.MaxStock = &maxStock.Decimal
	}
	return s, nil
}

// --- Product Stock ---

// LockProductStocks takes row locks in product_id order so that concurrent
// reservations over overlapping products cannot deadlock each other.
func (r *stockRepository) LockProductStocks(ctx context.Context, executor SQLExecutor, productIDs []int64) ([]models.Stock, error) {
	stocks := []models.Stock{}
	if len(productIDs) == 0 {
		return stocks, nil
	}
	query := `SELECT ` + stockColumns + ` FROM stocks
	          WHERE product_id = ANY($1) AND is_active = TRUE
	          ORDER BY product_id
	          FOR UPDATE`
	rows, err := executor.QueryContext(ctx, query, pq.Array(productIDs))
	if err != nil {
		return nil, wrapDBError(err, "locking product stocks")
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning product stock: %v", ErrDatabaseError, err)
		}
		stocks = append(stocks, *s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating product stock rows: %v", ErrDatabaseError, err)
	}
	return stocks, nil
}

// DecrementProductStock never lets quantity go negative: the update only
// matches while enough stock remains, otherwise ErrStockGuard is returned.
func (r *stockRepository) DecrementProductStock(ctx context.Context, executor SQLExecutor, productID int64, quantity int) (*models.Stock, error) {
	query := `UPDATE stocks
	          SET quantity = quantity - $1, last_updated = $2
	          WHERE product_id = $3 AND is_active = TRUE AND quantity >= $1
	          RETURNING ` + stockColumns
	s, err := scanStock(executor.QueryRowContext(ctx, query, quantity, time.Now(), productID))
	if err != nil {
		err = wrapDBError(err, fmt.Sprintf("decrementing stock for product ID %d", productID))
		if errors.Is(err, ErrNotFound) {
			return nil, ErrStockGuard
		}
		return nil, err
	}
	return s, nil
}

func (r *stockRepository) IncrementProductStock(ctx context.Context, executor SQLExecutor, productID int64, quantity int) (*models.Stock, error) {
	query := `UPDATE stocks
	          SET quantity = quantity + $1, last_updated = $2
	          WHERE product_id = $3
	          RETURNING ` + stockColumns
	s, err := scanStock(executor.QueryRowContext(ctx, query, quantity, time.Now(), productID))
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("incrementing stock for product ID %d", productID))
	}
	return s, nil
}

// --- Ingredient Stock ---

func (r *stockRepository) LockIngredientStocks(ctx context.Context, executor SQLExecutor, ingredientIDs []int64) ([]models.IngredientStock, error) {
	stocks := []models.IngredientStock{}
	if len(ingredientIDs) == 0 {
		return stocks, nil
	}
	query := `SELECT ` + ingredientStockColumns + ` FROM ingredient_stocks
	          WHERE ingredient_id = ANY($1) AND is_active = TRUE
	          ORDER BY ingredient_id
	          FOR UPDATE`
	rows, err := executor.QueryContext(ctx, query, pq.Array(ingredientIDs))
	if err != nil {
		return nil, wrapDBError(err, "locking ingredient stocks")
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanIngredientStock(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning ingredient stock: %v", ErrDatabaseError, err)
		}
		stocks = append(stocks, *s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating ingredient stock rows: %v", ErrDatabaseError, err)
	}
	return stocks, nil
}

func (r *stockRepository) DecrementIngredientStock(ctx context.Context, executor SQLExecutor, ingredientID int64, quantity decimal.Decimal) (*models.IngredientStock, error) {
	query := `UPDATE ingredient_stocks
	          SET quantity = GREATEST(quantity - $1, 0), last_updated = $2
	          WHERE ingredient_id = $3
	          RETURNING ` + ingredientStockColumns
	s, err := scanIngredientStock(executor.QueryRowContext(ctx, query, quantity, time.Now(), ingredientID))
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("decrementing stock for ingredient ID %d", ingredientID))
	}
	return s, nil
}

func (r *stockRepository) IncrementIngredientStock(ctx context.Context, executor SQLExecutor, ingredientID int64, quantity decimal.Decimal) (*models.IngredientStock, error) {
	query := `UPDATE ingredient_stocks
	          SET quantity = quantity + $1, last_updated = $2
	          WHERE ingredient_id = $3
	          RETURNING ` + ingredientStockColumns
	s, err := scanIngredientStock(executor.QueryRowContext(ctx, query, quantity, time.Now(), ingredientID))
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("incrementing stock for ingredient ID %d", ingredientID))
	}
	return s, nil
}

// --- Ledger ---

func targetColumn(target models.StockTargetKind) string {
	if target == models.StockTargetIngredient {
		return "ingredient_id"
	}
	return "product_id"
}

func (r *stockRepository) HasSaleTransaction(ctx context.Context, executor SQLExecutor, orderID int64, target models.StockTargetKind, targetID int64) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (
	            SELECT 1 FROM stock_transactions
	            WHERE order_id = $1 AND %s = $2 AND type = 'SALE'
	          )`, targetColumn(target))
	var exists bool
	if err := executor.QueryRowContext(ctx, query, orderID, targetID).Scan(&exists); err != nil {
		return false, wrapDBError(err, fmt.Sprintf("checking sale transaction for order ID %d", orderID))
	}
	return exists, nil
}

func (r *stockRepository) CreateTransaction(ctx context.Context, executor SQLExecutor, txn *models.StockTransaction) (int64, error) {
	query := `INSERT INTO stock_transactions
	            (product_id, ingredient_id, order_id, type, quantity, reason, created_by, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id`
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	err := executor.QueryRowContext(ctx, query,
		txn.ProductID, txn.IngredientID, txn.OrderID, txn.Type, txn.Quantity, txn.Reason, txn.CreatedBy, txn.CreatedAt,
	).Scan(&txn.ID)
	if err != nil {
		return 0, wrapDBError(err, "creating stock transaction")
	}
	return txn.ID, nil
}

func (r *stockRepository) GetTransactionsByOrderID(ctx context.Context, executor SQLExecutor, orderID int64, types ...models.StockTransactionType) ([]models.StockTransaction, error) {
	txns := []models.StockTransaction{}
	query := `SELECT id, product_id, ingredient_id, order_id, type, quantity, reason, created_by, created_at
	          FROM stock_transactions
	          WHERE order_id = $1 AND (cardinality($2::text[]) = 0 OR type = ANY($2))
	          ORDER BY id`
	rows, err := executor.QueryContext(ctx, query, orderID, pq.Array(transactionTypeNames(types)))
	if err != nil {
		return nil, wrapDBError(err, fmt.Sprintf("querying stock transactions for order ID %d", orderID))
	}
	defer rows.Close()

	for rows.Next() {
		var t models.StockTransaction
		if err := rows.Scan(&t.ID, &t.ProductID, &t.IngredientID, &t.OrderID, &t.Type, &t.Quantity, &t.Reason, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning stock transaction: %v", ErrDatabaseError, err)
		}
		txns = append(txns, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating stock transaction rows: %v", ErrDatabaseError, err)
	}
	return txns, nil
}

func transactionTypeNames(types []models.StockTransactionType) []string {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	return names
}

// --- Alerts ---

func (r *stockRepository) HasUnreadAlert(ctx context.Context, executor SQLExecutor, target models.StockTargetKind, targetID int64, alertType models.StockAlertType) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (
	            SELECT 1 FROM stock_alerts
	            WHERE %s = $1 AND alert_type = $2 AND is_read = FALSE
	          )`, targetColumn(target))
	var exists bool
	if err := executor.QueryRowContext(ctx, query, targetID, alertType).Scan(&exists); err != nil {
		return false, wrapDBError(err, "checking unread stock alert")
	}
	return exists, nil
}

func (r *stockRepository) CreateAlert(ctx context.Context, executor SQLExecutor, alert *models.StockAlert) (int64, error) {
	query := `INSERT INTO stock_alerts (product_id, ingredient_id, alert_type, quantity, min_stock, is_read, created_at)
	          VALUES ($1, $2, $3, $4, $5, FALSE, $6)
	          RETURNING id`
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	err := executor.QueryRowContext(ctx, query,
		alert.ProductID, alert.IngredientID, alert.AlertType, alert.Quantity, alert.MinStock, alert.CreatedAt,
	).Scan(&alert.ID)
	if err != nil {
		return 0, wrapDBError(err, "creating stock alert")
	}
	return alert.ID, nil
}

func (r *stockRepository) GetUnreadAlerts(ctx context.Context, executor SQLExecutor) ([]models.StockAlert, error) {
	alerts := []models.StockAlert{}
	query := `SELECT id, product_id, ingredient_id, alert_type, quantity, min_stock, is_read, created_at
	          FROM stock_alerts
	          WHERE is_read = FALSE
	          ORDER BY created_at DESC, id DESC`
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapDBError(err, "querying unread stock alerts")
	}
	defer rows.Close()

	for rows.Next() {
		var a models.StockAlert
		if err := rows.Scan(&a.ID, &a.ProductID, &a.IngredientID, &a.AlertType, &a.Quantity, &a.MinStock, &a.IsRead, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning stock alert: %v", ErrDatabaseError, err)
		}
		alerts = append(alerts, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating stock alert rows: %v", ErrDatabaseError, err)
	}
	return alerts, nil
}

func (r *stockRepository) MarkAlertRead(ctx context.Context, executor SQLExecutor, alertID int64) error {
	result, err := executor.ExecContext(ctx, `UPDATE stock_alerts SET is_read = TRUE WHERE id = $1`, alertID)
	if err != nil {
		return wrapDBError(err, fmt.Sprintf("marking stock alert ID %d as read", alertID))
	}
	return expectAffected(result, fmt.Sprintf("stock alert ID %d", alertID))
}
