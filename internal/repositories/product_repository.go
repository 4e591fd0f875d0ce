package repositories

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ProductRepository reads the menu.
type ProductRepository interface {
	GetMenuPrices(ctx context.Context, executor SQLExecutor, productIDs []int64) (map[int64]decimal.Decimal, error) // Active products only
}

type productRepository struct{}

// NewProductRepository creates a new instance of ProductRepository.
func NewProductRepository() ProductRepository {
	return &productRepository{}
}

func (r *productRepository) GetMenuPrices(ctx context.Context, executor SQLExecutor, productIDs []int64) (map[int64]decimal.Decimal, error) {
	prices := make(map[int64]decimal.Decimal, len(productIDs))
	if len(productIDs) == 0 {
		return prices, nil
	}
	query := `SELECT id, price FROM products WHERE id = ANY($1) AND is_active = TRUE`
	rows, err := executor.QueryContext(ctx, query, pq.Array(productIDs))
	if err != nil {
		return nil, wrapDBError(err, "querying menu prices")
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var price decimal.Decimal
		if err := rows.Scan(&id, &price); err != nil {
			return nil, fmt.Errorf("%w: scanning menu price: %v", ErrDatabaseError, err)
		}
		prices[id] = price
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating menu price rows: %v", ErrDatabaseError, err)
	}
	return prices, nil
}
