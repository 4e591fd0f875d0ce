package repositories

import (
	"context"
	"fmt"

	"cafe_pos_backend/internal/models"

	"github.com/lib/pq"
)

// RecipeRepository exposes the product to ingredient recipe table.
type RecipeRepository interface {
	GetRecipesForProducts(ctx context.Context, executor SQLExecutor, productIDs []int64) ([]models.Recipe, error)
}

type recipeRepository struct{}

// NewRecipeRepository creates a new instance of RecipeRepository.
func NewRecipeRepository() RecipeRepository {
	return &recipeRepository{}
}

// GetRecipesForProducts returns every recipe line for the given products.
// The unit is the ingredient's stock unit.
func (r *recipeRepository) GetRecipesForProducts(ctx context.Context, executor SQLExecutor, productIDs []int64) ([]models.Recipe, error) {
	recipes := []models.Recipe{}
	if len(productIDs) == 0 {
		return recipes, nil
	}
	query := `SELECT r.product_id, r.ingredient_id, r.quantity_per_unit, i.unit
	          FROM recipes r
	          JOIN ingredients i ON i.id = r.ingredient_id
	          WHERE r.product_id = ANY($1)
	          ORDER BY r.product_id, r.ingredient_id`
	rows, err := executor.QueryContext(ctx, query, pq.Array(productIDs))
	if err != nil {
		return nil, wrapDBError(err, "querying recipes")
	}
	defer rows.Close()

	for rows.Next() {
		var rec models.Recipe
		if err := rows.Scan(&rec.ProductID, &rec.IngredientID, &rec.QuantityPerUnit, &rec.Unit); err != nil {
			return nil, fmt.Errorf("%w: scanning recipe: %v", ErrDatabaseError, err)
		}
		recipes = append(recipes, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating recipe rows: %v", ErrDatabaseError, err)
	}
	return recipes, nil
}
