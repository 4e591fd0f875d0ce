package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cafe_pos_backend/internal/models"
	"cafe_pos_backend/internal/repositories"

	"github.com/shopspring/decimal"
)

// RecipeExpander turns product quantities into ingredient requirements.
type RecipeExpander struct {
	recipes repositories.RecipeRepository
}

// NewRecipeExpander creates a RecipeExpander over the recipe table.
func NewRecipeExpander(recipes repositories.RecipeRepository) *RecipeExpander {
	return &RecipeExpander{recipes: recipes}
}

// Expand loads the recipes for lines through executor and aggregates them.
func (e *RecipeExpander) Expand(ctx context.Context, executor repositories.SQLExecutor, lines []models.StockLine) ([]models.IngredientRequirement, error) {
	productIDs := make([]int64, 0, len(lines))
	seen := make(map[int64]bool, len(lines))
	for _, line := range lines {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			productIDs = append(productIDs, line.ProductID)
		}
	}
	if len(productIDs) == 0 {
		return nil, nil
	}

	recipes, err := e.recipes.GetRecipesForProducts(ctx, executor, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipes: %w", err)
	}
	return ExpandRecipes(recipes, lines), nil
}

// ExpandRecipes sums recipe quantity x line quantity per ingredient over all
// lines and rounds each total up to the ingredient's trackable precision.
// The result is ordered by ingredient id.
func ExpandRecipes(recipes []models.Recipe, lines []models.StockLine) []models.IngredientRequirement {
	byProduct := make(map[int64][]models.Recipe)
	for _, r := range recipes {
		byProduct[r.ProductID] = append(byProduct[r.ProductID], r)
	}

	totals := make(map[int64]decimal.Decimal)
	units := make(map[int64]string)
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		qty := decimal.NewFromInt(int64(line.Quantity))
		for _, r := range byProduct[line.ProductID] {
			totals[r.IngredientID] = totals[r.IngredientID].Add(r.QuantityPerUnit.Mul(qty))
			units[r.IngredientID] = r.Unit
		}
	}

	out := make([]models.IngredientRequirement, 0, len(totals))
	for id, total := range totals {
		rounded := RoundToTrackableUnit(total, units[id])
		if !rounded.IsPositive() {
			continue
		}
		out = append(out, models.IngredientRequirement{IngredientID: id, Quantity: rounded, Unit: units[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngredientID < out[j].IngredientID })
	return out
}

// RoundToTrackableUnit rounds away from zero to the smallest amount stock is
// tracked in: thousandths for kilograms and litres, whole units otherwise.
func RoundToTrackableUnit(qty decimal.Decimal, unit string) decimal.Decimal {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "kg", "l":
		return qty.RoundUp(3)
	default:
		return qty.RoundUp(0)
	}
}
