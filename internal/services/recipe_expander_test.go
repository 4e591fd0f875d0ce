package services

import (
	"testing"

	"cafe_pos_backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRoundToTrackableUnit(t *testing.T) {
	tests := []struct {
		qty  string
		unit string
		want string
	}{
		{"0.0375", "kg", "0.038"},
		{"0.038", "KG", "0.038"},
		{"1.0001", "l", "1.001"},
		{"37.5", "g", "38"},
		{"12.01", "ml", "13"},
		{"2", "pcs", "2"},
		{"0.2", "", "1"},
	}
	for _, tt := range tests {
		got := RoundToTrackableUnit(decimal.RequireFromString(tt.qty), tt.unit)
		require.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%s %s: got %s", tt.qty, tt.unit, got)
	}
}

func TestExpandRecipes(t *testing.T) {
	recipes := []models.Recipe{
		{ProductID: 1, IngredientID: 20, QuantityPerUnit: decimal.RequireFromString("18"), Unit: "g"},
		{ProductID: 1, IngredientID: 10, QuantityPerUnit: decimal.RequireFromString("0.15"), Unit: "l"},
		{ProductID: 2, IngredientID: 10, QuantityPerUnit: decimal.RequireFromString("0.2"), Unit: "l"},
		{ProductID: 3, IngredientID: 30, QuantityPerUnit: decimal.Zero, Unit: "pcs"},
	}
	lines := []models.StockLine{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
		{ProductID: 3, Quantity: 4},
		{ProductID: 9, Quantity: 1},
	}

	reqs := ExpandRecipes(recipes, lines)
	require.Len(t, reqs, 2)
	require.Equal(t, int64(10), reqs[0].IngredientID)
	require.True(t, reqs[0].Quantity.Equal(decimal.RequireFromString("0.5")), "got %s", reqs[0].Quantity)
	require.Equal(t, "l", reqs[0].Unit)
	require.Equal(t, int64(20), reqs[1].IngredientID)
	require.True(t, reqs[1].Quantity.Equal(decimal.NewFromInt(36)))
}

func TestExpandRecipes_RoundsTheSumNotEachLine(t *testing.T) {
	recipes := []models.Recipe{{ProductID: 1, IngredientID: 10, QuantityPerUnit: decimal.RequireFromString("0.4"), Unit: "g"}}

	reqs := ExpandRecipes(recipes, []models.StockLine{{ProductID: 1, Quantity: 1}, {ProductID: 1, Quantity: 1}})
	require.Len(t, reqs, 1)
	require.True(t, reqs[0].Quantity.Equal(decimal.NewFromInt(1)), "got %s", reqs[0].Quantity)
}
