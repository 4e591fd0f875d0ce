package repositories

import (
	"testing"

	"cafe_pos_backend/internal/models"

	"github.com/stretchr/testify/require"
)

func TestTargetColumn(t *testing.T) {
	require.Equal(t, "ingredient_id", targetColumn(models.StockTargetIngredient))
	require.Equal(t, "product_id", targetColumn(models.StockTargetProduct))
}

func TestTransactionTypeNames(t *testing.T) {
	require.Empty(t, transactionTypeNames(nil))
	require.Equal(t, []string{"SALE", "RETURN"},
		transactionTypeNames([]models.StockTransactionType{models.StockTransactionSale, models.StockTransactionReturn}))
}
