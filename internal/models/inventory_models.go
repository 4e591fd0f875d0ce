package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockTransactionType classifies ledger rows.
type StockTransactionType string

const (
	StockTransactionSale       StockTransactionType = "SALE"
	StockTransactionPurchase   StockTransactionType = "PURCHASE"
	StockTransactionAdjustment StockTransactionType = "ADJUSTMENT"
	StockTransactionReturn     StockTransactionType = "RETURN"
)

// StockAlertType classifies stock alerts.
type StockAlertType string

const (
	StockAlertLow        StockAlertType = "LOW_STOCK"
	StockAlertOutOfStock StockAlertType = "OUT_OF_STOCK"
)

// StockTargetKind tells whether a stock row belongs to a product or an ingredient.
type StockTargetKind string

const (
	StockTargetProduct    StockTargetKind = "PRODUCT"
	StockTargetIngredient StockTargetKind = "INGREDIENT"
)

// Stock is the tracked quantity of a sellable product.
type Stock struct {
	ID          int64     `json:"id" db:"id"`
	ProductID   int64     `json:"product_id" db:"product_id"`
	Quantity    int       `json:"quantity" db:"quantity"`
	MinStock    int       `json:"min_stock" db:"min_stock"`
	MaxStock    *int      `json:"max_stock,omitempty" db:"max_stock"`
	Unit        string    `json:"unit" db:"unit"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// IngredientStock is the tracked quantity of a raw ingredient.
type IngredientStock struct {
	ID           int64            `json:"id" db:"id"`
	IngredientID int64            `json:"ingredient_id" db:"ingredient_id"`
	Quantity     decimal.Decimal  `json:"quantity" db:"quantity"`
	MinStock     decimal.Decimal  `json:"min_stock" db:"min_stock"`
	MaxStock     *decimal.Decimal `json:"max_stock,omitempty" db:"max_stock"`
	Unit         string           `json:"unit" db:"unit"`
	IsActive     bool             `json:"is_active" db:"is_active"`
	LastUpdated  time.Time        `json:"last_updated" db:"last_updated"`
}

// StockTransaction is an append-only ledger row. Exactly one of ProductID and
// IngredientID is set. Quantity is always positive; Type gives the direction.
type StockTransaction struct {
	ID           int64                `json:"id" db:"id"`
	ProductID    *int64               `json:"product_id,omitempty" db:"product_id"`
	IngredientID *int64               `json:"ingredient_id,omitempty" db:"ingredient_id"`
	OrderID      *int64               `json:"order_id,omitempty" db:"order_id"`
	Type         StockTransactionType `json:"type" db:"type"`
	Quantity     decimal.Decimal      `json:"quantity" db:"quantity"`
	Reason       string               `json:"reason" db:"reason"`
	CreatedBy    *int64               `json:"created_by,omitempty" db:"created_by"`
	CreatedAt    time.Time            `json:"created_at" db:"created_at"`
}

// StockAlert is raised when a stock row drops to or below its minimum.
type StockAlert struct {
	ID           int64           `json:"id" db:"id"`
	ProductID    *int64          `json:"product_id,omitempty" db:"product_id"`
	IngredientID *int64          `json:"ingredient_id,omitempty" db:"ingredient_id"`
	AlertType    StockAlertType  `json:"alert_type" db:"alert_type"`
	Quantity     decimal.Decimal `json:"quantity" db:"quantity"`
	MinStock     decimal.Decimal `json:"min_stock" db:"min_stock"`
	IsRead       bool            `json:"is_read" db:"is_read"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Recipe is one ingredient requirement for a single unit of a product.
type Recipe struct {
	ProductID       int64           `json:"product_id" db:"product_id"`
	IngredientID    int64           `json:"ingredient_id" db:"ingredient_id"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit" db:"quantity_per_unit"`
	Unit            string          `json:"unit" db:"unit"`
}

// StockLine is a (product, quantity) pair fed to the inventory ledger.
type StockLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// IngredientRequirement is an expanded, rounded ingredient delta.
type IngredientRequirement struct {
	IngredientID int64           `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
}

// StockUpdate describes a committed quantity change, used for post-commit alerting.
type StockUpdate struct {
	Target      StockTargetKind `json:"target"`
	ID          int64           `json:"id"`
	OldQuantity decimal.Decimal `json:"old_quantity"`
	NewQuantity decimal.Decimal `json:"new_quantity"`
	MinStock    decimal.Decimal `json:"min_stock"`
}
