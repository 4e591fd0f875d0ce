package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MembershipLevel is the customer tier derived from loyalty points.
type MembershipLevel string

const (
	MembershipBronze   MembershipLevel = "BRONZE"
	MembershipSilver   MembershipLevel = "SILVER"
	MembershipGold     MembershipLevel = "GOLD"
	MembershipPlatinum MembershipLevel = "PLATINUM"
)

// LoyaltyTransactionType classifies loyalty ledger rows.
type LoyaltyTransactionType string

const (
	LoyaltyEarn       LoyaltyTransactionType = "EARN"
	LoyaltyAdjustment LoyaltyTransactionType = "ADJUSTMENT"
)

// Customer represents a cafe customer identified by phone number.
type Customer struct {
	ID              int64           `json:"id" db:"id"`
	Name            *string         `json:"name,omitempty" db:"name"`
	Phone           string          `json:"phone" db:"phone"`
	LoyaltyPoints   int             `json:"loyalty_points" db:"loyalty_points"`
	MembershipLevel MembershipLevel `json:"membership_level" db:"membership_level"`
	TotalSpent      decimal.Decimal `json:"total_spent" db:"total_spent"`
	LastVisitAt     *time.Time      `json:"last_visit_at,omitempty" db:"last_visit_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// LoyaltyTransaction is an append-only loyalty ledger row.
type LoyaltyTransaction struct {
	ID         int64                  `json:"id" db:"id"`
	CustomerID int64                  `json:"customer_id" db:"customer_id"`
	OrderID    *int64                 `json:"order_id,omitempty" db:"order_id"`
	Type       LoyaltyTransactionType `json:"type" db:"type"`
	Points     int                    `json:"points" db:"points"`
	Reason     string                 `json:"reason" db:"reason"`
	CreatedBy  *int64                 `json:"created_by,omitempty" db:"created_by"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}
