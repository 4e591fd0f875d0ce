package services

import (
	"context"
	"fmt"
	"strings"

	"cafe_pos_backend/internal/models"
	"cafe_pos_backend/internal/repositories"

	"github.com/shopspring/decimal"
)

// Membership tier thresholds in loyalty points.
const (
	silverThreshold   = 500
	goldThreshold     = 2000
	platinumThreshold = 5000
)

// pointsUnit is the spend that earns one loyalty point.
var pointsUnit = decimal.NewFromInt(1000)

// MembershipLevelFor derives the tier from a point balance.
func MembershipLevelFor(points int) models.MembershipLevel {
	switch {
	case points >= platinumThreshold:
		return models.MembershipPlatinum
	case points >= goldThreshold:
		return models.MembershipGold
	case points >= silverThreshold:
		return models.MembershipSilver
	default:
		return models.MembershipBronze
	}
}

// PointsFor returns floor(total / 1000), never negative.
func PointsFor(total decimal.Decimal) int {
	if !total.IsPositive() {
		return 0
	}
	return int(total.Div(pointsUnit).Floor().IntPart())
}

// LoyaltyService is the customer and loyalty ledger.
type LoyaltyService interface {
	GetCustomer(ctx context.Context, customerID int64) (*models.Customer, error)
	AdjustPoints(ctx context.Context, customerID int64, delta int, reason string, actor models.Actor) (*models.Customer, error)
}

type loyaltyService struct {
	deps Deps
}

// NewLoyaltyService creates the customer and loyalty ledger service.
func NewLoyaltyService(deps Deps) LoyaltyService {
	return newLoyaltyService(deps.withDefaults())
}

func newLoyaltyService(deps Deps) *loyaltyService {
	return &loyaltyService{deps: deps}
}

func (s *loyaltyService) GetCustomer(ctx context.Context, customerID int64) (*models.Customer, error) {
	customer, err := s.deps.Customers.GetCustomerByID(ctx, s.deps.Transactor.Executor(), customerID)
	if err != nil {
		return nil, translateRepoError(err, "customer", customerID)
	}
	return customer, nil
}

// resolveCustomer finds or creates the customer owning phone.
func (s *loyaltyService) resolveCustomer(ctx context.Context, executor repositories.SQLExecutor, phone string, name *string) (*models.Customer, error) {
	customer, err := s.deps.Customers.EnsureCustomerByPhone(ctx, executor, phone, name)
	if err != nil {
		return nil, translateRepoError(err, "customer", 0)
	}
	return customer, nil
}

// creditForCompletedOrder credits loyalty for a completed, paid order with a
// linked customer, at most once per order. It returns the EARN transaction
// or nil when nothing was written.
func (s *loyaltyService) creditForCompletedOrder(ctx context.Context, executor repositories.SQLExecutor, order *models.Order, actor models.Actor) (*models.LoyaltyTransaction, error) {
	if order.PaymentStatus != models.PaymentStatusSuccess || order.CustomerID == nil {
		return nil, nil
	}
	credited, err := s.deps.Customers.HasEarnTransaction(ctx, executor, order.ID)
	if err != nil {
		return nil, translateRepoError(err, "loyalty transaction", order.ID)
	}
	if credited {
		return nil, nil
	}

	customer, err := s.deps.Customers.GetCustomerByIDForUpdate(ctx, executor, *order.CustomerID)
	if err != nil {
		return nil, translateRepoError(err, "customer", *order.CustomerID)
	}
	earned := PointsFor(order.TotalAmount)
	now := s.deps.Clock()
	customer.TotalSpent = customer.TotalSpent.Add(order.TotalAmount)
	customer.LoyaltyPoints += earned
	customer.MembershipLevel = MembershipLevelFor(customer.LoyaltyPoints)
	customer.LastVisitAt = &now
	if err := s.deps.Customers.UpdateLoyalty(ctx, executor, customer); err != nil {
		return nil, translateRepoError(err, "customer", customer.ID)
	}
	if earned <= 0 {
		return nil, nil
	}

	orderID := order.ID
	txn := &models.LoyaltyTransaction{
		CustomerID: customer.ID,
		OrderID:    &orderID,
		Type:       models.LoyaltyEarn,
		Points:     earned,
		Reason:     fmt.Sprintf("Earned for order %s", order.OrderNumber),
		CreatedBy:  actor.UserID,
	}
	if _, err := s.deps.Customers.CreateLoyaltyTransaction(ctx, executor, txn); err != nil {
		return nil, translateRepoError(err, "loyalty transaction", order.ID)
	}
	return txn, nil
}

// AdjustPoints applies a manual, non-zero point delta that must not leave the
// balance negative.
func (s *loyaltyService) AdjustPoints(ctx context.Context, customerID int64, delta int, reason string, actor models.Actor) (*models.Customer, error) {
	if delta == 0 {
		return nil, &ValidationError{Field: "points", Expected: "non-zero", Actual: "0", Message: "adjustment must change the balance"}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newValidationError("reason", "reason is required")
	}

	var customer *models.Customer
	err := s.deps.Transactor.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		var err error
		customer, err = s.deps.Customers.GetCustomerByIDForUpdate(ctx, tx, customerID)
		if err != nil {
			return translateRepoError(err, "customer", customerID)
		}
		newBalance := customer.LoyaltyPoints + delta
		if newBalance < 0 {
			return &ValidationError{
				Field:    "points",
				Expected: fmt.Sprintf(">= %d", -customer.LoyaltyPoints),
				Actual:   fmt.Sprint(delta),
				Message:  "adjustment would make the balance negative",
			}
		}
		customer.LoyaltyPoints = newBalance
		customer.MembershipLevel = MembershipLevelFor(newBalance)
		if err := s.deps.Customers.UpdateLoyalty(ctx, tx, customer); err != nil {
			return translateRepoError(err, "customer", customerID)
		}
		_, err = s.deps.Customers.CreateLoyaltyTransaction(ctx, tx, &models.LoyaltyTransaction{
			CustomerID: customerID,
			Type:       models.LoyaltyAdjustment,
			Points:     delta,
			Reason:     reason,
			CreatedBy:  actor.UserID,
		})
		return translateRepoError(err, "loyalty transaction", 0)
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}
