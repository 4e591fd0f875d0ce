package services

import "cafe_pos_backend/internal/models"

// orderStatusTransitions lists the allowed targets per source status. Terminal
// statuses have no entry.
var orderStatusTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusCreating:  {models.OrderStatusPending, models.OrderStatusConfirmed, models.OrderStatusHold, models.OrderStatusCancelled},
	models.OrderStatusPending:   {models.OrderStatusConfirmed, models.OrderStatusHold, models.OrderStatusCancelled},
	models.OrderStatusHold:      {models.OrderStatusPending, models.OrderStatusConfirmed, models.OrderStatusCancelled},
	models.OrderStatusConfirmed: {models.OrderStatusPreparing, models.OrderStatusHold, models.OrderStatusCancelled},
	models.OrderStatusPreparing: {models.OrderStatusReady, models.OrderStatusCancelled},
	models.OrderStatusReady:     {models.OrderStatusCompleted, models.OrderStatusCancelled},
}

// AllowedTransitions returns the statuses reachable from status in one step.
func AllowedTransitions(status models.OrderStatus) []models.OrderStatus {
	allowed := orderStatusTransitions[status]
	out := make([]models.OrderStatus, len(allowed))
	copy(out, allowed)
	return out
}

// CanTransition reports whether from -> to is a legal single step. A
// transition to the current status is not a step and returns false.
func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range orderStatusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func validateTransition(orderID int64, from, to models.OrderStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return &InvalidTransitionError{OrderID: orderID, From: from, To: to, Allowed: AllowedTransitions(from)}
}

// initialStatusFor is PENDING for customer orders, which need staff
// verification, and CONFIRMED for staff orders.
func initialStatusFor(kind models.CreatorKind) models.OrderStatus {
	if kind == models.CreatorCustomer {
		return models.OrderStatusPending
	}
	return models.OrderStatusConfirmed
}

// hasDeductingHistory reports statuses that can only be reached after CONFIRMED.
func hasDeductingHistory(status models.OrderStatus) bool {
	switch status {
	case models.OrderStatusPreparing, models.OrderStatusReady, models.OrderStatusCompleted:
		return true
	}
	return false
}
