package services

import (
	"errors"
	"fmt"
	"strings"

	"cafe_pos_backend/internal/models"
	"cafe_pos_backend/internal/repositories"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrOrderNumberExhausted = errors.New("could not generate a unique order number")
	ErrConflict             = errors.New("concurrent modification conflict, retry the request")
)

// ValidationError reports input that is malformed or violates a business rule.
// Expected and Actual carry the offending values when the rule compares two.
type ValidationError struct {
	Field    string `json:"field,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Message  string `json:"message"`
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	if e.Field != "" {
		b.WriteString(": " + e.Field)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&b, " (expected %s, got %s)", e.Expected, e.Actual)
	}
	return b.String()
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvalidTransitionError names the current state, the requested one and what
// the current state allows.
type InvalidTransitionError struct {
	OrderID int64                `json:"order_id"`
	From    models.OrderStatus   `json:"from"`
	To      models.OrderStatus   `json:"to"`
	Allowed []models.OrderStatus `json:"allowed"`
}

func (e *InvalidTransitionError) Error() string {
	allowed := make([]string, 0, len(e.Allowed))
	for _, s := range e.Allowed {
		allowed = append(allowed, string(s))
	}
	return fmt.Sprintf("invalid status transition for order %d: %s -> %s (allowed: [%s])",
		e.OrderID, e.From, e.To, strings.Join(allowed, ", "))
}

// Is matches both ErrInvalidTransition and ErrValidation.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition || target == ErrValidation
}

// InsufficientStockError names the first product that cannot be served.
type InsufficientStockError struct {
	ProductID int64 `json:"product_id"`
	Available int   `json:"available"`
	Requested int   `json:"requested"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: available %d, requested %d", e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string `json:"entity"`
	ID     int64  `json:"id"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// translateRepoError maps repository sentinels onto service errors. entity and
// id are used when the repository reports a missing row.
func translateRepoError(err error, entity string, id int64) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return &NotFoundError{Entity: entity, ID: id}
	case errors.Is(err, repositories.ErrConflict), errors.Is(err, repositories.ErrDuplicateKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}
