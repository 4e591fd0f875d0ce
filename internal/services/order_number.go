package services

import (
	"context"
	"fmt"
	"time"

	"cafe_pos_backend/internal/repositories"
	"cafe_pos_backend/pkg/utils"
)

const (
	orderNumberAttempts = 10
	orderNumberPrefix   = "ORD-"
)

// formatOrderNumber keeps the six least significant digits of the epoch millis.
func formatOrderNumber(t time.Time) string {
	return fmt.Sprintf("%s%06d", orderNumberPrefix, t.UnixMilli()%1_000_000)
}

// nextOrderNumber generates an order number that is unused as seen by
// executor. Exhausting the attempts is fatal for the request.
func nextOrderNumber(ctx context.Context, deps Deps, executor repositories.SQLExecutor) (string, error) {
	var last string
	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		candidate := formatOrderNumber(deps.Clock())
		last = candidate
		exists, err := deps.Orders.OrderNumberExists(ctx, executor, candidate)
		if err != nil {
			return "", translateRepoError(err, "order", 0)
		}
		if !exists {
			return candidate, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		deps.Sleep(time.Millisecond)
	}
	utils.LogError(ErrOrderNumberExhausted, "Order number generation exhausted", map[string]interface{}{
		"attempts":       orderNumberAttempts,
		"last_candidate": last,
	})
	return "", ErrOrderNumberExhausted
}
