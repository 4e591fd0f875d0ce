package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"cafe_pos_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// KeyStore is implemented by idempotency.Store.
type KeyStore interface {
	Key(scope, clientKey string) string
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Idempotency rejects a repeated Idempotency-Key on the same route and caller.
// Requests without the header pass through, as does everything when store is
// nil. Store failures are logged and the request is let through. A key whose
// request failed with a server error is released so it can be retried.
func Idempotency(store KeyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
		if store == nil || clientKey == "" {
			c.Next()
			return
		}

		caller := "public"
		if actor := ActorFromContext(c); actor.UserID != nil {
			caller = fmt.Sprint(*actor.UserID)
		}
		key := store.Key(c.Request.Method+" "+c.FullPath()+":"+caller, clientKey)

		seen, err := store.Seen(c.Request.Context(), key)
		if err != nil {
			utils.LogWarn(err, "Idempotency store unavailable, request not deduplicated", map[string]interface{}{"request_id": c.GetString(utils.RequestIDKey)})
			c.Next()
			return
		}
		if seen {
			utils.RespondWithError(c, utils.NewAPIError(http.StatusConflict, utils.ErrCodeDuplicateRequest,
				"A request with this Idempotency-Key was already processed", clientKey))
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			if err := store.Release(context.WithoutCancel(c.Request.Context()), key); err != nil {
				utils.LogWarn(err, "Failed to release idempotency key")
			}
		}
	}
}
