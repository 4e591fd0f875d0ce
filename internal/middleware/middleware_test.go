package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cafe_pos_backend/internal/models"
	"cafe_pos_backend/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func bearer(t *testing.T, secret []byte, userID int64, role string) string {
	t.Helper()
	token, err := utils.GenerateAccessToken(secret, userID, "alice", role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error utils.APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func protectedEngine(roles ...string) *gin.Engine {
	engine := gin.New()
	group := engine.Group("", AuthMiddleware(testSecret), RoleAuthMiddleware(roles...))
	group.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, ActorFromContext(c))
	})
	return engine
}

func TestAuthMiddleware(t *testing.T) {
	engine := protectedEngine(RoleAdmin, RoleStaff)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, utils.ErrCodeUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, utils.ErrCodeUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, utils.ErrCodeUnauthorized},
		{"foreign signature", bearer(t, []byte("other"), 7, RoleStaff), http.StatusUnauthorized, utils.ErrCodeUnauthorized},
		{"customer role", bearer(t, testSecret, 7, "Customer"), http.StatusForbidden, utils.ErrCodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)
			require.Equal(t, tt.status, w.Code)
			require.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestAuthMiddleware_QueryTokenOnlyOnWebSocketUpgrade(t *testing.T) {
	engine := protectedEngine(RoleAdmin, RoleStaff)
	token := strings.TrimPrefix(bearer(t, testSecret, 7, RoleStaff), "Bearer ")

	req := httptest.NewRequest(http.MethodGet, "/whoami?"+AccessTokenQuery+"="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/whoami?"+AccessTokenQuery+"="+token, nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/whoami?"+AccessTokenQuery+"=not-a-jwt", nil)
	req.Header.Set("Upgrade", "websocket")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_SetsActor(t *testing.T) {
	engine := protectedEngine(RoleAdmin, RoleStaff)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", bearer(t, testSecret, 7, "staff"))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var actor models.Actor
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &actor))
	require.Equal(t, int64(7), *actor.UserID)
	require.Equal(t, "alice", actor.Username)
}

func TestRoleAuthMiddleware_AdminOnly(t *testing.T) {
	engine := protectedEngine(RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", bearer(t, testSecret, 7, RoleStaff))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestActorFromContext_DefaultsToSystem(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	require.Equal(t, models.SystemActor, ActorFromContext(c))
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(utils.RequestIDKey)) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	require.Len(t, generated, 36)
	require.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "till-3-0001")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, "till-3-0001", w.Header().Get(RequestIDHeader))
}

type memKeyStore struct {
	keys     map[string]bool
	released []string
	err      error
}

func newMemKeyStore() *memKeyStore { return &memKeyStore{keys: map[string]bool{}} }

func (m *memKeyStore) Key(scope, clientKey string) string { return scope + "|" + clientKey }

func (m *memKeyStore) Seen(ctx context.Context, key string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return true, nil
	}
	m.keys[key] = true
	return false, nil
}

func (m *memKeyStore) Release(ctx context.Context, key string) error {
	delete(m.keys, key)
	m.released = append(m.released, key)
	return nil
}

func idempotentEngine(store KeyStore, status *int) *gin.Engine {
	engine := gin.New()
	engine.POST("/orders", Idempotency(store), func(c *gin.Context) {
		c.Status(*status)
	})
	return engine
}

func postWithKey(engine *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestIdempotency_RejectsRepeatedKey(t *testing.T) {
	store := newMemKeyStore()
	status := http.StatusCreated
	engine := idempotentEngine(store, &status)

	require.Equal(t, http.StatusCreated, postWithKey(engine, "k1").Code)
	w := postWithKey(engine, "k1")
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, utils.ErrCodeDuplicateRequest, errorCode(t, w))

	require.Equal(t, http.StatusCreated, postWithKey(engine, "k2").Code)
	require.Equal(t, http.StatusCreated, postWithKey(engine, "").Code)
	require.Equal(t, http.StatusCreated, postWithKey(engine, "").Code)
}

func TestIdempotency_ReleasesKeyAfterServerError(t *testing.T) {
	store := newMemKeyStore()
	status := http.StatusInternalServerError
	engine := idempotentEngine(store, &status)

	require.Equal(t, http.StatusInternalServerError, postWithKey(engine, "k1").Code)
	require.Len(t, store.released, 1)

	status = http.StatusCreated
	require.Equal(t, http.StatusCreated, postWithKey(engine, "k1").Code)
}

func TestIdempotency_FailsOpen(t *testing.T) {
	status := http.StatusCreated
	engine := idempotentEngine(&memKeyStore{err: errors.New("redis down")}, &status)
	require.Equal(t, http.StatusCreated, postWithKey(engine, "k1").Code)
	require.Equal(t, http.StatusCreated, postWithKey(engine, "k1").Code)

	engine = idempotentEngine(nil, &status)
	require.Equal(t, http.StatusCreated, postWithKey(engine, "k1").Code)
}
