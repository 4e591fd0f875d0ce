package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestStore_Key(t *testing.T) {
	s := NewStore(nil, time.Minute)
	require.Equal(t, "idem:POST /api/v1/orders:7:abc", s.Key("POST /api/v1/orders:7", "abc"))
}

func TestStore_SurfacesRedisErrors(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	defer rdb.Close()
	s := NewStore(rdb, time.Minute)

	seen, err := s.Seen(context.Background(), "idem:test")
	require.Error(t, err)
	require.False(t, seen)
	require.Error(t, s.Release(context.Background(), "idem:test"))
}
