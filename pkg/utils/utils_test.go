package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAppendNote(t *testing.T) {
	require.Nil(t, AppendNote(nil, "  "))
	require.Equal(t, "Cancelled: no show", *AppendNote(nil, " Cancelled: no show "))

	notes := "No sugar"
	require.Equal(t, "No sugar\nSplit from order ORD-000001", *AppendNote(&notes, "Split from order ORD-000001"))
}

func TestParseIDParam(t *testing.T) {
	id, ok := ParseIDParam("42")
	require.True(t, ok)
	require.Equal(t, int64(42), id)

	for _, s := range []string{"", "0", "-3", "abc", "1.5"} {
		_, ok := ParseIDParam(s)
		require.False(t, ok, s)
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	secret := []byte("s3cret")
	token, err := GenerateAccessToken(secret, 9, "bob", "Admin", time.Minute)
	require.NoError(t, err)

	claims, err := ValidateToken(secret, token)
	require.NoError(t, err)
	require.Equal(t, int64(9), claims.UserID)
	require.Equal(t, "Admin", claims.Role)

	_, err = ValidateToken([]byte("other"), token)
	require.Error(t, err)

	fallback, err := GenerateAccessToken(secret, 9, "bob", "Admin", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(secret, fallback)
	require.NoError(t, err, "non-positive ttl falls back to the default")

	_, err = GenerateAccessToken(nil, 9, "bob", "Admin", time.Minute)
	require.Error(t, err)
}
