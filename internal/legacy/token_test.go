package legacy

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenExpiry(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("unknown to the client"))
	require.NoError(t, err)

	assert.True(t, tokenExpiry(signed).Equal(exp))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).SignedString([]byte("k"))
	require.NoError(t, err)
	assert.True(t, tokenExpiry(noExp).IsZero())

	assert.True(t, tokenExpiry("opaque-session-id").IsZero())
}
