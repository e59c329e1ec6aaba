package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing"

func init() {
	SetJWTSecret(testSecret)
}

func TestGenerateToken_RoundTrip(t *testing.T) {
	token, err := GenerateToken(42, "firstadmin", "admin", 24)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "firstadmin", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "42", claims.Subject)
}

func TestGenerateToken_Expiration(t *testing.T) {
	token, err := GenerateToken(1, "user", "user", 1)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestParseToken_Rejects(t *testing.T) {
	for _, token := range []string{
		"",
		"invalid",
		"not.a.token",
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature",
	} {
		_, err := ParseToken(token)
		assert.Error(t, err, "token %q", token)
	}
}

func TestParseToken_RejectsUnsignedToken(t *testing.T) {
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1, Role: "admin"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken(unsigned)
	assert.Error(t, err)
}

func TestParseToken_RejectsExpiredToken(t *testing.T) {
	token, err := GenerateToken(1, "user", "user", -1)
	require.NoError(t, err)

	_, err = ParseToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseToken_WrongSecret(t *testing.T) {
	t.Cleanup(func() { SetJWTSecret(testSecret) })

	SetJWTSecret("original-secret")
	token, err := GenerateToken(1, "user", "admin", 24)
	require.NoError(t, err)

	SetJWTSecret("different-secret")
	_, err = ParseToken(token)
	assert.Error(t, err)
}
