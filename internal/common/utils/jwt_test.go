// internal/common/utils/jwt_test.go

package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClaims() *JWTClaims {
	now := time.Now()
	return &JWTClaims{
		UserID:    42,
		Email:     "ada@example.com",
		Username:  "ada",
		Type:      "access",
		ExpiresAt: now.Add(time.Hour).Unix(),
		IssuedAt:  now.Unix(),
		NotBefore: now.Unix(),
		Issuer:    "printhive",
		Subject:   "42",
	}
}

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT(testClaims(), "secret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateJWT(token, "secret")
	require.NoError(t, err)

	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "ada", claims.Username)
	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, "printhive", claims.Issuer)
}

func TestValidateJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT(testClaims(), "secret")
	require.NoError(t, err)

	_, err = ValidateJWT(token, "other-secret")
	assert.Error(t, err)
}

func TestValidateJWTExpired(t *testing.T) {
	claims := testClaims()
	claims.ExpiresAt = time.Now().Add(-time.Hour).Unix()

	token, err := GenerateJWT(claims, "secret")
	require.NoError(t, err)

	_, err = ValidateJWT(token, "secret")
	assert.Error(t, err)
}

func TestValidateJWTGarbage(t *testing.T) {
	_, err := ValidateJWT("not.a.token", "secret")
	assert.Error(t, err)
}
