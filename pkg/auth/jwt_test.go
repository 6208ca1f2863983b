package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "a-test-secret-that-is-long-enough-000"

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager(testSecret, "moroccoguide", time.Hour)

	token, err := m.GenerateAccessToken("user-1", "Youssef", "https://cdn.example/a.png", "MA")
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "Youssef", claims.Name)
	assert.Equal(t, "MA", claims.Country)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := NewJWTManager(testSecret, "moroccoguide", time.Hour)

	expired, err := NewJWTManager(testSecret, "moroccoguide", -time.Minute).GenerateAccessToken("u", "n", "", "")
	require.NoError(t, err)

	otherKey, err := NewJWTManager("another-secret-another-secret-0000", "moroccoguide", time.Hour).GenerateAccessToken("u", "n", "", "")
	require.NoError(t, err)

	otherIssuer, err := NewJWTManager(testSecret, "someone-else", time.Hour).GenerateAccessToken("u", "n", "", "")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:           "u",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "moroccoguide"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := map[string]string{
		"expired":      expired,
		"no expiry":    noExpiry,
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"alg none":     none,
		"garbage":      "not.a.token",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := m.ValidateAccessToken(token)
			assert.Error(t, err)
		})
	}
}

func TestJWTManager_SubjectFallback(t *testing.T) {
	m := NewJWTManager(testSecret, "", time.Hour)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Name: "Salma",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	claims, err := m.Validator()(token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.UserID)
	assert.Equal(t, "Salma", claims.Name)
}
