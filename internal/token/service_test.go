package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	s := New("test-key", "")

	tok, err := s.GenerateToken("ops", []string{RoleAdmin}, time.Hour)
	require.NoError(t, err)

	claims, err := s.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator)
	assert.Equal(t, DefaultIssuer, claims.Issuer)
	assert.True(t, claims.HasRole(RoleAdmin))
	assert.False(t, claims.HasRole("viewer"))
}

func TestValidateRejects(t *testing.T) {
	s := New("test-key", "order-notify")

	expired, err := s.GenerateToken("ops", []string{RoleAdmin}, -time.Minute)
	require.NoError(t, err)

	otherKey, err := New("other-key", "order-notify").GenerateToken("ops", []string{RoleAdmin}, time.Hour)
	require.NoError(t, err)

	otherIssuer, err := New("test-key", "someone-else").GenerateToken("ops", []string{RoleAdmin}, time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Operator: "ops"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"expired":      expired,
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"alg none":     none,
		"garbage":      "not.a.token",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := s.ValidateToken(tok)
			assert.Error(t, err)
		})
	}
}

func TestGenerateSigningKey(t *testing.T) {
	a, err := GenerateSigningKey()
	require.NoError(t, err)
	b, err := GenerateSigningKey()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
