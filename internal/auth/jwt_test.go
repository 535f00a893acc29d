package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ti, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	token, err := ti.Issue("alice", RoleOperator)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."), "JWT из трёх частей")

	claims, err := ti.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Operator)
	assert.True(t, claims.CanControl())

	viewer, err := ti.Issue("bob", RoleViewer)
	require.NoError(t, err)
	claims, err = ti.Validate(viewer)
	require.NoError(t, err)
	assert.False(t, claims.CanControl())
}

func TestTokenIssuer_Rejects(t *testing.T) {
	ti, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	for _, bad := range []string{"", "invalid.token.here", "not.a.jwt"} {
		_, err := ti.Validate(bad)
		assert.ErrorIs(t, err, ErrInvalidToken, bad)
	}

	other, err := NewTokenIssuer("fedcba9876543210fedcba9876543210", time.Hour)
	require.NoError(t, err)
	foreign, err := other.Issue("mallory", RoleOperator)
	require.NoError(t, err)
	_, err = ti.Validate(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken, "чужой секрет")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Operator: "alice",
		Role:     RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = ti.Validate(signed)
	assert.ErrorIs(t, err, ErrInvalidToken, "истёкший токен")
}

func TestNewTokenIssuer_Secrets(t *testing.T) {
	_, err := NewTokenIssuer("too-short", time.Hour)
	assert.ErrorIs(t, err, ErrShortSecret)

	random, err := NewTokenIssuer("", 0)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, random.ttl)
	assert.Len(t, random.secret, MinSecretLen)

	s1, err := GenerateSecureSecret()
	require.NoError(t, err)
	s2, err := GenerateSecureSecret()
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)
	assert.GreaterOrEqual(t, len(s1), 40)
}
