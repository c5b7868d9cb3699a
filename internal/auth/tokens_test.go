package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = strings.Repeat("s", 32)

func TestAdminTokenRoundTrip(t *testing.T) {
	token, err := IssueAdminToken(secret, "ops", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateAdminToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestAdminTokenRejected(t *testing.T) {
	_, err := IssueAdminToken("short", "ops", time.Hour)
	assert.Error(t, err)

	expired, err := IssueAdminToken(secret, "ops", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateAdminToken(secret, expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := IssueAdminToken(strings.Repeat("x", 32), "ops", time.Hour)
	require.NoError(t, err)
	_, err = ValidateAdminToken(secret, other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	visitor := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "visitor",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer},
	})
	signed, err := visitor.SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = ValidateAdminToken(secret, signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromHeader("Bearer abc"))
	assert.Equal(t, "", ExtractTokenFromHeader("Basic abc"))
	assert.Equal(t, "", ExtractTokenFromHeader(""))
}
