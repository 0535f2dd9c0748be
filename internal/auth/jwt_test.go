package auth

import (
	"testing"
	"time"

	"bmr/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWT() *config.JWTConfig {
	return &config.JWTConfig{AccessSecret: "s3cret", AccessExpiry: time.Minute, Issuer: "bmr"}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := testJWT()
	tok, err := GenerateAccessToken(cfg, 42, "a@example.com", true, "Management")
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, tok)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.True(t, claims.IsStaff)
	assert.Equal(t, []string{"Management"}, claims.Groups)
}

func TestParseAccessTokenRejects(t *testing.T) {
	cfg := testJWT()
	tok, err := GenerateAccessToken(cfg, 1, "a@example.com", false)
	require.NoError(t, err)

	other := testJWT()
	other.AccessSecret = "different"
	_, err = ParseAccessToken(other, tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := testJWT()
	expired.AccessExpiry = -time.Minute
	old, err := GenerateAccessToken(expired, 1, "a@example.com", false)
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, old)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAccessToken(cfg, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
