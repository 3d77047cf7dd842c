package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintAndParseIdentityToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "identity"}
	token, err := MintIdentityToken(cfg, time.Now(), "user-42", time.Hour)
	require.NoError(t, err)

	claims, err := ParseIdentityToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Identifier())
	assert.Equal(t, "identity", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestParseIdentityTokenRejectsWrongSecretAndIssuer(t *testing.T) {
	token, err := MintIdentityToken(config.JWTConfig{Secret: "secret", Issuer: "identity"}, time.Now(), "u1", time.Hour)
	require.NoError(t, err)

	_, err = ParseIdentityToken(config.JWTConfig{Secret: "other"}, token)
	require.Error(t, err)

	_, err = ParseIdentityToken(config.JWTConfig{Secret: "secret", Issuer: "someone-else"}, token)
	require.Error(t, err)
}

func TestParseIdentityTokenRejectsExpired(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret"}
	token, err := MintIdentityToken(cfg, time.Now().Add(-2*time.Hour), "u1", time.Hour)
	require.NoError(t, err)

	_, err = ParseIdentityToken(cfg, token)
	require.Error(t, err)
}

func TestParseIdentityTokenFallsBackToLegacyID(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret"}
	claims := IdentityClaims{LegacyID: "legacy-7", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	parsed, err := ParseIdentityToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "legacy-7", parsed.Identifier())
}

func TestParseIdentityTokenRequiresIdentifier(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret"}
	claims := IdentityClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)

	_, err = ParseIdentityToken(cfg, token)
	assert.True(t, errors.Is(err, ErrMissingIdentifier))
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer   abc "))
	assert.Equal(t, "abc", BearerToken("abc"))
	assert.Equal(t, "", BearerToken("  "))
}
