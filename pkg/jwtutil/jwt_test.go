package jwtutil

import (
	"testing"

	"github.com/noahdhickman/Quodsi-API-sub001/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})

	tenantID := uint(42)
	token, err := GenerateToken("user@example.com", 7, &tenantID, "acme", "member")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, uint(7), claims.UserID)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, uint(42), *claims.TenantID)
	assert.Equal(t, "acme", claims.TenantName)
	assert.Equal(t, "member", claims.Role)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "key-one", ExpirationHours: 1})
	token, err := GenerateToken("user@example.com", 7, nil, "", "")
	require.NoError(t, err)

	Initialize(&config.JWTConfig{SigningKey: "key-two", ExpirationHours: 1})
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})
	_, err := ValidateToken("not.a.token")
	assert.Error(t, err)
}
