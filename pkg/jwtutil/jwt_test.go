package jwtutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicef/etools-core/pkg/config"
)

func initTestKeys(t *testing.T) {
	t.Helper()
	Initialize(&config.JWTConfig{
		SigningKey:      "test-signing-key",
		TrustedIdP:      "unicef-azure-ad",
		ExpirationHours: 1,
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	initTestKeys(t)

	token, err := GenerateToken("staff@unicef.org", "unicef-azure-ad", "2100")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "staff@unicef.org", claims.Email)
	assert.Equal(t, "2100", claims.BusinessAreaCode)
	assert.True(t, claims.FromTrustedIdP())
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	initTestKeys(t)

	token, err := GenerateToken("staff@unicef.org", "unicef-azure-ad", "")
	require.NoError(t, err)

	_, err = ValidateToken(token + "x")
	assert.Error(t, err)

	_, err = ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongKey(t *testing.T) {
	initTestKeys(t)
	token, err := GenerateToken("staff@unicef.org", "unicef-azure-ad", "")
	require.NoError(t, err)

	Initialize(&config.JWTConfig{SigningKey: "different-key", ExpirationHours: 1})
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestFromTrustedIdP(t *testing.T) {
	initTestKeys(t)
	assert.True(t, (&UserClaims{IdP: "unicef-azure-ad"}).FromTrustedIdP())
	assert.False(t, (&UserClaims{IdP: "self-signed"}).FromTrustedIdP())
	assert.False(t, (&UserClaims{}).FromTrustedIdP())

	// no trusted IdP configured means nothing is trusted
	Initialize(&config.JWTConfig{SigningKey: "k", ExpirationHours: 1})
	assert.False(t, (&UserClaims{IdP: "unicef-azure-ad"}).FromTrustedIdP())
}
