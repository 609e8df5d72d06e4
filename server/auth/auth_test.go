package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	token, err := GenerateAccessToken("keeper", "test-secret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := Authenticate(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "keeper", claims.Username)
	assert.Equal(t, issuer, claims.Issuer)
}

func TestAuthenticateRejectsWrongSecret(t *testing.T) {
	token, err := GenerateAccessToken("keeper", "test-secret")
	require.NoError(t, err)

	_, err = Authenticate(token, "other-secret")
	assert.Error(t, err)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	_, err := Authenticate("not.a.token", "test-secret")
	assert.Error(t, err)
}
