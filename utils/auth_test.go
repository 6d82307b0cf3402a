package utils

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret")
	os.Exit(m.Run())
}

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("user-123", true, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.True(t, claims.Anonymous)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := GenerateToken("user-123", false, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token)
	require.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseToken("not.a.token")
	require.Error(t, err)
}

func TestDeviceSecretRoundTrip(t *testing.T) {
	secret, err := NewDeviceSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 64)

	other, err := NewDeviceSecret()
	require.NoError(t, err)
	assert.NotEqual(t, secret, other)

	hash, err := HashSecret(secret)
	require.NoError(t, err)
	assert.NotEqual(t, secret, hash)

	assert.True(t, CheckSecret(hash, secret))
	assert.False(t, CheckSecret(hash, other))
	assert.False(t, CheckSecret("", secret))
}
