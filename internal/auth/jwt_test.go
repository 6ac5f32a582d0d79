package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	manager := NewJWTManager("test-secret", "lobby-gateway")
	playerID := uuid.New()

	token, err := manager.GenerateToken(playerID, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, playerID, claims.PlayerID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "lobby-gateway", claims.Issuer)
}

func TestJWTManager_WrongSecretRejected(t *testing.T) {
	manager := NewJWTManager("test-secret", "lobby-gateway")
	other := NewJWTManager("different-secret", "lobby-gateway")

	token, err := manager.GenerateToken(uuid.New(), "alice")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTManager_GarbageRejected(t *testing.T) {
	manager := NewJWTManager("test-secret", "lobby-gateway")

	_, err := manager.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}

func TestExtractTokenFromBearer(t *testing.T) {
	manager := NewJWTManager("test-secret", "lobby-gateway")

	assert.Equal(t, "abc123", manager.ExtractTokenFromBearer("Bearer abc123"))
	assert.Equal(t, "", manager.ExtractTokenFromBearer("abc123"))
	assert.Equal(t, "", manager.ExtractTokenFromBearer(""))
	assert.Equal(t, "", manager.ExtractTokenFromBearer("Bearer "))
}
