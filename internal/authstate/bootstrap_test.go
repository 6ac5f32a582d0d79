package authstate

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFromURL(t *testing.T) {
	tests := []struct {
		name      string
		rawURL    string
		wantToken string
		wantOK    bool
	}{
		{
			name:      "query token",
			rawURL:    "https://play.example.com/?token=q-token-1",
			wantToken: "q-token-1",
			wantOK:    true,
		},
		{
			name:      "fragment token",
			rawURL:    "https://play.example.com/#token=f-token-1",
			wantToken: "f-token-1",
			wantOK:    true,
		},
		{
			name:      "fragment access_token",
			rawURL:    "https://play.example.com/lobby#access_token=abc123xyz789",
			wantToken: "abc123xyz789",
			wantOK:    true,
		},
		{
			name:      "query token wins over fragment",
			rawURL:    "https://play.example.com/?token=from-query#access_token=from-fragment",
			wantToken: "from-query",
			wantOK:    true,
		},
		{
			name:   "no token anywhere",
			rawURL: "https://play.example.com/lobby?lang=en#section=slots",
			wantOK: false,
		},
		{
			name:   "empty token value",
			rawURL: "https://play.example.com/?token=",
			wantOK: false,
		},
		{
			name:   "unparseable url",
			rawURL: "://not-a-url",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, ok := TokenFromURL(tt.rawURL)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestBootstrapFromURL_PopulatesBothScopesAndNotifies(t *testing.T) {
	store, storage := newTestStore(t, userInfoHandler(nil))
	playerID := uuid.New()

	var changes []Change
	var mu sync.Mutex
	store.Subscribe(func(c Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	ok := store.BootstrapFromURL(context.Background(), playerID,
		"https://play.example.com/lobby#access_token=abc123xyz789")
	require.True(t, ok)

	token, found := store.Token(context.Background(), playerID)
	require.True(t, found)
	assert.Equal(t, "abc123xyz789", token)
	assert.Equal(t, "abc123xyz789", storage.token(playerID))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 1)
	assert.Equal(t, EventAuthStateChange, changes[0].Event)
	assert.True(t, changes[0].LoggedIn)
}

func TestBootstrapFromURL_NoTokenIsNoOp(t *testing.T) {
	store, storage := newTestStore(t, userInfoHandler(nil))
	playerID := uuid.New()

	ok := store.BootstrapFromURL(context.Background(), playerID, "https://play.example.com/lobby")
	assert.False(t, ok)

	_, found := store.Token(context.Background(), playerID)
	assert.False(t, found)
	assert.Empty(t, storage.token(playerID))
}
