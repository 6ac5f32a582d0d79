package authstate

import (
	"context"
	"net/url"

	"github.com/google/uuid"
)

// TokenFromURL extracts a platform token delivered through a deep link. A
// distribution channel (e.g. a bot-issued link) may place it in the query as
// token or in the hash fragment as token or access_token.
func TokenFromURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	if token := u.Query().Get("token"); token != "" {
		return token, true
	}

	if u.Fragment == "" {
		return "", false
	}
	fragment, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return "", false
	}
	if token := fragment.Get("token"); token != "" {
		return token, true
	}
	if token := fragment.Get("access_token"); token != "" {
		return token, true
	}
	return "", false
}

// BootstrapFromURL recovers a token from a landing URL and, if one is
// found, persists it to both scopes and fires authStateChange.
func (s *Store) BootstrapFromURL(ctx context.Context, playerID uuid.UUID, rawURL string) bool {
	token, ok := TokenFromURL(rawURL)
	if !ok {
		return false
	}
	s.SetToken(ctx, playerID, token)
	return true
}
