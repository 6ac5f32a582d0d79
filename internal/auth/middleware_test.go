package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskedURI(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{
			name: "token query value is scrubbed",
			uri:  "/ws?token=eyJhbGciOiJIUzI1NiJ9.secret.sig",
			want: "/ws?token=REDACTED",
		},
		{
			name: "other params survive alongside the token",
			uri:  "/api/game/exit-beacon?session_id=abc&token=jwt-here",
			want: "/api/game/exit-beacon?session_id=abc&token=REDACTED",
		},
		{
			name: "uri without a token is untouched",
			uri:  "/api/lobby/games?bucket=slots",
			want: "/api/lobby/games?bucket=slots",
		},
		{
			name: "bare path is untouched",
			uri:  "/health",
			want: "/health",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.uri)
			require.NoError(t, err)
			assert.Equal(t, tt.want, maskedURI(u))
		})
	}
}

func TestRequestLogger_PassesRequestThrough(t *testing.T) {
	var sawToken string
	handler := RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Downstream must still see the real token; only the log line is
		// scrubbed.
		sawToken = r.URL.Query().Get("token")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws?token=real-token", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "real-token", sawToken)
}
