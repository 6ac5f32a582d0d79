package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const (
	PlayerIDKey contextKey = "player_id"
	UsernameKey contextKey = "username"
)

type AuthMiddleware struct {
	jwtManager *JWTManager
}

func NewAuthMiddleware(jwtManager *JWTManager) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
	}
}

// tokenFromRequest finds the gateway token in the Authorization header or,
// failing that, a token query parameter. The query fallback exists for the
// two callers that cannot set headers: the exit beacon fired during page
// unload and the websocket handshake.
func (m *AuthMiddleware) tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		return m.jwtManager.ExtractTokenFromBearer(authHeader)
	}
	return r.URL.Query().Get("token")
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := m.tokenFromRequest(r)
		if tokenString == "" {
			writeAuthError(w)
			return
		}

		claims, err := m.jwtManager.ValidateToken(tokenString)
		if err != nil {
			writeAuthError(w)
			return
		}

		// Add player info to context
		ctx := context.WithValue(r.Context(), PlayerIDKey, claims.PlayerID)
		ctx = context.WithValue(ctx, UsernameKey, claims.Username)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "User not authenticated"})
}

// Helper functions to extract player info from context
func GetPlayerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	playerID, ok := ctx.Value(PlayerIDKey).(uuid.UUID)
	return playerID, ok
}

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// RequestLogger logs one line per request. The token query fallback used by
// the exit beacon and the websocket handshake carries a gateway JWT, so the
// logged URI is scrubbed before it reaches the log.
func RequestLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				slog.Info("request",
					"method", r.Method,
					"uri", maskedURI(r.URL),
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"remote", r.RemoteAddr,
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// maskedURI replaces a token query value with a placeholder.
func maskedURI(u *url.URL) string {
	query := u.Query()
	if query.Get("token") == "" {
		return u.RequestURI()
	}
	query.Set("token", "REDACTED")
	masked := *u
	masked.RawQuery = query.Encode()
	return masked.RequestURI()
}

// Security headers middleware
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only set HSTS in production
		if !strings.Contains(r.Host, "localhost") && !strings.Contains(r.Host, "127.0.0.1") {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}
