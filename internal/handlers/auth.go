package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cursor2b-collab/vip-sub000/internal/auth"
	"github.com/cursor2b-collab/vip-sub000/internal/authstate"
	"github.com/cursor2b-collab/vip-sub000/internal/upstream"
	"github.com/cursor2b-collab/vip-sub000/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// playerNamespace makes player IDs a pure function of the platform
// username, so the same account maps to the same gateway identity across
// logins and devices.
var playerNamespace = uuid.MustParse("7d5856c5-9b70-4a1c-9e52-6ab1c8b8a011")

func PlayerID(username string) uuid.UUID {
	return uuid.NewSHA1(playerNamespace, []byte(username))
}

type AuthHandler struct {
	api   *upstream.Client
	state *authstate.Store
	jwt   *auth.JWTManager
	log   *slog.Logger
}

func NewAuthHandler(api *upstream.Client, state *authstate.Store, jwt *auth.JWTManager, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{api: api, state: state, jwt: jwt, log: log}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// Public routes (no auth required)
	r.Post("/login", h.Login)
	r.Post("/register", h.Register)
	r.Post("/bootstrap", h.Bootstrap)

	return r
}

func (h *AuthHandler) ProtectedRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/logout", h.Logout)
	return r
}

type loginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validation.Validate(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.api.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	h.finishSignIn(w, r, req.Username, result)
}

type registerRequest struct {
	Username   string `json:"username" validate:"required,min=3,max=64"`
	Password   string `json:"password" validate:"required,min=6,max=128"`
	InviteCode string `json:"invite_code,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validation.Validate(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.api.Register(r.Context(), req.Username, req.Password, req.InviteCode)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	h.finishSignIn(w, r, req.Username, result)
}

type bootstrapRequest struct {
	PageURL string `json:"page_url" validate:"required"`
}

// Bootstrap signs a player in from a deep link carrying a platform token in
// its query or hash fragment. The token is validated against the platform
// before the gateway trusts it.
func (h *AuthHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	var req bootstrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := validation.Validate(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	token, ok := authstate.TokenFromURL(req.PageURL)
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "no token in url")
		return
	}

	info, err := h.api.UserInfo(r.Context(), token)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	h.finishSignIn(w, r, info.Username, &upstream.LoginResult{Token: token, User: info})
}

// finishSignIn stores the platform token in both scopes, starts balance
// polling and hands the shell a gateway session token.
func (h *AuthHandler) finishSignIn(w http.ResponseWriter, r *http.Request, username string, result *upstream.LoginResult) {
	playerID := PlayerID(username)

	h.state.SetToken(r.Context(), playerID, result.Token)
	h.state.StartPolling(playerID)

	if result.User == nil {
		if info, err := h.state.ForceRefresh(r.Context(), playerID); err == nil {
			result.User = info
		}
	}

	gatewayToken, err := h.jwt.GenerateToken(playerID, username)
	if err != nil {
		h.log.Error("failed to mint gateway token", "player_id", playerID, "error", err)
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"token":     gatewayToken,
		"player_id": playerID,
		"user":      result.User,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	playerID, ok := auth.GetPlayerIDFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	if token, ok := h.state.Token(r.Context(), playerID); ok {
		// Best effort; local state is cleared regardless.
		if err := h.api.Logout(r.Context(), token); err != nil {
			h.log.Debug("platform logout failed", "player_id", playerID, "error", err)
		}
	}

	h.state.Logout(r.Context(), playerID)
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
