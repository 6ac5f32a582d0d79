package handlers

import (
	"net/http"
	"strconv"

	"github.com/cursor2b-collab/vip-sub000/internal/auth"
	"github.com/cursor2b-collab/vip-sub000/internal/authstate"
	"github.com/cursor2b-collab/vip-sub000/internal/catalog"
	"github.com/cursor2b-collab/vip-sub000/internal/upstream"
	"github.com/go-chi/chi/v5"
)

// LobbyHandler serves the read-only lobby surfaces: game buckets, notices,
// VIP progression, money log and in-box messages.
type LobbyHandler struct {
	catalog *catalog.Service
	api     *upstream.Client
	state   *authstate.Store
}

func NewLobbyHandler(c *catalog.Service, api *upstream.Client, state *authstate.Store) *LobbyHandler {
	return &LobbyHandler{catalog: c, api: api, state: state}
}

func (h *LobbyHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/games", h.Games)
	r.Get("/notices", h.Notices)

	return r
}

func (h *LobbyHandler) ProtectedRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/vip", h.VIP)
	r.Get("/money-log", h.MoneyLog)
	r.Get("/messages", h.Messages)

	return r
}

func (h *LobbyHandler) Games(w http.ResponseWriter, r *http.Request) {
	bucket := catalog.Bucket(r.URL.Query().Get("bucket"))
	if bucket == "" {
		all, err := h.catalog.All(r.Context())
		if err != nil {
			writeUpstreamError(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, all)
		return
	}

	games, err := h.catalog.Games(r.Context(), bucket)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"bucket": bucket,
		"games":  games,
	})
}

func (h *LobbyHandler) Notices(w http.ResponseWriter, r *http.Request) {
	notices, err := h.api.Notices(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, notices)
}

func (h *LobbyHandler) VIP(w http.ResponseWriter, r *http.Request) {
	token, ok := h.tokenFor(r)
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	info, err := h.api.VIPInfo(r.Context(), token)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, info)
}

func (h *LobbyHandler) MoneyLog(w http.ResponseWriter, r *http.Request) {
	token, ok := h.tokenFor(r)
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 20)

	entries, err := h.api.MoneyLog(r.Context(), token, page, pageSize)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, entries)
}

func (h *LobbyHandler) Messages(w http.ResponseWriter, r *http.Request) {
	token, ok := h.tokenFor(r)
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	messages, err := h.api.Messages(r.Context(), token)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, messages)
}

func (h *LobbyHandler) tokenFor(r *http.Request) (string, bool) {
	playerID, ok := auth.GetPlayerIDFromContext(r.Context())
	if !ok {
		return "", false
	}
	return h.state.Token(r.Context(), playerID)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
