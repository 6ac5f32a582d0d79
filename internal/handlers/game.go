package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cursor2b-collab/vip-sub000/internal/auth"
	"github.com/cursor2b-collab/vip-sub000/internal/gamesession"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type GameHandler struct {
	controller *gamesession.Controller
}

func NewGameHandler(controller *gamesession.Controller) *GameHandler {
	return &GameHandler{controller: controller}
}

func (h *GameHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/enter", h.Enter)
	r.Post("/exit", h.Exit)
	r.Post("/exit-beacon", h.ExitBeacon)
	r.Get("/active", h.Active)

	return r
}

func (h *GameHandler) Enter(w http.ResponseWriter, r *http.Request) {
	playerID, ok := auth.GetPlayerIDFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var params gamesession.EnterParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	params.UserAgent = r.UserAgent()

	session, err := h.controller.Enter(r.Context(), playerID, params)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, session)
}

type exitRequest struct {
	SessionID uuid.UUID `json:"session_id"`
	Trigger   string    `json:"trigger"`
}

// Exit is the ordinary close path (back button, view teardown). Whatever
// the transfer-out did, the response is a 200: the shell must always be
// free to navigate back to the lobby. The caller's identity travels into
// the close so only the session owner can trigger the sweep.
func (h *GameHandler) Exit(w http.ResponseWriter, r *http.Request) {
	playerID, ok := auth.GetPlayerIDFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req exitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.SessionID == uuid.Nil {
		writeErrorResponse(w, http.StatusBadRequest, "session_id is required")
		return
	}

	result := h.controller.Close(playerID, req.SessionID, normalizeTrigger(req.Trigger))
	writeJSONResponse(w, http.StatusOK, result)
}

// ExitBeacon serves sendBeacon-style calls fired while the page unloads.
// The browser never reads the response, so the close runs detached and the
// handler returns immediately.
func (h *GameHandler) ExitBeacon(w http.ResponseWriter, r *http.Request) {
	playerID, ok := auth.GetPlayerIDFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	sessionID, err := uuid.Parse(r.URL.Query().Get("session_id"))
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	trigger := gamesession.TriggerUnload
	if raw := r.URL.Query().Get("trigger"); raw != "" {
		trigger = normalizeTrigger(raw)
	}

	go h.controller.Close(playerID, sessionID, trigger)
	w.WriteHeader(http.StatusNoContent)
}

func (h *GameHandler) Active(w http.ResponseWriter, r *http.Request) {
	playerID, ok := auth.GetPlayerIDFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	session, ok := h.controller.ActiveSession(playerID)
	if !ok {
		writeJSONResponse(w, http.StatusOK, map[string]interface{}{"active": false})
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{"active": true, "session": session})
}

func normalizeTrigger(raw string) gamesession.Trigger {
	switch gamesession.Trigger(raw) {
	case gamesession.TriggerHidden, gamesession.TriggerUnload, gamesession.TriggerUnmount, gamesession.TriggerBack:
		return gamesession.Trigger(raw)
	case "":
		return gamesession.TriggerBack
	default:
		return gamesession.TriggerBack
	}
}
