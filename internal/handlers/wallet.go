package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cursor2b-collab/vip-sub000/internal/auth"
	"github.com/cursor2b-collab/vip-sub000/internal/authstate"
	"github.com/cursor2b-collab/vip-sub000/internal/database"
	"github.com/cursor2b-collab/vip-sub000/internal/models"
	"github.com/cursor2b-collab/vip-sub000/internal/upstream"
	"github.com/cursor2b-collab/vip-sub000/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletHandler struct {
	api   *upstream.Client
	state *authstate.Store
	db    *database.DB
	log   *slog.Logger
}

func NewWalletHandler(api *upstream.Client, state *authstate.Store, db *database.DB, log *slog.Logger) *WalletHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WalletHandler{api: api, state: state, db: db, log: log}
}

func (h *WalletHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/me", h.Me)
	r.Post("/refresh", h.Refresh)
	r.Post("/transfer-in", h.TransferIn)

	return r
}

// Me serves the last-known snapshot for instant rendering; a background
// revalidation keeps it honest.
func (h *WalletHandler) Me(w http.ResponseWriter, r *http.Request) {
	playerID, ok := auth.GetPlayerIDFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	snapshot, loggedIn := h.state.Hydrate(r.Context(), playerID)
	if !loggedIn {
		writeErrorResponse(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	if snapshot == nil {
		// First sighting: no cached copy yet, fetch synchronously.
		info, err := h.state.ForceRefresh(r.Context(), playerID)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}
		snapshot = info
	}

	writeJSONResponse(w, http.StatusOK, snapshot)
}

// Refresh bypasses the snapshot cache; the shell calls it after
// balance-affecting actions.
func (h *WalletHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	playerID, ok := auth.GetPlayerIDFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	info, err := h.state.ForceRefresh(r.Context(), playerID)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, info)
}

type transferInRequest struct {
	PlatformCode string          `json:"platform_code" validate:"required,platform_code"`
	Amount       decimal.Decimal `json:"amount"`
}

// TransferIn moves wallet balance into a vendor sub-ledger ahead of play.
func (h *WalletHandler) TransferIn(w http.ResponseWriter, r *http.Request) {
	playerID, ok := auth.GetPlayerIDFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req transferInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.PlatformCode = strings.ToUpper(req.PlatformCode)
	if err := validation.Validate(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Amount.IsPositive() {
		writeErrorResponse(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	token, ok := h.state.Token(r.Context(), playerID)
	if !ok {
		writeErrorResponse(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	result, err := h.api.TransferIn(r.Context(), token, req.PlatformCode, req.Amount)
	if err != nil {
		h.logTransfer(playerID, req, "failed", err.Error())
		writeUpstreamError(w, err)
		return
	}
	h.logTransfer(playerID, req, "success", result.RefID)

	// The wallet moved; refresh past the cache so the UI agrees.
	info, err := h.state.ForceRefresh(r.Context(), playerID)
	if err != nil {
		h.log.Debug("post-transfer refresh failed", "player_id", playerID, "error", err)
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"ref_id":  result.RefID,
		"balance": result.Balance,
		"user":    info,
	})
}

func (h *WalletHandler) logTransfer(playerID uuid.UUID, req transferInRequest, status, refOrMessage string) {
	if h.db == nil {
		return
	}
	row := &models.TransferLog{
		PlayerID:     playerID,
		PlatformCode: req.PlatformCode,
		Direction:    models.TransferDirectionIn,
		Amount:       req.Amount,
		Status:       status,
	}
	if status == "success" {
		row.RefID = refOrMessage
	} else {
		row.Message = refOrMessage
	}
	if err := h.db.Create(row).Error; err != nil {
		h.log.Warn("failed to persist transfer log", "reason", database.GetErrorMessage(err), "error", err)
	}
}
