// Package gamesession manages the open -> play -> close lifecycle of an
// embedded vendor game and guarantees balance reconciliation on close: for
// any combination of exit triggers, the transfer-out sweep runs at most
// once, and the player is never blocked on its outcome.
package gamesession

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cursor2b-collab/vip-sub000/internal/authstate"
	"github.com/cursor2b-collab/vip-sub000/internal/database"
	"github.com/cursor2b-collab/vip-sub000/internal/models"
	"github.com/cursor2b-collab/vip-sub000/internal/upstream"
	"github.com/cursor2b-collab/vip-sub000/internal/validation"
	"github.com/google/uuid"
)

// EnterParams are the launch parameters forwarded by the game-view route.
// PageURL carries the landing URL so a token can be recovered from a deep
// link before failing with not-authenticated.
type EnterParams struct {
	PlatformCode string `json:"platform_code" validate:"required,platform_code"`
	VendorCode   string `json:"vendor_code,omitempty"`
	GameType     string `json:"game_type,omitempty"`
	GameCode     string `json:"game_code,omitempty"`
	Lang         string `json:"lang,omitempty"`
	UserAgent    string `json:"-"`
	PageURL      string `json:"page_url,omitempty"`
}

// CloseResult reports what the close did. Navigation back to the lobby must
// proceed no matter what it says.
type CloseResult struct {
	Performed      bool   `json:"performed"`       // this trigger won the latch
	TransferredOut bool   `json:"transferred_out"` // the sweep succeeded
	AlreadyClosed  bool   `json:"already_closed"`
	Trigger        string `json:"trigger"`
}

type Controller struct {
	api  *upstream.Client
	auth *authstate.Store
	db   *database.DB
	log  *slog.Logger

	launchTimeout      time.Duration
	transferOutTimeout time.Duration
	settleDelay        time.Duration

	mu     sync.RWMutex
	active map[uuid.UUID]*Session // keyed by session ID
}

func NewController(api *upstream.Client, auth *authstate.Store, db *database.DB, launchTimeout, transferOutTimeout, settleDelay time.Duration, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		api:                api,
		auth:               auth,
		db:                 db,
		log:                log,
		launchTimeout:      launchTimeout,
		transferOutTimeout: transferOutTimeout,
		settleDelay:        settleDelay,
		active:             make(map[uuid.UUID]*Session),
	}
}

// Enter opens a game: validates parameters, requires (or recovers) a
// platform token, requests the launch URL under the configured timeout, and
// schedules the deferred balance refresh that picks up the platform's
// asynchronous deposit.
func (c *Controller) Enter(ctx context.Context, playerID uuid.UUID, params EnterParams) (*Session, error) {
	token, ok := c.auth.Token(ctx, playerID)
	if !ok && params.PageURL != "" {
		if c.auth.BootstrapFromURL(ctx, playerID, params.PageURL) {
			token, ok = c.auth.Token(ctx, playerID)
		}
	}
	if !ok {
		return nil, &upstream.Error{Kind: upstream.KindNotAuthenticated, Op: "game_enter", Message: "no session token"}
	}

	// Platform codes are uppercase vendor identifiers; accept any casing
	// from the shell.
	params.PlatformCode = strings.ToUpper(params.PlatformCode)
	if err := validation.Validate(&params); err != nil {
		return nil, &upstream.Error{Kind: upstream.KindMissingParameter, Op: "game_enter", Message: err.Error()}
	}

	launchCtx, cancel := context.WithTimeout(ctx, c.launchTimeout)
	defer cancel()

	launchURL, err := c.api.LaunchURL(launchCtx, token, upstream.LaunchRequest{
		PlatformCode: params.PlatformCode,
		VendorCode:   params.VendorCode,
		GameType:     params.GameType,
		GameCode:     params.GameCode,
		Lang:         params.Lang,
	})
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:           uuid.New(),
		PlayerID:     playerID,
		PlatformCode: params.PlatformCode,
		VendorCode:   params.VendorCode,
		GameType:     params.GameType,
		GameCode:     params.GameCode,
		LaunchURL:    launchURL,
		Sandbox:      PolicyFor(params.UserAgent, params.PlatformCode),
		CreatedAt:    time.Now().UTC(),
	}

	// A player has one live game at a time: close any session left behind
	// by a hard navigation that never delivered its exit trigger.
	c.mu.Lock()
	var stale *Session
	for _, existing := range c.active {
		if existing.PlayerID == playerID {
			stale = existing
			break
		}
	}
	c.active[session.ID] = session
	c.mu.Unlock()
	if stale != nil {
		go c.close(stale, TriggerUnmount)
	}

	c.persistOpen(session)

	// The platform settles the vendor deposit asynchronously after a
	// successful launch; refresh once it had time to land.
	playerRef := playerID
	time.AfterFunc(c.settleDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := c.auth.ForceRefresh(ctx, playerRef); err != nil {
			c.log.Debug("post-launch balance refresh failed", "player_id", playerRef, "error", err)
		}
	})

	c.log.Info("game session opened",
		"session_id", session.ID,
		"player_id", playerID,
		"platform", session.PlatformCode,
		"game", session.GameCode,
		"sandboxed", session.Sandbox.Sandboxed,
	)
	return session, nil
}

// Close handles every exit path. The first trigger to win the
// Active -> ClosingRequested transition performs the transfer-out sweep on a
// context detached from the originating request, so it survives the page
// navigation that fired it. Failure is logged, never surfaced: blocking the
// exit would strand the player in the game view.
//
// Only the session's owner may close it. A mismatched player gets the same
// answer as an unknown session id, so session ids cannot be probed.
func (c *Controller) Close(playerID, sessionID uuid.UUID, trigger Trigger) CloseResult {
	c.mu.RLock()
	session, ok := c.active[sessionID]
	c.mu.RUnlock()
	if !ok || session.PlayerID != playerID {
		return CloseResult{AlreadyClosed: true, Trigger: string(trigger)}
	}
	return c.close(session, trigger)
}

func (c *Controller) close(session *Session, trigger Trigger) CloseResult {
	// The latch must flip before any await point so a second trigger firing
	// during the network call cannot re-enter.
	if !session.requestClose() {
		return CloseResult{AlreadyClosed: session.Closed(), Trigger: string(trigger)}
	}

	transferred := c.transferOut(session, trigger)

	session.markClosed()
	c.mu.Lock()
	delete(c.active, session.ID)
	c.mu.Unlock()

	c.persistClose(session, trigger, transferred)

	if transferred {
		// Reconciled balance must show up without a manual reload.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := c.auth.ForceRefresh(ctx, session.PlayerID); err != nil {
			c.log.Warn("post-exit balance refresh failed", "player_id", session.PlayerID, "error", err)
		}
	}

	c.log.Info("game session closed",
		"session_id", session.ID,
		"player_id", session.PlayerID,
		"trigger", trigger,
		"transferred_out", transferred,
	)
	return CloseResult{Performed: true, TransferredOut: transferred, Trigger: string(trigger)}
}

// transferOut sweeps the vendor sub-ledger back to the main wallet. It runs
// on a background context so a canceled unload request cannot abort it.
func (c *Controller) transferOut(session *Session, trigger Trigger) bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.transferOutTimeout)
	defer cancel()

	token, ok := c.auth.Token(ctx, session.PlayerID)
	if !ok {
		c.log.Warn("transfer-out skipped, no session token",
			"session_id", session.ID, "player_id", session.PlayerID, "trigger", trigger)
		return false
	}

	result, err := c.api.TransferOut(ctx, token, session.PlatformCode)
	if err != nil {
		c.log.Warn("transfer-out failed",
			"session_id", session.ID,
			"player_id", session.PlayerID,
			"platform", session.PlatformCode,
			"trigger", trigger,
			"error", err,
		)
		c.persistTransferLog(session, "failed", err.Error())
		return false
	}

	c.persistTransferLog(session, "success", result.RefID)
	return true
}

// ActiveSession returns the player's live session, if any.
func (c *Controller) ActiveSession(playerID uuid.UUID) (*Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, session := range c.active {
		if session.PlayerID == playerID {
			return session, true
		}
	}
	return nil, false
}

// CloseAll closes every live session with the given trigger, used on
// gateway shutdown so no vendor ledger is left holding funds.
func (c *Controller) CloseAll(trigger Trigger) {
	c.mu.RLock()
	sessions := make([]*Session, 0, len(c.active))
	for _, session := range c.active {
		sessions = append(sessions, session)
	}
	c.mu.RUnlock()

	for _, session := range sessions {
		c.close(session, trigger)
	}
}

func (c *Controller) persistOpen(session *Session) {
	if c.db == nil {
		return
	}
	row := &models.PlaySession{
		ID:           session.ID,
		PlayerID:     session.PlayerID,
		PlatformCode: session.PlatformCode,
		VendorCode:   session.VendorCode,
		GameType:     session.GameType,
		GameCode:     session.GameCode,
		LaunchURL:    session.LaunchURL,
		Status:       models.PlaySessionStatusActive,
	}
	if err := c.db.Create(row).Error; err != nil {
		c.log.Warn("failed to persist play session",
			"session_id", session.ID, "reason", database.GetErrorMessage(err), "error", err)
	}
}

func (c *Controller) persistClose(session *Session, trigger Trigger, transferred bool) {
	if c.db == nil {
		return
	}
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":          models.PlaySessionStatusClosed,
		"exit_trigger":    string(trigger),
		"transferred_out": transferred,
		"closed_at":       &now,
	}
	if err := c.db.Model(&models.PlaySession{}).Where("id = ?", session.ID).Updates(updates).Error; err != nil {
		c.log.Warn("failed to persist session close",
			"session_id", session.ID, "reason", database.GetErrorMessage(err), "error", err)
	}
}

func (c *Controller) persistTransferLog(session *Session, status, message string) {
	if c.db == nil {
		return
	}
	sessionID := session.ID
	row := &models.TransferLog{
		PlayerID:     session.PlayerID,
		SessionID:    &sessionID,
		PlatformCode: session.PlatformCode,
		Direction:    models.TransferDirectionOut,
		Status:       status,
		Message:      message,
	}
	if status == "success" {
		row.RefID = message
		row.Message = ""
	}
	if err := c.db.Create(row).Error; err != nil {
		c.log.Warn("failed to persist transfer log",
			"session_id", session.ID, "reason", database.GetErrorMessage(err), "error", err)
	}
}
