// Package authstate is the single source of truth for "is this player
// logged in to the platform" and "what is their last-known balance". It
// holds the opaque platform token in two scopes (an in-memory session scope
// and a persistent Redis scope), caches the user snapshot, revalidates it
// against the platform, and fans out state changes to subscribers.
package authstate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cursor2b-collab/vip-sub000/internal/upstream"
	"github.com/google/uuid"
)

// Storage is the persistent scope behind the in-memory session scope:
// tokens and snapshots that must survive a gateway restart. *cache.Cache is
// the production implementation.
type Storage interface {
	SetToken(ctx context.Context, playerID uuid.UUID, token string) error
	GetToken(ctx context.Context, playerID uuid.UUID) (string, error)
	DeleteToken(ctx context.Context, playerID uuid.UUID) error
	SetSnapshot(ctx context.Context, playerID uuid.UUID, info *upstream.UserInfo) error
	GetSnapshot(ctx context.Context, playerID uuid.UUID) (*upstream.UserInfo, error)
	InvalidateSnapshot(ctx context.Context, playerID uuid.UUID) error
}

type Event string

const (
	EventAuthStateChange Event = "authStateChange"
	EventBalanceChange   Event = "balanceChange"
)

// Change describes one state transition delivered to subscribers.
type Change struct {
	PlayerID uuid.UUID          `json:"player_id"`
	Event    Event              `json:"event"`
	LoggedIn bool               `json:"logged_in"`
	Snapshot *upstream.UserInfo `json:"snapshot,omitempty"`
}

type Listener func(Change)

// playerState is the session-scoped half of a player's auth state. It dies
// with the gateway process; the persistent half lives in Redis.
type playerState struct {
	mu           sync.RWMutex
	sessionToken string
	loggedIn     bool
	snapshot     *upstream.UserInfo
	stopPoll     context.CancelFunc
}

type Store struct {
	api          *upstream.Client
	storage      Storage
	log          *slog.Logger
	pollInterval time.Duration

	mu        sync.RWMutex
	states    map[uuid.UUID]*playerState
	listeners []Listener
}

func NewStore(api *upstream.Client, storage Storage, pollInterval time.Duration, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		api:          api,
		storage:      storage,
		log:          log,
		pollInterval: pollInterval,
		states:       make(map[uuid.UUID]*playerState),
	}
}

// Subscribe registers a listener for auth/balance changes. Listeners are
// invoked synchronously on the goroutine that caused the change.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) notify(change Change) {
	s.mu.RLock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, l := range listeners {
		l(change)
	}
}

func (s *Store) state(playerID uuid.UUID) *playerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[playerID]
	if !ok {
		st = &playerState{}
		s.states[playerID] = st
	}
	return st
}

// SetToken stores a fresh platform token in both scopes and marks the
// player logged in.
func (s *Store) SetToken(ctx context.Context, playerID uuid.UUID, token string) {
	st := s.state(playerID)

	st.mu.Lock()
	st.sessionToken = token
	st.loggedIn = true
	snapshot := st.snapshot
	st.mu.Unlock()

	if s.storage != nil {
		if err := s.storage.SetToken(ctx, playerID, token); err != nil {
			s.log.Warn("failed to persist token", "player_id", playerID, "error", err)
		}
	}

	s.notify(Change{PlayerID: playerID, Event: EventAuthStateChange, LoggedIn: true, Snapshot: snapshot})
}

// Token returns the platform token for a player, preferring the session
// scope and falling back to the persistent scope.
func (s *Store) Token(ctx context.Context, playerID uuid.UUID) (string, bool) {
	st := s.state(playerID)

	st.mu.RLock()
	token := st.sessionToken
	st.mu.RUnlock()
	if token != "" {
		return token, true
	}

	if s.storage == nil {
		return "", false
	}
	token, err := s.storage.GetToken(ctx, playerID)
	if err != nil {
		s.log.Warn("failed to read persisted token", "player_id", playerID, "error", err)
		return "", false
	}
	if token == "" {
		return "", false
	}

	// Repopulate the session scope so later lookups stay local.
	st.mu.Lock()
	st.sessionToken = token
	st.loggedIn = true
	st.mu.Unlock()
	return token, true
}

// Hydrate restores a player's state for instant rendering: last-known
// snapshot first (memory, then persistent cache), with an asynchronous
// revalidation against the platform.
func (s *Store) Hydrate(ctx context.Context, playerID uuid.UUID) (*upstream.UserInfo, bool) {
	if _, ok := s.Token(ctx, playerID); !ok {
		return nil, false
	}

	st := s.state(playerID)
	st.mu.RLock()
	snapshot := st.snapshot
	st.mu.RUnlock()

	if snapshot == nil && s.storage != nil {
		cached, err := s.storage.GetSnapshot(ctx, playerID)
		if err != nil {
			s.log.Warn("failed to read cached snapshot", "player_id", playerID, "error", err)
		} else if cached != nil {
			snapshot = cached
			st.mu.Lock()
			st.snapshot = cached
			st.mu.Unlock()
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.Revalidate(ctx, playerID); err != nil {
			s.log.Debug("background revalidation failed", "player_id", playerID, "error", err)
		}
	}()

	return snapshot, true
}

// Revalidate fetches a fresh snapshot from the platform. Only an explicit
// auth-kind failure clears the login state; any other failure (network blip,
// malformed payload) preserves the last-known state.
func (s *Store) Revalidate(ctx context.Context, playerID uuid.UUID) error {
	_, err := s.ForceRefresh(ctx, playerID)
	return err
}

// ForceRefresh bypasses every cache and asks the platform directly. Used
// after balance-affecting actions (transfer in/out, claiming rewards).
func (s *Store) ForceRefresh(ctx context.Context, playerID uuid.UUID) (*upstream.UserInfo, error) {
	token, ok := s.Token(ctx, playerID)
	if !ok {
		return nil, &upstream.Error{Kind: upstream.KindNotAuthenticated, Op: "refresh", Message: "no session token"}
	}

	info, err := s.api.UserInfo(ctx, token)
	if err != nil {
		if upstream.IsAuthError(err) {
			s.log.Info("session token invalidated by platform", "player_id", playerID)
			s.Logout(ctx, playerID)
			return nil, err
		}
		// Keep serving the cached snapshot on any other failure.
		return nil, err
	}

	st := s.state(playerID)
	st.mu.Lock()
	st.snapshot = info
	st.loggedIn = true
	st.mu.Unlock()

	if s.storage != nil {
		if err := s.storage.SetSnapshot(ctx, playerID, info); err != nil {
			s.log.Warn("failed to cache snapshot", "player_id", playerID, "error", err)
		}
	}

	s.notify(Change{PlayerID: playerID, Event: EventBalanceChange, LoggedIn: true, Snapshot: info})
	return info, nil
}

// Logout clears both token scopes, the cached snapshot and the poll loop,
// then notifies subscribers.
func (s *Store) Logout(ctx context.Context, playerID uuid.UUID) {
	st := s.state(playerID)

	st.mu.Lock()
	st.sessionToken = ""
	st.loggedIn = false
	st.snapshot = nil
	stop := st.stopPoll
	st.stopPoll = nil
	st.mu.Unlock()

	if stop != nil {
		stop()
	}

	if s.storage != nil {
		if err := s.storage.DeleteToken(ctx, playerID); err != nil {
			s.log.Warn("failed to delete persisted token", "player_id", playerID, "error", err)
		}
		if err := s.storage.InvalidateSnapshot(ctx, playerID); err != nil {
			s.log.Warn("failed to invalidate snapshot", "player_id", playerID, "error", err)
		}
	}

	s.notify(Change{PlayerID: playerID, Event: EventAuthStateChange, LoggedIn: false})
}

// Snapshot returns the in-memory snapshot without touching the network.
func (s *Store) Snapshot(playerID uuid.UUID) (*upstream.UserInfo, bool) {
	st := s.state(playerID)
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.snapshot, st.snapshot != nil
}

func (s *Store) LoggedIn(playerID uuid.UUID) bool {
	st := s.state(playerID)
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.loggedIn
}

// StartPolling begins the periodic balance refresh for a logged-in player.
// Idempotent; the loop stops on logout.
func (s *Store) StartPolling(playerID uuid.UUID) {
	st := s.state(playerID)

	st.mu.Lock()
	if st.stopPoll != nil {
		st.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	st.stopPoll = cancel
	st.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, tickCancel := context.WithTimeout(ctx, s.pollInterval)
				if err := s.Revalidate(tickCtx, playerID); err != nil {
					s.log.Debug("balance poll failed", "player_id", playerID, "error", err)
				}
				tickCancel()
			}
		}
	}()
}
