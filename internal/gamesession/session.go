package gamesession

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Trigger identifies which exit path asked for the session to close. Any
// number of them can fire for the same session; only one wins.
type Trigger string

const (
	TriggerHidden  Trigger = "visibility_hidden"
	TriggerUnload  Trigger = "page_unload"
	TriggerUnmount Trigger = "view_unmount"
	TriggerBack    Trigger = "manual_back"
)

// Lifecycle states. A session moves Active -> ClosingRequested -> Closed;
// the Active -> ClosingRequested transition is the single-fire latch that
// serializes concurrent exit triggers.
const (
	stateActive int32 = iota
	stateClosingRequested
	stateClosed
)

// Session is one embedded-game visit. It exists from a successful launch
// until an exit trigger closes it.
type Session struct {
	ID           uuid.UUID `json:"id"`
	PlayerID     uuid.UUID `json:"player_id"`
	PlatformCode string    `json:"platform_code"`
	VendorCode   string    `json:"vendor_code"`
	GameType     string    `json:"game_type"`
	GameCode     string    `json:"game_code"`
	LaunchURL    string    `json:"launch_url"`
	Sandbox      Policy    `json:"sandbox"`
	CreatedAt    time.Time `json:"created_at"`

	state atomic.Int32
}

// requestClose attempts the Active -> ClosingRequested transition. Exactly
// one caller per session observes true; everyone else no-ops.
func (s *Session) requestClose() bool {
	return s.state.CompareAndSwap(stateActive, stateClosingRequested)
}

func (s *Session) markClosed() {
	s.state.Store(stateClosed)
}

// Closed reports whether the session has fully closed.
func (s *Session) Closed() bool {
	return s.state.Load() == stateClosed
}
