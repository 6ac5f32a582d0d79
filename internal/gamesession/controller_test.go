package gamesession

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cursor2b-collab/vip-sub000/internal/authstate"
	"github.com/cursor2b-collab/vip-sub000/internal/upstream"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlatform is an httptest-backed platform API that counts the calls the
// controller makes against it.
type fakePlatform struct {
	srv *httptest.Server

	launchCalls   atomic.Int32
	transferCalls atomic.Int32
	userInfoCalls atomic.Int32

	launchDelay  time.Duration
	failTransfer atomic.Bool
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()
	fp := &fakePlatform{}
	fp.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/game/launch":
			fp.launchCalls.Add(1)
			if fp.launchDelay > 0 {
				time.Sleep(fp.launchDelay)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "success",
				"data":   map[string]interface{}{"launch_url": "https://games.example.com/play?sid=1"},
			})
		case "/api/v1/wallet/transfer-out":
			fp.transferCalls.Add(1)
			if fp.failTransfer.Load() {
				json.NewEncoder(w).Encode(map[string]interface{}{
					"status":  "error",
					"message": "transfer in progress",
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "success",
				"data":   map[string]interface{}{"ref_id": "ref-1", "balance": "100.00"},
			})
		case "/api/v1/user/info":
			fp.userInfoCalls.Add(1)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "success",
				"data":   map[string]interface{}{"username": "alice", "balance": "100.00"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(fp.srv.Close)
	return fp
}

type controllerOption func(*controllerConfig)

type controllerConfig struct {
	launchTimeout time.Duration
	settleDelay   time.Duration
}

func withLaunchTimeout(d time.Duration) controllerOption {
	return func(c *controllerConfig) { c.launchTimeout = d }
}

func withSettleDelay(d time.Duration) controllerOption {
	return func(c *controllerConfig) { c.settleDelay = d }
}

func newTestController(t *testing.T, fp *fakePlatform, opts ...controllerOption) (*Controller, *authstate.Store, uuid.UUID) {
	t.Helper()
	cfg := controllerConfig{
		launchTimeout: 5 * time.Second,
		settleDelay:   time.Hour, // out of the way unless a test opts in
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	api := upstream.NewClient(fp.srv.URL, "")
	auth := authstate.NewStore(api, nil, time.Hour, nil)
	controller := NewController(api, auth, nil, cfg.launchTimeout, 2*time.Second, cfg.settleDelay, nil)

	playerID := uuid.New()
	auth.SetToken(context.Background(), playerID, "tok-abc")
	return controller, auth, playerID
}

func TestClose_ConcurrentTriggersTransferOutExactlyOnce(t *testing.T) {
	fp := newFakePlatform(t)
	controller, _, playerID := newTestController(t, fp)

	session, err := controller.Enter(context.Background(), playerID, EnterParams{PlatformCode: "PG"})
	require.NoError(t, err)

	// Real exits fire several of these near-simultaneously: visibility
	// change, pagehide, view teardown and the back button all race.
	triggers := []Trigger{TriggerHidden, TriggerUnload, TriggerUnmount, TriggerBack}
	results := make([]CloseResult, len(triggers))

	var wg sync.WaitGroup
	for i, trigger := range triggers {
		wg.Add(1)
		go func(i int, trigger Trigger) {
			defer wg.Done()
			results[i] = controller.Close(playerID, session.ID, trigger)
		}(i, trigger)
	}
	wg.Wait()

	assert.Equal(t, int32(1), fp.transferCalls.Load(), "transfer-out must run exactly once")

	performed := 0
	for _, result := range results {
		if result.Performed {
			performed++
			assert.True(t, result.TransferredOut)
		}
	}
	assert.Equal(t, 1, performed, "exactly one trigger wins the latch")

	_, ok := controller.ActiveSession(playerID)
	assert.False(t, ok)
}

func TestClose_ForeignPlayerCannotCloseSession(t *testing.T) {
	fp := newFakePlatform(t)
	controller, auth, ownerID := newTestController(t, fp)

	session, err := controller.Enter(context.Background(), ownerID, EnterParams{PlatformCode: "PG"})
	require.NoError(t, err)

	// Another authenticated player who learned the session id must not be
	// able to force the owner's sweep.
	attackerID := uuid.New()
	auth.SetToken(context.Background(), attackerID, "tok-attacker")

	result := controller.Close(attackerID, session.ID, TriggerBack)
	assert.False(t, result.Performed)
	assert.True(t, result.AlreadyClosed, "foreign sessions must be indistinguishable from closed ones")
	assert.Equal(t, int32(0), fp.transferCalls.Load())

	active, ok := controller.ActiveSession(ownerID)
	require.True(t, ok, "the owner's session must stay live")
	assert.Equal(t, session.ID, active.ID)

	// The owner can still close it normally.
	owned := controller.Close(ownerID, session.ID, TriggerBack)
	assert.True(t, owned.Performed)
	assert.Equal(t, int32(1), fp.transferCalls.Load())
}

func TestClose_AfterCloseIsAlreadyClosed(t *testing.T) {
	fp := newFakePlatform(t)
	controller, _, playerID := newTestController(t, fp)

	session, err := controller.Enter(context.Background(), playerID, EnterParams{PlatformCode: "PG"})
	require.NoError(t, err)

	first := controller.Close(playerID, session.ID, TriggerBack)
	assert.True(t, first.Performed)

	second := controller.Close(playerID, session.ID, TriggerUnload)
	assert.False(t, second.Performed)
	assert.True(t, second.AlreadyClosed)
	assert.Equal(t, int32(1), fp.transferCalls.Load())
}

func TestClose_TransferFailureStillClosesSession(t *testing.T) {
	fp := newFakePlatform(t)
	fp.failTransfer.Store(true)
	controller, _, playerID := newTestController(t, fp)

	session, err := controller.Enter(context.Background(), playerID, EnterParams{PlatformCode: "PG"})
	require.NoError(t, err)

	// Exit must never be blocked on the sweep's outcome.
	result := controller.Close(playerID, session.ID, TriggerUnload)
	assert.True(t, result.Performed)
	assert.False(t, result.TransferredOut)

	_, ok := controller.ActiveSession(playerID)
	assert.False(t, ok)
}

func TestClose_SuccessfulSweepRefreshesBalance(t *testing.T) {
	fp := newFakePlatform(t)
	controller, _, playerID := newTestController(t, fp)

	session, err := controller.Enter(context.Background(), playerID, EnterParams{PlatformCode: "PG"})
	require.NoError(t, err)

	before := fp.userInfoCalls.Load()
	result := controller.Close(playerID, session.ID, TriggerBack)
	require.True(t, result.TransferredOut)

	assert.Greater(t, fp.userInfoCalls.Load(), before,
		"reconciled balance must be re-fetched after the sweep")
}

func TestEnter_RequiresPlatformCode(t *testing.T) {
	fp := newFakePlatform(t)
	controller, _, playerID := newTestController(t, fp)

	_, err := controller.Enter(context.Background(), playerID, EnterParams{GameCode: "fortune-tiger"})
	require.Error(t, err)
	assert.Equal(t, upstream.KindMissingParameter, upstream.KindOf(err))
	assert.Equal(t, int32(0), fp.launchCalls.Load())
}

func TestEnter_LowercasePlatformCodeNormalized(t *testing.T) {
	fp := newFakePlatform(t)
	controller, _, playerID := newTestController(t, fp)

	session, err := controller.Enter(context.Background(), playerID, EnterParams{PlatformCode: "pg"})
	require.NoError(t, err)
	assert.Equal(t, "PG", session.PlatformCode)
}

func TestEnter_NoTokenFailsNotAuthenticated(t *testing.T) {
	fp := newFakePlatform(t)
	controller, _, _ := newTestController(t, fp)

	_, err := controller.Enter(context.Background(), uuid.New(), EnterParams{PlatformCode: "PG"})
	require.Error(t, err)
	assert.True(t, upstream.IsAuthError(err))
	assert.Equal(t, int32(0), fp.launchCalls.Load())
}

func TestEnter_RecoversTokenFromPageURL(t *testing.T) {
	fp := newFakePlatform(t)
	controller, auth, _ := newTestController(t, fp)

	// A player landing straight on the game view from a deep link has no
	// token yet; the landing URL carries it.
	playerID := uuid.New()
	session, err := controller.Enter(context.Background(), playerID, EnterParams{
		PlatformCode: "PG",
		PageURL:      "https://play.example.com/game#access_token=deep-link-token",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://games.example.com/play?sid=1", session.LaunchURL)

	token, ok := auth.Token(context.Background(), playerID)
	require.True(t, ok)
	assert.Equal(t, "deep-link-token", token)
}

func TestEnter_LaunchTimeout(t *testing.T) {
	fp := newFakePlatform(t)
	fp.launchDelay = 300 * time.Millisecond
	controller, _, playerID := newTestController(t, fp, withLaunchTimeout(30*time.Millisecond))

	_, err := controller.Enter(context.Background(), playerID, EnterParams{PlatformCode: "PG"})
	require.Error(t, err)
	assert.Equal(t, upstream.KindTimeout, upstream.KindOf(err))
}

func TestEnter_SchedulesSettleRefresh(t *testing.T) {
	fp := newFakePlatform(t)
	controller, _, playerID := newTestController(t, fp, withSettleDelay(10*time.Millisecond))

	before := fp.userInfoCalls.Load()
	_, err := controller.Enter(context.Background(), playerID, EnterParams{PlatformCode: "PG"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return fp.userInfoCalls.Load() > before
	}, 2*time.Second, 10*time.Millisecond,
		"the deferred refresh must pick up the platform's async deposit")
}

func TestEnter_ClosesStaleSessionForSamePlayer(t *testing.T) {
	fp := newFakePlatform(t)
	controller, _, playerID := newTestController(t, fp)

	first, err := controller.Enter(context.Background(), playerID, EnterParams{PlatformCode: "PG"})
	require.NoError(t, err)

	// A hard navigation can skip every exit trigger; the next launch must
	// sweep the abandoned session.
	second, err := controller.Enter(context.Background(), playerID, EnterParams{PlatformCode: "EVOLUTION"})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	assert.Eventually(t, func() bool {
		return first.Closed()
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return fp.transferCalls.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	active, ok := controller.ActiveSession(playerID)
	require.True(t, ok)
	assert.Equal(t, second.ID, active.ID)
}

func TestCloseAll_SweepsEveryLiveSession(t *testing.T) {
	fp := newFakePlatform(t)
	controller, auth, _ := newTestController(t, fp)

	for i := 0; i < 3; i++ {
		playerID := uuid.New()
		auth.SetToken(context.Background(), playerID, "tok-abc")
		_, err := controller.Enter(context.Background(), playerID, EnterParams{PlatformCode: "PG"})
		require.NoError(t, err)
	}

	controller.CloseAll(TriggerUnmount)
	assert.Equal(t, int32(3), fp.transferCalls.Load())
}
