package livesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/livedraft/go/internal/draft/events"
	"github.com/mcdev12/livedraft/go/internal/draft/feed"
	"github.com/mcdev12/livedraft/go/internal/draft/notify"
	"github.com/mcdev12/livedraft/go/internal/draft/session"
	"github.com/mcdev12/livedraft/go/internal/models"
)

var testNow = time.Date(2026, 8, 30, 19, 0, 0, 0, time.UTC)

// scriptedFeed serves queued errors first, then the result for the league.
type scriptedFeed struct {
	mu      sync.Mutex
	calls   int
	queued  []error
	err     error
	results map[string]*feed.Result
	tokens  []string
	entered chan struct{}
	release chan struct{}
}

func newScriptedFeed() *scriptedFeed {
	return &scriptedFeed{results: map[string]*feed.Result{}}
}

func (f *scriptedFeed) Fetch(ctx context.Context, leagueID, _ string) (*feed.Result, error) {
	f.mu.Lock()
	f.calls++
	token, _ := feed.SessionToken(ctx)
	f.tokens = append(f.tokens, token)
	entered, release := f.entered, f.release
	var err error
	if len(f.queued) > 0 {
		err, f.queued = f.queued[0], f.queued[1:]
	} else {
		err = f.err
	}
	res := f.results[leagueID]
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &feed.Result{}, nil
	}
	return res, nil
}

func (f *scriptedFeed) set(leagueID string, res *feed.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[leagueID] = res
}

func (f *scriptedFeed) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type staticLeagues map[uuid.UUID]*models.League

func (l staticLeagues) GetLeague(_ context.Context, id uuid.UUID) (*models.League, error) {
	league, ok := l[id]
	if !ok {
		return nil, errors.New("league not found")
	}
	return league, nil
}

// conflictOnce fails the next Save as if another writer got there first.
type conflictOnce struct {
	*session.MemoryStore
	armed bool
}

func (c *conflictOnce) Save(ctx context.Context, s *models.DraftSession) error {
	if c.armed {
		c.armed = false
		return session.ErrVersionConflict
	}
	return c.MemoryStore.Save(ctx, s)
}

type engineFixture struct {
	clock    *clockwork.FakeClock
	store    *session.MemoryStore
	leagues  staticLeagues
	feed     *scriptedFeed
	notifier *notify.Memory
	locker   *session.Locker
	app      *session.App
	engine   *Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		clock:   clockwork.NewFakeClockAt(testNow),
		store:   session.NewMemoryStore(),
		leagues: staticLeagues{},
		feed:    newScriptedFeed(),
		locker:  session.NewLocker(),
	}
	f.notifier = notify.NewMemory(f.clock)
	f.app = session.NewApp(f.store, f.leagues, f.locker, f.notifier, f.clock)
	f.engine = NewEngine(f.store, f.leagues, f.feed, f.notifier, f.locker, f.clock, nil, DefaultConfig())
	return f
}

func (f *engineFixture) addSession(t *testing.T, externalID string) *models.DraftSession {
	t.Helper()
	return f.addSessionForTeam(t, externalID, "team-4")
}

// addSessionForTeam creates a live session at draft slot 4. An empty teamID
// leaves the user's platform roster id unknown.
func (f *engineFixture) addSessionForTeam(t *testing.T, externalID, teamID string) *models.DraftSession {
	t.Helper()
	league := &models.League{
		ID:               uuid.New(),
		Name:             "Sunday Scaries",
		Platform:         models.PlatformSleeper,
		ExternalLeagueID: externalID,
		Season:           "2026",
		TeamCount:        10,
		Roster:           models.RosterRequirements{QB: 1, RB: 2, WR: 2, TE: 1, Flex: 1, K: 1, DEF: 1, Bench: 7},
		Scoring:          models.ScoringPPR,
	}
	f.leagues[league.ID] = league

	s, err := f.app.CreateSession(context.Background(), session.CreateSessionRequest{
		LeagueID:         league.ID,
		UserID:           uuid.New(),
		UserTeamID:       teamID,
		UserPickPosition: 4,
		SyncMode:         models.SyncModeLive,
	})
	require.NoError(t, err)
	return s
}

func (f *engineFixture) load(t *testing.T, id uuid.UUID) *models.DraftSession {
	t.Helper()
	s, err := f.store.Load(context.Background(), id)
	require.NoError(t, err)
	return s
}

func picks(n int) []models.PickRecord {
	out := make([]models.PickRecord, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, models.PickRecord{
			PickNumber: i,
			PlayerID:   "player-" + string(rune('a'+i-1)),
			Position:   models.PositionRB,
		})
	}
	return out
}

func transientErr() error {
	return &feed.TransientFetchError{Op: "fetch picks", StatusCode: 503, Err: errors.New("service unavailable")}
}

func TestSyncSessionAppliesPicksInOrder(t *testing.T) {
	f := newEngineFixture(t)
	s := f.addSession(t, "ext-1")
	f.feed.set("ext-1", &feed.Result{DraftInProgress: true, Picks: picks(3), CurrentPickTeam: "team-4"})

	outcome, err := f.engine.SyncSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSynced, outcome)

	assert.Equal(t, []events.Type{
		events.TypeStatusChange,
		events.TypePickMade,
		events.TypePickMade,
		events.TypePickMade,
		events.TypeUserOnClock,
	}, f.notifier.Types(s.ID))

	got := f.load(t, s.ID)
	assert.Equal(t, models.DraftStatusInProgress, got.Status)
	assert.Equal(t, 4, got.CurrentPick)
	assert.True(t, got.UserOnClock)
	require.NotNil(t, got.LastSyncAt)
	assert.Equal(t, testNow, *got.LastSyncAt)
}

func TestSyncSessionWithoutTeamIDUsesDraftSlot(t *testing.T) {
	f := newEngineFixture(t)
	s := f.addSessionForTeam(t, "ext-1", "")

	// the platform labels picks with its own roster ids
	ps := picks(14)
	for i := range ps {
		slot := i%10 + 1
		if (i/10)%2 == 1 {
			slot = 10 - i%10
		}
		ps[i].TeamID = fmt.Sprint(slot)
	}
	f.feed.set("ext-1", &feed.Result{DraftInProgress: true, Picks: ps, CurrentPickTeam: "6"})

	outcome, err := f.engine.SyncSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSynced, outcome)

	got := f.load(t, s.ID)
	assert.Empty(t, got.UserTeamID)
	assert.Equal(t, 15, got.CurrentPick)
	require.Len(t, got.UserRoster, 1)
	assert.Equal(t, 4, got.UserRoster[0].PickNumber)
	assert.Equal(t, "4", got.UserRoster[0].TeamID)
	assert.True(t, got.DraftedPlayers[3].IsUserPick)
	assert.False(t, got.DraftedPlayers[13].IsUserPick)
	assert.False(t, got.UserOnClock)
	assert.Equal(t, 17, got.NextUserPick)
}

func TestSyncSessionPassesSessionToken(t *testing.T) {
	f := newEngineFixture(t)
	s := f.addSession(t, "ext-1")
	other, err := f.app.CreateSession(context.Background(), session.CreateSessionRequest{
		LeagueID:         s.LeagueID,
		UserID:           uuid.New(),
		SessionToken:     "user-token",
		UserPickPosition: 2,
		SyncMode:         models.SyncModeLive,
	})
	require.NoError(t, err)

	_, err = f.engine.SyncSession(context.Background(), s.ID)
	require.NoError(t, err)
	_, err = f.engine.SyncSession(context.Background(), other.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "user-token"}, f.feed.tokens)
}

func TestSyncSessionIsIdempotentAndDebounced(t *testing.T) {
	f := newEngineFixture(t)
	s := f.addSession(t, "ext-1")
	f.feed.set("ext-1", &feed.Result{DraftInProgress: true, Picks: picks(2)})
	ctx := context.Background()

	_, err := f.engine.SyncSession(ctx, s.ID)
	require.NoError(t, err)
	emitted := len(f.notifier.Envelopes())

	outcome, err := f.engine.SyncSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedDebounce, outcome)
	assert.Equal(t, 1, f.feed.callCount())

	f.clock.Advance(5 * time.Second)
	outcome, err = f.engine.SyncSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSynced, outcome)
	assert.Equal(t, 2, f.feed.callCount())
	assert.Len(t, f.notifier.Envelopes(), emitted, "reapplying the same picks emits nothing")
	assert.Len(t, f.load(t, s.ID).DraftedPlayers, 2)
}

func TestSyncSessionTransientFailureKeepsState(t *testing.T) {
	f := newEngineFixture(t)
	s := f.addSession(t, "ext-1")
	f.feed.err = transientErr()
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		outcome, err := f.engine.SyncSession(ctx, s.ID)
		require.Error(t, err)
		assert.True(t, feed.IsTransient(err))
		assert.Equal(t, OutcomeTransient, outcome)
	}

	got := f.load(t, s.ID)
	assert.Nil(t, got.LastSyncAt)
	assert.Equal(t, 1, got.CurrentPick)
	require.Len(t, got.SyncErrors, 2)
	assert.Equal(t, models.SyncErrorTransient, got.SyncErrors[0].Kind)
	assert.True(t, got.HasRecentSyncErrors())

	evs, err := f.notifier.Events(s.ID)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, 1, evs[0].(events.SyncError).ConsecutiveFailures)
	assert.Equal(t, 2, evs[1].(events.SyncError).ConsecutiveFailures)
}

func TestSyncSessionAuthFailurePausesSync(t *testing.T) {
	f := newEngineFixture(t)
	s := f.addSession(t, "ext-1")
	f.feed.err = &feed.AuthError{Op: "fetch picks", StatusCode: 401, Err: errors.New("token expired")}
	ctx := context.Background()

	outcome, err := f.engine.SyncSession(ctx, s.ID)
	require.Error(t, err)
	assert.Equal(t, OutcomeAuth, outcome)

	got := f.load(t, s.ID)
	assert.True(t, got.NeedsCredentialUpdate)
	assert.Equal(t, models.SyncModePaused, got.SyncMode)
	require.Len(t, got.SyncErrors, 1)
	assert.Equal(t, models.SyncErrorAuth, got.SyncErrors[0].Kind)
	assert.Equal(t, []events.Type{events.TypeAuthRequired}, f.notifier.Types(s.ID))

	ids, err := f.store.ListSyncable(ctx)
	require.NoError(t, err)
	assert.NotContains(t, ids, s.ID)

	outcome, err = f.engine.SyncSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedInactive, outcome)
	assert.Equal(t, 1, f.feed.callCount())
}

func TestSyncSessionCompletesWhenUpstreamDone(t *testing.T) {
	f := newEngineFixture(t)
	s := f.addSession(t, "ext-1")
	f.feed.set("ext-1", &feed.Result{DraftCompleted: true, Picks: picks(3)})

	outcome, err := f.engine.SyncSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSynced, outcome)

	assert.Equal(t, []events.Type{
		events.TypeStatusChange,
		events.TypePickMade,
		events.TypePickMade,
		events.TypePickMade,
		events.TypeStatusChange,
	}, f.notifier.Types(s.ID))

	got := f.load(t, s.ID)
	assert.Equal(t, models.DraftStatusCompleted, got.Status)
	assert.False(t, got.UserOnClock)
	assert.Len(t, got.DraftedPlayers, 3)

	ids, err := f.store.ListSyncable(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSyncSessionVersionConflictEmitsNothing(t *testing.T) {
	f := newEngineFixture(t)
	s := f.addSession(t, "ext-1")
	f.feed.set("ext-1", &feed.Result{DraftInProgress: true, Picks: picks(1)})

	store := &conflictOnce{MemoryStore: f.store, armed: true}
	engine := NewEngine(store, f.leagues, f.feed, f.notifier, f.locker, f.clock, nil, DefaultConfig())

	outcome, err := engine.SyncSession(context.Background(), s.ID)
	require.ErrorIs(t, err, session.ErrVersionConflict)
	assert.Equal(t, OutcomeConflict, outcome)
	assert.Empty(t, f.notifier.Types(s.ID))
	assert.Equal(t, 1, f.load(t, s.ID).CurrentPick)

	outcome, err = engine.SyncSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSynced, outcome)
}

func TestSyncSessionSkipsBusySession(t *testing.T) {
	f := newEngineFixture(t)
	s := f.addSession(t, "ext-1")

	unlock := f.locker.Lock(s.ID)
	outcome, err := f.engine.SyncSession(context.Background(), s.ID)
	unlock()

	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedBusy, outcome)
	assert.Zero(t, f.feed.callCount())
}

func TestRunCycleFailureAccounting(t *testing.T) {
	f := newEngineFixture(t)
	a := f.addSession(t, "ext-a")
	f.addSession(t, "ext-b")
	ctx := context.Background()

	f.feed.err = transientErr()
	report, err := f.engine.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Attempted)
	assert.True(t, report.Failed, "every attempted session failed transiently")
	assert.Len(t, report.Errors, 2)

	// one healthy session is enough to call the cycle good
	f.feed.err = nil
	f.feed.queued = []error{transientErr()}
	report, err = f.engine.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Outcomes[OutcomeTransient])
	assert.Equal(t, 1, report.Outcomes[OutcomeSynced])
	assert.False(t, report.Failed)

	// a malformed upstream response is logged but does not back the engine off
	f.feed.err = errors.New("unexpected draft payload")
	f.clock.Advance(5 * time.Second)
	report, err = f.engine.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Outcomes[OutcomeFeedError])
	assert.False(t, report.Failed)
	errs := f.load(t, a.ID).SyncErrors
	require.NotEmpty(t, errs)
	assert.Equal(t, models.SyncErrorFeed, errs[len(errs)-1].Kind)
}

func TestSyncSessionFeedErrorIsNotTransient(t *testing.T) {
	f := newEngineFixture(t)
	s := f.addSession(t, "ext-1")
	f.feed.err = errors.New("draft not found")

	outcome, err := f.engine.SyncSession(context.Background(), s.ID)
	require.Error(t, err)
	assert.False(t, feed.IsTransient(err))
	assert.Equal(t, OutcomeFeedError, outcome)

	got := f.load(t, s.ID)
	require.Len(t, got.SyncErrors, 1)
	assert.Equal(t, models.SyncErrorFeed, got.SyncErrors[0].Kind)

	evs, err := f.notifier.Events(s.ID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	syncErr := evs[0].(events.SyncError)
	assert.Equal(t, models.SyncErrorFeed, syncErr.Kind)
	assert.Equal(t, 1, syncErr.ConsecutiveFailures)
}

func TestEngineBacksOffAndHalts(t *testing.T) {
	f := newEngineFixture(t)
	s := f.addSession(t, "ext-1")
	f.feed.err = transientErr()

	reg := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(reg)
	engine := NewEngine(f.store, f.leagues, f.feed, f.notifier, f.locker, f.clock, metrics, DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, engine.Start(ctx))
	require.ErrorIs(t, engine.Start(ctx), ErrAlreadyRunning)

	for i, want := range []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second, 60 * time.Second} {
		require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
		st := engine.Status()
		assert.Equal(t, i+1, st.ConsecutiveFailures)
		assert.Equal(t, want, st.Interval)
		f.clock.Advance(want)
	}

	select {
	case <-engine.Done():
	case <-ctx.Done():
		t.Fatal("engine did not halt")
	}
	assert.ErrorIs(t, engine.Err(), ErrSyncStopped)
	st := engine.Status()
	assert.False(t, st.Running)
	assert.Equal(t, 5, st.ConsecutiveFailures)
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.cycles.WithLabelValues("failed")))

	evs, err := f.notifier.Events(s.ID)
	require.NoError(t, err)
	require.Len(t, evs, 5)
	assert.Equal(t, 5, evs[4].(events.SyncError).ConsecutiveFailures)
}

func TestEngineRecoversAfterFailures(t *testing.T) {
	f := newEngineFixture(t)
	s := f.addSession(t, "ext-1")
	f.feed.queued = []error{transientErr(), transientErr()}
	f.feed.set("ext-1", &feed.Result{DraftInProgress: true, Picks: picks(1)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.engine.Start(ctx))

	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(20 * time.Second)
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))

	st := f.engine.Status()
	assert.Zero(t, st.ConsecutiveFailures)
	assert.Equal(t, 5*time.Second, st.Interval)
	assert.Equal(t, 2, f.load(t, s.ID).CurrentPick)

	require.NoError(t, f.engine.Stop(ctx))
	assert.NoError(t, f.engine.Err())
	assert.False(t, f.engine.Status().Running)
}

func TestStopWaitsForInFlightCycle(t *testing.T) {
	f := newEngineFixture(t)
	s := f.addSession(t, "ext-1")
	f.feed.set("ext-1", &feed.Result{DraftInProgress: true, Picks: picks(1)})
	f.feed.entered = make(chan struct{})
	f.feed.release = make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.engine.Start(ctx))
	<-f.feed.entered

	stopped := make(chan error, 1)
	go func() { stopped <- f.engine.Stop(ctx) }()

	select {
	case <-stopped:
		t.Fatal("stop returned while a cycle was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(f.feed.release)
	require.NoError(t, <-stopped)
	assert.Equal(t, 2, f.load(t, s.ID).CurrentPick, "the in-flight cycle finished")
}
