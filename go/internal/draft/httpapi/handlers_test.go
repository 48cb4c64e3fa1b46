package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/livedraft/go/internal/draft/events"
	"github.com/mcdev12/livedraft/go/internal/draft/livesync"
	"github.com/mcdev12/livedraft/go/internal/draft/notify"
	"github.com/mcdev12/livedraft/go/internal/draft/session"
	"github.com/mcdev12/livedraft/go/internal/leagues"
	"github.com/mcdev12/livedraft/go/internal/models"
	"github.com/mcdev12/livedraft/go/internal/player"
	"github.com/mcdev12/livedraft/go/internal/recommend"
)

var testNow = time.Date(2026, 8, 30, 19, 0, 0, 0, time.UTC)

type fakeSyncer struct {
	synced  []uuid.UUID
	outcome livesync.Outcome
	err     error
}

func (f *fakeSyncer) Status() livesync.Status {
	return livesync.Status{Running: true, Interval: 5 * time.Second}
}

func (f *fakeSyncer) SyncSession(_ context.Context, id uuid.UUID) (livesync.Outcome, error) {
	f.synced = append(f.synced, id)
	return f.outcome, f.err
}

type fixture struct {
	srv      *httptest.Server
	notifier *notify.Memory
	syncer   *fakeSyncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)

	leagueApp := leagues.NewApp(leagues.NewMemoryRepository(), clock)
	notifier := notify.NewMemory(clock)
	sessions := session.NewApp(session.NewMemoryStore(), leagueApp, session.NewLocker(), notifier, clock)

	players := player.NewApp(player.NewMemoryRepository(), clock, time.Minute)
	_, err := players.ImportPlayers(context.Background(), "2026", []models.Player{
		{ID: "4034", FullName: "Christian McCaffrey", Position: models.PositionRB, NFLTeam: "SF",
			Projections: map[models.ScoringSystem]float64{models.ScoringStandard: 290}},
		{ID: "6794", FullName: "Justin Jefferson", Position: models.PositionWR, NFLTeam: "MIN",
			Projections: map[models.ScoringSystem]float64{models.ScoringStandard: 270}},
		{ID: "4046", FullName: "Patrick Mahomes", Position: models.PositionQB, NFLTeam: "KC",
			Projections: map[models.ScoringSystem]float64{models.ScoringStandard: 330}},
		{ID: "5859", FullName: "Travis Kelce", Position: models.PositionTE, NFLTeam: "KC",
			Projections: map[models.ScoringSystem]float64{models.ScoringStandard: 200}},
	})
	require.NoError(t, err)

	recommender := recommend.NewService(recommend.NewEngine(recommend.DefaultTables()), sessions, leagueApp, players, clock)
	syncer := &fakeSyncer{outcome: livesync.OutcomeSynced}

	r := chi.NewRouter()
	NewHandler(sessions, leagueApp, players, recommender, syncer).Routes(r)
	r.Get("/health", Healthz)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, notifier: notifier, syncer: syncer}
}

func (f *fixture) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (f *fixture) createLeague(t *testing.T) models.League {
	t.Helper()
	var l models.League
	status := f.do(t, http.MethodPost, "/leagues", leagues.CreateLeagueRequest{
		Name:             "Sunday League",
		ExternalLeagueID: "1048",
		Season:           "2026",
		TeamCount:        10,
	}, &l)
	require.Equal(t, http.StatusCreated, status)
	return l
}

func (f *fixture) createSession(t *testing.T, leagueID uuid.UUID) models.DraftSession {
	t.Helper()
	var s models.DraftSession
	status := f.do(t, http.MethodPost, "/sessions", session.CreateSessionRequest{
		LeagueID:         leagueID,
		UserID:           uuid.New(),
		UserPickPosition: 4,
	}, &s)
	require.Equal(t, http.StatusCreated, status)
	return s
}

func TestLeagueRoutes(t *testing.T) {
	f := newFixture(t)
	l := f.createLeague(t)
	assert.Equal(t, models.PlatformSleeper, l.Platform)

	var got models.League
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/leagues/"+l.ID.String(), nil, &got))
	assert.Equal(t, l.ID, got.ID)

	var all []models.League
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/leagues", nil, &all))
	assert.Len(t, all, 1)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/leagues/"+uuid.NewString(), nil, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/leagues", leagues.CreateLeagueRequest{Name: "no season"}, nil))
}

func TestSessionLifecycleRoutes(t *testing.T) {
	f := newFixture(t)
	s := f.createSession(t, f.createLeague(t).ID)
	base := "/sessions/" + s.ID.String()

	assert.Equal(t, models.DraftStatusNotStarted, s.Status)
	assert.Equal(t, models.SyncModeLive, s.SyncMode)
	assert.Equal(t, 150, s.TotalPicks, "ten teams times the default roster")

	var got models.DraftSession
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/start", nil, &got))
	assert.Equal(t, models.DraftStatusInProgress, got.Status)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, base+"/start", nil, nil))

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/pause", pauseRequest{Reason: "break"}, &got))
	assert.Equal(t, models.DraftStatusPaused, got.Status)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/resume", nil, &got))
	assert.Equal(t, models.DraftStatusInProgress, got.Status)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, base+"/sync-mode", syncModeRequest{Mode: models.SyncModeManual}, &got))
	assert.Equal(t, models.SyncModeManual, got.SyncMode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, base+"/sync-mode", syncModeRequest{Mode: "CARRIER"}, nil))

	assert.Equal(t, []events.Type{
		events.TypeStatusChange, events.TypeStatusChange, events.TypeStatusChange,
	}, f.notifier.Types(s.ID))
}

func TestSessionNotFoundAndBadID(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/sessions/"+uuid.NewString(), nil, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/sessions/not-a-uuid", nil, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/sessions", map[string]any{"bogus": 1}, nil))
}

func TestRecordPickFillsPlayerDetails(t *testing.T) {
	f := newFixture(t)
	s := f.createSession(t, f.createLeague(t).ID)
	base := "/sessions/" + s.ID.String()

	var got models.DraftSession
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/picks", session.ManualPickRequest{PlayerID: "4034"}, &got))
	require.Len(t, got.DraftedPlayers, 1)
	assert.Equal(t, "Christian McCaffrey", got.DraftedPlayers[0].PlayerName)
	assert.Equal(t, models.PositionRB, got.DraftedPlayers[0].Position)
	assert.Equal(t, 2, got.CurrentPick)
	assert.Equal(t, models.DraftStatusInProgress, got.Status, "first pick starts the draft")

	// same player again at the next pick
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, base+"/picks", session.ManualPickRequest{PickNumber: 2, PlayerID: "4034"}, nil))
	// skipping ahead
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, base+"/picks", session.ManualPickRequest{PickNumber: 5, PlayerID: "6794"}, nil))
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, base+"/picks", session.ManualPickRequest{}, nil))
}

func TestRecommendationsRoute(t *testing.T) {
	f := newFixture(t)
	s := f.createSession(t, f.createLeague(t).ID)
	base := "/sessions/" + s.ID.String()

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, base+"/picks", session.ManualPickRequest{PlayerID: "4046"}, nil))

	var res recommend.Result
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, base+"/recommendations?limit=2", nil, &res))
	require.Len(t, res.Recommendations, 2)
	for _, rec := range res.Recommendations {
		assert.NotEqual(t, "4046", rec.PlayerID, "drafted players are never recommended")
	}
	assert.Equal(t, 2, res.CurrentPick)
	assert.False(t, res.Stale)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, base+"/recommendations?limit=abc", nil, nil))
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/sessions/"+uuid.NewString()+"/recommendations", nil, nil))
}

func TestEngineRoutes(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()

	var resp syncResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/sessions/"+id.String()+"/sync", nil, &resp))
	assert.Equal(t, livesync.OutcomeSynced, resp.Outcome)
	assert.Equal(t, []uuid.UUID{id}, f.syncer.synced)

	var status livesync.Status
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/engine", nil, &status))
	assert.True(t, status.Running)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", nil, nil))
}
