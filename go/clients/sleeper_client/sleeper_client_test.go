package sleeper_client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/livedraft/go/internal/draft/feed"
	"github.com/mcdev12/livedraft/go/internal/models"
)

const leagueDrafts = `[
  {"draft_id": "d-2025", "season": "2025", "status": "complete", "settings": {"teams": 10, "rounds": 16}},
  {"draft_id": "d-2026", "season": "2026", "status": "drafting", "settings": {"teams": 10, "rounds": 16}}
]`

const draftDrafting = `{
  "draft_id": "d-2026", "season": "2026", "status": "drafting",
  "settings": {"teams": 10, "rounds": 16},
  "slot_to_roster_id": {"1": 7, "2": 3, "3": 9, "4": 1, "5": 2, "6": 4, "7": 5, "8": 6, "9": 8, "10": 10}
}`

// Picks deliberately out of order; roster ids mix numbers and strings.
const draftPicks = `[
  {"player_id": "6794", "roster_id": "9", "round": 1, "draft_slot": 3, "pick_no": 3,
   "metadata": {"first_name": "Justin", "last_name": "Jefferson", "position": "WR", "team": "MIN"}},
  {"player_id": "4866", "roster_id": 7, "round": 1, "draft_slot": 1, "pick_no": 1,
   "metadata": {"first_name": "Saquon", "last_name": "Barkley", "position": "RB", "team": "PHI"}},
  {"player_id": 9509, "roster_id": 3, "round": 1, "draft_slot": 2, "pick_no": 2,
   "metadata": {"first_name": "Bijan", "last_name": "Robinson", "position": "RB", "team": "ATL"}}
]`

func newTestServer(t *testing.T, routes map[string]func(w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		handler(w)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func jsonBody(body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func status(code int) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(code)
	}
}

func TestFetchDraftInProgress(t *testing.T) {
	srv := newTestServer(t, map[string]func(http.ResponseWriter){
		"/v1/league/L1/drafts":   jsonBody(leagueDrafts),
		"/v1/draft/d-2026":       jsonBody(draftDrafting),
		"/v1/draft/d-2026/picks": jsonBody(draftPicks),
	})

	client := NewSleeperClient(srv.URL, "")
	res, err := client.Fetch(context.Background(), "L1", "2026")
	require.NoError(t, err)

	assert.True(t, res.DraftInProgress)
	assert.False(t, res.DraftCompleted)
	require.Len(t, res.Picks, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{res.Picks[0].PickNumber, res.Picks[1].PickNumber, res.Picks[2].PickNumber})

	first := res.Picks[0]
	assert.Equal(t, "4866", first.PlayerID)
	assert.Equal(t, "Saquon Barkley", first.PlayerName)
	assert.Equal(t, models.PositionRB, first.Position)
	assert.Equal(t, "7", first.TeamID)
	assert.Equal(t, "9509", res.Picks[1].PlayerID)

	// pick 4 belongs to slot 4, which is roster 1
	assert.Equal(t, "1", res.CurrentPickTeam)
}

func TestFetchCompletedDraft(t *testing.T) {
	srv := newTestServer(t, map[string]func(http.ResponseWriter){
		"/v1/league/L1/drafts":   jsonBody(leagueDrafts),
		"/v1/draft/d-2025":       jsonBody(`{"draft_id": "d-2025", "season": "2025", "status": "complete", "settings": {"teams": 10, "rounds": 16}}`),
		"/v1/draft/d-2025/picks": jsonBody(`[]`),
	})

	res, err := NewSleeperClient(srv.URL, "").Fetch(context.Background(), "L1", "2025")
	require.NoError(t, err)
	assert.True(t, res.DraftCompleted)
	assert.False(t, res.DraftInProgress)
	assert.Empty(t, res.CurrentPickTeam)
}

func TestFetchClassifiesErrors(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		transient bool
		auth      bool
	}{
		{name: "unauthorized", code: http.StatusUnauthorized, auth: true},
		{name: "forbidden", code: http.StatusForbidden, auth: true},
		{name: "rate limited", code: http.StatusTooManyRequests, transient: true},
		{name: "bad gateway", code: http.StatusBadGateway, transient: true},
		{name: "not found is permanent", code: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, map[string]func(http.ResponseWriter){
				"/v1/league/L1/drafts":   jsonBody(leagueDrafts),
				"/v1/draft/d-2026":       jsonBody(draftDrafting),
				"/v1/draft/d-2026/picks": status(tt.code),
			})

			_, err := NewSleeperClient(srv.URL, "token").Fetch(context.Background(), "L1", "2026")
			require.Error(t, err)
			assert.Equal(t, tt.transient, feed.IsTransient(err))
			assert.Equal(t, tt.auth, feed.IsAuth(err))
		})
	}
}

func TestFetchUnreachableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewSleeperClient(url, "").Fetch(context.Background(), "L1", "2026")
	require.Error(t, err)
	assert.True(t, feed.IsTransient(err))
}

func TestFetchUnknownSeason(t *testing.T) {
	srv := newTestServer(t, map[string]func(http.ResponseWriter){
		"/v1/league/L1/drafts": jsonBody(leagueDrafts),
	})

	_, err := NewSleeperClient(srv.URL, "").Fetch(context.Background(), "L1", "2019")
	require.ErrorIs(t, err, ErrDraftNotFound)
}

func TestFetchSendsToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(AuthHeader)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	_, err := NewSleeperClient(srv.URL, "secret").Fetch(context.Background(), "L1", "2026")
	require.Error(t, err)
	assert.True(t, feed.IsAuth(err))
	assert.Equal(t, "secret", got)
}

func TestFetchPrefersSessionToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(AuthHeader)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	ctx := feed.WithSessionToken(context.Background(), "user-token")
	_, err := NewSleeperClient(srv.URL, "shared").Fetch(ctx, "L1", "2026")
	require.Error(t, err)
	assert.True(t, feed.IsAuth(err))
	assert.Equal(t, "user-token", got)

	_, err = NewSleeperClient(srv.URL, "shared").Fetch(feed.WithSessionToken(context.Background(), ""), "L1", "2026")
	require.Error(t, err)
	assert.Equal(t, "shared", got, "no session token keeps the client token")
}
