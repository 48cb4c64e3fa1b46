package sleeper_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livedraft/go/clients"
	"github.com/mcdev12/livedraft/go/internal/draft/feed"
	"github.com/mcdev12/livedraft/go/internal/draft/snake"
	"github.com/mcdev12/livedraft/go/internal/models"
)

// ErrDraftNotFound is returned when a league has no draft for the requested season.
var ErrDraftNotFound = errors.New("no draft found for league season")

// SleeperClient reads live draft picks from the Sleeper REST API.
type SleeperClient struct {
	*clients.BaseClient
}

var _ feed.PickFeed = (*SleeperClient)(nil)

// NewSleeperClient creates a client. token may be empty for public leagues.
func NewSleeperClient(baseURL, token string) *SleeperClient {
	if baseURL == "" {
		baseURL = BaseURL
	}
	client := &SleeperClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	client.SetHeader(JsonHeader, JsonContentType)
	if token != "" {
		client.SetHeader(AuthHeader, token)
	}

	return client
}

// Fetch implements feed.PickFeed. A session token on ctx replaces the client's token.
func (c *SleeperClient) Fetch(ctx context.Context, leagueID, season string) (*feed.Result, error) {
	if token, ok := feed.SessionToken(ctx); ok {
		ctx = clients.WithHeader(ctx, AuthHeader, token)
	}

	draft, err := c.findDraft(ctx, leagueID, season)
	if err != nil {
		return nil, err
	}

	// The league listing can be cached upstream; the draft endpoint is authoritative.
	current, err := c.getDraft(ctx, draft.DraftID)
	if err != nil {
		return nil, err
	}

	slPicks, err := c.getPicks(ctx, current.DraftID)
	if err != nil {
		return nil, err
	}

	picks := make([]models.PickRecord, 0, len(slPicks))
	for _, p := range slPicks {
		if p.PickNo < 1 || p.PlayerID == "" {
			log.Warn().
				Str("draft_id", current.DraftID).
				Int("pick_no", p.PickNo).
				Msg("skipping malformed sleeper pick")
			continue
		}
		picks = append(picks, models.PickRecord{
			PickNumber: p.PickNo,
			Round:      p.Round,
			PlayerID:   string(p.PlayerID),
			PlayerName: p.playerName(),
			Position:   models.ParsePosition(p.Metadata.Position),
			NFLTeam:    p.Metadata.Team,
			TeamID:     string(p.RosterID),
		})
	}
	sort.SliceStable(picks, func(i, j int) bool { return picks[i].PickNumber < picks[j].PickNumber })

	res := &feed.Result{
		DraftInProgress: current.Status == statusDrafting || current.Status == statusPaused,
		DraftCompleted:  current.Status == statusComplete,
		Picks:           picks,
	}
	if res.DraftInProgress {
		res.CurrentPickTeam = currentPickTeam(current, len(picks))
	}
	return res, nil
}

func (c *SleeperClient) findDraft(ctx context.Context, leagueID, season string) (*SLDraft, error) {
	body, err := c.Get(ctx, fmt.Sprintf(leagueDraftsPath, url.PathEscape(leagueID)))
	if err != nil {
		return nil, classify("league drafts", err)
	}

	var drafts []SLDraft
	if err := json.Unmarshal(body, &drafts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal league drafts: %w", err)
	}

	for i := range drafts {
		if season == "" || drafts[i].Season == season {
			return &drafts[i], nil
		}
	}
	return nil, fmt.Errorf("%w: league %s season %s", ErrDraftNotFound, leagueID, season)
}

func (c *SleeperClient) getDraft(ctx context.Context, draftID string) (*SLDraft, error) {
	body, err := c.Get(ctx, fmt.Sprintf(draftPath, url.PathEscape(draftID)))
	if err != nil {
		return nil, classify("draft", err)
	}

	var draft SLDraft
	if err := json.Unmarshal(body, &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &draft, nil
}

func (c *SleeperClient) getPicks(ctx context.Context, draftID string) ([]SLPick, error) {
	body, err := c.Get(ctx, fmt.Sprintf(draftPicksPath, url.PathEscape(draftID)))
	if err != nil {
		return nil, classify("draft picks", err)
	}

	var picks []SLPick
	if err := json.Unmarshal(body, &picks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft picks: %w", err)
	}
	return picks, nil
}

// currentPickTeam derives the roster on the clock from the slot map. Empty when unknown.
func currentPickTeam(d *SLDraft, picksMade int) string {
	if d.Settings.Teams < 1 || len(d.SlotToRosterID) == 0 {
		return ""
	}
	next := picksMade + 1
	if d.Settings.Rounds > 0 && next > d.Settings.Rounds*d.Settings.Teams {
		return ""
	}
	slot, err := snake.SlotForPick(next, d.Settings.Teams)
	if err != nil {
		return ""
	}
	return d.rosterForSlot(slot)
}

// classify maps transport failures onto the feed error taxonomy.
func classify(op string, err error) error {
	if se, ok := clients.AsStatusError(err); ok {
		switch {
		case se.Unauthorized():
			return &feed.AuthError{Op: op, StatusCode: se.StatusCode, Err: err}
		case se.Retryable():
			return &feed.TransientFetchError{Op: op, StatusCode: se.StatusCode, Err: err}
		default:
			return fmt.Errorf("sleeper %s: %w", op, err)
		}
	}
	// Anything that never produced a response (DNS, reset, timeout) is worth retrying.
	return &feed.TransientFetchError{Op: op, Err: err}
}
