package session

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livedraft/go/internal/draft/events"
	"github.com/mcdev12/livedraft/go/internal/draft/snake"
	"github.com/mcdev12/livedraft/go/internal/models"
)

// ReconcileInput is a batch of picks from any source plus the upstream on-clock hint.
type ReconcileInput struct {
	Picks           []models.PickRecord
	CurrentPickTeam string
	Now             time.Time
	MaxSyncErrors   int
}

// ReconcileResult describes what Reconcile changed. Events are in application order.
type ReconcileResult struct {
	Applied      []models.PickRecord
	Duplicates   int
	Conflicts    []*DataInconsistencyError
	GapAt        int // first pick number that could not be applied yet, 0 if none
	HintDiverged bool
	Events       []events.Event
}

// Reconcile merges picks into s. It is the only code path that appends to a
// session's draft history, for both feed syncs and manual entry.
//
// Picks are deduplicated against the session's persisted history, applied in
// ascending pick order, and only while they continue the sequence at
// CurrentPick, so CurrentPick == len(DraftedPlayers)+1 always holds.
func Reconcile(s *models.DraftSession, in ReconcileInput) (*ReconcileResult, error) {
	clock, err := snake.NewClock(s.TeamCount, s.UserPickPosition, s.TotalRounds)
	if err != nil {
		return nil, err
	}
	if in.MaxSyncErrors <= 0 {
		in.MaxSyncErrors = DefaultMaxSyncErrors
	}

	res := &ReconcileResult{}

	byPick := make(map[int]models.PickRecord, len(s.DraftedPlayers))
	byPlayer := make(map[string]int, len(s.DraftedPlayers))
	for _, p := range s.DraftedPlayers {
		byPick[p.PickNumber] = p
		byPlayer[p.PlayerID] = p.PickNumber
	}

	incoming := append([]models.PickRecord(nil), in.Picks...)
	sort.SliceStable(incoming, func(i, j int) bool { return incoming[i].PickNumber < incoming[j].PickNumber })

	var pickEvents []events.Event
	for _, p := range incoming {
		if p.PickNumber < 1 || (s.TotalPicks > 0 && p.PickNumber > s.TotalPicks) {
			log.Warn().
				Str("session_id", s.ID.String()).
				Int("pick_number", p.PickNumber).
				Int("total_picks", s.TotalPicks).
				Msg("ignoring pick outside draft range")
			continue
		}

		if prev, ok := byPick[p.PickNumber]; ok {
			if prev.PlayerID == p.PlayerID {
				res.Duplicates++
				continue
			}
			res.Conflicts = append(res.Conflicts, &DataInconsistencyError{
				PickNumber:       p.PickNumber,
				ExistingPlayerID: prev.PlayerID,
				IncomingPlayerID: p.PlayerID,
			})
			continue
		}
		if at, ok := byPlayer[p.PlayerID]; ok {
			res.Conflicts = append(res.Conflicts, &DataInconsistencyError{
				PickNumber:       p.PickNumber,
				IncomingPlayerID: p.PlayerID,
				ExistingPick:     at,
			})
			continue
		}

		if res.GapAt != 0 {
			continue
		}
		if p.PickNumber != s.CurrentPick {
			res.GapAt = s.CurrentPick
			log.Warn().
				Str("session_id", s.ID.String()).
				Int("current_pick", s.CurrentPick).
				Int("pick_number", p.PickNumber).
				Msg("pick feed skipped a pick; holding later picks until it arrives")
			continue
		}

		p = normalizePick(s, clock, p, in.Now)
		s.DraftedPlayers = append(s.DraftedPlayers, p)
		if p.IsUserPick {
			s.UserRoster = append(s.UserRoster, p)
		}
		byPick[p.PickNumber] = p
		byPlayer[p.PlayerID] = p.PickNumber
		s.CurrentPick = p.PickNumber + 1

		res.Applied = append(res.Applied, p)
		pickEvents = append(pickEvents, events.PickMadeFromRecord(p))
	}

	if len(res.Applied) > 0 {
		s.LastActivityAt = in.Now
		if s.Status == models.DraftStatusNotStarted {
			ev, err := transition(s, models.DraftStatusInProgress, "first pick recorded", in.Now)
			if err != nil {
				return nil, err
			}
			res.Events = append(res.Events, ev)
		}
	}
	res.Events = append(res.Events, pickEvents...)

	for _, c := range res.Conflicts {
		if ev, ok := flagInconsistency(s, c, in.Now, in.MaxSyncErrors); ok {
			res.Events = append(res.Events, ev)
		}
	}

	s.CurrentRound = currentRound(s)
	if s.IsComplete() && s.Status == models.DraftStatusInProgress {
		ev, err := transition(s, models.DraftStatusCompleted, "all picks made", in.Now)
		if err != nil {
			return nil, err
		}
		res.Events = append(res.Events, ev)
	}

	ev, diverged := RefreshClock(s, clock, in.CurrentPickTeam, in.Now)
	res.HintDiverged = diverged
	if ev != nil {
		res.Events = append(res.Events, *ev)
	}

	return res, nil
}

// RefreshClock recomputes the user's next pick and on-clock state from the
// local CurrentPick. The upstream hint is advisory: disagreement is reported
// but never overrides local state. Returns an event only on the off-to-on edge.
func RefreshClock(s *models.DraftSession, clock snake.Clock, hint string, now time.Time) (*events.UserOnClock, bool) {
	if s.Status == models.DraftStatusCompleted || s.IsComplete() {
		s.NextUserPick = 0
		s.PicksUntilTurn = 0
		s.UserOnClock = false
		return nil, false
	}

	s.NextUserPick = clock.NextUserPick(s.CurrentRound, s.CurrentPick)
	s.PicksUntilTurn = snake.PicksUntilTurn(s.NextUserPick, s.CurrentPick)

	onClock := s.Status == models.DraftStatusInProgress && s.NextUserPick == s.CurrentPick

	diverged := false
	if hint != "" && s.UserTeamID != "" && s.Status == models.DraftStatusInProgress {
		if (hint == s.UserTeamID) != onClock {
			diverged = true
			log.Warn().
				Str("session_id", s.ID.String()).
				Str("hint_team", hint).
				Str("user_team", s.UserTeamID).
				Int("current_pick", s.CurrentPick).
				Bool("local_on_clock", onClock).
				Msg("upstream on-clock hint disagrees with local pick clock")
		}
	}

	wasOnClock := s.UserOnClock
	s.UserOnClock = onClock
	if onClock && !wasOnClock {
		return &events.UserOnClock{PickNumber: s.CurrentPick, Round: s.CurrentRound, OnClockAt: now}, diverged
	}
	return nil, diverged
}

// TeamForSlot returns the team id used for picks owned by a draft slot when the
// source did not name one.
func TeamForSlot(s *models.DraftSession, slot int) string {
	if slot == s.UserPickPosition && s.UserTeamID != "" {
		return s.UserTeamID
	}
	return fmt.Sprintf("slot-%d", slot)
}

func normalizePick(s *models.DraftSession, clock snake.Clock, p models.PickRecord, now time.Time) models.PickRecord {
	if round, err := snake.RoundForPick(p.PickNumber, s.TeamCount); err == nil {
		p.Round = round
	}
	if p.TeamID == "" {
		if slot, err := snake.SlotForPick(p.PickNumber, s.TeamCount); err == nil {
			p.TeamID = TeamForSlot(s, slot)
		}
	}
	if s.UserTeamID != "" {
		p.IsUserPick = p.TeamID == s.UserTeamID
	} else {
		p.IsUserPick = clock.IsUserPick(p.PickNumber)
	}
	if p.PickedAt.IsZero() {
		p.PickedAt = now
	}
	return p
}

func currentRound(s *models.DraftSession) int {
	if s.TeamCount < 1 {
		return 0
	}
	pick := s.CurrentPick
	if s.TotalPicks > 0 && pick > s.TotalPicks {
		pick = s.TotalPicks
	}
	if pick < 1 {
		pick = 1
	}
	round, _ := snake.RoundForPick(pick, s.TeamCount)
	return round
}

// flagInconsistency marks the session for review once per distinct conflict.
func flagInconsistency(s *models.DraftSession, c *DataInconsistencyError, now time.Time, maxErrors int) (events.Event, bool) {
	note := c.Error()
	for _, existing := range s.ReviewNotes {
		if existing == note {
			return nil, false
		}
	}

	log.Error().
		Str("session_id", s.ID.String()).
		Int("pick_number", c.PickNumber).
		Str("existing_player_id", c.ExistingPlayerID).
		Str("incoming_player_id", c.IncomingPlayerID).
		Msg("conflicting pick from upstream; keeping first record")

	s.NeedsReview = true
	s.ReviewNotes = append(s.ReviewNotes, note)
	s.RecordSyncError(models.SyncError{
		Kind:       models.SyncErrorDataInconsistency,
		Message:    note,
		OccurredAt: now,
	}, maxErrors)

	return events.SyncError{
		Kind:       models.SyncErrorDataInconsistency,
		Message:    note,
		PickNumber: c.PickNumber,
		OccurredAt: now,
	}, true
}
