package models

import (
	"time"

	"github.com/google/uuid"
)

// DraftStatus defines the lifecycle status of a draft session.
type DraftStatus string

const (
	DraftStatusNotStarted DraftStatus = "NOT_STARTED"
	DraftStatusInProgress DraftStatus = "IN_PROGRESS"
	DraftStatusPaused     DraftStatus = "PAUSED"
	DraftStatusCompleted  DraftStatus = "COMPLETED"
)

// SyncMode defines how picks reach a session.
type SyncMode string

const (
	// SyncModeLive sessions are polled against the upstream pick feed.
	SyncModeLive SyncMode = "LIVE"
	// SyncModeManual sessions only receive picks through manual entry.
	SyncModeManual SyncMode = "MANUAL"
	// SyncModePaused sessions are not polled, usually until credentials are fixed.
	SyncModePaused SyncMode = "PAUSED"
)

// PollsFeed reports whether the sync engine should poll the upstream feed.
func (m SyncMode) PollsFeed() bool {
	switch m {
	case SyncModeLive:
		return true
	case SyncModeManual, SyncModePaused:
		return false
	default:
		return false
	}
}

// Valid reports whether m is a known sync mode.
func (m SyncMode) Valid() bool {
	switch m {
	case SyncModeLive, SyncModeManual, SyncModePaused:
		return true
	default:
		return false
	}
}

// SyncErrorKind classifies entries in a session's error log.
type SyncErrorKind string

const (
	SyncErrorTransient         SyncErrorKind = "transient"
	SyncErrorAuth              SyncErrorKind = "auth"
	SyncErrorFeed              SyncErrorKind = "feed" // upstream answered but the draft is unusable
	SyncErrorDataInconsistency SyncErrorKind = "data_inconsistency"
)

// SyncError is one entry in a session's bounded error log.
type SyncError struct {
	Kind       SyncErrorKind `json:"kind"`
	Message    string        `json:"message"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// DraftSession is one user's view of one live draft.
type DraftSession struct {
	ID           uuid.UUID `json:"id"`
	LeagueID     uuid.UUID `json:"league_id"`
	UserID       uuid.UUID `json:"user_id"`
	SessionToken string    `json:"-"`
	UserTeamID   string    `json:"user_team_id"`

	TeamCount        int `json:"team_count"`
	UserPickPosition int `json:"user_pick_position"`
	TotalRounds      int `json:"total_rounds"`
	TotalPicks       int `json:"total_picks"`

	CurrentPick    int         `json:"current_pick"`
	CurrentRound   int         `json:"current_round"`
	Status         DraftStatus `json:"status"`
	SyncMode       SyncMode    `json:"sync_mode"`
	UserOnClock    bool        `json:"user_on_clock"`
	NextUserPick   int         `json:"next_user_pick"`
	PicksUntilTurn int         `json:"picks_until_turn"`

	DraftedPlayers []PickRecord `json:"drafted_players"`
	UserRoster     []PickRecord `json:"user_roster"`

	LastSyncAt            *time.Time  `json:"last_sync_at,omitempty"`
	LastActivityAt        time.Time   `json:"last_activity_at"`
	SyncErrors            []SyncError `json:"sync_errors"`
	NeedsCredentialUpdate bool        `json:"needs_credential_update"`
	NeedsReview           bool        `json:"needs_review"`
	ReviewNotes           []string    `json:"review_notes,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (s *DraftSession) Clone() *DraftSession {
	if s == nil {
		return nil
	}
	c := *s
	c.DraftedPlayers = append([]PickRecord(nil), s.DraftedPlayers...)
	c.UserRoster = append([]PickRecord(nil), s.UserRoster...)
	c.SyncErrors = append([]SyncError(nil), s.SyncErrors...)
	c.ReviewNotes = append([]string(nil), s.ReviewNotes...)
	if s.LastSyncAt != nil {
		t := *s.LastSyncAt
		c.LastSyncAt = &t
	}
	return &c
}

// IsComplete reports whether every pick in the draft has been made.
func (s *DraftSession) IsComplete() bool {
	return s.TotalPicks > 0 && s.CurrentPick > s.TotalPicks
}

// DraftedPlayerIDs returns the set of player ids already taken.
func (s *DraftSession) DraftedPlayerIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.DraftedPlayers))
	for _, p := range s.DraftedPlayers {
		ids[p.PlayerID] = struct{}{}
	}
	return ids
}

// RecordSyncError appends to the error log, dropping the oldest entries past limit.
func (s *DraftSession) RecordSyncError(e SyncError, limit int) {
	s.SyncErrors = append(s.SyncErrors, e)
	if limit > 0 && len(s.SyncErrors) > limit {
		s.SyncErrors = append([]SyncError(nil), s.SyncErrors[len(s.SyncErrors)-limit:]...)
	}
}

// HasRecentSyncErrors reports whether an error was logged after the last successful sync.
func (s *DraftSession) HasRecentSyncErrors() bool {
	if len(s.SyncErrors) == 0 {
		return false
	}
	last := s.SyncErrors[len(s.SyncErrors)-1].OccurredAt
	return s.LastSyncAt == nil || last.After(*s.LastSyncAt)
}
