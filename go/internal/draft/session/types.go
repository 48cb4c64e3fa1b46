package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/livedraft/go/internal/draft/events"
	"github.com/mcdev12/livedraft/go/internal/models"
)

// DefaultMaxSyncErrors bounds the per-session error log.
const DefaultMaxSyncErrors = 20

var (
	ErrSessionNotFound   = errors.New("draft session not found")
	ErrVersionConflict   = errors.New("draft session was modified concurrently")
	ErrInvalidTransition = errors.New("invalid draft status transition")
	ErrDraftCompleted    = errors.New("draft is already completed")
	ErrDraftPaused       = errors.New("draft is paused")
	ErrPickOutOfOrder    = errors.New("pick is not the current pick")
	ErrValidation        = errors.New("validation failed")
)

// DataInconsistencyError reports two different players claimed for the same pick,
// or one player claimed at two different picks. The first record seen wins.
type DataInconsistencyError struct {
	PickNumber       int
	ExistingPlayerID string
	IncomingPlayerID string
	ExistingPick     int // set when the same player appears at another pick
}

func (e *DataInconsistencyError) Error() string {
	if e.ExistingPick != 0 {
		return fmt.Sprintf("player %s at pick %d was already drafted at pick %d",
			e.IncomingPlayerID, e.PickNumber, e.ExistingPick)
	}
	return fmt.Sprintf("pick %d already recorded as player %s, upstream now reports %s",
		e.PickNumber, e.ExistingPlayerID, e.IncomingPlayerID)
}

// Store persists draft sessions by id. Save must reject stale versions with
// ErrVersionConflict and bump Version on success.
type Store interface {
	Create(ctx context.Context, s *models.DraftSession) error
	Load(ctx context.Context, id uuid.UUID) (*models.DraftSession, error)
	Save(ctx context.Context, s *models.DraftSession) error
	ListSyncable(ctx context.Context) ([]uuid.UUID, error)
}

// Notifier receives session events after they are persisted.
type Notifier interface {
	Emit(ctx context.Context, sessionID uuid.UUID, ev events.Event) error
}

// LeagueReader looks up leagues by id.
type LeagueReader interface {
	GetLeague(ctx context.Context, id uuid.UUID) (*models.League, error)
}

// CreateSessionRequest holds the fields needed to open a session. Zero TeamCount
// or TotalRounds are filled in from the league.
type CreateSessionRequest struct {
	LeagueID         uuid.UUID       `json:"league_id"`
	UserID           uuid.UUID       `json:"user_id"`
	SessionToken     string          `json:"session_token"`
	UserTeamID       string          `json:"user_team_id"`
	TeamCount        int             `json:"team_count"`
	UserPickPosition int             `json:"user_pick_position"`
	TotalRounds      int             `json:"total_rounds"`
	SyncMode         models.SyncMode `json:"sync_mode"`
}

// ManualPickRequest records a pick typed in by the user. PickNumber zero means
// the pick currently on the clock; empty TeamID means the slot that owns it.
type ManualPickRequest struct {
	PickNumber int    `json:"pick_number"`
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Position   string `json:"position"`
	NFLTeam    string `json:"nfl_team"`
	TeamID     string `json:"team_id"`
}
