package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/livedraft/go/internal/models"
)

// Event payload types shared by the sync engine, the manual pick path and every
// notification channel. The set is closed: only types in this file implement Event.

// Type identifies an event on the wire.
type Type string

const (
	TypePickMade     Type = "pick_made"
	TypeUserOnClock  Type = "user_on_clock"
	TypeStatusChange Type = "status_change"
	TypeSyncError    Type = "sync_error"
	TypeAuthRequired Type = "auth_required"
)

// Event is implemented only by the payload types in this package.
type Event interface {
	Type() Type
	Validate() error
	isEvent()
}

var ErrInvalidEvent = errors.New("invalid event")

// PickMade is emitted once per newly applied pick, in pick order.
type PickMade struct {
	PickNumber int             `json:"pick_number"`
	Round      int             `json:"round"`
	PlayerID   string          `json:"player_id"`
	PlayerName string          `json:"player_name"`
	Position   models.Position `json:"position"`
	NFLTeam    string          `json:"nfl_team"`
	TeamID     string          `json:"team_id"`
	IsUserPick bool            `json:"is_user_pick"`
	PickedAt   time.Time       `json:"picked_at"`
}

func (PickMade) Type() Type { return TypePickMade }
func (PickMade) isEvent()   {}

func (e PickMade) Validate() error {
	if e.PickNumber < 1 {
		return fmt.Errorf("%w: pick_made pick number %d", ErrInvalidEvent, e.PickNumber)
	}
	if e.PlayerID == "" {
		return fmt.Errorf("%w: pick_made without player id", ErrInvalidEvent)
	}
	return nil
}

// PickMadeFromRecord builds the event for an applied pick.
func PickMadeFromRecord(p models.PickRecord) PickMade {
	return PickMade{
		PickNumber: p.PickNumber,
		Round:      p.Round,
		PlayerID:   p.PlayerID,
		PlayerName: p.PlayerName,
		Position:   p.Position,
		NFLTeam:    p.NFLTeam,
		TeamID:     p.TeamID,
		IsUserPick: p.IsUserPick,
		PickedAt:   p.PickedAt,
	}
}

// UserOnClock is emitted when the user's slot becomes the current pick.
type UserOnClock struct {
	PickNumber int       `json:"pick_number"`
	Round      int       `json:"round"`
	OnClockAt  time.Time `json:"on_clock_at"`
}

func (UserOnClock) Type() Type { return TypeUserOnClock }
func (UserOnClock) isEvent()   {}

func (e UserOnClock) Validate() error {
	if e.PickNumber < 1 || e.Round < 1 {
		return fmt.Errorf("%w: user_on_clock pick %d round %d", ErrInvalidEvent, e.PickNumber, e.Round)
	}
	return nil
}

// StatusChange is emitted on every draft lifecycle transition.
type StatusChange struct {
	From      models.DraftStatus `json:"from"`
	To        models.DraftStatus `json:"to"`
	Reason    string             `json:"reason,omitempty"`
	ChangedAt time.Time          `json:"changed_at"`
}

func (StatusChange) Type() Type { return TypeStatusChange }
func (StatusChange) isEvent()   {}

func (e StatusChange) Validate() error {
	if e.To == "" || e.From == e.To {
		return fmt.Errorf("%w: status_change %q -> %q", ErrInvalidEvent, e.From, e.To)
	}
	return nil
}

// SyncError reports a failed sync or a rejected inconsistent pick.
type SyncError struct {
	Kind                models.SyncErrorKind `json:"kind"`
	Message             string               `json:"message"`
	PickNumber          int                  `json:"pick_number,omitempty"`
	ConsecutiveFailures int                  `json:"consecutive_failures,omitempty"`
	OccurredAt          time.Time            `json:"occurred_at"`
}

func (SyncError) Type() Type { return TypeSyncError }
func (SyncError) isEvent()   {}

func (e SyncError) Validate() error {
	if e.Kind == "" || e.Message == "" {
		return fmt.Errorf("%w: sync_error needs kind and message", ErrInvalidEvent)
	}
	return nil
}

// AuthRequired tells the user their upstream credentials need attention.
type AuthRequired struct {
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (AuthRequired) Type() Type { return TypeAuthRequired }
func (AuthRequired) isEvent()   {}

func (e AuthRequired) Validate() error {
	if e.Message == "" {
		return fmt.Errorf("%w: auth_required without message", ErrInvalidEvent)
	}
	return nil
}
