package session

import (
	"fmt"
	"time"

	"github.com/mcdev12/livedraft/go/internal/draft/events"
	"github.com/mcdev12/livedraft/go/internal/models"
)

var allowedTransitions = map[models.DraftStatus][]models.DraftStatus{
	models.DraftStatusNotStarted: {models.DraftStatusInProgress},
	models.DraftStatusInProgress: {models.DraftStatusPaused, models.DraftStatusCompleted},
	models.DraftStatusPaused:     {models.DraftStatusInProgress},
	models.DraftStatusCompleted:  {},
}

// CanTransition reports whether a session may move from one status to another.
func CanTransition(from, to models.DraftStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// transition moves s to a new status and returns the matching event.
func transition(s *models.DraftSession, to models.DraftStatus, reason string, now time.Time) (events.StatusChange, error) {
	from := s.Status
	if !CanTransition(from, to) {
		return events.StatusChange{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	s.Status = to
	return events.StatusChange{From: from, To: to, Reason: reason, ChangedAt: now}, nil
}

// Complete moves s to COMPLETED, passing through IN_PROGRESS if the draft
// finished before any pick was seen locally.
func Complete(s *models.DraftSession, reason string, now time.Time) ([]events.Event, error) {
	var evs []events.Event
	if s.Status == models.DraftStatusCompleted {
		return nil, nil
	}
	if s.Status == models.DraftStatusNotStarted || s.Status == models.DraftStatusPaused {
		ev, err := transition(s, models.DraftStatusInProgress, reason, now)
		if err != nil {
			return nil, err
		}
		evs = append(evs, ev)
	}
	ev, err := transition(s, models.DraftStatusCompleted, reason, now)
	if err != nil {
		return nil, err
	}
	s.UserOnClock = false
	s.NextUserPick = 0
	s.PicksUntilTurn = 0
	return append(evs, ev), nil
}

// Begin moves a NOT_STARTED session to IN_PROGRESS when upstream reports the
// draft has started. It is a no-op in any other status.
func Begin(s *models.DraftSession, reason string, now time.Time) ([]events.Event, error) {
	if s.Status != models.DraftStatusNotStarted {
		return nil, nil
	}
	ev, err := transition(s, models.DraftStatusInProgress, reason, now)
	if err != nil {
		return nil, err
	}
	return []events.Event{ev}, nil
}
