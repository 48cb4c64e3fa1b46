package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livedraft/go/internal/draft/events"
	"github.com/mcdev12/livedraft/go/internal/draft/snake"
	"github.com/mcdev12/livedraft/go/internal/models"
)

// App implements session lifecycle and the manual pick path.
type App struct {
	store         Store
	leagues       LeagueReader
	locker        *Locker
	notifier      Notifier
	clock         clockwork.Clock
	maxSyncErrors int
}

// NewApp creates a new session App. The locker must be shared with the sync engine.
func NewApp(store Store, leagues LeagueReader, locker *Locker, notifier Notifier, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		store:         store,
		leagues:       leagues,
		locker:        locker,
		notifier:      notifier,
		clock:         clock,
		maxSyncErrors: DefaultMaxSyncErrors,
	}
}

// CreateSession opens a new session for a user in a league.
func (a *App) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.DraftSession, error) {
	league, err := a.leagues.GetLeague(ctx, req.LeagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to get league: %w", err)
	}
	if req.TeamCount == 0 {
		req.TeamCount = league.TeamCount
	}
	if req.TotalRounds == 0 {
		req.TotalRounds = league.Roster.TotalSlots()
	}
	if req.SyncMode == "" {
		req.SyncMode = models.SyncModeLive
		if league.Platform == models.PlatformManual {
			req.SyncMode = models.SyncModeManual
		}
	}
	if err := a.validateCreateSessionRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	now := a.clock.Now().UTC()
	s := &models.DraftSession{
		ID:               uuid.New(),
		LeagueID:         req.LeagueID,
		UserID:           req.UserID,
		SessionToken:     req.SessionToken,
		UserTeamID:       req.UserTeamID,
		TeamCount:        req.TeamCount,
		UserPickPosition: req.UserPickPosition,
		TotalRounds:      req.TotalRounds,
		TotalPicks:       req.TeamCount * req.TotalRounds,
		CurrentPick:      1,
		CurrentRound:     1,
		Status:           models.DraftStatusNotStarted,
		SyncMode:         req.SyncMode,
		DraftedPlayers:   []models.PickRecord{},
		UserRoster:       []models.PickRecord{},
		LastActivityAt:   now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	clock, _ := snake.NewClock(s.TeamCount, s.UserPickPosition, s.TotalRounds)
	RefreshClock(s, clock, "", now)

	if err := a.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create draft session: %w", err)
	}

	log.Info().
		Str("session_id", s.ID.String()).
		Str("league_id", s.LeagueID.String()).
		Str("sync_mode", string(s.SyncMode)).
		Int("team_count", s.TeamCount).
		Int("user_pick_position", s.UserPickPosition).
		Msg("draft session created")
	return s, nil
}

// GetSession retrieves a session by ID
func (a *App) GetSession(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
	s, err := a.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get draft session: %w", err)
	}
	return s, nil
}

// StartDraft moves a NOT_STARTED session to IN_PROGRESS.
func (a *App) StartDraft(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
	return a.mutate(ctx, id, func(s *models.DraftSession) ([]events.Event, error) {
		return a.changeStatus(s, models.DraftStatusInProgress, "draft started")
	})
}

// PauseDraft moves an IN_PROGRESS session to PAUSED.
func (a *App) PauseDraft(ctx context.Context, id uuid.UUID, reason string) (*models.DraftSession, error) {
	if reason == "" {
		reason = "paused by user"
	}
	return a.mutate(ctx, id, func(s *models.DraftSession) ([]events.Event, error) {
		return a.changeStatus(s, models.DraftStatusPaused, reason)
	})
}

// ResumeDraft moves a PAUSED session back to IN_PROGRESS.
func (a *App) ResumeDraft(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
	return a.mutate(ctx, id, func(s *models.DraftSession) ([]events.Event, error) {
		if s.Status != models.DraftStatusPaused {
			return nil, fmt.Errorf("%w: cannot resume a %s draft", ErrInvalidTransition, s.Status)
		}
		return a.changeStatus(s, models.DraftStatusInProgress, "draft resumed")
	})
}

// SetSyncMode switches how picks reach the session. Returning to LIVE clears the
// credential flag, since the caller is expected to have fixed the credentials.
func (a *App) SetSyncMode(ctx context.Context, id uuid.UUID, mode models.SyncMode) (*models.DraftSession, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown sync mode %q", ErrValidation, mode)
	}
	return a.mutate(ctx, id, func(s *models.DraftSession) ([]events.Event, error) {
		switch mode {
		case models.SyncModeLive:
			s.NeedsCredentialUpdate = false
		case models.SyncModeManual, models.SyncModePaused:
		}
		s.SyncMode = mode
		return nil, nil
	})
}

// RecordManualPick applies one user-entered pick with the same dedup and
// ordering rules the sync engine uses.
func (a *App) RecordManualPick(ctx context.Context, id uuid.UUID, req ManualPickRequest) (*models.DraftSession, error) {
	if err := a.validateManualPickRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return a.mutate(ctx, id, func(s *models.DraftSession) ([]events.Event, error) {
		switch s.Status {
		case models.DraftStatusCompleted:
			return nil, ErrDraftCompleted
		case models.DraftStatusPaused:
			return nil, ErrDraftPaused
		}

		pickNumber := req.PickNumber
		if pickNumber == 0 {
			pickNumber = s.CurrentPick
		}
		pick := models.PickRecord{
			PickNumber: pickNumber,
			PlayerID:   req.PlayerID,
			PlayerName: req.PlayerName,
			Position:   models.ParsePosition(req.Position),
			NFLTeam:    req.NFLTeam,
			TeamID:     req.TeamID,
		}

		res, err := Reconcile(s, ReconcileInput{
			Picks:         []models.PickRecord{pick},
			Now:           a.clock.Now().UTC(),
			MaxSyncErrors: a.maxSyncErrors,
		})
		if err != nil {
			return nil, err
		}
		if len(res.Conflicts) > 0 {
			return nil, res.Conflicts[0]
		}
		if len(res.Applied) == 0 && res.Duplicates == 0 {
			return nil, fmt.Errorf("%w: got pick %d, current pick is %d", ErrPickOutOfOrder, pickNumber, s.CurrentPick)
		}

		log.Info().
			Str("session_id", s.ID.String()).
			Int("pick_number", pickNumber).
			Str("player_id", req.PlayerID).
			Int("applied", len(res.Applied)).
			Msg("manual pick recorded")
		return res.Events, nil
	})
}

// mutate runs fn under the session lock, persists the result and then emits
// the returned events in order. Nothing is emitted if the save fails.
func (a *App) mutate(ctx context.Context, id uuid.UUID, fn func(s *models.DraftSession) ([]events.Event, error)) (*models.DraftSession, error) {
	unlock := a.locker.Lock(id)
	defer unlock()

	s, err := a.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft session: %w", err)
	}

	evs, err := fn(s)
	if err != nil {
		return nil, err
	}

	if err := a.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save draft session: %w", err)
	}

	a.emit(ctx, s.ID, evs)
	return s, nil
}

func (a *App) changeStatus(s *models.DraftSession, to models.DraftStatus, reason string) ([]events.Event, error) {
	now := a.clock.Now().UTC()
	ev, err := transition(s, to, reason, now)
	if err != nil {
		return nil, err
	}
	s.LastActivityAt = now

	evs := []events.Event{ev}
	clock, err := snake.NewClock(s.TeamCount, s.UserPickPosition, s.TotalRounds)
	if err != nil {
		return nil, err
	}
	if to == models.DraftStatusPaused {
		s.UserOnClock = false
	}
	if onClock, _ := RefreshClock(s, clock, "", now); onClock != nil {
		evs = append(evs, *onClock)
	}
	return evs, nil
}

func (a *App) emit(ctx context.Context, sessionID uuid.UUID, evs []events.Event) {
	if a.notifier == nil {
		return
	}
	for _, ev := range evs {
		if err := a.notifier.Emit(ctx, sessionID, ev); err != nil {
			log.Error().
				Err(err).
				Str("session_id", sessionID.String()).
				Str("event_type", string(ev.Type())).
				Msg("failed to emit session event")
		}
	}
}

func (a *App) validateCreateSessionRequest(req CreateSessionRequest) error {
	if req.LeagueID == uuid.Nil {
		return errors.New("league_id is required")
	}
	if req.UserID == uuid.Nil {
		return errors.New("user_id is required")
	}
	if _, err := snake.NewClock(req.TeamCount, req.UserPickPosition, req.TotalRounds); err != nil {
		return err
	}
	if req.TotalRounds < 1 {
		return errors.New("total_rounds must be positive")
	}
	if !req.SyncMode.Valid() {
		return fmt.Errorf("unknown sync mode %q", req.SyncMode)
	}
	return nil
}

func (a *App) validateManualPickRequest(req ManualPickRequest) error {
	if strings.TrimSpace(req.PlayerID) == "" {
		return errors.New("player_id is required")
	}
	if req.PickNumber < 0 {
		return errors.New("pick_number must not be negative")
	}
	return nil
}
