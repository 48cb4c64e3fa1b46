package leagues

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livedraft/go/internal/models"
)

// LeaguesRepository defines what the app layer needs from the repository
type LeaguesRepository interface {
	CreateLeague(ctx context.Context, league *models.League) error
	GetLeague(ctx context.Context, id uuid.UUID) (*models.League, error)
	ListLeagues(ctx context.Context) ([]models.League, error)
}

// App handles leagues business logic
type App struct {
	repo  LeaguesRepository
	clock clockwork.Clock
}

// NewApp creates a new leagues App
func NewApp(repo LeaguesRepository, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		repo:  repo,
		clock: clock,
	}
}

// CreateLeague creates a new league with validation
func (a *App) CreateLeague(ctx context.Context, req CreateLeagueRequest) (*models.League, error) {
	if req.Roster == (models.RosterRequirements{}) {
		req.Roster = models.DefaultRosterRequirements()
	}
	if req.Scoring == "" {
		req.Scoring = models.ScoringStandard
	}
	if req.Platform == "" {
		req.Platform = models.PlatformSleeper
	}
	if err := a.validateCreateLeagueRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	now := a.clock.Now().UTC().Truncate(time.Microsecond)
	league := &models.League{
		ID:               uuid.New(),
		Name:             req.Name,
		Platform:         req.Platform,
		ExternalLeagueID: req.ExternalLeagueID,
		Season:           req.Season,
		TeamCount:        req.TeamCount,
		Roster:           req.Roster,
		Scoring:          req.Scoring,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := a.repo.CreateLeague(ctx, league); err != nil {
		return nil, fmt.Errorf("failed to create league: %w", err)
	}

	log.Info().
		Str("league_id", league.ID.String()).
		Str("platform", string(league.Platform)).
		Str("external_league_id", league.ExternalLeagueID).
		Int("team_count", league.TeamCount).
		Msg("league created")
	return league, nil
}

// GetLeague retrieves a league by ID
func (a *App) GetLeague(ctx context.Context, id uuid.UUID) (*models.League, error) {
	league, err := a.repo.GetLeague(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get league: %w", err)
	}
	return league, nil
}

func (a *App) ListLeagues(ctx context.Context) ([]models.League, error) {
	leagues, err := a.repo.ListLeagues(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list leagues: %w", err)
	}
	return leagues, nil
}

// validateCreateLeagueRequest validates create league request
func (a *App) validateCreateLeagueRequest(req CreateLeagueRequest) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if req.Season == "" {
		return fmt.Errorf("season is required")
	}
	if req.TeamCount < 1 {
		return fmt.Errorf("team_count must be positive, got %d", req.TeamCount)
	}
	if err := a.validatePlatform(req.Platform); err != nil {
		return err
	}
	if req.Platform != models.PlatformManual && req.ExternalLeagueID == "" {
		return fmt.Errorf("external_league_id is required for %s leagues", req.Platform)
	}
	if err := a.validateScoring(req.Scoring); err != nil {
		return err
	}
	if req.Roster.TotalSlots() < 1 {
		return fmt.Errorf("roster must have at least one slot")
	}
	return nil
}

func (a *App) validatePlatform(p models.Platform) error {
	switch p {
	case models.PlatformSleeper, models.PlatformManual:
		return nil
	default:
		return fmt.Errorf("invalid platform: %s", p)
	}
}

func (a *App) validateScoring(s models.ScoringSystem) error {
	switch s {
	case models.ScoringStandard, models.ScoringHalfPPR, models.ScoringPPR:
		return nil
	default:
		return fmt.Errorf("invalid scoring system: %s", s)
	}
}
