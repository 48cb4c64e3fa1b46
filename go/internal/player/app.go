package player

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/livedraft/go/internal/models"
)

// PlayerRepository defines what the app layer needs from the repository
type PlayerRepository interface {
	ListPlayers(ctx context.Context, season string) ([]models.Player, error)
	UpsertPlayers(ctx context.Context, season string, players []models.Player) (ImportResult, error)
}

// ImportResult reports a projections import
type ImportResult struct {
	Total   int `json:"total"`
	Written int `json:"written"`
	Skipped int `json:"skipped"`
}

// season is one loaded pool plus an id index into it.
type season struct {
	players  []models.Player
	byID     map[string]int
	loadedAt time.Time
}

// App serves the player pool. Seasons are cached for ttl since projections
// change rarely and every recommendation reads the whole pool.
type App struct {
	repo  PlayerRepository
	clock clockwork.Clock
	ttl   time.Duration
	cache *xsync.Map[string, *season]
}

const DefaultCacheTTL = 5 * time.Minute

// NewApp creates a new player App
func NewApp(repo PlayerRepository, clock clockwork.Clock, ttl time.Duration) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &App{
		repo:  repo,
		clock: clock,
		ttl:   ttl,
		cache: xsync.NewMap[string, *season](),
	}
}

// ListPlayers returns the season's pool. Callers must not modify the slice.
func (a *App) ListPlayers(ctx context.Context, seasonID string) ([]models.Player, error) {
	s, err := a.load(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	return s.players, nil
}

// GetPlayer looks a player up by upstream id.
func (a *App) GetPlayer(ctx context.Context, seasonID, playerID string) (*models.Player, error) {
	s, err := a.load(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	i, ok := s.byID[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s in season %s", ErrPlayerNotFound, playerID, seasonID)
	}
	p := s.players[i]
	return &p, nil
}

// ImportPlayers validates and stores projections, then drops the cached season.
func (a *App) ImportPlayers(ctx context.Context, seasonID string, players []models.Player) (ImportResult, error) {
	valid := make([]models.Player, 0, len(players))
	skipped := 0
	for _, p := range players {
		p.Position = models.ParsePosition(string(p.Position))
		if p.ID == "" || p.FullName == "" || p.Position == "" {
			skipped++
			continue
		}
		valid = append(valid, p)
	}

	res, err := a.repo.UpsertPlayers(ctx, seasonID, valid)
	res.Total = len(players)
	res.Skipped = skipped
	if err != nil {
		return res, fmt.Errorf("failed to import players: %w", err)
	}
	a.cache.Delete(seasonID)

	log.Info().
		Str("season", seasonID).
		Int("total", res.Total).
		Int("written", res.Written).
		Int("skipped", res.Skipped).
		Msg("player projections imported")
	return res, nil
}

func (a *App) load(ctx context.Context, seasonID string) (*season, error) {
	now := a.clock.Now()
	if s, ok := a.cache.Load(seasonID); ok && now.Sub(s.loadedAt) < a.ttl {
		return s, nil
	}

	players, err := a.repo.ListPlayers(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	s := &season{players: players, byID: make(map[string]int, len(players)), loadedAt: now}
	for i, p := range players {
		s.byID[p.ID] = i
	}
	a.cache.Store(seasonID, s)

	log.Debug().
		Str("season", seasonID).
		Int("players", len(players)).
		Msg("player pool loaded")
	return s, nil
}
