package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/livedraft/go/internal/models"
)

// countingRepo counts list calls so cache behavior is observable.
type countingRepo struct {
	*MemoryRepository
	lists   int
	listErr error
}

func (r *countingRepo) ListPlayers(ctx context.Context, season string) ([]models.Player, error) {
	r.lists++
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.MemoryRepository.ListPlayers(ctx, season)
}

func projection(id, name string, pos models.Position, ppr float64) models.Player {
	return models.Player{
		ID:          id,
		FullName:    name,
		Position:    pos,
		NFLTeam:     "SF",
		Projections: map[models.ScoringSystem]float64{models.ScoringPPR: ppr},
	}
}

func TestImportPlayers(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{MemoryRepository: NewMemoryRepository()}
	app := NewApp(repo, clockwork.NewFakeClock(), time.Minute)

	res, err := app.ImportPlayers(ctx, "2026", []models.Player{
		projection("4034", "Christian McCaffrey", models.PositionRB, 310),
		projection("6794", "Justin Jefferson", "wr", 290),
		{ID: "", FullName: "No Id", Position: models.PositionQB},
		{ID: "9999", FullName: "No Position"},
	})
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Total: 4, Written: 2, Skipped: 2}, res)

	p, err := app.GetPlayer(ctx, "2026", "6794")
	require.NoError(t, err)
	assert.Equal(t, models.PositionWR, p.Position, "positions are normalized on import")

	_, err = app.GetPlayer(ctx, "2025", "6794")
	assert.ErrorIs(t, err, ErrPlayerNotFound, "seasons are separate pools")
}

func TestListPlayersCachesUntilTTL(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	repo := &countingRepo{MemoryRepository: NewMemoryRepository()}
	app := NewApp(repo, clock, time.Minute)

	_, err := repo.UpsertPlayers(ctx, "2026", []models.Player{projection("1", "A", models.PositionQB, 300)})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		players, err := app.ListPlayers(ctx, "2026")
		require.NoError(t, err)
		assert.Len(t, players, 1)
	}
	assert.Equal(t, 1, repo.lists)

	clock.Advance(time.Minute)
	_, err = app.ListPlayers(ctx, "2026")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.lists, "expired season is reloaded")
}

func TestImportInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{MemoryRepository: NewMemoryRepository()}
	app := NewApp(repo, clockwork.NewFakeClock(), time.Hour)

	_, err := app.ImportPlayers(ctx, "2026", []models.Player{projection("1", "A", models.PositionQB, 300)})
	require.NoError(t, err)
	players, err := app.ListPlayers(ctx, "2026")
	require.NoError(t, err)
	require.Len(t, players, 1)

	_, err = app.ImportPlayers(ctx, "2026", []models.Player{
		projection("1", "A", models.PositionQB, 320),
		projection("2", "B", models.PositionTE, 180),
	})
	require.NoError(t, err)

	players, err = app.ListPlayers(ctx, "2026")
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.InDelta(t, 320, players[0].ProjectedPoints(models.ScoringPPR), 1e-9)
}

func TestListPlayersRepositoryError(t *testing.T) {
	repo := &countingRepo{MemoryRepository: NewMemoryRepository(), listErr: errors.New("connection refused")}
	app := NewApp(repo, nil, 0)

	_, err := app.ListPlayers(context.Background(), "2026")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")

	repo.listErr = nil
	_, err = app.ListPlayers(context.Background(), "2026")
	require.NoError(t, err, "failures are not cached")
}
