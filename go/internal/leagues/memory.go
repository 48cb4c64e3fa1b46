package leagues

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/mcdev12/livedraft/go/internal/models"
)

// MemoryRepository keeps leagues in process. Used by tests and the local runner.
type MemoryRepository struct {
	leagues *xsync.Map[uuid.UUID, models.League]
}

var _ LeaguesRepository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{leagues: xsync.NewMap[uuid.UUID, models.League]()}
}

func (m *MemoryRepository) CreateLeague(_ context.Context, league *models.League) error {
	if _, loaded := m.leagues.LoadOrStore(league.ID, *league); loaded {
		return fmt.Errorf("league %s already exists", league.ID)
	}
	return nil
}

func (m *MemoryRepository) GetLeague(_ context.Context, id uuid.UUID) (*models.League, error) {
	league, ok := m.leagues.Load(id)
	if !ok {
		return nil, ErrLeagueNotFound
	}
	return &league, nil
}

func (m *MemoryRepository) ListLeagues(_ context.Context) ([]models.League, error) {
	var out []models.League
	m.leagues.Range(func(_ uuid.UUID, league models.League) bool {
		out = append(out, league)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
