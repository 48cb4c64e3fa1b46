package player

import (
	"context"
	"sort"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/mcdev12/livedraft/go/internal/models"
)

// MemoryRepository keeps projections in process, keyed by season.
type MemoryRepository struct {
	seasons *xsync.Map[string, map[string]models.Player]
}

var _ PlayerRepository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{seasons: xsync.NewMap[string, map[string]models.Player]()}
}

func (m *MemoryRepository) ListPlayers(_ context.Context, season string) ([]models.Player, error) {
	byID, _ := m.seasons.Load(season)
	out := make([]models.Player, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) UpsertPlayers(_ context.Context, season string, players []models.Player) (ImportResult, error) {
	m.seasons.Compute(season, func(old map[string]models.Player, _ bool) (map[string]models.Player, xsync.ComputeOp) {
		next := make(map[string]models.Player, len(old)+len(players))
		for id, p := range old {
			next[id] = p
		}
		for _, p := range players {
			next[p.ID] = p
		}
		return next, xsync.UpdateOp
	})
	return ImportResult{Total: len(players), Written: len(players)}, nil
}
