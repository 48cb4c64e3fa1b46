package player

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/livedraft/go/internal/models"
)

// Repository reads and writes season projections on Postgres through pgx.
type Repository struct {
	pool *pgxpool.Pool
}

var _ PlayerRepository = (*Repository)(nil)

// NewRepository creates a new player repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListPlayers returns every projected player for a season, best ADP first.
func (r *Repository) ListPlayers(ctx context.Context, season string) ([]models.Player, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT player_id, full_name, position, nfl_team, bye_week, adp, projections
		FROM player_projections
		WHERE season = $1
		ORDER BY adp = 0, adp, player_id`, season)
	if err != nil {
		return nil, fmt.Errorf("failed to query player projections: %w", err)
	}

	players, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Player, error) {
		var (
			p           models.Player
			position    string
			projections []byte
		)
		if err := row.Scan(&p.ID, &p.FullName, &position, &p.NFLTeam, &p.ByeWeek, &p.ADP, &projections); err != nil {
			return models.Player{}, err
		}
		p.Position = models.ParsePosition(position)
		if err := json.Unmarshal(projections, &p.Projections); err != nil {
			return models.Player{}, fmt.Errorf("failed to unmarshal projections for %s: %w", p.ID, err)
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan player projections: %w", err)
	}
	return players, nil
}

// UpsertPlayers writes a season's projections in one batch.
func (r *Repository) UpsertPlayers(ctx context.Context, season string, players []models.Player) (ImportResult, error) {
	res := ImportResult{Total: len(players)}
	batch := &pgx.Batch{}
	for _, p := range players {
		projections, err := json.Marshal(p.Projections)
		if err != nil {
			return res, fmt.Errorf("failed to marshal projections for %s: %w", p.ID, err)
		}
		batch.Queue(`
			INSERT INTO player_projections (player_id, season, full_name, position, nfl_team, bye_week, adp, projections)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (player_id, season) DO UPDATE SET
				full_name = EXCLUDED.full_name,
				position = EXCLUDED.position,
				nfl_team = EXCLUDED.nfl_team,
				bye_week = EXCLUDED.bye_week,
				adp = EXCLUDED.adp,
				projections = EXCLUDED.projections`,
			p.ID, season, p.FullName, string(p.Position), p.NFLTeam, p.ByeWeek, p.ADP, projections)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range players {
		if _, err := br.Exec(); err != nil {
			return res, fmt.Errorf("failed to upsert player projections: %w", err)
		}
		res.Written++
	}
	return res, nil
}
