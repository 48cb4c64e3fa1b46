package leagues

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/livedraft/go/internal/models"
)

// Repository implements league data access on Postgres.
type Repository struct {
	db *sql.DB
}

var _ LeaguesRepository = (*Repository)(nil)

// NewRepository creates a new leagues repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const leagueColumns = `id, name, platform, external_league_id, season, team_count, roster, scoring, created_at, updated_at`

// CreateLeague inserts a new league
func (r *Repository) CreateLeague(ctx context.Context, league *models.League) error {
	roster, err := json.Marshal(league.Roster)
	if err != nil {
		return fmt.Errorf("failed to marshal roster requirements: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO leagues (`+leagueColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		league.ID, league.Name, string(league.Platform), league.ExternalLeagueID, league.Season,
		league.TeamCount, roster, string(league.Scoring), league.CreatedAt, league.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert league: %w", err)
	}
	return nil
}

// GetLeague retrieves a league by ID
func (r *Repository) GetLeague(ctx context.Context, id uuid.UUID) (*models.League, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+leagueColumns+` FROM leagues WHERE id = $1`, id)
	league, err := scanLeague(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeagueNotFound
		}
		return nil, fmt.Errorf("failed to get league: %w", err)
	}
	return league, nil
}

// ListLeagues returns every league, newest first
func (r *Repository) ListLeagues(ctx context.Context) ([]models.League, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+leagueColumns+` FROM leagues ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list leagues: %w", err)
	}
	defer rows.Close()

	var out []models.League
	for rows.Next() {
		league, err := scanLeague(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan league: %w", err)
		}
		out = append(out, *league)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leagues: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLeague(row scanner) (*models.League, error) {
	var (
		league   models.League
		platform string
		scoring  string
		roster   []byte
	)
	if err := row.Scan(
		&league.ID, &league.Name, &platform, &league.ExternalLeagueID, &league.Season,
		&league.TeamCount, &roster, &scoring, &league.CreatedAt, &league.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(roster, &league.Roster); err != nil {
		return nil, fmt.Errorf("failed to unmarshal roster requirements: %w", err)
	}
	league.Platform = models.Platform(platform)
	league.Scoring = models.ScoringSystem(scoring)
	return &league, nil
}
