package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/livedraft/go/internal/models"
	"github.com/mcdev12/livedraft/go/internal/sqlutil"
)

// Repository is the Postgres-backed Store.
type Repository struct {
	db *sql.DB
}

var _ Store = (*Repository)(nil)

// NewRepository creates a new draft session repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const sessionColumns = `id, league_id, user_id, session_token, user_team_id,
	team_count, user_pick_position, total_rounds, total_picks,
	current_pick, current_round, status, sync_mode, user_on_clock, next_user_pick, picks_until_turn,
	drafted_players, user_roster, last_sync_at, last_activity_at, sync_errors,
	needs_credential_update, needs_review, review_notes, version, created_at, updated_at`

// Create inserts a new session at version 1.
func (r *Repository) Create(ctx context.Context, s *models.DraftSession) error {
	row, err := toRow(s)
	if err != nil {
		return err
	}
	s.Version = 1

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO draft_sessions (`+sessionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)`,
		s.ID, s.LeagueID, s.UserID, s.SessionToken, s.UserTeamID,
		s.TeamCount, s.UserPickPosition, s.TotalRounds, s.TotalPicks,
		s.CurrentPick, s.CurrentRound, string(s.Status), string(s.SyncMode), s.UserOnClock, s.NextUserPick, s.PicksUntilTurn,
		row.drafted, row.roster, sqlutil.ToSqlTime(s.LastSyncAt), s.LastActivityAt, row.syncErrors,
		s.NeedsCredentialUpdate, s.NeedsReview, row.reviewNotes, s.Version, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create draft session: %w", err)
	}
	return nil
}

// Load retrieves a session by ID
func (r *Repository) Load(ctx context.Context, id uuid.UUID) (*models.DraftSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM draft_sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load draft session: %w", err)
	}
	return s, nil
}

// Save writes s if its Version still matches the stored row, then bumps Version.
func (r *Repository) Save(ctx context.Context, s *models.DraftSession) error {
	row, err := toRow(s)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
		UPDATE draft_sessions SET
			user_team_id = $3, current_pick = $4, current_round = $5, status = $6, sync_mode = $7,
			user_on_clock = $8, next_user_pick = $9, picks_until_turn = $10,
			drafted_players = $11, user_roster = $12, last_sync_at = $13, last_activity_at = $14,
			sync_errors = $15, needs_credential_update = $16, needs_review = $17, review_notes = $18,
			version = version + 1, updated_at = $19
		WHERE id = $1 AND version = $2`,
		s.ID, s.Version,
		s.UserTeamID, s.CurrentPick, s.CurrentRound, string(s.Status), string(s.SyncMode),
		s.UserOnClock, s.NextUserPick, s.PicksUntilTurn,
		row.drafted, row.roster, sqlutil.ToSqlTime(s.LastSyncAt), s.LastActivityAt,
		row.syncErrors, s.NeedsCredentialUpdate, s.NeedsReview, row.reviewNotes,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save draft session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM draft_sessions WHERE id = $1)`, s.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check draft session: %w", err)
		}
		if !exists {
			return ErrSessionNotFound
		}
		return fmt.Errorf("%w: session %s at version %d", ErrVersionConflict, s.ID, s.Version)
	}

	s.Version++
	s.UpdatedAt = now
	return nil
}

// ListSyncable returns sessions the sync engine should poll.
func (r *Repository) ListSyncable(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM draft_sessions
		WHERE sync_mode = $1 AND status IN ($2, $3)
		ORDER BY id`,
		string(models.SyncModeLive), string(models.DraftStatusNotStarted), string(models.DraftStatusInProgress),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list syncable sessions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type jsonColumns struct {
	drafted     []byte
	roster      []byte
	syncErrors  pqtype.NullRawMessage
	reviewNotes pqtype.NullRawMessage
}

func toRow(s *models.DraftSession) (jsonColumns, error) {
	var cols jsonColumns
	var err error

	drafted := s.DraftedPlayers
	if drafted == nil {
		drafted = []models.PickRecord{}
	}
	if cols.drafted, err = json.Marshal(drafted); err != nil {
		return cols, fmt.Errorf("failed to marshal drafted players: %w", err)
	}
	roster := s.UserRoster
	if roster == nil {
		roster = []models.PickRecord{}
	}
	if cols.roster, err = json.Marshal(roster); err != nil {
		return cols, fmt.Errorf("failed to marshal user roster: %w", err)
	}
	if cols.syncErrors, err = sqlutil.ToNullRawMessage(s.SyncErrors); err != nil {
		return cols, err
	}
	if cols.reviewNotes, err = sqlutil.ToNullRawMessage(s.ReviewNotes); err != nil {
		return cols, err
	}
	return cols, nil
}

func scanSession(row *sql.Row) (*models.DraftSession, error) {
	var (
		s           models.DraftSession
		status      string
		syncMode    string
		drafted     []byte
		roster      []byte
		lastSync    sql.NullTime
		syncErrors  pqtype.NullRawMessage
		reviewNotes pqtype.NullRawMessage
	)

	err := row.Scan(
		&s.ID, &s.LeagueID, &s.UserID, &s.SessionToken, &s.UserTeamID,
		&s.TeamCount, &s.UserPickPosition, &s.TotalRounds, &s.TotalPicks,
		&s.CurrentPick, &s.CurrentRound, &status, &syncMode, &s.UserOnClock, &s.NextUserPick, &s.PicksUntilTurn,
		&drafted, &roster, &lastSync, &s.LastActivityAt, &syncErrors,
		&s.NeedsCredentialUpdate, &s.NeedsReview, &reviewNotes, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = models.DraftStatus(status)
	s.SyncMode = models.SyncMode(syncMode)
	s.LastSyncAt = sqlutil.FromSqlTime(lastSync)

	if err := json.Unmarshal(drafted, &s.DraftedPlayers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal drafted players: %w", err)
	}
	if err := json.Unmarshal(roster, &s.UserRoster); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user roster: %w", err)
	}
	if err := sqlutil.FromNullRawMessage(syncErrors, &s.SyncErrors); err != nil {
		return nil, err
	}
	if err := sqlutil.FromNullRawMessage(reviewNotes, &s.ReviewNotes); err != nil {
		return nil, err
	}
	return &s, nil
}
