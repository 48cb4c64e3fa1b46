package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/livedraft/go/internal/draft/events"
	"github.com/mcdev12/livedraft/go/internal/sqlutil"
)

var ErrRecordNotFound = errors.New("outbox record not found or already sent")

// Repository is the Postgres outbox table.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert stores env as an unsent record. The table trigger NOTIFYs the relay.
func (r *Repository) Insert(ctx context.Context, env events.Envelope) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO draft_session_outbox (id, session_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		env.ID, env.SessionID, string(env.Type), []byte(env.Payload), env.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox record: %w", err)
	}
	return nil
}

// FetchUnsentByID returns the record only while it is still unsent.
func (r *Repository) FetchUnsentByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, event_type, payload, created_at, sent_at
		FROM draft_session_outbox
		WHERE id = $1 AND sent_at IS NULL`, id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to fetch outbox record: %w", err)
	}
	return rec, nil
}

// FetchUnsent returns up to limit unsent records, oldest first.
func (r *Repository) FetchUnsent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, event_type, payload, created_at, sent_at
		FROM draft_session_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE draft_session_outbox SET sent_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox record as sent: %w", err)
	}
	return nil
}

func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM draft_session_outbox WHERE sent_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending outbox records: %w", err)
	}
	return count, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec       Record
		eventType string
		payload   []byte
		sentAt    sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.SessionID, &eventType, &payload, &rec.CreatedAt, &sentAt); err != nil {
		return nil, err
	}
	rec.EventType = events.Type(eventType)
	rec.Payload = payload
	rec.SentAt = sqlutil.FromSqlTime(sentAt)
	return &rec, nil
}
