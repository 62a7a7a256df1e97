package outbox

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lekbanken/playserver/internal/sqlutil"
)

type Repository struct {
	db sqlutil.DBTX
}

// NewRepository creates a repository over db, which may be a *sql.Tx so
// outbox inserts can join the transaction of the domain write they describe.
func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, sessionID uuid.UUID, eventType string, payload []byte) error {
	const stmt = `
		INSERT INTO play_outbox (id, session_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, NOW())`

	if _, err := r.db.ExecContext(ctx, stmt, uuid.New(), sessionID, eventType, payload); err != nil {
		return fmt.Errorf("failed to insert %s outbox event: %w", eventType, err)
	}
	return nil
}

func (r *Repository) FetchUnsent(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	const stmt = `
		SELECT id, session_id, event_type, payload, attempts, created_at, sent_at
		FROM play_outbox
		WHERE sent_at IS NULL AND attempts < $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`

	rows, err := r.db.QueryContext(ctx, stmt, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var (
			ev     OutboxEvent
			sentAt sql.NullTime
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.EventType, &ev.Payload, &ev.Attempts, &ev.CreatedAt, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		ev.SentAt = sqlutil.FromSqlTime(sentAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	const stmt = `UPDATE play_outbox SET sent_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, stmt, id); err != nil {
		return fmt.Errorf("failed to mark outbox event sent: %w", err)
	}
	return nil
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	const stmt = `UPDATE play_outbox SET attempts = attempts + 1 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, stmt, id); err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	return nil
}

const maxAttempts = 5
