package signal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lekbanken/playserver/internal/models"
	"github.com/lekbanken/playserver/internal/sqlutil"
)

// Repository implements the best-effort durable signal log
type Repository struct {
	db sqlutil.DBTX
}

// NewRepository creates a new signals repository
func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

// InsertSignal appends a signal to the durable log
func (r *Repository) InsertSignal(ctx context.Context, sig models.SessionSignal) error {
	const stmt = `
		INSERT INTO play_signals (id, session_id, channel, sender_id, sender_name, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`

	_, err := r.db.ExecContext(ctx, stmt,
		sig.ID, sig.SessionID, sig.Channel, sig.SenderID, sig.SenderName, []byte(sig.Payload))
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	return nil
}

// ListRecent returns the newest signals for a session, optionally filtered
// by channel.
func (r *Repository) ListRecent(ctx context.Context, sessionID uuid.UUID, channel string, limit int) ([]models.SessionSignal, error) {
	const stmt = `
		SELECT id, session_id, channel, sender_id, sender_name, payload, created_at
		FROM play_signals
		WHERE session_id = $1 AND ($2 = '' OR channel = $2)
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, stmt, sessionID, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	defer rows.Close()

	var signals []models.SessionSignal
	for rows.Next() {
		var (
			sig     models.SessionSignal
			payload []byte
		)
		if err := rows.Scan(&sig.ID, &sig.SessionID, &sig.Channel, &sig.SenderID, &sig.SenderName, &payload, &sig.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		sig.Payload = payload
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}
