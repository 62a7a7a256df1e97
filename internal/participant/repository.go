package participant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lekbanken/playserver/internal/models"
	"github.com/lekbanken/playserver/internal/sqlutil"
	"github.com/lib/pq"
)

const participantColumns = `
	id, session_id, display_name, role, status, is_next_starter,
	current_step, current_phase, joined_at, last_seen_at`

// Repository implements participant data access operations
type Repository struct {
	db sqlutil.DBTX
}

// NewRepository creates a new participants repository
func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

type CreateParticipantRequest struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	Token       string
	DisplayName string
	Role        models.ParticipantRole
	Status      models.ParticipantStatus
}

// CreateParticipant inserts a participant row and bumps the session's
// participant count in one statement pair; callers run it inside a tx.
func (r *Repository) CreateParticipant(ctx context.Context, req CreateParticipantRequest) (*models.Participant, error) {
	const stmt = `
		INSERT INTO play_participants (id, session_id, token, display_name, role, status, joined_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING` + participantColumns

	p, err := scanParticipant(r.db.QueryRowContext(ctx, stmt,
		req.ID, req.SessionID, req.Token, req.DisplayName, req.Role, req.Status))
	if err != nil {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}

	const bump = `UPDATE play_sessions SET participant_count = participant_count + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, bump, req.SessionID); err != nil {
		return nil, fmt.Errorf("failed to bump participant count: %w", err)
	}
	return p, nil
}

// GetParticipant retrieves a participant by ID
func (r *Repository) GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	const stmt = `SELECT` + participantColumns + ` FROM play_participants WHERE id = $1`

	p, err := scanParticipant(r.db.QueryRowContext(ctx, stmt, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

// GetParticipantByToken retrieves a participant by its bearer token
func (r *Repository) GetParticipantByToken(ctx context.Context, token string) (*models.Participant, error) {
	const stmt = `SELECT` + participantColumns + ` FROM play_participants WHERE token = $1`

	p, err := scanParticipant(r.db.QueryRowContext(ctx, stmt, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant by token: %w", err)
	}
	return p, nil
}

// ListParticipants returns all participants of a session, join order first
func (r *Repository) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	const stmt = `SELECT` + participantColumns + ` FROM play_participants WHERE session_id = $1 ORDER BY joined_at`

	rows, err := r.db.QueryContext(ctx, stmt, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

// TouchLastSeen refreshes the participant's heartbeat timestamp. A
// participant marked idle or disconnected by the sweeper comes back as
// active on its next heartbeat.
func (r *Repository) TouchLastSeen(ctx context.Context, id uuid.UUID) error {
	const stmt = `
		UPDATE play_participants
		SET last_seen_at = NOW(),
		    status = CASE WHEN status IN ('idle', 'disconnected') THEN 'active' ELSE status END
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("failed to touch participant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus sets a participant's moderation/presence status
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ParticipantStatus) (*models.Participant, error) {
	const stmt = `
		UPDATE play_participants SET status = $2 WHERE id = $1
		RETURNING` + participantColumns

	p, err := scanParticipant(r.db.QueryRowContext(ctx, stmt, id, status))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update participant status: %w", err)
	}
	return p, nil
}

// SetNextStarter marks one participant as next starter and clears the flag
// on everyone else in the session.
func (r *Repository) SetNextStarter(ctx context.Context, sessionID, id uuid.UUID) (*models.Participant, error) {
	const clear = `UPDATE play_participants SET is_next_starter = FALSE WHERE session_id = $1 AND id <> $2`
	if _, err := r.db.ExecContext(ctx, clear, sessionID, id); err != nil {
		return nil, fmt.Errorf("failed to clear next starter: %w", err)
	}

	const stmt = `
		UPDATE play_participants SET is_next_starter = TRUE
		WHERE id = $1 AND session_id = $2
		RETURNING` + participantColumns

	p, err := scanParticipant(r.db.QueryRowContext(ctx, stmt, id, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set next starter: %w", err)
	}
	return p, nil
}

// UpdatePosition moves a participant to a step/phase position
func (r *Repository) UpdatePosition(ctx context.Context, id uuid.UUID, step, phase int) (*models.Participant, error) {
	const stmt = `
		UPDATE play_participants SET current_step = $2, current_phase = $3
		WHERE id = $1
		RETURNING` + participantColumns

	p, err := scanParticipant(r.db.QueryRowContext(ctx, stmt, id, step, phase))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update participant position: %w", err)
	}
	return p, nil
}

// StaleParticipant is a presence-sweep candidate
type StaleParticipant struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Status    models.ParticipantStatus
}

// ListStale returns active/idle participants whose last heartbeat is older
// than the given interval. Moderated statuses are never returned.
func (r *Repository) ListStale(ctx context.Context, olderThan string, statuses []models.ParticipantStatus) ([]StaleParticipant, error) {
	const stmt = `
		SELECT id, session_id, status
		FROM play_participants
		WHERE status = ANY($2)
		  AND last_seen_at < NOW() - $1::interval`

	strs := make([]string, len(statuses))
	for i, s := range statuses {
		strs[i] = string(s)
	}

	rows, err := r.db.QueryContext(ctx, stmt, olderThan, pq.Array(strs))
	if err != nil {
		return nil, fmt.Errorf("failed to list stale participants: %w", err)
	}
	defer rows.Close()

	var stale []StaleParticipant
	for rows.Next() {
		var sp StaleParticipant
		if err := rows.Scan(&sp.ID, &sp.SessionID, &sp.Status); err != nil {
			return nil, fmt.Errorf("failed to scan stale participant: %w", err)
		}
		stale = append(stale, sp)
	}
	return stale, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanParticipant(row rowScanner) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(
		&p.ID, &p.SessionID, &p.DisplayName, &p.Role, &p.Status, &p.IsNextStarter,
		&p.CurrentStep, &p.CurrentPhase, &p.JoinedAt, &p.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
