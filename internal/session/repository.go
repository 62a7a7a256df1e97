package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lekbanken/playserver/internal/models"
	"github.com/lekbanken/playserver/internal/sqlutil"
	"github.com/lib/pq"
)

const sessionColumns = `
	id, session_code, display_name, status, game_id, plan_id, host_key,
	participant_count, current_step, current_phase,
	created_at, started_at, paused_at, ended_at`

// Repository implements session data access operations
type Repository struct {
	db sqlutil.DBTX
}

// NewRepository creates a new sessions repository
func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

type CreateSessionRequest struct {
	ID          uuid.UUID  `json:"id"`
	SessionCode string     `json:"session_code"`
	DisplayName string     `json:"display_name"`
	HostKey     string     `json:"-"`
	GameID      *uuid.UUID `json:"game_id,omitempty"`
	PlanID      *uuid.UUID `json:"plan_id,omitempty"`
}

// CreateSession inserts a new session row. The caller owns code generation;
// a unique-violation on session_code is reported as ErrCodeTaken so it can
// retry with a fresh code.
func (r *Repository) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.PlaySession, error) {
	const stmt = `
		INSERT INTO play_sessions (id, session_code, display_name, status, game_id, plan_id, host_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING` + sessionColumns

	row := r.db.QueryRowContext(ctx, stmt,
		req.ID,
		req.SessionCode,
		req.DisplayName,
		models.SessionStatusActive,
		sqlutil.ToNullUUID(req.GameID),
		sqlutil.ToNullUUID(req.PlanID),
		req.HostKey,
	)

	session, _, err := scanSession(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrCodeTaken
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetSession retrieves a session by ID
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.PlaySession, error) {
	const stmt = `SELECT` + sessionColumns + ` FROM play_sessions WHERE id = $1`

	session, _, err := scanSession(r.db.QueryRowContext(ctx, stmt, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// GetSessionByCode retrieves a session by its join code
func (r *Repository) GetSessionByCode(ctx context.Context, code string) (*models.PlaySession, error) {
	const stmt = `SELECT` + sessionColumns + ` FROM play_sessions WHERE session_code = $1`

	session, _, err := scanSession(r.db.QueryRowContext(ctx, stmt, strings.ToUpper(code)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session by code: %w", err)
	}
	return session, nil
}

// GetHostKey returns the host capability key for a session
func (r *Repository) GetHostKey(ctx context.Context, id uuid.UUID) (string, error) {
	const stmt = `SELECT host_key FROM play_sessions WHERE id = $1`

	var key string
	err := r.db.QueryRowContext(ctx, stmt, id).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get host key: %w", err)
	}
	return key, nil
}

// ListSessionsByHostKey returns all sessions owned by the given host key,
// newest first.
func (r *Repository) ListSessionsByHostKey(ctx context.Context, hostKey string) ([]models.PlaySession, error) {
	const stmt = `SELECT` + sessionColumns + ` FROM play_sessions WHERE host_key = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, stmt, hostKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.PlaySession
	for rows.Next() {
		session, _, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

type statusStamps struct {
	StartedAt *time.Time
	PausedAt  *time.Time
	EndedAt   *time.Time
}

// UpdateStatus writes a new lifecycle status, stamping only the timestamps
// the transition provides.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus, stamps statusStamps) (*models.PlaySession, error) {
	const stmt = `
		UPDATE play_sessions
		SET status = $2,
		    started_at = COALESCE($3, started_at),
		    paused_at = COALESCE($4, paused_at),
		    ended_at = COALESCE($5, ended_at)
		WHERE id = $1
		RETURNING` + sessionColumns

	row := r.db.QueryRowContext(ctx, stmt, id, status,
		sqlutil.ToSqlTime(stamps.StartedAt),
		sqlutil.ToSqlTime(stamps.PausedAt),
		sqlutil.ToSqlTime(stamps.EndedAt),
	)

	session, _, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update session status: %w", err)
	}
	return session, nil
}

// UpdatePosition advances the session's step/phase position
func (r *Repository) UpdatePosition(ctx context.Context, id uuid.UUID, step, phase int) (*models.PlaySession, error) {
	const stmt = `
		UPDATE play_sessions
		SET current_step = $2, current_phase = $3
		WHERE id = $1
		RETURNING` + sessionColumns

	session, _, err := scanSession(r.db.QueryRowContext(ctx, stmt, id, step, phase))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update session position: %w", err)
	}
	return session, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*models.PlaySession, string, error) {
	var (
		s         models.PlaySession
		gameID    uuid.NullUUID
		planID    uuid.NullUUID
		hostKey   string
		startedAt sql.NullTime
		pausedAt  sql.NullTime
		endedAt   sql.NullTime
	)

	err := row.Scan(
		&s.ID, &s.SessionCode, &s.DisplayName, &s.Status, &gameID, &planID, &hostKey,
		&s.ParticipantCount, &s.CurrentStep, &s.CurrentPhase,
		&s.CreatedAt, &startedAt, &pausedAt, &endedAt,
	)
	if err != nil {
		return nil, "", err
	}

	s.GameID = sqlutil.FromNullUUID(gameID)
	s.PlanID = sqlutil.FromNullUUID(planID)
	s.StartedAt = sqlutil.FromSqlTime(startedAt)
	s.PausedAt = sqlutil.FromSqlTime(pausedAt)
	s.EndedAt = sqlutil.FromSqlTime(endedAt)
	return &s, hostKey, nil
}
