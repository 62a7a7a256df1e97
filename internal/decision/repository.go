package decision

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lekbanken/playserver/internal/models"
	"github.com/lekbanken/playserver/internal/sqlutil"
)

const decisionColumns = `
	id, session_id, title, prompt, options, settings, status,
	step_index, phase_index, created_at, opened_at, closed_at, revealed_at`

// Repository implements decision data access operations
type Repository struct {
	db sqlutil.DBTX
}

// NewRepository creates a new decisions repository
func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

type CreateDecisionRequest struct {
	ID         uuid.UUID
	SessionID  uuid.UUID
	Title      string
	Prompt     string
	Options    []models.DecisionOption
	Settings   json.RawMessage
	StepIndex  int
	PhaseIndex int
}

func (r *Repository) CreateDecision(ctx context.Context, req CreateDecisionRequest) (*models.SessionDecision, error) {
	optionsBytes, err := json.Marshal(req.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal decision options: %w", err)
	}

	settings := req.Settings
	if settings == nil {
		settings = json.RawMessage("{}")
	}

	const stmt = `
		INSERT INTO play_decisions (id, session_id, title, prompt, options, settings, status, step_index, phase_index, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING` + decisionColumns

	d, err := scanDecision(r.db.QueryRowContext(ctx, stmt,
		req.ID, req.SessionID, req.Title, req.Prompt, optionsBytes, []byte(settings),
		models.DecisionStatusDraft, req.StepIndex, req.PhaseIndex))
	if err != nil {
		return nil, fmt.Errorf("failed to create decision: %w", err)
	}
	return d, nil
}

func (r *Repository) GetDecision(ctx context.Context, id uuid.UUID) (*models.SessionDecision, error) {
	const stmt = `SELECT` + decisionColumns + ` FROM play_decisions WHERE id = $1`

	d, err := scanDecision(r.db.QueryRowContext(ctx, stmt, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}
	return d, nil
}

// ListBySession returns all decisions of a session ordered by position
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.SessionDecision, error) {
	const stmt = `
		SELECT` + decisionColumns + `
		FROM play_decisions
		WHERE session_id = $1
		ORDER BY step_index, phase_index, created_at`

	rows, err := r.db.QueryContext(ctx, stmt, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []models.SessionDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		decisions = append(decisions, *d)
	}
	return decisions, rows.Err()
}

type UpdateDecisionRequest struct {
	Title    *string
	Prompt   *string
	Options  []models.DecisionOption
	Settings json.RawMessage
}

// UpdateContent edits a decision's title/prompt/options/settings
func (r *Repository) UpdateContent(ctx context.Context, id uuid.UUID, req UpdateDecisionRequest) (*models.SessionDecision, error) {
	var optionsBytes []byte
	if req.Options != nil {
		var err error
		optionsBytes, err = json.Marshal(req.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal decision options: %w", err)
		}
	}

	const stmt = `
		UPDATE play_decisions
		SET title = COALESCE($2, title),
		    prompt = COALESCE($3, prompt),
		    options = COALESCE($4, options),
		    settings = COALESCE($5, settings)
		WHERE id = $1
		RETURNING` + decisionColumns

	d, err := scanDecision(r.db.QueryRowContext(ctx, stmt, id,
		sqlutil.ToSqlString(req.Title),
		sqlutil.ToSqlString(req.Prompt),
		optionsBytes,
		[]byte(req.Settings)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update decision: %w", err)
	}
	return d, nil
}

// UpdateStatus advances the decision's status, stamping the matching
// transition timestamp.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.DecisionStatus) (*models.SessionDecision, error) {
	now := time.Now()
	var openedAt, closedAt, revealedAt *time.Time
	switch status {
	case models.DecisionStatusOpen:
		openedAt = &now
	case models.DecisionStatusClosed:
		closedAt = &now
	case models.DecisionStatusRevealed:
		revealedAt = &now
	}

	const stmt = `
		UPDATE play_decisions
		SET status = $2,
		    opened_at = COALESCE($3, opened_at),
		    closed_at = COALESCE($4, closed_at),
		    revealed_at = COALESCE($5, revealed_at)
		WHERE id = $1
		RETURNING` + decisionColumns

	d, err := scanDecision(r.db.QueryRowContext(ctx, stmt, id, status,
		sqlutil.ToSqlTime(openedAt),
		sqlutil.ToSqlTime(closedAt),
		sqlutil.ToSqlTime(revealedAt)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update decision status: %w", err)
	}
	return d, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDecision(row rowScanner) (*models.SessionDecision, error) {
	var (
		d          models.SessionDecision
		options    []byte
		settings   []byte
		prompt     sql.NullString
		openedAt   sql.NullTime
		closedAt   sql.NullTime
		revealedAt sql.NullTime
	)

	err := row.Scan(
		&d.ID, &d.SessionID, &d.Title, &prompt, &options, &settings, &d.Status,
		&d.StepIndex, &d.PhaseIndex, &d.CreatedAt, &openedAt, &closedAt, &revealedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(options, &d.Options); err != nil {
		return nil, fmt.Errorf("corrupt decision options: %w", err)
	}
	d.Settings = settings
	d.Prompt = sqlutil.FromSqlString(prompt, "")
	d.OpenedAt = sqlutil.FromSqlTime(openedAt)
	d.ClosedAt = sqlutil.FromSqlTime(closedAt)
	d.RevealedAt = sqlutil.FromSqlTime(revealedAt)
	return &d, nil
}
