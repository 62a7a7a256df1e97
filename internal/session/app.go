package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lekbanken/playserver/internal/events"
	"github.com/lekbanken/playserver/internal/models"
	"github.com/lekbanken/playserver/internal/outbox"
	"github.com/lekbanken/playserver/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

// codeRetries bounds collision retries on session code generation
const codeRetries = 10

// App handles session business logic. Lifecycle transitions and their
// outbox events are written in one transaction; the session row is the
// serialization point for concurrent host actions.
type App struct {
	db   *sql.DB
	repo *Repository
}

// NewApp creates a new sessions App
func NewApp(db *sql.DB) *App {
	return &App{
		db:   db,
		repo: NewRepository(db),
	}
}

type CreateRequest struct {
	DisplayName string     `json:"display_name"`
	GameID      *uuid.UUID `json:"game_id,omitempty"`
	PlanID      *uuid.UUID `json:"plan_id,omitempty"`
}

func (r CreateRequest) Validate() error {
	if r.DisplayName == "" {
		return fmt.Errorf("display_name is required")
	}
	if len(r.DisplayName) > 120 {
		return fmt.Errorf("display_name must be at most 120 characters")
	}
	return nil
}

// CreateSession creates a session with a fresh join code and host key. The
// host key is the capability for all host-side operations on the session
// and is only returned here.
func (a *App) CreateSession(ctx context.Context, req CreateRequest) (*models.PlaySession, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", fmt.Errorf("validation failed: %w", err)
	}

	hostKey, err := NewHostKey()
	if err != nil {
		return nil, "", err
	}

	for attempt := 0; attempt < codeRetries; attempt++ {
		session, err := a.repo.CreateSession(ctx, CreateSessionRequest{
			ID:          uuid.New(),
			SessionCode: generateSessionCode(),
			DisplayName: req.DisplayName,
			HostKey:     hostKey,
			GameID:      req.GameID,
			PlanID:      req.PlanID,
		})
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		if err != nil {
			return nil, "", err
		}

		log.Info().
			Str("session_id", session.ID.String()).
			Str("session_code", session.SessionCode).
			Msg("session created")
		return session, hostKey, nil
	}
	return nil, "", fmt.Errorf("could not allocate a unique session code")
}

// GetSession retrieves a session by ID
func (a *App) GetSession(ctx context.Context, id uuid.UUID) (*models.PlaySession, error) {
	return a.repo.GetSession(ctx, id)
}

// GetSessionByCode retrieves a session by its join code
func (a *App) GetSessionByCode(ctx context.Context, code string) (*models.PlaySession, error) {
	return a.repo.GetSessionByCode(ctx, code)
}

// ListSessions returns the sessions owned by the given host key
func (a *App) ListSessions(ctx context.Context, hostKey string) ([]models.PlaySession, error) {
	return a.repo.ListSessionsByHostKey(ctx, hostKey)
}

// AuthorizeHost verifies the host key against the session. Only the holder
// of the key issued at creation may manage the session.
func (a *App) AuthorizeHost(ctx context.Context, sessionID uuid.UUID, hostKey string) error {
	if hostKey == "" {
		return ErrMissingHostKey
	}
	stored, err := a.repo.GetHostKey(ctx, sessionID)
	if err != nil {
		return err
	}
	if stored != hostKey {
		return ErrHostKeyMismatch
	}
	return nil
}

// ApplyAction performs a host-initiated lifecycle transition. The action set
// is a closed union; illegal transitions are rejected against the current
// status rather than silently accepted.
func (a *App) ApplyAction(ctx context.Context, id uuid.UUID, action models.SessionAction) (*models.PlaySession, error) {
	current, err := a.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	target, stamps, err := nextStatus(current, action)
	if err != nil {
		return nil, err
	}

	var updated *models.PlaySession
	err = sqlutil.Run(ctx, a.db, func(tx *sql.Tx) error {
		repo := NewRepository(tx)
		updated, err = repo.UpdateStatus(ctx, id, target, stamps)
		if err != nil {
			return err
		}
		return outbox.Enqueue(ctx, tx, id, transitionEventType(action), transitionPayload(updated, action))
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", id.String()).
		Str("action", string(action)).
		Str("status", string(updated.Status)).
		Msg("session transition applied")
	return updated, nil
}

// SetPosition advances the session's step/phase. Host-driven only; last
// write wins, the session row is the serialization point.
func (a *App) SetPosition(ctx context.Context, id uuid.UUID, step, phase int) (*models.PlaySession, error) {
	if step < 0 || phase < 0 {
		return nil, fmt.Errorf("%w: step and phase must be non-negative", ErrInvalidTransition)
	}

	var updated *models.PlaySession
	err := sqlutil.Run(ctx, a.db, func(tx *sql.Tx) error {
		repo := NewRepository(tx)
		var err error
		updated, err = repo.UpdatePosition(ctx, id, step, phase)
		if err != nil {
			return err
		}
		return outbox.Enqueue(ctx, tx, id, string(EventProgressUpdated), events.ProgressUpdatedPayload{
			SessionID:    id.String(),
			CurrentStep:  step,
			CurrentPhase: phase,
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// nextStatus resolves the target status and timestamp stamps for an action
// against the session's current state.
func nextStatus(s *models.PlaySession, action models.SessionAction) (models.SessionStatus, statusStamps, error) {
	now := time.Now()
	var none statusStamps

	if s.Status.IsTerminal() {
		return "", none, fmt.Errorf("%w: session is %s", ErrInvalidTransition, s.Status)
	}

	switch action {
	case models.SessionActionStart:
		if s.Status != models.SessionStatusActive || s.StartedAt != nil {
			return "", none, fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, s.Status)
		}
		return models.SessionStatusActive, statusStamps{StartedAt: &now}, nil
	case models.SessionActionPause:
		if s.Status != models.SessionStatusActive && s.Status != models.SessionStatusLocked {
			return "", none, fmt.Errorf("%w: cannot pause from %s", ErrInvalidTransition, s.Status)
		}
		return models.SessionStatusPaused, statusStamps{PausedAt: &now}, nil
	case models.SessionActionResume:
		if s.Status != models.SessionStatusPaused {
			return "", none, fmt.Errorf("%w: cannot resume from %s", ErrInvalidTransition, s.Status)
		}
		return models.SessionStatusActive, none, nil
	case models.SessionActionEnd:
		return models.SessionStatusEnded, statusStamps{EndedAt: &now}, nil
	case models.SessionActionCancel:
		return models.SessionStatusCancelled, statusStamps{EndedAt: &now}, nil
	case models.SessionActionLock:
		if s.Status != models.SessionStatusActive {
			return "", none, fmt.Errorf("%w: cannot lock from %s", ErrInvalidTransition, s.Status)
		}
		return models.SessionStatusLocked, none, nil
	case models.SessionActionUnlock:
		if s.Status != models.SessionStatusLocked {
			return "", none, fmt.Errorf("%w: cannot unlock from %s", ErrInvalidTransition, s.Status)
		}
		return models.SessionStatusActive, none, nil
	default:
		return "", none, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// Outbox event types emitted by session transitions
const (
	EventSessionStarted     = "SessionStarted"
	EventSessionPaused      = "SessionPaused"
	EventSessionResumed     = "SessionResumed"
	EventSessionEnded       = "SessionEnded"
	EventSessionLockChanged = "SessionLockChanged"
	EventProgressUpdated    = "ProgressUpdated"
)

func transitionEventType(action models.SessionAction) string {
	switch action {
	case models.SessionActionStart:
		return EventSessionStarted
	case models.SessionActionPause:
		return EventSessionPaused
	case models.SessionActionResume:
		return EventSessionResumed
	case models.SessionActionEnd, models.SessionActionCancel:
		return EventSessionEnded
	case models.SessionActionLock, models.SessionActionUnlock:
		return EventSessionLockChanged
	default:
		return string(action)
	}
}

func transitionPayload(s *models.PlaySession, action models.SessionAction) interface{} {
	now := time.Now()
	switch action {
	case models.SessionActionStart:
		return events.SessionStartedPayload{SessionID: s.ID.String(), SessionCode: s.SessionCode, StartedAt: now}
	case models.SessionActionPause:
		return events.SessionPausedPayload{SessionID: s.ID.String(), PausedAt: now}
	case models.SessionActionResume:
		return events.SessionResumedPayload{SessionID: s.ID.String(), ResumedAt: now}
	case models.SessionActionEnd, models.SessionActionCancel:
		return events.SessionEndedPayload{SessionID: s.ID.String(), Status: string(s.Status), EndedAt: now}
	case models.SessionActionLock:
		return events.SessionLockChangedPayload{SessionID: s.ID.String(), Locked: true}
	case models.SessionActionUnlock:
		return events.SessionLockChangedPayload{SessionID: s.ID.String(), Locked: false}
	default:
		return struct{}{}
	}
}
