package participant

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lekbanken/playserver/internal/events"
	"github.com/lekbanken/playserver/internal/models"
	"github.com/lekbanken/playserver/internal/outbox"
	"github.com/lekbanken/playserver/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

// SessionStore is what the participant app needs from the session feature
type SessionStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.PlaySession, error)
	GetSessionByCode(ctx context.Context, code string) (*models.PlaySession, error)
}

// App handles participant business logic
type App struct {
	db       *sql.DB
	repo     *Repository
	sessions SessionStore
}

// NewApp creates a new participants App
func NewApp(db *sql.DB, sessions SessionStore) *App {
	return &App{
		db:       db,
		repo:     NewRepository(db),
		sessions: sessions,
	}
}

type JoinRequest struct {
	SessionCode string                 `json:"session_code"`
	DisplayName string                 `json:"display_name"`
	Role        models.ParticipantRole `json:"role,omitempty"`
}

func (r JoinRequest) Validate() error {
	if r.SessionCode == "" {
		return fmt.Errorf("session_code is required")
	}
	if r.DisplayName == "" {
		return fmt.Errorf("display_name is required")
	}
	if len(r.DisplayName) > 50 {
		return fmt.Errorf("display_name must be at most 50 characters")
	}
	switch r.Role {
	case "", models.ParticipantRolePlayer, models.ParticipantRoleObserver,
		models.ParticipantRoleTeamLead, models.ParticipantRoleFacilitator:
		return nil
	default:
		return fmt.Errorf("unknown role %q", r.Role)
	}
}

// Join admits a new participant into the session named by code and mints
// its bearer credential.
func (a *App) Join(ctx context.Context, req JoinRequest) (*models.ParticipantAuth, *models.Participant, error) {
	session, err := a.sessions.GetSessionByCode(ctx, req.SessionCode)
	if err != nil {
		return nil, nil, err
	}
	if session.Status.IsTerminal() {
		return nil, nil, ErrSessionClosed
	}
	if session.Status == models.SessionStatusLocked {
		return nil, nil, ErrSessionLocked
	}

	token, err := newToken()
	if err != nil {
		return nil, nil, err
	}

	role := req.Role
	if role == "" {
		role = models.ParticipantRolePlayer
	}

	var created *models.Participant
	err = sqlutil.Run(ctx, a.db, func(tx *sql.Tx) error {
		repo := NewRepository(tx)
		var err error
		created, err = repo.CreateParticipant(ctx, CreateParticipantRequest{
			ID:          uuid.New(),
			SessionID:   session.ID,
			Token:       token,
			DisplayName: req.DisplayName,
			Role:        role,
			Status:      models.ParticipantStatusActive,
		})
		if err != nil {
			return err
		}
		return outbox.Enqueue(ctx, tx, session.ID, "ParticipantJoined", events.ParticipantJoinedPayload{
			SessionID:     session.ID.String(),
			ParticipantID: created.ID.String(),
			DisplayName:   created.DisplayName,
			JoinedAt:      created.JoinedAt,
		})
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("participant_id", created.ID.String()).
		Msg("participant joined")

	return &models.ParticipantAuth{
		Token:         token,
		ParticipantID: created.ID,
		SessionID:     session.ID,
		DisplayName:   created.DisplayName,
	}, created, nil
}

type RejoinRequest struct {
	SessionCode      string `json:"session_code"`
	ParticipantToken string `json:"participant_token"`
}

// Rejoin restores a returning participant from its stored credential. An
// invalid or mismatched token fails with 401 semantics so the client clears
// its stored credential.
func (a *App) Rejoin(ctx context.Context, req RejoinRequest) (*models.Participant, *models.PlaySession, error) {
	participant, session, err := a.authenticate(ctx, req.SessionCode, req.ParticipantToken)
	if err != nil {
		return nil, nil, err
	}

	if err := a.repo.TouchLastSeen(ctx, participant.ID); err != nil {
		return nil, nil, err
	}
	participant.LastSeenAt = time.Now()

	if err := outbox.Enqueue(ctx, a.db, session.ID, "ParticipantJoined", events.ParticipantJoinedPayload{
		SessionID:     session.ID.String(),
		ParticipantID: participant.ID.String(),
		DisplayName:   participant.DisplayName,
		Rejoin:        true,
		JoinedAt:      participant.JoinedAt,
	}); err != nil {
		log.Warn().Err(err).Str("participant_id", participant.ID.String()).Msg("failed to enqueue rejoin event")
	}

	return participant, session, nil
}

// Me returns the participant's own state plus the session snapshot; it
// backs the fixed-interval poll.
func (a *App) Me(ctx context.Context, sessionCode, token string) (*models.Participant, *models.PlaySession, error) {
	return a.authenticate(ctx, sessionCode, token)
}

// Heartbeat refreshes the participant's liveness timestamp
func (a *App) Heartbeat(ctx context.Context, sessionCode, token string) (*models.PlaySession, error) {
	participant, session, err := a.authenticate(ctx, sessionCode, token)
	if err != nil {
		return nil, err
	}
	if err := a.repo.TouchLastSeen(ctx, participant.ID); err != nil {
		return nil, err
	}
	return session, nil
}

// ListParticipants returns all participants of a session
func (a *App) ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	return a.repo.ListParticipants(ctx, sessionID)
}

// GetParticipant retrieves one participant
func (a *App) GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	return a.repo.GetParticipant(ctx, id)
}

type ModerateRequest struct {
	Action models.ParticipantAction `json:"action"`
	Step   *int                     `json:"step,omitempty"`
	Phase  *int                     `json:"phase,omitempty"`
}

// Moderate applies a host moderation action to a participant. Participants
// are never hard-deleted; kick and block are status transitions.
func (a *App) Moderate(ctx context.Context, sessionID, participantID uuid.UUID, req ModerateRequest) (*models.Participant, error) {
	existing, err := a.repo.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if existing.SessionID != sessionID {
		return nil, ErrNotFound
	}

	var updated *models.Participant
	switch req.Action {
	case models.ParticipantActionKick:
		updated, err = a.repo.UpdateStatus(ctx, participantID, models.ParticipantStatusKicked)
	case models.ParticipantActionBlock:
		updated, err = a.repo.UpdateStatus(ctx, participantID, models.ParticipantStatusBlocked)
	case models.ParticipantActionApprove:
		updated, err = a.repo.UpdateStatus(ctx, participantID, models.ParticipantStatusActive)
	case models.ParticipantActionSetNextStarter:
		updated, err = a.repo.SetNextStarter(ctx, sessionID, participantID)
	case models.ParticipantActionSetPosition:
		if req.Step == nil || req.Phase == nil {
			return nil, fmt.Errorf("%w: setPosition requires step and phase", ErrUnknownAction)
		}
		updated, err = a.repo.UpdatePosition(ctx, participantID, *req.Step, *req.Phase)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	if err != nil {
		return nil, err
	}

	if err := outbox.Enqueue(ctx, a.db, sessionID, "ParticipantUpdated", events.ParticipantUpdatedPayload{
		SessionID:     sessionID.String(),
		ParticipantID: participantID.String(),
		Status:        string(updated.Status),
		IsNextStarter: updated.IsNextStarter,
	}); err != nil {
		log.Warn().Err(err).Str("participant_id", participantID.String()).Msg("failed to enqueue moderation event")
	}

	log.Info().
		Str("session_id", sessionID.String()).
		Str("participant_id", participantID.String()).
		Str("action", string(req.Action)).
		Msg("participant moderated")
	return updated, nil
}

// AuthenticateToken resolves a bearer token to its participant, applying
// the same moderation checks as the session-scoped endpoints.
func (a *App) AuthenticateToken(ctx context.Context, token string) (*models.Participant, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	p, err := a.repo.GetParticipantByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if p.Status == models.ParticipantStatusKicked || p.Status == models.ParticipantStatusBlocked {
		return nil, ErrModerated
	}
	return p, nil
}

// authenticate resolves a token against the session named by code. Kicked
// and blocked participants fail auth so their clients fall back to the
// join screen.
func (a *App) authenticate(ctx context.Context, sessionCode, token string) (*models.Participant, *models.PlaySession, error) {
	if token == "" {
		return nil, nil, ErrInvalidToken
	}

	participant, err := a.repo.GetParticipantByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	session, err := a.sessions.GetSession(ctx, participant.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if sessionCode != "" && session.SessionCode != sessionCode {
		return nil, nil, ErrInvalidToken
	}

	if participant.Status == models.ParticipantStatusKicked || participant.Status == models.ParticipantStatusBlocked {
		return nil, nil, ErrModerated
	}
	return participant, session, nil
}
