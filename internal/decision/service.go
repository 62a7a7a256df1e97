package decision

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/lekbanken/playserver/internal/api"
	"github.com/lekbanken/playserver/internal/models"
	"github.com/lekbanken/playserver/internal/participant"
	"github.com/lekbanken/playserver/internal/session"
)

// SessionStore is what the decision endpoints need from the session feature
type SessionStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.PlaySession, error)
	AuthorizeHost(ctx context.Context, sessionID uuid.UUID, hostKey string) error
}

// TokenAuthenticator resolves participant bearer tokens for the read side
type TokenAuthenticator interface {
	AuthenticateToken(ctx context.Context, token string) (*models.Participant, error)
}

// Service exposes the decisions REST surface
type Service struct {
	app          *App
	sessions     SessionStore
	participants TokenAuthenticator
}

// NewService creates a new decisions HTTP service
func NewService(app *App, sessions SessionStore, participants TokenAuthenticator) *Service {
	return &Service{app: app, sessions: sessions, participants: participants}
}

// RegisterRoutes mounts the decision endpoints
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/api/play/sessions/{id}/decisions", s.handleList)
	r.Post("/api/play/sessions/{id}/decisions", s.handleAction)
}

// handleList serves both viewer classes: the host (via host key) sees all
// decisions, a participant (via bearer token) sees only what its session
// position has unlocked.
func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, r, api.BadRequest("invalid session id"))
		return
	}

	sess, err := s.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		api.WriteError(w, r, decisionError(err))
		return
	}

	host := false
	if hostKey := api.HostKey(r); hostKey != "" {
		if err := s.sessions.AuthorizeHost(r.Context(), sessionID, hostKey); err != nil {
			api.WriteError(w, r, decisionError(err))
			return
		}
		host = true
	} else {
		p, err := s.participants.AuthenticateToken(r.Context(), api.ParticipantToken(r))
		if err != nil {
			api.WriteError(w, r, decisionError(err))
			return
		}
		if p.SessionID != sessionID {
			api.WriteError(w, r, api.Forbidden("token does not belong to this session"))
			return
		}
	}

	decisions, err := s.app.List(r.Context(), sess, host)
	if err != nil {
		api.WriteError(w, r, decisionError(err))
		return
	}

	api.WriteJSON(w, 200, map[string]interface{}{"decisions": decisions})
}

func (s *Service) handleAction(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, r, api.BadRequest("invalid session id"))
		return
	}

	if err := s.sessions.AuthorizeHost(r.Context(), sessionID, api.HostKey(r)); err != nil {
		api.WriteError(w, r, decisionError(err))
		return
	}

	req, err := api.RequestBody[ActionRequest](r)
	if err != nil {
		api.WriteError(w, r, api.BadRequest("invalid request body"))
		return
	}

	d, err := s.app.Apply(r.Context(), sessionID, req)
	if err != nil {
		api.WriteError(w, r, decisionError(err))
		return
	}

	status := 200
	if req.Action == DecisionActionCreate {
		status = 201
	}
	api.WriteJSON(w, status, map[string]interface{}{"decision": d})
}

// decisionError maps decision domain errors onto HTTP statuses
func decisionError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return api.NotFound("decision not found")
	case errors.Is(err, session.ErrNotFound):
		return api.NotFound("session not found")
	case errors.Is(err, session.ErrMissingHostKey):
		return api.Unauthorized("host key required")
	case errors.Is(err, session.ErrHostKeyMismatch):
		return api.Forbidden("not the session host")
	case errors.Is(err, participant.ErrInvalidToken):
		return api.Unauthorized("invalid participant token")
	case errors.Is(err, participant.ErrModerated):
		return api.Forbidden("participant was removed from the session")
	case errors.Is(err, ErrValidation):
		return api.BadRequest(err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrUnknownAction), errors.Is(err, ErrLockedForUpdate):
		return api.BadRequest(err.Error())
	default:
		return err
	}
}
