package signal

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/lekbanken/playserver/internal/api"
	"github.com/lekbanken/playserver/internal/models"
	"github.com/lekbanken/playserver/internal/participant"
	"github.com/lekbanken/playserver/internal/session"
)

// TokenAuthenticator resolves participant bearer tokens
type TokenAuthenticator interface {
	AuthenticateToken(ctx context.Context, token string) (*models.Participant, error)
}

// HostAuthorizer is what the read side needs from the session feature
type HostAuthorizer interface {
	AuthorizeHost(ctx context.Context, sessionID uuid.UUID, hostKey string) error
}

// Service exposes the signals REST surface
type Service struct {
	app          *App
	participants TokenAuthenticator
	hosts        HostAuthorizer
}

// NewService creates a new signals HTTP service
func NewService(app *App, participants TokenAuthenticator, hosts HostAuthorizer) *Service {
	return &Service{app: app, participants: participants, hosts: hosts}
}

// RegisterRoutes mounts the signal endpoints
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Post("/api/play/signals", s.handleRaise)
	r.Get("/api/play/sessions/{id}/signals", s.handleList)
}

func (s *Service) handleRaise(w http.ResponseWriter, r *http.Request) {
	sender, err := s.participants.AuthenticateToken(r.Context(), api.ParticipantToken(r))
	if err != nil {
		api.WriteError(w, r, signalError(err))
		return
	}

	req, err := api.RequestBody[RaiseRequest](r)
	if err != nil {
		api.WriteError(w, r, api.BadRequest("invalid request body"))
		return
	}

	sig, err := s.app.Raise(r.Context(), sender, req)
	if err != nil {
		api.WriteError(w, r, signalError(err))
		return
	}

	api.WriteJSON(w, 201, map[string]interface{}{"signal": sig})
}

// handleList serves the on-demand backfill query over the durable log.
// Hosts authenticate with the host key, participants with their token.
func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, r, api.BadRequest("invalid session id"))
		return
	}

	if hostKey := api.HostKey(r); hostKey != "" {
		if err := s.hosts.AuthorizeHost(r.Context(), sessionID, hostKey); err != nil {
			api.WriteError(w, r, signalError(err))
			return
		}
	} else {
		p, err := s.participants.AuthenticateToken(r.Context(), api.ParticipantToken(r))
		if err != nil {
			api.WriteError(w, r, signalError(err))
			return
		}
		if p.SessionID != sessionID {
			api.WriteError(w, r, api.Forbidden("token does not belong to this session"))
			return
		}
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	signals, err := s.app.ListRecent(r.Context(), sessionID, r.URL.Query().Get("channel"), limit)
	if err != nil {
		api.WriteError(w, r, signalError(err))
		return
	}

	api.WriteJSON(w, 200, map[string]interface{}{"signals": signals})
}

// signalError maps signal domain errors onto HTTP statuses
func signalError(err error) error {
	switch {
	case errors.Is(err, participant.ErrInvalidToken):
		return api.Unauthorized("invalid participant token")
	case errors.Is(err, participant.ErrModerated):
		return api.Forbidden("participant was removed from the session")
	case errors.Is(err, session.ErrNotFound):
		return api.NotFound("session not found")
	case errors.Is(err, session.ErrMissingHostKey):
		return api.Unauthorized("host key required")
	case errors.Is(err, session.ErrHostKeyMismatch):
		return api.Forbidden("not the session host")
	case errors.Is(err, ErrMissingChannel), errors.Is(err, ErrPayloadTooLarge):
		return api.BadRequest(err.Error())
	default:
		return err
	}
}
