package participant

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/lekbanken/playserver/internal/api"
	"github.com/lekbanken/playserver/internal/session"
)

// HostAuthorizer is what the moderation endpoints need from the session
// feature.
type HostAuthorizer interface {
	AuthorizeHost(ctx context.Context, sessionID uuid.UUID, hostKey string) error
}

// Service exposes the participant REST surface
type Service struct {
	app   *App
	hosts HostAuthorizer
}

// NewService creates a new participants HTTP service
func NewService(app *App, hosts HostAuthorizer) *Service {
	return &Service{app: app, hosts: hosts}
}

// RegisterRoutes mounts the participant endpoints
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Post("/api/play/join", s.handleJoin)
	r.Post("/api/play/rejoin", s.handleRejoin)
	r.Get("/api/play/me", s.handleMe)
	r.Post("/api/play/heartbeat", s.handleHeartbeat)
	r.Get("/api/play/sessions/{id}/participants/{participantId}", s.handleGet)
	r.Patch("/api/play/sessions/{id}/participants/{participantId}", s.handleModerate)
}

func (s *Service) handleJoin(w http.ResponseWriter, r *http.Request) {
	req, err := api.RequestBody[JoinRequest](r)
	if err != nil {
		api.WriteError(w, r, api.BadRequest("invalid request body"))
		return
	}
	req.SessionCode = strings.ToUpper(req.SessionCode)

	if err := req.Validate(); err != nil {
		api.WriteError(w, r, api.BadRequest("validation failed", err.Error()))
		return
	}

	auth, participant, err := s.app.Join(r.Context(), req)
	if err != nil {
		api.WriteError(w, r, participantError(err))
		return
	}

	api.WriteJSON(w, 201, map[string]interface{}{
		"token":          auth.Token,
		"participant_id": auth.ParticipantID,
		"session_id":     auth.SessionID,
		"display_name":   auth.DisplayName,
		"participant":    participant,
	})
}

func (s *Service) handleRejoin(w http.ResponseWriter, r *http.Request) {
	req, err := api.RequestBody[RejoinRequest](r)
	if err != nil {
		api.WriteError(w, r, api.BadRequest("invalid request body"))
		return
	}
	req.SessionCode = strings.ToUpper(req.SessionCode)
	if req.ParticipantToken == "" {
		req.ParticipantToken = api.ParticipantToken(r)
	}

	participant, sess, err := s.app.Rejoin(r.Context(), req)
	if err != nil {
		api.WriteError(w, r, participantError(err))
		return
	}

	api.WriteJSON(w, 200, map[string]interface{}{
		"participant": participant,
		"session":     sess.Public(),
	})
}

func (s *Service) handleMe(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.URL.Query().Get("code"))

	participant, sess, err := s.app.Me(r.Context(), code, api.ParticipantToken(r))
	if err != nil {
		api.WriteError(w, r, participantError(err))
		return
	}

	api.WriteJSON(w, 200, map[string]interface{}{
		"participant": participant,
		"session":     sess.Public(),
	})
}

func (s *Service) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.URL.Query().Get("code"))

	sess, err := s.app.Heartbeat(r.Context(), code, api.ParticipantToken(r))
	if err != nil {
		api.WriteError(w, r, participantError(err))
		return
	}

	api.WriteJSON(w, 200, map[string]interface{}{
		"ok":      true,
		"session": sess.Public(),
	})
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	sessionID, participantID, err := pathIDs(r)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	if err := s.hosts.AuthorizeHost(r.Context(), sessionID, api.HostKey(r)); err != nil {
		api.WriteError(w, r, hostError(err))
		return
	}

	participant, err := s.app.GetParticipant(r.Context(), participantID)
	if err != nil {
		api.WriteError(w, r, participantError(err))
		return
	}

	api.WriteJSON(w, 200, map[string]interface{}{"participant": participant})
}

func (s *Service) handleModerate(w http.ResponseWriter, r *http.Request) {
	sessionID, participantID, err := pathIDs(r)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	if err := s.hosts.AuthorizeHost(r.Context(), sessionID, api.HostKey(r)); err != nil {
		api.WriteError(w, r, hostError(err))
		return
	}

	req, err := api.RequestBody[ModerateRequest](r)
	if err != nil {
		api.WriteError(w, r, api.BadRequest("invalid request body"))
		return
	}

	participant, err := s.app.Moderate(r.Context(), sessionID, participantID, req)
	if err != nil {
		api.WriteError(w, r, participantError(err))
		return
	}

	api.WriteJSON(w, 200, map[string]interface{}{"participant": participant})
}

func pathIDs(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, api.BadRequest("invalid session id")
	}
	participantID, err := uuid.Parse(chi.URLParam(r, "participantId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, api.BadRequest("invalid participant id")
	}
	return sessionID, participantID, nil
}

// participantError maps participant domain errors onto HTTP statuses
func participantError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return api.NotFound("participant not found")
	case errors.Is(err, session.ErrNotFound):
		return api.NotFound("session not found")
	case errors.Is(err, ErrInvalidToken):
		return api.Unauthorized("invalid participant token")
	case errors.Is(err, ErrModerated):
		return api.Forbidden("participant was removed from the session")
	case errors.Is(err, ErrSessionLocked):
		return api.Forbidden("session is locked")
	case errors.Is(err, ErrSessionClosed):
		return api.NewError(410, "session has ended")
	case errors.Is(err, ErrUnknownAction):
		return api.BadRequest(err.Error())
	default:
		return err
	}
}

// hostError maps host authorization errors onto HTTP statuses
func hostError(err error) error {
	switch {
	case errors.Is(err, session.ErrMissingHostKey):
		return api.Unauthorized("host key required")
	case errors.Is(err, session.ErrHostKeyMismatch):
		return api.Forbidden("not the session host")
	case errors.Is(err, session.ErrNotFound):
		return api.NotFound("session not found")
	default:
		return err
	}
}
