package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/lekbanken/playserver/internal/api"
	"github.com/lekbanken/playserver/internal/models"
)

// ParticipantLister is what the host session view needs from the
// participant feature.
type ParticipantLister interface {
	ListParticipants(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error)
}

// Service exposes the session REST surface
type Service struct {
	app          *App
	participants ParticipantLister
}

// NewService creates a new sessions HTTP service
func NewService(app *App, participants ParticipantLister) *Service {
	return &Service{app: app, participants: participants}
}

// RegisterRoutes mounts the session endpoints
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Post("/api/play/sessions", s.handleCreate)
	r.Get("/api/play/sessions", s.handleList)
	r.Get("/api/play/sessions/{id}", s.handleGet)
	r.Patch("/api/play/sessions/{id}", s.handlePatch)
	r.Get("/api/play/session/{code}", s.handlePublicLookup)
}

func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, err := api.RequestBody[CreateRequest](r)
	if err != nil {
		api.WriteError(w, r, api.BadRequest("invalid request body"))
		return
	}

	if err := req.Validate(); err != nil {
		api.WriteError(w, r, api.BadRequest("validation failed", err.Error()))
		return
	}

	session, hostKey, err := s.app.CreateSession(r.Context(), req)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	api.WriteJSON(w, 201, map[string]interface{}{
		"session":  session,
		"host_key": hostKey,
	})
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	hostKey := api.HostKey(r)
	if hostKey == "" {
		api.WriteError(w, r, api.Unauthorized("host key required"))
		return
	}

	sessions, err := s.app.ListSessions(r.Context(), hostKey)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	api.WriteJSON(w, 200, map[string]interface{}{"sessions": sessions})
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, r, api.BadRequest("invalid session id"))
		return
	}

	if err := s.app.AuthorizeHost(r.Context(), id, api.HostKey(r)); err != nil {
		api.WriteError(w, r, hostError(err))
		return
	}

	session, err := s.app.GetSession(r.Context(), id)
	if err != nil {
		api.WriteError(w, r, sessionError(err))
		return
	}

	participants, err := s.participants.ListParticipants(r.Context(), id)
	if err != nil {
		api.WriteError(w, r, err)
		return
	}

	api.WriteJSON(w, 200, map[string]interface{}{
		"session":      session,
		"participants": participants,
	})
}

// PatchRequest is the action-coded PATCH body for lifecycle transitions
type PatchRequest struct {
	Action models.SessionAction `json:"action"`
	Step   *int                 `json:"step,omitempty"`
	Phase  *int                 `json:"phase,omitempty"`
}

func (s *Service) handlePatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.WriteError(w, r, api.BadRequest("invalid session id"))
		return
	}

	if err := s.app.AuthorizeHost(r.Context(), id, api.HostKey(r)); err != nil {
		api.WriteError(w, r, hostError(err))
		return
	}

	req, err := api.RequestBody[PatchRequest](r)
	if err != nil {
		api.WriteError(w, r, api.BadRequest("invalid request body"))
		return
	}

	var session *models.PlaySession
	if req.Action == "advance" {
		if req.Step == nil || req.Phase == nil {
			api.WriteError(w, r, api.BadRequest("advance requires step and phase"))
			return
		}
		session, err = s.app.SetPosition(r.Context(), id, *req.Step, *req.Phase)
	} else {
		session, err = s.app.ApplyAction(r.Context(), id, req.Action)
	}
	if err != nil {
		api.WriteError(w, r, sessionError(err))
		return
	}

	api.WriteJSON(w, 200, map[string]interface{}{"session": session})
}

func (s *Service) handlePublicLookup(w http.ResponseWriter, r *http.Request) {
	session, err := s.app.GetSessionByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		api.WriteError(w, r, sessionError(err))
		return
	}

	api.WriteJSON(w, 200, map[string]interface{}{"session": session.Public()})
}

// sessionError maps session domain errors onto HTTP statuses
func sessionError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return api.NotFound("session not found")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrUnknownAction):
		return api.BadRequest(err.Error())
	default:
		return err
	}
}

// hostError maps host authorization errors onto HTTP statuses
func hostError(err error) error {
	switch {
	case errors.Is(err, ErrMissingHostKey):
		return api.Unauthorized("host key required")
	case errors.Is(err, ErrHostKeyMismatch):
		return api.Forbidden("not the session host")
	case errors.Is(err, ErrNotFound):
		return api.NotFound("session not found")
	default:
		return err
	}
}
