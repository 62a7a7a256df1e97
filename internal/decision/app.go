package decision

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lekbanken/playserver/internal/events"
	"github.com/lekbanken/playserver/internal/models"
	"github.com/rs/zerolog/log"
)

// Broadcaster is the fire-and-forget hint channel toward connected clients
type Broadcaster interface {
	Publish(ctx context.Context, sessionID uuid.UUID, eventType string, payload interface{}) error
}

// App handles decision business logic. The database write is the source of
// truth; every mutation is followed by a best-effort broadcast that is
// logged on failure and never blocks the mutation.
type App struct {
	repo        *Repository
	broadcaster Broadcaster
}

// NewApp creates a new decisions App
func NewApp(repo *Repository, broadcaster Broadcaster) *App {
	return &App{repo: repo, broadcaster: broadcaster}
}

// DecisionAction is one of the host-driven decision operations
type DecisionAction string

const (
	DecisionActionCreate DecisionAction = "create"
	DecisionActionUpdate DecisionAction = "update"
	DecisionActionOpen   DecisionAction = "open"
	DecisionActionClose  DecisionAction = "close"
	DecisionActionReveal DecisionAction = "reveal"
)

// ActionRequest is the action-coded POST body for decision mutations
type ActionRequest struct {
	Action     DecisionAction          `json:"action"`
	DecisionID *uuid.UUID              `json:"decision_id,omitempty"`
	Title      *string                 `json:"title,omitempty"`
	Prompt     *string                 `json:"prompt,omitempty"`
	Options    []models.DecisionOption `json:"options,omitempty"`
	Settings   json.RawMessage         `json:"settings,omitempty"`
	StepIndex  *int                    `json:"step_index,omitempty"`
	PhaseIndex *int                    `json:"phase_index,omitempty"`
}

// ValidateOptions enforces the option-set rules: at least two options,
// unique non-empty keys, non-empty labels.
func ValidateOptions(options []models.DecisionOption) error {
	if len(options) < 2 {
		return fmt.Errorf("at least two options are required")
	}
	seen := make(map[string]bool, len(options))
	for i, opt := range options {
		if opt.Key == "" {
			return fmt.Errorf("option %d has an empty key", i)
		}
		if opt.Label == "" {
			return fmt.Errorf("option %q has an empty label", opt.Key)
		}
		if seen[opt.Key] {
			return fmt.Errorf("duplicate option key %q", opt.Key)
		}
		seen[opt.Key] = true
	}
	return nil
}

// List returns the decisions visible to the viewer. The host sees all;
// a participant sees only open/revealed decisions at or behind the
// session's current step/phase position.
func (a *App) List(ctx context.Context, sess *models.PlaySession, host bool) ([]models.SessionDecision, error) {
	decisions, err := a.repo.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if host {
		return decisions, nil
	}

	visible := make([]models.SessionDecision, 0, len(decisions))
	for _, d := range decisions {
		if d.VisibleAt(sess.CurrentStep, sess.CurrentPhase) {
			visible = append(visible, d)
		}
	}
	return visible, nil
}

// Apply performs a host decision action and broadcasts the change
func (a *App) Apply(ctx context.Context, sessionID uuid.UUID, req ActionRequest) (*models.SessionDecision, error) {
	var (
		d   *models.SessionDecision
		err error
	)

	switch req.Action {
	case DecisionActionCreate:
		d, err = a.create(ctx, sessionID, req)
	case DecisionActionUpdate:
		d, err = a.update(ctx, sessionID, req)
	case DecisionActionOpen:
		d, err = a.transition(ctx, sessionID, req, models.DecisionStatusDraft, models.DecisionStatusOpen)
	case DecisionActionClose:
		d, err = a.transition(ctx, sessionID, req, models.DecisionStatusOpen, models.DecisionStatusClosed)
	case DecisionActionReveal:
		d, err = a.transition(ctx, sessionID, req, models.DecisionStatusClosed, models.DecisionStatusRevealed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	if err != nil {
		return nil, err
	}

	if bErr := a.broadcaster.Publish(ctx, sessionID, "DecisionChanged", events.DecisionChangedPayload{
		SessionID:  sessionID.String(),
		DecisionID: d.ID.String(),
		Action:     string(req.Action),
		Status:     string(d.Status),
	}); bErr != nil {
		log.Warn().
			Err(bErr).
			Str("session_id", sessionID.String()).
			Str("decision_id", d.ID.String()).
			Msg("decision broadcast failed")
	}
	return d, nil
}

func (a *App) create(ctx context.Context, sessionID uuid.UUID, req ActionRequest) (*models.SessionDecision, error) {
	if req.Title == nil || *req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if err := ValidateOptions(req.Options); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var prompt string
	if req.Prompt != nil {
		prompt = *req.Prompt
	}
	var step, phase int
	if req.StepIndex != nil {
		step = *req.StepIndex
	}
	if req.PhaseIndex != nil {
		phase = *req.PhaseIndex
	}

	return a.repo.CreateDecision(ctx, CreateDecisionRequest{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Title:      *req.Title,
		Prompt:     prompt,
		Options:    req.Options,
		Settings:   req.Settings,
		StepIndex:  step,
		PhaseIndex: phase,
	})
}

func (a *App) update(ctx context.Context, sessionID uuid.UUID, req ActionRequest) (*models.SessionDecision, error) {
	existing, err := a.get(ctx, sessionID, req.DecisionID)
	if err != nil {
		return nil, err
	}
	if existing.Status == models.DecisionStatusRevealed {
		return nil, ErrLockedForUpdate
	}
	if req.Options != nil {
		if err := ValidateOptions(req.Options); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	return a.repo.UpdateContent(ctx, existing.ID, UpdateDecisionRequest{
		Title:    req.Title,
		Prompt:   req.Prompt,
		Options:  req.Options,
		Settings: req.Settings,
	})
}

func (a *App) transition(ctx context.Context, sessionID uuid.UUID, req ActionRequest, from, to models.DecisionStatus) (*models.SessionDecision, error) {
	existing, err := a.get(ctx, sessionID, req.DecisionID)
	if err != nil {
		return nil, err
	}
	if existing.Status != from {
		return nil, fmt.Errorf("%w: cannot move %s decision to %s", ErrInvalidTransition, existing.Status, to)
	}
	return a.repo.UpdateStatus(ctx, existing.ID, to)
}

func (a *App) get(ctx context.Context, sessionID uuid.UUID, id *uuid.UUID) (*models.SessionDecision, error) {
	if id == nil {
		return nil, fmt.Errorf("%w: decision_id is required", ErrValidation)
	}
	d, err := a.repo.GetDecision(ctx, *id)
	if err != nil {
		return nil, err
	}
	if d.SessionID != sessionID {
		return nil, ErrNotFound
	}
	return d, nil
}
