package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DecisionStatus represents the state of a host-authored decision.
// Transitions are linear and host-driven: draft -> open -> closed -> revealed.
type DecisionStatus string

const (
	DecisionStatusDraft    DecisionStatus = "draft"
	DecisionStatusOpen     DecisionStatus = "open"
	DecisionStatusClosed   DecisionStatus = "closed"
	DecisionStatusRevealed DecisionStatus = "revealed"
)

// DecisionOption is one selectable option of a decision
type DecisionOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// SessionDecision is a host-authored poll/question bound to a step/phase
// position in the session's content flow.
type SessionDecision struct {
	ID         uuid.UUID        `json:"id"`
	SessionID  uuid.UUID        `json:"session_id"`
	Title      string           `json:"title"`
	Prompt     string           `json:"prompt,omitempty"`
	Options    []DecisionOption `json:"options"`
	Settings   json.RawMessage  `json:"settings,omitempty"`
	Status     DecisionStatus   `json:"status"`
	StepIndex  int              `json:"step_index"`
	PhaseIndex int              `json:"phase_index"`
	CreatedAt  time.Time        `json:"created_at"`
	OpenedAt   *time.Time       `json:"opened_at,omitempty"`
	ClosedAt   *time.Time       `json:"closed_at,omitempty"`
	RevealedAt *time.Time       `json:"revealed_at,omitempty"`
}

// VisibleAt reports whether the decision is unlocked for a viewer at the
// given session position. A decision unlocks only when the viewer's step is
// past the decision's step, or on the same step at or past its phase.
func (d *SessionDecision) VisibleAt(step, phase int) bool {
	if d.Status != DecisionStatusOpen && d.Status != DecisionStatusRevealed {
		return false
	}
	if d.StepIndex < step {
		return true
	}
	return d.StepIndex == step && d.PhaseIndex <= phase
}
