package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of a play session
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusLocked    SessionStatus = "locked"
	SessionStatusEnded     SessionStatus = "ended"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// IsTerminal reports whether the status accepts no further transitions.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusEnded || s == SessionStatusCancelled
}

// SessionAction is a host-initiated lifecycle transition
type SessionAction string

const (
	SessionActionStart  SessionAction = "start"
	SessionActionPause  SessionAction = "pause"
	SessionActionResume SessionAction = "resume"
	SessionActionEnd    SessionAction = "end"
	SessionActionCancel SessionAction = "cancel"
	SessionActionLock   SessionAction = "lock"
	SessionActionUnlock SessionAction = "unlock"
)

// PlaySession represents a live hosted play session
type PlaySession struct {
	ID               uuid.UUID     `json:"id"`
	SessionCode      string        `json:"session_code"`
	DisplayName      string        `json:"display_name"`
	Status           SessionStatus `json:"status"`
	GameID           *uuid.UUID    `json:"game_id,omitempty"`
	PlanID           *uuid.UUID    `json:"plan_id,omitempty"`
	ParticipantCount int           `json:"participant_count"`
	CurrentStep      int           `json:"current_step"`
	CurrentPhase     int           `json:"current_phase"`
	CreatedAt        time.Time     `json:"created_at"`
	StartedAt        *time.Time    `json:"started_at,omitempty"`
	PausedAt         *time.Time    `json:"paused_at,omitempty"`
	EndedAt          *time.Time    `json:"ended_at,omitempty"`
}

// PublicSession is the projection of a session exposed to anonymous
// participants via the public code lookup.
type PublicSession struct {
	ID               uuid.UUID     `json:"id"`
	SessionCode      string        `json:"session_code"`
	DisplayName      string        `json:"display_name"`
	Status           SessionStatus `json:"status"`
	GameID           *uuid.UUID    `json:"game_id,omitempty"`
	ParticipantCount int           `json:"participant_count"`
	CurrentStep      int           `json:"current_step"`
	CurrentPhase     int           `json:"current_phase"`
}

// Public returns the anonymous-participant projection of the session.
func (s *PlaySession) Public() PublicSession {
	return PublicSession{
		ID:               s.ID,
		SessionCode:      s.SessionCode,
		DisplayName:      s.DisplayName,
		Status:           s.Status,
		GameID:           s.GameID,
		ParticipantCount: s.ParticipantCount,
		CurrentStep:      s.CurrentStep,
		CurrentPhase:     s.CurrentPhase,
	}
}
