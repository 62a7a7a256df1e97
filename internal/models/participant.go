package models

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantRole represents a participant's role within a session
type ParticipantRole string

const (
	ParticipantRolePlayer      ParticipantRole = "player"
	ParticipantRoleObserver    ParticipantRole = "observer"
	ParticipantRoleTeamLead    ParticipantRole = "team_lead"
	ParticipantRoleFacilitator ParticipantRole = "facilitator"
)

// ParticipantStatus represents a participant's presence/moderation state
type ParticipantStatus string

const (
	ParticipantStatusActive       ParticipantStatus = "active"
	ParticipantStatusIdle         ParticipantStatus = "idle"
	ParticipantStatusDisconnected ParticipantStatus = "disconnected"
	ParticipantStatusPending      ParticipantStatus = "pending"
	ParticipantStatusKicked       ParticipantStatus = "kicked"
	ParticipantStatusBlocked      ParticipantStatus = "blocked"
)

// Moderated reports whether the status was set by a host action and must
// not be overwritten by presence sweeps.
func (s ParticipantStatus) Moderated() bool {
	return s == ParticipantStatusKicked || s == ParticipantStatusBlocked || s == ParticipantStatusPending
}

// ParticipantAction is a host moderation action on a participant
type ParticipantAction string

const (
	ParticipantActionKick           ParticipantAction = "kick"
	ParticipantActionBlock          ParticipantAction = "block"
	ParticipantActionApprove        ParticipantAction = "approve"
	ParticipantActionSetNextStarter ParticipantAction = "setNextStarter"
	ParticipantActionSetPosition    ParticipantAction = "setPosition"
)

// Participant represents an anonymous participant in a play session.
// Participants are never hard-deleted, only status-transitioned.
type Participant struct {
	ID            uuid.UUID         `json:"id"`
	SessionID     uuid.UUID         `json:"session_id"`
	DisplayName   string            `json:"display_name"`
	Role          ParticipantRole   `json:"role"`
	Status        ParticipantStatus `json:"status"`
	IsNextStarter bool              `json:"is_next_starter"`
	CurrentStep   int               `json:"current_step"`
	CurrentPhase  int               `json:"current_phase"`
	JoinedAt      time.Time         `json:"joined_at"`
	LastSeenAt    time.Time         `json:"last_seen_at"`
}

// ParticipantAuth is the capability credential issued on join. It is the
// sole artifact of authentication for anonymous participants.
type ParticipantAuth struct {
	Token         string    `json:"token"`
	ParticipantID uuid.UUID `json:"participant_id"`
	SessionID     uuid.UUID `json:"session_id"`
	DisplayName   string    `json:"display_name"`
}
