package events

import (
	"encoding/json"
	"time"
)

// Event payload types shared between the feature packages and the gateway

// SessionStartedPayload is the payload for a SessionStarted event
type SessionStartedPayload struct {
	SessionID   string    `json:"session_id"`
	SessionCode string    `json:"session_code"`
	StartedAt   time.Time `json:"started_at"`
}

// SessionPausedPayload is the payload for a SessionPaused event
type SessionPausedPayload struct {
	SessionID string    `json:"session_id"`
	PausedAt  time.Time `json:"paused_at"`
}

// SessionResumedPayload is the payload for a SessionResumed event
type SessionResumedPayload struct {
	SessionID string    `json:"session_id"`
	ResumedAt time.Time `json:"resumed_at"`
}

// SessionEndedPayload is the payload for a SessionEnded event
type SessionEndedPayload struct {
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	EndedAt   time.Time `json:"ended_at"`
}

// SessionLockChangedPayload is the payload for a SessionLockChanged event
type SessionLockChangedPayload struct {
	SessionID string `json:"session_id"`
	Locked    bool   `json:"locked"`
}

// ProgressUpdatedPayload is the payload for a ProgressUpdated event
type ProgressUpdatedPayload struct {
	SessionID    string `json:"session_id"`
	CurrentStep  int    `json:"current_step"`
	CurrentPhase int    `json:"current_phase"`
}

// ParticipantJoinedPayload is the payload for a ParticipantJoined event
type ParticipantJoinedPayload struct {
	SessionID     string    `json:"session_id"`
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	Rejoin        bool      `json:"rejoin"`
	JoinedAt      time.Time `json:"joined_at"`
}

// ParticipantUpdatedPayload is the payload for a ParticipantUpdated event
type ParticipantUpdatedPayload struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	Status        string `json:"status"`
	IsNextStarter bool   `json:"is_next_starter"`
}

// DecisionChangedPayload is the broadcast hint emitted after every decision
// mutation. Connected clients refetch; the database write is the source of
// truth.
type DecisionChangedPayload struct {
	SessionID  string `json:"session_id"`
	DecisionID string `json:"decision_id"`
	Action     string `json:"action"`
	Status     string `json:"status"`
}

// SignalRaisedPayload is the payload for a SignalRaised event
type SignalRaisedPayload struct {
	SessionID  string          `json:"session_id"`
	SignalID   string          `json:"signal_id"`
	Channel    string          `json:"channel"`
	SenderID   string          `json:"sender_id"`
	SenderName string          `json:"sender_name,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	RaisedAt   time.Time       `json:"raised_at"`
}

// AchievementUnlockedPayload is the payload for an AchievementUnlocked event
type AchievementUnlockedPayload struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	AchievementID string `json:"achievement_id"`
	Title         string `json:"title"`
}
