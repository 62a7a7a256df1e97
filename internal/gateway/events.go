package gateway

import (
	"encoding/json"
	"time"
)

// SessionEvent represents the wire envelope for all session events pushed to
// websocket clients. The Channel field carries the client-facing channel name
// ("play:<sessionId>").
type SessionEvent struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Channel   string          `json:"channel"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType represents the type of session event
type EventType string

const (
	EventTypeSessionStarted      EventType = "SessionStarted"
	EventTypeSessionPaused       EventType = "SessionPaused"
	EventTypeSessionResumed      EventType = "SessionResumed"
	EventTypeSessionEnded        EventType = "SessionEnded"
	EventTypeSessionLockChanged  EventType = "SessionLockChanged"
	EventTypeProgressUpdated     EventType = "ProgressUpdated"
	EventTypeParticipantJoined   EventType = "ParticipantJoined"
	EventTypeParticipantUpdated  EventType = "ParticipantUpdated"
	EventTypeDecisionChanged     EventType = "DecisionChanged"
	EventTypeSignalRaised        EventType = "SignalRaised"
	EventTypeAchievementUnlocked EventType = "AchievementUnlocked"
)
