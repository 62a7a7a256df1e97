package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionSignal is an ephemeral broadcast event used for low-latency
// in-session cues. The broadcast transport is the primary path; the durable
// log is best-effort and queried on demand.
type SessionSignal struct {
	ID         uuid.UUID       `json:"id"`
	SessionID  uuid.UUID       `json:"session_id"`
	Channel    string          `json:"channel"`
	SenderID   uuid.UUID       `json:"sender_id"`
	SenderName string          `json:"sender_name,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}
