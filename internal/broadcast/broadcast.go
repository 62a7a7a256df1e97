package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Publisher pushes fire-and-forget event envelopes straight to NATS,
// bypassing the outbox. Used where the database write is already the source
// of truth and the broadcast is only a hint for connected clients, and for
// purely ephemeral signals. Delivery is at-most-once.
type Publisher struct {
	nc     *nats.Conn
	prefix string
}

func NewPublisher(nc *nats.Conn, prefix string) *Publisher {
	return &Publisher{nc: nc, prefix: prefix}
}

func (p *Publisher) Publish(ctx context.Context, sessionID uuid.UUID, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	envelope := map[string]interface{}{
		"eventId":   uuid.New().String(),
		"eventType": eventType,
		"sessionId": sessionID.String(),
		"timestamp": time.Now(),
		"payload":   json.RawMessage(body),
	}

	messageBytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	subject := fmt.Sprintf("%s.%s.%s", p.prefix, sessionID, eventType)
	if err := p.nc.Publish(subject, messageBytes); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Noop discards every publish; used when no broker is configured
type Noop struct{}

func (Noop) Publish(ctx context.Context, sessionID uuid.UUID, eventType string, payload interface{}) error {
	log.Debug().
		Str("session_id", sessionID.String()).
		Str("event_type", eventType).
		Msg("broadcast dropped (no broker configured)")
	return nil
}
