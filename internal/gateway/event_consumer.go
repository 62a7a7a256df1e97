package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// ConsumerConfig holds configuration for the NATS event consumer
type ConsumerConfig struct {
	URL           string
	SubjectPrefix string // e.g. "play"
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConsumerConfig returns default NATS consumer configuration
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "play",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// eventEnvelope is the broker-side message shape produced by the outbox
// publisher and the signal fast path.
type eventEnvelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// EventConsumer consumes session events from NATS and broadcasts them to
// websocket clients.
type EventConsumer struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	sub               *nats.Subscription
	config            ConsumerConfig
}

// NewEventConsumer connects to NATS and subscribes to the session subjects
func NewEventConsumer(cm *ConnectionManager, config ConsumerConfig) (*EventConsumer, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	ec := &EventConsumer{
		connectionManager: cm,
		nc:                nc,
		config:            config,
	}

	subject := config.SubjectPrefix + ".>"
	sub, err := nc.Subscribe(subject, ec.handleMessage)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	ec.sub = sub

	log.Info().Str("subject", subject).Msg("event consumer subscribed")
	return ec, nil
}

// Close drains the subscription and closes the NATS connection
func (ec *EventConsumer) Close() {
	if ec.sub != nil {
		_ = ec.sub.Drain()
	}
	ec.nc.Close()
}

func (ec *EventConsumer) handleMessage(msg *nats.Msg) {
	var envelope eventEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to unmarshal event envelope")
		return
	}

	sessionID, err := uuid.Parse(envelope.SessionID)
	if err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("event envelope has invalid session id")
		return
	}

	event := &SessionEvent{
		ID:        envelope.EventID,
		SessionID: envelope.SessionID,
		Channel:   "play:" + envelope.SessionID,
		Type:      EventType(envelope.EventType),
		Timestamp: envelope.Timestamp,
		Data:      envelope.Payload,
	}

	ec.connectionManager.BroadcastToSession(sessionID, event)
}
