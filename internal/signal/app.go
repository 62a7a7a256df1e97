package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lekbanken/playserver/internal/events"
	"github.com/lekbanken/playserver/internal/models"
	"github.com/rs/zerolog/log"
)

// maxPayloadBytes caps signal payload size
const maxPayloadBytes = 4096

var (
	// ErrPayloadTooLarge indicates the signal payload exceeds the cap
	ErrPayloadTooLarge = errors.New("signal payload too large")
	// ErrMissingChannel indicates the signal named no channel
	ErrMissingChannel = errors.New("signal channel is required")
)

// Broadcaster is the fire-and-forget fan-out toward connected clients
type Broadcaster interface {
	Publish(ctx context.Context, sessionID uuid.UUID, eventType string, payload interface{}) error
}

// App handles signal business logic. The broadcast is the primary path;
// the durable log is best-effort and exists only so clients can backfill
// on demand. At-most-once, no ordering guarantee.
type App struct {
	repo        *Repository
	broadcaster Broadcaster
}

// NewApp creates a new signals App
func NewApp(repo *Repository, broadcaster Broadcaster) *App {
	return &App{repo: repo, broadcaster: broadcaster}
}

type RaiseRequest struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Raise broadcasts a signal from a participant and appends it to the
// durable log. A log failure does not fail the broadcast.
func (a *App) Raise(ctx context.Context, sender *models.Participant, req RaiseRequest) (*models.SessionSignal, error) {
	if req.Channel == "" {
		return nil, ErrMissingChannel
	}
	if len(req.Payload) > maxPayloadBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(req.Payload))
	}

	payload := req.Payload
	if payload == nil {
		payload = json.RawMessage("{}")
	}

	sig := models.SessionSignal{
		ID:         uuid.New(),
		SessionID:  sender.SessionID,
		Channel:    req.Channel,
		SenderID:   sender.ID,
		SenderName: sender.DisplayName,
		Payload:    payload,
		CreatedAt:  time.Now(),
	}

	if err := a.broadcaster.Publish(ctx, sig.SessionID, "SignalRaised", events.SignalRaisedPayload{
		SessionID:  sig.SessionID.String(),
		SignalID:   sig.ID.String(),
		Channel:    sig.Channel,
		SenderID:   sig.SenderID.String(),
		SenderName: sig.SenderName,
		Payload:    sig.Payload,
		RaisedAt:   sig.CreatedAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to broadcast signal: %w", err)
	}

	if err := a.repo.InsertSignal(ctx, sig); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", sig.SessionID.String()).
			Str("channel", sig.Channel).
			Msg("failed to log signal")
	}
	return &sig, nil
}

// ListRecent returns the newest logged signals for a session
func (a *App) ListRecent(ctx context.Context, sessionID uuid.UUID, channel string, limit int) ([]models.SessionSignal, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return a.repo.ListRecent(ctx, sessionID, channel, limit)
}
