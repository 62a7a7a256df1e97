package billing

import (
	"io"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/lekbanken/playserver/internal/api"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76/webhook"
)

// maxWebhookBytes caps the webhook request body
const maxWebhookBytes = 65536

// Service exposes the billing webhook endpoint
type Service struct {
	app           *App
	signingSecret string
}

// NewService creates a new billing HTTP service
func NewService(app *App, signingSecret string) *Service {
	return &Service{app: app, signingSecret: signingSecret}
}

// RegisterRoutes mounts the billing endpoints
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Post("/api/billing/webhooks/stripe", s.handleStripeWebhook)
}

// handleStripeWebhook verifies the signature, records the event and
// applies its mapping. Once the signature checks out the endpoint always
// acks, otherwise the provider keeps retrying an event we cannot map.
func (s *Service) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		api.WriteError(w, r, api.BadRequest("failed to read request body"))
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), s.signingSecret)
	if err != nil {
		log.Warn().Err(err).Msg("stripe webhook signature verification failed")
		api.WriteError(w, r, api.BadRequest("invalid webhook signature"))
		return
	}

	if err := s.app.HandleEvent(r.Context(), event.ID, string(event.Type), event.Data.Raw); err != nil {
		log.Error().
			Err(err).
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Msg("failed to apply billing event")
	}

	api.WriteJSON(w, 200, map[string]interface{}{"received": true})
}
