package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lekbanken/playserver/internal/models"
	"github.com/rs/zerolog/log"
)

// EventStore is what the reconciler needs from the billing repository
type EventStore interface {
	InsertEvent(ctx context.Context, eventKey, eventType string, payload []byte) (bool, error)
	UpsertSubscription(ctx context.Context, providerID, customerID string, status models.SubscriptionStatus, periodEnd *time.Time) error
	EnsureInvoice(ctx context.Context, providerID string, status models.InvoiceStatus, amountDue int64, currency string) error
	AdvanceInvoiceStatus(ctx context.Context, providerID string, from []models.InvoiceStatus, to models.InvoiceStatus, paidAt *time.Time) (bool, error)
}

// App reconciles provider webhook events into the local billing tables.
// Every event lands in billing_events first; a replayed event key short
// circuits before any mapping runs, so handlers stay idempotent.
type App struct {
	store EventStore
}

// NewApp creates a new billing App
func NewApp(store EventStore) *App {
	return &App{store: store}
}

type subscriptionEvent struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
}

type invoiceEvent struct {
	ID        string `json:"id"`
	AmountDue int64  `json:"amount_due"`
	Currency  string `json:"currency"`
}

// HandleEvent records a webhook event and applies its mapping. The
// returned error covers mapping failures only; by the time it is
// inspected the raw event is already logged.
func (a *App) HandleEvent(ctx context.Context, eventKey, eventType string, data json.RawMessage) error {
	inserted, err := a.store.InsertEvent(ctx, eventKey, eventType, data)
	if err != nil {
		return fmt.Errorf("failed to record billing event: %w", err)
	}
	if !inserted {
		log.Debug().
			Str("event_key", eventKey).
			Str("event_type", eventType).
			Msg("billing event replayed, skipping")
		return nil
	}

	switch eventType {
	case "customer.subscription.created", "customer.subscription.updated":
		return a.applySubscription(ctx, data, "")
	case "customer.subscription.deleted":
		return a.applySubscription(ctx, data, models.SubscriptionStatusCanceled)
	case "invoice.created", "invoice.finalized":
		return a.ensureInvoice(ctx, data, models.InvoiceStatusIssued)
	case "invoice.sent":
		return a.markInvoiceSent(ctx, data)
	case "invoice.paid", "invoice.payment_succeeded":
		return a.settleInvoice(ctx, data, models.InvoiceStatusPaid)
	case "invoice.payment_failed":
		return a.settleInvoice(ctx, data, models.InvoiceStatusOverdue)
	default:
		log.Debug().Str("event_type", eventType).Msg("unhandled billing event type")
		return nil
	}
}

func (a *App) applySubscription(ctx context.Context, data json.RawMessage, override models.SubscriptionStatus) error {
	var sub subscriptionEvent
	if err := json.Unmarshal(data, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription event: %w", err)
	}
	if sub.ID == "" {
		return fmt.Errorf("subscription event missing id")
	}

	status := override
	if status == "" {
		status = subscriptionStatus(sub.Status)
	}

	var periodEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}
	return a.store.UpsertSubscription(ctx, sub.ID, sub.Customer, status, periodEnd)
}

func (a *App) ensureInvoice(ctx context.Context, data json.RawMessage, status models.InvoiceStatus) error {
	var inv invoiceEvent
	if err := json.Unmarshal(data, &inv); err != nil {
		return fmt.Errorf("failed to parse invoice event: %w", err)
	}
	if inv.ID == "" {
		return fmt.Errorf("invoice event missing id")
	}
	return a.store.EnsureInvoice(ctx, inv.ID, status, inv.AmountDue, inv.Currency)
}

func (a *App) markInvoiceSent(ctx context.Context, data json.RawMessage) error {
	var inv invoiceEvent
	if err := json.Unmarshal(data, &inv); err != nil {
		return fmt.Errorf("failed to parse invoice event: %w", err)
	}
	if inv.ID == "" {
		return fmt.Errorf("invoice event missing id")
	}
	_, err := a.store.AdvanceInvoiceStatus(ctx, inv.ID,
		[]models.InvoiceStatus{models.InvoiceStatusIssued},
		models.InvoiceStatusSent, nil)
	return err
}

// settleInvoice moves an invoice to paid or overdue. Only invoices still
// awaiting payment move; a paid invoice is never pulled back by a late
// payment_failed replay.
func (a *App) settleInvoice(ctx context.Context, data json.RawMessage, to models.InvoiceStatus) error {
	var inv invoiceEvent
	if err := json.Unmarshal(data, &inv); err != nil {
		return fmt.Errorf("failed to parse invoice event: %w", err)
	}
	if inv.ID == "" {
		return fmt.Errorf("invoice event missing id")
	}

	var paidAt *time.Time
	if to == models.InvoiceStatusPaid {
		now := time.Now().UTC()
		paidAt = &now
	}

	moved, err := a.store.AdvanceInvoiceStatus(ctx, inv.ID,
		[]models.InvoiceStatus{models.InvoiceStatusIssued, models.InvoiceStatusSent, models.InvoiceStatusOverdue},
		to, paidAt)
	if err != nil {
		return err
	}
	if !moved {
		log.Debug().
			Str("invoice_id", inv.ID).
			Str("target_status", string(to)).
			Msg("invoice not advanced, already settled or unknown")
	}
	return nil
}

func subscriptionStatus(s string) models.SubscriptionStatus {
	switch models.SubscriptionStatus(s) {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing,
		models.SubscriptionStatusPastDue, models.SubscriptionStatusCanceled:
		return models.SubscriptionStatus(s)
	default:
		return models.SubscriptionStatusActive
	}
}
