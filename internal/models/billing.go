package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus represents the local reconciliation state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusIssued  InvoiceStatus = "issued"
	InvoiceStatusSent    InvoiceStatus = "sent"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
	InvoiceStatusVoid    InvoiceStatus = "void"
)

// SubscriptionStatus mirrors the provider-side subscription state
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// BillingEvent is the raw webhook event log row, upserted by provider
// event key so replays stay idempotent.
type BillingEvent struct {
	ID         uuid.UUID       `json:"id"`
	EventKey   string          `json:"event_key"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Subscription is the local mirror of a provider subscription
type Subscription struct {
	ID                 uuid.UUID          `json:"id"`
	ProviderID         string             `json:"provider_id"`
	CustomerProviderID string             `json:"customer_provider_id"`
	Status             SubscriptionStatus `json:"status"`
	CurrentPeriodEnd   *time.Time         `json:"current_period_end,omitempty"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Invoice is the local mirror of a provider invoice
type Invoice struct {
	ID         uuid.UUID     `json:"id"`
	ProviderID string        `json:"provider_id"`
	Status     InvoiceStatus `json:"status"`
	AmountDue  int64         `json:"amount_due"`
	Currency   string        `json:"currency"`
	PaidAt     *time.Time    `json:"paid_at,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}
