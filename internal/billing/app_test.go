package billing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/lekbanken/playserver/internal/models"
	"github.com/stretchr/testify/require"
)

// fakeStore reproduces the repository semantics in memory: event keys are
// unique, invoice advances honor the allowed source statuses.
type fakeStore struct {
	events        map[string]string
	subscriptions map[string]models.Subscription
	invoices      map[string]models.Invoice
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events:        make(map[string]string),
		subscriptions: make(map[string]models.Subscription),
		invoices:      make(map[string]models.Invoice),
	}
}

func (f *fakeStore) InsertEvent(_ context.Context, eventKey, eventType string, _ []byte) (bool, error) {
	if _, ok := f.events[eventKey]; ok {
		return false, nil
	}
	f.events[eventKey] = eventType
	return true, nil
}

func (f *fakeStore) UpsertSubscription(_ context.Context, providerID, customerID string, status models.SubscriptionStatus, periodEnd *time.Time) error {
	f.subscriptions[providerID] = models.Subscription{
		ProviderID:         providerID,
		CustomerProviderID: customerID,
		Status:             status,
		CurrentPeriodEnd:   periodEnd,
	}
	return nil
}

func (f *fakeStore) EnsureInvoice(_ context.Context, providerID string, status models.InvoiceStatus, amountDue int64, currency string) error {
	if _, ok := f.invoices[providerID]; ok {
		return nil
	}
	f.invoices[providerID] = models.Invoice{ProviderID: providerID, Status: status, AmountDue: amountDue, Currency: currency}
	return nil
}

func (f *fakeStore) AdvanceInvoiceStatus(_ context.Context, providerID string, from []models.InvoiceStatus, to models.InvoiceStatus, paidAt *time.Time) (bool, error) {
	inv, ok := f.invoices[providerID]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if inv.Status == s {
			inv.Status = to
			if paidAt != nil {
				inv.PaidAt = paidAt
			}
			f.invoices[providerID] = inv
			return true, nil
		}
	}
	return false, nil
}

func handle(t *testing.T, app *App, key, eventType, data string) {
	t.Helper()
	require.NoError(t, app.HandleEvent(context.Background(), key, eventType, json.RawMessage(data)))
}

func Test_HandleEvent_ReplayedEventIsRecordedOnce(t *testing.T) {
	store := newFakeStore()
	app := NewApp(store)

	sub := `{"id": "sub_1", "customer": "cus_1", "status": "active"}`
	handle(t, app, "evt_1", "customer.subscription.created", sub)
	handle(t, app, "evt_1", "customer.subscription.created", sub)

	require.Len(t, store.events, 1)
	require.Len(t, store.subscriptions, 1)
}

func Test_HandleEvent_SubscriptionLifecycle(t *testing.T) {
	store := newFakeStore()
	app := NewApp(store)

	handle(t, app, "evt_1", "customer.subscription.created",
		`{"id": "sub_1", "customer": "cus_1", "status": "trialing", "current_period_end": 1735689600}`)

	sub := store.subscriptions["sub_1"]
	require.Equal(t, models.SubscriptionStatusTrialing, sub.Status)
	require.Equal(t, "cus_1", sub.CustomerProviderID)
	require.NotNil(t, sub.CurrentPeriodEnd)

	handle(t, app, "evt_2", "customer.subscription.deleted", `{"id": "sub_1", "customer": "cus_1", "status": "active"}`)
	require.Equal(t, models.SubscriptionStatusCanceled, store.subscriptions["sub_1"].Status)
}

func Test_HandleEvent_InvoicePaidFlow(t *testing.T) {
	store := newFakeStore()
	app := NewApp(store)

	handle(t, app, "evt_1", "invoice.finalized", `{"id": "in_1", "amount_due": 4900, "currency": "sek"}`)
	require.Equal(t, models.InvoiceStatusIssued, store.invoices["in_1"].Status)

	handle(t, app, "evt_2", "invoice.sent", `{"id": "in_1"}`)
	require.Equal(t, models.InvoiceStatusSent, store.invoices["in_1"].Status)

	handle(t, app, "evt_3", "invoice.paid", `{"id": "in_1"}`)
	require.Equal(t, models.InvoiceStatusPaid, store.invoices["in_1"].Status)
	require.NotNil(t, store.invoices["in_1"].PaidAt)
}

func Test_HandleEvent_PaidInvoiceNeverMovesBack(t *testing.T) {
	store := newFakeStore()
	app := NewApp(store)

	handle(t, app, "evt_1", "invoice.finalized", `{"id": "in_1", "amount_due": 4900, "currency": "sek"}`)
	handle(t, app, "evt_2", "invoice.payment_succeeded", `{"id": "in_1"}`)
	require.Equal(t, models.InvoiceStatusPaid, store.invoices["in_1"].Status)

	// A late failure event must not unsettle the invoice
	handle(t, app, "evt_3", "invoice.payment_failed", `{"id": "in_1"}`)
	require.Equal(t, models.InvoiceStatusPaid, store.invoices["in_1"].Status)
}

func Test_HandleEvent_PaymentFailedMarksOverdue(t *testing.T) {
	store := newFakeStore()
	app := NewApp(store)

	handle(t, app, "evt_1", "invoice.finalized", `{"id": "in_1"}`)
	handle(t, app, "evt_2", "invoice.payment_failed", `{"id": "in_1"}`)
	require.Equal(t, models.InvoiceStatusOverdue, store.invoices["in_1"].Status)

	// A retried payment eventually succeeding still settles it
	handle(t, app, "evt_3", "invoice.paid", `{"id": "in_1"}`)
	require.Equal(t, models.InvoiceStatusPaid, store.invoices["in_1"].Status)
}

func Test_HandleEvent_UnknownTypeIsLoggedNotFailed(t *testing.T) {
	store := newFakeStore()
	app := NewApp(store)

	handle(t, app, "evt_1", "charge.refunded", `{"id": "ch_1"}`)
	require.Len(t, store.events, 1)
	require.Empty(t, store.invoices)
	require.Empty(t, store.subscriptions)
}

func Test_HandleEvent_MalformedPayloadStillRecorded(t *testing.T) {
	store := newFakeStore()
	app := NewApp(store)

	err := app.HandleEvent(context.Background(), "evt_1", "invoice.paid", json.RawMessage(`{"id": 42}`))
	require.Error(t, err)
	require.Len(t, store.events, 1)
}
