package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lekbanken/playserver/internal/models"
	"github.com/lekbanken/playserver/internal/sqlutil"
	"github.com/lib/pq"
)

// ErrInvoiceNotFound indicates no local invoice row for the provider id
var ErrInvoiceNotFound = errors.New("invoice not found")

// Repository implements billing data access operations
type Repository struct {
	db sqlutil.DBTX
}

// NewRepository creates a new billing repository
func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

// InsertEvent appends a raw webhook event to the log, keyed by the
// provider event id. Replays hit the conflict clause and report false.
func (r *Repository) InsertEvent(ctx context.Context, eventKey, eventType string, payload []byte) (bool, error) {
	const stmt = `
		INSERT INTO billing_events (id, event_key, event_type, payload, received_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (event_key) DO NOTHING`

	res, err := r.db.ExecContext(ctx, stmt, uuid.New(), eventKey, eventType, payload)
	if err != nil {
		return false, fmt.Errorf("failed to insert billing event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read billing event result: %w", err)
	}
	return n > 0, nil
}

// UpsertSubscription mirrors a provider subscription locally
func (r *Repository) UpsertSubscription(ctx context.Context, providerID, customerID string, status models.SubscriptionStatus, periodEnd *time.Time) error {
	const stmt = `
		INSERT INTO billing_subscriptions (id, provider_id, customer_provider_id, status, current_period_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (provider_id) DO UPDATE
		SET status = EXCLUDED.status,
		    current_period_end = EXCLUDED.current_period_end,
		    updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, stmt, uuid.New(), providerID, customerID, status, sqlutil.ToSqlTime(periodEnd))
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// EnsureInvoice creates the local invoice row if it does not exist yet
func (r *Repository) EnsureInvoice(ctx context.Context, providerID string, status models.InvoiceStatus, amountDue int64, currency string) error {
	const stmt = `
		INSERT INTO billing_invoices (id, provider_id, status, amount_due, currency, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (provider_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, stmt, uuid.New(), providerID, status, amountDue, currency)
	if err != nil {
		return fmt.Errorf("failed to ensure invoice: %w", err)
	}
	return nil
}

// AdvanceInvoiceStatus moves an invoice forward from one of the allowed
// source statuses. Transitions never run backward: an invoice already paid
// stays paid no matter what arrives afterwards.
func (r *Repository) AdvanceInvoiceStatus(ctx context.Context, providerID string, from []models.InvoiceStatus, to models.InvoiceStatus, paidAt *time.Time) (bool, error) {
	const stmt = `
		UPDATE billing_invoices
		SET status = $2, paid_at = COALESCE($3, paid_at), updated_at = NOW()
		WHERE provider_id = $1 AND status = ANY($4)`

	strs := make([]string, len(from))
	for i, s := range from {
		strs[i] = string(s)
	}

	res, err := r.db.ExecContext(ctx, stmt, providerID, to, sqlutil.ToSqlTime(paidAt), pq.Array(strs))
	if err != nil {
		return false, fmt.Errorf("failed to advance invoice status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read invoice update result: %w", err)
	}
	return n > 0, nil
}

// GetInvoice retrieves a local invoice by provider id
func (r *Repository) GetInvoice(ctx context.Context, providerID string) (*models.Invoice, error) {
	const stmt = `
		SELECT id, provider_id, status, amount_due, currency, paid_at, updated_at
		FROM billing_invoices
		WHERE provider_id = $1`

	var (
		inv    models.Invoice
		paidAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, stmt, providerID).Scan(
		&inv.ID, &inv.ProviderID, &inv.Status, &inv.AmountDue, &inv.Currency, &paidAt, &inv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	inv.PaidAt = sqlutil.FromSqlTime(paidAt)
	return &inv, nil
}
