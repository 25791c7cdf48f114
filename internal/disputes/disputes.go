// Package disputes upserts payment_disputes records from Stripe dispute
// events. Split out of internal/payments
// because it owns its own table and has no status-promotion concerns (see
// DESIGN.md).
package disputes

import (
	"context"
	"strings"
	"time"
)

// DefaultCurrency is used when a dispute event omits currency — the source
// system's primary settlement currency, lowercased.
const DefaultCurrency = "jpy"

// DefaultStatus is the status assigned when a dispute event omits one.
const DefaultStatus = "needs_response"

// Dispute is one payment_disputes row.
type Dispute struct {
	StripeDisputeID string
	PaymentID string
	ChargeID string
	PaymentIntentID string
	Amount int64
	Currency string
	Reason string
	Status string
	EvidenceDueBy *time.Time
	StripeAccountID string
	ClosedAt *time.Time
	UpdatedAt time.Time
}

// Event is the subset of a Stripe dispute event this package needs.
type Event struct {
	StripeDisputeID string
	ChargeID string
	PaymentIntentID string
	Amount int64
	Currency string
	Reason string
	Status string
	EvidenceDueByUnix int64 // 0 means absent
	StripeAccountID string
	IsClosedEvent bool // true for charge.dispute.closed
}

// Repository persists the upsert.
type Repository interface {
	Upsert(ctx context.Context, d *Dispute) error
}

// BuildDispute normalizes a raw dispute event into the upsert row: currency is lowercased with a default, status defaults to
// needs_response, evidence_due_by converts from unix seconds, and closed_at
// is only set for closed events.
func BuildDispute(evt Event, paymentID string, now time.Time) *Dispute {
	currency := strings.ToLower(evt.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}
	status := evt.Status
	if status == "" {
		status = DefaultStatus
	}

	d := &Dispute{
		StripeDisputeID: evt.StripeDisputeID,
		PaymentID: paymentID,
		ChargeID: evt.ChargeID,
		PaymentIntentID: evt.PaymentIntentID,
		Amount: evt.Amount,
		Currency: currency,
		Reason: evt.Reason,
		Status: status,
		StripeAccountID: evt.StripeAccountID,
		UpdatedAt: now,
	}
	if evt.EvidenceDueByUnix > 0 {
		t := time.Unix(evt.EvidenceDueByUnix, 0).UTC()
		d.EvidenceDueBy = &t
	}
	if evt.IsClosedEvent {
		d.ClosedAt = &now
	}
	return d
}

// Upsert persists the dispute record, firing settlement regenerate via the
// caller if a payment was resolved.
func Upsert(ctx context.Context, repo Repository, d *Dispute) error {
	return repo.Upsert(ctx, d)
}
