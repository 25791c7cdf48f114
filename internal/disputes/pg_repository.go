package disputes

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// DB is satisfied by both *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgRepository upserts payment_disputes rows keyed by stripe_dispute_id,
// following the same INSERT... ON CONFLICT idiom the ledger uses for its
// own claim insert.
type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

func (r *PgRepository) Upsert(ctx context.Context, d *Dispute) error {
	_, err := r.db.Exec(ctx, `
 INSERT INTO payment_disputes (
 stripe_dispute_id, payment_id, charge_id, payment_intent_id,
 amount, currency, reason, status, evidence_due_by,
 stripe_account_id, closed_at, updated_at
 ) VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12)
 ON CONFLICT (stripe_dispute_id) DO UPDATE SET
 payment_id = COALESCE(EXCLUDED.payment_id, payment_disputes.payment_id),
 charge_id = COALESCE(EXCLUDED.charge_id, payment_disputes.charge_id),
 payment_intent_id = COALESCE(EXCLUDED.payment_intent_id, payment_disputes.payment_intent_id),
 amount = EXCLUDED.amount,
 currency = EXCLUDED.currency,
 reason = EXCLUDED.reason,
 status = EXCLUDED.status,
 evidence_due_by = COALESCE(EXCLUDED.evidence_due_by, payment_disputes.evidence_due_by),
 stripe_account_id = COALESCE(EXCLUDED.stripe_account_id, payment_disputes.stripe_account_id),
 closed_at = COALESCE(EXCLUDED.closed_at, payment_disputes.closed_at),
 updated_at = EXCLUDED.updated_at
 `, d.StripeDisputeID, d.PaymentID, d.ChargeID, d.PaymentIntentID, d.Amount, d.Currency,
		d.Reason, d.Status, d.EvidenceDueBy, d.StripeAccountID, d.ClosedAt, d.UpdatedAt)
	return err
}
