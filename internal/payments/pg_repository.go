package payments

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rytkhs/eventpay-webhook-engine/internal/promotion"
)

// DB is satisfied by both *pgxpool.Pool and pgx.Tx — grounded on
// webhook_handler.go, which runs every payments.transactions write inside a
// single pgx.Tx and checks RowsAffected() for idempotent no-ops.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const projectionColumns = `
 id, status, amount, attendance_id, stripe_payment_intent_id, stripe_charge_id,
 stripe_checkout_session_id, stripe_application_fee_id, application_fee_refund_id,
 application_fee_refunded_amount, refunded_amount, balance_transaction_id,
 fee_details, transfer_id, webhook_event_id, webhook_processed_at, paid_at, updated_at
`

// PgRepository is the pgx-backed Repository implementation.
type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

func (r *PgRepository) scanOne(row pgx.Row) (*Payment, error) {
	p := &Payment{}
	var status string
	var appFeeID, appFeeRefundID, balanceTxID, transferID, webhookEventID *string
	var feeDetails []byte
	var webhookProcessedAt, paidAt *time.Time

	err := row.Scan(
		&p.ID, &status, &p.AmountCents, &p.AttendanceID, &p.PaymentIntentID, &p.ChargeID,
		&p.CheckoutSessionID, &appFeeID, &appFeeRefundID,
		&p.ApplicationFeeRefundedAmount, &p.RefundedAmount, &balanceTxID,
		&feeDetails, &transferID, &webhookEventID, &webhookProcessedAt, &paidAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Status = promotion.Status(status)
	if appFeeID != nil {
		p.ApplicationFeeID = *appFeeID
	}
	if appFeeRefundID != nil {
		p.ApplicationFeeRefundID = *appFeeRefundID
	}
	if balanceTxID != nil {
		p.BalanceTransactionID = *balanceTxID
	}
	if transferID != nil {
		p.TransferID = *transferID
	}
	if webhookEventID != nil {
		p.WebhookEventID = *webhookEventID
	}
	p.FeeDetails = feeDetails
	p.WebhookProcessedAt = webhookProcessedAt
	p.PaidAt = paidAt
	return p, nil
}

func (r *PgRepository) FindByID(ctx context.Context, id string) (*Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+projectionColumns+` FROM payments WHERE id = $1`, id)
	return r.scanOne(row)
}

func (r *PgRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+projectionColumns+` FROM payments WHERE stripe_payment_intent_id = $1`, paymentIntentID)
	return r.scanOne(row)
}

func (r *PgRepository) FindByChargeID(ctx context.Context, chargeID string) (*Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+projectionColumns+` FROM payments WHERE stripe_charge_id = $1`, chargeID)
	return r.scanOne(row)
}

func (r *PgRepository) FindByCheckoutSessionID(ctx context.Context, checkoutSessionID string) (*Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+projectionColumns+` FROM payments WHERE stripe_checkout_session_id = $1`, checkoutSessionID)
	return r.scanOne(row)
}

func (r *PgRepository) FindByApplicationFeeID(ctx context.Context, applicationFeeID string) (*Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+projectionColumns+` FROM payments WHERE stripe_application_fee_id = $1`, applicationFeeID)
	return r.scanOne(row)
}

func (r *PgRepository) SaveCheckoutSessionLink(ctx context.Context, paymentID, checkoutSessionID, paymentIntentID, eventID string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
 UPDATE payments
 SET stripe_checkout_session_id = $1, stripe_payment_intent_id = COALESCE(NULLIF($2, ''), stripe_payment_intent_id),
 webhook_event_id = $3, webhook_processed_at = $4, updated_at = $4
 WHERE id = $5
 `, checkoutSessionID, paymentIntentID, eventID, now, paymentID)
	return err
}

func (r *PgRepository) UpdateStatusPaidFromPaymentIntent(ctx context.Context, paymentID, paymentIntentID, eventID string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
 UPDATE payments
 SET status = 'paid', stripe_payment_intent_id = COALESCE(NULLIF($1, ''), stripe_payment_intent_id),
 webhook_event_id = $2, webhook_processed_at = $3, paid_at = COALESCE(paid_at, $3), updated_at = $3
 WHERE id = $4
 `, paymentIntentID, eventID, now, paymentID)
	return err
}

func (r *PgRepository) UpdateStatusFailedFromPaymentIntent(ctx context.Context, paymentID, eventID string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
 UPDATE payments
 SET status = 'failed', webhook_event_id = $1, webhook_processed_at = $2, updated_at = $2
 WHERE id = $3
 `, eventID, now, paymentID)
	return err
}

func (r *PgRepository) UpdateStatusFailedFromCheckoutSession(ctx context.Context, paymentID, eventID string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
 UPDATE payments
 SET status = 'failed', webhook_event_id = $1, webhook_processed_at = $2, updated_at = $2
 WHERE id = $3
 `, eventID, now, paymentID)
	return err
}

func (r *PgRepository) UpdateStatusPaidFromChargeSnapshot(ctx context.Context, paymentID string, snapshot ChargeSnapshot, eventID string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
 UPDATE payments
 SET status = 'paid',
 stripe_charge_id = COALESCE(NULLIF($1, ''), stripe_charge_id),
 stripe_payment_intent_id = COALESCE(NULLIF($2, ''), stripe_payment_intent_id),
 balance_transaction_id = COALESCE(NULLIF($3, ''), balance_transaction_id),
 fee_details = COALESCE($4, fee_details),
 transfer_id = COALESCE(NULLIF($5, ''), transfer_id),
 stripe_application_fee_id = COALESCE(NULLIF($6, ''), stripe_application_fee_id),
 webhook_event_id = $7, webhook_processed_at = $8, paid_at = COALESCE(paid_at, $8), updated_at = $8
 WHERE id = $9
 `, snapshot.ChargeID, snapshot.PaymentIntentID, snapshot.BalanceTransactionID, []byte(snapshot.FeeDetails),
		snapshot.TransferID, snapshot.ApplicationFeeID, eventID, now, paymentID)
	return err
}

func (r *PgRepository) UpdateStatusFailedFromCharge(ctx context.Context, paymentID, eventID string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
 UPDATE payments
 SET status = 'failed', webhook_event_id = $1, webhook_processed_at = $2, updated_at = $2
 WHERE id = $3
 `, eventID, now, paymentID)
	return err
}

func (r *PgRepository) UpdateRefundAggregate(ctx context.Context, paymentID string, status string, refundedAmount, appFeeRefundedAmount int64, appFeeRefundID, eventID string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
 UPDATE payments
 SET status = $1, refunded_amount = $2, application_fee_refunded_amount = $3,
 application_fee_refund_id = COALESCE(NULLIF($4, ''), application_fee_refund_id),
 webhook_event_id = $5, webhook_processed_at = $6, updated_at = $6
 WHERE id = $7
 `, status, refundedAmount, appFeeRefundedAmount, appFeeRefundID, eventID, now, paymentID)
	return err
}

func (r *PgRepository) UpdateApplicationFeeRefundAggregate(ctx context.Context, paymentID string, appFeeRefundedAmount int64, appFeeRefundID, eventID string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
 UPDATE payments
 SET application_fee_refunded_amount = $1,
 application_fee_refund_id = COALESCE(NULLIF($2, ''), application_fee_refund_id),
 webhook_event_id = $3, webhook_processed_at = $4, updated_at = $4
 WHERE id = $5
 `, appFeeRefundedAmount, appFeeRefundID, eventID, now, paymentID)
	return err
}
