package payments

import (
	"context"
	"time"
)

// Repository is the storage interface for the single-key resolvers and
// updaters. Composite resolvers are built on top of this
// interface in resolve.go so they can be exercised with a fake in tests.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Payment, error)
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*Payment, error)
	FindByChargeID(ctx context.Context, chargeID string) (*Payment, error)
	FindByCheckoutSessionID(ctx context.Context, checkoutSessionID string) (*Payment, error)
	FindByApplicationFeeID(ctx context.Context, applicationFeeID string) (*Payment, error)

	SaveCheckoutSessionLink(ctx context.Context, paymentID, checkoutSessionID, paymentIntentID, eventID string, now time.Time) error
	UpdateStatusPaidFromPaymentIntent(ctx context.Context, paymentID, paymentIntentID, eventID string, now time.Time) error
	UpdateStatusFailedFromPaymentIntent(ctx context.Context, paymentID, eventID string, now time.Time) error
	UpdateStatusFailedFromCheckoutSession(ctx context.Context, paymentID, eventID string, now time.Time) error
	UpdateStatusPaidFromChargeSnapshot(ctx context.Context, paymentID string, snapshot ChargeSnapshot, eventID string, now time.Time) error
	UpdateStatusFailedFromCharge(ctx context.Context, paymentID, eventID string, now time.Time) error
	UpdateRefundAggregate(ctx context.Context, paymentID string, status string, refundedAmount, appFeeRefundedAmount int64, appFeeRefundID, eventID string, now time.Time) error
	UpdateApplicationFeeRefundAggregate(ctx context.Context, paymentID string, appFeeRefundedAmount int64, appFeeRefundID, eventID string, now time.Time) error
}
