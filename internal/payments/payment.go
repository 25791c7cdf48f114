// Package payments is the typed access layer over the payments row: multi-
// key resolution and monotonic field updates.
package payments

import (
	"encoding/json"
	"time"

	"github.com/rytkhs/eventpay-webhook-engine/internal/promotion"
)

// Payment is the fixed projection returned by every resolver.
type Payment struct {
	ID string
	Status promotion.Status
	AmountCents int64
	AttendanceID string
	PaymentIntentID string
	ChargeID string
	CheckoutSessionID string

	BalanceTransactionID string
	FeeDetails json.RawMessage
	TransferID string
	ApplicationFeeID string
	ApplicationFeeRefundID string

	RefundedAmount int64
	ApplicationFeeRefundedAmount int64

	WebhookEventID string
	WebhookProcessedAt *time.Time
	PaidAt *time.Time
	UpdatedAt time.Time
}

// ChargeSnapshot is the enriched data charge.succeeded may carry once
// retrievePaymentIntentWithLatestCharge has expanded the balance
// transaction and transfer.
type ChargeSnapshot struct {
	ChargeID string
	PaymentIntentID string
	BalanceTransactionID string
	FeeDetails json.RawMessage
	TransferID string
	ApplicationFeeID string
}
