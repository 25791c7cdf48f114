// Package provider is the thin Provider Fetch Service wrapper around the
// Stripe SDK: retrieveCharge, retrievePaymentIntentWithLatestCharge,
// sumApplicationFeeRefunds. Grounded on stripe_provider.go (PaymentProvider
// interface, masked-credential logging), generalized from create/refund
// write operations — which have no home here, see DESIGN.md — to the
// read/reconciliation side this engine actually needs.
package provider

import (
	"context"
	"encoding/json"
)

// ChargeData is the subset of a Stripe Charge the core cares about.
type ChargeData struct {
	ID string
	PaymentIntentID string
	AmountRefunded int64
	ApplicationFeeID string
}

// PaymentIntentData is the enriched PI snapshot used by charge.succeeded to
// obtain balance_transaction{id, fee, net, fee_details}, transfer.id and
// application_fee.
type PaymentIntentData struct {
	ID string
	LatestChargeID string
	BalanceTransactionID string
	FeeDetails json.RawMessage
	TransferID string
	ApplicationFeeID string
}

// RefundAggregate is sumApplicationFeeRefunds' result.
type RefundAggregate struct {
	Amount int64
	LatestRefundID string
}

// Fetcher is the Provider Fetch Service contract. Implementations must
// follow this failure contract precisely:
// - RetrievePaymentIntentWithLatestCharge returns (nil, nil) on provider
// failure so handlers fall back to the charge carried in the event.
// - RetrieveCharge and SumApplicationFeeRefunds return a non-nil error on
// provider failure; callers decide whether to preserve prior DB values
// or zero them out.
type Fetcher interface {
	RetrievePaymentIntentWithLatestCharge(ctx context.Context, paymentIntentID string) (*PaymentIntentData, error)
	RetrieveCharge(ctx context.Context, chargeID string, expand []string) (*ChargeData, error)
	SumApplicationFeeRefunds(ctx context.Context, applicationFeeID string) (*RefundAggregate, error)
}
