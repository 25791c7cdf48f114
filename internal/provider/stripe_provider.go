package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/applicationfeerefund"
	"github.com/stripe/stripe-go/v82/charge"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"go.uber.org/zap"
)

// applicationFeeRefundPageSize is the maximum page size the Stripe list API
// accepts.
const applicationFeeRefundPageSize = 100

// StripeFetcher implements Fetcher against the real Stripe API.
type StripeFetcher struct {
	apiKey string
	log *zap.Logger
}

func NewStripeFetcher(apiKey string, log *zap.Logger) *StripeFetcher {
	stripe.Key = apiKey
	return &StripeFetcher{apiKey: apiKey, log: log}
}

// RetrievePaymentIntentWithLatestCharge expands the latest charge's balance
// transaction and transfer. Per, failures return (nil, nil) so
// callers fall back to the charge snapshot carried in the event itself.
func (f *StripeFetcher) RetrievePaymentIntentWithLatestCharge(ctx context.Context, paymentIntentID string) (*PaymentIntentData, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge.balance_transaction")
	params.AddExpand("latest_charge.transfer")

	pi, err := paymentintent.Get(paymentIntentID, params)
	if err != nil {
		f.log.Warn("stripe: retrieve payment intent with latest charge failed, handler will fall back to event charge",
			zap.String("payment_intent_id", paymentIntentID), zap.Error(err))
		return nil, nil
	}

	data := &PaymentIntentData{ID: pi.ID}
	if pi.LatestCharge != nil {
		data.LatestChargeID = pi.LatestCharge.ID
		if pi.LatestCharge.BalanceTransaction != nil {
			bt := pi.LatestCharge.BalanceTransaction
			data.BalanceTransactionID = bt.ID
			if len(bt.FeeDetails) > 0 {
				if fd, err := json.Marshal(bt.FeeDetails); err != nil {
					f.log.Warn("stripe: marshal balance transaction fee details failed",
						zap.String("balance_transaction_id", bt.ID), zap.Error(err))
				} else {
					data.FeeDetails = fd
				}
			}
		}
		if pi.LatestCharge.Transfer != nil {
			data.TransferID = pi.LatestCharge.Transfer.ID
		}
		if pi.LatestCharge.ApplicationFee != nil {
			data.ApplicationFeeID = pi.LatestCharge.ApplicationFee.ID
		}
	}
	return data, nil
}

// RetrieveCharge fetches a charge with optional field expansion. Unlike
// RetrievePaymentIntentWithLatestCharge, provider errors here are returned to
// the caller.
func (f *StripeFetcher) RetrieveCharge(ctx context.Context, chargeID string, expand []string) (*ChargeData, error) {
	params := &stripe.ChargeParams{}
	params.Context = ctx
	for _, e := range expand {
		params.AddExpand(e)
	}

	ch, err := charge.Get(chargeID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: retrieve charge %s: %w", chargeID, err)
	}

	data := &ChargeData{ID: ch.ID, AmountRefunded: ch.AmountRefunded}
	if ch.PaymentIntent != nil {
		data.PaymentIntentID = ch.PaymentIntent.ID
	}
	if ch.ApplicationFee != nil {
		data.ApplicationFeeID = ch.ApplicationFee.ID
	}
	return data, nil
}

// SumApplicationFeeRefunds paginates every refund against applicationFeeID
// and sums the amounts.
func (f *StripeFetcher) SumApplicationFeeRefunds(ctx context.Context, applicationFeeID string) (*RefundAggregate, error) {
	params := &stripe.ApplicationFeeRefundListParams{
		Fee: stripe.String(applicationFeeID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(applicationFeeRefundPageSize)

	var total int64
	var latestRefundID string

	iter := applicationfeerefund.List(params)
	for iter.Next() {
		r := iter.ApplicationFeeRefund()
		total += r.Amount
		latestRefundID = r.ID
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe: sum application fee refunds for %s: %w", applicationFeeID, err)
	}

	return &RefundAggregate{Amount: total, LatestRefundID: latestRefundID}, nil
}
