// Package handlers implements the per-event-family webhook contracts.
// Every handler shares the protocol: resolve the affected payment; if not
// found, log a non-fatal PAYMENT_NOT_FOUND and ACK; else evaluate
// promotion; if demotion-only, log and ACK; else apply the update; on DB
// error, translate the failure category and return a structured error.
package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/rytkhs/eventpay-webhook-engine/internal/background"
	"github.com/rytkhs/eventpay-webhook-engine/internal/disputes"
	"github.com/rytkhs/eventpay-webhook-engine/internal/payments"
	"github.com/rytkhs/eventpay-webhook-engine/internal/provider"
)

// Analytics, SettlementRegenerator and Notifier are the external
// collaborator ports named in as out-of-scope interfaces-only:
// "the settlement-report regenerator (a fire-and-forget port), analytics
// and notification services (best-effort side effects)". Handlers only see
// these through Deps; every call is routed through the bounded background
// queue so a failure can never fail the webhook outcome.
type Analytics interface {
	TrackCheckoutCompleted(ctx context.Context, ga4ClientID, paymentID string) error
}

type SettlementRegenerator interface {
	Regenerate(ctx context.Context, paymentID string) error
}

type Notifier interface {
	NotifyPaymentCompleted(ctx context.Context, paymentID string) error
}

// RevenueSummaryAggregator is the optional best-effort revenue-summary
// trigger mentioned for payment_intent.succeeded.
type RevenueSummaryAggregator interface {
	Aggregate(ctx context.Context, paymentID string) error
}

// Deps bundles every collaborator a handler needs.
type Deps struct {
	Payments payments.Repository
	Provider provider.Fetcher
	Disputes disputes.Repository
	Background *background.Queue

	Analytics Analytics
	Settlement SettlementRegenerator
	Notifier Notifier
	Revenue RevenueSummaryAggregator

	Log *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Log != nil {
		return d.Log
	}
	return zap.NewNop()
}

// submitSettlementRegenerate fires settlement regenerate best-effort. It never blocks the handler and never surfaces a
// failure.
func (d Deps) submitSettlementRegenerate(ctx context.Context, eventID, paymentID string) {
	if d.Settlement == nil || paymentID == "" {
		return
	}
	d.Background.Submit(ctx, background.Task{
		Kind: background.KindSettlementRegenerate,
		EventID: eventID,
		PaymentID: paymentID,
		Run: func(ctx context.Context) error {
			return d.Settlement.Regenerate(ctx, paymentID)
		},
	})
}

func (d Deps) submitGA4Tracking(ctx context.Context, eventID, ga4ClientID, paymentID string) {
	if d.Analytics == nil || ga4ClientID == "" {
		return
	}
	d.Background.Submit(ctx, background.Task{
		Kind: background.KindGA4Tracking,
		EventID: eventID,
		PaymentID: paymentID,
		GA4ClientID: ga4ClientID,
		Run: func(ctx context.Context) error {
			return d.Analytics.TrackCheckoutCompleted(ctx, ga4ClientID, paymentID)
		},
	})
}

func (d Deps) submitPaymentCompletionNotification(ctx context.Context, eventID, paymentID string) {
	if d.Notifier == nil || paymentID == "" {
		return
	}
	d.Background.Submit(ctx, background.Task{
		Kind: background.KindPaymentCompletionNotify,
		EventID: eventID,
		PaymentID: paymentID,
		Run: func(ctx context.Context) error {
			return d.Notifier.NotifyPaymentCompleted(ctx, paymentID)
		},
	})
}

func (d Deps) submitRevenueSummary(ctx context.Context, eventID, paymentID string) {
	if d.Revenue == nil || paymentID == "" {
		return
	}
	// Reuses the settlement-regenerate background lane; revenue-summary
	// aggregation is likewise fire-and-log with no dedicated error code, so
	// failures are logged under the same best-effort path.
	d.Background.Submit(ctx, background.Task{
		Kind: background.KindSettlementRegenerate,
		EventID: eventID,
		PaymentID: paymentID,
		Run: func(ctx context.Context) error {
			return d.Revenue.Aggregate(ctx, paymentID)
		},
	})
}
