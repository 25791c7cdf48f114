// Package orchestrator implements the per-event pipeline that covers:
// beginProcessing -> route -> dispatch -> markSucceeded/markFailed.
// Grounded on webhook_handler.go HandleWebhookEvent, which
// wraps the same ledger-claim/dispatch/mark sequence inside a single pgx
// transaction; here the ledger claim and the per-handler DB work are
// separate stores so each can be unit tested against a fake, but the
// control flow mirrors step order exactly.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rytkhs/eventpay-webhook-engine/internal/apperrors"
	"github.com/rytkhs/eventpay-webhook-engine/internal/events"
	"github.com/rytkhs/eventpay-webhook-engine/internal/handlers"
	"github.com/rytkhs/eventpay-webhook-engine/internal/ledger"
	"github.com/rytkhs/eventpay-webhook-engine/internal/metrics"
)

// Result is what ProcessEvent returns to the HTTP layer: Ack means the
// webhook should be acknowledged 2xx regardless of whether work happened;
// Err carries the structured failure, if any. A terminal failure comes with
// Ack=true (acknowledged, not retried); only a non-terminal one has
// Ack=false and surfaces as a 5xx so Stripe retries.
type Result struct {
	Action ledger.Action
	Ack bool
	Err *apperrors.HandlerError
}

// HandlerFunc is the shape every internal/handlers.Handle* function has in
// common, after currying away the (eventType) parameter the dispute and
// checkout-async handlers need.
type HandlerFunc func(ctx context.Context, deps handlers.Deps, eventID string, raw json.RawMessage) (*handlers.Outcome, *apperrors.HandlerError)

// Orchestrator wires the ledger store, the event router, and the handler
// dependency bundle.
type Orchestrator struct {
	Ledger *ledger.Store
	Deps handlers.Deps
	Log *zap.Logger
}

func New(ledgerStore *ledger.Store, deps handlers.Deps, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{Ledger: ledgerStore, Deps: deps, Log: log}
}

// ProcessEvent implements steps 1-6 for a single verified Stripe
// event.
func (o *Orchestrator) ProcessEvent(ctx context.Context, eventID, eventType, objectID string, raw json.RawMessage) Result {
	begin, err := o.Ledger.BeginProcessing(ctx, eventID, eventType, objectID)
	if err != nil {
		if errors.Is(err, ledger.ErrLedgerContention) {
			metrics.LedgerActions.WithLabelValues("ledger_contention").Inc()
			o.Log.Warn("ledger contention, retryable", zap.String("event_id", eventID))
			return Result{Ack: false, Err: &apperrors.HandlerError{
				Code: apperrors.CodeLedgerContention, Reason: "ledger_contention", Terminal: false,
				UserMessage: "Try again.", Err: err,
			}}
		}
		o.Log.Error("ledger begin processing failed", zap.String("event_id", eventID), zap.Error(err))
		return Result{Ack: false, Err: &apperrors.HandlerError{
			Code: apperrors.CodeUnexpectedError, Reason: "ledger_begin_failed", Terminal: false,
			UserMessage: "Try again.", Err: err,
		}}
	}
	metrics.LedgerActions.WithLabelValues(string(begin.Action)).Inc()

	switch begin.Action {
	case ledger.ActionAckDuplicateSucceeded, ledger.ActionAckDuplicateFailedTerminal:
		return Result{Action: begin.Action, Ack: true}
	case ledger.ActionAckDuplicateInProgress:
		return Result{Action: begin.Action, Ack: false, Err: &apperrors.HandlerError{
			Code: apperrors.CodeLedgerInProgress, Reason: "in_progress", Terminal: false,
		}}
	}

	if latest, found, lookupErr := o.Ledger.FindLatestByDedupeKey(ctx, begin.DedupeKey, eventID); lookupErr == nil && found {
		o.Log.Warn("duplicate dedupe key under a different event id",
			zap.String("event_id", eventID), zap.String("dedupe_key", begin.DedupeKey), zap.String("other_event_id", latest.StripeEventID))
	}

	kind := events.Route(eventType)
	start := time.Now()
	outcome, herr := o.dispatch(ctx, kind, eventID, eventType, raw)
	metrics.HandlerDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())

	if herr == nil {
		metrics.HandlerOutcomes.WithLabelValues(eventType, "success").Inc()
		if markErr := o.Ledger.MarkSucceeded(ctx, eventID); markErr != nil {
			o.Log.Error("mark succeeded failed after successful handler", zap.String("event_id", eventID), zap.Error(markErr))
		}
		_ = outcome
		return Result{Action: ledger.ActionProcess, Ack: true}
	}

	metrics.HandlerOutcomes.WithLabelValues(eventType, "error").Inc()
	if markErr := o.Ledger.MarkFailed(ctx, eventID, herr.Code, herr.Reason, herr.Terminal); markErr != nil {
		o.Log.Error("mark failed failed; primary error not masked", zap.String("event_id", eventID), zap.Error(markErr))
	}

	return Result{Action: ledger.ActionProcess, Ack: herr.Terminal, Err: herr}
}

func (o *Orchestrator) dispatch(ctx context.Context, kind events.Kind, eventID, eventType string, raw json.RawMessage) (*handlers.Outcome, *apperrors.HandlerError) {
	switch kind {
	case events.KindCheckoutCompleted:
		return handlers.HandleCheckoutSessionCompleted(ctx, o.Deps, eventID, raw)
	case events.KindCheckoutExpired:
		return handlers.HandleCheckoutSessionExpired(ctx, o.Deps, eventID, raw)
	case events.KindCheckoutAsync:
		return handlers.HandleCheckoutSessionAsync(ctx, o.Deps, eventID, eventType, raw)

	case events.KindPaymentIntentSucceeded:
		return handlers.HandlePaymentIntentSucceeded(ctx, o.Deps, eventID, raw)
	case events.KindPaymentIntentFailed:
		return handlers.HandlePaymentIntentPaymentFailed(ctx, o.Deps, eventID, raw)
	case events.KindPaymentIntentCanceled:
		return handlers.HandlePaymentIntentCanceled(ctx, o.Deps, eventID, raw)

	case events.KindChargeSucceeded:
		return handlers.HandleChargeSucceeded(ctx, o.Deps, eventID, raw)
	case events.KindChargeFailed:
		return handlers.HandleChargeFailed(ctx, o.Deps, eventID, raw)
	case events.KindChargeRefunded:
		return handlers.HandleChargeRefunded(ctx, o.Deps, eventID, raw)

	case events.KindRefundCreated:
		return handlers.HandleRefundCreated(ctx, o.Deps, eventID, raw)
	case events.KindRefundUpdated:
		return handlers.HandleRefundUpdated(ctx, o.Deps, eventID, raw)
	case events.KindRefundFailed:
		return handlers.HandleRefundFailed(ctx, o.Deps, eventID, raw)

	case events.KindApplicationFeeRefund:
		return handlers.HandleApplicationFeeRefund(ctx, o.Deps, eventID, raw)

	case events.KindDispute:
		return handlers.HandleDispute(ctx, o.Deps, eventID, eventType, raw)

	case events.KindAckIgnore:
		o.Log.Debug("ack-and-ignore event type", zap.String("event_id", eventID), zap.String("event_type", eventType))
		return nil, nil
	default:
		o.Log.Warn("unrecognized event type, ack", zap.String("event_id", eventID), zap.String("event_type", eventType))
		return nil, nil
	}
}
