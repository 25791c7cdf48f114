package handlers

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/rytkhs/eventpay-webhook-engine/internal/apperrors"
	"github.com/rytkhs/eventpay-webhook-engine/internal/payments"
	"github.com/rytkhs/eventpay-webhook-engine/internal/promotion"
)

const currencyJPY = "jpy"

// HandlePaymentIntentSucceeded implements "succeeded".
func HandlePaymentIntentSucceeded(ctx context.Context, deps Deps, eventID string, raw json.RawMessage) (*Outcome, *apperrors.HandlerError) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(raw, &pi); err != nil {
		return nil, apperrors.InvalidPayload("unparseable payment_intent object")
	}

	metaPaymentID := pi.Metadata["payment_id"]
	payment, err := payments.ResolveByPaymentIntentOrMetadata(ctx, deps.Payments, pi.ID, metaPaymentID)
	if err != nil {
		return nil, repositoryToHandlerError(payments.ClassifyReadError("resolve_by_payment_intent_or_metadata", err))
	}
	if payment == nil {
		deps.logger().Info("payment_intent.succeeded: payment not found, ack", zap.String("event_id", eventID))
		return nil, nil
	}

	if payment.AmountCents != 0 && pi.Amount != 0 && payment.AmountCents != pi.Amount {
		return &Outcome{PaymentID: payment.ID}, &apperrors.HandlerError{
			Code: apperrors.CodeInvalidPayload,
			Reason: "amount_currency_mismatch",
			Terminal: true,
			UserMessage: "The payment amount does not match.",
		}
	}
	if pi.Currency != "" && string(pi.Currency) != currencyJPY {
		return &Outcome{PaymentID: payment.ID}, &apperrors.HandlerError{
			Code: apperrors.CodeInvalidPayload,
			Reason: "amount_currency_mismatch",
			Terminal: true,
			UserMessage: "The payment currency does not match.",
		}
	}

	if !promotion.CanPromote(payment.Status, promotion.Paid) {
		deps.logger().Debug("payment_intent.succeeded: promotion blocked, ack", zap.String("payment_id", payment.ID))
		return &Outcome{PaymentID: payment.ID}, nil
	}

	now := nowFunc()
	if err := deps.Payments.UpdateStatusPaidFromPaymentIntent(ctx, payment.ID, pi.ID, eventID, now); err != nil {
		return nil, repositoryToHandlerError(payments.ClassifyReadError("update_status_paid_from_payment_intent", err))
	}

	deps.submitRevenueSummary(ctx, eventID, payment.ID)

	return &Outcome{PaymentID: payment.ID}, nil
}

// HandlePaymentIntentPaymentFailed implements "payment_failed".
func HandlePaymentIntentPaymentFailed(ctx context.Context, deps Deps, eventID string, raw json.RawMessage) (*Outcome, *apperrors.HandlerError) {
	return promotePaymentIntentToFailed(ctx, deps, eventID, raw, "payment_intent.payment_failed")
}

// HandlePaymentIntentCanceled implements "canceled".
func HandlePaymentIntentCanceled(ctx context.Context, deps Deps, eventID string, raw json.RawMessage) (*Outcome, *apperrors.HandlerError) {
	return promotePaymentIntentToFailed(ctx, deps, eventID, raw, "payment_intent.canceled")
}

func promotePaymentIntentToFailed(ctx context.Context, deps Deps, eventID string, raw json.RawMessage, logTag string) (*Outcome, *apperrors.HandlerError) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(raw, &pi); err != nil {
		return nil, apperrors.InvalidPayload("unparseable payment_intent object")
	}

	metaPaymentID := pi.Metadata["payment_id"]
	payment, err := payments.ResolveByPaymentIntentOrMetadata(ctx, deps.Payments, pi.ID, metaPaymentID)
	if err != nil {
		return nil, repositoryToHandlerError(payments.ClassifyReadError("resolve_by_payment_intent_or_metadata", err))
	}
	if payment == nil {
		deps.logger().Info(logTag+": payment not found, ack", zap.String("event_id", eventID))
		return nil, nil
	}

	if !promotion.CanPromote(payment.Status, promotion.Failed) {
		deps.logger().Debug(logTag+": promotion blocked, ack", zap.String("payment_id", payment.ID))
		return &Outcome{PaymentID: payment.ID}, nil
	}

	if err := deps.Payments.UpdateStatusFailedFromPaymentIntent(ctx, payment.ID, eventID, nowFunc()); err != nil {
		return nil, repositoryToHandlerError(payments.ClassifyReadError("update_status_failed_from_payment_intent", err))
	}

	return &Outcome{PaymentID: payment.ID}, nil
}
