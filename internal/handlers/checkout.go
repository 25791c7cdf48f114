package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/rytkhs/eventpay-webhook-engine/internal/apperrors"
	"github.com/rytkhs/eventpay-webhook-engine/internal/payments"
	"github.com/rytkhs/eventpay-webhook-engine/internal/promotion"
)

// Outcome carries the resolved payment id (for orchestrator logging/meta)
// alongside a possible structured failure.
type Outcome struct {
	PaymentID string
}

// HandleCheckoutSessionCompleted implements "completed".
func HandleCheckoutSessionCompleted(ctx context.Context, deps Deps, eventID string, raw json.RawMessage) (*Outcome, *apperrors.HandlerError) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, apperrors.InvalidPayload("unparseable checkout.session object")
	}

	metaPaymentID := session.Metadata["payment_id"]
	if metaPaymentID == "" {
		return nil, apperrors.InvalidPayload("missing metadata.payment_id")
	}

	payment, err := deps.Payments.FindByID(ctx, metaPaymentID)
	if err != nil {
		re := payments.ClassifyReadError("find_by_id", err)
		return nil, repositoryToHandlerError(re)
	}
	if payment == nil {
		deps.logger().Info("checkout.session.completed: payment not found, ack",
			zap.String("event_id", eventID), zap.String("payment_id", metaPaymentID))
		return nil, nil
	}

	if payment.CheckoutSessionID == session.ID {
		deps.logger().Debug("checkout.session.completed: idempotent no-op", zap.String("payment_id", payment.ID))
		return &Outcome{PaymentID: payment.ID}, nil
	}

	paymentIntentID := ""
	if session.PaymentIntent != nil {
		paymentIntentID = session.PaymentIntent.ID
	}

	if err := deps.Payments.SaveCheckoutSessionLink(ctx, payment.ID, session.ID, paymentIntentID, eventID, nowFunc()); err != nil {
		re := payments.ClassifyReadError("save_checkout_session_link", err)
		return nil, repositoryToHandlerError(re)
	}

	if ga4ClientID := session.Metadata["ga_client_id"]; ga4ClientID != "" {
		deps.submitGA4Tracking(ctx, eventID, ga4ClientID, payment.ID)
	}

	return &Outcome{PaymentID: payment.ID}, nil
}

// HandleCheckoutSessionExpired implements "expired".
func HandleCheckoutSessionExpired(ctx context.Context, deps Deps, eventID string, raw json.RawMessage) (*Outcome, *apperrors.HandlerError) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, apperrors.InvalidPayload("unparseable checkout.session object")
	}

	metaPaymentID := session.Metadata["payment_id"]
	payment, err := payments.ResolveCheckoutTarget(ctx, deps.Payments, session.ID, metaPaymentID)
	if err != nil {
		re := payments.ClassifyReadError("resolve_checkout_target", err)
		return nil, repositoryToHandlerError(re)
	}
	if payment == nil {
		deps.logger().Info("checkout.session.expired: payment not found, ack", zap.String("event_id", eventID))
		return nil, nil
	}

	if !promotion.CanPromote(payment.Status, promotion.Failed) {
		deps.logger().Debug("checkout.session.expired: promotion blocked, ack", zap.String("payment_id", payment.ID), zap.String("current_status", string(payment.Status)))
		return &Outcome{PaymentID: payment.ID}, nil
	}

	if err := deps.Payments.UpdateStatusFailedFromCheckoutSession(ctx, payment.ID, eventID, nowFunc()); err != nil {
		re := payments.ClassifyReadError("update_status_failed_from_checkout_session", err)
		herr := repositoryToHandlerError(re)
		herr.Code = apperrors.CodeCheckoutSessionExpiredFailed
		return nil, herr
	}

	return &Outcome{PaymentID: payment.ID}, nil
}

// HandleCheckoutSessionAsync implements "async_payment_*": log
// only, ACK.
func HandleCheckoutSessionAsync(ctx context.Context, deps Deps, eventID string, eventType string, raw json.RawMessage) (*Outcome, *apperrors.HandlerError) {
	deps.logger().Info("checkout.session async event, ack", zap.String("event_id", eventID), zap.String("event_type", eventType))
	return nil, nil
}

// repositoryToHandlerError translates a payments.ClassifyReadError result
// into the structured failure the orchestrator expects.
func repositoryToHandlerError(re *apperrors.RepositoryError) *apperrors.HandlerError {
	if re == nil {
		return nil
	}
	code := fmt.Sprintf("payment_repository_%s_%s_failed", re.Operation, re.Category)
	return &apperrors.HandlerError{
		Code: code,
		Reason: string(re.Category),
		Terminal: re.Terminal,
		UserMessage: "The payment could not be updated.",
		Err: re,
	}
}
