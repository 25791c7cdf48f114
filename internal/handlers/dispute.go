package handlers

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/rytkhs/eventpay-webhook-engine/internal/apperrors"
	"github.com/rytkhs/eventpay-webhook-engine/internal/disputes"
	"github.com/rytkhs/eventpay-webhook-engine/internal/payments"
)

// HandleDispute implements: created/closed/updated/funds_reinstated
// all share the same upsert logic; isClosedEvent distinguishes the closed.
func HandleDispute(ctx context.Context, deps Deps, eventID string, eventType string, raw json.RawMessage) (*Outcome, *apperrors.HandlerError) {
	var dispute stripe.Dispute
	if err := json.Unmarshal(raw, &dispute); err != nil {
		return nil, apperrors.InvalidPayload("unparseable dispute object")
	}

	paymentIntentID := ""
	if dispute.PaymentIntent != nil {
		paymentIntentID = dispute.PaymentIntent.ID
	}
	chargeID := ""
	if dispute.Charge != nil {
		chargeID = dispute.Charge.ID
	}

	payment, err := payments.ResolveForDispute(ctx, deps.Payments, paymentIntentID, chargeID)
	if err != nil {
		return nil, repositoryToHandlerError(payments.ClassifyReadError("resolve_for_dispute", err))
	}

	paymentID := ""
	if payment != nil {
		paymentID = payment.ID
	}

	var evidenceDueBy int64
	if dispute.EvidenceDetails != nil {
		evidenceDueBy = dispute.EvidenceDetails.DueBy
	}

	evt := disputes.Event{
		StripeDisputeID: dispute.ID,
		ChargeID: chargeID,
		PaymentIntentID: paymentIntentID,
		Amount: dispute.Amount,
		Currency: string(dispute.Currency),
		Reason: string(dispute.Reason),
		Status: string(dispute.Status),
		EvidenceDueByUnix: evidenceDueBy,
		IsClosedEvent: eventType == "charge.dispute.closed",
	}

	record := disputes.BuildDispute(evt, paymentID, nowFunc())
	if err := deps.Disputes.Upsert(ctx, record); err != nil {
		return nil, &apperrors.HandlerError{
			Code: apperrors.CodeUnexpectedError,
			Reason: "dispute_upsert_failed",
			Terminal: false,
			UserMessage: "The dispute could not be recorded.",
			Err: err,
		}
	}

	if payment != nil {
		deps.submitSettlementRegenerate(ctx, eventID, payment.ID)
		deps.logger().Info("dispute upserted", zap.String("event_id", eventID), zap.String("payment_id", payment.ID))
		return &Outcome{PaymentID: payment.ID}, nil
	}

	deps.logger().Info("dispute upserted without a resolved payment", zap.String("event_id", eventID))
	return nil, nil
}
