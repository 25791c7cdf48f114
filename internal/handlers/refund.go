package handlers

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/rytkhs/eventpay-webhook-engine/internal/apperrors"
)

// HandleRefundCreated implements "created": log only; ACK.
func HandleRefundCreated(ctx context.Context, deps Deps, eventID string, raw json.RawMessage) (*Outcome, *apperrors.HandlerError) {
	deps.logger().Info("refund.created, ack", zap.String("event_id", eventID))
	return nil, nil
}

// HandleRefundUpdated implements "updated".
func HandleRefundUpdated(ctx context.Context, deps Deps, eventID string, raw json.RawMessage) (*Outcome, *apperrors.HandlerError) {
	return handleRefundStatusTransition(ctx, deps, eventID, raw)
}

// HandleRefundFailed implements "failed": same resync branch as updated.
func HandleRefundFailed(ctx context.Context, deps Deps, eventID string, raw json.RawMessage) (*Outcome, *apperrors.HandlerError) {
	return handleRefundStatusTransition(ctx, deps, eventID, raw)
}

func handleRefundStatusTransition(ctx context.Context, deps Deps, eventID string, raw json.RawMessage) (*Outcome, *apperrors.HandlerError) {
	var refund stripe.Refund
	if err := json.Unmarshal(raw, &refund); err != nil {
		return nil, apperrors.InvalidPayload("unparseable refund object")
	}

	if refund.Status != stripe.RefundStatusCanceled && refund.Status != stripe.RefundStatusFailed {
		deps.logger().Debug("refund status transition not canceled/failed, ack", zap.String("event_id", eventID), zap.String("status", string(refund.Status)))
		return nil, nil
	}

	chargeID := ""
	if refund.Charge != nil {
		chargeID = refund.Charge.ID
	}

	outcome, herr := syncRefundAggregateByChargeID(ctx, deps, eventID, chargeID, true)
	if herr != nil && herr.Code != apperrors.CodeInvalidPayload {
		herr.Terminal = false
	}
	return outcome, herr
}
