package handlers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/rytkhs/eventpay-webhook-engine/internal/apperrors"
	"github.com/rytkhs/eventpay-webhook-engine/internal/payments"
)

// applicationFeeRefundEnvelope covers both event shapes routed to
// HandleApplicationFeeRefund: the event object is either an
// ApplicationFee (application_fee.refunded) or a FeeRefund referencing its
// parent fee (application_fee.refund.updated), where `fee` may be an
// expandable id string or an embedded object.
type applicationFeeRefundEnvelope struct {
	Object string `json:"object"`
	ID string `json:"id"`
	Fee json.RawMessage `json:"fee"`
}

func extractApplicationFeeID(env applicationFeeRefundEnvelope) string {
	if env.Object == "application_fee" {
		return env.ID
	}
	if len(env.Fee) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(env.Fee, &asString); err == nil {
		return asString
	}
	var asObject struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Fee, &asObject); err == nil {
		return asObject.ID
	}
	return ""
}

// HandleApplicationFeeRefund implements.
func HandleApplicationFeeRefund(ctx context.Context, deps Deps, eventID string, raw json.RawMessage) (*Outcome, *apperrors.HandlerError) {
	var env applicationFeeRefundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperrors.InvalidPayload("unparseable application fee refund object")
	}

	applicationFeeID := extractApplicationFeeID(env)
	if applicationFeeID == "" {
		return nil, apperrors.InvalidPayload("missing application_fee_id")
	}

	payment, err := deps.Payments.FindByApplicationFeeID(ctx, applicationFeeID)
	if err != nil {
		return nil, repositoryToHandlerError(payments.ClassifyReadError("find_by_application_fee_id", err))
	}
	if payment == nil {
		deps.logger().Info("application fee refund: payment not found, ack", zap.String("event_id", eventID))
		return nil, nil
	}

	var appFeeRefunded int64
	appFeeRefundID := ""
	if deps.Provider != nil {
		agg, fetchErr := deps.Provider.SumApplicationFeeRefunds(ctx, applicationFeeID)
		if fetchErr != nil {
			deps.logger().Warn("application fee refund: sum failed, preserving prior value",
				zap.String("payment_id", payment.ID), zap.Error(fetchErr))
			appFeeRefunded = payment.ApplicationFeeRefundedAmount
			appFeeRefundID = payment.ApplicationFeeRefundID
		} else {
			appFeeRefunded = agg.Amount
			appFeeRefundID = agg.LatestRefundID
		}
	} else {
		appFeeRefunded = payment.ApplicationFeeRefundedAmount
		appFeeRefundID = payment.ApplicationFeeRefundID
	}

	if err := deps.Payments.UpdateApplicationFeeRefundAggregate(ctx, payment.ID, appFeeRefunded, appFeeRefundID, eventID, nowFunc()); err != nil {
		return nil, repositoryToHandlerError(payments.ClassifyReadError("update_application_fee_refund_aggregate", err))
	}

	deps.submitSettlementRegenerate(ctx, eventID, payment.ID)

	return &Outcome{PaymentID: payment.ID}, nil
}
