package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/rytkhs/eventpay-webhook-engine/internal/apperrors"
	"github.com/rytkhs/eventpay-webhook-engine/internal/payments"
	"github.com/rytkhs/eventpay-webhook-engine/internal/promotion"
)

// syncRefundAggregateByChargeID implements "Refund resync":
// re-retrieve the charge from the provider, then apply
// applyRefundAggregateFromCharge against the resolved payment.
func syncRefundAggregateByChargeID(ctx context.Context, deps Deps, eventID, chargeID string, allowDemotion bool) (*Outcome, *apperrors.HandlerError) {
	if chargeID == "" {
		return nil, apperrors.InvalidPayload("missing charge id for refund resync")
	}
	if deps.Provider == nil {
		return nil, apperrors.Unexpected(errProviderUnconfigured)
	}

	charge, err := deps.Provider.RetrieveCharge(ctx, chargeID, nil)
	if err != nil {
		return nil, &apperrors.HandlerError{
			Code: apperrors.CodeUnexpectedError,
			Reason: "provider_retrieve_charge_failed",
			Terminal: false,
			UserMessage: "The refund could not be synced.",
			Err: err,
		}
	}

	metaPaymentID := ""
	payment, err := payments.ResolveByChargeOrFallback(ctx, deps.Payments, charge.PaymentIntentID, charge.ID, metaPaymentID)
	if err != nil {
		return nil, repositoryToHandlerError(payments.ClassifyReadError("resolve_by_charge_or_fallback", err))
	}
	if payment == nil {
		deps.logger().Info("refund resync: payment not found, ack", zap.String("event_id", eventID), zap.String("charge_id", chargeID))
		return nil, nil
	}

	totalRefunded := charge.AmountRefunded

	var appFeeRefunded int64
	appFeeRefundID := ""
	if charge.ApplicationFeeID != "" && deps.Provider != nil {
		agg, fetchErr := deps.Provider.SumApplicationFeeRefunds(ctx, charge.ApplicationFeeID)
		if fetchErr != nil {
			deps.logger().Warn("refund resync: application fee refund sum failed, preserving prior value",
				zap.String("payment_id", payment.ID), zap.Error(fetchErr))
			appFeeRefunded = payment.ApplicationFeeRefundedAmount
			appFeeRefundID = payment.ApplicationFeeRefundID
		} else {
			appFeeRefunded = agg.Amount
			appFeeRefundID = agg.LatestRefundID
		}
	}

	targetStatus := payment.Status
	switch {
	case payment.AmountCents > 0 && totalRefunded >= payment.AmountCents:
		targetStatus = promotion.Refunded
	case allowDemotion && payment.Status == promotion.Refunded:
		targetStatus = promotion.Paid
	}

	if targetStatus == payment.Status {
		if err := deps.Payments.UpdateRefundAggregate(ctx, payment.ID, string(targetStatus), totalRefunded, appFeeRefunded, appFeeRefundID, eventID, nowFunc()); err != nil {
			return nil, repositoryToHandlerError(payments.ClassifyReadError("update_refund_aggregate", err))
		}
		return &Outcome{PaymentID: payment.ID}, nil
	}

	allowed := promotion.CanPromote(payment.Status, targetStatus) ||
	(allowDemotion && payment.Status == promotion.Refunded && targetStatus == promotion.Paid)
	if !allowed {
		deps.logger().Debug("refund resync: promotion blocked, ack", zap.String("payment_id", payment.ID))
		return &Outcome{PaymentID: payment.ID}, nil
	}

	if err := deps.Payments.UpdateRefundAggregate(ctx, payment.ID, string(targetStatus), totalRefunded, appFeeRefunded, appFeeRefundID, eventID, nowFunc()); err != nil {
		return nil, repositoryToHandlerError(payments.ClassifyReadError("update_refund_aggregate", err))
	}

	return &Outcome{PaymentID: payment.ID}, nil
}
