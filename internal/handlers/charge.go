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

// chargeEnrichmentExpand mirrors retrievePaymentIntentWithLatestCharge's
// expand list.
var chargeEnrichmentExpand = []string{"latest_charge.balance_transaction", "latest_charge.transfer"}

// HandleChargeSucceeded implements "succeeded".
func HandleChargeSucceeded(ctx context.Context, deps Deps, eventID string, raw json.RawMessage) (*Outcome, *apperrors.HandlerError) {
	var charge stripe.Charge
	if err := json.Unmarshal(raw, &charge); err != nil {
		return nil, apperrors.InvalidPayload("unparseable charge object")
	}

	paymentIntentID := ""
	if charge.PaymentIntent != nil {
		paymentIntentID = charge.PaymentIntent.ID
	}
	metaPaymentID := charge.Metadata["payment_id"]

	payment, err := payments.ResolveByChargeOrFallback(ctx, deps.Payments, paymentIntentID, charge.ID, metaPaymentID)
	if err != nil {
		return nil, repositoryToHandlerError(payments.ClassifyReadError("resolve_by_charge_or_fallback", err))
	}
	if payment == nil {
		deps.logger().Info("charge.succeeded: payment not found, ack", zap.String("event_id", eventID))
		return nil, nil
	}

	if !promotion.CanPromote(payment.Status, promotion.Paid) {
		deps.logger().Debug("charge.succeeded: promotion blocked, ack", zap.String("payment_id", payment.ID))
		return &Outcome{PaymentID: payment.ID}, nil
	}

	snapshot := payments.ChargeSnapshot{
		ChargeID: charge.ID,
		PaymentIntentID: paymentIntentID,
	}
	if charge.ApplicationFee != nil {
		snapshot.ApplicationFeeID = charge.ApplicationFee.ID
	}

	if deps.Provider != nil && paymentIntentID != "" {
		enriched, fetchErr := deps.Provider.RetrievePaymentIntentWithLatestCharge(ctx, paymentIntentID)
		if fetchErr != nil || enriched == nil {
			deps.logger().Warn("charge.succeeded: provider enrichment unavailable, using event data",
				zap.String("payment_id", payment.ID), zap.Error(fetchErr))
		} else {
			snapshot.BalanceTransactionID = enriched.BalanceTransactionID
			snapshot.FeeDetails = enriched.FeeDetails
			snapshot.TransferID = enriched.TransferID
			if enriched.ApplicationFeeID != "" {
				snapshot.ApplicationFeeID = enriched.ApplicationFeeID
			}
		}
	}

	if err := deps.Payments.UpdateStatusPaidFromChargeSnapshot(ctx, payment.ID, snapshot, eventID, nowFunc()); err != nil {
		return nil, repositoryToHandlerError(payments.ClassifyReadError("update_status_paid_from_charge_snapshot", err))
	}

	// charge.succeeded is the canonical place for user notification, to
	// avoid duplicating the notify with payment_intent.succeeded.
	deps.submitPaymentCompletionNotification(ctx, eventID, payment.ID)

	return &Outcome{PaymentID: payment.ID}, nil
}

// HandleChargeFailed implements "failed".
func HandleChargeFailed(ctx context.Context, deps Deps, eventID string, raw json.RawMessage) (*Outcome, *apperrors.HandlerError) {
	var charge stripe.Charge
	if err := json.Unmarshal(raw, &charge); err != nil {
		return nil, apperrors.InvalidPayload("unparseable charge object")
	}

	paymentIntentID := ""
	if charge.PaymentIntent != nil {
		paymentIntentID = charge.PaymentIntent.ID
	}
	metaPaymentID := charge.Metadata["payment_id"]

	payment, err := payments.ResolveByChargeOrFallback(ctx, deps.Payments, paymentIntentID, charge.ID, metaPaymentID)
	if err != nil {
		return nil, repositoryToHandlerError(payments.ClassifyReadError("resolve_by_charge_or_fallback", err))
	}
	if payment == nil {
		deps.logger().Info("charge.failed: payment not found, ack", zap.String("event_id", eventID))
		return nil, nil
	}

	if !promotion.CanPromote(payment.Status, promotion.Failed) {
		deps.logger().Debug("charge.failed: promotion blocked, ack", zap.String("payment_id", payment.ID))
		return &Outcome{PaymentID: payment.ID}, nil
	}

	if err := deps.Payments.UpdateStatusFailedFromCharge(ctx, payment.ID, eventID, nowFunc()); err != nil {
		return nil, repositoryToHandlerError(payments.ClassifyReadError("update_status_failed_from_charge", err))
	}

	return &Outcome{PaymentID: payment.ID}, nil
}

// HandleChargeRefunded implements "refunded".
func HandleChargeRefunded(ctx context.Context, deps Deps, eventID string, raw json.RawMessage) (*Outcome, *apperrors.HandlerError) {
	var charge stripe.Charge
	if err := json.Unmarshal(raw, &charge); err != nil {
		return nil, apperrors.InvalidPayload("unparseable charge object")
	}

	paymentIntentID := ""
	if charge.PaymentIntent != nil {
		paymentIntentID = charge.PaymentIntent.ID
	}
	metaPaymentID := charge.Metadata["payment_id"]

	payment, err := payments.ResolveByChargeOrFallback(ctx, deps.Payments, paymentIntentID, charge.ID, metaPaymentID)
	if err != nil {
		return nil, repositoryToHandlerError(payments.ClassifyReadError("resolve_by_charge_or_fallback", err))
	}
	if payment == nil {
		deps.logger().Info("charge.refunded: payment not found, ack", zap.String("event_id", eventID))
		return nil, nil
	}

	totalRefunded := charge.AmountRefunded

	var appFeeRefunded int64
	appFeeRefundID := ""
	applicationFeeID := ""
	if charge.ApplicationFee != nil {
		applicationFeeID = charge.ApplicationFee.ID
	}
	if applicationFeeID != "" && deps.Provider != nil {
		agg, fetchErr := deps.Provider.SumApplicationFeeRefunds(ctx, applicationFeeID)
		if fetchErr != nil {
			deps.logger().Warn("charge.refunded: application fee refund sum failed, preserving prior value",
				zap.String("payment_id", payment.ID), zap.Error(fetchErr))
			appFeeRefunded = payment.ApplicationFeeRefundedAmount
			appFeeRefundID = payment.ApplicationFeeRefundID
		} else {
			appFeeRefunded = agg.Amount
			appFeeRefundID = agg.LatestRefundID
		}
	}

	targetStatus := payment.Status
	if payment.AmountCents > 0 && totalRefunded >= payment.AmountCents {
		targetStatus = promotion.Refunded
	}

	if !promotion.CanPromote(payment.Status, targetStatus) {
		deps.logger().Debug("charge.refunded: promotion blocked, ack", zap.String("payment_id", payment.ID))
		return &Outcome{PaymentID: payment.ID}, nil
	}

	if err := deps.Payments.UpdateRefundAggregate(ctx, payment.ID, string(targetStatus), totalRefunded, appFeeRefunded, appFeeRefundID, eventID, nowFunc()); err != nil {
		return nil, repositoryToHandlerError(payments.ClassifyReadError("update_refund_aggregate", err))
	}

	deps.submitSettlementRegenerate(ctx, eventID, payment.ID)

	return &Outcome{PaymentID: payment.ID}, nil
}
