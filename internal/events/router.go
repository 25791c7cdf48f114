// Package events implements the event-type router: a pure dispatch table
// from Stripe event.type strings to handler kinds, collapsing equivalence
// classes (e.g. refund.created vs charge.refund.created both route to the
// same handler).
package events

// Kind identifies which handler family an event type routes to.
type Kind string

const (
	KindCheckoutCompleted Kind = "checkout_completed"
	KindCheckoutExpired Kind = "checkout_expired"
	KindCheckoutAsync Kind = "checkout_async"

	KindPaymentIntentSucceeded Kind = "payment_intent_succeeded"
	KindPaymentIntentFailed Kind = "payment_intent_failed"
	KindPaymentIntentCanceled Kind = "payment_intent_canceled"

	KindChargeSucceeded Kind = "charge_succeeded"
	KindChargeFailed Kind = "charge_failed"
	KindChargeRefunded Kind = "charge_refunded"

	KindRefundCreated Kind = "refund_created"
	KindRefundUpdated Kind = "refund_updated"
	KindRefundFailed Kind = "refund_failed"

	KindApplicationFeeRefund Kind = "application_fee_refund"

	KindDispute Kind = "dispute"

	KindAckIgnore Kind = "ack_ignore"
	KindUnknown Kind = "unknown"
)

// table is the dispatch equivalence-class map. Built as a map literal
// rather than a switch, mirroring nyashahama's handleStripeWebhook dispatch
// ("recognized vs unhandled, ack either way") but extended to every event
// family this engine handles.
var table = map[string]Kind{
	"checkout.session.completed": KindCheckoutCompleted,
	"checkout.session.expired": KindCheckoutExpired,
	"checkout.session.async_payment_succeeded": KindCheckoutAsync,
	"checkout.session.async_payment_failed": KindCheckoutAsync,

	"payment_intent.succeeded": KindPaymentIntentSucceeded,
	"payment_intent.payment_failed": KindPaymentIntentFailed,
	"payment_intent.canceled": KindPaymentIntentCanceled,

	"charge.succeeded": KindChargeSucceeded,
	"charge.failed": KindChargeFailed,
	"charge.refunded": KindChargeRefunded,

	"refund.created": KindRefundCreated,
	"charge.refund.created": KindRefundCreated,
	"refund.updated": KindRefundUpdated,
	"charge.refund.updated": KindRefundUpdated,
	"refund.failed": KindRefundFailed,

	"application_fee.refunded": KindApplicationFeeRefund,
	"application_fee.refund.updated": KindApplicationFeeRefund,

	"charge.dispute.created": KindDispute,
	"charge.dispute.closed": KindDispute,
	"charge.dispute.updated": KindDispute,
	"charge.dispute.funds_reinstated": KindDispute,

	"transfer.created": KindAckIgnore,
	"transfer.updated": KindAckIgnore,
	"transfer.reversed": KindAckIgnore,
}

// Route resolves a Stripe event.type string to the Kind its handler is
// registered under. An unrecognized type returns KindUnknown — the
// orchestrator acks and warns rather than treating this as a failure.
func Route(eventType string) Kind {
	if kind, ok := table[eventType]; ok {
		return kind
	}
	return KindUnknown
}
