package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rytkhs/eventpay-webhook-engine/internal/payments"
	"github.com/rytkhs/eventpay-webhook-engine/internal/promotion"
	"github.com/rytkhs/eventpay-webhook-engine/internal/provider"
)

func TestHandleRefundCreated_AlwaysAcks(t *testing.T) {
	deps := testDeps(newFakePaymentsRepo(), nil, nil)

	outcome, herr := HandleRefundCreated(context.Background(), deps, "evt_1", json.RawMessage(`{"id":"re_1"}`))

	require.Nil(t, herr)
	require.Nil(t, outcome)
}

func TestHandleRefundUpdated_IgnoresNonTerminalStatus(t *testing.T) {
	deps := testDeps(newFakePaymentsRepo(), nil, nil)

	outcome, herr := HandleRefundUpdated(context.Background(), deps, "evt_1", json.RawMessage(`{"id":"re_1","status":"succeeded"}`))

	require.Nil(t, herr)
	require.Nil(t, outcome)
}

func TestHandleRefundUpdated_CanceledTriggersResyncWithDemotion(t *testing.T) {
	repo := newFakePaymentsRepo()
	repo.byPaymentIntent["pi_1"] = &payments.Payment{ID: "pay_1", Status: promotion.Refunded, AmountCents: 1000}
	prov := &fakeProvider{chargeData: &provider.ChargeData{
		ID: "ch_1", PaymentIntentID: "pi_1", AmountRefunded: 0,
	}}
	deps := testDeps(repo, prov, nil)

	outcome, herr := HandleRefundUpdated(context.Background(), deps, "evt_1",
		json.RawMessage(`{"id":"re_1","status":"canceled","charge":{"id":"ch_1"}}`))

	require.Nil(t, herr)
	require.Equal(t, "pay_1", outcome.PaymentID)
	require.Equal(t, string(promotion.Paid), repo.updatedRefund.status)
}

func TestHandleRefundFailed_ProviderErrorIsRetryable(t *testing.T) {
	repo := newFakePaymentsRepo()
	repo.byPaymentIntent["pi_1"] = &payments.Payment{ID: "pay_1", Status: promotion.Paid, AmountCents: 1000}
	prov := &fakeProvider{chargeErr: errors.New("stripe retrieve charge failed")}
	deps := testDeps(repo, prov, nil)

	_, herr := HandleRefundFailed(context.Background(), deps, "evt_1",
		json.RawMessage(`{"id":"re_1","status":"failed","charge":{"id":"ch_1"}}`))

	require.NotNil(t, herr)
	require.False(t, herr.Terminal)
}
