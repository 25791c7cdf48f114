package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rytkhs/eventpay-webhook-engine/internal/apperrors"
	"github.com/rytkhs/eventpay-webhook-engine/internal/payments"
	"github.com/rytkhs/eventpay-webhook-engine/internal/promotion"
)

func TestHandlePaymentIntentSucceeded_AmountMismatchIsTerminal(t *testing.T) {
	repo := newFakePaymentsRepo()
	repo.byPaymentIntent["pi_1"] = &payments.Payment{ID: "pay_1", Status: promotion.Pending, AmountCents: 500}
	deps := testDeps(repo, nil, nil)

	_, herr := HandlePaymentIntentSucceeded(context.Background(), deps, "evt_1",
		json.RawMessage(`{"id":"pi_1","amount":1000,"currency":"jpy"}`))

	require.NotNil(t, herr)
	require.True(t, herr.Terminal)
	require.Equal(t, apperrors.CodeInvalidPayload, herr.Code)
}

func TestHandlePaymentIntentSucceeded_NonJPYCurrencyIsTerminal(t *testing.T) {
	repo := newFakePaymentsRepo()
	repo.byPaymentIntent["pi_1"] = &payments.Payment{ID: "pay_1", Status: promotion.Pending, AmountCents: 1000}
	deps := testDeps(repo, nil, nil)

	_, herr := HandlePaymentIntentSucceeded(context.Background(), deps, "evt_1",
		json.RawMessage(`{"id":"pi_1","amount":1000,"currency":"usd"}`))

	require.NotNil(t, herr)
	require.True(t, herr.Terminal)
}

func TestHandlePaymentIntentSucceeded_PromotesToPaid(t *testing.T) {
	repo := newFakePaymentsRepo()
	repo.byPaymentIntent["pi_1"] = &payments.Payment{ID: "pay_1", Status: promotion.Pending, AmountCents: 1000}
	deps := testDeps(repo, nil, nil)

	outcome, herr := HandlePaymentIntentSucceeded(context.Background(), deps, "evt_1",
		json.RawMessage(`{"id":"pi_1","amount":1000,"currency":"jpy"}`))

	require.Nil(t, herr)
	require.Equal(t, "pay_1", outcome.PaymentID)
	require.True(t, repo.updatedPaidFromPI)
}

func TestHandlePaymentIntentSucceeded_PromotionBlockedAcks(t *testing.T) {
	repo := newFakePaymentsRepo()
	repo.byPaymentIntent["pi_1"] = &payments.Payment{ID: "pay_1", Status: promotion.Refunded, AmountCents: 1000}
	deps := testDeps(repo, nil, nil)

	_, herr := HandlePaymentIntentSucceeded(context.Background(), deps, "evt_1",
		json.RawMessage(`{"id":"pi_1","amount":1000,"currency":"jpy"}`))

	require.Nil(t, herr)
	require.False(t, repo.updatedPaidFromPI)
}

func TestHandlePaymentIntentPaymentFailed_PromotesToFailed(t *testing.T) {
	repo := newFakePaymentsRepo()
	repo.byPaymentIntent["pi_1"] = &payments.Payment{ID: "pay_1", Status: promotion.Pending}
	deps := testDeps(repo, nil, nil)

	outcome, herr := HandlePaymentIntentPaymentFailed(context.Background(), deps, "evt_1", json.RawMessage(`{"id":"pi_1"}`))

	require.Nil(t, herr)
	require.Equal(t, "pay_1", outcome.PaymentID)
	require.True(t, repo.updatedFailedFromPI)
}

func TestHandlePaymentIntentCanceled_PaymentNotFoundAcks(t *testing.T) {
	repo := newFakePaymentsRepo()
	deps := testDeps(repo, nil, nil)

	outcome, herr := HandlePaymentIntentCanceled(context.Background(), deps, "evt_1", json.RawMessage(`{"id":"pi_missing"}`))

	require.Nil(t, herr)
	require.Nil(t, outcome)
}
