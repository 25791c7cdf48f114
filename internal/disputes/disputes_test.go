package disputes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildDispute_Defaults(t *testing.T) {
	now := time.Now()
	d := BuildDispute(Event{
		StripeDisputeID: "dp_1",
		ChargeID: "ch_1",
		Amount: 1500,
	}, "pay_1", now)

	require.Equal(t, DefaultCurrency, d.Currency)
	require.Equal(t, DefaultStatus, d.Status)
	require.Nil(t, d.EvidenceDueBy)
	require.Nil(t, d.ClosedAt)
	require.Equal(t, "pay_1", d.PaymentID)
}

func TestBuildDispute_CurrencyLowercased(t *testing.T) {
	d := BuildDispute(Event{StripeDisputeID: "dp_2", Currency: "JPY"}, "pay_1", time.Now())
	require.Equal(t, "jpy", d.Currency)
}

func TestBuildDispute_EvidenceDueByConverted(t *testing.T) {
	due := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	d := BuildDispute(Event{StripeDisputeID: "dp_3", EvidenceDueByUnix: due.Unix()}, "pay_1", time.Now())
	require.NotNil(t, d.EvidenceDueBy)
	require.True(t, d.EvidenceDueBy.Equal(due))
}

func TestBuildDispute_ClosedAtOnlyForClosedEvent(t *testing.T) {
	now := time.Now()
	closed := BuildDispute(Event{StripeDisputeID: "dp_4", IsClosedEvent: true}, "pay_1", now)
	require.NotNil(t, closed.ClosedAt)

	open := BuildDispute(Event{StripeDisputeID: "dp_5", IsClosedEvent: false}, "pay_1", now)
	require.Nil(t, open.ClosedAt)
}

func TestBuildDispute_ExplicitValuesPreserved(t *testing.T) {
	d := BuildDispute(Event{
		StripeDisputeID: "dp_6",
		Currency: "usd",
		Status: "under_review",
		Reason: "fraudulent",
	}, "pay_1", time.Now())
	require.Equal(t, "usd", d.Currency)
	require.Equal(t, "under_review", d.Status)
	require.Equal(t, "fraudulent", d.Reason)
}
