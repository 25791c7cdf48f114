package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rytkhs/eventpay-webhook-engine/internal/promotion"
)

// fakeRepository is a minimal in-memory Repository used to exercise the
// composite resolver lookup orders, mirroring the ledger
// package's fake-repository testing approach.
type fakeRepository struct {
	byID map[string]*Payment
	byPaymentIntentID map[string]*Payment
	byChargeID map[string]*Payment
	byCheckoutSessionID map[string]*Payment
	byApplicationFeeID map[string]*Payment
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		byID: make(map[string]*Payment),
		byPaymentIntentID: make(map[string]*Payment),
		byChargeID: make(map[string]*Payment),
		byCheckoutSessionID: make(map[string]*Payment),
		byApplicationFeeID: make(map[string]*Payment),
	}
}

func (f *fakeRepository) FindByID(_ context.Context, id string) (*Payment, error) {
	return f.byID[id], nil
}
func (f *fakeRepository) FindByPaymentIntentID(_ context.Context, id string) (*Payment, error) {
	return f.byPaymentIntentID[id], nil
}
func (f *fakeRepository) FindByChargeID(_ context.Context, id string) (*Payment, error) {
	return f.byChargeID[id], nil
}
func (f *fakeRepository) FindByCheckoutSessionID(_ context.Context, id string) (*Payment, error) {
	return f.byCheckoutSessionID[id], nil
}
func (f *fakeRepository) FindByApplicationFeeID(_ context.Context, id string) (*Payment, error) {
	return f.byApplicationFeeID[id], nil
}
func (f *fakeRepository) SaveCheckoutSessionLink(context.Context, string, string, string, string, time.Time) error {
	return nil
}
func (f *fakeRepository) UpdateStatusPaidFromPaymentIntent(context.Context, string, string, string, time.Time) error {
	return nil
}
func (f *fakeRepository) UpdateStatusFailedFromPaymentIntent(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeRepository) UpdateStatusFailedFromCheckoutSession(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeRepository) UpdateStatusPaidFromChargeSnapshot(context.Context, string, ChargeSnapshot, string, time.Time) error {
	return nil
}
func (f *fakeRepository) UpdateStatusFailedFromCharge(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeRepository) UpdateRefundAggregate(context.Context, string, string, int64, int64, string, string, time.Time) error {
	return nil
}
func (f *fakeRepository) UpdateApplicationFeeRefundAggregate(context.Context, string, int64, string, string, time.Time) error {
	return nil
}

func TestResolveByPaymentIntentOrMetadata_PaymentIntentWins(t *testing.T) {
	repo := newFakeRepository()
	repo.byPaymentIntentID["pi_1"] = &Payment{ID: "pay_1", Status: promotion.Pending}
	repo.byID["pay_2"] = &Payment{ID: "pay_2", Status: promotion.Pending}

	p, err := ResolveByPaymentIntentOrMetadata(context.Background(), repo, "pi_1", "pay_2")
	require.NoError(t, err)
	require.Equal(t, "pay_1", p.ID)
}

func TestResolveByPaymentIntentOrMetadata_FallsBackToMetadata(t *testing.T) {
	repo := newFakeRepository()
	repo.byID["pay_2"] = &Payment{ID: "pay_2", Status: promotion.Pending}

	p, err := ResolveByPaymentIntentOrMetadata(context.Background(), repo, "pi_missing", "pay_2")
	require.NoError(t, err)
	require.Equal(t, "pay_2", p.ID)
}

func TestResolveByPaymentIntentOrMetadata_NotFound(t *testing.T) {
	repo := newFakeRepository()
	p, err := ResolveByPaymentIntentOrMetadata(context.Background(), repo, "pi_missing", "")
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestResolveByChargeOrFallback_Order(t *testing.T) {
	repo := newFakeRepository()
	repo.byChargeID["ch_1"] = &Payment{ID: "pay_charge"}
	repo.byID["pay_meta"] = &Payment{ID: "pay_meta"}

	p, err := ResolveByChargeOrFallback(context.Background(), repo, "", "ch_1", "pay_meta")
	require.NoError(t, err)
	require.Equal(t, "pay_charge", p.ID)

	p, err = ResolveByChargeOrFallback(context.Background(), repo, "", "ch_missing", "pay_meta")
	require.NoError(t, err)
	require.Equal(t, "pay_meta", p.ID)
}

func TestResolveCheckoutTarget_Order(t *testing.T) {
	repo := newFakeRepository()
	repo.byCheckoutSessionID["cs_1"] = &Payment{ID: "pay_session"}
	repo.byID["pay_meta"] = &Payment{ID: "pay_meta"}

	p, err := ResolveCheckoutTarget(context.Background(), repo, "cs_1", "pay_meta")
	require.NoError(t, err)
	require.Equal(t, "pay_session", p.ID)

	p, err = ResolveCheckoutTarget(context.Background(), repo, "cs_missing", "pay_meta")
	require.NoError(t, err)
	require.Equal(t, "pay_meta", p.ID)
}

func TestResolveForDispute_Order(t *testing.T) {
	repo := newFakeRepository()
	repo.byPaymentIntentID["pi_1"] = &Payment{ID: "pay_pi"}
	repo.byChargeID["ch_1"] = &Payment{ID: "pay_charge"}

	p, err := ResolveForDispute(context.Background(), repo, "pi_1", "ch_1")
	require.NoError(t, err)
	require.Equal(t, "pay_pi", p.ID)

	p, err = ResolveForDispute(context.Background(), repo, "pi_missing", "ch_1")
	require.NoError(t, err)
	require.Equal(t, "pay_charge", p.ID)
}
