package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rytkhs/eventpay-webhook-engine/internal/background"
	"github.com/rytkhs/eventpay-webhook-engine/internal/disputes"
	"github.com/rytkhs/eventpay-webhook-engine/internal/payments"
	"github.com/rytkhs/eventpay-webhook-engine/internal/promotion"
	"github.com/rytkhs/eventpay-webhook-engine/internal/provider"
)

type fakePaymentsRepo struct {
	byID map[string]*payments.Payment
	byPaymentIntent map[string]*payments.Payment
	byCharge map[string]*payments.Payment
	byCheckoutSession map[string]*payments.Payment
	byApplicationFee map[string]*payments.Payment
	savedCheckoutLink bool
	updatedPaidFromPI bool
	updatedFailedFromPI bool
	updatedFailedFromCS bool
	updatedPaidSnapshot *payments.ChargeSnapshot
	updatedFailedCharge bool
	updatedRefund *refundCall
	updatedAppFeeRefund *refundCall
}

type refundCall struct {
	status string
	refundedAmount int64
	appFeeRefundedAmount int64
	appFeeRefundID string
}

func newFakePaymentsRepo() *fakePaymentsRepo {
	return &fakePaymentsRepo{
		byID: map[string]*payments.Payment{},
		byPaymentIntent: map[string]*payments.Payment{},
		byCharge: map[string]*payments.Payment{},
		byCheckoutSession: map[string]*payments.Payment{},
		byApplicationFee: map[string]*payments.Payment{},
	}
}

func (f *fakePaymentsRepo) FindByID(_ context.Context, id string) (*payments.Payment, error) {
	return f.byID[id], nil
}
func (f *fakePaymentsRepo) FindByPaymentIntentID(_ context.Context, id string) (*payments.Payment, error) {
	return f.byPaymentIntent[id], nil
}
func (f *fakePaymentsRepo) FindByChargeID(_ context.Context, id string) (*payments.Payment, error) {
	return f.byCharge[id], nil
}
func (f *fakePaymentsRepo) FindByCheckoutSessionID(_ context.Context, id string) (*payments.Payment, error) {
	return f.byCheckoutSession[id], nil
}
func (f *fakePaymentsRepo) FindByApplicationFeeID(_ context.Context, id string) (*payments.Payment, error) {
	return f.byApplicationFee[id], nil
}
func (f *fakePaymentsRepo) SaveCheckoutSessionLink(_ context.Context, paymentID, checkoutSessionID, _ string, _ string, _ time.Time) error {
	f.savedCheckoutLink = true
	if p, ok := f.byID[paymentID]; ok {
		p.CheckoutSessionID = checkoutSessionID
	}
	return nil
}
func (f *fakePaymentsRepo) UpdateStatusPaidFromPaymentIntent(_ context.Context, paymentID, _, _ string, _ time.Time) error {
	f.updatedPaidFromPI = true
	if p, ok := f.byID[paymentID]; ok {
		p.Status = promotion.Paid
	}
	return nil
}
func (f *fakePaymentsRepo) UpdateStatusFailedFromPaymentIntent(_ context.Context, paymentID, _ string, _ time.Time) error {
	f.updatedFailedFromPI = true
	if p, ok := f.byID[paymentID]; ok {
		p.Status = promotion.Failed
	}
	return nil
}
func (f *fakePaymentsRepo) UpdateStatusFailedFromCheckoutSession(_ context.Context, paymentID, _ string, _ time.Time) error {
	f.updatedFailedFromCS = true
	if p, ok := f.byID[paymentID]; ok {
		p.Status = promotion.Failed
	}
	return nil
}
func (f *fakePaymentsRepo) UpdateStatusPaidFromChargeSnapshot(_ context.Context, paymentID string, snapshot payments.ChargeSnapshot, _ string, _ time.Time) error {
	f.updatedPaidSnapshot = &snapshot
	if p, ok := f.byID[paymentID]; ok {
		p.Status = promotion.Paid
	}
	return nil
}
func (f *fakePaymentsRepo) UpdateStatusFailedFromCharge(_ context.Context, paymentID, _ string, _ time.Time) error {
	f.updatedFailedCharge = true
	if p, ok := f.byID[paymentID]; ok {
		p.Status = promotion.Failed
	}
	return nil
}
func (f *fakePaymentsRepo) UpdateRefundAggregate(_ context.Context, paymentID string, status string, refundedAmount, appFeeRefundedAmount int64, appFeeRefundID, _ string, _ time.Time) error {
	f.updatedRefund = &refundCall{status: status, refundedAmount: refundedAmount, appFeeRefundedAmount: appFeeRefundedAmount, appFeeRefundID: appFeeRefundID}
	if p, ok := f.byID[paymentID]; ok {
		p.Status = promotion.Status(status)
		p.RefundedAmount = refundedAmount
		p.ApplicationFeeRefundedAmount = appFeeRefundedAmount
		p.ApplicationFeeRefundID = appFeeRefundID
	}
	return nil
}
func (f *fakePaymentsRepo) UpdateApplicationFeeRefundAggregate(_ context.Context, paymentID string, appFeeRefundedAmount int64, appFeeRefundID, _ string, _ time.Time) error {
	f.updatedAppFeeRefund = &refundCall{appFeeRefundedAmount: appFeeRefundedAmount, appFeeRefundID: appFeeRefundID}
	if p, ok := f.byID[paymentID]; ok {
		p.ApplicationFeeRefundedAmount = appFeeRefundedAmount
		p.ApplicationFeeRefundID = appFeeRefundID
	}
	return nil
}

type fakeProvider struct {
	piData *provider.PaymentIntentData
	piErr error
	chargeData *provider.ChargeData
	chargeErr error
	refundAgg *provider.RefundAggregate
	refundAggErr error
}

func (f *fakeProvider) RetrievePaymentIntentWithLatestCharge(context.Context, string) (*provider.PaymentIntentData, error) {
	return f.piData, f.piErr
}
func (f *fakeProvider) RetrieveCharge(context.Context, string, []string) (*provider.ChargeData, error) {
	return f.chargeData, f.chargeErr
}
func (f *fakeProvider) SumApplicationFeeRefunds(context.Context, string) (*provider.RefundAggregate, error) {
	return f.refundAgg, f.refundAggErr
}

type fakeDisputesRepo struct {
	last *disputes.Dispute
}

func (f *fakeDisputesRepo) Upsert(_ context.Context, d *disputes.Dispute) error {
	f.last = d
	return nil
}

func testDeps(payRepo *fakePaymentsRepo, prov *fakeProvider, disputeRepo *fakeDisputesRepo) Deps {
	return Deps{
		Payments: payRepo,
		Provider: prov,
		Disputes: disputeRepo,
		Background: background.NewQueue(16, 1, nil, zap.NewNop()),
		Log: zap.NewNop(),
	}
}
