package background

import (
	"context"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"github.com/rytkhs/eventpay-webhook-engine/internal/metrics"
)

// SettlementRegenerator, Analytics and Notifier mirror the ports
// internal/handlers exposes, narrowed to what a durable replay needs. They
// are defined separately here (rather than imported) because
// internal/handlers already imports internal/background for Task/Queue —
// importing back would cycle.
type SettlementRegenerator interface {
	Regenerate(ctx context.Context, paymentID string) error
}

type Analytics interface {
	TrackCheckoutCompleted(ctx context.Context, ga4ClientID, paymentID string) error
}

type Notifier interface {
	NotifyPaymentCompleted(ctx context.Context, paymentID string) error
}

// SideEffectWorker replays an OverflowJobArgs job when River picks up the
// durable fallback, independently of the in-process queue — grounded on
// RefundWorker.Work, which similarly
// re-derived the retry action from job args rather than a closure.
type SideEffectWorker struct {
	river.WorkerDefaults[OverflowJobArgs]

	settlement SettlementRegenerator
	analytics Analytics
	notifier Notifier
	log *zap.Logger
}

// NewSideEffectWorker builds a worker. Any collaborator left nil makes jobs
// of that kind complete as a silent no-op, the same way handlers skip
// submitting a task when a port isn't configured.
func NewSideEffectWorker(log *zap.Logger, opts ...SideEffectWorkerOption) *SideEffectWorker {
	w := &SideEffectWorker{log: log}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type SideEffectWorkerOption func(*SideEffectWorker)

func WithSettlementRegenerator(s SettlementRegenerator) SideEffectWorkerOption {
	return func(w *SideEffectWorker) { w.settlement = s }
}

func WithAnalytics(a Analytics) SideEffectWorkerOption {
	return func(w *SideEffectWorker) { w.analytics = a }
}

func WithNotifier(n Notifier) SideEffectWorkerOption {
	return func(w *SideEffectWorker) { w.notifier = n }
}

func (w *SideEffectWorker) Work(ctx context.Context, job *river.Job[OverflowJobArgs]) error {
	args := job.Args
	kind := Kind(args.Kind)

	var err error
	switch kind {
	case KindSettlementRegenerate:
		if w.settlement == nil || args.PaymentID == "" {
			return nil
		}
		err = w.settlement.Regenerate(ctx, args.PaymentID)
	case KindGA4Tracking:
		if w.analytics == nil || args.GA4ClientID == "" {
			return nil
		}
		err = w.analytics.TrackCheckoutCompleted(ctx, args.GA4ClientID, args.PaymentID)
	case KindPaymentCompletionNotify:
		if w.notifier == nil || args.PaymentID == "" {
			return nil
		}
		err = w.notifier.NotifyPaymentCompleted(ctx, args.PaymentID)
	default:
		w.log.Warn("side effect worker: unknown kind, dropping", zap.String("kind", args.Kind), zap.String("event_id", args.EventID))
		return nil
	}

	if err != nil {
		metrics.SideEffectFailures.WithLabelValues(args.Kind).Inc()
		w.log.Warn("durable side effect replay failed", zap.String("kind", args.Kind), zap.String("event_id", args.EventID), zap.Error(err))
		return err
	}
	return nil
}
