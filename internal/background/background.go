// Package background implements the bounded best-effort task queue backing
// settlement regenerate, GA4 tracking, and payment-completion notification
//. These are fire-and-log: a
// failure here must never fail the webhook outcome.
//
// Grounded on River job pattern (RefundWorker,
// CreateIntentWorker, and enqueueNotification's direct metadata.river_job
// insert) adapted from "always durable" to "bounded in-process channel with
// durable overflow" — when the channel is full, the task spills to a River
// job row instead of being silently dropped, so River stays wired as the
// overflow transport (see DESIGN.md).
package background

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rytkhs/eventpay-webhook-engine/internal/metrics"
)

// Kind identifies a best-effort side effect.
type Kind string

const (
	KindSettlementRegenerate Kind = "settlement_regenerate"
	KindGA4Tracking Kind = "ga4_tracking"
	KindPaymentCompletionNotify Kind = "payment_completion_notification"
)

// Task is one unit of background work. PaymentID and GA4ClientID are carried
// alongside the closure purely so an Overflow implementation can persist
// enough to retry the work durably without the closure (see
// OverflowJobArgs); Run itself only needs ctx.
type Task struct {
	Kind Kind
	EventID string
	PaymentID string
	GA4ClientID string
	Run func(ctx context.Context) error
}

// Overflow persists a task durably when the bounded channel is full — the
// production implementation enqueues a River job (see river_overflow.go).
type Overflow interface {
	Enqueue(ctx context.Context, task Task) error
}

// Queue is a bounded, drop-on-full worker pool for fire-and-log side
// effects.
type Queue struct {
	tasks chan Task
	overflow Overflow
	log *zap.Logger
	workers int
}

// NewQueue builds a Queue with the given channel capacity and worker count.
func NewQueue(capacity, workers int, overflow Overflow, log *zap.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		tasks: make(chan Task, capacity),
		overflow: overflow,
		log: log,
		workers: workers,
	}
}

// Start spawns the worker goroutines. It returns immediately; workers run
// until ctx is canceled.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		go q.loop(ctx)
	}
}

func (q *Queue) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.tasks:
			q.run(ctx, t)
		}
	}
}

func (q *Queue) run(ctx context.Context, t Task) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := t.Run(runCtx); err != nil {
		metrics.SideEffectFailures.WithLabelValues(string(t.Kind)).Inc()
		q.log.Warn("background task failed; webhook outcome unaffected",
			zap.String("kind", string(t.Kind)), zap.String("event_id", t.EventID), zap.Error(err))
	}
}

// Submit enqueues a task without blocking. If the channel is full, the task
// spills to Overflow (if configured); otherwise it is dropped and logged
//.
func (q *Queue) Submit(ctx context.Context, t Task) {
	select {
	case q.tasks <- t:
		return
	default:
	}

	if q.overflow != nil {
		if err := q.overflow.Enqueue(ctx, t); err != nil {
			q.log.Error("background queue full and overflow enqueue failed; task dropped",
				zap.String("kind", string(t.Kind)), zap.String("event_id", t.EventID), zap.Error(err))
			metrics.BackgroundQueueDropped.WithLabelValues(string(t.Kind)).Inc()
		}
		return
	}

	q.log.Warn("background queue full; task dropped", zap.String("kind", string(t.Kind)), zap.String("event_id", t.EventID))
	metrics.BackgroundQueueDropped.WithLabelValues(string(t.Kind)).Inc()
}
