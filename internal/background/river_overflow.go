package background

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
)

// OverflowJobArgs is the River job payload a dropped-on-full Task spills
// into. The original Task's closure cannot survive a durable queue, so the
// overflow path re-derives the work from a small serializable descriptor
// instead (EventID + Kind); SideEffectWorker looks up the concrete retry
// action by kind.
type OverflowJobArgs struct {
	Kind string `json:"kind"`
	EventID string `json:"event_id"`
	PaymentID string `json:"payment_id,omitempty"`
	GA4ClientID string `json:"ga4_client_id,omitempty"`
}

func (OverflowJobArgs) Kind() string { return "background_side_effect" }

// RiverOverflow enqueues a durable River job when the bounded in-process
// queue is full, grounded on enqueueNotification (RefundWorker
// in refund_worker.go), which performed the equivalent direct
// metadata.river_job insert as a best-effort, log-on-failure side effect.
type RiverOverflow struct {
	client *river.Client[pgx.Tx]
}

func NewRiverOverflow(client *river.Client[pgx.Tx]) *RiverOverflow {
	return &RiverOverflow{client: client}
}

func (o *RiverOverflow) Enqueue(ctx context.Context, t Task) error {
	_, err := o.client.Insert(ctx, OverflowJobArgs{
		Kind: string(t.Kind),
		EventID: t.EventID,
		PaymentID: t.PaymentID,
		GA4ClientID: t.GA4ClientID,
	}, nil)
	if err != nil {
		return fmt.Errorf("river overflow insert: %w", err)
	}
	return nil
}
