package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the Postgres SQLSTATE for a unique-constraint
// violation, used to detect a concurrent TryInsert race.
const uniqueViolation = "23505"

// DB is satisfied by both *pgxpool.Pool and pgx.Tx, matching the prior implementation's
// webhook_handler.go which runs every write inside a single pgx.Tx.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PgRepository is the pgx-backed Repository implementation.
type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

// NewPoolRepository is a convenience constructor for the top-level pool,
// used outside of a caller-managed transaction (e.g. read-only callers).
func NewPoolRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: pool}
}

func (r *PgRepository) Get(ctx context.Context, eventID string) (*Row, bool, error) {
	row := &Row{}
	var lastErrorCode, lastErrorReason *string
	var processedAt *time.Time
	err := r.db.QueryRow(ctx, `
 SELECT stripe_event_id, event_type, stripe_object_id, dedupe_key,
 processing_status, is_terminal_failure, last_error_code,
 last_error_reason, created_at, updated_at, processed_at
 FROM webhook_event_ledger
 WHERE stripe_event_id = $1
 `, eventID).Scan(
		&row.StripeEventID, &row.EventType, &row.StripeObjectID, &row.DedupeKey,
		&row.ProcessingStatus, &row.IsTerminalFailure, &lastErrorCode,
		&lastErrorReason, &row.CreatedAt, &row.UpdatedAt, &processedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if lastErrorCode != nil {
		row.LastErrorCode = *lastErrorCode
	}
	if lastErrorReason != nil {
		row.LastErrorReason = *lastErrorReason
	}
	row.ProcessedAt = processedAt
	return row, true, nil
}

func (r *PgRepository) TryInsert(ctx context.Context, row *Row) (bool, error) {
	var id string
	err := r.db.QueryRow(ctx, `
 INSERT INTO webhook_event_ledger (
 stripe_event_id, event_type, stripe_object_id, dedupe_key,
 processing_status, created_at, updated_at
 ) VALUES ($1, $2, $3, $4, 'processing', $5, $5)
 ON CONFLICT (stripe_event_id) DO NOTHING
 RETURNING stripe_event_id
 `, row.StripeEventID, row.EventType, row.StripeObjectID, row.DedupeKey, row.CreatedAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// TryReclaim implements the CAS claim update of step 6: the guard
// matches the previously observed state so a concurrent claimant's write
// cannot be silently clobbered. For a stale `processing` row the guard also
// requires updated_at to still be at or before the staleness threshold; for
// a non-terminal `failed` row the guard requires status to still be
// `failed`.
func (r *PgRepository) TryReclaim(ctx context.Context, observed *Row, now time.Time) (bool, error) {
	var tag pgconn.CommandTag
	var err error
	switch observed.ProcessingStatus {
	case StatusProcessing:
		tag, err = r.db.Exec(ctx, `
 UPDATE webhook_event_ledger
 SET processing_status = 'processing',
 last_error_code = NULL,
 last_error_reason = NULL,
 is_terminal_failure = FALSE,
 updated_at = $1
 WHERE stripe_event_id = $2
 AND processing_status = 'processing'
 AND updated_at = $3
 AND updated_at <= $4
 `, now, observed.StripeEventID, observed.UpdatedAt, now.Add(-StaleTimeout))
	case StatusFailed:
		tag, err = r.db.Exec(ctx, `
 UPDATE webhook_event_ledger
 SET processing_status = 'processing',
 last_error_code = NULL,
 last_error_reason = NULL,
 is_terminal_failure = FALSE,
 updated_at = $1
 WHERE stripe_event_id = $2
 AND processing_status = 'failed'
 AND is_terminal_failure = FALSE
 AND updated_at = $3
 `, now, observed.StripeEventID, observed.UpdatedAt)
	default:
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) MarkSucceeded(ctx context.Context, eventID string, now time.Time) error {
	tag, err := r.db.Exec(ctx, `
 UPDATE webhook_event_ledger
 SET processing_status = 'succeeded', processed_at = $1, updated_at = $1
 WHERE stripe_event_id = $2
 `, now, eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRowMissing
	}
	return nil
}

func (r *PgRepository) MarkFailed(ctx context.Context, eventID, errorCode, reason string, terminal bool, now time.Time) error {
	tag, err := r.db.Exec(ctx, `
 UPDATE webhook_event_ledger
 SET processing_status = 'failed',
 is_terminal_failure = $1,
 last_error_code = $2,
 last_error_reason = $3,
 processed_at = $4,
 updated_at = $4
 WHERE stripe_event_id = $5
 `, terminal, errorCode, reason, now, eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRowMissing
	}
	return nil
}

func (r *PgRepository) FindLatestByDedupeKey(ctx context.Context, dedupeKey, excludingEventID string) (*Row, bool, error) {
	row := &Row{}
	var lastErrorCode, lastErrorReason *string
	var processedAt *time.Time
	err := r.db.QueryRow(ctx, `
 SELECT stripe_event_id, event_type, stripe_object_id, dedupe_key,
 processing_status, is_terminal_failure, last_error_code,
 last_error_reason, created_at, updated_at, processed_at
 FROM webhook_event_ledger
 WHERE dedupe_key = $1 AND stripe_event_id != $2
 ORDER BY created_at DESC
 LIMIT 1
 `, dedupeKey, excludingEventID).Scan(
		&row.StripeEventID, &row.EventType, &row.StripeObjectID, &row.DedupeKey,
		&row.ProcessingStatus, &row.IsTerminalFailure, &lastErrorCode,
		&lastErrorReason, &row.CreatedAt, &row.UpdatedAt, &processedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if lastErrorCode != nil {
		row.LastErrorCode = *lastErrorCode
	}
	if lastErrorReason != nil {
		row.LastErrorReason = *lastErrorReason
	}
	row.ProcessedAt = processedAt
	return row, true, nil
}
