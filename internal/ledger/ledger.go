// Package ledger implements the webhook event ledger: deduplication and
// processing-lifecycle tracking per provider event id.
//
// The claim algorithm is written against the Repository interface rather
// than directly against pgx so it can be exercised deterministically in
// tests (github.com/rytkhs/eventpay-webhook-engine/internal/ledger uses the
// same repository-interface-plus-fake shape as
// Pay-Chain-pay-chain.backend/internal/domain/repositories). PgRepository in
// pg_repository.go is the pgx-backed production implementation, grounded on
// INSERT... ON CONFLICT DO NOTHING / pgx.ErrNoRows duplicate
// check in webhook_handler.go, generalized to the full claim/reclaim state
// machine.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ProcessingStatus is the ledger row's lifecycle state.
type ProcessingStatus string

const (
	StatusProcessing ProcessingStatus = "processing"
	StatusSucceeded ProcessingStatus = "succeeded"
	StatusFailed ProcessingStatus = "failed"
)

// StaleTimeout is the maximum wall-clock a processing claim may hold before
// it becomes reclaimable by another delivery.
const StaleTimeout = 5 * time.Minute

// MaxClaimRetries bounds the claim loop so contention eventually surfaces as
// a retryable ledger_contention error rather than spinning forever.
const MaxClaimRetries = 5

// Row is one webhook_event_ledger record.
type Row struct {
	StripeEventID string
	EventType string
	StripeObjectID string
	DedupeKey string
	ProcessingStatus ProcessingStatus
	IsTerminalFailure bool
	LastErrorCode string
	LastErrorReason string
	CreatedAt time.Time
	UpdatedAt time.Time
	ProcessedAt *time.Time
}

// ErrRowMissing is returned by MarkSucceeded/MarkFailed when the ledger row
// was not found — treats this as a hard failure, never a no-op.
var ErrRowMissing = errors.New("ledger: row missing for event id")

// Repository is the storage interface BeginProcessing is written against.
type Repository interface {
	// Get returns the row for eventID, or found=false if absent.
	Get(ctx context.Context, eventID string) (row *Row, found bool, err error)
	// TryInsert attempts to create a new processing row. inserted=false
	// (no error) signals a concurrent insert already claimed the event id
	// (unique violation on stripe_event_id).
	TryInsert(ctx context.Context, row *Row) (inserted bool, err error)
	// TryReclaim attempts the conditional-update CAS claim against a row
	// previously observed as `observed` (stale processing, or non-terminal
	// failed). claimed=false (no error) signals the row changed under us
	// and the caller should re-read and retry.
	TryReclaim(ctx context.Context, observed *Row, now time.Time) (claimed bool, err error)
	// MarkSucceeded transitions eventID to succeeded.
	MarkSucceeded(ctx context.Context, eventID string, now time.Time) error
	// MarkFailed transitions eventID to failed with the given error detail.
	MarkFailed(ctx context.Context, eventID, errorCode, reason string, terminal bool, now time.Time) error
	// FindLatestByDedupeKey returns the most recent row sharing dedupeKey
	// other than excludingEventID, or found=false.
	FindLatestByDedupeKey(ctx context.Context, dedupeKey, excludingEventID string) (row *Row, found bool, err error)
}

// Action is the outcome of BeginProcessing.
type Action string

const (
	ActionProcess Action = "process"
	ActionAckDuplicateSucceeded Action = "ack_duplicate_succeeded"
	ActionAckDuplicateInProgress Action = "ack_duplicate_in_progress"
	ActionAckDuplicateFailedTerminal Action = "ack_duplicate_failed_terminal"
)

// BeginResult is BeginProcessing's return value.
type BeginResult struct {
	Action Action
	DedupeKey string
	ObjectID string
	Status ProcessingStatus
	LastError string
}

// ErrLedgerContention is returned when the claim loop exhausts
// MaxClaimRetries without success.
var ErrLedgerContention = errors.New("ledger: contention, exhausted claim retries")

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// Store ties a Repository to a Clock and implements the design's algorithms.
type Store struct {
	repo Repository
	clock Clock
}

func NewStore(repo Repository, clock Clock) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{repo: repo, clock: clock}
}

// isTerminal mirrors: "isTerminal(row) ≡ is_terminal_failure ∨
// error_code = WEBHOOK_INVALID_PAYLOAD ∨ error_code starts with 22 or 23".
func isTerminal(row *Row) bool {
	if row.IsTerminalFailure {
		return true
	}
	if row.LastErrorCode == "WEBHOOK_INVALID_PAYLOAD" {
		return true
	}
	if len(row.LastErrorCode) >= 2 {
		prefix := row.LastErrorCode[:2]
		if prefix == "22" || prefix == "23" {
			return true
		}
	}
	return false
}

// DedupeKey builds the secondary observability key.
func DedupeKey(eventType, objectID string) string {
	if objectID == "" {
		objectID = "unknown"
	}
	return fmt.Sprintf("%s:%s", eventType, objectID)
}

// BeginProcessing implements the bounded-retry claim algorithm.
func (s *Store) BeginProcessing(ctx context.Context, eventID, eventType, objectID string) (*BeginResult, error) {
	dedupeKey := DedupeKey(eventType, objectID)

	for attempt := 0; attempt < MaxClaimRetries; attempt++ {
		row, found, err := s.repo.Get(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("ledger get: %w", err)
		}

		now := s.clock()

		if found {
			switch row.ProcessingStatus {
			case StatusSucceeded:
				return &BeginResult{Action: ActionAckDuplicateSucceeded, DedupeKey: row.DedupeKey, ObjectID: row.StripeObjectID, Status: row.ProcessingStatus}, nil
			case StatusProcessing:
				if now.Sub(row.UpdatedAt) < StaleTimeout {
					return &BeginResult{Action: ActionAckDuplicateInProgress, DedupeKey: row.DedupeKey, ObjectID: row.StripeObjectID, Status: row.ProcessingStatus}, nil
				}
				// Stale: attempt to reclaim.
				claimed, err := s.repo.TryReclaim(ctx, row, now)
				if err != nil {
					return nil, fmt.Errorf("ledger reclaim: %w", err)
				}
				if !claimed {
					continue // lost the race; re-read and retry
				}
				return &BeginResult{Action: ActionProcess, DedupeKey: dedupeKey, ObjectID: objectID, Status: StatusProcessing}, nil
			case StatusFailed:
				if isTerminal(row) {
					return &BeginResult{Action: ActionAckDuplicateFailedTerminal, DedupeKey: row.DedupeKey, ObjectID: row.StripeObjectID, Status: row.ProcessingStatus, LastError: row.LastErrorCode}, nil
				}
				claimed, err := s.repo.TryReclaim(ctx, row, now)
				if err != nil {
					return nil, fmt.Errorf("ledger reclaim: %w", err)
				}
				if !claimed {
					continue
				}
				return &BeginResult{Action: ActionProcess, DedupeKey: dedupeKey, ObjectID: objectID, Status: StatusProcessing}, nil
			}
		}

		// Absent: attempt first insert.
		newRow := &Row{
			StripeEventID: eventID,
			EventType: eventType,
			StripeObjectID: objectID,
			DedupeKey: dedupeKey,
			ProcessingStatus: StatusProcessing,
			UpdatedAt: now,
			CreatedAt: now,
		}
		inserted, err := s.repo.TryInsert(ctx, newRow)
		if err != nil {
			return nil, fmt.Errorf("ledger insert: %w", err)
		}
		if !inserted {
			continue // concurrent insert won; re-read and retry
		}
		return &BeginResult{Action: ActionProcess, DedupeKey: dedupeKey, ObjectID: objectID, Status: StatusProcessing}, nil
	}

	return nil, ErrLedgerContention
}

// FindLatestByDedupeKey is an observability-only lookup: it must
// never be used to branch processing logic, only to emit a warning when the
// same (event_type, object_id) recurs under a different event id.
func (s *Store) FindLatestByDedupeKey(ctx context.Context, dedupeKey, excludingEventID string) (*Row, bool, error) {
	return s.repo.FindLatestByDedupeKey(ctx, dedupeKey, excludingEventID)
}

// MarkSucceeded transitions the ledger row to succeeded. A missing row is a
// hard failure.
func (s *Store) MarkSucceeded(ctx context.Context, eventID string) error {
	if err := s.repo.MarkSucceeded(ctx, eventID, s.clock()); err != nil {
		return fmt.Errorf("ledger mark succeeded: %w", err)
	}
	return nil
}

// MarkFailed transitions the ledger row to failed with the given error
// detail. A missing row is a hard failure.
func (s *Store) MarkFailed(ctx context.Context, eventID, errorCode, reason string, terminal bool) error {
	if err := s.repo.MarkFailed(ctx, eventID, errorCode, reason, terminal, s.clock()); err != nil {
		return fmt.Errorf("ledger mark failed: %w", err)
	}
	return nil
}
