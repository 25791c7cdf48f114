package ledger

import (
	"context"
	"sync"
	"time"
)

// fakeRepository is an in-memory Repository used to exercise
// BeginProcessing's claim algorithm deterministically, the way
// Pay-Chain-pay-chain.backend's repository interfaces are faked in its own
// usecase tests. It reimplements the CAS semantics in Go rather than SQL so
// tests don't require a live Postgres instance.
type fakeRepository struct {
	mu sync.Mutex
	rows map[string]Row

	// insertRaces, when > 0, makes the next N TryInsert calls for the given
	// event id report a lost race (simulating a concurrent claimant).
	insertRaces map[string]int
	// reclaimRaces does the same for TryReclaim.
	reclaimRaces map[string]int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		rows: make(map[string]Row),
		insertRaces: make(map[string]int),
		reclaimRaces: make(map[string]int),
	}
}

func (f *fakeRepository) Get(_ context.Context, eventID string) (*Row, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[eventID]
	if !ok {
		return nil, false, nil
	}
	cp := row
	return &cp, true, nil
}

func (f *fakeRepository) TryInsert(_ context.Context, row *Row) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n := f.insertRaces[row.StripeEventID]; n > 0 {
		f.insertRaces[row.StripeEventID] = n - 1
		return false, nil
	}
	if _, exists := f.rows[row.StripeEventID]; exists {
		return false, nil
	}
	f.rows[row.StripeEventID] = *row
	return true, nil
}

func (f *fakeRepository) TryReclaim(_ context.Context, observed *Row, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n := f.reclaimRaces[observed.StripeEventID]; n > 0 {
		f.reclaimRaces[observed.StripeEventID] = n - 1
		return false, nil
	}

	current, ok := f.rows[observed.StripeEventID]
	if !ok {
		return false, nil
	}
	if current.ProcessingStatus != observed.ProcessingStatus || !current.UpdatedAt.Equal(observed.UpdatedAt) {
		return false, nil
	}
	if observed.ProcessingStatus == StatusProcessing && !current.UpdatedAt.Before(now.Add(-StaleTimeout)) {
		return false, nil
	}
	current.ProcessingStatus = StatusProcessing
	current.IsTerminalFailure = false
	current.LastErrorCode = ""
	current.LastErrorReason = ""
	current.UpdatedAt = now
	f.rows[observed.StripeEventID] = current
	return true, nil
}

func (f *fakeRepository) MarkSucceeded(_ context.Context, eventID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[eventID]
	if !ok {
		return ErrRowMissing
	}
	row.ProcessingStatus = StatusSucceeded
	row.UpdatedAt = now
	row.ProcessedAt = &now
	f.rows[eventID] = row
	return nil
}

func (f *fakeRepository) MarkFailed(_ context.Context, eventID, errorCode, reason string, terminal bool, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[eventID]
	if !ok {
		return ErrRowMissing
	}
	row.ProcessingStatus = StatusFailed
	row.IsTerminalFailure = terminal
	row.LastErrorCode = errorCode
	row.LastErrorReason = reason
	row.UpdatedAt = now
	row.ProcessedAt = &now
	f.rows[eventID] = row
	return nil
}

func (f *fakeRepository) FindLatestByDedupeKey(_ context.Context, dedupeKey, excludingEventID string) (*Row, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *Row
	for id, row := range f.rows {
		if id == excludingEventID || row.DedupeKey != dedupeKey {
			continue
		}
		if latest == nil || row.CreatedAt.After(latest.CreatedAt) {
			cp := row
			latest = &cp
		}
	}
	return latest, latest != nil, nil
}
