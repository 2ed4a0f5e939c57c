package ratelimit

import (
	"context"
	"time"

	"github.com/Benxalil/EcoGest-07-sub004/pkg/errors"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/ttlstore"
)

// Markers records throttled tables until a deadline.
type Markers interface {
	// Mark records table as throttled until the given time. A deadline in
	// the past is ignored.
	Mark(ctx context.Context, table string, until time.Time) error

	// Until returns the deadline of a live marker for table.
	Until(ctx context.Context, table string) (time.Time, bool, error)

	// Clear removes the marker for table, if any.
	Clear(ctx context.Context, table string) error
}

// Memory keeps markers in a process-local TTL store.
type Memory struct {
	store *ttlstore.Store[time.Time]
}

// NewMemory creates an in-process marker set bounded by cfg.MaxEntries.
func NewMemory(cfg ttlstore.Config) *Memory {
	return &Memory{store: ttlstore.New[time.Time](cfg)}
}

// Mark implements [Markers].
func (m *Memory) Mark(_ context.Context, table string, until time.Time) error {
	if err := errors.ValidateTable(table); err != nil {
		return err
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	m.store.SetWithTTL(table, until, ttl)
	return nil
}

// Until implements [Markers].
func (m *Memory) Until(_ context.Context, table string) (time.Time, bool, error) {
	until, ok := m.store.Get(table)
	return until, ok, nil
}

// Clear implements [Markers].
func (m *Memory) Clear(_ context.Context, table string) error {
	m.store.Delete(table)
	return nil
}

// Stats reports the underlying store.
func (m *Memory) Stats() ttlstore.Stats {
	return m.store.Stats()
}
