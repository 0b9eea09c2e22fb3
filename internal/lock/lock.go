// Package lock serializes schema changes against each other and against
// row traffic on the same table. Readers and inserters share a table; a
// migration holds it exclusively. Waiters are served in arrival order, so a
// pending migration holds back new shared holders.
package lock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	dberrors "github.com/leengari/dyntable/internal/domain/errors"
)

// capacity bounds concurrent shared holders per table
const capacity = 1 << 20

type entry struct {
	sem  *semaphore.Weighted
	refs int
}

// Manager hands out per-table locks keyed by case-folded table name
type Manager struct {
	mu      sync.Mutex
	timeout time.Duration
	tables  map[string]*entry
}

// NewManager returns a Manager whose acquisitions give up with
// ErrTableBusy after timeout. A zero timeout waits for the caller's context.
func NewManager(timeout time.Duration) *Manager {
	return &Manager{timeout: timeout, tables: make(map[string]*entry)}
}

// Shared acquires table for reading or inserting
func (m *Manager) Shared(ctx context.Context, table string) (func(), error) {
	return m.acquire(ctx, table, 1)
}

// Exclusive acquires table for a schema change
func (m *Manager) Exclusive(ctx context.Context, table string) (func(), error) {
	return m.acquire(ctx, table, capacity)
}

func (m *Manager) acquire(ctx context.Context, table string, weight int64) (func(), error) {
	key := strings.ToLower(table)
	e := m.ref(key)

	waitCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	if err := e.sem.Acquire(waitCtx, weight); err != nil {
		m.unref(key, e)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &dberrors.TableBusyError{Table: table, Err: err}
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(weight)
			m.unref(key, e)
		})
	}, nil
}

func (m *Manager) ref(table string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tables[table]
	if !ok {
		e = &entry{sem: semaphore.NewWeighted(capacity)}
		m.tables[table] = e
	}
	e.refs++
	return e
}

func (m *Manager) unref(table string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.tables, table)
	}
}

// Len reports how many tables currently have holders or waiters
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables)
}
