package lock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
	"gotest.tools/v3/assert"

	dberrors "github.com/leengari/dyntable/internal/domain/errors"
)

func TestSharedHoldersCoexist(t *testing.T) {
	m := NewManager(time.Second)
	ctx := context.Background()

	r1, err := m.Shared(ctx, "users")
	assert.NilError(t, err)
	r2, err := m.Shared(ctx, "users")
	assert.NilError(t, err)

	r1()
	r2()
	assert.Equal(t, m.Len(), 0)
}

func TestExclusiveTimesOutAsBusy(t *testing.T) {
	m := NewManager(20 * time.Millisecond)
	ctx := context.Background()

	release, err := m.Shared(ctx, "users")
	assert.NilError(t, err)
	defer release()

	_, err = m.Exclusive(ctx, "users")
	assert.Assert(t, errors.Is(err, dberrors.ErrTableBusy), "got %v", err)

	// other tables are unaffected
	other, err := m.Exclusive(ctx, "orders")
	assert.NilError(t, err)
	other()
}

func TestCallerCancellationIsNotBusy(t *testing.T) {
	m := NewManager(time.Minute)

	release, err := m.Exclusive(context.Background(), "users")
	assert.NilError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Shared(ctx, "users")
	assert.Assert(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Assert(t, !errors.Is(err, dberrors.ErrTableBusy))
}

func TestExclusiveExcludesEveryone(t *testing.T) {
	m := NewManager(0)
	ctx := context.Background()

	var active, peak int32
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			release, err := m.Exclusive(gctx, "users")
			if err != nil {
				return err
			}
			defer release()
			n := atomic.AddInt32(&active, 1)
			if n > atomic.LoadInt32(&peak) {
				atomic.StoreInt32(&peak, n)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			return nil
		})
	}
	assert.NilError(t, g.Wait())
	assert.Equal(t, atomic.LoadInt32(&peak), int32(1))
	assert.Equal(t, m.Len(), 0)
}

func TestPendingExclusiveBlocksNewReaders(t *testing.T) {
	m := NewManager(0)
	ctx := context.Background()

	reader, err := m.Shared(ctx, "users")
	assert.NilError(t, err)

	acquired := make(chan func())
	go func() {
		release, err := m.Exclusive(ctx, "users")
		if err == nil {
			acquired <- release
		}
	}()

	// wait until the writer is queued
	deadline := time.Now().Add(time.Second)
	for m.refCount("users") < 2 {
		assert.Assert(t, time.Now().Before(deadline), "writer never queued")
		time.Sleep(time.Millisecond)
	}

	lateCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = m.Shared(lateCtx, "users")
	assert.Assert(t, err != nil, "reader overtook a queued migration")

	reader()
	release := <-acquired
	release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := NewManager(0)
	release, err := m.Exclusive(context.Background(), "users")
	assert.NilError(t, err)
	release()
	release()
	assert.Equal(t, m.Len(), 0)
}

func (m *Manager) refCount(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.tables[table]; ok {
		return e.refs
	}
	return 0
}

func TestNamesFoldCase(t *testing.T) {
	m := NewManager(20 * time.Millisecond)
	release, err := m.Exclusive(context.Background(), "Users")
	assert.NilError(t, err)
	defer release()

	_, err = m.Shared(context.Background(), "users")
	assert.Assert(t, errors.Is(err, dberrors.ErrTableBusy), "got %v", err)
}
