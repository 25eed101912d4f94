package lockmgr

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dcov/lib/db"
	"github.com/ValentinKolb/dcov/lib/db/engines/maple"
	dbtesting "github.com/ValentinKolb/dcov/lib/db/testing"
	"github.com/ValentinKolb/dcov/lib/store/lstore"
)

func newTestManager(clock *dbtesting.ManualClock) ILockManager {
	s := lstore.NewLocalStoreWithClock(func() db.KVDB {
		return maple.NewMapleDB(&maple.DBOptions{Clock: clock.Now})
	}, clock.Now)
	return NewLockManager(s)
}

func TestAcquireRelease(t *testing.T) {
	lm := newTestManager(dbtesting.NewManualClock(time.Unix(1_700_000_000, 0)))

	ok, owner, err := lm.AcquireLock("resource", 0)
	if err != nil || !ok {
		t.Fatalf("Expected lock to be acquired, got ok=%v err=%v", ok, err)
	}

	if ok, _, _ := lm.AcquireLock("resource", 0); ok {
		t.Errorf("Lock must not be acquired twice")
	}

	if released, _ := lm.ReleaseLock("resource", []byte("someone else")); released {
		t.Errorf("Lock must not be released by another owner")
	}
	if released, _ := lm.ReleaseLock("resource", owner); !released {
		t.Errorf("Lock should be released by its owner")
	}
	if released, _ := lm.ReleaseLock("resource", owner); !released {
		t.Errorf("Releasing a missing lock should report true")
	}

	if ok, _, _ := lm.AcquireLock("resource", 0); !ok {
		t.Errorf("Lock should be free after release")
	}
}

func TestLockTimeout(t *testing.T) {
	clock := dbtesting.NewManualClock(time.Unix(1_700_000_000, 0))
	lm := newTestManager(clock)

	if ok, _, _ := lm.AcquireLock("resource", 5); !ok {
		t.Fatalf("Expected lock to be acquired")
	}
	clock.Advance(5 * time.Second)
	if ok, _, _ := lm.AcquireLock("resource", 5); !ok {
		t.Errorf("Expired lock should be acquirable")
	}
}

func TestAcquireLockWait(t *testing.T) {
	lm := newTestManager(dbtesting.NewManualClock(time.Unix(1_700_000_000, 0)))

	const workers = 8
	var (
		wg      sync.WaitGroup
		holders atomic.Int32
		maxSeen atomic.Int32
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			owner, err := AcquireLockWait(context.Background(), lm, "resource", 0, time.Millisecond)
			if err != nil {
				t.Errorf("AcquireLockWait failed: %v", err)
				return
			}
			if n := holders.Add(1); n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			holders.Add(-1)
			_, _ = lm.ReleaseLock("resource", owner)
		}()
	}
	wg.Wait()

	if maxSeen.Load() != 1 {
		t.Errorf("Expected exactly one holder at a time, saw %d", maxSeen.Load())
	}

	_, _, _ = lm.AcquireLock("blocked", 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := AcquireLockWait(ctx, lm, "blocked", 0, time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
