package maple

import (
	"testing"
	"time"

	"github.com/ValentinKolb/dcov/lib/db"
	dbtesting "github.com/ValentinKolb/dcov/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MapleDB", func(clock func() time.Time) db.KVDB {
		return NewMapleDB(&DBOptions{Clock: clock})
	})
}

// TestGarbageCollection checks that expired entries are physically removed
func TestGarbageCollection(t *testing.T) {
	clock := dbtesting.NewManualClock(time.Unix(1_700_000_000, 0))
	database := NewMapleDB(&DBOptions{NumShards: 4, GCInterval: 5 * time.Millisecond, Clock: clock.Now})
	defer database.Close()

	now := uint64(clock.Now().Unix())
	for _, key := range []string{"a", "b", "c"} {
		if err := database.SetE(key, []byte("v"), now, 10); err != nil {
			t.Fatalf("SetE failed: %v", err)
		}
	}
	if err := database.Set("keep", []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	clock.Advance(11 * time.Second)

	impl := database.(*mapleImpl)
	countEntries := func() int {
		total := 0
		for _, shard := range impl.shards {
			total += shard.Data.Size()
		}
		return total
	}

	total := countEntries()
	for deadline := time.Now().Add(2 * time.Second); total != 1 && time.Now().Before(deadline); total = countEntries() {
		time.Sleep(5 * time.Millisecond)
	}
	if total != 1 {
		t.Errorf("Expected only the non-expiring entry to remain, found %d entries", total)
	}
}

// TestGCReschedulesRewrittenEntries checks that an entry rewritten with a later
// deadline survives the collection of its old deadline
func TestGCReschedulesRewrittenEntries(t *testing.T) {
	clock := dbtesting.NewManualClock(time.Unix(1_700_000_000, 0))
	impl := NewMapleDB(&DBOptions{NumShards: 1, GCInterval: time.Hour, Clock: clock.Now}).(*mapleImpl)
	defer impl.Close()

	now := uint64(clock.Now().Unix())
	_ = impl.SetE("k", []byte("v1"), now, 10)

	// simulate a stale deadline left in the schedule
	shard := impl.shards[0]
	_ = impl.SetE("k", []byte("v2"), now, 100)
	shard.Schedule("k", now+10)

	clock.Advance(20 * time.Second)
	impl.collect()

	if value, ok, _ := impl.Get("k"); !ok || string(value) != "v2" {
		t.Fatalf("Entry with a later deadline must survive, got %q (ok=%v)", value, ok)
	}
	if shard.Scheduled() != 1 {
		t.Errorf("Entry should be re-scheduled, %d deadlines scheduled", shard.Scheduled())
	}

	clock.Advance(100 * time.Second)
	impl.collect()
	if shard.Data.Size() != 0 {
		t.Errorf("Entry should be collected after its real deadline")
	}
}
