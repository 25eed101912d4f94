package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dcov/lib/db"
	dbtesting "github.com/ValentinKolb/dcov/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "SQLiteDB", func(clock func() time.Time) db.KVDB {
		database, err := NewSQLiteDB(&DBOptions{
			Path:  filepath.Join(t.TempDir(), "kv.db"),
			Clock: clock,
		})
		if err != nil {
			panic(err)
		}
		return database
	})
}

func TestInMemory(t *testing.T) {
	database, err := NewSQLiteDB(nil)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	_ = database.Set("k", []byte("v"))
	if value, ok, _ := database.Get("k"); !ok || string(value) != "v" {
		t.Errorf("Expected value v, got %q (ok=%v)", value, ok)
	}
	if database.SupportsFeature(db.FeatureSave) {
		t.Errorf("sqlite must not advertise snapshots")
	}
}

func TestCollect(t *testing.T) {
	clock := dbtesting.NewManualClock(time.Unix(1_700_000_000, 0))
	database, err := NewSQLiteDB(&DBOptions{Clock: clock.Now})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	_ = database.SetE("a", []byte("v"), clock.Unix(), 5)
	_ = database.SetE("b", []byte("v"), clock.Unix(), 50)
	_ = database.Set("c", []byte("v"))
	clock.Advance(10 * time.Second)

	n, err := database.(*sqliteImpl).collect()
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 collected row, got %d", n)
	}
	if info := database.GetInfo(); info.KeyCount != 2 {
		t.Errorf("Expected 2 keys, got %d", info.KeyCount)
	}
}
