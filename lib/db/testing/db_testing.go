package testing

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dcov/lib/db"
)

// DBFactory creates a new instance of a KVDB implementation that reads the time from clock
type DBFactory func(clock func() time.Time) db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory(time.Now))
		})

		t.Run("Expire", func(t *testing.T) {
			clock := NewManualClock(time.Unix(1_700_000_000, 0))
			testExpire(t, factory(clock.Now), clock)
		})

		t.Run("TTL", func(t *testing.T) {
			clock := NewManualClock(time.Unix(1_700_000_000, 0))
			testTTL(t, factory(clock.Now), clock)
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(time.Now))
		})

		t.Run("SetEIfUnset", func(t *testing.T) {
			clock := NewManualClock(time.Unix(1_700_000_000, 0))
			testSetEIfUnset(t, factory(clock.Now), clock)
		})

		t.Run("CompareAndSwap", func(t *testing.T) {
			clock := NewManualClock(time.Unix(1_700_000_000, 0))
			testCompareAndSwap(t, factory(clock.Now), clock)
		})

		t.Run("ConcurrentCompareAndSwap", func(t *testing.T) {
			testConcurrentCompareAndSwap(t, factory(time.Now))
		})

		t.Run("Keys", func(t *testing.T) {
			clock := NewManualClock(time.Unix(1_700_000_000, 0))
			testKeys(t, factory(clock.Now), clock)
		})

		t.Run("SaveLoad", func(t *testing.T) {
			clock := NewManualClock(time.Unix(1_700_000_000, 0))
			testSaveLoad(t, factory, clock)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory(time.Now))
		})

		t.Run("CollisionHandling", func(t *testing.T) {
			testCollisionHandling(t, factory(time.Now))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skipf("feature %s not supported", feature)
	}
}

func mustGet(t testing.TB, database db.KVDB, key string) ([]byte, bool) {
	t.Helper()
	value, ok, err := database.Get(key)
	if err != nil {
		t.Fatalf("Unexpected error during Get(%q): %v", key, err)
	}
	return value, ok
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	if err := database.Set(testKey, testValue1); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}

	result, exists := mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	if err := database.Set(testKey, testValue2); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}

	result, exists = mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if _, exists = mustGet(t, database, "nonexistent-key"); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	// the returned slice must be a copy
	retrievedValue, _ := mustGet(t, database, testKey)
	retrievedValue[0] = 'X'
	result, _ = mustGet(t, database, testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Modifying the returned value changed the stored value: %s", result)
	}

	// so must the stored one
	input := []byte("mutable")
	_ = database.Set("mutable-key", input)
	input[0] = 'X'
	result, _ = mustGet(t, database, "mutable-key")
	if string(result) != "mutable" {
		t.Errorf("Modifying the input value changed the stored value: %s", result)
	}
}

func testExpire(t *testing.T, database db.KVDB, clock *ManualClock) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetE)
	requireFeature(t, database, db.FeatureGet)

	if err := database.SetE("short", []byte("v"), clock.Unix(), 5); err != nil {
		t.Fatalf("Unexpected error during SetE: %v", err)
	}
	if err := database.SetE("long", []byte("v"), clock.Unix(), 60); err != nil {
		t.Fatalf("Unexpected error during SetE: %v", err)
	}
	if err := database.SetE("forever", []byte("v"), clock.Unix(), 0); err != nil {
		t.Fatalf("Unexpected error during SetE: %v", err)
	}

	clock.Advance(4 * time.Second)
	if _, ok := mustGet(t, database, "short"); !ok {
		t.Errorf("Key should not be expired before its deadline")
	}

	clock.Advance(time.Second)
	if _, ok := mustGet(t, database, "short"); ok {
		t.Errorf("Key should be expired at its deadline")
	}
	if _, ok := mustGet(t, database, "long"); !ok {
		t.Errorf("Key with a later deadline should still exist")
	}

	clock.Advance(time.Hour)
	if _, ok := mustGet(t, database, "long"); ok {
		t.Errorf("Key should be expired after its deadline")
	}
	if _, ok := mustGet(t, database, "forever"); !ok {
		t.Errorf("Key with expireIn=0 should never expire")
	}

	// Set removes a previous expiration
	_ = database.SetE("reset", []byte("v"), clock.Unix(), 1)
	_ = database.Set("reset", []byte("w"))
	clock.Advance(2 * time.Second)
	if value, ok := mustGet(t, database, "reset"); !ok || string(value) != "w" {
		t.Errorf("Set should clear the expiration of a key")
	}
}

func testTTL(t *testing.T, database db.KVDB, clock *ManualClock) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetE)
	requireFeature(t, database, db.FeatureTTL)

	ttl, err := database.TTL("missing")
	if err != nil {
		t.Fatalf("Unexpected error during TTL: %v", err)
	}
	if ttl != db.TTLMissing {
		t.Errorf("Expected TTL %d for a missing key, got %d", db.TTLMissing, ttl)
	}

	_ = database.SetE("forever", []byte("v"), clock.Unix(), 0)
	if ttl, _ = database.TTL("forever"); ttl != db.TTLNoExpiry {
		t.Errorf("Expected TTL %d for a key without expiration, got %d", db.TTLNoExpiry, ttl)
	}

	_ = database.SetE("expiring", []byte("v"), clock.Unix(), 30)
	if ttl, _ = database.TTL("expiring"); ttl != 30 {
		t.Errorf("Expected TTL 30, got %d", ttl)
	}

	clock.Advance(10 * time.Second)
	if ttl, _ = database.TTL("expiring"); ttl <= 0 || ttl > 20 {
		t.Errorf("Expected TTL in (0, 20], got %d", ttl)
	}

	clock.Advance(20 * time.Second)
	if ttl, _ = database.TTL("expiring"); ttl != db.TTLMissing {
		t.Errorf("Expected TTL %d for an expired key, got %d", db.TTLMissing, ttl)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureDelete)

	_ = database.Set("delete-me", []byte("v"))
	if err := database.Delete("delete-me"); err != nil {
		t.Fatalf("Unexpected error during Delete: %v", err)
	}
	if _, ok := mustGet(t, database, "delete-me"); ok {
		t.Errorf("Key should not exist after Delete")
	}

	if err := database.Delete("never-existed"); err != nil {
		t.Errorf("Deleting a missing key should not fail: %v", err)
	}
}

func testSetEIfUnset(t *testing.T, database db.KVDB, clock *ManualClock) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetEIfUnset)
	requireFeature(t, database, db.FeatureGet)

	ok, err := database.SetEIfUnset("key", []byte("first"), clock.Unix(), 10)
	if err != nil {
		t.Fatalf("Unexpected error during SetEIfUnset: %v", err)
	}
	if !ok {
		t.Errorf("SetEIfUnset should write an absent key")
	}

	ok, _ = database.SetEIfUnset("key", []byte("second"), clock.Unix(), 10)
	if ok {
		t.Errorf("SetEIfUnset should not overwrite an existing key")
	}
	if value, _ := mustGet(t, database, "key"); string(value) != "first" {
		t.Errorf("Expected value first, got %s", value)
	}

	// an expired entry counts as absent
	clock.Advance(10 * time.Second)
	ok, _ = database.SetEIfUnset("key", []byte("third"), clock.Unix(), 0)
	if !ok {
		t.Errorf("SetEIfUnset should write over an expired key")
	}
	if value, _ := mustGet(t, database, "key"); string(value) != "third" {
		t.Errorf("Expected value third, got %s", value)
	}
}

func testCompareAndSwap(t *testing.T, database db.KVDB, clock *ManualClock) {
	defer database.Close()

	requireFeature(t, database, db.FeatureCompareAndSwap)
	requireFeature(t, database, db.FeatureGet)

	tests := []struct {
		name    string
		old     []byte
		value   []byte
		swapped bool
		want    string
	}{
		{"create absent", nil, []byte("v1"), true, "v1"},
		{"create existing", nil, []byte("v2"), false, "v1"},
		{"mismatch", []byte("other"), []byte("v2"), false, "v1"},
		{"match", []byte("v1"), []byte("v2"), true, "v2"},
		{"stale", []byte("v1"), []byte("v3"), false, "v2"},
	}

	for _, tt := range tests {
		swapped, err := database.CompareAndSwap("cas", tt.old, tt.value, clock.Unix(), 0)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if swapped != tt.swapped {
			t.Errorf("%s: expected swapped=%v, got %v", tt.name, tt.swapped, swapped)
		}
		if value, _ := mustGet(t, database, "cas"); string(value) != tt.want {
			t.Errorf("%s: expected value %s, got %s", tt.name, tt.want, value)
		}
	}

	// the swap resets the expiration
	swapped, _ := database.CompareAndSwap("cas", []byte("v2"), []byte("v3"), clock.Unix(), 5)
	if !swapped {
		t.Fatalf("Expected swap to succeed")
	}
	clock.Advance(5 * time.Second)
	if _, ok := mustGet(t, database, "cas"); ok {
		t.Errorf("Swapped value should expire after expireIn seconds")
	}

	// expired entries are treated as absent
	swapped, _ = database.CompareAndSwap("cas", []byte("v3"), []byte("v4"), clock.Unix(), 0)
	if swapped {
		t.Errorf("Swap against an expired value should fail")
	}
	swapped, _ = database.CompareAndSwap("cas", nil, []byte("v4"), clock.Unix(), 0)
	if !swapped {
		t.Errorf("Swap with nil old value should succeed for an expired key")
	}
}

func testConcurrentCompareAndSwap(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureCompareAndSwap)
	requireFeature(t, database, db.FeatureGet)

	const (
		numWorkers   = 8
		incsPerWorker = 50
	)

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	errs := make(chan error, numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < incsPerWorker; i++ {
				for {
					current, ok, err := database.Get("counter")
					if err != nil {
						errs <- err
						return
					}
					var n int
					var old []byte
					if ok {
						old = current
						fmt.Sscanf(string(current), "%d", &n)
					}
					swapped, err := database.CompareAndSwap("counter", old, []byte(fmt.Sprintf("%d", n+1)), 0, 0)
					if err != nil {
						errs <- err
						return
					}
					if swapped {
						break
					}
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Unexpected error during concurrent CompareAndSwap: %v", err)
	}

	value, _ := mustGet(t, database, "counter")
	if want := fmt.Sprintf("%d", numWorkers*incsPerWorker); string(value) != want {
		t.Errorf("Expected counter %s, got %s", want, value)
	}
}

func testKeys(t *testing.T, database db.KVDB, clock *ManualClock) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetE)
	requireFeature(t, database, db.FeatureKeys)

	for _, key := range []string{"app.b", "app.a", "app.c", "other.a", "ap"} {
		_ = database.SetE(key, []byte("v"), clock.Unix(), 0)
	}
	_ = database.SetE("app.expiring", []byte("v"), clock.Unix(), 5)

	keys, err := database.Keys("app.")
	if err != nil {
		t.Fatalf("Unexpected error during Keys: %v", err)
	}
	want := []string{"app.a", "app.b", "app.c", "app.expiring"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("Expected keys %v, got %v", want, keys)
	}

	clock.Advance(5 * time.Second)
	keys, _ = database.Keys("app.")
	want = []string{"app.a", "app.b", "app.c"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("Expired keys must not be listed, expected %v, got %v", want, keys)
	}

	all, _ := database.Keys("")
	if len(all) != 5 || !sort.StringsAreSorted(all) {
		t.Errorf("Expected 5 sorted keys for the empty prefix, got %v", all)
	}

	if none, _ := database.Keys("nothing."); len(none) != 0 {
		t.Errorf("Expected no keys, got %v", none)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory, clock *ManualClock) {
	database := factory(clock.Now)
	defer database.Close()

	requireFeature(t, database, db.FeatureSave)
	requireFeature(t, database, db.FeatureLoad)

	database2 := factory(clock.Now)
	defer database2.Close()

	numEntries := 1000
	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		value := []byte(fmt.Sprintf("save-load-test-value-%d", i))
		_ = database.SetE(key, value, clock.Unix(), 0)
	}
	_ = database.SetE("expiring", []byte("v"), clock.Unix(), 100)
	_ = database.SetE("expired", []byte("v"), clock.Unix(), 1)
	clock.Advance(time.Second)

	_ = database2.Set("stale-key", []byte("v"))

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}
	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		expectedValue := []byte(fmt.Sprintf("save-load-test-value-%d", i))

		actualValue, exists := mustGet(t, database2, key)
		if !exists {
			t.Errorf("Key %s not found after Load", key)
			continue
		}
		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expectedValue, actualValue)
		}
	}

	if _, ok := mustGet(t, database2, "stale-key"); ok {
		t.Errorf("Load should replace the previous content")
	}
	if _, ok := mustGet(t, database2, "expired"); ok {
		t.Errorf("Expired entries should not survive a snapshot")
	}
	if ttl, _ := database2.TTL("expiring"); ttl <= 0 || ttl > 99 {
		t.Errorf("Expiration should survive a snapshot, got TTL %d", ttl)
	}

	if _, ok := mustGet(t, database, "save-load-test-key-0"); !ok {
		t.Errorf("Save should not modify the original database")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)

	emptyKeyValue := []byte("value for empty key")
	_ = database.Set("", emptyKeyValue)
	result, exists := mustGet(t, database, "")
	if !exists {
		t.Errorf("Empty key not found after Set")
	} else if !bytes.Equal(result, emptyKeyValue) {
		t.Errorf("Value mismatch for empty key")
	}

	_ = database.Set("empty-value-key", []byte{})
	result, exists = mustGet(t, database, "empty-value-key")
	if !exists {
		t.Errorf("Key for empty value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Empty value mismatch: %v", result)
	}

	_ = database.Set("nil-value-key", nil)
	result, exists = mustGet(t, database, "nil-value-key")
	if !exists {
		t.Errorf("Key for nil value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Nil value resulted in non-empty value: %v", result)
	}

	largeKey := string(bytes.Repeat([]byte("k"), 1000))
	_ = database.Set(largeKey, []byte("value for large key"))
	if _, exists = mustGet(t, database, largeKey); !exists {
		t.Errorf("Large key not found after Set")
	}

	largeValue := make([]byte, 4*1024*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}
	_ = database.Set("large-value-key", largeValue)
	result, exists = mustGet(t, database, "large-value-key")
	if !exists {
		t.Errorf("Key for large value not found after Set")
	} else if !bytes.Equal(result, largeValue) {
		t.Errorf("Large value mismatch (got %d bytes, want %d)", len(result), len(largeValue))
	}
}

func testCollisionHandling(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)
	requireFeature(t, database, db.FeatureGet)
	requireFeature(t, database, db.FeatureDelete)

	prefix := "collision-test-"
	numKeys := 1000

	for i := 0; i < numKeys; i++ {
		_ = database.Set(fmt.Sprintf("%s%d", prefix, i), []byte(fmt.Sprintf("value-%d", i)))
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		expectedValue := []byte(fmt.Sprintf("value-%d", i))

		actualValue, exists := mustGet(t, database, key)
		if !exists {
			t.Errorf("Key %s not found", key)
			continue
		}
		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value for key %s does not match: expected %s, got %s", key, expectedValue, actualValue)
		}
	}

	for i := 0; i < numKeys; i += 2 {
		_ = database.Delete(fmt.Sprintf("%s%d", prefix, i))
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		_, exists := mustGet(t, database, key)

		if i%2 == 0 && exists {
			t.Errorf("Key %s should be deleted", key)
		} else if i%2 == 1 && !exists {
			t.Errorf("Key %s should still exist", key)
		}
	}
}
