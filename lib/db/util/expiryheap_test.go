package util

import (
	"sort"
	"testing"
)

// TestNewExpiryHeap tests the creation of a new ExpiryHeap
func TestNewExpiryHeap(t *testing.T) {
	h := NewExpiryHeap[string]()

	if h == nil {
		t.Fatal("NewExpiryHeap() returned nil")
	}

	if h.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", h.Len())
	}

	if _, _, ok := h.Peek(); ok {
		t.Error("Peek on empty heap should return ok=false")
	}
}

// TestSchedule tests adding deadlines to the heap
func TestSchedule(t *testing.T) {
	h := NewExpiryHeap[string]()

	h.Schedule("a", 100)
	h.Schedule("b", 200)
	h.Schedule("c", 50)

	if h.Len() != 3 {
		t.Errorf("Heap should have 3 items, but has %d", h.Len())
	}

	key, expireAt, ok := h.Peek()
	if !ok {
		t.Fatal("Peek() should return an item")
	}
	if key != "c" || expireAt != 50 {
		t.Errorf("Expected earliest deadline to be (c,50), got (%s,%d)", key, expireAt)
	}
}

// TestReschedule tests that scheduling an existing key replaces its deadline
func TestReschedule(t *testing.T) {
	h := NewExpiryHeap[string]()

	h.Schedule("a", 100)
	h.Schedule("b", 200)
	h.Schedule("a", 300)

	if h.Len() != 2 {
		t.Errorf("Rescheduling must not add a second entry, heap has %d items", h.Len())
	}

	if d, ok := h.Deadline("a"); !ok || d != 300 {
		t.Errorf("Deadline of a should be 300, got %d (ok=%v)", d, ok)
	}

	key, _, _ := h.Peek()
	if key != "b" {
		t.Errorf("Earliest key should now be b, got %s", key)
	}
}

// TestCancel tests removing deadlines by key
func TestCancel(t *testing.T) {
	h := NewExpiryHeap[string]()

	h.Schedule("a", 100)
	h.Schedule("b", 200)
	h.Schedule("c", 300)

	expireAt, ok := h.Cancel("b")
	if !ok {
		t.Fatal("Cancel should return true for a scheduled key")
	}
	if expireAt != 200 {
		t.Errorf("Cancel should return deadline 200, got %d", expireAt)
	}
	if h.Len() != 2 {
		t.Errorf("Heap should have 2 items after cancel, has %d", h.Len())
	}
	if _, ok := h.Deadline("b"); ok {
		t.Error("Heap should not contain b after cancel")
	}

	if _, ok := h.Cancel("missing"); ok {
		t.Error("Cancel should return false for a key that is not scheduled")
	}
}

// TestPopDue tests that due keys are returned in deadline order and others are kept
func TestPopDue(t *testing.T) {
	h := NewExpiryHeap[string]()

	items := []struct {
		key      string
		expireAt uint64
	}{
		{"e", 50},
		{"c", 30},
		{"a", 10},
		{"d", 40},
		{"b", 20},
	}
	for _, item := range items {
		h.Schedule(item.key, item.expireAt)
	}

	due := h.PopDue(30)
	expected := []string{"a", "b", "c"}
	if len(due) != len(expected) {
		t.Fatalf("Expected %d due keys, got %d (%v)", len(expected), len(due), due)
	}
	for i := range expected {
		if due[i] != expected[i] {
			t.Errorf("Due key %d: expected %s, got %s", i, expected[i], due[i])
		}
	}

	if h.Len() != 2 {
		t.Errorf("Two keys should remain scheduled, got %d", h.Len())
	}

	if rest := h.PopDue(10); len(rest) != 0 {
		t.Errorf("Nothing should be due at 10 anymore, got %v", rest)
	}
}

// TestLargeNumberOfDeadlines tests ordering with many keys
func TestLargeNumberOfDeadlines(t *testing.T) {
	h := NewExpiryHeap[int]()

	const n = 1000
	for i := 0; i < n; i++ {
		h.Schedule(i, uint64((i*7919)%n))
	}

	due := h.PopDue(n)
	if len(due) != n {
		t.Fatalf("Expected all %d keys to be due, got %d", n, len(due))
	}

	deadlines := make([]int, len(due))
	for i, key := range due {
		deadlines[i] = (key * 7919) % n
	}
	if !sort.IntsAreSorted(deadlines) {
		t.Error("Keys should be popped in deadline order")
	}
}
