// Package util
//
// This file provides a priority queue of expiration deadlines for garbage collection.
//
// The queue combines a binary heap with a hash map, so the entry that expires next
// can be found in O(1), while a key that is re-written (and therefore gets a new
// deadline) can be updated or removed in O(log n) without scanning the heap.
//
// The ExpiryHeap is not thread-safe. Database engines guard it with the same lock
// that protects the shard it belongs to.
//
// Example usage:
//
//	h := NewExpiryHeap[string]()
//	h.Schedule("session:1", 1700000030)
//	h.Schedule("session:2", 1700000010)
//
//	// collect everything that is due
//	for _, key := range h.PopDue(1700000020) {
//	    // key == "session:2"
//	}
package util

import (
	"container/heap"
	"fmt"
)

// deadline is a single scheduled expiration
type deadline[K comparable] struct {
	Key      K      // Key of the entry
	ExpireAt uint64 // Unix second at which the entry expires
	index    int    // Index in the heap, maintained by the heap package
}

func (d *deadline[K]) String() string {
	return fmt.Sprintf("{Key: %v, ExpireAt: %d}", d.Key, d.ExpireAt)
}

// deadlines implements heap.Interface over the scheduled deadlines (min-heap by ExpireAt)
type deadlines[K comparable] struct {
	items    []*deadline[K]
	itemsMap map[K]*deadline[K]
}

func (d *deadlines[K]) Len() int { return len(d.items) }

func (d *deadlines[K]) Less(i, j int) bool {
	return d.items[i].ExpireAt < d.items[j].ExpireAt
}

func (d *deadlines[K]) Swap(i, j int) {
	d.items[i], d.items[j] = d.items[j], d.items[i]
	d.items[i].index = i
	d.items[j].index = j
}

func (d *deadlines[K]) Push(x interface{}) {
	item := x.(*deadline[K])
	item.index = len(d.items)
	d.items = append(d.items, item)
	d.itemsMap[item.Key] = item
}

func (d *deadlines[K]) Pop() interface{} {
	old := d.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // Avoid memory leak
	item.index = -1 // For safety
	d.items = old[:n-1]
	delete(d.itemsMap, item.Key)
	return item
}

// ExpiryHeap keeps the expiration deadlines of a set of keys ordered by time.
type ExpiryHeap[K comparable] struct {
	h deadlines[K]
}

// NewExpiryHeap creates a new, empty expiry heap
func NewExpiryHeap[K comparable]() *ExpiryHeap[K] {
	return &ExpiryHeap[K]{
		h: deadlines[K]{
			items:    make([]*deadline[K], 0),
			itemsMap: make(map[K]*deadline[K]),
		},
	}
}

// Len returns the number of scheduled keys
func (e *ExpiryHeap[K]) Len() int { return e.h.Len() }

// Schedule sets the deadline of key, replacing an existing deadline
func (e *ExpiryHeap[K]) Schedule(key K, expireAt uint64) {
	if item, exists := e.h.itemsMap[key]; exists {
		item.ExpireAt = expireAt
		heap.Fix(&e.h, item.index)
		return
	}
	heap.Push(&e.h, &deadline[K]{Key: key, ExpireAt: expireAt})
}

// Cancel removes the deadline of key. It returns the removed deadline, if any.
func (e *ExpiryHeap[K]) Cancel(key K) (uint64, bool) {
	item, exists := e.h.itemsMap[key]
	if !exists {
		return 0, false
	}
	heap.Remove(&e.h, item.index)
	return item.ExpireAt, true
}

// Deadline returns the scheduled deadline of key
func (e *ExpiryHeap[K]) Deadline(key K) (uint64, bool) {
	item, exists := e.h.itemsMap[key]
	if !exists {
		return 0, false
	}
	return item.ExpireAt, true
}

// Peek returns the key with the earliest deadline without removing it
func (e *ExpiryHeap[K]) Peek() (key K, expireAt uint64, ok bool) {
	if len(e.h.items) == 0 {
		return key, 0, false
	}
	item := e.h.items[0]
	return item.Key, item.ExpireAt, true
}

// PopDue removes and returns every key whose deadline is at or before now,
// earliest deadline first.
func (e *ExpiryHeap[K]) PopDue(now uint64) []K {
	var due []K
	for len(e.h.items) > 0 && e.h.items[0].ExpireAt <= now {
		item := heap.Pop(&e.h).(*deadline[K])
		due = append(due, item.Key)
	}
	return due
}
