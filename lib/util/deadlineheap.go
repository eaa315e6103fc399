package util

import (
	"container/heap"
	"time"
)

// deadlineEntry is one key in a DeadlineHeap
type deadlineEntry struct {
	key      string
	deadline time.Time
	index    int
}

// deadlineSlice implements heap.Interface ordered by deadline
type deadlineSlice []*deadlineEntry

func (s deadlineSlice) Len() int           { return len(s) }
func (s deadlineSlice) Less(i, j int) bool { return s[i].deadline.Before(s[j].deadline) }
func (s deadlineSlice) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
	s[i].index = i
	s[j].index = j
}

func (s *deadlineSlice) Push(x any) {
	e := x.(*deadlineEntry)
	e.index = len(*s)
	*s = append(*s, e)
}

func (s *deadlineSlice) Pop() any {
	old := *s
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*s = old[:n-1]
	return e
}

// DeadlineHeap is a min-heap of keys ordered by deadline that also supports
// access by key. Set, Remove and Expired are O(log n), Contains is O(1).
//
// DeadlineHeap is not safe for concurrent use.
type DeadlineHeap struct {
	entries deadlineSlice
	byKey   map[string]*deadlineEntry
}

// NewDeadlineHeap creates an empty heap
func NewDeadlineHeap() *DeadlineHeap {
	return &DeadlineHeap{byKey: make(map[string]*deadlineEntry)}
}

// Len returns the number of keys
func (h *DeadlineHeap) Len() int { return len(h.entries) }

// Set inserts key or moves its deadline
func (h *DeadlineHeap) Set(key string, deadline time.Time) {
	if e, ok := h.byKey[key]; ok {
		e.deadline = deadline
		heap.Fix(&h.entries, e.index)
		return
	}
	e := &deadlineEntry{key: key, deadline: deadline}
	h.byKey[key] = e
	heap.Push(&h.entries, e)
}

// Remove deletes key and reports whether it was present
func (h *DeadlineHeap) Remove(key string) bool {
	e, ok := h.byKey[key]
	if !ok {
		return false
	}
	heap.Remove(&h.entries, e.index)
	delete(h.byKey, key)
	return true
}

// Contains reports whether key is in the heap
func (h *DeadlineHeap) Contains(key string) bool {
	_, ok := h.byKey[key]
	return ok
}

// Deadline returns the deadline of key
func (h *DeadlineHeap) Deadline(key string) (time.Time, bool) {
	e, ok := h.byKey[key]
	if !ok {
		return time.Time{}, false
	}
	return e.deadline, true
}

// Peek returns the key with the earliest deadline
func (h *DeadlineHeap) Peek() (string, time.Time, bool) {
	if len(h.entries) == 0 {
		return "", time.Time{}, false
	}
	return h.entries[0].key, h.entries[0].deadline, true
}

// Expired removes and returns all keys whose deadline is not after now,
// earliest first
func (h *DeadlineHeap) Expired(now time.Time) []string {
	var keys []string
	for len(h.entries) > 0 && !h.entries[0].deadline.After(now) {
		e := heap.Pop(&h.entries).(*deadlineEntry)
		delete(h.byKey, e.key)
		keys = append(keys, e.key)
	}
	return keys
}
