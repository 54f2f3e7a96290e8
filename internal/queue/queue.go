package queue

import (
	"sync"
	"time"
)

// Item is one queued-but-not-yet-completed download. Purely transient:
// the queue is never persisted, a restart simply loses pending items.
type Item struct {
	ID         string
	Title      string
	SourceURL  string
	EnqueuedAt time.Time
}

// Queue tracks in-flight downloads in insertion order.
// Safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	items []Item
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends an item. A zero EnqueuedAt is stamped with the current time.
func (q *Queue) Enqueue(item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}
	q.items = append(q.items, item)
}

// DequeueOnCompletion removes the item with the given id, reporting whether
// it was present.
func (q *Queue) DequeueOnCompletion(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Items returns a snapshot of the pending items in insertion order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Item(nil), q.items...)
}

// Len reports the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
