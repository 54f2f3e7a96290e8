package queue

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestEnqueueKeepsInsertionOrder(t *testing.T) {
	q := New()
	q.Enqueue(Item{ID: "a", Title: "first"})
	q.Enqueue(Item{ID: "b", Title: "second"})
	q.Enqueue(Item{ID: "c", Title: "third"})

	items := q.Items()
	if len(items) != 3 {
		t.Fatalf("Len = %d, want 3", len(items))
	}
	for i, id := range []string{"a", "b", "c"} {
		if items[i].ID != id {
			t.Errorf("items[%d].ID = %s, want %s", i, items[i].ID, id)
		}
	}
}

func TestEnqueueStampsTime(t *testing.T) {
	q := New()
	before := time.Now()
	q.Enqueue(Item{ID: "a"})
	after := time.Now()

	got := q.Items()[0].EnqueuedAt
	if got.Before(before) || got.After(after) {
		t.Errorf("EnqueuedAt = %v, want between %v and %v", got, before, after)
	}

	explicit := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q.Enqueue(Item{ID: "b", EnqueuedAt: explicit})
	if !q.Items()[1].EnqueuedAt.Equal(explicit) {
		t.Errorf("explicit EnqueuedAt was overwritten: %v", q.Items()[1].EnqueuedAt)
	}
}

func TestDequeueOnCompletion(t *testing.T) {
	q := New()
	q.Enqueue(Item{ID: "a"})
	q.Enqueue(Item{ID: "b"})
	q.Enqueue(Item{ID: "c"})

	if !q.DequeueOnCompletion("b") {
		t.Fatal("DequeueOnCompletion(b) = false, want true")
	}
	if q.DequeueOnCompletion("b") {
		t.Error("second DequeueOnCompletion(b) = true, want false")
	}
	if q.DequeueOnCompletion("unknown") {
		t.Error("DequeueOnCompletion(unknown) = true, want false")
	}

	items := q.Items()
	if len(items) != 2 || items[0].ID != "a" || items[1].ID != "c" {
		t.Errorf("remaining items = %+v, want [a c]", items)
	}
}

func TestItemsReturnsSnapshot(t *testing.T) {
	q := New()
	q.Enqueue(Item{ID: "a", Title: "original"})

	snapshot := q.Items()
	snapshot[0].Title = "mutated"

	if q.Items()[0].Title != "original" {
		t.Error("mutating a snapshot leaked into the queue")
	}
}

func TestConcurrentEnqueueDequeue(t *testing.T) {
	q := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("item-%d", n)
			q.Enqueue(Item{ID: id})
			if !q.DequeueOnCompletion(id) {
				t.Errorf("lost item %s", id)
			}
		}(i)
	}
	wg.Wait()

	if q.Len() != 0 {
		t.Errorf("Len = %d after all completions, want 0", q.Len())
	}
}
