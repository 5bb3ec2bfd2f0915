package queue

import (
	"testing"
	"time"

	"github.com/pulseagent/pulseagent/internal/channels"
)

func newMessage(monitorID string) channels.PushMessage {
	return channels.PushMessage{MonitorID: monitorID}
}

func TestEnqueueNeverBlocksOverflowCapsAtMaxQueueSize(t *testing.T) {
	q := New(Config{MaxQueueSize: 3, MaxRetries: 10, RetryDelay: time.Millisecond})

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		ids = append(ids, q.Enqueue(newMessage("m")))
	}

	if got := q.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}

	// The two oldest entries should have been evicted.
	for _, id := range ids[:2] {
		if q.Acknowledge(id) {
			t.Fatalf("expected oldest pulse %s to have been evicted", id)
		}
	}
	for _, id := range ids[2:] {
		if !q.Acknowledge(id) {
			t.Fatalf("expected surviving pulse %s to still be queued", id)
		}
	}
}

func TestAcknowledgeExcludesFromFutureSends(t *testing.T) {
	q := New(Config{MaxQueueSize: 10, MaxRetries: 10, RetryDelay: 0})
	id := q.Enqueue(newMessage("m"))

	if !q.Acknowledge(id) {
		t.Fatalf("Acknowledge(%s) = false, want true", id)
	}
	if q.Acknowledge(id) {
		t.Fatalf("second Acknowledge(%s) = true, want false (not re-acknowledgeable)", id)
	}

	if next := q.NextToSend(); next != nil {
		t.Fatalf("NextToSend() = %+v, want nil after acknowledge", next)
	}
}

func TestNextToSendRotatesForFairness(t *testing.T) {
	q := New(Config{MaxQueueSize: 10, MaxRetries: 10, RetryDelay: 0})
	a := q.Enqueue(newMessage("a"))
	b := q.Enqueue(newMessage("b"))

	first := q.NextToSend()
	if first == nil || first.ID != a {
		t.Fatalf("first NextToSend() = %+v, want id %s", first, a)
	}
	second := q.NextToSend()
	if second == nil || second.ID != b {
		t.Fatalf("second NextToSend() = %+v, want id %s", second, b)
	}
	// a was rotated to the back after its first send.
	third := q.NextToSend()
	if third == nil || third.ID != a {
		t.Fatalf("third NextToSend() = %+v, want id %s (rotated)", third, a)
	}
}

func TestNextToSendDropsOnMaxRetries(t *testing.T) {
	q := New(Config{MaxQueueSize: 10, MaxRetries: 2, RetryDelay: 0})
	id := q.Enqueue(newMessage("m"))

	for i := 0; i < 2; i++ {
		pulse := q.NextToSend()
		if pulse == nil {
			t.Fatalf("NextToSend() returned nil on attempt %d", i)
		}
	}

	if pulse := q.NextToSend(); pulse != nil {
		t.Fatalf("NextToSend() = %+v after exhausting retries, want nil", pulse)
	}
	if q.Acknowledge(id) {
		t.Fatalf("Acknowledge(%s) = true, want false (dropped on max retries)", id)
	}
}

func TestNextBatchToSendSinglePassBound(t *testing.T) {
	q := New(Config{MaxQueueSize: 10, MaxRetries: 10, RetryDelay: 0})
	for i := 0; i < 3; i++ {
		q.Enqueue(newMessage("m"))
	}

	batch := q.NextBatchToSend(2)
	if len(batch) != 2 {
		t.Fatalf("len(batch) = %d, want 2", len(batch))
	}
	if got := q.Len(); got != 3 {
		t.Fatalf("Len() after batch = %d, want 3 (all entries pushed back)", got)
	}
}

func TestNextBatchToSendRespectsRetryDelay(t *testing.T) {
	q := New(Config{MaxQueueSize: 10, MaxRetries: 10, RetryDelay: time.Hour})
	q.Enqueue(newMessage("m"))

	first := q.NextBatchToSend(10)
	if len(first) != 1 {
		t.Fatalf("len(first) = %d, want 1 (never sent, always ready)", len(first))
	}

	second := q.NextBatchToSend(10)
	if len(second) != 0 {
		t.Fatalf("len(second) = %d, want 0 (within retry delay)", len(second))
	}
}

func TestPruneExpiredRemovesExhaustedEntries(t *testing.T) {
	q := New(Config{MaxQueueSize: 10, MaxRetries: 1, RetryDelay: 0})
	id := q.Enqueue(newMessage("m"))
	q.NextToSend() // attempts now 1, at MaxRetries

	removed := q.PruneExpired()
	if removed != 1 {
		t.Fatalf("PruneExpired() = %d, want 1", removed)
	}
	if q.Acknowledge(id) {
		t.Fatalf("Acknowledge(%s) = true after prune, want false", id)
	}
	if q.Len() != 0 {
		t.Fatalf("Len() = %d after prune, want 0", q.Len())
	}
}
