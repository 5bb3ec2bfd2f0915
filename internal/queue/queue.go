// Package queue implements the bounded pulse delivery queue: pulses wait
// here between being produced by a probe and being acknowledged by the
// server, with retry and fairness-rotation semantics.
package queue

import (
	"container/list"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulseagent/pulseagent/internal/channels"
)

const (
	DefaultMaxQueueSize = 10000
	DefaultMaxRetries   = 300
	DefaultRetryDelay   = 1000 * time.Millisecond
)

// QueuedPulse is one pulse waiting for delivery, along with its retry
// bookkeeping.
type QueuedPulse struct {
	ID       string
	Message  channels.PushMessage
	Attempts int
	LastSent time.Time
}

// Config bounds the queue's size and retry behavior. Zero values are
// replaced with the package defaults by New.
type Config struct {
	MaxQueueSize int
	MaxRetries   int
	RetryDelay   time.Duration
}

// Queue is a bounded FIFO of QueuedPulse keyed by ID, backed by an
// ordered id list (for fairness rotation) plus a map (for O(1)
// acknowledge). It is safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	order  *list.List // of string IDs
	pulses map[string]*list.Element
	values map[string]*QueuedPulse

	cfg    Config
	logger *slog.Logger
}

// New constructs an empty Queue. Any zero field in cfg is replaced with
// the package default.
func New(cfg Config) *Queue {
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultMaxQueueSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Queue{
		order:  list.New(),
		pulses: make(map[string]*list.Element),
		values: make(map[string]*QueuedPulse),
		cfg:    cfg,
		logger: slog.Default().With("component", "pulse_queue"),
	}
}

// Len returns the number of pulses currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.order.Len()
}

// Enqueue adds msg as a new pulse, generating a fresh ID and assigning it
// onto msg.PulseID before storing. If the queue is already at its maximum
// size, the single oldest entry is evicted first (drop-oldest-on-overflow):
// it pops front ids until it successfully removes one real pulse, skipping
// any stale/already-removed id it encounters.
func (q *Queue) Enqueue(msg channels.PushMessage) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.order.Len() >= q.cfg.MaxQueueSize {
		for {
			front := q.order.Front()
			if front == nil {
				break
			}
			id := front.Value.(string)
			q.order.Remove(front)
			delete(q.pulses, id)
			if dropped, ok := q.values[id]; ok {
				delete(q.values, id)
				q.logger.Warn("queue full, dropping oldest pulse", "pulse_id", dropped.ID)
				break
			}
			// id was already stale (no value entry); keep popping.
		}
	}

	id := uuid.NewString()
	msg.PulseID = id
	q.values[id] = &QueuedPulse{ID: id, Message: msg}
	elem := q.order.PushBack(id)
	q.pulses[id] = elem
	return id
}

// MaxRetries returns the configured maximum delivery attempts per pulse,
// the value other components source their retry bookkeeping from instead
// of hardcoding their own.
func (q *Queue) MaxRetries() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cfg.MaxRetries
}

// RetryDelay returns the configured minimum spacing between redelivery
// attempts of the same pulse.
func (q *Queue) RetryDelay() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cfg.RetryDelay
}

// Acknowledge removes the pulse with the given id, reporting whether it
// was present. Acknowledging an unknown or already-acknowledged id is a
// no-op that returns false.
func (q *Queue) Acknowledge(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	elem, ok := q.pulses[id]
	if !ok {
		return false
	}
	q.order.Remove(elem)
	delete(q.pulses, id)
	delete(q.values, id)
	return true
}

// NextToSend returns the next single pulse eligible for (re)delivery,
// incrementing its attempt count and rotating it to the back of the
// order list for fairness. Pulses that have exhausted MaxRetries are
// dropped (with a warning) rather than returned. Returns nil if the
// queue is empty or every entry is stale/dropped during the scan.
func (q *Queue) NextToSend() *QueuedPulse {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		front := q.order.Front()
		if front == nil {
			return nil
		}
		id := front.Value.(string)
		q.order.Remove(front)
		delete(q.pulses, id)

		pulse, ok := q.values[id]
		if !ok {
			continue // stale id, already acknowledged
		}

		if pulse.Attempts >= q.cfg.MaxRetries {
			delete(q.values, id)
			q.logger.Warn("pulse exceeded max retries, dropping", "pulse_id", id, "attempts", pulse.Attempts)
			continue
		}

		pulse.Attempts++
		pulse.LastSent = time.Now()
		elem := q.order.PushBack(id)
		q.pulses[id] = elem
		return pulse
	}
}

// NextBatchToSend performs a single pass over the queue, bounded by the
// number of entries present at the start of the call (so a pulse that
// gets rotated to the back during this call is never visited twice in
// the same batch). Every live, non-expired entry is pushed back to the
// back of the order list regardless of whether it was ready to send,
// preserving fairness rotation; only entries whose RetryDelay has
// elapsed since LastSent (or that have never been sent) are included in
// the returned batch, up to max entries.
func (q *Queue) NextBatchToSend(max int) []*QueuedPulse {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.order.Len()
	batch := make([]*QueuedPulse, 0, max)
	now := time.Now()

	for i := 0; i < n; i++ {
		front := q.order.Front()
		if front == nil {
			break
		}
		id := front.Value.(string)
		q.order.Remove(front)
		delete(q.pulses, id)

		pulse, ok := q.values[id]
		if !ok {
			continue // stale id: drop without re-pushing
		}

		if pulse.Attempts >= q.cfg.MaxRetries {
			delete(q.values, id)
			q.logger.Warn("pulse exceeded max retries, dropping", "pulse_id", id, "attempts", pulse.Attempts)
			continue
		}

		ready := pulse.LastSent.IsZero() || now.Sub(pulse.LastSent) >= q.cfg.RetryDelay
		if ready && len(batch) < max {
			pulse.Attempts++
			pulse.LastSent = now
			batch = append(batch, pulse)
		}

		elem := q.order.PushBack(id)
		q.pulses[id] = elem
	}

	return batch
}

// PruneExpired removes every pulse that has exhausted MaxRetries,
// compacting the order list to match. It is intended to be called
// periodically as a safety net independent of the send paths above.
func (q *Queue) PruneExpired() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	var next *list.Element
	for elem := q.order.Front(); elem != nil; elem = next {
		next = elem.Next()
		id := elem.Value.(string)
		pulse, ok := q.values[id]
		if !ok || pulse.Attempts >= q.cfg.MaxRetries {
			q.order.Remove(elem)
			delete(q.pulses, id)
			if ok {
				delete(q.values, id)
				removed++
			}
		}
	}
	return removed
}
