package channels

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pulseagent/pulseagent/internal/model"
	"github.com/pulseagent/pulseagent/internal/result"
)

// PushMessage is a pulse awaiting delivery over the control channel: the
// in-memory form of the wire protocol's "push" frame. PulseID is assigned
// later, by the pulse queue's Enqueue, not by whoever builds the message.
type PushMessage struct {
	// MonitorID is an internal correlation field for logging; it is not
	// part of the wire frame.
	MonitorID string

	Token     string
	PulseID   string
	Latency   float64 // milliseconds
	StartTime time.Time
	EndTime   time.Time
	Custom1   *float64
	Custom2   *float64
	Custom3   *float64
}

// Frame renders msg as the JSON "push" wire frame: action, token,
// pulseId (once assigned), latency, startTime/endTime (RFC-3339
// millisecond UTC), and whichever of custom1/2/3 were set.
func (msg PushMessage) Frame() ([]byte, error) {
	frame := map[string]any{
		"action":    "push",
		"token":     msg.Token,
		"latency":   msg.Latency,
		"startTime": result.FormatTimeMillisISO(msg.StartTime),
		"endTime":   result.FormatTimeMillisISO(msg.EndTime),
	}
	if msg.PulseID != "" {
		frame["pulseId"] = msg.PulseID
	}
	if msg.Custom1 != nil {
		frame["custom1"] = *msg.Custom1
	}
	if msg.Custom2 != nil {
		frame["custom2"] = *msg.Custom2
	}
	if msg.Custom3 != nil {
		frame["custom3"] = *msg.Custom3
	}
	return json.Marshal(frame)
}

// Slot is a single shared outbound sender, published by whichever control
// channel connection is currently active and consumed by any number of
// producers. It is the Go equivalent of the reference client's
// Arc<RwLock<Option<Sender<PushMessage>>>>: at most one writer (the
// connection loop) publishes or clears it; many readers (probe/queue
// goroutines) send through it without synchronizing with each other.
type Slot struct {
	mu sync.RWMutex
	ch chan PushMessage
}

// NewSlot returns an empty Slot with no active sender.
func NewSlot() *Slot {
	return &Slot{}
}

// Publish installs ch as the current outbound channel, replacing any
// previous one. Called by the control channel each time it establishes a
// new connection.
func (s *Slot) Publish(ch chan PushMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ch = ch
}

// Clear removes the current outbound channel, e.g. when the connection
// drops. Subsequent Send calls fail until the next Publish.
func (s *Slot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ch = nil
}

// Send enqueues msg on the currently published channel without blocking.
// delivered reports whether msg was actually enqueued. active reports
// whether a channel was published at all, distinguishing "no connection"
// from "connection present but its buffer is momentarily full" — a
// caller treats the former as a reason to fall back to another delivery
// path, and the latter as an acceptable drop (the next heartbeat will
// follow shortly).
func (s *Slot) Send(msg PushMessage) (delivered, active bool) {
	s.mu.RLock()
	ch := s.ch
	s.mu.RUnlock()

	if ch == nil {
		return false, false
	}
	select {
	case ch <- msg:
		return true, true
	default:
		return false, true
	}
}

// ConfigUpdate carries a fresh monitor list received over the control
// channel, replacing the scheduler's active configuration.
type ConfigUpdate struct {
	Monitors []model.Monitor
}
