// Package scheduler implements the due-time scheduling loop: one
// container/heap-based priority queue of monitors keyed by next-due
// time, a channel-based concurrency cap, and stable per-monitor jitter
// so that many monitors sharing an interval don't all fire in the same
// tick.
package scheduler

import (
	"container/heap"
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pulseagent/pulseagent/internal/model"
)

// maxDueEntriesPerTick bounds how many due monitors a single tick will
// dispatch, as a safety net against an unbounded backlog dominating one
// iteration of the loop.
const maxDueEntriesPerTick = 20000

const tickInterval = 250 * time.Millisecond

// defaultJitterMax is the stable per-monitor jitter bound applied when a
// monitor doesn't set its own JitterMax.
const defaultJitterMax = 500 * time.Millisecond

// deferDelay is how soon a monitor whose dispatch was deferred by a
// saturated concurrency cap is retried.
const deferDelay = 50 * time.Millisecond

// Runner executes a single Monitor's probe-check-heartbeat cycle. It is
// supplied by the caller (internal/mode) so that this package stays free
// of any dependency on the probe or heartbeat packages.
type Runner func(ctx context.Context, m model.Monitor)

// Scheduler maintains the due-time heap and dispatches Runner for each
// monitor as it comes due, honoring a global concurrency cap.
type Scheduler struct {
	runner Runner
	logger *slog.Logger

	mu       sync.Mutex
	heap     priorityQueue
	monitors map[string]model.Monitor

	sem chan struct{}

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a Scheduler. maxConcurrent bounds the number of Runner
// invocations in flight at once across all monitors; zero or negative
// means unbounded.
func New(runner Runner, maxConcurrent int) *Scheduler {
	s := &Scheduler{
		runner:   runner,
		logger:   slog.Default().With("component", "scheduler"),
		monitors: make(map[string]model.Monitor),
	}
	if maxConcurrent > 0 {
		s.sem = make(chan struct{}, maxConcurrent)
	}
	return s
}

// SetMonitors atomically replaces the active monitor set: every enabled
// monitor is rebuilt from scratch at now+jitter(key), including monitors
// that already existed under the previous configuration, so a reconfigure
// never leaves a survivor sitting at a stale heap position from before the
// change. Disabled monitors are dropped entirely. This is the scheduler's
// reconfiguration path, used both at startup and whenever Server mode
// pushes a config update.
func (s *Scheduler) SetMonitors(monitors []model.Monitor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.monitors = make(map[string]model.Monitor, len(monitors))
	s.heap = nil

	now := time.Now()
	for _, m := range monitors {
		if !m.Enabled {
			continue
		}
		key := m.Key()
		s.monitors[key] = m
		heap.Push(&s.heap, &heapItem{key: key, dueAt: now.Add(jitter(m))})
	}
}

// jitter returns a stable pseudo-random duration in [0, JitterMax] for m,
// derived from a hash of its scheduling key so the same monitor always
// gets the same jitter offset across reschedules (stable jitter, not
// re-rolled per tick). A monitor that doesn't set JitterMax gets
// defaultJitterMax instead of no jitter at all.
func jitter(m model.Monitor) time.Duration {
	bound := m.JitterMax
	if bound <= 0 {
		bound = defaultJitterMax
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(m.Key()))
	offsetMs := h.Sum64() % uint64(bound.Milliseconds()+1)
	return time.Duration(offsetMs) * time.Millisecond
}

// Run drives the scheduling loop until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// MonitorCount returns the number of monitors currently tracked.
func (s *Scheduler) MonitorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.monitors)
}

// Stop cancels the scheduling loop and waits for in-flight dispatches to
// finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) tick(ctx context.Context) {
	due := s.dequeueDue()
	if len(due) == 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatch(ctx, due)
	}()
}

// tryAcquire attempts a non-blocking permit acquisition, returning false
// immediately if the concurrency cap is saturated rather than waiting.
func (s *Scheduler) tryAcquire() bool {
	if s.sem == nil {
		return true
	}
	select {
	case s.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// dequeueDue pops every monitor whose dueAt has passed, rescheduling each
// one before it is handed off for processing (reschedule-before-dispatch),
// so a slow-running probe cannot delay the next tick's due calculation.
// Concurrency permits are acquired here, synchronously and non-blockingly,
// while the heap is still locked: a monitor that can't get a permit
// because the cap is saturated is pushed back at now+deferDelay instead of
// blocking a dispatch goroutine, so backpressure lands on the schedule,
// not on the network. Entries for monitors removed by SetMonitors since
// they were scheduled are silently dropped here.
func (s *Scheduler) dequeueDue() []model.Monitor {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	due := make([]model.Monitor, 0)
	popped := 0

	for len(s.heap) > 0 && popped < maxDueEntriesPerTick {
		top := s.heap[0]
		if top.dueAt.After(now) {
			break
		}
		heap.Pop(&s.heap)
		popped++

		m, ok := s.monitors[top.key]
		if !ok {
			continue // monitor removed since being scheduled
		}

		if !s.tryAcquire() {
			heap.Push(&s.heap, &heapItem{key: top.key, dueAt: now.Add(deferDelay)})
			continue
		}

		due = append(due, m)
		heap.Push(&s.heap, &heapItem{key: m.Key(), dueAt: now.Add(m.Interval + jitter(m))})
	}

	return due
}

// dispatch runs Runner for each due monitor, fanning out with an errgroup
// that sets no limit of its own. Each entry in due already holds an
// acquired concurrency permit (from dequeueDue's tryAcquire); dispatch
// only ever releases that permit, never acquires one itself. Runner
// returns no error, so one monitor's run never cancels the others.
func (s *Scheduler) dispatch(ctx context.Context, due []model.Monitor) {
	g, gctx := errgroup.WithContext(ctx)

	for _, m := range due {
		m := m
		g.Go(func() error {
			if s.sem != nil {
				defer func() { <-s.sem }()
			}
			s.runner(gctx, m)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn("dispatch batch returned error", "error", err)
	}
}
