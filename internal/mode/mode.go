// Package mode implements the File vs Server mode selection: Server mode
// is chosen when PULSE_SERVER_URL and PULSE_TOKEN are both set in the
// environment; otherwise the agent falls back to File mode using the
// config file named on the command line.
package mode

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pulseagent/pulseagent/internal/channels"
	"github.com/pulseagent/pulseagent/internal/config"
	"github.com/pulseagent/pulseagent/internal/control"
	"github.com/pulseagent/pulseagent/internal/heartbeat"
	"github.com/pulseagent/pulseagent/internal/model"
	"github.com/pulseagent/pulseagent/internal/probe"
	"github.com/pulseagent/pulseagent/internal/queue"
	"github.com/pulseagent/pulseagent/internal/result"
	"github.com/pulseagent/pulseagent/internal/scheduler"
)

// Mode identifies which of the two configuration sources is in effect.
type Mode int

const (
	ModeFile Mode = iota
	ModeServer
)

func (m Mode) String() string {
	if m == ModeServer {
		return "server"
	}
	return "file"
}

// Select decides File vs Server mode from the environment:
// PULSE_SERVER_URL and PULSE_TOKEN both present selects Server mode.
func Select() Mode {
	if os.Getenv("PULSE_SERVER_URL") != "" && os.Getenv("PULSE_TOKEN") != "" {
		return ModeServer
	}
	return ModeFile
}

// Agent wires together the scheduler, probe registry, heartbeat
// dispatcher, pulse queue, and (in Server mode) the control channel,
// running until ctx is canceled.
type Agent struct {
	scheduler *scheduler.Scheduler
	queue     *queue.Queue
	control   *control.Client // nil in File mode
	logger    *slog.Logger
}

// QueueLen reports the number of pulses currently queued for delivery.
func (a *Agent) QueueLen() int { return a.queue.Len() }

// MonitorCount reports the number of monitors currently scheduled.
func (a *Agent) MonitorCount() int { return a.scheduler.MonitorCount() }

// ControlState reports the control channel's connection state, or
// "disabled" in File mode where no control channel exists.
func (a *Agent) ControlState() string {
	if a.control == nil {
		return "disabled"
	}
	return a.control.State().String()
}

// Run starts the agent in whichever mode configPath/env selects and
// returns once its goroutines are started; they run until ctx is canceled.
func Run(ctx context.Context, configPath string, maxConcurrent int) (*Agent, error) {
	switch Select() {
	case ModeServer:
		return runServerMode(ctx, maxConcurrent)
	default:
		return runFileMode(ctx, configPath, maxConcurrent)
	}
}

func runFileMode(ctx context.Context, configPath string, maxConcurrent int) (*Agent, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("mode: file mode config: %w", err)
	}

	registry := probe.DefaultRegistry()
	q := queue.New(queue.Config{})
	dispatcher := heartbeat.New(nil, "", "", q)

	logger := slog.Default().With("component", "mode")
	sched := scheduler.New(makeRunner(registry, dispatcher, logger), maxConcurrent)
	sched.SetMonitors(cfg.Monitors)

	agent := &Agent{scheduler: sched, queue: q, logger: logger}
	go sched.Run(ctx)
	return agent, nil
}

func runServerMode(ctx context.Context, maxConcurrent int) (*Agent, error) {
	serverURL := os.Getenv("PULSE_SERVER_URL")
	token := os.Getenv("PULSE_TOKEN")

	registry := probe.DefaultRegistry()
	q := queue.New(queue.Config{})
	slot := channels.NewSlot()
	dispatcher := heartbeat.New(slot, serverURL, token, q)

	logger := slog.Default().With("component", "mode")
	sched := scheduler.New(makeRunner(registry, dispatcher, logger), maxConcurrent)

	onConfig := func(update channels.ConfigUpdate) {
		sched.SetMonitors(update.Monitors)
	}
	onAck := func(pulseID string) {
		q.Acknowledge(pulseID)
	}

	wsURL := control.HTTPToWSURL(serverURL)
	ctrl := control.New(wsURL, token, slot, q, onConfig, onAck)

	agent := &Agent{scheduler: sched, queue: q, control: ctrl, logger: logger}
	go ctrl.Run(ctx)
	go sched.Run(ctx)
	return agent, nil
}

// makeRunner adapts the probe registry and heartbeat dispatcher into the
// scheduler.Runner signature: run the probe, then dispatch its result.
func makeRunner(registry *probe.Registry, dispatcher *heartbeat.Dispatcher, logger *slog.Logger) scheduler.Runner {
	return func(ctx context.Context, m model.Monitor) {
		r, err := registry.Run(ctx, m)
		if err != nil {
			logger.Error("probe resolution failed", "monitor_id", m.ID, "error", err)
			r = result.NewCheckResult(m.ID)
			r.Fail(err)
		}

		if err := dispatcher.Dispatch(ctx, m, r); err != nil {
			logger.Warn("heartbeat dispatch failed", "monitor_id", m.ID, "error", err)
		}
	}
}

// Scheduler exposes the agent's scheduler for diagnostics snapshots.
func (a *Agent) Scheduler() *scheduler.Scheduler { return a.scheduler }

// Stop cancels the scheduling loop and waits for in-flight work.
func (a *Agent) Stop() {
	a.scheduler.Stop()
}
