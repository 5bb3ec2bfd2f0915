// Package tcpprobe implements a raw TCP connect liveness probe.
package tcpprobe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pulseagent/pulseagent/internal/model"
	"github.com/pulseagent/pulseagent/internal/result"
)

const defaultTimeout = 5 * time.Second

// Probe opens and immediately closes a TCP connection to m.TCP.Address.
func Probe(ctx context.Context, m model.Monitor) (*result.CheckResult, error) {
	cfg := m.TCP
	if cfg == nil {
		return nil, fmt.Errorf("tcpprobe: monitor %s has no tcp config", m.ID)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	dialer := &net.Dialer{Timeout: timeout}

	r := result.NewCheckResult(m.ID)
	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
	r.Latency = time.Since(start)

	if err != nil {
		r.Fail(fmt.Errorf("dial: %w", err))
		return r, nil
	}
	_ = conn.Close()

	r.Set(result.MetricLatency, float64(r.Latency.Milliseconds()))
	return r, nil
}
