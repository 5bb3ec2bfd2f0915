// Package udpprobe implements a UDP liveness probe: send a payload and,
// when configured, wait for any reply datagram.
package udpprobe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pulseagent/pulseagent/internal/model"
	"github.com/pulseagent/pulseagent/internal/result"
)

const defaultTimeout = 5 * time.Second

// Probe sends m.UDP.Payload to m.UDP.Address and, if ExpectReply is set,
// waits for a single reply datagram before succeeding.
func Probe(ctx context.Context, m model.Monitor) (*result.CheckResult, error) {
	cfg := m.UDP
	if cfg == nil {
		return nil, fmt.Errorf("udpprobe: monitor %s has no udp config", m.ID)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	dialer := &net.Dialer{Timeout: timeout}

	r := result.NewCheckResult(m.ID)
	start := time.Now()

	conn, err := dialer.DialContext(ctx, "udp", cfg.Address)
	if err != nil {
		r.Latency = time.Since(start)
		r.Fail(fmt.Errorf("dial: %w", err))
		return r, nil
	}
	defer conn.Close()

	payload := cfg.Payload
	if len(payload) == 0 {
		payload = []byte{0}
	}
	if _, err := conn.Write(payload); err != nil {
		r.Latency = time.Since(start)
		r.Fail(fmt.Errorf("write: %w", err))
		return r, nil
	}

	if cfg.ExpectReply {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		buf := make([]byte, 512)
		if _, err := conn.Read(buf); err != nil {
			r.Latency = time.Since(start)
			r.Fail(fmt.Errorf("read reply: %w", err))
			return r, nil
		}
	}

	r.Latency = time.Since(start)
	r.Set(result.MetricLatency, float64(r.Latency.Milliseconds()))
	return r, nil
}
