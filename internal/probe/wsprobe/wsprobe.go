// Package wsprobe implements the WebSocket liveness probe: dial, send an
// optional text ping, and measure round-trip latency up to the dial (and
// optional echo) completing.
package wsprobe

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulseagent/pulseagent/internal/model"
	"github.com/pulseagent/pulseagent/internal/result"
)

const defaultTimeout = 5 * time.Second

// Probe dials m.WS.URL and, if PingMessage is set, writes it and waits
// for any reply before measuring latency.
func Probe(ctx context.Context, m model.Monitor) (*result.CheckResult, error) {
	cfg := m.WS
	if cfg == nil {
		return nil, fmt.Errorf("wsprobe: monitor %s has no ws config", m.ID)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := result.NewCheckResult(m.ID)
	start := time.Now()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, cfg.URL, nil)
	if err != nil {
		r.Latency = time.Since(start)
		r.Fail(fmt.Errorf("dial: %w", err))
		return r, nil
	}
	defer conn.Close()

	if cfg.PingMessage != "" {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(cfg.PingMessage)); err != nil {
			r.Latency = time.Since(start)
			r.Fail(fmt.Errorf("write ping: %w", err))
			return r, nil
		}
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		if _, _, err := conn.ReadMessage(); err != nil {
			r.Latency = time.Since(start)
			r.Fail(fmt.Errorf("read reply: %w", err))
			return r, nil
		}
	}

	r.Latency = time.Since(start)
	r.Set(result.MetricLatency, float64(r.Latency.Milliseconds()))
	return r, nil
}
