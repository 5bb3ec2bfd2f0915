// Package imapprobe implements a minimal IMAP liveness probe: dial
// (optionally over TLS) and read the server's initial greeting line. A
// full IMAP client is unnecessary for a liveness check — the reference
// implementation's protocol set treats a well-formed "* OK" greeting as
// sufficient evidence the service is up.
package imapprobe

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pulseagent/pulseagent/internal/model"
	"github.com/pulseagent/pulseagent/internal/result"
)

const defaultTimeout = 5 * time.Second

// Probe dials m.IMAP.Address and verifies the server greets with a
// tagged "* OK" response.
func Probe(ctx context.Context, m model.Monitor) (*result.CheckResult, error) {
	cfg := m.IMAP
	if cfg == nil {
		return nil, fmt.Errorf("imapprobe: monitor %s has no imap config", m.ID)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	r := result.NewCheckResult(m.ID)
	dialer := &net.Dialer{Timeout: timeout}

	start := time.Now()
	var conn net.Conn
	var err error
	if cfg.TLS {
		host, _, _ := strings.Cut(cfg.Address, ":")
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: host}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", cfg.Address)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", cfg.Address)
	}
	if err != nil {
		r.Latency = time.Since(start)
		r.Fail(fmt.Errorf("dial: %w", err))
		return r, nil
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))

	line, err := bufio.NewReader(conn).ReadString('\n')
	r.Latency = time.Since(start)
	if err != nil {
		r.Fail(fmt.Errorf("read greeting: %w", err))
		return r, nil
	}
	if !strings.HasPrefix(line, "* OK") {
		r.Fail(fmt.Errorf("unexpected greeting: %q", strings.TrimSpace(line)))
		return r, nil
	}

	r.Set(result.MetricLatency, float64(r.Latency.Milliseconds()))
	return r, nil
}
