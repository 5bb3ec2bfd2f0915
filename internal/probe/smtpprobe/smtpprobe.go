// Package smtpprobe implements an SMTP liveness probe: connect, read the
// greeting, EHLO, and optionally STARTTLS.
package smtpprobe

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/pulseagent/pulseagent/internal/model"
	"github.com/pulseagent/pulseagent/internal/result"
)

const defaultTimeout = 5 * time.Second

// Probe dials m.SMTP.Address, completes the EHLO handshake, and
// optionally upgrades to TLS via STARTTLS.
func Probe(ctx context.Context, m model.Monitor) (*result.CheckResult, error) {
	cfg := m.SMTP
	if cfg == nil {
		return nil, fmt.Errorf("smtpprobe: monitor %s has no smtp config", m.ID)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	hostname := cfg.Hostname
	if hostname == "" {
		hostname, _, _ = strings.Cut(cfg.Address, ":")
	}

	r := result.NewCheckResult(m.ID)
	dialer := &net.Dialer{Timeout: timeout}

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		r.Latency = time.Since(start)
		r.Fail(fmt.Errorf("dial: %w", err))
		return r, nil
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	client, err := smtp.NewClient(conn, hostname)
	if err != nil {
		r.Latency = time.Since(start)
		r.Fail(fmt.Errorf("smtp handshake: %w", err))
		return r, nil
	}
	defer client.Close()

	if err := client.Hello(hostname); err != nil {
		r.Latency = time.Since(start)
		r.Fail(fmt.Errorf("ehlo: %w", err))
		return r, nil
	}

	if cfg.StartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			r.Latency = time.Since(start)
			r.Fail(fmt.Errorf("server does not advertise STARTTLS"))
			return r, nil
		}
		if err := client.StartTLS(&tls.Config{ServerName: hostname}); err != nil {
			r.Latency = time.Since(start)
			r.Fail(fmt.Errorf("starttls: %w", err))
			return r, nil
		}
	}

	r.Latency = time.Since(start)
	r.Set(result.MetricLatency, float64(r.Latency.Milliseconds()))
	return r, nil
}
