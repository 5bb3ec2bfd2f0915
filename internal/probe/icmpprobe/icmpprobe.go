// Package icmpprobe implements an unprivileged ICMP echo probe using
// golang.org/x/net/icmp, matching the pack's convention of using an ICMP
// library rather than shelling out to a system ping binary.
package icmpprobe

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/pulseagent/pulseagent/internal/model"
	"github.com/pulseagent/pulseagent/internal/result"
)

const defaultTimeout = 5 * time.Second

// Probe sends a single ICMP echo request to m.ICMP.Address and waits for
// the matching echo reply.
func Probe(ctx context.Context, m model.Monitor) (*result.CheckResult, error) {
	cfg := m.ICMP
	if cfg == nil {
		return nil, fmt.Errorf("icmpprobe: monitor %s has no icmp config", m.ID)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	r := result.NewCheckResult(m.ID)

	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		r.Fail(fmt.Errorf("listen (unprivileged icmp requires CAP_NET_RAW or a sysctl grant): %w", err))
		return r, nil
	}
	defer conn.Close()

	dst, err := net.ResolveIPAddr("ip4", cfg.Address)
	if err != nil {
		r.Fail(fmt.Errorf("resolve %s: %w", cfg.Address, err))
		return r, nil
	}

	id := os.Getpid() & 0xffff
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  1,
			Data: []byte("pulseagent"),
		},
	}
	wire, err := msg.Marshal(nil)
	if err != nil {
		r.Fail(fmt.Errorf("marshal echo: %w", err))
		return r, nil
	}

	start := time.Now()
	if _, err := conn.WriteTo(wire, &net.UDPAddr{IP: dst.IP}); err != nil {
		r.Latency = time.Since(start)
		r.Fail(fmt.Errorf("send echo: %w", err))
		return r, nil
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		r.Fail(fmt.Errorf("set read deadline: %w", err))
		return r, nil
	}

	reply := make([]byte, 1500)
	n, _, err := conn.ReadFrom(reply)
	r.Latency = time.Since(start)
	if err != nil {
		r.Fail(fmt.Errorf("read echo reply: %w", err))
		return r, nil
	}

	parsed, err := icmp.ParseMessage(1 /* ipv4ICMPProtoNum */, reply[:n])
	if err != nil {
		r.Fail(fmt.Errorf("parse reply: %w", err))
		return r, nil
	}
	if parsed.Type != ipv4.ICMPTypeEchoReply {
		r.Fail(fmt.Errorf("unexpected ICMP type %v", parsed.Type))
		return r, nil
	}

	r.Set(result.MetricLatency, float64(r.Latency.Milliseconds()))
	return r, nil
}
