package udpprobe

import (
	"net"
	"testing"
	"time"

	"github.com/pulseagent/pulseagent/internal/model"
)

func TestProbeSendOnlySucceeds(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer conn.Close()

	m := model.Monitor{ID: "mon-1", UDP: &model.UDPConfig{Address: conn.LocalAddr().String(), Timeout: time.Second}}

	r, err := Probe(t.Context(), m)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !r.Up {
		t.Errorf("Up = false, want true: %s", r.Error)
	}
}

func TestProbeExpectReplySucceedsWhenEchoed(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	defer conn.Close()

	go func() {
		buf := make([]byte, 512)
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		_, _ = conn.WriteTo(buf[:n], addr)
	}()

	m := model.Monitor{ID: "mon-1", UDP: &model.UDPConfig{
		Address:     conn.LocalAddr().String(),
		ExpectReply: true,
		Timeout:     time.Second,
	}}

	r, err := Probe(t.Context(), m)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !r.Up {
		t.Errorf("Up = false, want true: %s", r.Error)
	}
}

func TestProbeExpectReplyTimesOutWithNoResponder(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	addr := conn.LocalAddr().String()
	defer conn.Close() // listening but never replies

	m := model.Monitor{ID: "mon-1", UDP: &model.UDPConfig{
		Address:     addr,
		ExpectReply: true,
		Timeout:     100 * time.Millisecond,
	}}

	r, err := Probe(t.Context(), m)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if r.Up {
		t.Error("Up = true, want false when no reply arrives before timeout")
	}
}

func TestProbeMissingConfig(t *testing.T) {
	if _, err := Probe(t.Context(), model.Monitor{ID: "mon-1"}); err == nil {
		t.Error("Probe() = nil, want error when UDP config is missing")
	}
}
