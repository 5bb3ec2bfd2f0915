package wsprobe

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulseagent/pulseagent/internal/model"
)

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestProbeDialOnlySucceeds(t *testing.T) {
	srv := echoServer(t)

	m := model.Monitor{ID: "mon-1", WS: &model.WSConfig{URL: wsURL(srv.URL), Timeout: time.Second}}
	r, err := Probe(t.Context(), m)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !r.Up {
		t.Errorf("Up = false, want true: %s", r.Error)
	}
}

func TestProbePingAwaitsEcho(t *testing.T) {
	srv := echoServer(t)

	m := model.Monitor{ID: "mon-1", WS: &model.WSConfig{URL: wsURL(srv.URL), PingMessage: "hello", Timeout: time.Second}}
	r, err := Probe(t.Context(), m)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !r.Up {
		t.Errorf("Up = false, want true: %s", r.Error)
	}
}

func TestProbeFailsOnBadURL(t *testing.T) {
	m := model.Monitor{ID: "mon-1", WS: &model.WSConfig{URL: "ws://127.0.0.1:1/", Timeout: 200 * time.Millisecond}}
	r, err := Probe(t.Context(), m)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if r.Up {
		t.Error("Up = true, want false for an unreachable WS target")
	}
}

func TestProbeMissingConfig(t *testing.T) {
	if _, err := Probe(t.Context(), model.Monitor{ID: "mon-1"}); err == nil {
		t.Error("Probe() = nil, want error when WS config is missing")
	}
}
