package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeSnapshotter struct {
	queueLen     int
	monitorCount int
	controlState string
}

func (f fakeSnapshotter) QueueLen() int       { return f.queueLen }
func (f fakeSnapshotter) MonitorCount() int   { return f.monitorCount }
func (f fakeSnapshotter) ControlState() string { return f.controlState }

func TestHealthz(t *testing.T) {
	r := NewRouter(fakeSnapshotter{})
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSnapshot(t *testing.T) {
	snap := fakeSnapshotter{queueLen: 3, monitorCount: 5, controlState: "active"}
	r := NewRouter(snap)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/snapshot")
	if err != nil {
		t.Fatalf("GET /snapshot: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if int(body["queueLen"].(float64)) != 3 {
		t.Errorf("queueLen = %v, want 3", body["queueLen"])
	}
	if int(body["monitorCount"].(float64)) != 5 {
		t.Errorf("monitorCount = %v, want 5", body["monitorCount"])
	}
	if body["controlState"] != "active" {
		t.Errorf("controlState = %v, want active", body["controlState"])
	}
}
