package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pulseagent/pulseagent/internal/model"
)

const sampleTOML = `
[logging]
level = "debug"
format = "text"

[[monitors]]
id = "mon-1"
name = "Example"
protocol = "http"
interval = "30s"

[monitors.http]
url = "https://example.com"
method = "GET"
expect_status = 200
timeout = "5s"

[monitors.heartbeat]
url = "https://hooks.example.com/pulse"
method = "POST"
`

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "monitors.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadDecodesMonitors(t *testing.T) {
	path := writeTemp(t, sampleTOML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Monitors) != 1 {
		t.Fatalf("len(Monitors) = %d, want 1", len(cfg.Monitors))
	}
	m := cfg.Monitors[0]
	if m.ID != "mon-1" || m.Protocol != model.ProtocolHTTP {
		t.Errorf("decoded monitor = %+v", m)
	}
	if m.Interval != 30*time.Second {
		t.Errorf("Interval = %v, want 30s", m.Interval)
	}
	if m.HTTP == nil || m.HTTP.URL != "https://example.com" {
		t.Errorf("HTTP config = %+v", m.HTTP)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeTemp(t, sampleTOML)

	t.Setenv("PULSE_SERVER_URL", "https://server.example.com")
	t.Setenv("PULSE_TOKEN", "secret-token")
	t.Setenv("PULSE_LOG_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.URL != "https://server.example.com" {
		t.Errorf("Server.URL = %q", cfg.Server.URL)
	}
	if cfg.Server.Token != "secret-token" {
		t.Errorf("Server.Token = %q", cfg.Server.Token)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want override to win over file value", cfg.Logging.Level)
	}
}

func TestValidateAggregatesAcrossMonitors(t *testing.T) {
	cfg := &RuntimeConfig{
		Monitors: []model.Monitor{
			{ID: "", Name: "missing id", Protocol: model.ProtocolHTTP, Interval: time.Second, HTTP: &model.HTTPConfig{URL: "https://x"}},
			{ID: "dup", Name: "first", Protocol: model.ProtocolTCP, Interval: time.Second, TCP: &model.TCPConfig{Address: "x:1"}},
			{ID: "dup", Name: "second", Protocol: model.ProtocolTCP, Interval: time.Second, TCP: &model.TCPConfig{Address: "y:1"}},
		},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() = nil, want error listing all failures")
	}
	msg := err.Error()
	if !strings.Contains(msg, "dup") {
		t.Errorf("error %q does not mention duplicate monitor id", msg)
	}
}

func TestValidateProtocolConfigMissingBlock(t *testing.T) {
	m := model.Monitor{
		ID:       "mon-1",
		Name:     "missing http block",
		Protocol: model.ProtocolHTTP,
		Interval: time.Second,
		// HTTP intentionally left nil
	}
	if err := validateProtocolConfig(m); err == nil {
		t.Error("validateProtocolConfig() = nil, want error for missing HTTP block")
	}
}

func TestValidateProtocolConfigMinecraftSharesConfigAcrossVariants(t *testing.T) {
	mc := &model.MinecraftConfig{Address: "play.example.com"}
	for _, p := range []model.Protocol{model.ProtocolMinecraftJava, model.ProtocolMinecraftBedrock} {
		m := model.Monitor{ID: "mc", Name: "mc", Protocol: p, Interval: time.Second, Minecraft: mc}
		if err := validateProtocolConfig(m); err != nil {
			t.Errorf("validateProtocolConfig(%s) error = %v", p, err)
		}
	}
}

func TestDumpExampleConfigTOML(t *testing.T) {
	var sb strings.Builder
	if err := DumpExampleConfig(&sb, "toml"); err != nil {
		t.Fatalf("DumpExampleConfig(toml) error = %v", err)
	}
	if !strings.Contains(sb.String(), "example-http") {
		t.Errorf("toml dump missing expected monitor id: %s", sb.String())
	}
}

func TestDumpExampleConfigYAML(t *testing.T) {
	var sb strings.Builder
	if err := DumpExampleConfig(&sb, "yaml"); err != nil {
		t.Fatalf("DumpExampleConfig(yaml) error = %v", err)
	}
	if !strings.Contains(sb.String(), "Reference rendering only") {
		t.Errorf("yaml dump missing head comment: %s", sb.String())
	}
}

func TestDumpExampleConfigUnknownFormat(t *testing.T) {
	var sb strings.Builder
	if err := DumpExampleConfig(&sb, "xml"); err == nil {
		t.Error("DumpExampleConfig(xml) = nil, want error")
	}
}

func TestMonitorIDsString(t *testing.T) {
	monitors := []model.Monitor{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	got := MonitorIDsString(monitors)
	if got != "a,b,c" {
		t.Errorf("MonitorIDsString() = %q, want %q", got, "a,b,c")
	}
}
