// Package config loads and validates the TOML monitor-list document,
// applying PULSE_* environment variables as overrides after parsing.
// There is no process-wide singleton: File mode and Server mode each
// construct their own RuntimeConfig explicitly.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/pulseagent/pulseagent/internal/model"
)

var validate = validator.New()

// ServerConfig holds the Server-mode connection settings, populated from
// PULSE_SERVER_URL / PULSE_TOKEN (see internal/mode for the File vs
// Server selection logic that decides whether this is used at all).
type ServerConfig struct {
	URL   string
	Token string
}

// LoggingConfig holds the document's [logging] section. The logger built
// in cmd/pulseagent does not read it; it takes level and format from
// PULSE_LOG_LEVEL/PULSE_LOG_FORMAT only.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "text"
}

// RuntimeConfig is the fully loaded, validated configuration for one
// agent run.
type RuntimeConfig struct {
	Monitors []model.Monitor `toml:"monitors"`
	Logging  LoggingConfig   `toml:"logging"`
	Server   ServerConfig    `toml:"-"`
}

// Load reads and decodes the TOML document at path, applies environment
// overrides, and validates the result.
func Load(path string) (*RuntimeConfig, error) {
	var cfg RuntimeConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides lets environment variables override file-sourced
// values after parse, before validation.
func applyEnvOverrides(cfg *RuntimeConfig) {
	if v := os.Getenv("PULSE_SERVER_URL"); v != "" {
		cfg.Server.URL = v
	}
	if v := os.Getenv("PULSE_TOKEN"); v != "" {
		cfg.Server.Token = v
	}
	if v := os.Getenv("PULSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PULSE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// Validate runs struct-tag validation over every Monitor and the
// HeartbeatConfig it carries, aggregating all failures across the whole
// document with multierr rather than stopping at the first bad monitor
// — so a single config error report can name every monitor at fault.
func Validate(cfg *RuntimeConfig) error {
	var errs error
	seen := make(map[string]bool, len(cfg.Monitors))

	for _, m := range cfg.Monitors {
		if err := validate.Struct(m); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("monitor %q: %w", m.ID, err))
			continue
		}
		if seen[m.ID] {
			errs = multierr.Append(errs, fmt.Errorf("monitor %q: duplicate id", m.ID))
		}
		seen[m.ID] = true

		if err := validateProtocolConfig(m); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("monitor %q: %w", m.ID, err))
		}
	}
	return errs
}

// validateProtocolConfig checks that the sub-config matching m.Protocol
// is actually present, since the TOML schema allows every protocol's
// config block to be nil (only one is expected to be set per monitor).
func validateProtocolConfig(m model.Monitor) error {
	present := func(ok bool) error {
		if !ok {
			return fmt.Errorf("protocol %q declared but its config block is missing", m.Protocol)
		}
		return nil
	}

	switch m.Protocol {
	case model.ProtocolHTTP:
		return present(m.HTTP != nil)
	case model.ProtocolWS:
		return present(m.WS != nil)
	case model.ProtocolTCP:
		return present(m.TCP != nil)
	case model.ProtocolUDP:
		return present(m.UDP != nil)
	case model.ProtocolICMP:
		return present(m.ICMP != nil)
	case model.ProtocolSMTP:
		return present(m.SMTP != nil)
	case model.ProtocolIMAP:
		return present(m.IMAP != nil)
	case model.ProtocolMySQL:
		return present(m.MySQL != nil)
	case model.ProtocolMSSQL:
		return present(m.MSSQL != nil)
	case model.ProtocolPostgreSQL:
		return present(m.PostgreSQL != nil)
	case model.ProtocolRedis:
		return present(m.Redis != nil)
	case model.ProtocolMinecraftJava, model.ProtocolMinecraftBedrock:
		return present(m.Minecraft != nil)
	case model.ProtocolSNMP:
		return present(m.SNMP != nil)
	default:
		return fmt.Errorf("unknown protocol %q", m.Protocol)
	}
}

// exampleConfig is the document written by DumpExampleConfig.
func exampleConfig() RuntimeConfig {
	return RuntimeConfig{
		Monitors: []model.Monitor{
			{
				ID:       "example-http",
				Name:     "Example HTTP endpoint",
				Enabled:  true,
				Protocol: model.ProtocolHTTP,
				Interval: 30 * time.Second,
				HTTP: &model.HTTPConfig{
					URL:          "https://example.com/health",
					Method:       "GET",
					ExpectStatus: 200,
					Timeout:      5 * time.Second,
				},
				Heartbeat: model.HeartbeatConfig{
					URL:    "https://example.com/hooks/pulse",
					Method: "POST",
					Body:   `{"up":{up},"latencyMs":{latency}}`,
				},
			},
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// DumpExampleConfig writes a sample configuration document to w in the
// requested format: "toml" (the actual config file format, via
// BurntSushi/toml's encoder) or "yaml" (a human-review rendering with a
// head comment — useful for operators who want an annotated reference
// even though the agent itself only reads TOML).
func DumpExampleConfig(w io.Writer, format string) error {
	cfg := exampleConfig()

	switch format {
	case "", "toml":
		return toml.NewEncoder(w).Encode(cfg)
	case "yaml":
		node, err := annotatedYAMLNode(cfg)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(node)
	default:
		return fmt.Errorf("config: unknown dump format %q", format)
	}
}

// annotatedYAMLNode builds a yaml.Node tree for cfg with a head comment
// explaining that this is a reference rendering.
func annotatedYAMLNode(cfg RuntimeConfig) (*yaml.Node, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return nil, err
	}
	doc.HeadComment = "Reference rendering only: the agent reads its config file as TOML, not YAML."
	return &doc, nil
}

// MonitorIDsString joins the IDs of monitors with commas.
func MonitorIDsString(monitors []model.Monitor) string {
	s := ""
	for i, m := range monitors {
		if i > 0 {
			s += ","
		}
		s += m.ID
	}
	return s
}
