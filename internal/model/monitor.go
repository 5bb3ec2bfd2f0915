// Package model defines the Monitor configuration types shared by every
// probe, the scheduler, and the heartbeat dispatcher.
package model

import "time"

// Protocol identifies which probe implementation a Monitor dispatches to.
// The set and priority order matches the registry in internal/probe.
type Protocol string

const (
	ProtocolHTTP             Protocol = "http"
	ProtocolWS               Protocol = "ws"
	ProtocolTCP              Protocol = "tcp"
	ProtocolUDP              Protocol = "udp"
	ProtocolICMP             Protocol = "icmp"
	ProtocolSMTP             Protocol = "smtp"
	ProtocolIMAP             Protocol = "imap"
	ProtocolMySQL            Protocol = "mysql"
	ProtocolMSSQL            Protocol = "mssql"
	ProtocolPostgreSQL       Protocol = "postgresql"
	ProtocolRedis            Protocol = "redis"
	ProtocolMinecraftJava    Protocol = "minecraft-java"
	ProtocolMinecraftBedrock Protocol = "minecraft-bedrock"
	ProtocolSNMP             Protocol = "snmp"
)

// Monitor is the unit of scheduling: one probe target with its own
// interval, jitter bound, and heartbeat delivery configuration.
type Monitor struct {
	ID       string        `toml:"id" validate:"required"`
	Name     string        `toml:"name" validate:"required"`
	Protocol Protocol      `toml:"protocol" validate:"required,oneof=http ws tcp udp icmp smtp imap mysql mssql postgresql redis minecraft-java minecraft-bedrock snmp"`
	Interval time.Duration `toml:"interval" validate:"required,gt=0"`
	// JitterMax bounds the stable per-monitor jitter added to Interval so
	// that many monitors with the same interval don't all fire at once.
	// Zero (the default when the TOML key is absent) selects the
	// scheduler's own default bound rather than disabling jitter.
	JitterMax time.Duration `toml:"jitter_max"`

	// Enabled gates whether the scheduler loads this monitor at all; a
	// disabled monitor is parsed and validated but never scheduled.
	Enabled bool `toml:"enabled"`
	// Token, when present, is this monitor's scheduling key (in place of
	// Name), its server-mode push identity, and the key used to build its
	// server-mode heartbeat URL. Optional in File mode.
	Token string `toml:"token"`
	// Debug gates per-probe logging for this monitor.
	Debug bool `toml:"debug"`

	HTTP       *HTTPConfig       `toml:"http"`
	WS         *WSConfig         `toml:"ws"`
	TCP        *TCPConfig        `toml:"tcp"`
	UDP        *UDPConfig        `toml:"udp"`
	ICMP       *ICMPConfig       `toml:"icmp"`
	SMTP       *SMTPConfig       `toml:"smtp"`
	IMAP       *IMAPConfig       `toml:"imap"`
	MySQL      *SQLConfig        `toml:"mysql"`
	MSSQL      *SQLConfig        `toml:"mssql"`
	PostgreSQL *SQLConfig        `toml:"postgresql"`
	Redis      *RedisConfig      `toml:"redis"`
	Minecraft  *MinecraftConfig  `toml:"minecraft"`
	SNMP       *SNMPConfig       `toml:"snmp"`

	Heartbeat HeartbeatConfig `toml:"heartbeat"`
}

// Key returns the monitor's scheduling key: Token when present, else
// Name. Must be unique within a configuration.
func (m Monitor) Key() string {
	if m.Token != "" {
		return m.Token
	}
	return m.Name
}

// HeartbeatConfig controls how a CheckResult is delivered once produced.
// The three dispatch paths are described in internal/heartbeat: a custom
// HTTP target, the server control channel, or the server's HTTP fallback.
type HeartbeatConfig struct {
	// URL, when set, selects the custom-HTTP dispatch path.
	URL     string            `toml:"url"`
	Method  string            `toml:"method"`
	Headers map[string]string `toml:"headers"`
	Body    string            `toml:"body"`

	// BearerToken and Username/Password add an Authorization header on
	// top of Headers, applied after header templating. At most one of
	// BearerToken or Username/Password should be set; BearerToken wins
	// if both are present.
	BearerToken string `toml:"bearer_token"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`

	Timeout time.Duration `toml:"timeout"`
}

// HTTPConfig configures an HTTP/HTTPS liveness probe.
type HTTPConfig struct {
	URL            string            `toml:"url" validate:"required,url"`
	Method         string            `toml:"method"`
	Headers        map[string]string `toml:"headers"`
	Body           string            `toml:"body"`
	ExpectStatus   int               `toml:"expect_status"`
	JSONPath       string            `toml:"json_path"`
	Timeout        time.Duration     `toml:"timeout"`
	InsecureTLS    bool              `toml:"insecure_tls"`
}

// WSConfig configures a WebSocket probe: dial, optional ping frame.
type WSConfig struct {
	URL         string        `toml:"url" validate:"required"`
	PingMessage string        `toml:"ping_message"`
	Timeout     time.Duration `toml:"timeout"`
}

// TCPConfig configures a raw TCP connect probe.
type TCPConfig struct {
	Address string        `toml:"address" validate:"required"`
	Timeout time.Duration `toml:"timeout"`
}

// UDPConfig configures a UDP probe: send a payload, optionally await a reply.
type UDPConfig struct {
	Address     string        `toml:"address" validate:"required"`
	Payload     []byte        `toml:"payload"`
	ExpectReply bool          `toml:"expect_reply"`
	Timeout     time.Duration `toml:"timeout"`
}

// ICMPConfig configures an ICMP echo probe.
type ICMPConfig struct {
	Address string        `toml:"address" validate:"required"`
	Timeout time.Duration `toml:"timeout"`
}

// SMTPConfig configures an SMTP liveness probe (EHLO, optional STARTTLS).
type SMTPConfig struct {
	Address   string        `toml:"address" validate:"required"`
	StartTLS  bool          `toml:"start_tls"`
	Hostname  string        `toml:"hostname"`
	Timeout   time.Duration `toml:"timeout"`
}

// IMAPConfig configures an IMAP liveness probe (greeting read only).
type IMAPConfig struct {
	Address string        `toml:"address" validate:"required"`
	TLS     bool          `toml:"tls"`
	Timeout time.Duration `toml:"timeout"`
}

// SQLConfig configures a database/sql-backed liveness ping, shared by
// MySQL, MSSQL and PostgreSQL monitors (the driver is selected by Protocol).
type SQLConfig struct {
	DSN     string        `toml:"dsn" validate:"required"`
	Query   string        `toml:"query"`
	Timeout time.Duration `toml:"timeout"`
}

// RedisConfig configures a Redis PING probe.
type RedisConfig struct {
	Address  string        `toml:"address" validate:"required"`
	Password string        `toml:"password"`
	DB       int           `toml:"db"`
	Timeout  time.Duration `toml:"timeout"`
}

// MinecraftConfig configures a Minecraft Java or Bedrock status probe.
type MinecraftConfig struct {
	Address string        `toml:"address" validate:"required"`
	Timeout time.Duration `toml:"timeout"`
}

// SNMPConfig configures an SNMP v1/v2c/v3 probe.
type SNMPConfig struct {
	Address   string            `toml:"address" validate:"required"`
	Version   string            `toml:"version" validate:"required,oneof=1 2c 3"`
	Community string            `toml:"community"`
	OID       string            `toml:"oid" validate:"required"`
	NamedOIDs map[string]string `toml:"named_oids"`

	// SNMPv3 USM fields.
	Username     string `toml:"username"`
	SecurityLevel string `toml:"security_level"`
	AuthProtocol string `toml:"auth_protocol"`
	AuthPassword string `toml:"auth_password"`
	PrivProtocol string `toml:"priv_protocol"`
	PrivPassword string `toml:"priv_password"`

	Timeout time.Duration `toml:"timeout"`
}
