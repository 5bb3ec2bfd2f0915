package probe

import (
	"github.com/pulseagent/pulseagent/internal/model"
	"github.com/pulseagent/pulseagent/internal/probe/httpprobe"
	"github.com/pulseagent/pulseagent/internal/probe/icmpprobe"
	"github.com/pulseagent/pulseagent/internal/probe/imapprobe"
	"github.com/pulseagent/pulseagent/internal/probe/minecraftprobe"
	"github.com/pulseagent/pulseagent/internal/probe/redisprobe"
	"github.com/pulseagent/pulseagent/internal/probe/smtpprobe"
	"github.com/pulseagent/pulseagent/internal/probe/snmpprobe"
	"github.com/pulseagent/pulseagent/internal/probe/sqlprobe"
	"github.com/pulseagent/pulseagent/internal/probe/tcpprobe"
	"github.com/pulseagent/pulseagent/internal/probe/udpprobe"
	"github.com/pulseagent/pulseagent/internal/probe/wsprobe"
)

// DefaultRegistry returns a Registry with every supported protocol wired
// to its implementation.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(model.ProtocolHTTP, httpprobe.Probe)
	r.Register(model.ProtocolWS, wsprobe.Probe)
	r.Register(model.ProtocolTCP, tcpprobe.Probe)
	r.Register(model.ProtocolUDP, udpprobe.Probe)
	r.Register(model.ProtocolICMP, icmpprobe.Probe)
	r.Register(model.ProtocolSMTP, smtpprobe.Probe)
	r.Register(model.ProtocolIMAP, imapprobe.Probe)
	r.Register(model.ProtocolMySQL, sqlprobe.Probe)
	r.Register(model.ProtocolMSSQL, sqlprobe.Probe)
	r.Register(model.ProtocolPostgreSQL, sqlprobe.Probe)
	r.Register(model.ProtocolRedis, redisprobe.Probe)
	r.Register(model.ProtocolMinecraftJava, minecraftprobe.ProbeJava)
	r.Register(model.ProtocolMinecraftBedrock, minecraftprobe.ProbeBedrock)
	r.Register(model.ProtocolSNMP, snmpprobe.Probe)
	return r
}
