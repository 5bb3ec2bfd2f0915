// Package probe implements protocol dispatch by key: a Monitor's
// Protocol selects exactly one registered probe function, each of which
// is a plain Go function rather than an external binary.
package probe

import (
	"context"
	"fmt"

	"github.com/pulseagent/pulseagent/internal/model"
	"github.com/pulseagent/pulseagent/internal/result"
)

// Func is the opaque probe signature: given a Monitor, produce a
// CheckResult or an error if the probe itself could not be executed
// (as opposed to the target being down, which is reported via a
// CheckResult with Up=false).
type Func func(ctx context.Context, m model.Monitor) (*result.CheckResult, error)

// priorityOrder fixes a stable protocol ordering for reporting purposes.
// The registry does not use this order to pick among candidates for a
// single monitor (a monitor names its protocol explicitly); it is used
// by List to report registered probes in a stable, documented order.
var priorityOrder = []model.Protocol{
	model.ProtocolHTTP,
	model.ProtocolWS,
	model.ProtocolTCP,
	model.ProtocolUDP,
	model.ProtocolICMP,
	model.ProtocolSMTP,
	model.ProtocolIMAP,
	model.ProtocolMySQL,
	model.ProtocolMSSQL,
	model.ProtocolPostgreSQL,
	model.ProtocolRedis,
	model.ProtocolMinecraftJava,
	model.ProtocolMinecraftBedrock,
	model.ProtocolSNMP,
}

// Registry maps a Protocol to the Func that implements it.
type Registry struct {
	funcs map[model.Protocol]Func
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[model.Protocol]Func)}
}

// Register installs fn as the probe for protocol, replacing any
// previously registered probe for the same protocol.
func (r *Registry) Register(protocol model.Protocol, fn Func) {
	r.funcs[protocol] = fn
}

// Resolve returns the Func registered for protocol, or an error if none
// is registered.
func (r *Registry) Resolve(protocol model.Protocol) (Func, error) {
	fn, ok := r.funcs[protocol]
	if !ok {
		return nil, fmt.Errorf("probe: no probe registered for protocol %q", protocol)
	}
	return fn, nil
}

// Run resolves m.Protocol and invokes the probe, propagating resolution
// failures as errors (a configuration problem) distinct from a
// CheckResult reporting the target as down (an operational fact).
func (r *Registry) Run(ctx context.Context, m model.Monitor) (*result.CheckResult, error) {
	fn, err := r.Resolve(m.Protocol)
	if err != nil {
		return nil, err
	}
	return fn(ctx, m)
}

// List returns the protocols with a registered probe, in the fixed
// priority order.
func (r *Registry) List() []model.Protocol {
	out := make([]model.Protocol, 0, len(r.funcs))
	for _, p := range priorityOrder {
		if _, ok := r.funcs[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
