// Package snmpprobe implements SNMP v1/v2c/v3 liveness probes via
// github.com/gosnmp/gosnmp: the same version and USM
// security-level/auth-protocol/priv-protocol constant mapping drives both
// the initial handshake and a recurring probe that reports the queried
// OID values as metrics.
package snmpprobe

import (
	"context"
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"
	"golang.org/x/sync/errgroup"

	"github.com/pulseagent/pulseagent/internal/model"
	"github.com/pulseagent/pulseagent/internal/result"
)

const defaultTimeout = 5 * time.Second

// Probe connects to m.SNMP.Address with the configured version and
// credentials, fetches the primary OID plus any NamedOIDs, and reports
// each as a metric (the primary OID under MetricCustom1, named OIDs
// under their own key).
func Probe(ctx context.Context, m model.Monitor) (*result.CheckResult, error) {
	cfg := m.SNMP
	if cfg == nil {
		return nil, fmt.Errorf("snmpprobe: monitor %s has no snmp config", m.ID)
	}

	client, err := buildClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("snmpprobe: %w", err)
	}

	r := result.NewCheckResult(m.ID)
	start := time.Now()

	if err := client.Connect(); err != nil {
		r.Latency = time.Since(start)
		r.Fail(fmt.Errorf("connect: %w", err))
		return r, nil
	}
	defer client.Conn.Close()

	oids := []string{cfg.OID}
	for _, oid := range cfg.NamedOIDs {
		oids = append(oids, oid)
	}

	variables, err := batchFetch(ctx, client, oids, 10)
	r.Latency = time.Since(start)
	if err != nil {
		r.Fail(fmt.Errorf("get: %w", err))
		return r, nil
	}

	byOID := make(map[string]gosnmp.SnmpPDU, len(variables))
	for _, v := range variables {
		byOID[v.Name] = v
	}

	if pdu, ok := lookupPDU(byOID, cfg.OID); ok {
		r.Set(result.MetricCustom1, pduToFloat(pdu))
	}
	for name, oid := range cfg.NamedOIDs {
		if pdu, ok := lookupPDU(byOID, oid); ok {
			r.Set(name, pduToFloat(pdu))
		}
	}

	r.Set(result.MetricLatency, float64(r.Latency.Milliseconds()))
	return r, nil
}

// lookupPDU tolerates the leading-dot normalization difference gosnmp
// sometimes applies between the requested and returned OID strings.
func lookupPDU(byOID map[string]gosnmp.SnmpPDU, oid string) (gosnmp.SnmpPDU, bool) {
	if pdu, ok := byOID[oid]; ok {
		return pdu, true
	}
	if pdu, ok := byOID["."+oid]; ok {
		return pdu, true
	}
	return gosnmp.SnmpPDU{}, false
}

func pduToFloat(pdu gosnmp.SnmpPDU) float64 {
	switch v := pdu.Value.(type) {
	case int:
		return float64(v)
	case uint:
		return float64(v)
	case uint64:
		return float64(v)
	case string:
		var f float64
		fmt.Sscanf(v, "%f", &f)
		return f
	case []byte:
		var f float64
		fmt.Sscanf(string(v), "%f", &f)
		return f
	default:
		return 0
	}
}

func buildClient(cfg *model.SNMPConfig) (*gosnmp.GoSNMP, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	host, port, err := splitHostPort(cfg.Address)
	if err != nil {
		return nil, err
	}

	client := &gosnmp.GoSNMP{
		Target:  host,
		Port:    port,
		Timeout: timeout,
		Retries: 1,
	}

	switch cfg.Version {
	case "1":
		client.Version = gosnmp.Version1
		client.Community = cfg.Community
	case "2c":
		client.Version = gosnmp.Version2c
		client.Community = cfg.Community
	case "3":
		client.Version = gosnmp.Version3
		usm, err := buildUSM(cfg)
		if err != nil {
			return nil, err
		}
		client.SecurityModel = gosnmp.UserSecurityModel
		client.MsgFlags = usm.msgFlags
		client.SecurityParameters = usm.params
	default:
		return nil, fmt.Errorf("unsupported snmp version %q", cfg.Version)
	}

	return client, nil
}

type usmSettings struct {
	msgFlags gosnmp.SnmpV3MsgFlags
	params   *gosnmp.UsmSecurityParameters
}

// buildUSM maps the string-valued security level/auth protocol/priv
// protocol config fields onto gosnmp's v3 USM constants, mirroring the
// teacher's ValidateSNMPv3 switch statements.
func buildUSM(cfg *model.SNMPConfig) (usmSettings, error) {
	var flags gosnmp.SnmpV3MsgFlags
	switch cfg.SecurityLevel {
	case "", "noAuthNoPriv":
		flags = gosnmp.NoAuthNoPriv
	case "authNoPriv":
		flags = gosnmp.AuthNoPriv
	case "authPriv":
		flags = gosnmp.AuthPriv
	default:
		return usmSettings{}, fmt.Errorf("unsupported snmp v3 security level %q", cfg.SecurityLevel)
	}

	authProtocol, err := authProtocolFor(cfg.AuthProtocol)
	if err != nil {
		return usmSettings{}, err
	}
	privProtocol, err := privProtocolFor(cfg.PrivProtocol)
	if err != nil {
		return usmSettings{}, err
	}

	return usmSettings{
		msgFlags: flags,
		params: &gosnmp.UsmSecurityParameters{
			UserName:                 cfg.Username,
			AuthenticationProtocol:   authProtocol,
			AuthenticationPassphrase: cfg.AuthPassword,
			PrivacyProtocol:          privProtocol,
			PrivacyPassphrase:        cfg.PrivPassword,
		},
	}, nil
}

func authProtocolFor(name string) (gosnmp.SnmpV3AuthProtocol, error) {
	switch name {
	case "", "none":
		return gosnmp.NoAuth, nil
	case "MD5":
		return gosnmp.MD5, nil
	case "SHA":
		return gosnmp.SHA, nil
	case "SHA224":
		return gosnmp.SHA224, nil
	case "SHA256":
		return gosnmp.SHA256, nil
	case "SHA384":
		return gosnmp.SHA384, nil
	case "SHA512":
		return gosnmp.SHA512, nil
	default:
		return gosnmp.NoAuth, fmt.Errorf("unsupported snmp v3 auth protocol %q", name)
	}
}

func privProtocolFor(name string) (gosnmp.SnmpV3PrivProtocol, error) {
	switch name {
	case "", "none":
		return gosnmp.NoPriv, nil
	case "DES":
		return gosnmp.DES, nil
	case "AES":
		return gosnmp.AES, nil
	case "AES192":
		return gosnmp.AES192, nil
	case "AES256":
		return gosnmp.AES256, nil
	default:
		return gosnmp.NoPriv, fmt.Errorf("unsupported snmp v3 priv protocol %q", name)
	}
}

func splitHostPort(address string) (string, uint16, error) {
	host, portStr, err := splitAddress(address)
	if err != nil {
		return "", 0, err
	}
	var port uint16
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return "", 0, fmt.Errorf("parse port from %q: %w", address, err)
	}
	return host, port, nil
}

func splitAddress(address string) (host, port string, err error) {
	for i := len(address) - 1; i >= 0; i-- {
		if address[i] == ':' {
			return address[:i], address[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("address %q missing port", address)
}

// batchFetch fetches oids in parallel GET requests of at most batchSize
// each, so a monitor naming many NamedOIDs doesn't exceed gosnmp's
// per-request OID cap or serialize unnecessarily.
func batchFetch(ctx context.Context, client *gosnmp.GoSNMP, oids []string, batchSize int) ([]gosnmp.SnmpPDU, error) {
	if batchSize <= 0 {
		batchSize = 10
	}
	var batches [][]string
	for i := 0; i < len(oids); i += batchSize {
		end := i + batchSize
		if end > len(oids) {
			end = len(oids)
		}
		batches = append(batches, oids[i:end])
	}

	results := make([][]gosnmp.SnmpPDU, len(batches))
	g, _ := errgroup.WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			packet, err := client.Get(batch)
			if err != nil {
				return err
			}
			results[i] = packet.Variables
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []gosnmp.SnmpPDU
	for _, batch := range results {
		out = append(out, batch...)
	}
	return out, nil
}
