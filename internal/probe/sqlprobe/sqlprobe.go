// Package sqlprobe implements the MySQL, MSSQL, and PostgreSQL liveness
// probes, all through database/sql with a driver selected by Protocol:
// go-sql-driver/mysql, microsoft/go-mssqldb, and jackc/pgx/v5/stdlib (the
// database/sql-compatible driver built on pgx).
package sqlprobe

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/pulseagent/pulseagent/internal/model"
	"github.com/pulseagent/pulseagent/internal/result"
)

const defaultTimeout = 5 * time.Second

func driverFor(protocol model.Protocol) (string, error) {
	switch protocol {
	case model.ProtocolMySQL:
		return "mysql", nil
	case model.ProtocolMSSQL:
		return "sqlserver", nil
	case model.ProtocolPostgreSQL:
		return "pgx", nil
	default:
		return "", fmt.Errorf("sqlprobe: unsupported protocol %q", protocol)
	}
}

func cfgFor(m model.Monitor) (*model.SQLConfig, error) {
	switch m.Protocol {
	case model.ProtocolMySQL:
		return m.MySQL, nil
	case model.ProtocolMSSQL:
		return m.MSSQL, nil
	case model.ProtocolPostgreSQL:
		return m.PostgreSQL, nil
	default:
		return nil, fmt.Errorf("sqlprobe: unsupported protocol %q", m.Protocol)
	}
}

// Probe opens a short-lived connection and runs a liveness query
// (defaulting to "SELECT 1") against it, failing the check if the
// connection, ping, or query do not complete within Timeout.
func Probe(ctx context.Context, m model.Monitor) (*result.CheckResult, error) {
	cfg, err := cfgFor(m)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("sqlprobe: monitor %s has no config for protocol %q", m.ID, m.Protocol)
	}
	driver, err := driverFor(m.Protocol)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := result.NewCheckResult(m.ID)
	start := time.Now()

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		r.Latency = time.Since(start)
		r.Fail(fmt.Errorf("open: %w", err))
		return r, nil
	}
	defer db.Close()

	query := cfg.Query
	if query == "" {
		query = "SELECT 1"
	}

	if err := db.PingContext(queryCtx); err != nil {
		r.Latency = time.Since(start)
		r.Fail(fmt.Errorf("ping: %w", err))
		return r, nil
	}

	row := db.QueryRowContext(queryCtx, query)
	var discard any
	if err := row.Scan(&discard); err != nil {
		r.Latency = time.Since(start)
		r.Fail(fmt.Errorf("query: %w", err))
		return r, nil
	}

	r.Latency = time.Since(start)
	r.Set(result.MetricLatency, float64(r.Latency.Milliseconds()))
	return r, nil
}
