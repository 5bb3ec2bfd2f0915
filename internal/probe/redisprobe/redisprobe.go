// Package redisprobe implements a Redis liveness probe via PING.
package redisprobe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulseagent/pulseagent/internal/model"
	"github.com/pulseagent/pulseagent/internal/result"
)

const defaultTimeout = 5 * time.Second

// Probe opens a short-lived Redis client and issues PING.
func Probe(ctx context.Context, m model.Monitor) (*result.CheckResult, error) {
	cfg := m.Redis
	if cfg == nil {
		return nil, fmt.Errorf("redisprobe: monitor %s has no redis config", m.ID)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: timeout,
		ReadTimeout: timeout,
	})
	defer client.Close()

	r := result.NewCheckResult(m.ID)
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	status := client.Ping(pingCtx)
	r.Latency = time.Since(start)

	if err := status.Err(); err != nil {
		r.Fail(fmt.Errorf("ping: %w", err))
		return r, nil
	}

	r.Set(result.MetricLatency, float64(r.Latency.Milliseconds()))
	return r, nil
}
