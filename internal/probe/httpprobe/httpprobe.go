// Package httpprobe implements the HTTP/HTTPS liveness probe: issue a
// request, measure round-trip latency, optionally check the status code
// and extract a numeric value from the JSON response body via a simple
// dot/bracket-index path grammar.
package httpprobe

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pulseagent/pulseagent/internal/model"
	"github.com/pulseagent/pulseagent/internal/result"
)

const defaultTimeout = 5 * time.Second

// Probe performs one HTTP check against m.HTTP.
func Probe(ctx context.Context, m model.Monitor) (*result.CheckResult, error) {
	cfg := m.HTTP
	if cfg == nil {
		return nil, fmt.Errorf("httpprobe: monitor %s has no http config", m.ID)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureTLS}, //nolint:gosec // operator opt-in per monitor
		},
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if cfg.Body != "" {
		body = bytes.NewReader([]byte(cfg.Body))
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, body)
	if err != nil {
		return nil, fmt.Errorf("httpprobe: build request: %w", err)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	r := result.NewCheckResult(m.ID)
	start := time.Now()
	resp, err := client.Do(req)
	r.Latency = time.Since(start)
	r.Set(result.MetricLatency, float64(r.Latency.Milliseconds()))

	if err != nil {
		r.Fail(fmt.Errorf("request failed: %w", err))
		return r, nil
	}
	defer resp.Body.Close()

	if cfg.ExpectStatus != 0 && resp.StatusCode != cfg.ExpectStatus {
		r.Fail(fmt.Errorf("unexpected status %d, want %d", resp.StatusCode, cfg.ExpectStatus))
		return r, nil
	}
	if cfg.ExpectStatus == 0 && resp.StatusCode >= 400 {
		r.Fail(fmt.Errorf("unexpected status %d", resp.StatusCode))
		return r, nil
	}

	if cfg.JSONPath != "" {
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			r.Fail(fmt.Errorf("read body: %w", readErr))
			return r, nil
		}
		value, pathErr := extractJSONPath(data, cfg.JSONPath)
		if pathErr != nil {
			r.Fail(fmt.Errorf("json_path %q: %w", cfg.JSONPath, pathErr))
			return r, nil
		}
		r.Set(result.MetricCustom1, value)
	}

	return r, nil
}

// extractJSONPath walks a dotted/bracket-indexed path (e.g.
// "stats.players[0].count") through a decoded JSON document and returns
// the leaf as a float64.
func extractJSONPath(data []byte, path string) (float64, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("decode json: %w", err)
	}

	cur := doc
	for _, segment := range splitPath(path) {
		if idx, isIndex := segment.index(); isIndex {
			arr, ok := cur.([]any)
			if !ok || idx < 0 || idx >= len(arr) {
				return 0, fmt.Errorf("index %d not found at %q", idx, segment.raw)
			}
			cur = arr[idx]
			continue
		}
		obj, ok := cur.(map[string]any)
		if !ok {
			return 0, fmt.Errorf("%q is not an object", segment.raw)
		}
		next, ok := obj[segment.key]
		if !ok {
			return 0, fmt.Errorf("key %q not found", segment.key)
		}
		cur = next
	}

	switch v := cur.(type) {
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("leaf value %q is not numeric", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("leaf value at %q is not scalar", path)
	}
}

type pathSegment struct {
	raw string
	key string
	idx int
}

func (s pathSegment) index() (int, bool) {
	if strings.HasPrefix(s.raw, "[") {
		return s.idx, true
	}
	return 0, false
}

// splitPath turns "a.b[2].c" into [{key:a} {key:b} {idx:2} {key:c}].
func splitPath(path string) []pathSegment {
	var segments []pathSegment
	for _, dotPart := range strings.Split(path, ".") {
		for len(dotPart) > 0 {
			if b := strings.IndexByte(dotPart, '['); b == 0 {
				end := strings.IndexByte(dotPart, ']')
				if end < 0 {
					break
				}
				idx, _ := strconv.Atoi(dotPart[1:end])
				segments = append(segments, pathSegment{raw: dotPart[:end+1], idx: idx})
				dotPart = dotPart[end+1:]
				continue
			} else if b > 0 {
				segments = append(segments, pathSegment{raw: dotPart[:b], key: dotPart[:b]})
				dotPart = dotPart[b:]
				continue
			}
			segments = append(segments, pathSegment{raw: dotPart, key: dotPart})
			break
		}
	}
	return segments
}
