// Package result implements the CheckResult metric bag produced by every
// probe and the literal placeholder substitution used to build heartbeat
// request bodies and headers from it.
package result

import (
	"strconv"
	"strings"
	"time"
)

// Well-known metric slots. A probe is free to set any additional key in
// Metrics; these are the ones the heartbeat templater and the Minecraft
// alias know about by name.
const (
	MetricLatency     = "latency"
	MetricCustom1     = "custom1"
	MetricCustom2     = "custom2"
	MetricCustom3     = "custom3"
	MetricPlayerCount = "playerCount"
)

// CheckResult is the outcome of a single probe invocation. Up reports
// whether the target was reachable at all; Metrics holds arbitrary
// key/value pairs a probe wants reported, keyed by metric name.
type CheckResult struct {
	MonitorID string
	Up        bool
	Latency   time.Duration
	Error     string
	Metrics   map[string]float64
	Strings   map[string]string
	Timestamp time.Time
}

// NewCheckResult builds an empty successful result ready for a probe to
// populate via Set/SetString.
func NewCheckResult(monitorID string) *CheckResult {
	return &CheckResult{
		MonitorID: monitorID,
		Up:        true,
		Metrics:   make(map[string]float64),
		Strings:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// Set records a numeric metric under key.
func (r *CheckResult) Set(key string, value float64) {
	r.Metrics[key] = value
}

// SetString records a string-valued field under key, for placeholders
// that are not numeric (e.g. a version string).
func (r *CheckResult) SetString(key, value string) {
	r.Strings[key] = value
}

// SetPlayerCount records a Minecraft player count under both its native
// name and the custom1 alias, so heartbeat templates written against
// other protocols' custom metrics keep working for Minecraft monitors.
func (r *CheckResult) SetPlayerCount(count float64) {
	r.Set(MetricPlayerCount, count)
	r.Set(MetricCustom1, count)
}

// Fail marks the result as down with the given error; Latency is left as
// the probe set it.
func (r *CheckResult) Fail(err error) {
	r.Up = false
	r.Error = err.Error()
}

// placeholder returns the literal token a template uses to reference key,
// e.g. "latency" -> "{latency}".
func placeholder(key string) string {
	return "{" + key + "}"
}

// LatencyMillis converts d to its millisecond float value, the numeric
// form used on push frames and server-HTTP fallback query parameters.
func LatencyMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// FormatLatencyMillis renders d as milliseconds with three decimal
// places, e.g. "12.345" for 12.345ms.
func FormatLatencyMillis(d time.Duration) string {
	return strconv.FormatFloat(LatencyMillis(d), 'f', 3, 64)
}

// FormatTimeMillisISO renders t as RFC-3339 with millisecond precision
// and a literal "Z" suffix, the timestamp format used on push frames and
// templated time placeholders.
func FormatTimeMillisISO(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// ExpandTemplate performs literal (non-grammar) placeholder substitution
// over s: every occurrence of "{name}" where name is a fixed slot
// (timestamp, latency, up, startTimeISO, endTimeISO, startTimeUnix,
// endTimeUnix, custom1/2/3) or a key present in r.Metrics/r.Strings is
// replaced with its value. Fixed slots are substituted first, then
// arbitrary metric/string keys, so that a custom metric literally named
// "timestamp" or "latency" cannot shadow the fixed slots. custom1/2/3 are
// always defined, substituting the empty string when the probe never set
// them. Each placeholder is replaced by one strings.ReplaceAll, in the
// order above (metric and string keys in map iteration order): a value
// inserted by one replacement is not expanded by the replacements that ran
// before it, so a probe value can never turn into a fixed slot, but it can
// be matched by a replacement that runs after it.
func (r *CheckResult) ExpandTemplate(s string) string {
	start := r.Timestamp
	end := r.Timestamp.Add(r.Latency)

	s = strings.ReplaceAll(s, placeholder("timestamp"), r.Timestamp.UTC().Format(time.RFC3339))
	s = strings.ReplaceAll(s, placeholder(MetricLatency), FormatLatencyMillis(r.Latency))
	s = strings.ReplaceAll(s, placeholder("up"), strconv.FormatBool(r.Up))
	s = strings.ReplaceAll(s, placeholder("error"), r.Error)
	s = strings.ReplaceAll(s, placeholder("startTimeISO"), FormatTimeMillisISO(start))
	s = strings.ReplaceAll(s, placeholder("endTimeISO"), FormatTimeMillisISO(end))
	s = strings.ReplaceAll(s, placeholder("startTimeUnix"), strconv.FormatInt(start.UnixMilli(), 10))
	s = strings.ReplaceAll(s, placeholder("endTimeUnix"), strconv.FormatInt(end.UnixMilli(), 10))

	for _, key := range []string{MetricCustom1, MetricCustom2, MetricCustom3} {
		s = strings.ReplaceAll(s, placeholder(key), r.customString(key))
	}

	for key, value := range r.Metrics {
		if key == MetricCustom1 || key == MetricCustom2 || key == MetricCustom3 {
			continue // already substituted above so they're always-defined, even absent
		}
		s = strings.ReplaceAll(s, placeholder(key), strconv.FormatFloat(value, 'f', -1, 64))
	}
	for key, value := range r.Strings {
		s = strings.ReplaceAll(s, placeholder(key), value)
	}
	return s
}

// customString renders the named custom slot from r.Metrics, else from
// r.Strings, or "" if the probe never set it.
func (r *CheckResult) customString(key string) string {
	if v, ok := r.Metrics[key]; ok {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	if v, ok := r.Strings[key]; ok {
		return v
	}
	return ""
}

// ExpandHeaders applies ExpandTemplate to every header value, leaving
// header names untouched.
func (r *CheckResult) ExpandHeaders(headers map[string]string) map[string]string {
	expanded := make(map[string]string, len(headers))
	for k, v := range headers {
		expanded[k] = r.ExpandTemplate(v)
	}
	return expanded
}
