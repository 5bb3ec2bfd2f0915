package result

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestExpandTemplateFixedSlots(t *testing.T) {
	r := NewCheckResult("mon-1")
	r.Latency = 150 * time.Millisecond

	got := r.ExpandTemplate("up={up} latency={latency}ms")
	want := "up=true latency=150.000ms"
	if got != want {
		t.Errorf("ExpandTemplate() = %q, want %q", got, want)
	}
}

func TestExpandTemplateLatencyThreeDecimalPlaces(t *testing.T) {
	r := NewCheckResult("mon-1")
	r.Latency = 12345 * time.Microsecond // 12.345ms

	got := r.ExpandTemplate("http://hb/{latency}")
	want := "http://hb/12.345"
	if got != want {
		t.Errorf("ExpandTemplate() = %q, want %q", got, want)
	}
}

func TestExpandTemplateTimePlaceholdersAlwaysDefined(t *testing.T) {
	r := NewCheckResult("mon-1")
	r.Timestamp = time.Date(2026, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	r.Latency = 250 * time.Millisecond

	got := r.ExpandTemplate("{startTimeISO} {endTimeISO} {startTimeUnix} {endTimeUnix}")
	want := "2026-01-02T03:04:05.006Z 2026-01-02T03:04:05.256Z " +
		strconv.FormatInt(r.Timestamp.UnixMilli(), 10) + " " +
		strconv.FormatInt(r.Timestamp.Add(r.Latency).UnixMilli(), 10)
	if got != want {
		t.Errorf("ExpandTemplate() = %q, want %q", got, want)
	}
}

func TestExpandTemplateCustomSlotsDefaultToEmptyString(t *testing.T) {
	r := NewCheckResult("mon-1")
	got := r.ExpandTemplate("[{custom1}|{custom2}|{custom3}]")
	if got != "[||]" {
		t.Errorf("ExpandTemplate() = %q, want %q", got, "[||]")
	}
}

func TestExpandTemplateArbitraryMetric(t *testing.T) {
	r := NewCheckResult("mon-1")
	r.Set("custom1", 42)
	r.SetString("region", "us-east")

	got := r.ExpandTemplate("count={custom1} region={region}")
	want := "count=42 region=us-east"
	if got != want {
		t.Errorf("ExpandTemplate() = %q, want %q", got, want)
	}
}

func TestExpandTemplateFixedSlotNotShadowedByMetric(t *testing.T) {
	r := NewCheckResult("mon-1")
	r.Latency = 10 * time.Millisecond
	r.Set("latency", 9999) // a probe setting a metric literally named "latency"

	got := r.ExpandTemplate("{latency}")
	if got != "10.000" {
		t.Errorf("fixed slot was shadowed by metric map: got %q, want %q", got, "10.000")
	}
}

func TestExpandTemplateSinglePassIdempotent(t *testing.T) {
	r := NewCheckResult("mon-1")
	r.SetString("custom1", "{up}") // value itself looks like a placeholder

	once := r.ExpandTemplate("value={custom1}")
	twice := r.ExpandTemplate(once)
	if once != twice {
		t.Errorf("expansion is not idempotent: once=%q twice=%q", once, twice)
	}
	if once != "value={up}" {
		t.Errorf("ExpandTemplate() = %q, want %q", once, "value={up}")
	}
}

func TestSetPlayerCountAliasesCustom1(t *testing.T) {
	r := NewCheckResult("mon-1")
	r.SetPlayerCount(7)

	if r.Metrics[MetricPlayerCount] != 7 {
		t.Errorf("playerCount = %v, want 7", r.Metrics[MetricPlayerCount])
	}
	if r.Metrics[MetricCustom1] != 7 {
		t.Errorf("custom1 = %v, want 7", r.Metrics[MetricCustom1])
	}
}

func TestFailSetsUpFalseAndError(t *testing.T) {
	r := NewCheckResult("mon-1")
	r.Fail(errors.New("dial tcp: connection refused"))

	if r.Up {
		t.Error("Up = true after Fail, want false")
	}
	if !strings.Contains(r.Error, "connection refused") {
		t.Errorf("Error = %q, want it to contain %q", r.Error, "connection refused")
	}
}

func TestExpandHeadersLeavesNamesUntouched(t *testing.T) {
	r := NewCheckResult("mon-1")
	r.Set("custom1", 1)

	headers := map[string]string{"X-Count": "{custom1}"}
	got := r.ExpandHeaders(headers)
	if got["X-Count"] != "1" {
		t.Errorf("ExpandHeaders()[X-Count] = %q, want %q", got["X-Count"], "1")
	}
}
