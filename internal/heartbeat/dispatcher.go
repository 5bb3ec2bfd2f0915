// Package heartbeat implements the three-path delivery of a CheckResult:
// a custom HTTP target, the server control channel, or (as a fallback
// when the channel has no active connection) the server's HTTP endpoint.
package heartbeat

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/pulseagent/pulseagent/internal/channels"
	"github.com/pulseagent/pulseagent/internal/model"
	"github.com/pulseagent/pulseagent/internal/queue"
	"github.com/pulseagent/pulseagent/internal/result"
)

const defaultTimeout = 10 * time.Second

// Dispatcher delivers CheckResults according to a Monitor's
// HeartbeatConfig, preferring (in order): a custom HTTP URL, the shared
// control-channel slot, and finally the server's HTTP fallback endpoint
// with retry.
type Dispatcher struct {
	client        *http.Client
	slot          *channels.Slot
	serverURL     string
	serverToken   string
	fallbackQueue *queue.Queue
	logger        *slog.Logger
}

// New builds a Dispatcher. slot may be nil in File mode (no control
// channel exists); serverURL/serverToken may be empty for the same
// reason. fallbackQueue supplies the server-HTTP fallback's retry count
// and delay; when no server URL is configured, a pulse that reaches the
// fallback path is enqueued on it instead. The queue does not send
// anything itself: its pulses go out only through a control.Client that
// drains the same queue.
func New(slot *channels.Slot, serverURL, serverToken string, fallbackQueue *queue.Queue) *Dispatcher {
	return &Dispatcher{
		client:        &http.Client{Timeout: defaultTimeout},
		slot:          slot,
		serverURL:     serverURL,
		serverToken:   serverToken,
		fallbackQueue: fallbackQueue,
		logger:        slog.Default().With("component", "heartbeat"),
	}
}

// Dispatch delivers r according to m's heartbeat configuration. It returns
// an error only when every applicable path failed.
func (d *Dispatcher) Dispatch(ctx context.Context, m model.Monitor, r *result.CheckResult) error {
	hb := m.Heartbeat
	if hb.URL != "" {
		return d.dispatchCustomHTTP(ctx, hb, r)
	}
	if m.Token == "" {
		return fmt.Errorf("heartbeat: no delivery path available for monitor %s", r.MonitorID)
	}
	if d.slot != nil {
		msg := buildPushMessage(m.Token, r)
		delivered, active := d.slot.Send(msg)
		if delivered {
			return nil
		}
		if active {
			// Connection present but its buffer is momentarily full:
			// drop this pulse rather than fall back, the next heartbeat
			// will follow shortly.
			d.logger.Debug("control channel buffer full, dropping pulse", "monitor_id", r.MonitorID)
			return nil
		}
		d.logger.Debug("control channel has no active connection, falling back to server HTTP", "monitor_id", r.MonitorID)
	}
	return d.dispatchServerFallback(ctx, m.Token, r)
}

// buildPushMessage converts r into the push frame form sent over the
// control channel or enqueued on the fallback queue.
func buildPushMessage(token string, r *result.CheckResult) channels.PushMessage {
	msg := channels.PushMessage{
		MonitorID: r.MonitorID,
		Token:     token,
		Latency:   result.LatencyMillis(r.Latency),
		StartTime: r.Timestamp,
		EndTime:   r.Timestamp.Add(r.Latency),
	}
	if v, ok := r.Metrics[result.MetricCustom1]; ok {
		msg.Custom1 = &v
	}
	if v, ok := r.Metrics[result.MetricCustom2]; ok {
		msg.Custom2 = &v
	}
	if v, ok := r.Metrics[result.MetricCustom3]; ok {
		msg.Custom3 = &v
	}
	return msg
}

func (d *Dispatcher) dispatchCustomHTTP(ctx context.Context, hb model.HeartbeatConfig, r *result.CheckResult) error {
	method := hb.Method
	if method == "" {
		method = http.MethodPost
	}

	body := r.ExpandTemplate(hb.Body)
	targetURL := r.ExpandTemplate(hb.URL)
	req, err := http.NewRequestWithContext(ctx, method, targetURL, bytes.NewReader([]byte(body)))
	if err != nil {
		return fmt.Errorf("heartbeat: build request: %w", err)
	}

	for k, v := range r.ExpandHeaders(hb.Headers) {
		req.Header.Set(k, v)
	}
	applyAuth(req, hb)

	timeout := hb.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := d.client
	if timeout != defaultTimeout {
		client = &http.Client{Timeout: timeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("heartbeat: custom HTTP delivery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("heartbeat: custom HTTP delivery: status %d", resp.StatusCode)
	}
	return nil
}

// applyAuth sets Authorization from BearerToken or Username/Password,
// after header templating. Bearer wins if both are set.
func applyAuth(req *http.Request, hb model.HeartbeatConfig) {
	switch {
	case hb.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+hb.BearerToken)
	case hb.Username != "" || hb.Password != "":
		token := base64.StdEncoding.EncodeToString([]byte(hb.Username + ":" + hb.Password))
		req.Header.Set("Authorization", "Basic "+token)
	}
}

// dispatchServerFallback GETs the server's per-token push endpoint,
// retrying with a fixed backoff via go-retry sourced from the fallback
// queue's own configuration. If no server URL is configured and a
// fallback queue was supplied, the pulse is enqueued there instead of
// being dropped.
func (d *Dispatcher) dispatchServerFallback(ctx context.Context, token string, r *result.CheckResult) error {
	if d.serverURL == "" {
		if d.fallbackQueue != nil {
			d.fallbackQueue.Enqueue(buildPushMessage(token, r))
			return nil
		}
		return fmt.Errorf("heartbeat: no delivery path available for monitor %s", r.MonitorID)
	}

	maxRetries, retryDelay := 3, time.Second
	if d.fallbackQueue != nil {
		maxRetries, retryDelay = d.fallbackQueue.MaxRetries(), d.fallbackQueue.RetryDelay()
	}

	backoff := retry.WithMaxRetries(uint64(maxRetries), retry.NewConstant(retryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fallbackPushURL(d.serverURL, token, r), nil)
		if err != nil {
			return err // non-retryable: malformed request
		}
		if d.serverToken != "" {
			req.Header.Set("Authorization", "Bearer "+d.serverToken)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("heartbeat: server HTTP fallback: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("heartbeat: server HTTP fallback: status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("heartbeat: server HTTP fallback: status %d", resp.StatusCode)
		}
		return nil
	})
}

// fallbackPushURL builds the server's GET push endpoint:
// {serverURL}/v1/push/{token}?latency=…&startTime=…&endTime=…&custom1=…&custom2=…&custom3=….
func fallbackPushURL(serverURL, token string, r *result.CheckResult) string {
	start := r.Timestamp
	end := r.Timestamp.Add(r.Latency)

	q := url.Values{}
	q.Set("latency", result.FormatLatencyMillis(r.Latency))
	q.Set("startTime", result.FormatTimeMillisISO(start))
	q.Set("endTime", result.FormatTimeMillisISO(end))
	q.Set("custom1", customQueryValue(r, result.MetricCustom1))
	q.Set("custom2", customQueryValue(r, result.MetricCustom2))
	q.Set("custom3", customQueryValue(r, result.MetricCustom3))

	base := strings.TrimSuffix(serverURL, "/")
	return fmt.Sprintf("%s/v1/push/%s?%s", base, token, q.Encode())
}

func customQueryValue(r *result.CheckResult, key string) string {
	if v, ok := r.Metrics[key]; ok {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}
