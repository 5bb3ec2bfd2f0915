// Package control implements the persistent duplex connection to the
// pulse server used in Server mode: a gorilla/websocket client with a
// read-pump goroutine and a select loop between reads and outbound
// sends, a subscribe handshake, and a fixed reconnect cadence.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/pulseagent/pulseagent/internal/channels"
	"github.com/pulseagent/pulseagent/internal/model"
	"github.com/pulseagent/pulseagent/internal/queue"
)

// State is the control channel's connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribing
	StateActive
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

const (
	reconnectDelay    = 1 * time.Second
	outboundBufferLen = 256
)

// ConfigHandler is invoked whenever the server pushes a new monitor list.
type ConfigHandler func(update channels.ConfigUpdate)

// AckHandler is invoked when the server confirms it received a pulse.
type AckHandler func(pulseID string)

// Client maintains the agent's side of the control channel: it dials,
// subscribes, and loops forever reconnecting after reconnectDelay on any
// disconnect, publishing its current outbound sender into slot while
// active.
type Client struct {
	url      string
	token    string
	slot     *channels.Slot
	queue    *queue.Queue
	onConfig ConfigHandler
	onAck    AckHandler
	logger   *slog.Logger

	stateMu sync.RWMutex
	state   State
}

// New builds a Client. HTTPToWSURL should be used by callers to derive
// wsURL from the server's HTTP base URL before calling New. q is the pulse
// queue every outbound message passes through: while active, the client
// enqueues each message drained from slot's channel and dequeues it via NextToSend/
// NextBatchToSend rather than writing it to the socket directly.
func New(wsURL, token string, slot *channels.Slot, q *queue.Queue, onConfig ConfigHandler, onAck AckHandler) *Client {
	return &Client{
		url:      wsURL,
		token:    token,
		slot:     slot,
		queue:    q,
		onConfig: onConfig,
		onAck:    onAck,
		logger:   slog.Default().With("component", "control"),
	}
}

// State returns the client's current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// Run drives the connect/subscribe/serve/reconnect loop until ctx is
// canceled. Each iteration's errors are logged, not returned: the
// connection is expected to drop and recover over the agent's lifetime.
func (c *Client) Run(ctx context.Context) {
	backoff := retry.NewConstant(reconnectDelay)

	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}

		err := c.connectAndServe(ctx)
		c.slot.Clear()
		c.setState(StateDisconnected)

		if err != nil {
			if isAuthError(err) {
				c.logger.Error("control channel auth failure", "error", err)
			} else {
				c.logger.Warn("control channel disconnected", "error", err)
			}
		}

		delay, _ := backoff.Next()
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

type authError struct{ error }

func isAuthError(err error) bool {
	_, ok := err.(authError)
	return ok
}

func (c *Client) connectAndServe(ctx context.Context) error {
	c.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c.setState(StateSubscribing)
	sub, err := json.Marshal(map[string]string{"action": "subscribe", "token": c.token})
	if err != nil {
		return fmt.Errorf("marshal subscribe: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	outbound := make(chan channels.PushMessage, outboundBufferLen)
	c.slot.Publish(outbound)
	c.setState(StateActive)

	reads := make(chan wsFrame)
	go c.readPump(conn, reads)

	retryTicker := time.NewTicker(c.queue.RetryDelay())
	defer retryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-reads:
			if !ok {
				return nil
			}
			if frame.err != nil {
				return frame.err
			}
			if err := c.handleMessage(frame.data); err != nil {
				return err
			}
		case msg, ok := <-outbound:
			if !ok {
				return nil
			}
			c.queue.Enqueue(msg)
			if pulse := c.queue.NextToSend(); pulse != nil {
				if err := c.sendFrame(conn, pulse); err != nil {
					return err
				}
			}
		case <-retryTicker.C:
			c.queue.PruneExpired()
			for _, pulse := range c.queue.NextBatchToSend(2000) {
				if err := c.sendFrame(conn, pulse); err != nil {
					return err
				}
			}
		}
	}
}

// sendFrame encodes pulse's message as a push frame and writes it to conn.
func (c *Client) sendFrame(conn *websocket.Conn, pulse *queue.QueuedPulse) error {
	frame, err := pulse.Message.Frame()
	if err != nil {
		return fmt.Errorf("encode push frame: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write pulse: %w", err)
	}
	return nil
}

type wsFrame struct {
	data []byte
	err  error
}

func (c *Client) readPump(conn *websocket.Conn, out chan<- wsFrame) {
	defer close(out)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			out <- wsFrame{err: err}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		out <- wsFrame{data: data}
	}
}

// serverMessage mirrors the server's push taxonomy: connected,
// subscribed, config-update, pushed (ack), error, subscribe (unexpected
// from the server, logged and ignored).
type serverMessage struct {
	Action    string          `json:"action"`
	Message   string          `json:"message"`
	MonitorID string          `json:"monitorId"`
	PulseID   string          `json:"pulseId"`
	Data      json.RawMessage `json:"data"`
}

func (c *Client) handleMessage(raw []byte) error {
	var msg serverMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Warn("control channel: malformed message", "error", err)
		return nil
	}

	switch msg.Action {
	case "connected":
		// no-op
	case "subscribed", "config-update":
		var payload struct {
			Monitors []model.Monitor `json:"monitors"`
		}
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				c.logger.Warn("control channel: malformed config payload", "error", err)
				return nil
			}
		}
		if c.onConfig != nil {
			c.onConfig(channels.ConfigUpdate{Monitors: payload.Monitors})
		}
	case "pushed":
		if msg.PulseID != "" && c.onAck != nil {
			c.onAck(msg.PulseID)
		}
	case "error":
		if strings.Contains(msg.Message, "Invalid") {
			return authError{fmt.Errorf("server rejected subscription: %s", msg.Message)}
		}
		c.logger.Error("control channel: server error", "message", msg.Message)
	case "subscribe":
		c.logger.Warn("control channel: unexpected subscribe frame from server")
	default:
		c.logger.Debug("control channel: unhandled action", "action", msg.Action)
	}
	return nil
}

// HTTPToWSURL derives the websocket URL from the server's HTTP base URL:
// https -> wss, http -> ws, trailing slash trimmed, "/ws" appended.
// Idempotent in the sense that passing either a URL with or without a
// trailing slash yields the same result.
func HTTPToWSURL(base string) string {
	u := strings.TrimSuffix(base, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}
