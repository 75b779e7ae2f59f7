package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mockvoice/mockvoice/internal/call"
)

const (
	defaultHandshakeTimeout = 15 * time.Second
	defaultWriteTimeout     = 5 * time.Second
)

// ErrNoAgentURL is returned by Start when no agent endpoint is configured.
var ErrNoAgentURL = errors.New("agent url not configured")

type Config struct {
	URL              string
	APIKey           string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Client is a websocket connection to a remote voice agent. It implements
// call.Transport and io.Writer, the latter carrying microphone audio.
type Client struct {
	cfg    Config
	dialer websocket.Dialer
	logger *slog.Logger

	subMu  sync.Mutex
	subs   map[int]func(call.Event)
	nextID int

	uncaughtMu sync.Mutex
	onUncaught func(error)

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		dialer: websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		logger: logger.With("component", "transport"),
		subs:   map[int]func(call.Event){},
	}
}

// OnUncaught registers a handler for read-loop failures that were not caused
// by Stop.
func (c *Client) OnUncaught(handler func(error)) {
	c.uncaughtMu.Lock()
	defer c.uncaughtMu.Unlock()
	c.onUncaught = handler
}

func (c *Client) Subscribe(handler func(call.Event)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = handler
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

// Start dials the agent, sends the start frame, and begins delivering
// events. Any previous connection is closed first.
func (c *Client) Start(ctx context.Context, cfg call.StartConfig) error {
	c.closeConn()
	if c.cfg.URL == "" {
		return ErrNoAgentURL
	}

	header := http.Header{}
	if c.cfg.APIKey != "" {
		header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial agent: status=%d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial agent: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.writeJSON(conn, startFrame{Type: "start", StartConfig: cfg}); err != nil {
		c.closeConn()
		return fmt.Errorf("send start: %w", err)
	}

	c.logger.Info("agent connected", "url", c.cfg.URL, "mode", string(cfg.Mode))
	go c.readLoop(conn)
	return nil
}

// Stop asks the agent to end the call and closes the connection. It does not
// wait for the read loop, so it is safe to call from an event handler. A
// stopped connection publishes no further events.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	var errs []error
	if err := c.writeJSON(conn, stopFrame{Type: "stop"}); err != nil {
		errs = append(errs, fmt.Errorf("send stop: %w", err))
	}

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	c.writeMu.Unlock()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		errs = append(errs, fmt.Errorf("send close: %w", err))
	}

	c.closeConn()
	return errors.Join(errs...)
}

// Write sends one binary audio frame. Audio captured while no call is
// connected is dropped.
func (c *Client) Write(p []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return len(p), nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, fmt.Errorf("write audio: %w", err)
	}
	return len(p), nil
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) writeJSON(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(conn, err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		events, err := Decode(data)
		if err != nil {
			c.logger.Warn("skipping malformed agent frame", "error", err)
			continue
		}
		for _, ev := range events {
			c.publish(ev)
		}
	}
}

func (c *Client) handleReadError(conn *websocket.Conn, err error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()

	if !current {
		return
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && (closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway) {
		c.publish(call.SessionEnded{Reason: closeErr.Text})
		return
	}

	c.logger.Warn("agent connection lost", "error", err)
	c.publish(call.SessionError{Err: err})

	c.uncaughtMu.Lock()
	handler := c.onUncaught
	c.uncaughtMu.Unlock()
	if handler != nil {
		handler(err)
	}
}

func (c *Client) publish(ev call.Event) {
	c.subMu.Lock()
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]func(call.Event), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, c.subs[id])
	}
	c.subMu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

func (c *Client) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}
