// internal/client/client.go
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zhongsurehow/zhouyi/internal/protocol"
)

// Options controls connection behavior.
type Options struct {
	// URL is the full websocket endpoint including the room id,
	// e.g. ws://host/room/ws/{room_id}.
	URL string

	// AuthToken, when set, is sent as the auth_token cookie.
	AuthToken string

	HeartbeatInterval time.Duration

	// Reconnect backoff starts at BaseDelay and doubles per attempt up
	// to MaxDelay. MaxAttempts of 0 retries forever.
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

func (o *Options) defaults() {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 15 * time.Second
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
}

// Client maintains a websocket connection to a room, transparently
// reconnecting with exponential backoff. Every reconnect is answered by
// the server with a full snapshot, so no client-side replay is needed.
type Client struct {
	opts   Options
	logger *logrus.Logger

	// OnMessage receives every server frame, including the snapshot
	// that follows each (re)connect.
	OnMessage func(protocol.ServerMessage)

	// mu guards conn, which Run's goroutine swaps on every
	// (re)connect while Send reads it from the caller's goroutine.
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) liveConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// New builds a client. Run must be called to connect.
func New(opts Options, logger *logrus.Logger) *Client {
	opts.defaults()
	return &Client{opts: opts, logger: logger}
}

// backoffDelay returns the pause before reconnect attempt n (0-based).
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Run connects and processes frames until the context is cancelled or
// the attempt budget is exhausted.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		if err := c.connectAndServe(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warnf("connection lost: %v", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempt++
		if c.opts.MaxAttempts > 0 && attempt >= c.opts.MaxAttempts {
			return fmt.Errorf("giving up after %d reconnect attempts", attempt)
		}

		delay := backoffDelay(c.opts.BaseDelay, c.opts.MaxDelay, attempt-1)
		c.logger.Infof("reconnecting in %s (attempt %d)", delay, attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (c *Client) connectAndServe(ctx context.Context) error {
	headers := map[string][]string{}
	if c.opts.AuthToken != "" {
		headers["Cookie"] = []string{"auth_token=" + c.opts.AuthToken}
	}

	conn, _, err := websocket.Dial(ctx, c.opts.URL, &websocket.DialOptions{
		Subprotocols: []string{"zhouyi"},
		HTTPHeader:   headers,
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	c.setConn(conn)
	defer func() {
		c.setConn(nil)
		conn.Close(websocket.StatusNormalClosure, "closing")
	}()

	hbCtx, hbCancel := context.WithCancel(ctx)
	defer hbCancel()
	go c.heartbeatLoop(hbCtx, conn)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var msg protocol.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warnf("discarding unparseable server frame: %v", err)
			continue
		}
		if c.OnMessage != nil {
			c.OnMessage(msg)
		}
	}
}

func (c *Client) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, _ := json.Marshal(map[string]any{"action": protocol.ActionHeartbeat})
			if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
				return
			}
		}
	}
}

// Send submits one action envelope on the live connection. Safe to call
// from any goroutine while Run is connecting and reconnecting.
func (c *Client) Send(ctx context.Context, action string, cardID, target uuid.UUID, side, question string) error {
	conn := c.liveConn()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	data := map[string]any{}
	if cardID != uuid.Nil {
		data["card_id"] = cardID.String()
	}
	if target != uuid.Nil {
		data["target_id"] = target.String()
	}
	if side != "" {
		data["side"] = side
	}
	if question != "" {
		data["question"] = question
	}

	frame, err := json.Marshal(map[string]any{
		"action":    action,
		"data":      data,
		"timestamp": time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, frame)
}
