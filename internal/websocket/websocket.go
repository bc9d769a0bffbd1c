package websocket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrEchoMismatch is returned when the reply to a round trip differs from the
// frame that was sent.
var ErrEchoMismatch = errors.New("echo reply does not match payload")

// Message represents a WebSocket message to send or receive.
type Message struct {
	Type int // websocket.TextMessage or websocket.BinaryMessage
	Data []byte
}

// Metrics captures WebSocket-specific performance data.
type Metrics struct {
	ConnectionDuration time.Duration
	MessagesSent       int64
	MessagesReceived   int64
	BytesSent          int64
	BytesReceived      int64
	Errors             int64
}

// Client is a single WebSocket connection. Round trips on one client are
// serialized.
type Client struct {
	url          string
	headers      http.Header
	dialer       *websocket.Dialer
	maxMsgSize   int64
	verifyEcho   bool
	conn         *websocket.Conn
	mu           sync.Mutex
	connectTime  time.Time
	messagesSent int64
	messagesRecv int64
	bytesSent    int64
	bytesRecv    int64
	errors       int64
}

// Config configures the WebSocket client behavior.
type Config struct {
	URL              string
	Headers          http.Header
	HandshakeTimeout time.Duration
	MaxMessageSize   int64
	// VerifyEcho compares each reply with the frame sent.
	VerifyEcho bool
}

// NewClient creates a new WebSocket client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 30 * time.Second
	}

	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 4 * 1024 * 1024
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	return &Client{
		url:        cfg.URL,
		headers:    cfg.Headers,
		dialer:     dialer,
		maxMsgSize: cfg.MaxMessageSize,
		verifyEcho: cfg.VerifyEcho,
	}
}

// Connect establishes a WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.url, c.headers)
	if err != nil {
		c.errors++
		if resp != nil {
			return fmt.Errorf("websocket dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	conn.SetReadLimit(c.maxMsgSize)

	c.conn = conn
	c.connectTime = time.Now()

	return nil
}

// Connected reports whether the client holds an open connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// RoundTrip sends msg and waits for one reply. The deadline of ctx bounds
// both the write and the read. After an error the connection is no longer
// usable and should be closed.
func (c *Client) RoundTrip(ctx context.Context, msg Message) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return Message{}, fmt.Errorf("not connected")
	}

	conn := c.conn
	deadline, _ := ctx.Deadline()
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	// Unblock the read when ctx is cancelled before its deadline.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.WriteMessage(msg.Type, msg.Data); err != nil {
		c.errors++
		return Message{}, c.wrapErr(ctx, "write message", err)
	}
	c.messagesSent++
	c.bytesSent += int64(len(msg.Data))

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		c.errors++
		return Message{}, c.wrapErr(ctx, "read message", err)
	}
	c.messagesRecv++
	c.bytesRecv += int64(len(data))

	reply := Message{Type: msgType, Data: data}
	if c.verifyEcho && (msgType != msg.Type || !bytes.Equal(data, msg.Data)) {
		c.errors++
		return reply, ErrEchoMismatch
	}
	return reply, nil
}

// wrapErr reports a context error in place of the i/o timeout it caused.
func (c *Client) wrapErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
		return fmt.Errorf("%s: %w", op, context.DeadlineExceeded)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Close closes the WebSocket connection gracefully.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	// Send close frame
	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(5*time.Second),
	)

	closeErr := c.conn.Close()
	c.conn = nil

	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}

	return closeErr
}

// Metrics returns the current metrics snapshot.
func (c *Client) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	duration := time.Duration(0)
	if !c.connectTime.IsZero() {
		duration = time.Since(c.connectTime)
	}

	return Metrics{
		ConnectionDuration: duration,
		MessagesSent:       c.messagesSent,
		MessagesReceived:   c.messagesRecv,
		BytesSent:          c.bytesSent,
		BytesReceived:      c.bytesRecv,
		Errors:             c.errors,
	}
}
