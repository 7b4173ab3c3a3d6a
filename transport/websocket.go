// Package transport connects the client's line streams to a game server,
// over a websocket or through an HTTP bridge.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig holds websocket dial settings
type WSConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration // 0 waits forever between server messages
	Header           http.Header
}

func DefaultWSConfig(url string) WSConfig {
	return WSConfig{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
	}
}

// LineConn presents a websocket as a line stream. Each text message read
// becomes one or more input lines; each line written is sent as its own
// text message.
type LineConn struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	pending     []byte

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// DialWebSocket connects to cfg.URL.
func DialWebSocket(ctx context.Context, cfg WSConfig) (*LineConn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return NewLineConn(conn, cfg.ReadTimeout), nil
}

func NewLineConn(conn *websocket.Conn, readTimeout time.Duration) *LineConn {
	return &LineConn{conn: conn, readTimeout: readTimeout}
}

// Read returns io.EOF once the server closes normally. Binary messages are
// skipped.
func (c *LineConn) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		if c.readTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		typ, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("read error: %w", err)
		}
		if typ != websocket.TextMessage {
			continue
		}
		if len(msg) == 0 || msg[len(msg)-1] != '\n' {
			msg = append(msg, '\n')
		}
		c.pending = msg
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write sends every line in p as a separate text message. A trailing
// partial line is sent as is.
func (c *LineConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	rest := p
	for len(rest) > 0 {
		line, tail, _ := bytes.Cut(rest, []byte{'\n'})
		rest = tail
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(line) == 0 {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, line); err != nil {
			return 0, fmt.Errorf("write error: %w", err)
		}
	}
	return len(p), nil
}

// Close says goodbye to the server and closes the socket. It is safe to call
// from another goroutine to unblock a pending Read.
func (c *LineConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
