package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConfig describes a bridge that relays bootloader bytes in
// binary WebSocket messages, such as a network-attached serial adapter.
type WebSocketConfig struct {
	URL           string
	Header        http.Header
	SkipTLSVerify bool
	PacketSize    int
	ReadTimeout   time.Duration
	DialTimeout   time.Duration
}

// NewWebSocket returns a Transport that dials cfg.URL on Open.
func NewWebSocket(cfg WebSocketConfig) *Stream {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 15 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	open := func() (io.ReadWriteCloser, error) {
		return dialWebSocket(cfg)
	}
	return NewStream("websocket "+cfg.URL, open, cfg.PacketSize, cfg.ReadTimeout)
}

func dialWebSocket(cfg WebSocketConfig) (*wsConn, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.DialTimeout}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.SkipTLSVerify}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &wsConn{conn: conn, readTimeout: cfg.ReadTimeout}, nil
}

// wsConn turns a sequence of binary messages into a byte stream.
type wsConn struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	buf         []byte
	closed      bool
}

func (w *wsConn) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	if len(w.buf) > 0 {
		n := copy(p, w.buf)
		w.buf = w.buf[n:]
		return n, nil
	}

	if w.readTimeout > 0 {
		_ = w.conn.SetReadDeadline(time.Now().Add(w.readTimeout))
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return 0, ErrReadTimeout
			}
			return 0, err
		}

		// Text frames carry bridge status, not bootloader bytes
		if messageType != websocket.BinaryMessage {
			continue
		}

		n := copy(p, data)
		w.buf = data[n:]
		return n, nil
	}
}

func (w *wsConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsConn) Close() error {
	w.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.conn.Close()
}
