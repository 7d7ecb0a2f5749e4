package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

// DefaultReadLimit bounds the size of a single inbound frame.
const DefaultReadLimit = 1 << 20

// WebSocket is a Transport over a single WebSocket connection. Each frame
// travels as one binary message.
type WebSocket struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// WebSocketOption configures a WebSocket.
type WebSocketOption func(*wsConfig)

type wsConfig struct {
	readLimit int64
}

// WithReadLimit sets the largest inbound frame in bytes. Larger frames end
// Run with websocket.ErrReadLimit.
func WithReadLimit(n int64) WebSocketOption {
	return func(c *wsConfig) {
		if n > 0 {
			c.readLimit = n
		}
	}
}

// DialWebSocket connects to url.
func DialWebSocket(ctx context.Context, url string, header http.Header, opts ...WebSocketOption) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewWebSocket(conn, opts...), nil
}

// NewWebSocket wraps an established connection, client or server side.
func NewWebSocket(conn *websocket.Conn, opts ...WebSocketOption) *WebSocket {
	cfg := wsConfig{readLimit: DefaultReadLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	conn.SetReadLimit(cfg.readLimit)
	return &WebSocket{conn: conn, closed: make(chan struct{})}
}

func (w *WebSocket) Send(frame []byte) error {
	select {
	case <-w.closed:
		return ErrClosed
	default:
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (w *WebSocket) Run(ctx context.Context, deliver func([]byte)) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			w.Close()
		case <-stop:
		}
	}()

	for {
		mt, data, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.closed:
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		deliver(data)
	}
}

func (w *WebSocket) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		w.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		w.writeMu.Unlock()
		if cerr := w.conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	})
	return err
}
