package bifaci

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketBridge is a NativeBridge over a websocket connection to the host.
// Each envelope travels as one text message.
type WebSocketBridge struct {
	conn   *websocket.Conn
	logger *slog.Logger

	wmu sync.Mutex

	mu        sync.RWMutex
	onMessage func([]byte)
}

// NewWebSocketBridge wraps an established connection.
func NewWebSocketBridge(conn *websocket.Conn, logger *slog.Logger) *WebSocketBridge {
	logger = orDiscard(logger)
	return &WebSocketBridge{conn: conn, logger: logger}
}

// DialWebSocketBridge connects to a host endpoint and wraps the connection.
func DialWebSocketBridge(ctx context.Context, url string, header http.Header, logger *slog.Logger) (*WebSocketBridge, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, &TransportError{Type: TransportErrorTypeNoHost, Message: err.Error(), Err: err}
	}
	return NewWebSocketBridge(conn, logger), nil
}

// FramelessPostMessage writes msg as a text message.
func (b *WebSocketBridge) FramelessPostMessage(msg string) error {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	return b.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// SetOnNativeMessage installs the inbound callback.
func (b *WebSocketBridge) SetOnNativeMessage(fn func(data []byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onMessage = fn
}

// Run reads messages until the connection closes or ctx is done. Cancelling
// ctx closes the connection. A normal close returns nil.
func (b *WebSocketBridge) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = b.conn.Close()
		case <-stop:
		}
	}()

	for {
		msgType, data, err := b.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if msgType != websocket.TextMessage {
			b.logger.Debug("dropped non-text websocket message", "type", msgType)
			continue
		}

		b.mu.RLock()
		fn := b.onMessage
		b.mu.RUnlock()
		if fn == nil {
			b.logger.Debug("dropped message, no native message handler")
			continue
		}
		fn(data)
	}
}

// Close sends a close frame and closes the connection.
func (b *WebSocketBridge) Close() error {
	b.wmu.Lock()
	_ = b.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	b.wmu.Unlock()
	return b.conn.Close()
}
