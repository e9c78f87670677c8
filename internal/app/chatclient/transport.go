package chatclient

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is one open connection to the relay. *websocket.Conn satisfies it.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a Transport to url.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// WebSocketDialer dials the relay with gorilla/websocket.
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
	Header           http.Header
}

// Dial performs the WebSocket handshake.
func (d WebSocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// Scheduler runs f once after d and returns a function that cancels it.
// The cancel function reports whether f was prevented from running.
type Scheduler func(d time.Duration, f func()) (stop func() bool)

// AfterFunc is the default Scheduler, backed by time.AfterFunc.
func AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
