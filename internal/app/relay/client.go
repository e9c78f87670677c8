/*
Package relay contains the server side of the chat relay.

This file defines the Client, the Peer implementation backed by a gorilla
WebSocket connection. It runs the read pump (frames into the Hub, throttled by a
per-connection token bucket) and the write pump (queued frames and keepalive pings out).
*/
package relay

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
	"relaychat/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed between two reads, extended by every Pong.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// capacity of the per-connection outbound queue.
	sendBuffer = 256

	// DefaultMaxMessageSize is the read limit used when ClientOptions leaves it unset.
	DefaultMaxMessageSize = 8192
)

// ClientOptions tunes a Client.
type ClientOptions struct {
	// MaxMessageSize is the largest inbound frame in bytes.
	MaxMessageSize int64

	// MessageRate and MessageBurst bound inbound frames per second.
	// A zero MessageRate disables throttling.
	MessageRate  rate.Limit
	MessageBurst int
}

// Client is one WebSocket connection to the relay.
// Send and Close are called by the Hub goroutine only.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	id   string

	// send queues frames for the write pump.
	send chan []byte

	open      atomic.Bool
	closeOnce sync.Once

	limiter        *rate.Limiter
	maxMessageSize int64

	logger zerolog.Logger
}

// NewClient wraps conn for hub.
func NewClient(hub *Hub, conn *websocket.Conn, opts ClientOptions) *Client {
	id := randx.PeerID()

	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = DefaultMaxMessageSize
	}

	c := &Client{
		hub:            hub,
		conn:           conn,
		id:             id,
		send:           make(chan []byte, sendBuffer),
		maxMessageSize: opts.MaxMessageSize,
		logger:         logx.Component("client").With().Str("peer_id", id).Logger(),
	}

	if opts.MessageRate > 0 {
		c.limiter = rate.NewLimiter(opts.MessageRate, max(opts.MessageBurst, 1))
	}

	c.open.Store(true)

	return c
}

// ID returns the connection's UUID.
func (c *Client) ID() string {
	return c.id
}

// IsOpen reports whether frames can still be queued.
func (c *Client) IsOpen() bool {
	return c.open.Load()
}

// Send queues frame without blocking. A full or closed queue is a send failure.
func (c *Client) Send(frame []byte) error {
	if !c.open.Load() {
		return errs.NewError(errs.ErrSendFailure, c.id)
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send queue full, dropping frame.")
		return errs.NewError(errs.ErrSendFailure, c.id)
	}
}

// Close stops accepting frames and lets the write pump send a close frame.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		close(c.send)
	})
}

// ReadPump reads frames until the connection fails, forwarding each to the Hub.
// It reports the disconnect to the Hub when it returns.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(c.maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.logger.Warn().Msg("Inbound rate limit exceeded; dropping frame.")
			continue
		}

		if err := c.hub.Deliver(c, raw); err != nil {
			c.logger.Info().Err(err).Msg("Hub stopped; ending read pump.")
			return
		}
	}
}

// logReadError classifies why the read loop ended. Every cause takes the same close path.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn().Int64("max_bytes", c.maxMessageSize).Msg("Frame exceeded maximum size; closing connection.")

	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.logger.Debug().Err(err).Msg("Client closed connection.")

	default:
		c.logger.Info().Err(errs.NewError(errs.ErrTransport, err)).Msg("Connection read failed.")
	}
}

func (c *Client) cleanupOnDisconnect() {
	c.hub.Disconnect(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close error")
	}
}

// WritePump drains the send queue to the connection and pings periodically.
// It returns when the queue is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.open.Store(false)

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedMessage(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage writes one frame, or a close frame once the queue is closed.
// It returns false when the pump should stop.
func (c *Client) writeQueuedMessage(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Info().Err(errs.NewError(errs.ErrTransport, err)).Msg("Error writing frame")
		return false
	}

	return true
}

func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Info().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
