/*
Package relay contains the server side of the chat relay.

This file defines the Hub, the single broadcast domain shared by all connections.
Its Run loop is the only goroutine that touches the Registry, the Sessions and the
Broadcaster, so every connect, frame and disconnect runs to completion before the
next one is processed.
*/
package relay

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"relaychat/internal/app/protocol"
	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
)

// inboundBuffer is the capacity of the queue between the read pumps and the hub.
const inboundBuffer = 1024

// inboundFrame is a raw frame read from a connection, or its end of stream.
// Both travel on one queue so a connection's last frames are handled before its close.
type inboundFrame struct {
	peer Peer
	raw  []byte
	eof  bool
}

// Hub owns the presence state and serializes all work on it.
type Hub struct {
	registry *Registry
	presence *Broadcaster
	router   *Router

	// sessions maps each open connection to its Session.
	sessions map[Peer]*Session

	connect chan Peer
	inbound chan inboundFrame

	// queries carries read-only presence requests.
	queries chan chan Presence

	// stopChan is closed by Stop; done is closed when Run returns.
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger zerolog.Logger
}

// NewHub constructs a Hub. Call Run in its own goroutine before use.
func NewHub() *Hub {
	logger := logx.Component("hub")

	registry := NewRegistry()
	presence := NewBroadcaster(registry, logger)

	return &Hub{
		registry: registry,
		presence: presence,
		router:   NewRouter(registry, presence, logger),
		sessions: make(map[Peer]*Session),
		connect:  make(chan Peer),
		inbound:  make(chan inboundFrame, inboundBuffer),
		queries:  make(chan chan Presence),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Run processes connects, frames and disconnects until Stop is called.
func (h *Hub) Run() {
	defer close(h.done)
	defer h.closeAll()

	h.logger.Info().Msg("Hub loop started.")

	for {
		select {
		case p := <-h.connect:
			h.handleConnect(p)

		case in := <-h.inbound:
			if in.eof {
				h.handleDisconnect(in.peer)
			} else {
				h.handleFrame(in)
			}

		case reply := <-h.queries:
			reply <- h.registry.Snapshot()

		case <-h.stopChan:
			h.logger.Info().Msg("Hub stop requested.")
			return
		}
	}
}

// Connect registers a newly opened connection. It returns once the hub has
// processed it, or ErrHubStopped if the hub is shutting down.
func (h *Hub) Connect(p Peer) error {
	select {
	case h.connect <- p:
		return nil
	case <-h.stopChan:
		return errs.NewError(errs.ErrHubStopped)
	}
}

// Deliver queues a raw inbound frame from p.
func (h *Hub) Deliver(p Peer, raw []byte) error {
	select {
	case h.inbound <- inboundFrame{peer: p, raw: raw}:
		return nil
	case <-h.stopChan:
		return errs.NewError(errs.ErrHubStopped)
	}
}

// Disconnect reports that p has closed. Reporting the same connection twice is harmless.
func (h *Hub) Disconnect(p Peer) {
	select {
	case h.inbound <- inboundFrame{peer: p, eof: true}:
	case <-h.stopChan:
	}
}

// Presence returns the current presence as seen by the hub loop.
func (h *Hub) Presence(ctx context.Context) (Presence, error) {
	reply := make(chan Presence, 1)

	select {
	case h.queries <- reply:
	case <-h.stopChan:
		return Presence{}, errs.NewError(errs.ErrHubStopped)
	case <-ctx.Done():
		return Presence{}, ctx.Err()
	}

	select {
	case p := <-reply:
		return p, nil
	case <-ctx.Done():
		return Presence{}, ctx.Err()
	}
}

// Stop ends the Run loop and closes every connection. It is safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
}

// Done is closed once the Run loop has exited.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) handleConnect(p Peer) {
	if _, exists := h.sessions[p]; exists {
		h.logger.Warn().Str("peer_id", p.ID()).Msg("Ignoring duplicate connect.")
		return
	}

	h.registry.Attach(p)
	h.sessions[p] = NewSession(p, h.router)

	connected := len(h.sessions)
	h.logger.Info().Str("peer_id", p.ID()).Int("connections", connected).Msg("Connection opened.")

	welcome, err := protocol.Encode(protocol.NewConnection(connected))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode connection frame.")
		return
	}

	if err := p.Send(welcome); err != nil {
		h.logger.Warn().Err(err).Str("peer_id", p.ID()).Msg("Failed to send connection frame.")
	}
}

func (h *Hub) handleFrame(in inboundFrame) {
	session, ok := h.sessions[in.peer]
	if !ok {
		h.logger.Debug().Str("peer_id", in.peer.ID()).Msg("Dropping frame from closed connection.")
		return
	}

	session.HandleFrame(in.raw)
}

func (h *Hub) handleDisconnect(p Peer) {
	session, ok := h.sessions[p]
	if !ok {
		return
	}

	delete(h.sessions, p)
	h.registry.Detach(p)

	session.Close()
	p.Close()

	h.logger.Info().Str("peer_id", p.ID()).Int("connections", len(h.sessions)).Msg("Connection closed.")
}

// closeAll closes every remaining connection without announcing presence.
func (h *Hub) closeAll() {
	for p := range h.sessions {
		p.Close()
		h.registry.Detach(p)
		delete(h.sessions, p)
	}

	h.logger.Info().Msg("Hub loop finished; all connections closed.")
}
