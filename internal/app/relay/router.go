/*
Package relay contains the server side of the chat relay.

This file defines the Router, which classifies inbound frames by type and
dispatches them to join handling, chat relay or typing relay.
*/
package relay

import (
	"time"

	"github.com/rs/zerolog"

	"relaychat/internal/app/protocol"
)

// Router dispatches decoded frames to their fan-out behavior.
type Router struct {
	registry *Registry
	presence *Broadcaster

	// now stamps relayed chat messages.
	now func() time.Time

	logger zerolog.Logger
}

// NewRouter returns a Router that registers joins in registry and announces through presence.
func NewRouter(registry *Registry, presence *Broadcaster, logger zerolog.Logger) *Router {
	return &Router{
		registry: registry,
		presence: presence,
		now:      time.Now,
		logger:   logger,
	}
}

// Dispatch handles one frame of type typ received on session s.
// Unrecognized types are ignored.
func (r *Router) Dispatch(s *Session, typ protocol.FrameType, raw []byte) {
	switch typ {
	case protocol.TypeJoin:
		r.handleJoin(s, raw)

	case protocol.TypeMessage:
		r.handleMessage(s, raw)

	case protocol.TypeTyping:
		r.handleTyping(s, raw)

	default:
		s.logger.Debug().Str("frame_type", string(typ)).Msg("Ignoring unrecognized frame type.")
	}
}

// handleJoin binds the asserted identity, registers it and announces presence.
// A malformed join is logged and ignored; the connection stays open.
func (r *Router) handleJoin(s *Session, raw []byte) {
	join, err := protocol.DecodeJoin(raw)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Ignoring malformed join frame.")
		return
	}

	id := join.Identity()
	s.bind(id)
	r.registry.Register(id.UserID, s.peer)

	s.logger.Info().
		Str("user_id", id.UserID).
		Str("username", id.DisplayName).
		Int("joined", r.registry.Joined()).
		Msg("User joined.")

	r.presence.Announce()
}

// handleMessage stamps a chat message with the server time and relays it to
// every open connection, the sender included. Malformed frames are dropped.
func (r *Router) handleMessage(s *Session, raw []byte) {
	msg, err := protocol.DecodeMessage(raw)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Dropping malformed message frame.")
		return
	}

	msg.Type = protocol.TypeMessage
	msg.Timestamp = protocol.Timestamp(r.now())

	frame, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode message frame.")
		return
	}

	delivered := r.presence.FanOut(frame)
	s.logger.Debug().Str("user_id", msg.UserID).Int("delivered", delivered).Msg("Message relayed.")
}

// handleTyping relays typing status unchanged to every open connection.
func (r *Router) handleTyping(s *Session, raw []byte) {
	typing, err := protocol.DecodeTyping(raw)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Dropping malformed typing frame.")
		return
	}

	frame, err := protocol.Encode(typing)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode typing frame.")
		return
	}

	r.presence.FanOut(frame)
}
