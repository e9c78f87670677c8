/*
Package relay contains the server side of the chat relay.

This file defines the Session, the per-connection state that binds an
identity on join, feeds inbound frames to the Router and settles presence
when the connection closes.
*/
package relay

import (
	"github.com/rs/zerolog"

	"relaychat/internal/app/protocol"
	"relaychat/internal/app/user"
)

// Session is the server-side state of one connection.
type Session struct {
	peer   Peer
	router *Router

	// identity is nil until a join frame arrives. There is no join deadline.
	identity *user.Identity

	closed bool
	logger zerolog.Logger
}

// NewSession returns a Session for peer that dispatches through router.
func NewSession(peer Peer, router *Router) *Session {
	return &Session{
		peer:   peer,
		router: router,
		logger: router.logger.With().Str("peer_id", peer.ID()).Logger(),
	}
}

// Peer returns the connection handle of the session.
func (s *Session) Peer() Peer {
	return s.peer
}

// Identity returns the bound identity, if any.
func (s *Session) Identity() (user.Identity, bool) {
	if s.identity == nil {
		return user.Identity{}, false
	}
	return *s.identity, true
}

// bind attaches id to the session, replacing any earlier identity.
func (s *Session) bind(id user.Identity) {
	s.identity = &id
	s.logger = s.logger.With().Str("user_id", id.UserID).Logger()
}

// HandleFrame decodes raw and dispatches it. A frame that cannot be parsed is
// logged and dropped; the connection stays open and nothing is sent back.
func (s *Session) HandleFrame(raw []byte) {
	if s.closed {
		return
	}

	typ, err := protocol.Peek(raw)
	if err != nil {
		s.logger.Warn().Err(err).Int("frame_bytes", len(raw)).Msg("Dropping undecodable frame.")
		return
	}

	s.router.Dispatch(s, typ, raw)
}

// Close settles presence for a closed connection. A session that joined
// triggers exactly one presence announcement; one that never joined triggers none.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	if s.identity == nil {
		s.logger.Debug().Msg("Connection closed without joining.")
		return
	}

	removed := s.router.registry.Unregister(s.peer)

	s.logger.Info().
		Int("unregistered", removed).
		Int("joined", s.router.registry.Joined()).
		Msg("User left.")

	s.router.presence.Announce()
}
