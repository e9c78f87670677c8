/*
Package relay contains the server side of the chat relay.

This file defines the Broadcaster, which fans frames out to every open
connection and announces presence after each membership change.
*/
package relay

import (
	"github.com/rs/zerolog"

	"relaychat/internal/app/protocol"
)

// Broadcaster serializes frames to every open connection in the registry.
type Broadcaster struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewBroadcaster returns a Broadcaster over registry.
func NewBroadcaster(registry *Registry, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, logger: logger}
}

// Announce sends the current presence to every open connection and returns
// the number of successful deliveries. Each call produces exactly one broadcast.
func (b *Broadcaster) Announce() int {
	snapshot := b.registry.Snapshot()

	frame, err := protocol.Encode(protocol.NewUserList(snapshot.Users, snapshot.Count))
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to encode userList frame.")
		return 0
	}

	delivered := b.FanOut(frame)

	b.logger.Debug().
		Int("joined", len(snapshot.Users)).
		Int("connections", snapshot.Count).
		Int("delivered", delivered).
		Msg("Presence announced.")

	return delivered
}

// FanOut sends frame to every connection that is still open. A failed send is
// logged and does not stop delivery to the remaining connections.
func (b *Broadcaster) FanOut(frame []byte) int {
	delivered := 0

	for _, p := range b.registry.Connections() {
		if !p.IsOpen() {
			continue
		}

		if err := p.Send(frame); err != nil {
			b.logger.Warn().
				Err(err).
				Str("peer_id", p.ID()).
				Msg("Fan-out to peer failed; continuing with remaining peers.")
			continue
		}

		delivered++
	}

	return delivered
}
