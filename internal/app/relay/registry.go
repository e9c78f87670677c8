/*
Package relay contains the server side of the chat relay: presence bookkeeping,
frame routing, fan-out and the per-connection WebSocket transport.

This file defines the Peer handle and the Registry, which tracks every open
transport connection and the user IDs bound to them by join frames. The Registry
is not safe for concurrent use; the Hub goroutine owns it.
*/
package relay

// Peer is the server's handle for one open transport connection.
type Peer interface {
	// ID uniquely names the connection for logging.
	ID() string

	// Send queues a frame for delivery without blocking.
	Send(frame []byte) error

	// IsOpen reports whether the connection can still accept frames.
	IsOpen() bool

	// Close releases the connection. It must be safe to call more than once.
	Close()
}

// Presence is a point-in-time view of the registry.
type Presence struct {
	// Users lists joined user IDs in first-join order.
	Users []string `json:"users"`

	// Count is the number of open transport connections, joined or not.
	Count int `json:"count"`
}

// Registry maps user IDs to connections and tracks all open connections.
type Registry struct {
	// order keeps user IDs in first-registration order.
	order []string

	// users maps a user ID to the connection that last joined with it.
	users map[string]Peer

	// conns holds every open transport connection.
	conns map[Peer]struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]Peer),
		conns: make(map[Peer]struct{}),
	}
}

// Attach records a newly opened transport connection.
func (r *Registry) Attach(p Peer) {
	r.conns[p] = struct{}{}
}

// Detach forgets a closed transport connection. It does not touch user IDs.
func (r *Registry) Detach(p Peer) {
	delete(r.conns, p)
}

// Register binds userID to p. An existing binding for userID is overwritten
// and keeps its position; the previous connection stays open but unlisted.
func (r *Registry) Register(userID string, p Peer) {
	if _, exists := r.users[userID]; !exists {
		r.order = append(r.order, userID)
	}
	r.users[userID] = p
}

// Unregister removes every user ID bound to p and returns how many were removed.
// Calling it again for the same connection is a no-op.
func (r *Registry) Unregister(p Peer) int {
	removed := 0

	kept := r.order[:0]
	for _, userID := range r.order {
		if r.users[userID] == p {
			delete(r.users, userID)
			removed++
			continue
		}
		kept = append(kept, userID)
	}
	clear(r.order[len(kept):])
	r.order = kept

	return removed
}

// Lookup returns the connection bound to userID.
func (r *Registry) Lookup(userID string) (Peer, bool) {
	p, ok := r.users[userID]
	return p, ok
}

// Joined returns the number of registered user IDs.
func (r *Registry) Joined() int {
	return len(r.users)
}

// Snapshot returns the ordered user IDs and the open connection count.
func (r *Registry) Snapshot() Presence {
	users := make([]string, len(r.order))
	copy(users, r.order)

	return Presence{Users: users, Count: len(r.conns)}
}

// Connections returns the open connections at the time of the call.
func (r *Registry) Connections() []Peer {
	peers := make([]Peer, 0, len(r.conns))
	for p := range r.conns {
		peers = append(peers, p)
	}
	return peers
}
