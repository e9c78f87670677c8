package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakePeer records every frame it is sent.
type fakePeer struct {
	id string

	mu       sync.Mutex
	open     bool
	failSend bool
	closed   int
	frames   [][]byte
	notify   chan struct{}
}

func newFakePeer(id string) *fakePeer {
	return &fakePeer{id: id, open: true, notify: make(chan struct{}, 64)}
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failSend {
		return errors.New("send queue full")
	}
	p.frames = append(p.frames, frame)

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return nil
}

func (p *fakePeer) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	p.closed++
}

func (p *fakePeer) setOpen(open bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = open
}

func (p *fakePeer) setFailSend(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failSend = fail
}

func (p *fakePeer) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// received returns the decoded frames of the given type.
func (p *fakePeer) received(t *testing.T, typ string) []map[string]any {
	t.Helper()

	p.mu.Lock()
	defer p.mu.Unlock()

	var out []map[string]any
	for _, raw := range p.frames {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatalf("Peer %s received invalid JSON %q: %v", p.id, raw, err)
		}
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

// newTestRouter wires a registry, broadcaster and router with a silent logger.
func newTestRouter() (*Registry, *Router) {
	registry := NewRegistry()
	presence := NewBroadcaster(registry, zerolog.Nop())
	return registry, NewRouter(registry, presence, zerolog.Nop())
}

// openSession attaches a peer the way the Hub does and returns its session.
func openSession(registry *Registry, router *Router, p *fakePeer) *Session {
	registry.Attach(p)
	return NewSession(p, router)
}

func users(t *testing.T, frame map[string]any) []string {
	t.Helper()

	raw, ok := frame["users"].([]any)
	if !ok {
		t.Fatalf("userList frame without users array: %v", frame)
	}

	out := make([]string, 0, len(raw))
	for _, u := range raw {
		out = append(out, u.(string))
	}
	return out
}

func count(frame map[string]any) int {
	n, _ := frame["count"].(float64)
	return int(n)
}
