package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

var errRefused = errors.New("connection refused")

// fakeTransport is an in-memory connection driven by the test.
type fakeTransport struct {
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once

	// readerDone is closed when ReadMessage returns an error.
	readerDone chan struct{}
	readerOnce sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound:    make(chan []byte, 16),
		closed:     make(chan struct{}),
		readerDone: make(chan struct{}),
	}
}

func (t *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case raw := <-t.inbound:
		return 1, raw, nil
	case <-t.closed:
		t.readerOnce.Do(func() { close(t.readerDone) })
		return 0, nil, io.EOF
	}
}

func (t *fakeTransport) WriteMessage(_ int, data []byte) error {
	select {
	case <-t.closed:
		return io.ErrClosedPipe
	default:
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.written = append(t.written, data)
	return nil
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) push(raw string) {
	t.inbound <- []byte(raw)
}

func (t *fakeTransport) frames(tb testing.TB) []map[string]any {
	tb.Helper()

	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]map[string]any, 0, len(t.written))
	for _, raw := range t.written {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			tb.Fatalf("Invalid frame written: %q", raw)
		}
		out = append(out, m)
	}
	return out
}

// fakeDialer hands out scripted results in order, then refuses.
type fakeDialer struct {
	mu     sync.Mutex
	dials  int
	script []*fakeTransport
}

// Dial returns the next scripted transport; a nil entry is a refused handshake.
func (d *fakeDialer) Dial(_ context.Context, _ string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++

	if len(d.script) == 0 {
		return nil, errRefused
	}

	next := d.script[0]
	d.script = d.script[1:]

	if next == nil {
		return nil, errRefused
	}
	return next, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type fakeTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
}

// fakeScheduler records timers; the test fires them explicitly.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) schedule(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer := &fakeTimer{delay: d, f: f}
	s.timers = append(s.timers, timer)

	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()

		wasPending := !timer.stopped
		timer.stopped = true
		return wasPending
	}
}

// fire runs the most recently scheduled timer, as the clock would.
func (s *fakeScheduler) fire(t *testing.T) {
	t.Helper()

	s.mu.Lock()
	if len(s.timers) == 0 {
		s.mu.Unlock()
		t.Fatal("No timer scheduled")
	}
	timer := s.timers[len(s.timers)-1]
	if timer.stopped {
		s.mu.Unlock()
		t.Fatal("Latest timer was cancelled")
	}
	timer.stopped = true
	s.mu.Unlock()

	timer.f()
}

// fireStale runs the latest timer even if it was cancelled, as a late time.AfterFunc could.
func (s *fakeScheduler) fireStale() {
	s.mu.Lock()
	timer := s.timers[len(s.timers)-1]
	s.mu.Unlock()

	timer.f()
}

func (s *fakeScheduler) snapshot() []fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]fakeTimer, 0, len(s.timers))
	for _, timer := range s.timers {
		out = append(out, *timer)
	}
	return out
}

// nextEvent returns the next event or fails after a timeout.
func nextEvent(t *testing.T, m *Manager) Event {
	t.Helper()

	select {
	case ev, ok := <-m.Events():
		if !ok {
			t.Fatal("Events channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for event")
	}
	return nil
}

// expectStatus reads the next event and checks it is a status change to want.
func expectStatus(t *testing.T, m *Manager, want State, attempt int) StatusEvent {
	t.Helper()

	ev := nextEvent(t, m)
	status, ok := ev.(StatusEvent)
	if !ok {
		t.Fatalf("Expected StatusEvent(%s), got %#v", want, ev)
	}
	if status.State != want || status.Attempt != attempt {
		t.Fatalf("Expected %s attempt %d, got %s attempt %d (err=%v)",
			want, attempt, status.State, status.Attempt, status.Err)
	}
	return status
}

// expectNoEvent asserts that nothing is emitted for a short while.
func expectNoEvent(t *testing.T, m *Manager) {
	t.Helper()

	select {
	case ev := <-m.Events():
		t.Fatalf("Unexpected event %#v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
