/*
Package chatclient is the client side of the chat relay.

The Manager owns one connection to the server at a time. It sends the join
frame first on every fresh connection, gates outbound frames on the open state,
and retries a failed connection a bounded number of times with a fixed delay.
Everything the UI needs to know arrives on the Events channel.
*/
package chatclient

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"relaychat/internal/app/protocol"
	"relaychat/internal/app/user"
	"relaychat/internal/pkg/errs"
	"relaychat/internal/pkg/logx"
)

const (
	// DefaultMaxAttempts is the number of retries after the first failure.
	DefaultMaxAttempts = 5

	// DefaultReconnectDelay is the fixed wait before each retry.
	DefaultReconnectDelay = 3 * time.Second

	// DefaultHandshakeTimeout bounds a single dial.
	DefaultHandshakeTimeout = 10 * time.Second

	eventBuffer = 256
)

// Config configures a Manager.
type Config struct {
	// URL is the relay WebSocket endpoint, e.g. ws://localhost:8080/ws.
	URL string

	// Identity is announced in the join frame and stamped on outbound frames.
	Identity user.Identity

	MaxAttempts      int
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration

	// Dialer and Schedule default to WebSocketDialer and AfterFunc.
	Dialer   Dialer
	Schedule Scheduler
}

// Manager is the client connection state machine. It is safe for concurrent use.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	state   State
	attempt int

	// gen identifies the current connection. Callbacks carrying an older
	// generation belong to a superseded connection and are ignored.
	gen uint64

	transport  Transport
	cancelDial context.CancelFunc
	stopTimer  func() bool
	closed     bool

	// writeMu serializes writes to the transport.
	writeMu sync.Mutex

	events chan Event
	logger zerolog.Logger
}

// New validates cfg, fills in defaults and returns an idle Manager.
func New(cfg Config) (*Manager, error) {
	if strings.TrimSpace(cfg.URL) == "" || !cfg.Identity.Valid() {
		return nil, errs.NewError(errs.ErrInvalidParams)
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.Dialer == nil {
		cfg.Dialer = WebSocketDialer{HandshakeTimeout: cfg.HandshakeTimeout}
	}
	if cfg.Schedule == nil {
		cfg.Schedule = AfterFunc
	}

	return &Manager{
		cfg:    cfg,
		state:  StateIdle,
		events: make(chan Event, eventBuffer),
		logger: logx.Component("chatclient").With().Str("user_id", cfg.Identity.UserID).Logger(),
	}, nil
}

// Events returns the channel on which the Manager reports frames and state changes.
// It is closed by Close.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempt returns the number of retries since the last successful open.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Connect starts a connection. From Closed the retry budget is reset; from
// Reconnecting the pending retry is cancelled and the dial happens now.
// It is a no-op while Connecting or Open.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	switch m.state {
	case StateConnecting, StateOpen:
		return
	case StateClosed:
		m.attempt = 0
	case StateReconnecting:
		m.cancelTimerLocked()
		m.logger.Debug().Int("attempt", m.attempt).Msg("Manual connect cancelled pending retry.")
	}

	m.beginDialLocked()
}

// Disconnect closes the connection without scheduling a retry.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.disconnectLocked()
}

// Close disconnects and closes the Events channel. The Manager cannot be reused.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.disconnectLocked()
	m.closed = true
	close(m.events)
}

// SendOption customizes an outbound chat message.
type SendOption func(*protocol.MessageFrame)

// WithEncrypted attaches an end-to-end encrypted payload. The relay forwards both values untouched.
func WithEncrypted(ciphertext, senderPublicKey string) SendOption {
	return func(f *protocol.MessageFrame) {
		f.Encrypted = ciphertext
		f.SenderPublicKey = senderPublicKey
	}
}

// SendMessage sends a chat message. It fails with ErrEmptyText for blank text
// and ErrNotConnected unless the Manager is open. Nothing is queued.
func (m *Manager) SendMessage(text string, opts ...SendOption) error {
	if strings.TrimSpace(text) == "" {
		return errs.NewError(errs.ErrEmptyText)
	}

	frame := protocol.NewMessage(m.cfg.Identity, text)
	for _, opt := range opts {
		opt(&frame)
	}

	return m.send(frame)
}

// SendTyping sends the local user's typing status.
func (m *Manager) SendTyping(isTyping bool) error {
	return m.send(protocol.NewTyping(m.cfg.Identity, isTyping))
}

func (m *Manager) send(frame any) error {
	m.mu.Lock()
	state, t := m.state, m.transport
	m.mu.Unlock()

	if state != StateOpen || t == nil {
		m.logger.Warn().Str("state", state.String()).Msg("Dropping outbound frame; not connected.")
		return errs.NewError(errs.ErrNotConnected)
	}

	raw, err := protocol.Encode(frame)
	if err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := t.WriteMessage(websocket.TextMessage, raw); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to write frame.")
		return errs.NewError(errs.ErrSendFailure, "server")
	}

	return nil
}

// beginDialLocked starts a new connection generation and dials in the background.
func (m *Manager) beginDialLocked() {
	m.gen++
	gen := m.gen

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
	m.cancelDial = cancel
	m.state = StateConnecting

	m.logger.Info().Int("attempt", m.attempt).Str("url", m.cfg.URL).Msg("Connecting to relay.")
	m.emitLocked(StatusEvent{State: StateConnecting, Attempt: m.attempt})

	go m.dial(ctx, cancel, gen)
}

func (m *Manager) dial(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	t, err := m.cfg.Dialer.Dial(ctx, m.cfg.URL)
	cancel()

	m.mu.Lock()

	if gen != m.gen {
		m.mu.Unlock()
		if t != nil {
			_ = t.Close()
		}
		return
	}

	m.cancelDial = nil

	if err != nil {
		m.failLocked(errs.NewError(errs.ErrTransport, err))
		m.mu.Unlock()
		return
	}

	m.transport = t
	m.attempt = 0
	m.state = StateOpen

	// Taking writeMu before releasing mu keeps every SendMessage behind the join.
	m.writeMu.Lock()
	m.mu.Unlock()

	joinErr := m.writeJoin(t)
	m.writeMu.Unlock()

	if joinErr != nil {
		// The read loop observes the closed transport and takes the failure path.
		m.logger.Warn().Err(joinErr).Msg("Failed to send join frame.")
		_ = t.Close()
	} else {
		m.mu.Lock()
		if gen == m.gen {
			m.logger.Info().Msg("Connected to relay.")
			m.emitLocked(StatusEvent{State: StateOpen})
		}
		m.mu.Unlock()
	}

	m.readLoop(t, gen)
}

func (m *Manager) writeJoin(t Transport) error {
	raw, err := protocol.Encode(protocol.NewJoin(m.cfg.Identity))
	if err != nil {
		return err
	}
	return t.WriteMessage(websocket.TextMessage, raw)
}

func (m *Manager) readLoop(t Transport, gen uint64) {
	for {
		_, raw, err := t.ReadMessage()
		if err != nil {
			m.handleClose(gen, err)
			return
		}

		m.handleFrame(gen, raw)
	}
}

// handleClose takes the failure path for the current connection.
func (m *Manager) handleClose(gen uint64, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return
	}

	if m.transport != nil {
		_ = m.transport.Close()
		m.transport = nil
	}

	m.failLocked(errs.NewError(errs.ErrTransport, cause))
}

// failLocked schedules a retry while the budget lasts, otherwise enters Closed.
// The timer is registered before the status event is emitted.
func (m *Manager) failLocked(cause error) {
	if m.attempt < m.cfg.MaxAttempts {
		m.attempt++
		m.state = StateReconnecting

		gen := m.gen
		m.stopTimer = m.cfg.Schedule(m.cfg.ReconnectDelay, func() { m.retry(gen) })

		m.logger.Warn().
			Err(cause).
			Int("attempt", m.attempt).
			Int("max_attempts", m.cfg.MaxAttempts).
			Dur("delay", m.cfg.ReconnectDelay).
			Msg("Connection lost; retry scheduled.")
		m.emitLocked(StatusEvent{State: StateReconnecting, Attempt: m.attempt, Err: cause})
		return
	}

	m.state = StateClosed
	exhausted := errs.NewError(errs.ErrReconnectExhausted, m.cfg.MaxAttempts)

	m.logger.Error().Err(cause).Int("attempt", m.attempt).Msg("Giving up on relay connection.")
	m.emitLocked(StatusEvent{State: StateClosed, Attempt: m.attempt, Err: exhausted})
}

func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.state != StateReconnecting {
		return
	}

	m.stopTimer = nil
	m.beginDialLocked()
}

func (m *Manager) disconnectLocked() {
	m.gen++
	m.cancelTimerLocked()

	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}

	if m.transport != nil {
		_ = m.transport.Close()
		m.transport = nil
	}

	m.attempt = 0

	if m.state != StateIdle {
		m.state = StateIdle
		m.logger.Info().Msg("Disconnected from relay.")
		m.emitLocked(StatusEvent{State: StateIdle})
	}
}

func (m *Manager) cancelTimerLocked() {
	if m.stopTimer != nil {
		m.stopTimer()
		m.stopTimer = nil
	}
}

// handleFrame turns an inbound frame into an event. Welcome frames and
// unknown types are logged only.
func (m *Manager) handleFrame(gen uint64, raw []byte) {
	typ, err := protocol.Peek(raw)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Dropping undecodable frame.")
		return
	}

	var ev Event

	switch typ {
	case protocol.TypeMessage:
		f, err := protocol.DecodeMessage(raw)
		if err != nil {
			m.logger.Debug().Err(err).Msg("Dropping malformed message frame.")
			return
		}
		ev = MessageEvent{Message: f}

	case protocol.TypeUserList:
		f, err := protocol.DecodeUserList(raw)
		if err != nil {
			m.logger.Debug().Err(err).Msg("Dropping malformed userList frame.")
			return
		}
		ev = PresenceEvent{Users: f.Users, Count: f.Count}

	case protocol.TypeTyping:
		f, err := protocol.DecodeTyping(raw)
		if err != nil {
			m.logger.Debug().Err(err).Msg("Dropping malformed typing frame.")
			return
		}
		ev = TypingEvent{UserID: f.UserID, Username: f.Username, IsTyping: f.IsTyping}

	case protocol.TypeConnection:
		f, err := protocol.DecodeConnection(raw)
		if err == nil {
			m.logger.Info().Str("message", f.Message).Int("connected", f.ConnectedUsers).Msg("Server greeting received.")
		}
		return

	default:
		m.logger.Debug().Str("frame_type", string(typ)).Msg("Ignoring unrecognized frame type.")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen == m.gen {
		m.emitLocked(ev)
	}
}

// emitLocked delivers ev without blocking. Events are dropped when the UI falls behind.
func (m *Manager) emitLocked(ev Event) {
	if m.closed {
		return
	}

	select {
	case m.events <- ev:
	default:
		m.logger.Warn().Msg("Event buffer full; dropping event.")
	}
}
