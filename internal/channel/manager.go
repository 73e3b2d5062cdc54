package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/stagehand/internal/errors"
	"github.com/Iron-Ham/stagehand/internal/logging"
	"github.com/Iron-Ham/stagehand/internal/loop"
)

// State is the connection state of the channel.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateAbandoned    State = "abandoned"
)

// String returns the string representation of the state.
func (s State) String() string { return string(s) }

// Status is a snapshot reported on every state change.
type Status struct {
	State   State
	Attempt int           // consecutive failures so far
	Delay   time.Duration // wait before the next attempt, if one is scheduled
	Err     error
}

// HandlerFunc handles the data of one inbound message.
type HandlerFunc func(data json.RawMessage) error

// Config holds the reconnect policy.
type Config struct {
	URL         string
	BaseDelay   time.Duration
	MaxAttempts int
}

// Manager owns the channel and its reconnect policy. State changes and
// inbound dispatch happen on the scheduler.
type Manager struct {
	cfg    Config
	dialer Dialer
	sched  loop.Scheduler
	logger *logging.Logger

	mu       sync.Mutex
	writeMu  sync.Mutex
	state    State
	attempts int
	delay    time.Duration
	conn     Conn
	gen      uint64 // bumped whenever the current transport is discarded
	stopWait func()
	ctx      context.Context
	cancel   context.CancelFunc
	closed   bool

	handlers map[string]HandlerFunc
	onStatus func(Status)
}

// NewManager creates a disconnected Manager.
func NewManager(cfg Config, dialer Dialer, sched loop.Scheduler, logger *logging.Logger) *Manager {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		dialer:   dialer,
		sched:    sched,
		logger:   logger.WithChannel(cfg.URL),
		state:    StateDisconnected,
		ctx:      ctx,
		cancel:   cancel,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers the handler for an inbound message type, replacing any
// previous one.
func (m *Manager) Handle(msgType string, h HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[msgType] = h
}

// OnStatus sets the callback invoked on every state change.
func (m *Manager) OnStatus(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatus = fn
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the number of consecutive failures.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Delay returns the currently scheduled backoff delay.
func (m *Manager) Delay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delay
}

// BackoffDelay returns the wait after the k-th consecutive failure.
func BackoffDelay(base time.Duration, k int) time.Duration {
	if k < 1 {
		return 0
	}
	return base << (k - 1)
}

// Start begins connecting. It is a no-op unless the channel is
// disconnected.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.closed || m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.connect()
}

// Reconnect revives an abandoned channel with a fresh attempt budget.
func (m *Manager) Reconnect() {
	m.mu.Lock()
	if m.closed || m.state != StateAbandoned {
		m.mu.Unlock()
		return
	}
	m.attempts = 0
	m.delay = 0
	m.state = StateDisconnected
	m.mu.Unlock()
	m.connect()
}

func (m *Manager) connect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.stopWait = nil
	m.state = StateConnecting
	gen := m.gen
	st := m.statusLocked(nil)
	m.mu.Unlock()

	m.notify(st)
	m.logger.Debug("dialing channel", "attempt", st.Attempt+1)

	go func() {
		conn, err := m.dialer.Dial(m.ctx, m.cfg.URL)
		m.sched.Post(func() { m.dialed(gen, conn, err) })
	}()
}

func (m *Manager) dialed(gen uint64, conn Conn, err error) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		m.mu.Unlock()
		m.failed(err)
		return
	}

	m.conn = conn
	m.state = StateConnected
	m.attempts = 0
	m.delay = 0
	st := m.statusLocked(nil)
	m.mu.Unlock()

	m.logger.Info("channel connected")
	m.notify(st)
	go m.readLoop(gen, conn)
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			m.sched.Post(func() { m.lost(gen, err) })
			return
		}
		m.sched.Post(func() { m.dispatch(gen, env) })
	}
}

func (m *Manager) lost(gen uint64, err error) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.gen++
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.mu.Unlock()

	if IsNormalClosure(err) {
		m.logger.Info("channel closed by remote")
	} else {
		m.logger.Warn("channel lost", "error", err)
	}
	m.failed(err)
}

// failed records one consecutive failure and either schedules the next
// attempt or abandons the channel.
func (m *Manager) failed(cause error) {
	m.mu.Lock()
	m.attempts++
	if m.attempts >= m.cfg.MaxAttempts {
		m.state = StateAbandoned
		m.delay = 0
		err := errors.NewAbandonedError(m.cfg.URL, m.attempts, cause)
		st := m.statusLocked(err)
		m.mu.Unlock()

		m.logger.Error("giving up on channel", "attempts", st.Attempt, "error", cause)
		m.notify(st)
		return
	}

	m.state = StateConnecting
	m.delay = BackoffDelay(m.cfg.BaseDelay, m.attempts)
	err := errors.NewChannelError("connection failed", cause).WithURL(m.cfg.URL).WithAttempts(m.attempts)
	st := m.statusLocked(err)
	m.stopWait = m.sched.After(m.delay, m.connect)
	m.mu.Unlock()

	m.logger.Warn("channel retry scheduled", "attempt", st.Attempt, "delay", st.Delay, "error", cause)
	m.notify(st)
}

func (m *Manager) dispatch(gen uint64, env Envelope) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	h, ok := m.handlers[env.Type]
	m.mu.Unlock()

	if !ok {
		m.logger.Debug("no handler for channel message", "type", env.Type)
		return
	}
	if err := safeHandle(h, env.Data); err != nil {
		m.logger.Warn("channel handler failed", "type", env.Type, "error", err)
	}
}

func safeHandle(h HandlerFunc, data json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v\n%s", r, debug.Stack())
		}
	}()
	return h(data)
}

// Send writes an outbound message. It fails with errors.ErrNotConnected
// unless the channel is connected.
func (m *Manager) Send(msgType string, payload any) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return errors.NewChannelError("cannot send "+msgType, errors.ErrNotConnected).WithURL(m.cfg.URL)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "encode %s", msgType)
	}
	env := Envelope{Type: msgType, ID: uuid.NewString(), Data: data}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteJSON(env); err != nil {
		return errors.NewChannelError("send "+msgType, err).WithURL(m.cfg.URL)
	}
	return nil
}

// SendUserMessage sends free text from the user.
func (m *Manager) SendUserMessage(text string) error {
	return m.Send(TypeUserMessage, UserMessage{Text: text})
}

// SendAnswer replies to a question.
func (m *Manager) SendAnswer(questionID, text string) error {
	return m.Send(TypeAnswer, Answer{QuestionID: questionID, Text: text})
}

// SendNegotiate asks the service to start negotiating.
func (m *Manager) SendNegotiate(intent string) error {
	return m.Send(TypeNegotiate, NegotiateRequest{Intent: intent})
}

// Close shuts the channel down for good. Pending retries are cancelled and
// late transport callbacks are ignored.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.gen++
	m.state = StateDisconnected
	if m.stopWait != nil {
		m.stopWait()
		m.stopWait = nil
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	m.cancel()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (m *Manager) statusLocked(err error) Status {
	return Status{State: m.state, Attempt: m.attempts, Delay: m.delay, Err: err}
}

func (m *Manager) notify(st Status) {
	m.mu.Lock()
	fn := m.onStatus
	m.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}
