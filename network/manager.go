package network

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrClosed    = errors.New("network closed")
	ErrQueueFull = errors.New("network queue full")
)

// DefaultQueueSize is the number of inbound packages buffered between pumps.
const DefaultQueueSize = 256

// Transport moves encoded frames to and from a peer.
type Transport interface {
	// Send writes one frame. It must be safe to call concurrently with Run.
	Send(frame []byte) error
	// Run reads frames until ctx is done or the transport closes, passing
	// each to deliver on the calling goroutine.
	Run(ctx context.Context, deliver func(frame []byte)) error
	Close() error
}

// Option configures a Manager.
type Option func(*Manager)

// WithQueueSize sets the inbound queue capacity.
func WithQueueSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.queueSize = n
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// Manager routes packages between a Transport and subscribers on the host's
// logic thread. Subscribe, SendMessage and Pump must be called from that
// thread; only the transport's read loop runs elsewhere.
type Manager struct {
	transport Transport
	queueSize int
	logger    *zap.Logger
	inbox     chan Package

	hotfix []func(Package)
	core   []func(Package)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
	started bool
	closed  bool
}

// NewManager creates a Manager over t.
func NewManager(t Transport, opts ...Option) *Manager {
	m := &Manager{
		transport: t,
		queueSize: DefaultQueueSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.inbox = make(chan Package, m.queueSize)
	return m
}

// SubscribeHotfix registers fn for inbound hotfix packages.
func (m *Manager) SubscribeHotfix(fn func(Package)) {
	m.hotfix = append(m.hotfix, fn)
}

// Subscribe registers fn for inbound core (non-hotfix) packages.
func (m *Manager) Subscribe(fn func(Package)) {
	m.core = append(m.core, fn)
}

// Start launches the transport read loop. Calling Start more than once has
// no effect.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.closed {
		return
	}
	m.started = true

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		err := m.transport.Run(ctx, m.deliver)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("transport stopped", zap.Error(err))
			m.mu.Lock()
			m.runErr = err
			m.mu.Unlock()
		}
	}()
}

// Err returns the error that stopped the transport read loop, if any.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runErr
}

func (m *Manager) deliver(data []byte) {
	p, err := Decode(data)
	if err != nil {
		m.logger.Warn("dropping malformed frame", zap.Int("size", len(data)), zap.Error(err))
		return
	}
	if err := m.Receive(p); err != nil {
		m.logger.Warn("dropping inbound package",
			zap.Int32("msg_id", p.MsgID),
			zap.Bool("hotfix", p.IsHotfixPackage),
			zap.Error(err))
	}
}

// Receive queues an inbound package for the next Pump. It is safe to call
// from any goroutine and never blocks.
func (m *Manager) Receive(p Package) error {
	select {
	case m.inbox <- p:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pump delivers queued packages to subscribers and returns how many were
// delivered. Packages queued while pumping wait for the next call.
func (m *Manager) Pump() int {
	n := len(m.inbox)
	for i := 0; i < n; i++ {
		p := <-m.inbox
		subs := m.core
		if p.IsHotfixPackage {
			subs = m.hotfix
		}
		for _, fn := range subs {
			fn(p)
		}
	}
	return n
}

// SendMessage encodes p and hands it to the transport once.
func (m *Manager) SendMessage(p Package) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data, err := Encode(p)
	if err != nil {
		return err
	}
	if err := m.transport.Send(data); err != nil {
		return fmt.Errorf("send package %d: %w", p.MsgID, err)
	}
	return nil
}

// Close stops the read loop and closes the transport.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	err := m.transport.Close()
	if cancel != nil {
		cancel()
		<-done
	}
	return err
}
