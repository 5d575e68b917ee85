package fault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// Handler is invoked for every intercepted fault of the kind it was
// registered for
type Handler func(Fault)

// Errors reported by the Manager
var (
	ErrNotInstalled       = errors.New("fault: handlers not installed")
	ErrResidualHandlers   = errors.New("fault: handlers still present after removal")
	ErrHandlersIncomplete = errors.New("fault: handler table incomplete after install")
)

// Manager owns the fault handler table
type Manager struct {
	mu        sync.Mutex
	installed bool
	handlers  map[Kind]Handler
	triggers  map[Kind]chan struct{}

	sig  chan os.Signal
	stop chan struct{}
	done chan struct{}

	logger *slog.Logger
}

// NewManager creates a manager with no handler installed
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{logger: logger}
}

// Install registers a default handler for every fault kind and starts
// receiving fault signals sent to the trusted process. Installing twice is
// a no-op.
func (m *Manager) Install() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.installed {
		return nil
	}
	m.handlers = make(map[Kind]Handler, len(kindTable))
	for _, k := range Kinds() {
		m.handlers[k] = m.defaultHandler
	}
	m.triggers = make(map[Kind]chan struct{})
	m.sig = make(chan os.Signal, len(kindTable))
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	signal.Notify(m.sig, Signals()...)
	m.installed = true

	go m.loop(m.sig, m.stop, m.done)
	return nil
}

// Remove stops signal delivery and clears the handler table. Remove
// without a prior Install is a no-op.
func (m *Manager) Remove() {
	m.mu.Lock()
	if !m.installed {
		m.mu.Unlock()
		return
	}
	signal.Stop(m.sig)
	close(m.stop)
	done := m.done
	m.installed = false
	m.handlers = nil
	for k, p := range m.triggers {
		delete(m.triggers, k)
		close(p)
	}
	m.mu.Unlock()

	<-done
}

// Installed reports whether handlers are installed
func (m *Manager) Installed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.installed
}

// AssertInstalled verifies every fault kind has a handler
func (m *Manager) AssertInstalled() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.installed {
		return ErrNotInstalled
	}
	for _, k := range Kinds() {
		if m.handlers[k] == nil {
			return fmt.Errorf("%w: no handler for %v", ErrHandlersIncomplete, k)
		}
	}
	return nil
}

// AssertNoHandlers verifies no handler and no signal delivery is left
func (m *Manager) AssertNoHandlers() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.installed || len(m.handlers) > 0 {
		return fmt.Errorf("%w: %d handlers", ErrResidualHandlers, len(m.handlers))
	}
	return nil
}

// Handle replaces the handler for one kind
func (m *Manager) Handle(k Kind, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.installed {
		return ErrNotInstalled
	}
	if h == nil {
		h = m.defaultHandler
	}
	m.handlers[k] = h
	return nil
}

// HandleAll replaces the handler for every kind
func (m *Manager) HandleAll(h Handler) error {
	for _, k := range Kinds() {
		if err := m.Handle(k, h); err != nil {
			return err
		}
	}
	return nil
}

// Intercept dispatches f to its handler. It returns false when no handler
// is installed, in which case the fault is not intercepted at all.
func (m *Manager) Intercept(f Fault) bool {
	m.mu.Lock()
	if !m.installed {
		m.mu.Unlock()
		return false
	}
	h := m.handlers[f.Kind]
	m.mu.Unlock()

	if h == nil {
		return false
	}
	h(f)
	return true
}

// Trigger raises the signal of k against the trusted process and waits until
// the installed handlers observed it
func (m *Manager) Trigger(ctx context.Context, k Kind) error {
	sig := k.Signal()
	if sig == 0 {
		return fmt.Errorf("fault: trigger: invalid kind %d", k)
	}

	m.mu.Lock()
	if !m.installed {
		m.mu.Unlock()
		return ErrNotInstalled
	}
	if _, ok := m.triggers[k]; ok {
		m.mu.Unlock()
		return fmt.Errorf("fault: trigger for %v already pending", k)
	}
	p := make(chan struct{})
	m.triggers[k] = p
	m.mu.Unlock()

	if err := unix.Kill(os.Getpid(), sig); err != nil {
		m.cancelTrigger(k, p)
		return fmt.Errorf("fault: trigger %v: %w", k, err)
	}

	select {
	case <-p:
		if !m.Installed() {
			return ErrNotInstalled
		}
		return nil
	case <-ctx.Done():
		m.cancelTrigger(k, p)
		return fmt.Errorf("fault: trigger %v not observed: %w", k, ctx.Err())
	}
}

func (m *Manager) cancelTrigger(k Kind, p chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.triggers[k] == p {
		delete(m.triggers, k)
	}
}

func (m *Manager) loop(sig <-chan os.Signal, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case s := <-sig:
			m.deliver(s)
		case <-stop:
			return
		}
	}
}

func (m *Manager) deliver(s os.Signal) {
	k := KindOf(s)
	if k == KindNone {
		return
	}

	m.mu.Lock()
	if p, ok := m.triggers[k]; ok {
		delete(m.triggers, k)
		m.mu.Unlock()
		close(p)
		return
	}
	m.mu.Unlock()

	m.Intercept(Fault{Kind: k, Signal: s.(unix.Signal), Origin: OriginTrusted, Pid: os.Getpid()})
}

func (m *Manager) defaultHandler(f Fault) {
	m.logger.Warn("fault intercepted with no resumption point", "fault", f.String())
}
