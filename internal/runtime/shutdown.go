// Package runtime runs cleanup for the chost CLI on exit or on SIGINT/SIGTERM.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joss/chost/internal/logging"
)

// ShutdownFunc is a cleanup function called during shutdown
type ShutdownFunc func(ctx context.Context) error

// ShutdownManager cancels in-flight work and runs cleanup handlers once.
type ShutdownManager struct {
	mu          sync.Mutex
	handlers    []namedHandler
	timeout     time.Duration
	log         *logging.Logger
	shutdownCtx context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	once        sync.Once
	err         error
	stopSignals func()
}

type namedHandler struct {
	name string
	fn   ShutdownFunc
}

// DefaultShutdownTimeout bounds all cleanup handlers together.
const DefaultShutdownTimeout = 10 * time.Second

// NewShutdownManager creates a new shutdown manager with specified timeout
func NewShutdownManager(timeout time.Duration, log *logging.Logger) *ShutdownManager {
	if log == nil {
		log = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ShutdownManager{
		timeout:     timeout,
		log:         log.WithComponent("shutdown"),
		shutdownCtx: ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		stopSignals: func() {},
	}
}

// Register adds a cleanup handler. Handlers run one at a time, last
// registered first.
func (m *ShutdownManager) Register(name string, fn ShutdownFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, namedHandler{name: name, fn: fn})
}

// RegisterClose adds a handler for an io.Closer-style function.
func (m *ShutdownManager) RegisterClose(name string, fn func() error) {
	m.Register(name, func(context.Context) error {
		return fn()
	})
}

// Context returns a context that is cancelled when shutdown begins
func (m *ShutdownManager) Context() context.Context {
	return m.shutdownCtx
}

// Done returns a channel that's closed when shutdown is complete
func (m *ShutdownManager) Done() <-chan struct{} {
	return m.done
}

// ListenForSignals starts shutdown on the first SIGINT or SIGTERM.
func (m *ShutdownManager) ListenForSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	m.stopSignals = func() { signal.Stop(sigChan) }

	go func() {
		select {
		case sig := <-sigChan:
			m.log.Info("signal", map[string]interface{}{"signal": sig.String()})
			m.Shutdown()
		case <-m.done:
		}
	}()
}

// Shutdown cancels Context and runs the handlers. Only the first call does
// any work; every call returns the joined handler errors.
func (m *ShutdownManager) Shutdown() error {
	m.once.Do(func() {
		m.err = m.performShutdown()
	})
	<-m.done
	return m.err
}

func (m *ShutdownManager) performShutdown() error {
	defer close(m.done)
	defer m.stopSignals()

	m.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	handlers := make([]namedHandler, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	finished := make(chan error, 1)
	go func() {
		var errs []error
		for i := len(handlers) - 1; i >= 0; i-- {
			h := handlers[i]
			start := time.Now()
			err := h.fn(ctx)
			m.log.TimedEvent("handler", start, map[string]interface{}{"name": h.name}, err)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			}
		}
		finished <- errors.Join(errs...)
	}()

	select {
	case err := <-finished:
		return err
	case <-ctx.Done():
		m.log.Warn("timeout", map[string]interface{}{"after_ms": m.timeout.Milliseconds()}, ctx.Err())
		return fmt.Errorf("shutdown timed out after %v", m.timeout)
	}
}

// Wait blocks until shutdown is complete
func (m *ShutdownManager) Wait() {
	<-m.done
}
