// ABOUTME: Tracks streaming sessions and routes invocations into them.
// ABOUTME: Owns session ids, lifecycle transitions, and the bounded close drain.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luminal-data/tablebridge/internal/dispatch"
)

// DefaultDrainTimeout bounds how long a closing session waits for
// in-flight invocations before discarding their results.
const DefaultDrainTimeout = 5 * time.Second

var (
	// ErrSessionNotFound means the session id is unknown or the session
	// is no longer accepting invocations.
	ErrSessionNotFound = errors.New("session not found")

	// ErrQueueFull means the session has too many undelivered results.
	ErrQueueFull = errors.New("session queue full")
)

// Invoker executes one invocation and returns its result. Implemented by
// dispatch.Dispatcher; redeclared here so tests can substitute handlers
// with controlled latency.
type Invoker interface {
	Dispatch(ctx context.Context, req dispatch.Request) dispatch.Result
}

// Manager owns all live streaming sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	invoker      Invoker
	drainTimeout time.Duration
	logger       *slog.Logger
}

// NewManager creates a session manager. A zero drainTimeout falls back to
// DefaultDrainTimeout.
func NewManager(invoker Invoker, drainTimeout time.Duration, logger *slog.Logger) *Manager {
	if drainTimeout <= 0 {
		drainTimeout = DefaultDrainTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions:     make(map[string]*Session),
		invoker:      invoker,
		drainTimeout: drainTimeout,
		logger:       logger.With("component", "sessions"),
	}
}

// Open creates a new session and starts its forwarder.
func (m *Manager) Open() *Session {
	sess := newSession(uuid.New().String(), m.logger)

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	count := len(m.sessions)
	m.mu.Unlock()

	go sess.forward()

	m.logger.Info("session opened",
		"session_id", sess.ID,
		"active_sessions", count,
	)
	return sess
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Submit accepts an invocation for a session and dispatches it
// asynchronously. The result is delivered on the session's outbound
// channel in acceptance order. Dispatch runs on a background context:
// closing the session stops delivery but never aborts a backend call
// that is already underway.
func (m *Manager) Submit(sessionID string, req dispatch.Request) error {
	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}

	slot, err := sess.accept()
	if err != nil {
		return fmt.Errorf("session %q: %w", sessionID, err)
	}

	go func() {
		slot <- m.invoker.Dispatch(context.Background(), req)
	}()
	return nil
}

// Close transitions a session to Closing, waits up to the drain timeout
// for in-flight invocations, then marks it Closed and removes it.
// Closing an unknown or already-closed session is a no-op.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	count := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return
	}

	m.drain(sess)

	m.logger.Info("session closed",
		"session_id", sess.ID,
		"active_sessions", count,
	)
}

// CloseAll closes every live session. Used during server shutdown; the
// sessions drain concurrently so shutdown is bounded by a single drain
// timeout, not the sum.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	remaining := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		remaining = append(remaining, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	if len(remaining) == 0 {
		return
	}
	m.logger.Info("closing all sessions", "count", len(remaining))

	var wg sync.WaitGroup
	for _, sess := range remaining {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			m.drain(s)
		}(sess)
	}
	wg.Wait()
}

// drain waits for the session's in-flight invocations up to the drain
// timeout and then closes it. Results still pending at the deadline are
// discarded by the session itself.
func (m *Manager) drain(sess *Session) {
	drained := make(chan struct{})
	go func() {
		sess.inflight.Wait()
		close(drained)
	}()

	timer := time.NewTimer(m.drainTimeout)
	defer timer.Stop()

	bounded := make(chan struct{})
	go func() {
		defer close(bounded)
		select {
		case <-drained:
		case <-timer.C:
			m.logger.Warn("session drain timed out, discarding pending results",
				"session_id", sess.ID,
				"drain_timeout", m.drainTimeout,
			)
		}
	}()

	sess.close(bounded)
}
