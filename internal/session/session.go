// ABOUTME: Represents a single streaming session and its ordered outbound queue.
// ABOUTME: Handles the Open → Closing → Closed lifecycle and result forwarding.

package session

import (
	"log/slog"
	"sync"

	"github.com/luminal-data/tablebridge/internal/dispatch"
)

const (
	// pendingBufferSize is the number of accepted-but-undelivered
	// invocations a session can hold before submissions are rejected.
	pendingBufferSize = 64

	// outboundBufferSize is the channel buffer between the forwarder and
	// the session's single stream writer.
	outboundBufferSize = 16
)

// State is the lifecycle state of a session.
type State int

// Session lifecycle states.
const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one logical streaming connection. Results are delivered on
// the outbound channel in the order their requests were accepted; the
// channel is read by exactly one stream writer.
type Session struct {
	ID string

	mu    sync.Mutex
	state State

	// pending carries one result slot per accepted invocation, in
	// acceptance order. The forwarder drains it sequentially, which is
	// what enforces the per-session ordering guarantee.
	pending  chan chan dispatch.Result
	outbound chan dispatch.Result
	done     chan struct{}

	inflight sync.WaitGroup
	logger   *slog.Logger
}

func newSession(id string, logger *slog.Logger) *Session {
	return &Session{
		ID:       id,
		state:    StateOpen,
		pending:  make(chan chan dispatch.Result, pendingBufferSize),
		outbound: make(chan dispatch.Result, outboundBufferSize),
		done:     make(chan struct{}),
		logger:   logger.With("session_id", id),
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Outbound is the ordered result stream. It must be consumed by a single
// reader (the session's stream writer).
func (s *Session) Outbound() <-chan dispatch.Result {
	return s.outbound
}

// Done is closed once the session reaches Closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// accept reserves the next ordering slot for an invocation. Fails when
// the session is no longer Open or its queue is full. The caller must
// deliver exactly one result into the returned slot; the forwarder
// releases the in-flight counter once the result has been handed to the
// outbound stream or discarded.
func (s *Session) accept() (chan dispatch.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		return nil, ErrSessionNotFound
	}

	slot := make(chan dispatch.Result, 1)
	select {
	case s.pending <- slot:
	default:
		return nil, ErrQueueFull
	}

	s.inflight.Add(1)
	return slot, nil
}

// forward drains pending slots in acceptance order and pushes each
// result onto the outbound channel. Results that cannot be delivered
// before the session closes are discarded with a warning.
func (s *Session) forward() {
	for {
		select {
		case <-s.done:
			s.discardPending()
			return
		case slot := <-s.pending:
			select {
			case res := <-slot:
				select {
				case s.outbound <- res:
					s.inflight.Done()
				case <-s.done:
					s.logger.Warn("discarding result for closed session",
						"request_id", res.RequestID)
					s.inflight.Done()
					s.discardPending()
					return
				}
			case <-s.done:
				s.inflight.Done()
				s.discardPending()
				return
			}
		}
	}
}

// discardPending logs any invocations that were accepted but never
// delivered. Late backend results land in their buffered slots and are
// garbage collected; they are not retried.
func (s *Session) discardPending() {
	for {
		select {
		case slot := <-s.pending:
			select {
			case res := <-slot:
				s.logger.Warn("discarding result for closed session",
					"request_id", res.RequestID)
			default:
				s.logger.Warn("discarding in-flight invocation for closed session")
			}
			s.inflight.Done()
		default:
			return
		}
	}
}

// close transitions Open → Closing → Closed. In-flight dispatches are
// awaited up to drainTimeout; afterwards the session is forcibly closed
// and undelivered results are discarded.
func (s *Session) close(drained <-chan struct{}) {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	s.mu.Unlock()

	s.logger.Debug("session closing")

	<-drained

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	close(s.done)
}
