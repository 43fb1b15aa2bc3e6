// ABOUTME: SSE streaming adapter for session-based tool invocation.
// ABOUTME: Announces the message endpoint, then relays results as they complete.

package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/luminal-data/tablebridge/internal/dispatch"
)

// keepaliveInterval is how often an idle stream emits an SSE comment so
// intermediaries don't reap the connection.
const keepaliveInterval = 15 * time.Second

// handleSSE opens a streaming session. The first frame is an `endpoint`
// event carrying the URL the client posts invocations to; every
// completed invocation then arrives as a `result` event, in acceptance
// order. This goroutine is the session's only stream writer.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sess := s.sessions.Open()
	defer s.sessions.Close(sess.ID)

	endpoint := fmt.Sprintf("%s?session_id=%s", messagesPath, sess.ID)
	if err := writeEvent(w, flusher, "endpoint", []byte(endpoint)); err != nil {
		s.logger.Warn("failed to announce endpoint",
			"session_id", sess.ID,
			"error", err,
		)
		return
	}

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("stream client disconnected", "session_id", sess.ID)
			return

		case <-sess.Done():
			// Flush anything the forwarder buffered before the close.
			for {
				select {
				case res := <-sess.Outbound():
					if err := s.writeResult(w, flusher, res); err != nil {
						return
					}
				default:
					return
				}
			}

		case res := <-sess.Outbound():
			if err := s.writeResult(w, flusher, res); err != nil {
				s.logger.Warn("stream write failed, closing session",
					"session_id", sess.ID,
					"request_id", res.RequestID,
					"error", err,
				)
				return
			}

		case <-ticker.C:
			if _, err := io.WriteString(w, ":\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) writeResult(w http.ResponseWriter, flusher http.Flusher, res dispatch.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return writeEvent(w, flusher, "result", data)
}

// writeEvent emits one SSE frame and flushes it. The data must not
// contain newlines; results are single-line JSON.
func writeEvent(w io.Writer, flusher http.Flusher, event string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
