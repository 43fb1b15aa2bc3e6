// ABOUTME: Dispatches invocation requests to registered tool handlers.
// ABOUTME: Guarantees exactly one result per request; errors never escape the boundary.

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/luminal-data/tablebridge/internal/tools"
)

// Request is one client-submitted tool invocation. It is created by a
// transport adapter and never mutated after creation.
type Request struct {
	Tool      string         `json:"toolName"`
	Args      map[string]any `json:"arguments"`
	RequestID string         `json:"requestId"`
}

// Result is the outcome of dispatching a Request: exactly one of Payload
// (serialized success output) or Error (failure message) is populated.
type Result struct {
	RequestID string `json:"requestId,omitempty"`
	Payload   string `json:"payload,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Success builds a success Result.
func Success(requestID, payload string) Result {
	return Result{RequestID: requestID, Payload: payload}
}

// Failure builds a failure Result.
func Failure(requestID, message string) Result {
	return Result{RequestID: requestID, Error: message}
}

// Failed reports whether the Result is the failure variant.
func (r Result) Failed() bool {
	return r.Error != ""
}

// Dispatcher resolves tools, validates arguments, and invokes handlers.
type Dispatcher struct {
	registry *tools.Registry
	logger   *slog.Logger
}

// New creates a Dispatcher over a populated registry.
func New(registry *tools.Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		logger:   logger.With("component", "dispatcher"),
	}
}

// Dispatch executes a Request and always returns exactly one Result.
// Every failure mode (unknown tool, invalid arguments, handler error,
// even a handler panic) is converted to the failure variant here;
// nothing propagates past this boundary.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool handler panicked",
				"tool_name", req.Tool,
				"request_id", req.RequestID,
				"panic", r,
			)
			res = Failure(req.RequestID, fmt.Sprintf("internal error executing %s", req.Tool))
		}
	}()

	tool, err := d.registry.Lookup(req.Tool)
	if err != nil {
		if errors.Is(err, tools.ErrUnknownTool) {
			return Failure(req.RequestID, fmt.Sprintf("Unknown tool: %s", req.Tool))
		}
		return Failure(req.RequestID, err.Error())
	}

	if err := tool.Schema.Validate(req.Args); err != nil {
		verr := &Error{Kind: KindValidation, Message: fmt.Sprintf("invalid arguments for %s: %v", req.Tool, err), Cause: err}
		return Failure(req.RequestID, verr.Error())
	}

	d.logger.Debug("dispatching tool",
		"tool_name", req.Tool,
		"request_id", req.RequestID,
	)

	out, err := tool.Handler(ctx, req.Args)
	if err != nil {
		tagged := Classify(err)
		d.logger.Warn("tool handler error",
			"tool_name", req.Tool,
			"request_id", req.RequestID,
			"kind", tagged.Kind.String(),
			"error", err,
		)
		return Failure(req.RequestID, tagged.Error())
	}

	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		d.logger.Error("failed to serialize tool output",
			"tool_name", req.Tool,
			"request_id", req.RequestID,
			"error", err,
		)
		return Failure(req.RequestID, fmt.Sprintf("internal error serializing %s output", req.Tool))
	}

	d.logger.Debug("dispatch complete",
		"tool_name", req.Tool,
		"request_id", req.RequestID,
	)

	return Success(req.RequestID, string(payload))
}
