// Package executor turns the line-oriented invocation protocol into
// dispatches: it extracts a call block from free-form agent output,
// routes it through the dispatcher, and encodes the outcome as a
// @result block the agent loop feeds back verbatim.
package executor

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/flemzord/opsgate/internal/dispatch"
	"github.com/flemzord/opsgate/internal/operation"
	"github.com/flemzord/opsgate/internal/protocol"
)

// Executor binds the protocol codec to a dispatcher for one agent
// identity. The identity is fixed at construction because the text
// protocol itself carries no authentication.
type Executor struct {
	dispatcher *dispatch.Dispatcher
	agentID    string
	logger     *slog.Logger
}

// New creates an executor dispatching on behalf of agentID.
func New(d *dispatch.Dispatcher, agentID string, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{dispatcher: d, agentID: agentID, logger: logger}
}

// Outcome is what one pass over a piece of agent output produced.
type Outcome struct {
	// Prose is the input with the call block removed.
	Prose string

	// Invoked is the operation name that was dispatched, empty when
	// the input contained no call.
	Invoked string

	// Feedback is the encoded @result block to return to the agent,
	// empty when no call was present.
	Feedback string

	// Finished reports that the agent signaled goal completion.
	Finished bool
}

// Run processes one piece of agent output. A malformed call block
// yields an INVALID_REQUEST result rather than an error: the agent gets
// machine-readable feedback and can correct itself.
func (e *Executor) Run(ctx context.Context, text string) Outcome {
	prose, call, err := protocol.Extract(text)
	if err != nil {
		e.logger.Warn("malformed call block", "agent_id", e.agentID, "error", err)
		return Outcome{
			Prose:   prose,
			Invoked: "unknown",
			Feedback: protocol.EncodeResult(protocol.Result{
				Name:     "unknown",
				ExitCode: int(operation.CodeInvalidRequest),
				Output:   err.Error(),
			}),
		}
	}
	if call == nil {
		return Outcome{Prose: prose}
	}

	resp := e.dispatcher.Dispatch(ctx, dispatch.Request{
		ID:        uuid.NewString(),
		Operation: call.Name,
		Arguments: call.ArgMap(),
		AgentID:   e.agentID,
	})

	return Outcome{
		Prose:    prose,
		Invoked:  call.Name,
		Feedback: protocol.EncodeResult(encodeResponse(call.Name, resp)),
		Finished: call.Name == "finish_goal" && resp.Status == dispatch.StatusSuccess,
	}
}

// encodeResponse flattens a dispatch response into the text protocol:
// the exit code is the taxonomy code (0 on success) and the output is
// the JSON-encoded result data or the error message.
func encodeResponse(name string, resp dispatch.Response) protocol.Result {
	if resp.Status == dispatch.StatusError {
		return protocol.Result{Name: name, ExitCode: resp.ErrorCode, Output: resp.Message}
	}
	output := ""
	if resp.Result != nil {
		encoded, err := json.Marshal(resp.Result)
		if err != nil {
			return protocol.Result{
				Name:     name,
				ExitCode: int(operation.CodeUnknown),
				Output:   "result data is not JSON-encodable",
			}
		}
		output = string(encoded)
	}
	return protocol.Result{Name: name, ExitCode: int(operation.CodeSuccess), Output: output}
}
