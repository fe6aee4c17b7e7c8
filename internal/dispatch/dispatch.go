// Package dispatch implements the orchestration core: it takes an
// operation request from any transport, resolves the caller's effective
// permissions, validates arguments, invokes the operation, and returns
// a uniform success/error envelope. The dispatcher is stateless per
// request and safe to call from many goroutines at once.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/flemzord/opsgate/internal/audit"
	"github.com/flemzord/opsgate/internal/limit"
	"github.com/flemzord/opsgate/internal/operation"
	"github.com/flemzord/opsgate/internal/permission"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Request is the transport-agnostic envelope the dispatcher requires.
type Request struct {
	ID        string         `json:"id"`
	Operation string         `json:"operation"`
	Arguments map[string]any `json:"arguments"`
	AgentID   string         `json:"agent_id,omitempty"`
}

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Response is the uniform envelope returned regardless of transport.
type Response struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Result    any    `json:"result,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// Err reconstructs the categorized error carried by an error response,
// or nil for a success response.
func (r Response) Err() *operation.Error {
	if r.Status != StatusError {
		return nil
	}
	return &operation.Error{
		Code:    operation.Code(r.ErrorCode),
		Message: r.Message,
		Details: r.Details,
	}
}

func success(id string, result any) Response {
	return Response{ID: id, Status: StatusSuccess, Result: result}
}

func failure(id string, err *operation.Error) Response {
	return Response{
		ID:        id,
		Status:    StatusError,
		ErrorCode: int(err.Code),
		Message:   err.Message,
		Details:   err.Details,
	}
}

// Config wires a Dispatcher. Registry and Resolver are required;
// everything else is optional.
type Config struct {
	Registry *operation.Registry
	Resolver *permission.Resolver

	// Timeout bounds each operation execution. Zero disables the
	// per-request deadline.
	Timeout time.Duration

	// Limiter rejects over-rate callers with RESOURCE_BUSY.
	Limiter *limit.AgentLimiter

	// Audit records dispatch, denial, and result events.
	Audit *audit.Logger

	Logger *slog.Logger
}

// Dispatcher routes validated requests to registered operations. All
// referenced configuration is immutable after construction, so a single
// instance serves concurrent requests with no locking.
type Dispatcher struct {
	registry *operation.Registry
	resolver *permission.Resolver
	timeout  time.Duration
	limiter  *limit.AgentLimiter
	audit    *audit.Logger
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New creates a dispatcher from cfg.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: cfg.Registry,
		resolver: cfg.Resolver,
		timeout:  cfg.Timeout,
		limiter:  cfg.Limiter,
		audit:    cfg.Audit,
		logger:   logger,
		tracer:   otel.Tracer("github.com/flemzord/opsgate/internal/dispatch"),
	}
}

// Dispatch runs the pipeline for one request: rate limit → permission
// resolution → operation-level authorization → registry lookup →
// argument validation → execution. Each stage's failure short-circuits
// the rest. Any panic is recovered at this boundary, logged, and
// returned as UNKNOWN_ERROR — an unhandled fault never escapes
// uncategorized.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (resp Response) {
	ctx, span := d.tracer.Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.String("operation", req.Operation),
			attribute.String("agent_id", req.AgentID),
			attribute.String("request_id", req.ID),
		))
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic during dispatch",
				"operation", req.Operation, "agent_id", req.AgentID, "panic", r)
			resp = failure(req.ID, operation.Errorf(operation.CodeUnknown,
				"internal fault while executing operation %q", req.Operation))
		}
		span.SetAttributes(attribute.Int("error_code", resp.ErrorCode))
		span.End()
	}()

	if !d.limiter.Allow(req.AgentID) {
		d.auditLog(audit.Event{
			Type: audit.EventRateLimit, RequestID: req.ID,
			AgentID: req.AgentID, Operation: req.Operation,
		})
		return failure(req.ID, operation.Errorf(operation.CodeResourceBusy,
			"rate limit exceeded for agent %q", agentLabel(req.AgentID)))
	}

	profile := d.resolver.Resolve(req.AgentID)

	if !profile.Allows(req.Operation) {
		d.auditLog(audit.Event{
			Type: audit.EventDenied, RequestID: req.ID,
			AgentID: profile.AgentID, Operation: req.Operation,
			Detail: "operation not in allowed set",
		})
		return failure(req.ID, operation.Errorf(operation.CodePermissionDenied,
			"agent %q lacks permission for operation %q", profile.AgentID, req.Operation))
	}

	op, err := d.registry.Get(req.Operation)
	if err != nil {
		return failure(req.ID, operation.Errorf(operation.CodeOperationNotFound,
			"operation %q not found", req.Operation))
	}

	args, verr := operation.ValidateArguments(op.Descriptor(), req.Arguments)
	if verr != nil {
		return failure(req.ID, verr)
	}

	d.auditLog(audit.Event{
		Type: audit.EventDispatch, RequestID: req.ID,
		AgentID: profile.AgentID, Operation: req.Operation,
		Detail: string(args),
	})

	result, execErr := d.execute(ctx, op, args, profile)

	if execErr != nil {
		resp = failure(req.ID, d.categorize(req.Operation, execErr))
	} else if !result.Success {
		message := result.Message
		if message == "" {
			message = operation.CodeOperationFailed.DefaultMessage()
		}
		resp = failure(req.ID, operation.NewError(operation.CodeOperationFailed, message))
	} else {
		resp = success(req.ID, result.Data)
	}

	d.auditResult(req, resp)
	return resp
}

// execute invokes the operation under the per-request deadline.
func (d *Dispatcher) execute(
	ctx context.Context,
	op operation.Operation,
	args json.RawMessage,
	profile permission.Profile,
) (operation.Result, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return op.Execute(ctx, args, profile)
}

// categorize maps an execution error to the taxonomy: categorized
// errors propagate unchanged, deadline expiry becomes TIMEOUT naming
// the configured limit, and anything else is UNKNOWN_ERROR.
func (d *Dispatcher) categorize(opName string, err error) *operation.Error {
	var opErr *operation.Error
	if errors.As(err, &opErr) {
		return opErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return operation.Errorf(operation.CodeTimeout,
			"operation %q exceeded the %s request timeout", opName, d.timeout)
	}
	d.logger.Error("uncategorized operation error", "operation", opName, "error", err)
	return operation.Errorf(operation.CodeUnknown,
		"operation %q failed unexpectedly", opName)
}

func (d *Dispatcher) auditLog(event audit.Event) {
	if d.audit != nil {
		d.audit.Log(event)
	}
}

func (d *Dispatcher) auditResult(req Request, resp Response) {
	if d.audit == nil {
		return
	}
	event := audit.Event{
		Type: audit.EventResult, RequestID: req.ID,
		AgentID: req.AgentID, Operation: req.Operation,
		Metadata: map[string]string{"status": resp.Status},
	}
	if resp.Status == StatusError {
		event.Detail = resp.Message
	}
	d.audit.Log(event)
}

func agentLabel(agentID string) string {
	if agentID == "" {
		return "default"
	}
	return agentID
}
