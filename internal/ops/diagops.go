package ops

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flemzord/opsgate/internal/operation"
	"github.com/flemzord/opsgate/internal/permission"
)

// Echo returns its validated arguments unchanged.
type Echo struct{}

func (Echo) Descriptor() operation.Descriptor {
	return operation.Descriptor{
		Name:        "echo",
		Description: "Returns the exact arguments it received. Useful for testing.",
		Arguments: []operation.ArgumentDefinition{
			{Name: "message", Kind: operation.KindString, Required: true, Description: "Message to echo back"},
			{Name: "details", Kind: operation.KindObject, Default: map[string]any{}, Description: "Optional additional details"},
		},
	}
}

func (Echo) Execute(ctx context.Context, raw json.RawMessage, profile permission.Profile) (operation.Result, error) {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return operation.Result{}, operation.Errorf(operation.CodeInvalidArguments, "malformed arguments: %v", err)
	}
	return operation.Succeed(args), nil
}

// Ping is a trivial liveness check.
type Ping struct{}

func (Ping) Descriptor() operation.Descriptor {
	return operation.Descriptor{
		Name:        "ping",
		Description: "A simple health check operation that returns 'pong'.",
	}
}

func (Ping) Execute(context.Context, json.RawMessage, permission.Profile) (operation.Result, error) {
	return operation.Succeed(map[string]any{"reply": "pong"}), nil
}

// GetServerTime reports the current UTC time with millisecond precision
// and a Z suffix.
type GetServerTime struct {
	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

func (GetServerTime) Descriptor() operation.Descriptor {
	return operation.Descriptor{
		Name:        "get_server_time",
		Description: "Returns the current UTC date and time on the server in ISO 8601 format.",
	}
}

func (g GetServerTime) Execute(context.Context, json.RawMessage, permission.Profile) (operation.Result, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	stamp := now().UTC().Format("2006-01-02T15:04:05.000Z")
	return operation.Succeed(map[string]any{"utc_time": stamp}), nil
}

// ListOperations enumerates the operations the calling agent may
// invoke, with their argument schemas.
type ListOperations struct {
	Registry *operation.Registry
}

func (ListOperations) Descriptor() operation.Descriptor {
	return operation.Descriptor{
		Name:        "list_operations",
		Description: "Lists available operations based on the calling agent's permissions.",
	}
}

func (l ListOperations) Execute(ctx context.Context, raw json.RawMessage, profile permission.Profile) (operation.Result, error) {
	visible := l.Registry.ListFor(profile)

	type opInfo struct {
		Name        string                         `json:"name"`
		Description string                         `json:"description"`
		Arguments   []operation.ArgumentDefinition `json:"arguments"`
	}
	infos := make([]opInfo, 0, len(visible))
	for _, op := range visible {
		d := op.Descriptor()
		infos = append(infos, opInfo{
			Name:        d.Name,
			Description: d.Description,
			Arguments:   d.Arguments,
		})
	}
	return operation.Succeed(map[string]any{"operations": infos}), nil
}

// FinishGoal signals that the calling agent considers its goal
// complete. The server side does nothing beyond acknowledging; the
// controlling loop is expected to recognize the operation name and stop.
type FinishGoal struct{}

func (FinishGoal) Descriptor() operation.Descriptor {
	return operation.Descriptor{
		Name:        "finish_goal",
		Description: "Signals that the agent believes the current goal has been successfully achieved.",
		Arguments: []operation.ArgumentDefinition{
			{Name: "summary", Kind: operation.KindString, Required: true, Description: "Brief summary of the outcome"},
		},
	}
}

func (FinishGoal) Execute(ctx context.Context, raw json.RawMessage, profile permission.Profile) (operation.Result, error) {
	var args struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return operation.Result{}, operation.Errorf(operation.CodeInvalidArguments, "malformed arguments: %v", err)
	}
	return operation.Succeed(map[string]any{
		"message": "Goal completion signaled.",
		"summary": args.Summary,
	}), nil
}

// RegisterAll registers every built-in operation on the registry.
func RegisterAll(reg *operation.Registry) error {
	builtins := []operation.Operation{
		ReadFile{},
		WriteFile{},
		DeleteFile{},
		ListDirectory{},
		ExecuteCommand{},
		Echo{},
		Ping{},
		GetServerTime{},
		ListOperations{Registry: reg},
		FinishGoal{},
	}
	for _, op := range builtins {
		if err := reg.Register(op); err != nil {
			return err
		}
	}
	return nil
}
