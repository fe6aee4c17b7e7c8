// Package operation defines the operation catalog: named, schema-described
// units of executable functionality, the argument validation that feeds
// them, the shared error taxonomy, and the registry that holds them.
// Operations are the primary security boundary: every action an agent
// takes goes through a registered operation gated by the caller's
// resolved permission profile.
package operation

import (
	"context"
	"encoding/json"

	"github.com/flemzord/opsgate/internal/permission"
)

// Kind is the declared type of an operation argument.
type Kind string

// Argument kinds.
const (
	KindString   Kind = "string"
	KindInteger  Kind = "integer"
	KindBoolean  Kind = "boolean"
	KindFloat    Kind = "float"
	KindObject   Kind = "object"
	KindArray    Kind = "array"
	KindFilePath Kind = "filepath"
)

// ValidKind reports whether k is a known argument kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindString, KindInteger, KindBoolean, KindFloat, KindObject, KindArray, KindFilePath:
		return true
	default:
		return false
	}
}

// ArgumentDefinition describes one argument of an operation.
// Invariant: an optional argument always has a defined default,
// possibly nil.
type ArgumentDefinition struct {
	Name        string `json:"name"`
	Kind        Kind   `json:"type"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// Descriptor is the immutable, registration-time description of an
// operation: its unique name, a human-readable description, and its
// ordered argument schema.
type Descriptor struct {
	Name        string
	Description string
	Arguments   []ArgumentDefinition
}

// Result is an operation's own return contract, separate from the
// dispatcher's transport envelope. Success=false without an error is
// translated by the dispatcher into an OPERATION_FAILED envelope.
type Result struct {
	Success bool
	Data    any
	Message string
}

// Succeed builds a successful result carrying data.
func Succeed(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail builds an explicit logical-failure result.
func Fail(message string) Result {
	return Result{Success: false, Message: message}
}

// Operation is the interface all registered operations implement.
// Execute receives arguments already validated and coerced against the
// descriptor (as canonical JSON to unmarshal into a typed struct) and
// the caller's resolved profile, so the operation can perform its own
// resource-specific checks such as the path ACL.
//
// Implementations must honor ctx cancellation and translate OS-level
// failures into the shared error taxonomy rather than leaking raw
// errors.
type Operation interface {
	Descriptor() Descriptor
	Execute(ctx context.Context, args json.RawMessage, profile permission.Profile) (Result, error)
}
