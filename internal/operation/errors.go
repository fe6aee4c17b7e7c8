package operation

import "fmt"

// Code is a stable numeric error code shared across all transports.
// Calling agents branch on the code; transport adapters map it to a
// transport status without changing it.
type Code int

// Error codes. The numeric values are part of the wire contract and
// must never be renumbered.
const (
	CodeSuccess            Code = 0
	CodeUnknown            Code = 1
	CodeInvalidRequest     Code = 2
	CodeOperationNotFound  Code = 10
	CodeInvalidArguments   Code = 11
	CodeValidation         Code = 12
	CodePermissionDenied   Code = 13
	CodeOperationFailed    Code = 100
	CodeOSPermissionDenied Code = 101
	CodeResourceNotFound   Code = 102
	CodeResourceExists     Code = 103
	CodeResourceBusy       Code = 104
	CodeNetwork            Code = 105
	CodeTimeout            Code = 106
	CodeInvalidState       Code = 107
)

var codeNames = map[Code]string{
	CodeSuccess:            "SUCCESS",
	CodeUnknown:            "UNKNOWN_ERROR",
	CodeInvalidRequest:     "INVALID_REQUEST",
	CodeOperationNotFound:  "OPERATION_NOT_FOUND",
	CodeInvalidArguments:   "INVALID_ARGUMENTS",
	CodeValidation:         "VALIDATION_ERROR",
	CodePermissionDenied:   "PERMISSION_DENIED",
	CodeOperationFailed:    "OPERATION_FAILED",
	CodeOSPermissionDenied: "OS_PERMISSION_DENIED",
	CodeResourceNotFound:   "RESOURCE_NOT_FOUND",
	CodeResourceExists:     "RESOURCE_EXISTS",
	CodeResourceBusy:       "RESOURCE_BUSY",
	CodeNetwork:            "NETWORK_ERROR",
	CodeTimeout:            "TIMEOUT",
	CodeInvalidState:       "INVALID_OPERATION_STATE",
}

var defaultMessages = map[Code]string{
	CodeSuccess:            "Operation completed successfully",
	CodeUnknown:            "Unknown error occurred",
	CodeInvalidRequest:     "Invalid request",
	CodeOperationNotFound:  "Operation not found",
	CodeInvalidArguments:   "Invalid arguments provided",
	CodeValidation:         "Argument validation failed",
	CodePermissionDenied:   "Permission denied",
	CodeOperationFailed:    "Operation failed",
	CodeOSPermissionDenied: "OS-level permission denied",
	CodeResourceNotFound:   "Resource not found",
	CodeResourceExists:     "Resource already exists",
	CodeResourceBusy:       "Resource is busy",
	CodeNetwork:            "Network error occurred",
	CodeTimeout:            "Operation timed out",
	CodeInvalidState:       "Invalid operation state",
}

// String returns the symbolic name of the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE_%d", int(c))
}

// DefaultMessage returns the human-readable default message for the code.
func (c Code) DefaultMessage() string {
	if msg, ok := defaultMessages[c]; ok {
		return msg
	}
	return c.String()
}

// Error is a categorized failure raised by any stage of the dispatch
// pipeline. Details optionally carries structured information such as
// per-field validation errors. Errors are never swallowed: every stage
// either handles one or propagates it unchanged.
type Error struct {
	Code    Code
	Message string
	Details any
}

// NewError builds an Error with the given code. An empty message falls
// back to the code's default message.
func NewError(code Code, message string) *Error {
	if message == "" {
		message = code.DefaultMessage()
	}
	return &Error{Code: code, Message: message}
}

// Errorf builds an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetails returns a copy of the error carrying structured details.
func (e *Error) WithDetails(details any) *Error {
	out := *e
	out.Details = details
	return &out
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s (%d)] %s", e.Code, int(e.Code), e.Message)
}

// FieldError names one offending field in a validation failure.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}
