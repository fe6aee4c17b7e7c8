package operation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ValidateArguments checks input against the descriptor's argument
// schema and returns the validated, coerced argument object as
// canonical JSON, ready to unmarshal into the operation's typed
// argument struct.
//
// Every required field must be present and coercible to its declared
// kind. Optional fields absent from the input are filled from their
// defaults. Fields present in the input but not declared are rejected —
// there is no silent pass-through. On failure the returned *Error has
// CodeValidation and one FieldError detail per offending field.
func ValidateArguments(d Descriptor, input map[string]any) (json.RawMessage, *Error) {
	validated := make(map[string]any, len(d.Arguments))
	var fields []FieldError

	declared := make(map[string]struct{}, len(d.Arguments))
	for _, def := range d.Arguments {
		declared[def.Name] = struct{}{}

		raw, present := input[def.Name]
		if !present {
			if def.Required {
				fields = append(fields, FieldError{
					Field:  def.Name,
					Reason: "required argument is missing",
				})
				continue
			}
			validated[def.Name] = def.Default
			continue
		}

		value, err := coerce(def.Kind, raw)
		if err != nil {
			fields = append(fields, FieldError{Field: def.Name, Reason: err.Error()})
			continue
		}
		validated[def.Name] = value
	}

	var undeclared []string
	for name := range input {
		if _, ok := declared[name]; !ok {
			undeclared = append(undeclared, name)
		}
	}
	sort.Strings(undeclared)
	for _, name := range undeclared {
		fields = append(fields, FieldError{
			Field:  name,
			Reason: fmt.Sprintf("argument is not declared on operation %q", d.Name),
		})
	}

	if len(fields) > 0 {
		return nil, Errorf(CodeValidation,
			"argument validation failed for operation %q", d.Name).WithDetails(fields)
	}

	encoded, err := json.Marshal(validated)
	if err != nil {
		return nil, Errorf(CodeValidation, "arguments are not JSON-encodable: %v", err)
	}
	return encoded, nil
}

// coerce converts raw to the declared kind. JSON-decoded values and the
// string form produced by the invocation protocol are both accepted:
// "42" coerces to integer 42, "true" to boolean true, and object/array
// kinds accept a JSON-encoded string.
func coerce(kind Kind, raw any) (any, error) {
	switch kind {
	case KindString, KindFilePath:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("expected %s, got %T", kind, raw)
		}
		if kind == KindFilePath && s == "" {
			return nil, fmt.Errorf("filepath must not be empty")
		}
		return s, nil

	case KindInteger:
		switch v := raw.(type) {
		case int:
			return v, nil
		case int64:
			return v, nil
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("expected integer, got fractional number %v", v)
			}
			return int64(v), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("expected integer, got %q", v)
			}
			return n, nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", raw)
		}

	case KindFloat:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("expected float, got %q", v)
			}
			return f, nil
		default:
			return nil, fmt.Errorf("expected float, got %T", raw)
		}

	case KindBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("expected boolean, got %q", v)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("expected boolean, got %T", raw)
		}

	case KindObject:
		switch v := raw.(type) {
		case map[string]any:
			return v, nil
		case string:
			var m map[string]any
			if err := json.Unmarshal([]byte(v), &m); err != nil {
				return nil, fmt.Errorf("expected JSON object, got %q", v)
			}
			return m, nil
		default:
			return nil, fmt.Errorf("expected object, got %T", raw)
		}

	case KindArray:
		switch v := raw.(type) {
		case []any:
			return v, nil
		case string:
			var a []any
			if err := json.Unmarshal([]byte(v), &a); err != nil {
				return nil, fmt.Errorf("expected JSON array, got %q", v)
			}
			return a, nil
		default:
			return nil, fmt.Errorf("expected array, got %T", raw)
		}

	default:
		return nil, fmt.Errorf("unknown argument kind %q", kind)
	}
}
