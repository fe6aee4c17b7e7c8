package operation

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func testDescriptor() Descriptor {
	return Descriptor{
		Name: "write_file",
		Arguments: []ArgumentDefinition{
			{Name: "path", Kind: KindFilePath, Required: true},
			{Name: "content", Kind: KindString, Required: true},
			{Name: "overwrite", Kind: KindBoolean, Required: false, Default: false},
		},
	}
}

func decodeValidated(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("validated payload is not JSON: %v", err)
	}
	return m
}

func TestValidateArgumentsFillsDefaults(t *testing.T) {
	raw, verr := ValidateArguments(testDescriptor(), map[string]any{
		"path":    "/tmp/x",
		"content": "hello",
	})
	if verr != nil {
		t.Fatalf("ValidateArguments() error = %v", verr)
	}

	got := decodeValidated(t, raw)
	if got["overwrite"] != false {
		t.Errorf("overwrite = %v, want default false", got["overwrite"])
	}
	if got["path"] != "/tmp/x" || got["content"] != "hello" {
		t.Errorf("validated args = %v", got)
	}
}

func TestValidateArgumentsMissingRequiredNamesField(t *testing.T) {
	_, verr := ValidateArguments(testDescriptor(), map[string]any{"path": "/tmp/x"})
	if verr == nil {
		t.Fatal("ValidateArguments() = nil error, want validation failure")
	}
	if verr.Code != CodeValidation {
		t.Errorf("code = %v, want CodeValidation", verr.Code)
	}

	fields, ok := verr.Details.([]FieldError)
	if !ok {
		t.Fatalf("details = %T, want []FieldError", verr.Details)
	}
	if len(fields) != 1 || fields[0].Field != "content" {
		t.Errorf("details = %v, want one entry for field content", fields)
	}
}

func TestValidateArgumentsRejectsUndeclared(t *testing.T) {
	_, verr := ValidateArguments(testDescriptor(), map[string]any{
		"path":    "/tmp/x",
		"content": "hi",
		"mode":    "0644",
	})
	if verr == nil {
		t.Fatal("undeclared argument accepted, want rejection")
	}
	fields := verr.Details.([]FieldError)
	if len(fields) != 1 || fields[0].Field != "mode" {
		t.Errorf("details = %v, want one entry for field mode", fields)
	}
}

func TestValidateArgumentsCollectsAllFieldErrors(t *testing.T) {
	_, verr := ValidateArguments(testDescriptor(), map[string]any{
		"overwrite": "not-a-bool",
		"bogus":     1,
	})
	if verr == nil {
		t.Fatal("ValidateArguments() = nil error, want validation failure")
	}
	fields := verr.Details.([]FieldError)
	if len(fields) != 4 {
		t.Fatalf("got %d field errors %v, want 4 (path, content, overwrite, bogus)", len(fields), fields)
	}
}

func TestCoerceKinds(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		in      any
		want    any
		wantErr bool
	}{
		{"string ok", KindString, "x", "x", false},
		{"string from number", KindString, 3.0, nil, true},
		{"int from float64", KindInteger, float64(5), int64(5), false},
		{"int from fractional", KindInteger, 5.5, nil, true},
		{"int from string", KindInteger, "42", int64(42), false},
		{"int from bad string", KindInteger, "forty", nil, true},
		{"bool native", KindBoolean, true, true, false},
		{"bool from string", KindBoolean, "true", true, false},
		{"bool from junk", KindBoolean, "yep", nil, true},
		{"float from int", KindFloat, 2, float64(2), false},
		{"float from string", KindFloat, "2.5", 2.5, false},
		{"object native", KindObject, map[string]any{"a": 1}, map[string]any{"a": 1}, false},
		{"object from json string", KindObject, `{"a":1}`, map[string]any{"a": float64(1)}, false},
		{"object from junk", KindObject, "nope", nil, true},
		{"array from json string", KindArray, `[1,2]`, []any{float64(1), float64(2)}, false},
		{"filepath empty", KindFilePath, "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerce(tt.kind, tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("coerce(%v, %v) error = %v, wantErr %v", tt.kind, tt.in, err, tt.wantErr)
			}
			if err == nil && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("coerce(%v, %v) = %v (%T), want %v (%T)", tt.kind, tt.in, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestValidateArgumentsErrorNamesOperation(t *testing.T) {
	_, verr := ValidateArguments(testDescriptor(), nil)
	if verr == nil {
		t.Fatal("want validation failure for empty input")
	}
	if !strings.Contains(verr.Message, "write_file") {
		t.Errorf("message %q does not name the operation", verr.Message)
	}
}
