package protocol

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecodeCallMixedArguments(t *testing.T) {
	text := "@tool write_file\npath: /x\ncontent: <<<\nhello\nworld\n>>>\n@end"

	call, err := DecodeCall(text)
	if err != nil {
		t.Fatalf("DecodeCall() error = %v", err)
	}
	if call.Name != "write_file" {
		t.Errorf("Name = %q, want write_file", call.Name)
	}
	want := []Arg{
		{Key: "path", Value: "/x"},
		{Key: "content", Value: "hello\nworld"},
	}
	if !reflect.DeepEqual(call.Args, want) {
		t.Errorf("Args = %v, want %v", call.Args, want)
	}
}

func TestDecodeCallAutoRepairsMissingEnd(t *testing.T) {
	call, err := DecodeCall("@tool read_file\npath: /tmp/x.txt\nlines: 10")
	if err != nil {
		t.Fatalf("DecodeCall() error = %v, want auto-repair", err)
	}
	if v, _ := call.Get("lines"); v != "10" {
		t.Errorf("trailing argument lost on auto-repair: lines = %q", v)
	}
}

func TestDecodeCallMissingEndWithOpenHeredocFails(t *testing.T) {
	_, err := DecodeCall("@tool write_file\npath: /x\ncontent: <<<\nhalf a value")
	if !errors.Is(err, ErrUnclosedHeredoc) {
		t.Errorf("DecodeCall() error = %v, want ErrUnclosedHeredoc", err)
	}
}

func TestDecodeCallStrayTerminator(t *testing.T) {
	_, err := DecodeCall("@tool echo\n>>>\nmessage: hi\n@end")
	if !errors.Is(err, ErrStrayTerminator) {
		t.Errorf("DecodeCall() error = %v, want ErrStrayTerminator", err)
	}
}

func TestDecodeCallNoCall(t *testing.T) {
	if _, err := DecodeCall("just some prose"); !errors.Is(err, ErrNoCall) {
		t.Errorf("DecodeCall() error = %v, want ErrNoCall", err)
	}
}

func TestDecodeCallMissingName(t *testing.T) {
	if _, err := DecodeCall("@tool\npath: /x\n@end"); !errors.Is(err, ErrMissingName) {
		t.Errorf("DecodeCall() error = %v, want ErrMissingName", err)
	}
}

func TestDecodeCallIgnoresProseBetweenArguments(t *testing.T) {
	call, err := DecodeCall("@tool echo\nsome stray line\nmessage: hi\n@end")
	if err != nil {
		t.Fatalf("DecodeCall() error = %v", err)
	}
	if v, ok := call.Get("message"); !ok || v != "hi" {
		t.Errorf("message = %q, %v", v, ok)
	}
}

func TestEncodeCallRoundTrip(t *testing.T) {
	in := Call{
		Name: "write_file",
		Args: []Arg{
			{Key: "path", Value: "/tmp/out.txt"},
			{Key: "content", Value: "line one\nline two"},
			{Key: "overwrite", Value: "true"},
		},
	}
	out, err := DecodeCall(EncodeCall(in))
	if err != nil {
		t.Fatalf("DecodeCall(EncodeCall()) error = %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestResultRoundTripEscapesEnd(t *testing.T) {
	in := Result{
		Name:     "execute_command",
		ExitCode: 0,
		Output:   "prefix @end suffix\nanother @end\n",
	}
	encoded := EncodeResult(in)

	out, err := DecodeResult(encoded)
	if err != nil {
		t.Fatalf("DecodeResult() error = %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestEncodeResultEscapesTerminator(t *testing.T) {
	encoded := EncodeResult(Result{Name: "x", ExitCode: 1, Output: "oops @end oops"})
	want := "@result x\nexit_code: 1\noutput: oops @_end oops\n@end"
	if encoded != want {
		t.Errorf("EncodeResult() = %q, want %q", encoded, want)
	}
}

func TestDecodeResultMalformed(t *testing.T) {
	tests := []string{
		"not a result",
		"@result x\nexit_code: 1\noutput: y",     // no terminator
		"@result x\noutput: y\n@end",             // no exit_code
		"@result x\nexit_code: nan\noutput:\n@end", // bad exit_code
	}
	for _, text := range tests {
		if _, err := DecodeResult(text); !errors.Is(err, ErrMalformedResult) {
			t.Errorf("DecodeResult(%q) error = %v, want ErrMalformedResult", text, err)
		}
	}
}

func TestExtractReturnsSurroundingProse(t *testing.T) {
	text := "I will read the file now.\n@tool read_file\npath: /x\n@end\nDone."

	prose, call, err := Extract(text)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if call == nil || call.Name != "read_file" {
		t.Fatalf("call = %+v, want read_file", call)
	}
	if prose != "I will read the file now.\n\nDone." {
		t.Errorf("prose = %q", prose)
	}
}

func TestExtractWithoutCall(t *testing.T) {
	prose, call, err := Extract("nothing here")
	if err != nil || call != nil || prose != "nothing here" {
		t.Errorf("Extract() = %q, %v, %v", prose, call, err)
	}
}

func TestExtractSurfacesDecodeError(t *testing.T) {
	_, call, err := Extract("before @tool write_file\ncontent: <<<\nunclosed")
	if call != nil {
		t.Error("malformed block produced a call")
	}
	if !errors.Is(err, ErrUnclosedHeredoc) {
		t.Errorf("error = %v, want ErrUnclosedHeredoc", err)
	}
}

func TestArgMapPreservesValues(t *testing.T) {
	call := Call{Name: "x", Args: []Arg{{Key: "a", Value: "1"}, {Key: "b", Value: "two"}}}
	got := call.ArgMap()
	if got["a"] != "1" || got["b"] != "two" || len(got) != 2 {
		t.Errorf("ArgMap() = %v", got)
	}
}
