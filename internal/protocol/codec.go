// Package protocol implements the line-oriented invocation DSL used by
// the in-process execution path: @tool call blocks and @result blocks.
// The codec is bidirectional and tolerant of the one malformation
// LLM-generated text commonly produces (a forgotten @end terminator),
// while rejecting anything that would silently truncate arguments.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Markers of the wire format.
const (
	callMarker   = "@tool"
	resultMarker = "@result"
	endMarker    = "@end"
	endEscape    = "@_end"
	heredocOpen  = "<<<"
	heredocClose = ">>>"
)

// Decode errors. These are deliberately distinct from argument
// validation: a caller can tell "I couldn't parse your call" from
// "I parsed it but the arguments are wrong".
var (
	// ErrNoCall means the text contains no @tool marker at all.
	ErrNoCall = errors.New("protocol: no tool call found")

	// ErrMissingName means the @tool line carries no operation name.
	ErrMissingName = errors.New("protocol: tool call has no operation name")

	// ErrStrayTerminator means a bare >>> appeared with no open
	// multi-line key.
	ErrStrayTerminator = errors.New("protocol: >>> without an open multi-line value")

	// ErrUnclosedHeredoc means the block ended while a multi-line
	// value was still being captured.
	ErrUnclosedHeredoc = errors.New("protocol: multi-line value not closed with >>>")

	// ErrMalformedResult means a @result block could not be parsed.
	ErrMalformedResult = errors.New("protocol: malformed result block")
)

// Arg is one key/value pair of a call. Order is preserved.
type Arg struct {
	Key   string
	Value string
}

// Call is a parsed @tool invocation block.
type Call struct {
	Name string
	Args []Arg
}

// Get returns the value for key and whether it is present.
func (c Call) Get(key string) (string, bool) {
	for _, a := range c.Args {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// ArgMap returns the arguments as the string-keyed map the dispatcher
// consumes. Argument coercion converts the string values to their
// declared kinds downstream.
func (c Call) ArgMap() map[string]any {
	m := make(map[string]any, len(c.Args))
	for _, a := range c.Args {
		m[a.Key] = a.Value
	}
	return m
}

// Result is a parsed @result block.
type Result struct {
	Name     string
	ExitCode int
	Output   string
}

// DecodeCall parses the first @tool block in text. If @tool is present
// but the closing @end is missing, one auto-repair is attempted by
// treating end-of-input as the terminator; a block that still fails to
// parse (for example an unclosed multi-line value) is a hard decode
// error, never a partial argument map.
func DecodeCall(text string) (Call, error) {
	start := strings.Index(text, callMarker)
	if start < 0 {
		return Call{}, ErrNoCall
	}

	body := text[start+len(callMarker):]
	if end := strings.Index(body, endMarker); end >= 0 {
		body = body[:end]
	}
	// No @end found: auto-repair by parsing through to EOF.

	return parseCallBody(body)
}

// Extract scans text that may embed a call block in surrounding prose.
// It returns the prose with the block removed, and the decoded call if
// one was found. A present-but-malformed block is returned as an error
// so the caller can surface an INVALID_REQUEST instead of dropping it.
func Extract(text string) (prose string, call *Call, err error) {
	start := strings.Index(text, callMarker)
	if start < 0 {
		return text, nil, nil
	}

	before := text[:start]
	rest := text[start:]
	after := ""
	if end := strings.Index(rest, endMarker); end >= 0 {
		after = rest[end+len(endMarker):]
		rest = rest[:end+len(endMarker)]
	}

	decoded, err := DecodeCall(rest)
	if err != nil {
		return before + after, nil, err
	}
	return before + after, &decoded, nil
}

// parseCallBody parses everything between @tool and @end: a name on the
// first line, then key: value lines, with `key: <<<` opening a
// multi-line capture committed by a bare >>>.
func parseCallBody(body string) (Call, error) {
	body = strings.TrimLeft(body, " \t")
	lines := strings.Split(body, "\n")

	name := strings.TrimSpace(lines[0])
	if name == "" || !validName(name) {
		return Call{}, fmt.Errorf("%w: %q", ErrMissingName, name)
	}

	call := Call{Name: name}
	var (
		capturing bool
		pending   string
		captured  []string
	)

	for _, line := range lines[1:] {
		if capturing {
			if strings.TrimSpace(line) == heredocClose {
				call.Args = append(call.Args, Arg{
					Key:   pending,
					Value: strings.TrimSpace(strings.Join(captured, "\n")),
				})
				capturing = false
				captured = nil
				continue
			}
			captured = append(captured, line)
			continue
		}

		if strings.TrimSpace(line) == heredocClose {
			return Call{}, ErrStrayTerminator
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			// Tolerate free text between arguments, as the source
			// format always did.
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}

		if value == heredocOpen {
			capturing = true
			pending = key
			continue
		}
		call.Args = append(call.Args, Arg{Key: key, Value: value})
	}

	if capturing {
		return Call{}, fmt.Errorf("%w: key %q", ErrUnclosedHeredoc, pending)
	}
	return call, nil
}

// validName reports whether name is a word-character operation name.
func validName(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

// EncodeCall renders a call block. Values containing newlines use the
// heredoc form.
func EncodeCall(c Call) string {
	var b strings.Builder
	b.WriteString(callMarker)
	b.WriteByte(' ')
	b.WriteString(c.Name)
	b.WriteByte('\n')
	for _, a := range c.Args {
		if strings.Contains(a.Value, "\n") {
			fmt.Fprintf(&b, "%s: %s\n%s\n%s\n", a.Key, heredocOpen, a.Value, heredocClose)
		} else {
			fmt.Fprintf(&b, "%s: %s\n", a.Key, a.Value)
		}
	}
	b.WriteString(endMarker)
	return b.String()
}

// EncodeResult renders a result block. Literal @end inside the output
// is escaped as @_end so tool output can never forge the terminator;
// DecodeResult reverses the escape exactly.
func EncodeResult(r Result) string {
	output := strings.ReplaceAll(r.Output, endMarker, endEscape)
	return fmt.Sprintf("%s %s\nexit_code: %d\noutput: %s\n%s",
		resultMarker, r.Name, r.ExitCode, output, endMarker)
}

// DecodeResult parses a @result block produced by EncodeResult.
func DecodeResult(text string) (Result, error) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, resultMarker+" ") {
		return Result{}, fmt.Errorf("%w: missing %s header", ErrMalformedResult, resultMarker)
	}
	if !strings.HasSuffix(trimmed, endMarker) {
		return Result{}, fmt.Errorf("%w: missing %s terminator", ErrMalformedResult, endMarker)
	}

	body := strings.TrimSuffix(trimmed[len(resultMarker)+1:], endMarker)

	nameLine, rest, found := strings.Cut(body, "\n")
	if !found {
		return Result{}, fmt.Errorf("%w: truncated block", ErrMalformedResult)
	}
	name := strings.TrimSpace(nameLine)
	if name == "" {
		return Result{}, fmt.Errorf("%w: empty operation name", ErrMalformedResult)
	}

	codeLine, rest, found := strings.Cut(rest, "\n")
	if !found {
		return Result{}, fmt.Errorf("%w: missing output line", ErrMalformedResult)
	}
	codeStr, ok := strings.CutPrefix(codeLine, "exit_code: ")
	if !ok {
		return Result{}, fmt.Errorf("%w: missing exit_code", ErrMalformedResult)
	}
	code, err := strconv.Atoi(strings.TrimSpace(codeStr))
	if err != nil {
		return Result{}, fmt.Errorf("%w: bad exit_code %q", ErrMalformedResult, codeStr)
	}

	output, ok := strings.CutPrefix(rest, "output: ")
	if !ok {
		return Result{}, fmt.Errorf("%w: missing output", ErrMalformedResult)
	}
	// Drop the single newline EncodeResult places before the terminator.
	output = strings.TrimSuffix(output, "\n")
	output = strings.ReplaceAll(output, endEscape, endMarker)

	return Result{Name: name, ExitCode: code, Output: output}, nil
}
