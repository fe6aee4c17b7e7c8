package executor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/opsgate/internal/dispatch"
	"github.com/flemzord/opsgate/internal/operation"
	"github.com/flemzord/opsgate/internal/ops"
	"github.com/flemzord/opsgate/internal/permission"
	"github.com/flemzord/opsgate/internal/protocol"
)

func newExecutor(t *testing.T, dataDir string) *Executor {
	t.Helper()
	reg := operation.NewRegistry()
	if err := ops.RegisterAll(reg); err != nil {
		t.Fatal(err)
	}
	rules := permission.Rules{
		Agents: map[string]permission.Agent{"worker": {Groups: []string{"writers"}}},
		Groups: map[string]permission.Group{
			"writers": {
				AllowedOperations: []string{"write_file", "read_file", "finish_goal"},
				FileRules: []permission.PathRule{
					{Prefix: dataDir + string(os.PathSeparator), Permissions: []permission.Verb{permission.VerbRead, permission.VerbWrite}},
				},
			},
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := dispatch.New(dispatch.Config{
		Registry: reg,
		Resolver: permission.NewResolver(rules, logger),
		Logger:   logger,
	})
	return New(d, "worker", logger)
}

func TestRunNoCall(t *testing.T) {
	e := newExecutor(t, t.TempDir())
	out := e.Run(context.Background(), "just thinking out loud, no invocation here")
	if out.Feedback != "" || out.Invoked != "" {
		t.Fatalf("outcome = %+v, want passthrough", out)
	}
	if !strings.Contains(out.Prose, "thinking out loud") {
		t.Errorf("prose = %q", out.Prose)
	}
}

func TestRunWriteCall(t *testing.T) {
	dir := t.TempDir()
	e := newExecutor(t, dir)
	path := filepath.Join(dir, "x.txt")

	text := "Writing the file now.\n@tool write_file\npath: " + path +
		"\ncontent: <<<\nhello\nworld\n>>>\n@end\nDone."
	out := e.Run(context.Background(), text)

	if out.Invoked != "write_file" {
		t.Fatalf("invoked = %q", out.Invoked)
	}
	res, err := protocol.DecodeResult(out.Feedback)
	if err != nil {
		t.Fatalf("DecodeResult(%q): %v", out.Feedback, err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit_code = %d, output = %q", res.ExitCode, res.Output)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello\nworld" {
		t.Errorf("file content = %q", got)
	}
	if strings.Contains(out.Prose, "@tool") {
		t.Errorf("prose still contains the call block: %q", out.Prose)
	}
}

func TestRunDeniedCall(t *testing.T) {
	e := newExecutor(t, t.TempDir())

	out := e.Run(context.Background(), "@tool delete_file\npath: /etc/passwd\n@end")
	res, err := protocol.DecodeResult(out.Feedback)
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != int(operation.CodePermissionDenied) {
		t.Fatalf("exit_code = %d, want %d", res.ExitCode, operation.CodePermissionDenied)
	}
}

func TestRunMalformedCall(t *testing.T) {
	e := newExecutor(t, t.TempDir())

	out := e.Run(context.Background(), "@tool write_file\ncontent: <<<\nnever closed\n@end")
	res, err := protocol.DecodeResult(out.Feedback)
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != int(operation.CodeInvalidRequest) {
		t.Fatalf("exit_code = %d, want %d", res.ExitCode, operation.CodeInvalidRequest)
	}
}

func TestRunFinishGoal(t *testing.T) {
	e := newExecutor(t, t.TempDir())

	out := e.Run(context.Background(), "@tool finish_goal\nsummary: everything written\n@end")
	if !out.Finished {
		t.Fatalf("outcome = %+v, want Finished", out)
	}
}
