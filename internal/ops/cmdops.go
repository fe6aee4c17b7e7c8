package ops

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/google/shlex"

	"github.com/flemzord/opsgate/internal/operation"
	"github.com/flemzord/opsgate/internal/permission"
)

const defaultCommandTimeout = 60 * time.Second

// ExecuteCommand runs a system command without a shell. The command
// line is split shlex-style, the resulting argv[0] is checked against
// the profile's command whitelist when one is configured, and the
// working directory (if given) requires the list verb on the path ACL.
// A non-zero exit is a successful execution whose result carries the
// return code, not an error.
type ExecuteCommand struct{}

func (ExecuteCommand) Descriptor() operation.Descriptor {
	return operation.Descriptor{
		Name: "execute_command",
		Description: "Executes a system command directly on the host. " +
			"Sensitive: grant only to trusted agents, ideally with a command whitelist.",
		Arguments: []operation.ArgumentDefinition{
			{Name: "command", Kind: operation.KindString, Required: true, Description: "Command line to execute, without shell syntax"},
			{Name: "working_directory", Kind: operation.KindFilePath, Description: "Directory to execute the command in"},
			{Name: "timeout", Kind: operation.KindInteger, Default: 60, Description: "Seconds before the command is killed"},
		},
	}
}

func (ExecuteCommand) Execute(ctx context.Context, raw json.RawMessage, profile permission.Profile) (operation.Result, error) {
	var args struct {
		Command          string `json:"command"`
		WorkingDirectory string `json:"working_directory"`
		Timeout          int64  `json:"timeout"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return operation.Result{}, operation.Errorf(operation.CodeInvalidArguments, "malformed arguments: %v", err)
	}

	parts, err := shlex.Split(args.Command)
	if err != nil {
		return operation.Result{}, operation.Errorf(operation.CodeInvalidArguments,
			"invalid command string: %v", err)
	}
	if len(parts) == 0 {
		return operation.Result{}, operation.Errorf(operation.CodeInvalidArguments,
			"command cannot be empty")
	}

	if whitelist := profile.CommandWhitelist(); len(whitelist) > 0 {
		allowed := false
		for _, name := range whitelist {
			if parts[0] == name {
				allowed = true
				break
			}
		}
		if !allowed {
			return operation.Result{}, operation.Errorf(operation.CodePermissionDenied,
				"command %q is not in agent %q's command whitelist", parts[0], profile.AgentID)
		}
	}

	if args.WorkingDirectory != "" {
		if !permission.CheckFilePermission(args.WorkingDirectory, permission.VerbList, profile.FileRules) {
			return operation.Result{}, operation.Errorf(operation.CodeOSPermissionDenied,
				"agent %q lacks permission to access working directory: %s", profile.AgentID, args.WorkingDirectory)
		}
	}

	timeout := defaultCommandTimeout
	if args.Timeout > 0 {
		timeout = time.Duration(args.Timeout) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = args.WorkingDirectory
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Run the command in its own process group so cancellation kills the
	// whole tree, not just the direct child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	runErr := cmd.Run()

	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(runErr, &exitErr):
			// fall through: a non-zero exit is still a completed execution
		case ctx.Err() == context.DeadlineExceeded:
			return operation.Result{}, operation.Errorf(operation.CodeTimeout,
				"command timed out after %s", timeout)
		case errors.Is(runErr, exec.ErrNotFound):
			return operation.Result{}, operation.Errorf(operation.CodeResourceNotFound,
				"command not found: %q", parts[0])
		case errors.Is(runErr, fs.ErrNotExist):
			return operation.Result{}, operation.Errorf(operation.CodeResourceNotFound,
				"working directory or command not found: %v", runErr)
		case errors.Is(runErr, fs.ErrPermission):
			return operation.Result{}, operation.Errorf(operation.CodeOSPermissionDenied,
				"OS permission denied executing command: %v", runErr)
		default:
			return operation.Result{}, operation.Errorf(operation.CodeOperationFailed,
				"failed to execute command: %v", runErr)
		}
	}

	return operation.Succeed(map[string]any{
		"command_executed": args.Command,
		"return_code":      cmd.ProcessState.ExitCode(),
		"stdout":           strings.TrimSpace(stdout.String()),
		"stderr":           strings.TrimSpace(stderr.String()),
	}), nil
}
