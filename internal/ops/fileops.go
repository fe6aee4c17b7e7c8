// Package ops contains the built-in operations: file access, command
// execution, and diagnostics. Each operation performs its own path ACL
// check against the caller's resolved profile before touching the
// filesystem, and translates OS-level failures into the categorized
// error taxonomy.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/flemzord/opsgate/internal/operation"
	"github.com/flemzord/opsgate/internal/permission"
)

// ReadFile reads a UTF-8 text file, optionally limited to the first N lines.
type ReadFile struct{}

func (ReadFile) Descriptor() operation.Descriptor {
	return operation.Descriptor{
		Name:        "read_file",
		Description: "Reads content from a specified file.",
		Arguments: []operation.ArgumentDefinition{
			{Name: "path", Kind: operation.KindFilePath, Required: true, Description: "Path to the file"},
			{Name: "lines", Kind: operation.KindInteger, Description: "Maximum number of lines to read from the start"},
		},
	}
}

func (ReadFile) Execute(ctx context.Context, raw json.RawMessage, profile permission.Profile) (operation.Result, error) {
	var args struct {
		Path  string `json:"path"`
		Lines int64  `json:"lines"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return operation.Result{}, operation.Errorf(operation.CodeInvalidArguments, "malformed arguments: %v", err)
	}

	if !permission.CheckFilePermission(args.Path, permission.VerbRead, profile.FileRules) {
		return operation.Result{}, operation.Errorf(operation.CodeOSPermissionDenied,
			"agent %q lacks %q permission for path: %s", profile.AgentID, permission.VerbRead, args.Path)
	}

	data, err := os.ReadFile(args.Path)
	if err != nil {
		return operation.Result{}, translateOSError(err, args.Path)
	}
	if !utf8.Valid(data) {
		return operation.Result{}, operation.Errorf(operation.CodeOperationFailed,
			"cannot decode file %q as UTF-8 text", args.Path)
	}

	content := string(data)
	if args.Lines > 0 {
		lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
		if int64(len(lines)) > args.Lines {
			lines = lines[:args.Lines]
		}
		content = strings.Join(lines, "\n")
	}
	return operation.Succeed(map[string]any{"content": content}), nil
}

// WriteFile writes UTF-8 content to a file. Existing files are only
// replaced when overwrite is set; the parent directory must exist.
type WriteFile struct{}

func (WriteFile) Descriptor() operation.Descriptor {
	return operation.Descriptor{
		Name:        "write_file",
		Description: "Writes content to a specified file, optionally overwriting.",
		Arguments: []operation.ArgumentDefinition{
			{Name: "path", Kind: operation.KindFilePath, Required: true, Description: "Path to the file"},
			{Name: "content", Kind: operation.KindString, Required: true, Description: "Content to write"},
			{Name: "overwrite", Kind: operation.KindBoolean, Default: false, Description: "Overwrite if the file exists"},
		},
	}
}

func (WriteFile) Execute(ctx context.Context, raw json.RawMessage, profile permission.Profile) (operation.Result, error) {
	var args struct {
		Path      string `json:"path"`
		Content   string `json:"content"`
		Overwrite bool   `json:"overwrite"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return operation.Result{}, operation.Errorf(operation.CodeInvalidArguments, "malformed arguments: %v", err)
	}

	if !permission.CheckFilePermission(args.Path, permission.VerbWrite, profile.FileRules) {
		return operation.Result{}, operation.Errorf(operation.CodeOSPermissionDenied,
			"agent %q lacks %q permission for path: %s", profile.AgentID, permission.VerbWrite, args.Path)
	}

	dir := filepath.Dir(args.Path)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return operation.Result{}, operation.Errorf(operation.CodeResourceNotFound,
			"parent directory does not exist or is not a directory: %s", dir)
	}

	if target, err := os.Stat(args.Path); err == nil {
		if target.IsDir() {
			return operation.Result{}, operation.Errorf(operation.CodeResourceExists,
				"path exists and is a directory: %s", args.Path)
		}
		if !args.Overwrite {
			return operation.Result{}, operation.Errorf(operation.CodeResourceExists,
				"file exists and overwrite is false: %s", args.Path)
		}
	}

	if err := os.WriteFile(args.Path, []byte(args.Content), 0o644); err != nil {
		return operation.Result{}, translateOSError(err, args.Path)
	}
	abs, _ := filepath.Abs(args.Path)
	return operation.Succeed(map[string]any{
		"bytes_written": len(args.Content),
		"path":          abs,
	}), nil
}

// DeleteFile removes a regular file. A missing file is an error, not a no-op.
type DeleteFile struct{}

func (DeleteFile) Descriptor() operation.Descriptor {
	return operation.Descriptor{
		Name:        "delete_file",
		Description: "Deletes a specified file.",
		Arguments: []operation.ArgumentDefinition{
			{Name: "path", Kind: operation.KindFilePath, Required: true, Description: "Path to the file to delete"},
		},
	}
}

func (DeleteFile) Execute(ctx context.Context, raw json.RawMessage, profile permission.Profile) (operation.Result, error) {
	var args struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return operation.Result{}, operation.Errorf(operation.CodeInvalidArguments, "malformed arguments: %v", err)
	}

	if !permission.CheckFilePermission(args.Path, permission.VerbDelete, profile.FileRules) {
		return operation.Result{}, operation.Errorf(operation.CodeOSPermissionDenied,
			"agent %q lacks %q permission for path: %s", profile.AgentID, permission.VerbDelete, args.Path)
	}

	info, err := os.Lstat(args.Path)
	if err != nil {
		return operation.Result{}, translateOSError(err, args.Path)
	}
	if info.IsDir() {
		return operation.Result{}, operation.Errorf(operation.CodeInvalidArguments,
			"path is not a file: %s", args.Path)
	}

	if err := os.Remove(args.Path); err != nil {
		return operation.Result{}, translateOSError(err, args.Path)
	}
	abs, _ := filepath.Abs(args.Path)
	return operation.Succeed(map[string]any{"path": abs}), nil
}

// ListDirectory lists directory entries, directories first, case-insensitive
// by name within each kind.
type ListDirectory struct{}

func (ListDirectory) Descriptor() operation.Descriptor {
	return operation.Descriptor{
		Name:        "list_directory",
		Description: "Lists the contents (files and subdirectories) of a specified directory.",
		Arguments: []operation.ArgumentDefinition{
			{Name: "path", Kind: operation.KindFilePath, Default: ".", Description: "Directory path"},
			{Name: "show_hidden", Kind: operation.KindBoolean, Default: false, Description: "Include entries starting with '.'"},
		},
	}
}

func (ListDirectory) Execute(ctx context.Context, raw json.RawMessage, profile permission.Profile) (operation.Result, error) {
	var args struct {
		Path       string `json:"path"`
		ShowHidden bool   `json:"show_hidden"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return operation.Result{}, operation.Errorf(operation.CodeInvalidArguments, "malformed arguments: %v", err)
	}

	if !permission.CheckFilePermission(args.Path, permission.VerbList, profile.FileRules) {
		return operation.Result{}, operation.Errorf(operation.CodeOSPermissionDenied,
			"agent %q lacks %q permission for directory: %s", profile.AgentID, permission.VerbList, args.Path)
	}

	entries, err := os.ReadDir(args.Path)
	if err != nil {
		return operation.Result{}, translateOSError(err, args.Path)
	}

	type item struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	var items []item
	for _, entry := range entries {
		name := entry.Name()
		if !args.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		kind := "file"
		switch {
		case entry.Type()&fs.ModeSymlink != 0:
			kind = "symlink"
		case entry.IsDir():
			kind = "directory"
		}
		items = append(items, item{Name: name, Type: kind})
	}
	sort.Slice(items, func(i, j int) bool {
		if (items[i].Type == "directory") != (items[j].Type == "directory") {
			return items[i].Type == "directory"
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})

	abs, _ := filepath.Abs(args.Path)
	return operation.Succeed(map[string]any{"path": abs, "contents": items}), nil
}

// translateOSError maps a filesystem error to the taxonomy.
func translateOSError(err error, path string) *operation.Error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return operation.Errorf(operation.CodeResourceNotFound, "file not found: %s", path)
	case errors.Is(err, fs.ErrPermission):
		return operation.Errorf(operation.CodeOSPermissionDenied, "OS-level permission denied for: %s", path)
	case errors.Is(err, fs.ErrExist):
		return operation.Errorf(operation.CodeResourceExists, "path already exists: %s", path)
	default:
		return operation.Errorf(operation.CodeOperationFailed,
			"filesystem operation on %q failed: %v", path, err)
	}
}
