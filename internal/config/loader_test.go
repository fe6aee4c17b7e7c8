package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
version: "1"
server:
  listen_addr: "${OPSGATE_TEST_ADDR:-127.0.0.1:9000}"
  request_timeout: 15s
permissions:
  default:
    allowed_operations: [ping]
  agents:
    agent_smith:
      groups: [file_writers]
  groups:
    file_writers:
      allowed_operations: [read_file, write_file]
      file_rules:
        - path_prefix: /tmp/agent_data/
          permissions: [read, write]
      command_whitelist: [ls, cat]
audit:
  log_path: /var/log/opsgate/audit.jsonl
limits:
  requests_per_second: 10
  burst: 20
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("listen_addr = %q, want env default applied", cfg.Server.ListenAddr)
	}
	if cfg.Server.RequestTimeout != 15*time.Second {
		t.Errorf("request_timeout = %v", cfg.Server.RequestTimeout)
	}
	if cfg.Server.MaxBodyBytes != DefaultMaxBodyBytes {
		t.Errorf("max_body_bytes = %d, want filled default", cfg.Server.MaxBodyBytes)
	}
	if cfg.Audit.PruneSchedule != DefaultPruneSchedule {
		t.Errorf("prune_schedule = %q, want filled default", cfg.Audit.PruneSchedule)
	}

	group, ok := cfg.Permissions.Groups["file_writers"]
	if !ok {
		t.Fatal("group file_writers missing")
	}
	if len(group.FileRules) != 1 || group.FileRules[0].Prefix != "/tmp/agent_data/" {
		t.Errorf("file_rules = %+v", group.FileRules)
	}
	// custom group keys land in Extra via the inline map
	if _, ok := group.Extra["command_whitelist"]; !ok {
		t.Errorf("command_whitelist missing from Extra: %+v", group.Extra)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("OPSGATE_TEST_ADDR", "0.0.0.0:7000")
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.ListenAddr != "0.0.0.0:7000" {
		t.Errorf("listen_addr = %q, want env value", cfg.Server.ListenAddr)
	}
}

func TestLoadDirectEnvTagOverride(t *testing.T) {
	t.Setenv("OPSGATE_LISTEN_ADDR", "[::1]:6000")
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.ListenAddr != "[::1]:6000" {
		t.Errorf("listen_addr = %q, want tagged override to win over the file", cfg.Server.ListenAddr)
	}
}

func TestLoadUnresolvedVariable(t *testing.T) {
	_, err := Load(writeConfig(t, "version: \"1\"\nserver:\n  listen_addr: \"${OPSGATE_NO_SUCH_VAR}\"\n"))
	if err == nil || !strings.Contains(err.Error(), "unresolved variable: OPSGATE_NO_SUCH_VAR") {
		t.Fatalf("error = %v, want unresolved-variable complaint", err)
	}
}
