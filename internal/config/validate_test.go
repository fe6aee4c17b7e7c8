package config

import (
	"strings"
	"testing"

	"github.com/flemzord/opsgate/internal/permission"
)

func validConfig() *Config {
	return &Config{
		Version: "1",
		Permissions: permission.Rules{
			Agents: map[string]permission.Agent{
				"agent_smith": {Groups: []string{"file_writers"}},
			},
			Groups: map[string]permission.Group{
				"file_writers": {
					AllowedOperations: []string{"read_file", "write_file"},
					FileRules: []permission.PathRule{
						{Prefix: "/tmp/agent_data/", Permissions: []permission.Verb{permission.VerbRead, permission.VerbWrite}},
					},
				},
			},
		},
	}
}

func TestValidateValid(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateMissingVersion(t *testing.T) {
	cfg := validConfig()
	cfg.Version = ""
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "version field is required") {
		t.Fatalf("error = %v, want missing-version complaint", err)
	}
}

func TestValidateUnsupportedVersion(t *testing.T) {
	cfg := validConfig()
	cfg.Version = "2"
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported version") {
		t.Fatalf("error = %v, want unsupported-version complaint", err)
	}
}

func TestValidateUnknownGroupReference(t *testing.T) {
	cfg := validConfig()
	cfg.Permissions.Agents["agent_smith"] = permission.Agent{Groups: []string{"ghosts"}}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), `unknown group "ghosts"`) {
		t.Fatalf("error = %v, want unknown-group complaint", err)
	}
}

func TestValidateBadVerb(t *testing.T) {
	cfg := validConfig()
	group := cfg.Permissions.Groups["file_writers"]
	group.FileRules = []permission.PathRule{
		{Prefix: "/tmp/", Permissions: []permission.Verb{"execute"}},
	}
	cfg.Permissions.Groups["file_writers"] = group
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), `unknown permission verb "execute"`) {
		t.Fatalf("error = %v, want bad-verb complaint", err)
	}
}

func TestValidateBadCronSchedule(t *testing.T) {
	cfg := validConfig()
	cfg.Audit.PruneSchedule = "not a schedule"
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "prune_schedule") {
		t.Fatalf("error = %v, want schedule complaint", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Version = ""
	cfg.Permissions.Agents["agent_smith"] = permission.Agent{Groups: []string{"ghosts"}}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"version field is required", `unknown group "ghosts"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %v missing %q", err, want)
		}
	}
}
