package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/flemzord/opsgate/internal/permission"
)

// Validate checks the structural validity of a Config: the version
// field, agent/group cross-references, path rule shape, and the audit
// prune schedule. All problems are reported at once via errors.Join.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validatePermissions(cfg.Permissions)...)

	if cfg.Audit.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("config: audit.retention_days must not be negative, got %d", cfg.Audit.RetentionDays))
	}
	if cfg.Audit.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Audit.PruneSchedule); err != nil {
			errs = append(errs, fmt.Errorf("config: audit.prune_schedule: %w", err))
		}
	}

	if cfg.Limits.Burst < 0 {
		errs = append(errs, fmt.Errorf("config: limits.burst must not be negative, got %d", cfg.Limits.Burst))
	}

	return errors.Join(errs...)
}

func validatePermissions(rules permission.Rules) []error {
	var errs []error

	errs = append(errs, validateFileRules("permissions.default", rules.Default.FileRules)...)

	for name, agent := range rules.Agents {
		if name == "" {
			errs = append(errs, errors.New("config: agent name must not be empty"))
		}
		for _, groupName := range agent.Groups {
			if _, ok := rules.Groups[groupName]; !ok {
				errs = append(errs, fmt.Errorf(
					"config: agent %q references unknown group %q", name, groupName))
			}
		}
	}

	for name, group := range rules.Groups {
		if name == "" {
			errs = append(errs, errors.New("config: group name must not be empty"))
		}
		errs = append(errs, validateFileRules(
			fmt.Sprintf("permissions.groups.%s", name), group.FileRules)...)
	}

	return errs
}

func validateFileRules(where string, rules []permission.PathRule) []error {
	var errs []error
	for i, rule := range rules {
		if strings.TrimSpace(rule.Prefix) == "" {
			errs = append(errs, fmt.Errorf("config: %s.file_rules[%d]: path_prefix is required", where, i))
		}
		if len(rule.Permissions) == 0 {
			errs = append(errs, fmt.Errorf("config: %s.file_rules[%d]: at least one permission verb is required", where, i))
		}
		for _, verb := range rule.Permissions {
			if !permission.ValidVerb(verb) {
				errs = append(errs, fmt.Errorf(
					"config: %s.file_rules[%d]: unknown permission verb %q", where, i, verb))
			}
		}
	}
	return errs
}
