// Package permission implements the hierarchical agent/group permission
// model and the file-path ACL resolver. Agents belong to groups; groups
// declare allowed operation names (possibly the wildcard "*") and ordered
// path-prefix rules. Resolution merges both into one effective profile
// per caller identity.
package permission

import (
	"log/slog"
	"slices"
)

// Wildcard grants every registered operation when present in an
// allowed-operations list.
const Wildcard = "*"

// Verb is a file-access verb checked against PathRule permissions.
type Verb string

// File-access verbs.
const (
	VerbRead   Verb = "read"
	VerbWrite  Verb = "write"
	VerbDelete Verb = "delete"
	VerbList   Verb = "list"
)

// ValidVerb reports whether v is one of the known file-access verbs.
func ValidVerb(v Verb) bool {
	switch v {
	case VerbRead, VerbWrite, VerbDelete, VerbList:
		return true
	default:
		return false
	}
}

// PathRule grants a set of verbs for a directory subtree. Multiple rules
// may cover overlapping paths; the longest resolved prefix wins at
// check-time, not declaration order.
type PathRule struct {
	Prefix      string `yaml:"path_prefix"`
	Permissions []Verb `yaml:"permissions"`
}

// grants reports whether the rule lists the given verb.
func (r PathRule) grants(verb Verb) bool {
	return slices.Contains(r.Permissions, verb)
}

// Group is a named bundle of allowed operations and file rules.
// Any additional YAML keys (for example command_whitelist) are captured
// into Extra and carried opaquely on the resolved profile.
type Group struct {
	AllowedOperations []string       `yaml:"allowed_operations"`
	FileRules         []PathRule     `yaml:"file_rules"`
	Extra             map[string]any `yaml:",inline"`
}

// Agent assigns a caller identity to groups, in order.
type Agent struct {
	Groups []string `yaml:"groups"`
}

// Seed is the baseline profile applied before any group, and the whole
// profile for unknown or anonymous callers. It is intentionally minimal:
// anything not granted here or by a group is denied.
type Seed struct {
	AllowedOperations []string   `yaml:"allowed_operations"`
	FileRules         []PathRule `yaml:"file_rules"`
}

// Rules is the static permission configuration, loaded once at startup
// and never mutated while serving requests.
type Rules struct {
	Default Seed             `yaml:"default"`
	Agents  map[string]Agent `yaml:"agents"`
	Groups  map[string]Group `yaml:"groups"`
}

// Profile is the resolved, effective permission set for one caller.
// It is computed fresh per request and owned by that request.
type Profile struct {
	AgentID           string
	AllowedOperations []string
	FileRules         []PathRule
	Extra             map[string]any
}

// Allows reports whether the profile permits the named operation,
// either explicitly or through the wildcard.
func (p Profile) Allows(operation string) bool {
	return slices.Contains(p.AllowedOperations, Wildcard) ||
		slices.Contains(p.AllowedOperations, operation)
}

// CommandWhitelist returns the command whitelist carried from group
// configuration, if any. A nil return means no whitelist applies.
func (p Profile) CommandWhitelist() []string {
	raw, ok := p.Extra["command_whitelist"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Resolver computes effective permission profiles from static rules.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	rules  Rules
	logger *slog.Logger
}

// NewResolver creates a resolver over the given rules. A nil logger
// defaults to slog.Default.
func NewResolver(rules Rules, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{rules: rules, logger: logger}
}

// Resolve merges the default seed with the agent's groups, in configured
// order, into one effective profile.
//
// Merge semantics: the wildcard is sticky and always wins regardless of
// group order; once seen, specific operation names are no longer
// accumulated. File rules are concatenated from every group in order,
// never deduplicated or reordered (the ACL check decides by prefix
// length, not position). For any other group key, the last group wins.
//
// An empty or unknown agentID resolves to the default seed alone.
func (r *Resolver) Resolve(agentID string) Profile {
	profile := Profile{
		AgentID:           agentID,
		AllowedOperations: slices.Clone(r.rules.Default.AllowedOperations),
		FileRules:         slices.Clone(r.rules.Default.FileRules),
		Extra:             map[string]any{},
	}
	if profile.AgentID == "" {
		profile.AgentID = "default"
	}

	agent, known := r.rules.Agents[agentID]
	if agentID == "" || !known {
		r.logger.Debug("resolving default permissions", "agent_id", profile.AgentID)
		return profile
	}

	wildcard := slices.Contains(profile.AllowedOperations, Wildcard)
	ops := make(map[string]struct{}, len(profile.AllowedOperations))
	for _, name := range profile.AllowedOperations {
		ops[name] = struct{}{}
	}

	for _, groupName := range agent.Groups {
		group, ok := r.rules.Groups[groupName]
		if !ok {
			r.logger.Warn("agent assigned to unknown group",
				"agent_id", agentID, "group", groupName)
			continue
		}

		if slices.Contains(group.AllowedOperations, Wildcard) {
			wildcard = true
		}
		if !wildcard {
			for _, name := range group.AllowedOperations {
				ops[name] = struct{}{}
			}
		}

		profile.FileRules = append(profile.FileRules, group.FileRules...)

		for key, value := range group.Extra {
			profile.Extra[key] = value
		}
	}

	if wildcard {
		profile.AllowedOperations = []string{Wildcard}
	} else {
		names := make([]string, 0, len(ops))
		for name := range ops {
			names = append(names, name)
		}
		slices.Sort(names)
		profile.AllowedOperations = names
	}

	return profile
}
