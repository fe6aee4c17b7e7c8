package config

import "slices"

// AgentIDs returns the configured agent identifiers in sorted order.
// The deterministic order keeps CLI listings and logs stable.
func AgentIDs(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Permissions.Agents))
	for id := range cfg.Permissions.Agents {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// GroupNames returns the configured group names in sorted order.
func GroupNames(cfg *Config) []string {
	names := make([]string, 0, len(cfg.Permissions.Groups))
	for name := range cfg.Permissions.Groups {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
