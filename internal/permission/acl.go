package permission

import (
	"path/filepath"
	"strings"
)

// CheckFilePermission decides whether the given verb is granted on path
// by the ordered rule list. Among all rules whose resolved prefix equals
// the resolved target or is an ancestor directory of it, the longest
// prefix governs; the verb must appear in that rule's permission set.
// No matching rule is a deny — there is no allow-by-default.
//
// Matching is strictly on path-segment boundaries: "/tmp/a" never
// matches the prefix "/tmp/ab". Both target and prefixes are resolved
// to a canonical absolute form without requiring them to exist, so
// checks on not-yet-created paths still work. A path that cannot be
// resolved is a deny. This function never returns an error and never
// panics.
func CheckFilePermission(path string, verb Verb, rules []PathRule) bool {
	if path == "" || len(rules) == 0 {
		return false
	}

	target, ok := canonicalize(path)
	if !ok {
		return false
	}

	var best *PathRule
	bestLen := -1

	for i := range rules {
		rule := &rules[i]
		if rule.Prefix == "" {
			continue
		}
		prefix, ok := canonicalize(rule.Prefix)
		if !ok {
			continue
		}
		if !covers(prefix, target) {
			continue
		}
		// Strictly longer wins; ties keep the first match for
		// deterministic behavior.
		if len(prefix) > bestLen {
			bestLen = len(prefix)
			best = rule
		}
	}

	return best != nil && best.grants(verb)
}

// canonicalize resolves p to a clean absolute path, following symlinks
// through the longest existing ancestor so that rules keep working for
// paths that do not exist yet.
func canonicalize(p string) (string, bool) {
	if strings.ContainsRune(p, 0) {
		return "", false
	}

	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", false
	}

	// Walk up until a component resolves, then reattach the remainder.
	resolved := abs
	var suffix []string
	for {
		real, err := filepath.EvalSymlinks(resolved)
		if err == nil {
			if len(suffix) == 0 {
				return real, true
			}
			return filepath.Join(append([]string{real}, suffix...)...), true
		}
		parent := filepath.Dir(resolved)
		if parent == resolved {
			// Nothing on the path exists; the lexical form is canonical.
			return abs, true
		}
		suffix = append([]string{filepath.Base(resolved)}, suffix...)
		resolved = parent
	}
}

// covers reports whether prefix equals target or is an ancestor
// directory of it, on segment boundaries.
func covers(prefix, target string) bool {
	if prefix == target {
		return true
	}
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(target, prefix)
}
