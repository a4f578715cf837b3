// Package watch resolves the set of remote heads a fusionner instance
// should track: a literal set of reference names unioned with a set of
// regular-expression alternatives.
package watch

import (
	"fmt"
	"regexp"
)

// RemoteHead is the minimal view of an advertised remote reference the
// resolver needs. Implementations live in internal/gitrepo.
type RemoteHead interface {
	// Flatten returns the symref target if this head is a symbolic
	// reference (e.g. "HEAD"), else its own name.
	Flatten() string
}

// References compiles a literal set and a set of regular expressions used
// to select watched topic references out of a remote's advertisement.
type References struct {
	literals map[string]struct{}
	patterns []*regexp.Regexp
}

// New compiles literals and regexes into a References. It fails with a
// wrapped regexp.Compile error if any regex pattern is
// invalid.
func New(literals []string, regexes []string) (*References, error) {
	lits := make(map[string]struct{}, len(literals))
	for _, l := range literals {
		lits[l] = struct{}{}
	}

	patterns := make([]*regexp.Regexp, 0, len(regexes))
	for _, pattern := range regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("watch: invalid watch regex %q: %w", pattern, err)
		}
		patterns = append(patterns, re)
	}

	return &References{literals: lits, patterns: patterns}, nil
}

// Matches reports whether name is selected by the literal set or any
// compiled regex.
func (r *References) Matches(name string) bool {
	if _, ok := r.literals[name]; ok {
		return true
	}
	for _, re := range r.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Resolve returns the flattened names of every head in heads whose
// (already-flattened) name matches the literal set or a compiled regex,
// deduplicated, in the order they first appear in heads.
func Resolve[T RemoteHead](r *References, heads []T) []string {
	seen := make(map[string]struct{})
	var out []string

	for _, h := range heads {
		name := h.Flatten()
		if !r.Matches(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	return out
}
