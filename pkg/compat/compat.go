// Package compat rewrites captured DDL for compatibility with a managed
// target environment. Every rule is a pure text transformation keyed by
// object kind; rewriting never touches the database, so the engine is
// fully unit-testable offline.
package compat

import (
	"sort"
	"strings"

	"github.com/dataporter/mysql-porter/pkg/apperrors"
	"github.com/dataporter/mysql-porter/pkg/catalog"
)

// Option is one named compatibility transformation.
type Option uint

const (
	// ForceInnoDB rewrites any table ENGINE clause to InnoDB.
	ForceInnoDB Option = 1 << iota
	// StripDefiners removes DEFINER clauses and downgrades
	// SQL SECURITY DEFINER to INVOKER.
	StripDefiners
	// StripTablespaces removes explicit TABLESPACE clauses.
	StripTablespaces
	// StripIndexOptions removes index options unsupported by managed
	// targets (KEY_BLOCK_SIZE, WITH PARSER).
	StripIndexOptions
)

// OptionSet is a set of enabled options.
type OptionSet uint

// MinTargetVersion is the minimum supported server version stamped into
// the manifest when the target-mode preset is enabled. Advisory
// metadata only; not enforced against the live target at dump time.
const MinTargetVersion = "8.0.21"

var optionNames = map[string]Option{
	"force_innodb":        ForceInnoDB,
	"strip_definers":      StripDefiners,
	"strip_tablespaces":   StripTablespaces,
	"strip_index_options": StripIndexOptions,
}

// ParseOptions resolves named options into a set. Unknown names fail
// fast with a configuration error, before any rewriting happens.
func ParseOptions(names []string) (OptionSet, error) {
	var set OptionSet
	for _, name := range names {
		opt, ok := optionNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, apperrors.Configf("unknown compatibility option: %q (supported: %s)",
				name, strings.Join(SupportedOptions(), ", "))
		}
		set |= OptionSet(opt)
	}
	return set, nil
}

// TargetPreset returns the option set enabled by target mode.
func TargetPreset() OptionSet {
	return OptionSet(ForceInnoDB | StripDefiners | StripTablespaces | StripIndexOptions)
}

// Enabled reports whether opt is in the set.
func (s OptionSet) Enabled(opt Option) bool {
	return s&OptionSet(opt) != 0
}

// Names returns the enabled option names, sorted.
func (s OptionSet) Names() []string {
	var names []string
	for name, opt := range optionNames {
		if s.Enabled(opt) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// SupportedOptions lists every recognized option name, sorted.
func SupportedOptions() []string {
	names := make([]string, 0, len(optionNames))
	for name := range optionNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply rewrites ddl according to the enabled options. Rules run in a
// fixed order (the Option declaration order), so the output depends
// only on the inputs, never on how the set was assembled.
func Apply(ddl string, kind catalog.Kind, set OptionSet) string {
	for _, r := range rules {
		if set.Enabled(r.option) && r.applies(kind) {
			ddl = r.rewrite(ddl)
		}
	}
	return ddl
}
