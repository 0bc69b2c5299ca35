// Package filter resolves which schemas, tables, events and routines
// participate in a dump. A Filter is validated once, before any I/O,
// and is immutable afterwards.
package filter

import (
	"strings"

	"github.com/dataporter/mysql-porter/pkg/apperrors"
)

// Filter is the validated object selection for one run.
type Filter struct {
	schemas  []string
	excluded map[string]map[string]bool // schema -> table -> true
	events   bool
	routines bool
}

// New validates and builds a Filter. Exclusion entries must be of the
// form schema.table, and the named schema must be among the requested
// schemas; anything else is a configuration error, not a no-op.
func New(schemas []string, excludeTables []string, events, routines bool) (*Filter, error) {
	if len(schemas) == 0 {
		return nil, apperrors.Configf("the schemas list cannot be empty")
	}
	requested := make(map[string]bool, len(schemas))
	for _, s := range schemas {
		if s == "" {
			return nil, apperrors.Configf("schema name cannot be empty")
		}
		requested[s] = true
	}

	excluded := map[string]map[string]bool{}
	for _, entry := range excludeTables {
		schema, table, err := splitSchemaAndTable(entry)
		if err != nil {
			return nil, err
		}
		if !requested[schema] {
			return nil, apperrors.Configf(
				"excluded table %q references schema %q which is not among the requested schemas", entry, schema)
		}
		if excluded[schema] == nil {
			excluded[schema] = map[string]bool{}
		}
		excluded[schema][table] = true
	}

	return &Filter{
		schemas:  append([]string{}, schemas...),
		excluded: excluded,
		events:   events,
		routines: routines,
	}, nil
}

// Schemas returns the requested schemas in their original order.
func (f *Filter) Schemas() []string {
	return append([]string{}, f.schemas...)
}

// TableExcluded reports whether schema.table was excluded.
func (f *Filter) TableExcluded(schema, table string) bool {
	return f.excluded[schema][table]
}

// IncludeEvents reports whether event definitions are dumped.
func (f *Filter) IncludeEvents() bool { return f.events }

// IncludeRoutines reports whether routine definitions are dumped.
func (f *Filter) IncludeRoutines() bool { return f.routines }

// splitSchemaAndTable parses one exclusion entry, accepting optional
// backtick quotes around either identifier.
func splitSchemaAndTable(entry string) (schema, table string, err error) {
	parts := strings.Split(entry, ".")
	if len(parts) != 2 {
		return "", "", apperrors.Configf(
			"the table to be excluded must be in the form schema.table, wrong value: %q", entry)
	}
	schema = unquote(parts[0])
	table = unquote(parts[1])
	if schema == "" || table == "" {
		return "", "", apperrors.Configf(
			"the table to be excluded must be in the form schema.table, wrong value: %q", entry)
	}
	return schema, table, nil
}

func unquote(ident string) string {
	if len(ident) >= 2 && strings.HasPrefix(ident, "`") && strings.HasSuffix(ident, "`") {
		return ident[1 : len(ident)-1]
	}
	return ident
}
