package catalog

import (
	log "github.com/sirupsen/logrus"

	"github.com/dataporter/mysql-porter/pkg/apperrors"
	"github.com/dataporter/mysql-porter/pkg/filter"
)

// Source is the catalog introspection surface of the data-access
// collaborator. Implementations must be safe for concurrent use.
type Source interface {
	// ListTables returns base table names in catalog order.
	ListTables(schema string) ([]string, error)
	// ListViews returns view names in catalog order.
	ListViews(schema string) ([]string, error)
	// ListEvents returns event names in catalog order.
	ListEvents(schema string) ([]string, error)
	// ListRoutines returns routine names in catalog order.
	ListRoutines(schema string) ([]string, error)
	// ShowCreate returns the raw DDL for the named object.
	ShowCreate(kind Kind, schema, name string) (string, error)
	// TableInfo returns chunk planning metadata for one table.
	TableInfo(schema, name string) (TableInfo, error)
}

// ObjectError records a per-object introspection failure. Enumeration
// continues past it; fail-fast is decided by the scheduler layer.
type ObjectError struct {
	Schema string
	Name   string
	Kind   Kind
	Err    error
}

// Enumerator walks the source catalog honoring a filter.
type Enumerator struct {
	Source Source
	Logger *log.Entry
}

// Result is the outcome of one enumeration pass.
type Result struct {
	Objects []Object
	Tables  []TableInfo
	Errors  []ObjectError
}

// Enumerate produces the ordered object list for a filter: schemas in
// filter order, then tables, views, events and routines in catalog
// order within each schema. Per-object introspection failures are
// collected, never aborting the walk.
func (e *Enumerator) Enumerate(f *filter.Filter) (Result, error) {
	var res Result
	for _, schema := range f.Schemas() {
		ddl, err := e.Source.ShowCreate(KindSchema, schema, "")
		if err != nil {
			// a schema we cannot even describe is not recoverable per-object
			return res, &apperrors.SourceError{Op: "show create schema", Object: schema, Err: err}
		}
		res.Objects = append(res.Objects, Object{Schema: schema, Kind: KindSchema, DDL: ddl})

		e.walkKind(&res, KindTable, schema, f, e.Source.ListTables)
		e.walkKind(&res, KindView, schema, f, e.Source.ListViews)
		if f.IncludeEvents() {
			e.walkKind(&res, KindEvent, schema, f, e.Source.ListEvents)
		}
		if f.IncludeRoutines() {
			e.walkKind(&res, KindRoutine, schema, f, e.Source.ListRoutines)
		}
	}
	return res, nil
}

func (e *Enumerator) walkKind(res *Result, kind Kind, schema string, f *filter.Filter, list func(string) ([]string, error)) {
	names, err := list(schema)
	if err != nil {
		res.Errors = append(res.Errors, ObjectError{
			Schema: schema, Kind: kind,
			Err: &apperrors.SourceError{Op: "list " + string(kind) + "s", Object: schema, Err: err},
		})
		return
	}
	for _, name := range names {
		if kind == KindTable || kind == KindView {
			if f.TableExcluded(schema, name) {
				e.Logger.Debugf("skipping excluded %s %s.%s", kind, schema, name)
				continue
			}
		}
		ddl, err := e.Source.ShowCreate(kind, schema, name)
		if err != nil {
			res.Errors = append(res.Errors, ObjectError{
				Schema: schema, Name: name, Kind: kind,
				Err: &apperrors.SourceError{Op: "show create " + string(kind), Object: schema + "." + name, Err: err},
			})
			continue
		}
		res.Objects = append(res.Objects, Object{Schema: schema, Name: name, Kind: kind, DDL: ddl})

		if kind == KindTable {
			info, err := e.Source.TableInfo(schema, name)
			if err != nil {
				res.Errors = append(res.Errors, ObjectError{
					Schema: schema, Name: name, Kind: kind,
					Err: &apperrors.SourceError{Op: "table info", Object: schema + "." + name, Err: err},
				})
				continue
			}
			res.Tables = append(res.Tables, info)
		}
	}
}
