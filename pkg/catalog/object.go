// Package catalog walks the source server's catalog to produce the
// ordered list of objects participating in a dump, and plans how each
// table's rows are split into bounded chunks.
package catalog

import "fmt"

// Kind identifies the type of a catalog object.
type Kind string

const (
	KindSchema  Kind = "schema"
	KindTable   Kind = "table"
	KindView    Kind = "view"
	KindEvent   Kind = "event"
	KindRoutine Kind = "routine"
)

// Object is one schema, table, view, event or routine, with its raw DDL
// as captured from the source. Immutable once produced.
type Object struct {
	Schema string
	Name   string // empty for KindSchema
	Kind   Kind
	DDL    string
}

// QualifiedName returns schema.name, or just the schema for schema
// objects.
func (o Object) QualifiedName() string {
	if o.Name == "" {
		return o.Schema
	}
	return fmt.Sprintf("%s.%s", o.Schema, o.Name)
}

// TableInfo describes one table for chunk planning purposes.
type TableInfo struct {
	Schema      string
	Name        string
	RowEstimate int64
	OrderingKey string // empty when the table has no usable ordering key
}

func (t TableInfo) QualifiedName() string {
	return fmt.Sprintf("%s.%s", t.Schema, t.Name)
}
