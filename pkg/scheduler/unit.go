package scheduler

import (
	"fmt"

	"github.com/dataporter/mysql-porter/pkg/catalog"
)

// UnitKind distinguishes DDL capture/apply from data chunk transfer.
type UnitKind string

const (
	UnitDDL  UnitKind = "ddl"
	UnitData UnitKind = "data"
)

// Unit is the smallest schedulable piece of dump or load work: one DDL
// object or one data chunk. Its identifier is a deterministic function
// of (object, kind, chunk index), so re-planning after a resume
// reproduces identical identifiers as long as the schema/table set and
// chunk size are unchanged.
type Unit struct {
	ID    string
	Kind  UnitKind
	Obj   catalog.Object
	Chunk *catalog.Chunk
}

// DDLUnit builds the work unit for one catalog object's DDL.
func DDLUnit(obj catalog.Object) Unit {
	return Unit{
		ID:   fmt.Sprintf("ddl:%s:%s", obj.Kind, obj.QualifiedName()),
		Kind: UnitDDL,
		Obj:  obj,
	}
}

// DataUnit builds the work unit for one data chunk.
func DataUnit(chunk catalog.Chunk) Unit {
	c := chunk
	return Unit{
		ID:    fmt.Sprintf("data:%s.%s:%05d", chunk.Schema, chunk.Table, chunk.Index),
		Kind:  UnitData,
		Chunk: &c,
	}
}
