package core

import (
	"github.com/google/uuid"

	"github.com/dataporter/mysql-porter/pkg/database"
)

const (
	DefaultChunkSize = 100000
)

type DumpOptions struct {
	DBConn        database.Connection
	Dir           string
	Schemas       []string
	ExcludeTables []string
	Events        bool
	Routines      bool
	Compatibility []string
	TargetMode    bool
	Compression   string
	ChunkSize     int64
	Workers       int
	Retries       int
	FailFast      bool
	DryRun        bool
	Run           uuid.UUID

	// Source overrides the client built from DBConn; tests use it to
	// run without a live server.
	Source SourceClient
}
