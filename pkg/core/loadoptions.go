package core

import (
	"github.com/google/uuid"

	"github.com/dataporter/mysql-porter/pkg/database"
)

type LoadOptions struct {
	DBConn   database.Connection
	Dir      string
	Workers  int
	Retries  int
	FailFast bool
	Run      uuid.UUID

	// Target overrides the client built from DBConn; tests use it to
	// run without a live server.
	Target TargetClient
}
