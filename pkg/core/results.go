package core

import (
	"context"
	"io"
	"time"

	"github.com/dataporter/mysql-porter/pkg/catalog"
	"github.com/dataporter/mysql-porter/pkg/progress"
	"github.com/dataporter/mysql-porter/pkg/scheduler"
)

// SourceClient is the dump-side surface of the data-access
// collaborator.
type SourceClient interface {
	catalog.Source
	ServerVersion() (string, error)
	StreamRows(ctx context.Context, chunk catalog.Chunk, w io.Writer) (int64, error)
}

// TargetClient is the load-side surface of the data-access
// collaborator.
type TargetClient interface {
	ApplyDDL(ctx context.Context, schema, ddl string) error
	LoadRows(ctx context.Context, schema, table string, r io.Reader) (int64, error)
}

// Results describes the outcome of one dump or load run. State is the
// tri-state callers branch on: Completed (everything ran), Partial
// (named units failed, the rest ran), Failed/Cancelled (the run was
// torn down).
type Results struct {
	Start    time.Time
	End      time.Time
	State    progress.RunState
	Objects  int
	Chunks   int
	Executed int
	Skipped  int
	Bytes    int64
	Failures []scheduler.UnitFailure
}

// Failed reports whether anything at all went wrong.
func (r Results) Failed() bool {
	return r.State != progress.RunCompleted
}
