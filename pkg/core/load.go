package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dataporter/mysql-porter/pkg/apperrors"
	"github.com/dataporter/mysql-porter/pkg/catalog"
	"github.com/dataporter/mysql-porter/pkg/database"
	"github.com/dataporter/mysql-porter/pkg/dumpstore"
	"github.com/dataporter/mysql-porter/pkg/progress"
	"github.com/dataporter/mysql-porter/pkg/scheduler"
)

// Load reconstructs a dumped state in the target server. Tables must
// exist before their rows arrive, so DDL is applied in dependency
// phases (schemas, tables, views, events/routines) before any data
// chunk is dispatched; within each phase units run in parallel.
func (e *Executor) Load(ctx context.Context, opts LoadOptions) (Results, error) {
	results := Results{Start: time.Now(), State: progress.RunFailed}
	defer func() { results.End = time.Now() }()

	logger := e.Logger.WithField("run", opts.Run.String())

	store, manifest, err := dumpstore.OpenForLoad(opts.Dir)
	if err != nil {
		return results, err
	}
	defer store.Close()

	if !manifest.Complete {
		return results, fmt.Errorf("dump in %s is not complete and cannot be loaded", opts.Dir)
	}
	logger.Infof("loading dump of %d object(s) taken from server %s", manifest.TotalObjects, manifest.ServerVersion)
	if manifest.MinTargetVersion != "" {
		logger.Infof("dump was prepared for target version %s or newer", manifest.MinTargetVersion)
	}

	target := opts.Target
	if target == nil {
		db, err := opts.DBConn.Open(opts.Workers)
		if err != nil {
			return results, err
		}
		defer db.Close()
		target = database.NewClient(db)
	}

	// artifact index from the dump side, apply progress on the load side
	index, err := store.LoadCheckpoint(dumpstore.DumpCheckpointName)
	if err != nil {
		return results, err
	}
	cp, err := store.LoadCheckpoint(dumpstore.LoadCheckpointName)
	if err != nil {
		return results, err
	}
	if cp.Len() > 0 {
		logger.Infof("resuming: %d unit(s) already applied", cp.Len())
	}

	phases := planLoadPhases(manifest)
	results.Objects = manifest.TotalObjects
	results.Chunks = manifest.TotalChunks

	var bytes int64
	exec := func(ctx context.Context, unit scheduler.Unit) (dumpstore.Artifact, error) {
		art, ok := index.Artifact(unit.ID)
		if !ok {
			return dumpstore.Artifact{}, &apperrors.IntegrityError{
				Artifact: unit.ID, Expected: "recorded in dump checkpoint", Actual: "missing",
			}
		}
		switch unit.Kind {
		case scheduler.UnitDDL:
			ddl, err := store.ReadDDL(art)
			if err != nil {
				return art, err
			}
			schema := ""
			if unit.Obj.Kind != catalog.KindSchema {
				schema = unit.Obj.Schema
			}
			if err := target.ApplyDDL(ctx, schema, ddl); err != nil {
				return art, &apperrors.ApplyError{Unit: unit.ID, Err: err}
			}
		case scheduler.UnitData:
			r, err := store.OpenChunk(art)
			if err != nil {
				return art, err
			}
			n, err := target.LoadRows(ctx, unit.Chunk.Schema, unit.Chunk.Table, r)
			r.Close()
			if err != nil {
				return art, &apperrors.ApplyError{Unit: unit.ID, Err: err}
			}
			logger.Tracef("chunk %s: %d rows applied", unit.ID, n)
		}
		atomic.AddInt64(&bytes, art.Bytes)
		return art, nil
	}

	sched := &scheduler.Scheduler{
		Workers:  opts.Workers,
		Retries:  opts.Retries,
		FailFast: opts.FailFast,
		Logger:   logger,
	}
	schedRes, err := sched.Run(ctx, phases, cp, exec)
	if err != nil {
		return results, err
	}

	results.State = schedRes.State
	results.Executed = schedRes.Executed
	results.Skipped = schedRes.Skipped
	results.Failures = schedRes.Failures
	results.Bytes = atomic.LoadInt64(&bytes)

	logger.Infof("load %s: %d objects, %d chunks, %s applied, %d skipped, %d failed in %s",
		results.State, results.Objects, results.Chunks, humanize.Bytes(uint64(results.Bytes)),
		results.Skipped, len(results.Failures), time.Since(results.Start).Round(time.Millisecond))
	for _, failure := range results.Failures {
		logger.Errorf("failed unit %s: %v", failure.ID, failure.Err)
	}
	return results, nil
}

// planLoadPhases rebuilds the deterministic work units from the
// manifest and orders them so every object exists before anything that
// depends on it: schemas, then tables, then views, then events and
// routines, then data chunks.
func planLoadPhases(manifest *dumpstore.Manifest) [][]scheduler.Unit {
	var schemas, tables, views, code, data []scheduler.Unit
	for _, mo := range manifest.Objects {
		obj := catalog.Object{Schema: mo.Schema, Name: mo.Name, Kind: mo.Kind}
		unit := scheduler.DDLUnit(obj)
		switch mo.Kind {
		case catalog.KindSchema:
			schemas = append(schemas, unit)
		case catalog.KindTable:
			tables = append(tables, unit)
			for i := 0; i < mo.Chunks; i++ {
				data = append(data, scheduler.DataUnit(catalog.Chunk{
					Schema: mo.Schema,
					Table:  mo.Name,
					Index:  i,
				}))
			}
		case catalog.KindView:
			views = append(views, unit)
		default:
			code = append(code, unit)
		}
	}

	var phases [][]scheduler.Unit
	for _, phase := range [][]scheduler.Unit{schemas, tables, views, code, data} {
		if len(phase) > 0 {
			phases = append(phases, phase)
		}
	}
	return phases
}
