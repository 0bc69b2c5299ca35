package core

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dataporter/mysql-porter/pkg/apperrors"
	"github.com/dataporter/mysql-porter/pkg/catalog"
	"github.com/dataporter/mysql-porter/pkg/compat"
	"github.com/dataporter/mysql-porter/pkg/compression"
	"github.com/dataporter/mysql-porter/pkg/database"
	"github.com/dataporter/mysql-porter/pkg/dumpstore"
	"github.com/dataporter/mysql-porter/pkg/filter"
	"github.com/dataporter/mysql-porter/pkg/progress"
	"github.com/dataporter/mysql-porter/pkg/scheduler"
)

// Dump runs a single dump based on the provided opts. Configuration is
// validated in full before any database or filesystem I/O.
func (e *Executor) Dump(ctx context.Context, opts DumpOptions) (Results, error) {
	results := Results{Start: time.Now(), State: progress.RunFailed}
	defer func() { results.End = time.Now() }()

	logger := e.Logger.WithField("run", opts.Run.String())

	f, err := filter.New(opts.Schemas, opts.ExcludeTables, opts.Events, opts.Routines)
	if err != nil {
		return results, err
	}
	optset, err := compat.ParseOptions(opts.Compatibility)
	if err != nil {
		return results, err
	}
	if opts.TargetMode {
		optset |= compat.TargetPreset()
	}
	compressor, err := compression.GetCompressor(opts.Compression)
	if err != nil {
		return results, err
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	source := opts.Source
	if source == nil {
		db, err := opts.DBConn.Open(opts.Workers)
		if err != nil {
			return results, err
		}
		defer db.Close()
		source = database.NewClient(db)
	}

	serverVersion, err := source.ServerVersion()
	if err != nil {
		return results, &apperrors.SourceError{Op: "server version", Err: err}
	}
	logger.Infof("beginning dump of %d schema(s) from server %s", len(opts.Schemas), serverVersion)

	enum := &catalog.Enumerator{Source: source, Logger: logger}
	enumerated, err := enum.Enumerate(f)
	if err != nil {
		return results, err
	}
	if len(enumerated.Errors) > 0 {
		for _, oe := range enumerated.Errors {
			obj := catalog.Object{Schema: oe.Schema, Name: oe.Name, Kind: oe.Kind}
			logger.Warnf("failed to introspect %s %s: %v", oe.Kind, obj.QualifiedName(), oe.Err)
			results.Failures = append(results.Failures, scheduler.UnitFailure{
				ID:  scheduler.DDLUnit(obj).ID,
				Err: oe.Err,
			})
		}
		if opts.FailFast {
			return results, enumerated.Errors[0].Err
		}
	}

	var units []scheduler.Unit
	chunksPerTable := map[string]int{}
	for _, obj := range enumerated.Objects {
		units = append(units, scheduler.DDLUnit(obj))
	}
	for _, table := range enumerated.Tables {
		chunks := catalog.PlanChunks(table, chunkSize)
		chunksPerTable[table.QualifiedName()] = len(chunks)
		if table.OrderingKey == "" && table.RowEstimate > chunkSize {
			logger.Warnf("table %s has no usable ordering key, dumping as a single chunk", table.QualifiedName())
		}
		for _, chunk := range chunks {
			units = append(units, scheduler.DataUnit(chunk))
		}
	}
	results.Objects = len(enumerated.Objects)
	results.Chunks = len(units) - len(enumerated.Objects)

	if opts.DryRun {
		for _, u := range units {
			logger.Infof("plan: %s", u.ID)
		}
		logger.Infof("dry run: %d objects, %d chunks, nothing written", results.Objects, results.Chunks)
		results.State = progress.RunCompleted
		return results, nil
	}

	store, err := dumpstore.Create(opts.Dir, compressor)
	if err != nil {
		return results, err
	}
	defer store.Close()

	manifest := &dumpstore.Manifest{
		FormatVersion: 1,
		ServerVersion: serverVersion,
		StartedAt:     time.Now().UTC(),
		Schemas:       f.Schemas(),
		Compatibility: optset.Names(),
		TargetMode:    opts.TargetMode,
		Compression:   opts.Compression,
		ChunkSize:     chunkSize,
		TotalObjects:  results.Objects,
		TotalChunks:   results.Chunks,
	}
	if opts.TargetMode {
		manifest.MinTargetVersion = compat.MinTargetVersion
	}
	for _, obj := range enumerated.Objects {
		mo := dumpstore.ManifestObject{Schema: obj.Schema, Name: obj.Name, Kind: obj.Kind}
		if obj.Kind == catalog.KindTable {
			mo.Chunks = chunksPerTable[obj.QualifiedName()]
		}
		manifest.Objects = append(manifest.Objects, mo)
	}
	if err := store.WriteManifest(manifest); err != nil {
		return results, err
	}

	cp, err := store.LoadCheckpoint(dumpstore.DumpCheckpointName)
	if err != nil {
		return results, err
	}
	if cp.Len() > 0 {
		logger.Infof("resuming: %d unit(s) already complete", cp.Len())
	}

	var bytes int64
	exec := func(ctx context.Context, unit scheduler.Unit) (dumpstore.Artifact, error) {
		var (
			art dumpstore.Artifact
			err error
		)
		switch unit.Kind {
		case scheduler.UnitDDL:
			ddl := compat.Apply(unit.Obj.DDL, unit.Obj.Kind, optset)
			art, err = store.WriteDDL(unit.Obj, ddl)
		case scheduler.UnitData:
			art, err = store.WriteChunk(*unit.Chunk, func(w io.Writer) error {
				n, serr := source.StreamRows(ctx, *unit.Chunk, w)
				if serr != nil {
					return &apperrors.SourceError{
						Op:     "stream rows",
						Object: fmt.Sprintf("%s.%s", unit.Chunk.Schema, unit.Chunk.Table),
						Err:    serr,
					}
				}
				logger.Tracef("chunk %s: %d rows", unit.ID, n)
				return nil
			})
		}
		if err == nil {
			atomic.AddInt64(&bytes, art.Bytes)
		}
		return art, err
	}

	sched := &scheduler.Scheduler{
		Workers:  opts.Workers,
		Retries:  opts.Retries,
		FailFast: opts.FailFast,
		Logger:   logger,
	}
	schedRes, err := sched.Run(ctx, [][]scheduler.Unit{units}, cp, exec)
	if err != nil {
		return results, err
	}

	results.State = schedRes.State
	results.Executed = schedRes.Executed
	results.Skipped = schedRes.Skipped
	results.Bytes = atomic.LoadInt64(&bytes)
	results.Failures = append(results.Failures, schedRes.Failures...)
	// introspection failures downgrade a clean scheduler run too
	if results.State == progress.RunCompleted && len(results.Failures) > 0 {
		results.State = progress.RunPartial
	}

	if results.State == progress.RunCompleted {
		now := time.Now().UTC()
		manifest.CompletedAt = &now
		manifest.Complete = true
		if err := store.WriteManifest(manifest); err != nil {
			return results, err
		}
	}

	logger.Infof("dump %s: %d objects, %d chunks, %s written, %d skipped, %d failed in %s",
		results.State, results.Objects, results.Chunks, humanize.Bytes(uint64(results.Bytes)),
		results.Skipped, len(results.Failures), time.Since(results.Start).Round(time.Millisecond))
	for _, failure := range results.Failures {
		logger.Errorf("failed unit %s: %v", failure.ID, failure.Err)
	}
	return results, nil
}
