package core

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataporter/mysql-porter/pkg/apperrors"
	"github.com/dataporter/mysql-porter/pkg/catalog"
	"github.com/dataporter/mysql-porter/pkg/database"
	"github.com/dataporter/mysql-porter/pkg/dumpstore"
	"github.com/dataporter/mysql-porter/pkg/progress"
)

// fakeSource serves a small fixed catalog with generated rows.
type fakeSource struct {
	rowsPerTable map[string]int64 // schema.table -> rows
}

func newFakeSource() *fakeSource {
	return &fakeSource{rowsPerTable: map[string]int64{
		"s1.t1":       250,
		"s1.t_secret": 10,
		"s1.t_nokey":  40,
	}}
}

func (f *fakeSource) ServerVersion() (string, error) { return "8.0.36-test", nil }

func (f *fakeSource) ListTables(schema string) ([]string, error) {
	if schema != "s1" {
		return nil, nil
	}
	return []string{"t1", "t_secret", "t_nokey"}, nil
}

func (f *fakeSource) ListViews(schema string) ([]string, error) {
	if schema != "s1" {
		return nil, nil
	}
	return []string{"v1"}, nil
}

func (f *fakeSource) ListEvents(string) ([]string, error)   { return []string{"e1"}, nil }
func (f *fakeSource) ListRoutines(string) ([]string, error) { return nil, nil }

func (f *fakeSource) ShowCreate(kind catalog.Kind, schema, name string) (string, error) {
	switch kind {
	case catalog.KindSchema:
		return "CREATE DATABASE `" + schema + "`", nil
	case catalog.KindTable:
		return "CREATE TABLE `" + name + "` (`id` int NOT NULL, `val` varchar(32)) ENGINE=MyISAM", nil
	case catalog.KindView:
		return "CREATE ALGORITHM=UNDEFINED DEFINER=`root`@`localhost` SQL SECURITY DEFINER VIEW `" + name + "` AS select 1", nil
	case catalog.KindEvent:
		return "CREATE DEFINER=`root`@`localhost` EVENT `" + name + "` ON SCHEDULE EVERY 1 DAY DO BEGIN END", nil
	}
	return "", fmt.Errorf("unexpected kind %s", kind)
}

func (f *fakeSource) TableInfo(schema, name string) (catalog.TableInfo, error) {
	info := catalog.TableInfo{Schema: schema, Name: name, RowEstimate: f.rowsPerTable[schema+"."+name]}
	if name != "t_nokey" {
		info.OrderingKey = "id"
	}
	return info, nil
}

func (f *fakeSource) StreamRows(ctx context.Context, chunk catalog.Chunk, w io.Writer) (int64, error) {
	start, end := chunk.Start, chunk.End
	if chunk.OrderingKey == "" {
		start, end = 0, f.rowsPerTable[chunk.Schema+"."+chunk.Table]
	}
	for i := start; i < end; i++ {
		if err := database.WriteRecord(w, []sql.RawBytes{
			sql.RawBytes(fmt.Sprintf("%d", i)),
			sql.RawBytes(fmt.Sprintf("val-%d", i)),
		}); err != nil {
			return i - start, err
		}
	}
	return end - start, nil
}

// fakeTarget records applied DDL and rows.
type fakeTarget struct {
	mu       sync.Mutex
	ddl      []string
	rowCount map[string]int64
	failOn   string // qualified table whose rows fail to apply
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{rowCount: map[string]int64{}}
}

func (f *fakeTarget) ApplyDDL(ctx context.Context, schema, ddl string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ddl = append(f.ddl, ddl)
	return nil
}

func (f *fakeTarget) LoadRows(ctx context.Context, schema, table string, r io.Reader) (int64, error) {
	if schema+"."+table == f.failOn {
		return 0, fmt.Errorf("disk full")
	}
	var n int64
	s := database.NewRecordScanner(r)
	for s.Scan() {
		n++
	}
	if err := s.Err(); err != nil {
		return n, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rowCount[schema+"."+table] += n
	return n, nil
}

func testExecutor() *Executor {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return &Executor{Logger: logger}
}

func TestDumpConfigurationErrorsSurfaceBeforeIO(t *testing.T) {
	e := testExecutor()
	tests := []struct {
		name string
		opts DumpOptions
	}{
		{"no schemas", DumpOptions{Dir: t.TempDir()}},
		{"bad exclusion", DumpOptions{Schemas: []string{"s1"}, ExcludeTables: []string{"oops"}, Dir: t.TempDir()}},
		{"exclusion outside schemas", DumpOptions{Schemas: []string{"s1"}, ExcludeTables: []string{"s2.t"}, Dir: t.TempDir()}},
		{"unknown compatibility option", DumpOptions{Schemas: []string{"s1"}, Compatibility: []string{"nope"}, Dir: t.TempDir()}},
		{"unknown compression", DumpOptions{Schemas: []string{"s1"}, Compression: "lz77", Dir: t.TempDir()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Source = newFakeSource()
			_, err := e.Dump(context.Background(), tt.opts)
			require.Error(t, err)
			assert.True(t, apperrors.IsConfig(err), "expected config error, got %v", err)
		})
	}
}

func TestDumpDryRunWritesNothing(t *testing.T) {
	e := testExecutor()
	dir := t.TempDir()
	res, err := e.Dump(context.Background(), DumpOptions{
		Schemas:     []string{"s1"},
		Dir:         dir,
		Compression: "gzip",
		ChunkSize:   100,
		DryRun:      true,
		Source:      newFakeSource(),
	})
	require.NoError(t, err)
	assert.Equal(t, progress.RunCompleted, res.State)
	assert.Greater(t, res.Objects, 0)

	matches, err := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestDumpAndLoadRoundTrip(t *testing.T) {
	e := testExecutor()
	dir := t.TempDir()

	res, err := e.Dump(context.Background(), DumpOptions{
		Schemas:       []string{"s1"},
		ExcludeTables: []string{"s1.t_secret"},
		Events:        false,
		TargetMode:    true,
		Compression:   "gzip",
		ChunkSize:     100,
		Workers:       4,
		Dir:           dir,
		Source:        newFakeSource(),
	})
	require.NoError(t, err)
	require.Equal(t, progress.RunCompleted, res.State)
	// schema + t1 + t_nokey + v1; t_secret excluded, events off
	assert.Equal(t, 4, res.Objects)
	// t1: 250 rows / 100 = 2 chunks (last absorbs 50); t_nokey: 1 chunk
	assert.Equal(t, 3, res.Chunks)
	assert.Empty(t, res.Failures)

	// manifest is complete and carries the target-mode version tag
	store, manifest, err := dumpstore.OpenForLoad(dir)
	require.NoError(t, err)
	assert.True(t, manifest.Complete)
	assert.Equal(t, "8.0.21", manifest.MinTargetVersion)
	assert.Contains(t, manifest.Compatibility, "strip_definers")
	require.NoError(t, store.Close())

	target := newFakeTarget()
	loadRes, err := e.Load(context.Background(), LoadOptions{
		Dir:     dir,
		Workers: 4,
		Target:  target,
	})
	require.NoError(t, err)
	assert.Equal(t, progress.RunCompleted, loadRes.State)
	assert.Equal(t, 7, loadRes.Executed) // 4 DDL + 3 data

	// same tables, same row counts, modulo compatibility rewrites
	assert.EqualValues(t, 250, target.rowCount["s1.t1"])
	assert.EqualValues(t, 40, target.rowCount["s1.t_nokey"])
	_, dumped := target.rowCount["s1.t_secret"]
	assert.False(t, dumped, "excluded table must not reach the target")

	var sawView bool
	for _, ddl := range target.ddl {
		assert.NotContains(t, ddl, "DEFINER=", "target mode must strip definers")
		assert.NotContains(t, ddl, "ENGINE=MyISAM", "target mode must force InnoDB")
		if strings.Contains(ddl, "VIEW") {
			sawView = true
		}
	}
	assert.True(t, sawView)
}

func TestLoadRefusesIncompleteDump(t *testing.T) {
	e := testExecutor()
	dir := t.TempDir()

	// dump with a failing chunk leaves the manifest incomplete
	src := newFakeSource()
	failing := &failingSource{fakeSource: src, failTable: "s1.t1"}
	res, err := e.Dump(context.Background(), DumpOptions{
		Schemas:   []string{"s1"},
		ChunkSize: 100,
		Retries:   1,
		Dir:       dir,
		Source:    failing,
	})
	require.NoError(t, err)
	assert.Equal(t, progress.RunPartial, res.State)
	assert.NotEmpty(t, res.Failures)

	_, err = e.Load(context.Background(), LoadOptions{Dir: dir, Target: newFakeTarget()})
	require.Error(t, err)
	assert.ErrorContains(t, err, "not complete")
}

func TestDumpResumeSkipsCompletedUnits(t *testing.T) {
	e := testExecutor()
	dir := t.TempDir()
	opts := DumpOptions{
		Schemas:   []string{"s1"},
		ChunkSize: 100,
		Dir:       dir,
		Source:    newFakeSource(),
	}

	first, err := e.Dump(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, progress.RunCompleted, first.State)

	second, err := e.Dump(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, progress.RunCompleted, second.State)
	assert.Equal(t, 0, second.Executed)
	assert.Equal(t, first.Executed, second.Skipped)
}

func TestLoadContinueOnErrorIsPartial(t *testing.T) {
	e := testExecutor()
	dir := t.TempDir()

	res, err := e.Dump(context.Background(), DumpOptions{
		Schemas:   []string{"s1"},
		ChunkSize: 100,
		Dir:       dir,
		Source:    newFakeSource(),
	})
	require.NoError(t, err)
	require.Equal(t, progress.RunCompleted, res.State)

	target := newFakeTarget()
	target.failOn = "s1.t_nokey"
	loadRes, err := e.Load(context.Background(), LoadOptions{
		Dir:     dir,
		Retries: 1,
		Target:  target,
	})
	require.NoError(t, err)
	assert.Equal(t, progress.RunPartial, loadRes.State)
	require.NotEmpty(t, loadRes.Failures)
	assert.Contains(t, loadRes.Failures[0].ID, "t_nokey")
	// every other table made it
	assert.EqualValues(t, 250, target.rowCount["s1.t1"])
}

func TestDumpIntrospectionFailureIDsMatchUnitScheme(t *testing.T) {
	e := testExecutor()
	src := &introspectFailSource{fakeSource: newFakeSource()}
	res, err := e.Dump(context.Background(), DumpOptions{
		Schemas:   []string{"s1"},
		ChunkSize: 100,
		Dir:       t.TempDir(),
		Source:    src,
	})
	require.NoError(t, err)
	assert.Equal(t, progress.RunPartial, res.State)

	var ids []string
	for _, f := range res.Failures {
		ids = append(ids, f.ID)
	}
	// same identifier scheme as the scheduled units: qualified name for
	// objects, bare schema when the object list itself was unreadable
	assert.Contains(t, ids, "ddl:table:s1.t_secret")
	assert.Contains(t, ids, "ddl:view:s1")
	for _, id := range ids {
		assert.NotRegexp(t, `\.$`, id)
	}
}

// introspectFailSource breaks one table's DDL capture and the view
// listing.
type introspectFailSource struct {
	*fakeSource
}

func (f *introspectFailSource) ShowCreate(kind catalog.Kind, schema, name string) (string, error) {
	if kind == catalog.KindTable && name == "t_secret" {
		return "", fmt.Errorf("table definition unavailable")
	}
	return f.fakeSource.ShowCreate(kind, schema, name)
}

func (f *introspectFailSource) ListViews(string) ([]string, error) {
	return nil, fmt.Errorf("views unreadable")
}

// failingSource makes one table's rows permanently unreadable.
type failingSource struct {
	*fakeSource
	failTable string
}

func (f *failingSource) StreamRows(ctx context.Context, chunk catalog.Chunk, w io.Writer) (int64, error) {
	if chunk.Schema+"."+chunk.Table == f.failTable {
		return 0, fmt.Errorf("connection reset")
	}
	return f.fakeSource.StreamRows(ctx, chunk, w)
}
