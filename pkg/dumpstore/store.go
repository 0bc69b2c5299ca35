// Package dumpstore is the on-disk layout of a dump: one manifest, one
// DDL artifact per catalog object, one data artifact per completed
// chunk, and a checkpoint recording durably completed work units.
//
// Write discipline: every file is written to a temporary name, content
// checksummed and fsynced, then atomically renamed. Partial writes are
// never visible under their final name.
package dumpstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/dataporter/mysql-porter/pkg/apperrors"
	"github.com/dataporter/mysql-porter/pkg/catalog"
	"github.com/dataporter/mysql-porter/pkg/compression"
)

const lockFile = ".mysql-porter.lock"

// Artifact records where a finalized artifact lives and what it hashes
// to. The checkpoint persists one Artifact per completed work unit.
type Artifact struct {
	Path   string `json:"path"` // relative to the dump directory
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

// Store is one dump directory. It holds an advisory lock for its
// lifetime so two processes never share a dump.
type Store struct {
	dir        string
	compressor compression.Compressor
	lock       *flock.Flock
}

// Create prepares dir for a new or resumed dump.
func Create(dir string, compressor compression.Compressor) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dump directory: %w", err)
	}
	return open(dir, compressor)
}

// Open opens an existing dump directory for loading.
func Open(dir string, compressor compression.Compressor) (*Store, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("failed to open dump directory: %w", err)
	}
	return open(dir, compressor)
}

// OpenForLoad opens an existing dump directory, reads its manifest and
// resolves the compressor recorded there.
func OpenForLoad(dir string) (*Store, *Manifest, error) {
	s, err := Open(dir, &compression.NoCompressor{})
	if err != nil {
		return nil, nil, err
	}
	m, err := s.ReadManifest()
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	c, err := compression.GetCompressor(m.Compression)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	s.compressor = c
	return s, m, nil
}

func open(dir string, compressor compression.Compressor) (*Store, error) {
	lock := flock.New(filepath.Join(dir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock dump directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("dump directory %s is in use by another process", dir)
	}
	return &Store{dir: dir, compressor: compressor, lock: lock}, nil
}

// Dir returns the dump directory path.
func (s *Store) Dir() string { return s.dir }

// Close releases the directory lock.
func (s *Store) Close() error {
	return s.lock.Unlock()
}

// WriteDDL persists one DDL artifact and returns its record.
func (s *Store) WriteDDL(obj catalog.Object, ddl string) (Artifact, error) {
	name := DDLArtifactName(obj)
	return s.writeArtifact(name, func(w io.Writer) error {
		_, err := io.WriteString(w, ddl)
		return err
	})
}

// ReadDDL reads back a DDL artifact, verifying its checksum first.
func (s *Store) ReadDDL(art Artifact) (string, error) {
	if err := s.verify(art); err != nil {
		return "", err
	}
	b, err := os.ReadFile(filepath.Join(s.dir, art.Path))
	if err != nil {
		return "", fmt.Errorf("failed to read artifact %s: %w", art.Path, err)
	}
	return string(b), nil
}

// WriteChunk persists one data artifact. The callback receives the
// (possibly compressed) stream to write rows into; the checksum covers
// the final on-disk bytes.
func (s *Store) WriteChunk(chunk catalog.Chunk, write func(io.Writer) error) (Artifact, error) {
	name := ChunkArtifactName(chunk, s.compressor.Extension())
	return s.writeArtifact(name, func(w io.Writer) error {
		cw, err := s.compressor.Compress(w)
		if err != nil {
			return err
		}
		if err := write(cw); err != nil {
			return err
		}
		return cw.Close()
	})
}

// OpenChunk verifies a data artifact's checksum and returns a reader
// over its decompressed content. Corruption is an IntegrityError, never
// a silent skip.
func (s *Store) OpenChunk(art Artifact) (io.ReadCloser, error) {
	if err := s.verify(art); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, art.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact %s: %w", art.Path, err)
	}
	r, err := s.compressor.Uncompress(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decompress artifact %s: %w", art.Path, err)
	}
	return &chunkReader{Reader: r, file: f}, nil
}

type chunkReader struct {
	io.Reader
	file *os.File
}

// Close releases the decompressor first when it holds resources of its
// own (the zstd reader runs decoder goroutines), then the file. The
// uncompressed path hands back the file itself, which must not be
// closed twice.
func (c *chunkReader) Close() error {
	if closer, ok := c.Reader.(io.Closer); ok && c.Reader != io.Reader(c.file) {
		if err := closer.Close(); err != nil {
			c.file.Close()
			return err
		}
	}
	return c.file.Close()
}

func (s *Store) writeArtifact(name string, write func(io.Writer) error) (Artifact, error) {
	final := filepath.Join(s.dir, name)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to create artifact %s: %w", name, err)
	}
	defer os.Remove(tmp) // no-op after a successful rename

	hash := sha256.New()
	counter := &countingWriter{w: io.MultiWriter(f, hash)}
	if err := write(counter); err != nil {
		f.Close()
		return Artifact{}, fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return Artifact{}, fmt.Errorf("failed to sync artifact %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return Artifact{}, fmt.Errorf("failed to close artifact %s: %w", name, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return Artifact{}, fmt.Errorf("failed to finalize artifact %s: %w", name, err)
	}
	return Artifact{
		Path:   name,
		SHA256: hex.EncodeToString(hash.Sum(nil)),
		Bytes:  counter.n,
	}, nil
}

func (s *Store) verify(art Artifact) error {
	f, err := os.Open(filepath.Join(s.dir, art.Path))
	if err != nil {
		return &apperrors.IntegrityError{Artifact: art.Path, Expected: art.SHA256, Actual: "missing"}
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return fmt.Errorf("failed to hash artifact %s: %w", art.Path, err)
	}
	actual := hex.EncodeToString(hash.Sum(nil))
	if actual != art.SHA256 {
		return &apperrors.IntegrityError{Artifact: art.Path, Expected: art.SHA256, Actual: actual}
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// DDLArtifactName maps a catalog object to its artifact file name.
// Tables and views share the schema namespace so both use plain .sql;
// events and routines live in their own namespaces and carry a kind
// suffix to stay unambiguous on disk.
func DDLArtifactName(obj catalog.Object) string {
	switch obj.Kind {
	case catalog.KindSchema:
		return obj.Schema + ".sql"
	case catalog.KindEvent:
		return fmt.Sprintf("%s@%s.event.sql", obj.Schema, obj.Name)
	case catalog.KindRoutine:
		return fmt.Sprintf("%s@%s.routine.sql", obj.Schema, obj.Name)
	default:
		return fmt.Sprintf("%s@%s.sql", obj.Schema, obj.Name)
	}
}

// ChunkArtifactName maps a chunk to its artifact file name, e.g.
// s1@t1@@00003.tsv.gz.
func ChunkArtifactName(chunk catalog.Chunk, ext string) string {
	name := fmt.Sprintf("%s@%s@@%05d.tsv", chunk.Schema, chunk.Table, chunk.Index)
	if ext != "" {
		name += "." + ext
	}
	return name
}
