package dumpstore

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	// DumpCheckpointName records completed dump units.
	DumpCheckpointName = "checkpoint.json"
	// LoadCheckpointName records units already applied to a target.
	LoadCheckpointName = "load-checkpoint.json"
)

// Checkpoint is the durable record of completed work unit identifiers.
// It is rewritten atomically after every completion; writes are
// serialized through the mutex so concurrent completions never corrupt
// it. A unit is recorded only after its artifact is fully flushed and
// checksummed.
type Checkpoint struct {
	mu      sync.Mutex
	store   *Store
	name    string
	entries map[string]Artifact
}

// LoadCheckpoint reads (or initializes) the named checkpoint inside the
// store's dump directory.
func (s *Store) LoadCheckpoint(name string) (*Checkpoint, error) {
	cp := &Checkpoint{store: s, name: name, entries: map[string]Artifact{}}
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return cp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", name, err)
	}
	if err := json.Unmarshal(b, &cp.entries); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint %s: %w", name, err)
	}
	return cp, nil
}

// Done reports whether the unit id has durably completed.
func (c *Checkpoint) Done(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

// Artifact returns the artifact record for a completed unit id.
func (c *Checkpoint) Artifact(id string) (Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	art, ok := c.entries[id]
	return art, ok
}

// MarkDone records a completed unit and rewrites the checkpoint file
// atomically before returning.
func (c *Checkpoint) MarkDone(id string, art Artifact) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = art
	return c.flushLocked()
}

// Len returns the number of completed units.
func (c *Checkpoint) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// IDs returns a snapshot of completed unit identifiers.
func (c *Checkpoint) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	return ids
}

func (c *Checkpoint) flushLocked() error {
	_, err := c.store.writeArtifact(c.name, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c.entries)
	})
	return err
}
