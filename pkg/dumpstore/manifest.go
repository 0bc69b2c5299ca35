package dumpstore

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dataporter/mysql-porter/pkg/catalog"
)

// ManifestName is the manifest file inside a dump directory. The
// leading @ keeps it clear of any schema artifact name.
const ManifestName = "@.manifest.json"

// Manifest is the top-level descriptive record of one dump. It is
// created at dump start and marked Complete only after every work unit
// succeeded; its Complete flag is the signal that a dump is usable.
type Manifest struct {
	FormatVersion    int              `json:"format_version"`
	ServerVersion    string           `json:"server_version"`
	StartedAt        time.Time        `json:"started_at"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	Schemas          []string         `json:"schemas"`
	Compatibility    []string         `json:"compatibility,omitempty"`
	TargetMode       bool             `json:"target_mode"`
	MinTargetVersion string           `json:"min_target_version,omitempty"`
	Compression      string           `json:"compression"`
	ChunkSize        int64            `json:"chunk_size"`
	Objects          []ManifestObject `json:"objects"`
	TotalObjects     int              `json:"total_objects"`
	TotalChunks      int              `json:"total_chunks"`
	Complete         bool             `json:"complete"`
}

// ManifestObject is one dumped catalog object and, for tables, how many
// chunks its data was planned into.
type ManifestObject struct {
	Schema string       `json:"schema"`
	Name   string       `json:"name,omitempty"`
	Kind   catalog.Kind `json:"kind"`
	Chunks int          `json:"chunks,omitempty"`
}

// WriteManifest persists the manifest atomically.
func (s *Store) WriteManifest(m *Manifest) error {
	_, err := s.writeArtifact(ManifestName, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	})
	return err
}

// ReadManifest loads the manifest from the dump directory.
func (s *Store) ReadManifest() (*Manifest, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
