package index

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/rualca/librarian-agent/internal/fsutil"
)

// ManifestVersion is the manifest schema version written by this package.
const ManifestVersion = 1

// Manifest maps vault files to the chunk ids stored in the vector index.
type Manifest struct {
	Version   int                    `json:"version"`
	Model     string                 `json:"model"`
	Dim       int                    `json:"dim"`
	NextID    int64                  `json:"next_id"`
	UpdatedAt string                 `json:"updated_at,omitempty"`
	Files     map[string]*FileRecord `json:"files"`
	Chunks    map[int64]*Chunk       `json:"chunks"`
}

// NewManifest returns an empty manifest for model and dim.
func NewManifest(model string, dim int) *Manifest {
	return &Manifest{
		Version: ManifestVersion,
		Model:   model,
		Dim:     dim,
		Files:   map[string]*FileRecord{},
		Chunks:  map[int64]*Chunk{},
	}
}

// dropFile removes a file record and its chunk entries, returning the freed ids.
func (m *Manifest) dropFile(rel string) []int64 {
	rec, ok := m.Files[rel]
	if !ok {
		return nil
	}
	delete(m.Files, rel)
	if rec == nil {
		return nil
	}
	for _, id := range rec.ChunkIDs {
		delete(m.Chunks, id)
	}
	return rec.ChunkIDs
}

// manifestV0 is the unversioned layout, which stored mtime as float seconds.
type manifestV0 struct {
	Model  string  `json:"model"`
	Dim    int     `json:"dim"`
	NextID int64   `json:"next_id"`
	Files  map[string]struct {
		MTime    float64 `json:"mtime"`
		Size     int64   `json:"size"`
		ChunkIDs []int64 `json:"chunk_ids"`
	} `json:"files"`
	Chunks map[int64]*Chunk `json:"chunks"`
}

// LoadManifest reads the manifest at path. A missing file yields nil; an
// unreadable or malformed one is logged and also yields nil, which callers
// treat as "rebuild from scratch".
func LoadManifest(path string, log *slog.Logger) *Manifest {
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("index manifest unreadable, rebuilding", "path", path, "error", err)
		}
		return nil
	}

	var head struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		log.Warn("index manifest corrupted, rebuilding", "path", path, "error", err)
		return nil
	}

	var m *Manifest
	if head.Version == 0 {
		m, err = migrateManifestV0(b)
	} else {
		m = &Manifest{}
		err = json.Unmarshal(b, m)
	}
	if err != nil {
		log.Warn("index manifest corrupted, rebuilding", "path", path, "error", err)
		return nil
	}
	if m.Files == nil {
		m.Files = map[string]*FileRecord{}
	}
	if m.Chunks == nil {
		m.Chunks = map[int64]*Chunk{}
	}
	return m
}

func migrateManifestV0(b []byte) (*Manifest, error) {
	var old manifestV0
	if err := json.Unmarshal(b, &old); err != nil {
		return nil, err
	}
	m := NewManifest(old.Model, old.Dim)
	m.NextID = old.NextID
	for rel, f := range old.Files {
		m.Files[rel] = &FileRecord{MTime: int64(f.MTime * 1e9), Size: f.Size, ChunkIDs: f.ChunkIDs}
	}
	for id, c := range old.Chunks {
		m.Chunks[id] = c
	}
	return m, nil
}

// WriteManifest persists m at path through a temp file and rename.
func WriteManifest(path string, m *Manifest) error {
	for _, rec := range m.Files {
		sort.Slice(rec.ChunkIDs, func(i, j int) bool { return rec.ChunkIDs[i] < rec.ChunkIDs[j] })
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, b, 0o644); err != nil {
		return fmt.Errorf("cannot write manifest: %w", err)
	}
	return nil
}
