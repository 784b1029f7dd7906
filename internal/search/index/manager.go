package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rualca/librarian-agent/internal/embeddings"
	"github.com/rualca/librarian-agent/internal/fsutil"
	"github.com/rualca/librarian-agent/internal/logger"
	"github.com/rualca/librarian-agent/internal/vault"
)

// Defaults applied by NewManager to zero Options fields.
const (
	DefaultMinScore  = 0.3
	DefaultBatchSize = 64
	ManifestFile     = "manifest.json"
	VectorFile       = "vectors.bin"
	lockFile         = ".lock"
	lockTimeout      = 30 * time.Second
)

// DefaultFolders are the vault folders indexed when Options.Folders is empty.
var DefaultFolders = []string{string(vault.KindCards), string(vault.KindEncounters)}

// Options configures a Manager.
type Options struct {
	Dir           string
	Folders       []string
	MaxChunkChars int
	MinScore      float64
	BatchSize     int
	Concurrency   int
}

// Report counts the work done by one EnsureIndex call.
type Report struct {
	Added   int
	Updated int
	Removed int
	Chunks  int
}

// Changed reports whether the call mutated the index.
func (r Report) Changed() bool { return r.Added+r.Updated+r.Removed > 0 }

// Stats describes the persisted index.
type Stats struct {
	TotalChunks int
	TotalFiles  int
	Model       string
	Dim         int
	LastUpdated string
}

// Manager keeps a vector index synchronized with the vault and answers
// semantic queries against it. Calls are serialized in-process and across
// processes through a lock file in Options.Dir.
type Manager struct {
	vault    *vault.Vault
	embedder embeddings.Provider
	backend  Backend
	opts     Options
	log      *slog.Logger

	mu sync.Mutex
	// writeManifest persists the manifest after the vector index is saved.
	writeManifest func(path string, m *Manifest) error
	now           func() time.Time
}

// NewManager returns a Manager. A nil embedder leaves the manager in the
// unavailable state: EnsureIndex fails with ErrUnavailable and Search returns
// no results.
func NewManager(v *vault.Vault, p embeddings.Provider, b Backend, opts Options, log *slog.Logger) *Manager {
	if len(opts.Folders) == 0 {
		opts.Folders = DefaultFolders
	}
	if opts.MaxChunkChars <= 0 {
		opts.MaxChunkChars = DefaultMaxChunkChars
	}
	if opts.MinScore <= 0 {
		opts.MinScore = DefaultMinScore
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	log = logger.OrNop(log)
	if b == nil {
		b = FlatBackend{Path: filepath.Join(opts.Dir, VectorFile), Log: log}
	}
	return &Manager{
		vault:         v,
		embedder:      p,
		backend:       b,
		opts:          opts,
		log:           log,
		writeManifest: WriteManifest,
		now:           time.Now,
	}
}

// Available reports whether an embedding provider is configured.
func (m *Manager) Available() bool { return m.embedder != nil }

func (m *Manager) manifestPath() string { return filepath.Join(m.opts.Dir, ManifestFile) }

// EnsureIndex brings the index up to date with the vault. With force, or when
// the embedding model or dimension changed, the index is rebuilt from scratch.
//
// Vectors are embedded before anything is mutated, so an embedding failure
// leaves both the vector index and the manifest untouched. The vector index
// is persisted before the manifest; an interruption between the two is
// repaired on the next call by reconciling the index ids against the manifest.
func (m *Manager) EnsureIndex(ctx context.Context, force bool) (Report, error) {
	if m.embedder == nil {
		m.log.Warn("semantic index unavailable, no embedding provider configured")
		return Report{}, ErrUnavailable
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	release, err := fsutil.AcquireLock(ctx, filepath.Join(m.opts.Dir, lockFile), lockTimeout)
	if err != nil {
		return Report{}, err
	}
	defer release()

	idx, man, reset, err := m.open(ctx, force)
	if err != nil {
		return Report{}, err
	}
	if c, ok := idx.(interface{ Close() error }); ok {
		defer c.Close()
	}

	dirty, err := m.reconcile(ctx, idx, man)
	if err != nil {
		return Report{}, err
	}

	rep, err := m.sync(ctx, idx, man)
	if err != nil {
		return Report{}, err
	}

	if !rep.Changed() && !reset && !dirty {
		m.log.Debug("semantic index up to date", "files", len(man.Files), "chunks", len(man.Chunks))
		return rep, nil
	}

	if err := idx.Save(ctx); err != nil {
		return Report{}, fmt.Errorf("cannot save vector index: %w", err)
	}
	man.UpdatedAt = m.now().UTC().Format(time.RFC3339)
	if err := m.writeManifest(m.manifestPath(), man); err != nil {
		return Report{}, err
	}
	m.log.Info("index updated", "added", rep.Added, "updated", rep.Updated, "removed", rep.Removed, "chunks", rep.Chunks)
	return rep, nil
}

// open loads the manifest and the vector index, discarding both when force
// is set or the stored model no longer matches the embedder.
func (m *Manager) open(ctx context.Context, force bool) (VectorIndex, *Manifest, bool, error) {
	model, dim := m.embedder.ModelID(), m.embedder.Dim()
	man := LoadManifest(m.manifestPath(), m.log)

	reset := force || man == nil || man.Model != model || man.Dim != dim
	if man != nil && !force && (man.Model != model || man.Dim != dim) {
		m.log.Info("embedding model changed, rebuilding index",
			"old_model", man.Model, "old_dim", man.Dim, "model", model, "dim", dim)
	}

	var (
		idx VectorIndex
		err error
	)
	if reset {
		man = NewManifest(model, dim)
		idx, err = m.backend.Reset(ctx, dim)
	} else {
		idx, err = m.backend.Open(ctx, dim)
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("cannot open vector index: %w", err)
	}
	return idx, man, reset, nil
}

// reconcile restores the one-to-one mapping between index ids and manifest
// chunks. Index ids unknown to the manifest are removed. Files whose chunks
// are missing from the index are dropped from the manifest so the scan
// re-embeds them.
func (m *Manager) reconcile(ctx context.Context, idx VectorIndex, man *Manifest) (bool, error) {
	en, ok := idx.(Enumerator)
	if !ok {
		return false, nil
	}
	ids, err := en.IDs(ctx)
	if err != nil {
		return false, fmt.Errorf("cannot list index ids: %w", err)
	}
	present := make(map[int64]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}

	var stale []int64
	dirty := false
	for rel, rec := range man.Files {
		complete := true
		for _, id := range rec.ChunkIDs {
			if !present[id] {
				complete = false
				break
			}
		}
		if complete {
			continue
		}
		m.log.Warn("index missing chunks, re-embedding file", "file", rel)
		for _, id := range man.dropFile(rel) {
			if present[id] {
				stale = append(stale, id)
				delete(present, id)
			}
		}
		dirty = true
	}

	owned := map[int64]bool{}
	for _, rec := range man.Files {
		for _, id := range rec.ChunkIDs {
			owned[id] = true
		}
	}
	for id := range man.Chunks {
		if !owned[id] {
			delete(man.Chunks, id)
			dirty = true
		}
	}
	for id := range present {
		if !owned[id] {
			stale = append(stale, id)
		}
	}
	for _, id := range ids {
		if id >= man.NextID {
			man.NextID = id + 1
		}
	}
	if len(stale) == 0 {
		return dirty, nil
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i] < stale[j] })
	m.log.Warn("removing orphaned vectors", "count", len(stale))
	if err := idx.Remove(ctx, stale); err != nil {
		return false, fmt.Errorf("cannot remove orphaned vectors: %w", err)
	}
	return true, nil
}

type pendingFile struct {
	file   vault.File
	chunks []Chunk
}

// sync diffs the scanned vault against the manifest and applies the changes.
func (m *Manager) sync(ctx context.Context, idx VectorIndex, man *Manifest) (Report, error) {
	current := map[string]vault.File{}
	for _, folder := range m.opts.Folders {
		files, err := m.vault.Files(folder)
		if err != nil {
			return Report{}, err
		}
		for _, f := range files {
			current[f.RelPath] = f
		}
	}

	var (
		rep     Report
		removed []string
		queue   []pendingFile
	)
	for rel := range man.Files {
		if _, ok := current[rel]; !ok {
			removed = append(removed, rel)
		}
	}
	sort.Strings(removed)
	rels := make([]string, 0, len(current))
	for rel := range current {
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	for _, rel := range rels {
		f := current[rel]
		if prev, ok := man.Files[rel]; ok {
			if prev.MTime == f.ModTime.UnixNano() && prev.Size == f.Size {
				continue
			}
			rep.Updated++
		} else {
			rep.Added++
		}
		queue = append(queue, pendingFile{file: f, chunks: m.chunkFile(f)})
	}
	rep.Removed = len(removed)
	if !rep.Changed() {
		return rep, nil
	}

	var texts []string
	for _, p := range queue {
		for _, c := range p.chunks {
			texts = append(texts, c.Text)
		}
	}
	vecs, err := m.embed(ctx, texts)
	if err != nil {
		return Report{}, err
	}

	var stale []int64
	for _, rel := range removed {
		stale = append(stale, man.dropFile(rel)...)
	}
	for _, p := range queue {
		stale = append(stale, man.dropFile(p.file.RelPath)...)
	}
	if len(stale) > 0 {
		if err := idx.Remove(ctx, stale); err != nil {
			return Report{}, fmt.Errorf("cannot remove vectors: %w", err)
		}
	}

	ids := make([]int64, 0, len(texts))
	for _, p := range queue {
		rec := &FileRecord{MTime: p.file.ModTime.UnixNano(), Size: p.file.Size, ChunkIDs: []int64{}}
		for _, c := range p.chunks {
			id := man.NextID
			man.NextID++
			chunk := c
			man.Chunks[id] = &chunk
			rec.ChunkIDs = append(rec.ChunkIDs, id)
			ids = append(ids, id)
		}
		man.Files[p.file.RelPath] = rec
	}
	if len(ids) > 0 {
		if err := idx.Add(ctx, ids, vecs); err != nil {
			return Report{}, fmt.Errorf("cannot add vectors: %w", err)
		}
	}
	rep.Chunks = len(ids)
	return rep, nil
}

func (m *Manager) chunkFile(f vault.File) []Chunk {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		m.log.Warn("cannot read file for indexing", "file", f.RelPath, "error", err)
		return nil
	}
	title := strings.TrimSuffix(filepath.Base(f.RelPath), ".md")
	return ChunkDocument(f.RelPath, title, string(b), m.opts.MaxChunkChars)
}

// embed returns L2-normalized vectors for texts. Failures wrap ErrUnavailable.
func (m *Manager) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	raw, err := embeddings.EmbedAll(ctx, m.embedder, texts, m.opts.BatchSize, m.opts.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	dim := m.embedder.Dim()
	out := make([][]float32, len(raw))
	for i, v := range raw {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: embedding dim %d, want %d", ErrVectorLengthMismatch, len(v), dim)
		}
		out[i] = NormalizeL2(v)
	}
	return out, nil
}

// Search returns up to k chunks most similar to query, best first. Hits
// scoring below Options.MinScore are dropped. Without an embedder, or when
// the index cannot be brought up to date, Search returns no results.
func (m *Manager) Search(ctx context.Context, query string, k int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if m.embedder == nil || query == "" || k <= 0 {
		return nil, nil
	}
	if _, err := m.EnsureIndex(ctx, false); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.log.Warn("semantic search unavailable", "error", err)
		return nil, nil
	}

	vecs, err := m.embed(ctx, []string{query})
	if err != nil {
		m.log.Warn("cannot embed query", "error", err)
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	man := LoadManifest(m.manifestPath(), m.log)
	if man == nil {
		return nil, nil
	}
	idx, err := m.backend.Open(ctx, man.Dim)
	if err != nil {
		m.log.Warn("cannot open vector index", "error", err)
		return nil, nil
	}
	if c, ok := idx.(interface{ Close() error }); ok {
		defer c.Close()
	}

	hits, err := idx.Search(ctx, vecs[0], k)
	if err != nil {
		if errors.Is(err, ErrVectorLengthMismatch) {
			m.log.Warn("query dimension does not match index", "error", err)
			return nil, nil
		}
		return nil, err
	}

	var out []Result
	for _, h := range hits {
		if float64(h.Score) < m.opts.MinScore {
			continue
		}
		c, ok := man.Chunks[h.ID]
		if !ok {
			continue
		}
		out = append(out, Result{
			Title:   c.Title,
			Section: c.Section,
			Text:    c.Text,
			Score:   float64(h.Score),
			RelPath: c.RelPath,
		})
	}
	return out, nil
}

// Stats reads the persisted manifest. A missing index yields zero values.
func (m *Manager) Stats() Stats {
	man := LoadManifest(m.manifestPath(), m.log)
	if man == nil {
		return Stats{}
	}
	return Stats{
		TotalChunks: len(man.Chunks),
		TotalFiles:  len(man.Files),
		Model:       man.Model,
		Dim:         man.Dim,
		LastUpdated: man.UpdatedAt,
	}
}
