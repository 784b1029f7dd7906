package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rualca/librarian-agent/internal/logger"
	"github.com/rualca/librarian-agent/internal/vault"
)

var vocab = []string{"stoic", "virtue", "memory", "habit", "river", "code"}

// wordEmbedder counts vocabulary words, so texts sharing no vocabulary word
// score zero against each other.
type wordEmbedder struct {
	model string
	texts atomic.Int64
	fail  bool
}

func (e *wordEmbedder) ModelID() string {
	if e.model == "" {
		return "word-test"
	}
	return e.model
}

func (e *wordEmbedder) Dim() int { return len(vocab) }

func (e *wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.fail {
		return nil, errors.New("provider down")
	}
	e.texts.Add(int64(len(texts)))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(vocab))
		for _, w := range strings.Fields(strings.ToLower(t)) {
			for j, term := range vocab {
				if strings.Trim(w, ".,") == term {
					v[j]++
				}
			}
		}
		out[i] = v
	}
	return out, nil
}

type fixture struct {
	root  string
	dir   string
	vault *vault.Vault
	emb   *wordEmbedder
	mgr   *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	v := vault.New(root)
	require.NoError(t, v.EnsureLayout())
	dir := filepath.Join(root, ".index", "semantic")
	emb := &wordEmbedder{}
	return &fixture{
		root:  root,
		dir:   dir,
		vault: v,
		emb:   emb,
		mgr:   NewManager(v, emb, nil, Options{Dir: dir}, logger.Nop()),
	}
}

func (f *fixture) write(t *testing.T, rel, body string) {
	t.Helper()
	p := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func (f *fixture) manifest(t *testing.T) *Manifest {
	t.Helper()
	m := LoadManifest(filepath.Join(f.dir, ManifestFile), logger.Nop())
	require.NotNil(t, m)
	return m
}

func (f *fixture) ids(t *testing.T) []int64 {
	t.Helper()
	idx, err := LoadFlatIndex(filepath.Join(f.dir, VectorFile), len(vocab))
	require.NoError(t, err)
	ids, err := idx.IDs(context.Background())
	require.NoError(t, err)
	return ids
}

const threeSections = "## One\nstoic virtue\n\n## Two\nmemory habit\n\n## Three\nriver code\n"

func TestEnsureIndex_IdempotentWithoutChanges(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Cards/Stoicism.md", threeSections)
	f.write(t, "Encounters/Meditations.md", "> stoic quote\n")

	ctx := context.Background()
	rep, err := f.mgr.EnsureIndex(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, Report{Added: 2, Chunks: 4}, rep)
	embedded := f.emb.texts.Load()

	rep, err = f.mgr.EnsureIndex(ctx, false)
	require.NoError(t, err)
	assert.False(t, rep.Changed())
	assert.Zero(t, rep.Chunks)
	assert.Equal(t, embedded, f.emb.texts.Load())
}

func TestEnsureIndex_DeletedFileRemovesAllChunks(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Cards/Stoicism.md", threeSections)
	f.write(t, "Cards/Other.md", "## Idea\nhabit\n")
	ctx := context.Background()

	_, err := f.mgr.EnsureIndex(ctx, false)
	require.NoError(t, err)
	prior := f.manifest(t).Files["Cards/Stoicism.md"].ChunkIDs
	require.Len(t, prior, 3)

	require.NoError(t, os.Remove(filepath.Join(f.root, "Cards", "Stoicism.md")))
	rep, err := f.mgr.EnsureIndex(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Removed)

	m := f.manifest(t)
	assert.NotContains(t, m.Files, "Cards/Stoicism.md")
	ids := f.ids(t)
	for _, id := range prior {
		assert.NotContains(t, ids, id)
		assert.NotContains(t, m.Chunks, id)
	}
	assert.Len(t, ids, 1)
}

func TestEnsureIndex_ChangedFileGetsFreshIDs(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Cards/Habit.md", "## Idea\nhabit\n")
	ctx := context.Background()

	_, err := f.mgr.EnsureIndex(ctx, false)
	require.NoError(t, err)
	old := f.manifest(t).Files["Cards/Habit.md"].ChunkIDs
	require.Equal(t, []int64{0}, old)

	f.write(t, "Cards/Habit.md", "## Idea\nhabit memory\n\n## More\nriver\n")
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(f.root, "Cards", "Habit.md"), later, later))

	rep, err := f.mgr.EnsureIndex(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Updated)

	m := f.manifest(t)
	assert.Equal(t, []int64{1, 2}, m.Files["Cards/Habit.md"].ChunkIDs)
	assert.Equal(t, int64(3), m.NextID)
	assert.Equal(t, []int64{1, 2}, f.ids(t))
}

func TestEnsureIndex_EmbeddingFailureLeavesIndexUntouched(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Cards/A.md", "## Idea\nstoic\n")
	ctx := context.Background()
	_, err := f.mgr.EnsureIndex(ctx, false)
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(f.dir, ManifestFile))
	require.NoError(t, err)

	f.write(t, "Cards/B.md", "## Idea\nvirtue\n")
	f.emb.fail = true
	_, err = f.mgr.EnsureIndex(ctx, false)
	assert.ErrorIs(t, err, ErrUnavailable)

	after, err := os.ReadFile(filepath.Join(f.dir, ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.Equal(t, []int64{0}, f.ids(t))
}

func TestEnsureIndex_NoEmbedder(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "idx")
	mgr := NewManager(vault.New(root), nil, nil, Options{Dir: dir}, logger.Nop())

	_, err := mgr.EnsureIndex(context.Background(), false)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))

	res, err := mgr.Search(context.Background(), "stoic", 5)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestEnsureIndex_RecoversFromManifestWriteGap(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Cards/A.md", threeSections)
	ctx := context.Background()
	_, err := f.mgr.EnsureIndex(ctx, false)
	require.NoError(t, err)

	// Crash after the vector index was saved but before the manifest was.
	f.write(t, "Cards/B.md", "## Idea\nvirtue\n\n## Two\nhabit\n")
	f.mgr.writeManifest = func(string, *Manifest) error { return errors.New("killed") }
	_, err = f.mgr.EnsureIndex(ctx, false)
	require.Error(t, err)
	assert.Len(t, f.ids(t), 5)
	assert.NotContains(t, f.manifest(t).Files, "Cards/B.md")

	f.mgr.writeManifest = WriteManifest
	_, err = f.mgr.EnsureIndex(ctx, false)
	require.NoError(t, err)

	m := f.manifest(t)
	ids := f.ids(t)
	require.Len(t, ids, 5)
	assert.Len(t, m.Chunks, 5)
	for _, id := range ids {
		assert.Contains(t, m.Chunks, id)
	}
	referenced := 0
	for _, rec := range m.Files {
		referenced += len(rec.ChunkIDs)
	}
	assert.Equal(t, 5, referenced)
	// Ids written during the interrupted run are not reused.
	assert.Equal(t, []int64{5, 6}, m.Files["Cards/B.md"].ChunkIDs)
}

func TestEnsureIndex_ModelChangeRebuilds(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Cards/A.md", "## Idea\nstoic\n")
	ctx := context.Background()
	_, err := f.mgr.EnsureIndex(ctx, false)
	require.NoError(t, err)

	f.emb.model = "word-test-v2"
	rep, err := f.mgr.EnsureIndex(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Added)

	m := f.manifest(t)
	assert.Equal(t, "word-test-v2", m.Model)
	assert.Equal(t, []int64{0}, m.Files["Cards/A.md"].ChunkIDs)
}

func TestEnsureIndex_ForceRebuilds(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Cards/A.md", "## Idea\nstoic\n")
	ctx := context.Background()
	_, err := f.mgr.EnsureIndex(ctx, false)
	require.NoError(t, err)

	rep, err := f.mgr.EnsureIndex(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, Report{Added: 1, Chunks: 1}, rep)
}

func TestEnsureIndex_IgnoresOtherFolders(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Atlas/Map.md", "## Idea\nstoic\n")

	rep, err := f.mgr.EnsureIndex(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, rep.Changed())
}

func TestSearch_RanksAndAppliesFloor(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Cards/Stoicism.md", "## Idea\nstoic virtue\n")
	f.write(t, "Cards/Habits.md", "## Idea\nhabit memory\n")
	f.write(t, "Cards/Mixed.md", "## Idea\nstoic habit memory river code code\n")
	ctx := context.Background()

	res, err := f.mgr.Search(ctx, "stoic virtue", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Stoicism", res[0].Title)
	assert.Equal(t, "Idea", res[0].Section)
	assert.Equal(t, "Cards/Stoicism.md", res[0].RelPath)
	assert.InDelta(t, 1.0, res[0].Score, 1e-5)

	res, err = f.mgr.Search(ctx, "habit", 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "Habits", res[0].Title)
	assert.Equal(t, "Mixed", res[1].Title)
	assert.GreaterOrEqual(t, res[1].Score, DefaultMinScore)

	res, err = f.mgr.Search(ctx, "nothing related", 5)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearch_UnavailableEmbedderReturnsEmpty(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Cards/A.md", "## Idea\nstoic\n")
	f.emb.fail = true

	res, err := f.mgr.Search(context.Background(), "stoic", 5)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, Stats{}, f.mgr.Stats())

	f.write(t, "Cards/A.md", threeSections)
	_, err := f.mgr.EnsureIndex(context.Background(), false)
	require.NoError(t, err)

	st := f.mgr.Stats()
	assert.Equal(t, 3, st.TotalChunks)
	assert.Equal(t, 1, st.TotalFiles)
	assert.Equal(t, "word-test", st.Model)
	assert.NotEmpty(t, st.LastUpdated)
}
