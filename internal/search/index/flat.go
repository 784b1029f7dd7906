package index

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/rualca/librarian-agent/internal/fsutil"
)

const (
	flatMagic   = "LBVX"
	flatVersion = uint32(1)
)

var errFlatCorrupt = errors.New("corrupt vector file")

// FlatIndex is an exact inner-product index held in memory and persisted as a
// single little-endian file: magic, version, dim, count, ids, then vectors.
type FlatIndex struct {
	path string
	dim  int

	mu   sync.RWMutex
	ids  []int64
	vecs [][]float32
	pos  map[int64]int
}

// NewFlatIndex returns an empty index that persists to path.
func NewFlatIndex(path string, dim int) *FlatIndex {
	return &FlatIndex{path: path, dim: dim, pos: map[int64]int{}}
}

// Dim returns the vector dimension.
func (f *FlatIndex) Dim() int { return f.dim }

func (f *FlatIndex) Add(_ context.Context, ids []int64, vecs [][]float32) error {
	if len(ids) != len(vecs) {
		return fmt.Errorf("add: %d ids for %d vectors", len(ids), len(vecs))
	}
	for _, v := range vecs {
		if len(v) != f.dim {
			return fmt.Errorf("add: %w: got %d want %d", ErrVectorLengthMismatch, len(v), f.dim)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range ids {
		v := make([]float32, f.dim)
		copy(v, vecs[i])
		if p, ok := f.pos[id]; ok {
			f.vecs[p] = v
			continue
		}
		f.pos[id] = len(f.ids)
		f.ids = append(f.ids, id)
		f.vecs = append(f.vecs, v)
	}
	return nil
}

func (f *FlatIndex) Remove(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		p, ok := f.pos[id]
		if !ok {
			continue
		}
		last := len(f.ids) - 1
		if p != last {
			f.ids[p] = f.ids[last]
			f.vecs[p] = f.vecs[last]
			f.pos[f.ids[p]] = p
		}
		f.ids = f.ids[:last]
		f.vecs = f.vecs[:last]
		delete(f.pos, id)
	}
	return nil
}

func (f *FlatIndex) Search(_ context.Context, vec []float32, k int) ([]Hit, error) {
	if len(vec) != f.dim {
		return nil, fmt.Errorf("search: %w: got %d want %d", ErrVectorLengthMismatch, len(vec), f.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	f.mu.RLock()
	hits := make([]Hit, 0, len(f.ids))
	for i, id := range f.ids {
		s, err := Dot(vec, f.vecs[i])
		if err != nil {
			f.mu.RUnlock()
			return nil, err
		}
		hits = append(hits, Hit{ID: id, Score: float32(s)})
	}
	f.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *FlatIndex) Len(context.Context) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids), nil
}

// IDs lists stored ids in ascending order.
func (f *FlatIndex) IDs(context.Context) ([]int64, error) {
	f.mu.RLock()
	out := append([]int64(nil), f.ids...)
	f.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Save writes the whole index to disk through a temp file and rename.
func (f *FlatIndex) Save(context.Context) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteString(flatMagic)
	hdr := []uint32{flatVersion, uint32(f.dim), uint32(len(f.ids))}
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		return err
	}
	if err := binary.Write(&buf, binary.LittleEndian, f.ids); err != nil {
		return err
	}
	for _, v := range f.vecs {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if err := fsutil.WriteFileAtomic(f.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("cannot write vectors: %w", err)
	}
	return nil
}

// LoadFlatIndex reads the index at path. The returned index always has dim
// dimensions; a stored file with another dimension is an error.
func LoadFlatIndex(path string, dim int) (*FlatIndex, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(b)

	magic := make([]byte, len(flatMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != flatMagic {
		return nil, fmt.Errorf("%w: bad magic", errFlatCorrupt)
	}
	var hdr [3]uint32
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %w", errFlatCorrupt, err)
	}
	if hdr[0] != flatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", errFlatCorrupt, hdr[0])
	}
	if int(hdr[1]) != dim {
		return nil, fmt.Errorf("%w: stored dim %d, want %d", ErrVectorLengthMismatch, hdr[1], dim)
	}
	n := int(hdr[2])
	want := int64(n)*8 + int64(n)*int64(dim)*4
	if int64(r.Len()) != want {
		return nil, fmt.Errorf("%w: expected %d payload bytes, got %d", errFlatCorrupt, want, r.Len())
	}

	f := NewFlatIndex(path, dim)
	f.ids = make([]int64, n)
	if err := binary.Read(r, binary.LittleEndian, f.ids); err != nil {
		return nil, fmt.Errorf("%w: %w", errFlatCorrupt, err)
	}
	f.vecs = make([][]float32, n)
	for i := range f.vecs {
		v := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("%w: %w", errFlatCorrupt, err)
		}
		f.vecs[i] = v
	}
	for i, id := range f.ids {
		f.pos[id] = i
	}
	return f, nil
}

// FlatBackend opens a FlatIndex stored at Path.
type FlatBackend struct {
	Path string
	Log  *slog.Logger
}

// Open loads the stored index. A missing or unreadable file yields an empty
// index; the manager reconciles it against the manifest.
func (b FlatBackend) Open(_ context.Context, dim int) (VectorIndex, error) {
	f, err := LoadFlatIndex(b.Path, dim)
	if err == nil {
		return f, nil
	}
	if !os.IsNotExist(err) && b.Log != nil {
		b.Log.Warn("vector file unreadable, starting empty", "path", b.Path, "error", err)
	}
	return NewFlatIndex(b.Path, dim), nil
}

// Reset removes the stored file and returns an empty index.
func (b FlatBackend) Reset(_ context.Context, dim int) (VectorIndex, error) {
	if err := os.Remove(b.Path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("cannot remove vectors: %w", err)
	}
	return NewFlatIndex(b.Path, dim), nil
}
