package index

import "context"

// Chunk is one embedded slice of a vault document. Its id never changes and
// is never reused.
type Chunk struct {
	RelPath string `json:"rel_path"`
	Title   string `json:"title"`
	Section string `json:"section"`
	Text    string `json:"text"`
}

// FileRecord is the last-seen state of one indexed file. MTime is Unix nanoseconds.
type FileRecord struct {
	MTime    int64   `json:"mtime"`
	Size     int64   `json:"size"`
	ChunkIDs []int64 `json:"chunk_ids"`
}

// Hit is one nearest-neighbour result.
type Hit struct {
	ID    int64
	Score float32
}

// VectorIndex stores normalized vectors under caller-chosen numeric ids and
// answers inner-product top-k queries.
type VectorIndex interface {
	Add(ctx context.Context, ids []int64, vecs [][]float32) error
	Remove(ctx context.Context, ids []int64) error
	Search(ctx context.Context, vec []float32, k int) ([]Hit, error)
	Len(ctx context.Context) (int, error)
	// Save makes previous mutations durable.
	Save(ctx context.Context) error
}

// Enumerator is implemented by indexes that can list their ids, which lets the
// manager reconcile them against the manifest after an interrupted run.
type Enumerator interface {
	IDs(ctx context.Context) ([]int64, error)
}

// Backend opens the vector index for a given dimension. Reset discards any
// stored vectors and returns an empty index.
type Backend interface {
	Open(ctx context.Context, dim int) (VectorIndex, error)
	Reset(ctx context.Context, dim int) (VectorIndex, error)
}

// Result is one semantic search match resolved through the manifest.
type Result struct {
	Title   string  `json:"title"`
	Section string  `json:"section"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
	RelPath string  `json:"rel_path"`
}
