package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/qdrant/go-client/qdrant"
)

const qdrantScrollPage = 256

// QdrantConfig addresses a Qdrant collection over gRPC.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// QdrantIndex stores vectors as points in one Qdrant collection using dot
// product distance. Writes wait for the server, so Save is a no-op.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dim        int
}

func (q *QdrantIndex) Add(ctx context.Context, ids []int64, vecs [][]float32) error {
	if len(ids) != len(vecs) {
		return fmt.Errorf("add: %d ids for %d vectors", len(ids), len(vecs))
	}
	if len(ids) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(ids))
	for i, id := range ids {
		if len(vecs[i]) != q.dim {
			return fmt.Errorf("add: %w: got %d want %d", ErrVectorLengthMismatch, len(vecs[i]), q.dim)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(id)),
			Vectors: qdrant.NewVectors(vecs[i]...),
		}
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Remove(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs(ids)...),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, vec []float32, k int) ([]Hit, error) {
	if len(vec) != q.dim {
		return nil, fmt.Errorf("search: %w: got %d want %d", ErrVectorLengthMismatch, len(vec), q.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(k)),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}
	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, Hit{ID: int64(p.GetId().GetNum()), Score: p.GetScore()})
	}
	return hits, nil
}

func (q *QdrantIndex) Len(ctx context.Context) (int, error) {
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return int(n), nil
}

// IDs scrolls the whole collection and returns point ids in ascending order.
func (q *QdrantIndex) IDs(ctx context.Context) ([]int64, error) {
	var (
		out    []int64
		offset *qdrant.PointId
	)
	for {
		points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Limit:          qdrant.PtrOf(uint32(qdrantScrollPage)),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(false),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant scroll: %w", err)
		}
		for _, p := range points {
			out = append(out, int64(p.GetId().GetNum()))
		}
		if len(points) < qdrantScrollPage {
			break
		}
		offset = qdrant.NewIDNum(points[len(points)-1].GetId().GetNum() + 1)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (q *QdrantIndex) Save(context.Context) error { return nil }

// Close releases the gRPC connection.
func (q *QdrantIndex) Close() error { return q.client.Close() }

func pointIDs(ids []int64) []*qdrant.PointId {
	out := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		out[i] = qdrant.NewIDNum(uint64(id))
	}
	return out
}

// QdrantBackend opens a QdrantIndex, creating the collection on first use.
type QdrantBackend struct {
	Config QdrantConfig
}

func (b QdrantBackend) connect() (*qdrant.Client, error) {
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   b.Config.Host,
		Port:   b.Config.Port,
		APIKey: b.Config.APIKey,
		UseTLS: b.Config.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant: %w", ErrUnavailable, err)
	}
	return c, nil
}

func (b QdrantBackend) Open(ctx context.Context, dim int) (VectorIndex, error) {
	c, err := b.connect()
	if err != nil {
		return nil, err
	}
	exists, err := c.CollectionExists(ctx, b.Config.Collection)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: qdrant: %w", ErrUnavailable, err)
	}
	if exists {
		info, err := c.GetCollectionInfo(ctx, b.Config.Collection)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("qdrant collection info: %w", err)
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if int(size) != dim {
			_ = c.Close()
			return nil, fmt.Errorf("qdrant collection %s: %w: stored %d, want %d", b.Config.Collection, ErrVectorLengthMismatch, size, dim)
		}
	} else if err := b.create(ctx, c, dim); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &QdrantIndex{client: c, collection: b.Config.Collection, dim: dim}, nil
}

func (b QdrantBackend) Reset(ctx context.Context, dim int) (VectorIndex, error) {
	c, err := b.connect()
	if err != nil {
		return nil, err
	}
	exists, err := c.CollectionExists(ctx, b.Config.Collection)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: qdrant: %w", ErrUnavailable, err)
	}
	if exists {
		if err := c.DeleteCollection(ctx, b.Config.Collection); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("qdrant delete collection: %w", err)
		}
	}
	if err := b.create(ctx, c, dim); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &QdrantIndex{client: c, collection: b.Config.Collection, dim: dim}, nil
}

func (b QdrantBackend) create(ctx context.Context, c *qdrant.Client, dim int) error {
	err := c.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: b.Config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Dot,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	return nil
}
