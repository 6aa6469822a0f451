// Package semantic persists and searches the embedded passages of the corpus.
// A Store replaces the whole collection on ingest and opens it as a Snapshot
// for similarity search.
package semantic

import (
	"context"
	"errors"
	"math"
	"sort"
)

// ErrDimensionMismatch is returned when a query vector does not match the
// dimensionality of the stored vectors.
var ErrDimensionMismatch = errors.New("semantic: dimension mismatch")

// Record is one embedded chunk of the source document.
type Record struct {
	ChunkIndex int       `json:"chunk_index"`
	Page       int       `json:"page"`
	Source     string    `json:"source"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

// Hit is a search result.
type Hit struct {
	Record
	Score float32 `json:"score"`
}

// Snapshot is a read-only, searchable view of one stored collection.
type Snapshot interface {
	// Search returns at most k hits ordered by descending similarity.
	Search(ctx context.Context, embedding []float32, k int) ([]Hit, error)
	// Len is the number of stored records.
	Len() int
}

// Store persists a collection of records.
type Store interface {
	// Replace discards any previous collection and stores records. Until it
	// succeeds, Open and snapshots opened earlier keep serving the previous
	// collection; a failed Replace leaves it in place.
	Replace(ctx context.Context, records []Record) error
	// Open returns the stored collection, or false when none exists.
	Open(ctx context.Context) (Snapshot, bool, error)
}

// MemorySnapshot searches records held in memory with cosine similarity.
type MemorySnapshot struct {
	records []Record
	norms   []float64
}

// NewMemorySnapshot builds a snapshot over records. The slice is not copied
// and must not be modified afterwards.
func NewMemorySnapshot(records []Record) *MemorySnapshot {
	norms := make([]float64, len(records))
	for i, r := range records {
		norms[i] = norm(r.Embedding)
	}
	return &MemorySnapshot{records: records, norms: norms}
}

// Len implements Snapshot.
func (s *MemorySnapshot) Len() int { return len(s.records) }

// Records returns the stored records in chunk order.
func (s *MemorySnapshot) Records() []Record { return s.records }

// Search implements Snapshot. Equal scores keep chunk order.
func (s *MemorySnapshot) Search(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	if k <= 0 || len(s.records) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	qn := norm(embedding)
	hits := make([]Hit, 0, len(s.records))
	for i, r := range s.records {
		if len(r.Embedding) != len(embedding) {
			return nil, ErrDimensionMismatch
		}
		hits = append(hits, Hit{Record: r, Score: cosine(embedding, r.Embedding, qn, s.norms[i])})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, na, nb float64) float32 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (na * nb))
}
