// Package corpus holds the searchable index of the reference document. The
// index is an immutable snapshot behind an atomic pointer: ingestion and
// reloads build a new snapshot and swap it in, queries never wait on them.
package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/WessleyAI/wessley-fleet/engine/domain"
	"github.com/WessleyAI/wessley-fleet/engine/ingest"
	"github.com/WessleyAI/wessley-fleet/engine/semantic"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Embedder embeds single query texts and batches of chunks.
type Embedder interface {
	ingest.Embedder
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options configures an Index.
type Options struct {
	Store    semantic.Store
	Embedder Embedder
	Chunking ingest.ChunkOpts
	// CacheSize bounds the query-embedding cache; 0 disables it.
	CacheSize int
	// EmbedTimeout bounds a single query embedding; 0 means no extra bound.
	EmbedTimeout time.Duration
	Logger       *slog.Logger
	// Observe, if set, receives ingestion stage durations.
	Observe func(stage string, d time.Duration, err error)
}

type snapshot struct {
	semantic.Snapshot
	loadedAt time.Time
}

// Index is the corpus index. It is safe for concurrent use.
type Index struct {
	store    semantic.Store
	embedder Embedder
	log      *slog.Logger
	timeout  time.Duration
	pipeline func(ctx context.Context, path string) (ingest.Summary, error)

	mu    sync.Mutex // serializes writers
	snap  atomic.Pointer[snapshot]
	cache *lru.Cache[string, []float32]
}

// New creates an empty index. Call Load to restore a persisted one.
func New(opts Options) (*Index, error) {
	if opts.Store == nil || opts.Embedder == nil {
		return nil, fmt.Errorf("corpus: store and embedder are required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ix := &Index{store: opts.Store, embedder: opts.Embedder, log: log, timeout: opts.EmbedTimeout}
	if opts.CacheSize > 0 {
		c, err := lru.New[string, []float32](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("corpus: cache: %w", err)
		}
		ix.cache = c
	}
	pipe := ingest.NewPipeline(ingest.Deps{
		Embedder: opts.Embedder,
		Store:    opts.Store,
		Chunking: opts.Chunking,
		Logger:   log,
		Observe:  opts.Observe,
	})
	ix.pipeline = func(ctx context.Context, path string) (ingest.Summary, error) {
		return pipe(ctx, path).Unwrap()
	}
	return ix, nil
}

// Ingest builds the index from the document at path, replacing any prior
// index in the store and in memory. On failure the previous in-memory
// snapshot stays in place.
func (ix *Index) Ingest(ctx context.Context, path string) (ingest.Summary, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	sum, err := ix.pipeline(ctx, path)
	if err != nil {
		return sum, err
	}
	snap, ok, err := ix.store.Open(ctx)
	if err != nil {
		return sum, &domain.IngestionError{Path: path, Step: "store", Err: err}
	}
	if !ok {
		return sum, &domain.IngestionError{Path: path, Step: "store", Err: domain.ErrEmptyCorpus}
	}
	ix.swap(snap)
	ix.log.Info("corpus: ingested", "source", sum.Source, "pages", sum.Pages, "chunks", sum.Chunks)
	return sum, nil
}

// Load restores the persisted index and reports whether one existed. Calling
// it again re-reads the store and swaps in an equivalent snapshot.
func (ix *Index) Load(ctx context.Context) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	snap, ok, err := ix.store.Open(ctx)
	if err != nil {
		return false, fmt.Errorf("corpus: load: %w", err)
	}
	if !ok {
		ix.swap(nil)
		return false, nil
	}
	ix.swap(snap)
	ix.log.Info("corpus: loaded", "chunks", snap.Len())
	return true, nil
}

// swap publishes snap and drops cached query vectors. Must hold mu.
func (ix *Index) swap(snap semantic.Snapshot) {
	if snap == nil {
		ix.snap.Store(nil)
	} else {
		ix.snap.Store(&snapshot{Snapshot: snap, loadedAt: time.Now()})
	}
	if ix.cache != nil {
		ix.cache.Purge()
	}
}

// Loaded reports whether an index is available for queries.
func (ix *Index) Loaded() bool { return ix.snap.Load() != nil }

// Size is the number of indexed passages.
func (ix *Index) Size() int {
	if s := ix.snap.Load(); s != nil {
		return s.Len()
	}
	return 0
}

// LoadedAt is when the current snapshot was swapped in.
func (ix *Index) LoadedAt() (time.Time, bool) {
	if s := ix.snap.Load(); s != nil {
		return s.loadedAt, true
	}
	return time.Time{}, false
}

// Query returns the k passages most similar to text. Without a loaded index
// it returns an empty context and no error.
func (ix *Index) Query(ctx context.Context, text string, k int) (RetrievedContext, error) {
	snap := ix.snap.Load()
	if snap == nil || k <= 0 {
		return RetrievedContext{}, nil
	}
	vec, err := ix.embed(ctx, text)
	if err != nil {
		return RetrievedContext{}, fmt.Errorf("corpus: embed query: %w", err)
	}
	hits, err := snap.Search(ctx, vec, k)
	if err != nil {
		return RetrievedContext{}, fmt.Errorf("corpus: search: %w", err)
	}
	out := RetrievedContext{Passages: make([]Passage, len(hits))}
	for i, h := range hits {
		out.Passages[i] = Passage{Text: h.Text, ChunkIndex: h.ChunkIndex, Page: h.Page, Score: h.Score}
	}
	return out, nil
}

func (ix *Index) embed(ctx context.Context, text string) ([]float32, error) {
	if ix.cache != nil {
		if v, ok := ix.cache.Get(text); ok {
			return v, nil
		}
	}
	if ix.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ix.timeout)
		defer cancel()
	}
	v, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if ix.cache != nil {
		ix.cache.Add(text, v)
	}
	return v, nil
}
