// Package ingest turns a source document into stored, embedded passages
// through load, chunk, embed and store stages.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/wessley-fleet/engine/domain"
	"github.com/WessleyAI/wessley-fleet/engine/semantic"
	"github.com/WessleyAI/wessley-fleet/pkg/fn"
)

// EmbedBatchSize is the max chunks per embedding request.
const EmbedBatchSize = 100

// Embedder turns texts into vectors, one per text, in order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Embedder Embedder
	Store    semantic.Store
	Chunking ChunkOpts
	Logger   *slog.Logger
	// Observe, if set, receives the duration and outcome of every stage.
	Observe func(stage string, d time.Duration, err error)
}

// --- Pipeline Stages ---

// Load reads the document at the given path.
var Load fn.Stage[string, Document] = func(_ context.Context, path string) fn.Result[Document] {
	return fn.FromPair(LoadDocument(path))
}

// NewChunk creates a stage splitting a Document into overlapping chunks.
func NewChunk(opts ChunkOpts) fn.Stage[Document, ChunkedDoc] {
	return func(_ context.Context, doc Document) fn.Result[ChunkedDoc] {
		o, err := opts.withDefaults()
		if err != nil {
			return fn.Err[ChunkedDoc](&domain.IngestionError{Path: doc.Path, Step: "chunk", Err: err})
		}
		chunks, err := splitPages(doc.Pages, o)
		if err != nil {
			return fn.Err[ChunkedDoc](&domain.IngestionError{Path: doc.Path, Step: "chunk", Err: err})
		}
		if len(chunks) == 0 {
			return fn.Err[ChunkedDoc](&domain.IngestionError{Path: doc.Path, Step: "chunk", Err: ErrNoText})
		}
		return fn.Ok(ChunkedDoc{Document: doc, Chunks: chunks})
	}
}

// NewEmbed creates an Embed stage that embeds chunks in batches.
func NewEmbed(client Embedder) fn.Stage[ChunkedDoc, EmbeddedDoc] {
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[EmbeddedDoc] {
		fail := func(err error) fn.Result[EmbeddedDoc] {
			return fn.Err[EmbeddedDoc](&domain.IngestionError{Path: doc.Path, Step: "embed", Err: err})
		}
		embeddings := make([][]float32, len(doc.Chunks))

		for i := 0; i < len(doc.Chunks); i += EmbedBatchSize {
			end := min(i+EmbedBatchSize, len(doc.Chunks))

			texts := make([]string, end-i)
			for j, c := range doc.Chunks[i:end] {
				texts[j] = c.Text
			}

			vecs, err := client.EmbedBatch(ctx, texts)
			if err != nil {
				return fail(fmt.Errorf("embed batch at %d: %w", i, err))
			}
			if len(vecs) != len(texts) {
				return fail(fmt.Errorf("embed batch at %d: got %d vectors for %d texts", i, len(vecs), len(texts)))
			}
			copy(embeddings[i:end], vecs)
		}

		dims := len(embeddings[0])
		for i, e := range embeddings {
			if len(e) == 0 || len(e) != dims {
				return fail(fmt.Errorf("chunk %d: vector has %d dimensions, want %d", i, len(e), dims))
			}
		}
		return fn.Ok(EmbeddedDoc{ChunkedDoc: doc, Embeddings: embeddings})
	}
}

// NewStore creates a Store stage that replaces the stored collection.
func NewStore(store semantic.Store) fn.Stage[EmbeddedDoc, Summary] {
	return func(ctx context.Context, doc EmbeddedDoc) fn.Result[Summary] {
		if err := store.Replace(ctx, doc.Records()); err != nil {
			return fn.Err[Summary](&domain.IngestionError{Path: doc.Path, Step: "store", Err: err})
		}
		return fn.Ok(Summary{
			Path:       doc.Path,
			Source:     doc.Source,
			Pages:      len(doc.Pages),
			Chunks:     len(doc.Chunks),
			Dimensions: len(doc.Embeddings[0]),
		})
	}
}

func step[In, Out any](deps Deps, log *slog.Logger, name string, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	s := fn.TracedStage("ingest."+name, stage)
	if deps.Observe != nil {
		s = fn.TimedStage(name, deps.Observe, s)
	}
	return fn.LoggedStage(name, log, s)
}

// NewPipeline constructs the full ingestion pipeline with all stages wired.
func NewPipeline(deps Deps) fn.Stage[string, Summary] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	// Compose: Load → Chunk → Embed → Store
	loaded := step(deps, log, "load", Load)
	chunked := fn.Then(loaded, step(deps, log, "chunk", NewChunk(deps.Chunking)))
	embedded := fn.Then(chunked, step(deps, log, "embed", NewEmbed(deps.Embedder)))
	return fn.Then(embedded, step(deps, log, "store", NewStore(deps.Store)))
}
