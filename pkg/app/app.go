// Package app wires the configuration into the engine components shared by
// the fleet binaries.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/WessleyAI/wessley-fleet/engine/corpus"
	"github.com/WessleyAI/wessley-fleet/engine/gen"
	"github.com/WessleyAI/wessley-fleet/engine/ingest"
	"github.com/WessleyAI/wessley-fleet/engine/rag"
	"github.com/WessleyAI/wessley-fleet/engine/semantic"
	"github.com/WessleyAI/wessley-fleet/pkg/config"
	"github.com/WessleyAI/wessley-fleet/pkg/metrics"
	"github.com/WessleyAI/wessley-fleet/pkg/ollama"
	"github.com/WessleyAI/wessley-fleet/pkg/resilience"
	"golang.org/x/time/rate"
)

// Store is a corpus store that holds a connection.
type Store interface {
	semantic.Store
	io.Closer
}

// OpenStore opens the configured corpus store.
func OpenStore(cfg config.CorpusConfig) (Store, error) {
	switch cfg.Store {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("app: store dir: %w", err)
			}
		}
		return semantic.OpenSQLite(cfg.SQLitePath)
	case "qdrant":
		return semantic.New(cfg.QdrantAddr, cfg.Collection)
	default:
		return nil, fmt.Errorf("app: unknown store %q", cfg.Store)
	}
}

// NewEmbedder returns the configured embedding client.
func NewEmbedder(cfg config.EmbedderConfig) (corpus.Embedder, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewEmbedClient(cfg.URL, cfg.Model), nil
	case "openai":
		return corpus.NewOpenAIEmbedder(cfg.APIKey, cfg.URL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("app: unknown embedder %q", cfg.Provider)
	}
}

// NewIndex opens the store and builds a corpus index over it. The caller
// closes the returned store.
func NewIndex(cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (*corpus.Index, Store, error) {
	store, err := OpenStore(cfg.Corpus)
	if err != nil {
		return nil, nil, err
	}
	emb, err := NewEmbedder(cfg.Embedder)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	opts := corpus.Options{
		Store:        store,
		Embedder:     emb,
		Chunking:     ingest.ChunkOpts{Size: cfg.Corpus.ChunkSize, Overlap: cfg.Corpus.ChunkOverlap},
		CacheSize:    cfg.Corpus.CacheSize,
		EmbedTimeout: cfg.Corpus.EmbedTimeout,
		Logger:       log,
	}
	if m != nil {
		opts.Observe = m.IngestStage
	}
	ix, err := corpus.New(opts)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return ix, store, nil
}

// Backends builds one backend per provider the profiles use.
func Backends(cfg *config.Config) map[gen.Provider]gen.Backend {
	out := make(map[gen.Provider]gen.Backend)
	for _, p := range cfg.Providers() {
		switch p {
		case gen.ProviderAnthropic:
			out[p] = gen.NewAnthropicBackend(cfg.Backends.AnthropicAPIKey, cfg.Backends.AnthropicBaseURL)
		case gen.ProviderOpenAI:
			out[p] = gen.NewOpenAIBackend(cfg.Backends.OpenAIAPIKey, cfg.Backends.OpenAIBaseURL)
		case gen.ProviderOllama:
			out[p] = gen.NewOllamaBackend(cfg.Backends.OllamaURL)
		}
	}
	return out
}

// NewAdapter builds the generative call adapter with the recommendation
// templates, a shared rate limiter and per-provider breakers.
func NewAdapter(cfg *config.Config, backends map[gen.Provider]gen.Backend, log *slog.Logger, m *metrics.Metrics) *gen.Adapter {
	opts := gen.Options{
		Backends: backends,
		Breaker: resilience.BreakerOpts{
			FailThreshold: cfg.Limits.BreakerThreshold,
			Timeout:       cfg.Limits.BreakerCooldown,
		},
		Logger: log,
	}
	if cfg.Limits.RatePerSecond > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.Limits.RatePerSecond), cfg.Limits.Burst)
	}
	if m != nil {
		opts.Observe = func(p gen.Provider, outcome string, d time.Duration) {
			m.BackendCall(string(p), outcome, d)
		}
	}
	return gen.NewAdapter(rag.NewTemplates(), opts)
}

// NewService builds the recommendation service.
func NewService(cfg *config.Config, r rag.Retriever, g rag.Generator, log *slog.Logger, m *metrics.Metrics) *rag.Service {
	opts := rag.Options{
		Profiles: rag.Profiles{
			Cost:      cfg.Profiles.Cost,
			Risk:      cfg.Profiles.Risk,
			Synthesis: cfg.Profiles.Synthesis,
		},
		TopK:          cfg.Pipeline.TopK,
		MaxCandidates: cfg.Pipeline.MaxCandidates,
		Workers:       cfg.Pipeline.Workers,
		Logger:        log,
	}
	if m != nil {
		opts.Metrics = m
	}
	return rag.New(r, g, opts)
}
