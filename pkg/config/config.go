// Package config loads the fleet service configuration: struct defaults,
// then a .env file, then FLEET_* environment variables, validated on load.
package config

import (
	"time"

	"github.com/WessleyAI/wessley-fleet/engine/gen"
)

// EnvPrefix prefixes every environment override, e.g. FLEET_SERVER_ADDR
// sets server.addr and FLEET_PROFILES_COST_MODEL sets profiles.cost.model.
const EnvPrefix = "FLEET_"

// DefaultModel is the generation model of every default profile.
const DefaultModel = "claude-3-7-sonnet-20250219"

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Corpus   CorpusConfig   `koanf:"corpus"`
	Embedder EmbedderConfig `koanf:"embedder"`
	Backends BackendsConfig `koanf:"backends"`
	Profiles ProfilesConfig `koanf:"profiles"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Limits   LimitsConfig   `koanf:"limits"`
	NATS     NATSConfig     `koanf:"nats"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	CORSOrigins     []string      `koanf:"cors_origins" validate:"min=1"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes" validate:"gte=1024"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gte=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

// CorpusConfig configures the corpus index and its store.
type CorpusConfig struct {
	Store        string        `koanf:"store" validate:"oneof=sqlite qdrant"`
	SQLitePath   string        `koanf:"sqlite_path" validate:"required_if=Store sqlite"`
	QdrantAddr   string        `koanf:"qdrant_addr" validate:"required_if=Store qdrant"`
	Collection   string        `koanf:"collection" validate:"required_if=Store qdrant"`
	ChunkSize    int           `koanf:"chunk_size" validate:"gte=100"`
	ChunkOverlap int           `koanf:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	CacheSize    int           `koanf:"cache_size" validate:"gte=0"`
	EmbedTimeout time.Duration `koanf:"embed_timeout" validate:"gte=0"`
}

// EmbedderConfig selects the embedding backend.
type EmbedderConfig struct {
	Provider string `koanf:"provider" validate:"oneof=ollama openai"`
	URL      string `koanf:"url"`
	Model    string `koanf:"model" validate:"required"`
	APIKey   string `koanf:"api_key" validate:"required_if=Provider openai"`
}

// BackendsConfig holds generative backend credentials and endpoints.
type BackendsConfig struct {
	AnthropicAPIKey  string `koanf:"anthropic_api_key"`
	AnthropicBaseURL string `koanf:"anthropic_base_url"`
	OpenAIAPIKey     string `koanf:"openai_api_key"`
	OpenAIBaseURL    string `koanf:"openai_base_url"`
	OllamaURL        string `koanf:"ollama_url"`
}

// ProfilesConfig holds the profile of each pipeline stage.
type ProfilesConfig struct {
	Cost      gen.Profile `koanf:"cost"`
	Risk      gen.Profile `koanf:"risk"`
	Synthesis gen.Profile `koanf:"synthesis"`
}

// All returns the stage profiles in pipeline order.
func (p ProfilesConfig) All() []gen.Profile { return []gen.Profile{p.Cost, p.Risk, p.Synthesis} }

// PipelineConfig tunes the recommendation pipeline.
type PipelineConfig struct {
	TopK          int `koanf:"top_k" validate:"gte=1,lte=100"`
	MaxCandidates int `koanf:"max_candidates" validate:"gte=1,lte=20"`
	Workers       int `koanf:"workers" validate:"gte=1,lte=16"`
}

// LimitsConfig paces and guards backend calls.
type LimitsConfig struct {
	RatePerSecond    float64       `koanf:"rate_per_second" validate:"gte=0"`
	Burst            int           `koanf:"burst" validate:"gte=1"`
	BreakerThreshold int           `koanf:"breaker_threshold" validate:"gte=1"`
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown" validate:"gte=1s"`
}

// NATSConfig configures reload events. An empty URL disables them.
type NATSConfig struct {
	URL string `koanf:"url"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			CORSOrigins:     []string{"*"},
			MaxBodyBytes:    1 << 20,
			RequestTimeout:  6 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Corpus: CorpusConfig{
			Store:        "sqlite",
			SQLitePath:   "data/corpus.db",
			QdrantAddr:   "localhost:6334",
			Collection:   "fleet_corpus",
			ChunkSize:    1000,
			ChunkOverlap: 150,
			CacheSize:    256,
			EmbedTimeout: 15 * time.Second,
		},
		Embedder: EmbedderConfig{
			Provider: "ollama",
			URL:      "http://localhost:11434",
			Model:    "nomic-embed-text",
		},
		Backends: BackendsConfig{
			OllamaURL: "http://localhost:11434",
		},
		Profiles: ProfilesConfig{
			Cost: gen.Profile{
				Name: "cost", Provider: gen.ProviderAnthropic, Model: DefaultModel,
				MaxTokens: 4096, Temperature: 0.2, Timeout: 120 * time.Second,
			},
			Risk: gen.Profile{
				Name: "risk", Provider: gen.ProviderAnthropic, Model: DefaultModel,
				MaxTokens: 2048, Temperature: 0.3, Timeout: 60 * time.Second,
			},
			Synthesis: gen.Profile{
				Name: "synthesis", Provider: gen.ProviderAnthropic, Model: DefaultModel,
				MaxTokens: 2048, Temperature: 0.3, Timeout: 120 * time.Second,
			},
		},
		Pipeline: PipelineConfig{TopK: 20, MaxCandidates: 5, Workers: 3},
		Limits: LimitsConfig{
			RatePerSecond:    2,
			Burst:            4,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}
