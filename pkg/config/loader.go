package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/WessleyAI/wessley-fleet/engine/domain"
	"github.com/WessleyAI/wessley-fleet/engine/gen"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ErrInvalid is returned when the loaded configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Load builds the configuration. envFiles are read into the process
// environment first without overriding variables already set; with no
// files, a .env in the working directory is read when present.
func Load(envFiles ...string) (*Config, error) {
	if err := loadDotenv(envFiles); err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	// Only keys present in the defaults can be overridden.
	envToKey := make(map[string]string, len(k.Keys()))
	for _, key := range k.Keys() {
		envToKey[EnvVar(key)] = key
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(name, value string) (string, any) {
			return envToKey[name], value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EnvVar returns the environment variable that overrides a koanf key.
func EnvVar(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func loadDotenv(files []string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: read .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("config: read env files: %w", err)
	}
	return nil
}

// Validate checks the struct constraints of every section.
func (c *Config) Validate() error {
	if err := domain.Validator().Struct(c, ErrInvalid); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// CheckBackends reports profiles whose provider has no credentials or
// endpoint configured. Only commands that generate need this.
func (c *Config) CheckBackends() error {
	var errs []error
	for _, p := range c.Profiles.All() {
		switch p.Provider {
		case gen.ProviderAnthropic:
			if c.Backends.AnthropicAPIKey == "" {
				errs = append(errs, fmt.Errorf("profile %s: %s is not set", p.Name, EnvVar("backends.anthropic_api_key")))
			}
		case gen.ProviderOpenAI:
			if c.Backends.OpenAIAPIKey == "" && c.Backends.OpenAIBaseURL == "" {
				errs = append(errs, fmt.Errorf("profile %s: %s is not set", p.Name, EnvVar("backends.openai_api_key")))
			}
		case gen.ProviderOllama:
			if c.Backends.OllamaURL == "" {
				errs = append(errs, fmt.Errorf("profile %s: %s is not set", p.Name, EnvVar("backends.ollama_url")))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Providers returns the distinct providers the profiles use.
func (c *Config) Providers() []gen.Provider {
	var out []gen.Provider
	seen := map[gen.Provider]bool{}
	for _, p := range c.Profiles.All() {
		if !seen[p.Provider] {
			seen[p.Provider] = true
			out = append(out, p.Provider)
		}
	}
	return out
}
