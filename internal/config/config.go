package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides. Nested keys are
// separated by a double underscore: DOCQA_VECTOR_STORE__TYPE -> vector_store.type.
const EnvPrefix = "DOCQA_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides. If envFile names an existing dotenv file
// it is loaded into the process environment first; variables already set
// in the environment win.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	k := koanf.New(".")

	cfg := baseConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	applyLegacyEnv(cfg)
	cfg.fillModelDefaults()

	return cfg, nil
}

// envKey maps DOCQA_LLM__MODEL to llm.model.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// applyLegacyEnv honours the unprefixed variable names used by earlier
// deployments of the service.
func applyLegacyEnv(cfg *Config) {
	if v := os.Getenv("WEAVIATE_URL"); v != "" {
		cfg.VectorStore.Weaviate.URL = v
	}
	if v := os.Getenv("WEAVIATE_API_KEY"); v != "" {
		cfg.VectorStore.Weaviate.APIKey = v
	}
	if v := os.Getenv("COLLECTION_NAME"); v != "" {
		cfg.Collection = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("DATA_PATH"); v != "" {
		cfg.DataPath = v
	}
	if v, err := strconv.ParseBool(os.Getenv("USE_MOCK_LLM")); err == nil && v {
		cfg.LLM.Provider = ProviderMock
		cfg.LLM.Model = DefaultLLMModel(ProviderMock)
	}
}

// fillModelDefaults fills in model names and dimensions left empty for the
// selected providers.
func (c *Config) fillModelDefaults() {
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultLLMModel(c.LLM.Provider)
	}
	model, dims := DefaultEmbeddingModel(c.Embedding.Provider)
	if c.Embedding.Model == "" {
		c.Embedding.Model = model
	}
	if c.Embedding.Dimensions == 0 && c.Embedding.Model == model {
		c.Embedding.Dimensions = dims
	}
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validEmbeddingProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
	ProviderHash:   true,
}

var validLLMProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderOllama: true,
	ProviderMock:   true,
}

var validStores = map[StoreType]bool{
	StoreChromem:  true,
	StoreWeaviate: true,
	StorePgvector: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.DataPath == "" {
		return fmt.Errorf("data_path is required")
	}
	if c.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if c.DefaultK < 1 {
		return fmt.Errorf("default_k must be at least 1")
	}

	if !validEmbeddingProviders[c.Embedding.Provider] {
		return fmt.Errorf("invalid embedding.provider %q: must be one of openai, ollama, hash", c.Embedding.Provider)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must be non-negative")
	}

	if !validLLMProviders[c.LLM.Provider] {
		return fmt.Errorf("invalid llm.provider %q: must be one of openai, ollama, mock", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute must be non-negative")
	}

	switch c.VectorStore.Type {
	case StoreWeaviate:
		if c.VectorStore.Weaviate.URL == "" {
			return fmt.Errorf("vector_store.weaviate.url is required for the weaviate store")
		}
	case StorePgvector:
		if c.VectorStore.Postgres.DSN == "" {
			return fmt.Errorf("vector_store.postgres.dsn is required for the pgvector store")
		}
	default:
		if !validStores[c.VectorStore.Type] {
			return fmt.Errorf("invalid vector_store.type %q: must be one of chromem, weaviate, pgvector", c.VectorStore.Type)
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
