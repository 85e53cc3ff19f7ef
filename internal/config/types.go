package config

// ProviderType identifies an embedding or language model provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
	ProviderHash   ProviderType = "hash"
	ProviderMock   ProviderType = "mock"
)

// StoreType identifies a vector store backend.
type StoreType string

const (
	StoreChromem  StoreType = "chromem"
	StoreWeaviate StoreType = "weaviate"
	StorePgvector StoreType = "pgvector"
)

// Config is the top-level docqa configuration, corresponding to docqa.yml.
type Config struct {
	DataPath      string            `yaml:"data_path" koanf:"data_path"`
	Collection    string            `yaml:"collection" koanf:"collection"`
	IngestOnStart bool              `yaml:"ingest_on_start" koanf:"ingest_on_start"`
	LedgerPath    string            `yaml:"ledger_path" koanf:"ledger_path"`
	Include       []string          `yaml:"include" koanf:"include"`
	Exclude       []string          `yaml:"exclude" koanf:"exclude"`
	DefaultK      int               `yaml:"default_k" koanf:"default_k"`
	Embedding     EmbeddingConfig   `yaml:"embedding" koanf:"embedding"`
	LLM           LLMConfig         `yaml:"llm" koanf:"llm"`
	VectorStore   VectorStoreConfig `yaml:"vector_store" koanf:"vector_store"`
	Server        ServerConfig      `yaml:"server" koanf:"server"`
	Log           LogConfig         `yaml:"log" koanf:"log"`
}

// EmbeddingConfig selects the base embedding model. The same model embeds
// documents at ingest time and queries (or HyDE passages) at query time.
type EmbeddingConfig struct {
	Provider   ProviderType `yaml:"provider" koanf:"provider"`
	Model      string       `yaml:"model" koanf:"model"`
	Dimensions int          `yaml:"dimensions" koanf:"dimensions"`
	BaseURL    string       `yaml:"base_url" koanf:"base_url"`
}

// LLMConfig selects the language model used for answers and HyDE passages.
type LLMConfig struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	BaseURL           string       `yaml:"base_url" koanf:"base_url"`
	FallbackToMock    bool         `yaml:"fallback_to_mock" koanf:"fallback_to_mock"`
	RequestsPerMinute int          `yaml:"requests_per_minute" koanf:"requests_per_minute"`
	Temperature       float64      `yaml:"temperature" koanf:"temperature"`
	MaxTokens         int          `yaml:"max_tokens" koanf:"max_tokens"`
}

// VectorStoreConfig selects and configures the vector store backend.
type VectorStoreConfig struct {
	Type     StoreType      `yaml:"type" koanf:"type"`
	Chromem  ChromemConfig  `yaml:"chromem" koanf:"chromem"`
	Weaviate WeaviateConfig `yaml:"weaviate" koanf:"weaviate"`
	Postgres PostgresConfig `yaml:"postgres" koanf:"postgres"`
}

// ChromemConfig configures the embedded chromem-go store. An empty Path keeps
// everything in memory.
type ChromemConfig struct {
	Path     string `yaml:"path" koanf:"path"`
	Compress bool   `yaml:"compress" koanf:"compress"`
}

// WeaviateConfig holds connection details for a Weaviate instance.
type WeaviateConfig struct {
	URL    string `yaml:"url" koanf:"url"`
	APIKey string `yaml:"api_key" koanf:"api_key"`
}

// PostgresConfig holds connection details for a Postgres database with the
// pgvector extension.
type PostgresConfig struct {
	DSN string `yaml:"dsn" koanf:"dsn"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Pretty bool   `yaml:"pretty" koanf:"pretty"`
}
