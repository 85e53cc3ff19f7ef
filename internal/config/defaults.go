package config

// defaultModels maps each provider to the model used when none is configured.
var defaultModels = map[ProviderType]struct {
	LLM       string
	Embedding string
	Dims      int
}{
	ProviderOpenAI: {LLM: "gpt-4o-mini", Embedding: "text-embedding-3-small", Dims: 1536},
	ProviderOllama: {LLM: "llama3", Embedding: "nomic-embed-text", Dims: 768},
	ProviderHash:   {Embedding: "hash-bow", Dims: 384},
	ProviderMock:   {LLM: "mock"},
}

// DefaultExcludes are glob patterns excluded from ingestion by default.
var DefaultExcludes = []string{
	".git/**",
	"node_modules/**",
	"**/.DS_Store",
}

// DefaultConfig returns a Config with sensible defaults. It runs without any
// credentials: offline hash embeddings, an in-memory chromem store and a local
// Ollama model that falls back to the mock model when unreachable.
func DefaultConfig() *Config {
	cfg := baseConfig()
	cfg.fillModelDefaults()
	return cfg
}

// baseConfig holds the defaults with model names left blank, so that a
// provider chosen in the file or environment picks its own default model.
func baseConfig() *Config {
	return &Config{
		DataPath:      "data/sample_docs",
		Collection:    "Document",
		IngestOnStart: true,
		LedgerPath:    ".docqa/ledger.db",
		Include:       []string{"**/*.txt", "**/*.md", "**/*.markdown", "**/*.pdf"},
		Exclude:       DefaultExcludes,
		DefaultK:      3,
		Embedding: EmbeddingConfig{
			Provider: ProviderHash,
		},
		LLM: LLMConfig{
			Provider:       ProviderOllama,
			FallbackToMock: true,
			Temperature:    0.1,
			MaxTokens:      512,
		},
		VectorStore: VectorStoreConfig{
			Type: StoreChromem,
			Weaviate: WeaviateConfig{
				URL: "http://localhost:8080",
			},
		},
		Server: ServerConfig{
			Port: 8000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultLLMModel returns the default language model for a provider, or an
// empty string if the provider has none.
func DefaultLLMModel(p ProviderType) string {
	return defaultModels[p].LLM
}

// DefaultEmbeddingModel returns the default embedding model and its output
// width for a provider.
func DefaultEmbeddingModel(p ProviderType) (string, int) {
	m := defaultModels[p]
	return m.Embedding, m.Dims
}
