package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/docqa/internal/config"
	"github.com/ziadkadry99/docqa/internal/db"
	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/ingest"
	"github.com/ziadkadry99/docqa/internal/llm"
	"github.com/ziadkadry99/docqa/internal/loader"
	"github.com/ziadkadry99/docqa/internal/logger"
	"github.com/ziadkadry99/docqa/internal/server"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `docqa init` to create a config file", err)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
}

// createEmbedderFromConfig creates the base embedder shared by ingest and
// query time.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	e := cfg.Embedding
	switch e.Provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, errors.New("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, e.Model, e.Dimensions, e.BaseURL), nil
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(e.Model, e.Dimensions, e.BaseURL), nil
	case config.ProviderHash:
		return embeddings.NewHashEmbedder(e.Dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", e.Provider)
	}
}

// createLLMProviderFromConfig creates the language model, falling back to the
// mock model when configured and rate limiting when requested.
func createLLMProviderFromConfig(ctx context.Context, cfg *config.Config, log zerolog.Logger) (llm.Provider, error) {
	l := cfg.LLM
	settings := llm.Settings{
		Model:       l.Model,
		BaseURL:     l.BaseURL,
		APIKey:      os.Getenv(config.APIKeyEnvVar(l.Provider)),
		Temperature: l.Temperature,
		MaxTokens:   l.MaxTokens,
	}
	p, err := llm.NewProviderWithFallback(ctx, string(l.Provider), settings, l.FallbackToMock, log)
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimitedProvider(p, l.RequestsPerMinute), nil
}

// createStoreFromConfig opens the configured vector store backend.
func createStoreFromConfig(ctx context.Context, cfg *config.Config, e embeddings.Embedder) (vectordb.VectorStore, error) {
	vs := cfg.VectorStore
	switch vs.Type {
	case config.StoreChromem:
		if vs.Chromem.Path == "" {
			return vectordb.NewChromemStore(e), nil
		}
		return vectordb.NewPersistentChromemStore(vs.Chromem.Path, vs.Chromem.Compress, e)
	case config.StoreWeaviate:
		return vectordb.NewWeaviateStore(vs.Weaviate.URL, vs.Weaviate.APIKey, e)
	case config.StorePgvector:
		return vectordb.NewPgVectorStore(ctx, vs.Postgres.DSN, e)
	default:
		return nil, fmt.Errorf("unsupported vector store: %s", vs.Type)
	}
}

// openLedger opens the sqlite ledger, creating its directory if needed.
func openLedger(cfg *config.Config) (*db.DB, error) {
	if dir := filepath.Dir(cfg.LedgerPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}
	return db.Open(cfg.LedgerPath)
}

// app holds every collaborator a command needs.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	embedder embeddings.Embedder
	store    vectordb.VectorStore
	llm      llm.Provider
	ledger   *db.DB
	ingester *ingest.Service
	server   *server.Server
}

// buildApp wires the configured stack, applying flag overrides to the loaded
// config first. Callers must call Close.
func buildApp(ctx context.Context, overrides ...func(*config.Config)) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	log := newLogger(cfg)

	a := &app{cfg: cfg, log: log}

	a.embedder, err = createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	a.llm, err = createLLMProviderFromConfig(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}

	a.store, err = createStoreFromConfig(ctx, cfg, a.embedder)
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	a.ledger, err = openLedger(cfg)
	if err != nil {
		a.store.Close()
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	a.ingester = &ingest.Service{
		Store:      a.store,
		Embedder:   a.embedder,
		Ledger:     a.ledger,
		Collection: cfg.Collection,
		Loader: loader.Options{
			Root:    cfg.DataPath,
			Include: cfg.Include,
			Exclude: cfg.Exclude,
			Logger:  logger.Component(log, "loader"),
		},
		Logger: logger.Component(log, "ingest"),
	}

	tokens := llm.NewTokenCounter()
	go func() {
		pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := tokens.Preload(pctx); err != nil {
			log.Warn().Err(err).Msg("token encoding unavailable, prompt sizes are estimated")
		}
	}()

	a.server = server.New(server.Config{
		Port:     cfg.Server.Port,
		AllowAll: cfg.Server.AllowAllOrigins,
		DefaultK: cfg.DefaultK,
	}, server.Deps{
		Store:      a.store,
		Embedder:   a.embedder,
		LLM:        a.llm,
		Collection: cfg.Collection,
		Ingester:   a.ingester,
		Ledger:     a.ledger,
		Tokens:     tokens,
		Logger:     log,
	})

	log.Debug().
		Str("embedder", a.embedder.Name()).
		Str("llm", a.llm.Name()).
		Str("store", string(cfg.VectorStore.Type)).
		Str("collection", cfg.Collection).
		Msg("stack ready")

	return a, nil
}

// Close releases the store and ledger.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing vector store")
	}
	if err := a.ledger.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing ledger")
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
