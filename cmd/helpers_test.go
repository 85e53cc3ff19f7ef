package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/docqa/internal/config"
	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/server"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

func TestCreateEmbedderFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	e, err := createEmbedderFromConfig(cfg)
	require.NoError(t, err)
	assert.IsType(t, &embeddings.HashEmbedder{}, e)
	assert.Equal(t, 384, e.Dimensions())

	cfg.Embedding.Provider = config.ProviderOpenAI
	t.Setenv("OPENAI_API_KEY", "")
	_, err = createEmbedderFromConfig(cfg)
	assert.Error(t, err)

	cfg.Embedding.Provider = "bogus"
	_, err = createEmbedderFromConfig(cfg)
	assert.Error(t, err)
}

func TestCreateStoreFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	e := embeddings.NewHashEmbedder(16)

	s, err := createStoreFromConfig(context.Background(), cfg, e)
	require.NoError(t, err)
	assert.IsType(t, &vectordb.ChromemStore{}, s)

	cfg.VectorStore.Chromem.Path = filepath.Join(t.TempDir(), "chromem")
	s, err = createStoreFromConfig(context.Background(), cfg, e)
	require.NoError(t, err)
	assert.NoError(t, s.Close())

	cfg.VectorStore.Type = "bogus"
	_, err = createStoreFromConfig(context.Background(), cfg, e)
	assert.Error(t, err)
}

func TestBuildAppEndToEnd(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(data, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(data, "a.txt"), []byte("Weaviate stores vectors"), 0o644))

	cfg := config.DefaultConfig()
	cfg.DataPath = data
	cfg.LedgerPath = filepath.Join(dir, "state", "ledger.db")
	cfg.LLM.Provider = config.ProviderMock
	cfg.LLM.Model = "mock"
	cfgPath := filepath.Join(dir, "docqa.yml")
	require.NoError(t, cfg.Save(cfgPath))

	oldCfg, oldEnv := cfgFile, envFile
	cfgFile, envFile = cfgPath, filepath.Join(dir, "missing.env")
	t.Cleanup(func() { cfgFile, envFile = oldCfg, oldEnv })

	ctx := context.Background()
	a, err := buildApp(ctx, func(c *config.Config) { c.Server.Port = 9999 })
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 9999, a.cfg.Server.Port)
	assert.FileExists(t, cfg.LedgerPath)

	st, err := collectStatus(ctx, a)
	require.NoError(t, err)
	assert.False(t, st.Exists)
	assert.Nil(t, st.Model)
	assert.Nil(t, st.LastIngest)
	assert.Contains(t, renderStatus(st), "never")

	report, err := a.server.Ingest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Documents)

	st, err = collectStatus(ctx, a)
	require.NoError(t, err)
	assert.True(t, st.Exists)
	assert.Equal(t, 1, st.Documents)
	require.NotNil(t, st.Model)
	assert.Equal(t, a.embedder.Name(), st.Model.EmbeddingModel)
	require.NotNil(t, st.LastIngest)
	assert.Equal(t, 1, st.LastIngest.Documents)
	assert.Equal(t, cfg.LedgerPath, st.LedgerPath)
	out := renderStatus(st)
	assert.Contains(t, out, cfg.Collection)
	assert.Contains(t, out, cfg.LedgerPath)

	one := 1
	resp, err := a.server.Query(ctx, server.QueryRequest{Question: "What stores vectors?", K: &one})
	require.NoError(t, err)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "a.txt", resp.Sources[0].Source)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
