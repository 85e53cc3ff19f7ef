package vectordb

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/loader"
)

// ChromemStore implements VectorStore using chromem-go.
type ChromemStore struct {
	db        *chromem.DB
	embedder  embeddings.Embedder
	embedFunc chromem.EmbeddingFunc
	mu        sync.Mutex // serializes EnsureCollection
}

// NewChromemStore creates a new in-memory ChromemStore.
func NewChromemStore(embedder embeddings.Embedder) *ChromemStore {
	return newChromemStore(chromem.NewDB(), embedder)
}

// NewPersistentChromemStore creates a ChromemStore that persists every write
// under path and reloads existing collections from it.
func NewPersistentChromemStore(path string, compress bool, embedder embeddings.Embedder) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("open chromem db at %s: %w", path, err)
	}
	return newChromemStore(db, embedder), nil
}

func newChromemStore(db *chromem.DB, embedder embeddings.Embedder) *ChromemStore {
	return &ChromemStore{
		db:        db,
		embedder:  embedder,
		embedFunc: embeddings.ToChromemFunc(embedder),
	}
}

func (s *ChromemStore) EnsureCollection(ctx context.Context, collection string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db.GetCollection(collection, s.embedFunc) != nil {
		return false, nil
	}
	md := map[string]string{"text_key": TextKey, "embedding_model": s.embedder.Name()}
	if _, err := s.db.CreateCollection(collection, md, s.embedFunc); err != nil {
		return false, fmt.Errorf("create collection %s: %w", collection, err)
	}
	return true, nil
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	col := s.db.GetCollection(name, s.embedFunc)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return col, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, collection string, docs []loader.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	col, err := s.collection(collection)
	if err != nil {
		return 0, err
	}

	records, err := embedRecords(ctx, s.embedder, docs)
	if err != nil {
		return 0, err
	}

	chromDocs := make([]chromem.Document, len(records))
	for i, r := range records {
		chromDocs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Text,
			Metadata:  metadataToMap(r),
			Embedding: r.Vector,
		}
	}

	if err := col.AddDocuments(ctx, chromDocs, runtime.NumCPU()); err != nil {
		return 0, fmt.Errorf("chromem add documents: %w", err)
	}
	return len(records), nil
}

func (s *ChromemStore) Nearest(ctx context.Context, collection string, vector []float32, k int) ([]Match, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	// chromem-go requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	k = min(k, count)

	results, err := col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		m := Match{
			Record: Record{ID: r.ID, Text: r.Content, Vector: r.Embedding},
			Score:  r.Similarity,
		}
		applyMetadata(&m.Record, r.Metadata)
		matches[i] = m
	}
	return matches, nil
}

func (s *ChromemStore) Count(ctx context.Context, collection string) (int, error) {
	col, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

// Close is a no-op; persistent stores write through on every change.
func (s *ChromemStore) Close() error {
	return nil
}
