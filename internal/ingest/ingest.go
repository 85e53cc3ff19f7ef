// Package ingest loads the data directory into the vector store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ziadkadry99/docqa/internal/db"
	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/loader"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

var (
	// ErrNoDocuments is returned when the data directory yields no documents.
	ErrNoDocuments = errors.New("no documents found to ingest")

	// ErrModelMismatch is returned when a collection was built with a
	// different embedding model than the one configured.
	ErrModelMismatch = errors.New("embedding model does not match collection")
)

// Report summarizes one ingest.
type Report struct {
	Documents  int
	Collection string
	Created    bool
	Duration   time.Duration
}

// Service ingests documents from a directory into one collection.
type Service struct {
	Store      vectordb.VectorStore
	Embedder   embeddings.Embedder
	Ledger     *db.DB // optional
	Collection string
	Loader     loader.Options
	Logger     zerolog.Logger
}

// Ingest loads every document under the configured root and upserts it. An
// empty directory returns ErrNoDocuments without touching the store.
func (s *Service) Ingest(ctx context.Context) (*Report, error) {
	start := time.Now()

	docs, err := loader.Load(ctx, s.Loader)
	if err != nil {
		return nil, fmt.Errorf("loading documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	created, err := s.Store.EnsureCollection(ctx, s.Collection)
	if err != nil {
		return nil, fmt.Errorf("ensuring collection %s: %w", s.Collection, err)
	}

	if err := s.claimCollection(ctx, created); err != nil {
		return nil, err
	}

	n, err := s.Store.Upsert(ctx, s.Collection, docs)
	if err != nil {
		return nil, fmt.Errorf("upserting documents: %w", err)
	}

	report := &Report{
		Documents:  n,
		Collection: s.Collection,
		Created:    created,
		Duration:   time.Since(start),
	}

	if s.Ledger != nil {
		if _, err := s.Ledger.RecordIngest(ctx, s.Collection, n, report.Duration); err != nil {
			s.Logger.Warn().Err(err).Msg("failed to record ingest run")
		}
	}

	s.Logger.Info().
		Int("documents", n).
		Str("collection", s.Collection).
		Bool("created", created).
		Dur("duration", report.Duration).
		Msg("ingested documents")

	return report, nil
}

// claimCollection records the embedder as the collection's model. A freshly
// created collection holds no vectors, so it takes the current embedder's tag
// whatever the ledger had on record; an existing one must match it.
func (s *Service) claimCollection(ctx context.Context, created bool) error {
	if s.Ledger == nil {
		return nil
	}
	if created {
		_, err := s.Ledger.SetCollectionModel(ctx, s.Collection, s.Embedder.Name(), s.Embedder.Dimensions())
		return err
	}
	c, err := s.Ledger.RegisterCollection(ctx, s.Collection, s.Embedder.Name(), s.Embedder.Dimensions())
	if err != nil {
		return err
	}
	return matchModel(c, s.Embedder)
}

// CheckModel fails with ErrModelMismatch when collection is on record with a
// different embedding model than e. Unknown collections pass.
func CheckModel(ctx context.Context, ledger *db.DB, collection string, e embeddings.Embedder) error {
	if ledger == nil {
		return nil
	}
	c, err := ledger.CollectionModel(ctx, collection)
	if err != nil {
		return err
	}
	return matchModel(c, e)
}

func matchModel(c *db.Collection, e embeddings.Embedder) error {
	if c == nil {
		return nil
	}
	if c.EmbeddingModel != e.Name() || c.Dimensions != e.Dimensions() {
		return fmt.Errorf("%w: %s was built with %s (%d dims), configured %s (%d dims); re-ingest into a new collection",
			ErrModelMismatch, c.Name, c.EmbeddingModel, c.Dimensions, e.Name(), e.Dimensions())
	}
	return nil
}
