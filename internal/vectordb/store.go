package vectordb

import (
	"context"
	"errors"

	"github.com/ziadkadry99/docqa/internal/loader"
)

var (
	// ErrInvalidK is returned by Nearest when k < 1.
	ErrInvalidK = errors.New("k must be at least 1")

	// ErrCollectionNotFound is returned when writing to or counting a
	// collection that EnsureCollection has not created.
	ErrCollectionNotFound = errors.New("collection not found")
)

// VectorStore is the adapter over an external vector index. Documents are
// embedded with the store's base embedder on the way in; queries arrive as
// precomputed vectors so the caller chooses the query-embedding strategy.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist. It
	// reports whether a collection was created by this call.
	EnsureCollection(ctx context.Context, collection string) (bool, error)

	// Upsert embeds docs in a single embedder call and stores one record per
	// document, replacing records with the same ID. A failure part-way
	// through leaves earlier writes in place.
	Upsert(ctx context.Context, collection string, docs []loader.Document) (int, error)

	// Nearest returns at most k matches for vector, in the store's ranking
	// order.
	Nearest(ctx context.Context, collection string, vector []float32, k int) ([]Match, error)

	// Count returns the number of records in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// Close releases the underlying client.
	Close() error
}
