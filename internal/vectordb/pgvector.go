package vectordb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/loader"
)

// undefinedTable is the Postgres SQLSTATE for a missing relation.
const undefinedTable = "42P01"

// PgVectorStore implements VectorStore on Postgres with the pgvector
// extension. Each collection is a table keyed by record ID.
type PgVectorStore struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
}

// NewPgVectorStore opens a connection pool to dsn and verifies it.
func NewPgVectorStore(ctx context.Context, dsn string, embedder embeddings.Embedder) (*PgVectorStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PgVectorStore{pool: pool, embedder: embedder}, nil
}

func tableName(collection string) string {
	return pgx.Identifier{"docqa_" + collection}.Sanitize()
}

func (s *PgVectorStore) EnsureCollection(ctx context.Context, collection string) (bool, error) {
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return false, fmt.Errorf("create vector extension: %w", err)
	}

	table := tableName(collection)
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	if exists {
		return false, nil
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id        uuid PRIMARY KEY,
	%s        text NOT NULL,
	%s        text NOT NULL,
	%s        text NOT NULL,
	%s        integer NOT NULL DEFAULT 0,
	embedding vector(%d) NOT NULL
)`, table, TextKey, SourceKey, TitleKey, PageKey, s.embedder.Dimensions())
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return false, fmt.Errorf("create table %s: %w", table, err)
	}
	return true, nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, collection string, docs []loader.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	records, err := embedRecords(ctx, s.embedder, docs)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, %s, %s, %s, %s, embedding)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	%[2]s = EXCLUDED.%[2]s,
	%[3]s = EXCLUDED.%[3]s,
	%[4]s = EXCLUDED.%[4]s,
	%[5]s = EXCLUDED.%[5]s,
	embedding = EXCLUDED.embedding`, tableName(collection), TextKey, SourceKey, TitleKey, PageKey)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query, r.ID, r.Text, r.Source, r.Title, r.Page, pgvector.NewVector(r.Vector))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	written := 0
	for range records {
		if _, err := br.Exec(); err != nil {
			return written, wrapTableErr(collection, fmt.Errorf("upsert record: %w", err))
		}
		written++
	}
	return written, nil
}

func (s *PgVectorStore) Nearest(ctx context.Context, collection string, vector []float32, k int) ([]Match, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}

	query := fmt.Sprintf(`SELECT id::text, %s, %s, %s, %s, 1 - (embedding <=> $1) AS score
FROM %s
ORDER BY embedding <=> $1
LIMIT $2`, TextKey, SourceKey, TitleKey, PageKey, tableName(collection))

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, wrapTableErr(collection, fmt.Errorf("nearest query: %w", err))
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var score float64
		if err := rows.Scan(&m.ID, &m.Text, &m.Source, &m.Title, &m.Page, &score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Score = float32(score)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapTableErr(collection, fmt.Errorf("nearest query: %w", err))
	}
	return matches, nil
}

func (s *PgVectorStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, tableName(collection))).Scan(&n)
	if err != nil {
		return 0, wrapTableErr(collection, fmt.Errorf("count: %w", err))
	}
	return n, nil
}

func (s *PgVectorStore) Close() error {
	s.pool.Close()
	return nil
}

// wrapTableErr maps a missing-table error to ErrCollectionNotFound.
func wrapTableErr(collection string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return err
}
