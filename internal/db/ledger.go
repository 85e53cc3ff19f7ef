package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Collection records the embedding model a collection was first built with.
type Collection struct {
	Name           string
	EmbeddingModel string
	Dimensions     int
	CreatedAt      time.Time
}

// IngestRun is one completed ingest.
type IngestRun struct {
	ID         string
	Collection string
	Documents  int
	Duration   time.Duration
	CreatedAt  time.Time
}

// QueryRecord is one answered (or failed) query.
type QueryRecord struct {
	ID           string    `json:"id"`
	Collection   string    `json:"collection"`
	Mode         string    `json:"mode"`
	K            int       `json:"k"`
	Question     string    `json:"question"`
	Sources      []string  `json:"sources"`
	PromptTokens int       `json:"prompt_tokens"`
	DurationMS   int64     `json:"duration_ms"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// RegisterCollection stores the model tag for name unless one exists, and
// returns the tag now on record.
func (d *DB) RegisterCollection(ctx context.Context, name, model string, dimensions int) (*Collection, error) {
	_, err := d.ExecContext(ctx, `
		INSERT INTO collections (name, embedding_model, dimensions)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO NOTHING`, name, model, dimensions)
	if err != nil {
		return nil, fmt.Errorf("registering collection: %w", err)
	}
	c, err := d.CollectionModel(ctx, name)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("registering collection: %s missing after insert", name)
	}
	return c, nil
}

// SetCollectionModel records model as the tag for name, replacing any tag
// already on record.
func (d *DB) SetCollectionModel(ctx context.Context, name, model string, dimensions int) (*Collection, error) {
	_, err := d.ExecContext(ctx, `
		INSERT INTO collections (name, embedding_model, dimensions)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			embedding_model = excluded.embedding_model,
			dimensions = excluded.dimensions,
			created_at = datetime('now')`, name, model, dimensions)
	if err != nil {
		return nil, fmt.Errorf("setting collection model: %w", err)
	}
	c, err := d.CollectionModel(ctx, name)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("setting collection model: %s missing after insert", name)
	}
	return c, nil
}

// CollectionModel returns the model tag for name, or nil if none is recorded.
func (d *DB) CollectionModel(ctx context.Context, name string) (*Collection, error) {
	var (
		c  Collection
		ts string
	)
	err := d.QueryRowContext(ctx, `
		SELECT name, embedding_model, dimensions, created_at
		FROM collections WHERE name = ?`, name).
		Scan(&c.Name, &c.EmbeddingModel, &c.Dimensions, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading collection: %w", err)
	}
	c.CreatedAt = parseTime(ts)
	return &c, nil
}

// RecordIngest appends an ingest run.
func (d *DB) RecordIngest(ctx context.Context, collection string, documents int, duration time.Duration) (*IngestRun, error) {
	run := &IngestRun{
		ID:         uuid.New().String(),
		Collection: collection,
		Documents:  documents,
		Duration:   duration,
	}
	_, err := d.ExecContext(ctx, `
		INSERT INTO ingest_runs (id, collection, documents, duration_ms)
		VALUES (?, ?, ?, ?)`, run.ID, collection, documents, duration.Milliseconds())
	if err != nil {
		return nil, fmt.Errorf("inserting ingest run: %w", err)
	}
	return run, nil
}

// LastIngest returns the most recent ingest run for collection, or nil.
func (d *DB) LastIngest(ctx context.Context, collection string) (*IngestRun, error) {
	var (
		run IngestRun
		ms  int64
		ts  string
	)
	err := d.QueryRowContext(ctx, `
		SELECT id, collection, documents, duration_ms, created_at
		FROM ingest_runs WHERE collection = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1`, collection).
		Scan(&run.ID, &run.Collection, &run.Documents, &ms, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ingest run: %w", err)
	}
	run.Duration = time.Duration(ms) * time.Millisecond
	run.CreatedAt = parseTime(ts)
	return &run, nil
}

// RecordQuery appends q to the query log. An empty ID is generated.
func (d *DB) RecordQuery(ctx context.Context, q QueryRecord) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.Sources == nil {
		q.Sources = []string{}
	}
	sources, err := json.Marshal(q.Sources)
	if err != nil {
		return fmt.Errorf("marshalling sources: %w", err)
	}

	_, err = d.ExecContext(ctx, `
		INSERT INTO query_log (
			id, collection, mode, k, question, sources,
			prompt_tokens, duration_ms, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Collection, q.Mode, q.K, q.Question, string(sources),
		q.PromptTokens, q.DurationMS, q.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting query record: %w", err)
	}
	return nil
}

// RecentQueries returns up to limit query records, newest first.
func (d *DB) RecentQueries(ctx context.Context, limit int) ([]QueryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.QueryContext(ctx, `
		SELECT id, collection, mode, k, question, sources,
		       prompt_tokens, duration_ms, error, created_at
		FROM query_log
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying query log: %w", err)
	}
	defer rows.Close()

	var out []QueryRecord
	for rows.Next() {
		var (
			q           QueryRecord
			sourcesJSON string
			ts          string
		)
		if err := rows.Scan(&q.ID, &q.Collection, &q.Mode, &q.K, &q.Question, &sourcesJSON,
			&q.PromptTokens, &q.DurationMS, &q.Error, &ts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sourcesJSON), &q.Sources); err != nil {
			return nil, fmt.Errorf("unmarshalling sources: %w", err)
		}
		q.CreatedAt = parseTime(ts)
		out = append(out, q)
	}
	return out, rows.Err()
}
