package vectordb

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/loader"
)

// WeaviateStore implements VectorStore against a Weaviate instance. Vectors
// are supplied by the embedder; the class is created with no vectorizer.
type WeaviateStore struct {
	client   *weaviate.Client
	embedder embeddings.Embedder
}

// NewWeaviateStore connects to the Weaviate instance at rawURL. apiKey is
// optional.
func NewWeaviateStore(rawURL, apiKey string, embedder embeddings.Embedder) (*WeaviateStore, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse weaviate url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse weaviate url: missing host in %q", rawURL)
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}

	cfg := weaviate.Config{Host: u.Host, Scheme: scheme}
	if apiKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: apiKey}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &WeaviateStore{client: client, embedder: embedder}, nil
}

// ClassName converts a collection name into a valid Weaviate class name,
// which must start with an upper-case letter.
func ClassName(collection string) string {
	if collection == "" {
		return collection
	}
	return strings.ToUpper(collection[:1]) + collection[1:]
}

func (s *WeaviateStore) EnsureCollection(ctx context.Context, collection string) (bool, error) {
	class := ClassName(collection)
	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(class).Do(ctx)
	if err != nil {
		return false, fmt.Errorf("check class %s: %w", class, err)
	}
	if exists {
		return false, nil
	}

	err = s.client.Schema().ClassCreator().WithClass(&models.Class{
		Class:       class,
		Description: "Documents ingested by docqa",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{Name: TextKey, DataType: []string{"text"}},
			{Name: SourceKey, DataType: []string{"text"}},
			{Name: TitleKey, DataType: []string{"text"}},
			{Name: PageKey, DataType: []string{"int"}},
		},
	}).Do(ctx)
	if err != nil {
		return false, fmt.Errorf("create class %s: %w", class, err)
	}
	return true, nil
}

func (s *WeaviateStore) Upsert(ctx context.Context, collection string, docs []loader.Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	records, err := embedRecords(ctx, s.embedder, docs)
	if err != nil {
		return 0, err
	}

	class := ClassName(collection)
	objects := make([]*models.Object, len(records))
	for i, r := range records {
		objects[i] = &models.Object{
			Class: class,
			ID:    strfmt.UUID(r.ID),
			Properties: map[string]interface{}{
				TextKey:   r.Text,
				SourceKey: r.Source,
				TitleKey:  r.Title,
				PageKey:   r.Page,
			},
			Vector: r.Vector,
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("weaviate batch: %w", err)
	}

	written := 0
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return written, fmt.Errorf("weaviate batch object %s: %s", obj.ID, obj.Result.Errors.Error[0].Message)
		}
		written++
	}
	return written, nil
}

func (s *WeaviateStore) Nearest(ctx context.Context, collection string, vector []float32, k int) ([]Match, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	class := ClassName(collection)

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	fields := []graphql.Field{
		{Name: TextKey},
		{Name: SourceKey},
		{Name: TitleKey},
		{Name: PageKey},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "certainty"}}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(class).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate query: %w", err)
	}
	if err := graphQLError(result); err != nil {
		return nil, fmt.Errorf("weaviate query: %w", err)
	}

	rows, err := classRows(result, "Get", class)
	if err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		obj, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		matches = append(matches, matchFromObject(obj))
		if len(matches) == k {
			break
		}
	}
	return matches, nil
}

func (s *WeaviateStore) Count(ctx context.Context, collection string) (int, error) {
	class := ClassName(collection)
	result, err := s.client.GraphQL().Aggregate().
		WithClassName(class).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("weaviate aggregate: %w", err)
	}
	if err := graphQLError(result); err != nil {
		return 0, fmt.Errorf("weaviate aggregate: %w", err)
	}

	rows, err := classRows(result, "Aggregate", class)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	row, _ := rows[0].(map[string]interface{})
	meta, _ := row["meta"].(map[string]interface{})
	count, _ := meta["count"].(float64)
	return int(count), nil
}

// Close is a no-op; the Weaviate client holds no persistent connection.
func (s *WeaviateStore) Close() error {
	return nil
}

func graphQLError(result *models.GraphQLResponse) error {
	if result == nil || len(result.Errors) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		msgs = append(msgs, e.Message)
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// classRows extracts data.<op>.<class> from a GraphQL response.
func classRows(result *models.GraphQLResponse, op, class string) ([]interface{}, error) {
	data, ok := result.Data[op].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("weaviate response missing %s", op)
	}
	raw, ok := data[class]
	if !ok || raw == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, class)
	}
	rows, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("weaviate response: unexpected %s.%s payload", op, class)
	}
	return rows, nil
}

func matchFromObject(obj map[string]interface{}) Match {
	var m Match
	m.Text, _ = obj[TextKey].(string)
	m.Source, _ = obj[SourceKey].(string)
	m.Title, _ = obj[TitleKey].(string)
	if page, ok := obj[PageKey].(float64); ok {
		m.Page = int(page)
	}
	if add, ok := obj["_additional"].(map[string]interface{}); ok {
		m.ID, _ = add["id"].(string)
		if c, ok := add["certainty"].(float64); ok {
			m.Score = float32(c)
		}
	}
	return m
}
