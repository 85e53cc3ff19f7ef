package vectordb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func TestClassName(t *testing.T) {
	assert.Equal(t, "Document", ClassName("Document"))
	assert.Equal(t, "Document", ClassName("document"))
	assert.Equal(t, "", ClassName(""))
}

func TestNewWeaviateStoreRejectsBadURL(t *testing.T) {
	_, err := NewWeaviateStore("localhost-no-scheme", "", newMockEmbedder(4))
	assert.Error(t, err)
}

func TestClassRowsAndMatchFromObject(t *testing.T) {
	result := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				"Document": []interface{}{
					map[string]interface{}{
						"text":   "Weaviate stores vectors",
						"source": "a.txt",
						"title":  "a",
						"page":   float64(0),
						"_additional": map[string]interface{}{
							"id":        RecordID("a.txt", 0),
							"certainty": 0.93,
						},
					},
				},
			},
		},
	}
	require.NoError(t, graphQLError(result))

	rows, err := classRows(result, "Get", "Document")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	m := matchFromObject(rows[0].(map[string]interface{}))
	assert.Equal(t, "Weaviate stores vectors", m.Text)
	assert.Equal(t, "a.txt", m.Source)
	assert.Equal(t, "a", m.Title)
	assert.Equal(t, 0, m.Page)
	assert.Equal(t, RecordID("a.txt", 0), m.ID)
	assert.InDelta(t, 0.93, m.Score, 1e-6)
}

func TestClassRowsMissingClass(t *testing.T) {
	result := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{"Document": nil},
		},
	}
	_, err := classRows(result, "Get", "Document")
	assert.True(t, errors.Is(err, ErrCollectionNotFound))

	_, err = classRows(&models.GraphQLResponse{}, "Get", "Document")
	assert.Error(t, err)
}

func TestGraphQLError(t *testing.T) {
	result := &models.GraphQLResponse{
		Errors: []*models.GraphQLError{
			{Message: "Cannot query field \"Missing\""},
			{Message: "second"},
		},
	}
	err := graphQLError(result)
	require.Error(t, err)
	assert.Equal(t, "Cannot query field \"Missing\"; second", err.Error())
	assert.NoError(t, graphQLError(nil))
}
