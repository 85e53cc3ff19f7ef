package vectordb

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/ziadkadry99/docqa/internal/embeddings"
	"github.com/ziadkadry99/docqa/internal/loader"
)

// Property names stored with every record.
const (
	TextKey   = "text"
	SourceKey = "source"
	TitleKey  = "title"
	PageKey   = "page"
)

// recordNamespace scopes record IDs derived by RecordID.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ziadkadry99/docqa/records"))

// Record is a document after embedding.
type Record struct {
	ID     string
	Vector []float32
	Text   string
	Source string
	Title  string
	Page   int
}

// Match is a record returned by a nearest-neighbour query. Score is the
// backend's own similarity (higher is closer); it is informational only.
type Match struct {
	Record
	Score float32
}

// RecordID derives a stable ID from a document's source and page, so
// re-ingesting a file overwrites its previous records.
func RecordID(source string, page int) string {
	return uuid.NewSHA1(recordNamespace, []byte(source+"#"+strconv.Itoa(page))).String()
}

// embedRecords embeds all docs with one Embed call and pairs each vector with
// its document.
func embedRecords(ctx context.Context, e embeddings.Embedder, docs []loader.Document) ([]Record, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	vectors, err := e.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embed documents: got %d vectors for %d documents", len(vectors), len(docs))
	}

	records := make([]Record, len(docs))
	for i, d := range docs {
		if dims := e.Dimensions(); dims > 0 && len(vectors[i]) != dims {
			return nil, fmt.Errorf("embed documents: %s has %d dimensions, expected %d", d.Source, len(vectors[i]), dims)
		}
		records[i] = Record{
			ID:     RecordID(d.Source, d.Page),
			Vector: vectors[i],
			Text:   d.Content,
			Source: d.Source,
			Title:  d.Title,
			Page:   d.Page,
		}
	}
	return records, nil
}

// metadataToMap converts record metadata to a flat map[string]string.
func metadataToMap(r Record) map[string]string {
	md := map[string]string{
		SourceKey: r.Source,
		TitleKey:  r.Title,
	}
	if r.Page > 0 {
		md[PageKey] = strconv.Itoa(r.Page)
	}
	return md
}

// applyMetadata fills record fields from a flat metadata map.
func applyMetadata(r *Record, m map[string]string) {
	r.Source = m[SourceKey]
	r.Title = m[TitleKey]
	r.Page, _ = strconv.Atoi(m[PageKey])
}
