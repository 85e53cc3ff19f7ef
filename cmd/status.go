package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docqa/internal/db"
	"github.com/ziadkadry99/docqa/internal/vectordb"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the collection, its embedding model and the last ingest",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := collectStatus(ctx, a)
		if err != nil {
			return err
		}
		fmt.Println(renderStatus(st))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// collectionStatus is what the ledger and store know about one collection.
type collectionStatus struct {
	Collection string
	Store      string
	Embedder   string
	Model      *db.Collection
	Documents  int
	Exists     bool
	LastIngest *db.IngestRun
	LedgerPath string
}

func collectStatus(ctx context.Context, a *app) (*collectionStatus, error) {
	st := &collectionStatus{
		Collection: a.cfg.Collection,
		Store:      string(a.cfg.VectorStore.Type),
		Embedder:   a.embedder.Name(),
		LedgerPath: a.ledger.Path(),
	}

	n, err := a.store.Count(ctx, a.cfg.Collection)
	switch {
	case errors.Is(err, vectordb.ErrCollectionNotFound):
	case err != nil:
		return nil, fmt.Errorf("counting documents: %w", err)
	default:
		st.Documents, st.Exists = n, true
	}

	if st.Model, err = a.ledger.CollectionModel(ctx, a.cfg.Collection); err != nil {
		return nil, err
	}
	if st.LastIngest, err = a.ledger.LastIngest(ctx, a.cfg.Collection); err != nil {
		return nil, err
	}
	return st, nil
}

func renderStatus(st *collectionStatus) string {
	var sb strings.Builder
	row := func(k, v string) {
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("%-12s", k)))
		sb.WriteString(v)
		sb.WriteString("\n")
	}

	sb.WriteString(titleStyle.Render("docqa status"))
	sb.WriteString("\n\n")
	row("collection", sourceStyle.Render(st.Collection))
	row("store", st.Store)
	if st.Exists {
		row("documents", fmt.Sprintf("%d", st.Documents))
	} else {
		row("documents", "collection not created yet")
	}
	row("embedder", st.Embedder)
	switch {
	case st.Model == nil:
		row("model tag", "none")
	case st.Model.EmbeddingModel != st.Embedder:
		row("model tag", fmt.Sprintf("%s (%d dims), does not match the configured embedder", st.Model.EmbeddingModel, st.Model.Dimensions))
	default:
		row("model tag", successStyle.Render(fmt.Sprintf("%s (%d dims)", st.Model.EmbeddingModel, st.Model.Dimensions)))
	}
	if st.LastIngest == nil {
		row("last ingest", "never")
	} else {
		row("last ingest", fmt.Sprintf("%s, %d document(s) in %s",
			st.LastIngest.CreatedAt.Local().Format(time.DateTime), st.LastIngest.Documents, st.LastIngest.Duration.Round(time.Millisecond)))
	}
	row("ledger", st.LedgerPath)
	return strings.TrimRight(sb.String(), "\n")
}
