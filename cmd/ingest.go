package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docqa/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load the data directory into the vector store",
	Long:  `Reads every supported file under data_path, embeds it with the configured model and upserts it into the collection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.server.Ingest(ctx)
		if errors.Is(err, ingest.ErrNoDocuments) {
			return fmt.Errorf("no documents found to ingest in %s", a.cfg.DataPath)
		}
		if err != nil {
			return err
		}

		verb := "Updated"
		if report.Created {
			verb = "Created"
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("%s collection %s: %d document(s) ingested in %s",
			verb, report.Collection, report.Documents, report.Duration.Round(time.Millisecond))))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
