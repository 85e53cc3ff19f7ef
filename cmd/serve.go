package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docqa/internal/config"
	"github.com/ziadkadry99/docqa/internal/logger"
	"github.com/ziadkadry99/docqa/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP question answering server",
	Long: `Starts the HTTP API (POST /query, POST /ingest, GET /health, GET /metrics,
GET /queries, GET /ws). When ingest_on_start is set the data directory is
ingested before the server starts listening.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides server.port)")
	serveCmd.Flags().Bool("watch", false, "re-ingest when files in the data directory change")
	serveCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before a watched change triggers re-ingest")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port, _ := cmd.Flags().GetInt("port")
	a, err := buildApp(ctx, func(cfg *config.Config) {
		if port > 0 {
			cfg.Server.Port = port
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.IngestOnStart {
		if err := a.server.Bootstrap(ctx); err != nil {
			return err
		}
	}

	if watchOn, _ := cmd.Flags().GetBool("watch"); watchOn {
		debounce, _ := cmd.Flags().GetDuration("debounce")
		w, err := watch.New(a.cfg.DataPath, a.server, debounce, logger.Component(a.log, "watch"))
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				a.log.Error().Err(err).Msg("watcher stopped")
			}
		}()
	}

	// Graceful shutdown.
	go func() {
		<-ctx.Done()
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.server.Shutdown(shutdownCtx)
	}()

	a.log.Info().
		Str("version", Version).
		Str("data_path", a.cfg.DataPath).
		Str("store", string(a.cfg.VectorStore.Type)).
		Msg("docqa server starting")

	if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
