package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docqa/internal/eval"
	"github.com/ziadkadry99/docqa/internal/ingest"
	"github.com/ziadkadry99/docqa/internal/logger"
	"github.com/ziadkadry99/docqa/internal/progress"
	"github.com/ziadkadry99/docqa/internal/retrieval"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score retrieval quality for baseline and HyDE",
	Long: `Ingests the data directory, runs the evaluation questions through each
query embedding strategy and reports retrieval precision, retrieval recall
and context recall per mode.`,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().String("mode", "", "evaluate a single mode (baseline or hyde); default both")
	evalCmd.Flags().Int("k", 3, "top-k retrieval")
	evalCmd.Flags().String("cases", "", "YAML file of evaluation cases (default built-in questions)")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	modeFlag, _ := cmd.Flags().GetString("mode")
	k, _ := cmd.Flags().GetInt("k")
	casesPath, _ := cmd.Flags().GetString("cases")

	modes := retrieval.Modes
	if modeFlag != "" {
		m, err := retrieval.ParseMode(modeFlag)
		if err != nil {
			return err
		}
		modes = []retrieval.Mode{m}
	}

	cases := eval.DefaultCases()
	if casesPath != "" {
		var err error
		if cases, err = eval.LoadCases(casesPath); err != nil {
			return err
		}
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.server.Ingest(ctx); err != nil {
		if errors.Is(err, ingest.ErrNoDocuments) {
			return fmt.Errorf("no documents found to ingest in %s", a.cfg.DataPath)
		}
		return err
	}

	runner := &eval.Runner{
		Answerer: a.server,
		K:        k,
		Progress: progress.NewReporter("Evaluating"),
		Logger:   logger.Component(a.log, "eval"),
	}
	summaries, err := runner.Run(ctx, modes, cases)
	if err != nil {
		return err
	}

	fmt.Println(eval.Render(summaries))
	return nil
}
