package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docqa/internal/config"
)

var (
	cfgFile string
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Question answering over a directory of documents",
	Long: `docqa ingests text, Markdown and PDF files into a vector store and
answers questions about them with a language model, citing the passages
it used. Queries are embedded either directly (baseline) or through a
model-written hypothetical answer (HyDE).`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
