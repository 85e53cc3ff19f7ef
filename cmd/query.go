package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docqa/internal/server"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a question from the ingested documents",
	Long:  `Embeds the question (directly or through a HyDE passage), retrieves the k nearest passages and asks the language model to answer from them.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().Int("k", 0, "number of passages to retrieve (default from config)")
	queryCmd.Flags().String("mode", "baseline", "query embedding strategy: baseline or hyde")
	queryCmd.Flags().Bool("json", false, "output the response as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	k, _ := cmd.Flags().GetInt("k")
	mode, _ := cmd.Flags().GetString("mode")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := server.QueryRequest{Question: args[0], Mode: mode}
	if cmd.Flags().Changed("k") {
		req.K = &k
	}

	resp, err := a.server.Query(ctx, req)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printQueryResponse(resp)
	return nil
}

func printQueryResponse(resp *server.QueryResponse) {
	fmt.Println(titleStyle.Render("Answer"))
	fmt.Println(answerStyle.Render(resp.Answer))

	if len(resp.Sources) == 0 {
		fmt.Println(mutedStyle.Render("No sources retrieved."))
		return
	}

	fmt.Println()
	fmt.Println(titleStyle.Render(fmt.Sprintf("Sources (%d)", len(resp.Sources))))
	for i, s := range resp.Sources {
		loc := s.Source
		if s.Page > 0 {
			loc = fmt.Sprintf("%s (page %d)", s.Source, s.Page)
		}
		fmt.Printf("  %d. %s\n", i+1, sourceStyle.Render(loc))
		fmt.Printf("     %s\n\n", mutedStyle.Render(truncate(s.Content, 160)))
	}
}
