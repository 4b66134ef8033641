package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spyglass-sh/spyglass/internal/gateway"
)

var (
	analyzePrompt string
	analyzeLimit  int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <query>",
	Short: "Search tweets and run AI analysis over the results",
	Long: "Runs a tweet search, then feeds the matched tweets to the inference API with the " +
		"given prompt. Both steps pass through budget admission; the search leg is served " +
		"from cache when a recent identical search exists.",
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzePrompt, "prompt", "p", "Summarize the main themes and overall sentiment of these tweets.", "analysis instruction")
	analyzeCmd.Flags().IntVarP(&analyzeLimit, "limit", "n", defaultPageSize, "maximum tweets to analyze")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	query := strings.Join(args, " ")

	searchResp, err := a.gateway.Execute(cmd.Context(), gateway.Request{
		Kind: "search",
		Params: map[string]string{
			"query": query,
			"limit": strconv.Itoa(analyzeLimit),
		},
		EstimatedCost: a.xapi.Pricing().EstimateTweets(analyzeLimit),
		CacheTTL:      a.cfg.Cache.FastTTL,
	})
	if err != nil {
		return fmt.Errorf("search %q: %w", query, err)
	}
	if len(searchResp.Items) == 0 {
		return fmt.Errorf("no tweets matched %q", query)
	}

	var b strings.Builder
	for _, item := range searchResp.Items {
		fmt.Fprintf(&b, "@%s: %s\n", item.Author, item.Text)
	}
	input := b.String()

	resp, err := a.gateway.Execute(cmd.Context(), gateway.Request{
		Kind: "analyze",
		Params: map[string]string{
			"prompt": analyzePrompt,
			"input":  input,
		},
		EstimatedCost: a.ai.Pricing().Estimate(len(analyzePrompt) + len(input)),
		CacheTTL:      a.cfg.Cache.TTL,
	})
	if err != nil {
		return fmt.Errorf("analyze %q: %w", query, err)
	}

	var result struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(resp.Payload, &result); err != nil {
		return fmt.Errorf("decoding analysis: %w", err)
	}
	fmt.Println(result.Content)

	totalCost := searchResp.Cost + resp.Cost
	fmt.Fprintf(os.Stderr, "analyzed %d tweets, $%.4f spent\n", len(searchResp.Items), totalCost)
	return nil
}
