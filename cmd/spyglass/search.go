package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spyglass-sh/spyglass/internal/gateway"
)

var (
	searchLimit   int
	searchNoCache bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search recent tweets",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", defaultPageSize, "maximum tweets to return")
	searchCmd.Flags().BoolVar(&searchNoCache, "no-cache", false, "bypass the response cache")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	query := strings.Join(args, " ")

	resp, err := a.gateway.Execute(cmd.Context(), gateway.Request{
		Kind: "search",
		Params: map[string]string{
			"query": query,
			"limit": strconv.Itoa(searchLimit),
		},
		EstimatedCost: a.xapi.Pricing().EstimateTweets(searchLimit),
		CacheTTL:      a.cfg.Cache.FastTTL,
		NoCache:       searchNoCache,
	})
	if err != nil {
		return fmt.Errorf("search %q: %w", query, err)
	}
	return printResponse(resp)
}
