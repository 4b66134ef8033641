package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spyglass-sh/spyglass/internal/gateway"
)

var trendsWOEID string

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Fetch trending topics",
	Args:  cobra.NoArgs,
	RunE:  runTrends,
}

func init() {
	trendsCmd.Flags().StringVar(&trendsWOEID, "woeid", "1", "location WOEID (1 = worldwide)")
	rootCmd.AddCommand(trendsCmd)
}

func runTrends(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.gateway.Execute(cmd.Context(), gateway.Request{
		Kind:          "trends",
		Params:        map[string]string{"woeid": trendsWOEID},
		EstimatedCost: a.xapi.Pricing().EstimateTrends(50),
		CacheTTL:      a.cfg.Cache.FastTTL,
	})
	if err != nil {
		return fmt.Errorf("trends: %w", err)
	}
	return printResponse(resp)
}
