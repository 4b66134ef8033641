package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spyglass-sh/spyglass/internal/gateway"
)

var profileNoCache bool

var profileCmd = &cobra.Command{
	Use:   "profile <username>",
	Short: "Fetch a user's recent tweets",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfile,
}

func init() {
	profileCmd.Flags().BoolVar(&profileNoCache, "no-cache", false, "bypass the response cache")
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	username := strings.TrimPrefix(args[0], "@")

	resp, err := a.gateway.Execute(cmd.Context(), gateway.Request{
		Kind:          "profile",
		Params:        map[string]string{"username": username},
		EstimatedCost: a.xapi.Pricing().EstimateTweets(defaultPageSize),
		CacheTTL:      a.cfg.Cache.TTL,
		NoCache:       profileNoCache,
	})
	if err != nil {
		return fmt.Errorf("profile @%s: %w", username, err)
	}
	return printResponse(resp)
}
