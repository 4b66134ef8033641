package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spyglass-sh/spyglass/internal/gateway"
)

var tweetCmd = &cobra.Command{
	Use:   "tweet <id>",
	Short: "Fetch a single tweet by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runTweet,
}

var threadCmd = &cobra.Command{
	Use:   "thread <id>",
	Short: "Fetch the conversation thread around a tweet",
	Args:  cobra.ExactArgs(1),
	RunE:  runThread,
}

func init() {
	rootCmd.AddCommand(tweetCmd)
	rootCmd.AddCommand(threadCmd)
}

func runTweet(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.gateway.Execute(cmd.Context(), gateway.Request{
		Kind:          "tweet",
		Params:        map[string]string{"id": args[0]},
		EstimatedCost: a.xapi.Pricing().EstimateTweets(1),
		CacheTTL:      a.cfg.Cache.TTL,
	})
	if err != nil {
		return fmt.Errorf("tweet %s: %w", args[0], err)
	}
	return printResponse(resp)
}

func runThread(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.gateway.Execute(cmd.Context(), gateway.Request{
		Kind:          "thread",
		Params:        map[string]string{"id": args[0]},
		EstimatedCost: a.xapi.Pricing().EstimateTweets(defaultPageSize),
		CacheTTL:      a.cfg.Cache.TTL,
	})
	if err != nil {
		return fmt.Errorf("thread %s: %w", args[0], err)
	}
	return printResponse(resp)
}
