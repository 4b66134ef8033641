package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/spyglass-sh/spyglass/internal/budget"
)

// Exit codes. Budget-exceeded stops are distinguishable from ordinary
// failures so schedulers can react differently.
const (
	exitOK             = 0
	exitRuntimeError   = 1
	exitBudgetExceeded = 2
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "spyglass",
	Short: "Spyglass — X/Twitter intelligence from the terminal",
	Long: "Spyglass queries the X/Twitter API and an AI inference API under an enforced daily " +
		"spending cap, caches responses to avoid repeat spend, and runs unattended watch " +
		"sessions that surface newly observed tweets to stdout or a webhook.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/spyglass/config.yaml)")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
		slog.SetDefault(logger)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var exceeded *budget.ExceededError
		if errors.As(err, &exceeded) {
			os.Exit(exitBudgetExceeded)
		}
		os.Exit(exitRuntimeError)
	}
}
