package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spyglass-sh/spyglass/internal/budget"
)

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var costsCmd = &cobra.Command{
	Use:       "costs [today|week|month]",
	Short:     "Show spending against the daily budget",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"today", "week", "month"},
	RunE:      runCosts,
}

var costsBudgetCmd = &cobra.Command{
	Use:   "budget <amount>",
	Short: "Set the daily spending limit in dollars",
	Args:  cobra.ExactArgs(1),
	RunE:  runCostsBudget,
}

func init() {
	costsCmd.AddCommand(costsBudgetCmd)
	rootCmd.AddCommand(costsCmd)
}

func runCosts(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	period := budget.PeriodToday
	if len(args) == 1 {
		switch args[0] {
		case "today":
			period = budget.PeriodToday
		case "week":
			period = budget.PeriodWeek
		case "month":
			period = budget.PeriodMonth
		default:
			return fmt.Errorf("unknown period %q (want today, week, or month)", args[0])
		}
	}

	summary, err := a.ledger.Summary(cmd.Context(), period)
	if err != nil {
		return err
	}

	day, err := a.ledger.Today(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("%s: $%.4f spent across %d calls\n", period, summary.Total, summary.Events)
	for _, category := range sortedKeys(summary.ByCategory) {
		fmt.Printf("  %-10s $%.4f\n", category, summary.ByCategory[category])
	}
	remaining := day.Limit - day.Spent
	if remaining < 0 {
		remaining = 0
	}
	fmt.Printf("today's limit: $%.2f, remaining: $%.4f\n", day.Limit, remaining)
	return nil
}

func runCostsBudget(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	amount, err := strconv.ParseFloat(args[0], 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("invalid budget amount %q (want a positive dollar value)", args[0])
	}

	if err := a.ledger.SetLimit(cmd.Context(), amount); err != nil {
		return err
	}
	fmt.Printf("daily limit set to $%.2f\n", amount)
	return nil
}
