package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spyglass-sh/spyglass/internal/metrics"
	"github.com/spyglass-sh/spyglass/internal/watch"
	"github.com/spyglass-sh/spyglass/internal/webhook"
)

var (
	watchInterval    time.Duration
	watchWebhookURL  string
	watchJSONL       bool
	watchMetricsAddr string
)

var watchCmd = &cobra.Command{
	Use:   "watch <query>",
	Short: "Poll a search continuously and surface new tweets",
	Long: "Polls the given search on an interval and emits tweets not seen before, in " +
		"ascending ID order. The session runs until interrupted, the daily budget is " +
		"exhausted, or consecutive upstream failures exceed the configured threshold.",
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", 60*time.Second, "polling interval")
	watchCmd.Flags().StringVar(&watchWebhookURL, "webhook", "", "deliver new tweets to this URL as JSON POSTs")
	watchCmd.Flags().BoolVar(&watchJSONL, "jsonl", false, "emit new tweets as JSON lines instead of formatted text")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	query := strings.Join(args, " ")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	a.gateway.SetMetrics(m)

	var srv *metrics.Server
	if watchMetricsAddr != "" {
		srv = metrics.NewServer(watchMetricsAddr, m)
		srv.Start()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx)
		}()
	}

	sinks := []watch.Sink{watch.NewStdoutSink(os.Stdout, watchJSONL)}
	if watchWebhookURL != "" {
		d := webhook.New(a.cfg.Webhook.Timeout, a.cfg.Webhook.MaxRetries, a.cfg.Webhook.BackoffBase)
		sinks = append(sinks, watch.NewWebhookSink(d, watchWebhookURL))
	}

	poller := watch.NewPoller(a.gateway, watch.Config{
		Query:         query,
		Interval:      watchInterval,
		MinInterval:   a.cfg.Watch.MinInterval,
		MaxFailures:   a.cfg.Watch.MaxFailures,
		WindowSize:    a.cfg.Watch.WindowSize,
		EstimatedCost: a.xapi.Pricing().EstimateTweets(defaultPageSize),
		BackoffBase:   a.cfg.Watch.BackoffBase,
		BackoffMax:    a.cfg.Watch.BackoffMax,
	}, sinks...)
	poller.SetMetrics(m)

	slog.Info("watch started", "query", query, "interval", poller.Interval())

	reason, err := poller.Run(ctx)
	switch reason {
	case watch.StopManual:
		fmt.Fprintln(os.Stderr, "watch stopped")
		return nil
	case watch.StopBudgetExceeded:
		return fmt.Errorf("watch %q: %w", query, err)
	default:
		return fmt.Errorf("watch %q stopped (%s): %w", query, reason, err)
	}
}
