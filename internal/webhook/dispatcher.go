// Package webhook pushes individual items to an HTTP sink. Delivery is
// at-least-once: a timed-out attempt may have reached the sink before the
// retry does, so receivers must tolerate duplicates. Items are delivered
// independently; one item exhausting its retries never blocks the next.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spyglass-sh/spyglass/internal/gateway"
)

// Dispatcher performs per-item webhook deliveries with bounded retry.
type Dispatcher struct {
	client      *http.Client
	maxRetries  int
	backoffBase time.Duration

	sleep func(ctx context.Context, d time.Duration) error // injectable for testing
}

// New creates a Dispatcher. timeout bounds each individual attempt;
// maxRetries is the number of retries after the first attempt.
func New(timeout time.Duration, maxRetries int, backoffBase time.Duration) *Dispatcher {
	return &Dispatcher{
		client:      &http.Client{Timeout: timeout},
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Deliver POSTs one item as JSON to url, retrying with exponential backoff.
// It returns nil as soon as any attempt receives a 2xx response, and the last
// failure once retries are exhausted.
func (d *Dispatcher) Deliver(ctx context.Context, item gateway.Item, url string) error {
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encoding item %d: %w", item.ID, err)
	}

	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			if err := d.sleep(ctx, d.backoffBase*(1<<(attempt-1))); err != nil {
				return err
			}
		}

		if err := d.post(ctx, url, body); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("delivering item %d after %d attempts: %w", item.ID, d.maxRetries+1, lastErr)
}

func (d *Dispatcher) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
