package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spyglass-sh/spyglass/internal/gateway"
)

// Sink receives newly observed items. Implementations must tolerate duplicate
// deliveries across sessions; within one session each item is delivered at
// most once per sink.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, item gateway.Item) error
}

// StdoutSink writes items to a writer as human-readable lines or JSONL.
type StdoutSink struct {
	mu    sync.Mutex
	w     io.Writer
	jsonl bool
}

// NewStdoutSink creates a sink writing to w. When jsonl is true each item is
// one JSON object per line.
func NewStdoutSink(w io.Writer, jsonl bool) *StdoutSink {
	return &StdoutSink{w: w, jsonl: jsonl}
}

func (s *StdoutSink) Name() string { return "stdout" }

func (s *StdoutSink) Deliver(ctx context.Context, item gateway.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jsonl {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encoding item %d: %w", item.ID, err)
		}
		_, err = fmt.Fprintf(s.w, "%s\n", data)
		return err
	}

	_, err := fmt.Fprintf(s.w, "[%s] @%s: %s\n",
		item.Timestamp.Format("15:04:05"), item.Author, item.Text)
	return err
}

// Deliverer pushes one item to a URL. *webhook.Dispatcher satisfies this.
type Deliverer interface {
	Deliver(ctx context.Context, item gateway.Item, url string) error
}

// WebhookSink forwards items to a fixed webhook URL through a Deliverer.
type WebhookSink struct {
	dispatcher Deliverer
	url        string
}

// NewWebhookSink creates a sink delivering to url.
func NewWebhookSink(d Deliverer, url string) *WebhookSink {
	return &WebhookSink{dispatcher: d, url: url}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Deliver(ctx context.Context, item gateway.Item) error {
	return s.dispatcher.Deliver(ctx, item, s.url)
}
