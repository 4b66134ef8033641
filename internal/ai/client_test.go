package ai

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spyglass-sh/spyglass/internal/gateway"
)

func TestAnalyzeParsesCompletionAndCost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{"message": {"role": "assistant", "content": "mostly positive"}}],
			"usage": {"prompt_tokens": 2000, "completion_tokens": 500, "total_tokens": 2500}
		}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Model: "gpt-4o-mini"})
	res, err := c.Do(context.Background(), gateway.Request{
		Kind:   "analyze",
		Params: map[string]string{"prompt": "summarize sentiment", "input": "some tweets"},
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}

	var a analysis
	if err := json.Unmarshal(res.Payload, &a); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if a.Content != "mostly positive" {
		t.Errorf("content: got %q", a.Content)
	}

	want := DefaultPricing().Cost(2000, 500)
	if math.Abs(res.Cost-want) > 1e-12 {
		t.Errorf("cost: got %v, want %v", res.Cost, want)
	}
}

func TestAnalyzeRejectsOtherKinds(t *testing.T) {
	c := NewClient(Config{APIKey: "k", Model: "m"})
	if _, err := c.Do(context.Background(), gateway.Request{Kind: "search"}); err == nil {
		t.Fatal("expected error for non-analyze kind")
	}
}

func TestEstimateScalesWithInput(t *testing.T) {
	p := DefaultPricing()
	small := p.Estimate(400)
	large := p.Estimate(40000)
	if large <= small {
		t.Errorf("estimate should grow with input: small=%v large=%v", small, large)
	}
}
