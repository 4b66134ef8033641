// Package ai is the transport for AI analysis requests, speaking to any
// OpenAI-compatible inference API.
package ai

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/spyglass-sh/spyglass/internal/gateway"
)

// Pricing converts token usage into dollar cost.
type Pricing struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// DefaultPricing is a conservative default for small instruction-tuned
// models; override it in Config when using a different model.
func DefaultPricing() Pricing {
	return Pricing{
		PromptPer1K:     0.00015,
		CompletionPer1K: 0.0006,
	}
}

// Cost returns the dollar cost of a completion with the given token counts.
func (p Pricing) Cost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1000*p.PromptPer1K +
		float64(completionTokens)/1000*p.CompletionPer1K
}

// Estimate is the admission estimate for an analysis over roughly inputChars
// characters of input. Tokens are approximated at four characters each.
func (p Pricing) Estimate(inputChars int) float64 {
	promptTokens := inputChars / 4
	return p.Cost(promptTokens, 1024)
}

// Config holds the inference API settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Pricing Pricing
}

// Client implements gateway.Transport for the "analyze" kind.
type Client struct {
	client  *openai.Client
	model   string
	pricing Pricing
}

// NewClient creates a Client against an OpenAI-compatible endpoint.
func NewClient(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	pricing := cfg.Pricing
	if pricing == (Pricing{}) {
		pricing = DefaultPricing()
	}
	return &Client{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		pricing: pricing,
	}
}

// Pricing returns the client's cost model.
func (c *Client) Pricing() Pricing {
	return c.pricing
}

// analysis is the payload shape returned for analyze requests.
type analysis struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// Do implements gateway.Transport. Params: "prompt" is the instruction,
// "input" the content to analyze.
func (c *Client) Do(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
	if req.Kind != "analyze" {
		return nil, fmt.Errorf("unsupported request kind %q", req.Kind)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.Params["prompt"]},
			{Role: openai.ChatMessageRoleUser, Content: req.Params["input"]},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}

	payload, err := json.Marshal(analysis{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding analysis: %w", err)
	}

	return &gateway.Result{
		Payload: payload,
		Cost:    c.pricing.Cost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}, nil
}
