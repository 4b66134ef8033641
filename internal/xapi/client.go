// Package xapi is the transport for the X/Twitter-compatible API. It turns
// gateway requests into authenticated HTTP calls, parses tweets into core
// items, and reports the cost actually incurred per call.
package xapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spyglass-sh/spyglass/internal/gateway"
)

// maxResponseSize bounds upstream response bodies (10 MB).
const maxResponseSize = 10 << 20

// Client calls the upstream X API. It implements gateway.Transport for the
// kinds "search", "profile", "tweet", "thread" and "trends".
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	pricing Pricing
}

// NewClient creates a Client against baseURL authenticating with apiKey.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		pricing: DefaultPricing(),
	}
}

// Pricing returns the client's cost model, used by callers to compute
// admission estimates.
func (c *Client) Pricing() Pricing {
	return c.pricing
}

// Do implements gateway.Transport.
func (c *Client) Do(ctx context.Context, req gateway.Request) (*gateway.Result, error) {
	switch req.Kind {
	case "search":
		return c.search(ctx, req.Params)
	case "profile":
		return c.profile(ctx, req.Params)
	case "tweet":
		return c.tweets(ctx, req.Params)
	case "thread":
		return c.thread(ctx, req.Params)
	case "trends":
		return c.trends(ctx, req.Params)
	default:
		return nil, fmt.Errorf("unsupported request kind %q", req.Kind)
	}
}

func (c *Client) search(ctx context.Context, params map[string]string) (*gateway.Result, error) {
	query := params["query"]
	if since := params["since_id"]; since != "" {
		query = fmt.Sprintf("%s since_id:%s", query, since)
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("queryType", "Latest")

	return c.tweetPage(ctx, "/twitter/tweet/advanced_search", q)
}

func (c *Client) profile(ctx context.Context, params map[string]string) (*gateway.Result, error) {
	q := url.Values{}
	q.Set("userName", params["username"])

	return c.tweetPage(ctx, "/twitter/user/last_tweets", q)
}

func (c *Client) tweets(ctx context.Context, params map[string]string) (*gateway.Result, error) {
	q := url.Values{}
	q.Set("tweet_ids", params["id"])

	return c.tweetPage(ctx, "/twitter/tweets", q)
}

func (c *Client) thread(ctx context.Context, params map[string]string) (*gateway.Result, error) {
	q := url.Values{}
	q.Set("tweetId", params["id"])

	return c.tweetPage(ctx, "/twitter/tweet/thread_context", q)
}

// tweetPage fetches one page of tweets from path and converts it into a
// gateway result.
func (c *Client) tweetPage(ctx context.Context, path string, q url.Values) (*gateway.Result, error) {
	body, err := c.get(ctx, path, q)
	if err != nil {
		return nil, err
	}

	var page tweetsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parsing response from %s: %w", path, err)
	}

	return &gateway.Result{
		Payload: body,
		Items:   toItems(page.Tweets),
		Cost:    c.pricing.actualTweets(len(page.Tweets)),
	}, nil
}

func (c *Client) trends(ctx context.Context, params map[string]string) (*gateway.Result, error) {
	q := url.Values{}
	if woeid := params["woeid"]; woeid != "" {
		q.Set("woeid", woeid)
	}

	body, err := c.get(ctx, "/twitter/trends", q)
	if err != nil {
		return nil, err
	}

	var page trendsResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parsing trends response: %w", err)
	}

	return &gateway.Result{
		Payload: body,
		Cost:    c.pricing.actualTrends(len(page.Trends)),
	}, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

// toItems converts tweets into core items, parsing snowflake IDs. Tweets with
// unparsable IDs are skipped: without a numeric ID the watch core cannot
// order or deduplicate them.
func toItems(tweets []Tweet) []gateway.Item {
	items := make([]gateway.Item, 0, len(tweets))
	for _, tw := range tweets {
		id, err := strconv.ParseInt(tw.ID, 10, 64)
		if err != nil {
			slog.Warn("skipping tweet with non-numeric id", "id", tw.ID)
			continue
		}
		ts, err := time.Parse(createdAtFormat, tw.CreatedAt)
		if err != nil {
			ts = time.Time{}
		}
		items = append(items, gateway.Item{
			ID:        id,
			Author:    tw.Author.UserName,
			Text:      tw.Text,
			Timestamp: ts,
		})
	}
	return items
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
