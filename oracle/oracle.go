// Package oracle wraps an LLM provider with the retry policy the
// pipeline relies on. Both pipeline calls (structure inference and
// answering) go through Ask, so failure handling lives in one place.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/renqiu/gohomework/llm"
)

// ErrExhausted is returned by Ask when every attempt failed. Callers
// treat it as a signal to take their degraded path; it never aborts a
// run on its own.
var ErrExhausted = errors.New("oracle: all attempts failed")

// Config holds oracle retry and sampling settings.
type Config struct {
	Model       string
	Temperature float64
	Attempts    int
	RetryDelay  time.Duration
}

// Client issues chat calls with a fixed number of attempts and a fixed
// delay between them.
type Client struct {
	provider llm.Provider
	cfg      Config
}

// New creates an oracle client. Zero config fields get defaults:
// 3 attempts, 2s delay, temperature 0.3.
func New(provider llm.Provider, cfg Config) *Client {
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	return &Client{provider: provider, cfg: cfg}
}

// Ask sends one system prompt plus multimodal user content and returns
// the model's reply text. Failed attempts are retried after the
// configured delay; once attempts run out the error wraps ErrExhausted.
func (c *Client) Ask(ctx context.Context, system string, parts []llm.ContentPart) (string, error) {
	req := llm.VisionChatRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Messages: []llm.VisionMessage{
			{Role: "system", Content: []llm.ContentPart{llm.TextPart(system)}},
			{Role: "user", Content: parts},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		resp, err := c.provider.ChatWithImages(ctx, req)
		if err == nil {
			return resp.Content, nil
		}
		lastErr = err
		slog.Warn("oracle: call failed",
			"attempt", attempt,
			"attempts", c.cfg.Attempts,
			"error", err,
		)
		if attempt < c.cfg.Attempts {
			select {
			case <-time.After(c.cfg.RetryDelay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}
