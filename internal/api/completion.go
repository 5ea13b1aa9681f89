package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/fulfiller/internal/agent"
)

var _ agent.Completer = (*Client)(nil)

// Complete sends one Messages request and returns the concatenated text blocks.
// The agent options max_tokens and temperature are honored when present.
func (c *Client) Complete(ctx context.Context, req agent.CompletionRequest) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.TranslateModel(req.Model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}
	if n, ok := intOption(req.Options, "max_tokens"); ok && n > 0 {
		params.MaxTokens = n
	}
	if f, ok := floatOption(req.Options, "temperature"); ok {
		params.Temperature = anthropic.Float(f)
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("messages API returned %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("messages API call: %w", err)
	}

	c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var result strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(variant.Text)
		}
	}
	if result.Len() == 0 {
		return "", fmt.Errorf("messages API returned no text (stop reason %q)", resp.StopReason)
	}

	return result.String(), nil
}

// intOption reads a numeric option that may have been decoded from JSON or YAML.
func intOption(opts map[string]any, key string) (int64, bool) {
	switch v := opts[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

func floatOption(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
