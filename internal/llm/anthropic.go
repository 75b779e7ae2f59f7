package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 8192

type anthropicClient struct {
	client     anthropic.Client
	model      string
	jsonOutput bool
}

func newAnthropicClient(apiKey, model string, opts *clientOptions) (*anthropicClient, error) {
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if opts.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.baseURL))
	}

	return &anthropicClient{client: anthropic.NewClient(clientOpts...), model: model, jsonOutput: opts.jsonOutput}, nil
}

// Anthropic has no JSON response mode, so JSON output is requested through
// the system prompt.
func (c *anthropicClient) params(messages []Message) anthropic.MessageNewParams {
	p := splitPrompt(messages, c.jsonOutput)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: anthropicMaxTokens,
	}
	for _, text := range p.system {
		params.System = append(params.System, anthropic.TextBlockParam{Text: text})
	}
	for _, m := range p.turns {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}
	return params
}

func (c *anthropicClient) Complete(ctx context.Context, messages []Message) (string, error) {
	resp, err := c.client.Messages.New(ctx, c.params(messages))
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var b strings.Builder
	for i := range resp.Content {
		if block := &resp.Content[i]; block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	result := strings.TrimSpace(b.String())
	if result == "" {
		return "", fmt.Errorf("anthropic: empty response content")
	}
	return result, nil
}
