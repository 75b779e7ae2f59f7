package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type openaiClient struct {
	client     *openai.Client
	model      string
	jsonOutput bool
}

func newOpenAIClient(apiKey, model string, opts *clientOptions) (*openaiClient, error) {
	config := openai.DefaultConfig(apiKey)
	if opts.baseURL != "" {
		config.BaseURL = opts.baseURL
	}
	return &openaiClient{client: openai.NewClientWithConfig(config), model: model, jsonOutput: opts.jsonOutput}, nil
}

func (c *openaiClient) request(messages []Message) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	mentionsJSON := false
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
		if strings.Contains(strings.ToLower(m.Content), "json") {
			mentionsJSON = true
		}
	}

	req := openai.ChatCompletionRequest{Model: c.model, Messages: msgs}
	if c.jsonOutput {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
		// json_object mode is rejected unless a message asks for JSON.
		if !mentionsJSON {
			req.Messages = append([]openai.ChatCompletionMessage{{Role: RoleSystem, Content: jsonInstruction}}, req.Messages...)
		}
	}
	return req
}

func (c *openaiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(messages))
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices in response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
