package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiClient struct {
	client     *genai.Client
	model      string
	jsonOutput bool
}

func newGeminiClient(apiKey, model string, opts *clientOptions) (*geminiClient, error) {
	config := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if opts.baseURL != "" {
		config.HTTPOptions.BaseURL = opts.baseURL
	}

	client, err := genai.NewClient(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &geminiClient{client: client, model: model, jsonOutput: opts.jsonOutput}, nil
}

// geminiRequest maps a prompt onto Gemini's shape: system text becomes one
// instruction with a part per message and assistant turns use the "model"
// role.
func geminiRequest(p prompt) (*genai.Content, []*genai.Content) {
	var instruction *genai.Content
	if len(p.system) > 0 {
		instruction = &genai.Content{}
		for _, text := range p.system {
			instruction.Parts = append(instruction.Parts, &genai.Part{Text: text})
		}
	}

	contents := make([]*genai.Content, 0, len(p.turns))
	for _, m := range p.turns {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}
	return instruction, contents
}

func (c *geminiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	// Gemini's native JSON mode is a response MIME type.
	p := splitPrompt(messages, false)
	if !p.hasUserTurn() {
		return "", fmt.Errorf("gemini: no user message provided")
	}

	instruction, contents := geminiRequest(p)
	config := &genai.GenerateContentConfig{SystemInstruction: instruction}
	if c.jsonOutput {
		config.ResponseMIMEType = "application/json"
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: empty response text")
	}
	return text, nil
}
