package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	jsonOutput bool
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithJSONOutput asks the provider for a single JSON value instead of prose.
// Providers without a native JSON mode get an extra system instruction.
func WithJSONOutput() Option {
	return func(o *clientOptions) {
		o.jsonOutput = true
	}
}

func ParseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return parts[0], parts[1], nil
}

func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var (
		client Client
		err    error
	)
	switch provider {
	case "openai":
		client, err = newOpenAIClient(apiKey, model, o)
	case "anthropic":
		client, err = newAnthropicClient(apiKey, model, o)
	case "gemini":
		client, err = newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are openai, anthropic, gemini", provider)
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

const jsonInstruction = "Respond with a single valid JSON value only. Do not wrap it in markdown or add commentary."

// prompt is a conversation split the way providers with a separate system
// field want it.
type prompt struct {
	system []string
	turns  []Message
}

// splitPrompt pulls system messages out of messages and, when the provider
// has no native JSON mode, adds the JSON instruction to them.
func splitPrompt(messages []Message, instructJSON bool) prompt {
	var p prompt
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			p.system = append(p.system, m.Content)
		case RoleUser, RoleAssistant:
			p.turns = append(p.turns, m)
		}
	}
	if instructJSON {
		p.system = append(p.system, jsonInstruction)
	}
	return p
}

func (p prompt) hasUserTurn() bool {
	for _, m := range p.turns {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}

// ExtractJSON strips a markdown code fence and any text around the outermost
// JSON object or array in s.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}
