package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type openaiRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

func openaiServer(t *testing.T, choices []map[string]any, inspect func(*http.Request, openaiRequest)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if inspect != nil {
			inspect(r, req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 123,
			"model":   req.Model,
			"choices": choices,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func assistantChoice(content string) []map[string]any {
	return []map[string]any{{
		"index":         0,
		"message":       map[string]any{"role": "assistant", "content": content},
		"finish_reason": "stop",
	}}
}

func TestOpenAICompleteFeedbackPrompt(t *testing.T) {
	server := openaiServer(t, assistantChoice("  {\"totalScore\": 72}  "), func(r *http.Request, req openaiRequest) {
		if auth := r.Header.Get("Authorization"); !strings.Contains(auth, "test-key") {
			t.Errorf("expected bearer test-key, got %q", auth)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("expected model gpt-4o-mini, got %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %#v", req.Messages)
		}
		if req.ResponseFormat != nil {
			t.Errorf("expected no response format without JSON output, got %#v", req.ResponseFormat)
		}
	})

	client, err := NewClient("openai", "test-key", "gpt-4o-mini", WithBaseURL(server.URL+"/v1"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	got, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a professional interviewer scoring a mock interview."},
		{Role: RoleUser, Content: "- assistant: Why Go?\n- user: Goroutines.\n"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"totalScore": 72}` {
		t.Fatalf("expected trimmed response, got %q", got)
	}
}

func TestOpenAIRequestAddsJSONInstructionWhenMissing(t *testing.T) {
	client, err := newOpenAIClient("test-key", "gpt-4o-mini", &clientOptions{jsonOutput: true})
	if err != nil {
		t.Fatalf("newOpenAIClient: %v", err)
	}

	req := client.request([]Message{{Role: RoleUser, Content: "Prepare 3 questions for a Go role."}})
	if len(req.Messages) != 2 || req.Messages[0].Content != jsonInstruction {
		t.Fatalf("expected JSON instruction prepended, got %#v", req.Messages)
	}

	req = client.request([]Message{{Role: RoleUser, Content: `Return JSON like {"questions": []}.`}})
	if len(req.Messages) != 1 {
		t.Fatalf("expected prompt left as is when it asks for JSON, got %#v", req.Messages)
	}
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	server := openaiServer(t, []map[string]any{}, nil)

	client, err := newOpenAIClient("test-key", "gpt-4o-mini", &clientOptions{baseURL: server.URL + "/v1"})
	if err != nil {
		t.Fatalf("newOpenAIClient: %v", err)
	}

	_, err = client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "score this"}})
	if err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Fatalf("expected no choices error, got %v", err)
	}
}
