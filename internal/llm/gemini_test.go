package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeminiRequestMapsAssistantToModel(t *testing.T) {
	system, contents := geminiRequest(splitPrompt([]Message{
		{Role: RoleSystem, Content: "Prepare interview questions."},
		{Role: RoleUser, Content: "Role: Backend Engineer"},
		{Role: RoleAssistant, Content: `{"questions":["Why Go?"]}`},
		{Role: RoleSystem, Content: "Keep them short."},
		{Role: RoleUser, Content: "One more, please."},
	}, false))

	if system == nil || len(system.Parts) != 2 {
		t.Fatalf("expected both system messages as instruction parts, got %#v", system)
	}
	if system.Parts[0].Text != "Prepare interview questions." || system.Parts[1].Text != "Keep them short." {
		t.Fatalf("unexpected instruction parts: %q, %q", system.Parts[0].Text, system.Parts[1].Text)
	}

	wantRoles := []string{"user", "model", "user"}
	if len(contents) != len(wantRoles) {
		t.Fatalf("expected %d contents, got %d", len(wantRoles), len(contents))
	}
	for i, role := range wantRoles {
		if contents[i].Role != role {
			t.Errorf("content %d: expected role %q, got %q", i, role, contents[i].Role)
		}
	}
	if contents[1].Parts[0].Text != `{"questions":["Why Go?"]}` {
		t.Errorf("unexpected model text %q", contents[1].Parts[0].Text)
	}
}

func TestGeminiRequestWithoutSystemMessages(t *testing.T) {
	system, contents := geminiRequest(splitPrompt([]Message{{Role: RoleUser, Content: "hi"}}, false))
	if system != nil {
		t.Fatalf("expected no instruction, got %#v", system)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
}

func TestGeminiCompleteRequiresUserMessage(t *testing.T) {
	client, err := newGeminiClient("test-key", "gemini-test", &clientOptions{})
	if err != nil {
		t.Fatalf("newGeminiClient: %v", err)
	}

	_, err = client.Complete(context.Background(), []Message{{Role: RoleSystem, Content: "only instructions"}})
	if err == nil || !strings.Contains(err.Error(), "no user message") {
		t.Fatalf("expected no user message error, got %v", err)
	}
}

func TestGeminiCompleteEmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content":      map[string]any{"parts": []map[string]any{{"text": "  "}}, "role": "model"},
				"finishReason": "STOP",
			}},
		})
	}))
	defer server.Close()

	client, err := newGeminiClient("test-key", "gemini-test", &clientOptions{baseURL: server.URL})
	if err != nil {
		t.Fatalf("newGeminiClient: %v", err)
	}

	_, err = client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "score this"}})
	if err == nil || !strings.Contains(err.Error(), "empty response") {
		t.Fatalf("expected empty response error, got %v", err)
	}
}
