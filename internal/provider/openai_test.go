package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func writeChatResponse(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"choices": []map[string]interface{}{
			{
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	})
}

// TestOpenAI_SystemPromptOnly checks that a "Begin." user message is added
// when only system prompts are present.
func TestOpenAI_SystemPromptOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			return
		}
		if req.Model != "test-model" {
			t.Errorf("expected model=test-model, got %s", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Errorf("expected 2 messages (system + auto-generated user), got %d", len(req.Messages))
			return
		}
		if req.Messages[0].Role != "system" || req.Messages[0].Content != "one\n\ntwo" {
			t.Errorf("expected merged system message, got %+v", req.Messages[0])
		}
		if req.Messages[1].Role != "user" || req.Messages[1].Content != "Begin." {
			t.Errorf("expected user 'Begin.', got %+v", req.Messages[1])
		}
		writeChatResponse(w, "Ready.")
	}))
	defer server.Close()

	p := NewOpenAI("test", OpenAIOptions{Endpoint: server.URL, APIKey: "k", Model: "test-model", Timeout: 5 * time.Second})
	response, err := p.Chat(context.Background(), []Message{
		{Role: "system", Content: "one"},
		{Role: "system", Content: "two"},
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if response != "Ready." {
		t.Errorf("expected response='Ready.', got %q", response)
	}
}

func TestOpenAI_RequestPath(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		writeChatResponse(w, "ok")
	}))
	defer server.Close()

	p := NewOpenAI("test", OpenAIOptions{Endpoint: server.URL + "/", APIKey: "secret", Model: "m"})
	if _, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}); err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if gotPath != "/v1/chat/completions" {
		t.Errorf("expected /v1/chat/completions, got %s", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
}

func TestOpenAI_HTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer server.Close()

	p := NewOpenAI("test", OpenAIOptions{Endpoint: server.URL, APIKey: "k", Model: "m"})
	_, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if te.Code() != "http_error:429" {
		t.Errorf("expected http_error:429, got %s", te.Code())
	}
	if !strings.Contains(te.Raw, "slow down") {
		t.Errorf("expected raw body in error, got %q", te.Raw)
	}
}

func TestOpenAI_MissingChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	p := NewOpenAI("test", OpenAIOptions{Endpoint: server.URL, Model: "m"})
	_, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}})

	var te *TransportError
	if !errors.As(err, &te) || te.Code() != "request_failed:missing_choices" {
		t.Fatalf("expected request_failed:missing_choices, got %v", err)
	}
}
