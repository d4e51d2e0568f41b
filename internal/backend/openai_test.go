package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *OpenAIAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	a, err := NewOpenAIAdapter(Config{BaseURL: server.URL + "/v1", APIKey: "EMPTY", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewOpenAIAdapter: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestListModels(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/models" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer EMPTY" {
			t.Errorf("expected bearer auth, got %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"object":"list","data":[{"id":"meta-llama/Llama-3.2-1B-Instruct"},{"id":""},{"id":"second"}]}`))
	})

	models, err := a.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0] != "meta-llama/Llama-3.2-1B-Instruct" || models[1] != "second" {
		t.Errorf("unexpected models: %v", models)
	}
}

func TestChat_Success(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "m" || req.MaxTokens != 128 || req.Temperature != 0.3 {
			t.Errorf("unexpected request: %+v", req)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != RoleSystem || req.Messages[1].Content != "hi" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  hello  "},"finish_reason":"stop"}]}`))
	})

	res, err := a.Chat(context.Background(), ChatRequest{
		Model:       "m",
		Messages:    []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "hi"}},
		MaxTokens:   128,
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.Text != "  hello  " {
		t.Errorf("adapter must not trim, got %q", res.Text)
	}
	if res.FinishReason != FinishStop || res.Truncated() {
		t.Errorf("unexpected finish reason %q", res.FinishReason)
	}
}

func TestChat_ZeroTemperatureIsSent(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		json.NewDecoder(r.Body).Decode(&raw)
		if _, ok := raw["temperature"]; !ok {
			t.Error("temperature 0 must be sent explicitly")
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"x"},"finish_reason":"length"}]}`))
	})

	res, err := a.Chat(context.Background(), ChatRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "q"}}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !res.Truncated() {
		t.Error("expected truncated result")
	}
}

func TestChat_APIError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"openai shape", `{"error":{"type":"BadRequestError","message":"context too long"}}`, "context too long"},
		{"vllm flat shape", `{"object":"error","message":"model not found"}`, "model not found"},
		{"plain text", `upstream exploded`, "upstream exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body))
			})
			_, err := a.Chat(context.Background(), ChatRequest{Model: "m"})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) || !strings.Contains(err.Error(), "400") {
				t.Errorf("error %q should contain status and %q", err, tt.wantMsg)
			}
		})
	}
}

func TestChat_EmptyChoices(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})
	if _, err := a.Chat(context.Background(), ChatRequest{Model: "m"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestComplete_SendsRawTokenOptions(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if raw["ignore_eos"] != true {
			t.Errorf("ignore_eos = %v, want true", raw["ignore_eos"])
		}
		if raw["skip_special_tokens"] != false {
			t.Errorf("skip_special_tokens = %v, want false", raw["skip_special_tokens"])
		}
		if raw["spaces_between_special_tokens"] != false {
			t.Errorf("spaces_between_special_tokens = %v, want false", raw["spaces_between_special_tokens"])
		}
		if raw["prompt"] != "<|begin_of_text|>hi" {
			t.Errorf("prompt = %v", raw["prompt"])
		}
		w.Write([]byte(`{"choices":[{"text":" world<|eot_id|>","finish_reason":"length"}]}`))
	})

	res, err := a.Complete(context.Background(), CompletionRequest{
		Model:     "m",
		Prompt:    "<|begin_of_text|>hi",
		MaxTokens: 16,
		Raw:       VerbatimTokens(),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Text != " world<|eot_id|>" || !res.Truncated() {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestComplete_OmitsRawOptionsWhenNil(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		json.NewDecoder(r.Body).Decode(&raw)
		if _, ok := raw["ignore_eos"]; ok {
			t.Error("ignore_eos should be omitted when no raw options are given")
		}
		w.Write([]byte(`{"choices":[{"text":"ok","finish_reason":"stop"}]}`))
	})
	if _, err := a.Complete(context.Background(), CompletionRequest{Model: "m", Prompt: "p"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
}

func TestListModels_Unreachable(t *testing.T) {
	a, err := NewOpenAIAdapter(Config{BaseURL: "http://127.0.0.1:1/v1", Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewOpenAIAdapter: %v", err)
	}
	defer a.Close()

	if _, err := a.ListModels(context.Background()); err == nil {
		t.Fatal("expected error for unreachable backend")
	}
}
