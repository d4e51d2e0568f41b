package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failed response body ends up in an error message.
const maxErrorBody = 4096

// OpenAIAdapter talks to an OpenAI-compatible server such as vLLM.
// Each adapter owns a private transport so Close releases exactly its own sockets.
type OpenAIAdapter struct {
	base      string
	apiKey    string
	client    *http.Client
	transport *http.Transport
}

// NewOpenAIAdapter creates an adapter for cfg.BaseURL.
func NewOpenAIAdapter(cfg Config) (*OpenAIAdapter, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("backend base URL must be provided")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &OpenAIAdapter{
		base:      base,
		apiKey:    cfg.APIKey,
		transport: transport,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}, nil
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

type completionRequest struct {
	Model                      string  `json:"model"`
	Prompt                     string  `json:"prompt"`
	MaxTokens                  int     `json:"max_tokens"`
	Temperature                float64 `json:"temperature"`
	IgnoreEOS                  *bool   `json:"ignore_eos,omitempty"`
	SkipSpecialTokens          *bool   `json:"skip_special_tokens,omitempty"`
	SpacesBetweenSpecialTokens *bool   `json:"spaces_between_special_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Text         string  `json:"text"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// errorResponse covers both the OpenAI shape and vLLM's flat error object.
type errorResponse struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	Object  string `json:"object"`
	Message string `json:"message"`
}

// ListModels returns the ids listed by GET {base}/models.
func (a *OpenAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	var resp modelList
	if err := a.do(ctx, http.MethodGet, "/models", nil, &resp); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	ids := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// Chat sends POST {base}/chat/completions and decodes the first choice.
func (a *OpenAIAdapter) Chat(ctx context.Context, req ChatRequest) (ChatResult, error) {
	body := chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	var resp chatResponse
	if err := a.do(ctx, http.MethodPost, "/chat/completions", body, &resp); err != nil {
		return ChatResult{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ChatResult{}, errors.New("chat completion: empty choices")
	}

	choice := resp.Choices[0]
	if choice.Message.Content == nil {
		return ChatResult{}, errors.New("chat completion: missing message content")
	}
	return ChatResult{
		Text:         *choice.Message.Content,
		FinishReason: finishReason(choice.FinishReason),
	}, nil
}

// Complete sends POST {base}/completions and decodes the first choice.
func (a *OpenAIAdapter) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	body := completionRequest{
		Model:       req.Model,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.Raw != nil {
		body.IgnoreEOS = &req.Raw.IgnoreEOS
		body.SkipSpecialTokens = &req.Raw.SkipSpecialTokens
		body.SpacesBetweenSpecialTokens = &req.Raw.SpacesBetweenSpecialTokens
	}

	var resp completionResponse
	if err := a.do(ctx, http.MethodPost, "/completions", body, &resp); err != nil {
		return CompletionResult{}, fmt.Errorf("text completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, errors.New("text completion: empty choices")
	}

	choice := resp.Choices[0]
	return CompletionResult{
		Text:         choice.Text,
		FinishReason: finishReason(choice.FinishReason),
	}, nil
}

// Address returns the base URL.
func (a *OpenAIAdapter) Address() string {
	return a.base
}

// Close drops the adapter's idle connections.
func (a *OpenAIAdapter) Close() error {
	a.transport.CloseIdleConnections()
	return nil
}

func (a *OpenAIAdapter) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(status int, body []byte) error {
	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Error != nil && errResp.Error.Message != "" {
			return fmt.Errorf("api error %d: %s: %s", status, errResp.Error.Type, errResp.Error.Message)
		}
		if errResp.Message != "" {
			return fmt.Errorf("api error %d: %s", status, errResp.Message)
		}
	}
	return fmt.Errorf("api error %d: %s", status, strings.TrimSpace(string(body)))
}

func finishReason(raw *string) FinishReason {
	if raw == nil {
		return ""
	}
	return FinishReason(*raw)
}

var _ Backend = (*OpenAIAdapter)(nil)
