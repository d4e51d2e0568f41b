package backend

import "time"

// Role tags a chat message for the backend.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents one role-tagged message in a chat context.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// FinishReason reports why the backend stopped generating.
type FinishReason string

const (
	FinishStop   FinishReason = "stop"
	FinishLength FinishReason = "length"
)

// ChatRequest is a chat completion call.
type ChatRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// ChatResult is the decoded first choice of a chat completion.
type ChatResult struct {
	Text         string
	FinishReason FinishReason
}

// Truncated reports whether generation stopped only because the token budget ran out.
func (r ChatResult) Truncated() bool {
	return r.FinishReason == FinishLength
}

// RawTokenOptions are the vLLM sampling extensions that keep special tokens verbatim in the output.
type RawTokenOptions struct {
	IgnoreEOS                  bool
	SkipSpecialTokens          bool
	SpacesBetweenSpecialTokens bool
}

// VerbatimTokens returns the options used for completion-mode generation:
// generate past EOS and keep special tokens exactly as the tokenizer emits them.
func VerbatimTokens() *RawTokenOptions {
	return &RawTokenOptions{
		IgnoreEOS:                  true,
		SkipSpecialTokens:          false,
		SpacesBetweenSpecialTokens: false,
	}
}

// CompletionRequest is a raw text completion call.
type CompletionRequest struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
	Raw         *RawTokenOptions // nil leaves the server defaults
}

// CompletionResult is the decoded first choice of a text completion.
type CompletionResult struct {
	Text         string
	FinishReason FinishReason
}

// Truncated reports whether generation stopped only because the token budget ran out.
func (r CompletionResult) Truncated() bool {
	return r.FinishReason == FinishLength
}

// Config defines how to reach one backend.
type Config struct {
	Type    string        // "openai" (default) or "vllm"; both speak the OpenAI-compatible API
	BaseURL string        // e.g. http://localhost:8000/v1
	APIKey  string        // sent as a bearer token; local servers accept "EMPTY"
	Timeout time.Duration // per-request timeout; 0 disables it
}
