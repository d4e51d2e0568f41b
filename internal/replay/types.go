// Package replay regenerates the assistant side of one conversation against one backend.
package replay

import (
	"fmt"
	"time"

	"github.com/aristath/datagen/internal/dataset"
)

// Mode selects how a sample is replayed.
type Mode string

const (
	// ModeChat re-generates every assistant turn through the chat endpoint.
	ModeChat Mode = "chat"
	// ModeCompletion renders the first user turn into a prompt and completes it raw.
	ModeCompletion Mode = "completion"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeChat, ModeCompletion:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q (want chat or completion)", s)
	}
}

// Outcome classifies how a replay ended.
type Outcome string

const (
	OutcomeCompleted          Outcome = "completed"           // every user turn answered
	OutcomePartial            Outcome = "partial"             // stopped early, some pairs kept
	OutcomeEmpty              Outcome = "empty"               // nothing generated, nothing written
	OutcomeMalformed          Outcome = "malformed"           // speaker order broken
	OutcomeBackendUnavailable Outcome = "backend_unavailable" // model listing failed
	OutcomeFailed             Outcome = "failed"              // completion call failed
)

// Outcomes lists every outcome in display order.
func Outcomes() []Outcome {
	return []Outcome{
		OutcomeCompleted,
		OutcomePartial,
		OutcomeEmpty,
		OutcomeMalformed,
		OutcomeBackendUnavailable,
		OutcomeFailed,
	}
}

// StopReason says why generation for a sample stopped.
type StopReason string

const (
	StopEnd       StopReason = "end"
	StopTruncated StopReason = "truncated"
	StopError     StopReason = "error"
)

// Record is one output line. Chat mode fills Conversations, completion mode fills Text.
type Record struct {
	Conversations []dataset.Turn `json:"conversations,omitempty"`
	Text          string         `json:"text,omitempty"`
}

// Result is the outcome of replaying one sample.
type Result struct {
	Outcome  Outcome
	Stop     StopReason
	Record   *Record // nil when nothing should be written
	Model    string
	Pairs    int // user/assistant pairs generated
	Err      error
	Duration time.Duration
}

// Params are the generation settings shared by every replay in a run.
type Params struct {
	Mode        Mode
	MaxTokens   int
	Temperature float64
}
