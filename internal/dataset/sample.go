package dataset

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Speaker identifies who authored a turn, using ShareGPT wire names.
type Speaker string

const (
	SpeakerSystem    Speaker = "system"
	SpeakerUser      Speaker = "human"
	SpeakerAssistant Speaker = "gpt"
)

// Turn is one message in a conversation.
type Turn struct {
	From  Speaker `json:"from"`
	Value string  `json:"value"`
}

// Sample is one input conversation. Its identity is its position in the input file.
type Sample struct {
	ID            string `json:"id"`
	Conversations []Turn `json:"conversations"`
}

// NormalizeSpeaker maps the speaker aliases found in ShareGPT dumps onto the three canonical speakers.
// Unknown names are returned lowercased so callers can still reject them.
func NormalizeSpeaker(name string) Speaker {
	switch s := strings.ToLower(strings.TrimSpace(name)); s {
	case "system":
		return SpeakerSystem
	case "human", "user":
		return SpeakerUser
	case "gpt", "assistant", "chatgpt", "bing", "bard", "model":
		return SpeakerAssistant
	default:
		return Speaker(s)
	}
}

// rawTurn accepts both the ShareGPT (from/value) and chat (role/content) shapes.
// System turns in some ShareGPT dumps carry their content under "text".
type rawTurn struct {
	From    string  `json:"from"`
	Role    string  `json:"role"`
	Value   *string `json:"value"`
	Text    *string `json:"text"`
	Content *string `json:"content"`
}

// UnmarshalJSON decodes a turn, normalizing speaker aliases. A null value becomes "".
func (t *Turn) UnmarshalJSON(data []byte) error {
	var raw rawTurn
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode turn: %w", err)
	}

	from := raw.From
	if from == "" {
		from = raw.Role
	}
	t.From = NormalizeSpeaker(from)

	switch {
	case raw.Value != nil:
		t.Value = *raw.Value
	case raw.Text != nil:
		t.Value = *raw.Text
	case raw.Content != nil:
		t.Value = *raw.Content
	default:
		t.Value = ""
	}
	return nil
}
