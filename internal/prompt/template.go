// Package prompt renders single-turn completion prompts in the conversation
// formats local instruction-tuned models expect.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Style selects how a template joins its messages.
type Style int

const (
	// StyleColonSingle is "Role: message" joined by one separator.
	StyleColonSingle Style = iota
	// StyleColonTwo alternates two separators (user turns, assistant turns).
	StyleColonTwo
	// StyleChatML wraps each turn in <|im_start|> / <|im_end|>.
	StyleChatML
	// StyleLlama3 uses header ids and <|eot_id|>.
	StyleLlama3
)

// Template is a conversation format. Values are copied on use, so callers can
// override the system message without affecting the registered template.
type Template struct {
	Name           string
	Style          Style
	SystemTemplate string // "{system_message}" is replaced by System
	System         string
	Roles          [2]string   // user, assistant
	Shots          [][2]string // few-shot (role, message) pairs rendered before the user turn
	Sep            string
	Sep2           string
}

// WithSystem returns a copy of t using msg as its system message.
func (t Template) WithSystem(msg string) Template {
	t.System = msg
	return t
}

// Prompt renders the template with one user message followed by an open assistant slot.
func (t Template) Prompt(user string) string {
	msgs := make([][2]string, 0, len(t.Shots)+2)
	msgs = append(msgs, t.Shots...)
	msgs = append(msgs, [2]string{t.Roles[0], user}, [2]string{t.Roles[1], ""})

	system := strings.ReplaceAll(t.SystemTemplate, "{system_message}", t.System)
	var b strings.Builder

	switch t.Style {
	case StyleColonSingle:
		b.WriteString(system + t.Sep)
		for _, m := range msgs {
			if m[1] != "" {
				b.WriteString(m[0] + ": " + m[1] + t.Sep)
			} else {
				b.WriteString(m[0] + ":")
			}
		}
	case StyleColonTwo:
		seps := [2]string{t.Sep, t.Sep2}
		b.WriteString(system + seps[0])
		for i, m := range msgs {
			if m[1] != "" {
				b.WriteString(m[0] + ": " + m[1] + seps[i%2])
			} else {
				b.WriteString(m[0] + ":")
			}
		}
	case StyleChatML:
		if system != "" {
			b.WriteString(system + t.Sep + "\n")
		}
		for _, m := range msgs {
			if m[1] != "" {
				b.WriteString(m[0] + "\n" + m[1] + t.Sep + "\n")
			} else {
				b.WriteString(m[0] + "\n")
			}
		}
	case StyleLlama3:
		b.WriteString("<|begin_of_text|>")
		if t.System != "" {
			b.WriteString(system)
		}
		for _, m := range msgs {
			b.WriteString("<|start_header_id|>" + m[0] + "<|end_header_id|>\n\n")
			if m[1] != "" {
				b.WriteString(strings.TrimSpace(m[1]) + "<|eot_id|>")
			}
		}
	}
	return b.String()
}

const oneShotAnswer = `Of course! Here are some creative ideas for a 10-year-old's birthday party:
1. Treasure Hunt: Organize a treasure hunt in your backyard or nearby park. Create clues and riddles for the kids to solve, leading them to hidden treasures and surprises.
2. Science Party: Plan a science-themed party where kids can engage in fun and interactive experiments. You can set up different stations with activities like making slime, erupting volcanoes, or creating simple chemical reactions.
3. Outdoor Movie Night: Set up a backyard movie night with a projector and a large screen or white sheet. Create a cozy seating area with blankets and pillows, and serve popcorn and snacks while the kids enjoy a favorite movie under the stars.
4. DIY Crafts Party: Arrange a craft party where kids can unleash their creativity. Provide a variety of craft supplies like beads, paints, and fabrics, and let them create their own unique masterpieces to take home as party favors.
5. Sports Olympics: Host a mini Olympics event with various sports and games. Set up different stations for activities like sack races, relay races, basketball shooting, and obstacle courses. Give out medals or certificates to the participants.
6. Cooking Party: Have a cooking-themed party where the kids can prepare their own mini pizzas, cupcakes, or cookies. Provide toppings, frosting, and decorating supplies, and let them get hands-on in the kitchen.
7. Superhero Training Camp: Create a superhero-themed party where the kids can engage in fun training activities. Set up an obstacle course, have them design their own superhero capes or masks, and organize superhero-themed games and challenges.
8. Outdoor Adventure: Plan an outdoor adventure party at a local park or nature reserve. Arrange activities like hiking, nature scavenger hunts, or a picnic with games. Encourage exploration and appreciation for the outdoors.
Remember to tailor the activities to the birthday child's interests and preferences. Have a great celebration!`

// DefaultName is used when no match rule fits the model id.
const DefaultName = "one_shot"

var registered = map[string]Template{
	"one_shot": {
		Name:           "one_shot",
		Style:          StyleColonSingle,
		SystemTemplate: "{system_message}",
		System: "A chat between a curious human and an artificial intelligence assistant. " +
			"The assistant gives helpful, detailed, and polite answers to the human's questions.",
		Roles: [2]string{"Human", "Assistant"},
		Shots: [][2]string{
			{"Human", "Got any creative ideas for a 10 year old’s birthday?"},
			{"Assistant", oneShotAnswer},
		},
		Sep: "\n### ",
	},
	"vicuna_v1.1": {
		Name:           "vicuna_v1.1",
		Style:          StyleColonTwo,
		SystemTemplate: "{system_message}",
		System: "A chat between a curious user and an artificial intelligence assistant. " +
			"The assistant gives helpful, detailed, and polite answers to the user's questions.",
		Roles: [2]string{"USER", "ASSISTANT"},
		Sep:   " ",
		Sep2:  "</s>",
	},
	"chatml": {
		Name:           "chatml",
		Style:          StyleChatML,
		SystemTemplate: "<|im_start|>system\n{system_message}",
		System:         "You are a helpful assistant.",
		Roles:          [2]string{"<|im_start|>user", "<|im_start|>assistant"},
		Sep:            "<|im_end|>",
	},
	"llama-3": {
		Name:           "llama-3",
		Style:          StyleLlama3,
		SystemTemplate: "<|start_header_id|>system<|end_header_id|>\n\n{system_message}<|eot_id|>",
		Roles:          [2]string{"user", "assistant"},
	},
}

// matchRules map lowercase model-id substrings to templates, first match wins.
var matchRules = []struct {
	substr   string
	template string
}{
	{"vicuna", "vicuna_v1.1"},
	{"llama-3-", "llama-3"},
	{"qwen", "chatml"},
	{"chatml", "chatml"},
	{"hermes", "chatml"},
}

// Lookup returns the template registered under name.
func Lookup(name string) (Template, bool) {
	t, ok := registered[name]
	return t, ok
}

// Names lists the registered template names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registered))
	for name := range registered {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForModel picks a template from the served model id.
func ForModel(modelID string) Template {
	id := strings.ToLower(modelID)
	for _, rule := range matchRules {
		if strings.Contains(id, rule.substr) {
			return registered[rule.template]
		}
	}
	return registered[DefaultName]
}

// Selector resolves the template for a model, honoring a forced template name.
type Selector struct {
	forced string
}

// NewSelector returns a Selector. An empty forced name selects by model id.
func NewSelector(forced string) (*Selector, error) {
	if forced != "" {
		if _, ok := registered[forced]; !ok {
			return nil, fmt.Errorf("unknown prompt template %q (known: %s)", forced, strings.Join(Names(), ", "))
		}
	}
	return &Selector{forced: forced}, nil
}

// For returns the template to use for modelID.
func (s *Selector) For(modelID string) Template {
	if s != nil && s.forced != "" {
		return registered[s.forced]
	}
	return ForModel(modelID)
}
