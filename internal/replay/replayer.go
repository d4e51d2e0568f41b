package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aristath/datagen/internal/backend"
	"github.com/aristath/datagen/internal/dataset"
	"github.com/aristath/datagen/internal/prompt"
)

var errNoModels = errors.New("backend lists no models")

// Replayer runs one sample against one backend.
type Replayer struct {
	params    Params
	templates *prompt.Selector
	logger    *slog.Logger
}

// New creates a Replayer. templates may be nil in chat mode.
func New(params Params, templates *prompt.Selector, logger *slog.Logger) *Replayer {
	if logger == nil {
		logger = slog.Default()
	}
	if templates == nil {
		templates, _ = prompt.NewSelector("")
	}
	return &Replayer{params: params, templates: templates, logger: logger}
}

// Params returns the replay settings.
func (r *Replayer) Params() Params { return r.params }

// Replay generates the output record for sample. It never returns an error:
// failures are classified in the Result.
func (r *Replayer) Replay(ctx context.Context, b backend.Backend, sample dataset.Sample) Result {
	start := time.Now()

	res := r.replay(ctx, b, sample)
	res.Duration = time.Since(start)
	return res
}

func (r *Replayer) replay(ctx context.Context, b backend.Backend, sample dataset.Sample) Result {
	models, err := b.ListModels(ctx)
	if err == nil && len(models) == 0 {
		err = errNoModels
	}
	if err != nil {
		return Result{
			Outcome: OutcomeBackendUnavailable,
			Stop:    StopError,
			Err:     fmt.Errorf("list models on %s: %w", b.Address(), err),
		}
	}
	model := models[0]

	var res Result
	if r.params.Mode == ModeChat {
		res = r.chat(ctx, b, model, sample.Conversations)
	} else {
		res = r.complete(ctx, b, model, sample.Conversations)
	}
	res.Model = model
	return res
}

// chat replays every user turn, rebuilding the assistant side one call at a time.
func (r *Replayer) chat(ctx context.Context, b backend.Backend, model string, turns []dataset.Turn) Result {
	var history []backend.Message
	var output []dataset.Turn

	if len(turns) > 0 && turns[0].From == dataset.SpeakerSystem {
		history = append(history, backend.Message{Role: backend.RoleSystem, Content: turns[0].Value})
		output = append(output, turns[0])
		turns = turns[1:]
	}

	pairs := 0
	stop := StopEnd
	var callErr error

	for i := 0; i < len(turns); i += 2 {
		turn := turns[i]
		if turn.From != dataset.SpeakerUser {
			return Result{
				Outcome: OutcomeMalformed,
				Stop:    StopError,
				Pairs:   pairs,
				Err:     fmt.Errorf("turn %d: expected %q, got %q", i, dataset.SpeakerUser, turn.From),
			}
		}
		history = append(history, backend.Message{Role: backend.RoleUser, Content: turn.Value})

		reply, err := b.Chat(ctx, backend.ChatRequest{
			Model:       model,
			Messages:    history,
			MaxTokens:   r.params.MaxTokens,
			Temperature: r.params.Temperature,
		})
		if err != nil {
			stop, callErr = StopError, err
			break
		}
		if reply.Truncated() {
			stop = StopTruncated
			break
		}

		answer := strings.TrimSpace(reply.Text)
		output = append(output, turn, dataset.Turn{From: dataset.SpeakerAssistant, Value: answer})
		history = append(history, backend.Message{Role: backend.RoleAssistant, Content: answer})
		pairs++
	}

	// A leading system turn alone still makes a record
	if len(output) == 0 {
		return Result{Outcome: OutcomeEmpty, Stop: stop, Err: callErr}
	}

	outcome := OutcomeCompleted
	if stop != StopEnd {
		outcome = OutcomePartial
	}
	return Result{
		Outcome: outcome,
		Stop:    stop,
		Record:  &Record{Conversations: output},
		Pairs:   pairs,
		Err:     callErr,
	}
}

// complete renders the first user turn into a prompt and completes it in one raw call.
func (r *Replayer) complete(ctx context.Context, b backend.Backend, model string, turns []dataset.Turn) Result {
	tmpl := r.templates.For(model)

	if len(turns) > 0 && turns[0].From == dataset.SpeakerSystem {
		tmpl = tmpl.WithSystem(turns[0].Value)
		turns = turns[1:]
	}
	if len(turns) == 0 || turns[0].From != dataset.SpeakerUser {
		got := dataset.Speaker("nothing")
		if len(turns) > 0 {
			got = turns[0].From
		}
		return Result{
			Outcome: OutcomeMalformed,
			Stop:    StopError,
			Err:     fmt.Errorf("first turn: expected %q, got %q", dataset.SpeakerUser, got),
		}
	}

	text := tmpl.Prompt(turns[0].Value)
	reply, err := b.Complete(ctx, backend.CompletionRequest{
		Model:       model,
		Prompt:      text,
		MaxTokens:   r.params.MaxTokens,
		Temperature: r.params.Temperature,
		Raw:         backend.VerbatimTokens(),
	})
	if err != nil {
		r.logger.Error("completion failed", "backend", b.Address(), "template", tmpl.Name, "error", err, "prompt", text)
		return Result{Outcome: OutcomeFailed, Stop: StopError, Err: err}
	}

	stop := StopEnd
	if reply.Truncated() {
		stop = StopTruncated
	}
	return Result{
		Outcome: OutcomeCompleted,
		Stop:    stop,
		Record:  &Record{Text: text + strings.TrimSpace(reply.Text)},
		Pairs:   1,
	}
}
