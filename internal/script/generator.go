package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"podforge/internal/logging"
	"podforge/internal/services"
	"podforge/internal/textutil"
)

// Speaker labels.
const (
	SpeakerOne = "1"
	SpeakerTwo = "2"
)

// Formats.
const (
	FormatDialog    = "dialog"
	FormatMonologue = "monologue"
)

const (
	defaultAttempts = 3
	// offlineExcerpt bounds the single reply used when no LLM is configured.
	offlineExcerpt = 3000
)

// Utterance is one reply in the script.
type Utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Options shape the generated script.
type Options struct {
	Format       string
	Style        string
	Duration     string
	Presentation string
}

// Completer is the chat model used to write scripts.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Generator writes scripts through a Completer with bounded retries.
type Generator struct {
	completer Completer
	attempts  int
	logger    *slog.Logger
}

// NewGenerator builds a generator. A nil completer switches to offline mode,
// where the script is a single reply holding the start of the source text.
func NewGenerator(completer Completer, attempts int, logger *slog.Logger) *Generator {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{completer: completer, attempts: attempts, logger: logger}
}

// Generate returns the utterances for text.
func (g *Generator) Generate(ctx context.Context, text string, opts Options) ([]Utterance, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrGeneration, "script", "generate", "source text is empty", nil)
	}
	if g.completer == nil {
		logging.WarnWithContext(g.logger, "llm not configured; using source text as script", "script_offline",
			logging.String(logging.FieldErrorHint, "set llm.api_key to generate real scripts"),
			logging.String(logging.FieldImpact, "episode reads the source text verbatim"),
		)
		return []Utterance{{Speaker: SpeakerOne, Text: textutil.Truncate(text, offlineExcerpt)}}, nil
	}

	prompt := BuildPrompt(text, opts)
	monologue := IsMonologue(opts.Format)
	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrGeneration, "script", "generate", "cancelled", err)
		}
		raw, err := g.completer.Complete(ctx, SystemPrompt, prompt)
		if err == nil {
			if utterances := nonEmpty(Parse(raw, monologue)); len(utterances) > 0 {
				if attempt > 1 {
					g.logger.Info("script generated after retry",
						logging.Int("attempt", attempt),
						logging.String(logging.FieldEventType, "script_retry_recovered"),
					)
				}
				return utterances, nil
			}
			err = errors.New("model returned no usable replies")
		}
		lastErr = err
		if errors.Is(err, services.ErrConfiguration) {
			return nil, services.Wrap(services.ErrGeneration, "script", "generate", "llm rejected the configuration", err)
		}
		logging.WarnWithContext(g.logger, "script attempt failed", "script_attempt_failed",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", g.attempts),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check llm provider status and model name"),
			logging.String(logging.FieldImpact, "script generation will be retried"),
		)
	}
	return nil, services.Wrap(services.ErrGeneration, "script", "generate",
		fmt.Sprintf("failed after %d attempts", g.attempts), lastErr)
}

func nonEmpty(in []Utterance) []Utterance {
	out := in[:0]
	for _, u := range in {
		if strings.TrimSpace(u.Text) != "" {
			out = append(out, u)
		}
	}
	return out
}
