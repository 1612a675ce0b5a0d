package script_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"podforge/internal/script"
	"podforge/internal/services"
)

type flakyCompleter struct {
	failures int
	calls    int
	reply    string
}

func (f *flakyCompleter) Complete(context.Context, string, string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("provider unavailable")
	}
	return f.reply, nil
}

func TestParseRecognisesSpeakerPrefixes(t *testing.T) {
	raw := strings.Join([]string{
		"Host 1: Welcome to the show.",
		"Today we talk about Go.",
		"**Host 2:** Sounds great!",
		"Speaker 1 - Let's start.",
		"B: Sure.",
		"1. Numbered reply",
	}, "\n")
	got := script.Parse(raw, false)
	want := []script.Utterance{
		{Speaker: "1", Text: "Welcome to the show. Today we talk about Go."},
		{Speaker: "2", Text: "Sounds great!"},
		{Speaker: "1", Text: "Let's start."},
		{Speaker: "2", Text: "Sure."},
		{Speaker: "1", Text: "Numbered reply"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d utterances, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("utterance %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseAlternatesUnnumberedHosts(t *testing.T) {
	got := script.Parse("Host: one\nHost: two\nHost: three", false)
	if len(got) != 3 || got[0].Speaker != "1" || got[1].Speaker != "2" || got[2].Speaker != "1" {
		t.Fatalf("unexpected speakers: %+v", got)
	}
}

func TestParseMonologueForcesSpeakerOne(t *testing.T) {
	got := script.Parse("Host 2: only me\nHost 2: still me", true)
	for _, u := range got {
		if u.Speaker != "1" {
			t.Fatalf("expected speaker 1, got %+v", got)
		}
	}
}

func TestParseFallsBackToRawText(t *testing.T) {
	raw := strings.Repeat("x", 6000)
	got := script.Parse(raw, false)
	if len(got) != 1 || got[0].Speaker != "1" || len(got[0].Text) != 5000 {
		t.Fatalf("unexpected fallback: %d utterances", len(got))
	}
	if script.Parse("   ", false) != nil {
		t.Fatal("blank input should parse to nil")
	}
}

func TestBuildPromptUsesOptions(t *testing.T) {
	dialog := script.BuildPrompt("Body text", script.Options{Format: "dialog", Style: "energetic", Duration: "short", Presentation: "educational"})
	for _, fragment := range []string{"Host 1", "energetic and upbeat", "3-5 minutes", "as a lesson", "Body text"} {
		if !strings.Contains(dialog, fragment) {
			t.Fatalf("dialog prompt missing %q", fragment)
		}
	}
	mono := script.BuildPrompt(strings.Repeat("я", 20000), script.Options{Format: "monologue", Style: "custom tone"})
	if !strings.Contains(mono, "single-host") || !strings.Contains(mono, "custom tone") {
		t.Fatalf("unexpected monologue prompt: %.200s", mono)
	}
	if strings.Count(mono, "я") != 15000 {
		t.Fatalf("source not capped: %d", strings.Count(mono, "я"))
	}
}

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	completer := &flakyCompleter{failures: 2, reply: "Host 1: Hi\nHost 2: Hello"}
	gen := script.NewGenerator(completer, 3, nil)
	got, err := gen.Generate(context.Background(), "source", script.Options{Format: "dialog"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if completer.calls != 3 || len(got) != 2 {
		t.Fatalf("calls=%d utterances=%d", completer.calls, len(got))
	}
}

func TestGenerateExhaustsAttempts(t *testing.T) {
	completer := &flakyCompleter{failures: 10}
	gen := script.NewGenerator(completer, 3, nil)
	_, err := gen.Generate(context.Background(), "source", script.Options{})
	if !errors.Is(err, services.ErrGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if completer.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", completer.calls)
	}
}

type rejectingCompleter struct{ calls int }

func (r *rejectingCompleter) Complete(context.Context, string, string) (string, error) {
	r.calls++
	return "", fmt.Errorf("%w: llm request: http 401", services.ErrConfiguration)
}

func TestGenerateStopsOnConfigurationError(t *testing.T) {
	completer := &rejectingCompleter{}
	gen := script.NewGenerator(completer, 3, nil)
	_, err := gen.Generate(context.Background(), "source", script.Options{})
	if !errors.Is(err, services.ErrGeneration) || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected generation and configuration markers, got %v", err)
	}
	if completer.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", completer.calls)
	}
}

func TestGenerateOfflineUsesSourceText(t *testing.T) {
	gen := script.NewGenerator(nil, 3, nil)
	text := strings.Repeat("a", 4000)
	got, err := gen.Generate(context.Background(), text, script.Options{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(got) != 1 || len(got[0].Text) != 3000 {
		t.Fatalf("unexpected offline script: %d utterances", len(got))
	}
	if _, err := gen.Generate(context.Background(), "  ", script.Options{}); !errors.Is(err, services.ErrGeneration) {
		t.Fatalf("expected error for empty text, got %v", err)
	}
}
