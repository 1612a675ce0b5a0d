package logs_test

import (
	"testing"

	"podforge/internal/logs"
)

func TestFilterConsoleLines(t *testing.T) {
	lines := []string{
		"2026-01-02T03:04:05Z INFO pipeline: [task 0f3a9c21 tts] synthesized reply reply=1",
		"2026-01-02T03:04:06Z DEBUG pipeline: [task 0f3a9c21 tts] cache hit",
		"2026-01-02T03:04:07Z WARN workflow: [task 77aa0000] task failed",
		"2026-01-02T03:04:08Z INFO daemon: daemon started",
	}

	got := logs.Filter{TaskID: "0f3a9c21-1111-2222-3333-444455556666"}.Apply(lines)
	if len(got) != 2 {
		t.Fatalf("expected two lines for task, got %v", got)
	}

	got = logs.Filter{MinLevel: "warn"}.Apply(lines)
	if len(got) != 1 || got[0] != lines[2] {
		t.Fatalf("expected only warn line, got %v", got)
	}

	got = logs.Filter{TaskID: "0f3a", MinLevel: "info"}.Apply(lines)
	if len(got) != 1 || got[0] != lines[0] {
		t.Fatalf("expected info line for short id, got %v", got)
	}
}

func TestFilterJSONLines(t *testing.T) {
	lines := []string{
		`{"ts":"2026-01-02T03:04:05Z","level":"INFO","msg":"stage started","task_id":"abc"}`,
		`{"ts":"2026-01-02T03:04:06Z","level":"ERROR","msg":"stage failed","task_id":"def"}`,
	}
	got := logs.Filter{TaskID: "def"}.Apply(lines)
	if len(got) != 1 || got[0] != lines[1] {
		t.Fatalf("unexpected json filter result %v", got)
	}
	if len(logs.Filter{}.Apply(lines)) != 2 {
		t.Fatal("empty filter should keep every line")
	}
}
