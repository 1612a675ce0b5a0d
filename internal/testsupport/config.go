package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"podforge/internal/config"
)

// ConfigOption adjusts the config built by NewConfig.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig returns a default config whose directories all live under a
// per-test temp dir, with a loopback bind and a fast subscribe poll.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	for dir, field := range map[string]*string{
		"data":          &cfg.Paths.DataDir,
		"storage":       &cfg.Paths.StorageDir,
		"uploads":       &cfg.Paths.UploadDir,
		"music":         &cfg.Paths.MusicDir,
		"voice_samples": &cfg.Paths.VoiceSamplesDir,
		"logs":          &cfg.Paths.LogDir,
	} {
		*field = filepath.Join(base, dir)
	}
	cfg.API.Bind = "127.0.0.1:0"
	cfg.API.BaseURL = "http://podforge.test"
	cfg.Workflow.SubscribePollIntervalMS = 20

	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	return &cfg
}

// WithToken sets the API bearer token.
func WithToken(token string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.API.Token = token
	}
}

// WithStageTimeout overrides the per-stage timeout in seconds.
func WithStageTimeout(seconds int) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Pipeline.StageTimeoutSeconds = seconds
	}
}

// WithStubbedBinaries puts no-op executables named names (ffmpeg when empty)
// at the front of PATH for the duration of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, base string, _ *config.Config) {
		if len(names) == 0 {
			names = []string{"ffmpeg"}
		}
		binDir := filepath.Join(base, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the temp root behind a config from NewConfig.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
