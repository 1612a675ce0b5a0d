package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"podforge/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStorage := filepath.Join(tempHome, ".local", "share", "podforge", "storage")
	if cfg.Paths.StorageDir != wantStorage {
		t.Fatalf("unexpected storage dir: got %q want %q", cfg.Paths.StorageDir, wantStorage)
	}
	if cfg.DatabasePath() != filepath.Join(tempHome, ".local", "share", "podforge", "podforge.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.API.Bind != "127.0.0.1:7487" {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}
	if cfg.API.BaseURL != "http://127.0.0.1:7487" {
		t.Fatalf("expected base url derived from bind, got %q", cfg.API.BaseURL)
	}
	if cfg.Pipeline.MaxTextLength != 50000 {
		t.Fatalf("unexpected max text length: %d", cfg.Pipeline.MaxTextLength)
	}
	if cfg.Pipeline.MusicGainDB != -20 {
		t.Fatalf("unexpected music gain: %v", cfg.Pipeline.MusicGainDB)
	}
	if cfg.SubscribePollInterval().Milliseconds() != 500 {
		t.Fatalf("unexpected poll interval: %v", cfg.SubscribePollInterval())
	}
	if cfg.Retention.FileDays != 7 || cfg.Retention.TaskDays != 7 || cfg.Retention.LogDays != 30 {
		t.Fatalf("unexpected retention windows: %+v", cfg.Retention)
	}
	if cfg.LLMConfigured() {
		t.Fatal("expected llm unconfigured without api key")
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	configPath := filepath.Join(dir, "podforge.toml")

	custom := config.Default()
	custom.Paths.StorageDir = filepath.Join(dir, "storage")
	custom.API.BaseURL = "https://pods.example.com/"
	custom.Pipeline.MaxTextLength = 1234
	custom.TTS.URL = "http://tts.local/v1/audio/speech/"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q to exist, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.StorageDir != filepath.Join(dir, "storage") {
		t.Fatalf("unexpected storage dir: %q", cfg.Paths.StorageDir)
	}
	if cfg.API.BaseURL != "https://pods.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.API.BaseURL)
	}
	if cfg.Pipeline.MaxTextLength != 1234 {
		t.Fatalf("unexpected max text length: %d", cfg.Pipeline.MaxTextLength)
	}
	if cfg.TTS.URL != "http://tts.local/v1/audio/speech" {
		t.Fatalf("unexpected tts url: %q", cfg.TTS.URL)
	}
	if !cfg.TTSConfigured() {
		t.Fatal("expected tts configured")
	}
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	configPath := filepath.Join(dir, "podforge.toml")

	custom := config.Default()
	custom.LLM.APIKey = "file-llm"
	custom.TTS.APIKey = "file-tts"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	t.Setenv("PODFORGE_LLM_API_KEY", "env-llm")
	t.Setenv("PODFORGE_TTS_API_KEY", "env-tts")
	t.Setenv("PODFORGE_API_TOKEN", "env-token")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.APIKey != "env-llm" {
		t.Errorf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.TTS.APIKey != "env-tts" {
		t.Errorf("expected TTS key from env, got %q", cfg.TTS.APIKey)
	}
	if cfg.API.Token != "env-token" {
		t.Errorf("expected API token from env, got %q", cfg.API.Token)
	}
}

func TestDotEnvFileNextToConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	configPath := filepath.Join(dir, "podforge.toml")
	if err := os.WriteFile(configPath, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PODFORGE_IMAGE_API_KEY=dotenv-image\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// Register cleanup for the variable godotenv will set, then clear it.
	t.Setenv("PODFORGE_IMAGE_API_KEY", "")
	os.Unsetenv("PODFORGE_IMAGE_API_KEY")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Logging.Level)
	}
	if cfg.Image.APIKey != "dotenv-image" {
		t.Fatalf("expected image key from .env, got %q", cfg.Image.APIKey)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "your_llm_api_key_here") {
		t.Fatalf("sample config missing placeholder LLM key: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.StorageDir, "podforge") {
		t.Fatalf("expected storage dir to contain podforge, got %q", cfg.Paths.StorageDir)
	}
	if cfg.Retention.Schedule != "@every 1h" {
		t.Fatalf("unexpected retention schedule: %q", cfg.Retention.Schedule)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.StageTimeoutSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive stage timeout")
	}

	cfg = config.Default()
	cfg.Pipeline.MusicGainDB = 3
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for positive music gain")
	}

	cfg = config.Default()
	cfg.API.BaseURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for relative base url")
	}

	cfg = config.Default()
	cfg.Pipeline.ScriptAttempts = 4
	cfg.LLM.RetryAttempts = 5
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "provider calls") {
		t.Fatalf("expected nested retry budget to be rejected, got %v", err)
	}

	cfg = config.Default()
	cfg.Retention.TaskDays = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative retention window")
	}

	cfg = config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}
