package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir         string `toml:"data_dir"`
	StorageDir      string `toml:"storage_dir"`
	UploadDir       string `toml:"upload_dir"`
	MusicDir        string `toml:"music_dir"`
	VoiceSamplesDir string `toml:"voice_samples_dir"`
	LogDir          string `toml:"log_dir"`
}

// API contains HTTP listener settings and the public base URL used in feeds.
type API struct {
	Bind    string `toml:"bind"`
	Token   string `toml:"token"`
	BaseURL string `toml:"base_url"`
}

// LLM contains chat completion settings used for script generation.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryAttempts  int    `toml:"retry_attempts"`
}

// TTS contains speech synthesis settings.
type TTS struct {
	APIKey         string `toml:"api_key"`
	URL            string `toml:"url"`
	FallbackURL    string `toml:"fallback_url"`
	Model          string `toml:"model"`
	VoicesURL      string `toml:"voices_url"`
	DefaultVoice   string `toml:"default_voice"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Image contains cover generation settings.
type Image struct {
	APIKey         string `toml:"api_key"`
	URL            string `toml:"url"`
	Model          string `toml:"model"`
	Quality        string `toml:"quality"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Pipeline contains limits and knobs applied while a task runs.
type Pipeline struct {
	MaxTextLength       int     `toml:"max_text_length"`
	MaxFileSizeMB       int     `toml:"max_file_size_mb"`
	MusicGainDB         float64 `toml:"music_gain_db"`
	FFmpegBinary        string  `toml:"ffmpeg_binary"`
	StageTimeoutSeconds int     `toml:"stage_timeout_seconds"`
	ScriptAttempts      int     `toml:"script_attempts"`
	FetchTimeoutSeconds int     `toml:"fetch_timeout_seconds"`
}

// Workflow contains worker and subscriber timing.
type Workflow struct {
	SubscribePollIntervalMS int `toml:"subscribe_poll_interval_ms"`
	ShutdownTimeoutSeconds  int `toml:"shutdown_timeout_seconds"`
}

// Retention contains the retention sweep windows.
type Retention struct {
	FileDays int    `toml:"file_days"`
	TaskDays int    `toml:"task_days"`
	LogDays  int    `toml:"log_days"`
	Schedule string `toml:"schedule"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	TaskCompleted  bool   `toml:"task_completed"`
	TaskFailed     bool   `toml:"task_failed"`
}

// Config encapsulates all configuration values for podforge.
//
// Configuration sections by subsystem:
//   - Paths: data, storage, upload, music, voice sample and log directories
//   - API: HTTP bind address, bearer token, public base URL
//   - LLM, TTS, Image: provider connections for the pipeline collaborators
//   - Pipeline: text limits, mixing gain, stage timeouts
//   - Workflow: subscription polling and shutdown timing
//   - Retention: sweep windows and schedule
//   - Logging: log format and level
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	LLM           LLM           `toml:"llm"`
	TTS           TTS           `toml:"tts"`
	Image         Image         `toml:"image"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Workflow      Workflow      `toml:"workflow"`
	Retention     Retention     `toml:"retention"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	loadEnvFiles(resolvedPath)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("podforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The music and voice sample directories are optional inputs and are
// created on a best-effort basis.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StorageDir, c.Paths.UploadDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, dir := range []string{c.Paths.MusicDir, c.Paths.VoiceSamplesDir} {
		if strings.TrimSpace(dir) != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "podforge.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "podforge.lock")
}

// StageTimeout returns the upper bound applied to each pipeline stage.
func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Pipeline.StageTimeoutSeconds) * time.Second
}

// SubscribePollInterval returns how often push subscribers re-read task state.
func (c *Config) SubscribePollInterval() time.Duration {
	return time.Duration(c.Workflow.SubscribePollIntervalMS) * time.Millisecond
}

// MaxFileSizeBytes returns the upload size limit for document sources.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Pipeline.MaxFileSizeMB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfigured reports whether script generation can reach a provider.
func (c *Config) LLMConfigured() bool {
	return strings.TrimSpace(c.LLM.APIKey) != "" && strings.TrimSpace(c.LLM.BaseURL) != ""
}

// TTSConfigured reports whether a speech provider is configured.
func (c *Config) TTSConfigured() bool {
	return strings.TrimSpace(c.TTS.URL) != "" || strings.TrimSpace(c.TTS.FallbackURL) != ""
}

// ImageConfigured reports whether a cover provider is configured.
func (c *Config) ImageConfigured() bool {
	return strings.TrimSpace(c.Image.URL) != ""
}
