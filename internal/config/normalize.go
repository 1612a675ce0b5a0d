package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeLLM()
	c.normalizeTTS()
	c.normalizeImage()
	c.normalizePipeline()
	c.normalizeRetention()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key   string
		value *string
		def   string
	}{
		{"paths.data_dir", &c.Paths.DataDir, defaultDataDir},
		{"paths.storage_dir", &c.Paths.StorageDir, defaultStorageDir},
		{"paths.upload_dir", &c.Paths.UploadDir, defaultUploadDir},
		{"paths.music_dir", &c.Paths.MusicDir, defaultMusicDir},
		{"paths.voice_samples_dir", &c.Paths.VoiceSamplesDir, defaultVoiceSamplesDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.def
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	if value, ok := lookupEnv("PODFORGE_API_TOKEN"); ok {
		c.API.Token = value
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if value, ok := lookupEnv("PODFORGE_BASE_URL", "BASE_URL"); ok {
		c.API.BaseURL = value
	}
	c.API.BaseURL = strings.TrimRight(strings.TrimSpace(c.API.BaseURL), "/")
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://" + c.API.Bind
	}
}

func (c *Config) normalizeLLM() {
	if value, ok := lookupEnv("PODFORGE_LLM_API_KEY", "OPENAI_API_KEY"); ok {
		c.LLM.APIKey = value
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.RetryAttempts <= 0 {
		c.LLM.RetryAttempts = defaultLLMRetryAttempts
	}
}

func (c *Config) normalizeTTS() {
	if value, ok := lookupEnv("PODFORGE_TTS_API_KEY"); ok {
		c.TTS.APIKey = value
	}
	c.TTS.APIKey = strings.TrimSpace(c.TTS.APIKey)
	c.TTS.URL = strings.TrimRight(strings.TrimSpace(c.TTS.URL), "/")
	c.TTS.FallbackURL = strings.TrimRight(strings.TrimSpace(c.TTS.FallbackURL), "/")
	c.TTS.VoicesURL = strings.TrimSpace(c.TTS.VoicesURL)
	c.TTS.Model = strings.TrimSpace(c.TTS.Model)
	c.TTS.DefaultVoice = strings.TrimSpace(c.TTS.DefaultVoice)
	if c.TTS.DefaultVoice == "" {
		c.TTS.DefaultVoice = defaultTTSVoice
	}
	if c.TTS.TimeoutSeconds <= 0 {
		c.TTS.TimeoutSeconds = defaultTTSTimeoutSeconds
	}
}

func (c *Config) normalizeImage() {
	if value, ok := lookupEnv("PODFORGE_IMAGE_API_KEY"); ok {
		c.Image.APIKey = value
	}
	c.Image.APIKey = strings.TrimSpace(c.Image.APIKey)
	c.Image.URL = strings.TrimSpace(c.Image.URL)
	c.Image.Model = strings.TrimSpace(c.Image.Model)
	c.Image.Quality = strings.TrimSpace(c.Image.Quality)
	if c.Image.TimeoutSeconds <= 0 {
		c.Image.TimeoutSeconds = defaultImageTimeoutSeconds
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.MaxTextLength <= 0 {
		c.Pipeline.MaxTextLength = defaultMaxTextLength
	}
	if c.Pipeline.MaxFileSizeMB <= 0 {
		c.Pipeline.MaxFileSizeMB = defaultMaxFileSizeMB
	}
	c.Pipeline.FFmpegBinary = strings.TrimSpace(c.Pipeline.FFmpegBinary)
	if c.Pipeline.FFmpegBinary == "" {
		c.Pipeline.FFmpegBinary = defaultFFmpegBinary
	}
	if c.Pipeline.ScriptAttempts <= 0 {
		c.Pipeline.ScriptAttempts = defaultScriptAttempts
	}
	if c.Pipeline.FetchTimeoutSeconds <= 0 {
		c.Pipeline.FetchTimeoutSeconds = defaultFetchTimeoutSeconds
	}
}

func (c *Config) normalizeRetention() {
	c.Retention.Schedule = strings.TrimSpace(c.Retention.Schedule)
	if c.Retention.Schedule == "" {
		c.Retention.Schedule = defaultRetentionSchedule
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
