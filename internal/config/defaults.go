package config

const (
	defaultConfigPath             = "~/.config/podforge/config.toml"
	defaultDataDir                = "~/.local/share/podforge"
	defaultStorageDir             = "~/.local/share/podforge/storage"
	defaultUploadDir              = "~/.local/share/podforge/uploads"
	defaultMusicDir               = "~/.local/share/podforge/music"
	defaultVoiceSamplesDir        = "~/.local/share/podforge/voice_samples"
	defaultLogDir                 = "~/.local/share/podforge/logs"
	defaultAPIBind                = "127.0.0.1:7487"
	defaultLLMBaseURL             = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel               = "gpt-4o-mini"
	defaultLLMTitle               = "podforge"
	defaultLLMTimeoutSeconds      = 120
	defaultLLMRetryAttempts       = 5
	defaultTTSVoice               = "male_1"
	defaultTTSTimeoutSeconds      = 120
	defaultImageTimeoutSeconds    = 120
	defaultMaxTextLength          = 50000
	defaultMaxFileSizeMB          = 10
	defaultMusicGainDB            = -20
	defaultFFmpegBinary           = "ffmpeg"
	defaultStageTimeoutSeconds    = 600
	defaultScriptAttempts         = 3
	defaultFetchTimeoutSeconds    = 30
	defaultSubscribePollMS        = 500
	defaultShutdownTimeoutSeconds = 10
	defaultFileRetentionDays      = 7
	defaultTaskRetentionDays      = 7
	defaultLogRetentionDays       = 30
	defaultRetentionSchedule      = "@every 1h"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultNotifyTimeout          = 10
)

// MaxScriptProviderCalls bounds pipeline.script_attempts times
// llm.retry_attempts, the most chat calls one script may cost.
const MaxScriptProviderCalls = 15

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:         defaultDataDir,
			StorageDir:      defaultStorageDir,
			UploadDir:       defaultUploadDir,
			MusicDir:        defaultMusicDir,
			VoiceSamplesDir: defaultVoiceSamplesDir,
			LogDir:          defaultLogDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			RetryAttempts:  defaultLLMRetryAttempts,
		},
		TTS: TTS{
			DefaultVoice:   defaultTTSVoice,
			TimeoutSeconds: defaultTTSTimeoutSeconds,
		},
		Image: Image{
			TimeoutSeconds: defaultImageTimeoutSeconds,
		},
		Pipeline: Pipeline{
			MaxTextLength:       defaultMaxTextLength,
			MaxFileSizeMB:       defaultMaxFileSizeMB,
			MusicGainDB:         defaultMusicGainDB,
			FFmpegBinary:        defaultFFmpegBinary,
			StageTimeoutSeconds: defaultStageTimeoutSeconds,
			ScriptAttempts:      defaultScriptAttempts,
			FetchTimeoutSeconds: defaultFetchTimeoutSeconds,
		},
		Workflow: Workflow{
			SubscribePollIntervalMS: defaultSubscribePollMS,
			ShutdownTimeoutSeconds:  defaultShutdownTimeoutSeconds,
		},
		Retention: Retention{
			FileDays: defaultFileRetentionDays,
			TaskDays: defaultTaskRetentionDays,
			LogDays:  defaultLogRetentionDays,
			Schedule: defaultRetentionSchedule,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			TaskCompleted:  true,
			TaskFailed:     true,
		},
	}
}
