package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	if strings.TrimSpace(c.API.Bind) == "" {
		return errors.New("api.bind must be set")
	}
	if base := strings.TrimSpace(c.API.BaseURL); base != "" {
		parsed, err := url.Parse(base)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("api.base_url must be an absolute URL, got %q", base)
		}
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.MusicGainDB > 0 {
		return errors.New("pipeline.music_gain_db must be zero or negative (attenuation under voice)")
	}
	if c.Pipeline.MusicGainDB < -60 {
		return errors.New("pipeline.music_gain_db must not be below -60")
	}
	// Each script attempt is one llm call that may itself be retried.
	if calls := c.Pipeline.ScriptAttempts * c.LLM.RetryAttempts; calls > MaxScriptProviderCalls {
		return fmt.Errorf("pipeline.script_attempts x llm.retry_attempts allows %d provider calls per script; the limit is %d",
			calls, MaxScriptProviderCalls)
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"pipeline.stage_timeout_seconds":      c.Pipeline.StageTimeoutSeconds,
		"workflow.subscribe_poll_interval_ms": c.Workflow.SubscribePollIntervalMS,
		"workflow.shutdown_timeout_seconds":   c.Workflow.ShutdownTimeoutSeconds,
		"notifications.request_timeout":       c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateRetention() error {
	if c.Retention.FileDays < 0 || c.Retention.TaskDays < 0 || c.Retention.LogDays < 0 {
		return errors.New("retention windows must not be negative (0 disables a window)")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
