package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"podforge/internal/config"
	"podforge/internal/services"
	"podforge/internal/textutil"
)

const (
	defaultTimeout = 60 * time.Second
	maxInputRunes  = 5000
	maxAudioBytes  = 64 << 20
)

// Config captures the speech provider settings.
type Config struct {
	APIKey         string
	URL            string
	FallbackURL    string
	Model          string
	VoicesURL      string
	TimeoutSeconds int
}

// ConfigFromApp projects the application config onto the client config.
func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		APIKey:         cfg.TTS.APIKey,
		URL:            cfg.TTS.URL,
		FallbackURL:    cfg.TTS.FallbackURL,
		Model:          cfg.TTS.Model,
		VoicesURL:      cfg.TTS.VoicesURL,
		TimeoutSeconds: cfg.TTS.TimeoutSeconds,
	}
}

// Client synthesizes speech over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a speech client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			URL:            strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
			FallbackURL:    strings.TrimRight(strings.TrimSpace(cfg.FallbackURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			VoicesURL:      strings.TrimSpace(cfg.VoicesURL),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured synthesis model, if any.
func (c *Client) Model() string { return c.cfg.Model }

// Configured reports whether at least one synthesis URL is set.
func (c *Client) Configured() bool {
	return c.cfg.URL != "" || c.cfg.FallbackURL != ""
}

type synthesisRequest struct {
	Input string   `json:"input"`
	Voice string   `json:"voice"`
	Model string   `json:"model,omitempty"`
	Speed *float64 `json:"speed,omitempty"`
}

type synthesisJSON struct {
	Audio string `json:"audio"`
	Data  string `json:"data"`
}

// Synthesize returns encoded audio for text spoken by voice at speed.
func (c *Client) Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrSynthesis, "tts", "synthesize", "empty text", nil)
	}
	urls := c.synthesisURLs()
	if len(urls) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "tts", "synthesize", "no speech url configured", nil)
	}

	payload := synthesisRequest{
		Input: textutil.Truncate(text, maxInputRunes),
		Voice: voice,
		Model: c.cfg.Model,
	}
	if speed != 1.0 && speed > 0 {
		s := speed
		payload.Speed = &s
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode speech request: %w", err)
	}

	var errs []error
	for _, endpoint := range urls {
		audio, err := c.post(ctx, endpoint, body)
		if err == nil {
			return audio, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", endpoint, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, services.Wrap(services.ErrSynthesis, "tts", "synthesize",
		fmt.Sprintf("all %d speech urls failed", len(urls)), errors.Join(errs...))
}

func (c *Client) synthesisURLs() []string {
	var urls []string
	for _, u := range []string{c.cfg.URL, c.cfg.FallbackURL} {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, textutil.Excerpt(string(data), 200))
	}
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "application/json") {
		var decoded synthesisJSON
		if err := json.Unmarshal(data, &decoded); err != nil {
			return nil, fmt.Errorf("decode json audio: %w", err)
		}
		encoded := decoded.Audio
		if encoded == "" {
			encoded = decoded.Data
		}
		if encoded == "" {
			return nil, errors.New("json response without audio or data field")
		}
		audio, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode base64 audio: %w", err)
		}
		return audio, nil
	}
	if len(data) == 0 {
		return nil, errors.New("empty audio response")
	}
	return data, nil
}
