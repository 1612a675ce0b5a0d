// Package imagegen generates cover art through an OpenAI-compatible images
// endpoint.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"podforge/internal/config"
	"podforge/internal/logging"
	"podforge/internal/services"
	"podforge/internal/textutil"
)

const (
	defaultTimeout = 120 * time.Second
	coverSize      = "1024x1024"
	maxImageBytes  = 32 << 20
)

// Config captures the image provider settings.
type Config struct {
	APIKey         string
	URL            string
	Model          string
	Quality        string
	TimeoutSeconds int
}

// ConfigFromApp projects the application config onto the client config.
func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		APIKey:         cfg.Image.APIKey,
		URL:            cfg.Image.URL,
		Model:          cfg.Image.Model,
		Quality:        cfg.Image.Quality,
		TimeoutSeconds: cfg.Image.TimeoutSeconds,
	}
}

// Client requests square cover images.
type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
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

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs an image client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if strings.HasSuffix(endpoint, "/v1") {
		endpoint += "/images/generations"
	}
	c := &Client{
		cfg:        cfg,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether both endpoint and key are set.
func (c *Client) Configured() bool {
	return c.endpoint != "" && strings.TrimSpace(c.cfg.APIKey) != ""
}

// Generate returns image bytes for prompt.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if !c.Configured() {
		return nil, services.Wrap(services.ErrCover, "music_cover", "generate", "image api not configured", nil)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, services.Wrap(services.ErrCover, "music_cover", "generate", "empty prompt", nil)
	}

	payload := map[string]any{
		"prompt":          prompt,
		"n":               1,
		"size":            coverSize,
		"response_format": "b64_json",
	}
	model := strings.TrimSpace(c.cfg.Model)
	if model != "" {
		payload["model"] = model
	}
	quality := strings.ToLower(strings.TrimSpace(c.cfg.Quality))
	if quality == "" && strings.Contains(strings.ToLower(model), "gpt-image-1.5") {
		quality = "low"
	}
	if quality != "" {
		payload["quality"] = quality
	}

	status, contentType, body, err := c.post(ctx, payload)
	if err != nil {
		return nil, services.Wrap(services.ErrCover, "music_cover", "generate", "request failed", err)
	}
	// Proxies reject unknown models or response_format with a 400; drop the
	// offending field and try again.
	for _, field := range []string{"model", "response_format"} {
		if status != http.StatusBadRequest {
			break
		}
		if _, ok := payload[field]; !ok || !strings.Contains(strings.ToLower(string(body)), field) {
			continue
		}
		c.logger.Info("image api rejected field; retrying without it",
			logging.String("field", field),
			logging.String("body", textutil.Excerpt(string(body), 200)),
		)
		delete(payload, field)
		status, contentType, body, err = c.post(ctx, payload)
		if err != nil {
			return nil, services.Wrap(services.ErrCover, "music_cover", "generate", "retry failed", err)
		}
	}
	if status >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrCover, "music_cover", "generate",
			fmt.Sprintf("http %d: %s", status, textutil.Excerpt(string(body), 300)), nil)
	}
	if !strings.Contains(strings.ToLower(contentType), "application/json") {
		if len(body) == 0 {
			return nil, services.Wrap(services.ErrCover, "music_cover", "generate", "empty image response", nil)
		}
		return body, nil
	}
	image, err := c.decode(ctx, body)
	if err != nil {
		return nil, services.Wrap(services.ErrCover, "music_cover", "decode", "unusable image response", err)
	}
	return image, nil
}

func (c *Client) post(ctx context.Context, payload map[string]any) (int, string, []byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, "", nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return 0, "", nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.cfg.APIKey))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return 0, "", nil, err
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), body, nil
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
	B64JSON string `json:"b64_json"`
	Image   string `json:"image"`
	URL     string `json:"url"`
}

func (c *Client) decode(ctx context.Context, body []byte) ([]byte, error) {
	var parsed imageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	var encoded, link string
	if len(parsed.Data) > 0 {
		encoded = parsed.Data[0].B64JSON
		link = parsed.Data[0].URL
	}
	if encoded == "" {
		encoded = parsed.B64JSON
	}
	if encoded == "" {
		encoded = parsed.Image
	}
	if encoded != "" {
		return base64.StdEncoding.DecodeString(encoded)
	}
	if link == "" {
		link = parsed.URL
	}
	if link == "" {
		return nil, errors.New("response has neither data nor url")
	}
	return c.download(ctx, link)
}

func (c *Client) download(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: http %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
}
