package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"podforge/internal/config"
	"podforge/internal/logging"
	"podforge/internal/services"
)

// Kind identifies where text comes from.
type Kind string

const (
	KindText Kind = "text"
	KindFile Kind = "file"
	KindURL  Kind = "url"
)

const (
	defaultMaxBytes     = 10 << 20
	defaultFetchTimeout = 30 * time.Second
	browserUserAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36 podforge/1.0"
)

// Source describes the input of one task.
type Source struct {
	Kind     Kind
	Text     string
	FilePath string
	URL      string
}

// Extractor reads sources into cleaned text.
type Extractor struct {
	maxBytes   int64
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the extractor.
type Option func(*Extractor)

// WithHTTPClient overrides the client used for URL sources.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Extractor) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithMaxBytes overrides the file and page size limit.
func WithMaxBytes(limit int64) Option {
	return func(e *Extractor) {
		if limit > 0 {
			e.maxBytes = limit
		}
	}
}

// New constructs an extractor from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Extractor{
		maxBytes:   defaultMaxBytes,
		httpClient: &http.Client{Timeout: defaultFetchTimeout},
		logger:     logger,
	}
	if cfg != nil {
		if limit := cfg.MaxFileSizeBytes(); limit > 0 {
			e.maxBytes = limit
		}
		if cfg.Pipeline.FetchTimeoutSeconds > 0 {
			e.httpClient = &http.Client{Timeout: time.Duration(cfg.Pipeline.FetchTimeoutSeconds) * time.Second}
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extraction is cleaned text plus what masking removed from it.
type Extraction struct {
	Text     string
	Phones   int
	Contacts int
}

// Extract returns the cleaned text of src. Empty output is an error.
func (e *Extractor) Extract(ctx context.Context, src Source) (string, error) {
	out, err := e.ExtractDetailed(ctx, src)
	return out.Text, err
}

// ExtractDetailed is Extract with the masked phone and contact counts.
func (e *Extractor) ExtractDetailed(ctx context.Context, src Source) (Extraction, error) {
	var (
		raw string
		err error
	)
	switch src.Kind {
	case KindText:
		raw = StripMarkup(src.Text)
	case KindFile:
		raw, err = e.fromFile(src.FilePath)
	case KindURL:
		raw, err = e.fromURL(ctx, src.URL)
	default:
		return Extraction{}, services.Wrap(services.ErrExtraction, "extract", "dispatch", fmt.Sprintf("unknown source kind %q", src.Kind), nil)
	}
	if err != nil {
		return Extraction{}, err
	}

	masked, phones, contacts := MaskPII(raw)
	if phones > 0 || contacts > 0 {
		e.logger.Info("personal data masked",
			logging.Int("phones", phones),
			logging.Int("contacts", contacts),
		)
	}
	text := Clean(masked)
	if strings.TrimSpace(text) == "" {
		return Extraction{}, services.Wrap(services.ErrExtraction, "extract", "clean", "no text found in source", nil)
	}
	return Extraction{Text: text, Phones: phones, Contacts: contacts}, nil
}
