package api

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"podforge/internal/extract"
	"podforge/internal/logging"
	"podforge/internal/script"
	"podforge/internal/services"
)

// TextExtractor reads a source into cleaned text with masking counts.
type TextExtractor interface {
	ExtractDetailed(ctx context.Context, src extract.Source) (extract.Extraction, error)
}

// ScriptWriter turns text into a script.
type ScriptWriter interface {
	Generate(ctx context.Context, text string, opts script.Options) ([]script.Utterance, error)
}

// Previews back the extract and script endpoints, which run one pipeline
// step inline without creating a task.
type Previews struct {
	Extractor     TextExtractor
	Scripts       ScriptWriter
	MaxTextLength int
}

// WithPreviews enables Extract and Script.
func (s *Service) WithPreviews(p Previews) *Service {
	s.previews = p
	return s
}

// Extract returns the text src would feed into a task.
func (s *Service) Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
	if s.previews.Extractor == nil {
		return nil, services.Wrap(services.ErrConfiguration, "extract", "preview", "text extraction is not available", nil)
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, services.Wrap(services.ErrValidation, "", "extract", describeValidation(err), nil)
	}
	src := extract.Source{
		Kind:     extract.Kind(req.Source),
		Text:     req.Text,
		FilePath: req.FilePath,
		URL:      strings.TrimSpace(req.URL),
	}
	if src.Kind == extract.KindURL && !isHTTPURL(src.URL) {
		return nil, services.Wrap(services.ErrValidation, "", "extract", "url must be an absolute http(s) address", nil)
	}

	out, err := s.previews.Extractor.ExtractDetailed(ctx, src)
	if err != nil {
		return nil, err
	}
	length := utf8.RuneCountInString(out.Text)
	if err := s.checkLength(length, "extract"); err != nil {
		return nil, err
	}
	removed := map[string]int{}
	if out.Phones > 0 {
		removed["phones"] = out.Phones
	}
	if out.Contacts > 0 {
		removed["contacts"] = out.Contacts
	}
	s.logger.Info("extract preview served",
		logging.String("source", req.Source),
		logging.Int("length", length),
		logging.String(logging.FieldEventType, "extract_preview"),
	)
	return &ExtractResponse{Text: out.Text, Length: length, Removed: removed}, nil
}

// Script generates a script for req.Text. Format, style, duration, and
// presentation default the way task submissions do.
func (s *Service) Script(ctx context.Context, req ScriptRequest) (*ScriptResponse, error) {
	if s.previews.Scripts == nil {
		return nil, services.Wrap(services.ErrConfiguration, "script", "preview", "script generation is not available", nil)
	}
	req.Text = strings.TrimSpace(req.Text)
	if err := s.validate.Struct(req); err != nil {
		return nil, services.Wrap(services.ErrValidation, "", "script", describeValidation(err), nil)
	}
	if err := s.checkLength(utf8.RuneCountInString(req.Text), "script"); err != nil {
		return nil, err
	}

	utterances, err := s.previews.Scripts.Generate(ctx, req.Text, script.Options{
		Format:       req.Format,
		Style:        req.Style,
		Duration:     req.Duration,
		Presentation: req.Presentation,
	})
	if err != nil {
		return nil, err
	}
	lines := make([]ScriptLine, 0, len(utterances))
	for _, u := range utterances {
		lines = append(lines, ScriptLine{Speaker: u.Speaker, Text: u.Text})
	}
	s.logger.Info("script preview served",
		logging.Int("replies", len(lines)),
		logging.String(logging.FieldEventType, "script_preview"),
	)
	return &ScriptResponse{Script: lines}, nil
}

func (s *Service) checkLength(length int, op string) error {
	if limit := s.previews.MaxTextLength; limit > 0 && length > limit {
		return services.Wrap(services.ErrValidation, "", op, fmt.Sprintf("text exceeds the limit of %d characters", limit), nil)
	}
	return nil
}
