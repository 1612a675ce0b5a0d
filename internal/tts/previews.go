package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"podforge/internal/fileutil"
	"podforge/internal/logging"
	"podforge/internal/services"
)

const (
	previewPhrase      = "Hello! This is my voice: "
	previewKeyMax      = 64
	preloadConcurrency = 4
)

var sampleExtensions = []string{".mp3", ".wav", ".ogg"}

// Voice identifies a voice for previewing.
type Voice struct {
	ID   string
	Name string
}

// Previews serves one short sample per voice. Bundled samples win over the
// cache, and synthesis for a given key runs at most once at a time.
type Previews struct {
	samplesDir string
	cacheDir   string
	model      string
	synth      Synthesizer
	logger     *slog.Logger
	group      singleflight.Group
}

// NewPreviews constructs a preview store.
func NewPreviews(samplesDir, cacheDir, model string, synth Synthesizer, logger *slog.Logger) *Previews {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Previews{
		samplesDir: samplesDir,
		cacheDir:   cacheDir,
		model:      strings.TrimSpace(model),
		synth:      synth,
		logger:     logger,
	}
}

// Key returns the file stem used for voice previews.
func (p *Previews) Key(voiceID string) string {
	key := safeKey(voiceID)
	if p.model != "" {
		key = safeKey(p.model) + "_" + key
	}
	return key
}

func safeKey(value string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= previewKeyMax {
			break
		}
	}
	out := b.String()
	if out == "" {
		return "voice"
	}
	return out
}

// Lookup returns an existing sample or cached preview without synthesizing.
func (p *Previews) Lookup(voiceID string) (string, bool) {
	key := p.Key(voiceID)
	if p.samplesDir != "" {
		for _, ext := range sampleExtensions {
			candidate := filepath.Join(p.samplesDir, key+ext)
			if fileutil.NonEmptyFile(candidate) {
				return candidate, true
			}
		}
	}
	cached := filepath.Join(p.cacheDir, key+".mp3")
	if fileutil.NonEmptyFile(cached) {
		return cached, true
	}
	return "", false
}

// Path returns the preview for voice, synthesizing it on first use.
func (p *Previews) Path(ctx context.Context, voice Voice) (string, error) {
	if strings.TrimSpace(voice.ID) == "" {
		return "", services.Wrap(services.ErrValidation, "tts", "preview", "voice id is required", nil)
	}
	if path, ok := p.Lookup(voice.ID); ok {
		return path, nil
	}
	if p.synth == nil {
		return "", services.Wrap(services.ErrNotFound, "tts", "preview", fmt.Sprintf("no preview for %s", voice.ID), nil)
	}

	key := p.Key(voice.ID)
	result, err, _ := p.group.Do(key, func() (any, error) {
		target := filepath.Join(p.cacheDir, key+".mp3")
		if fileutil.NonEmptyFile(target) {
			return target, nil
		}
		name := strings.TrimSpace(voice.Name)
		if name == "" {
			name = voice.ID
		}
		audio, err := p.synth.Synthesize(ctx, previewPhrase+name, voice.ID, DefaultSpeed)
		if err != nil {
			return "", services.Wrap(services.ErrSynthesis, "tts", "preview", voice.ID, err)
		}
		if len(audio) == 0 {
			return "", services.Wrap(services.ErrSynthesis, "tts", "preview", "synthesizer returned no audio", nil)
		}
		if err := os.MkdirAll(p.cacheDir, 0o755); err != nil {
			return "", fmt.Errorf("create preview dir: %w", err)
		}
		if err := fileutil.WriteFileAtomic(target, audio); err != nil {
			return "", fmt.Errorf("write preview: %w", err)
		}
		p.logger.Info("voice preview generated", logging.String("voice", voice.ID))
		return target, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Preload generates previews for every voice that has none yet. Individual
// failures are logged and do not stop the others. It returns how many
// previews were generated.
func (p *Previews) Preload(ctx context.Context, voices []Voice) int {
	if p.synth == nil {
		return 0
	}
	var generated atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(preloadConcurrency)
	for _, voice := range voices {
		if _, ok := p.Lookup(voice.ID); ok {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if _, err := p.Path(gctx, voice); err != nil {
				p.logger.Warn("voice preview preload failed",
					logging.String("voice", voice.ID),
					logging.Error(err),
					logging.String(logging.FieldEventType, "preview_preload_failed"),
					logging.String(logging.FieldErrorHint, "check tts.url and tts.api_key"),
					logging.String(logging.FieldImpact, "voice picker falls back to on-demand previews"),
				)
				return nil
			}
			generated.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(generated.Load())
}
