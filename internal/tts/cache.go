// Package tts turns utterances into audio files on disk.
//
// Cache is content addressed: the same trimmed text spoken by the same voice
// at the same speed maps to one file under the segment cache directory, so
// retried or repeated episodes never pay for synthesis twice. Previews serves
// short voice samples for the voice picker.
package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"podforge/internal/fileutil"
	"podforge/internal/logging"
	"podforge/internal/services"
)

// Speed bounds. Values outside them fall back to DefaultSpeed.
const (
	MinSpeed     = 0.5
	MaxSpeed     = 2.0
	DefaultSpeed = 1.0
)

// Synthesizer produces encoded audio for one piece of text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) ([]byte, error)
}

// Cache stores synthesized segments by content hash.
type Cache struct {
	dir    string
	synth  Synthesizer
	logger *slog.Logger
}

// NewCache returns a cache writing into dir.
func NewCache(dir string, synth Synthesizer, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cache{dir: dir, synth: synth, logger: logger}
}

// Key is the cache key for a segment.
func Key(text, voice string, speed float64) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text) + "|" + voice + "|" + strconv.FormatFloat(speed, 'f', -1, 64)))
	return hex.EncodeToString(sum[:])
}

// Path returns where the segment for key lives.
func (c *Cache) Path(key string) string {
	return filepath.Join(c.dir, key+".mp3")
}

// Segment returns the path of an audio file for text, synthesizing it on a
// cache miss.
func (c *Cache) Segment(ctx context.Context, text, voice string, speed float64) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", services.Wrap(services.ErrSynthesis, "tts", "segment", "empty text", nil)
	}
	key := Key(text, voice, speed)
	path := c.Path(key)
	if fileutil.NonEmptyFile(path) {
		c.logger.Debug("tts cache hit", logging.String("key", key[:12]))
		return path, nil
	}
	if c.synth == nil {
		return "", services.Wrap(services.ErrConfiguration, "tts", "segment", "no speech synthesizer configured", nil)
	}

	audio, err := c.synth.Synthesize(ctx, text, voice, speed)
	if err != nil {
		return "", services.Wrap(services.ErrSynthesis, "tts", "segment", fmt.Sprintf("voice %s", voice), err)
	}
	if len(audio) == 0 {
		return "", services.Wrap(services.ErrSynthesis, "tts", "segment", "synthesizer returned no audio", nil)
	}
	if err := fileutil.WriteFileAtomic(path, audio); err != nil {
		return "", services.Wrap(services.ErrSynthesis, "tts", "segment", "write cache file", err)
	}
	c.logger.Debug("tts cache store",
		logging.String("key", key[:12]),
		logging.Int("bytes", len(audio)),
	)
	return path, nil
}

// ClampSpeed maps out-of-range speeds to DefaultSpeed.
func ClampSpeed(speed float64) float64 {
	if !(speed >= MinSpeed && speed <= MaxSpeed) {
		return DefaultSpeed
	}
	return speed
}

// ResolveVoice picks the voice for speaker: the explicit mapping, then the
// mapping for speaker "1", then fallback.
func ResolveVoice(voiceMap map[string]string, speaker, fallback string) string {
	if v := strings.TrimSpace(voiceMap[speaker]); v != "" {
		return v
	}
	if v := strings.TrimSpace(voiceMap["1"]); v != "" {
		return v
	}
	return fallback
}
