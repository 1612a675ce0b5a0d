package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"podforge/internal/fileutil"
	"podforge/internal/logging"
	"podforge/internal/services"
)

// DefaultGainDB is the music level relative to the voice.
const DefaultGainDB = -20.0

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Mixer wraps ffmpeg.
type Mixer struct {
	binary string
	logger *slog.Logger
	run    CommandRunner
}

// NewMixer constructs a mixer using binary (ffmpeg when empty).
func NewMixer(binary string, logger *slog.Logger) *Mixer {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Mixer{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "mixer"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (m *Mixer) WithCommandRunner(r CommandRunner) {
	if m != nil && r != nil {
		m.run = r
	}
}

// Concat joins segments in order into out as MP3.
func (m *Mixer) Concat(ctx context.Context, segments []string, out string) error {
	if len(segments) == 0 {
		return services.Wrap(services.ErrExternalTool, "tts", "concat", "no segments to join", nil)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if len(segments) == 1 {
		if err := fileutil.CopyFile(segments[0], out); err != nil {
			return services.Wrap(services.ErrExternalTool, "tts", "concat", "copy single segment", err)
		}
		return nil
	}

	list, err := os.CreateTemp(filepath.Dir(out), ".concat-*.txt")
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	listPath := list.Name()
	defer os.Remove(listPath)
	for _, segment := range segments {
		abs, err := filepath.Abs(segment)
		if err != nil {
			_ = list.Close()
			return fmt.Errorf("resolve segment: %w", err)
		}
		if _, err := fmt.Fprintf(list, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`)); err != nil {
			_ = list.Close()
			return fmt.Errorf("write concat list: %w", err)
		}
	}
	if err := list.Close(); err != nil {
		return fmt.Errorf("close concat list: %w", err)
	}

	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-c:a", "libmp3lame", "-b:a", "128k",
		out,
	}
	m.logger.Debug("concatenating segments", logging.Int("segments", len(segments)), logging.String("output", out))
	if err := m.run(ctx, m.binary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "tts", "concat", "ffmpeg concat failed", err)
	}
	return checkOutput(out, "tts", "concat")
}

// Mix lays music under voice at gainDB, looping or cutting the music to the
// voice length. With no music the voice is copied to out unchanged.
func (m *Mixer) Mix(ctx context.Context, voice, music string, gainDB float64, out string) error {
	if !fileutil.NonEmptyFile(voice) {
		return services.Wrap(services.ErrExternalTool, "music_cover", "mix", "voice track missing", nil)
	}
	if strings.TrimSpace(music) == "" {
		if err := fileutil.CopyFile(voice, out); err != nil {
			return services.Wrap(services.ErrExternalTool, "music_cover", "mix", "copy voice track", err)
		}
		return nil
	}

	filter := fmt.Sprintf(
		"[1:a]volume=%sdB[bg];[0:a][bg]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[mix]",
		strconv.FormatFloat(gainDB, 'f', -1, 64),
	)
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", voice,
		"-stream_loop", "-1", "-i", music,
		"-filter_complex", filter,
		"-map", "[mix]",
		"-c:a", "libmp3lame", "-b:a", "128k",
		out,
	}
	m.logger.Debug("mixing music bed",
		logging.String("music", filepath.Base(music)),
		logging.Float64("gain_db", gainDB),
	)
	if err := m.run(ctx, m.binary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "music_cover", "mix", "ffmpeg mix failed", err)
	}
	return checkOutput(out, "music_cover", "mix")
}

func checkOutput(path, stage, op string) error {
	if !fileutil.NonEmptyFile(path) {
		return services.Wrap(services.ErrExternalTool, stage, op, "ffmpeg produced no output", nil)
	}
	return nil
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
