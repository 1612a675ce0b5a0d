package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"podforge/internal/audio"
	"podforge/internal/cover"
	"podforge/internal/extract"
	"podforge/internal/feed"
	"podforge/internal/fileutil"
	"podforge/internal/logging"
	"podforge/internal/notifications"
	"podforge/internal/script"
	"podforge/internal/services"
	"podforge/internal/storage"
	"podforge/internal/store"
	"podforge/internal/textutil"
	"podforge/internal/tts"
)

const (
	musicAuto = "auto"
	musicNone = "none"

	titleRunes       = 100
	descriptionRunes = 500
)

func (r *run) extract(ctx context.Context) error {
	if err := r.checkpoint(ctx, store.StageExtract, 5, "Extracting text…"); err != nil {
		return err
	}
	params := r.task.Params
	src := extract.Source{
		Kind:     extract.Kind(params.Source),
		Text:     params.Text,
		FilePath: params.FilePath,
		URL:      params.URL,
	}
	var text string
	err := r.bounded(ctx, func(ctx context.Context) error {
		var err error
		text, err = r.exec.deps.Extract.Extract(ctx, src)
		return err
	})
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return services.Wrap(services.ErrExtraction, "extract", "extract", "no text extracted", nil)
	}
	if r.exec.maxTextLength > 0 {
		text = textutil.Truncate(text, r.exec.maxTextLength)
	}
	r.text = text
	r.logger.Info("text extracted", logging.Int("runes", len([]rune(text))))
	return r.checkpoint(ctx, store.StageExtract, 20, "Text extracted")
}

func (r *run) generateScript(ctx context.Context) error {
	if err := r.checkpoint(ctx, store.StageScript, 25, "Generating script…"); err != nil {
		return err
	}
	params := r.task.Params
	opts := script.Options{
		Format:       params.Format,
		Style:        params.Style,
		Duration:     params.Duration,
		Presentation: params.Presentation,
	}
	var lines []script.Utterance
	err := r.bounded(ctx, func(ctx context.Context) error {
		var err error
		lines, err = r.exec.deps.Scripts.Generate(ctx, r.text, opts)
		return err
	})
	if err != nil {
		return err
	}
	r.lines = lines
	r.logger.Info("script ready", logging.Int("replies", len(lines)))
	return r.checkpoint(ctx, store.StageScript, 40, "Script ready")
}

func (r *run) synthesize(ctx context.Context) error {
	if err := r.checkpoint(ctx, store.StageTTS, 45, "Synthesizing speech…"); err != nil {
		return err
	}
	var replies []script.Utterance
	for _, line := range r.lines {
		if strings.TrimSpace(line.Text) != "" {
			replies = append(replies, line)
		}
	}
	if len(replies) == 0 {
		return services.Wrap(services.ErrSynthesis, "tts", "synthesize", "script has no replies to speak", nil)
	}

	params := r.task.Params
	speed := tts.ClampSpeed(params.Speed)
	layout := r.exec.deps.Layout
	if _, err := layout.EnsureTaskDir(r.task.ID); err != nil {
		return services.Wrap(services.ErrSynthesis, "tts", "prepare", "task directory", err)
	}

	segments := make([]string, 0, len(replies))
	bySpeaker := make(map[string][]string)
	total := len(replies)
	for i, reply := range replies {
		voice := tts.ResolveVoice(params.VoiceMap, reply.Speaker, r.exec.defaultVoice)
		var path string
		err := r.bounded(ctx, func(ctx context.Context) error {
			var err error
			path, err = r.exec.deps.Segments.Segment(ctx, reply.Text, voice, speed)
			return err
		})
		if err != nil {
			return services.Wrap(services.ErrSynthesis, "tts", "segment", fmt.Sprintf("reply %d/%d", i+1, total), err)
		}
		segments = append(segments, path)
		bySpeaker[reply.Speaker] = append(bySpeaker[reply.Speaker], path)

		done := i + 1
		progress := min(45+25*done/total, 69)
		if err := r.checkpoint(ctx, store.StageTTS, progress, fmt.Sprintf("Synthesizing reply %d/%d", done, total)); err != nil {
			return err
		}
	}

	voicePath := layout.TaskFile(r.task.ID, storage.VoiceFile)
	if err := r.bounded(ctx, func(ctx context.Context) error {
		return r.exec.deps.Mixer.Concat(ctx, segments, voicePath)
	}); err != nil {
		return err
	}
	r.voice = voicePath

	if params.SeparateTracks {
		speakers := make([]string, 0, len(bySpeaker))
		for speaker := range bySpeaker {
			speakers = append(speakers, speaker)
		}
		sort.Strings(speakers)
		r.speakers = make(map[string]string, len(speakers))
		for _, speaker := range speakers {
			out := layout.SpeakerFile(r.task.ID, textutil.SanitizeToken(speaker))
			if err := r.bounded(ctx, func(ctx context.Context) error {
				return r.exec.deps.Mixer.Concat(ctx, bySpeaker[speaker], out)
			}); err != nil {
				return err
			}
			r.speakers[speaker] = out
		}
	}
	r.logger.Info("speech ready",
		logging.Int("replies", total),
		logging.Float64("speed", speed),
		logging.Bool("separate_tracks", params.SeparateTracks),
	)
	return r.checkpoint(ctx, store.StageTTS, 70, "Speech ready")
}

func (r *run) musicAndCover(ctx context.Context) error {
	if err := r.checkpoint(ctx, store.StageMusicCover, 75, "Mixing music and cover…"); err != nil {
		return err
	}
	params := r.task.Params
	layout := r.exec.deps.Layout
	mixed := layout.TaskFile(r.task.ID, storage.MixedFile)

	music := ""
	if track, ok := r.selectMusic(params); ok {
		music = track.Path
		r.logger.Info("music selected", logging.String("track", track.ID))
	} else {
		r.logger.Info("no music selected; voice only", logging.String("choice", params.Music))
	}
	gainDB := r.exec.gainDB
	if params.MusicGainDB != nil {
		gainDB = *params.MusicGainDB
	}
	if err := r.bounded(ctx, func(ctx context.Context) error {
		return r.exec.deps.Mixer.Mix(ctx, r.voice, music, gainDB, mixed)
	}); err != nil {
		return err
	}
	r.mixed = mixed

	r.generateCover(ctx)
	return r.checkpoint(ctx, store.StageMusicCover, 85, "Music and cover ready")
}

// selectMusic applies the task's music choice: empty or "none" disables
// music, "auto" picks by style and speed, anything else is a track id.
func (r *run) selectMusic(params store.Params) (audio.Track, bool) {
	choice := strings.TrimSpace(params.Music)
	switch strings.ToLower(choice) {
	case "", musicNone:
		return audio.Track{}, false
	case musicAuto:
		return r.exec.deps.Music.Pick(params.Style, tts.ClampSpeed(params.Speed))
	default:
		return r.exec.deps.Music.Resolve(choice)
	}
}

// generateCover writes cover.jpg. Failures only cost the episode its artwork.
func (r *run) generateCover(ctx context.Context) {
	if r.exec.deps.Covers == nil {
		r.logger.Debug("image provider not configured; skipping cover")
		return
	}
	params := r.task.Params
	prompt := cover.Prompt(params.Title, r.text, params.CoverPrompt)
	var image []byte
	err := r.bounded(ctx, func(ctx context.Context) error {
		var err error
		image, err = r.exec.deps.Covers.Generate(ctx, prompt)
		return err
	})
	if err == nil && len(image) == 0 {
		err = services.Wrap(services.ErrCover, "music_cover", "generate", "empty image", nil)
	}
	if err == nil {
		path := r.exec.deps.Layout.TaskFile(r.task.ID, storage.CoverFile)
		if err = fileutil.WriteFileAtomic(path, image); err == nil {
			r.cover = path
			r.logger.Info("cover generated", logging.Int("bytes", len(image)))
			return
		}
	}
	logging.WarnWithContext(r.logger, "cover generation failed; continuing without artwork", "cover_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check image.url and image.api_key"),
		logging.String(logging.FieldImpact, "episode is published without cover art"),
	)
}

func (r *run) publish(ctx context.Context) error {
	if err := r.checkpoint(ctx, store.StageRSS, 90, "Building feed…"); err != nil {
		return err
	}
	params := r.task.Params
	layout := r.exec.deps.Layout

	title := strings.TrimSpace(params.Title)
	if title == "" {
		title = flatten(textutil.Truncate(r.text, titleRunes))
	}
	description := strings.TrimSpace(params.Description)
	if description == "" {
		description = flatten(textutil.Truncate(r.text, descriptionRunes))
	}

	if err := r.exec.deps.Tagger.Tag(r.mixed, audio.Tags{Title: title, CoverPath: r.cover}); err != nil {
		return err
	}

	var seconds float64
	if err := r.bounded(ctx, func(ctx context.Context) error {
		var err error
		seconds, err = r.exec.deps.Prober.Duration(ctx, r.mixed)
		return err
	}); err != nil {
		return err
	}
	if seconds <= 0 || math.IsNaN(seconds) {
		return services.Wrap(services.ErrExternalTool, "rss", "probe", fmt.Sprintf("invalid duration %.2fs", seconds), nil)
	}
	duration := max(int(math.Round(seconds)), 1)

	rendered, err := r.exec.deps.Feeds.Build(feed.Episode{
		TaskID:          r.task.ID,
		Title:           title,
		Description:     description,
		DurationSeconds: duration,
		HasCover:        r.cover != "",
		PublishedAt:     r.exec.now(),
	})
	if err != nil {
		return err
	}
	feedPath := layout.TaskFile(r.task.ID, storage.FeedFile)
	if err := fileutil.WriteFileAtomic(feedPath, rendered); err != nil {
		return services.Wrap(services.ErrFeed, "rss", "write", "feed.xml", err)
	}

	result, err := r.result(title, description, duration, feedPath)
	if err != nil {
		return err
	}
	if _, _, err := r.exec.deps.Store.CompleteTask(ctx, r.task.ID, r.task.Version, result); err != nil {
		if errors.Is(err, store.ErrTaskTerminal) {
			return fmt.Errorf("%w: %v", errCancelled, err)
		}
		return fmt.Errorf("complete task: %w", err)
	}

	elapsed := r.exec.now().Sub(r.started).Round(time.Second)
	r.logger.Info("task completed",
		logging.String(logging.FieldEventType, "task_complete"),
		logging.String("title", title),
		logging.Int("duration_seconds", duration),
		logging.Duration("elapsed", elapsed),
		logging.Bool("cover", r.cover != ""),
	)
	if err := r.exec.deps.Notifier.Publish(ctx, notifications.EventTaskCompleted, notifications.Payload{
		"task_id":  r.task.ID,
		"title":    title,
		"duration": (time.Duration(duration) * time.Second).String(),
	}); err != nil {
		r.logger.Debug("completion notification failed", logging.Error(err))
	}
	return nil
}

func (r *run) result(title, description string, duration int, feedPath string) (store.Result, error) {
	layout := r.exec.deps.Layout
	audioRel, err := layout.Rel(r.mixed)
	if err != nil {
		return store.Result{}, err
	}
	feedRel, err := layout.Rel(feedPath)
	if err != nil {
		return store.Result{}, err
	}
	coverRel := ""
	if r.cover != "" {
		if _, statErr := os.Stat(r.cover); statErr == nil {
			if coverRel, err = layout.Rel(r.cover); err != nil {
				return store.Result{}, err
			}
		}
	}
	var tracks map[string]string
	if len(r.speakers) > 0 {
		tracks = make(map[string]string, len(r.speakers))
		for speaker, path := range r.speakers {
			rel, err := layout.Rel(path)
			if err != nil {
				return store.Result{}, err
			}
			tracks[speaker] = rel
		}
	}
	return store.Result{
		AudioPath:       audioRel,
		CoverPath:       coverRel,
		FeedPath:        feedRel,
		SpeakerTracks:   tracks,
		Title:           title,
		Description:     description,
		DurationSeconds: duration,
	}, nil
}

func flatten(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s))
}
