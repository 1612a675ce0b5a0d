package pipeline

import (
	"context"

	"podforge/internal/audio"
	"podforge/internal/extract"
	"podforge/internal/feed"
	"podforge/internal/script"
)

// TextExtractor reads a task source into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, src extract.Source) (string, error)
}

// ScriptGenerator turns text into an ordered list of replies.
type ScriptGenerator interface {
	Generate(ctx context.Context, text string, opts script.Options) ([]script.Utterance, error)
}

// SegmentSynthesizer returns a file holding text spoken by voice.
type SegmentSynthesizer interface {
	Segment(ctx context.Context, text, voice string, speed float64) (string, error)
}

// AudioMixer joins and mixes MP3 files.
type AudioMixer interface {
	Concat(ctx context.Context, segments []string, out string) error
	Mix(ctx context.Context, voice, music string, gainDB float64, out string) error
}

// CoverGenerator produces cover image bytes for a prompt.
type CoverGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// FeedBuilder renders the RSS document for an episode.
type FeedBuilder interface {
	Build(ep feed.Episode) ([]byte, error)
}

// DurationProber measures audio length in seconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// MetadataTagger writes container metadata.
type MetadataTagger interface {
	Tag(path string, tags audio.Tags) error
}

// MusicLibrary looks up background tracks.
type MusicLibrary interface {
	Resolve(id string) (audio.Track, bool)
	Pick(style string, speed float64) (audio.Track, bool)
}
