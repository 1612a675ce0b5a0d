// Package feed renders the RSS 2.0 document published with each episode.
package feed

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/eduncan911/podcast"

	"podforge/internal/services"
)

// File kinds served under /api/files/{id}/{kind}.
const (
	KindAudio = "mp3"
	KindCover = "cover"
	KindFeed  = "rss"
)

// BytesPerSecond approximates a 128 kbit/s MP3 for the enclosure length.
const BytesPerSecond = 16000

const (
	defaultTitle       = "Podcast"
	defaultDescription = "Generated podcast"
	generator          = "podforge"
)

// Episode is everything the feed needs about one completed task.
type Episode struct {
	TaskID          string
	Title           string
	Description     string
	DurationSeconds int
	HasCover        bool
	PublishedAt     time.Time
}

// Builder renders feeds with public URLs under baseURL.
type Builder struct {
	baseURL string
}

// NewBuilder returns a builder for baseURL.
func NewBuilder(baseURL string) *Builder {
	return &Builder{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

// FileURL returns the public URL of a task artifact.
func FileURL(baseURL, taskID, kind string) string {
	return strings.TrimRight(baseURL, "/") + "/api/files/" + taskID + "/" + kind
}

// Build renders a single-episode RSS document with iTunes tags.
func (b *Builder) Build(ep Episode) ([]byte, error) {
	if strings.TrimSpace(ep.TaskID) == "" {
		return nil, services.Wrap(services.ErrFeed, "rss", "build", "task id is required", nil)
	}
	if ep.DurationSeconds <= 0 {
		return nil, services.Wrap(services.ErrFeed, "rss", "build", fmt.Sprintf("invalid duration %d", ep.DurationSeconds), nil)
	}
	title := strings.TrimSpace(ep.Title)
	if title == "" {
		title = defaultTitle
	}
	description := strings.TrimSpace(ep.Description)
	if description == "" {
		description = defaultDescription
	}
	published := ep.PublishedAt
	if published.IsZero() {
		published = time.Now()
	}
	published = published.UTC()

	audioURL := FileURL(b.baseURL, ep.TaskID, KindAudio)
	feedURL := FileURL(b.baseURL, ep.TaskID, KindFeed)
	coverURL := ""
	if ep.HasCover {
		coverURL = FileURL(b.baseURL, ep.TaskID, KindCover)
	}

	channel := podcast.New(title, feedURL, description, &published, &published)
	channel.Generator = generator
	channel.AddSummary(description)
	if coverURL != "" {
		channel.AddImage(coverURL)
	}

	item := podcast.Item{
		Title:       title,
		Description: description,
		Link:        audioURL,
		GUID:        ep.TaskID,
	}
	item.AddPubDate(&published)
	item.AddEnclosure(audioURL, podcast.MP3, int64(ep.DurationSeconds)*BytesPerSecond)
	item.AddDuration(int64(ep.DurationSeconds))
	if coverURL != "" {
		item.AddImage(coverURL)
	}
	if _, err := channel.AddItem(item); err != nil {
		return nil, services.Wrap(services.ErrFeed, "rss", "build", "add item", err)
	}

	var buf bytes.Buffer
	if err := channel.Encode(&buf); err != nil {
		return nil, services.Wrap(services.ErrFeed, "rss", "build", "encode feed", err)
	}
	return buf.Bytes(), nil
}
