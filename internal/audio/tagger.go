package audio

import (
	"os"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/gabriel-vasile/mimetype"

	"podforge/internal/services"
)

// DefaultArtist is written when Tags.Artist is empty.
const DefaultArtist = "podforge"

// Tags are the ID3 fields written on the final episode.
type Tags struct {
	Title     string
	Artist    string
	CoverPath string
}

// Tagger writes ID3v2.4 tags.
type Tagger struct{}

// NewTagger returns a Tagger.
func NewTagger() *Tagger { return &Tagger{} }

// Tag replaces the title, artist, and front cover of the MP3 at path.
func (t *Tagger) Tag(path string, tags Tags) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "rss", "tag", "open id3", err)
	}
	defer tag.Close()

	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetTitle(strings.TrimSpace(tags.Title))
	artist := strings.TrimSpace(tags.Artist)
	if artist == "" {
		artist = DefaultArtist
	}
	tag.SetArtist(artist)

	if tags.CoverPath != "" {
		picture, err := os.ReadFile(tags.CoverPath)
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "rss", "tag", "read cover", err)
		}
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    mimetype.Detect(picture).String(),
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     picture,
		})
	}
	if err := tag.Save(); err != nil {
		return services.Wrap(services.ErrExternalTool, "rss", "tag", "save id3", err)
	}
	return nil
}
