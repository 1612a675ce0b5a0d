package audio

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	maxLibraryTracks = 10

	trackCalm      = "melody_piano"
	trackEnergetic = "melody_piano_fast"
)

var musicExtensions = map[string]bool{".mp3": true, ".wav": true, ".m4a": true}

// Track is one background music file.
type Track struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"-"`
}

// Library lists the music folder.
type Library struct {
	dir string
}

// NewLibrary returns a library over dir.
func NewLibrary(dir string) *Library { return &Library{dir: dir} }

// List returns up to ten tracks sorted by file name. A missing folder is an
// empty library.
func (l *Library) List() ([]Track, error) {
	if strings.TrimSpace(l.dir) == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var tracks []Track
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !musicExtensions[ext] {
			continue
		}
		tracks = append(tracks, Track{
			ID:   strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Name: entry.Name(),
			Path: filepath.Join(l.dir, entry.Name()),
		})
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].Name < tracks[j].Name })
	if len(tracks) > maxLibraryTracks {
		tracks = tracks[:maxLibraryTracks]
	}
	return tracks, nil
}

// Resolve finds a track by id.
func (l *Library) Resolve(id string) (Track, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Track{}, false
	}
	tracks, err := l.List()
	if err != nil {
		return Track{}, false
	}
	for _, track := range tracks {
		if track.ID == id {
			return track, true
		}
	}
	return Track{}, false
}

// Pick chooses a track for style and speed: the fast piano bed for energetic
// or sped-up episodes, the calm one otherwise, falling back to the first
// track in the library.
func (l *Library) Pick(style string, speed float64) (Track, bool) {
	tracks, err := l.List()
	if err != nil || len(tracks) == 0 {
		return Track{}, false
	}
	want := trackCalm
	if strings.EqualFold(strings.TrimSpace(style), "energetic") || speed > 1.0 {
		want = trackEnergetic
	}
	for _, track := range tracks {
		if track.ID == want {
			return track, true
		}
	}
	return tracks[0], true
}
