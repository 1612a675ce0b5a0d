package daemon

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"podforge/internal/api"
	"podforge/internal/feed"
	"podforge/internal/logging"
	"podforge/internal/store"
	"podforge/internal/tts"
)

func (s *apiServer) handleFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	kind := chi.URLParam(r, "kind")

	task, err := s.daemon.deps.Store.GetTask(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if task == nil || task.Status != store.StatusCompleted {
		s.writeError(w, http.StatusNotFound, "podcast not found")
		return
	}
	result, err := s.daemon.deps.Store.GetResult(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if result == nil {
		s.writeError(w, http.StatusNotFound, "podcast not found")
		return
	}

	rel, contentType := artifactPath(result, kind)
	if rel == "" {
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}
	path, err := s.daemon.deps.Layout.Resolve(rel)
	if err != nil {
		logging.WarnWithContext(s.logger, "stored artifact path rejected", "artifact_path_invalid",
			logging.String(logging.FieldTaskID, id),
			logging.String("kind", kind),
			logging.Error(err),
		)
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}
	s.serveFile(w, r, path, contentType)
}

// artifactPath maps a files route kind to the stored relative path and its
// content type. Cover types are sniffed when served.
func artifactPath(result *store.Result, kind string) (string, string) {
	switch kind {
	case feed.KindAudio:
		return result.AudioPath, "audio/mpeg"
	case feed.KindCover:
		return result.CoverPath, ""
	case feed.KindFeed:
		return result.FeedPath, "application/rss+xml; charset=utf-8"
	}
	if strings.HasPrefix(kind, api.TrackKindPrefix) {
		for speaker, rel := range result.SpeakerTracks {
			if api.TrackKind(speaker) == kind {
				return rel, "audio/mpeg"
			}
		}
	}
	return "", ""
}

func (s *apiServer) serveFile(w http.ResponseWriter, r *http.Request, path, contentType string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if contentType == "" {
		if detected, err := mimetype.DetectFile(path); err == nil {
			contentType = detected.String()
		}
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.ServeFile(w, r, path)
}

func (s *apiServer) handleVoices(w http.ResponseWriter, r *http.Request) {
	resp := api.VoiceListResponse{Voices: []api.Voice{}}
	if s.daemon.deps.Voices != nil {
		voices, fromProvider := s.daemon.deps.Voices.ListVoices(r.Context())
		resp.FromProvider = fromProvider
		preload := make([]tts.Voice, 0, len(voices))
		for _, voice := range voices {
			resp.Voices = append(resp.Voices, api.Voice{
				ID:         voice.ID,
				Name:       voice.Name,
				PreviewURL: s.api.BaseURL() + "/api/voices/" + url.PathEscape(voice.ID) + "/preview",
			})
			preload = append(preload, tts.Voice{ID: voice.ID, Name: voice.Name})
		}
		s.daemon.preloadPreviews(preload)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleVoicePreview(w http.ResponseWriter, r *http.Request) {
	if s.daemon.deps.Previews == nil || s.daemon.deps.Voices == nil {
		s.writeError(w, http.StatusServiceUnavailable, "voice previews not configured")
		return
	}
	id := chi.URLParam(r, "id")
	voices, _ := s.daemon.deps.Voices.ListVoices(r.Context())
	var target *tts.Voice
	for _, voice := range voices {
		if voice.ID == id {
			target = &tts.Voice{ID: voice.ID, Name: voice.Name}
			break
		}
	}
	if target == nil {
		s.writeError(w, http.StatusNotFound, "voice not found")
		return
	}
	path, err := s.daemon.deps.Previews.Path(r.Context(), *target)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.serveFile(w, r, path, "")
}

func (s *apiServer) handleMusic(w http.ResponseWriter, r *http.Request) {
	resp := api.TrackListResponse{Tracks: []api.Track{}}
	if s.daemon.deps.Music != nil {
		tracks, err := s.daemon.deps.Music.List()
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		for _, track := range tracks {
			resp.Tracks = append(resp.Tracks, api.Track{
				ID:   track.ID,
				Name: track.Name,
				URL:  s.api.BaseURL() + "/api/music/" + url.PathEscape(track.ID),
			})
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleMusicFile(w http.ResponseWriter, r *http.Request) {
	if s.daemon.deps.Music == nil {
		s.writeError(w, http.StatusNotFound, "track not found")
		return
	}
	track, ok := s.daemon.deps.Music.Resolve(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "track not found")
		return
	}
	contentType := ""
	if strings.EqualFold(filepath.Ext(track.Path), ".mp3") {
		contentType = "audio/mpeg"
	}
	s.serveFile(w, r, track.Path, contentType)
}
