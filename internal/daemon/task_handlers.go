package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"podforge/internal/api"
	"podforge/internal/logging"
	"podforge/internal/store"
	"podforge/internal/textutil"
)

const (
	sessionHeader       = "X-Session-Id"
	defaultPodcastLimit = 50
	maxPodcastLimit     = 100
	multipartMemory     = 8 << 20
)

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req api.SubmitRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		parsed, status, err := s.readMultipart(r)
		if err != nil {
			s.writeError(w, status, err.Error())
			return
		}
		req = parsed
	default:
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.FilePath != "" {
			s.writeError(w, http.StatusBadRequest, "file sources must be uploaded as multipart form data")
			return
		}
	}

	resp, err := s.api.Submit(r.Context(), r.Header.Get(sessionHeader), req)
	if err != nil {
		if req.FilePath != "" {
			_ = os.Remove(req.FilePath)
		}
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

// readMultipart decodes the form fields and saves the uploaded file into the
// upload directory under a generated name.
func (s *apiServer) readMultipart(r *http.Request) (api.SubmitRequest, int, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return api.SubmitRequest{}, http.StatusRequestEntityTooLarge, errors.New("upload exceeds the size limit")
		}
		return api.SubmitRequest{}, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	form := r.MultipartForm.Value
	value := func(key string) string {
		if values := form[key]; len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
		return ""
	}
	req := api.SubmitRequest{
		Source:       value("source"),
		Text:         value("text"),
		URL:          value("url"),
		Format:       value("format"),
		Style:        value("style"),
		Duration:     value("duration"),
		Presentation: value("presentation"),
		Music:        value("music"),
		Title:        value("title"),
		Description:  value("description"),
		CoverPrompt:  value("cover_prompt"),
	}
	if raw := value("speed"); raw != "" {
		speed, err := parseFinite(raw)
		if err != nil {
			return req, http.StatusBadRequest, fmt.Errorf("speed must be a number")
		}
		req.Speed = speed
	}
	if raw := value("music_gain_db"); raw != "" {
		gain, err := parseFinite(raw)
		if err != nil {
			return req, http.StatusBadRequest, fmt.Errorf("music_gain_db must be a number")
		}
		req.MusicGainDB = &gain
	}
	if raw := value("separate_tracks"); raw != "" {
		separate, err := strconv.ParseBool(raw)
		if err != nil {
			return req, http.StatusBadRequest, fmt.Errorf("separate_tracks must be a boolean")
		}
		req.SeparateTracks = separate
	}
	if raw := value("voice_map"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.VoiceMap); err != nil {
			return req, http.StatusBadRequest, fmt.Errorf("voice_map must be a JSON object")
		}
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return req, 0, nil
	}
	if err != nil {
		return req, http.StatusBadRequest, fmt.Errorf("read upload: %w", err)
	}
	defer file.Close()

	if limit := s.maxBody - 1<<20; header.Size > limit {
		return req, http.StatusRequestEntityTooLarge, errors.New("upload exceeds the size limit")
	}
	if req.Source == "" {
		req.Source = string(store.SourceFile)
	}
	name := filepath.Base(header.Filename)
	dest := filepath.Join(s.daemon.cfg.Paths.UploadDir, uuid.NewString()+"-"+textutil.SanitizeFileName(name))
	if err := os.MkdirAll(s.daemon.cfg.Paths.UploadDir, 0o755); err != nil {
		return req, http.StatusInternalServerError, fmt.Errorf("prepare upload dir: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return req, http.StatusInternalServerError, fmt.Errorf("store upload: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return req, http.StatusInternalServerError, fmt.Errorf("store upload: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return req, http.StatusInternalServerError, fmt.Errorf("store upload: %w", err)
	}
	req.FilePath = dest
	req.FileName = textutil.Truncate(name, 255)
	s.logger.Debug("upload stored",
		logging.String("file", name),
		logging.Int64("bytes", header.Size),
	)
	return req, 0, nil
}

func (s *apiServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.TaskFilter{SessionID: query.Get("session")}
	for _, raw := range query["status"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := store.ParseStatus(part)
			if !ok {
				s.writeError(w, http.StatusBadRequest, "unknown status: "+part)
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	limit, err := parseLimit(query.Get("limit"), 0, 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Limit = limit

	tasks, err := s.api.ListTasks(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TaskListResponse{Tasks: tasks})
}

func (s *apiServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := s.api.GetStatus(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if status == nil {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := s.api.Cancel(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "task not found or already finished")
		return
	}
	s.writeJSON(w, http.StatusOK, api.CancelResponse{TaskID: id, Cancelled: true})
}

func (s *apiServer) handlePodcasts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultPodcastLimit, maxPodcastLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	podcasts, err := s.api.ListPodcasts(r.Context(), limit)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PodcastListResponse{Podcasts: podcasts})
}

// parseFinite parses a form number, rejecting NaN and infinities.
func parseFinite(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not a finite number")
	}
	return v, nil
}

// parseLimit reads a positive limit. Zero maximum means unbounded.
func parseLimit(raw string, fallback, maximum int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if maximum > 0 && limit > maximum {
		limit = maximum
	}
	return limit, nil
}
