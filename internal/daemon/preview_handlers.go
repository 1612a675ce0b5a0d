package daemon

import (
	"encoding/json"
	"mime"
	"net/http"
	"os"

	"podforge/internal/api"
)

// handleExtract runs extraction inline. File sources arrive as multipart
// uploads and are removed once the text is read.
func (s *apiServer) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req api.ExtractRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		parsed, status, err := s.readMultipart(r)
		if err != nil {
			s.writeError(w, status, err.Error())
			return
		}
		if parsed.FilePath != "" {
			defer func() { _ = os.Remove(parsed.FilePath) }()
		}
		req = api.ExtractRequest{Source: parsed.Source, Text: parsed.Text, FilePath: parsed.FilePath, URL: parsed.URL}
	} else if !s.decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.api.Extract(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleScript(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req api.ScriptRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.api.Script(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}
