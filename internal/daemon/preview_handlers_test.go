package daemon_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"testing"

	"podforge/internal/api"
	"podforge/internal/store"
)

func TestExtractJSONReturnsCleanedText(t *testing.T) {
	h := newHarness(t, nil)

	body := `{"source":"text","text":"<p>News</p><p>Call +7 (999) 123-45-67 or @newsdesk</p>"}`
	rec := serve(t, h, http.MethodPost, "/api/extract", strings.NewReader(body), jsonHeader())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[api.ExtractResponse](t, rec)
	if resp.Removed["phones"] != 1 || resp.Removed["contacts"] != 1 {
		t.Fatalf("unexpected removed counts %v", resp.Removed)
	}
	if strings.Contains(resp.Text, "<p>") || resp.Length != len([]rune(resp.Text)) {
		t.Fatalf("unexpected extraction %+v", resp)
	}
}

func TestExtractMultipartDropsUpload(t *testing.T) {
	h := newHarness(t, nil)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write([]byte("Uploaded notes about Go."))
	_ = writer.Close()

	header := http.Header{"Content-Type": []string{writer.FormDataContentType()}}
	rec := serve(t, h, http.MethodPost, "/api/extract", &body, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decode[api.ExtractResponse](t, rec).Text; got != "Uploaded notes about Go." {
		t.Fatalf("unexpected text %q", got)
	}
	entries, err := os.ReadDir(h.cfg.Paths.UploadDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected upload dir to be empty, found %d entries", len(entries))
	}
}

func TestExtractMapsFailures(t *testing.T) {
	h := newHarness(t, nil)
	cases := []struct {
		name string
		body string
		want int
	}{
		{"missing text", `{"source":"text"}`, http.StatusBadRequest},
		{"unknown field", `{"source":"text","text":"x","speed":1}`, http.StatusBadRequest},
		{"nothing left after cleaning", `{"source":"text","text":"<br>  <br>"}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, h, http.MethodPost, "/api/extract", strings.NewReader(tc.body), jsonHeader())
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestScriptReturnsRepliesWithoutTask(t *testing.T) {
	h := newHarness(t, nil)

	rec := serve(t, h, http.MethodPost, "/api/script", strings.NewReader(`{"text":"A short note.","format":"monologue"}`), jsonHeader())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[api.ScriptResponse](t, rec)
	if len(resp.Script) != 1 || resp.Script[0].Text != "A short note." {
		t.Fatalf("unexpected script %+v", resp.Script)
	}

	if rec := serve(t, h, http.MethodPost, "/api/script", strings.NewReader(`{"text":"x","duration":"forever"}`), jsonHeader()); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad duration, got %d", rec.Code)
	}
	tasks, err := h.store.ListTasks(context.Background(), store.TaskFilter{})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tasks))
	}
}
