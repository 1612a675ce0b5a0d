package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"podforge/internal/api"
	"podforge/internal/store"
	"podforge/internal/testsupport"
)

func serve(t *testing.T, h *harness, method, target string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	rec := httptest.NewRecorder()
	h.daemon.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func jsonHeader() http.Header {
	return http.Header{"Content-Type": []string{"application/json"}}
}

func TestAuthGuardsEverythingButHealth(t *testing.T) {
	h := newHarness(t, nil, testsupport.WithToken("secret"))

	if rec := serve(t, h, http.MethodGet, "/api/health", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	if rec := serve(t, h, http.MethodGet, "/api/status", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token: expected 401, got %d", rec.Code)
	}
	wrong := http.Header{"Authorization": []string{"Bearer nope"}}
	if rec := serve(t, h, http.MethodGet, "/api/status", nil, wrong); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status with wrong token: expected 401, got %d", rec.Code)
	}
	right := http.Header{"Authorization": []string{"Bearer secret"}}
	if rec := serve(t, h, http.MethodGet, "/api/status", nil, right); rec.Code != http.StatusOK {
		t.Fatalf("status with token: expected 200, got %d", rec.Code)
	}
	if rec := serve(t, h, http.MethodGet, "/api/status?token=secret", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("status with query token: expected 200, got %d", rec.Code)
	}
}

func TestStatusReportsTaskCounts(t *testing.T) {
	h := newHarness(t, nil)
	testsupport.NewTask(t, h.store, "s", "hello")

	rec := serve(t, h, http.MethodGet, "/api/status", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	status := decode[api.ServiceStatus](t, rec)
	if status.Tasks["pending"] != 1 || status.Tasks["completed"] != 0 {
		t.Fatalf("unexpected counts %+v", status.Tasks)
	}
	if status.WorkerRunning {
		t.Fatal("worker should not run before Start")
	}
	if len(status.Dependencies) != 1 || status.Dependencies[0].Name != "FFmpeg" {
		t.Fatalf("expected ffmpeg dependency entry, got %+v", status.Dependencies)
	}
}

func TestSubmitJSONCreatesTaskInSession(t *testing.T) {
	h := newHarness(t, nil)
	header := jsonHeader()
	header.Set("X-Session-Id", "session-1")

	rec := serve(t, h, http.MethodPost, "/api/tasks",
		strings.NewReader(`{"source":"text","text":"Go is a language.","format":"dialog"}`), header)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[api.SubmitResponse](t, rec)
	if resp.SessionID != "session-1" || resp.Status != "pending" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if h.mgr.QueueSize() != 1 {
		t.Fatalf("expected one queued task, got %d", h.mgr.QueueSize())
	}

	list := serve(t, h, http.MethodGet, "/api/tasks?session=session-1", nil, nil)
	tasks := decode[api.TaskListResponse](t, list)
	if len(tasks.Tasks) != 1 || tasks.Tasks[0].TaskID != resp.TaskID {
		t.Fatalf("unexpected session listing %+v", tasks)
	}
}

func TestSubmitRejectsBadRequests(t *testing.T) {
	h := newHarness(t, nil)
	cases := []struct {
		name string
		body string
	}{
		{"malformed", `{"source":`},
		{"unknown field", `{"source":"text","text":"x","colour":"red"}`},
		{"local file path", `{"source":"file","file_path":"/etc/passwd"}`},
		{"invalid style", `{"source":"text","text":"x","style":"shouty"}`},
		{"empty text", `{"source":"text","text":"  "}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, h, http.MethodPost, "/api/tasks", strings.NewReader(tc.body), jsonHeader())
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if decode[api.ErrorResponse](t, rec).Error == "" {
				t.Fatal("expected error message")
			}
		})
	}
	tasks, err := h.store.ListTasks(context.Background(), store.TaskFilter{})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tasks))
	}
}

func TestSubmitMultipartStoresUpload(t *testing.T) {
	h := newHarness(t, nil)
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("source", "file")
	_ = writer.WriteField("style", "energetic")
	_ = writer.WriteField("speed", "1.25")
	_ = writer.WriteField("music_gain_db", "-12")
	_ = writer.WriteField("voice_map", `{"Host":"alloy"}`)
	part, err := writer.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write([]byte("Uploaded notes about Go."))
	_ = writer.Close()

	header := http.Header{"Content-Type": []string{writer.FormDataContentType()}}
	rec := serve(t, h, http.MethodPost, "/api/tasks", &body, header)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[api.SubmitResponse](t, rec)
	task, err := h.store.GetTask(context.Background(), resp.TaskID)
	if err != nil || task == nil {
		t.Fatalf("GetTask: %v", err)
	}
	params := task.Params
	if params.Source != store.SourceFile || params.FileName != "notes.txt" {
		t.Fatalf("unexpected params %+v", params)
	}
	if filepath.Dir(params.FilePath) != h.cfg.Paths.UploadDir {
		t.Fatalf("upload stored outside upload dir: %s", params.FilePath)
	}
	data, err := os.ReadFile(params.FilePath)
	if err != nil || string(data) != "Uploaded notes about Go." {
		t.Fatalf("upload content mismatch: %q %v", data, err)
	}
	if params.Speed != 1.25 || params.VoiceMap["Host"] != "alloy" || params.Style != "energetic" {
		t.Fatalf("form fields not applied: %+v", params)
	}
	if params.MusicGainDB == nil || *params.MusicGainDB != -12 {
		t.Fatalf("music gain not applied: %v", params.MusicGainDB)
	}
}

func TestSubmitMultipartRejectsNonFiniteNumbers(t *testing.T) {
	h := newHarness(t, nil)
	for _, field := range []string{"speed", "music_gain_db"} {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		_ = writer.WriteField("source", "text")
		_ = writer.WriteField("text", "hello")
		_ = writer.WriteField(field, "NaN")
		_ = writer.Close()

		header := http.Header{"Content-Type": []string{writer.FormDataContentType()}}
		rec := serve(t, h, http.MethodPost, "/api/tasks", &body, header)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s=NaN: expected 400, got %d: %s", field, rec.Code, rec.Body.String())
		}
	}
}

func TestSubmitMultipartRejectsOversizedUpload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.MaxFileSizeMB = 1
	h := newHarnessWithConfig(t, cfg, nil)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("source", "file")
	part, _ := writer.CreateFormFile("file", "big.txt")
	_, _ = part.Write(bytes.Repeat([]byte("a"), 3<<20))
	_ = writer.Close()

	header := http.Header{"Content-Type": []string{writer.FormDataContentType()}}
	rec := serve(t, h, http.MethodPost, "/api/tasks", &body, header)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetAndCancelTask(t *testing.T) {
	h := newHarness(t, nil)
	task := testsupport.NewTask(t, h.store, "s", "hello")

	if rec := serve(t, h, http.MethodGet, "/api/tasks/missing", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec := serve(t, h, http.MethodGet, "/api/tasks/"+task.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store, got %q", rec.Header().Get("Cache-Control"))
	}
	if status := decode[api.TaskStatus](t, rec); status.Status != "pending" || status.Progress != 0 {
		t.Fatalf("unexpected status %+v", status)
	}

	rec = serve(t, h, http.MethodPost, "/api/tasks/"+task.ID+"/cancel", nil, nil)
	if rec.Code != http.StatusOK || !decode[api.CancelResponse](t, rec).Cancelled {
		t.Fatalf("expected cancellation, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := serve(t, h, http.MethodPost, "/api/tasks/"+task.ID+"/cancel", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for repeat cancel, got %d", rec.Code)
	}
	rec = serve(t, h, http.MethodGet, "/api/tasks/"+task.ID, nil, nil)
	if status := decode[api.TaskStatus](t, rec); status.Status != "cancelled" {
		t.Fatalf("expected cancelled, got %+v", status)
	}
}

func TestListTasksRejectsUnknownStatus(t *testing.T) {
	h := newHarness(t, nil)
	if rec := serve(t, h, http.MethodGet, "/api/tasks?status=lost", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := serve(t, h, http.MethodGet, "/api/podcasts?limit=0", nil, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero limit, got %d", rec.Code)
	}
}

func completeTask(t *testing.T, h *harness) *store.Task {
	t.Helper()
	ctx := context.Background()
	task := testsupport.StartTask(t, h.store, testsupport.NewTask(t, h.store, "s", "hello"))
	if _, err := h.layout.EnsureTaskDir(task.ID); err != nil {
		t.Fatalf("EnsureTaskDir: %v", err)
	}
	write := func(path string, data []byte) string {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		rel, err := h.layout.Rel(path)
		if err != nil {
			t.Fatalf("Rel: %v", err)
		}
		return rel
	}
	audioRel := write(h.layout.TaskFile(task.ID, "podcast.mp3"), testsupport.SilentMP3(10))
	feedRel := write(h.layout.TaskFile(task.ID, "feed.xml"), []byte("<rss></rss>"))
	hostRel := write(h.layout.SpeakerFile(task.ID, "Host"), testsupport.SilentMP3(5))

	if _, _, err := h.store.CompleteTask(ctx, task.ID, task.Version, store.Result{
		AudioPath:       audioRel,
		FeedPath:        feedRel,
		SpeakerTracks:   map[string]string{"Host": hostRel},
		Title:           "Episode",
		DurationSeconds: 1,
	}); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	return task
}

func TestFilesServeCompletedArtifacts(t *testing.T) {
	h := newHarness(t, nil)
	task := completeTask(t, h)
	base := "/api/files/" + task.ID + "/"

	rec := serve(t, h, http.MethodGet, base+"mp3", nil, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "audio/mpeg" {
		t.Fatalf("mp3: got %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.Equal(rec.Body.Bytes(), testsupport.SilentMP3(10)) {
		t.Fatal("mp3 body mismatch")
	}
	rec = serve(t, h, http.MethodGet, base+"rss", nil, nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/rss+xml") {
		t.Fatalf("rss: got %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec := serve(t, h, http.MethodGet, base+api.TrackKind("Host"), nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("speaker track: got %d", rec.Code)
	}
	for _, kind := range []string{"cover", "track-guest", "wav"} {
		if rec := serve(t, h, http.MethodGet, base+kind, nil, nil); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", kind, rec.Code)
		}
	}

	pending := testsupport.NewTask(t, h.store, "s", "later")
	if rec := serve(t, h, http.MethodGet, "/api/files/"+pending.ID+"/mp3", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("pending task: expected 404, got %d", rec.Code)
	}

	podcasts := decode[api.PodcastListResponse](t, serve(t, h, http.MethodGet, "/api/podcasts", nil, nil))
	if len(podcasts.Podcasts) != 1 || podcasts.Podcasts[0].AudioURL != h.cfg.API.BaseURL+base+"mp3" {
		t.Fatalf("unexpected podcasts %+v", podcasts)
	}
}

func TestVoicesAndMusicCatalogs(t *testing.T) {
	h := newHarness(t, nil)
	if err := os.MkdirAll(h.cfg.Paths.MusicDir, 0o755); err != nil {
		t.Fatalf("mkdir music: %v", err)
	}
	if err := os.WriteFile(filepath.Join(h.cfg.Paths.MusicDir, "calm.mp3"), testsupport.SilentMP3(5), 0o644); err != nil {
		t.Fatalf("write music: %v", err)
	}

	voices := decode[api.VoiceListResponse](t, serve(t, h, http.MethodGet, "/api/voices", nil, nil))
	if len(voices.Voices) != 1 || voices.Voices[0].PreviewURL != h.cfg.API.BaseURL+"/api/voices/alloy/preview" {
		t.Fatalf("unexpected voices %+v", voices)
	}
	if rec := serve(t, h, http.MethodGet, "/api/voices/alloy/preview", nil, nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("preview without source: expected 503, got %d", rec.Code)
	}

	tracks := decode[api.TrackListResponse](t, serve(t, h, http.MethodGet, "/api/music", nil, nil))
	if len(tracks.Tracks) != 1 || tracks.Tracks[0].ID != "calm" || tracks.Tracks[0].URL != h.cfg.API.BaseURL+"/api/music/calm" {
		t.Fatalf("unexpected tracks %+v", tracks)
	}
	if rec := serve(t, h, http.MethodGet, "/api/music/calm", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("music file: got %d", rec.Code)
	}
	if rec := serve(t, h, http.MethodGet, "/api/music/missing", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing music: expected 404, got %d", rec.Code)
	}
}

func TestCleanupEndpointRunsSweep(t *testing.T) {
	h := newHarness(t, nil)
	rec := serve(t, h, http.MethodPost, "/api/cleanup", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	report := decode[api.CleanupReport](t, rec)
	if report.Tasks != 0 || report.TaskDirs != 0 {
		t.Fatalf("expected empty sweep, got %+v", report)
	}
}

func TestEventsStreamUntilTerminal(t *testing.T) {
	h := newHarness(t, nil)
	task := testsupport.NewTask(t, h.store, "s", "hello")
	server := httptest.NewServer(h.daemon.Handler())
	defer server.Close()

	if resp, err := http.Get(server.URL + "/api/tasks/missing/events"); err != nil {
		t.Fatalf("get: %v", err)
	} else {
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404 for unknown task, got %d", resp.StatusCode)
		}
	}

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/tasks/" + task.ID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first api.TaskStatus
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first: %v", err)
	}
	if first.Status != "pending" {
		t.Fatalf("expected pending snapshot, got %+v", first)
	}

	if _, err := h.store.CancelTask(context.Background(), task.ID); err != nil {
		t.Fatalf("CancelTask: %v", err)
	}
	var last api.TaskStatus
	if err := conn.ReadJSON(&last); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if last.Status != "cancelled" {
		t.Fatalf("expected cancelled snapshot, got %+v", last)
	}
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close, got %v", err)
	}
}
