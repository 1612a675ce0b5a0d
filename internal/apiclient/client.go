package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"podforge/internal/api"
)

const (
	defaultTimeout = 30 * time.Second
	sessionHeader  = "X-Session-Id"
)

// Error is a non-2xx reply from the daemon.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to one daemon.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	dialer  *websocket.Dialer
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// New returns a client for the daemon listening at baseURL, for example
// http://127.0.0.1:7480.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: defaultTimeout},
		dialer:  websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the daemon address.
func (c *Client) BaseURL() string { return c.baseURL }

// Health checks the unauthenticated health route.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil, nil)
}

// Status returns the daemon summary.
func (c *Client) Status(ctx context.Context) (*api.ServiceStatus, error) {
	var out api.ServiceStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit creates a text or url task.
func (c *Client) Submit(ctx context.Context, sessionID string, req api.SubmitRequest) (*api.SubmitResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	header := http.Header{"Content-Type": []string{"application/json"}}
	if sessionID != "" {
		header.Set(sessionHeader, sessionID)
	}
	var out api.SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/tasks", bytes.NewReader(body), header, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitFile uploads path and creates a file task with the remaining fields
// of req.
func (c *Client) SubmitFile(ctx context.Context, sessionID, path string, req api.SubmitRequest) (*api.SubmitResponse, error) {
	fields := map[string]string{
		"source":       "file",
		"format":       req.Format,
		"style":        req.Style,
		"duration":     req.Duration,
		"presentation": req.Presentation,
		"music":        req.Music,
		"title":        req.Title,
		"description":  req.Description,
		"cover_prompt": req.CoverPrompt,
	}
	if req.Speed != 0 {
		fields["speed"] = strconv.FormatFloat(req.Speed, 'f', -1, 64)
	}
	if req.MusicGainDB != nil {
		fields["music_gain_db"] = strconv.FormatFloat(*req.MusicGainDB, 'f', -1, 64)
	}
	if req.SeparateTracks {
		fields["separate_tracks"] = "true"
	}
	if len(req.VoiceMap) > 0 {
		raw, err := json.Marshal(req.VoiceMap)
		if err != nil {
			return nil, fmt.Errorf("encode voice map: %w", err)
		}
		fields["voice_map"] = string(raw)
	}
	body, header, err := uploadForm(path, fields)
	if err != nil {
		return nil, err
	}
	if sessionID != "" {
		header.Set(sessionHeader, sessionID)
	}
	var out api.SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/tasks", body, header, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Extract returns the cleaned text for a text or url source.
func (c *Client) Extract(ctx context.Context, req api.ExtractRequest) (*api.ExtractResponse, error) {
	var out api.ExtractResponse
	if err := c.postJSON(ctx, "/api/extract", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractFile uploads path and returns its cleaned text. The daemon does
// not keep the upload.
func (c *Client) ExtractFile(ctx context.Context, path string) (*api.ExtractResponse, error) {
	body, header, err := uploadForm(path, map[string]string{"source": "file"})
	if err != nil {
		return nil, err
	}
	var out api.ExtractResponse
	if err := c.do(ctx, http.MethodPost, "/api/extract", body, header, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Script generates a script without creating a task.
func (c *Client) Script(ctx context.Context, req api.ScriptRequest) (*api.ScriptResponse, error) {
	var out api.ScriptResponse
	if err := c.postJSON(ctx, "/api/script", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	header := http.Header{"Content-Type": []string{"application/json"}}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), header, out)
}

// uploadForm builds a multipart body with the non-empty fields and path
// as the file part.
func uploadForm(path string, fields map[string]string) (*bytes.Buffer, http.Header, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return nil, nil, err
		}
	}
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, nil, fmt.Errorf("read upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, nil, err
	}
	return &body, http.Header{"Content-Type": []string{writer.FormDataContentType()}}, nil
}

// Task fetches one task.
func (c *Client) Task(ctx context.Context, id string) (*api.TaskStatus, error) {
	var out api.TaskStatus
	if err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tasks lists tasks, optionally filtered by session and statuses.
func (c *Client) Tasks(ctx context.Context, sessionID string, statuses []string, limit int) ([]api.TaskStatus, error) {
	query := url.Values{}
	if sessionID != "" {
		query.Set("session", sessionID)
	}
	if len(statuses) > 0 {
		query.Set("status", strings.Join(statuses, ","))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out api.TaskListResponse
	if err := c.do(ctx, http.MethodGet, withQuery("/api/tasks", query), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// Cancel requests cancellation of a pending or running task.
func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(id)+"/cancel", nil, nil, nil)
}

// Podcasts lists completed episodes, newest first.
func (c *Client) Podcasts(ctx context.Context, limit int) ([]api.Podcast, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out api.PodcastListResponse
	if err := c.do(ctx, http.MethodGet, withQuery("/api/podcasts", query), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Podcasts, nil
}

// Voices lists synthesis voices.
func (c *Client) Voices(ctx context.Context) (*api.VoiceListResponse, error) {
	var out api.VoiceListResponse
	if err := c.do(ctx, http.MethodGet, "/api/voices", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Music lists background tracks.
func (c *Client) Music(ctx context.Context) ([]api.Track, error) {
	var out api.TrackListResponse
	if err := c.do(ctx, http.MethodGet, "/api/music", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Tracks, nil
}

// Cleanup runs a retention sweep on the daemon.
func (c *Client) Cleanup(ctx context.Context) (*api.CleanupReport, error) {
	var out api.CleanupReport
	if err := c.do(ctx, http.MethodPost, "/api/cleanup", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NotificationResult is the reply to a test notification.
type NotificationResult struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) (*NotificationResult, error) {
	var out NotificationResult
	if err := c.do(ctx, http.MethodPost, "/api/notifications/test", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Watch streams status snapshots for id to fn until the task is terminal or
// ctx ends. It returns the last snapshot received.
func (c *Client) Watch(ctx context.Context, id string, fn func(api.TaskStatus)) (*api.TaskStatus, error) {
	target, err := url.Parse(c.baseURL + "/api/tasks/" + url.PathEscape(id) + "/events")
	if err != nil {
		return nil, fmt.Errorf("build watch url: %w", err)
	}
	switch target.Scheme {
	case "https":
		target.Scheme = "wss"
	default:
		target.Scheme = "ws"
	}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := c.dialer.DialContext(ctx, target.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeError(resp)
		}
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var last *api.TaskStatus
	for {
		var status api.TaskStatus
		if err := conn.ReadJSON(&status); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && last != nil {
				return last, nil
			}
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return last, fmt.Errorf("watch task: %w", err)
		}
		last = &status
		if fn != nil {
			fn(status)
		}
		if status.Terminal() {
			return last, nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect to daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload api.ErrorResponse
	message := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		message = payload.Error
	}
	return &Error{StatusCode: resp.StatusCode, Message: message}
}

func withQuery(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
