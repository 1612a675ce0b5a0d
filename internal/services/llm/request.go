package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"podforge/internal/services"
	"podforge/internal/textutil"
)

type chatCompletionRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatChoice struct {
	Message chatCompletionMessage `json:"message"`
	// Some providers answer with the streaming shape even for stream=false.
	Delta        chatCompletionMessage `json:"delta"`
	Text         string                `json:"text"`
	FinishReason string                `json:"finish_reason"`
}

type chatCompletionMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

// completionOutcome is what one response yielded once choices are merged.
type completionOutcome struct {
	Content      string
	FinishReason string
	Refusal      string
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, snippet(e.Body))
}

// Is marks rejected credentials and unknown models or endpoints as
// configuration errors, which no retry can fix.
func (e *httpStatusError) Is(target error) bool {
	if target != services.ErrConfiguration {
		return false
	}
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

type emptyContentError struct {
	Op      string
	Outcome completionOutcome
	Body    string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op, e.Outcome.FinishReason, e.Outcome.Refusal, snippet(e.Body))
}

func (c *Client) newChatRequest(ctx context.Context, payload chatCompletionRequest) (*http.Request, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("llm request: new request: %w", err)
	}
	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"Content-Type":  "application/json",
		"HTTP-Referer":  c.cfg.Referer,
		"X-Title":       c.cfg.Title,
	}
	for name, value := range headers {
		if value != "" {
			req.Header.Set(name, value)
		}
	}
	return req, nil
}

// sendChatRequestOnce performs a single round trip. Non-2xx answers come back
// as *httpStatusError so the retry loop can classify them.
func (c *Client) sendChatRequestOnce(ctx context.Context, payload chatCompletionRequest) (completionOutcome, string, error) {
	req, err := c.newChatRequest(ctx, payload)
	if err != nil {
		return completionOutcome{}, "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return completionOutcome{}, "", fmt.Errorf("llm request: http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return completionOutcome{}, "", fmt.Errorf("llm request: read body: %w", err)
	}
	body := strings.TrimSpace(string(raw))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return completionOutcome{}, body, &httpStatusError{StatusCode: resp.StatusCode, Body: body, RetryAfter: retryAfter}
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return completionOutcome{}, body, fmt.Errorf("llm request: decode response: %w", err)
	}
	if decoded.Error != nil {
		return completionOutcome{}, body, fmt.Errorf("llm request: api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	return mergeChoices(decoded.Choices), body, nil
}

// mergeChoices returns the first non-empty text across choices, along with
// the first finish reason and refusal seen.
func mergeChoices(choices []chatChoice) completionOutcome {
	var out completionOutcome
	for _, choice := range choices {
		if out.FinishReason == "" {
			out.FinishReason = strings.TrimSpace(choice.FinishReason)
		}
		if out.Refusal == "" {
			out.Refusal = firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal)
		}
		if out.Content = firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); out.Content != "" {
			break
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}

func snippet(body string) string {
	flat := textutil.Excerpt(body, 160)
	if flat == "" {
		return "<empty>"
	}
	if flat != strings.Join(strings.Fields(body), " ") {
		flat += "..."
	}
	return flat
}
