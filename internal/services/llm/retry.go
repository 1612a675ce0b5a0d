package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func (c *Client) completionContentWithRetry(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	attempts := max(c.retryMaxAttempts, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var (
			outcome completionOutcome
			body    string
		)
		outcome, body, err = c.sendChatRequestOnce(ctx, payload)
		if err == nil {
			if outcome.Content != "" {
				return outcome.Content, nil
			}
			err = &emptyContentError{Op: op, Outcome: outcome, Body: body}
		}

		retryable, hinted := classify(err)
		if !retryable || attempt == attempts || ctx.Err() != nil {
			if attempt == 1 {
				return "", err
			}
			return "", fmt.Errorf("%s: failed after %d attempts: %w", op, attempt, err)
		}
		delay := c.backoffDelay(attempt)
		if hinted > 0 {
			delay = c.capDelay(hinted)
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return "", sleepErr
		}
	}
	return "", err
}

// classify reports whether err is worth another attempt and any wait the
// provider asked for. Timeouts, 408, 429, 5xx and empty replies retry;
// other statuses and cancellation do not.
func classify(err error) (retryable bool, retryAfter time.Duration) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, 0
	}
	var empty *emptyContentError
	if errors.As(err, &empty) {
		return true, 0
	}
	var status *httpStatusError
	if errors.As(err, &status) {
		code := status.StatusCode
		if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
			return true, status.RetryAfter
		}
		return false, 0
	}
	// *url.Error implements net.Error, so client timeouts land here too.
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout(), 0
}

// backoffDelay doubles from the base delay per attempt, capped at the max.
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.retryBaseDelay
	for i := 1; i < attempt && delay > 0; i++ {
		if c.retryMaxDelay > 0 && delay >= c.retryMaxDelay {
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if c.retryMaxDelay > 0 {
		delay = min(delay, c.retryMaxDelay)
	}
	return max(delay, 0)
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if err := ctx.Err(); err != nil || delay <= 0 {
		return err
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date. Past or negative
// values are rejected.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	var delay time.Duration
	if seconds, err := strconv.Atoi(value); err == nil {
		delay = time.Duration(seconds) * time.Second
	} else if when, err := http.ParseTime(value); err == nil {
		delay = time.Until(when)
	} else {
		return 0, false
	}
	if delay < 0 {
		return 0, false
	}
	return delay, true
}
