// Package client is a small Go SDK for the NCBO BioPortal Annotator, the
// text-annotation service used to map compound names to ChEBI identifiers.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/rxn-reconciler/pkg/errors"
)

const Version = "0.1.0"

// DefaultBaseURL is the public annotator endpoint.
const DefaultBaseURL = "https://data.bioontology.org/annotator"

// Logger defines the logging interface used by the Client
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debugf(format string, args ...interface{}) {}
func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

// Client calls the annotator. It is safe for concurrent use.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	apiKey       string
	userAgent    string
	logger       Logger
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
}

// APIError is a non-2xx answer from the annotator.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("annotator: HTTP %d: %s [request_id=%s]", e.StatusCode, e.Message, e.RequestID)
}

func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// NewClient creates an annotator client. Retries are off unless WithRetryMax
// is given.
func NewClient(baseURL string, apiKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New(errors.ErrCodeConfig, "annotator base URL is required")
	}
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeConfig, "annotator API key is required")
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfig, "invalid annotator base URL")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, errors.Newf(errors.ErrCodeConfig, "annotator base URL scheme must be http or https, got %q", parsedURL.Scheme)
	}

	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		userAgent:    fmt.Sprintf("rxn-reconciler/%s", Version),
		logger:       &noopLogger{},
		retryMax:     0,
		retryWaitMin: 500 * time.Millisecond,
		retryWaitMax: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// get issues GET baseURL?query and decodes a JSON body into result. Transport
// failures and non-2xx answers come back as ErrCodeAnnotatorUnavailable (or
// ErrCodeAnnotatorAuthFailed for 401/403); undecodable bodies as
// ErrCodeAnnotatorBadResponse.
func (c *Client) get(ctx context.Context, query url.Values, result interface{}) error {
	query = cloneValues(query)
	query.Set("apikey", c.apiKey)
	fullURL := c.baseURL + "?" + query.Encode()

	var lastErr error
	// waited is set when a Retry-After delay already ran for this attempt.
	waited := false
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 && !waited {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debugf("retry attempt %d after %v", attempt, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.ErrCodeAnnotatorUnavailable, "annotator request cancelled")
			}
		}

		waited = false

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeAnnotatorUnavailable, "build annotator request")
		}
		requestID := uuid.New().String()
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("X-Request-ID", requestID)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(start)
		if err != nil {
			// The error embeds the URL, which carries the key.
			c.logger.Errorf("annotator request %s failed after %v", requestID, duration)
			lastErr = errors.Wrap(redactKey(err, c.apiKey), errors.ErrCodeAnnotatorUnavailable, "annotator request failed")
			if ctx.Err() != nil {
				return lastErr
			}
			continue
		}

		c.logger.Debugf("GET annotator %d (%v) [request_id=%s]", resp.StatusCode, duration, requestID)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = errors.Wrap(err, errors.ErrCodeAnnotatorUnavailable, "read annotator response")
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.retryMax {
			if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				c.logger.Infof("rate limited, retrying after %d seconds", seconds)
				select {
				case <-time.After(time.Duration(seconds) * time.Second):
				case <-ctx.Done():
					return errors.Wrap(ctx.Err(), errors.ErrCodeAnnotatorUnavailable, "annotator request cancelled")
				}
				waited = true
			}
		}

		if resp.StatusCode >= 400 {
			apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: requestID, Message: errorMessage(body)}
			if apiErr.IsUnauthorized() {
				return errors.Wrap(apiErr, errors.ErrCodeAnnotatorAuthFailed, "annotator rejected the API key")
			}
			lastErr = errors.Wrap(apiErr, errors.ErrCodeAnnotatorUnavailable, "annotator returned an error")
			if apiErr.IsServerError() || apiErr.IsRateLimited() {
				continue
			}
			return lastErr
		}

		if result != nil && len(body) > 0 {
			if err := json.Unmarshal(body, result); err != nil {
				return errors.Wrap(err, errors.ErrCodeAnnotatorBadResponse, "decode annotator response").WithDetail(requestID)
			}
		}
		return nil
	}
	return lastErr
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := c.retryWaitMin * time.Duration(1<<uint(attempt-1))
	if backoff > c.retryWaitMax {
		backoff = c.retryWaitMax
	}
	if quarter := int64(backoff / 4); quarter > 0 {
		backoff += time.Duration(rand.Int63n(quarter))
	}
	return backoff
}

// errorMessage pulls "errors" or "error" out of a BioPortal error body and
// falls back to the raw text.
func errorMessage(body []byte) string {
	var resp struct {
		Errors []string `json:"errors"`
		Error  string   `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil {
		if len(resp.Errors) > 0 {
			return strings.Join(resp.Errors, "; ")
		}
		if resp.Error != "" {
			return resp.Error
		}
	}
	return strings.TrimSpace(string(body))
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.cause }

func redactKey(err error, key string) error {
	msg := err.Error()
	if key == "" || !strings.Contains(msg, key) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(msg, key, "REDACTED"), cause: err}
}
