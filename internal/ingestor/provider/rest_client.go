package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"golang-market-ingestor/pkg/logger"
)

const maxFetchAttempts = 3

// restClient is the shared rate-limited HTTP client for provider REST APIs.
// Each provider gets its own instance carrying its credentials and budget.
type restClient struct {
	name      string
	baseURL   string
	authParam string
	authKey   string
	client    *http.Client
	limiter   *rate.Limiter
	logger    *logger.Logger
}

func newRESTClient(name, baseURL, authParam, authKey string, maxRequestPerMinute int, timeout time.Duration, log *logger.Logger) *restClient {
	if maxRequestPerMinute <= 0 {
		maxRequestPerMinute = 60
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &restClient{
		name:      name,
		baseURL:   baseURL,
		authParam: authParam,
		authKey:   authKey,
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(maxRequestPerMinute)), 1),
		logger:    log,
	}
}

// get performs a rate-limited GET with retry on transient failures and
// decodes the JSON response into out. Exhausted retries surface as a
// TransientError so the orchestrator abandons the batch without advancing
// the watermark.
func (c *restClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	if c.authParam != "" {
		params.Set(c.authParam, c.authKey)
	}
	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		body, retryable, err := c.doRequest(ctx, endpoint)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decode %s response for %s: %w", c.name, path, err)
			}
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}

		c.logger.Warn("provider request failed, retrying",
			logger.StringField("provider", c.name),
			logger.StringField("path", path),
			logger.IntField("attempt", attempt),
			logger.ErrorField(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return &TransientError{Err: lastErr}
}

func (c *restClient) doRequest(ctx context.Context, endpoint string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%s returned status %d", c.name, resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("%s returned status %d: %s", c.name, resp.StatusCode, string(body))
	}
}
