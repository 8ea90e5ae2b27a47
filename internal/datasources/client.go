package datasources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/platformbuilds/becertain-core/internal/monitoring"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

const (
	retryAttempts  = 3
	retryBaseDelay = 500 * time.Millisecond
	retryBackoff   = 2.0
)

// apiClient is the shared HTTP plumbing for every connector: tenant header
// injection, bounded retries with exponential backoff, and error
// classification into the package sentinels.
type apiClient struct {
	baseURL  string
	tenantID string
	backend  string
	client   *http.Client
	log      logger.Logger
}

func newAPIClient(baseURL, tenantID, backend string, timeout time.Duration, log logger.Logger) *apiClient {
	return &apiClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		tenantID: tenantID,
		backend:  backend,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

func (a *apiClient) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("X-Scope-OrgID", a.tenantID)
	return h
}

// getJSON fetches path with params and decodes the body into out.
// Transport failures retry; HTTP error statuses do not.
func (a *apiClient) getJSON(ctx context.Context, signal, path string, params url.Values, out any) error {
	body, err := a.get(ctx, signal, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s response decode: %v", ErrInvalidQuery, a.backend, err)
	}
	return nil
}

// getText fetches path and returns the raw body.
func (a *apiClient) getText(ctx context.Context, signal, path string) (string, error) {
	body, err := a.get(ctx, signal, path, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (a *apiClient) get(ctx context.Context, signal, path string, params url.Values) ([]byte, error) {
	u := a.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	delay := retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		started := time.Now()
		body, retryable, err := a.doOnce(ctx, u)
		monitoring.RecordFetch(a.backend, signal, time.Since(started), err == nil)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable || attempt == retryAttempts {
			break
		}
		a.log.Debug("datasource request retrying",
			"backend", a.backend, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, classifyContextErr(ctx.Err())
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * retryBackoff)
	}
	return nil, lastErr
}

// doOnce executes a single request. The bool reports whether the failure is
// worth retrying (transport and timeout errors are, HTTP error statuses
// are not).
func (a *apiClient) doOnce(ctx context.Context, u string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	req.Header = a.headers()

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, classifyContextErr(ctx.Err())
		}
		return nil, true, fmt.Errorf("%w: cannot reach %s at %s: %v", ErrUnavailable, a.backend, a.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: reading %s response: %v", ErrUnavailable, a.backend, err)
	}
	if resp.StatusCode >= 400 {
		return nil, false, fmt.Errorf("%w: %s query failed [%d]: %s",
			ErrInvalidQuery, a.backend, resp.StatusCode, truncateBody(body))
	}
	return body, false, nil
}

func classifyContextErr(err error) error {
	if err == context.DeadlineExceeded {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func truncateBody(body []byte) string {
	const limit = 256
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
