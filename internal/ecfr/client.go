package ecfr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/regwatch/ecfr-ingest/internal/telemetry"
)

// ClientConfig controls upstream request behavior.
type ClientConfig struct {
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	RequestSpacing time.Duration
	MaxInFlight    int
}

// Client issues paced, retried requests against the eCFR API. All requests,
// across all callers, share one Pacer and one in-flight semaphore.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	pacer      *Pacer
	retry      RetryPolicy
	inflight   chan struct{}
	logger     *zap.Logger
}

// NewClient builds a Client. A nil retry policy falls back to the default
// exponential policy; a nil logger falls back to a no-op logger.
func NewClient(cfg ClientConfig, retry RetryPolicy, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.ecfr.gov/api"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 5
	}
	if retry == nil {
		retry = NewExponentialRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		pacer:      NewPacer(cfg.RequestSpacing),
		retry:      retry,
		inflight:   make(chan struct{}, cfg.MaxInFlight),
		logger:     logger,
	}
}

// FetchAgencies retrieves the agency directory.
func (c *Client) FetchAgencies(ctx context.Context) ([]AgencyRecord, error) {
	url := fmt.Sprintf("%s/admin/v1/agencies.json", c.baseURL)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	var resp directoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ResolutionError{Err: fmt.Errorf("decode agency directory: %w", err)}
	}
	return resp.Agencies, nil
}

// FetchTitleXML retrieves the full XML for a CFR title as of the given date
// (YYYY-MM-DD).
func (c *Client) FetchTitleXML(ctx context.Context, title int, asOf string) ([]byte, error) {
	url := fmt.Sprintf("%s/versioner/v1/full/%s/title-%d.xml", c.baseURL, asOf, title)
	return c.get(ctx, url)
}

// FetchTitleVersions retrieves the version history for a CFR title.
func (c *Client) FetchTitleVersions(ctx context.Context, title int) ([]TitleVersion, error) {
	url := fmt.Sprintf("%s/versioner/v1/versions/title-%d.json", c.baseURL, title)
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	var resp versionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("decode versions: %w", err)}
	}
	return resp.ContentVersions, nil
}

// get runs the paced, retried request loop for a single URL. Exactly one
// in-flight slot is held for the whole attempt sequence so that retries do
// not inflate effective concurrency.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	select {
	case c.inflight <- struct{}{}:
	case <-ctx.Done():
		return nil, &FetchError{URL: url, Err: ctx.Err()}
	}
	defer func() { <-c.inflight }()

	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			telemetry.IncFetchRetries()
			backoff := c.retry.Backoff(attempt - 1)
			c.logger.Debug("retrying fetch",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, &FetchError{URL: url, Err: err}
			}
		}

		body, err := c.doRequest(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !c.retry.ShouldRetry(err, attempt+1) {
			break
		}
	}

	c.logger.Warn("fetch failed", zap.String("url", url), zap.Error(lastErr))
	if fe, ok := lastErr.(*FetchError); ok {
		return nil, fe
	}
	return nil, &FetchError{URL: url, Err: lastErr}
}

// doRequest performs one paced HTTP GET.
func (c *Client) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // read side closed best-effort

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused by the pool.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
