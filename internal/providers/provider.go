// Package providers holds the HTTP plumbing shared by the external data sources:
// the commodity price workbook, the World Bank indicators API and the IMF World
// Economic Outlook file.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrFetch marks a failed download. Nothing is retried; the caller reruns.
var ErrFetch = errors.New("fetch failed")

const (
	defaultTimeoutSeconds = 20
	defaultUserAgent      = "TradeImpact/0.1"
	maxErrorBody          = 512
)

type Config struct {
	BaseURL         string
	Timeout         time.Duration
	UserAgent       string
	RateLimitPerSec int
	RateLimitBurst  int
}

type Client struct {
	config  Config
	client  *http.Client
	limiter *rateLimiter
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeoutSeconds * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Client{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: newRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst),
	}
}

// Get fetches path and returns the whole body.
// Close releases the rate limiter. Requests made afterwards fail with ErrClosed.
func (c *Client) Close() error {
	c.limiter.Stop()
	return nil
}

func (c *Client) Get(ctx context.Context, path string, params url.Values, accept string) ([]byte, error) {
	body, err := c.Open(ctx, path, params, accept)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrFetch, path, err)
	}
	return data, nil
}

// Open fetches path and hands back the body for streaming. The caller closes it.
func (c *Client) Open(ctx context.Context, path string, params url.Values, accept string) (io.ReadCloser, error) {
	endpoint, err := c.BuildURL(path, params)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, endpoint, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %s (%s): %s", ErrFetch, endpoint, resp.Status, strings.TrimSpace(string(snippet)))
	}
	return resp.Body, nil
}

// BuildURL joins path onto the base URL. An absolute path is used as is.
func (c *Client) BuildURL(path string, params url.Values) (string, error) {
	endpoint := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if c.config.BaseURL == "" {
			return "", fmt.Errorf("providers: relative path %q without a base url", path)
		}
		endpoint = c.config.BaseURL + strings.TrimLeft(path, "/")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("providers: bad url %q: %w", endpoint, err)
	}

	if len(params) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + params.Encode()
	}
	return endpoint, nil
}
