// Package scryfall is a minimal Scryfall API client covering the two
// remote needs of the tool: bulk catalog downloads and saved-query
// searches for remote tags.
package scryfall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.scryfall.com"
	rateLimitDelay = 100 * time.Millisecond // 10 req/sec
	requestTimeout = 30 * time.Second
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 16 * time.Second

	// Scryfall paginates searches; cap how far a saved query is
	// followed so a runaway query cannot loop forever.
	maxSearchPages = 40
)

// Client represents a Scryfall API client with rate limiting.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	userAgent   string
}

// NewClient creates a new Scryfall API client.
func NewClient() *Client {
	return NewClientWithBaseURL(defaultBaseURL)
}

// NewClientWithBaseURL creates a client against a non-default API
// host, used by tests.
func NewClientWithBaseURL(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		rateLimiter: rate.NewLimiter(rate.Every(rateLimitDelay), 1),
		baseURL:     baseURL,
		userAgent:   "Trappist/1.0",
	}
}

// GetBulkData retrieves bulk data download information.
func (c *Client) GetBulkData(ctx context.Context) (*BulkDataList, error) {
	var bulkData BulkDataList
	if err := c.doRequest(ctx, c.baseURL+"/bulk-data", &bulkData); err != nil {
		return nil, fmt.Errorf("failed to get bulk data: %w", err)
	}
	return &bulkData, nil
}

// DownloadBulkData streams the bulk file behind data. The caller owns
// the returned body.
func (c *Client) DownloadBulkData(ctx context.Context, data *BulkData) (io.ReadCloser, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, data.DownloadURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	// Bulk files run to hundreds of megabytes; the per-request timeout
	// would cut the stream short.
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download bulk data: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, &NotFoundError{URL: data.DownloadURI}
		}
		return nil, fmt.Errorf("bulk download failed with status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// SearchCardNames runs a Scryfall search and returns the unique card
// names across every page of results.
func (c *Client) SearchCardNames(ctx context.Context, query string) ([]string, error) {
	pageURL := fmt.Sprintf("%s/cards/search?q=%s", c.baseURL, url.QueryEscape(query))

	var names []string
	seen := make(map[string]struct{})

	for page := 0; pageURL != ""; page++ {
		if page >= maxSearchPages {
			return nil, fmt.Errorf("search %q exceeded %d pages", query, maxSearchPages)
		}

		var result SearchResult
		if err := c.doRequest(ctx, pageURL, &result); err != nil {
			if IsNotFound(err) {
				// Scryfall answers 404 for a query matching nothing.
				return nil, nil
			}
			return nil, fmt.Errorf("failed to search cards with query '%s': %w", query, err)
		}

		for _, card := range result.Data {
			if _, ok := seen[card.Name]; ok {
				continue
			}
			seen[card.Name] = struct{}{}
			names = append(names, card.Name)
		}

		pageURL = ""
		if result.HasMore {
			pageURL = result.NextPage
		}
	}
	return names, nil
}

// doRequest performs an HTTP request with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, url string, result interface{}) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			if attempt < maxRetries {
				time.Sleep(backoff)
				backoff = minDuration(backoff*2, maxBackoff)
				continue
			}
			return lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			if readErr != nil {
				return fmt.Errorf("failed to read response body: %w", readErr)
			}
			if err := json.Unmarshal(body, result); err != nil {
				return fmt.Errorf("failed to parse JSON response: %w", err)
			}
			return nil

		case http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (HTTP 429)")
			if attempt < maxRetries {
				retryAfter := resp.Header.Get("Retry-After")
				if duration, err := time.ParseDuration(retryAfter + "s"); retryAfter != "" && err == nil {
					time.Sleep(duration)
				} else {
					time.Sleep(backoff)
				}
				backoff = minDuration(backoff*2, maxBackoff)
				continue
			}
			return lastErr

		case http.StatusNotFound:
			return &NotFoundError{URL: url}

		default:
			var apiErr APIError
			if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Details != "" {
				return &apiErr
			}
			return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
