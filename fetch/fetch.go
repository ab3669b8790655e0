// Package fetch reads presets, fonts and images from local paths or
// http(s) URLs through one retrying HTTP client.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// MaxBodySize caps any single download.
const MaxBodySize = 32 << 20

// ErrBodyTooLarge is returned when a response exceeds the download cap.
var ErrBodyTooLarge = errors.New("fetch: response body too large")

var bodyLimit int64 = MaxBodySize

// Options tunes the HTTP client.
type Options struct {
	Timeout  time.Duration
	RetryMax int
	Logger   *slog.Logger
}

// NewClient builds a retrying client. A nil Logger silences retry logs.
func NewClient(opts Options) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = opts.RetryMax
	if opts.Timeout > 0 {
		c.HTTPClient.Timeout = opts.Timeout
	}
	if opts.Logger != nil {
		c.Logger = opts.Logger
	} else {
		c.Logger = nil
	}
	return c
}

var (
	defaultClient     *retryablehttp.Client
	defaultClientOnce sync.Once
)

// Default returns the shared client used when callers do not supply one.
func Default() *retryablehttp.Client {
	defaultClientOnce.Do(func() {
		defaultClient = NewClient(Options{Timeout: 15 * time.Second, RetryMax: 2})
	})
	return defaultClient
}

// IsURL reports whether s names an http(s) resource.
func IsURL(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Status)
}

// Get downloads url. Bodies larger than MaxBodySize fail with ErrBodyTooLarge.
func Get(ctx context.Context, c *retryablehttp.Client, url string) ([]byte, error) {
	if c == nil {
		c = Default()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 lyricard")
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if int64(len(data)) > bodyLimit {
		return nil, fmt.Errorf("GET %s: %w (limit %d bytes)", url, ErrBodyTooLarge, bodyLimit)
	}
	return data, nil
}

// Read loads src from disk or, when it is a URL, over HTTP.
func Read(ctx context.Context, c *retryablehttp.Client, src string) ([]byte, error) {
	if IsURL(src) {
		return Get(ctx, c, src)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}
	return data, nil
}
