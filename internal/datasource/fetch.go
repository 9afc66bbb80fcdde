package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"hretl/internal/metrics"
)

// Fetcher reads raw bytes from a local path, a file:// URL or an http(s)
// URL with a consistent timeout policy.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// NewFetcher creates a Fetcher. If client is nil, http.DefaultClient is used.
func NewFetcher(client *http.Client, timeout time.Duration, userAgent string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = "hretl/1.0"
	}
	return &Fetcher{
		client:    client,
		timeout:   timeout,
		userAgent: userAgent,
	}
}

// Fetch returns the content at location.
//
// On non-2xx HTTP responses, Fetch returns an error that includes the status
// code and up to 4KB of the response body for debugging.
func (f *Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err != nil || len(u.Scheme) <= 1 {
		return readFile(location)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return f.get(ctx, location)
	case "file":
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		return readFile(p)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

func readFile(p string) ([]byte, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return b, nil
}

func (f *Fetcher) get(ctx context.Context, location string) (body []byte, err error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	status := 0
	defer func() {
		metrics.RecordHTTP(status, time.Since(start), int64(len(body)), err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}
