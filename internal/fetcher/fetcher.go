// Package fetcher retrieves listing/detail pages and image binaries from the
// ticketing site over HTTP. A single attempt per request; failures propagate
// to the caller as *FetchError.
package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
)

// FetchError reports a transport failure or a non-success HTTP status.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Options controls HTTP fetching behaviour.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
	Limiter      *HostLimiter
}

// Client performs blocking GET requests against the source site.
type Client struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	limiter      *HostLimiter
}

// NewClient constructs an HTTP client using the provided options.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 * 1024 * 1024 // 5MB cap
	}

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		userAgent:    opts.UserAgent,
		maxBodyBytes: opts.MaxBodyBytes,
		limiter:      opts.Limiter,
	}
}

// FetchHTML downloads a page and parses it into a DOM document.
func (c *Client) FetchHTML(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, _, err := c.get(ctx, rawURL, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("parse html: %w", err)}
	}
	return doc, nil
}

// FetchBinary downloads a raw resource (an image) and returns its bytes and
// reported content type.
func (c *Client) FetchBinary(ctx context.Context, rawURL string) ([]byte, string, error) {
	return c.get(ctx, rawURL, "image/*,*/*;q=0.8")
}

func (c *Client) get(ctx context.Context, rawURL, accept string) ([]byte, string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, "", &FetchError{URL: rawURL, Err: errors.New("empty url")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", &FetchError{URL: rawURL, Err: fmt.Errorf("build request: %w", err)}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "fa-IR,fa;q=0.9,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, req.URL.Hostname()); err != nil {
			return nil, "", &FetchError{URL: rawURL, Err: err}
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", &FetchError{URL: rawURL, Err: err}
	}

	body, err := c.readBody(resp)
	if err != nil {
		return nil, "", &FetchError{URL: rawURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, errors.New("empty response body")
	}

	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	limited := io.LimitReader(reader, c.maxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds limit of %d bytes", c.maxBodyBytes)
	}
	return body, nil
}
