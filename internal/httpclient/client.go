// Package httpclient builds the outbound HTTP client and posts JSON payloads.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxErrorBody bounds how much of a failed response is kept in the error
const maxErrorBody = 512

// New creates an HTTP client with the given timeout. When proxyURL is not
// empty, all traffic is routed through it.
func New(proxyURL string, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy URL %q: scheme and host required", proxyURL)
		}
		transport.Proxy = http.ProxyURL(u)
	} else {
		transport.Proxy = nil
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// Poster sends JSON bodies with POST
type Poster struct {
	client          *http.Client
	retries         uint64
	initialInterval time.Duration
}

// PosterOption is a functional option for configuring the Poster
type PosterOption func(*Poster)

// WithRetry enables up to attempts extra tries per post, with exponential
// backoff starting at initial.
func WithRetry(attempts int, initial time.Duration) PosterOption {
	return func(p *Poster) {
		if attempts > 0 {
			p.retries = uint64(attempts)
		}
		if initial > 0 {
			p.initialInterval = initial
		}
	}
}

// NewPoster creates a Poster. Without WithRetry each post is a single attempt.
func NewPoster(client *http.Client, opts ...PosterOption) *Poster {
	p := &Poster{
		client:          client,
		initialInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Post marshals body as JSON and sends it to target. Transport errors and
// non-2xx statuses are returned; callers decide whether they matter.
func (p *Poster) Post(ctx context.Context, target string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if p.retries == 0 {
		return p.send(ctx, target, data)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialInterval
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, p.retries), ctx)
	return backoff.Retry(func() error {
		return p.send(ctx, target, data)
	}, policy)
}

func (p *Poster) send(ctx context.Context, target string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{URL: target, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
