// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// DefaultUserAgent is sent when no WithUserAgent option is given.
const DefaultUserAgent = "lodestone/dev"

var (
	// ErrConnection is wrapped by every ConnectionError.
	ErrConnection = errors.New("connection error")

	// ErrUnexpectedStatus is wrapped by every StatusError.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

type (
	// Fetcher opens a byte stream for a URL. The caller closes the stream.
	Fetcher interface {
		Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
	}

	// FetcherFunc adapts a function to the Fetcher interface.
	FetcherFunc func(ctx context.Context, rawURL string) (io.ReadCloser, error)

	// ConnectionError is any I/O failure while downloading a URL.
	ConnectionError struct {
		// URL is the requested URL with query and fragment removed.
		URL string
		Err error
	}

	// StatusError is a response outside the 2xx range.
	StatusError struct {
		Code int
	}

	// Client downloads over HTTP(S).
	Client struct {
		httpClient *http.Client
		userAgent  string
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)
)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	return f(ctx, rawURL)
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("downloading %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrConnection.
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// Is lets errors.Is match ErrUnexpectedStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// NewConnectionError wraps err for rawURL, redacting the URL. A nil err
// returns nil, and an err that already is a ConnectionError is returned as is.
func NewConnectionError(rawURL string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return err
	}
	return &ConnectionError{URL: RedactURL(rawURL), Err: err}
}

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy configurations.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

// NewClient creates a Client. Defaults: http.DefaultClient and DefaultUserAgent.
// No retries and no request timeout are applied.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch issues a GET for rawURL and returns the response body as a stream.
// Non-2xx responses are returned as a ConnectionError wrapping a StatusError.
func (c *Client) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, NewConnectionError(rawURL, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewConnectionError(rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, NewConnectionError(rawURL, &StatusError{Code: resp.StatusCode})
	}

	return resp.Body, nil
}

// RedactURL strips query parameters, fragments and user info from a URL so
// it can be logged and put in error messages.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
