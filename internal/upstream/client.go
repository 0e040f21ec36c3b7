package upstream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
	userAgent      = "streamfront/1.0"
)

// Client performs exactly one outbound call per request. It never retries.
type Client struct {
	http *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// NewClientWith wraps an existing http.Client, e.g. one without a deadline
// for streaming relays.
func NewClientWith(hc *http.Client) *Client {
	return &Client{http: hc}
}

// WithRedirectPolicy returns a copy of c whose redirects are vetted by check.
func (c *Client) WithRedirectPolicy(check func(req *http.Request, via []*http.Request) error) *Client {
	hc := *c.http
	hc.CheckRedirect = check
	return &Client{http: &hc}
}

// Error is a non-2xx answer from a third-party API.
type Error struct {
	Status int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Msg)
}

func IsUpstreamError(err error) bool {
	var target *Error
	return errors.As(err, &target)
}

// StatusOf maps err to the status to answer with: the upstream status for an
// *Error, 500 for anything else.
func StatusOf(err error) int {
	var target *Error
	if errors.As(err, &target) && target.Status >= 400 {
		return target.Status
	}
	return http.StatusInternalServerError
}

// Do sends req. A non-2xx response is drained, closed and returned as *Error;
// otherwise the caller owns resp.Body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Host, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &Error{Status: resp.StatusCode, Msg: msg}
	}
	return resp, nil
}
