// Package cvat provides a client for the CVAT REST API endpoints used by the
// annotation operations tooling: task and job listing, annotation payloads,
// frame metadata, memberships, task creation with cloud-storage data, and
// annotation import with asynchronous request polling.
//
// Every call carries its own timeout. Idempotent GETs are retried with
// exponential backoff on network errors and 5xx responses; writes are never
// retried. Failures are returned as *APIError so callers can decide, per
// Recoverable, whether a single item falls back to a default value.
package cvat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout bounds ordinary API calls.
	DefaultTimeout = 30 * time.Second

	// metaTimeout bounds frame metadata calls, which are slow on large tasks.
	metaTimeout = 60 * time.Second

	// uploadTimeout bounds data attach and annotation upload calls.
	uploadTimeout = 120 * time.Second

	// DefaultRetries is the number of retries for idempotent GETs.
	DefaultRetries = 3

	// Page sizes, capped at what the server accepts.
	taskPageSize       = 500
	jobPageSize        = 1000
	membershipPageSize = 100
	requestPageSize    = 100
)

// Client talks to one CVAT server on behalf of one organization.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	org        string
	timeout    time.Duration
	retries    int
	retryBase  time.Duration
	onRequest  func()
}

// Option configures a Client.
type Option func(*Client)

// WithOrganization scopes list and create calls to an organization slug.
func WithOrganization(slug string) Option {
	return func(c *Client) { c.org = slug }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries overrides DefaultRetries. Zero disables retries.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRequestHook registers a callback invoked once per HTTP attempt.
func WithRequestHook(fn func()) Option {
	return func(c *Client) { c.onRequest = fn }
}

// NewClient creates a CVAT API client. apiKey is sent as a Token header.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    trimSlash(baseURL),
		apiKey:     apiKey,
		timeout:    DefaultTimeout,
		retries:    DefaultRetries,
		retryBase:  time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Organization returns the organization slug the client is scoped to.
func (c *Client) Organization() string {
	return c.org
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one API call.
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	timeout     time.Duration
}

// --- Internal helpers ---

// getJSON issues a GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, timeout time.Duration, out interface{}) error {
	body, err := c.do(ctx, request{method: http.MethodGet, path: path, query: query, timeout: timeout})
	if err != nil {
		return err
	}
	return decode(http.MethodGet, path, body, out)
}

// sendJSON issues a write with a JSON body and decodes the response into out
// when out is non-nil.
func (c *Client) sendJSON(ctx context.Context, method, path string, query url.Values, payload interface{}, timeout time.Duration, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", method, path, err)
	}
	body, err := c.do(ctx, request{
		method:      method,
		path:        path,
		query:       query,
		body:        data,
		contentType: "application/json",
		timeout:     timeout,
	})
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return decode(method, path, body, out)
}

// do executes req, retrying idempotent GETs on retryable failures.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	attempts := 1
	if req.method == http.MethodGet {
		attempts += c.retries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := c.retryBase << (attempt - 1)
			log.Debug().Str("path", req.path).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("Retrying CVAT API request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := c.once(ctx, req)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !retryable(apiErr) {
			return nil, err
		}
	}
	return nil, lastErr
}

// retryable reports whether a failed attempt may be repeated.
func retryable(err *APIError) bool {
	switch err.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindServer:
		switch err.StatusCode {
		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

// once performs a single HTTP attempt.
func (c *Client) once(ctx context.Context, req request) ([]byte, error) {
	timeout := req.timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var bodyReader io.Reader
	if req.body != nil {
		bodyReader = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(callCtx, req.method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Token "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	if c.onRequest != nil {
		c.onRequest()
	}

	startTime := time.Now()
	log.Debug().Str("method", req.method).Str("path", req.path).Msg("CVAT API request")
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("CVAT API response")
		kind := KindNetwork
		if isTimeout(err) && ctx.Err() == nil {
			kind = KindTimeout
		} else if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &APIError{Kind: kind, Method: req.method, Path: req.path, Err: err}
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("CVAT API response")

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		kind := KindNetwork
		if isTimeout(err) {
			kind = KindTimeout
		}
		return nil, &APIError{Kind: kind, StatusCode: httpResp.StatusCode, Method: req.method, Path: req.path, Err: fmt.Errorf("read response: %w", err)}
	}

	if httpResp.StatusCode >= 400 {
		kind := KindClient
		if httpResp.StatusCode >= 500 {
			kind = KindServer
		}
		return nil, &APIError{
			Kind:       kind,
			StatusCode: httpResp.StatusCode,
			Method:     req.method,
			Path:       req.path,
			Body:       truncate(string(body), 500),
		}
	}
	return body, nil
}

func decode(method, path string, body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Kind: KindDecode, Method: method, Path: path, Body: truncate(string(body), 200), Err: err}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// listAll follows page numbers until the server reports no next page.
func listAll[T any](ctx context.Context, c *Client, path string, query url.Values, pageSize int) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("page_size", strconv.Itoa(pageSize))

	var all []T
	for pageNum := 1; ; pageNum++ {
		query.Set("page", strconv.Itoa(pageNum))
		var p page[T]
		if err := c.getJSON(ctx, path, query, 0, &p); err != nil {
			return nil, fmt.Errorf("list %s page %d: %w", path, pageNum, err)
		}
		all = append(all, p.Results...)
		if p.Next == nil || *p.Next == "" || len(p.Results) == 0 {
			return all, nil
		}
	}
}

// orgQuery returns a query carrying the organization slug when set.
func (c *Client) orgQuery() url.Values {
	q := url.Values{}
	if c.org != "" {
		q.Set("org", c.org)
	}
	return q
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
