// Package apiclient issues authenticated JSON requests against the remote
// REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-auth-gate"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// TokenSource supplies the current bearer token; empty means anonymous.
// *auth.SessionStore satisfies it.
type TokenSource interface {
	AccessToken() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) AccessToken() string {
	if f == nil {
		return ""
	}
	return f()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(l auth.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTrace dumps every request and error response at debug level.
func WithTrace(enabled bool) Option {
	return func(c *Client) {
		c.trace = enabled
	}
}

// Client is a single attempt JSON client. No retries, no caching.
type Client struct {
	baseURL *url.URL
	tokens  TokenSource
	http    *http.Client
	logger  auth.Logger
	trace   bool
}

// New builds a client for baseURL. tokens may be nil.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, goerrors.New("invalid api base url", goerrors.CategoryValidation).
			WithTextCode(auth.TextCodeConfigMissing).
			WithMetadata(map[string]any{"base_url": baseURL})
	}

	c := &Client{
		baseURL: u,
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.logger == nil {
		c.logger = auth.NopLogger()
	}
	if c.tokens == nil {
		c.tokens = TokenFunc(nil)
	}
	return c, nil
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do sends one request. body is JSON encoded when not nil; a 2xx response
// body is decoded into out when out is not nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	endpoint := c.resolve(path)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "build api request").
			WithMetadata(map[string]any{"path": path})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.tokens.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if c.trace {
		c.logger.Debug("api request", "request", print.PrintHTTPRequest(req))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		clone := ErrNetwork.Clone()
		clone.Source = err
		return clone.WithMetadata(map[string]any{
			"method": method,
			"path":   path,
			"cause":  err.Error(),
		})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.failure(resp, method, path)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "decode api response").
			WithMetadata(map[string]any{"method": method, "path": path})
	}
	return nil
}

func (c *Client) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil || ref.IsAbs() {
		return path
	}
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(ref.Path, "/")
	u.RawQuery = ref.RawQuery
	return u.String()
}

func (c *Client) failure(resp *http.Response, method, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var body any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			body = string(raw)
		}
	}

	if c.trace {
		c.logger.Debug("api error response", "status", resp.StatusCode, "body", print.MaybePrettyJSON(body))
	}

	meta := map[string]any{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
	}
	if body != nil {
		meta["body"] = body
	}

	clone := ErrRequestFailed.Clone().
		WithCode(resp.StatusCode).
		WithMetadata(meta)
	if resp.StatusCode >= 500 {
		return clone
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		clone.Category = goerrors.CategoryAuth
	case http.StatusForbidden:
		clone.Category = goerrors.CategoryAuthz
	case http.StatusNotFound:
		clone.Category = goerrors.CategoryNotFound
	case http.StatusConflict:
		clone.Category = goerrors.CategoryConflict
	case http.StatusTooManyRequests:
		clone.Category = goerrors.CategoryRateLimit
	default:
		clone.Category = goerrors.CategoryBadInput
	}
	return clone
}
