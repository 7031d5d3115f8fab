// Package transport is the single way the client talks to the Vita API. It
// owns endpoint fallback, bearer auth, request rate limiting and the global
// "401 signs you out" policy so call sites don't repeat them.
package transport

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
	"strings"
	"time"

	"golang.org/x/time/rate"

	"vita-chat/internal/config"
	"vita-chat/internal/utils"
	"vita-chat/pkg/logger"
)

const maxErrorBody = 64 * 1024

// TokenSource is the session the transport authenticates with.
type TokenSource interface {
	Token() string
	// Invalidate clears the session if it still holds token.
	Invalidate(token string) bool
}

type Client struct {
	bases   []string
	http    *http.Client
	stream  *http.Client
	limiter *rate.Limiter
	tokens  TokenSource
}

type Option func(*Client)

// WithHTTPClient replaces both the request and the streaming client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
		c.stream = hc
	}
}

func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

func New(api config.APIConfig, rl config.RateLimitConfig, tokens TokenSource, opts ...Option) (*Client, error) {
	bases := make([]string, 0, 1+len(api.FallbackURLs))
	for _, raw := range append([]string{api.BaseURL}, api.FallbackURLs...) {
		raw = strings.TrimRight(strings.TrimSpace(raw), "/")
		if raw == "" {
			continue
		}
		if _, err := url.ParseRequestURI(raw); err != nil {
			return nil, fmt.Errorf("invalid api url %q: %w", raw, err)
		}
		bases = append(bases, raw)
	}
	if len(bases) == 0 {
		return nil, errors.New("api base url is required")
	}

	c := &Client{
		bases:  bases,
		http:   utils.NewHTTPClient(api.Timeout),
		stream: utils.NewHTTPClient(0),
		tokens: tokens,
	}
	if rl.Enabled && rl.RequestsPerMinute > 0 {
		burst := rl.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.RequestsPerMinute)), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request describes one API call. Body is sent as-is with ContentType; use
// JSONBody to encode a value.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
	// Auth attaches the bearer token. Authenticated calls fail with
	// ErrUnauthenticated before touching the network when there is none.
	Auth bool
	// Stream uses the client without an overall timeout; the caller bounds
	// the body read.
	Stream bool
}

func JSONBody(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return data, nil
}

// Do sends req and returns the response of a 2xx reply; the caller closes its
// body. Non-2xx replies are consumed and returned as *Error.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	endpoint := req.Method + " " + req.Path

	var token string
	if req.Auth {
		token = c.tokens.Token()
		if token == "" {
			return nil, &Error{Endpoint: endpoint, Message: "no access token", Err: ErrUnauthenticated}
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Endpoint: endpoint, Message: err.Error(), Err: ErrTransport}
		}
	}

	hc := c.http
	if req.Stream {
		hc = c.stream
	}

	var lastErr error
	for i, base := range c.bases {
		httpReq, err := c.newRequest(ctx, base, req, token)
		if err != nil {
			return nil, &Error{Endpoint: endpoint, Message: err.Error(), Err: ErrTransport}
		}

		resp, err := hc.Do(httpReq)
		if err != nil {
			lastErr = err
			if ctx.Err() == nil && isUnreachable(err) && i < len(c.bases)-1 {
				logger.Warnf("%s unreachable at %s, trying %s: %v", endpoint, base, c.bases[i+1], err)
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &Error{Endpoint: endpoint, Message: err.Error(), Err: ErrTransport}
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		return nil, c.statusError(endpoint, resp, req.Auth, token)
	}

	return nil, &Error{Endpoint: endpoint, Message: fmt.Sprint(lastErr), Err: ErrTransport}
}

// JSON sends in (if non-nil) as JSON with auth and decodes the reply into out
// (if non-nil).
func (c *Client) JSON(ctx context.Context, method, path string, in, out interface{}) error {
	return c.doJSON(ctx, method, path, in, out, true)
}

// PublicJSON is JSON without the bearer token, for sign-in/up and verify.
func (c *Client) PublicJSON(ctx context.Context, method, path string, in, out interface{}) error {
	return c.doJSON(ctx, method, path, in, out, false)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}, auth bool) error {
	body, err := JSONBody(in)
	if err != nil {
		return err
	}
	req := Request{Method: method, Path: path, Body: body, Auth: auth}
	if body != nil {
		req.ContentType = "application/json"
	}
	return c.Send(ctx, req, out)
}

// Send performs req and decodes a JSON reply into out (if non-nil).
func (c *Client) Send(ctx context.Context, req Request, out interface{}) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Endpoint: req.Method + " " + req.Path, Message: "failed to decode response: " + err.Error(), Err: ErrTransport}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, base string, req Request, token string) (*http.Request, error) {
	u := base + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, err
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

func (c *Client) statusError(endpoint string, resp *http.Response, auth bool, token string) error {
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := parseErrorBody(raw)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	if resp.StatusCode == http.StatusUnauthorized && auth {
		if c.tokens.Invalidate(token) {
			logger.Warnf("%s rejected the access token, session cleared", endpoint)
		}
	}

	return &Error{
		StatusCode: resp.StatusCode,
		Message:    msg,
		Endpoint:   endpoint,
		Err:        sentinelFor(resp.StatusCode),
	}
}

// isUnreachable reports whether err happened before the request reached a
// server, which makes it safe to resend elsewhere.
func isUnreachable(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
