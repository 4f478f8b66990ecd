// Package api is the REST client for the gastos backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	applog "gastos/internal/log"
	"gastos/internal/metrics"
)

// Client wraps HTTP access to the backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *applog.Logger
	limiter    *rate.Limiter
	metrics    *metrics.Collectors
}

// Options overrides client dependencies. Zero values get defaults.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *applog.Logger
	Limiter    *rate.Limiter
	Metrics    *metrics.Collectors
}

const (
	defaultTimeout  = 10 * time.Second
	maxErrorBody    = 64 << 10
	requestIDHeader = "X-Request-ID"
)

// New creates a backend client rooted at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse baseURL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("baseURL %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentAPI)

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: applog.NewTransport(logger, nil),
		}
	}
	return &Client{
		baseURL:    parsed,
		httpClient: client,
		logger:     logger,
		limiter:    opts.Limiter,
		metrics:    opts.Metrics,
	}, nil
}

// NewLimiter returns a limiter allowing perSecond requests, or nil when
// perSecond is not positive.
func NewLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func (c *Client) do(ctx context.Context, method, path, authToken string, query url.Values, body io.Reader) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	rel, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, err
	}
	full := c.baseURL.ResolveReference(rel)
	if len(query) > 0 {
		full.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, full.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	return c.httpClient.Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path, authToken string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return nil, err
		}
		body = buf
	}
	return c.do(ctx, method, path, authToken, nil, body)
}

// call runs one request and decodes a 2xx JSON body into out (when non-nil).
// Non-2xx answers become *Error values carrying the server message.
func (c *Client) call(ctx context.Context, op, method, path, authToken string, query url.Values, payload, out any) (int, error) {
	start := time.Now()
	var (
		resp *http.Response
		err  error
	)
	if payload != nil {
		resp, err = c.doJSON(ctx, method, path, authToken, payload)
	} else {
		resp, err = c.do(ctx, method, path, authToken, query, nil)
	}
	if err != nil {
		c.observe(op, "network", start)
		return 0, wrapError(op, KindNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := statusError(op, resp)
		c.observe(op, string(apiErr.Kind), start)
		return resp.StatusCode, apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			c.observe(op, "network", start)
			return resp.StatusCode, wrapError(op, KindNetwork, err)
		}
		if len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				c.observe(op, "decode", start)
				return resp.StatusCode, &Error{Op: op, Kind: KindDecode, Status: resp.StatusCode, Err: err}
			}
		}
	}
	c.observe(op, "ok", start)
	return resp.StatusCode, nil
}

func (c *Client) observe(op, outcome string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.APIRequests.WithLabelValues(op, outcome).Inc()
	c.metrics.APILatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func statusError(op string, resp *http.Response) *Error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	message := ""
	if err := json.Unmarshal(data, &body); err == nil {
		message = body.text()
	} else if text := strings.TrimSpace(string(data)); text != "" && !strings.HasPrefix(text, "<") {
		message = text
	}

	kind := KindServer
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindAuth
	case http.StatusNotFound:
		kind = KindNotFound
	}
	apiErr := &Error{Op: op, Kind: kind, Status: resp.StatusCode, Message: message}
	if message == "" {
		apiErr.Err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return apiErr
}
