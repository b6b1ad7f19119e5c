package work

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxDrainBytes      = 64 << 10
)

type httpStep struct {
	client  *http.Client
	header  http.Header
	name    string
	url     string
	method  string
	body    string
	minCode int
	maxCode int
}

// HTTPCall is a step that calls an external dependency and fails unless it
// answers with an accepted status (2xx by default). The response body is
// drained and discarded.
func HTTPCall(name, url string, opts ...HTTPOption) Step {
	cfg := &httpConfig{
		method:  http.MethodGet,
		timeout: defaultHTTPTimeout,
		header:  make(http.Header),
		minCode: http.StatusOK,
		maxCode: http.StatusMultipleChoices - 1,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := withTimeout(cfg.client, cfg.timeout)
	if cfg.oauth != nil {
		// Token requests go through the base client; the token source lives as
		// long as the step and caches tokens until they expire.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		client = withTimeout(cfg.oauth.Client(ctx), cfg.timeout)
	}

	return &httpStep{
		client:  client,
		header:  cfg.header,
		name:    name,
		url:     url,
		method:  cfg.method,
		body:    cfg.body,
		minCode: cfg.minCode,
		maxCode: cfg.maxCode,
	}
}

// withTimeout returns a copy of base (or a new client) using timeout.
func withTimeout(base *http.Client, timeout time.Duration) *http.Client {
	c := &http.Client{}
	if base != nil {
		*c = *base
	}
	c.Timeout = timeout
	return c
}

func (s *httpStep) Name() string      { return s.name }
func (s *httpStep) defaultKind() Kind { return KindDependency }

func (s *httpStep) Run(ctx context.Context) error {
	var body io.Reader
	if s.body != "" {
		body = strings.NewReader(s.body)
	}

	req, err := http.NewRequestWithContext(ctx, s.method, s.url, body)
	if err != nil {
		return NewError(s.name, KindStep, errors.Join(ErrInvalidRequest, err))
	}
	for k, vs := range s.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return NewError(s.name, classify(err, KindDependency), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode < s.minCode || resp.StatusCode > s.maxCode {
		return NewError(s.name, KindDependency, &StatusError{
			URL:        s.url,
			Status:     resp.Status,
			StatusCode: resp.StatusCode,
		})
	}
	return nil
}

type httpConfig struct {
	client  *http.Client
	oauth   *clientcredentials.Config
	header  http.Header
	method  string
	body    string
	timeout time.Duration
	minCode int
	maxCode int
}

// HTTPOption configures HTTPCall.
type HTTPOption func(*httpConfig)

// WithMethod sets the request method. Default: GET.
func WithMethod(method string) HTTPOption {
	return func(c *httpConfig) {
		if method != "" {
			c.method = strings.ToUpper(method)
		}
	}
}

// WithBody sets a request body sent on every call.
func WithBody(contentType, body string) HTTPOption {
	return func(c *httpConfig) {
		c.body = body
		if contentType != "" {
			c.header.Set("Content-Type", contentType)
		}
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) HTTPOption {
	return func(c *httpConfig) {
		c.header.Add(key, value)
	}
}

// WithTimeout bounds each call, including connection setup and body read.
// Default: 10 seconds. Zero disables the client timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *httpConfig) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient sets the base client. Its timeout is overridden by WithTimeout.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(c *httpConfig) {
		if client != nil {
			c.client = client
		}
	}
}

// WithAcceptedStatus sets the inclusive range of accepted status codes.
func WithAcceptedStatus(minCode, maxCode int) HTTPOption {
	return func(c *httpConfig) {
		if minCode > 0 && maxCode >= minCode {
			c.minCode = minCode
			c.maxCode = maxCode
		}
	}
}

// WithOAuth2ClientCredentials authenticates calls with the OAuth2 client
// credentials flow. Tokens are fetched on first use and refreshed on expiry.
func WithOAuth2ClientCredentials(tokenURL, clientID, clientSecret string, scopes ...string) HTTPOption {
	return func(c *httpConfig) {
		if tokenURL == "" || clientID == "" {
			return
		}
		c.oauth = &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       scopes,
		}
	}
}
