package talk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Request is one HTTP exchange handed to a Session.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the raw outcome of a Session exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Session performs authenticated HTTP exchanges with the server. Connection
// setup and credential handling belong to the implementation.
type Session interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTPSessionConfig configures NewHTTPSession.
type HTTPSessionConfig struct {
	// Username and Password are sent as basic auth. An app password is
	// recommended over the account password.
	Username string
	Password string
	// Timeout bounds a whole exchange. Long-poll calls wait up to 60s on
	// the server side, so keep it above that.
	Timeout time.Duration
	// HTTPClient overrides the client entirely; Timeout is then ignored.
	HTTPClient *http.Client
	// UserAgent is sent on every request when set.
	UserAgent string
}

// HTTPSession is a basic-auth Session over net/http.
type HTTPSession struct {
	client    *http.Client
	username  string
	password  string
	userAgent string
}

// NewHTTPSession creates a Session whose transport is traced with otelhttp.
func NewHTTPSession(cfg HTTPSessionConfig) *HTTPSession {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 90 * time.Second
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &HTTPSession{
		client:    client,
		username:  cfg.Username,
		password:  cfg.Password,
		userAgent: cfg.UserAgent,
	}
}

// Do executes the exchange and reads the full body.
func (s *HTTPSession) Do(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if s.username != "" {
		httpReq.SetBasicAuth(s.username, s.password)
	}
	if s.userAgent != "" {
		httpReq.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request %s %s failed: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
