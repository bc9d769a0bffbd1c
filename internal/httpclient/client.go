package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/torosent/casebench/internal/config"
)

type RequestBuilder struct {
	method  string
	target  string
	headers http.Header
}

func NewRequestBuilder(cfg config.TransportConfig) (*RequestBuilder, error) {
	target := strings.TrimSpace(cfg.Target)
	if target == "" {
		return nil, errors.New("target URL is required")
	}

	method := strings.TrimSpace(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}
	method = strings.ToUpper(method)

	headers := http.Header{}
	for key, value := range cfg.Headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		if strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if canonicalKey == "" {
			return nil, fmt.Errorf("invalid header key %q", key)
		}

		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}

		headers.Set(canonicalKey, value)
	}
	if headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", "application/octet-stream")
	}

	return &RequestBuilder{
		method:  method,
		target:  target,
		headers: headers,
	}, nil
}

// Target returns the URL every request is sent to.
func (b *RequestBuilder) Target() string {
	return b.target
}

// Method returns the HTTP method of built requests.
func (b *RequestBuilder) Method() string {
	return b.method
}

// Build creates a request carrying body. A nil body sends no payload.
func (b *RequestBuilder) Build(ctx context.Context, body BodySource) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if body == nil {
		body = emptyBodySource{}
	}

	reader, err := body.NewReader()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, b.method, b.target, reader)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	req.Header = make(http.Header, len(b.headers))
	for key, values := range b.headers {
		for _, val := range values {
			req.Header.Add(key, val)
		}
	}

	if length, ok := body.ContentLength(); ok {
		req.ContentLength = length
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return body.NewReader()
	}

	return req, nil
}

// NewClient returns a client tuned for load generation. idlePerHost sizes the
// per-host idle pool and should track the highest concurrency of the run; a
// value of zero or less keeps the default of 32.
func NewClient(timeout time.Duration, idlePerHost int) *http.Client {
	if timeout < 0 {
		timeout = 0
	}
	if idlePerHost <= 0 {
		idlePerHost = 32
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          max(256, idlePerHost),
		MaxIdleConnsPerHost:   idlePerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
