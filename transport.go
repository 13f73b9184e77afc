package restproxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Response is the raw result of a transport call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport sends an assembled request and returns the raw response.
// Implementations own connection management, timeouts and any retry policy.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f TransportFunc) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// defaultMaxResponseSize bounds how much of a response body HTTPTransport reads.
const defaultMaxResponseSize = 10 << 20

// HTTPTransport sends requests with net/http.
type HTTPTransport struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// MaxResponseSize limits the response body size. Default is 10MB.
	MaxResponseSize int64
}

// RoundTrip performs one HTTP exchange. Non-2xx responses are returned along
// with a *StatusError.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build http request: %w", err)
	}
	for name, value := range req.Header.All() {
		hr.Header.Set(name, value)
	}
	if req.ContentType != "" && hr.Header.Get("Content-Type") == "" {
		hr.Header.Set("Content-Type", req.ContentType)
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(hr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limit := t.MaxResponseSize
	if limit <= 0 {
		limit = defaultMaxResponseSize
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: data}
	}
	return out, nil
}
