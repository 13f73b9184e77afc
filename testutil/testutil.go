// Package testutil provides transports and assertions for testing restproxy
// clients without a network.
package testutil

import (
	"context"
	"maps"
	"net/http"
	"sync"
	"testing"

	"github.com/broady/restproxy"
)

// Recorder is a restproxy.Transport that records every request and answers
// with a canned response. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	requests []*restproxy.Request
	status   int
	header   http.Header
	body     string
	err      error
}

// NewRecorder creates a Recorder answering 200 with an empty body.
func NewRecorder() *Recorder {
	return &Recorder{
		status: http.StatusOK,
		header: make(http.Header),
	}
}

// Respond sets the canned response.
func (r *Recorder) Respond(status int, contentType, body string) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	r.header = make(http.Header)
	if contentType != "" {
		r.header.Set("Content-Type", contentType)
	}
	r.body = body
	return r
}

// RespondJSON sets a 200 response with a JSON content type.
func (r *Recorder) RespondJSON(body string) *Recorder {
	return r.Respond(http.StatusOK, "application/json", body)
}

// Fail makes every call return err.
func (r *Recorder) Fail(err error) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	return r
}

// RoundTrip implements restproxy.Transport.
func (r *Recorder) RoundTrip(ctx context.Context, req *restproxy.Request) (*restproxy.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return &restproxy.Response{
		StatusCode: r.status,
		Header:     r.header.Clone(),
		Body:       []byte(r.body),
	}, nil
}

// Requests returns the recorded requests in call order.
func (r *Recorder) Requests() []*restproxy.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*restproxy.Request, len(r.requests))
	copy(out, r.requests)
	return out
}

// Last returns the most recent request, or nil.
func (r *Recorder) Last() *restproxy.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		return nil
	}
	return r.requests[len(r.requests)-1]
}

// Reset forgets the recorded requests.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = nil
}

// Want describes the expected wire form of a request. Header is only
// compared when non-nil, and then must match exactly.
type Want struct {
	URL        string
	MethodPath string
	Method     string
	Body       string
	Header     map[string]string
}

// AssertRequest checks req against want.
func AssertRequest(t *testing.T, req *restproxy.Request, want Want) {
	t.Helper()
	if req == nil {
		t.Fatal("no request recorded")
	}
	if req.URL != want.URL {
		t.Errorf("URL = %q, want %q", req.URL, want.URL)
	}
	if req.MethodPath != want.MethodPath {
		t.Errorf("MethodPath = %q, want %q", req.MethodPath, want.MethodPath)
	}
	if req.Method != want.Method {
		t.Errorf("Method = %q, want %q", req.Method, want.Method)
	}
	if req.Body != want.Body {
		t.Errorf("Body = %q, want %q", req.Body, want.Body)
	}
	if want.Header != nil {
		if got := req.Header.Map(); !maps.Equal(got, want.Header) {
			t.Errorf("Header = %v, want %v", got, want.Header)
		}
	}
}
