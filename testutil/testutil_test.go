package testutil_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/broady/restproxy"
	"github.com/broady/restproxy/testutil"
)

func TestRecorder(t *testing.T) {
	rec := testutil.NewRecorder().Respond(http.StatusAccepted, "text/plain", "ok")

	s := restproxy.NewService("Svc", "v1")
	s.Method("ping", "GET", "ping/{id}", restproxy.Path("id"))
	c := restproxy.NewClient("https://example.com", s).WithTransport(rec)

	got, err := restproxy.Call[string](context.Background(), c, "ping", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("expected ok, got %q", got)
	}
	testutil.AssertRequest(t, rec.Last(), testutil.Want{
		URL:        "https://example.com/v1/ping/7",
		MethodPath: "ping/7",
		Method:     "GET",
		Header:     map[string]string{},
	})

	rec.Reset()
	if rec.Last() != nil || len(rec.Requests()) != 0 {
		t.Error("expected Reset to forget requests")
	}
}

func TestRecorder_Fail(t *testing.T) {
	boom := errors.New("boom")
	rec := testutil.NewRecorder().Fail(boom)

	s := restproxy.NewService("Svc", "")
	s.Method("ping", "GET", "ping")
	c := restproxy.NewClient("https://example.com", s).WithTransport(rec)

	err := c.Invoke(context.Background(), "ping", nil, nil)
	if !errors.Is(err, boom) || !errors.Is(err, restproxy.ErrTransport) {
		t.Errorf("expected wrapped transport error, got %v", err)
	}
	if len(rec.Requests()) != 1 {
		t.Errorf("expected the request to be recorded, got %d", len(rec.Requests()))
	}
}
