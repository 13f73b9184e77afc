package restproxy

import (
	"errors"
	"strings"
	"testing"
)

func prepare(t *testing.T, baseURL string, s *Service, method string, args ...any) (*Request, error) {
	t.Helper()
	d := mustResolve(t, s, method)
	b, err := Bind(d, args)
	if err != nil {
		t.Fatalf("Bind(%s): %v", method, err)
	}
	return Assemble(baseURL, s, d, b)
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base     string
		segments []string
		want     string
	}{
		{"https://example.com", []string{"api/2", "buy/"}, "https://example.com/api/2/buy/"},
		{"https://example.com/", []string{"/api/2/", "ticker"}, "https://example.com/api/2/ticker"},
		{"https://example.com", []string{"api/2", ""}, "https://example.com/api/2"},
		{"https://example.com", []string{"/", "cancel"}, "https://example.com/cancel"},
		{"https://example.com", []string{"", ""}, "https://example.com"},
		{"https://example.com/v1", []string{"", "a/b"}, "https://example.com/v1/a/b"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := joinURL(tt.base, tt.segments...); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAssemble_PathEscaping(t *testing.T) {
	s := NewService("Svc", "api")
	s.Method("m", "GET", "files/{name}", Path("name"), Path("rev"), Query("q"))

	req, err := prepare(t, "https://example.com", s, "m", "a b/c", "r 1", "x&y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := "https://example.com/api/files/a%20b%2Fc/r%201?q=x%26y"; req.URL != want {
		t.Errorf("expected %s, got %s", want, req.URL)
	}
	if req.MethodPath != "files/a%20b%2Fc/r%201" {
		t.Errorf("unexpected method path %s", req.MethodPath)
	}
}

func TestAssemble_HeaderPrecedence(t *testing.T) {
	s := NewService("Svc", "").
		WithHeader("Authorization", "static").
		WithHeader("Accept", "application/json")
	s.Method("m", "GET", "m", Header("Authorization"), Header("X-Trace"), Creds())

	req, err := prepare(t, "https://example.com", s, "m", "declared", "t-1", BearerToken{Token: "tok"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got [][2]string
	for name, value := range req.Header.All() {
		got = append(got, [2]string{name, value})
	}
	want := [][2]string{
		{"Authorization", "Bearer tok"},
		{"Accept", "application/json"},
		{"X-Trace", "t-1"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("header %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestAssemble_FormCredentialsWin(t *testing.T) {
	s := NewService("Svc", "")
	s.Method("m", "POST", "m", Form("key"), Form("amount"), Creds())

	req, err := prepare(t, "https://example.com", s, "m", "declared", 5, FormCredential{Name: "key", Value: "secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Body != "key=secret&amount=5" {
		t.Errorf("unexpected body %q", req.Body)
	}
	if req.ContentType != ContentTypeForm {
		t.Errorf("unexpected content type %q", req.ContentType)
	}
}

func TestAssemble_EmptyBody(t *testing.T) {
	s := NewService("Svc", "")
	s.Method("get", "GET", "g", Query("a"))
	s.Method("del", "DELETE", "d", Query("a"))

	for _, m := range []string{"get", "del"} {
		req, err := prepare(t, "https://example.com", s, m, "1")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", m, err)
		}
		if req.Body != "" || req.ContentType != "" {
			t.Errorf("%s: expected empty body, got %q (%s)", m, req.Body, req.ContentType)
		}
	}
}

func TestAssemble_NoPathWithoutDispatch(t *testing.T) {
	s := NewService("Svc", "api")
	s.Method("cancel", "DELETE", "")
	s.Method("create", "POST", "", Body())

	req, err := prepare(t, "https://example.com", s, "cancel")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.URL != "https://example.com/api/cancel/" {
		t.Errorf("unexpected URL %s", req.URL)
	}
	if req.Body != "" || req.ContentType != "" {
		t.Errorf("expected empty body, got %q (%s)", req.Body, req.ContentType)
	}

	req, err = prepare(t, "https://example.com", s, "create", map[string]int{"n": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.URL != "https://example.com/api/create/" || req.Body != `{"n":1}` {
		t.Errorf("unexpected request %s %s", req.URL, req.Body)
	}
}

type account struct {
	Username string `json:"username" validate:"required"`
	Amount   int    `json:"amount_int" validate:"gte=0"`
}

func TestAssemble_JSONBody(t *testing.T) {
	s := NewService("Svc", "")
	s.Method("m", "POST", "m", Body())

	req, err := prepare(t, "https://example.com", s, "m", &account{Username: "mm", Amount: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Body != `{"username":"mm","amount_int":3}` {
		t.Errorf("unexpected body %s", req.Body)
	}

	req, err = prepare(t, "https://example.com", s, "m", &account{Username: "a&b<c>"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Body != `{"username":"a&b<c>","amount_int":0}` {
		t.Errorf("expected unescaped body, got %s", req.Body)
	}
}

func TestAssemble_Errors(t *testing.T) {
	s := NewService("Svc", "")
	s.Method("invalid", "POST", "m", Body())
	s.Method("unencodable", "POST", "m", Body())
	s.Method("formcreds", "POST", "m", Body(), Creds())
	s.Method("getcreds", "GET", "m", Creds())
	s.Method("badcreds", "GET", "m", Creds())
	s.Method("missing", "GET", "{id}", Path("id"))

	tests := []struct {
		name     string
		method   string
		args     []any
		sentinel error
		wantMsg  string
	}{
		{"body validation", "invalid", []any{account{Amount: -1}}, ErrSerialization, "invalid request body"},
		{"unencodable body", "unencodable", []any{map[string]any{"c": make(chan int)}}, ErrSerialization, "cannot encode request body"},
		{"form creds with body", "formcreds", []any{account{Username: "u"}, FormCredential{Name: "k", Value: "v"}}, ErrConfiguration, "cannot be sent with a JSON body"},
		{"form creds on GET", "getcreds", []any{FormCredential{Name: "k", Value: "v"}}, ErrConfiguration, "GET request cannot carry form parameters"},
		{"invalid creds", "badcreds", []any{BasicAuth{}}, ErrSerialization, "Username: required"},
		{"absent path value", "missing", []any{nil}, ErrConfiguration, "unresolved path placeholder {id}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := prepare(t, "https://example.com", s, tt.method, tt.args...)
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("expected %v, got %v", tt.sentinel, err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected %q in %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestRequest_WithHeader(t *testing.T) {
	req := &Request{Method: "GET", URL: "u", Header: &Values{}}
	req.Header.Set("A", "1")

	derived := req.WithHeader("x-b", "2")
	if _, ok := req.Header.Get("X-B"); ok {
		t.Error("WithHeader must not modify the original")
	}
	if got, _ := derived.Header.Get("X-B"); got != "2" {
		t.Errorf("expected canonical header X-B=2, got %v", derived.Header.Map())
	}
	if derived.URL != "u" {
		t.Error("expected other fields to be copied")
	}
}
