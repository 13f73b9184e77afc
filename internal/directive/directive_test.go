package directive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeModule creates a standalone module holding files and returns its directory.
func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	// Disable go.work so temp directories work as standalone modules
	t.Setenv("GOWORK", "off")
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module test\n\ngo 1.21\n"), 0644); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

const exchangeSource = `package exchange

import "context"

type Order struct{ ID string }

// Exchange is a trading API.
//
//restproxy:service api/2
//restproxy:header User-Agent restproxy test
//restproxy:dispatch op
type Exchange interface {
	//restproxy:post buy/
	//restproxy:form amount price=limit_price
	//restproxy:creds auth
	Buy(ctx context.Context, amount, price float64, auth any) (*Order, error)

	//restproxy:get ticker/{pair}
	//restproxy:path pair
	//restproxy:hparam nonce=X-Nonce
	//restproxy:header Accept application/json
	Ticker(pair string, nonce int64) (float64, error)

	//restproxy:post
	//restproxy:name getInfo
	//restproxy:ignore debug
	Info(ctx context.Context, _ string, debug bool) error

	//restproxy:post orders
	//restproxy:body order
	Place(ctx context.Context, order Order, note string) (string, error)
}

// Plain interfaces are ignored.
type Plain interface {
	Do() error
}
`

func TestParse(t *testing.T) {
	dir := writeModule(t, map[string]string{"exchange.go": exchangeSource})

	result, err := ParseDir(".", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PackagePath != "test" || result.PackageName != "exchange" {
		t.Errorf("unexpected package %s (%s)", result.PackagePath, result.PackageName)
	}
	if len(result.Services) != 1 {
		t.Fatalf("got %d services, want 1", len(result.Services))
	}

	svc := result.Services[0]
	if svc.Interface != "Exchange" || svc.BasePath != "api/2" || svc.Dispatch != "op" || svc.File != "exchange.go" {
		t.Errorf("unexpected service %+v", svc)
	}
	if len(svc.Headers) != 1 || svc.Headers[0] != (Header{Name: "User-Agent", Value: "restproxy test"}) {
		t.Errorf("unexpected headers %v", svc.Headers)
	}
	if len(svc.Methods) != 4 {
		t.Fatalf("got %d methods, want 4", len(svc.Methods))
	}

	type param struct {
		goName string
		role   Role
		wire   string
	}
	tests := []struct {
		goName  string
		name    string
		verb    string
		path    string
		context bool
		result  string
		params  []param
	}{
		{"Buy", "buy", "POST", "buy/", true, "*test.Order", []param{
			{"amount", RoleForm, "amount"},
			{"price", RoleForm, "limit_price"},
			{"auth", RoleCreds, ""},
		}},
		{"Ticker", "ticker", "GET", "ticker/{pair}", false, "float64", []param{
			{"pair", RolePath, "pair"},
			{"nonce", RoleHeader, "X-Nonce"},
		}},
		{"Info", "getInfo", "POST", "", true, "", []param{
			{"", RoleNone, ""},
			{"debug", RoleNone, ""},
		}},
		{"Place", "place", "POST", "orders", true, "string", []param{
			{"order", RoleBody, ""},
			{"note", RoleArg, "note"},
		}},
	}
	for i, tt := range tests {
		t.Run(tt.goName, func(t *testing.T) {
			m := svc.Methods[i]
			if m.GoName != tt.goName || m.Name != tt.name || m.Verb != tt.verb || m.Path != tt.path || m.Context != tt.context {
				t.Errorf("unexpected method %+v", m)
			}
			result := ""
			if m.Result != nil {
				result = m.Result.String()
			}
			if result != tt.result {
				t.Errorf("result: got %q, want %q", result, tt.result)
			}
			if len(m.Params) != len(tt.params) {
				t.Fatalf("got %d params, want %d", len(m.Params), len(tt.params))
			}
			for j, want := range tt.params {
				p := m.Params[j]
				if p.GoName != want.goName || p.Role != want.role || p.Wire != want.wire {
					t.Errorf("param %d: got {%s %s %s}, want %v", j, p.GoName, p.Role, p.Wire, want)
				}
			}
		})
	}

	ticker := svc.Methods[1]
	if len(ticker.Headers) != 1 || ticker.Headers[0].Value != "application/json" {
		t.Errorf("unexpected method headers %v", ticker.Headers)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr string
	}{
		{
			name: "unknown method directive",
			source: `package p
//restproxy:service
type S interface {
	//restproxy:post
	//restproxy:fetch
	M() error
}
`,
			wantErr: "p.go:5:2: unknown method directive //restproxy:fetch",
		},
		{
			name: "unknown parameter",
			source: `package p
//restproxy:service
type S interface {
	//restproxy:get
	//restproxy:query id
	M(key string) error
}
`,
			wantErr: `M has no parameter "id"`,
		},
		{
			name: "parameter bound twice",
			source: `package p
//restproxy:service
type S interface {
	//restproxy:get {id}
	//restproxy:path id
	//restproxy:query id
	M(id string) error
}
`,
			wantErr: `parameter "id" already bound by //restproxy:path`,
		},
		{
			name: "missing verb",
			source: `package p
//restproxy:service
type S interface {
	M() error
}
`,
			wantErr: "method M has no HTTP method directive",
		},
		{
			name: "two verbs",
			source: `package p
//restproxy:service
type S interface {
	//restproxy:get
	//restproxy:post
	M() error
}
`,
			wantErr: "declares a second HTTP method",
		},
		{
			name: "bad results",
			source: `package p
//restproxy:service
type S interface {
	//restproxy:get
	M() string
}
`,
			wantErr: "method M must return (T, error) or error",
		},
		{
			name: "hparam without header name",
			source: `package p
//restproxy:service
type S interface {
	//restproxy:get
	//restproxy:hparam key
	M(key string) error
}
`,
			wantErr: "expected key=Header-Name",
		},
		{
			name: "directive on struct",
			source: `package p
//restproxy:service
type S struct{}
`,
			wantErr: "must be on an interface type",
		},
		{
			name: "header without service",
			source: `package p
//restproxy:header A b
type S interface{}
`,
			wantErr: "requires //restproxy:service on S",
		},
		{
			name: "embedded interface",
			source: `package p
type Base interface{ B() error }
//restproxy:service
type S interface {
	Base
}
`,
			wantErr: "embedded interfaces are not supported in service S",
		},
		{
			name: "package does not compile",
			source: `package p
func f() { undefined() }
`,
			wantErr: "package errors",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeModule(t, map[string]string{"p.go": tt.source})
			_, err := ParseDir(".", dir)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}
