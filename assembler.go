package restproxy

import (
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"strings"
)

// Content types set on assembled requests.
const (
	ContentTypeForm = "application/x-www-form-urlencoded"
	ContentTypeJSON = "application/json"
)

// Request is the fully assembled HTTP request of one call.
// It is not modified once built; use WithHeader to derive a variant.
type Request struct {
	Method string
	// URL is absolute and includes the query string.
	URL string
	// MethodPath is the resolved method path relative to the service path.
	MethodPath string
	// Body is "" when the request has no body.
	Body        string
	ContentType string
	Header      *Values
}

// WithHeader returns a copy of r with the header set.
func (r *Request) WithHeader(name, value string) *Request {
	cp := *r
	cp.Header = r.Header.Clone()
	cp.Header.Set(http.CanonicalHeaderKey(name), value)
	return &cp
}

// Assemble builds the request for one call from its bound parameters.
func Assemble(baseURL string, s *Service, d *MethodDescriptor, b *BoundParameters) (*Request, error) {
	req, err := assemble(baseURL, s.basePath, d, b)
	if err != nil {
		target := ""
		if req != nil {
			target = req.URL
		}
		return nil, err.withCall(d.Service, d.Name, target)
	}
	return req, nil
}

func assemble(baseURL, basePath string, d *MethodDescriptor, b *BoundParameters) (*Request, *Error) {
	methodPath, used, err := substitute(d.PathTemplate, &b.Path)
	if err != nil {
		return nil, err
	}
	for name, value := range b.Path.All() {
		if used[name] {
			continue
		}
		if methodPath != "" && !strings.HasSuffix(methodPath, "/") {
			methodPath += "/"
		}
		methodPath += url.PathEscape(value)
	}

	u := joinURL(baseURL, basePath, methodPath)
	if b.Query.Len() > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + b.Query.Encode()
	}

	req := &Request{
		Method:     d.HTTPMethod,
		URL:        u,
		MethodPath: methodPath,
		Header:     d.Headers.Clone(),
	}
	for name, value := range b.Header.All() {
		req.Header.Set(name, value)
	}

	form := b.Form.Clone()
	auth := &Auth{method: req.Method, url: req.URL, header: req.Header, form: form}
	for _, c := range b.Creds {
		if err := validateStruct(c); err != nil {
			return req, validationError(KindSerialization, "credentials", err)
		}
		if err := c.Apply(auth); err != nil {
			return req, wrap(KindSerialization, err, "cannot apply %T", c)
		}
	}

	allowsBody := req.Method != "GET" && req.Method != "HEAD"
	switch {
	case b.HasBody:
		if form.Len() > 0 {
			return req, Errorf(KindConfiguration, "form parameters cannot be sent with a JSON body")
		}
		if err := validateStruct(b.Body); err != nil {
			return req, validationError(KindSerialization, "request body", err)
		}
		var buf strings.Builder
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(b.Body); err != nil {
			return req, wrap(KindSerialization, err, "cannot encode request body")
		}
		req.Body = strings.TrimSuffix(buf.String(), "\n")
		req.ContentType = ContentTypeJSON
	case form.Len() > 0:
		if !allowsBody {
			return req, Errorf(KindConfiguration, "%s request cannot carry form parameters", req.Method)
		}
		req.Body = form.Encode()
		req.ContentType = ContentTypeForm
	}
	return req, nil
}

// substitute replaces the {name} placeholders of template with path values.
func substitute(template string, path *Values) (string, map[string]bool, *Error) {
	used := make(map[string]bool)
	if !strings.Contains(template, "{") {
		return template, used, nil
	}
	var b strings.Builder
	rest := template
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return "", nil, Errorf(KindConfiguration, "unclosed placeholder in %q", template)
		}
		name := rest[start+1 : start+end]
		value, ok := path.Get(name)
		if !ok {
			return "", nil, Errorf(KindConfiguration, "unresolved path placeholder {%s}", name)
		}
		used[name] = true
		b.WriteString(rest[:start])
		b.WriteString(url.PathEscape(value))
		rest = rest[start+end+1:]
	}
	return b.String(), used, nil
}

// joinURL joins the base URL with the service and method paths using single
// slashes. Empty segments contribute nothing; a trailing slash on the last
// segment is kept.
func joinURL(base string, segments ...string) string {
	u := strings.TrimRight(base, "/")
	for _, seg := range segments {
		seg = strings.TrimLeft(seg, "/")
		if seg == "" {
			continue
		}
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		u += seg
	}
	return u
}

// validateStruct runs struct validation on v if it is a struct or a pointer to one.
func validateStruct(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(rv.Interface())
}
