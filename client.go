// Package restproxy calls REST APIs described declaratively. A Service lists
// methods with their HTTP method, path template and parameter roles; a
// Client turns each call into exactly one HTTP request and decodes the
// response into the method's result type.
//
//	svc := restproxy.NewService("Exchange", "api/2")
//	svc.Method("ticker", "GET", "ticker/{pair}", restproxy.Path("pair")).
//		Returns(reflect.TypeFor[*Ticker]())
//
//	c := restproxy.NewClient("https://example.com", svc)
//	t, err := restproxy.Call[*Ticker](ctx, c, "ticker", "btcusd")
//
// Package restproxygen generates services and typed clients from annotated
// Go interfaces.
package restproxy

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"slices"
)

// Client invokes the methods of one service against one base URL.
// Configure it with the With methods before first use; afterwards it is safe
// for concurrent use.
type Client struct {
	baseURL      string
	service      *Service
	resolver     *resolver
	transport    Transport
	decoder      Decoder
	logger       *slog.Logger
	interceptors []Interceptor
}

// NewClient creates a client for service rooted at baseURL
// (for example "https://example.com").
func NewClient(baseURL string, service *Service) *Client {
	return &Client{
		baseURL:   baseURL,
		service:   service,
		resolver:  newResolver(service),
		transport: &HTTPTransport{},
		decoder:   DefaultDecoder,
	}
}

// WithTransport sets the transport. Default is an HTTPTransport using
// http.DefaultClient.
func (c *Client) WithTransport(t Transport) *Client {
	c.transport = t
	return c
}

// WithHTTPClient sends requests through hc.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.transport = &HTTPTransport{Client: hc}
	return c
}

// WithDecoder replaces DefaultDecoder.
func (c *Client) WithDecoder(d Decoder) *Client {
	c.decoder = d
	return c
}

// WithLogger sets a custom logger for the client.
// If not set, slog.Default() will be used.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithInterceptor adds an interceptor around every transport call.
// See Interceptor for the execution order.
func (c *Client) WithInterceptor(i Interceptor) *Client {
	c.interceptors = append(c.interceptors, i)
	return c
}

// Service returns the service the client was created for.
func (c *Client) Service() *Service { return c.service }

// BaseURL returns the base URL.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) getLogger() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

// Descriptor returns the cached descriptor of a method, resolving it on first use.
func (c *Client) Descriptor(method string) (*MethodDescriptor, error) {
	return c.resolver.resolve(method, c.getLogger())
}

// Prepare resolves, binds and assembles a call without sending it.
func (c *Client) Prepare(method string, args ...any) (*Request, error) {
	d, err := c.Descriptor(method)
	if err != nil {
		return nil, err
	}
	return c.prepare(d, args)
}

func (c *Client) prepare(d *MethodDescriptor, args []any) (*Request, error) {
	b, err := Bind(d, args)
	if err != nil {
		return nil, err
	}
	return Assemble(c.baseURL, c.service, d, b)
}

// Invoke calls a method and decodes the response into out, which must be nil
// or a pointer to the method's declared return type. A nil out discards the
// response body. The transport call is made exactly once.
func (c *Client) Invoke(ctx context.Context, method string, args []any, out any) error {
	d, err := c.Descriptor(method)
	if err != nil {
		return err
	}
	if err := checkTarget(d, out); err != nil {
		return err
	}
	req, err := c.prepare(d, args)
	if err != nil {
		return err
	}

	info := &CallInfo{Service: d.Service, Method: d.Name, Descriptor: d}
	ctx = newContext(ctx, info)
	interceptors := slices.Concat(c.interceptors, d.interceptors)
	roundTrip := chainInterceptors(interceptors, info, c.transport.RoundTrip)

	resp, err := roundTrip(ctx, req)
	if err != nil {
		if rpErr, ok := err.(*Error); ok {
			return rpErr.withCall(d.Service, d.Name, req.URL)
		}
		kind := KindTransport
		var inner *Error
		if errors.As(err, &inner) {
			kind = inner.Kind
		}
		return &Error{
			Kind:    kind,
			Service: d.Service,
			Method:  d.Name,
			URL:     req.URL,
			Message: "request failed",
			Err:     err,
		}
	}
	if out == nil || resp == nil {
		return nil
	}
	if err := c.decoder.Decode(resp, out); err != nil {
		return &Error{
			Kind:    KindDecoding,
			Service: d.Service,
			Method:  d.Name,
			URL:     req.URL,
			Message: "cannot decode response into " + reflect.TypeOf(out).Elem().String(),
			Err:     err,
		}
	}
	return nil
}

// checkTarget verifies that out can receive the declared return type.
func checkTarget(d *MethodDescriptor, out any) error {
	if out == nil {
		return nil
	}
	t := reflect.TypeOf(out)
	if t.Kind() != reflect.Pointer || reflect.ValueOf(out).IsNil() {
		return Errorf(KindConfiguration, "result target must be a non-nil pointer, got %T", out).
			withCall(d.Service, d.Name, "")
	}
	if d.ReturnType != nil && t.Elem() != d.ReturnType {
		return Errorf(KindConfiguration, "result type %s does not match declared %s", t.Elem(), d.ReturnType).
			withCall(d.Service, d.Name, "")
	}
	return nil
}

// Call invokes a method and returns its decoded result.
// T must be the method's declared return type; methods declared without one
// decode into any T.
func Call[T any](ctx context.Context, c *Client, method string, args ...any) (T, error) {
	var out T
	err := c.Invoke(ctx, method, args, &out)
	return out, err
}
