package restproxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorKind classifies where in the invocation pipeline an error arose.
type ErrorKind string

const (
	// KindConfiguration reports a malformed service definition or a call that
	// does not match it. Raised before any network activity; never retryable.
	KindConfiguration ErrorKind = "configuration"
	// KindSerialization reports an argument that cannot be rendered to its wire form.
	KindSerialization ErrorKind = "serialization"
	// KindTransport reports a failure surfaced by the transport, including non-2xx statuses.
	KindTransport ErrorKind = "transport"
	// KindDecoding reports a response body that does not fit the declared result type.
	KindDecoding ErrorKind = "decoding"
)

// Sentinels for errors.Is matching against an *Error's Kind.
var (
	ErrConfiguration = errors.New("restproxy: configuration error")
	ErrSerialization = errors.New("restproxy: serialization error")
	ErrTransport     = errors.New("restproxy: transport error")
	ErrDecoding      = errors.New("restproxy: decoding error")
)

// Error is the error type returned by every stage of an invocation.
type Error struct {
	Kind    ErrorKind
	Service string
	Method  string
	URL     string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Method != "" {
		b.WriteString(" ")
		if e.Service != "" {
			b.WriteString(e.Service)
			b.WriteString(".")
		}
		b.WriteString(e.Method)
	}
	if e.URL != "" {
		b.WriteString(" (")
		b.WriteString(e.URL)
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrSerialization:
		return e.Kind == KindSerialization
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrDecoding:
		return e.Kind == KindDecoding
	}
	return false
}

// Errorf creates a new error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// wrap returns an error of the given kind carrying err as its cause.
func wrap(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// WithDetail returns a new Error with the key-value pair added to details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	cp := *e
	cp.Details = details
	return &cp
}

// withCall returns e annotated with the call site. Fields already set are kept.
func (e *Error) withCall(service, method, url string) *Error {
	cp := *e
	if cp.Service == "" {
		cp.Service = service
	}
	if cp.Method == "" {
		cp.Method = method
	}
	if cp.URL == "" {
		cp.URL = url
	}
	return &cp
}

// StatusError is returned by HTTPTransport for non-2xx responses.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("unexpected status %s", e.Status)
	}
	body := string(e.Body)
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("unexpected status %s: %s", e.Status, body)
}

// IsRetryable reports whether err is a transport failure that a caller-side
// retry policy may reasonably retry: network errors, 429 and 5xx statuses.
// Configuration, serialization and decoding errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rpErr *Error
	if errors.As(err, &rpErr) && rpErr.Kind != KindTransport {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// validationError converts validator errors into a serialization or
// configuration error with per-field details.
func validationError(kind ErrorKind, what string, err error) *Error {
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return wrap(kind, err, "invalid %s", what)
	}
	details := make(map[string]any, len(valErrs))
	messages := make([]string, 0, len(valErrs))
	for _, ve := range valErrs {
		msg := formatValidationError(ve)
		details[ve.Field()] = msg
		messages = append(messages, ve.Field()+": "+msg)
	}
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf("invalid %s: %s", what, strings.Join(messages, "; ")),
		Details: details,
	}
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "min":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s", ve.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", ve.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", ve.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", ve.Param())
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}
