package restproxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"reflect"

	"github.com/gorilla/schema"
)

var schemaDecoder = schema.NewDecoder()

func init() {
	schemaDecoder.IgnoreUnknownKeys(true)
	schemaDecoder.SetAliasTag("json")
}

// Decoder converts a response body into a result value. out is a non-nil
// pointer to a value of the method's declared return type.
type Decoder interface {
	Decode(resp *Response, out any) error
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(resp *Response, out any) error

func (f DecoderFunc) Decode(resp *Response, out any) error {
	return f(resp, out)
}

// DefaultDecoder decodes JSON bodies, form-encoded bodies into structs, and
// plain text into string results. An empty body leaves out untouched.
var DefaultDecoder Decoder = DecoderFunc(decodeResponse)

func decodeResponse(resp *Response, out any) error {
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		return nil
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("decode target must be a non-nil pointer")
	}
	target := rv.Elem()

	var mediaType string
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, _ = mime.ParseMediaType(ct)
	}

	if mediaType == ContentTypeForm && derefType(target.Type()).Kind() == reflect.Struct {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return fmt.Errorf("parse form body: %w", err)
		}
		return schemaDecoder.Decode(allocate(target).Interface(), values)
	}

	if target.Kind() == reflect.String && body[0] != '"' {
		target.SetString(string(body))
		return nil
	}
	return json.Unmarshal(body, out)
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// allocate follows pointers from v, allocating nil ones, and returns a
// pointer to the innermost value.
func allocate(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}
	return v.Addr()
}
