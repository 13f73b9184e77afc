package restproxy

import (
	"net/http"
	"reflect"
)

// BoundParameters holds the argument values of one call, classified by role.
type BoundParameters struct {
	Path   Values
	Query  Values
	Form   Values
	Header Values
	// Body is the value bound to the Body role, if any.
	Body    any
	HasBody bool
	// Creds are applied after all other roles, in declaration order.
	Creds []Credentials
}

// Bind classifies the arguments of one call according to d.
func Bind(d *MethodDescriptor, args []any) (*BoundParameters, error) {
	if len(args) != len(d.Params) {
		return nil, Errorf(KindConfiguration, "method takes %d arguments, got %d", len(d.Params), len(args)).
			withCall(d.Service, d.Name, "")
	}
	b := &BoundParameters{}
	if d.Dispatch != "" {
		b.Form.Set(d.Dispatch, d.Name)
	}
	for i, p := range d.Params {
		if err := b.bindOne(p, args[i]); err != nil {
			return nil, err.WithDetail("parameter", i).withCall(d.Service, d.Name, "")
		}
	}
	return b, nil
}

func (b *BoundParameters) bindOne(p Param, arg any) *Error {
	if p.Role == RoleNone {
		return nil
	}
	if isAbsent(arg) {
		return nil
	}
	if c, ok := arg.(Credentials); ok {
		b.Creds = append(b.Creds, c)
		return nil
	}

	switch p.Role {
	case RoleCreds:
		return Errorf(KindSerialization, "%T is not a credentials carrier", arg)
	case RoleBody:
		b.Body = arg
		b.HasBody = true
		return nil
	}

	s, ok, err := FormatValue(arg)
	if err != nil {
		return wrap(KindSerialization, err, "cannot serialize %s parameter", p)
	}
	if !ok {
		return nil
	}
	switch p.Role {
	case RolePath:
		b.Path.Set(p.Name, s)
	case RoleQuery:
		b.Query.Set(p.Name, s)
	case RoleForm, RoleArg:
		b.Form.Set(p.Name, s)
	case RoleHeader:
		b.Header.Set(http.CanonicalHeaderKey(p.Name), s)
	}
	return nil
}

// isAbsent reports whether v stands for an omitted argument.
func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
