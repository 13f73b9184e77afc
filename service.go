package restproxy

import (
	"fmt"
	"net/http"
	"reflect"
	"slices"
)

// Role is the wire role of one method parameter.
type Role int

const (
	// RoleNone marks a parameter that takes part in the call signature but is
	// never serialized.
	RoleNone Role = iota
	// RoleArg marks a parameter without an explicit role. It is sent as a
	// form parameter keyed by its own name.
	RoleArg
	RolePath
	RoleQuery
	RoleForm
	RoleHeader
	RoleBody
	RoleCreds
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleArg:
		return "arg"
	case RolePath:
		return "path"
	case RoleQuery:
		return "query"
	case RoleForm:
		return "form"
	case RoleHeader:
		return "header"
	case RoleBody:
		return "body"
	case RoleCreds:
		return "creds"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// named reports whether the role needs a wire name.
func (r Role) named() bool {
	switch r {
	case RoleArg, RolePath, RoleQuery, RoleForm, RoleHeader:
		return true
	}
	return false
}

// Param declares the role of one method parameter.
type Param struct {
	Name string
	Role Role
}

func (p Param) String() string {
	if p.Name == "" {
		return p.Role.String()
	}
	return p.Role.String() + ":" + p.Name
}

// Path binds a parameter to the {name} placeholder of the path template.
// Without a matching placeholder the value is appended as a path segment.
func Path(name string) Param { return Param{Name: name, Role: RolePath} }

// Query binds a parameter to a query string parameter.
func Query(name string) Param { return Param{Name: name, Role: RoleQuery} }

// Form binds a parameter to a form-encoded body parameter.
func Form(name string) Param { return Param{Name: name, Role: RoleForm} }

// Header binds a parameter to a request header.
func Header(name string) Param { return Param{Name: name, Role: RoleHeader} }

// Body sends the parameter as the JSON request body.
func Body() Param { return Param{Role: RoleBody} }

// Creds marks a parameter holding a Credentials value. Values implementing
// Credentials are recognized under any role except Unbound, so Creds is only
// needed for documentation or when the value may be nil.
func Creds() Param { return Param{Role: RoleCreds} }

// Arg declares a parameter without a wire role. It falls back to a form
// parameter named after the parameter itself.
func Arg(name string) Param { return Param{Name: name, Role: RoleArg} }

// Unbound declares a parameter that is accepted but never sent.
func Unbound() Param { return Param{Role: RoleNone} }

// DefaultDispatchParam is the form parameter that carries the method name of
// methods declared without a path.
const DefaultDispatchParam = "method"

// Service is the declarative description of one REST API.
// A Service must be fully declared before a Client created from it is used;
// method descriptors are resolved once and cached.
type Service struct {
	name     string
	basePath string
	headers  Values
	dispatch string
	methods  map[string]*MethodDef
	order    []string
}

// NewService creates a service whose methods live under basePath,
// relative to the client's base URL.
func NewService(name, basePath string) *Service {
	return &Service{
		name:     name,
		basePath: basePath,
		dispatch: DefaultDispatchParam,
		methods:  make(map[string]*MethodDef),
	}
}

// Name returns the service name.
func (s *Service) Name() string { return s.name }

// BasePath returns the path prepended to every method path.
func (s *Service) BasePath() string { return s.basePath }

// WithHeader adds a static header sent with every method of the service.
func (s *Service) WithHeader(name, value string) *Service {
	s.headers.Set(http.CanonicalHeaderKey(name), value)
	return s
}

// WithDispatchParam sets the form parameter used to send the method name of
// path-less methods. Default is "method".
func (s *Service) WithDispatchParam(name string) *Service {
	s.dispatch = name
	return s
}

// Method declares a method. An empty verb means POST. An empty path means the
// method has no path of its own. Declaring a name twice replaces the earlier
// declaration.
func (s *Service) Method(name, verb, path string, params ...Param) *MethodDef {
	m := &MethodDef{
		name:    name,
		verb:    verb,
		path:    path,
		params:  slices.Clone(params),
		service: s,
	}
	if _, exists := s.methods[name]; !exists {
		s.order = append(s.order, name)
	}
	s.methods[name] = m
	return m
}

// Methods returns the declared method names in declaration order.
func (s *Service) Methods() []string {
	return slices.Clone(s.order)
}

// Lookup returns the declaration of a method.
func (s *Service) Lookup(name string) (*MethodDef, bool) {
	m, ok := s.methods[name]
	return m, ok
}

// MethodDef is the declaration of one method, as given to Service.Method.
type MethodDef struct {
	service      *Service
	name         string
	verb         string
	path         string
	params       []Param
	result       reflect.Type
	headers      Values
	dispatch     string
	interceptors []Interceptor
}

// Returns declares the result type the response body is decoded into.
// Methods without a result type discard the response body.
func (m *MethodDef) Returns(t reflect.Type) *MethodDef {
	m.result = t
	return m
}

// WithHeader adds a static header to this method. It overrides a service
// header of the same name.
func (m *MethodDef) WithHeader(name, value string) *MethodDef {
	m.headers.Set(http.CanonicalHeaderKey(name), value)
	return m
}

// WithDispatch overrides the service's dispatch parameter for this method.
func (m *MethodDef) WithDispatch(param string) *MethodDef {
	m.dispatch = param
	return m
}

// WithInterceptor adds an interceptor that runs after the client's interceptors.
func (m *MethodDef) WithInterceptor(i Interceptor) *MethodDef {
	m.interceptors = append(m.interceptors, i)
	return m
}

// Name returns the method name.
func (m *MethodDef) Name() string { return m.name }
