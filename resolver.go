package restproxy

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
)

var validate = validator.New()

func init() {
	if err := validate.RegisterValidation("pathtemplate", func(fl validator.FieldLevel) bool {
		_, err := parsePlaceholders(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
}

// MethodDescriptor is the resolved metadata of one method. It is immutable
// and shared by every call to the method.
type MethodDescriptor struct {
	Service      string
	Name         string
	HTTPMethod   string
	PathTemplate string
	Placeholders []string
	Params       []Param
	ReturnType   reflect.Type
	// Headers holds the static header defaults: service headers first,
	// then method headers.
	Headers *Values
	// Dispatch names the implicit form parameter carrying the method name.
	// Empty unless the method is a POST declared without a path.
	Dispatch string

	interceptors []Interceptor
}

// methodDecl is the validated view of a MethodDef.
type methodDecl struct {
	Name string `validate:"required"`
	Verb string `validate:"oneof=GET POST PUT DELETE PATCH HEAD"`
	Path string `validate:"pathtemplate"`
}

// Resolve computes the descriptor of a method. It is a pure function of the
// service declaration; Client caches its results.
func Resolve(s *Service, method string) (*MethodDescriptor, error) {
	def, ok := s.Lookup(method)
	if !ok {
		return nil, &Error{Kind: KindConfiguration, Service: s.name, Method: method, Message: "unknown method"}
	}
	d, err := resolve(s, def)
	if err != nil {
		return nil, err.withCall(s.name, method, "")
	}
	return d, nil
}

func resolve(s *Service, def *MethodDef) (*MethodDescriptor, *Error) {
	verb := strings.ToUpper(def.verb)
	if verb == "" {
		verb = "POST"
	}
	if err := validate.Struct(methodDecl{Name: def.name, Verb: verb, Path: def.path}); err != nil {
		return nil, validationError(KindConfiguration, "method declaration", err)
	}

	var bodies, forms, pathOrQuery int
	pathNames := make(map[string]bool)
	for i, p := range def.params {
		if p.Role.named() && p.Name == "" {
			return nil, Errorf(KindConfiguration, "parameter %d: %s role requires a name", i, p.Role)
		}
		switch p.Role {
		case RoleNone, RoleHeader, RoleCreds:
		case RoleArg, RoleForm:
			forms++
		case RoleBody:
			bodies++
		case RolePath:
			if pathNames[p.Name] {
				return nil, Errorf(KindConfiguration, "parameter %d: duplicate path parameter %q", i, p.Name)
			}
			pathNames[p.Name] = true
			pathOrQuery++
		case RoleQuery:
			pathOrQuery++
		default:
			return nil, Errorf(KindConfiguration, "parameter %d: unknown role %s", i, p.Role)
		}
	}

	allowsBody := verb != "GET" && verb != "HEAD"
	path := def.path
	var dispatch string
	if path == "" {
		// Only form-encoded POSTs collapse onto the base path.
		if verb == "POST" && pathOrQuery == 0 && bodies == 0 {
			dispatch = def.dispatch
			if dispatch == "" {
				dispatch = s.dispatch
			}
			if dispatch == "" {
				dispatch = DefaultDispatchParam
			}
			forms++
		} else {
			path = def.name + "/"
		}
	}

	switch {
	case bodies > 1:
		return nil, Errorf(KindConfiguration, "%d body parameters declared, at most one is allowed", bodies)
	case bodies == 1 && forms > 0:
		return nil, Errorf(KindConfiguration, "body parameter cannot be combined with form parameters")
	case !allowsBody && bodies+forms > 0:
		return nil, Errorf(KindConfiguration, "%s method cannot carry body or form parameters", verb)
	}

	placeholders, err := parsePlaceholders(path)
	if err != nil {
		return nil, wrap(KindConfiguration, err, "invalid path template %q", path)
	}
	for _, ph := range placeholders {
		if !pathNames[ph] {
			return nil, Errorf(KindConfiguration, "path placeholder {%s} has no path parameter", ph)
		}
	}

	headers := s.headers.Clone()
	for name, value := range def.headers.All() {
		headers.Set(name, value)
	}

	interceptors := slices.Clone(def.interceptors)
	return &MethodDescriptor{
		Service:      s.name,
		Name:         def.name,
		HTTPMethod:   verb,
		PathTemplate: path,
		Placeholders: placeholders,
		Params:       slices.Clone(def.params),
		ReturnType:   def.result,
		Headers:      headers,
		Dispatch:     dispatch,
		interceptors: interceptors,
	}, nil
}

// parsePlaceholders returns the {name} placeholders of a path template in
// order of appearance.
func parsePlaceholders(path string) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '}':
			return nil, fmt.Errorf("unmatched '}' at offset %d", i)
		case '{':
			end := strings.IndexByte(path[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unclosed '{' at offset %d", i)
			}
			name := path[i+1 : i+1+end]
			if name == "" || strings.ContainsAny(name, "{/") {
				return nil, fmt.Errorf("invalid placeholder %q at offset %d", name, i)
			}
			if seen[name] {
				return nil, fmt.Errorf("duplicate placeholder {%s}", name)
			}
			seen[name] = true
			names = append(names, name)
			i += end + 1
		}
	}
	return names, nil
}

// resolver memoizes descriptors per method. Concurrent first calls for the
// same method share one computation.
type resolver struct {
	service *Service
	cache   sync.Map // method name -> *MethodDescriptor
	group   singleflight.Group
}

func newResolver(s *Service) *resolver {
	return &resolver{service: s}
}

func (r *resolver) resolve(method string, logger *slog.Logger) (*MethodDescriptor, error) {
	if d, ok := r.cache.Load(method); ok {
		return d.(*MethodDescriptor), nil
	}
	v, err, _ := r.group.Do(method, func() (any, error) {
		if d, ok := r.cache.Load(method); ok {
			return d, nil
		}
		d, err := Resolve(r.service, method)
		if err != nil {
			return nil, err
		}
		actual, _ := r.cache.LoadOrStore(method, d)
		logger.Debug("resolved method descriptor",
			slog.String("service", d.Service),
			slog.String("method", d.Name),
			slog.String("http_method", d.HTTPMethod),
			slog.String("path", d.PathTemplate))
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*MethodDescriptor), nil
}
