// Package directive parses restproxy directives from Go source files.
//
// Directives are line comments on an interface declaration and its methods:
//
//	//restproxy:service api/2
//	//restproxy:header User-Agent restproxy
//	type Exchange interface {
//		//restproxy:post buy/
//		//restproxy:form amount price
//		//restproxy:creds auth
//		Buy(ctx context.Context, amount, price decimal.Decimal, auth restproxy.Credentials) (*Order, error)
//	}
//
// Interfaces without a service directive are ignored.
package directive

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"
)

const prefix = "//restproxy:"

// Header is a static request header.
type Header struct {
	Name  string
	Value string
}

// Service is an interface marked with //restproxy:service.
type Service struct {
	Interface string
	BasePath  string
	Headers   []Header
	Dispatch  string
	Methods   []*Method
	// File is the base name of the file declaring the interface.
	File string
	Pos  token.Position
}

// Method is one interface method and its directives.
type Method struct {
	GoName string
	// Name is the method name on the wire (lower camel case of GoName
	// unless set with //restproxy:name).
	Name    string
	Verb    string
	Path    string
	Headers []Header
	// Context reports whether the first parameter is a context.Context.
	Context bool
	Params  []*Param
	// Result is nil for methods returning only error.
	Result types.Type
	Pos    token.Position
}

// Role is the role a directive assigns to a parameter.
type Role string

const (
	RoleArg    Role = "arg"
	RoleNone   Role = "none"
	RolePath   Role = "path"
	RoleQuery  Role = "query"
	RoleForm   Role = "form"
	RoleHeader Role = "header"
	RoleBody   Role = "body"
	RoleCreds  Role = "creds"
)

// Param is a method parameter other than the leading context.
type Param struct {
	// GoName is the parameter name in the signature, "" if unnamed.
	GoName string
	Type   types.Type
	Role   Role
	// Wire is the name on the wire. Empty for body, creds and none.
	Wire string
}

// Result contains all services found in a package.
type Result struct {
	Services    []*Service
	PackagePath string
	PackageName string
	Types       *types.Package
	// Dir is the directory containing the package.
	Dir string
}

// Parse scans a Go package for restproxy directives.
//
// The pattern follows go command semantics ("." for the current directory,
// an import path, or a directory path) and must match a single package.
func Parse(pattern string) (*Result, error) {
	return ParseDir(pattern, "")
}

// ParseDir is like Parse but allows specifying a working directory.
// If dir is empty, the current directory is used.
func ParseDir(pattern, dir string) (*Result, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
			packages.NeedTypes | packages.NeedTypesInfo,
		Dir: dir,
	}

	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("load package: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found matching %q", pattern)
	}
	if len(pkgs) > 1 {
		return nil, fmt.Errorf("multiple packages found matching %q; specify a single package", pattern)
	}

	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkg.Errors[0])
	}

	result := &Result{
		PackagePath: pkg.PkgPath,
		PackageName: pkg.Name,
		Types:       pkg.Types,
	}
	if len(pkg.GoFiles) > 0 {
		result.Dir = filepath.Dir(pkg.GoFiles[0])
	}

	for _, f := range pkg.Syntax {
		services, err := parseFile(pkg, f)
		if err != nil {
			return nil, err
		}
		result.Services = append(result.Services, services...)
	}
	return result, nil
}

// parseFile extracts the services declared in one file.
func parseFile(pkg *packages.Package, f *ast.File) ([]*Service, error) {
	var services []*Service
	for _, decl := range f.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts := spec.(*ast.TypeSpec)
			doc := ts.Doc
			if doc == nil && len(gen.Specs) == 1 {
				doc = gen.Doc
			}
			lines := directives(pkg.Fset, doc)
			if len(lines) == 0 {
				continue
			}
			iface, ok := ts.Type.(*ast.InterfaceType)
			if !ok {
				return nil, fmt.Errorf("%s: //restproxy:%s must be on an interface type", lines[0].pos, lines[0].verb)
			}
			svc, err := parseService(pkg, ts.Name.Name, iface, lines)
			if err != nil {
				return nil, err
			}
			if svc == nil {
				continue
			}
			svc.File = filepath.Base(pkg.Fset.Position(f.Pos()).Filename)
			svc.Pos = pkg.Fset.Position(ts.Pos())
			services = append(services, svc)
		}
	}
	return services, nil
}

// line is one directive comment split into words.
type line struct {
	verb string
	args []string
	pos  token.Position
}

func (l line) String() string {
	return prefix + strings.Join(append([]string{l.verb}, l.args...), " ")
}

func directives(fset *token.FileSet, cg *ast.CommentGroup) []line {
	if cg == nil {
		return nil
	}
	var lines []line
	for _, c := range cg.List {
		if !strings.HasPrefix(c.Text, prefix) {
			continue
		}
		parts := strings.Fields(strings.TrimPrefix(c.Text, prefix))
		if len(parts) == 0 {
			continue
		}
		lines = append(lines, line{verb: parts[0], args: parts[1:], pos: fset.Position(c.Pos())})
	}
	return lines
}

func parseService(pkg *packages.Package, name string, iface *ast.InterfaceType, lines []line) (*Service, error) {
	svc := &Service{Interface: name}
	marked := false
	for _, l := range lines {
		switch l.verb {
		case "service":
			if len(l.args) > 1 {
				return nil, fmt.Errorf("%s: %s takes at most one base path", l.pos, l)
			}
			if len(l.args) == 1 {
				svc.BasePath = l.args[0]
			}
			marked = true
		case "header":
			h, err := parseHeader(l)
			if err != nil {
				return nil, err
			}
			svc.Headers = append(svc.Headers, h)
		case "dispatch":
			if len(l.args) != 1 {
				return nil, fmt.Errorf("%s: %s takes exactly one parameter name", l.pos, l)
			}
			svc.Dispatch = l.args[0]
		default:
			return nil, fmt.Errorf("%s: unknown service directive //restproxy:%s", l.pos, l.verb)
		}
	}
	if !marked {
		return nil, fmt.Errorf("%s: %s requires //restproxy:service on %s", lines[0].pos, lines[0], name)
	}

	for _, field := range iface.Methods.List {
		if len(field.Names) == 0 {
			return nil, fmt.Errorf("%s: embedded interfaces are not supported in service %s",
				pkg.Fset.Position(field.Pos()), name)
		}
		m, err := parseMethod(pkg, field, directives(pkg.Fset, field.Doc))
		if err != nil {
			return nil, err
		}
		svc.Methods = append(svc.Methods, m)
	}
	return svc, nil
}

func parseHeader(l line) (Header, error) {
	if len(l.args) < 2 {
		return Header{}, fmt.Errorf("%s: %s requires a name and a value", l.pos, l)
	}
	return Header{Name: l.args[0], Value: strings.Join(l.args[1:], " ")}, nil
}

var verbs = map[string]string{
	"get":    "GET",
	"post":   "POST",
	"put":    "PUT",
	"delete": "DELETE",
	"patch":  "PATCH",
}

func parseMethod(pkg *packages.Package, field *ast.Field, lines []line) (*Method, error) {
	ident := field.Names[0]
	pos := pkg.Fset.Position(ident.Pos())
	m := &Method{GoName: ident.Name, Name: lowerFirst(ident.Name), Pos: pos}

	fn, ok := pkg.TypesInfo.Defs[ident].(*types.Func)
	if !ok {
		return nil, fmt.Errorf("%s: no type information for method %s", pos, ident.Name)
	}
	if err := m.bindSignature(fn.Type().(*types.Signature)); err != nil {
		return nil, fmt.Errorf("%s: %w", pos, err)
	}

	assigned := make(map[string]string)
	assign := func(l line, spec string, role Role) error {
		goName, wire, hasWire := strings.Cut(spec, "=")
		p := m.param(goName)
		if p == nil {
			return fmt.Errorf("%s: %s: %s has no parameter %q", l.pos, l, m.GoName, goName)
		}
		if prev, ok := assigned[goName]; ok {
			return fmt.Errorf("%s: %s: parameter %q already bound by //restproxy:%s", l.pos, l, goName, prev)
		}
		assigned[goName] = l.verb
		p.Role = role
		switch {
		case role == RoleHeader && !hasWire:
			return fmt.Errorf("%s: %s: expected %s=Header-Name", l.pos, l, goName)
		case role == RoleBody || role == RoleCreds || role == RoleNone:
			if hasWire {
				return fmt.Errorf("%s: %s: //restproxy:%s does not take a wire name", l.pos, l, l.verb)
			}
			p.Wire = ""
		case hasWire:
			p.Wire = wire
		}
		return nil
	}

	for _, l := range lines {
		if verb, ok := verbs[l.verb]; ok {
			if m.Verb != "" {
				return nil, fmt.Errorf("%s: %s declares a second HTTP method", l.pos, l)
			}
			if len(l.args) > 1 {
				return nil, fmt.Errorf("%s: %s takes at most one path", l.pos, l)
			}
			m.Verb = verb
			if len(l.args) == 1 {
				m.Path = l.args[0]
			}
			continue
		}

		var role Role
		switch l.verb {
		case "name":
			if len(l.args) != 1 {
				return nil, fmt.Errorf("%s: %s takes exactly one name", l.pos, l)
			}
			m.Name = l.args[0]
			continue
		case "header":
			h, err := parseHeader(l)
			if err != nil {
				return nil, err
			}
			m.Headers = append(m.Headers, h)
			continue
		case "path":
			role = RolePath
		case "query":
			role = RoleQuery
		case "form":
			role = RoleForm
		case "hparam":
			role = RoleHeader
		case "body":
			role = RoleBody
		case "creds":
			role = RoleCreds
		case "ignore":
			role = RoleNone
		default:
			return nil, fmt.Errorf("%s: unknown method directive //restproxy:%s", l.pos, l.verb)
		}
		if len(l.args) == 0 {
			return nil, fmt.Errorf("%s: %s names no parameters", l.pos, l)
		}
		if (role == RoleBody || role == RoleCreds) && len(l.args) != 1 {
			return nil, fmt.Errorf("%s: %s takes exactly one parameter", l.pos, l)
		}
		for _, spec := range l.args {
			if err := assign(l, spec, role); err != nil {
				return nil, err
			}
		}
	}

	if m.Verb == "" {
		return nil, fmt.Errorf("%s: method %s has no HTTP method directive", pos, m.GoName)
	}
	return m, nil
}

func (m *Method) param(goName string) *Param {
	if goName == "" || goName == "_" {
		return nil
	}
	for _, p := range m.Params {
		if p.GoName == goName {
			return p
		}
	}
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
