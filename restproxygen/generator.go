package restproxygen

import (
	"bytes"
	"fmt"
	"go/types"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/broady/restproxy"
	"github.com/broady/restproxy/internal/directive"
	"github.com/broady/restproxy/restproxygen/sink"
	"golang.org/x/tools/imports"
)

const restproxyPath = "github.com/broady/restproxy"

// OutputName returns the default output file for a package: the file that
// declares the first service, with a _restproxy suffix.
func OutputName(res *directive.Result) string {
	if len(res.Services) == 0 {
		return "restproxy.go"
	}
	return strings.TrimSuffix(res.Services[0].File, ".go") + "_restproxy.go"
}

// emit renders the client source for every service of a package.
func emit(res *directive.Result, filename string) ([]byte, error) {
	if err := checkNames(res); err != nil {
		return nil, err
	}

	imps := newImportSet(res.Types)
	imps.add(restproxyPath, "restproxy")
	for _, svc := range res.Services {
		for _, m := range svc.Methods {
			imps.add("context", "context")
			if m.Result != nil {
				imps.add("reflect", "reflect")
			}
		}
	}

	var body bytes.Buffer
	for _, svc := range res.Services {
		emitService(&body, svc, imps)
	}

	var out bytes.Buffer
	fmt.Fprintln(&out, sink.GeneratedMarker)
	fmt.Fprintln(&out)
	fmt.Fprintf(&out, "package %s\n\n", res.PackageName)
	imps.write(&out)
	out.Write(body.Bytes())

	src, err := imports.Process(filename, out.Bytes(), &imports.Options{
		FormatOnly: true,
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
	})
	if err != nil {
		return nil, fmt.Errorf("format generated code: %w\n%s", err, out.Bytes())
	}
	return src, nil
}

// checkNames rejects services whose methods share a wire name.
func checkNames(res *directive.Result) error {
	for _, svc := range res.Services {
		seen := make(map[string]*directive.Method)
		for _, m := range svc.Methods {
			if prev, ok := seen[m.Name]; ok {
				return fmt.Errorf("%s: method %s has the same name %q as %s", m.Pos, m.GoName, m.Name, prev.GoName)
			}
			seen[m.Name] = m
		}
	}
	return nil
}

func emitService(w *bytes.Buffer, svc *directive.Service, imps *importSet) {
	defVar := svc.Interface + "Service"
	clientType := lowerFirst(svc.Interface) + "Client"

	fmt.Fprintf(w, "// %s declares the %s API for restproxy clients.\n", defVar, svc.Interface)
	fmt.Fprintf(w, "var %s = func() *restproxy.Service {\n", defVar)
	fmt.Fprintf(w, "\ts := restproxy.NewService(%q, %q)\n", svc.Interface, svc.BasePath)
	for _, h := range svc.Headers {
		fmt.Fprintf(w, "\ts.WithHeader(%q, %q)\n", h.Name, h.Value)
	}
	if svc.Dispatch != "" {
		fmt.Fprintf(w, "\ts.WithDispatchParam(%q)\n", svc.Dispatch)
	}
	for _, m := range svc.Methods {
		fmt.Fprintf(w, "\ts.Method(%q, %q, %q", m.Name, m.Verb, m.Path)
		for _, p := range m.Params {
			fmt.Fprintf(w, ", %s", paramExpr(p))
		}
		fmt.Fprint(w, ")")
		for _, h := range m.Headers {
			fmt.Fprintf(w, ".\n\t\tWithHeader(%q, %q)", h.Name, h.Value)
		}
		if m.Result != nil {
			fmt.Fprintf(w, ".\n\t\tReturns(reflect.TypeFor[%s]())", imps.typeString(m.Result))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprint(w, "\treturn s\n}()\n\n")

	fmt.Fprintf(w, "type %s struct {\n\tc *restproxy.Client\n}\n\n", clientType)
	fmt.Fprintf(w, "// New%s implements %s with c, which must be created for %s.\n", svc.Interface, svc.Interface, defVar)
	fmt.Fprintf(w, "func New%s(c *restproxy.Client) %s {\n\treturn &%s{c: c}\n}\n\n", svc.Interface, svc.Interface, clientType)

	for _, m := range svc.Methods {
		emitMethod(w, clientType, m, imps)
	}
}

func emitMethod(w *bytes.Buffer, clientType string, m *directive.Method, imps *importSet) {
	used := make(map[string]bool)
	for _, p := range m.Params {
		if p.GoName != "" {
			used[p.GoName] = true
		}
	}
	recv := unique("rp", used)
	ctx := "context.Background()"
	var sig []string
	if m.Context {
		ctx = unique("ctx", used)
		sig = append(sig, ctx+" context.Context")
	}
	args := make([]string, len(m.Params))
	for i, p := range m.Params {
		name := p.GoName
		if name == "" {
			name = unique("arg"+strconv.Itoa(i), used)
		}
		args[i] = name
		sig = append(sig, name+" "+imps.typeString(p.Type))
	}

	results := "error"
	if m.Result != nil {
		results = "(" + imps.typeString(m.Result) + ", error)"
	}
	fmt.Fprintf(w, "func (%s *%s) %s(%s) %s {\n", recv, clientType, m.GoName, strings.Join(sig, ", "), results)
	if m.Result != nil {
		callArgs := append([]string{ctx, recv + ".c", strconv.Quote(m.Name)}, args...)
		fmt.Fprintf(w, "\treturn restproxy.Call[%s](%s)\n", imps.typeString(m.Result), strings.Join(callArgs, ", "))
	} else {
		fmt.Fprintf(w, "\treturn %s.c.Invoke(%s, %q, []any{%s}, nil)\n", recv, ctx, m.Name, strings.Join(args, ", "))
	}
	fmt.Fprint(w, "}\n\n")
}

func paramExpr(p *directive.Param) string {
	switch p.Role {
	case directive.RolePath:
		return fmt.Sprintf("restproxy.Path(%q)", p.Wire)
	case directive.RoleQuery:
		return fmt.Sprintf("restproxy.Query(%q)", p.Wire)
	case directive.RoleForm:
		return fmt.Sprintf("restproxy.Form(%q)", p.Wire)
	case directive.RoleHeader:
		return fmt.Sprintf("restproxy.Header(%q)", p.Wire)
	case directive.RoleBody:
		return "restproxy.Body()"
	case directive.RoleCreds:
		return "restproxy.Creds()"
	case directive.RoleArg:
		return fmt.Sprintf("restproxy.Arg(%q)", p.Wire)
	default:
		return "restproxy.Unbound()"
	}
}

// definitions builds the services a generated file would declare, without
// result types. It is used to validate declarations before generating.
func definitions(res *directive.Result) []*restproxy.Service {
	var out []*restproxy.Service
	for _, svc := range res.Services {
		s := restproxy.NewService(svc.Interface, svc.BasePath)
		for _, h := range svc.Headers {
			s.WithHeader(h.Name, h.Value)
		}
		if svc.Dispatch != "" {
			s.WithDispatchParam(svc.Dispatch)
		}
		for _, m := range svc.Methods {
			params := make([]restproxy.Param, len(m.Params))
			for i, p := range m.Params {
				params[i] = param(p)
			}
			def := s.Method(m.Name, m.Verb, m.Path, params...)
			for _, h := range m.Headers {
				def.WithHeader(h.Name, h.Value)
			}
		}
		out = append(out, s)
	}
	return out
}

func param(p *directive.Param) restproxy.Param {
	switch p.Role {
	case directive.RolePath:
		return restproxy.Path(p.Wire)
	case directive.RoleQuery:
		return restproxy.Query(p.Wire)
	case directive.RoleForm:
		return restproxy.Form(p.Wire)
	case directive.RoleHeader:
		return restproxy.Header(p.Wire)
	case directive.RoleBody:
		return restproxy.Body()
	case directive.RoleCreds:
		return restproxy.Creds()
	case directive.RoleArg:
		return restproxy.Arg(p.Wire)
	default:
		return restproxy.Unbound()
	}
}

// importSet collects the imports referenced by generated type expressions.
type importSet struct {
	self   *types.Package
	byPath map[string]string // import path -> local name
	byName map[string]string // local name -> import path
}

func newImportSet(self *types.Package) *importSet {
	return &importSet{
		self:   self,
		byPath: make(map[string]string),
		byName: make(map[string]string),
	}
}

// add records an import and returns the name it is referenced by, which
// differs from name when another path already uses it.
func (s *importSet) add(importPath, name string) string {
	if local, ok := s.byPath[importPath]; ok {
		return local
	}
	local := name
	for i := 2; ; i++ {
		if _, taken := s.byName[local]; !taken {
			break
		}
		local = name + strconv.Itoa(i)
	}
	s.byPath[importPath] = local
	s.byName[local] = importPath
	return local
}

func (s *importSet) qualifier(p *types.Package) string {
	if s.self != nil && p.Path() == s.self.Path() {
		return ""
	}
	return s.add(p.Path(), p.Name())
}

func (s *importSet) typeString(t types.Type) string {
	return types.TypeString(t, s.qualifier)
}

func (s *importSet) write(w *bytes.Buffer) {
	paths := make([]string, 0, len(s.byPath))
	for p := range s.byPath {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	fmt.Fprintln(w, "import (")
	for _, p := range paths {
		if local := s.byPath[p]; local != path.Base(p) {
			fmt.Fprintf(w, "\t%s %q\n", local, p)
		} else {
			fmt.Fprintf(w, "\t%q\n", p)
		}
	}
	fmt.Fprint(w, ")\n\n")
}

// unique returns name, or name with a numeric suffix when it is taken, and
// marks the result as taken.
func unique(name string, used map[string]bool) string {
	candidate := name
	for i := 2; used[candidate]; i++ {
		candidate = name + strconv.Itoa(i)
	}
	used[candidate] = true
	return candidate
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
