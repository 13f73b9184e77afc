package directive

import (
	"fmt"
	"go/types"
	"strings"
)

// bindSignature checks the method signature and records its parameters and
// result. Method signatures must have the form
//
//	func([ctx context.Context,] params...) (T, error)
//	func([ctx context.Context,] params...) error
//
// Named parameters default to RoleArg under their own name; unnamed and
// blank parameters default to RoleNone.
func (m *Method) bindSignature(sig *types.Signature) error {
	if sig.Variadic() {
		return fmt.Errorf("method %s: variadic parameters are not supported\n  got: func(%s)",
			m.GoName, formatParams(sig.Params()))
	}

	results := sig.Results()
	switch {
	case results.Len() == 1 && isError(results.At(0).Type()):
	case results.Len() == 2 && isError(results.At(1).Type()):
		m.Result = results.At(0).Type()
	default:
		return fmt.Errorf("method %s must return (T, error) or error\n  got: (%s)",
			m.GoName, formatParams(results))
	}

	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		v := params.At(i)
		if i == 0 && isContext(v.Type()) {
			m.Context = true
			continue
		}
		if isContext(v.Type()) {
			return fmt.Errorf("method %s: context.Context must be the first parameter", m.GoName)
		}
		p := &Param{GoName: v.Name(), Type: v.Type(), Role: RoleArg, Wire: v.Name()}
		if p.GoName == "" || p.GoName == "_" {
			p.GoName = ""
			p.Role = RoleNone
			p.Wire = ""
		}
		m.Params = append(m.Params, p)
	}
	return nil
}

func isError(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}

// isContext reports whether t is context.Context.
func isContext(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok {
		return false
	}
	obj := named.Obj()
	return obj.Pkg() != nil && obj.Pkg().Path() == "context" && obj.Name() == "Context"
}

// formatParams formats a types.Tuple as a parameter list string.
func formatParams(params *types.Tuple) string {
	if params.Len() == 0 {
		return ""
	}
	var parts []string
	for i := 0; i < params.Len(); i++ {
		parts = append(parts, params.At(i).Type().String())
	}
	return strings.Join(parts, ", ")
}
