// Package restproxygen generates restproxy clients from annotated Go
// interfaces.
//
// Each interface marked with //restproxy:service gets a service definition
// variable, an unexported implementation and a constructor, written to a
// single file next to the interface:
//
//	res, err := restproxygen.FromPackage("./api").Generate(ctx)
//
// See package internal/directive for the directive grammar.
package restproxygen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/broady/restproxy"
	"github.com/broady/restproxy/internal/directive"
	"github.com/broady/restproxy/restproxygen/sink"
)

// Generator provides a fluent API for client generation.
type Generator struct {
	pattern string
	dir     string
	output  string
	sink    sink.OutputSink
	logger  *slog.Logger
}

// GenerateResult describes one generation run.
type GenerateResult struct {
	// Package is the import path of the annotated package.
	Package string
	// Services lists the generated interfaces.
	Services []string
	// Dir is the package directory.
	Dir string
	// File is the output path relative to the package directory.
	File string
	// Changed reports whether the output differs from what was there before.
	Changed bool
}

// FromPackage creates a generator for the package matching pattern.
func FromPackage(pattern string) *Generator {
	return &Generator{pattern: pattern}
}

// Dir sets the working directory the pattern is resolved in.
func (g *Generator) Dir(dir string) *Generator {
	g.dir = dir
	return g
}

// Output overrides the output file name. It is relative to the package directory.
func (g *Generator) Output(name string) *Generator {
	g.output = name
	return g
}

// ToSink sends the output to s instead of the package directory.
func (g *Generator) ToSink(s sink.OutputSink) *Generator {
	g.sink = s
	return g
}

// WithLogger sets a custom logger.
// If not set, slog.Default() will be used.
func (g *Generator) WithLogger(logger *slog.Logger) *Generator {
	g.logger = logger
	return g
}

func (g *Generator) getLogger() *slog.Logger {
	if g.logger != nil {
		return g.logger
	}
	return slog.Default()
}

// Generate parses the package, validates every declaration and writes the
// generated file.
func (g *Generator) Generate(ctx context.Context) (*GenerateResult, error) {
	res, err := directive.ParseDir(g.pattern, g.dir)
	if err != nil {
		return nil, err
	}
	if len(res.Services) == 0 {
		return nil, fmt.Errorf("no //restproxy:service interfaces in %s", res.PackagePath)
	}
	if err := check(res); err != nil {
		return nil, err
	}

	out := g.output
	if out == "" {
		out = OutputName(res)
	}
	src, err := emit(res, filepath.Join(res.Dir, out))
	if err != nil {
		return nil, err
	}

	dst := g.sink
	if dst == nil {
		dst = sink.NewFilesystemSink(res.Dir)
	}
	changed, err := dst.WriteFile(ctx, filepath.ToSlash(out), src)
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", out, err)
	}

	result := &GenerateResult{Package: res.PackagePath, Dir: res.Dir, File: out, Changed: changed}
	for _, svc := range res.Services {
		result.Services = append(result.Services, svc.Interface)
	}
	g.getLogger().Info("generated restproxy client",
		slog.String("package", res.PackagePath),
		slog.String("file", out),
		slog.Bool("changed", changed),
		slog.Int("services", len(result.Services)))
	return result, nil
}

// Check parses the package and resolves every declared method, reporting
// all configuration errors found.
func (g *Generator) Check() ([]string, error) {
	res, err := directive.ParseDir(g.pattern, g.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, svc := range res.Services {
		names = append(names, svc.Interface)
	}
	return names, check(res)
}

// check resolves every method of every service.
func check(res *directive.Result) error {
	if err := checkNames(res); err != nil {
		return err
	}
	var errs []error
	for i, s := range definitions(res) {
		svc := res.Services[i]
		for j, method := range s.Methods() {
			if _, err := restproxy.Resolve(s, method); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", svc.Methods[j].Pos, err))
			}
		}
	}
	return errors.Join(errs...)
}
