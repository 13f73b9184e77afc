package check

import (
	"errors"
	"fmt"
	"strings"

	"github.com/broady/restproxy/restproxygen"
	"golang.org/x/sync/errgroup"
)

type Cmd struct {
	Packages []string `arg:"" optional:"" help:"Packages to check (default: current directory)."`
}

func (c *Cmd) Run() error {
	packages := c.Packages
	if len(packages) == 0 {
		packages = []string{"."}
	}

	reports, err := run(packages)
	for _, r := range reports {
		fmt.Println(r)
	}
	return err
}

// run checks the packages concurrently and returns one report line per
// package, in argument order.
func run(packages []string) ([]string, error) {
	reports := make([]string, len(packages))
	errs := make([]error, len(packages))

	var g errgroup.Group
	g.SetLimit(4)
	for i, pkg := range packages {
		g.Go(func() error {
			services, err := restproxygen.FromPackage(pkg).Check()
			if err != nil {
				reports[i] = fmt.Sprintf("✗ %s", pkg)
				errs[i] = fmt.Errorf("%s: %w", pkg, err)
				return nil
			}
			reports[i] = fmt.Sprintf("✓ %s: %d services (%s)", pkg, len(services), strings.Join(services, ", "))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}
	return reports, errors.Join(errs...)
}
