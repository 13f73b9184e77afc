package gen

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/broady/restproxy/restproxygen"
	"github.com/fsnotify/fsnotify"
)

type Cmd struct {
	Package  string        `arg:"" optional:"" default:"." help:"Package to scan (default: current directory)."`
	Out      string        `help:"Output file, relative to the package directory." short:"o"`
	Watch    bool          `help:"Watch the package and regenerate on change." short:"w"`
	Debounce time.Duration `help:"Delay before regenerating after a change." default:"300ms"`
}

func (c *Cmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := c.generate(ctx)
	if err != nil {
		return err
	}
	if !c.Watch {
		return nil
	}
	return c.watch(ctx, result.Dir, result.File)
}

func (c *Cmd) generate(ctx context.Context) (*restproxygen.GenerateResult, error) {
	result, err := restproxygen.FromPackage(c.Package).Output(c.Out).Generate(ctx)
	if err != nil {
		return nil, err
	}
	status := "unchanged"
	if result.Changed {
		status = "written"
	}
	fmt.Printf("✓ %s: %s (%s)\n", result.Package, result.File, status)
	return result, nil
}

// watch regenerates whenever a Go source file of the package changes, until
// ctx is done. Errors during regeneration are logged and watching continues.
func (c *Cmd) watch(ctx context.Context, dir, out string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	logger := slog.Default()
	logger.Info("watching for changes", slog.String("dir", dir))

	timer := time.NewTimer(c.Debounce)
	timer.Stop()
	defer timer.Stop()

	output := filepath.Join(dir, out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, output) {
				continue
			}
			logger.Debug("change detected", slog.String("file", ev.Name), slog.String("op", ev.Op.String()))
			timer.Reset(c.Debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", slog.Any("error", err))
		case <-timer.C:
			if _, err := c.generate(ctx); err != nil {
				logger.Error("generation failed", slog.Any("error", err))
			}
		}
	}
}

// relevant reports whether ev may change the generated output. Writes to the
// output itself, temp files and tests are ignored.
func relevant(ev fsnotify.Event, output string) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Base(ev.Name)
	switch {
	case filepath.Clean(ev.Name) == filepath.Clean(output):
		return false
	case strings.HasPrefix(name, "."):
		return false
	case !strings.HasSuffix(name, ".go"), strings.HasSuffix(name, "_test.go"):
		return false
	}
	return true
}
