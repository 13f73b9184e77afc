package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/broady/restproxy/cmd/restproxy/internal/check"
	"github.com/broady/restproxy/cmd/restproxy/internal/gen"
)

type CLI struct {
	Verbose bool `help:"Enable debug logging." short:"v"`

	Version VersionCmd `cmd:"" help:"Print version information."`
	Gen     gen.Cmd    `cmd:"" help:"Generate clients for //restproxy:service interfaces."`
	Check   check.Cmd  `cmd:"" help:"Validate service declarations without generating files."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("restproxy"),
		kong.Description("Generate and validate declarative REST clients."),
		kong.UsageOnError(),
	)

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
