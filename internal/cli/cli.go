package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	goflags "github.com/jessevdk/go-flags"

	"ReportHarvester/internal/config"
	"ReportHarvester/internal/logging"
)

// stdout is where command output goes; tests replace it.
var stdout io.Writer = os.Stdout

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Run    *RunCommand
	Status *StatusCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(ctx context.Context) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "reportharvester"
	parser.LongDescription = "Harvests broker research report PDFs from Eastmoney into a local directory tree."

	cmds := &commands{
		Run:    &RunCommand{globals: &globals, ctx: ctx},
		Status: &StatusCommand{globals: &globals, ctx: ctx},
	}

	parser.AddCommand("run", "Harvest reports", "Harvest research reports once, or on the configured cron schedule until interrupted.", cmds.Run)
	parser.AddCommand("status", "Show download statistics", "Show download outcome totals and the last recorded run.", cmds.Status)

	return parser, &globals, cmds
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(ctx context.Context, args []string) error {
	parser, _, _ := buildParser(ctx)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		var flagsErr *goflags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == goflags.ErrHelp {
			return nil
		}
		return err
	}

	return nil
}

// loadEnvironment reads the config and builds the logger for a command.
// The returned closer releases the log file, if any.
func loadEnvironment(globals *GlobalFlags) (config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load(globals.Config)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	if globals.LogLevel != "" {
		cfg.Logging.Level = globals.LogLevel
	}

	logger, closer := logging.New(cfg.Logging)
	return cfg, logger, closer, nil
}

func commandContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func closeQuietly(c io.Closer, logger *slog.Logger, what string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil && logger != nil {
		logger.Warn(fmt.Sprintf("close %s", what), "error", err)
	}
}
