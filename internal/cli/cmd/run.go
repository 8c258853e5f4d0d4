package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/arcanum-run/arcanum/internal/cli"
	"github.com/arcanum-run/arcanum/internal/host"
	"github.com/arcanum-run/arcanum/internal/hostconfig"
	"github.com/arcanum-run/arcanum/internal/log"
	"github.com/arcanum-run/arcanum/internal/mem"
)

// Runner returns the "run" command.
func Runner() cli.Command {
	return &runner{log: log.DefaultLogger()}
}

type runner struct {
	logLevel   slog.Level
	configPath string
	timeout    time.Duration
	pageBytes  int
	log        *log.Logger
}

func (runner) Description() string {
	return "force a function to completion"
}

func (runner) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `run [-config hosts.yaml] FILE

Loads a serialized Function (internal/codec's wire format) from FILE and
drives it to completion via internal/host's Run loop, printing the result.`)

	return err
}

func (r *runner) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.Func("loglevel", "set log `level`", func(s string) error {
		return r.logLevel.UnmarshalText([]byte(s))
	})
	fs.StringVar(&r.configPath, "config", "", "host configuration `file` (YAML)")
	fs.DurationVar(&r.timeout, "timeout", 10*time.Second, "execution `timeout`")
	fs.IntVar(&r.pageBytes, "pages", 1<<20, "`bytes` of page-backed memory to reserve")

	return fs
}

// Run loads and executes the function named by args[0].
func (r *runner) Run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) int {
	log.LogLevel.Set(r.logLevel)

	if len(args) == 0 {
		logger.Error("run: missing FILE argument")
		return -1
	}

	allocator, err := mem.NewAllocator(r.pageBytes)
	if err != nil {
		logger.Error("run: allocator", "err", err)
		return -1
	}
	defer allocator.Close()

	f, err := loadFunctionFile(args[0], allocator)
	if err != nil {
		logger.Error("run: loading function", "err", err)
		return -1
	}

	h := host.New()

	if r.configPath != "" {
		cfg, err := hostconfig.Load(r.configPath)
		if err != nil {
			logger.Error("run: host config", "err", err)
			return -1
		}

		if err := cfg.Install(h); err != nil {
			logger.Error("run: installing host config", "err", err)
			return -1
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	logger.Debug("run: forcing function", "file", args[0])

	result, err := h.Run(ctx, f)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("run: timed out")
		return 2
	case err != nil:
		logger.Error("run: " + err.Error())
		return 1
	default:
		fmt.Fprintln(stdout, result)
		return 0
	}
}
