package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/arcanum-run/arcanum/internal/cli"
	"github.com/arcanum-run/arcanum/internal/codec"
	"github.com/arcanum-run/arcanum/internal/function"
	"github.com/arcanum-run/arcanum/internal/host"
	"github.com/arcanum-run/arcanum/internal/log"
	"github.com/arcanum-run/arcanum/internal/mem"
	"github.com/arcanum-run/arcanum/internal/thunk"
	"github.com/arcanum-run/arcanum/internal/tty"
	"github.com/arcanum-run/arcanum/internal/value"
)

// consoleEffectRead and consoleEffectWrite are host-resolved effect names
// (neither is in thunk's built-in catalog, §4.5) that attach wires to a
// live terminal.
const (
	consoleEffectRead  = "console.read"
	consoleEffectWrite = "console.write"
)

// Attacher returns the "attach" command.
func Attacher() cli.Command {
	return &attacher{log: log.DefaultLogger()}
}

type attacher struct {
	timeout   time.Duration
	pageBytes int
	log       *log.Logger
}

func (attacher) Description() string {
	return "run a function with its console effects wired to this terminal"
}

func (attacher) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `attach FILE

Like run, but additionally registers console.read and console.write effect
handlers against the calling terminal, putting raw stdin/stdout behind
golang.org/x/term for the duration of the function's execution.`)

	return err
}

func (a *attacher) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("attach", flag.ExitOnError)
	fs.DurationVar(&a.timeout, "timeout", time.Minute, "execution `timeout`")
	fs.IntVar(&a.pageBytes, "pages", 1<<20, "`bytes` of page-backed memory to reserve")

	return fs
}

func (a *attacher) Run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) int {
	if len(args) == 0 {
		logger.Error("attach: missing FILE argument")
		return -1
	}

	allocator, err := mem.NewAllocator(a.pageBytes)
	if err != nil {
		logger.Error("attach: allocator", "err", err)
		return -1
	}
	defer allocator.Close()

	f, err := loadFunctionFile(args[0], allocator)
	if err != nil {
		logger.Error("attach: loading function", "err", err)
		return -1
	}

	ctx, console, restore := tty.ConsoleContext(ctx)
	defer restore()

	if cause := context.Cause(ctx); cause != nil {
		logger.Error("attach: console", "err", cause)
		return -1
	}

	h := host.New()
	h.Register(consoleEffectRead, func(ctx context.Context, _ []value.Value) (value.Value, error) {
		key, err := console.ReadKey(ctx)
		if err != nil {
			return nil, err
		}

		return value.Word(key), nil
	})
	h.Register(consoleEffectWrite, func(_ context.Context, args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Null{}, nil
		}

		w, ok := args[0].(value.Word)
		if !ok {
			return nil, fmt.Errorf("attach: console.write expects a Word argument, got %T", args[0])
		}

		console.Display(rune(w))

		return value.Null{}, nil
	})

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	result, err := h.Run(ctx, f)
	if err != nil {
		logger.Error("attach: " + err.Error())
		return 1
	}

	fmt.Fprintln(stdout, result)

	return 0
}

// loadFunctionFile reads a codec-encoded value from fn and requires it to be
// a Function; a bare bytecode blob (no codec framing) is also accepted, in
// which case it becomes a fresh arcane Function's code. Shared by run and
// attach.
func loadFunctionFile(fn string, allocator *mem.Allocator) (*function.Function, error) {
	data, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}

	if v, err := codec.Decode(data, allocator); err == nil {
		if f, ok := v.(*function.Function); ok {
			return f, nil
		}

		return nil, fmt.Errorf("attach: %s decodes to a %T, not a Function", fn, v)
	}

	return thunk.Load(data, allocator), nil
}
