// Package tty_test tries to test ttys.
//
// The test is skipped when stdin is not a terminal (ErrNoTTY). Notably, this includes when run with
// "go test" because it redirects tests' standard input/output streams. You can test it by building
// a test binary and running it directly:
//
//	$ go test -c && ./tty.test
package tty_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arcanum-run/arcanum/internal/tty"
)

type testHarness struct {
	*testing.T
}

const timeout = 100 * time.Millisecond

func (testHarness) Context() (context.Context, context.CancelFunc) {
	ctx := context.Background()
	return context.WithTimeoutCause(ctx, timeout, context.DeadlineExceeded)
}

func TestTerminal(tt *testing.T) {
	t := testHarness{tt}

	ctx, cancel := t.Context()
	defer cancel()

	ctx, console, cancel := tty.ConsoleContext(ctx)
	defer cancel()

	if err := context.Cause(ctx); errors.Is(err, tty.ErrNoTTY) {
		t.Skipf("error: %s", context.Cause(ctx))
		t.SkipNow()
	}

	pressed := make(chan struct{})

	go func() {
		defer close(pressed)

		if _, err := console.ReadKey(ctx); err != nil {
			return
		}
	}()

	go func() {
		console.Press('!')
	}()

	console.Display('⍝')

	select {
	case <-ctx.Done():
	case <-pressed:
	}

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("cause: %s", err)
	}
}
