package main_test

import (
	"bufio"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arcanum-run/arcanum/internal/function"
	"github.com/arcanum-run/arcanum/internal/host"
	"github.com/arcanum-run/arcanum/internal/log"
	"github.com/arcanum-run/arcanum/internal/thunk"
	"github.com/arcanum-run/arcanum/internal/value"
)

var logBuffer bufio.Writer

type testHarness struct {
	*testing.T
}

// Make builds a Function that exits immediately with a Word result,
// exercising the same load-immediate/effect shape internal/host's own tests
// drive, without any unhandled effect along the way.
func (testHarness) Make() *function.Function {
	f := thunk.Load(nil, nil)

	resultSlot := f.Descriptors.Insert(value.Word(42))
	exitName := f.Descriptors.Insert(value.NewBlob([]byte(thunk.EffectExit)))
	exitArgs := f.Descriptors.Insert(value.TupleOf(value.Word(resultSlot)))

	b := thunk.NewBuilder()
	b.Emit(thunk.Instruction{Op: thunk.OpLoadImm, Reg0: 0, Imm: uint64(exitName)})
	b.Emit(thunk.Instruction{Op: thunk.OpLoadImm, Reg0: 1, Imm: uint64(exitArgs)})
	b.Emit(thunk.Instruction{Op: thunk.OpEffect})

	f.Code = value.NewBlob(b.Bytes())

	return f
}

var (
	// timeout is how long to wait for the function to force to completion.
	timeout    = 1 * time.Second
	statusTick = 25 * time.Millisecond
)

// Context creates a test context. The context is cancelled after a timeout.
func (testHarness) Context() (ctx context.Context,
	cause context.CancelCauseFunc,
	cancel context.CancelFunc,
) {
	ctx = context.Background()
	ctx, cause = context.WithCancelCause(ctx)
	ctx, cancel = context.WithTimeout(ctx, timeout)

	return ctx, func(err error) {
		logBuffer.Flush()
		cause(err)
	}, cancel
}

func TestMain(tt *testing.T) {
	t := testHarness{tt}
	start := time.Now()
	f := t.Make()
	log.LogLevel.Set(log.Error)

	ctx, cause, cancel := t.Context()
	defer cancel()

	h := host.New()

	var (
		result value.Value
		runErr error
	)

	go func() {
		for {
			select {
			case <-time.After(statusTick):
				t.Log("in progress")
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		t.Logf("running")

		result, runErr = h.Run(ctx, f)

		if runErr != nil {
			cause(runErr)
		} else {
			cancel()
		}
	}()

	<-ctx.Done()

	elapsed := time.Since(start)
	err := context.Cause(ctx)

	switch {
	case errors.Is(err, context.Canceled):
		t.Logf("test: ok, elapsed: %s", elapsed)
	default:
		t.Errorf("test: error: %s: elapsed: %s, %s", err, elapsed, timeout)
	}

	if w, ok := result.(value.Word); !ok || w != 42 {
		t.Fatalf("result = %v, want Word(42)", result)
	}
}
