package host

import (
	"context"
	"testing"

	"github.com/arcanum-run/arcanum/internal/thunk"
	"github.com/arcanum-run/arcanum/internal/value"
)

// TestRunReadFileThenExit builds the effect/continuation loop scenario
// described in §8.5: a Function performs the host-resolved effect "file-a",
// which the host maps to a Blob, then pops the resumed value as a pending
// argument and exits with it. The final result is the host's Blob.
func TestRunReadFileThenExit(t *testing.T) {
	t.Parallel()

	f := thunk.Load(nil, nil)

	readName := f.Descriptors.Insert(value.NewBlob([]byte("file-a")))
	readArgs := f.Descriptors.Insert(value.NewTuple(0))

	// Reserve the slot get_argument's result lands in; the exit args tuple
	// below refers to it by index before it holds a real value.
	resultSlot := f.Descriptors.Insert(value.Null{})

	b := thunk.NewBuilder()
	b.Emit(thunk.Instruction{Op: thunk.OpLoadImm, Reg0: 0, Imm: uint64(readName)})
	b.Emit(thunk.Instruction{Op: thunk.OpLoadImm, Reg0: 1, Imm: uint64(readArgs)})
	b.Emit(thunk.Instruction{Op: thunk.OpEffect})

	// The continuation resumes here: pop the pending argument into the
	// reserved descriptor, then exit with it.
	b.Emit(thunk.Instruction{Op: thunk.OpGetArg, Reg0: uint8(resultSlot)})

	exitName := f.Descriptors.Insert(value.NewBlob([]byte(thunk.EffectExit)))
	exitArgsIdx := f.Descriptors.Insert(value.TupleOf(value.Word(resultSlot)))

	b.Emit(thunk.Instruction{Op: thunk.OpLoadImm, Reg0: 0, Imm: uint64(exitName)})
	b.Emit(thunk.Instruction{Op: thunk.OpLoadImm, Reg0: 1, Imm: uint64(exitArgsIdx)})
	b.Emit(thunk.Instruction{Op: thunk.OpEffect})

	f.Code = value.NewBlob(b.Bytes())

	h := New()
	h.Register("file-a", func(_ context.Context, _ []value.Value) (value.Value, error) {
		return value.NewBlob([]byte("hello")), nil
	})

	result, err := h.Run(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}

	blob, ok := result.(value.Blob)
	if !ok {
		t.Fatalf("result = %v (%T), want Blob", result, result)
	}
	if string(blob.Bytes()) != "hello" {
		t.Fatalf("result = %q, want %q", blob.Bytes(), "hello")
	}
}

func TestRunUnhandledEffect(t *testing.T) {
	t.Parallel()

	f := thunk.Load(nil, nil)

	name := f.Descriptors.Insert(value.NewBlob([]byte("network-call")))
	args := f.Descriptors.Insert(value.NewTuple(0))

	b := thunk.NewBuilder()
	b.Emit(thunk.Instruction{Op: thunk.OpLoadImm, Reg0: 0, Imm: uint64(name)})
	b.Emit(thunk.Instruction{Op: thunk.OpLoadImm, Reg0: 1, Imm: uint64(args)})
	b.Emit(thunk.Instruction{Op: thunk.OpEffect})

	f.Code = value.NewBlob(b.Bytes())

	h := New()

	_, err := h.Run(context.Background(), f)
	if err == nil {
		t.Fatal("expected an unhandled-effect error")
	}
}
