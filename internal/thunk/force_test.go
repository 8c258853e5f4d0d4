package thunk

import (
	"testing"

	"github.com/arcanum-run/arcanum/internal/function"
	"github.com/arcanum-run/arcanum/internal/value"
)

func TestForceHalt(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	b.Emit(Instruction{Op: OpHalt})

	f := Load(b.Bytes(), nil)

	result, err := Force(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := result.(value.Null); !ok {
		t.Fatalf("result = %v, want Null", result)
	}
}

// TestForceExit builds a tiny program that creates a descriptor holding a
// Word, then exits with it — the identity-function scenario.
func TestForceExit(t *testing.T) {
	t.Parallel()

	f := Load(nil, nil)

	want := value.Word(42)
	i := f.Descriptors.Insert(want)

	name := f.Descriptors.Insert(value.NewBlob([]byte(EffectExit)))
	args := f.Descriptors.Insert(value.TupleOf(value.Word(i)))

	b := NewBuilder()
	b.Emit(Instruction{Op: OpLoadImm, Reg0: 0, Imm: uint64(name)})
	b.Emit(Instruction{Op: OpLoadImm, Reg0: 1, Imm: uint64(args)})
	b.Emit(Instruction{Op: OpEffect})

	f.Code = value.NewBlob(b.Bytes())

	result, err := Force(f)
	if err != nil {
		t.Fatal(err)
	}
	if result != want {
		t.Fatalf("result = %v, want %v", result, want)
	}
}

// TestForceSuspendsOnExternalEffect exercises the read/exit effect loop
// scenario: forcing a Function that performs a host-defined "read" effect
// suspends rather than looping forever, and resuming the continuation runs
// it to completion.
func TestForceSuspendsOnExternalEffect(t *testing.T) {
	t.Parallel()

	f := Load(nil, nil)

	name := f.Descriptors.Insert(value.NewBlob([]byte("file-a")))
	args := f.Descriptors.Insert(value.NewTuple(0))

	b := NewBuilder()
	b.Emit(Instruction{Op: OpLoadImm, Reg0: 0, Imm: uint64(name)})
	b.Emit(Instruction{Op: OpLoadImm, Reg0: 1, Imm: uint64(args)})
	b.Emit(Instruction{Op: OpEffect})
	b.Emit(Instruction{Op: OpHalt})

	f.Code = value.NewBlob(b.Bytes())

	result, err := Force(f)
	if err != nil {
		t.Fatal(err)
	}

	sym, ok := result.(*function.Function)
	if !ok || !sym.IsSymbolic() {
		t.Fatalf("result = %v, want a symbolic function", result)
	}

	effectName, _ := sym.EffectName()
	if effectName != "file-a" {
		t.Fatalf("EffectName = %q, want file-a", effectName)
	}

	k, ok := sym.Continuation()
	if !ok {
		t.Fatal("expected a continuation")
	}

	result, err = Resume(k)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := result.(value.Null); !ok {
		t.Fatalf("resumed result = %v, want Null (halt)", result)
	}
}

// TestForceReifiesOnEmptyPendingArgQueue exercises get_argument's other
// branch (§4.5): with no pending argument queued, the force loop must
// suspend and hand back the current Function itself, reified mid-step, so a
// host can serialize it, migrate it, or apply an argument and resume it
// later. This is the central "a running computation is itself a value"
// behavior (§1/§4.4), distinct from TestForceSuspendsOnExternalEffect's
// host-effect suspension.
func TestForceReifiesOnEmptyPendingArgQueue(t *testing.T) {
	t.Parallel()

	f := Load(nil, nil)

	slot := f.Descriptors.Insert(value.Null{})

	b := NewBuilder()
	b.Emit(Instruction{Op: OpGetArg, Reg0: uint8(slot)})
	b.Emit(Instruction{Op: OpHalt})

	f.Code = value.NewBlob(b.Bytes())

	result, err := Force(f)
	if err != nil {
		t.Fatal(err)
	}

	self, ok := result.(*function.Function)
	if !ok {
		t.Fatalf("result = %v (%T), want a reified Function", result, result)
	}
	if self.IsSymbolic() {
		t.Fatal("reified self should remain arcane, not symbolic")
	}

	// The reified function has not advanced past the get_argument step: it
	// can be resumed (via AppendPendingArg + Force) and will retry the same
	// get_argument, now finding the argument it was given.
	self.AppendPendingArg(value.Word(7))

	result, err = Force(self)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := result.(value.Null); !ok {
		t.Fatalf("result after resume = %v, want Null (halt)", result)
	}

	got, err := self.Descriptors.Get(slot)
	if err != nil {
		t.Fatal(err)
	}
	if got != value.Word(7) {
		t.Fatalf("descriptor %d = %v, want Word(7)", slot, got)
	}
}

func TestForceUnknownOpcodeFaults(t *testing.T) {
	t.Parallel()

	b := NewBuilder()
	b.Emit(Instruction{Op: Opcode(200)})

	f := Load(b.Bytes(), nil)

	result, err := Force(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := result.(value.Exception); !ok {
		t.Fatalf("result = %v, want Exception", result)
	}
}
