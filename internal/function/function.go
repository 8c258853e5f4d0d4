// Package function implements Function state (§3.3): the register file,
// descriptor table, and error buffer an arcane Function carries, plus the
// symbolic-Function payload convention (§3.1, §3.4 V6). It sits one layer
// above internal/value (a Function's memory is a value.Table) and one layer
// below internal/thunk, which interprets an arcane Function's code and
// drives it to completion or to its next effect.
package function

import (
	"fmt"

	"github.com/arcanum-run/arcanum/internal/mem"
	"github.com/arcanum-run/arcanum/internal/value"
)

// Kind distinguishes an arcane Function (one the force loop can run) from a
// symbolic Function (a tagged effect record, produced by the guest and
// consumed by the host).
type Kind uint8

const (
	KindArcane Kind = iota
	KindSymbolic
)

// SymbolicTag is the fixed first element of every symbolic payload tuple
// (V6).
const SymbolicTag = "Symbolic"

// Function is the runtime's first-class suspended-computation variant
// (§3.1). It satisfies value.Value.
type Function struct {
	kind Kind

	// Arcane fields.
	Regs        RegisterFile
	Memory      *value.Table
	Descriptors *Descriptors
	Errors      ErrorBuffer
	Code        value.Blob      // encoded instruction stream, interpreted by internal/thunk
	PendingArgs []value.Value   // arguments enqueued by apply(f, x), consumed by get_argument
	Pages       *mem.Allocator  // backing store for create_page/mmap; nil for a Function that never allocates

	// Symbolic payload: exactly ("Symbolic", effectName, argsWithContinuation) (V6).
	sym value.Tuple
}

// NewArcane creates an arcane Function with the given code and memory. Its
// register file, descriptor table, error buffer, and pending-argument queue
// start empty.
func NewArcane(code value.Blob, memory *value.Table) *Function {
	return &Function{
		kind:        KindArcane,
		Memory:      memory,
		Descriptors: NewDescriptors(),
		Code:        code,
	}
}

// WithPages attaches the physical allocator a Function's create_page and
// mmap effects draw fresh pages from.
func (f *Function) WithPages(a *mem.Allocator) *Function {
	f.Pages = a
	return f
}

// NewSymbolic builds the symbolic Function representing an effect: the
// guest is suspending to perform `name` with `args`, and `k` is the
// continuation the host must apply to the effect's result.
func NewSymbolic(name string, args []value.Value, k *Function) *Function {
	full := make([]value.Value, 0, len(args)+1)
	full = append(full, args...)
	full = append(full, value.Value(k))

	payload := value.TupleOf(
		value.NewAtom([]byte(SymbolicTag)),
		value.NewBlob([]byte(name)),
		value.TupleOf(full...),
	)

	return &Function{kind: KindSymbolic, sym: payload}
}

func (*Function) Tag() value.Tag { return value.TagFunction }

func (f *Function) String() string {
	if f.IsSymbolic() {
		name, _ := f.EffectName()
		return fmt.Sprintf("function(symbolic, effect=%s)", name)
	}

	return fmt.Sprintf("function(arcane, ip=%#x, descriptors=%d)", f.Regs.IP, f.Descriptors.Len())
}

// IsArcane reports whether f carries a full execution context.
func (f *Function) IsArcane() bool { return f.kind == KindArcane }

// IsSymbolic reports whether f is really a tagged effect record.
func (f *Function) IsSymbolic() bool { return f.kind == KindSymbolic }

// Payload returns the symbolic payload tuple (V6): (Symbolic, name, args+k).
func (f *Function) Payload() (value.Tuple, bool) {
	if !f.IsSymbolic() {
		return value.Tuple{}, false
	}

	return f.sym, true
}

// EffectName returns the symbolic effect's name.
func (f *Function) EffectName() (string, bool) {
	if !f.IsSymbolic() {
		return "", false
	}

	v, err := f.sym.Get(1)
	if err != nil {
		return "", false
	}

	b, ok := v.(value.Blob)
	if !ok {
		return "", false
	}

	return string(b.Bytes()), true
}

// EffectArgs returns the symbolic effect's argument tuple, whose last
// element is always the continuation (V6).
func (f *Function) EffectArgs() (value.Tuple, bool) {
	if !f.IsSymbolic() {
		return value.Tuple{}, false
	}

	v, err := f.sym.Get(2)
	if err != nil {
		return value.Tuple{}, false
	}

	t, ok := v.(value.Tuple)

	return t, ok
}

// Continuation returns the symbolic effect's continuation function (the
// last element of EffectArgs).
func (f *Function) Continuation() (*Function, bool) {
	args, ok := f.EffectArgs()
	if !ok || args.Len() == 0 {
		return nil, false
	}

	v, err := args.Get(args.Len() - 1)
	if err != nil {
		return nil, false
	}

	k, ok := v.(*Function)

	return k, ok
}

// EffectValueArgs returns the symbolic effect's arguments, excluding the
// trailing continuation.
func (f *Function) EffectValueArgs() ([]value.Value, bool) {
	args, ok := f.EffectArgs()
	if !ok || args.Len() == 0 {
		return nil, false
	}

	return args.Slice()[:args.Len()-1], true
}

// AppendPendingArg enqueues x onto f's pending-argument queue (the apply
// side of the apply/get_argument protocol, §4.5).
func (f *Function) AppendPendingArg(x value.Value) {
	f.PendingArgs = append(f.PendingArgs, x)
}

// PopPendingArg dequeues the next pending argument, if any.
func (f *Function) PopPendingArg() (value.Value, bool) {
	if len(f.PendingArgs) == 0 {
		return nil, false
	}

	v := f.PendingArgs[0]
	f.PendingArgs = f.PendingArgs[1:]

	return v, true
}

// Clone deep-copies the register file and descriptor table (value-by-value)
// and reference-bumps the memory table, matching the arcane lifecycle
// described in §3.3.
func (f *Function) Clone() (*Function, error) {
	if f.IsSymbolic() {
		return &Function{kind: KindSymbolic, sym: f.sym.Clone()}, nil
	}

	descs, err := f.Descriptors.Clone()
	if err != nil {
		return nil, err
	}

	pending := make([]value.Value, len(f.PendingArgs))
	copy(pending, f.PendingArgs)

	return &Function{
		kind:        KindArcane,
		Regs:        f.Regs,
		Memory:      f.Memory.Clone(),
		Descriptors: descs,
		Errors:      f.Errors.Clone(),
		Code:        f.Code,
		PendingArgs: pending,
		Pages:       f.Pages,
	}, nil
}

// CloneValue returns a handle to v appropriate for a second owner: COW
// variants (Tuple, Page, Table) are cheaply aliased via their own Clone;
// everything else is copied as a plain Go value (Null/Word/Atom/Blob are
// immutable, and Function/Exception have no COW sharing model here).
func CloneValue(v value.Value) value.Value {
	switch vv := v.(type) {
	case value.Tuple:
		return vv.Clone()
	case value.Page:
		return vv.Clone()
	case *value.Table:
		return vv.Clone()
	default:
		return v
	}
}
