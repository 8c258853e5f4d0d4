package thunk

import (
	"fmt"

	"github.com/arcanum-run/arcanum/internal/function"
	"github.com/arcanum-run/arcanum/internal/value"
)

// Effect names in the closed, in-core catalog (§4.5). Any other name is, by
// definition, external: the force loop cannot resolve it and suspends,
// returning a symbolic function.Function for a host to dispatch.
const (
	EffectDrop           = "drop"
	EffectClone          = "clone"
	EffectExit           = "exit"
	EffectLength         = "length"
	EffectGet            = "get"
	EffectSet            = "set"
	EffectRead           = "read"
	EffectType           = "type"
	EffectCreateWord     = "create_word"
	EffectCreateBlob     = "create_blob"
	EffectCreateTuple    = "create_tuple"
	EffectCreatePage     = "create_page"
	EffectCreateTable    = "create_table"
	EffectCreateFunction = "create_function"
	EffectCreateAtom     = "create_atom"
	EffectApply          = "apply"
	EffectMap            = "map"
	EffectMmap           = "mmap"
	EffectMprotect       = "mprotect"
	EffectCallCC         = "call/cc"
	EffectErrorAppend    = "error_append"
	EffectErrorAppendInt = "error_append_int"
	EffectErrorReturn    = "error_return"
	EffectErrorReset     = "error_reset"
	EffectGetArgument    = "get_argument"
)

// builtins is the set of effect names the force loop resolves itself,
// without ever handing control back to an external host. EffectRead is
// reserved here but dispatchBuiltin has no case for it: invoking read
// faults and ends Force with an Exception.
var builtins = map[string]bool{
	EffectDrop: true, EffectClone: true, EffectExit: true, EffectLength: true,
	EffectGet: true, EffectSet: true, EffectRead: true, EffectType: true,
	EffectCreateWord: true, EffectCreateBlob: true, EffectCreateTuple: true,
	EffectCreatePage: true, EffectCreateTable: true, EffectCreateFunction: true,
	EffectCreateAtom: true, EffectApply: true, EffectMap: true, EffectMmap: true,
	EffectMprotect: true, EffectCallCC: true, EffectErrorAppend: true,
	EffectErrorAppendInt: true, EffectErrorReturn: true, EffectErrorReset: true,
	EffectGetArgument: true,
}

// IsBuiltin reports whether name is in the closed, in-core effect catalog.
func IsBuiltin(name string) bool { return builtins[name] }

// dispatchBuiltin runs one in-core effect against f's descriptor table. It
// returns the value to leave in the result descriptor, or (haltValue, true,
// nil) if the effect terminates the force loop (exit), or a non-nil error
// for a protocol violation (malformed arguments) that the caller turns into
// a fatal Exception (§7).
func dispatchBuiltin(f *function.Function, name string, args []value.Value) (result value.Value, halt bool, err error) {
	switch name {
	case EffectDrop:
		i, err := argIndex(args, 0)
		if err != nil {
			return nil, false, err
		}

		return value.Null{}, false, f.Descriptors.Drop(i)

	case EffectClone:
		i, err := argIndex(args, 0)
		if err != nil {
			return nil, false, err
		}

		v, err := f.Descriptors.Get(i)
		if err != nil {
			return nil, false, err
		}

		j := f.Descriptors.Insert(function.CloneValue(v))

		return value.Word(j), false, nil

	case EffectExit:
		i, err := argIndex(args, 0)
		if err != nil {
			return nil, false, err
		}

		v, err := f.Descriptors.Get(i)
		if err != nil {
			return nil, false, err
		}

		return v, true, nil

	case EffectGet:
		i, err := argIndex(args, 0)
		if err != nil {
			return nil, false, err
		}

		j, err := argIndex(args, 1)
		if err != nil {
			return nil, false, err
		}

		slot, err := f.Descriptors.Get(i)
		if err != nil {
			return nil, false, err
		}

		tup, ok := slot.(value.Tuple)
		if !ok {
			return nil, false, fmt.Errorf("%w: get on non-tuple descriptor", value.ErrWrongType)
		}

		got, err := tup.Get(j)
		if err != nil {
			return nil, false, err
		}

		out := f.Descriptors.Insert(got)

		return value.Word(out), false, nil

	case EffectSet:
		i, err := argIndex(args, 0)
		if err != nil {
			return nil, false, err
		}

		j, err := argIndex(args, 1)
		if err != nil {
			return nil, false, err
		}

		k, err := argIndex(args, 2)
		if err != nil {
			return nil, false, err
		}

		slot, err := f.Descriptors.Get(i)
		if err != nil {
			return nil, false, err
		}

		tup, ok := slot.(value.Tuple)
		if !ok {
			return nil, false, fmt.Errorf("%w: set on non-tuple descriptor", value.ErrWrongType)
		}

		newVal, err := f.Descriptors.Get(k)
		if err != nil {
			return nil, false, err
		}

		if _, err := tup.Set(j, newVal); err != nil {
			return nil, false, err
		}

		if _, err := f.Descriptors.Put(i, tup); err != nil {
			return nil, false, err
		}

		return value.Null{}, false, nil

	case EffectType:
		i, err := argIndex(args, 0)
		if err != nil {
			return nil, false, err
		}

		v, err := f.Descriptors.Get(i)
		if err != nil {
			return nil, false, err
		}

		return value.Word(v.Tag()), false, nil

	case EffectCreateWord:
		n, err := argWord(args, 0)
		if err != nil {
			return nil, false, err
		}

		return value.Word(n), false, nil

	case EffectCreateAtom:
		b, err := argBytes(args, 0)
		if err != nil {
			return nil, false, err
		}

		return value.NewAtom(b), false, nil

	case EffectCreateBlob:
		b, err := argBytes(args, 0)
		if err != nil {
			return nil, false, err
		}

		return value.NewBlob(b), false, nil

	case EffectCreateTuple:
		n, err := argWord(args, 0)
		if err != nil {
			return nil, false, err
		}

		return value.NewTuple(int(n)), false, nil

	case EffectCreateTable:
		n, err := argWord(args, 0)
		if err != nil {
			return nil, false, err
		}

		return value.NewTable(uint64(n)), false, nil

	case EffectGetArgument:
		if v, ok := f.PopPendingArg(); ok {
			return v, false, nil
		}

		self, err := f.Clone()
		if err != nil {
			return nil, false, err
		}

		return self, true, nil

	case EffectErrorReset:
		f.Errors.Reset()
		return value.Null{}, false, nil

	case EffectErrorReturn:
		return f.Errors.Return(), false, nil

	case EffectErrorAppend:
		b, err := argBytes(args, 0)
		if err != nil {
			return nil, false, err
		}

		f.Errors.Append(string(b))

		return value.Null{}, false, nil

	case EffectErrorAppendInt:
		n, err := argWord(args, 0)
		if err != nil {
			return nil, false, err
		}

		f.Errors.Append(fmt.Sprintf("%#04x", uint64(n)))

		return value.Null{}, false, nil

	case EffectCreatePage:
		n, err := argWord(args, 0)
		if err != nil {
			return nil, false, err
		}

		if f.Pages == nil {
			return nil, false, fmt.Errorf("%w: create_page without a page allocator", ErrFault)
		}

		p, err := value.NewPage(f.Pages, value.PageSize(n))
		if err != nil {
			return nil, false, err
		}

		return p, false, nil

	case EffectCreateFunction:
		b, err := argBytes(args, 0)
		if err != nil {
			return nil, false, err
		}

		child := function.NewArcane(value.NewBlob(b), value.NewTable(0))
		child.Pages = f.Pages

		return child, false, nil

	case EffectLength:
		i, err := argIndex(args, 0)
		if err != nil {
			return nil, false, err
		}

		v, err := f.Descriptors.Get(i)
		if err != nil {
			return nil, false, err
		}

		switch vv := v.(type) {
		case value.Blob:
			return value.Word(vv.Len()), false, nil
		case value.Tuple:
			return value.Word(vv.Len()), false, nil
		case value.Page:
			return value.Word(vv.Size()), false, nil
		default:
			return nil, false, fmt.Errorf("%w: length on %s", value.ErrWrongType, v.Tag())
		}

	case EffectMap:
		i, err := argIndex(args, 0)
		if err != nil {
			return nil, false, err
		}

		addr, err := argWord(args, 1)
		if err != nil {
			return nil, false, err
		}

		slot, err := f.Descriptors.Get(i)
		if err != nil {
			return nil, false, err
		}

		page, ok := slot.(value.Page)
		if !ok {
			return nil, false, fmt.Errorf("%w: map of non-page descriptor", value.ErrWrongType)
		}

		grown, _, err := value.Map(f.Memory, uint64(addr), value.RWPageEntry(page))
		if err != nil {
			return nil, false, err
		}

		f.Memory = grown

		return value.Null{}, false, nil

	case EffectMmap:
		addr, err := argWord(args, 0)
		if err != nil {
			return nil, false, err
		}

		size, err := argWord(args, 1)
		if err != nil {
			return nil, false, err
		}

		if f.Pages == nil {
			return nil, false, fmt.Errorf("%w: mmap without a page allocator", ErrFault)
		}

		p, err := value.NewPage(f.Pages, value.PageSize(size))
		if err != nil {
			return nil, false, err
		}

		grown, _, err := value.Map(f.Memory, uint64(addr), value.RWPageEntry(p))
		if err != nil {
			return nil, false, err
		}

		f.Memory = grown

		return value.Null{}, false, nil

	case EffectMprotect:
		return value.Null{}, false, nil

	case EffectApply:
		i, err := argIndex(args, 0)
		if err != nil {
			return nil, false, err
		}

		j, err := argIndex(args, 1)
		if err != nil {
			return nil, false, err
		}

		target, err := f.Descriptors.Get(i)
		if err != nil {
			return nil, false, err
		}

		x, err := f.Descriptors.Get(j)
		if err != nil {
			return nil, false, err
		}

		tf, ok := target.(*function.Function)
		if !ok {
			return nil, false, fmt.Errorf("%w: apply on non-function descriptor", value.ErrWrongType)
		}

		applied, err := apply(tf, x)
		if err != nil {
			return nil, false, err
		}

		out := f.Descriptors.Insert(applied)

		return value.Word(out), false, nil

	case EffectCallCC:
		i, err := argIndex(args, 0)
		if err != nil {
			return nil, false, err
		}

		target, err := f.Descriptors.Get(i)
		if err != nil {
			return nil, false, err
		}

		tf, ok := target.(*function.Function)
		if !ok {
			return nil, false, fmt.Errorf("%w: call/cc on non-function descriptor", value.ErrWrongType)
		}

		k, err := f.Clone()
		if err != nil {
			return nil, false, err
		}

		applied, err := apply(tf, k)
		if err != nil {
			return nil, false, err
		}

		out := f.Descriptors.Insert(applied)

		return value.Word(out), false, nil

	default:
		return nil, false, fmt.Errorf("%w: builtin effect %q not implemented", ErrFault, name)
	}
}

func argIndex(args []value.Value, i int) (int, error) {
	w, err := argWord(args, i)
	return int(w), err
}

func argWord(args []value.Value, i int) (value.Word, error) {
	if i < 0 || i >= len(args) {
		return 0, fmt.Errorf("%w: effect argument %d missing", value.ErrOutOfRange, i)
	}

	w, ok := args[i].(value.Word)
	if !ok {
		return 0, fmt.Errorf("%w: effect argument %d is not a word", value.ErrWrongType, i)
	}

	return w, nil
}

func argBytes(args []value.Value, i int) ([]byte, error) {
	if i < 0 || i >= len(args) {
		return nil, fmt.Errorf("%w: effect argument %d missing", value.ErrOutOfRange, i)
	}

	b, ok := args[i].(value.Blob)
	if !ok {
		return nil, fmt.Errorf("%w: effect argument %d is not a blob", value.ErrWrongType, i)
	}

	return b.Bytes(), nil
}

// apply implements the effect catalog's apply semantics (§4.5): applying to
// a symbolic Function appends the argument to its payload's argument tuple;
// applying to an arcane Function enqueues it on the pending-argument queue.
func apply(target *function.Function, x value.Value) (*function.Function, error) {
	if target.IsSymbolic() {
		clone, err := target.Clone()
		if err != nil {
			return nil, err
		}

		args, ok := clone.EffectValueArgs()
		if !ok {
			return nil, fmt.Errorf("%w: malformed symbolic payload", ErrFault)
		}

		k, _ := clone.Continuation()
		name, _ := clone.EffectName()

		return function.NewSymbolic(name, append(append([]value.Value{}, args...), x), k), nil
	}

	clone, err := target.Clone()
	if err != nil {
		return nil, err
	}

	clone.AppendPendingArg(x)

	return clone, nil
}
