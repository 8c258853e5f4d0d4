package thunk

import (
	"errors"
	"fmt"

	"github.com/arcanum-run/arcanum/internal/function"
	"github.com/arcanum-run/arcanum/internal/log"
	"github.com/arcanum-run/arcanum/internal/value"
)

// ErrFault marks a guest fault: an illegal instruction, a malformed effect
// invocation, or an out-of-bounds code fetch. Faults raised while running a
// Function are never returned to Force's caller as Go errors — they are
// folded into a value.Exception (§7). The one Go-level error Force returns,
// also wrapping ErrFault, is for being called on a symbolic Function.
var ErrFault = errors.New("thunk: fault")

// maxSteps bounds a single Force call, guarding against a runaway program
// that never halts, suspends, or jumps out of bounds. It is generous enough
// that no well-behaved program should ever hit it.
const maxSteps = 1_000_000

// Force drives an arcane function.Function's code until it produces a
// terminal value, suspends at an effect the host must handle, or faults.
// A fault is reported as a value.Exception, not a Go error; Force returns a
// Go error only when f is symbolic, since a symbolic Function has no code to
// run.
func Force(f *function.Function) (value.Value, error) {
	logger := log.DefaultLogger()

	if f.IsSymbolic() {
		return nil, fmt.Errorf("%w: force called on a symbolic function", ErrFault)
	}

	code := f.Code.Bytes()

	for step := 0; step < maxSteps; step++ {
		ins, err := Decode(code, f.Regs.IP)
		if err != nil {
			return value.NewException(faultValue(err)), nil
		}

		result, done, err := step1(f, ins)
		if err != nil {
			logger.Debug("force: fault", "ip", f.Regs.IP, "err", err)
			return value.NewException(faultValue(err)), nil
		}

		if done {
			return result, nil
		}
	}

	return value.NewException(faultValue(fmt.Errorf("%w: step budget exhausted", ErrFault))), nil
}

func faultValue(err error) value.Value {
	return value.NewBlob([]byte(err.Error()))
}

// step1 executes one instruction. It returns (value, true, nil) when the
// Function has reached a terminal state (halt, exit, or an unresolved
// effect suspending the loop), and (nil, false, nil) to keep stepping.
func step1(f *function.Function, ins Instruction) (value.Value, bool, error) {
	switch ins.Op {
	case OpHalt:
		return value.Null{}, true, nil

	case OpLoadImm:
		f.Regs.SetReg(int(ins.Reg0), ins.Imm)
		f.Regs.IP += InstrWidth

		return nil, false, nil

	case OpMov:
		f.Regs.SetReg(int(ins.Reg0), f.Regs.Reg(int(ins.Reg1)))
		f.Regs.IP += InstrWidth

		return nil, false, nil

	case OpAdd:
		sum := f.Regs.Reg(int(ins.Reg0)) + f.Regs.Reg(int(ins.Reg1))
		f.Regs.SetReg(int(ins.Reg0), sum)
		f.Regs.SetFlagsFor(sum)
		f.Regs.IP += InstrWidth

		return nil, false, nil

	case OpJmp:
		f.Regs.IP = ins.Imm
		return nil, false, nil

	case OpJz:
		if f.Regs.Flags.Set(function.FlagZero) {
			f.Regs.IP = ins.Imm
		} else {
			f.Regs.IP += InstrWidth
		}

		return nil, false, nil

	case OpJnz:
		if !f.Regs.Flags.Set(function.FlagZero) {
			f.Regs.IP = ins.Imm
		} else {
			f.Regs.IP += InstrWidth
		}

		return nil, false, nil

	case OpDescGet:
		v, err := f.Descriptors.Get(int(ins.Imm))
		if err != nil {
			return nil, false, err
		}

		if _, err := f.Descriptors.Put(int(ins.Reg0), v); err != nil {
			return nil, false, err
		}

		f.Regs.IP += InstrWidth

		return nil, false, nil

	case OpDescPut:
		v, err := f.Descriptors.Get(int(ins.Reg0))
		if err != nil {
			return nil, false, err
		}

		if _, err := f.Descriptors.Put(int(ins.Imm), v); err != nil {
			return nil, false, err
		}

		f.Regs.IP += InstrWidth

		return nil, false, nil

	case OpDescDrop:
		if err := f.Descriptors.Drop(int(ins.Imm)); err != nil {
			return nil, false, err
		}

		f.Regs.IP += InstrWidth

		return nil, false, nil

	case OpGetArg:
		v, done, err := dispatchBuiltin(f, EffectGetArgument, nil)
		if err != nil {
			return nil, false, err
		}

		if done {
			return v, true, nil
		}

		if _, err := f.Descriptors.Put(int(ins.Reg0), v); err != nil {
			return nil, false, err
		}

		f.Regs.IP += InstrWidth

		return nil, false, nil

	case OpEffect:
		return effect(f)

	default:
		return nil, false, fmt.Errorf("%w: unknown opcode %s at ip %#x", ErrFault, ins.Op, f.Regs.IP)
	}
}

// effect implements the register-ABI effect invocation (§6): the effect
// name lives in descriptor R0, its argument tuple in descriptor R1; the
// result, on success, replaces descriptor R1.
func effect(f *function.Function) (value.Value, bool, error) {
	nameSlot, err := f.Descriptors.Get(int(f.Regs.Reg(0)))
	if err != nil {
		return nil, false, err
	}

	nameBlob, ok := nameSlot.(value.Blob)
	if !ok {
		return nil, false, fmt.Errorf("%w: effect name descriptor is not a blob", value.ErrWrongType)
	}

	name := string(nameBlob.Bytes())

	argsSlot, err := f.Descriptors.Get(int(f.Regs.Reg(1)))
	if err != nil {
		return nil, false, err
	}

	argsTuple, ok := argsSlot.(value.Tuple)
	if !ok {
		return nil, false, fmt.Errorf("%w: effect args descriptor is not a tuple", value.ErrWrongType)
	}

	if !IsBuiltin(name) {
		cont, err := f.Clone()
		if err != nil {
			return nil, false, err
		}

		cont.Regs.IP += InstrWidth

		sym := function.NewSymbolic(name, argsTuple.Slice(), cont)

		return sym, true, nil
	}

	result, halt, err := dispatchBuiltin(f, name, argsTuple.Slice())
	if err != nil {
		return nil, false, err
	}

	if halt {
		return result, true, nil
	}

	if _, err := f.Descriptors.Put(int(f.Regs.Reg(1)), result); err != nil {
		return nil, false, err
	}

	f.Regs.IP += InstrWidth

	return nil, false, nil
}
