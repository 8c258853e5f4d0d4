// Package thunk implements the force loop: the interpreter that drives an
// arcane function.Function's code to a result, a suspension, or a fault
// (§3.1, §4.5, §6).
//
// A Function's code is a value.Blob of fixed-width instructions over the
// register file in function.RegisterFile. The instruction set is
// deliberately small: it exists to give guest code a place to compute
// addresses, move values between registers and descriptors, and above all
// to invoke effects, not to be a general-purpose target architecture.
package thunk

import "fmt"

// Opcode identifies an instruction's operation.
type Opcode uint8

const (
	OpHalt Opcode = iota
	OpLoadImm
	OpMov
	OpAdd
	OpJmp
	OpJz
	OpJnz
	OpEffect
	OpDescGet
	OpDescPut
	OpDescDrop
	OpGetArg
)

func (op Opcode) String() string {
	switch op {
	case OpHalt:
		return "halt"
	case OpLoadImm:
		return "load-imm"
	case OpMov:
		return "mov"
	case OpAdd:
		return "add"
	case OpJmp:
		return "jmp"
	case OpJz:
		return "jz"
	case OpJnz:
		return "jnz"
	case OpEffect:
		return "effect"
	case OpDescGet:
		return "desc-get"
	case OpDescPut:
		return "desc-put"
	case OpDescDrop:
		return "desc-drop"
	case OpGetArg:
		return "get-arg"
	default:
		return fmt.Sprintf("opcode(%d)", uint8(op))
	}
}

// InstrWidth is the fixed size, in bytes, of every encoded instruction:
// one opcode byte, two register-index bytes, and an eight-byte immediate.
const InstrWidth = 11

// Instruction is one decoded instruction. Reg0/Reg1 are general-purpose
// register indices (interpreted per opcode); Imm is either an immediate
// operand (OpLoadImm, OpJmp family) or a descriptor number
// (OpDescGet/Put/Drop). OpEffect uses neither: it reads R0 and R1.
type Instruction struct {
	Op   Opcode
	Reg0 uint8
	Reg1 uint8
	Imm  uint64
}

// Decode reads one instruction starting at byte offset `at` in code.
func Decode(code []byte, at uint64) (Instruction, error) {
	if at+InstrWidth > uint64(len(code)) {
		return Instruction{}, fmt.Errorf("%w: instruction at %#x truncated", ErrFault, at)
	}

	b := code[at : at+InstrWidth]

	imm := uint64(0)
	for i := 0; i < 8; i++ {
		imm |= uint64(b[3+i]) << (8 * i)
	}

	return Instruction{
		Op:   Opcode(b[0]),
		Reg0: b[1],
		Reg1: b[2],
		Imm:  imm,
	}, nil
}

// Encode appends the little-endian encoding of ins to buf.
func Encode(buf []byte, ins Instruction) []byte {
	buf = append(buf, byte(ins.Op), ins.Reg0, ins.Reg1)
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(ins.Imm>>(8*i)))
	}

	return buf
}
