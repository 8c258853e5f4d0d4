package value

import "fmt"

// Word is a 64-bit unsigned integer, the inline scalar variant.
type Word uint64

func (Word) Tag() Tag { return TagWord }

func (w Word) String() string {
	return fmt.Sprintf("%#016x", uint64(w))
}
