package value

import "fmt"

// Exception wraps a single Value; it is produced when a function's
// execution fails (§3.1, §7: execution and protocol errors).
type Exception struct {
	Inner Value
}

// NewException wraps v as an Exception.
func NewException(v Value) Exception { return Exception{Inner: v} }

func (Exception) Tag() Tag { return TagException }

func (e Exception) String() string {
	return fmt.Sprintf("exception(%s)", e.Inner.String())
}
