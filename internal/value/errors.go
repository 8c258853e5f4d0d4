package value

import "errors"

// Structural errors (§7): bad index, type mismatch, bad span. These are
// returned to callers as Go errors; inside the force loop (internal/thunk)
// they end the running Function with an Exception rather than reaching the
// guest as a result code. They are never fatal to the process.
var (
	ErrOutOfRange  = errors.New("value: index out of range")
	ErrSpanMismatch = errors.New("value: span mismatch")
	ErrWrongType    = errors.New("value: wrong type")
)
