package thunk

import (
	"github.com/arcanum-run/arcanum/internal/function"
	"github.com/arcanum-run/arcanum/internal/mem"
	"github.com/arcanum-run/arcanum/internal/value"
)

// Load builds a fresh arcane function.Function from an encoded instruction
// stream, with a memory table and (optionally) a page allocator attached
// so its create_page and mmap effects can serve fresh pages (§4.4: "an
// external caller constructs a Function value, typically by loading a blob
// into a fresh address space").
func Load(code []byte, pages *mem.Allocator) *function.Function {
	f := function.NewArcane(value.NewBlob(code), value.NewTable(0))
	f.Pages = pages

	return f
}

// Resume re-enters the force loop on a Function previously suspended at an
// effect. It is exactly Force, named separately because call sites read
// more naturally as "resume this continuation" than "force this function"
// once a continuation is already in hand (§4.4 "Continuation capture").
func Resume(continuation *function.Function) (value.Value, error) {
	return Force(continuation)
}
