// Package value implements the runtime's closed set of data variants: Null,
// Word, Atom, Blob, Tuple, Page, Table, Function, and Exception. Every
// operation that behaves differently per variant is a switch over Tag, not
// an open interface hierarchy, so that serialization (internal/codec) and
// exhaustiveness checking stay simple.
//
// Function is not defined in this package — it lives in internal/function,
// one layer up, to avoid an import cycle (a Function's memory is itself a
// Table). Value is an interface narrow enough that function.Function
// satisfies it without this package needing to know about function.
package value

import "fmt"

// Tag identifies which variant a Value holds.
type Tag uint8

const (
	TagNull Tag = iota
	TagWord
	TagAtom
	TagBlob
	TagTuple
	TagPage
	TagTable
	TagFunction
	TagException
)

func (t Tag) String() string {
	switch t {
	case TagNull:
		return "null"
	case TagWord:
		return "word"
	case TagAtom:
		return "atom"
	case TagBlob:
		return "blob"
	case TagTuple:
		return "tuple"
	case TagPage:
		return "page"
	case TagTable:
		return "table"
	case TagFunction:
		return "function"
	case TagException:
		return "exception"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// Value is satisfied by every member of the closed data-variant set.
type Value interface {
	Tag() Tag
	String() string
}

// Null carries no information; every Null is indistinguishable from every
// other (V1: trivial equality).
type Null struct{}

func (Null) Tag() Tag        { return TagNull }
func (Null) String() string  { return "null" }
func (Null) Equal(Null) bool { return true }

// Equal reports whether two values are the spec's notion of "equal":
// trivial for Null, by-content for Word/Atom/Blob, structural (same length,
// pairwise equal) for Tuple, content equality for Page/Table (copy-on-write
// means distinct handles may or may not share storage, so equality reads
// through the handle rather than comparing storage), and equality of the
// wrapped Value for Exception.
func Equal(a, b Value) bool {
	if a.Tag() != b.Tag() {
		return false
	}

	switch av := a.(type) {
	case Null:
		return true
	case Word:
		return av == b.(Word)
	case Atom:
		return av.Equal(b.(Atom))
	case Blob:
		return av.Equal(b.(Blob))
	case Tuple:
		return av.Equal(b.(Tuple))
	case Page:
		return av.Equal(b.(Page))
	case *Table:
		return av.Equal(b.(*Table))
	case Exception:
		return Equal(av.Inner, b.(Exception).Inner)
	default:
		// Function and other externally-defined Values compare by their
		// String() representation, not by identity; exact equality of
		// running computations isn't meaningful here.
		return a.String() == b.String()
	}
}
