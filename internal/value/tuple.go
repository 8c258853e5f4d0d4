package value

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// tupleData is the shared, reference-counted backing store for a Tuple.
type tupleData struct {
	refs  int32 // atomic
	items []Value
}

// Tuple is a fixed-length ordered sequence of Values with shared ownership
// and copy-on-write semantics (§3.1). Length is immutable after
// construction; indexing is by position.
type Tuple struct {
	d *tupleData
}

// NewTuple creates a Tuple of length n, every slot initialized to Null.
func NewTuple(n int) Tuple {
	items := make([]Value, n)
	for i := range items {
		items[i] = Null{}
	}

	return Tuple{d: &tupleData{refs: 1, items: items}}
}

// TupleOf builds a Tuple directly from the given values.
func TupleOf(vs ...Value) Tuple {
	items := make([]Value, len(vs))
	copy(items, vs)

	return Tuple{d: &tupleData{refs: 1, items: items}}
}

func (Tuple) Tag() Tag { return TagTuple }

func (t Tuple) String() string {
	parts := make([]string, len(t.d.items))
	for i, v := range t.d.items {
		parts[i] = v.String()
	}

	return fmt.Sprintf("(%s)", strings.Join(parts, ", "))
}

// Len returns the tuple's fixed length.
func (t Tuple) Len() int { return len(t.d.items) }

// Clone returns a new handle sharing the same backing storage (RO alias).
func (t Tuple) Clone() Tuple {
	atomic.AddInt32(&t.d.refs, 1)
	return Tuple{d: t.d}
}

func (t Tuple) unique() bool {
	return atomic.LoadInt32(&t.d.refs) == 1
}

// makeUnique clones the backing array if it is shared, so in-place mutation
// through this handle never affects an aliased handle (V2, applied to Tuple
// by analogy with Table/Page).
func (t *Tuple) makeUnique() {
	if t.unique() {
		return
	}

	items := make([]Value, len(t.d.items))
	copy(items, t.d.items)

	atomic.AddInt32(&t.d.refs, -1)
	t.d = &tupleData{refs: 1, items: items}
}

// Get reads the i-th slot.
func (t Tuple) Get(i int) (Value, error) {
	if i < 0 || i >= len(t.d.items) {
		return nil, fmt.Errorf("%w: tuple index %d (len %d)", ErrOutOfRange, i, len(t.d.items))
	}

	return t.d.items[i], nil
}

// Set replaces the i-th slot and returns the displaced value.
func (t *Tuple) Set(i int, v Value) (Value, error) {
	if i < 0 || i >= len(t.d.items) {
		return nil, fmt.Errorf("%w: tuple index %d (len %d)", ErrOutOfRange, i, len(t.d.items))
	}

	t.makeUnique()

	old := t.d.items[i]
	t.d.items[i] = v

	return old, nil
}

// Equal reports structural equality: same length, pairwise equal elements.
func (t Tuple) Equal(o Tuple) bool {
	if len(t.d.items) != len(o.d.items) {
		return false
	}

	for i := range t.d.items {
		if !Equal(t.d.items[i], o.d.items[i]) {
			return false
		}
	}

	return true
}

// Slice returns the tuple's elements as a plain slice, for callers (like the
// codec) that need to walk them without mutating.
func (t Tuple) Slice() []Value {
	return t.d.items
}
