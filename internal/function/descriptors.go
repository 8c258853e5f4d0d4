package function

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/arcanum-run/arcanum/internal/value"
)

// Descriptors is an arcane Function's descriptor table: a growable, sparse
// sequence of Values addressed by small integer index, used by guest code to
// hold onto Values (memory tables, pages, other functions) across
// instructions without spending a general-purpose register on each one
// (§3.3).
type Descriptors struct {
	slots []value.Value
	free  []int // indices made available by Drop, reused by Insert
}

// NewDescriptors returns an empty descriptor table.
func NewDescriptors() *Descriptors {
	return &Descriptors{}
}

// Len returns the number of slots ever allocated (including dropped ones
// left as holes).
func (d *Descriptors) Len() int { return len(d.slots) }

// Insert appends v (or reuses a freed slot) and returns its index.
func (d *Descriptors) Insert(v value.Value) int {
	if n := len(d.free); n > 0 {
		i := d.free[n-1]
		d.free = d.free[:n-1]
		d.slots[i] = v

		return i
	}

	d.slots = append(d.slots, v)

	return len(d.slots) - 1
}

func (d *Descriptors) bounds(i int) error {
	if i < 0 || i >= len(d.slots) {
		return fmt.Errorf("%w: descriptor %d (len %d)", value.ErrOutOfRange, i, len(d.slots))
	}

	return nil
}

// Get reads slot i without consuming it.
func (d *Descriptors) Get(i int) (value.Value, error) {
	if err := d.bounds(i); err != nil {
		return nil, err
	}

	return d.slots[i], nil
}

// Put replaces slot i and returns the value it displaced.
func (d *Descriptors) Put(i int, v value.Value) (value.Value, error) {
	if err := d.bounds(i); err != nil {
		return nil, err
	}

	old := d.slots[i]
	d.slots[i] = v

	return old, nil
}

// Take reads and clears slot i, marking it Null but leaving the index
// allocated (unlike Drop, the index is not recycled: Take hands the value to
// its caller, who is responsible for it from here on).
func (d *Descriptors) Take(i int) (value.Value, error) {
	if err := d.bounds(i); err != nil {
		return nil, err
	}

	old := d.slots[i]
	d.slots[i] = value.Null{}

	return old, nil
}

// Drop clears slot i and recycles its index for a future Insert.
func (d *Descriptors) Drop(i int) error {
	if err := d.bounds(i); err != nil {
		return err
	}

	d.slots[i] = value.Null{}
	d.free = append(d.free, i)

	return nil
}

// Compact reclaims trailing dropped slots, shrinking the table so a
// migrated Function's wire encoding doesn't carry dead entries. Holes
// short of the tail are left in place: their indices may still be named by
// a host-held continuation's register contents, so only a contiguous run
// of freed slots ending at the current top is ever reclaimed.
func (d *Descriptors) Compact() {
	if len(d.free) == 0 {
		return
	}

	slices.Sort(d.free)

	for len(d.free) > 0 && d.free[len(d.free)-1] == len(d.slots)-1 {
		d.free = d.free[:len(d.free)-1]
		d.slots = d.slots[:len(d.slots)-1]
	}
}

// Clone duplicates the descriptor table value-by-value: COW values (Tuple,
// Page, Table) are cheaply aliased, everything else copied directly (§3.3
// arcane lifecycle).
func (d *Descriptors) Clone() (*Descriptors, error) {
	slots := make([]value.Value, len(d.slots))
	for i, v := range d.slots {
		slots[i] = CloneValue(v)
	}

	free := make([]int, len(d.free))
	copy(free, d.free)

	return &Descriptors{slots: slots, free: free}, nil
}
