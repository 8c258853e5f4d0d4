package value

import (
	"fmt"
	"sync/atomic"
)

// Radix is the fan-out of every Table level (§4.2).
const Radix = 512

// MinTableSpan is the smallest Table span: one whose 512 children are each
// exactly one 4 KiB page (the minimum leaf span).
const MinTableSpan = uint64(PageSize4K) * Radix

// tableData is the shared, reference-counted backing store for a Table's
// 512 entries. Conceptually this is itself a reference-counted page (§4.2);
// it is implemented as a plain Go struct with an atomic refcount rather than
// being carved out of the physical allocator, since its content is entries
// (interfaces/pointers), not raw bytes the allocator can back directly.
type tableData struct {
	refs    int32 // atomic
	entries [Radix]Entry
}

// Table is the recursive, sparse, 512-ary associative array described in
// §4.2: the hardest single entity in the data model, and the backing store
// for both a function's virtual memory and general-purpose sparse maps.
type Table struct {
	span uint64
	d    *tableData
}

// spanForLen returns the smallest Table span (a power of 512 times
// MinTableSpan) that is >= length.
func spanForLen(length uint64) uint64 {
	s := MinTableSpan
	for s < length {
		s *= Radix
	}

	return s
}

func newRawTable(span uint64) *Table {
	child := span / Radix

	var entries [Radix]Entry
	for i := range entries {
		entries[i] = NullEntry(child)
	}

	return &Table{span: span, d: &tableData{refs: 1, entries: entries}}
}

// NewTable creates a Table whose span is the smallest supported >= length
// (V5).
func NewTable(length uint64) *Table {
	return newRawTable(spanForLen(length))
}

func (*Table) Tag() Tag { return TagTable }

func (t *Table) String() string {
	return fmt.Sprintf("table(span=%d, refs=%d)", t.span, atomic.LoadInt32(&t.d.refs))
}

// Span returns the byte range this table covers (V5).
func (t *Table) Span() uint64 { return t.span }

// Get reads the i-th direct entry. It always succeeds; an empty slot reads
// as Null.
func (t *Table) Get(i int) Entry {
	if i < 0 || i >= Radix {
		return Entry{}
	}

	return t.d.entries[i]
}

func (t *Table) unique() bool {
	return atomic.LoadInt32(&t.d.refs) == 1
}

// makeUnique clones the entries array if shared, cloning RO children (cheap
// refcount bump) and deep-duplicating RW children (preserving V2: an RW
// entry is never observed twice in the reachable graph).
func (t *Table) makeUnique() error {
	if t.unique() {
		return nil
	}

	var cloned [Radix]Entry

	for i, e := range t.d.entries {
		ce, err := e.clone()
		if err != nil {
			return err
		}

		cloned[i] = ce
	}

	atomic.AddInt32(&t.d.refs, -1)
	t.d = &tableData{refs: 1, entries: cloned}

	return nil
}

// Clone returns a new handle sharing the same entries (an RO alias of the
// whole table).
func (t *Table) Clone() *Table {
	atomic.AddInt32(&t.d.refs, 1)
	return &Table{span: t.span, d: t.d}
}

// Duplicate always returns a fresh, privately-owned table with the same
// entries, regardless of the current reference count (used when descending
// into a shared sub-table that must be mutated without corrupting V2).
func (t *Table) Duplicate() (*Table, error) {
	var cloned [Radix]Entry

	for i, e := range t.d.entries {
		ce, err := e.clone()
		if err != nil {
			return nil, err
		}

		cloned[i] = ce
	}

	return &Table{span: t.span, d: &tableData{refs: 1, entries: cloned}}, nil
}

// Set replaces the i-th entry and returns the displaced entry. It fails if
// the entry's span does not equal span/Radix.
func (t *Table) Set(i int, e Entry) (Entry, error) {
	if i < 0 || i >= Radix {
		return Entry{}, fmt.Errorf("%w: table index %d", ErrOutOfRange, i)
	}

	want := t.span / Radix
	if e.Span() != want {
		return Entry{}, fmt.Errorf("%w: entry span %d != %d", ErrSpanMismatch, e.Span(), want)
	}

	if err := t.makeUnique(); err != nil {
		return Entry{}, err
	}

	old := t.d.entries[i]
	t.d.entries[i] = e

	return old, nil
}

// Take is equivalent to Set(i, Null).
func (t *Table) Take(i int) (Entry, error) {
	return t.Set(i, NullEntry(t.span/Radix))
}

// Swap exchanges the i-th entry with *e in place.
func (t *Table) Swap(i int, e *Entry) error {
	old, err := t.Set(i, *e)
	if err != nil {
		return err
	}

	*e = old

	return nil
}

// Equal reports structural equality: same span and pairwise-equal entries.
func (t *Table) Equal(o *Table) bool {
	if t.span != o.span {
		return false
	}

	for i := range t.d.entries {
		if !entryEqual(t.d.entries[i], o.d.entries[i]) {
			return false
		}
	}

	return true
}

func entryEqual(a, b Entry) bool {
	if a.Kind != b.Kind {
		return false
	}

	switch a.Kind {
	case EntryNull:
		return a.span == b.span
	case EntryROPage, EntryRWPage:
		return a.page.Equal(b.page)
	case EntryROTable, EntryRWTable:
		return a.table.Equal(b.table)
	default:
		return false
	}
}

// Map installs `entry` at byte offset `addr` within root's address range,
// growing the table (replacing root with a fresh, larger table) or
// descending into sub-tables as needed (§4.2 "Map algorithm"). It returns
// the possibly-grown root and the entry that was displaced at the leaf.
// Callers must replace their own reference to the table with the returned
// root.
func Map(root *Table, addr uint64, entry Entry) (*Table, Entry, error) {
	span := root.Span()
	entrySpan := entry.Span()

	if addr+entrySpan > span {
		bigger := newRawTable(span * Radix)
		if _, err := bigger.Set(0, RWTableEntry(root)); err != nil {
			return root, Entry{}, err
		}

		return Map(bigger, addr, entry)
	}

	childSpan := span / Radix

	if entrySpan == childSpan {
		i := addr / entrySpan
		if i >= Radix {
			return root, Entry{}, fmt.Errorf("%w: addr %#x", ErrOutOfRange, addr)
		}

		displaced, err := root.Set(int(i), entry)

		return root, displaced, err
	}

	i := addr / childSpan
	offset := addr % childSpan

	if i >= Radix {
		return root, Entry{}, fmt.Errorf("%w: addr %#x", ErrOutOfRange, addr)
	}

	child, err := root.Take(int(i))
	if err != nil {
		return root, Entry{}, err
	}

	sub, err := childTableFor(child, childSpan)
	if err != nil {
		return root, Entry{}, err
	}

	_, displaced, err := Map(sub, offset, entry)
	if err != nil {
		return root, Entry{}, err
	}

	if _, err := root.Set(int(i), RWTableEntry(sub)); err != nil {
		return root, Entry{}, err
	}

	return root, displaced, nil
}

// childTableFor returns a uniquely-owned *Table to descend into for slot
// content `child` (allocating a fresh one if the slot was Null, or
// duplicating a shared sub-table so the descent doesn't corrupt an alias).
func childTableFor(child Entry, childSpan uint64) (*Table, error) {
	switch child.Kind {
	case EntryNull:
		return newRawTable(childSpan), nil
	case EntryRWTable:
		t, _ := child.Table()
		return t, nil
	case EntryROTable:
		t, _ := child.Table()
		return t.Duplicate()
	default:
		return nil, fmt.Errorf("%w: slot holds a %s, not a table", ErrWrongType, child.Kind)
	}
}

// Unmap removes and returns the entry (if any) covering `addr`. A Null slot
// (or an address beyond the table's span) reports `ok == false`.
func Unmap(root *Table, addr uint64) (Entry, bool, error) {
	if addr >= root.Span() {
		return Entry{}, false, nil
	}

	childSpan := root.Span() / Radix
	i := addr / childSpan

	entry := root.Get(int(i))

	switch entry.Kind {
	case EntryNull:
		return Entry{}, false, nil
	case EntryROPage, EntryRWPage:
		displaced, err := root.Take(int(i))
		return displaced, true, err
	case EntryROTable, EntryRWTable:
		t, _ := entry.Table()

		var sub *Table

		var err error
		if entry.Kind == EntryROTable {
			sub, err = t.Duplicate()
		} else {
			sub = t
		}

		if err != nil {
			return Entry{}, false, err
		}

		if _, err := root.Take(int(i)); err != nil {
			return Entry{}, false, err
		}

		displaced, ok, err := Unmap(sub, addr%childSpan)
		if err != nil {
			return Entry{}, false, err
		}

		if _, err := root.Set(int(i), RWTableEntry(sub)); err != nil {
			return Entry{}, false, err
		}

		return displaced, ok, nil
	default:
		return Entry{}, false, fmt.Errorf("%w: entry kind %d", ErrWrongType, entry.Kind)
	}
}
