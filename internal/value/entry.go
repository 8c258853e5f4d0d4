package value

import "fmt"

// EntryKind tags the variant held by a Table slot (§3.2).
type EntryKind uint8

const (
	EntryNull EntryKind = iota
	EntryROPage
	EntryRWPage
	EntryROTable
	EntryRWTable
)

func (k EntryKind) String() string {
	switch k {
	case EntryNull:
		return "null"
	case EntryROPage:
		return "ro-page"
	case EntryRWPage:
		return "rw-page"
	case EntryROTable:
		return "ro-table"
	case EntryRWTable:
		return "rw-table"
	default:
		return "invalid-entry"
	}
}

// Entry is the per-slot datum inside a Table: Null(size), ROPage, RWPage,
// ROTable, or RWTable (§3.2). The RO/RW tag records whether the holder has
// shared (RO) or unique (RW) ownership.
type Entry struct {
	Kind  EntryKind
	span  uint64 // valid when Kind == EntryNull
	page  Page
	table *Table
}

// NullEntry returns an empty slot that would span `size` bytes if populated.
func NullEntry(size uint64) Entry {
	return Entry{Kind: EntryNull, span: size}
}

// ROPageEntry wraps a shared (read-only) page.
func ROPageEntry(p Page) Entry { return Entry{Kind: EntryROPage, page: p} }

// RWPageEntry wraps a uniquely-owned (read-write) page.
func RWPageEntry(p Page) Entry { return Entry{Kind: EntryRWPage, page: p} }

// ROTableEntry wraps a shared (read-only) sub-table.
func ROTableEntry(t *Table) Entry { return Entry{Kind: EntryROTable, table: t} }

// RWTableEntry wraps a uniquely-owned (read-write) sub-table.
func RWTableEntry(t *Table) Entry { return Entry{Kind: EntryRWTable, table: t} }

// Span returns the byte range this entry covers.
func (e Entry) Span() uint64 {
	switch e.Kind {
	case EntryNull:
		return e.span
	case EntryROPage, EntryRWPage:
		return uint64(e.page.Size())
	case EntryROTable, EntryRWTable:
		return e.table.Span()
	default:
		return 0
	}
}

// Page returns the entry's page and true, if this entry holds one.
func (e Entry) Page() (Page, bool) {
	if e.Kind == EntryROPage || e.Kind == EntryRWPage {
		return e.page, true
	}

	return Page{}, false
}

// Table returns the entry's sub-table and true, if this entry holds one.
func (e Entry) Table() (*Table, bool) {
	if e.Kind == EntryROTable || e.Kind == EntryRWTable {
		return e.table, true
	}

	return nil, false
}

// Writable reports whether the entry is an RW variant.
func (e Entry) Writable() bool {
	return e.Kind == EntryRWPage || e.Kind == EntryRWTable
}

func (e Entry) String() string {
	switch e.Kind {
	case EntryNull:
		return fmt.Sprintf("null(%d)", e.span)
	case EntryROPage, EntryRWPage:
		return fmt.Sprintf("%s(%s)", e.Kind, e.page)
	case EntryROTable, EntryRWTable:
		return fmt.Sprintf("%s(span=%d)", e.Kind, e.table.Span())
	default:
		return "invalid-entry"
	}
}

// clone returns a handle appropriate for sharing this entry into a second
// parent table: RO entries are cheaply aliased (their refcount bumped); RW
// entries are deep-duplicated so each parent keeps a private, unique copy
// and V2 is preserved.
func (e Entry) clone() (Entry, error) {
	switch e.Kind {
	case EntryNull:
		return e, nil
	case EntryROPage:
		return ROPageEntry(e.page.Clone()), nil
	case EntryRWPage:
		dup, err := e.page.Duplicate()
		if err != nil {
			return Entry{}, err
		}

		return RWPageEntry(dup), nil
	case EntryROTable:
		return ROTableEntry(e.table.Clone()), nil
	case EntryRWTable:
		dup, err := e.table.Duplicate()
		if err != nil {
			return Entry{}, err
		}

		return RWTableEntry(dup), nil
	default:
		return Entry{}, fmt.Errorf("%w: entry kind %d", ErrWrongType, e.Kind)
	}
}

// release drops this entry's hold on its storage, for use when a slot is
// overwritten or a table is unmapped down to nothing.
func (e Entry) release() error {
	switch e.Kind {
	case EntryROPage, EntryRWPage:
		return e.page.Drop()
	default:
		return nil
	}
}
