package value

import (
	"fmt"

	"github.com/arcanum-run/arcanum/internal/mem"
)

// PageSize is one of the closed set of supported Page sizes (V4).
type PageSize int

const (
	PageSize4K   PageSize = 4 * 1024
	PageSize2M   PageSize = 2 * 1024 * 1024
	PageSize1G   PageSize = 1024 * 1024 * 1024
)

// ValidPageSize reports whether s is one of the supported page sizes.
func ValidPageSize(s int) bool {
	switch PageSize(s) {
	case PageSize4K, PageSize2M, PageSize1G:
		return true
	default:
		return false
	}
}

// Page is a fixed-size byte buffer with shared ownership and copy-on-write
// semantics, backed by the physical allocator (§3.1, §4.1).
type Page struct {
	handle mem.Page
}

// NewPage allocates a fresh page of the given size from `a`.
func NewPage(a *mem.Allocator, size PageSize) (Page, error) {
	if !ValidPageSize(int(size)) {
		return Page{}, fmt.Errorf("%w: page size %d", ErrSpanMismatch, size)
	}

	h, err := mem.NewPage(a, int(size))
	if err != nil {
		return Page{}, err
	}

	return Page{handle: h}, nil
}

func (Page) Tag() Tag { return TagPage }

func (p Page) String() string {
	return fmt.Sprintf("page(%d bytes, refs=%d)", p.handle.Size, p.handle.RefCount())
}

// Size returns the page's fixed size.
func (p Page) Size() int { return p.handle.Size }

// Bytes returns a read-only view of the page's content.
func (p Page) Bytes() []byte { return p.handle.Bytes() }

// Clone returns a new, shared handle onto the same storage (an RO entry).
func (p Page) Clone() Page {
	return Page{handle: p.handle.Clone()}
}

// Drop releases this handle's reference.
func (p Page) Drop() error {
	return p.handle.Drop()
}

// MakeMut returns a uniquely-owned page (an RW entry), cloning the backing
// storage first if it was shared.
func (p Page) MakeMut() (Page, error) {
	h, err := p.handle.MakeMut()
	if err != nil {
		return Page{}, err
	}

	return Page{handle: h}, nil
}

// Write copies `data` into the page starting at `offset`, mutating in
// place. Callers must hold a uniquely-owned (RW) page first.
func (p Page) Write(offset int, data []byte) error {
	buf := p.handle.GetMutUnchecked()
	if offset < 0 || offset+len(data) > len(buf) {
		return fmt.Errorf("%w: write [%d:%d) of %d", ErrOutOfRange, offset, offset+len(data), len(buf))
	}

	copy(buf[offset:], data)

	return nil
}

// Duplicate always returns a fresh, private copy of this page, regardless of
// its current reference count. See mem.Page.Duplicate.
func (p Page) Duplicate() (Page, error) {
	h, err := p.handle.Duplicate()
	if err != nil {
		return Page{}, err
	}

	return Page{handle: h}, nil
}

// Equal reports content equality (not identity of storage).
func (p Page) Equal(o Page) bool {
	if p.handle.Size != o.handle.Size {
		return false
	}

	a, b := p.Bytes(), o.Bytes()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
