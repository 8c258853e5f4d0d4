package mem

import "sync/atomic"

// Page is a reference-counted handle onto a block of the allocator's region.
// Cloning a Page bumps the shared atomic counter; dropping it decrements and,
// at zero, frees the block back to the allocator. A Page never aliases its
// own reference count word with its data (V1): the count lives in the
// allocator's separate counts table, keyed by frame offset.
type Page struct {
	a      *Allocator
	Offset uint64
	Size   int
}

// NewPage allocates a fresh, uniquely-owned page of at least `size` bytes.
func NewPage(a *Allocator, size int) (Page, error) {
	off, actual, err := a.Allocate(size)
	if err != nil {
		return Page{}, err
	}

	return Page{a: a, Offset: off, Size: actual}, nil
}

// Bytes returns the raw bytes backing this page.
func (p Page) Bytes() []byte {
	return p.a.Bytes(p.Offset, p.Size)
}

// RefCount returns the current reference count.
func (p Page) RefCount() uint32 {
	return atomic.LoadUint32(p.a.RefCount(p.Offset))
}

// Clone increments the page's reference count and returns a new handle onto
// the same storage (shared ownership, i.e. an RO entry per §3.2).
func (p Page) Clone() Page {
	atomic.AddUint32(p.a.RefCount(p.Offset), 1)
	return p
}

// Drop decrements the page's reference count, freeing the underlying block
// when it reaches zero. It is an error (V1) to Drop a page whose count is
// already zero; callers are expected to Drop each Clone exactly once.
func (p Page) Drop() error {
	if atomic.AddUint32(p.a.RefCount(p.Offset), ^uint32(0)) == 0 {
		return p.a.Free(p.Offset, p.Size)
	}

	return nil
}

// Unique reports whether this handle is the only owner of its storage (V2).
func (p Page) Unique() bool {
	return p.RefCount() == 1
}

// MakeMut returns a uniquely-owned page holding the same content as p. If p
// is already unique, it is returned unchanged; otherwise the content is
// cloned into a freshly allocated page and p's own reference is dropped.
func (p Page) MakeMut() (Page, error) {
	if p.Unique() {
		return p, nil
	}

	fresh, err := NewPage(p.a, p.Size)
	if err != nil {
		return Page{}, err
	}

	copy(fresh.Bytes(), p.Bytes())

	if err := p.Drop(); err != nil {
		return Page{}, err
	}

	return fresh, nil
}

// Duplicate always allocates a fresh, uniquely-owned page and copies this
// page's content into it, regardless of the current reference count. Unlike
// MakeMut (which is a no-op when already unique), Duplicate is used when a
// caller needs a guaranteed-private copy to preserve V2 while restructuring
// a graph that aliases this page elsewhere.
func (p Page) Duplicate() (Page, error) {
	fresh, err := NewPage(p.a, p.Size)
	if err != nil {
		return Page{}, err
	}

	copy(fresh.Bytes(), p.Bytes())

	return fresh, nil
}

// GetMutUnchecked returns the page's bytes for in-place mutation, assuming
// without checking that the caller already holds the only reference. Using
// this on a shared page violates V2 and is the caller's responsibility to
// avoid.
func (p Page) GetMutUnchecked() []byte {
	return p.Bytes()
}
