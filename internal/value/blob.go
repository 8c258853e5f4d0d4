package value

import "fmt"

// Blob is an immutable byte sequence of arbitrary length. Sharing is by Go's
// ordinary slice semantics (the runtime's garbage collector retires the
// backing array once the last Blob referencing it is gone); Blob carries no
// mutation API; so, unlike Page and Table, it needs no physical-allocator
// backing or explicit reference count.
type Blob struct {
	data []byte
}

// NewBlob copies `b` into a fresh, immutable Blob.
func NewBlob(b []byte) Blob {
	cp := make([]byte, len(b))
	copy(cp, b)

	return Blob{data: cp}
}

func (Blob) Tag() Tag { return TagBlob }

func (b Blob) String() string {
	const max = 32
	if len(b.data) > max {
		return fmt.Sprintf("blob(%d bytes, %q...)", len(b.data), b.data[:max])
	}

	return fmt.Sprintf("blob(%d bytes, %q)", len(b.data), b.data)
}

// Len returns the number of bytes in the blob.
func (b Blob) Len() int { return len(b.data) }

// Bytes returns a read-only view of the blob's content.
func (b Blob) Bytes() []byte { return b.data }

// Slice returns the byte range [lo, hi) as a new Blob.
func (b Blob) Slice(lo, hi int) (Blob, error) {
	if lo < 0 || hi > len(b.data) || lo > hi {
		return Blob{}, fmt.Errorf("%w: [%d:%d) of %d", ErrOutOfRange, lo, hi, len(b.data))
	}

	return NewBlob(b.data[lo:hi]), nil
}

// Equal reports content equality.
func (b Blob) Equal(o Blob) bool {
	if len(b.data) != len(o.data) {
		return false
	}

	for i := range b.data {
		if b.data[i] != o.data[i] {
			return false
		}
	}

	return true
}
