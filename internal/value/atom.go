package value

import (
	"fmt"
	"sync"

	"github.com/dchest/siphash"
)

// siphash keys for atom interning. Fixed, not secret: atoms are interned for
// fast equality and hashing, not for any cryptographic property.
const (
	siphashK0 = 0x6f726361_6d75746e
	siphashK1 = 0x656c62_61747361
)

// atomHash returns the interning key for a byte sequence.
func atomHash(b []byte) uint64 {
	return siphash.Hash(siphashK0, siphashK1, b)
}

// internTable deduplicates atom storage so that two atoms built from equal
// bytes share one backing array, making equality and hashing O(1).
type internTable struct {
	mu      sync.Mutex
	entries map[uint64][]string // hash -> known byte sequences (as strings) sharing that hash
}

var atoms = &internTable{entries: make(map[uint64][]string)}

func (t *internTable) intern(b []byte) string {
	h := atomHash(b)

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.entries[h] {
		if s == string(b) {
			return s
		}
	}

	s := string(b)
	t.entries[h] = append(t.entries[h], s)

	return s
}

// Atom is an immutable, interned byte sequence used as an identifier.
// Equality is by content; two Atoms built from equal bytes are
// observationally identical (§3.1).
type Atom struct {
	bytes string
	hash  uint64
}

// NewAtom interns `b` and returns the resulting Atom.
func NewAtom(b []byte) Atom {
	s := atoms.intern(b)
	return Atom{bytes: s, hash: atomHash(b)}
}

func (Atom) Tag() Tag { return TagAtom }

func (a Atom) String() string {
	return fmt.Sprintf("#%s", a.bytes)
}

// Bytes returns the atom's content.
func (a Atom) Bytes() []byte { return []byte(a.bytes) }

// Hash returns the atom's interning hash, usable as a map key.
func (a Atom) Hash() uint64 { return a.hash }

// Equal reports content equality. Because atoms are interned, this is a
// simple string comparison regardless of how each Atom value was built.
func (a Atom) Equal(o Atom) bool { return a.bytes == o.bytes }
