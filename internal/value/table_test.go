package value

import (
	"testing"

	"github.com/arcanum-run/arcanum/internal/mem"
)

func newAllocator(t *testing.T, size int) *mem.Allocator {
	t.Helper()

	a, err := mem.NewAllocator(size)
	if err != nil {
		t.Fatalf("mem.NewAllocator: %v", err)
	}

	t.Cleanup(func() { _ = a.Close() })

	return a
}

func TestTableGetSet(t *testing.T) {
	t.Parallel()

	table := NewTable(MinTableSpan)
	child := table.Span() / Radix

	entry := NullEntry(child)
	if _, err := table.Set(3, entry); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if got := table.Get(3); got.Kind != EntryNull {
		t.Fatalf("Get(3) = %v, want null", got)
	}

	if got := table.Get(0); got.Kind != EntryNull {
		t.Fatalf("Get(0) = %v, want null", got)
	}
}

func TestTableMapUnmap(t *testing.T) {
	t.Parallel()

	a := newAllocator(t, 16*mem.FrameSize)

	root := NewTable(4096)

	page, err := NewPage(a, PageSize4K)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}

	addr := uint64(1) << 30 // 1 GiB, well beyond the initial span: forces growth

	root, _, err = Map(root, addr, RWPageEntry(page))
	if err != nil {
		t.Fatalf("Map: %v", err)
	}

	if root.Span() <= addr {
		t.Fatalf("table did not grow to cover addr %#x (span=%d)", addr, root.Span())
	}

	displaced, ok, err := Unmap(root, addr)
	if err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if !ok {
		t.Fatal("Unmap: not found")
	}

	if displaced.Kind != EntryRWPage {
		t.Fatalf("displaced kind = %v, want rw-page", displaced.Kind)
	}

	got, _ := displaced.Page()
	if !got.Equal(page) {
		t.Fatal("displaced page content mismatch")
	}

	if _, ok2, err := Unmap(root, addr); err != nil || ok2 {
		t.Fatalf("second Unmap should report not-found, got ok=%v err=%v", ok2, err)
	}
}

func TestTableCOWIsolatesClone(t *testing.T) {
	t.Parallel()

	a := newAllocator(t, 8*mem.FrameSize)

	root := NewTable(4096)

	page, err := NewPage(a, PageSize4K)
	if err != nil {
		t.Fatal(err)
	}

	root, _, err = Map(root, 0, RWPageEntry(page))
	if err != nil {
		t.Fatal(err)
	}

	clone := root.Clone()

	page2, err := NewPage(a, PageSize4K)
	if err != nil {
		t.Fatal(err)
	}

	if err := page2.Write(0, []byte("distinct")); err != nil {
		t.Fatal(err)
	}

	root, _, err = Map(root, 0, RWPageEntry(page2))
	if err != nil {
		t.Fatal(err)
	}

	entry, ok, err := Unmap(clone, 0)
	if err != nil || !ok {
		t.Fatalf("Unmap(clone): ok=%v err=%v", ok, err)
	}

	clonedPage, _ := entry.Page()
	if clonedPage.Equal(page2) {
		t.Fatal("mutating root's map should not have affected the clone")
	}
}

func TestTupleSetGet(t *testing.T) {
	t.Parallel()

	tup := NewTuple(3)

	old, err := tup.Set(1, Word(7))
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := old.(Null); !ok {
		t.Fatalf("displaced = %v, want Null", old)
	}

	got, err := tup.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if got != Word(7) {
		t.Fatalf("Get(1) = %v, want Word(7)", got)
	}

	zero, err := tup.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := zero.(Null); !ok {
		t.Fatalf("Get(0) = %v, want Null", zero)
	}
}

func TestTupleCOW(t *testing.T) {
	t.Parallel()

	tup := TupleOf(Word(1), Word(2))
	clone := tup.Clone()

	if _, err := tup.Set(0, Word(99)); err != nil {
		t.Fatal(err)
	}

	got, _ := clone.Get(0)
	if got != Word(1) {
		t.Fatalf("clone observed mutation through original: %v", got)
	}
}

func TestPageCOW(t *testing.T) {
	t.Parallel()

	a := newAllocator(t, 4*mem.FrameSize)

	p, err := NewPage(a, PageSize4K)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Write(0, []byte("hello")); err != nil {
		t.Fatal(err)
	}

	clone := p.Clone()

	mutated, err := clone.MakeMut()
	if err != nil {
		t.Fatal(err)
	}
	if err := mutated.Write(0, []byte("world")); err != nil {
		t.Fatal(err)
	}

	if string(p.Bytes()[:5]) != "hello" {
		t.Fatalf("original page mutated through clone: %q", p.Bytes()[:5])
	}
}
