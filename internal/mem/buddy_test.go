package mem

import "testing"

func TestAllocateFree(t *testing.T) {
	t.Parallel()

	a, err := NewAllocator(64 * FrameSize)
	if err != nil {
		t.Fatalf("NewAllocator: %v", err)
	}
	defer a.Close()

	off, size, err := a.Allocate(FrameSize)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if size != FrameSize {
		t.Fatalf("size = %d, want %d", size, FrameSize)
	}
	if a.UsedSize() != FrameSize {
		t.Fatalf("UsedSize = %d, want %d", a.UsedSize(), FrameSize)
	}

	if err := a.Free(off, size); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if a.UsedSize() != 0 {
		t.Fatalf("UsedSize after free = %d, want 0", a.UsedSize())
	}
}

func TestAllocateCoalesce(t *testing.T) {
	t.Parallel()

	a, err := NewAllocator(4 * FrameSize)
	if err != nil {
		t.Fatalf("NewAllocator: %v", err)
	}
	defer a.Close()

	off1, sz1, err := a.Allocate(FrameSize)
	if err != nil {
		t.Fatal(err)
	}

	off2, sz2, err := a.Allocate(FrameSize)
	if err != nil {
		t.Fatal(err)
	}

	// Allocate the rest of the region so a subsequent allocation of the full
	// size only succeeds if off1/off2 coalesce back together.
	off3, sz3, err := a.Allocate(2 * FrameSize)
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Free(off1, sz1); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(off2, sz2); err != nil {
		t.Fatal(err)
	}
	if err := a.Free(off3, sz3); err != nil {
		t.Fatal(err)
	}

	off, size, err := a.Allocate(4 * FrameSize)
	if err != nil {
		t.Fatalf("Allocate after coalesce: %v", err)
	}
	if off != 0 || size != 4*FrameSize {
		t.Fatalf("got (%d, %d), want (0, %d)", off, size, 4*FrameSize)
	}
}

func TestRefCounting(t *testing.T) {
	t.Parallel()

	a, err := NewAllocator(16 * FrameSize)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	p, err := NewPage(a, FrameSize)
	if err != nil {
		t.Fatal(err)
	}

	copy(p.Bytes(), []byte("hello"))

	clone := p.Clone()
	if !sameBacking(p, clone) {
		t.Fatal("clone should share storage")
	}
	if p.RefCount() != 2 {
		t.Fatalf("RefCount = %d, want 2", p.RefCount())
	}

	mutated, err := clone.MakeMut()
	if err != nil {
		t.Fatal(err)
	}
	copy(mutated.Bytes(), []byte("world"))

	if string(p.Bytes()[:5]) != "hello" {
		t.Fatalf("original mutated through clone: %q", p.Bytes()[:5])
	}

	if err := p.Drop(); err != nil {
		t.Fatal(err)
	}
	if err := mutated.Drop(); err != nil {
		t.Fatal(err)
	}
}

func sameBacking(a, b Page) bool {
	return a.Offset == b.Offset
}

func TestReserve(t *testing.T) {
	t.Parallel()

	a, err := NewAllocator(16 * FrameSize)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	off, size, err := a.Reserve(5*FrameSize, FrameSize)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if off != 5*FrameSize || size != FrameSize {
		t.Fatalf("got (%d, %d)", off, size)
	}

	if _, _, err := a.Reserve(5*FrameSize, FrameSize); err == nil {
		t.Fatal("expected second reservation of the same block to fail")
	}
}
