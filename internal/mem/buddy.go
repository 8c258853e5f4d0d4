// Package mem implements the runtime's physical allocator: a buddy allocator
// over a contiguous, anonymously-mapped byte region, plus reference-counted
// page handles layered on top of it.
//
// The allocator partitions its region into power-of-two blocks starting at
// FrameSize (4 KiB) and doubling up to the region's total size. Each level
// keeps its own free list and its own lock; callers acquire locks only in
// ascending level order, which is sufficient to avoid deadlock since
// allocation only ever splits a larger block (never the reverse without
// first releasing the smaller one).
package mem

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// FrameSize is the granularity at which reference counts are tracked and the
// smallest block the allocator will hand out.
const FrameSize = 4096

// Errors returned by the allocator.
var (
	ErrSpaceExhausted    = errors.New("mem: space exhausted")
	ErrRegionInUse       = errors.New("mem: region in use")
	ErrInvalidReservation = errors.New("mem: invalid reservation")
	ErrInvalidSize        = errors.New("mem: invalid size")
)

// Allocator partitions a contiguous, power-of-two sized region into
// power-of-two blocks.
type Allocator struct {
	region []byte // anonymously mapped backing storage

	levels int          // number of levels; level 0 is the whole region
	free   [][]uint64   // free[level] is a stack of block offsets at that level
	mu     []sync.Mutex // one lock per level, acquired in ascending order only

	used int64 // bytes currently allocated, maintained atomically

	// counts holds one reference count per FrameSize-aligned frame. A block
	// larger than a frame stores its (single, shared) count at the offset of
	// its first constituent frame.
	counts []uint32
}

// NewAllocator creates an allocator backing `size` bytes (rounded up to the
// next power of two, minimum FrameSize) with anonymous memory.
func NewAllocator(size int) (*Allocator, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	total := nextPow2(size)
	if total < FrameSize {
		total = FrameSize
	}

	region, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mem: mmap: %w", err)
	}

	levels := 0
	for (FrameSize << levels) < total {
		levels++
	}
	levels++ // level count includes level 0 (the whole region)

	a := &Allocator{
		region: region,
		levels: levels,
		free:   make([][]uint64, levels),
		mu:     make([]sync.Mutex, levels),
		counts: make([]uint32, total/FrameSize),
	}

	// The entire region starts as one free block at level 0.
	a.free[0] = []uint64{0}

	return a, nil
}

// Close unmaps the backing region. The allocator must not be used afterward.
func (a *Allocator) Close() error {
	return unix.Munmap(a.region)
}

// levelSize returns the block size, in bytes, of the given level.
func (a *Allocator) levelSize(level int) int {
	return (1 << (a.levels - 1 - level)) * FrameSize
}

// levelOf returns the smallest level whose block size is >= size.
func (a *Allocator) levelOf(size int) (int, error) {
	size = nextPow2(size)
	if size < FrameSize {
		size = FrameSize
	}

	for level := a.levels - 1; level >= 0; level-- {
		if a.levelSize(level) == size {
			return level, nil
		}
	}

	return 0, fmt.Errorf("%w: size %d exceeds region", ErrInvalidSize, size)
}

// Allocate reserves a block of at least `size` bytes and returns its offset
// within the region and its actual (power-of-two) size.
func (a *Allocator) Allocate(size int) (offset uint64, actual int, err error) {
	level, err := a.levelOf(size)
	if err != nil {
		return 0, 0, err
	}

	offset, ok := a.allocateAt(level)
	if !ok {
		return 0, 0, fmt.Errorf("%w: requested %d bytes", ErrSpaceExhausted, size)
	}

	actual = a.levelSize(level)
	atomic.AddInt64(&a.used, int64(actual))
	a.setCount(offset, 1)

	return offset, actual, nil
}

// allocateAt finds or creates a free block at `level`, splitting a parent
// block if necessary. It returns false if the region is exhausted.
func (a *Allocator) allocateAt(level int) (uint64, bool) {
	a.mu[level].Lock()

	if n := len(a.free[level]); n > 0 {
		off := a.free[level][n-1]
		a.free[level] = a.free[level][:n-1]
		a.mu[level].Unlock()

		return off, true
	}

	a.mu[level].Unlock()

	if level == 0 {
		return 0, false
	}

	parent, ok := a.allocateAt(level - 1)
	if !ok {
		return 0, false
	}

	// Split the parent into two buddies at this level. Bias the
	// higher-addressed half toward the caller, clustering long-lived
	// allocations toward the top of the region (mirrors the original
	// allocator's split policy).
	half := uint64(a.levelSize(level))
	lo, hi := parent, parent+half

	a.mu[level].Lock()
	a.free[level] = append(a.free[level], lo)
	a.mu[level].Unlock()

	return hi, true
}

// Reserve reserves the specific block of `size` bytes containing `addr`.
// Reservation recurses upward: to reserve a leaf, its parent is reserved (if
// not already) and the parent's other buddy is freed back to its level.
func (a *Allocator) Reserve(addr uint64, size int) (uint64, int, error) {
	level, err := a.levelOf(size)
	if err != nil {
		return 0, 0, err
	}

	blockSize := uint64(a.levelSize(level))
	offset := (addr / blockSize) * blockSize

	if offset+blockSize > uint64(len(a.region)) {
		return 0, 0, fmt.Errorf("%w: addr %#x out of range", ErrInvalidReservation, addr)
	}

	if err := a.reserveBlock(offset, level); err != nil {
		return 0, 0, err
	}

	atomic.AddInt64(&a.used, int64(blockSize))
	a.setCount(offset, 1)

	return offset, int(blockSize), nil
}

// reserveBlock ensures the block at (offset, level) is free, recursively
// reserving its parent and releasing the buddy it doesn't need.
func (a *Allocator) reserveBlock(offset uint64, level int) error {
	a.mu[level].Lock()

	for i, off := range a.free[level] {
		if off == offset {
			a.free[level] = append(a.free[level][:i], a.free[level][i+1:]...)
			a.mu[level].Unlock()

			return nil
		}
	}

	a.mu[level].Unlock()

	if level == 0 {
		return fmt.Errorf("%w: offset %#x", ErrRegionInUse, offset)
	}

	parentSize := uint64(a.levelSize(level - 1))
	parentOffset := (offset / parentSize) * parentSize

	if err := a.reserveBlock(parentOffset, level-1); err != nil {
		return err
	}

	blockSize := uint64(a.levelSize(level))
	buddy := parentOffset + blockSize
	if buddy == offset {
		buddy = parentOffset
	}

	if buddy == offset {
		return fmt.Errorf("%w: offset %#x", ErrRegionInUse, offset)
	}

	a.mu[level].Lock()
	a.free[level] = append(a.free[level], buddy)
	a.mu[level].Unlock()

	return nil
}

// Free releases the block at `offset` with the given size, coalescing with
// its buddy when possible.
func (a *Allocator) Free(offset uint64, size int) error {
	level, err := a.levelOf(size)
	if err != nil {
		return err
	}

	atomic.AddInt64(&a.used, -int64(a.levelSize(level)))
	a.freeBlock(offset, level)

	return nil
}

func (a *Allocator) freeBlock(offset uint64, level int) {
	if level == 0 {
		a.mu[0].Lock()
		a.free[0] = append(a.free[0], offset)
		a.mu[0].Unlock()

		return
	}

	blockSize := uint64(a.levelSize(level))
	buddy := offset ^ blockSize // buddies differ in exactly one bit at this granularity

	a.mu[level].Lock()

	for i, off := range a.free[level] {
		if off == buddy {
			a.free[level] = append(a.free[level][:i], a.free[level][i+1:]...)
			a.mu[level].Unlock()

			parent := offset
			if buddy < offset {
				parent = buddy
			}

			a.freeBlock(parent, level-1)

			return
		}
	}

	a.free[level] = append(a.free[level], offset)
	a.mu[level].Unlock()
}

// Bytes returns the raw backing memory for a block. Callers must not retain
// the slice beyond the block's lifetime.
func (a *Allocator) Bytes(offset uint64, size int) []byte {
	return a.region[offset : offset+uint64(size)]
}

// UsedSize returns the number of bytes currently allocated.
func (a *Allocator) UsedSize() int64 { return atomic.LoadInt64(&a.used) }

// TotalSize returns the size of the backing region.
func (a *Allocator) TotalSize() int64 { return int64(len(a.region)) }

// UsageFraction returns the fraction (0..1) of the region in use.
func (a *Allocator) UsageFraction() float64 {
	return float64(a.UsedSize()) / float64(a.TotalSize())
}

func (a *Allocator) frameIndex(offset uint64) uint64 { return offset / FrameSize }

func (a *Allocator) setCount(offset uint64, n uint32) {
	atomic.StoreUint32(&a.counts[a.frameIndex(offset)], n)
}

// RefCount returns the atomic reference count associated with the frame
// containing `offset`.
func (a *Allocator) RefCount(offset uint64) *uint32 {
	return &a.counts[a.frameIndex(offset)]
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
