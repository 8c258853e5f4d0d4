package aspace

import (
	"sync"
	"sync/atomic"
	"time"
)

// Shootdown coordinates invalidating stale translations across a fixed set
// of workers ("cores"): Broadcast marks every active worker pending and
// blocks until each has either acknowledged (cleared its pending flag) or
// gone to sleep. A sleeping worker owes nothing — it holds no stale
// translation until it wakes and observes pending itself (kernel/src/tlb.rs's
// is_sleeping/fire/wait_for, translated from interrupt delivery to a
// polled atomic flag since there is no LAPIC to interrupt in user space).
type Shootdown struct {
	pending []atomic.Bool
	active  []atomic.Bool

	pollInterval time.Duration
}

// NewShootdown creates a coordinator for n workers, initially all active.
func NewShootdown(n int) *Shootdown {
	s := &Shootdown{
		pending:      make([]atomic.Bool, n),
		active:       make([]atomic.Bool, n),
		pollInterval: 10 * time.Microsecond,
	}

	for i := range s.active {
		s.active[i].Store(true)
	}

	return s
}

// SetActive marks worker i active (awake) or asleep. A sleeping worker is
// skipped by Broadcast.
func (s *Shootdown) SetActive(i int, active bool) {
	s.active[i].Store(active)
}

// Acknowledge clears worker i's pending flag; a worker calls this once it
// has flushed its own stale translations (flush_if_needed in tlb.rs).
func (s *Shootdown) Acknowledge(i int) {
	s.pending[i].Store(false)
}

// Pending reports whether worker i has an outstanding invalidation to
// process.
func (s *Shootdown) Pending(i int) bool {
	return s.pending[i].Load()
}

// Broadcast marks every active worker pending and waits for each to
// acknowledge or go to sleep. It returns the number of workers that were
// still active when fired (fire_all's count in tlb.rs).
func (s *Shootdown) Broadcast() int {
	fired := 0

	for i := range s.pending {
		if s.active[i].Load() {
			s.pending[i].Store(true)
			fired++
		}
	}

	var wg sync.WaitGroup

	for i := range s.pending {
		if !s.pending[i].Load() {
			continue
		}

		wg.Add(1)

		go func(i int) {
			defer wg.Done()
			s.waitFor(i)
		}(i)
	}

	wg.Wait()

	return fired
}

// waitFor polls worker i's pending flag until it clears or the worker goes
// to sleep.
func (s *Shootdown) waitFor(i int) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if !s.active[i].Load() {
			return
		}

		if !s.pending[i].Load() {
			return
		}

		<-ticker.C
	}
}
