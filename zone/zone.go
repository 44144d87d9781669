// Package zone tracks every zone on the device: its role (free,
// current-log, used-log, data-zone), its write pointer, and its count of
// still-live pages. Zone records are owned by one table inside Pool, and
// the pool's free and used-log lists hold small integer IDs into that
// table (see pool.go). Page-map entries in the mapper hold *Zone
// pointers to these records, not IDs.
package zone

import "sync"

// ID identifies a zone by its index in the device's zone array.
type ID uint32

// Zone is the in-memory mirror of one physical zone's mutable state.
// SPPA and PagesPerZone never change after construction; ValidPages and
// WritePtr are guarded by mu and must satisfy
// 0 <= ValidPages <= WritePtr <= PagesPerZone at every quiescent point.
type Zone struct {
	ID           ID
	SPPA         uint64
	PagesPerZone uint32

	mu         sync.Mutex
	validPages uint32
	writePtr   uint32
}

func newZone(id ID, sppa uint64, pagesPerZone uint32) *Zone {
	return &Zone{ID: id, SPPA: sppa, PagesPerZone: pagesPerZone}
}

// IncValidPages records n more live pages owned by this zone.
func (z *Zone) IncValidPages(n uint32) {
	z.mu.Lock()
	z.validPages += n
	z.mu.Unlock()
}

// DecValidPages records n fewer live pages owned by this zone. Every
// increment must be paired with exactly one later decrement; callers
// that double-decrement will drive ValidPages negative, caught here as a
// panic rather than silently wrapping.
func (z *Zone) DecValidPages(n uint32) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if n > z.validPages {
		panic("zone: valid page counter underflow")
	}
	z.validPages -= n
}

// ValidPages returns the current live-page count.
func (z *Zone) ValidPages() uint32 {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.validPages
}

// AdvanceWritePtr moves the write pointer forward by n pages. It is
// increment-only between resets; resetCounters is the only way it moves
// back to zero.
func (z *Zone) AdvanceWritePtr(n uint32) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.writePtr += n
	if z.writePtr > z.PagesPerZone {
		panic("zone: write pointer exceeds zone capacity")
	}
}

// WritePtr returns the current write pointer, in pages.
func (z *Zone) WritePtr() uint32 {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.writePtr
}

// Remaining returns how many pages may still be appended before the zone
// is full.
func (z *Zone) Remaining() uint32 {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.PagesPerZone - z.writePtr
}

// resetCounters zeroes ValidPages and WritePtr; called when the zone
// returns to the free pool after an on-device reset, and again when it is
// taken off the free list.
func (z *Zone) resetCounters() {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.validPages = 0
	z.writePtr = 0
}
