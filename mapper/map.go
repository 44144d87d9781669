// Package mapper translates logical page addresses into physical page
// addresses: the per-logical-block page map that records out-of-place
// log writes, plus the write/read paths that decide between appending
// to a data zone directly and appending to the log.
package mapper

import (
	"sync"

	"github.com/hostftl/zns-ftl/zone"
)

// Entry records where a rewritten logical page currently lives in a log
// zone. Checksum is a domain addition (SPEC_FULL.md §3): an xxhash64
// digest of the page payload at Install time, verified on read-back.
type Entry struct {
	LPA      uint64
	PPA      uint64
	Zone     *zone.Zone
	Checksum uint64
}

// Block is the per-logical-block map: an ordered log of out-of-place
// writes (PageMaps), a merge-in-flight snapshot (OldPageMaps), and the
// data zone holding the block's last-merged baseline, if any.
type Block struct {
	BaseLPA uint64

	mu         sync.Mutex
	pageMaps   []Entry // strictly ascending by LPA
	oldPageMaps []Entry // snapshot taken at merge start; nil outside a merge
	dataZone   *zone.Zone
}

// DataZone returns the block's current baseline data zone, if merged at
// least once.
func (b *Block) DataZone() (*zone.Zone, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dataZone, b.dataZone != nil
}

// insert inserts or updates e in pageMaps, preserving ascending-LPA
// order, and returns the zone that previously owned this LPA (if any) so
// the caller can decrement its valid-page counter outside the lock.
func (b *Block) insert(e Entry) (prevOwner *zone.Zone, hadPrev bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.pageMaps {
		if b.pageMaps[i].LPA == e.LPA {
			prevOwner, hadPrev = b.pageMaps[i].Zone, true
			b.pageMaps[i] = e
			return
		}
		if b.pageMaps[i].LPA > e.LPA {
			b.pageMaps = append(b.pageMaps, Entry{})
			copy(b.pageMaps[i+1:], b.pageMaps[i:])
			b.pageMaps[i] = e
			return
		}
	}
	b.pageMaps = append(b.pageMaps, e)
	return
}

// find searches pageMaps then oldPageMaps for lpa.
func (b *Block) find(lpa uint64) (Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := searchAscending(b.pageMaps, lpa); ok {
		return e, true
	}
	return searchAscending(b.oldPageMaps, lpa)
}

func searchAscending(entries []Entry, lpa uint64) (Entry, bool) {
	for _, e := range entries {
		if e.LPA == lpa {
			return e, true
		}
		if e.LPA > lpa {
			break
		}
	}
	return Entry{}, false
}

// beginMerge atomically rotates pageMaps into oldPageMaps so concurrent
// readers keep seeing the log view while concurrent writers start a
// fresh list (spec.md §4.4 step 4a).
func (b *Block) beginMerge() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	old := b.pageMaps
	b.pageMaps = nil
	b.oldPageMaps = old
	return old
}

// endMerge clears oldPageMaps and installs the freshly merged data zone
// as the block's new baseline, returning the prior data zone (if any)
// so the caller can free it.
func (b *Block) endMerge(newZone *zone.Zone) (prior *zone.Zone, hadPrior bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	prior, hadPrior = b.dataZone, b.dataZone != nil
	b.oldPageMaps = nil
	b.dataZone = newZone
	return
}

// nonEmpty reports whether this block has any pending log entries, used
// by the GC's round-robin victim scan.
func (b *Block) nonEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pageMaps) > 0
}
