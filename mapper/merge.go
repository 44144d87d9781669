package mapper

import (
	"github.com/hostftl/zns-ftl/zone"
	"github.com/juju/errors"
)

// VictimBlock returns the index of the next logical block, starting the
// scan at (from+1)%NumBlocks, whose page map is non-empty — spec.md
// §4.4 step 2's FIFO round-robin victim selection. ok is false if every
// block is clean.
func (m *Mapper) VictimBlock(from int) (idx int, ok bool) {
	n := len(m.blocks)
	for i := 0; i < n; i++ {
		idx = (from + 1 + i) % n
		if m.blocks[idx].nonEmpty() {
			return idx, true
		}
	}
	return 0, false
}

// Merge consolidates logical block blockIdx's log pages plus its prior
// data zone (if any) into newZone, following spec.md §4.4 step 4
// exactly: rotate page_maps into old_page_maps so readers keep seeing
// the log view, then walk offset 0..PagesPerZone-1 picking the freshest
// source per offset, batching reads up to MaxAppendSize before
// appending to newZone. Returns the block's prior data zone, if any, so
// the caller can free it once merge bookkeeping is complete.
func (m *Mapper) Merge(blockIdx int, newZone *zone.Zone) (prior *zone.Zone, hadPrior bool, err error) {
	b := m.blocks[blockIdx]
	old := b.beginMerge()

	geo, err := m.dev.Identify()
	if err != nil {
		return nil, false, errors.Annotate(err, "mapper: merge identify")
	}
	maxAppendPages := geo.MaxAppendSize / m.pageSize
	if maxAppendPages == 0 {
		maxAppendPages = 1
	}

	dz, hasDZ := b.DataZone()
	var dzRemaining uint32
	if hasDZ {
		dzRemaining = dz.WritePtr()
	}

	batch := make([]byte, 0, geo.MaxAppendSize)
	page := make([]byte, m.pageSize)
	oldIdx := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		nPages := uint32(len(batch)) / m.pageSize
		if _, err := m.dev.Append(newZone.SPPA, batch); err != nil {
			return errors.Annotate(err, "mapper: merge append")
		}
		newZone.AdvanceWritePtr(nPages)
		batch = batch[:0]
		return nil
	}

	for offset := uint32(0); offset < m.pagesPerZone; offset++ {
		haveData := false
		var source uint64

		if hasDZ && dzRemaining > 0 {
			haveData = true
			source = dz.SPPA + uint64(offset)
			dzRemaining--
		}
		if oldIdx < len(old) && old[oldIdx].LPA == b.BaseLPA+uint64(offset) {
			haveData = true
			source = old[oldIdx].PPA
			old[oldIdx].Zone.DecValidPages(1)
			oldIdx++
		}
		stillHaveData := dzRemaining > 0 || oldIdx < len(old)

		if haveData {
			if err := m.dev.Read(source, page); err != nil {
				return nil, false, errors.Annotate(err, "mapper: merge read")
			}
			batch = append(batch, page...)
		} else if stillHaveData {
			// A gap before later data: pad with a zero page so every
			// following page lands at its own offset in newZone.
			batch = append(batch, make([]byte, m.pageSize)...)
		}

		if !stillHaveData {
			// Neither the data zone nor the old log has anything past
			// this offset: flush what's batched and stop.
			if err := flush(); err != nil {
				return nil, false, err
			}
			break
		}
		if (offset+1)%maxAppendPages == 0 {
			if err := flush(); err != nil {
				return nil, false, err
			}
		}
	}

	prior, hadPrior = b.endMerge(newZone)
	return prior, hadPrior, nil
}
