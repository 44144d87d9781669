package mapper

import (
	"github.com/hostftl/zns-ftl/device"
	"github.com/hostftl/zns-ftl/logger"
	"github.com/hostftl/zns-ftl/util"
	"github.com/hostftl/zns-ftl/zone"
	"github.com/juju/errors"
)

// Mapper owns the logical-block map table and drives the write/read
// paths described in spec.md §4.3: a fast path that appends straight to
// a logical block's data zone when possible, and a slow path that logs
// out-of-place writes into the current log zone.
type Mapper struct {
	dev          device.Command
	pool         *zone.Pool
	pagesPerZone uint32
	pageSize     uint32
	blocks       []*Block
}

// New builds a Mapper with one Block per logical block (numDataZones of
// them, per spec.md's "one logical block per data zone").
func New(dev device.Command, pool *zone.Pool, geo device.Geometry, numDataZones uint32) *Mapper {
	blocks := make([]*Block, numDataZones)
	for i := range blocks {
		blocks[i] = &Block{BaseLPA: uint64(i) * uint64(geo.PagesPerZone)}
	}
	return &Mapper{
		dev:          dev,
		pool:         pool,
		pagesPerZone: geo.PagesPerZone,
		pageSize:     geo.PageSize,
		blocks:       blocks,
	}
}

// NumBlocks returns the number of logical blocks tracked.
func (m *Mapper) NumBlocks() int { return len(m.blocks) }

// Block returns the logical block map for index i, used by the GC scan.
func (m *Mapper) Block(i int) *Block { return m.blocks[i] }

func (m *Mapper) blockFor(lpa uint64) (*Block, uint32) {
	idx := lpa / uint64(m.pagesPerZone)
	offset := uint32(lpa % uint64(m.pagesPerZone))
	return m.blocks[idx], offset
}

// Lookup resolves lpa to a physical page address, per spec.md's
// lookup-or-fallback chain: page_maps, then old_page_maps, then the
// block's data zone baseline. ok is false when the LPA was never
// written and has no data-zone baseline either ("unmapped").
func (m *Mapper) Lookup(lpa uint64) (ppa uint64, checksum uint64, ok bool) {
	b, offset := m.blockFor(lpa)
	if e, found := b.find(lpa); found {
		return e.PPA, e.Checksum, true
	}
	if dz, has := b.DataZone(); has {
		return dz.SPPA + uint64(offset), 0, true
	}
	return 0, 0, false
}

// install inserts a page-map entry, decrementing the previous owner's
// valid-page count (if the LPA was already mapped) and incrementing the
// new zone's count unconditionally.
func (m *Mapper) install(b *Block, e Entry) {
	prevOwner, hadPrev := b.insert(e)
	if hadPrev {
		prevOwner.DecValidPages(1)
	}
	e.Zone.IncValidPages(1)
}

// Read resolves each page in [lpa, lpa+n) and reads it into buf, which
// must be exactly n*PageSize bytes. Pages that were never written and
// have no data-zone baseline read back as zero, per the fast-path
// zero-padding resolution in spec.md §9.
func (m *Mapper) Read(lpa uint64, n uint32, buf []byte) error {
	page := make([]byte, m.pageSize)
	for i := uint32(0); i < n; i++ {
		ppa, checksum, ok := m.Lookup(lpa + uint64(i))
		dst := buf[uint64(i)*uint64(m.pageSize) : uint64(i+1)*uint64(m.pageSize)]
		if !ok {
			for j := range dst {
				dst[j] = 0
			}
			continue
		}
		if err := m.dev.Read(ppa, page); err != nil {
			return errors.Annotatef(err, "mapper: read lpa %d", lpa+uint64(i))
		}
		if checksum != 0 && util.HashCode(page) != checksum {
			logger.ErrorWithFields(logger.Fields{
				"lpa": lpa + uint64(i),
				"ppa": ppa,
			}).Error("mapper: checksum mismatch")
			return errors.Errorf("mapper: checksum mismatch at lpa %d", lpa+uint64(i))
		}
		copy(dst, page)
	}
	return nil
}

// Write is the combined fast/slow write path from spec.md §4.3. lpa is
// the first logical page address of the write; buf must be a whole
// number of pages.
func (m *Mapper) Write(lpa uint64, buf []byte) error {
	if len(buf) == 0 || uint32(len(buf))%m.pageSize != 0 {
		return errors.New("mapper: write size is not page aligned")
	}
	n := uint32(len(buf)) / m.pageSize

	b, offset := m.blockFor(lpa)
	if dz, has := b.DataZone(); has && !b.mergeInFlight() {
		if wp := dz.WritePtr(); wp <= offset && offset+n <= m.pagesPerZone {
			return m.fastAppend(b, dz, offset, buf)
		}
	}
	return m.logAppend(lpa, buf)
}

// mergeInFlight reports whether a GC merge currently owns oldPageMaps
// for this block, which disables the fast path per spec.md §4.3.
func (b *Block) mergeInFlight() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.oldPageMaps != nil
}

// fastAppend pads zero pages from the data zone's current write pointer
// up to offset, then appends buf directly; no mapping entry is needed
// since Lookup's data-zone fallback already serves these LPAs.
func (m *Mapper) fastAppend(b *Block, dz *zone.Zone, offset uint32, buf []byte) error {
	wp := dz.WritePtr()
	if pad := offset - wp; pad > 0 {
		padBuf := make([]byte, uint64(pad)*uint64(m.pageSize))
		if _, err := m.dev.Append(dz.SPPA, padBuf); err != nil {
			return errors.Annotate(err, "mapper: fast-path pad append")
		}
		dz.AdvanceWritePtr(pad)
	}
	if _, err := m.dev.Append(dz.SPPA, buf); err != nil {
		return errors.Annotate(err, "mapper: fast-path append")
	}
	dz.AdvanceWritePtr(uint32(len(buf)) / m.pageSize)
	return nil
}

// logAppend splits buf into chunks no larger than the device's
// MaxAppendSize and no larger than the current log zone's remaining
// capacity, appending each chunk and installing a page-map entry per
// page. RetireCurrentLogZone is called whenever a chunk lands exactly at
// a zone boundary; the next chunk then acquires a fresh log zone.
func (m *Mapper) logAppend(lpa uint64, buf []byte) error {
	geo, err := m.dev.Identify()
	if err != nil {
		return errors.Annotate(err, "mapper: identify")
	}

	written := uint32(0)
	total := uint32(len(buf))
	for written < total {
		cur, has := m.pool.CurrentLogZone()
		if !has {
			cur = m.pool.AcquireFreshLogZone()
		}

		remainInZone := cur.Remaining() * m.pageSize
		chunk := geo.MaxAppendSize
		retireAfter := false
		if remainInZone <= chunk {
			chunk = remainInZone
			retireAfter = true
		}
		if total-written < chunk {
			chunk = total - written
			retireAfter = false
		}

		ppa, err := m.dev.Append(cur.SPPA, buf[written:written+chunk])
		if err != nil {
			return errors.Annotate(err, "mapper: log append")
		}

		nPages := chunk / m.pageSize
		for i := uint32(0); i < nPages; i++ {
			pageLPA := lpa + uint64(written/m.pageSize) + uint64(i)
			pagePPA := ppa + uint64(i)
			page := buf[written+i*m.pageSize : written+(i+1)*m.pageSize]
			e := Entry{LPA: pageLPA, PPA: pagePPA, Zone: cur, Checksum: util.HashCode(page)}
			b, _ := m.blockFor(pageLPA)
			m.install(b, e)
		}
		cur.AdvanceWritePtr(nPages)

		if retireAfter {
			if _, err := m.pool.RetireCurrentLogZone(); err != nil {
				return errors.Annotate(err, "mapper: retire log zone")
			}
		}
		written += chunk
	}
	return nil
}
