// Package device exposes the minimal ZNS command surface the FTL core
// consumes: identify, page-aligned read, zone-append, zone-reset. Real
// NVMe/ZNS submission lives outside this module; Command is the seam a
// driver library plugs into.
package device

import (
	"github.com/pkg/errors"
)

// Geometry is the result of an identify() command: the fixed shape of
// the device the FTL must respect for every I/O it issues.
type Geometry struct {
	PageSize        uint32
	PagesPerZone    uint32
	NumZones        uint32
	MaxTransferSize uint32
	MaxAppendSize   uint32
}

// ZoneBytes returns the capacity of one zone in bytes.
func (g Geometry) ZoneBytes() uint64 {
	return uint64(g.PageSize) * uint64(g.PagesPerZone)
}

var (
	// ErrDevice wraps any failing NVMe/simulated command.
	ErrDevice = errors.New("device command failed")
	// ErrNotPageAligned is returned when an address or size argument is
	// not a multiple of the device page size.
	ErrNotPageAligned = errors.New("address or size is not page aligned")
	// ErrZoneFull is returned by Append when the requested append would
	// cross the zone boundary.
	ErrZoneFull = errors.New("append exceeds zone capacity")
)

// Command is the synchronous command set a block-device driver exposes.
// Buffer sizes are in bytes and must be whole pages (otherwise
// ErrNotPageAligned); ppa and sppa are physical page addresses, not byte
// offsets.
type Command interface {
	// Identify returns the device's fixed geometry.
	Identify() (Geometry, error)

	// Read reads len(buf) bytes, page-aligned, starting at physical page
	// address ppa (expressed as a byte offset: ppa * PageSize).
	Read(ppa uint64, buf []byte) error

	// Append issues a zone-append of buf to the zone starting at sppa
	// (its start physical page address). It returns the physical page
	// address the device actually assigned to the first appended page.
	// len(buf) must not exceed Geometry.MaxAppendSize; callers split
	// larger requests themselves.
	Append(sppa uint64, buf []byte) (ppa uint64, err error)

	// ZoneReset returns the zone starting at sppa to the empty state,
	// dropping its write pointer back to zero.
	ZoneReset(sppa uint64) error
}
