package device

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// SimDevice is an in-process stand-in for a real ZNS namespace: a flat
// regular file, memory-mapped and partitioned into fixed-size zones. It
// enforces the same append-only, write-pointer discipline a real device
// would, so FTL code written against it behaves the same against real
// hardware. Used by local tooling and the test suite; never shipped as
// the production driver.
type SimDevice struct {
	geo  Geometry
	file *os.File
	data []byte // mmap'd backing store

	mu   sync.Mutex
	wptr []uint32 // per-zone write pointer, in pages, enforced by the "device"
}

// NewSimDevice creates (or truncates) path to hold geo.NumZones zones of
// geo.PagesPerZone pages each, and mmaps it O_RDWR.
func NewSimDevice(path string, geo Geometry) (*SimDevice, error) {
	size := int64(geo.ZoneBytes()) * int64(geo.NumZones)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open backing file")
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "truncate backing file")
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "mmap backing file")
	}

	return &SimDevice{
		geo:  geo,
		file: f,
		data: data,
		wptr: make([]uint32, geo.NumZones),
	}, nil
}

// Close unmaps and closes the backing file.
func (d *SimDevice) Close() error {
	if err := unix.Msync(d.data, unix.MS_SYNC); err != nil {
		return errors.Wrap(err, "msync backing file")
	}
	if err := unix.Munmap(d.data); err != nil {
		return errors.Wrap(err, "munmap backing file")
	}
	return d.file.Close()
}

func (d *SimDevice) Identify() (Geometry, error) {
	return d.geo, nil
}

func (d *SimDevice) Read(ppa uint64, buf []byte) error {
	if len(buf) == 0 || uint64(len(buf))%uint64(d.geo.PageSize) != 0 {
		return ErrNotPageAligned
	}
	off := ppa * uint64(d.geo.PageSize)
	if off+uint64(len(buf)) > uint64(len(d.data)) {
		return errors.Wrap(ErrDevice, "read past end of device")
	}
	copy(buf, d.data[off:off+uint64(len(buf))])
	return nil
}

func (d *SimDevice) Append(sppa uint64, buf []byte) (uint64, error) {
	if len(buf) == 0 || uint64(len(buf))%uint64(d.geo.PageSize) != 0 {
		return 0, ErrNotPageAligned
	}
	if uint32(len(buf)) > d.geo.MaxAppendSize {
		return 0, errors.Wrap(ErrDevice, "append exceeds MaxAppendSize")
	}

	zoneIdx := sppa / uint64(d.geo.PagesPerZone)
	if zoneIdx >= uint64(d.geo.NumZones) || sppa%uint64(d.geo.PagesPerZone) != 0 {
		return 0, errors.Wrap(ErrDevice, "append target is not a zone start")
	}

	nPages := uint32(len(buf)) / d.geo.PageSize

	d.mu.Lock()
	defer d.mu.Unlock()

	wp := d.wptr[zoneIdx]
	if wp+nPages > d.geo.PagesPerZone {
		return 0, ErrZoneFull
	}

	ppa := sppa + uint64(wp)
	off := ppa * uint64(d.geo.PageSize)
	copy(d.data[off:off+uint64(len(buf))], buf)
	d.wptr[zoneIdx] = wp + nPages

	return ppa, nil
}

func (d *SimDevice) ZoneReset(sppa uint64) error {
	zoneIdx := sppa / uint64(d.geo.PagesPerZone)
	if zoneIdx >= uint64(d.geo.NumZones) || sppa%uint64(d.geo.PagesPerZone) != 0 {
		return errors.Wrap(ErrDevice, "reset target is not a zone start")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	start := sppa * uint64(d.geo.PageSize)
	end := start + d.geo.ZoneBytes()
	for i := range d.data[start:end] {
		d.data[start+uint64(i)] = 0
	}
	d.wptr[zoneIdx] = 0
	return nil
}
