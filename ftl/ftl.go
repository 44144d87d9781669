// Package ftl exposes the FTL API from spec.md §6: Init, Read, Write,
// Deinit over a device.Command, hiding zone pool management, address
// mapping, and garbage collection behind a random-write byte interface.
package ftl

import (
	"github.com/hostftl/zns-ftl/device"
	"github.com/hostftl/zns-ftl/gc"
	"github.com/hostftl/zns-ftl/logger"
	"github.com/hostftl/zns-ftl/mapper"
	"github.com/hostftl/zns-ftl/zone"
	"github.com/pkg/errors"
)

// Params are the FTL init parameters from spec.md §6.
type Params struct {
	DeviceName string
	LogZones   int
	GCTrigger  int
	ForceReset bool
}

// FTL is the mounted translation layer: one zone pool, one address
// mapper, and the background GC worker driving them.
type FTL struct {
	dev    device.Command
	geo    device.Geometry
	pool   *zone.Pool
	mapper *mapper.Mapper
	gc     *gc.Collector
}

// Init identifies dev, builds the zone pool and address mapper, and
// starts the background GC worker. LogZones of Params is the number of
// zones left out of the logical address space (spec.md §3:
// num_data_zones = num_zones - num_log_zones) and the count the GC
// trigger watermark is measured against; it does not cap how many zones
// are in used-log state at once.
func Init(params Params, dev device.Command) (*FTL, error) {
	geo, err := dev.Identify()
	if err != nil {
		return nil, errors.Wrap(err, "ftl: identify")
	}
	if params.LogZones <= 0 || uint32(params.LogZones) >= geo.NumZones {
		return nil, errors.Errorf("ftl: invalid log_zones %d for %d total zones", params.LogZones, geo.NumZones)
	}

	pool := zone.NewPool(dev, geo, 1)
	numDataZones := geo.NumZones - uint32(params.LogZones)
	m := mapper.New(dev, pool, geo, numDataZones)
	collector := gc.New(pool, m, params.LogZones, params.GCTrigger)
	collector.Start()

	logger.Infof("ftl: mounted %s: %d zones (%d pages/zone, %d B/page), %d log zones, gc_trigger=%d",
		params.DeviceName, geo.NumZones, geo.PagesPerZone, geo.PageSize, params.LogZones, params.GCTrigger)

	return &FTL{dev: dev, geo: geo, pool: pool, mapper: m, gc: collector}, nil
}

// Geometry returns the underlying device geometry, used by LFS to size
// its on-device layout.
func (f *FTL) Geometry() device.Geometry { return f.geo }

// Mapper exposes the address mapper for components (LFS) that need to
// size their logical address space against NumBlocks.
func (f *FTL) Mapper() *mapper.Mapper { return f.mapper }

func (f *FTL) checkAligned(byteAddress uint64, size uint32) error {
	ps := uint64(f.geo.PageSize)
	if byteAddress%ps != 0 || uint64(size)%ps != 0 || size == 0 {
		return errors.Errorf("ftl: address %d / size %d is not page-aligned (page size %d)", byteAddress, size, ps)
	}
	return nil
}

// Read reads size bytes starting at byteAddress into buf.
func (f *FTL) Read(byteAddress uint64, buf []byte) error {
	if err := f.checkAligned(byteAddress, uint32(len(buf))); err != nil {
		return err
	}
	lpa := byteAddress / uint64(f.geo.PageSize)
	n := uint32(len(buf)) / f.geo.PageSize
	return f.mapper.Read(lpa, n, buf)
}

// Write writes buf starting at byteAddress.
func (f *FTL) Write(byteAddress uint64, buf []byte) error {
	if err := f.checkAligned(byteAddress, uint32(len(buf))); err != nil {
		return err
	}
	lpa := byteAddress / uint64(f.geo.PageSize)
	return f.mapper.Write(lpa, buf)
}

// Deinit stops the GC worker and waits for it to drain. Writers already
// inside RetireCurrentLogZone are permitted to finish (spec.md §5).
func (f *FTL) Deinit() error {
	f.gc.Stop()
	logger.Info("ftl: unmounted")
	return nil
}
