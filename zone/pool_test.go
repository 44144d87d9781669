package zone

import (
	"testing"
	"time"

	"github.com/hostftl/zns-ftl/device"
	"github.com/smartystreets/assertions"
)

type fakeDevice struct {
	geo    device.Geometry
	resets []uint64
}

func (f *fakeDevice) Identify() (device.Geometry, error) { return f.geo, nil }
func (f *fakeDevice) Read(ppa uint64, buf []byte) error  { return nil }
func (f *fakeDevice) Append(sppa uint64, buf []byte) (uint64, error) {
	return sppa, nil
}
func (f *fakeDevice) ZoneReset(sppa uint64) error {
	f.resets = append(f.resets, sppa)
	return nil
}

func testPool(numZones, pagesPerZone, reserve uint32) (*Pool, *fakeDevice) {
	geo := device.Geometry{PageSize: 512, PagesPerZone: pagesPerZone, NumZones: numZones}
	dev := &fakeDevice{geo: geo}
	return NewPool(dev, geo, reserve), dev
}

func TestPoolAcquireAndRetire(t *testing.T) {
	p, _ := testPool(4, 8, 1)
	z := p.AcquireFreshLogZone()
	if z.WritePtr() != 0 || z.ValidPages() != 0 {
		t.Fatalf("fresh zone should start clean")
	}

	if _, has := p.CurrentLogZone(); !has {
		t.Fatalf("expected a current log zone")
	}

	id, err := p.RetireCurrentLogZone()
	if err != nil {
		t.Fatalf("RetireCurrentLogZone: %v", err)
	}
	if id != z.ID {
		t.Fatalf("retired id %d, want %d", id, z.ID)
	}
	if _, has := p.CurrentLogZone(); has {
		t.Fatalf("expected no current log zone after retire")
	}
	_, numUsedLog, _ := p.Stats()
	if msg := assertions.ShouldEqual(numUsedLog, 1); msg != "" {
		t.Fatal(msg)
	}
}

func TestPoolReserveBlocksWriterPath(t *testing.T) {
	// 2 zones, reserve 1: the writer path can acquire at most one zone
	// before blocking, since AcquireFreshLogZone refuses to dip into the
	// reserved zone.
	p, _ := testPool(2, 4, 1)
	first := p.AcquireFreshLogZone()

	done := make(chan struct{})
	go func() {
		p.AcquireFreshLogZone()
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("AcquireFreshLogZone should have blocked with only the reserve left")
	case <-time.After(50 * time.Millisecond):
	}

	// GC can still take the reserved zone without blocking.
	gcZone, err := p.PopFreeForGC()
	if err != nil {
		t.Fatalf("PopFreeForGC: %v", err)
	}
	if err := p.ReleaseEmptyZone(gcZone); err != nil {
		t.Fatalf("ReleaseEmptyZone: %v", err)
	}
	// Handing the reserved zone back only restores the reserve; the
	// writer needs a free zone beyond it, so release the first log zone.
	if err := p.ReleaseEmptyZone(first); err != nil {
		t.Fatalf("ReleaseEmptyZone: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("AcquireFreshLogZone should have unblocked once a zone was released")
	}
}

func TestPoolReclaimEmptyUsedLogZones(t *testing.T) {
	p, dev := testPool(3, 4, 1)
	z := p.AcquireFreshLogZone()
	z.IncValidPages(2)
	id, err := p.RetireCurrentLogZone()
	if err != nil {
		t.Fatalf("RetireCurrentLogZone: %v", err)
	}

	n, err := p.ReclaimEmptyUsedLogZones()
	if err != nil {
		t.Fatalf("ReclaimEmptyUsedLogZones: %v", err)
	}
	if n != 0 {
		t.Fatalf("reclaimed %d zones, want 0 (still has valid pages)", n)
	}

	p.Zone(id).DecValidPages(2)
	n, err = p.ReclaimEmptyUsedLogZones()
	if err != nil {
		t.Fatalf("ReclaimEmptyUsedLogZones: %v", err)
	}
	if n != 1 {
		t.Fatalf("reclaimed %d zones, want 1", n)
	}
	if len(dev.resets) != 1 {
		t.Fatalf("expected one device reset, got %d", len(dev.resets))
	}
}

func TestZoneWritePtrOverflowPanics(t *testing.T) {
	z := newZone(0, 0, 4)
	z.AdvanceWritePtr(4)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on write pointer overflow")
		}
	}()
	z.AdvanceWritePtr(1)
}

func TestZoneValidPageUnderflowPanics(t *testing.T) {
	z := newZone(0, 0, 4)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on valid page underflow")
		}
	}()
	z.DecValidPages(1)
}
