package mapper

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/hostftl/zns-ftl/device"
	"github.com/hostftl/zns-ftl/zone"
)

func newTestMapper(t *testing.T, numDataZones, numLogZones uint32) (*Mapper, *zone.Pool, device.Geometry) {
	t.Helper()
	geo := device.Geometry{PageSize: 64, PagesPerZone: 4, NumZones: numDataZones + numLogZones, MaxTransferSize: 256, MaxAppendSize: 128}
	dev, err := device.NewSimDevice(filepath.Join(t.TempDir(), "dev.img"), geo)
	if err != nil {
		t.Fatalf("NewSimDevice: %v", err)
	}
	t.Cleanup(func() { dev.Close() })

	pool := zone.NewPool(dev, geo, 1)
	m := New(dev, pool, geo, numDataZones)
	return m, pool, geo
}

func page(pageSize uint32, b byte) []byte { return bytes.Repeat([]byte{b}, int(pageSize)) }

func TestMapperUnmappedReadsZero(t *testing.T) {
	m, _, geo := newTestMapper(t, 2, 2)
	buf := make([]byte, geo.PageSize)
	if err := m.Read(0, 1, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf, make([]byte, geo.PageSize)) {
		t.Fatalf("unmapped page should read back as zero")
	}
}

func TestMapperLogAppendThenRead(t *testing.T) {
	m, _, geo := newTestMapper(t, 2, 2)
	data := page(geo.PageSize, 0xAA)
	if err := m.Write(0, data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	buf := make([]byte, geo.PageSize)
	if err := m.Read(0, 1, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf, data) {
		t.Fatalf("read back mismatch after log-append write")
	}
}

func TestMapperOverwriteRemaps(t *testing.T) {
	m, _, geo := newTestMapper(t, 2, 2)
	first := page(geo.PageSize, 0x11)
	second := page(geo.PageSize, 0x22)

	if err := m.Write(0, first); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := m.Write(0, second); err != nil {
		t.Fatalf("second write: %v", err)
	}

	buf := make([]byte, geo.PageSize)
	if err := m.Read(0, 1, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf, second) {
		t.Fatalf("expected the newest write to win")
	}
}

func TestMapperChecksumMismatchIsDetected(t *testing.T) {
	m, _, geo := newTestMapper(t, 2, 2)
	data := page(geo.PageSize, 0x55)
	if err := m.Write(0, data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	b, _ := m.blockFor(0)
	e, ok := b.find(0)
	if !ok {
		t.Fatalf("expected a page-map entry for lpa 0")
	}
	e.Checksum ^= 0xFF
	b.insert(e)

	buf := make([]byte, geo.PageSize)
	if err := m.Read(0, 1, buf); err == nil {
		t.Fatalf("expected a checksum mismatch error")
	}
}

func TestMapperFastPathZeroPadsGap(t *testing.T) {
	m, pool, geo := newTestMapper(t, 2, 2)
	b := m.Block(0)
	dz, err := pool.PopFreeForGC()
	if err != nil {
		t.Fatalf("PopFreeForGC: %v", err)
	}
	b.endMerge(dz)

	payload := page(geo.PageSize, 0x77)
	if err := m.fastAppend(b, dz, 2, payload); err != nil {
		t.Fatalf("fastAppend: %v", err)
	}

	buf := make([]byte, geo.PageSize)
	if err := m.Read(b.BaseLPA, 1, buf); err != nil {
		t.Fatalf("Read padded page: %v", err)
	}
	if !bytes.Equal(buf, make([]byte, geo.PageSize)) {
		t.Fatalf("padded page should read back as zero")
	}

	if err := m.Read(b.BaseLPA+2, 1, buf); err != nil {
		t.Fatalf("Read appended page: %v", err)
	}
	if !bytes.Equal(buf, payload) {
		t.Fatalf("fast-appended page mismatch")
	}
}
