package mapper

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/hostftl/zns-ftl/device"
	"github.com/hostftl/zns-ftl/zone"
)

func TestVictimBlockRoundRobinFindsNonEmpty(t *testing.T) {
	m, _, _ := newTestMapper(t, 2, 2)
	if _, ok := m.VictimBlock(-1); ok {
		t.Fatalf("expected no victim on a clean mapper")
	}

	if err := m.Write(m.Block(1).BaseLPA, page(m.pageSize, 0x9)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	idx, ok := m.VictimBlock(-1)
	if !ok || idx != 1 {
		t.Fatalf("VictimBlock = (%d, %v), want (1, true)", idx, ok)
	}
}

func TestMergeConsolidatesLogIntoDataZone(t *testing.T) {
	geo := device.Geometry{PageSize: 64, PagesPerZone: 4, NumZones: 4, MaxTransferSize: 256, MaxAppendSize: 128}
	dev, err := device.NewSimDevice(filepath.Join(t.TempDir(), "dev.img"), geo)
	if err != nil {
		t.Fatalf("NewSimDevice: %v", err)
	}
	defer dev.Close()

	pool := zone.NewPool(dev, geo, 1)
	m := New(dev, pool, geo, 1) // one data zone's worth of logical block, 3 zones left for log+gc

	want := make([][]byte, geo.PagesPerZone)
	for i := range want {
		want[i] = page(geo.PageSize, byte(i+1))
		if err := m.Write(uint64(i), want[i]); err != nil {
			t.Fatalf("Write page %d: %v", i, err)
		}
	}

	idx, ok := m.VictimBlock(-1)
	if !ok || idx != 0 {
		t.Fatalf("VictimBlock = (%d, %v), want (0, true)", idx, ok)
	}

	newZone, err := pool.PopFreeForGC()
	if err != nil {
		t.Fatalf("PopFreeForGC: %v", err)
	}
	_, hadPrior, err := m.Merge(idx, newZone)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if hadPrior {
		t.Fatalf("expected no prior data zone on a block merged for the first time")
	}

	dz, has := m.Block(idx).DataZone()
	if !has || dz.ID != newZone.ID {
		t.Fatalf("expected the block's data zone to be the merge target")
	}

	buf := make([]byte, geo.PageSize)
	for i := range want {
		if err := m.Read(uint64(i), 1, buf); err != nil {
			t.Fatalf("Read page %d after merge: %v", i, err)
		}
		if !bytes.Equal(buf, want[i]) {
			t.Fatalf("page %d mismatch after merge", i)
		}
	}
}
