package gc

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hostftl/zns-ftl/device"
	"github.com/hostftl/zns-ftl/mapper"
	"github.com/hostftl/zns-ftl/zone"
)

func TestCollectorMergesUnderWatermark(t *testing.T) {
	geo := device.Geometry{PageSize: 64, PagesPerZone: 4, NumZones: 4, MaxTransferSize: 256, MaxAppendSize: 128}
	dev, err := device.NewSimDevice(filepath.Join(t.TempDir(), "dev.img"), geo)
	if err != nil {
		t.Fatalf("NewSimDevice: %v", err)
	}
	defer dev.Close()

	pool := zone.NewPool(dev, geo, 1)
	m := mapper.New(dev, pool, geo, 1)

	payload := make([]byte, geo.PageSize*geo.PagesPerZone)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := m.Write(0, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// numLogZones=3, trigger=2: numLog - numUsedLog starts at 3-1=2,
	// which is not > trigger, so the collector should run immediately.
	c := New(pool, m, 3, 2)
	c.Start()
	defer c.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := m.VictimBlock(-1); !ok {
			return // merged away
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("collector never merged the dirty block")
}

func TestCollectorStopIsIdempotentAndWaits(t *testing.T) {
	geo := device.Geometry{PageSize: 64, PagesPerZone: 4, NumZones: 4, MaxTransferSize: 256, MaxAppendSize: 128}
	dev, err := device.NewSimDevice(filepath.Join(t.TempDir(), "dev.img"), geo)
	if err != nil {
		t.Fatalf("NewSimDevice: %v", err)
	}
	defer dev.Close()

	pool := zone.NewPool(dev, geo, 1)
	m := mapper.New(dev, pool, geo, 1)
	c := New(pool, m, 3, 100) // trigger above numLog: collector cycles continuously, finding no victim

	c.Start()
	c.Stop()
	c.Stop() // must not panic or deadlock
}

func TestCollectorStartTwicePanics(t *testing.T) {
	geo := device.Geometry{PageSize: 64, PagesPerZone: 4, NumZones: 2, MaxTransferSize: 128, MaxAppendSize: 128}
	dev, err := device.NewSimDevice(filepath.Join(t.TempDir(), "dev.img"), geo)
	if err != nil {
		t.Fatalf("NewSimDevice: %v", err)
	}
	defer dev.Close()

	pool := zone.NewPool(dev, geo, 1)
	m := mapper.New(dev, pool, geo, 1)
	c := New(pool, m, 1, 100)
	c.Start()
	defer c.Stop()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on double Start")
		}
	}()
	c.Start()
}
