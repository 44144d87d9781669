package ftl

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/hostftl/zns-ftl/device"
)

func newTestFTL(t *testing.T, logZones, gcTrigger int) (*FTL, device.Geometry) {
	t.Helper()
	geo := device.Geometry{PageSize: 64, PagesPerZone: 4, NumZones: 8, MaxTransferSize: 256, MaxAppendSize: 128}
	dev, err := device.NewSimDevice(filepath.Join(t.TempDir(), "dev.img"), geo)
	if err != nil {
		t.Fatalf("NewSimDevice: %v", err)
	}
	t.Cleanup(func() { dev.Close() })

	f, err := Init(Params{DeviceName: "test0", LogZones: logZones, GCTrigger: gcTrigger}, dev)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { f.Deinit() })
	return f, geo
}

func TestFTLReadWriteRoundTrip(t *testing.T) {
	f, geo := newTestFTL(t, 3, 100)
	data := bytes.Repeat([]byte{0x5A}, int(geo.PageSize)*2)

	if err := f.Write(0, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, len(data))
	if err := f.Read(0, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf, data) {
		t.Fatalf("read back mismatch")
	}
}

func TestFTLRejectsUnalignedIO(t *testing.T) {
	f, _ := newTestFTL(t, 3, 100)
	if err := f.Write(1, make([]byte, 64)); err == nil {
		t.Fatalf("expected an alignment error for a non-page-aligned address")
	}
	if err := f.Read(0, make([]byte, 3)); err == nil {
		t.Fatalf("expected an alignment error for a non-page-sized buffer")
	}
}

func TestFTLInitRejectsBadLogZones(t *testing.T) {
	geo := device.Geometry{PageSize: 64, PagesPerZone: 4, NumZones: 4, MaxTransferSize: 256, MaxAppendSize: 128}
	dev, err := device.NewSimDevice(filepath.Join(t.TempDir(), "dev.img"), geo)
	if err != nil {
		t.Fatalf("NewSimDevice: %v", err)
	}
	defer dev.Close()

	if _, err := Init(Params{DeviceName: "test0", LogZones: 0}, dev); err == nil {
		t.Fatalf("expected an error for log_zones <= 0")
	}
	if _, err := Init(Params{DeviceName: "test0", LogZones: 4}, dev); err == nil {
		t.Fatalf("expected an error for log_zones == num_zones")
	}
}
