// Command zonectl mounts a ZNS FTL + LFS instance on a simulated device
// and prints a one-shot diagnostics snapshot of it as a table or as JSON
// (spec.md §6's CLI domain addition).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/hostftl/zns-ftl/conf"
	"github.com/hostftl/zns-ftl/device"
	"github.com/hostftl/zns-ftl/ftl"
	"github.com/hostftl/zns-ftl/lfs"
	"github.com/hostftl/zns-ftl/logger"
)

const help = `
zonectl: host-managed ZNS FTL + log-structured filesystem diagnostics.

usage:
  zonectl -configPath <path> [-json 1] [-device <path>] [-zones N] [-pages-per-zone N] [-page-size N]
`

func main() {
	var configPath, devicePath, outputFormat string
	var zones, pagesPerZone, pageSize uint
	flag.StringVar(&configPath, "configPath", "", "ini config file path")
	flag.StringVar(&devicePath, "device", "zonectl.img", "backing file for the simulated device")
	flag.StringVar(&outputFormat, "json", "", "'1' to print json instead of a table")
	flag.UintVar(&zones, "zones", 32, "simulated device zone count")
	flag.UintVar(&pagesPerZone, "pages-per-zone", 64, "simulated device pages per zone")
	flag.UintVar(&pageSize, "page-size", 4096, "simulated device page size in bytes")
	flag.Parse()

	cfg, err := conf.NewCfg().Load(&conf.CommandLineArgs{ConfigPath: configPath})
	if err != nil {
		fmt.Fprintln(os.Stderr, help)
		panic(err)
	}
	if err := logger.Init(logger.Config{LogLevel: cfg.LogLevel, InfoLogPath: cfg.LogFile}); err != nil {
		panic(err)
	}

	geo := device.Geometry{
		PageSize:        uint32(pageSize),
		PagesPerZone:    uint32(pagesPerZone),
		NumZones:        uint32(zones),
		MaxTransferSize: uint32(pageSize) * 32,
		MaxAppendSize:   uint32(pageSize) * 32,
	}
	dev, err := device.NewSimDevice(devicePath, geo)
	if err != nil {
		panic(err)
	}
	defer dev.Close()

	f, err := ftl.Init(ftl.Params{
		DeviceName: cfg.DeviceName,
		LogZones:   cfg.LogZones,
		GCTrigger:  cfg.GCTrigger,
		ForceReset: cfg.ForceReset,
	}, dev)
	if err != nil {
		panic(err)
	}
	defer f.Deinit()

	fs, err := lfs.Mount(f)
	if err != nil {
		panic(err)
	}
	defer fs.Unmount(cfg.ShadowCheckpointPath)

	snapshot := buildSnapshot(f, fs)
	if outputFormat == "1" {
		printJSON(snapshot)
	} else {
		printTable(snapshot)
	}
}

type snapshot struct {
	NumZones     uint32   `json:"num_zones"`
	PagesPerZone uint32   `json:"pages_per_zone"`
	PageSize     uint32   `json:"page_size"`
	NumBlocks    int      `json:"num_blocks"`
	RootEntries  []string `json:"root_entries"`
}

func buildSnapshot(f *ftl.FTL, fs *lfs.FS) snapshot {
	entries, err := fs.ListChildren("/")
	if err != nil {
		entries = nil
	}
	geo := f.Geometry()
	return snapshot{
		NumZones:     geo.NumZones,
		PagesPerZone: geo.PagesPerZone,
		PageSize:     geo.PageSize,
		NumBlocks:    f.Mapper().NumBlocks(),
		RootEntries:  entries,
	}
}

func printTable(s snapshot) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "num_zones\t%d\n", s.NumZones)
	fmt.Fprintf(w, "pages_per_zone\t%d\n", s.PagesPerZone)
	fmt.Fprintf(w, "page_size\t%d\n", s.PageSize)
	fmt.Fprintf(w, "num_blocks\t%d\n", s.NumBlocks)
	fmt.Fprintf(w, "root_entries\t%v\n", s.RootEntries)
	w.Flush()
}

func printJSON(s snapshot) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(s)
}
