// Package conf loads the FTL's mount parameters from an ini file, in
// the style of the server's own configuration loader: a Cfg struct
// with sane defaults, overridden section-by-section from the file at
// Load time.
package conf

import (
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// CommandLineArgs is the minimal flag surface zonectl accepts.
type CommandLineArgs struct {
	ConfigPath string
}

// Cfg is the bootstrap configuration for one mounted FTL+LFS instance.
type Cfg struct {
	Raw *ini.File

	DeviceName string
	LogZones   int
	GCTrigger  int
	ForceReset bool

	ShadowCheckpointPath string
	LogLevel             string
	LogFile              string
}

// NewCfg returns a Cfg with the defaults spec.md §6 lists.
func NewCfg() *Cfg {
	return &Cfg{
		Raw:        ini.Empty(),
		DeviceName: "zns0",
		LogZones:   4,
		GCTrigger:  2,
		ForceReset: false,
		LogLevel:   "info",
	}
}

// Load reads args.ConfigPath (defaulting to "zonectl.ini" in the
// current directory) and overrides the default fields from its
// "ftl" and "log" sections. A missing file is not an error: the
// defaults stand, mirroring a first-run mount.
func (cfg *Cfg) Load(args *CommandLineArgs) (*Cfg, error) {
	path := args.ConfigPath
	if path == "" {
		path = "zonectl.ini"
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "conf: resolve config path")
	}

	iniFile, err := ini.LooseLoad(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "conf: load %s", abs)
	}
	cfg.Raw = iniFile

	ftlSec := iniFile.Section("ftl")
	cfg.DeviceName = ftlSec.Key("device_name").MustString(cfg.DeviceName)
	cfg.LogZones = ftlSec.Key("log_zones").MustInt(cfg.LogZones)
	cfg.GCTrigger = ftlSec.Key("gc_trigger").MustInt(cfg.GCTrigger)
	cfg.ForceReset = ftlSec.Key("force_reset").MustBool(cfg.ForceReset)
	cfg.ShadowCheckpointPath = ftlSec.Key("shadow_checkpoint_path").MustString("")

	logSec := iniFile.Section("log")
	cfg.LogLevel = logSec.Key("level").MustString(cfg.LogLevel)
	cfg.LogFile = logSec.Key("file").MustString("")

	return cfg, nil
}
