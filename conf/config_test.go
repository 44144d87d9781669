package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zonectl.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadRoundTripsIniIntoCfg(t *testing.T) {
	path := writeFixture(t, `
[ftl]
device_name = zns1
log_zones = 6
gc_trigger = 3
force_reset = true
shadow_checkpoint_path = /tmp/shadow.snap

[log]
level = debug
file = /tmp/zonectl.log
`)

	cfg, err := NewCfg().Load(&CommandLineArgs{ConfigPath: path})
	require.NoError(t, err)

	assert.Equal(t, "zns1", cfg.DeviceName)
	assert.Equal(t, 6, cfg.LogZones)
	assert.Equal(t, 3, cfg.GCTrigger)
	assert.True(t, cfg.ForceReset)
	assert.Equal(t, "/tmp/shadow.snap", cfg.ShadowCheckpointPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/zonectl.log", cfg.LogFile)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.ini")

	cfg, err := NewCfg().Load(&CommandLineArgs{ConfigPath: path})
	require.NoError(t, err)

	assert.Equal(t, "zns0", cfg.DeviceName)
	assert.Equal(t, 4, cfg.LogZones)
	assert.Equal(t, 2, cfg.GCTrigger)
	assert.False(t, cfg.ForceReset)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadPartialSectionKeepsRemainingDefaults(t *testing.T) {
	path := writeFixture(t, "[ftl]\nlog_zones = 8\n")

	cfg, err := NewCfg().Load(&CommandLineArgs{ConfigPath: path})
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.LogZones)
	assert.Equal(t, "zns0", cfg.DeviceName, "unset key should keep the default")
	assert.Equal(t, 2, cfg.GCTrigger, "unset key should keep the default")
}
