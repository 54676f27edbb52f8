package manager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadKernelConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadKernelConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, DefaultKernelConfig(), cfg)
}

func TestLoadKernelConfigOverlayWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kernel.toml")
	contents := "old_ratio = 0.5\nold_threshold_ms = 250\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadKernelConfig(path)
	require.NoError(t, err)
	require.Equal(t, 0.5, cfg.OldRatio)
	require.Equal(t, 250, cfg.OldThresholdMs)
	require.Equal(t, DefaultKernelConfig().TrxSysWriteMargin, cfg.TrxSysWriteMargin)
}

func TestValidateClampsOutOfRange(t *testing.T) {
	cfg := &KernelConfig{OldRatio: 5, OldThresholdMs: -1, TrxSysWriteMargin: 0, RollbackSegments: -3}
	cfg.Validate()
	require.Equal(t, 0.95, cfg.OldRatio)
	require.Equal(t, 0, cfg.OldThresholdMs)
	require.Equal(t, 256, cfg.TrxSysWriteMargin)
	require.Equal(t, 256, cfg.RollbackSegments)
}
