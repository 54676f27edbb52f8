package manager

import (
	"os"

	"github.com/juju/errors"
	"github.com/pelletier/go-toml"
)

// KernelConfig holds the tunables for the mini-transaction/cursor/undo
// core that don't map onto server/conf.Cfg's mysqld-style ini keys -
// these are closer to InnoDB's innodb_* system variables than to
// connection or session settings, so they get their own small TOML
// overlay instead of growing the ini schema.
type KernelConfig struct {
	BufferPoolFrames  int     `toml:"buffer_pool_frames"`
	OldRatio          float64 `toml:"old_ratio"`
	OldThresholdMs    int     `toml:"old_threshold_ms"`
	TrxSysWriteMargin int     `toml:"trx_sys_write_margin"`
	RollbackSegments  int     `toml:"rollback_segments"`
}

// DefaultKernelConfig matches the constants the core packages fall back to
// when no overlay file is present (buf pool §4.4 defaults, trx sys
// §4.3's TRX_SYS_TRX_ID_WRITE_MARGIN, NRsegs).
func DefaultKernelConfig() *KernelConfig {
	return &KernelConfig{
		BufferPoolFrames:  8192,
		OldRatio:          0.37,
		OldThresholdMs:    1000,
		TrxSysWriteMargin: 256,
		RollbackSegments:  256,
	}
}

// LoadKernelConfig reads a TOML overlay from path, starting from
// DefaultKernelConfig and overwriting only the keys present in the file.
// A missing file is not an error - it just means every default stands.
func LoadKernelConfig(path string) (*KernelConfig, error) {
	cfg := DefaultKernelConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Annotatef(err, "manager: reading kernel config %q", path)
	}

	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, errors.Annotatef(err, "manager: parsing kernel config %q", path)
	}
	overlay := &KernelConfig{}
	if err := toml.Unmarshal(data, overlay); err != nil {
		return nil, errors.Annotatef(err, "manager: parsing kernel config %q", path)
	}
	if tree.Has("buffer_pool_frames") {
		cfg.BufferPoolFrames = overlay.BufferPoolFrames
	}
	if tree.Has("old_ratio") {
		cfg.OldRatio = overlay.OldRatio
	}
	if tree.Has("old_threshold_ms") {
		cfg.OldThresholdMs = overlay.OldThresholdMs
	}
	if tree.Has("trx_sys_write_margin") {
		cfg.TrxSysWriteMargin = overlay.TrxSysWriteMargin
	}
	if tree.Has("rollback_segments") {
		cfg.RollbackSegments = overlay.RollbackSegments
	}
	return cfg, nil
}

// Validate clamps out-of-range values to the legal band instead of
// failing startup over a typo'd overlay (spec's buf_LRU_old_ratio_update
// clamp, trx sys's write margin must be positive).
func (c *KernelConfig) Validate() {
	if c.OldRatio < 0.05 {
		c.OldRatio = 0.05
	}
	if c.OldRatio > 0.95 {
		c.OldRatio = 0.95
	}
	if c.OldThresholdMs < 0 {
		c.OldThresholdMs = 0
	}
	if c.TrxSysWriteMargin <= 0 {
		c.TrxSysWriteMargin = 256
	}
	if c.RollbackSegments <= 0 {
		c.RollbackSegments = 256
	}
}
