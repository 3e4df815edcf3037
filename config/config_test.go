package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Mempool.MaxAncestors != 25 {
		t.Errorf("MaxAncestors = %d, want 25", cfg.Mempool.MaxAncestors)
	}
	if !cfg.Mempool.RequireStandard {
		t.Errorf("RequireStandard = false, want true by default")
	}
	if cfg.Mempool.ReplaceByFee {
		t.Errorf("ReplaceByFee = true, want false by default")
	}
	if cfg.Mempool.RelayPriority {
		t.Errorf("RelayPriority = true, want false by default")
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	os.Setenv("MEMPOOL_MAX_ANCESTORS", "50")
	os.Setenv("MEMPOOL_EXPIRY", "1h")
	defer os.Unsetenv("MEMPOOL_MAX_ANCESTORS")
	defer os.Unsetenv("MEMPOOL_EXPIRY")

	cfg := Load()

	if cfg.Mempool.MaxAncestors != 50 {
		t.Errorf("MaxAncestors = %d, want 50", cfg.Mempool.MaxAncestors)
	}
	if cfg.Mempool.ExpiryTime != time.Hour {
		t.Errorf("ExpiryTime = %v, want 1h", cfg.Mempool.ExpiryTime)
	}
}
