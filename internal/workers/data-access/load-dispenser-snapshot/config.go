// internal/workers/data-access/load-dispenser-snapshot/config.go
package loaddispensersnapshot

import (
	"time"

	"fieldops-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	Index   string
	// BatchSize caps the order ids sent in one search request.
	BatchSize int
}

func LoadConfig(appCfg *config.Config) *Config {
	cfg := &Config{
		Timeout:   10 * time.Second,
		Index:     "dispenser-scrapes",
		BatchSize: 500,
	}
	if appCfg == nil {
		return cfg
	}
	if appCfg.Search.DispenserIndex != "" {
		cfg.Index = appCfg.Search.DispenserIndex
	}
	if appCfg.Search.MaxOrderIDs > 0 {
		cfg.BatchSize = appCfg.Search.MaxOrderIDs
	}
	if w, ok := appCfg.Workers[TaskType]; ok && w.Timeout > 0 {
		cfg.Timeout = time.Duration(w.Timeout) * time.Millisecond
	}
	return cfg
}
