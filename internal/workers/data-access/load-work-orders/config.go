// internal/workers/data-access/load-work-orders/config.go
package loadworkorders

import (
	"time"

	"fieldops-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	Table   string
	// Source is used when the job does not name one. Empty means any source.
	Source   string
	CacheTTL time.Duration
}

func LoadConfig(appCfg *config.Config) *Config {
	cfg := &Config{
		Timeout:  10 * time.Second,
		Table:    "work_order_snapshots",
		CacheTTL: 60 * time.Second,
	}
	if appCfg == nil {
		return cfg
	}
	if appCfg.Snapshots.Table != "" {
		cfg.Table = appCfg.Snapshots.Table
	}
	cfg.Source = appCfg.Snapshots.Source
	cfg.CacheTTL = time.Duration(appCfg.Snapshots.CacheTTL) * time.Second
	if w, ok := appCfg.Workers[TaskType]; ok && w.Timeout > 0 {
		cfg.Timeout = time.Duration(w.Timeout) * time.Millisecond
	}
	return cfg
}
