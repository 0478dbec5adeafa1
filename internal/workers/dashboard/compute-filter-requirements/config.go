// internal/workers/dashboard/compute-filter-requirements/config.go
package computefilterrequirements

import (
	"time"

	"fieldops-workers/internal/analytics/filters"
	"fieldops-workers/internal/common/config"
)

type Config struct {
	Timeout      time.Duration
	Parallelism  int
	FallbackPart string
}

func LoadConfig(appCfg *config.Config) *Config {
	cfg := &Config{
		Timeout:      30 * time.Second,
		Parallelism:  4,
		FallbackPart: filters.DefaultPartNumber,
	}
	if appCfg == nil {
		return cfg
	}
	if appCfg.Analytics.CalculatorParallelism > 0 {
		cfg.Parallelism = appCfg.Analytics.CalculatorParallelism
	}
	if appCfg.Analytics.FallbackPartNumber != "" {
		cfg.FallbackPart = appCfg.Analytics.FallbackPartNumber
	}
	if w, ok := appCfg.Workers[TaskType]; ok && w.Timeout > 0 {
		cfg.Timeout = time.Duration(w.Timeout) * time.Millisecond
	}
	return cfg
}
