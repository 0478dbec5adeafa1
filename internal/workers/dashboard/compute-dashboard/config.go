// internal/workers/dashboard/compute-dashboard/config.go
package computedashboard

import (
	"time"

	"fieldops-workers/internal/analytics/window"
	"fieldops-workers/internal/common/config"
)

type Config struct {
	Timeout   time.Duration
	WeekStart time.Weekday
	WeekEnd   time.Weekday
	// Location reads order dates that carry no zone.
	Location *time.Location
}

func LoadConfig(appCfg *config.Config) (*Config, error) {
	cfg := &Config{
		Timeout:   30 * time.Second,
		WeekStart: window.DefaultWeekStart,
		WeekEnd:   window.DefaultWeekEnd,
		Location:  time.UTC,
	}
	if appCfg == nil {
		return cfg, nil
	}

	var err error
	if cfg.WeekStart, err = window.ParseWeekdayOr(appCfg.Analytics.WeekStart, window.DefaultWeekStart); err != nil {
		return nil, err
	}
	if cfg.WeekEnd, err = window.ParseWeekdayOr(appCfg.Analytics.WeekEnd, window.DefaultWeekEnd); err != nil {
		return nil, err
	}
	if cfg.Location, err = appCfg.Analytics.Location(); err != nil {
		return nil, err
	}
	if w, ok := appCfg.Workers[TaskType]; ok && w.Timeout > 0 {
		cfg.Timeout = time.Duration(w.Timeout) * time.Millisecond
	}
	return cfg, nil
}
