// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Server    ServerConfig            `mapstructure:"server"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Search    SearchConfig            `mapstructure:"search"`
	Snapshots SnapshotConfig          `mapstructure:"snapshots"`
	Analytics AnalyticsConfig         `mapstructure:"analytics"`
	Memo      MemoConfig              `mapstructure:"memo"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	APIs      APIsConfig              `mapstructure:"apis"`
	Logging   LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	Insecure       bool   `mapstructure:"insecure"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // single address shorthand
}

// GetAddresses returns Addresses, or URL when no list is configured.
func (e ElasticsearchConfig) GetAddresses() []string {
	if len(e.Addresses) > 0 {
		return e.Addresses
	}
	if e.URL != "" {
		return []string{e.URL}
	}
	return nil
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Domain Configuration ---

// SearchConfig names the Elasticsearch indices the workers read.
type SearchConfig struct {
	DispenserIndex string `mapstructure:"dispenser_index"`
	MaxOrderIDs    int    `mapstructure:"max_order_ids"`
}

// SnapshotConfig describes where scraped work order snapshots are stored.
type SnapshotConfig struct {
	Table    string `mapstructure:"table"`
	Source   string `mapstructure:"source"`
	CacheTTL int    `mapstructure:"cache_ttl"` // seconds, 0 disables caching
}

// AnalyticsConfig holds the engine defaults. Job variables may override the
// week days per request.
type AnalyticsConfig struct {
	WeekStart             string `mapstructure:"week_start"`
	WeekEnd               string `mapstructure:"week_end"`
	Timezone              string `mapstructure:"timezone"`
	CalculatorParallelism int    `mapstructure:"calculator_parallelism"`
	FallbackPartNumber    string `mapstructure:"fallback_part_number"`
}

// Location resolves Timezone. An empty or unknown zone yields UTC and, in the
// unknown case, an error.
func (a AnalyticsConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC, fmt.Errorf("analytics.timezone: %w", err)
	}
	return loc, nil
}

// MemoConfig configures dashboard caching and the recompute guard.
type MemoConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	LocalEntries      int    `mapstructure:"local_entries"`
	TTL               int    `mapstructure:"ttl"` // seconds
	KeyPrefix         string `mapstructure:"key_prefix"`
	MaxRecomputes     int    `mapstructure:"max_recomputes"`
	RecomputeInterval int    `mapstructure:"recompute_interval"` // milliseconds
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	FilterCalculator FilterCalculatorConfig `mapstructure:"filter_calculator"`
}

type FilterCalculatorConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds

	// Circuit breaker settings.
	MaxFailures   int `mapstructure:"max_failures"`
	OpenTimeout   int `mapstructure:"open_timeout"` // milliseconds
	HalfOpenMax   int `mapstructure:"half_open_max"`
	ResetInterval int `mapstructure:"reset_interval"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
