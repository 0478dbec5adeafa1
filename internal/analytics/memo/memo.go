// Package memo sits between callers and the analytics engine. It caches
// dashboards by content signature and caps how often the engine may run.
package memo

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"fieldops-workers/internal/analytics/engine"
	"fieldops-workers/internal/common/logger"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Computer runs the engine. *engine.Engine implements it.
type Computer interface {
	Run(ctx context.Context, req engine.Request) (*engine.Dashboard, error)
}

type Source string

const (
	SourceLocal    Source = "local"
	SourceRedis    Source = "redis"
	SourceComputed Source = "computed"
	SourceStale    Source = "stale"
)

type Config struct {
	// LocalEntries bounds the in-process cache. Zero disables it.
	LocalEntries int
	// TTL applies to Redis entries.
	TTL       time.Duration
	KeyPrefix string
	// MaxRecomputes engine runs are allowed per RecomputeInterval. Zero means
	// no limit.
	MaxRecomputes     int
	RecomputeInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		LocalEntries:      32,
		TTL:               10 * time.Minute,
		KeyPrefix:         "dashboard:",
		MaxRecomputes:     5,
		RecomputeInterval: 10 * time.Second,
	}
}

type Result struct {
	Dashboard *engine.Dashboard
	Source    Source
	Signature string
}

type Memoizer struct {
	computer Computer
	redis    redis.Cmdable
	cfg      Config
	logger   logger.Logger
	now      func() time.Time

	limiter *rate.Limiter
	group   singleflight.Group

	// local is nil when the in-process cache is disabled.
	local *lru.Cache[string, *engine.Dashboard]

	mu       sync.Mutex
	lastGood *engine.Dashboard
}

// New builds a Memoizer. rdb may be nil to run without the shared cache.
func New(computer Computer, rdb redis.Cmdable, cfg Config, log logger.Logger) *Memoizer {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "dashboard:"
	}
	limit := rate.Inf
	burst := 0
	if cfg.MaxRecomputes > 0 && cfg.RecomputeInterval > 0 {
		limit = rate.Every(cfg.RecomputeInterval / time.Duration(cfg.MaxRecomputes))
		burst = cfg.MaxRecomputes
	}
	m := &Memoizer{
		computer: computer,
		redis:    rdb,
		cfg:      cfg,
		logger:   logger.OrNop(log).WithFields(map[string]interface{}{"component": "dashboard-memo"}),
		now:      time.Now,
		limiter:  rate.NewLimiter(limit, burst),
	}
	if cfg.LocalEntries > 0 {
		// New only fails for a non-positive size.
		m.local, _ = lru.New[string, *engine.Dashboard](cfg.LocalEntries)
	}
	return m
}

// Compute returns the dashboard for req, from cache when possible. Concurrent
// calls for the same signature share one computation. When the recompute cap
// is exhausted the last good dashboard is returned marked stale; without one,
// the engine runs anyway.
func (m *Memoizer) Compute(ctx context.Context, req engine.Request) (*Result, error) {
	if req.Anchor.IsZero() {
		req.Anchor = m.now()
	}
	sig, err := Signature(req)
	if err != nil {
		return nil, err
	}

	if d, ok := m.getLocal(sig); ok {
		return &Result{Dashboard: d, Source: SourceLocal, Signature: sig}, nil
	}

	v, err, _ := m.group.Do(sig, func() (interface{}, error) {
		return m.load(ctx, sig, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (m *Memoizer) load(ctx context.Context, sig string, req engine.Request) (*Result, error) {
	if d, ok := m.getRemote(ctx, sig); ok {
		m.putLocal(sig, d)
		return &Result{Dashboard: d, Source: SourceRedis, Signature: sig}, nil
	}

	if !m.limiter.Allow() {
		if stale := m.staleCopy(); stale != nil {
			m.logger.Warn("recompute limit reached, reusing last dashboard", map[string]interface{}{
				"signature": sig,
				"runId":     stale.RunID,
			})
			return &Result{Dashboard: stale, Source: SourceStale, Signature: sig}, nil
		}
	}

	d, err := m.computer.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errors.New("engine returned no dashboard")
	}

	m.putLocal(sig, d)
	m.putRemote(ctx, sig, d)
	m.mu.Lock()
	m.lastGood = d
	m.mu.Unlock()
	return &Result{Dashboard: d, Source: SourceComputed, Signature: sig}, nil
}

// LastGood returns the most recently computed dashboard, or nil.
func (m *Memoizer) LastGood() *engine.Dashboard {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastGood
}

func (m *Memoizer) staleCopy() *engine.Dashboard {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastGood == nil {
		return nil
	}
	d := *m.lastGood
	d.Stale = true
	return &d
}

func (m *Memoizer) getLocal(sig string) (*engine.Dashboard, bool) {
	if m.local == nil {
		return nil, false
	}
	return m.local.Get(sig)
}

func (m *Memoizer) putLocal(sig string, d *engine.Dashboard) {
	if m.local == nil {
		return
	}
	m.local.Add(sig, d)
}

func (m *Memoizer) getRemote(ctx context.Context, sig string) (*engine.Dashboard, bool) {
	if m.redis == nil {
		return nil, false
	}
	raw, err := m.redis.Get(ctx, m.cfg.KeyPrefix+sig).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			m.logger.Warn("dashboard cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return nil, false
	}
	var d engine.Dashboard
	if err := json.Unmarshal(raw, &d); err != nil {
		m.logger.Warn("dashboard cache entry unreadable", map[string]interface{}{"error": err.Error()})
		return nil, false
	}
	return &d, true
}

func (m *Memoizer) putRemote(ctx context.Context, sig string, d *engine.Dashboard) {
	if m.redis == nil {
		return
	}
	raw, err := json.Marshal(d)
	if err != nil {
		m.logger.Warn("dashboard not cacheable", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := m.redis.Set(ctx, m.cfg.KeyPrefix+sig, raw, m.cfg.TTL).Err(); err != nil {
		m.logger.Warn("dashboard cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
