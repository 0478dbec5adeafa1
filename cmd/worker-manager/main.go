// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"fieldops-workers/internal/analytics/engine"
	"fieldops-workers/internal/analytics/filters"
	"fieldops-workers/internal/analytics/memo"
	"fieldops-workers/internal/common/camunda"
	"fieldops-workers/internal/common/config"
	"fieldops-workers/internal/common/database"
	"fieldops-workers/internal/common/filtercalc"
	"fieldops-workers/internal/common/logger"
	"fieldops-workers/internal/common/observability"

	cd "fieldops-workers/internal/workers/dashboard/compute-dashboard"
	cfr "fieldops-workers/internal/workers/dashboard/compute-filter-requirements"
	lds "fieldops-workers/internal/workers/data-access/load-dispenser-snapshot"
	lwo "fieldops-workers/internal/workers/data-access/load-work-orders"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
			if delay > 30*time.Second {
				delay = 30 * time.Second
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

type pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting worker manager",
		zap.String("app", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name, log)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(ctx); err != nil {
			zapLog.Error("observability shutdown failed", zap.Error(err))
		}
	}()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var connErr error
		zeebe, connErr = camunda.NewClient(cfg.Camunda)
		return connErr
	}, 10, 2*time.Second, zapLog, "Zeebe connection")
	if err != nil {
		zapLog.Fatal("failed to connect to Zeebe", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("connected to Zeebe", zap.String("address", cfg.Camunda.BrokerAddress))

	var checks []pinger

	// --- Postgres ---
	var pg *database.PostgresClient
	if config.IsWorkerEnabled(cfg, lwo.TaskType) {
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			zapLog.Fatal("failed to open postgres pool", zap.Error(err))
		}
		err = retryWithBackoff(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("failed to connect to PostgreSQL", zap.Error(err))
		}
		defer pg.Close()
		checks = append(checks, pg)
		zapLog.Info("connected to PostgreSQL")
	}

	// --- Elasticsearch ---
	var esClient *database.ElasticsearchClient
	if config.IsWorkerEnabled(cfg, lds.TaskType) {
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Fatal("failed to create Elasticsearch client", zap.Error(err))
		}
		err = retryWithBackoff(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("failed to connect to Elasticsearch", zap.Error(err))
		}
		checks = append(checks, esClient)
		zapLog.Info("connected to Elasticsearch")
	}

	// --- Redis ---
	// Shared by the snapshot cache and the dashboard memo. Redis is optional:
	// both fall back to uncached operation when it is unreachable.
	var redisClient *database.RedisClient
	if cfg.Database.Redis.Address != "" {
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			zapLog.Fatal("failed to create Redis client", zap.Error(err))
		}
		err = retryWithBackoff(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return redisClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Warn("continuing without Redis", zap.Error(err))
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
			checks = append(checks, redisClient)
			zapLog.Info("connected to Redis")
		}
	}

	// --- Analytics ---
	var calc filters.Calculator
	var calcClient *filtercalc.Client
	if cfg.APIs.FilterCalculator.BaseURL != "" {
		calcClient = filtercalc.New(cfg.APIs.FilterCalculator, log)
		calc = calcClient
	} else {
		zapLog.Warn("no filter calculator configured, every order uses the fallback part",
			zap.String("fallbackPart", cfg.Analytics.FallbackPartNumber))
	}

	eng := engine.New(calc, log,
		engine.WithParallelism(cfg.Analytics.CalculatorParallelism),
		engine.WithFallbackPart(cfg.Analytics.FallbackPartNumber),
	)

	memoCfg := memo.Config{
		LocalEntries:      cfg.Memo.LocalEntries,
		TTL:               time.Duration(cfg.Memo.TTL) * time.Second,
		KeyPrefix:         cfg.Memo.KeyPrefix,
		MaxRecomputes:     cfg.Memo.MaxRecomputes,
		RecomputeInterval: config.GetDuration(cfg.Memo.RecomputeInterval),
	}
	var memoRedis redis.Cmdable
	if !cfg.Memo.Enabled {
		memoCfg.LocalEntries = 0
	} else if redisClient != nil {
		memoRedis = redisClient.Client
	}
	memoizer := memo.New(eng, memoRedis, memoCfg, log)

	// --- Workers ---
	var workers []*camunda.CamundaWorker
	startWorker := func(taskType string, handler camunda.JobHandler) {
		w := camunda.NewWorker(zeebe.GetClient(), taskType, config.GetWorkerConfig(cfg, taskType), handler, obs, log)
		workers = append(workers, w)
	}

	if config.IsWorkerEnabled(cfg, lwo.TaskType) {
		handler := lwo.NewHandler(lwo.LoadConfig(cfg), pg.GetDB(), redisClient, log)
		startWorker(lwo.TaskType, handler)
	}

	if config.IsWorkerEnabled(cfg, lds.TaskType) {
		handler := lds.NewHandler(lds.LoadConfig(cfg), esClient, log)
		startWorker(lds.TaskType, handler)
	}

	if config.IsWorkerEnabled(cfg, cd.TaskType) {
		dashCfg, err := cd.LoadConfig(cfg)
		if err != nil {
			zapLog.Fatal("invalid compute-dashboard config", zap.Error(err))
		}
		handler := cd.NewHandler(dashCfg, memoizer, obs, log)
		startWorker(cd.TaskType, handler)
	}

	if config.IsWorkerEnabled(cfg, cfr.TaskType) {
		handler := cfr.NewHandler(cfr.LoadConfig(cfg), calc, log)
		startWorker(cfr.TaskType, handler)
	}

	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	writeJSON := func(w http.ResponseWriter, status int, body interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}

	mux := http.NewServeMux()
	mux.Handle("/debug/pprof/", http.DefaultServeMux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := map[string]string{}
		if err := zeebe.HealthCheck(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps["zeebe"] = err.Error()
		} else {
			deps["zeebe"] = "ok"
		}
		for _, c := range checks {
			if err := c.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				deps[c.Name()] = err.Error()
			} else {
				deps[c.Name()] = "ok"
			}
		}
		// An open breaker degrades results but the workers keep serving
		// them, so it is reported without failing readiness.
		if calcClient != nil {
			if calcClient.State() == gobreaker.StateOpen {
				deps["filter_calculator"] = "circuit open"
			} else {
				deps["filter_calculator"] = "ok"
			}
		}

		label := "ready"
		if status != http.StatusOK {
			label = "not_ready"
		}
		writeJSON(w, status, map[string]interface{}{
			"status":       label,
			"dependencies": deps,
			"time":         time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("health/metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("health/metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("error stopping health server", zap.Error(err))
	}

	zapLog.Info("worker manager stopped")
}
