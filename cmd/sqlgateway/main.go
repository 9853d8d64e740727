// Command sqlgateway is the gateway process: it loads
// configuration and the catalogue, builds the Connection Manager
// (tolerating per-database failure), optionally gates on or runs the
// Validator, registers every synthesized route plus the management
// surface, installs the Metrics Collector, and serves until a termination
// signal triggers an ordered, draining shutdown.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"sqlgateway/internal/catalog"
	"sqlgateway/internal/config"
	"sqlgateway/internal/dispatch"
	"sqlgateway/internal/httpapi"
	"sqlgateway/internal/logger"
	"sqlgateway/internal/metrics"
	"sqlgateway/internal/middleware"
	"sqlgateway/internal/pool"
	"sqlgateway/internal/tracing"
	"sqlgateway/internal/validate"
)

func main() {
	validateOnlyFlag := flag.Bool("validate-only", false, "run the validator, print its report, and exit without serving traffic")
	validateAlias := flag.Bool("validate", false, "alias for -validate-only")
	flag.Parse()
	validateOnly := *validateOnlyFlag || *validateAlias

	logger.Init(logger.DefaultConfig())
	log := logger.WithComponent("main")

	cfg := config.Load()

	store, err := loadStore(cfg)
	if err != nil {
		log.Error("failed to load catalogue", "error", err.Error())
		os.Exit(1)
	}

	tp, err := tracing.InitTracer(context.Background(), cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		log.Warn("tracing disabled: failed to initialize", "error", err.Error())
	}

	databases, err := store.Databases().LoadAll()
	if err != nil {
		log.Error("failed to load databases", "error", err.Error())
		os.Exit(1)
	}
	queries, err := store.Queries().LoadAll()
	if err != nil {
		log.Error("failed to load queries", "error", err.Error())
		os.Exit(1)
	}
	queriesByDatabase := map[string][]catalog.QuerySpec{}
	for _, q := range queries {
		queriesByDatabase[q.DatabaseName] = append(queriesByDatabase[q.DatabaseName], q)
	}

	var healthCache *pool.RedisHealthCache
	if cfg.RedisAddr != "" {
		healthCache, err = pool.NewRedisHealthCache(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.HealthCacheTTL)
		if err != nil {
			log.Warn("health cache disabled: failed to connect to redis", "error", err.Error())
			healthCache = nil
		}
	}

	manager := pool.New(healthCache)
	startCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	manager.Build(startCtx, databases, queriesByDatabase)
	cancel()

	for _, name := range manager.Configured() {
		if reason, failed := manager.FailureReason(name); failed {
			log.Warn("database unavailable at startup, continuing tolerantly", "database", name, "reason", reason)
		} else {
			log.Info("database available", "database", name)
		}
	}

	validator := validate.New()
	if validateOnly || cfg.ValidatorMode != config.ValidatorDisabled {
		report, err := validator.Run(context.Background(), store, manager)
		if err != nil {
			log.Error("validator run failed", "error", err.Error())
			os.Exit(1)
		}
		log.Info("validation complete", "successes", len(report.Successes), "errors", len(report.Errors))
		for _, line := range report.Successes {
			log.Info("validation ok", "detail", line)
		}
		for _, line := range report.Errors {
			log.Warn("validation finding", "detail", line)
		}

		if validateOnly || cfg.ValidatorMode == config.ValidatorValidateOnly {
			if !report.OK() {
				os.Exit(1)
			}
			return
		}
		if cfg.ValidatorMode == config.ValidatorGate && !report.OK() {
			log.Error("validator gate failed, refusing to start")
			os.Exit(1)
		}
	}

	sink := buildMetricsSink(cfg, log)
	collector := metrics.NewCollector(sink, cfg.MetricsSampleRate)
	if !cfg.MetricsEnabled {
		collector.Disable()
	}
	collector.SetAsyncSave(cfg.MetricsAsyncSave)
	collector.Exclude(cfg.MetricsExclude...)

	engine := dispatch.NewEngine(store, manager, collector)
	if err := engine.Rebind(); err != nil {
		log.Error("failed to register dispatch routes", "error", err.Error())
		os.Exit(1)
	}

	// The management surface claims its specific patterns; everything else
	// falls through to the Dispatch Engine's catalogue-derived route table.
	mux := http.NewServeMux()
	httpapi.NewHealthHandler(manager, store).RegisterRoutes(mux)
	httpapi.NewAdminHandler(store, engine.Rebind).RegisterRoutes(mux)
	httpapi.NewConfigHandler(store, manager, validator).RegisterRoutes(mux)
	httpapi.NewMetricsHandler(collector).RegisterRoutes(mux)
	mux.Handle("/", engine)

	handler := middleware.WithRequestContext(mux)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("sqlgateway ready", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	<-ctx.Done()
	stop()
	log.Info("shutdown signal received, draining")

	var tracerCloser tracerShutdowner
	if tp != nil {
		tracerCloser = tp
	}
	shutdown(server, collector, manager, healthCache, tracerCloser, time.Duration(cfg.ShutdownGraceMillis)*time.Millisecond, log)
}

// shutdown runs in the reverse order of startup: stop accepting new
// requests, drain in-flight ones, then release metrics, connection pool,
// health cache and tracing resources.
func shutdown(server *http.Server, collector *metrics.Collector, manager *pool.Manager, healthCache *pool.RedisHealthCache, tp tracerShutdowner, grace time.Duration, log interface {
	Warn(msg string, args ...any)
}) {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Warn("graceful shutdown timed out, forcing close", "error", err.Error())
		_ = server.Close()
	}
	if err := collector.Close(); err != nil {
		log.Warn("metrics sink close failed", "error", err.Error())
	}
	if err := manager.Close(); err != nil {
		log.Warn("connection manager close failed", "error", err.Error())
	}
	if healthCache != nil {
		if err := healthCache.Close(); err != nil {
			log.Warn("health cache close failed", "error", err.Error())
		}
	}
	if tp != nil {
		if err := tp.Shutdown(ctx); err != nil {
			log.Warn("tracer shutdown failed", "error", err.Error())
		}
	}
}

// tracerShutdowner narrows *sdktrace.TracerProvider to the one method
// shutdown needs.
type tracerShutdowner interface {
	Shutdown(ctx context.Context) error
}

func loadStore(cfg config.Config) (catalog.Store, error) {
	switch cfg.StoreProvider {
	case config.StoreProviderRelational:
		driverName := "postgres"
		if cfg.RelationalDrvID != "postgres" && cfg.RelationalDrvID != "postgresql" {
			driverName = "sqlite3"
		}
		db, err := sql.Open(driverName, cfg.RelationalDSN)
		if err != nil {
			return nil, fmt.Errorf("opening catalogue database: %w", err)
		}
		return catalog.NewRelationalStore(db, cfg.RelationalDrvID)
	default:
		return catalog.NewFileStore(cfg.DatabasesPath, cfg.QueriesPath, cfg.EndpointsPath)
	}
}

func buildMetricsSink(cfg config.Config, log interface {
	Warn(msg string, args ...any)
}) metrics.MetricsSink {
	switch cfg.MetricsSink {
	case config.MetricsSinkKafka:
		sink, err := metrics.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Warn("kafka metrics sink disabled: failed to connect", "error", err.Error())
			return metrics.NewInMemorySink(1000)
		}
		return sink
	case config.MetricsSinkRedis:
		sink, err := metrics.NewRedisQueueSink(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("redis metrics sink disabled: failed to connect", "error", err.Error())
			return metrics.NewInMemorySink(1000)
		}
		return sink
	default:
		return metrics.NewInMemorySink(1000)
	}
}
