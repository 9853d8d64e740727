// Package config resolves process configuration from the environment: which
// catalogue store provider to load, where the validator and metrics
// pipeline should publish, and the HTTP surface's listen address.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"sqlgateway/internal/logger"
)

// StoreProvider selects which catalog.Store implementation Load wires up.
type StoreProvider string

const (
	StoreProviderFile       StoreProvider = "file"
	StoreProviderRelational StoreProvider = "relational"
)

// ValidatorMode selects how the Startup Orchestrator runs the Validator.
type ValidatorMode string

const (
	ValidatorDisabled     ValidatorMode = "disabled"
	ValidatorGate         ValidatorMode = "gate"
	ValidatorValidateOnly ValidatorMode = "validate-only"
)

// MetricsSinkKind selects the MetricsSink the Metrics Collector delivers
// PerformanceRecords to.
type MetricsSinkKind string

const (
	MetricsSinkMemory MetricsSinkKind = "memory"
	MetricsSinkKafka  MetricsSinkKind = "kafka"
	MetricsSinkRedis  MetricsSinkKind = "redis"
)

// Config is the fully resolved process configuration.
type Config struct {
	ListenAddr          string
	ShutdownGraceMillis int

	StoreProvider   StoreProvider
	DatabasesPath   string
	QueriesPath     string
	EndpointsPath   string
	RelationalDSN   string
	RelationalDrvID string

	ValidatorMode ValidatorMode

	MetricsEnabled    bool
	MetricsSink       MetricsSinkKind
	MetricsSampleRate float64
	MetricsAsyncSave  bool
	MetricsExclude    []string
	KafkaBrokers      []string
	KafkaTopic        string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	HealthCacheTTL    time.Duration

	OTelEndpoint string
	ServiceName  string
}

// Load resolves Config from the environment, applying the documented
// defaults for every unset variable.
func Load() Config {
	log := logger.WithComponent("config")

	cfg := Config{
		ListenAddr:          getenv("SQLGATEWAY_LISTEN_ADDR", ":8090"),
		ShutdownGraceMillis: getenvInt("SQLGATEWAY_SHUTDOWN_GRACE_MS", 15000),

		StoreProvider:   StoreProvider(getenv("SQLGATEWAY_STORE_PROVIDER", string(StoreProviderFile))),
		DatabasesPath:   getenv("SQLGATEWAY_DATABASES_PATH", "config/databases.yaml"),
		QueriesPath:     getenv("SQLGATEWAY_QUERIES_PATH", "config/queries.yaml"),
		EndpointsPath:   getenv("SQLGATEWAY_ENDPOINTS_PATH", "config/endpoints.yaml"),
		RelationalDSN:   getenv("SQLGATEWAY_CATALOG_DSN", ""),
		RelationalDrvID: getenv("SQLGATEWAY_CATALOG_DRIVER", "postgres"),

		ValidatorMode: ValidatorMode(getenv("SQLGATEWAY_VALIDATOR_MODE", string(ValidatorDisabled))),

		MetricsEnabled:    getenvBool("SQLGATEWAY_METRICS_ENABLED", true),
		MetricsSink:       MetricsSinkKind(getenv("SQLGATEWAY_METRICS_SINK", string(MetricsSinkMemory))),
		MetricsSampleRate: getenvFloat("SQLGATEWAY_METRICS_SAMPLE_RATE", 1.0),
		MetricsAsyncSave:  getenvBool("SQLGATEWAY_METRICS_ASYNC_SAVE", true),
		MetricsExclude:    getenvList("SQLGATEWAY_METRICS_EXCLUDE", nil),
		KafkaBrokers:      getenvList("SQLGATEWAY_KAFKA_BROKERS", nil),
		KafkaTopic:        getenv("SQLGATEWAY_KAFKA_TOPIC", "sqlgateway.metrics"),
		RedisAddr:         getenv("SQLGATEWAY_REDIS_ADDR", ""),
		RedisPassword:     getenv("SQLGATEWAY_REDIS_PASSWORD", ""),
		RedisDB:           getenvInt("SQLGATEWAY_REDIS_DB", 0),
		HealthCacheTTL:    time.Duration(getenvInt("SQLGATEWAY_HEALTH_CACHE_TTL_MS", 5000)) * time.Millisecond,

		OTelEndpoint: getenv("SQLGATEWAY_OTEL_ENDPOINT", ""),
		ServiceName:  getenv("SQLGATEWAY_SERVICE_NAME", "sqlgateway"),
	}

	log.Info("configuration loaded",
		"listen_addr", cfg.ListenAddr,
		"store_provider", cfg.StoreProvider,
		"validator_mode", cfg.ValidatorMode,
		"metrics_sink", cfg.MetricsSink,
	)
	return cfg
}

func getenv(k, fallback string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(k))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func getenvBool(k string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(k))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getenvFloat(k string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(k))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func getenvList(k string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(k))
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
