package pool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"sqlgateway/internal/catalog"
	"sqlgateway/internal/logger"
	"sqlgateway/internal/sqlutil"
)

// Manager is the connection manager. It owns one pooled *sql.DB per
// available DatabaseSpec and maintains the disjoint available/failed
// partition of configured databases.
type Manager struct {
	mu        sync.RWMutex
	available map[string]*sql.DB
	failed    map[string]string
	specs     map[string]catalog.DatabaseSpec

	healthCache *RedisHealthCache // optional; nil means every healthy() call probes live
}

// New creates an empty Connection Manager. Call Build to populate it from a
// loaded catalogue.
func New(healthCache *RedisHealthCache) *Manager {
	return &Manager{
		available:   map[string]*sql.DB{},
		failed:      map[string]string{},
		specs:       map[string]catalog.DatabaseSpec{},
		healthCache: healthCache,
	}
}

// Build runs the startup sequence for every DatabaseSpec in databases,
// tolerating per-database failure. queriesByDatabase maps a
// DatabaseSpec.Name to the QuerySpecs that target it, used to compute each
// database's required-table set T(D).
func (m *Manager) Build(ctx context.Context, databases map[string]catalog.DatabaseSpec, queriesByDatabase map[string][]catalog.QuerySpec) {
	log := logger.WithComponent("pool")
	var wg sync.WaitGroup
	for _, spec := range databases {
		wg.Add(1)
		go func(spec catalog.DatabaseSpec) {
			defer wg.Done()
			m.buildOne(ctx, spec, queriesByDatabase[spec.Name], log)
		}(spec)
	}
	wg.Wait()
}

func (m *Manager) buildOne(ctx context.Context, spec catalog.DatabaseSpec, queries []catalog.QuerySpec, log *slog.Logger) {
	m.mu.Lock()
	m.specs[spec.Name] = spec
	m.mu.Unlock()

	db, err := Open(ctx, spec)
	if err != nil {
		m.markFailed(spec.Name, err.Error())
		log.Warn("database unavailable at startup", "database", spec.Name, "reason", err.Error())
		return
	}

	tables := requiredTables(queries)
	var tableErrs []string
	for _, t := range tables {
		probeCtx, cancel := context.WithTimeout(ctx, time.Duration(spec.Pool.ConnectionTimeoutMs)*time.Millisecond)
		_, err := db.ExecContext(probeCtx, fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", t))
		cancel()
		if err != nil {
			tableErrs = append(tableErrs, fmt.Sprintf("%s: %v", t, err))
		}
	}

	if len(tableErrs) > 0 {
		db.Close()
		reason := "required tables missing: " + strings.Join(tableErrs, "; ")
		m.markFailed(spec.Name, reason)
		log.Warn("database failed table probe", "database", spec.Name, "reason", reason)
		return
	}

	m.mu.Lock()
	m.available[spec.Name] = db
	delete(m.failed, spec.Name)
	m.mu.Unlock()
	log.Info("database available", "database", spec.Name, "tables_probed", len(tables))
}

// requiredTables computes T(D): the distinct set of tables referenced by
// any of the given QuerySpecs, via the shared table extractor.
func requiredTables(queries []catalog.QuerySpec) []string {
	seen := map[string]bool{}
	var out []string
	for _, q := range queries {
		for _, t := range sqlutil.ExtractTables(q.SQL) {
			key := strings.ToLower(t)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, t)
		}
	}
	return out
}

func (m *Manager) markFailed(name, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.available, name)
	m.failed[name] = reason
}

// Acquire checks out a connection for name within its configured
// connectionTimeoutMs. Callers must Close() the returned Conn on every
// exit path (scoped acquisition); a checkout
// held beyond the pool's leakDetectionThresholdMs is logged at warn level.
func (m *Manager) Acquire(ctx context.Context, name string) (*Conn, error) {
	m.mu.RLock()
	db, ok := m.available[name]
	reason, failed := m.failed[name]
	spec, known := m.specs[name]
	m.mu.RUnlock()

	if failed {
		return nil, &ErrDatabaseUnavailable{Name: name, Reason: reason}
	}
	if !ok || !known {
		return nil, &ErrDatabaseUnknown{Name: name}
	}

	acquireCtx, cancel := context.WithTimeout(ctx, time.Duration(spec.Pool.ConnectionTimeoutMs)*time.Millisecond)
	defer cancel()
	conn, err := db.Conn(acquireCtx)
	if err != nil {
		return nil, &ErrDatabaseUnavailable{Name: name, Reason: err.Error()}
	}
	return newConn(conn, name, time.Duration(spec.Pool.LeakDetectionThresholdMs)*time.Millisecond), nil
}

// Spec returns the DatabaseSpec registered for name, if any, so callers
// (the Validator's schema probe in particular) can resolve its driver
// dialect without reaching into the pool internals.
func (m *Manager) Spec(name string) (catalog.DatabaseSpec, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	spec, ok := m.specs[name]
	return spec, ok
}

// Available reports whether name is currently in the available set.
func (m *Manager) Available(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.available[name]
	return ok
}

// FailureReason returns the recorded reason name is in the failed set, if
// it is.
func (m *Manager) FailureReason(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reason, ok := m.failed[name]
	return reason, ok
}

// Healthy reports whether name is available and a fresh connection-test
// query succeeds within the pool's connection timeout. When a
// RedisHealthCache is configured, a recent result is reused instead of
// probing live on every call.
func (m *Manager) Healthy(ctx context.Context, name string) bool {
	m.mu.RLock()
	db, ok := m.available[name]
	spec := m.specs[name]
	m.mu.RUnlock()
	if !ok {
		return false
	}

	if m.healthCache != nil {
		if cached, found := m.healthCache.Get(ctx, name); found {
			return cached
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, time.Duration(spec.Pool.ConnectionTimeoutMs)*time.Millisecond)
	defer cancel()
	_, err := db.ExecContext(probeCtx, spec.Pool.ConnectionTestQuery)
	healthy := err == nil

	if m.healthCache != nil {
		m.healthCache.Set(ctx, name, healthy)
	}
	return healthy
}

// AreAllHealthy reports whether every available database is currently
// healthy.
func (m *Manager) AreAllHealthy(ctx context.Context) bool {
	m.mu.RLock()
	names := make([]string, 0, len(m.available))
	for name := range m.available {
		names = append(names, name)
	}
	m.mu.RUnlock()

	for _, name := range names {
		if !m.Healthy(ctx, name) {
			return false
		}
	}
	return true
}

// Configured returns the union of the available and failed sets, every
// database name the manager knows about.
func (m *Manager) Configured() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.available)+len(m.failed))
	for name := range m.available {
		out = append(out, name)
	}
	for name := range m.failed {
		out = append(out, name)
	}
	return out
}

// Close disposes every pooled data source. Called in reverse startup order
// during shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for name, db := range m.available {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s: %w", name, err)
		}
	}
	m.available = map[string]*sql.DB{}
	return firstErr
}
