// Package pool implements the connection manager: it owns one pooled data
// source per available DatabaseSpec, tracks a disjoint failed set with
// failure reasons, and exposes scoped acquisition.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"sqlgateway/internal/catalog"
	"sqlgateway/internal/logger"
)

// DriverFor resolves a DatabaseSpec.DriverID to a database/sql driver name.
// An unresolvable token fails with "driver unavailable: <driverId>".
// Exported so the validator's schema probe can pick the right
// introspection dialect for a database.
func DriverFor(driverID string) (string, error) {
	switch strings.ToLower(driverID) {
	case "postgres", "postgresql":
		return "postgres", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("driver unavailable: %s", driverID)
	}
}

// Open builds a *sql.DB for spec, applying PoolSpec tuning and retrying
// the initial dial with exponential backoff.
func Open(ctx context.Context, spec catalog.DatabaseSpec) (*sql.DB, error) {
	driverName, err := DriverFor(spec.DriverID)
	if err != nil {
		return nil, err
	}
	p := spec.Pool.WithDefaults()

	operation := func() (*sql.DB, error) {
		db, err := sql.Open(driverName, spec.URL)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(p.MaximumPoolSize)
		db.SetMaxIdleConns(p.MinimumIdle)
		db.SetConnMaxLifetime(time.Duration(p.MaxLifetimeMs) * time.Millisecond)
		db.SetConnMaxIdleTime(time.Duration(p.IdleTimeoutMs) * time.Millisecond)

		pingCtx, cancel := context.WithTimeout(ctx, time.Duration(p.ConnectionTimeoutMs)*time.Millisecond)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		return nil, err
	}

	logger.WithComponent("pool").Info("pool opened", "database", spec.Name, "driver", driverName,
		"max_open", p.MaximumPoolSize, "min_idle", p.MinimumIdle)
	return db, nil
}
