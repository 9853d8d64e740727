package pool

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"sqlgateway/internal/catalog"
)

func sqliteSpec(name string) catalog.DatabaseSpec {
	return catalog.DatabaseSpec{
		Name:     name,
		URL:      "file:" + name + "?mode=memory&cache=shared",
		DriverID: "sqlite",
		Pool:     catalog.PoolSpec{}.WithDefaults(),
	}
}

// holdOpen keeps a shared in-memory sqlite database alive for the test.
func holdOpen(t *testing.T, spec catalog.DatabaseSpec) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", spec.URL)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	return db
}

func TestDriverFor(t *testing.T) {
	for raw, want := range map[string]string{
		"postgres": "postgres", "postgresql": "postgres",
		"sqlite": "sqlite3", "sqlite3": "sqlite3", "SQLite": "sqlite3",
	} {
		got, err := DriverFor(raw)
		if err != nil || got != want {
			t.Fatalf("DriverFor(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}

	_, err := DriverFor("oracle")
	if err == nil || !strings.Contains(err.Error(), "driver unavailable: oracle") {
		t.Fatalf("expected the documented failure reason, got %v", err)
	}
}

func TestBuildToleratesPerDatabaseFailure(t *testing.T) {
	good := sqliteSpec("mgr_good")
	holdOpen(t, good)
	bad := catalog.DatabaseSpec{Name: "mgr_bad", URL: "x", DriverID: "oracle", Pool: catalog.PoolSpec{}.WithDefaults()}

	m := New(nil)
	m.Build(context.Background(), map[string]catalog.DatabaseSpec{
		good.Name: good,
		bad.Name:  bad,
	}, nil)

	if !m.Available(good.Name) {
		t.Fatalf("expected %s available", good.Name)
	}
	reason, failed := m.FailureReason(bad.Name)
	if !failed || !strings.Contains(reason, "driver unavailable: oracle") {
		t.Fatalf("expected the bad database failed with a driver reason, got failed=%v reason=%q", failed, reason)
	}
}

func TestPoolComplementarityInvariant(t *testing.T) {
	good := sqliteSpec("mgr_p3")
	holdOpen(t, good)
	bad := catalog.DatabaseSpec{Name: "mgr_p3_bad", URL: "x", DriverID: "nope", Pool: catalog.PoolSpec{}.WithDefaults()}

	m := New(nil)
	m.Build(context.Background(), map[string]catalog.DatabaseSpec{good.Name: good, bad.Name: bad}, nil)

	configured := m.Configured()
	sort.Strings(configured)
	if len(configured) != 2 {
		t.Fatalf("expected available ∪ failed to cover both configured databases, got %v", configured)
	}
	for _, name := range configured {
		_, failed := m.FailureReason(name)
		if m.Available(name) == failed {
			t.Fatalf("database %s is in both (or neither of) available and failed", name)
		}
	}
}

func TestBuildFailsWhenRequiredTableMissing(t *testing.T) {
	spec := sqliteSpec("mgr_tables")
	holdOpen(t, spec)

	queries := []catalog.QuerySpec{{
		Name:         "q1",
		DatabaseName: spec.Name,
		SQL:          "SELECT * FROM vanished",
	}}

	m := New(nil)
	m.Build(context.Background(), map[string]catalog.DatabaseSpec{spec.Name: spec},
		map[string][]catalog.QuerySpec{spec.Name: queries})

	reason, failed := m.FailureReason(spec.Name)
	if !failed {
		t.Fatalf("expected the database in the failed set")
	}
	if !strings.Contains(reason, "required tables missing") || !strings.Contains(reason, "vanished") {
		t.Fatalf("expected a required-tables reason naming the table, got %q", reason)
	}
}

func TestAcquireFromFailedDatabase(t *testing.T) {
	bad := catalog.DatabaseSpec{Name: "mgr_acq_bad", URL: "x", DriverID: "nope", Pool: catalog.PoolSpec{}.WithDefaults()}
	m := New(nil)
	m.Build(context.Background(), map[string]catalog.DatabaseSpec{bad.Name: bad}, nil)

	_, err := m.Acquire(context.Background(), bad.Name)
	var unavailable *ErrDatabaseUnavailable
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ErrDatabaseUnavailable, got %v", err)
	}
	if unavailable.Name != bad.Name || !strings.Contains(unavailable.Reason, "driver unavailable") {
		t.Fatalf("expected the stored failure reason, got %+v", unavailable)
	}
}

func TestAcquireUnknownDatabase(t *testing.T) {
	m := New(nil)
	_, err := m.Acquire(context.Background(), "ghost")
	var unknown *ErrDatabaseUnknown
	if !errors.As(err, &unknown) {
		t.Fatalf("expected ErrDatabaseUnknown, got %v", err)
	}
}

func TestAcquireAndScopedRelease(t *testing.T) {
	spec := sqliteSpec("mgr_acq")
	holdOpen(t, spec)
	m := New(nil)
	m.Build(context.Background(), map[string]catalog.DatabaseSpec{spec.Name: spec}, nil)

	conn, err := m.Acquire(context.Background(), spec.Name)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), "SELECT 1"); err != nil {
		t.Fatalf("exec through checkout: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestHealthyProbesAvailableDatabase(t *testing.T) {
	spec := sqliteSpec("mgr_health")
	holdOpen(t, spec)
	m := New(nil)
	m.Build(context.Background(), map[string]catalog.DatabaseSpec{spec.Name: spec}, nil)

	if !m.Healthy(context.Background(), spec.Name) {
		t.Fatalf("expected a live sqlite database to report healthy")
	}
	if m.Healthy(context.Background(), "ghost") {
		t.Fatalf("expected an unknown database to report unhealthy")
	}
	if !m.AreAllHealthy(context.Background()) {
		t.Fatalf("expected all available databases healthy")
	}
}

func TestCloseEmptiesAvailableSet(t *testing.T) {
	spec := sqliteSpec("mgr_close")
	holdOpen(t, spec)
	m := New(nil)
	m.Build(context.Background(), map[string]catalog.DatabaseSpec{spec.Name: spec}, nil)

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if m.Available(spec.Name) {
		t.Fatalf("expected no available pools after Close")
	}
}
