package exec

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"sqlgateway/internal/bind"
	"sqlgateway/internal/catalog"
	"sqlgateway/internal/gatewayerr"
	"sqlgateway/internal/pool"
)

func seededManager(t *testing.T, name string) (*pool.Manager, catalog.DatabaseSpec) {
	t.Helper()
	spec := catalog.DatabaseSpec{
		Name:     name,
		URL:      "file:" + name + "?mode=memory&cache=shared",
		DriverID: "sqlite",
		Pool:     catalog.PoolSpec{}.WithDefaults(),
	}

	// Keep one handle open for the test's lifetime so the shared in-memory
	// database survives pool churn.
	db, err := sql.Open("sqlite3", spec.URL)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec("CREATE TABLE stock_trades (id INTEGER PRIMARY KEY, symbol TEXT, price REAL, note TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO stock_trades (symbol, price, note) VALUES
		('AAPL', 187.5, 'buy'), ('AAPL', 190.25, NULL), ('MSFT', 402.0, 'sell')`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	manager := pool.New(nil)
	manager.Build(context.Background(), map[string]catalog.DatabaseSpec{name: spec}, nil)
	if !manager.Available(name) {
		reason, _ := manager.FailureReason(name)
		t.Fatalf("expected %s available, failed with: %s", name, reason)
	}
	return manager, spec
}

func TestExecuteMaterializesRowsInColumnOrder(t *testing.T) {
	manager, _ := seededManager(t, "exec_rows")
	q := catalog.QuerySpec{
		Name:         "by-symbol",
		DatabaseName: "exec_rows",
		SQL:          "SELECT id, symbol, price FROM stock_trades WHERE symbol = ? ORDER BY id",
		QueryType:    catalog.QuerySelect,
	}

	rows, err := Execute(context.Background(), manager, q, []bind.Bound{{Position: 1, Value: "AAPL"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 AAPL rows, got %d", len(rows))
	}
	wantCols := []string{"id", "symbol", "price"}
	for i, c := range rows[0].Columns {
		if c != wantCols[i] {
			t.Fatalf("column order not preserved: got %v", rows[0].Columns)
		}
	}
	if rows[0].Values["symbol"] != "AAPL" {
		t.Fatalf("expected symbol AAPL, got %v", rows[0].Values["symbol"])
	}
}

func TestExecutePreservesNullValues(t *testing.T) {
	manager, _ := seededManager(t, "exec_null")
	q := catalog.QuerySpec{
		Name:         "null-note",
		DatabaseName: "exec_null",
		SQL:          "SELECT note FROM stock_trades WHERE note IS NULL",
		QueryType:    catalog.QuerySelect,
	}

	rows, err := Execute(context.Background(), manager, q, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 null-note row, got %d", len(rows))
	}
	v, present := rows[0].Values["note"]
	if !present || v != nil {
		t.Fatalf("expected explicit null in record, got present=%v value=%v", present, v)
	}
}

func TestExecuteCountReadsScalar(t *testing.T) {
	manager, _ := seededManager(t, "exec_count")
	q := catalog.QuerySpec{
		Name:         "count-all",
		DatabaseName: "exec_count",
		SQL:          "SELECT COUNT(*) FROM stock_trades",
		QueryType:    catalog.QuerySelect,
	}

	n, err := ExecuteCount(context.Background(), manager, q, nil)
	if err != nil {
		t.Fatalf("ExecuteCount: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected count 3, got %d", n)
	}
}

func TestExecuteCountRejectsBadShape(t *testing.T) {
	manager, _ := seededManager(t, "exec_badcount")
	q := catalog.QuerySpec{
		Name:         "not-a-count",
		DatabaseName: "exec_badcount",
		SQL:          "SELECT symbol FROM stock_trades WHERE 1 = 0",
		QueryType:    catalog.QuerySelect,
	}

	_, err := ExecuteCount(context.Background(), manager, q, nil)
	var ge *gatewayerr.GatewayError
	if !errors.As(err, &ge) || ge.Kind != gatewayerr.KindInternal {
		t.Fatalf("expected INTERNAL_ERROR for a zero-row count query, got %v", err)
	}
}

func TestExecuteUpdateReturnsAffected(t *testing.T) {
	manager, _ := seededManager(t, "exec_update")
	q := catalog.QuerySpec{
		Name:         "retag",
		DatabaseName: "exec_update",
		SQL:          "UPDATE stock_trades SET note = ? WHERE symbol = ?",
		QueryType:    catalog.QueryUpdate,
	}

	n, err := ExecuteUpdate(context.Background(), manager, q, []bind.Bound{
		{Position: 1, Value: "flagged"},
		{Position: 2, Value: "AAPL"},
	})
	if err != nil {
		t.Fatalf("ExecuteUpdate: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows affected, got %d", n)
	}
}

func TestExecuteUnknownDatabase(t *testing.T) {
	manager := pool.New(nil)
	q := catalog.QuerySpec{Name: "q", DatabaseName: "ghost", SQL: "SELECT 1"}

	_, err := Execute(context.Background(), manager, q, nil)
	var ge *gatewayerr.GatewayError
	if !errors.As(err, &ge) || ge.Kind != gatewayerr.KindNotFound {
		t.Fatalf("expected NOT_FOUND for an unconfigured database, got %v", err)
	}
}

func TestExecuteSQLErrorMapsToInternal(t *testing.T) {
	manager, _ := seededManager(t, "exec_sqlerr")
	q := catalog.QuerySpec{
		Name:         "broken",
		DatabaseName: "exec_sqlerr",
		SQL:          "SELECT FROM WHERE",
		QueryType:    catalog.QuerySelect,
	}

	_, err := Execute(context.Background(), manager, q, nil)
	var ge *gatewayerr.GatewayError
	if !errors.As(err, &ge) || ge.Kind != gatewayerr.KindInternal {
		t.Fatalf("expected INTERNAL_ERROR for malformed SQL, got %v", err)
	}
}
