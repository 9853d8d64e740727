package catalog

import (
	"database/sql"
	"reflect"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func newSQLiteStore(t *testing.T) *RelationalStore {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	rs, err := NewRelationalStore(db, "sqlite")
	if err != nil {
		t.Fatalf("NewRelationalStore: %v", err)
	}
	return rs
}

func TestRelationalStoreDatabaseRoundTrip(t *testing.T) {
	rs := newSQLiteStore(t)
	want := sampleDatabase("trades")

	if err := rs.Databases().Upsert(want); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := rs.Databases().LoadByName("trades")
	if err != nil {
		t.Fatalf("LoadByName: %v", err)
	}
	if got == nil || !reflect.DeepEqual(*got, want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}

	// Upsert over an existing row updates in place.
	want.Description = "updated"
	if err := rs.Databases().Upsert(want); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	got, _ = rs.Databases().LoadByName("trades")
	if got.Description != "updated" {
		t.Fatalf("expected updated description, got %q", got.Description)
	}
	if n, _ := rs.Databases().Count(); n != 1 {
		t.Fatalf("expected a single row after update, got %d", n)
	}
}

func TestRelationalStoreQueryParametersRoundTrip(t *testing.T) {
	rs := newSQLiteStore(t)
	want := sampleQuery("by-symbol", "trades")

	if err := rs.Queries().Upsert(want); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := rs.Queries().LoadByName("by-symbol")
	if err != nil {
		t.Fatalf("LoadByName: %v", err)
	}
	if got == nil || !reflect.DeepEqual(got.Parameters, want.Parameters) {
		t.Fatalf("parameter round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestRelationalStoreLoadByNameMissing(t *testing.T) {
	rs := newSQLiteStore(t)
	got, err := rs.Databases().LoadByName("nope")
	if err != nil {
		t.Fatalf("LoadByName: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for an unknown name, got %+v", got)
	}
}

func TestRelationalStoreEndpointDropsNonDurableFields(t *testing.T) {
	rs := newSQLiteStore(t)
	in := EndpointSpec{
		Name:      "paged",
		Path:      "/trades",
		Method:    "GET",
		QueryName: "all",
		Pagination: &PaginationSpec{
			Enabled:     true,
			DefaultSize: 20,
			MaxSize:     100,
		},
		CacheEnabled:    true,
		CacheTTLSeconds: 60,
	}
	if err := rs.Endpoints().Upsert(in); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := rs.Endpoints().LoadByName("paged")
	if err != nil {
		t.Fatalf("LoadByName: %v", err)
	}
	// Pagination lives only in the file provider; cache flags are durable.
	if got.Pagination != nil {
		t.Fatalf("expected pagination metadata dropped by the relational provider, got %+v", got.Pagination)
	}
	if !got.CacheEnabled || got.CacheTTLSeconds != 60 {
		t.Fatalf("expected durable cache attributes preserved, got %+v", got)
	}
}

func TestRelationalStoreByParent(t *testing.T) {
	rs := newSQLiteStore(t)
	for _, e := range []EndpointSpec{
		{Name: "a", Path: "/a", Method: "GET", QueryName: "shared"},
		{Name: "b", Path: "/b", Method: "GET", QueryName: "shared"},
		{Name: "c", Path: "/c", Method: "GET", QueryName: "other"},
	} {
		if err := rs.Endpoints().Upsert(e); err != nil {
			t.Fatalf("Upsert(%s): %v", e.Name, err)
		}
	}

	n, err := rs.Endpoints().CountByParent("shared")
	if err != nil || n != 2 {
		t.Fatalf("CountByParent: n=%d err=%v", n, err)
	}
	children, err := rs.Endpoints().ByParent("shared")
	if err != nil || len(children) != 2 {
		t.Fatalf("ByParent: len=%d err=%v", len(children), err)
	}
}

func TestRelationalStoreDelete(t *testing.T) {
	rs := newSQLiteStore(t)
	if err := rs.Queries().Upsert(sampleQuery("gone", "trades")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	deleted, err := rs.Queries().Delete("gone")
	if err != nil || !deleted {
		t.Fatalf("Delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = rs.Queries().Delete("gone")
	if err != nil || deleted {
		t.Fatalf("second Delete: deleted=%v err=%v", deleted, err)
	}
}
