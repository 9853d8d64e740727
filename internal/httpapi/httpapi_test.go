package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sqlgateway/internal/catalog"
	"sqlgateway/internal/pool"
	"sqlgateway/internal/validate"
)

func newStore(t *testing.T) catalog.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := catalog.NewFileStore(dir+"/d.yaml", dir+"/q.yaml", dir+"/e.yaml")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func TestAdminDatabaseCRUD(t *testing.T) {
	store := newStore(t)
	h := NewAdminHandler(store, nil)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(catalog.DatabaseSpec{DriverID: "postgres", URL: "postgres://localhost/db"})
	req := httptest.NewRequest(http.MethodPut, "/api/management/config-mgmt/databases/db1", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from upsert, got %d: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/management/config-mgmt/databases", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from list, got %d", rr.Code)
	}
	var got map[string]catalog.DatabaseSpec
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := got["db1"]; !ok {
		t.Fatalf("expected db1 in listing, got %+v", got)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/management/config-mgmt/databases/db1", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 from delete, got %d", rr.Code)
	}
}

func TestHealthHandlerReturnsLivenessEnvelope(t *testing.T) {
	manager := pool.New(nil)
	store := newStore(t)
	h := NewHealthHandler(manager, store)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "UP" {
		t.Fatalf(`expected {"status":"UP"}, got %+v`, body)
	}
}

func TestEngineHealthReportsEndpointCount(t *testing.T) {
	manager := pool.New(nil)
	store := newStore(t)
	if err := store.Endpoints().Upsert(catalog.EndpointSpec{Name: "e1", Path: "/e1", Method: "GET", QueryName: "q1"}); err != nil {
		t.Fatalf("upsert endpoint: %v", err)
	}
	h := NewHealthHandler(manager, store)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/generic/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if count, ok := body["endpointCount"].(float64); !ok || count != 1 {
		t.Fatalf("expected endpointCount 1, got %+v", body["endpointCount"])
	}
}

func TestConfigHandlerReturnsAllThreeCatalogues(t *testing.T) {
	store := newStore(t)
	if err := store.Databases().Upsert(catalog.DatabaseSpec{Name: "db1", DriverID: "sqlite", URL: ":memory:"}); err != nil {
		t.Fatalf("upsert database: %v", err)
	}
	h := NewConfigHandler(store, pool.New(nil), validate.New())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/generic/config", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"databases", "queries", "endpoints"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("expected %q in the config payload, got %v", key, body)
		}
	}
}

func TestValidateEndpointScopedRun(t *testing.T) {
	store := newStore(t)
	if err := store.Endpoints().Upsert(catalog.EndpointSpec{Name: "e1", Path: "/x", Method: "GET", QueryName: "ghost"}); err != nil {
		t.Fatalf("upsert endpoint: %v", err)
	}
	h := NewConfigHandler(store, pool.New(nil), validate.New())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/generic/config/validate/endpoints", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a failing report, got %d: %s", rr.Code, rr.Body.String())
	}
	var report validate.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.OK() {
		t.Fatalf("expected findings for the dangling query reference")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/generic/config/validate/bogus", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown scope, got %d", rr.Code)
	}
}

func TestAdminReloadInvokesRebind(t *testing.T) {
	store := newStore(t)
	called := false
	h := NewAdminHandler(store, func() error {
		called = true
		return nil
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/management/config-mgmt/reload", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from reload, got %d", rr.Code)
	}
	if !called {
		t.Fatalf("expected the rebind hook to run")
	}
}

func TestAdminEndpointUpsertTriggersRebind(t *testing.T) {
	store := newStore(t)
	rebinds := 0
	h := NewAdminHandler(store, func() error {
		rebinds++
		return nil
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(catalog.EndpointSpec{Path: "/x", Method: "GET", QueryName: "q"})
	req := httptest.NewRequest(http.MethodPut, "/api/management/config-mgmt/endpoints/e1", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from upsert, got %d: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/management/config-mgmt/endpoints/e1", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 from delete, got %d", rr.Code)
	}

	if rebinds != 2 {
		t.Fatalf("expected a rebind after the upsert and the delete, got %d", rebinds)
	}
}
