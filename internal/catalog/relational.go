package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"sqlgateway/internal/logger"
)

// RelationalStore is the database-backed CatalogueStore provider. It
// persists all three mappings in three tables. The durable endpoint
// columns are a subset of EndpointSpec: pagination, parameter lists and
// response-shape metadata live only in the file provider.
type RelationalStore struct {
	db       *sql.DB
	driverID string
}

// NewRelationalStore wraps an already-open *sql.DB and ensures the three
// config_* tables exist.
func NewRelationalStore(db *sql.DB, driverID string) (*RelationalStore, error) {
	rs := &RelationalStore{db: db, driverID: normalizeDriver(driverID)}
	if err := rs.ensureSchema(); err != nil {
		return nil, IOErr(err)
	}
	logger.WithComponent("catalog").Info("relational catalogue ready", "driver", rs.driverID)
	return rs, nil
}

func normalizeDriver(id string) string {
	switch strings.ToLower(id) {
	case "postgres", "postgresql":
		return "postgres"
	default:
		return "sqlite"
	}
}

// ph returns the i-th (1-based) bind placeholder for the active driver.
func (rs *RelationalStore) ph(i int) string {
	if rs.driverID == "postgres" {
		return "$" + strconv.Itoa(i)
	}
	return "?"
}

func (rs *RelationalStore) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS config_databases (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			description TEXT,
			url TEXT NOT NULL,
			username TEXT,
			password TEXT,
			driver_id TEXT NOT NULL,
			maximum_pool_size INTEGER,
			minimum_idle INTEGER,
			connection_timeout_ms INTEGER,
			idle_timeout_ms INTEGER,
			max_lifetime_ms INTEGER,
			leak_detection_threshold_ms INTEGER,
			connection_test_query TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS config_queries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			description TEXT,
			database_name TEXT NOT NULL,
			sql TEXT NOT NULL,
			query_type TEXT NOT NULL,
			timeout_seconds INTEGER,
			parameters_json TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS config_endpoints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			description TEXT,
			path TEXT NOT NULL,
			method TEXT NOT NULL,
			query_name TEXT NOT NULL,
			response_format TEXT,
			cache_enabled INTEGER,
			cache_ttl_seconds INTEGER,
			rate_limit_enabled INTEGER,
			rate_limit_requests INTEGER,
			rate_limit_window_seconds INTEGER,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
	}
	if rs.driverID == "postgres" {
		for i, s := range stmts {
			stmts[i] = strings.ReplaceAll(s, "INTEGER PRIMARY KEY AUTOINCREMENT", "SERIAL PRIMARY KEY")
		}
	}
	for _, s := range stmts {
		if _, err := rs.db.Exec(s); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

func (rs *RelationalStore) Databases() DatabaseRepository { return relDatabaseRepo{rs} }
func (rs *RelationalStore) Queries() QueryRepository       { return relQueryRepo{rs} }
func (rs *RelationalStore) Endpoints() EndpointRepository   { return relEndpointRepo{rs} }

// --- databases ---

type relDatabaseRepo struct{ rs *RelationalStore }

func (r relDatabaseRepo) LoadAll() (map[string]DatabaseSpec, error) {
	rows, err := r.rs.db.Query(`SELECT name, description, url, username, password, driver_id,
		maximum_pool_size, minimum_idle, connection_timeout_ms, idle_timeout_ms,
		max_lifetime_ms, leak_detection_threshold_ms, connection_test_query FROM config_databases`)
	if err != nil {
		return nil, IOErr(err)
	}
	defer rows.Close()

	out := map[string]DatabaseSpec{}
	for rows.Next() {
		var d DatabaseSpec
		if err := rows.Scan(&d.Name, &d.Description, &d.URL, &d.Username, &d.Password, &d.DriverID,
			&d.Pool.MaximumPoolSize, &d.Pool.MinimumIdle, &d.Pool.ConnectionTimeoutMs,
			&d.Pool.IdleTimeoutMs, &d.Pool.MaxLifetimeMs, &d.Pool.LeakDetectionThresholdMs,
			&d.Pool.ConnectionTestQuery); err != nil {
			return nil, IOErr(err)
		}
		out[d.Name] = d
	}
	return out, ioWrap(rows.Err())
}

func (r relDatabaseRepo) LoadByName(name string) (*DatabaseSpec, error) {
	row := r.rs.db.QueryRow(`SELECT name, description, url, username, password, driver_id,
		maximum_pool_size, minimum_idle, connection_timeout_ms, idle_timeout_ms,
		max_lifetime_ms, leak_detection_threshold_ms, connection_test_query FROM config_databases
		WHERE name = `+r.rs.ph(1), name)
	var d DatabaseSpec
	if err := row.Scan(&d.Name, &d.Description, &d.URL, &d.Username, &d.Password, &d.DriverID,
		&d.Pool.MaximumPoolSize, &d.Pool.MinimumIdle, &d.Pool.ConnectionTimeoutMs,
		&d.Pool.IdleTimeoutMs, &d.Pool.MaxLifetimeMs, &d.Pool.LeakDetectionThresholdMs,
		&d.Pool.ConnectionTestQuery); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, IOErr(err)
	}
	return &d, nil
}

func (r relDatabaseRepo) Upsert(spec DatabaseSpec) error {
	if spec.Name == "" {
		return InvalidErr(fmt.Errorf("database name is required"))
	}
	spec.Pool = spec.Pool.WithDefaults()
	exists, err := r.Exists(spec.Name)
	if err != nil {
		return err
	}
	if exists {
		_, err := r.rs.db.Exec(fmt.Sprintf(`UPDATE config_databases SET description=%s, url=%s,
			username=%s, password=%s, driver_id=%s, maximum_pool_size=%s, minimum_idle=%s,
			connection_timeout_ms=%s, idle_timeout_ms=%s, max_lifetime_ms=%s,
			leak_detection_threshold_ms=%s, connection_test_query=%s WHERE name=%s`,
			r.rs.ph(1), r.rs.ph(2), r.rs.ph(3), r.rs.ph(4), r.rs.ph(5), r.rs.ph(6), r.rs.ph(7),
			r.rs.ph(8), r.rs.ph(9), r.rs.ph(10), r.rs.ph(11), r.rs.ph(12), r.rs.ph(13)),
			spec.Description, spec.URL, spec.Username, spec.Password, spec.DriverID,
			spec.Pool.MaximumPoolSize, spec.Pool.MinimumIdle, spec.Pool.ConnectionTimeoutMs,
			spec.Pool.IdleTimeoutMs, spec.Pool.MaxLifetimeMs, spec.Pool.LeakDetectionThresholdMs,
			spec.Pool.ConnectionTestQuery, spec.Name)
		return ioWrap(err)
	}
	_, err = r.rs.db.Exec(fmt.Sprintf(`INSERT INTO config_databases
		(name, description, url, username, password, driver_id, maximum_pool_size, minimum_idle,
		 connection_timeout_ms, idle_timeout_ms, max_lifetime_ms, leak_detection_threshold_ms,
		 connection_test_query) VALUES (%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s)`,
		r.rs.ph(1), r.rs.ph(2), r.rs.ph(3), r.rs.ph(4), r.rs.ph(5), r.rs.ph(6), r.rs.ph(7),
		r.rs.ph(8), r.rs.ph(9), r.rs.ph(10), r.rs.ph(11), r.rs.ph(12), r.rs.ph(13)),
		spec.Name, spec.Description, spec.URL, spec.Username, spec.Password, spec.DriverID,
		spec.Pool.MaximumPoolSize, spec.Pool.MinimumIdle, spec.Pool.ConnectionTimeoutMs,
		spec.Pool.IdleTimeoutMs, spec.Pool.MaxLifetimeMs, spec.Pool.LeakDetectionThresholdMs,
		spec.Pool.ConnectionTestQuery)
	return ioWrap(err)
}

func (r relDatabaseRepo) Delete(name string) (bool, error) {
	res, err := r.rs.db.Exec(`DELETE FROM config_databases WHERE name = `+r.rs.ph(1), name)
	if err != nil {
		return false, IOErr(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r relDatabaseRepo) Exists(name string) (bool, error) {
	var one int
	err := r.rs.db.QueryRow(`SELECT 1 FROM config_databases WHERE name = `+r.rs.ph(1), name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, IOErr(err)
	}
	return true, nil
}

func (r relDatabaseRepo) Count() (int, error) {
	var n int
	err := r.rs.db.QueryRow(`SELECT COUNT(*) FROM config_databases`).Scan(&n)
	return n, ioWrap(err)
}

// --- queries ---
// Parameter lists are persisted as a JSON blob (parameters_json); queries
// need their parameters to remain usable by the binder regardless of
// provider.

type relQueryRepo struct{ rs *RelationalStore }

func (r relQueryRepo) scanQuery(row interface{ Scan(...any) error }) (*QuerySpec, error) {
	var q QuerySpec
	var paramsJSON string
	if err := row.Scan(&q.Name, &q.Description, &q.DatabaseName, &q.SQL, &q.QueryType,
		&q.TimeoutSeconds, &paramsJSON); err != nil {
		return nil, err
	}
	q.Parameters = decodeParams(paramsJSON)
	return &q, nil
}

func (r relQueryRepo) LoadAll() (map[string]QuerySpec, error) {
	rows, err := r.rs.db.Query(`SELECT name, description, database_name, sql, query_type,
		timeout_seconds, parameters_json FROM config_queries`)
	if err != nil {
		return nil, IOErr(err)
	}
	defer rows.Close()
	out := map[string]QuerySpec{}
	for rows.Next() {
		q, err := r.scanQuery(rows)
		if err != nil {
			return nil, IOErr(err)
		}
		out[q.Name] = *q
	}
	return out, ioWrap(rows.Err())
}

func (r relQueryRepo) LoadByName(name string) (*QuerySpec, error) {
	row := r.rs.db.QueryRow(`SELECT name, description, database_name, sql, query_type,
		timeout_seconds, parameters_json FROM config_queries WHERE name = `+r.rs.ph(1), name)
	q, err := r.scanQuery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, IOErr(err)
	}
	return q, nil
}

func (r relQueryRepo) Upsert(spec QuerySpec) error {
	if spec.Name == "" {
		return InvalidErr(fmt.Errorf("query name is required"))
	}
	paramsJSON := encodeParams(spec.Parameters)
	exists, err := r.Exists(spec.Name)
	if err != nil {
		return err
	}
	if exists {
		_, err := r.rs.db.Exec(fmt.Sprintf(`UPDATE config_queries SET description=%s, database_name=%s,
			sql=%s, query_type=%s, timeout_seconds=%s, parameters_json=%s WHERE name=%s`,
			r.rs.ph(1), r.rs.ph(2), r.rs.ph(3), r.rs.ph(4), r.rs.ph(5), r.rs.ph(6), r.rs.ph(7)),
			spec.Description, spec.DatabaseName, spec.SQL, spec.QueryType, spec.TimeoutSeconds,
			paramsJSON, spec.Name)
		return ioWrap(err)
	}
	_, err = r.rs.db.Exec(fmt.Sprintf(`INSERT INTO config_queries
		(name, description, database_name, sql, query_type, timeout_seconds, parameters_json)
		VALUES (%s,%s,%s,%s,%s,%s,%s)`,
		r.rs.ph(1), r.rs.ph(2), r.rs.ph(3), r.rs.ph(4), r.rs.ph(5), r.rs.ph(6), r.rs.ph(7)),
		spec.Name, spec.Description, spec.DatabaseName, spec.SQL, spec.QueryType,
		spec.TimeoutSeconds, paramsJSON)
	return ioWrap(err)
}

func (r relQueryRepo) Delete(name string) (bool, error) {
	res, err := r.rs.db.Exec(`DELETE FROM config_queries WHERE name = `+r.rs.ph(1), name)
	if err != nil {
		return false, IOErr(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r relQueryRepo) Exists(name string) (bool, error) {
	var one int
	err := r.rs.db.QueryRow(`SELECT 1 FROM config_queries WHERE name = `+r.rs.ph(1), name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, IOErr(err)
	}
	return true, nil
}

func (r relQueryRepo) Count() (int, error) {
	var n int
	err := r.rs.db.QueryRow(`SELECT COUNT(*) FROM config_queries`).Scan(&n)
	return n, ioWrap(err)
}

func (r relQueryRepo) CountByParent(databaseName string) (int, error) {
	var n int
	err := r.rs.db.QueryRow(`SELECT COUNT(*) FROM config_queries WHERE database_name = `+r.rs.ph(1), databaseName).Scan(&n)
	return n, ioWrap(err)
}

func (r relQueryRepo) ByParent(databaseName string) ([]QuerySpec, error) {
	rows, err := r.rs.db.Query(`SELECT name, description, database_name, sql, query_type,
		timeout_seconds, parameters_json FROM config_queries WHERE database_name = `+r.rs.ph(1), databaseName)
	if err != nil {
		return nil, IOErr(err)
	}
	defer rows.Close()
	var out []QuerySpec
	for rows.Next() {
		q, err := r.scanQuery(rows)
		if err != nil {
			return nil, IOErr(err)
		}
		out = append(out, *q)
	}
	return out, ioWrap(rows.Err())
}

// --- endpoints ---
// Pagination, parameter and response-shape metadata are intentionally not
// persisted here; they live only in the file provider (see DESIGN.md).

type relEndpointRepo struct{ rs *RelationalStore }

func (r relEndpointRepo) scanEndpoint(row interface{ Scan(...any) error }) (*EndpointSpec, error) {
	var e EndpointSpec
	var cacheEnabled, rateLimitEnabled int
	if err := row.Scan(&e.Name, &e.Description, &e.Path, &e.Method, &e.QueryName,
		&e.ResponseFormat, &cacheEnabled, &e.CacheTTLSeconds, &rateLimitEnabled,
		&e.RateLimitRequests, &e.RateLimitWindowSecs); err != nil {
		return nil, err
	}
	e.CacheEnabled = cacheEnabled != 0
	e.RateLimitEnabled = rateLimitEnabled != 0
	return &e, nil
}

func (r relEndpointRepo) LoadAll() (map[string]EndpointSpec, error) {
	rows, err := r.rs.db.Query(`SELECT name, description, path, method, query_name,
		response_format, cache_enabled, cache_ttl_seconds, rate_limit_enabled,
		rate_limit_requests, rate_limit_window_seconds FROM config_endpoints`)
	if err != nil {
		return nil, IOErr(err)
	}
	defer rows.Close()
	out := map[string]EndpointSpec{}
	for rows.Next() {
		e, err := r.scanEndpoint(rows)
		if err != nil {
			return nil, IOErr(err)
		}
		out[e.Name] = *e
	}
	return out, ioWrap(rows.Err())
}

func (r relEndpointRepo) LoadByName(name string) (*EndpointSpec, error) {
	row := r.rs.db.QueryRow(`SELECT name, description, path, method, query_name,
		response_format, cache_enabled, cache_ttl_seconds, rate_limit_enabled,
		rate_limit_requests, rate_limit_window_seconds FROM config_endpoints WHERE name = `+r.rs.ph(1), name)
	e, err := r.scanEndpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, IOErr(err)
	}
	return e, nil
}

func (r relEndpointRepo) Upsert(spec EndpointSpec) error {
	if spec.Name == "" {
		return InvalidErr(fmt.Errorf("endpoint name is required"))
	}
	exists, err := r.Exists(spec.Name)
	if err != nil {
		return err
	}
	boolInt := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	if exists {
		_, err := r.rs.db.Exec(fmt.Sprintf(`UPDATE config_endpoints SET description=%s, path=%s,
			method=%s, query_name=%s, response_format=%s, cache_enabled=%s, cache_ttl_seconds=%s,
			rate_limit_enabled=%s, rate_limit_requests=%s, rate_limit_window_seconds=%s WHERE name=%s`,
			r.rs.ph(1), r.rs.ph(2), r.rs.ph(3), r.rs.ph(4), r.rs.ph(5), r.rs.ph(6), r.rs.ph(7),
			r.rs.ph(8), r.rs.ph(9), r.rs.ph(10), r.rs.ph(11)),
			spec.Description, spec.Path, spec.Method, spec.QueryName, spec.ResponseFormat,
			boolInt(spec.CacheEnabled), spec.CacheTTLSeconds, boolInt(spec.RateLimitEnabled),
			spec.RateLimitRequests, spec.RateLimitWindowSecs, spec.Name)
		return ioWrap(err)
	}
	_, err = r.rs.db.Exec(fmt.Sprintf(`INSERT INTO config_endpoints
		(name, description, path, method, query_name, response_format, cache_enabled,
		 cache_ttl_seconds, rate_limit_enabled, rate_limit_requests, rate_limit_window_seconds)
		VALUES (%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s)`,
		r.rs.ph(1), r.rs.ph(2), r.rs.ph(3), r.rs.ph(4), r.rs.ph(5), r.rs.ph(6), r.rs.ph(7),
		r.rs.ph(8), r.rs.ph(9), r.rs.ph(10), r.rs.ph(11)),
		spec.Name, spec.Description, spec.Path, spec.Method, spec.QueryName, spec.ResponseFormat,
		boolInt(spec.CacheEnabled), spec.CacheTTLSeconds, boolInt(spec.RateLimitEnabled),
		spec.RateLimitRequests, spec.RateLimitWindowSecs)
	return ioWrap(err)
}

func (r relEndpointRepo) Delete(name string) (bool, error) {
	res, err := r.rs.db.Exec(`DELETE FROM config_endpoints WHERE name = `+r.rs.ph(1), name)
	if err != nil {
		return false, IOErr(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r relEndpointRepo) Exists(name string) (bool, error) {
	var one int
	err := r.rs.db.QueryRow(`SELECT 1 FROM config_endpoints WHERE name = `+r.rs.ph(1), name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, IOErr(err)
	}
	return true, nil
}

func (r relEndpointRepo) Count() (int, error) {
	var n int
	err := r.rs.db.QueryRow(`SELECT COUNT(*) FROM config_endpoints`).Scan(&n)
	return n, ioWrap(err)
}

func (r relEndpointRepo) CountByParent(queryName string) (int, error) {
	var n int
	err := r.rs.db.QueryRow(`SELECT COUNT(*) FROM config_endpoints WHERE query_name = `+r.rs.ph(1), queryName).Scan(&n)
	return n, ioWrap(err)
}

func (r relEndpointRepo) ByParent(queryName string) ([]EndpointSpec, error) {
	rows, err := r.rs.db.Query(`SELECT name, description, path, method, query_name,
		response_format, cache_enabled, cache_ttl_seconds, rate_limit_enabled,
		rate_limit_requests, rate_limit_window_seconds FROM config_endpoints WHERE query_name = `+r.rs.ph(1), queryName)
	if err != nil {
		return nil, IOErr(err)
	}
	defer rows.Close()
	var out []EndpointSpec
	for rows.Next() {
		e, err := r.scanEndpoint(rows)
		if err != nil {
			return nil, IOErr(err)
		}
		out = append(out, *e)
	}
	return out, ioWrap(rows.Err())
}

func encodeParams(params []QueryParamSpec) string {
	if len(params) == 0 {
		return ""
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	return string(raw)
}

func decodeParams(raw string) []QueryParamSpec {
	if raw == "" {
		return nil
	}
	var out []QueryParamSpec
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
