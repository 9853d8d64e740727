// Package validate implements the catalogue validator: a two-phase
// consistency check over the loaded catalogue, run in a disabled/gate/
// validate-only mode chosen by the Startup Orchestrator.
//
// Phase A checks the catalogue chain: referential integrity across the
// three mappings (endpoint -> query -> database), parameter arity and
// position density of queries, (method, path) uniqueness of endpoints, and
// per-database driver/pool bounds. Phase B probes the live schema for every
// available database, confirming the tables and columns a query references
// actually exist.
package validate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"sqlgateway/internal/catalog"
	"sqlgateway/internal/pool"
	"sqlgateway/internal/sqlutil"
)

// State is the Validator's run state machine.
type State string

const (
	StateIdle     State = "IDLE"
	StateRunningA State = "RUNNING_A"
	StateRunningB State = "RUNNING_B"
	StateDone     State = "DONE"
)

// Scope narrows an on-demand run to a slice of the catalogue chain. The
// empty scope runs both phases over everything.
type Scope string

const (
	ScopeAll           Scope = ""
	ScopeDatabases     Scope = "databases"
	ScopeQueries       Scope = "queries"
	ScopeEndpoints     Scope = "endpoints"
	ScopeRelationships Scope = "relationships"
)

// ParseScope maps a validate sub-resource path segment to a Scope.
func ParseScope(raw string) (Scope, error) {
	switch Scope(raw) {
	case ScopeAll, ScopeDatabases, ScopeQueries, ScopeEndpoints, ScopeRelationships:
		return Scope(raw), nil
	default:
		return ScopeAll, fmt.Errorf("unknown validation scope %q", raw)
	}
}

// Report is the outcome of a validation run: one line per entity that
// passed, one line per finding.
type Report struct {
	Successes []string `json:"successes"`
	Errors    []string `json:"errors"`
}

// OK reports whether the run produced zero findings.
func (r Report) OK() bool { return len(r.Errors) == 0 }

func (r *Report) pass(format string, args ...any) {
	r.Successes = append(r.Successes, fmt.Sprintf(format, args...))
}

func (r *Report) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Validator runs the two-phase check against a loaded catalogue and a
// Connection Manager whose pools are already built. A single pass per
// invocation; no concurrency inside the validator beyond Phase B's
// per-query fan-out.
type Validator struct {
	mu    sync.Mutex
	state State
}

func New() *Validator {
	return &Validator{state: StateIdle}
}

func (v *Validator) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *Validator) setState(s State) {
	v.mu.Lock()
	v.state = s
	v.mu.Unlock()
}

// Run executes Phase A then Phase B and returns the combined Report.
// Phase B only probes databases the Connection Manager holds available.
func (v *Validator) Run(ctx context.Context, store catalog.Store, manager *pool.Manager) (Report, error) {
	return v.RunScope(ctx, store, manager, ScopeAll)
}

// RunScope runs the slice of the check the scope names: a single entity
// kind re-runs its Phase A checks only, "relationships" re-runs the
// referential-closure checks, and the empty scope runs everything
// including the Phase B schema probe.
func (v *Validator) RunScope(ctx context.Context, store catalog.Store, manager *pool.Manager, scope Scope) (Report, error) {
	v.setState(StateRunningA)
	var report Report

	chain, err := loadChain(store)
	if err != nil {
		report.fail("catalogue unreadable: %v", err)
		v.setState(StateDone)
		return report, nil
	}

	switch scope {
	case ScopeDatabases:
		checkDatabases(chain, &report)
	case ScopeQueries:
		checkQueries(chain, &report)
	case ScopeEndpoints:
		checkEndpoints(chain, &report)
	case ScopeRelationships:
		checkRelationships(chain, &report)
	default:
		checkDatabases(chain, &report)
		checkQueries(chain, &report)
		checkEndpoints(chain, &report)

		v.setState(StateRunningB)
		phaseB(ctx, chain, manager, &report)
	}

	v.setState(StateDone)
	return report, nil
}

// chainView is the catalogue loaded once per run, with deterministic
// iteration order so repeated runs over an unchanged catalogue produce
// identical Reports.
type chainView struct {
	databases []catalog.DatabaseSpec
	queries   []catalog.QuerySpec
	endpoints []catalog.EndpointSpec

	databaseNames map[string]bool
	queryNames    map[string]bool
}

func loadChain(store catalog.Store) (*chainView, error) {
	databases, err := store.Databases().LoadAll()
	if err != nil {
		return nil, err
	}
	queries, err := store.Queries().LoadAll()
	if err != nil {
		return nil, err
	}
	endpoints, err := store.Endpoints().LoadAll()
	if err != nil {
		return nil, err
	}

	chain := &chainView{
		databaseNames: make(map[string]bool, len(databases)),
		queryNames:    make(map[string]bool, len(queries)),
	}
	for _, d := range databases {
		chain.databases = append(chain.databases, d)
		chain.databaseNames[d.Name] = true
	}
	for _, q := range queries {
		chain.queries = append(chain.queries, q)
		chain.queryNames[q.Name] = true
	}
	for _, e := range endpoints {
		chain.endpoints = append(chain.endpoints, e)
	}
	sort.Slice(chain.databases, func(i, j int) bool { return chain.databases[i].Name < chain.databases[j].Name })
	sort.Slice(chain.queries, func(i, j int) bool { return chain.queries[i].Name < chain.queries[j].Name })
	sort.Slice(chain.endpoints, func(i, j int) bool { return chain.endpoints[i].Name < chain.endpoints[j].Name })
	return chain, nil
}

// checkDatabases verifies each DatabaseSpec carries a non-empty driverId
// and a pool within bounds (maximumPoolSize >= minimumIdle >= 0, timeouts
// strictly positive).
func checkDatabases(chain *chainView, report *Report) {
	for _, d := range chain.databases {
		bad := false
		if d.DriverID == "" {
			report.fail("database %q: driverId is empty", d.Name)
			bad = true
		}
		if d.URL == "" {
			report.fail("database %q: url is empty", d.Name)
			bad = true
		}
		p := d.Pool.WithDefaults()
		if p.MinimumIdle < 0 || p.MaximumPoolSize < p.MinimumIdle {
			report.fail("database %q: pool bounds invalid (maximumPoolSize=%d, minimumIdle=%d)",
				d.Name, p.MaximumPoolSize, p.MinimumIdle)
			bad = true
		}
		if p.ConnectionTimeoutMs <= 0 || p.IdleTimeoutMs <= 0 || p.MaxLifetimeMs <= 0 {
			report.fail("database %q: pool timeouts must be strictly positive", d.Name)
			bad = true
		}
		if !bad {
			report.pass("database %q: ok", d.Name)
		}
	}
}

// checkQueries verifies each QuerySpec resolves its database, declares as
// many parameters as its SQL has positional placeholders, and carries no
// duplicate parameter positions.
func checkQueries(chain *chainView, report *Report) {
	for _, q := range chain.queries {
		bad := false
		if !chain.databaseNames[q.DatabaseName] {
			report.fail("query %q: references unknown database %q", q.Name, q.DatabaseName)
			bad = true
		}

		placeholders := strings.Count(q.SQL, "?")
		if placeholders != len(q.Parameters) {
			report.fail("query %q: declares %d parameters but SQL has %d placeholders",
				q.Name, len(q.Parameters), placeholders)
			bad = true
		}

		positions := map[int]bool{}
		for _, p := range q.Parameters {
			if positions[p.Position] {
				report.fail("query %q: duplicate parameter position %d", q.Name, p.Position)
				bad = true
				break
			}
			positions[p.Position] = true
		}

		if !bad {
			report.pass("query %q: ok", q.Name)
		}
	}
}

// checkEndpoints verifies each EndpointSpec resolves its query (and count
// query when set) and that no two endpoints claim the same (method, path)
// pair.
func checkEndpoints(chain *chainView, report *Report) {
	routes := map[string]string{}
	for _, e := range chain.endpoints {
		bad := false
		if !chain.queryNames[e.QueryName] {
			report.fail("endpoint %q: references unknown query %q", e.Name, e.QueryName)
			bad = true
		}
		if e.CountQueryName != "" && !chain.queryNames[e.CountQueryName] {
			report.fail("endpoint %q: references unknown count query %q", e.Name, e.CountQueryName)
			bad = true
		}

		route := strings.ToUpper(e.Method) + " " + e.Path
		if other, taken := routes[route]; taken {
			report.fail("endpoint %q: route %s already registered by endpoint %q", e.Name, route, other)
			bad = true
		} else {
			routes[route] = e.Name
		}

		if !bad {
			report.pass("endpoint %q: ok", e.Name)
		}
	}
}

// checkRelationships runs only the referential-closure slice of Phase A,
// for the on-demand /relationships validation resource.
func checkRelationships(chain *chainView, report *Report) {
	for _, q := range chain.queries {
		if !chain.databaseNames[q.DatabaseName] {
			report.fail("query %q: references unknown database %q", q.Name, q.DatabaseName)
			continue
		}
		report.pass("query %q -> database %q: ok", q.Name, q.DatabaseName)
	}
	for _, e := range chain.endpoints {
		if !chain.queryNames[e.QueryName] {
			report.fail("endpoint %q: references unknown query %q", e.Name, e.QueryName)
			continue
		}
		if e.CountQueryName != "" && !chain.queryNames[e.CountQueryName] {
			report.fail("endpoint %q: references unknown count query %q", e.Name, e.CountQueryName)
			continue
		}
		report.pass("endpoint %q -> query %q: ok", e.Name, e.QueryName)
	}
}

// phaseB probes, for every query whose database is available, that its
// referenced tables and columns actually exist, via an information_schema
// / PRAGMA introspection run concurrently per query.
func phaseB(ctx context.Context, chain *chainView, manager *pool.Manager, report *Report) {
	firstSuccess := len(report.Successes)
	firstError := len(report.Errors)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, q := range chain.queries {
		if manager == nil || !manager.Available(q.DatabaseName) {
			continue
		}
		wg.Add(1)
		go func(q catalog.QuerySpec) {
			defer wg.Done()
			findings := probeQuery(ctx, manager, q)
			mu.Lock()
			defer mu.Unlock()
			if len(findings) == 0 {
				report.pass("query %q: schema ok", q.Name)
			}
			report.Errors = append(report.Errors, findings...)
		}(q)
	}
	wg.Wait()

	// The fan-out appends in completion order; sort this phase's slice so
	// repeated runs over an unchanged catalogue yield identical Reports.
	sort.Strings(report.Successes[firstSuccess:])
	sort.Strings(report.Errors[firstError:])
}

// probeQuery confirms every table sqlutil.ExtractTables finds in q.SQL
// responds to a lightweight existence probe on q's database, then checks
// every column sqlutil.ExtractColumns finds against the introspected
// column set of the tables that passed the probe.
// A table that fails its existence probe is reported and excluded from
// the column check; its columns can't be resolved either way. The
// extractor is best-effort regex: its output is reported verbatim, never
// second-guessed.
func probeQuery(ctx context.Context, manager *pool.Manager, q catalog.QuerySpec) []string {
	conn, err := manager.Acquire(ctx, q.DatabaseName)
	if err != nil {
		return []string{fmt.Sprintf("query %q: %v", q.Name, err)}
	}
	defer conn.Close()

	spec, _ := manager.Spec(q.DatabaseName)
	driverName, _ := pool.DriverFor(spec.DriverID)

	var findings []string
	knownColumns := map[string]bool{}
	for _, table := range sqlutil.ExtractTables(q.SQL) {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", table)); err != nil {
			findings = append(findings, fmt.Sprintf("query %q: table %q not reachable: %v", q.Name, table, err))
			continue
		}

		cols, err := introspectColumns(ctx, conn, driverName, table)
		if err != nil {
			findings = append(findings, fmt.Sprintf("query %q: could not introspect columns of table %q: %v", q.Name, table, err))
			continue
		}
		for col := range cols {
			knownColumns[col] = true
		}
	}

	for _, col := range sqlutil.ExtractColumns(q.SQL) {
		if !knownColumns[strings.ToLower(col)] {
			findings = append(findings, fmt.Sprintf("query %q: column %q not found in referenced tables", q.Name, col))
		}
	}

	return findings
}

// introspectColumns returns the lower-cased column names of table,
// dispatching to the dialect the Connection Manager resolved for this
// database, rather than guessing a dialect from the SQL itself.
func introspectColumns(ctx context.Context, conn *pool.Conn, driverName, table string) (map[string]bool, error) {
	cols := map[string]bool{}
	switch driverName {
	case "postgres":
		rows, err := conn.QueryContext(ctx,
			"SELECT column_name FROM information_schema.columns WHERE lower(table_name) = lower($1)", table)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return nil, err
			}
			cols[strings.ToLower(name)] = true
		}
		return cols, rows.Err()

	case "sqlite3":
		rows, err := conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		for rows.Next() {
			var cid, notnull, pk int
			var name, ctype string
			var dflt sql.NullString
			if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
				return nil, err
			}
			cols[strings.ToLower(name)] = true
		}
		return cols, rows.Err()

	default:
		return nil, fmt.Errorf("unsupported driver %q for column introspection", driverName)
	}
}
