// Package dispatch implements the dispatch engine: it
// resolves an inbound HTTP request to its EndpointSpec, extracts and binds
// parameters, runs the underlying query, shapes the response (single, list,
// or paginated), and records metrics and traces for the call.
package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"sqlgateway/internal/bind"
	"sqlgateway/internal/catalog"
	"sqlgateway/internal/exec"
	"sqlgateway/internal/gatewayerr"
	"sqlgateway/internal/metrics"
	"sqlgateway/internal/middleware"
	"sqlgateway/internal/pool"
	"sqlgateway/internal/tracing"
)

// Engine owns route registration and per-request dispatch. The active
// route table is swapped atomically on Rebind, so catalogue writes become
// visible without restarting and in-flight requests finish on the table
// they started with.
type Engine struct {
	store     catalog.Store
	manager   *pool.Manager
	collector *metrics.Collector
	async     *asyncRegistry
	routes    atomic.Pointer[http.ServeMux]
}

func NewEngine(store catalog.Store, manager *pool.Manager, collector *metrics.Collector) *Engine {
	return &Engine{store: store, manager: manager, collector: collector, async: newAsyncRegistry()}
}

// RegisterRoutes registers one handler per EndpointSpec currently in the
// catalogue, using Go's method+wildcard ServeMux patterns so arbitrary
// catalogue-declared paths (including {pathVar} segments) resolve natively.
func (e *Engine) RegisterRoutes(mux *http.ServeMux) error {
	endpoints, err := e.store.Endpoints().LoadAll()
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, ep := range endpoints {
		pattern := strings.ToUpper(ep.Method) + " " + ep.Path
		if seen[pattern] {
			continue
		}
		seen[pattern] = true
		mux.HandleFunc(pattern, e.makeHandler(ep))
	}
	mux.HandleFunc("GET /api/generic/async/{requestId}", e.handleAsyncStatus)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		gatewayerr.MapToHTTP(w, gatewayerr.NotFound("unknown endpoint"), r.URL.Path)
	})
	return nil
}

// Rebind synthesizes a fresh route table from the current catalogue and
// swaps it in. Called at startup and again after every catalogue write
// through the admin surface.
func (e *Engine) Rebind() error {
	mux := http.NewServeMux()
	if err := e.RegisterRoutes(mux); err != nil {
		return err
	}
	e.routes.Store(mux)
	return nil
}

// ServeHTTP dispatches against the route table most recently installed by
// Rebind.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := e.routes.Load()
	if mux == nil {
		gatewayerr.MapToHTTP(w, gatewayerr.NotFound("unknown endpoint"), r.URL.Path)
		return
	}
	mux.ServeHTTP(w, r)
}

// handleAsyncStatus lets a caller poll the outcome of a job submitted via
// the async=true query-string protocol.
func (e *Engine) handleAsyncStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := e.async.get(r.PathValue("requestId"))
	if !ok {
		gatewayerr.MapToHTTP(w, gatewayerr.NotFound("unknown requestId"), r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(job)
}

// makeHandler returns the route handler for one EndpointSpec. A request
// whose query string carries async=true is forked onto a detached task
// and answered with 202 Accepted immediately; everything else proceeds
// inline.
func (e *Engine) makeHandler(ep catalog.EndpointSpec) http.HandlerFunc {
	pathVars := pathVarNames(ep.Path)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("async") == "true" {
			values := extractParams(r, pathVars)
			e.submitAsync(w, r, ep, func(ctx context.Context) (any, error) {
				return e.run(ctx, ep, values)
			})
			return
		}

		collect := e.collector != nil && e.collector.ShouldCollect(ep.Path)
		start := time.Now()
		var heapBefore uint64
		if collect {
			heapBefore = heapInUse()
		}
		status := e.handle(w, r, ep, pathVars)
		if collect {
			e.observe(r, ep, status, start, heapBefore)
		}
	}
}

// heapInUse samples the resident heap for the before/after memory delta
// recorded on sampled requests.
func heapInUse() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}

func (e *Engine) observe(r *http.Request, ep catalog.EndpointSpec, status int, start time.Time, heapBefore uint64) {
	shape := metrics.ShapeBasic
	if ep.Pagination != nil && ep.Pagination.Enabled {
		shape = metrics.ShapePaginated
	}
	var memDelta int64
	if heapNow := heapInUse(); heapNow > heapBefore {
		memDelta = int64(heapNow - heapBefore)
	}
	e.collector.Observe(metrics.PerformanceRecord{
		Timestamp:        start,
		RequestID:        middleware.GetRequestID(r.Context()),
		TraceID:          middleware.GetTraceID(r.Context()),
		EndpointName:     ep.Name,
		Method:           r.Method,
		Path:             ep.Path,
		StatusCode:       status,
		DurationMillis:   time.Since(start).Milliseconds(),
		MemoryDeltaBytes: memDelta,
		Shape:            shape,
	})
}

// handle runs one synchronous dispatch and writes the HTTP response,
// returning the status code written for metrics purposes.
func (e *Engine) handle(w http.ResponseWriter, r *http.Request, ep catalog.EndpointSpec, pathVars []string) int {
	values := extractParams(r, pathVars)

	ctx, span := tracing.StartDispatchSpan(r.Context(), ep.Name, "", ep.QueryName)
	defer span.End()

	result, err := e.run(ctx, ep, values)
	if err != nil {
		return gatewayerr.MapToHTTP(w, err, r.URL.Path)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
	return http.StatusOK
}

// run executes the query chain behind ep and shapes the result, shared by
// the synchronous and async code paths.
func (e *Engine) run(ctx context.Context, ep catalog.EndpointSpec, values map[string]any) (any, error) {
	query, err := e.store.Queries().LoadByName(ep.QueryName)
	if err != nil {
		return nil, err
	}
	if query == nil {
		return nil, gatewayerr.NotFound("query not found: " + ep.QueryName)
	}

	if ep.Pagination != nil && ep.Pagination.Enabled {
		pagedCtx, pagedSpan := tracing.StartExecuteSpan(ctx, query.DatabaseName, query.Name)
		defer pagedSpan.End()
		return e.runPaginated(pagedCtx, ep, *query, values)
	}

	bindCtx, bindSpan := tracing.StartBindSpan(ctx, query.Name)
	binds, err := bind.Bind(*query, values)
	bindSpan.End()
	if err != nil {
		return nil, err
	}

	execCtx, execSpan := tracing.StartExecuteSpan(bindCtx, query.DatabaseName, query.Name)
	defer execSpan.End()

	switch query.QueryType {
	case catalog.QueryUpdate:
		affected, err := exec.ExecuteUpdate(execCtx, e.manager, *query, binds)
		if err != nil {
			return nil, err
		}
		return map[string]any{"rowsAffected": affected}, nil
	default:
		rows, err := exec.Execute(execCtx, e.manager, *query, binds)
		if err != nil {
			return nil, err
		}
		tracing.RecordRowCount(execSpan, len(rows))
		return shapeRows(rows)
	}
}

// shapeRows applies the non-paginated response shaping:
// zero rows is a 404, exactly one row is returned as a bare object, and
// several rows are wrapped in a {data: [...]} envelope.
func shapeRows(rows []exec.Record) (any, error) {
	switch len(rows) {
	case 0:
		return nil, gatewayerr.NotFound("no data found")
	case 1:
		return rows[0].Values, nil
	default:
		return map[string]any{"data": recordsToMaps(rows)}, nil
	}
}

// runPaginated resolves page/size, injects the synthetic limit/offset
// values after the declared parameters, and wraps the rows in the paging
// envelope. The count query, when configured, is bound with the
// non-pagination parameters only.
func (e *Engine) runPaginated(ctx context.Context, ep catalog.EndpointSpec, query catalog.QuerySpec, values map[string]any) (any, error) {
	page, err := resolvePage(values, *ep.Pagination)
	if err != nil {
		return nil, err
	}

	pagedValues := map[string]any{}
	for k, v := range values {
		pagedValues[k] = v
	}
	pagedValues["limit"] = page.Size
	pagedValues["offset"] = page.offset()

	pagedBinds, err := bind.Bind(query, pagedValues)
	if err != nil {
		return nil, err
	}

	rows, err := exec.Execute(ctx, e.manager, query, pagedBinds)
	if err != nil {
		return nil, err
	}

	var total int64
	if ep.CountQueryName != "" {
		countQuery, err := e.store.Queries().LoadByName(ep.CountQueryName)
		if err != nil {
			return nil, err
		}
		if countQuery != nil {
			countBinds, err := bind.Bind(*countQuery, values)
			if err != nil {
				return nil, err
			}
			total, err = exec.ExecuteCount(ctx, e.manager, *countQuery, countBinds)
			if err != nil {
				return nil, err
			}
		}
	}

	return buildPageEnvelope(recordsToMaps(rows), page, total), nil
}

func recordsToMaps(rows []exec.Record) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Values)
	}
	return out
}
