// Package exec implements the query executor: it runs a
// bound QuerySpec against a Connection Manager-acquired connection and
// materializes rows into ordered column -> value records.
package exec

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sqlgateway/internal/bind"
	"sqlgateway/internal/catalog"
	"sqlgateway/internal/gatewayerr"
	"sqlgateway/internal/pool"
)

// Record is one result row, preserving column order as returned by the
// driver.
type Record struct {
	Columns []string
	Values  map[string]any
}

// args flattens Bound values into the positional slice database/sql wants.
func args(binds []bind.Bound) []any {
	out := make([]any, len(binds))
	for i, b := range binds {
		out[i] = b.Value
	}
	return out
}

func queryTimeout(q catalog.QuerySpec) time.Duration {
	if q.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(q.TimeoutSeconds) * time.Second
}

// Execute runs q against the database named by q.DatabaseName, returning
// materialized rows in result order.
func Execute(ctx context.Context, manager *pool.Manager, q catalog.QuerySpec, binds []bind.Bound) ([]Record, error) {
	conn, err := manager.Acquire(ctx, q.DatabaseName)
	if err != nil {
		return nil, gatewayerr.Classify(err)
	}
	defer conn.Close()

	execCtx, cancel := context.WithTimeout(ctx, queryTimeout(q))
	defer cancel()

	rows, err := conn.QueryContext(execCtx, q.SQL, args(binds)...)
	if err != nil {
		return nil, gatewayerr.Internal(fmt.Errorf("executing query %q: %w", q.Name, err))
	}
	defer rows.Close()

	return materialize(rows)
}

// ExecuteCount runs a count-shaped QuerySpec and returns the single
// scalar result, used for pagination totals.
func ExecuteCount(ctx context.Context, manager *pool.Manager, q catalog.QuerySpec, binds []bind.Bound) (int64, error) {
	conn, err := manager.Acquire(ctx, q.DatabaseName)
	if err != nil {
		return 0, gatewayerr.Classify(err)
	}
	defer conn.Close()

	execCtx, cancel := context.WithTimeout(ctx, queryTimeout(q))
	defer cancel()

	var count int64
	row := conn.QueryRowContext(execCtx, q.SQL, args(binds)...)
	if err := row.Scan(&count); err != nil {
		return 0, gatewayerr.Internal(fmt.Errorf("executing count query %q: %w", q.Name, err))
	}
	return count, nil
}

// ExecuteUpdate runs an UPDATE-shaped QuerySpec and returns the number of
// rows affected.
func ExecuteUpdate(ctx context.Context, manager *pool.Manager, q catalog.QuerySpec, binds []bind.Bound) (int64, error) {
	conn, err := manager.Acquire(ctx, q.DatabaseName)
	if err != nil {
		return 0, gatewayerr.Classify(err)
	}
	defer conn.Close()

	execCtx, cancel := context.WithTimeout(ctx, queryTimeout(q))
	defer cancel()

	result, err := conn.ExecContext(execCtx, q.SQL, args(binds)...)
	if err != nil {
		return 0, gatewayerr.Internal(fmt.Errorf("executing update %q: %w", q.Name, err))
	}
	return result.RowsAffected()
}

func materialize(rows *sql.Rows) ([]Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, gatewayerr.Internal(fmt.Errorf("reading columns: %w", err))
	}

	var out []Record
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, gatewayerr.Internal(fmt.Errorf("scanning row: %w", err))
		}

		values := make(map[string]any, len(cols))
		for i, col := range cols {
			values[col] = normalize(raw[i])
		}
		out = append(out, Record{Columns: cols, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, gatewayerr.Internal(fmt.Errorf("iterating rows: %w", err))
	}
	return out, nil
}

// normalize converts driver-specific byte-slice representations (common for
// both lib/pq and go-sqlite3 on text/numeric columns) into plain strings so
// JSON encoding behaves predictably.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
