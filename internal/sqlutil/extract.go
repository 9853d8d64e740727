// Package sqlutil provides the best-effort SQL introspection helpers shared
// by the connection manager's startup table probe and the validator's
// schema probe.
//
// The extractor is regex-based. It will misidentify tables and columns
// inside comments, string literals, and dynamic SQL; callers fail closed
// by reporting its output verbatim rather than guessing at a smarter
// parse.
package sqlutil

import (
	"regexp"
	"strings"
)

var tableRef = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*)?)`)

// ExtractTables returns the distinct table identifiers referenced by sql
// after any FROM or JOIN keyword. A trailing "schema.table" reference is
// collapsed to "table".
func ExtractTables(sql string) []string {
	matches := tableRef.FindAllStringSubmatch(sql, -1)
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		ref := m[1]
		if idx := strings.LastIndex(ref, "."); idx >= 0 {
			ref = ref[idx+1:]
		}
		key := strings.ToLower(ref)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ref)
	}
	return out
}

var selectList = regexp.MustCompile(`(?is)SELECT\s+(.*?)\s+FROM\s`)
var wherePredicate = regexp.MustCompile(`(?i)\b([a-zA-Z_][a-zA-Z0-9_]*)\s*(?:=|<>|!=|<=|>=|<|>|\bLIKE\b|\bIN\b)`)
var identifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var sqlKeywords = map[string]bool{
	"and": true, "or": true, "not": true, "null": true, "true": true, "false": true,
	"select": true, "from": true, "where": true, "as": true, "distinct": true,
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
}

// ExtractColumns returns the distinct column-looking identifiers referenced
// in the SELECT list and the WHERE predicates of sql. Function names,
// keywords and the `*` wildcard are excluded.
func ExtractColumns(sql string) []string {
	seen := map[string]bool{}
	var out []string

	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || name == "*" {
			return
		}
		if !identifier.MatchString(name) {
			return
		}
		if sqlKeywords[strings.ToLower(name)] {
			return
		}
		key := strings.ToLower(name)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, name)
	}

	if m := selectList.FindStringSubmatch(sql); m != nil {
		for _, item := range strings.Split(m[1], ",") {
			item = strings.TrimSpace(item)
			// Drop "AS alias" and table-qualified prefixes ("t.col" -> "col").
			if i := strings.LastIndex(strings.ToLower(item), " as "); i >= 0 {
				item = item[:i]
			}
			item = strings.TrimSpace(item)
			if i := strings.LastIndex(item, "."); i >= 0 {
				item = item[i+1:]
			}
			// Skip function calls like COUNT(*) entirely — not a bare column.
			if strings.Contains(item, "(") {
				continue
			}
			add(item)
		}
	}

	for _, m := range wherePredicate.FindAllStringSubmatch(sql, -1) {
		col := m[1]
		if i := strings.LastIndex(col, "."); i >= 0 {
			col = col[i+1:]
		}
		add(col)
	}

	return out
}
