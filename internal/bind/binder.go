// Package bind implements the parameter binder: it coerces
// untyped request values into typed, positional SQL bind values per a
// QuerySpec's declared parameters.
package bind

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"sqlgateway/internal/catalog"
	"sqlgateway/internal/gatewayerr"
)

// Bound is one resolved (position, typed value) pair ready for a prepared
// statement.
type Bound struct {
	Position int
	Value    any
}

// timestampLayouts are tried in order; the first successful parse wins.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Bind resolves every QueryParamSpec of q in declaration order against
// values (an untyped name -> value map collected from HTTP), producing
// contiguous positions 1..N.
func Bind(q catalog.QuerySpec, values map[string]any) ([]Bound, error) {
	out := make([]Bound, 0, len(q.Parameters))
	for i, p := range q.Parameters {
		raw, present := values[p.Name]
		if !present || isEmptyString(raw) {
			if p.Required {
				return nil, gatewayerr.BadRequest(fmt.Sprintf("Required parameter missing: %s", p.Name))
			}
			out = append(out, Bound{Position: i + 1, Value: nil})
			continue
		}

		typed, err := coerce(p, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, Bound{Position: i + 1, Value: typed})
	}
	return out, nil
}

func isEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && s == ""
}

// coerce converts raw into the Go value matching p.Type. Already-typed
// values (e.g. numeric from a JSON body) are accepted without re-coercion
// when they are already type-compatible.
func coerce(p catalog.QueryParamSpec, raw any) (any, error) {
	switch p.Type {
	case catalog.ParamString:
		if s, ok := raw.(string); ok {
			return s, nil
		}
		return fmt.Sprintf("%v", raw), nil

	case catalog.ParamInteger:
		if n, ok := raw.(int); ok {
			return n, nil
		}
		if f, ok := raw.(float64); ok {
			return int(f), nil
		}
		s, ok := raw.(string)
		if !ok {
			return nil, gatewayerr.BadRequest(fmt.Sprintf("invalid INTEGER for %q", p.Name))
		}
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, gatewayerr.BadRequest(fmt.Sprintf("invalid INTEGER for %q: %v", p.Name, err))
		}
		return int(n), nil

	case catalog.ParamLong:
		if n, ok := raw.(int64); ok {
			return n, nil
		}
		if f, ok := raw.(float64); ok {
			return int64(f), nil
		}
		s, ok := raw.(string)
		if !ok {
			return nil, gatewayerr.BadRequest(fmt.Sprintf("invalid LONG for %q", p.Name))
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, gatewayerr.BadRequest(fmt.Sprintf("invalid LONG for %q: %v", p.Name, err))
		}
		return n, nil

	case catalog.ParamDecimal:
		if f, ok := raw.(*big.Float); ok {
			return f, nil
		}
		s, ok := raw.(string)
		if !ok {
			s = fmt.Sprintf("%v", raw)
		}
		f, ok := new(big.Float).SetString(s)
		if !ok {
			return nil, gatewayerr.BadRequest(fmt.Sprintf("invalid DECIMAL for %q", p.Name))
		}
		return f, nil

	case catalog.ParamBoolean:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
		s, ok := raw.(string)
		if !ok {
			return nil, gatewayerr.BadRequest(fmt.Sprintf("invalid BOOLEAN for %q", p.Name))
		}
		switch strings.ToLower(s) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, gatewayerr.BadRequest(fmt.Sprintf("invalid BOOLEAN for %q: %q", p.Name, s))
		}

	case catalog.ParamTimestamp:
		if t, ok := raw.(time.Time); ok {
			return t, nil
		}
		s, ok := raw.(string)
		if !ok {
			return nil, gatewayerr.BadRequest(fmt.Sprintf("invalid TIMESTAMP for %q", p.Name))
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, gatewayerr.BadRequest(fmt.Sprintf("invalid TIMESTAMP for %q: %q", p.Name, s))

	default:
		return nil, gatewayerr.Internal(fmt.Errorf("unknown parameter type %q for %q", p.Type, p.Name))
	}
}
