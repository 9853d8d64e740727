package bind

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"sqlgateway/internal/catalog"
	"sqlgateway/internal/gatewayerr"
)

func param(name string, typ catalog.ParamType, required bool, pos int) catalog.QueryParamSpec {
	return catalog.QueryParamSpec{Name: name, Type: typ, Required: required, Position: pos}
}

func TestBindCoercesEveryDeclaredType(t *testing.T) {
	q := catalog.QuerySpec{
		Name: "all-types",
		Parameters: []catalog.QueryParamSpec{
			param("s", catalog.ParamString, true, 1),
			param("i", catalog.ParamInteger, true, 2),
			param("l", catalog.ParamLong, true, 3),
			param("d", catalog.ParamDecimal, true, 4),
			param("b", catalog.ParamBoolean, true, 5),
			param("t", catalog.ParamTimestamp, true, 6),
		},
	}
	values := map[string]any{
		"s": "AAPL",
		"i": "42",
		"l": "9223372036854775807",
		"d": "123.456",
		"b": "TRUE",
		"t": "2025-06-01 09:30:00",
	}

	bound, err := Bind(q, values)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if len(bound) != 6 {
		t.Fatalf("expected 6 bound values, got %d", len(bound))
	}
	for i, b := range bound {
		if b.Position != i+1 {
			t.Fatalf("expected dense positions 1..6, got %d at index %d", b.Position, i)
		}
	}
	if bound[0].Value != "AAPL" {
		t.Fatalf("STRING: got %v", bound[0].Value)
	}
	if bound[1].Value != 42 {
		t.Fatalf("INTEGER: got %v", bound[1].Value)
	}
	if bound[2].Value != int64(9223372036854775807) {
		t.Fatalf("LONG: got %v", bound[2].Value)
	}
	if f, ok := bound[3].Value.(*big.Float); !ok || f.Text('f', 3) != "123.456" {
		t.Fatalf("DECIMAL: got %v", bound[3].Value)
	}
	if bound[4].Value != true {
		t.Fatalf("BOOLEAN: got %v", bound[4].Value)
	}
	ts, ok := bound[5].Value.(time.Time)
	if !ok || ts.Hour() != 9 || ts.Minute() != 30 {
		t.Fatalf("TIMESTAMP: got %v", bound[5].Value)
	}
}

func TestBindMissingRequiredParameter(t *testing.T) {
	q := catalog.QuerySpec{Parameters: []catalog.QueryParamSpec{param("id", catalog.ParamInteger, true, 1)}}

	_, err := Bind(q, map[string]any{})
	if err == nil {
		t.Fatalf("expected an error for the missing required parameter")
	}
	var ge *gatewayerr.GatewayError
	if !errors.As(err, &ge) || ge.Kind != gatewayerr.KindBadRequest {
		t.Fatalf("expected BAD_REQUEST, got %v", err)
	}
	if want := `Required parameter missing: id`; ge.Message != want {
		t.Fatalf("expected message %q, got %q", want, ge.Message)
	}
}

func TestBindEmptyStringCountsAsMissing(t *testing.T) {
	q := catalog.QuerySpec{Parameters: []catalog.QueryParamSpec{param("id", catalog.ParamInteger, true, 1)}}
	if _, err := Bind(q, map[string]any{"id": ""}); err == nil {
		t.Fatalf("expected an empty string to count as a missing required value")
	}
}

func TestBindOptionalMissingBindsNull(t *testing.T) {
	q := catalog.QuerySpec{Parameters: []catalog.QueryParamSpec{param("region", catalog.ParamString, false, 1)}}
	bound, err := Bind(q, map[string]any{})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if len(bound) != 1 || bound[0].Value != nil {
		t.Fatalf("expected a nil bind for the absent optional parameter, got %+v", bound)
	}
}

func TestBindCoercionFailures(t *testing.T) {
	cases := []struct {
		name string
		typ  catalog.ParamType
		raw  any
	}{
		{"integer-text", catalog.ParamInteger, "abc"},
		{"integer-overflow", catalog.ParamInteger, "9999999999"},
		{"long-text", catalog.ParamLong, "12x"},
		{"decimal-text", catalog.ParamDecimal, "12.3.4"},
		{"boolean-yes", catalog.ParamBoolean, "yes"},
		{"timestamp-garbage", catalog.ParamTimestamp, "June 1st"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := catalog.QuerySpec{Parameters: []catalog.QueryParamSpec{param("v", tc.typ, true, 1)}}
			_, err := Bind(q, map[string]any{"v": tc.raw})
			var ge *gatewayerr.GatewayError
			if !errors.As(err, &ge) || ge.Kind != gatewayerr.KindBadRequest {
				t.Fatalf("expected BAD_REQUEST for %v as %s, got %v", tc.raw, tc.typ, err)
			}
		})
	}
}

func TestBindAcceptsAlreadyTypedJSONValues(t *testing.T) {
	q := catalog.QuerySpec{
		Parameters: []catalog.QueryParamSpec{
			param("id", catalog.ParamInteger, true, 1),
			param("active", catalog.ParamBoolean, true, 2),
		},
	}
	// JSON bodies decode numbers as float64 and booleans as bool.
	bound, err := Bind(q, map[string]any{"id": float64(7), "active": true})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if bound[0].Value != 7 {
		t.Fatalf("expected JSON number accepted as INTEGER, got %v", bound[0].Value)
	}
	if bound[1].Value != true {
		t.Fatalf("expected JSON bool accepted as BOOLEAN, got %v", bound[1].Value)
	}
}

func TestBindTimestampFormats(t *testing.T) {
	formats := []string{
		"2025-06-01 09:30:00",
		"2025-06-01T09:30:00",
		"2025-06-01 09:30:00.123",
		"2025-06-01T09:30:00.123",
		"2025-06-01",
	}
	q := catalog.QuerySpec{Parameters: []catalog.QueryParamSpec{param("at", catalog.ParamTimestamp, true, 1)}}
	for _, raw := range formats {
		bound, err := Bind(q, map[string]any{"at": raw})
		if err != nil {
			t.Fatalf("Bind(%q): %v", raw, err)
		}
		ts, ok := bound[0].Value.(time.Time)
		if !ok {
			t.Fatalf("Bind(%q): expected time.Time, got %T", raw, bound[0].Value)
		}
		if ts.Year() != 2025 || ts.Month() != time.June || ts.Day() != 1 {
			t.Fatalf("Bind(%q): wrong date %v", raw, ts)
		}
	}

	// The date-only form means midnight.
	bound, _ := Bind(q, map[string]any{"at": "2025-06-01"})
	if ts := bound[0].Value.(time.Time); ts.Hour() != 0 || ts.Minute() != 0 {
		t.Fatalf("expected midnight for the date-only format, got %v", ts)
	}
}
