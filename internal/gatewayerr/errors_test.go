package gatewayerr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sqlgateway/internal/catalog"
	"sqlgateway/internal/pool"
)

func TestStatusForFixedMapping(t *testing.T) {
	cases := map[Kind]int{
		KindBadRequest:          http.StatusBadRequest,
		KindNotFound:            http.StatusNotFound,
		KindConflict:            http.StatusConflict,
		KindDatabaseUnavailable: http.StatusServiceUnavailable,
		KindInternal:            http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := StatusFor(kind); got != want {
			t.Fatalf("StatusFor(%s) = %d, want %d", kind, got, want)
		}
	}
	if got := StatusFor(Kind("MYSTERY")); got != http.StatusInternalServerError {
		t.Fatalf("unknown kinds must map to 500, got %d", got)
	}
}

func TestMapToHTTPWritesEnvelope(t *testing.T) {
	rr := httptest.NewRecorder()
	status := MapToHTTP(rr, BadRequest("Required parameter missing: id"), "/api/trades")

	if status != http.StatusBadRequest || rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d/%d", status, rr.Code)
	}

	var body struct {
		Error     bool   `json:"error"`
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
		Path      string `json:"path"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Error {
		t.Fatalf("expected error:true")
	}
	if body.ErrorCode != "BAD_REQUEST" {
		t.Fatalf("expected errorCode BAD_REQUEST, got %q", body.ErrorCode)
	}
	if body.Message != "Required parameter missing: id" {
		t.Fatalf("unexpected message %q", body.Message)
	}
	if body.Path != "/api/trades" {
		t.Fatalf("unexpected path %q", body.Path)
	}

	ts, err := time.Parse("2006-01-02 15:04:05", body.Timestamp)
	if err != nil {
		t.Fatalf("timestamp %q does not parse as YYYY-MM-DD HH:MM:SS: %v", body.Timestamp, err)
	}
	if ts.After(time.Now().UTC().Add(time.Second)) {
		t.Fatalf("timestamp %v is in the future", ts)
	}
}

func TestClassifyStoreErrors(t *testing.T) {
	cases := []struct {
		in   error
		want Kind
	}{
		{catalog.NotFoundErr(fmt.Errorf("x")), KindNotFound},
		{catalog.ConflictErr(fmt.Errorf("x")), KindConflict},
		{catalog.InvalidErr(fmt.Errorf("x")), KindBadRequest},
		{catalog.IOErr(fmt.Errorf("x")), KindInternal},
	}
	for _, tc := range cases {
		if got := Classify(tc.in).Kind; got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestClassifyPoolErrors(t *testing.T) {
	unavailable := &pool.ErrDatabaseUnavailable{Name: "staging", Reason: "connection refused"}
	ge := Classify(fmt.Errorf("acquiring: %w", unavailable))
	if ge.Kind != KindDatabaseUnavailable {
		t.Fatalf("expected DATABASE_UNAVAILABLE, got %s", ge.Kind)
	}

	unknown := &pool.ErrDatabaseUnknown{Name: "ghost"}
	if got := Classify(unknown).Kind; got != KindNotFound {
		t.Fatalf("expected NOT_FOUND for an unknown database, got %s", got)
	}
}

func TestClassifyPassesThroughGatewayErrors(t *testing.T) {
	orig := Conflict("duplicate route")
	if got := Classify(fmt.Errorf("wrapping: %w", orig)); got != orig {
		t.Fatalf("expected the original GatewayError back, got %+v", got)
	}
}

func TestClassifyDefaultsToInternal(t *testing.T) {
	if got := Classify(errors.New("boom")).Kind; got != KindInternal {
		t.Fatalf("expected INTERNAL_ERROR, got %s", got)
	}
}
