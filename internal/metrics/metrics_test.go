package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecords(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.ObserveRequest(http.MethodGet, "/health", http.StatusOK, 3*time.Millisecond)
	c.ObserveRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)
	c.RecordLookup("file", LookupFound)
	c.RecordLookup("file", LookupNotFound)
	c.RecordLookup("file", LookupNotFound)
	c.RecordBackendError("dynamodb", "GetServices")
	c.RecordReload("file", ReloadFailure)

	if got := testutil.ToFloat64(c.requestsTotal.WithLabelValues("GET", "/health", "200")); got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
	if got := testutil.ToFloat64(c.lookupsTotal.WithLabelValues("file", LookupNotFound)); got != 2 {
		t.Fatalf("expected 2 not-found lookups, got %v", got)
	}
	if got := testutil.ToFloat64(c.backendErrors.WithLabelValues("dynamodb", "GetServices")); got != 1 {
		t.Fatalf("expected 1 backend error, got %v", got)
	}
	if got := testutil.ToFloat64(c.reloadsTotal.WithLabelValues("file", ReloadFailure)); got != 1 {
		t.Fatalf("expected 1 failed reload, got %v", got)
	}
	if n := testutil.CollectAndCount(c.requestDuration); n != 1 {
		t.Fatalf("expected one duration series, got %d", n)
	}
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	c.RecordLookup("file", LookupFound)
	c.RecordBackendError("file", "GetConfig")
	c.RecordReload("file", ReloadSuccess)
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector(nil)
	c.RecordLookup("file", LookupFound)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `config_service_backend_lookups_total{backend="file",result="found"} 1`) {
		t.Fatalf("lookup counter missing from exposition:\n%s", body)
	}
}
