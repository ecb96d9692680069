package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/j-veylop/policy-analytics-tui/internal/cache"
)

func TestMetrics_CacheObserver(t *testing.T) {
	m := New()
	now := time.Unix(0, 0)
	c := cache.New[string](cache.Options{
		Name:     "query",
		TTL:      time.Minute,
		Clock:    func() time.Time { return now },
		Observer: m,
	})

	if err := c.Set("a", "value"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	c.Get("a")
	c.Get("missing")
	now = now.Add(2 * time.Minute)
	c.Get("a")

	if v := testutil.ToFloat64(m.CacheHits.WithLabelValues("query")); v != 1 {
		t.Errorf("hits = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.CacheMisses.WithLabelValues("query")); v != 2 {
		t.Errorf("misses = %v, want 2", v)
	}
	if v := testutil.ToFloat64(m.CacheEvictions.WithLabelValues("query", cache.ReasonExpired)); v != 1 {
		t.Errorf("expirations = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.CacheEntries.WithLabelValues("query")); v != 0 {
		t.Errorf("entries = %v, want 0", v)
	}
}

func TestMetrics_Recorders(t *testing.T) {
	m := New()
	m.ObserveAnalyze(3*time.Millisecond, false)
	m.ObserveAnalyze(time.Microsecond, true)
	m.ObserveImport("completed")
	m.ObserveImport("completed")
	m.SetDataset(42, 3)

	if n := testutil.CollectAndCount(m.AnalyzeDuration); n != 2 {
		t.Errorf("analyze series = %d, want 2", n)
	}
	if v := testutil.ToFloat64(m.ImportsTotal.WithLabelValues("completed")); v != 2 {
		t.Errorf("imports = %v, want 2", v)
	}
	if v := testutil.ToFloat64(m.DatasetRecords); v != 42 {
		t.Errorf("records = %v, want 42", v)
	}
	if v := testutil.ToFloat64(m.AnomalyGroups); v != 3 {
		t.Errorf("anomalies = %v, want 3", v)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Hit("catalog")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `policydash_cache_hits_total{cache="catalog"} 1`) {
		t.Errorf("exposition missing hit counter:\n%s", rec.Body.String())
	}
}

func TestMetrics_Serve(t *testing.T) {
	m := New()
	srv, err := m.Serve("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	defer func() { _ = srv.Shutdown(context.Background()) }()

	resp, err := http.Get("http://" + srv.Addr + "/metrics")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "policydash_dataset_records") {
		t.Error("expected dataset gauge in output")
	}
}

func TestMetrics_Isolated(t *testing.T) {
	a, b := New(), New()
	a.SetDataset(1, 0)
	if v := testutil.ToFloat64(b.DatasetRecords); v != 0 {
		t.Errorf("instances should not share collectors, got %v", v)
	}
}
