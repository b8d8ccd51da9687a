package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"loomworks/trawl/pkg/config"
	"loomworks/trawl/pkg/export"
)

func newTestCollector() *Collector {
	return NewCollector(&config.MetricsConfig{Enabled: true}, nil)
}

func TestCollectorImplementsExportMetrics(t *testing.T) {
	var _ export.Metrics = newTestCollector()
}

func TestCollectorCountsPipelineEvents(t *testing.T) {
	c := newTestCollector()

	c.PageFetched("experiment")
	c.PageFetched("experiment")
	c.PageFetched("dataset")
	c.RetryScheduled()
	c.ThrottleApplied("dataset")
	c.RecordsExported("experiment", 1500)
	c.EntityFailed("dataset")
	c.RunCompleted("partial")

	if got := testutil.ToFloat64(c.pagesFetched.WithLabelValues("experiment")); got != 2 {
		t.Errorf("pages_fetched{experiment} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.retriesTotal); got != 1 {
		t.Errorf("retries_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.recordsExported.WithLabelValues("experiment")); got != 1500 {
		t.Errorf("records_exported{experiment} = %v, want 1500", got)
	}
	if got := testutil.ToFloat64(c.entityFailures.WithLabelValues("dataset")); got != 1 {
		t.Errorf("entity_failures{dataset} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.runsTotal.WithLabelValues("partial")); got != 1 {
		t.Errorf("runs_total{partial} = %v, want 1", got)
	}
}

func TestNewCollectorDoesNotMutateConfig(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	c := NewCollector(cfg, nil)

	if cfg.Namespace != "" || cfg.Subsystem != "" {
		t.Errorf("NewCollector wrote defaults into the caller's config: %+v", cfg)
	}

	// The defaults still apply to the metric names themselves.
	c.PageFetched("experiment")
	if got := testutil.CollectAndCount(c.pagesFetched, "trawl_export_pages_fetched_total"); got != 1 {
		t.Errorf("default-prefixed metric name not found, collected %d", got)
	}
}

func TestCollectorDisabledRecordsNothing(t *testing.T) {
	c := NewCollector(&config.MetricsConfig{Enabled: false}, nil)

	c.PageFetched("experiment")
	c.RetryScheduled()
	c.RecordsExported("experiment", 100)

	if got := testutil.ToFloat64(c.pagesFetched.WithLabelValues("experiment")); got != 0 {
		t.Errorf("disabled collector recorded %v pages", got)
	}
	if got := testutil.ToFloat64(c.retriesTotal); got != 0 {
		t.Errorf("disabled collector recorded %v retries", got)
	}
}

func TestCollectorRecordsExportedIgnoresNonPositive(t *testing.T) {
	c := newTestCollector()

	c.RecordsExported("experiment", 0)
	c.RecordsExported("experiment", -5)

	if got := testutil.ToFloat64(c.recordsExported.WithLabelValues("experiment")); got != 0 {
		t.Errorf("non-positive counts recorded: %v", got)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	c := newTestCollector()
	c.PageFetched("experiment")

	server := httptest.NewServer(c.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("failed to scrape: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "trawl_export_pages_fetched_total") {
		t.Errorf("exposition missing pages metric:\n%s", body)
	}
}
