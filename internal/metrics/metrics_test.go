//nolint:testpackage // Testing internal registry wiring requires same package access
package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestJob_CountersRegister(t *testing.T) {
	job := NewJob()

	job.PageViewsScanned.Add(100)
	job.RequestsFiltered.WithLabelValues(ReasonPaged).Inc()
	job.ObserveDuration(3 * time.Second)

	families, gatherErr := job.registry.Gather()
	if gatherErr != nil {
		t.Fatalf("Gather() error = %v", gatherErr)
	}
	if len(families) == 0 {
		t.Fatal("no metric families registered")
	}

	names := make(map[string]bool)
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	for _, want := range []string{
		"query_clicks_page_views_scanned_total",
		"query_clicks_requests_filtered_total",
		"query_clicks_run_duration_seconds",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestJob_IsolatedRegistries(t *testing.T) {
	// Two jobs in one process must not collide on registration.
	a := NewJob()
	b := NewJob()
	a.RecordsWritten.Add(1)
	b.RecordsWritten.Add(2)
}

func TestJob_Push(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	job := NewJob()
	job.RecordsWritten.Add(5)

	grouping := map[string]string{"year": "2024", "hour": "9"}
	if err := job.Push(server.URL, "query_clicks_hourly", grouping); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	if !strings.Contains(path, "/job/query_clicks_hourly") {
		t.Errorf("push path = %q, want job segment", path)
	}
	for _, segment := range []string{"year/2024", "hour/9"} {
		if !strings.Contains(path, segment) {
			t.Errorf("push path = %q, missing grouping %q", path, segment)
		}
	}
}
