// Package metrics exposes run counters for the query clicks job. The job is
// a one-shot batch process with no scrape surface, so counters are pushed to
// a Pushgateway at the end of the run when one is configured.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Filter reason labels for the requests_filtered_total counter.
const (
	ReasonNonWebSource  = "non_web_source"
	ReasonNoSubRequests = "no_sub_requests"
	ReasonMultiIndex    = "multi_index"
	ReasonIndexPattern  = "index_pattern"
	ReasonPaged         = "paged"
	ReasonOversized     = "oversized"
	ReasonUnmappedWiki  = "unmapped_wiki"
)

// Job holds the Prometheus collectors for a single run. Each run owns its
// registry so repeated in-process runs (tests) never collide on registration.
type Job struct {
	registry *prometheus.Registry

	PageViewsScanned prometheus.Counter
	PageViewsMatched prometheus.Counter
	ClickGroups      prometheus.Counter
	RequestsScanned  prometheus.Counter
	RequestsAccepted prometheus.Counter
	RequestsFiltered *prometheus.CounterVec
	RecordsWritten   prometheus.Counter
	RunDuration      prometheus.Gauge
}

// NewJob creates the collectors on a fresh registry.
func NewJob() *Job {
	reg := prometheus.NewRegistry()
	factory := promauto{reg}

	return &Job{
		registry:         reg,
		PageViewsScanned: factory.counter("query_clicks_page_views_scanned_total", "Page view rows read from the input partitions."),
		PageViewsMatched: factory.counter("query_clicks_page_views_matched_total", "Page view rows carrying a search token inside the click window."),
		ClickGroups:      factory.counter("query_clicks_click_groups_total", "Distinct (project, token) click groups built."),
		RequestsScanned:  factory.counter("query_clicks_requests_scanned_total", "Search request rows read from the input partition."),
		RequestsAccepted: factory.counter("query_clicks_requests_accepted_total", "Search requests surviving the main-request filter and namespace join."),
		RequestsFiltered: factory.counterVec("query_clicks_requests_filtered_total", "Search requests excluded, by reason.", "reason"),
		RecordsWritten:   factory.counter("query_clicks_records_written_total", "Output records written to the destination partition."),
		RunDuration:      factory.gauge("query_clicks_run_duration_seconds", "Wall clock duration of the run."),
	}
}

// ObserveDuration records the run duration.
func (j *Job) ObserveDuration(d time.Duration) {
	j.RunDuration.Set(d.Seconds())
}

// Push sends all collectors to the Pushgateway, grouped by job name and the
// partition being processed.
func (j *Job) Push(url, jobName string, grouping map[string]string) error {
	pusher := push.New(url, jobName).Gatherer(j.registry)
	for k, v := range grouping {
		pusher = pusher.Grouping(k, v)
	}
	if err := pusher.Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// promauto mirrors the promauto package against a private registry.
type promauto struct {
	reg *prometheus.Registry
}

func (f promauto) counter(name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	f.reg.MustRegister(c)
	return c
}

func (f promauto) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	f.reg.MustRegister(c)
	return c
}

func (f promauto) gauge(name, help string) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	f.reg.MustRegister(g)
	return g
}
