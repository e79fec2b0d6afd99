package service

import (
	"context"
	"fmt"
	"time"

	"github.com/carryonstow/wikimedia-discovery-analytics/internal/domain"
	"github.com/carryonstow/wikimedia-discovery-analytics/internal/logger"
	"github.com/carryonstow/wikimedia-discovery-analytics/internal/metrics"
)

// Repository is the data access interface for the pipeline.
type Repository interface {
	// NamespaceMap loads the dbname-to-project mapping for one snapshot.
	NamespaceMap(ctx context.Context, snapshot string) (map[string]string, error)
	// PageViews reads page view rows from the given hour partitions whose
	// timestamps fall inside the window.
	PageViews(ctx context.Context, partitions []domain.HourPartition, window domain.ClickWindow) ([]domain.PageView, error)
	// SearchRequests reads search request rows from one hour partition.
	SearchRequests(ctx context.Context, partition domain.HourPartition) ([]domain.SearchRequest, error)
	// ReplacePartition overwrites one output partition with the given records.
	ReplacePartition(ctx context.Context, partition domain.HourPartition, records []domain.SearchRecord) error
}

// RunSummary reports what one run read and wrote.
type RunSummary struct {
	Partition      domain.HourPartition
	PageViews      int
	ClickGroups    int
	Requests       int
	RecordsWritten int
	Duration       time.Duration
}

// Pipeline orchestrates the extraction, reshaping and correlation stages for
// one hour partition and writes the result. Re-running the same hour fully
// replaces the output partition.
type Pipeline struct {
	repo Repository
	log  logger.Logger
	jobm *metrics.Job
}

// NewPipeline creates a pipeline over the given repository.
func NewPipeline(repo Repository, log logger.Logger, jobm *metrics.Job) *Pipeline {
	return &Pipeline{
		repo: repo,
		log:  log,
		jobm: jobm,
	}
}

// Run processes one hour partition end to end.
func (p *Pipeline) Run(ctx context.Context, partition domain.HourPartition, snapshot string) (*RunSummary, error) {
	started := time.Now()

	namespaceMap, nsErr := p.repo.NamespaceMap(ctx, snapshot)
	if nsErr != nil {
		return nil, fmt.Errorf("load namespace map: %w", nsErr)
	}
	if len(namespaceMap) == 0 {
		// Not fatal: the run degrades to an empty partition. A wrong
		// snapshot identifier shows up here.
		p.log.Warn("Namespace map snapshot matched zero rows",
			logger.String("snapshot", snapshot),
		)
	}

	window := partition.ClickWindow()
	clickPartitions := []domain.HourPartition{partition, partition.Next()}

	pageViews, pvErr := p.repo.PageViews(ctx, clickPartitions, window)
	if pvErr != nil {
		return nil, fmt.Errorf("read page views: %w", pvErr)
	}

	groups, clickStats := NewClickExtractor(window).Extract(pageViews)
	p.jobm.PageViewsScanned.Add(float64(clickStats.Scanned))
	p.jobm.PageViewsMatched.Add(float64(clickStats.Matched))
	p.jobm.ClickGroups.Add(float64(clickStats.Groups))

	searchRequests, reqErr := p.repo.SearchRequests(ctx, partition)
	if reqErr != nil {
		return nil, fmt.Errorf("read search requests: %w", reqErr)
	}

	enriched, reqStats := NewRequestExtractor(namespaceMap).Extract(searchRequests)
	p.jobm.RequestsScanned.Add(float64(reqStats.Scanned))
	p.jobm.RequestsAccepted.Add(float64(reqStats.Accepted))
	for reason, count := range reqStats.Filtered {
		p.jobm.RequestsFiltered.WithLabelValues(reason).Add(float64(count))
	}

	reshaped := NewHitReshaper().Reshape(enriched)
	records := NewCorrelator().Correlate(reshaped, groups)

	if writeErr := p.repo.ReplacePartition(ctx, partition, records); writeErr != nil {
		return nil, fmt.Errorf("replace output partition: %w", writeErr)
	}
	p.jobm.RecordsWritten.Add(float64(len(records)))

	duration := time.Since(started)
	p.jobm.ObserveDuration(duration)

	p.log.Info("Hour partition processed",
		logger.Int("page_views", clickStats.Scanned),
		logger.Int("click_groups", clickStats.Groups),
		logger.Int("search_requests", reqStats.Scanned),
		logger.Int("requests_accepted", reqStats.Accepted),
		logger.Int("records_written", len(records)),
		logger.Duration("duration", duration),
	)

	return &RunSummary{
		Partition:      partition,
		PageViews:      clickStats.Scanned,
		ClickGroups:    clickStats.Groups,
		Requests:       reqStats.Accepted,
		RecordsWritten: len(records),
		Duration:       duration,
	}, nil
}
