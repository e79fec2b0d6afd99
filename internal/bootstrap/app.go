// Package bootstrap handles initialization and lifecycle of one job run.
package bootstrap

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"github.com/carryonstow/wikimedia-discovery-analytics/internal/config"
	"github.com/carryonstow/wikimedia-discovery-analytics/internal/database"
	"github.com/carryonstow/wikimedia-discovery-analytics/internal/domain"
	"github.com/carryonstow/wikimedia-discovery-analytics/internal/export"
	"github.com/carryonstow/wikimedia-discovery-analytics/internal/logger"
	"github.com/carryonstow/wikimedia-discovery-analytics/internal/metrics"
	"github.com/carryonstow/wikimedia-discovery-analytics/internal/profiling"
	"github.com/carryonstow/wikimedia-discovery-analytics/internal/service"
)

// Start runs the query clicks job for the configured hour partition.
func Start() error {
	profiling.StartPprofServer()
	profiler, _ := profiling.StartPyroscope("query-clicks") //nolint:errcheck // env-gated, non-critical
	defer func() { _ = profiler.Stop() }()

	cfg, configErr := LoadConfig()
	if configErr != nil {
		return fmt.Errorf("config: %w", configErr)
	}

	log, logErr := CreateLogger(cfg)
	if logErr != nil {
		return fmt.Errorf("logger: %w", logErr)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(logger.String("run_id", uuid.NewString()))

	partition := domain.HourPartition{
		Year:  cfg.Job.Year,
		Month: cfg.Job.Month,
		Day:   cfg.Job.Day,
		Hour:  cfg.Job.Hour,
	}

	log.Info("Starting query clicks run",
		logger.Int("year", partition.Year),
		logger.Int("month", partition.Month),
		logger.Int("day", partition.Day),
		logger.Int("hour", partition.Hour),
		logger.String("snapshot", cfg.Job.Snapshot),
	)

	db, dbErr := SetupDatabase(cfg)
	if dbErr != nil {
		return fmt.Errorf("database: %w", dbErr)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close database", logger.Error(closeErr))
		}
	}()
	log.Info("Database connection established")

	// Cancellation is at the granularity of the whole run; there is no
	// mid-run checkpoint to resume from.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo := database.NewRepository(db, database.Tables{
		SearchRequests: cfg.Tables.SearchRequests,
		PageViews:      cfg.Tables.PageViews,
		NamespaceMap:   cfg.Tables.NamespaceMap,
		Output:         cfg.Tables.Output,
	})
	jobMetrics := metrics.NewJob()
	pipeline := service.NewPipeline(repo, log, jobMetrics)

	summary, runErr := pipeline.Run(ctx, partition, cfg.Job.Snapshot)
	if runErr != nil {
		log.Error("Run failed, no output partition written", logger.Error(runErr))
		return fmt.Errorf("run: %w", runErr)
	}

	exportRecords(ctx, cfg, log, repo, partition, summary)
	pushMetrics(cfg, log, jobMetrics, partition)

	log.Info("Query clicks run complete",
		logger.Int("records_written", summary.RecordsWritten),
		logger.Duration("duration", summary.Duration),
	)
	return nil
}

// exportRecords re-reads nothing; it ships the run's records to the
// relevance lab when an Elasticsearch target is configured. Failures are
// logged, not fatal: the SQL partition is the canonical output.
func exportRecords(
	ctx context.Context,
	cfg *config.Config,
	log logger.Logger,
	repo *database.Repository,
	partition domain.HourPartition,
	summary *service.RunSummary,
) {
	if !cfg.Export.Enabled() || summary.RecordsWritten == 0 {
		return
	}

	exporter, newErr := export.New(export.Config{
		URL:      cfg.Export.URL,
		Username: cfg.Export.Username,
		Password: cfg.Export.Password,
		Index:    cfg.Export.Index,
	}, log)
	if newErr != nil {
		log.Error("Relevance lab export unavailable", logger.Error(newErr))
		return
	}

	records, readErr := repo.OutputPartition(ctx, partition)
	if readErr != nil {
		log.Error("Failed to read back output partition for export", logger.Error(readErr))
		return
	}

	if exportErr := exporter.Export(ctx, records); exportErr != nil {
		log.Error("Relevance lab export failed", logger.Error(exportErr))
	}
}

// pushMetrics ships the run counters to the Pushgateway when one is
// configured, grouped by the processed partition.
func pushMetrics(cfg *config.Config, log logger.Logger, jobMetrics *metrics.Job, partition domain.HourPartition) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}

	grouping := map[string]string{
		"year":  strconv.Itoa(partition.Year),
		"month": strconv.Itoa(partition.Month),
		"day":   strconv.Itoa(partition.Day),
		"hour":  strconv.Itoa(partition.Hour),
	}
	if pushErr := jobMetrics.Push(cfg.Metrics.PushgatewayURL, cfg.Metrics.JobName, grouping); pushErr != nil {
		log.Error("Failed to push run metrics", logger.Error(pushErr))
	}
}
