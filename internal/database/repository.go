// Package database implements the PostgreSQL repository behind the pipeline:
// partition-pruned reads of the two event logs, the snapshot read of the
// namespace map, and the transactional overwrite of the output partition.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/carryonstow/wikimedia-discovery-analytics/internal/domain"
)

// Named constants to avoid magic numbers.
const (
	// columnsPerRow is the number of columns inserted per output row.
	columnsPerRow = 13

	// insertBatchSize is the maximum number of rows per INSERT statement.
	insertBatchSize = 50

	// partitionColumns is the number of partition selector columns
	// (year, month, day, hour).
	partitionColumns = 4
)

// Tables names the relations the repository reads and writes.
type Tables struct {
	SearchRequests string
	PageViews      string
	NamespaceMap   string
	Output         string
}

// Repository handles database operations for the query clicks job.
type Repository struct {
	db     *sql.DB
	tables Tables
}

// NewRepository creates a new repository with the given database connection.
// Table names must be pre-validated identifiers; they are interpolated into
// SQL because relations cannot be bound as parameters.
func NewRepository(db *sql.DB, tables Tables) *Repository {
	return &Repository{db: db, tables: tables}
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// NamespaceMap loads the dbname-to-project mapping for one snapshot.
// Duplicate dbnames collapse to the last row; the source is expected to be
// deduplicated per snapshot. Zero rows yields an empty map, not an error.
func (r *Repository) NamespaceMap(ctx context.Context, snapshot string) (map[string]string, error) {
	query := fmt.Sprintf(
		`SELECT dbname, project FROM %s WHERE snapshot = $1`,
		r.tables.NamespaceMap,
	)

	rows, queryErr := r.db.QueryContext(ctx, query, snapshot)
	if queryErr != nil {
		return nil, fmt.Errorf("query namespace map: %w", queryErr)
	}
	defer rows.Close()

	mapping := make(map[string]string)
	for rows.Next() {
		var dbname, project string
		if scanErr := rows.Scan(&dbname, &project); scanErr != nil {
			return nil, fmt.Errorf("scan namespace map row: %w", scanErr)
		}
		mapping[dbname] = project
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("namespace map rows: %w", rowsErr)
	}

	return mapping, nil
}

// PageViews reads page view rows from the given hour partitions whose
// timestamps fall inside the window. Both the partition selectors and the
// timestamp bounds derive from the job parameters, so the planner can prune
// partitions statically.
func (r *Repository) PageViews(
	ctx context.Context,
	partitions []domain.HourPartition,
	window domain.ClickWindow,
) ([]domain.PageView, error) {
	if len(partitions) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb,
		`SELECT project, referer, page_id, ts, is_pageview, source FROM %s WHERE (`,
		r.tables.PageViews,
	)

	args := make([]any, 0, len(partitions)*partitionColumns+2)
	for i, p := range partitions {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		base := i * partitionColumns
		fmt.Fprintf(&sb, "(year = $%d AND month = $%d AND day = $%d AND hour = $%d)",
			base+1, base+2, base+3, base+4)
		args = append(args, p.Year, p.Month, p.Day, p.Hour)
	}
	fmt.Fprintf(&sb, ") AND ts BETWEEN $%d AND $%d",
		len(partitions)*partitionColumns+1, len(partitions)*partitionColumns+2)
	args = append(args, window.StartUnix, window.EndUnix)

	rows, queryErr := r.db.QueryContext(ctx, sb.String(), args...)
	if queryErr != nil {
		return nil, fmt.Errorf("query page views: %w", queryErr)
	}
	defer rows.Close()

	var pageViews []domain.PageView
	for rows.Next() {
		var pv domain.PageView
		var pageID sql.NullInt64
		if scanErr := rows.Scan(&pv.Project, &pv.Referer, &pageID, &pv.Timestamp, &pv.IsPageview, &pv.Source); scanErr != nil {
			return nil, fmt.Errorf("scan page view row: %w", scanErr)
		}
		if pageID.Valid {
			id := pageID.Int64
			pv.PageID = &id
		}
		pageViews = append(pageViews, pv)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("page view rows: %w", rowsErr)
	}

	return pageViews, nil
}

// SearchRequests reads web-sourced search request rows from one hour
// partition. The elasticsearch sub-request list is stored as JSONB and
// decoded on scan.
func (r *Repository) SearchRequests(ctx context.Context, partition domain.HourPartition) ([]domain.SearchRequest, error) {
	query := fmt.Sprintf(
		`SELECT database, client_ip, identity, search_id, event_time, source, elasticsearch_requests
		 FROM %s
		 WHERE year = $1 AND month = $2 AND day = $3 AND hour = $4 AND source = $5`,
		r.tables.SearchRequests,
	)

	rows, queryErr := r.db.QueryContext(ctx, query,
		partition.Year, partition.Month, partition.Day, partition.Hour, "web")
	if queryErr != nil {
		return nil, fmt.Errorf("query search requests: %w", queryErr)
	}
	defer rows.Close()

	var requests []domain.SearchRequest
	for rows.Next() {
		var req domain.SearchRequest
		var elasticJSON []byte
		if scanErr := rows.Scan(&req.Database, &req.ClientIP, &req.Identity,
			&req.SearchID, &req.EventTime, &req.Source, &elasticJSON); scanErr != nil {
			return nil, fmt.Errorf("scan search request row: %w", scanErr)
		}
		if len(elasticJSON) > 0 {
			if unmarshalErr := json.Unmarshal(elasticJSON, &req.ElasticRequests); unmarshalErr != nil {
				return nil, fmt.Errorf("decode elasticsearch_requests: %w", unmarshalErr)
			}
		}
		requests = append(requests, req)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("search request rows: %w", rowsErr)
	}

	return requests, nil
}

// OutputPartition reads back one written output partition, decoding the
// hits and clicks JSONB columns. Used by the relevance-lab export.
func (r *Repository) OutputPartition(ctx context.Context, partition domain.HourPartition) ([]domain.SearchRecord, error) {
	query := fmt.Sprintf(
		`SELECT query, ip, identity, ts, wikiid, project, hits, clicks, request_set_token
		 FROM %s
		 WHERE year = $1 AND month = $2 AND day = $3 AND hour = $4`,
		r.tables.Output,
	)

	rows, queryErr := r.db.QueryContext(ctx, query,
		partition.Year, partition.Month, partition.Day, partition.Hour)
	if queryErr != nil {
		return nil, fmt.Errorf("query output partition: %w", queryErr)
	}
	defer rows.Close()

	var records []domain.SearchRecord
	for rows.Next() {
		var rec domain.SearchRecord
		var hitsJSON, clicksJSON []byte
		if scanErr := rows.Scan(&rec.Query, &rec.IP, &rec.Identity, &rec.Timestamp,
			&rec.WikiID, &rec.Project, &hitsJSON, &clicksJSON, &rec.RequestSetToken); scanErr != nil {
			return nil, fmt.Errorf("scan output row: %w", scanErr)
		}
		if unmarshalErr := json.Unmarshal(hitsJSON, &rec.Hits); unmarshalErr != nil {
			return nil, fmt.Errorf("decode hits: %w", unmarshalErr)
		}
		if unmarshalErr := json.Unmarshal(clicksJSON, &rec.Clicks); unmarshalErr != nil {
			return nil, fmt.Errorf("decode clicks: %w", unmarshalErr)
		}
		records = append(records, rec)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("output rows: %w", rowsErr)
	}

	return records, nil
}

// ReplacePartition overwrites one output partition with the given records
// inside a single transaction. Either the whole partition is replaced or
// nothing is written; partial failures recover by re-running the hour.
func (r *Repository) ReplacePartition(
	ctx context.Context,
	partition domain.HourPartition,
	records []domain.SearchRecord,
) error {
	tx, beginErr := r.db.BeginTx(ctx, nil)
	if beginErr != nil {
		return fmt.Errorf("begin transaction: %w", beginErr)
	}
	defer func() { _ = tx.Rollback() }()

	deleteQuery := fmt.Sprintf(
		`DELETE FROM %s WHERE year = $1 AND month = $2 AND day = $3 AND hour = $4`,
		r.tables.Output,
	)
	if _, deleteErr := tx.ExecContext(ctx, deleteQuery,
		partition.Year, partition.Month, partition.Day, partition.Hour); deleteErr != nil {
		return fmt.Errorf("clear output partition: %w", deleteErr)
	}

	for start := 0; start < len(records); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if insertErr := r.batchInsert(ctx, tx, partition, records[start:end]); insertErr != nil {
			return insertErr
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit output partition: %w", commitErr)
	}

	return nil
}

// batchInsert builds and executes a single INSERT statement with multiple
// value tuples.
func (r *Repository) batchInsert(
	ctx context.Context,
	tx *sql.Tx,
	partition domain.HourPartition,
	records []domain.SearchRecord,
) error {
	if len(records) == 0 {
		return nil
	}

	args := make([]any, 0, len(records)*columnsPerRow)
	var sb strings.Builder

	fmt.Fprintf(&sb, "INSERT INTO %s (query, ip, identity, ts, wikiid, project, "+
		"hits, clicks, request_set_token, year, month, day, hour) VALUES ", r.tables.Output)

	for i := range records {
		if i > 0 {
			sb.WriteString(", ")
		}

		writeValueTuple(&sb, i)

		hitsJSON, hitsErr := json.Marshal(records[i].Hits)
		if hitsErr != nil {
			return fmt.Errorf("marshal hits: %w", hitsErr)
		}
		clicksJSON, clicksErr := json.Marshal(records[i].Clicks)
		if clicksErr != nil {
			return fmt.Errorf("marshal clicks: %w", clicksErr)
		}

		args = append(args,
			records[i].Query, records[i].IP, records[i].Identity, records[i].Timestamp,
			records[i].WikiID, records[i].Project, hitsJSON, clicksJSON,
			records[i].RequestSetToken,
			partition.Year, partition.Month, partition.Day, partition.Hour,
		)
	}

	if _, execErr := tx.ExecContext(ctx, sb.String(), args...); execErr != nil {
		return fmt.Errorf("insert output rows: %w", execErr)
	}

	return nil
}

// writeValueTuple writes a single ($1, ..., $13) placeholder tuple to the
// builder, offset by the row index.
func writeValueTuple(sb *strings.Builder, rowIndex int) {
	base := rowIndex * columnsPerRow
	sb.WriteByte('(')
	for col := 1; col <= columnsPerRow; col++ {
		if col > 1 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "$%d", base+col)
	}
	sb.WriteByte(')')
}
