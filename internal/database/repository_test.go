//nolint:testpackage // Testing internal repository requires same package access
package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/carryonstow/wikimedia-discovery-analytics/internal/domain"
)

func testTables() Tables {
	return Tables{
		SearchRequests: "cirrussearch_request",
		PageViews:      "pageview_hourly",
		NamespaceMap:   "namespace_map",
		Output:         "query_clicks_hourly",
	}
}

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}

	return NewRepository(db, testTables()), mock, func() { _ = db.Close() }
}

func TestRepository_NamespaceMap(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"dbname", "project"}).
		AddRow("enwiki", "enwiki").
		AddRow("commonswiki", "commonswiki").
		// Duplicate dbname collapses to the last row.
		AddRow("enwiki", "en.wikipedia")

	mock.ExpectQuery("SELECT dbname, project FROM namespace_map").
		WithArgs("2024-03").
		WillReturnRows(rows)

	mapping, err := repo.NamespaceMap(context.Background(), "2024-03")
	if err != nil {
		t.Fatalf("NamespaceMap() error = %v", err)
	}

	if len(mapping) != 2 {
		t.Errorf("got %d entries, want 2", len(mapping))
	}
	if mapping["enwiki"] != "en.wikipedia" {
		t.Errorf("duplicate dbname did not collapse to last row: %q", mapping["enwiki"])
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestRepository_NamespaceMapEmptySnapshot(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT dbname, project FROM namespace_map").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"dbname", "project"}))

	mapping, err := repo.NamespaceMap(context.Background(), "nope")
	if err != nil {
		t.Fatalf("NamespaceMap() error = %v, empty snapshot is not an error", err)
	}
	if len(mapping) != 0 {
		t.Errorf("got %d entries, want 0", len(mapping))
	}
}

func TestRepository_PageViews(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	partition := domain.HourPartition{Year: 2024, Month: 3, Day: 15, Hour: 9}
	window := partition.ClickWindow()
	partitions := []domain.HourPartition{partition, partition.Next()}

	rows := sqlmock.NewRows([]string{"project", "referer", "page_id", "ts", "is_pageview", "source"}).
		AddRow("enwiki", "https://en.wikipedia.org/w/index.php?searchToken=abc", int64(42), window.StartUnix+10, true, "text").
		AddRow("enwiki", "https://en.wikipedia.org/wiki/Boat", nil, window.StartUnix+20, true, "text")

	mock.ExpectQuery("SELECT project, referer, page_id, ts, is_pageview, source FROM pageview_hourly").
		WithArgs(2024, 3, 15, 9, 2024, 3, 15, 10, window.StartUnix, window.EndUnix).
		WillReturnRows(rows)

	pageViews, err := repo.PageViews(context.Background(), partitions, window)
	if err != nil {
		t.Fatalf("PageViews() error = %v", err)
	}

	if len(pageViews) != 2 {
		t.Fatalf("got %d rows, want 2", len(pageViews))
	}
	if pageViews[0].PageID == nil || *pageViews[0].PageID != 42 {
		t.Errorf("pageViews[0].PageID = %v, want 42", pageViews[0].PageID)
	}
	if pageViews[1].PageID != nil {
		t.Errorf("pageViews[1].PageID = %v, want nil for NULL column", pageViews[1].PageID)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestRepository_SearchRequests(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	partition := domain.HourPartition{Year: 2024, Month: 3, Day: 15, Hour: 9}

	elasticJSON := `[
		{"query": "boa", "indices": ["enwiki_titlesuggest"], "namespaces": [0], "hits_offset": 0, "hits": []},
		{"query": "boats", "indices": ["enwiki_content"], "namespaces": [0], "hits_offset": 0,
		 "hits": [{"page_title": "Boat", "index": "enwiki_content", "page_id": 42, "score": 12.3, "profile_name": "popular_inclinks_pv"}]}
	]`

	rows := sqlmock.NewRows([]string{"database", "client_ip", "identity", "search_id", "event_time", "source", "elasticsearch_requests"}).
		AddRow("enwiki", "203.0.113.9", "ident-a", "abc123", int64(1710493230), "web", []byte(elasticJSON))

	mock.ExpectQuery("SELECT database, client_ip, identity, search_id, event_time, source, elasticsearch_requests").
		WithArgs(2024, 3, 15, 9, "web").
		WillReturnRows(rows)

	requests, err := repo.SearchRequests(context.Background(), partition)
	if err != nil {
		t.Fatalf("SearchRequests() error = %v", err)
	}

	if len(requests) != 1 {
		t.Fatalf("got %d rows, want 1", len(requests))
	}
	req := requests[0]
	if len(req.ElasticRequests) != 2 {
		t.Fatalf("decoded %d sub-requests, want 2", len(req.ElasticRequests))
	}
	main := req.MainRequest()
	if main.Query != "boats" || len(main.Hits) != 1 || main.Hits[0].PageID != 42 {
		t.Errorf("main sub-request decoded wrong: %+v", main)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestRepository_ReplacePartition(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	partition := domain.HourPartition{Year: 2024, Month: 3, Day: 15, Hour: 9}
	records := []domain.SearchRecord{
		{
			Query:           "boats",
			IP:              "203.0.113.9",
			Identity:        "ident-a",
			Timestamp:       1710493230,
			WikiID:          "enwiki",
			Project:         "enwiki",
			Hits:            []domain.RecordHit{{Title: "Boat", Index: "enwiki_content", PageID: 42, Score: 12.3, ProfileName: "popular_inclinks_pv"}},
			Clicks:          []domain.Click{},
			RequestSetToken: "abc123",
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM query_clicks_hourly").
		WithArgs(2024, 3, 15, 9).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO query_clicks_hourly").
		WithArgs(
			"boats", "203.0.113.9", "ident-a", int64(1710493230), "enwiki", "enwiki",
			sqlmock.AnyArg(), // hits JSONB
			sqlmock.AnyArg(), // clicks JSONB
			"abc123",
			2024, 3, 15, 9,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.ReplacePartition(context.Background(), partition, records); err != nil {
		t.Fatalf("ReplacePartition() error = %v", err)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestRepository_ReplacePartitionEmpty(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	partition := domain.HourPartition{Year: 2024, Month: 3, Day: 15, Hour: 9}

	// Overwrite semantics hold even with nothing to write: the old
	// partition contents are cleared.
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM query_clicks_hourly").
		WithArgs(2024, 3, 15, 9).
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectCommit()

	if err := repo.ReplacePartition(context.Background(), partition, nil); err != nil {
		t.Fatalf("ReplacePartition() error = %v", err)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}

func TestRepository_OutputPartition(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	partition := domain.HourPartition{Year: 2024, Month: 3, Day: 15, Hour: 9}

	rows := sqlmock.NewRows([]string{"query", "ip", "identity", "ts", "wikiid", "project", "hits", "clicks", "request_set_token"}).
		AddRow("boats", "203.0.113.9", "ident-a", int64(1710493230), "enwiki", "enwiki",
			[]byte(`[{"title":"Boat","index":"enwiki_content","pageid":42,"score":12.3,"profilename":"popular_inclinks_pv"}]`),
			[]byte(`[{"pageid":42,"timestamp":1710493290,"referer":"https://en.wikipedia.org/w/index.php?searchToken=abc123"}]`),
			"abc123")

	mock.ExpectQuery("SELECT query, ip, identity, ts, wikiid, project, hits, clicks, request_set_token").
		WithArgs(2024, 3, 15, 9).
		WillReturnRows(rows)

	records, err := repo.OutputPartition(context.Background(), partition)
	if err != nil {
		t.Fatalf("OutputPartition() error = %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if len(rec.Hits) != 1 || rec.Hits[0].PageID != 42 {
		t.Errorf("hits decoded wrong: %+v", rec.Hits)
	}
	if len(rec.Clicks) != 1 || rec.Clicks[0].PageID != 42 {
		t.Errorf("clicks decoded wrong: %+v", rec.Clicks)
	}
}
