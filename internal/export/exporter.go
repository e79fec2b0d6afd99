// Package export ships the hour's correlated records to a relevance-lab
// Elasticsearch index for interactive analysis. The SQL partition is the
// canonical output; this export is best-effort.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/carryonstow/wikimedia-discovery-analytics/internal/domain"
	"github.com/carryonstow/wikimedia-discovery-analytics/internal/logger"
)

// bulkChunkSize is the number of documents per bulk request.
const bulkChunkSize = 500

// Config holds Elasticsearch export configuration.
type Config struct {
	URL        string
	Username   string
	Password   string
	Index      string
	MaxRetries int
}

// Exporter bulk-indexes search records into Elasticsearch.
type Exporter struct {
	esClient *es.Client
	index    string
	log      logger.Logger
}

// New creates an exporter and verifies connectivity.
func New(cfg Config, log logger.Logger) (*Exporter, error) {
	addresses := []string{cfg.URL}
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		addresses = []string{"http://" + cfg.URL}
	}

	clientConfig := es.Config{
		Addresses:  addresses,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	esClient, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	res, err := esClient.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("ping elasticsearch: %s", res.String())
	}

	return &Exporter{
		esClient: esClient,
		index:    cfg.Index,
		log:      log,
	}, nil
}

// document is the indexed shape of one search record.
type document struct {
	Query           string             `json:"query"`
	Identity        string             `json:"identity"`
	Timestamp       time.Time          `json:"timestamp"`
	WikiID          string             `json:"wikiid"`
	Project         string             `json:"project"`
	Hits            []domain.RecordHit `json:"hits"`
	Clicks          []domain.Click     `json:"clicks"`
	RequestSetToken string             `json:"request_set_token"`
}

// Export bulk-indexes the records. Document ids are derived from
// (wiki, token) so re-running an hour overwrites rather than duplicates.
func (e *Exporter) Export(ctx context.Context, records []domain.SearchRecord) error {
	for start := 0; start < len(records); start += bulkChunkSize {
		end := start + bulkChunkSize
		if end > len(records) {
			end = len(records)
		}
		if err := e.bulkIndex(ctx, records[start:end]); err != nil {
			return err
		}
	}

	e.log.Info("Exported records to relevance lab",
		logger.Int("records", len(records)),
		logger.String("index", e.index),
	)
	return nil
}

func (e *Exporter) bulkIndex(ctx context.Context, records []domain.SearchRecord) error {
	if len(records) == 0 {
		return nil
	}

	var body bytes.Buffer
	for i := range records {
		action := map[string]map[string]string{
			"index": {
				"_index": e.index,
				"_id":    fmt.Sprintf("%s:%s", records[i].WikiID, records[i].RequestSetToken),
			},
		}
		actionLine, actionErr := json.Marshal(action)
		if actionErr != nil {
			return fmt.Errorf("marshal bulk action: %w", actionErr)
		}

		doc := document{
			Query:           records[i].Query,
			Identity:        records[i].Identity,
			Timestamp:       time.Unix(records[i].Timestamp, 0).UTC(),
			WikiID:          records[i].WikiID,
			Project:         records[i].Project,
			Hits:            records[i].Hits,
			Clicks:          records[i].Clicks,
			RequestSetToken: records[i].RequestSetToken,
		}
		docLine, docErr := json.Marshal(doc)
		if docErr != nil {
			return fmt.Errorf("marshal bulk document: %w", docErr)
		}

		body.Write(actionLine)
		body.WriteByte('\n')
		body.Write(docLine)
		body.WriteByte('\n')
	}

	res, bulkErr := e.esClient.Bulk(
		bytes.NewReader(body.Bytes()),
		e.esClient.Bulk.WithContext(ctx),
	)
	if bulkErr != nil {
		return fmt.Errorf("bulk index: %w", bulkErr)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk index: %s", res.String())
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
	}
	if decodeErr := json.NewDecoder(res.Body).Decode(&bulkResp); decodeErr != nil {
		return fmt.Errorf("decode bulk response: %w", decodeErr)
	}
	if bulkResp.Errors {
		return fmt.Errorf("bulk index: one or more documents failed")
	}

	return nil
}
