package service

import (
	"regexp"

	"github.com/carryonstow/wikimedia-discovery-analytics/internal/domain"
	"github.com/carryonstow/wikimedia-discovery-analytics/internal/metrics"
)

// searchSourceWeb is the traffic source of interactive web searches. API and
// bot traffic uses other sources and is out of scope for click correlation.
const searchSourceWeb = "web"

// maxHits is the default result page size plus one hit of margin. Requests
// returning more asked for a non-default page size and are excluded.
const maxHits = 21

// commonsWiki is the shared-media wiki. Its full-text searches hit the
// top-level alias rather than a content-suffixed index, so it gets its own
// acceptance branch keyed on the default namespace set.
const commonsWiki = "commonswiki"

// contentIndexRe matches the content and file shards that serve default
// full-text search.
var contentIndexRe = regexp.MustCompile(`_(content|file)$`)

// commonsDefaultNamespaces is the 6-namespace default search profile on the
// shared-media wiki. A request filtered to exactly this set is a default
// full-text search even without an index-name signal.
var commonsDefaultNamespaces = []int64{0, 6, 12, 14, 100, 106}

// EnrichedRequest is a search request that passed the main-request filter,
// together with its resolved project and main sub-request.
type EnrichedRequest struct {
	Request domain.SearchRequest
	Main    domain.ElasticRequest
	Project string
}

// RequestStats summarizes one request extraction pass, with per-reason
// filter counts keyed by the metrics reason labels.
type RequestStats struct {
	Scanned  int
	Accepted int
	Filtered map[string]int
}

// RequestExtractor selects the "main" full-text search request per event,
// applies the content-search filters, and joins against the namespace map.
type RequestExtractor struct {
	namespaceMap map[string]string
}

// NewRequestExtractor creates an extractor joined against the given
// dbname-to-project mapping.
func NewRequestExtractor(namespaceMap map[string]string) *RequestExtractor {
	return &RequestExtractor{namespaceMap: namespaceMap}
}

// Extract filters requests down to default first-page full-text searches
// from mapped wikis. Filtering is silent and local to each row; the reasons
// are tallied in the returned stats.
func (e *RequestExtractor) Extract(requests []domain.SearchRequest) ([]EnrichedRequest, RequestStats) {
	stats := RequestStats{
		Scanned:  len(requests),
		Filtered: make(map[string]int),
	}

	out := make([]EnrichedRequest, 0, len(requests))
	for i := range requests {
		req := &requests[i]
		main, reason := e.filter(req)
		if reason != "" {
			stats.Filtered[reason]++
			continue
		}

		project, mapped := e.namespaceMap[req.Database]
		if !mapped {
			// Inner-join semantics: a request from an unmapped wiki cannot
			// be correlated with clicks.
			stats.Filtered[metrics.ReasonUnmappedWiki]++
			continue
		}

		out = append(out, EnrichedRequest{
			Request: *req,
			Main:    *main,
			Project: project,
		})
	}

	stats.Accepted = len(out)
	return out, stats
}

// filter applies the main-request predicate. It returns the main sub-request
// and an empty reason on acceptance, or a non-empty filter reason.
func (e *RequestExtractor) filter(req *domain.SearchRequest) (*domain.ElasticRequest, string) {
	if req.Source != searchSourceWeb {
		return nil, metrics.ReasonNonWebSource
	}

	main := req.MainRequest()
	if main == nil {
		return nil, metrics.ReasonNoSubRequests
	}

	if len(main.Indices) != 1 {
		return nil, metrics.ReasonMultiIndex
	}
	if !acceptsIndex(req.Database, main) {
		return nil, metrics.ReasonIndexPattern
	}
	if main.HitsOffset != 0 {
		return nil, metrics.ReasonPaged
	}
	if len(main.Hits) > maxHits {
		return nil, metrics.ReasonOversized
	}

	return main, ""
}

// acceptsIndex reports whether the single target index identifies a default
// full-text search.
func acceptsIndex(database string, main *domain.ElasticRequest) bool {
	index := main.Indices[0]
	if contentIndexRe.MatchString(index) {
		return true
	}
	return database == commonsWiki &&
		index == commonsWiki &&
		namespacesEqual(main.Namespaces, commonsDefaultNamespaces)
}

// namespacesEqual compares two namespace filters as sets.
func namespacesEqual(got, want []int64) bool {
	gotSet := make(map[int64]struct{}, len(got))
	for _, ns := range got {
		gotSet[ns] = struct{}{}
	}
	if len(gotSet) != len(want) {
		return false
	}
	for _, ns := range want {
		if _, ok := gotSet[ns]; !ok {
			return false
		}
	}
	return true
}
