// Package domain contains the core domain models for the query clicks job.
package domain

// PageView is one row of the raw page-view log. PageID is a pointer because
// the source log carries nulls for non-article views.
type PageView struct {
	Project    string
	Referer    string
	PageID     *int64
	Timestamp  int64
	IsPageview bool
	Source     string
}

// Click is a single page view attributed to a search result page.
type Click struct {
	PageID    int64  `json:"pageid"`
	Timestamp int64  `json:"timestamp"`
	Referer   string `json:"referer"`
}

// ClickGroup collects every click observed for one (project, search token)
// pair inside the click window. Click order is unspecified; consumers
// re-derive order from timestamps when they need one.
type ClickGroup struct {
	Project string
	Token   string
	Clicks  []Click
}

// SearchHit is one ranked result inside an elasticsearch sub-request.
type SearchHit struct {
	PageTitle   string  `json:"page_title"`
	Index       string  `json:"index"`
	PageID      int64   `json:"page_id"`
	Score       float64 `json:"score"`
	ProfileName string  `json:"profile_name"`
}

// ElasticRequest is one elasticsearch sub-request issued while serving a
// search request. Requests are ordered; the last one is the primary
// full-text request, preceded by completion-suggester and other auxiliary
// lookups.
type ElasticRequest struct {
	Query      string      `json:"query"`
	Indices    []string    `json:"indices"`
	Namespaces []int64     `json:"namespaces"`
	HitsOffset int         `json:"hits_offset"`
	Hits       []SearchHit `json:"hits"`
}

// SearchRequest is one row of the search-request log. SearchID is the
// request set token that ties a rendered result page to later clicks.
type SearchRequest struct {
	Database        string
	ClientIP        string
	Identity        string
	SearchID        string
	EventTime       int64
	Source          string
	ElasticRequests []ElasticRequest
}

// MainRequest returns the primary full-text sub-request, the last element of
// the ordered sub-request list, or nil when the list is empty.
func (r *SearchRequest) MainRequest() *ElasticRequest {
	if len(r.ElasticRequests) == 0 {
		return nil
	}
	return &r.ElasticRequests[len(r.ElasticRequests)-1]
}

// RecordHit is a compact hit record in a SearchRecord, ordered by original
// rank position.
type RecordHit struct {
	Title       string  `json:"title"`
	Index       string  `json:"index"`
	PageID      int64   `json:"pageid"`
	Score       float64 `json:"score"`
	ProfileName string  `json:"profilename"`
}

// SearchRecord is one output row: a qualifying search request together with
// the clicks it produced. Clicks is empty, never dropped, when no click
// followed the search.
type SearchRecord struct {
	Query           string
	IP              string
	Identity        string
	Timestamp       int64
	WikiID          string
	Project         string
	Hits            []RecordHit
	Clicks          []Click
	RequestSetToken string
}
