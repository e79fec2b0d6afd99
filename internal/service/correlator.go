package service

import (
	"github.com/carryonstow/wikimedia-discovery-analytics/internal/domain"
)

// Correlator left-joins reshaped search requests to click groups on
// (project, search token).
type Correlator struct{}

// NewCorrelator creates a correlator.
func NewCorrelator() *Correlator {
	return &Correlator{}
}

// Correlate emits exactly one record per request. Requests with no matching
// click group get an empty (non-nil) click list; click groups with no
// matching request are dropped, since clicks are useless without their
// originating query.
//
// When a request set token is reused inside the window the group's clicks
// are attributed to the first matching request only. The source logs do not
// carry enough signal to do better; resolving token reuse is a downstream
// concern.
func (c *Correlator) Correlate(requests []ReshapedRequest, groups []domain.ClickGroup) []domain.SearchRecord {
	type joinKey struct {
		project string
		token   string
	}

	byKey := make(map[joinKey]*domain.ClickGroup, len(groups))
	for i := range groups {
		byKey[joinKey{project: groups[i].Project, token: groups[i].Token}] = &groups[i]
	}

	records := make([]domain.SearchRecord, 0, len(requests))
	for i := range requests {
		req := &requests[i].Request
		key := joinKey{project: req.Project, token: req.Request.SearchID}

		clicks := make([]domain.Click, 0)
		if group, ok := byKey[key]; ok {
			clicks = append(clicks, group.Clicks...)
			delete(byKey, key)
		}

		records = append(records, domain.SearchRecord{
			Query:           req.Main.Query,
			IP:              req.Request.ClientIP,
			Identity:        req.Request.Identity,
			Timestamp:       req.Request.EventTime,
			WikiID:          req.Request.Database,
			Project:         req.Project,
			Hits:            requests[i].Hits,
			Clicks:          clicks,
			RequestSetToken: req.Request.SearchID,
		})
	}
	return records
}
