// Package service contains the named stages of the query clicks pipeline:
// ClickExtractor, RequestExtractor, HitReshaper and Correlator, orchestrated
// by Pipeline. Stages operate over in-memory record batches and carry no
// state between runs.
package service

import (
	"github.com/carryonstow/wikimedia-discovery-analytics/internal/domain"
)

// pageViewSourceText is the webrequest source of the primary web-serving
// stream. Page views from other sources (apps, APIs) never carry a rendered
// search result referrer.
const pageViewSourceText = "text"

// ClickStats summarizes one click extraction pass.
type ClickStats struct {
	Scanned int
	Matched int
	Groups  int
}

// ClickExtractor isolates page views that are clicks on a search result page
// and groups them by (project, search token).
type ClickExtractor struct {
	window domain.ClickWindow
}

// NewClickExtractor creates an extractor for one click window.
func NewClickExtractor(window domain.ClickWindow) *ClickExtractor {
	return &ClickExtractor{window: window}
}

// Extract filters pageViews down to in-window clicks and groups them.
//
// A row survives only when it comes from the text source, is a real page
// view with a page id, falls inside the window, and its referrer carries a
// parseable search token. Everything else is silently filtered.
func (e *ClickExtractor) Extract(pageViews []domain.PageView) ([]domain.ClickGroup, ClickStats) {
	stats := ClickStats{Scanned: len(pageViews)}

	type groupKey struct {
		project string
		token   string
	}

	groups := make(map[groupKey]*domain.ClickGroup)
	var order []groupKey

	for i := range pageViews {
		pv := &pageViews[i]
		if pv.Source != pageViewSourceText || !pv.IsPageview || pv.PageID == nil {
			continue
		}
		if !e.window.Contains(pv.Timestamp) {
			continue
		}
		token, ok := domain.ParseSearchToken(pv.Referer)
		if !ok {
			continue
		}

		stats.Matched++
		key := groupKey{project: pv.Project, token: token}
		group, exists := groups[key]
		if !exists {
			group = &domain.ClickGroup{Project: pv.Project, Token: token}
			groups[key] = group
			order = append(order, key)
		}
		group.Clicks = append(group.Clicks, domain.Click{
			PageID:    *pv.PageID,
			Timestamp: pv.Timestamp,
			Referer:   pv.Referer,
		})
	}

	out := make([]domain.ClickGroup, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	stats.Groups = len(out)
	return out, stats
}
