package service

import (
	"sort"

	"github.com/carryonstow/wikimedia-discovery-analytics/internal/domain"
)

// ReshapedRequest is an enriched request whose hit list has been converted
// into position-ordered compact hit records.
type ReshapedRequest struct {
	Request EnrichedRequest
	Hits    []domain.RecordHit
}

// HitReshaper converts each request's ranked hit list into a stable,
// position-ordered sequence of compact hit records.
type HitReshaper struct{}

// NewHitReshaper creates a reshaper.
func NewHitReshaper() *HitReshaper {
	return &HitReshaper{}
}

// Reshape numbers every hit by its rank position, sorts ascending by
// position, and drops the position again. The position is only a sort key;
// what survives is a ranked list independent of the original storage order.
func (r *HitReshaper) Reshape(requests []EnrichedRequest) []ReshapedRequest {
	out := make([]ReshapedRequest, 0, len(requests))
	for i := range requests {
		out = append(out, ReshapedRequest{
			Request: requests[i],
			Hits:    reshapeHits(requests[i].Main.Hits),
		})
	}
	return out
}

type positionedHit struct {
	position int
	hit      domain.SearchHit
}

func reshapeHits(hits []domain.SearchHit) []domain.RecordHit {
	positioned := make([]positionedHit, 0, len(hits))
	for pos, hit := range hits {
		positioned = append(positioned, positionedHit{position: pos, hit: hit})
	}

	sort.SliceStable(positioned, func(a, b int) bool {
		return positioned[a].position < positioned[b].position
	})

	out := make([]domain.RecordHit, 0, len(positioned))
	for _, p := range positioned {
		out = append(out, domain.RecordHit{
			Title:       p.hit.PageTitle,
			Index:       p.hit.Index,
			PageID:      p.hit.PageID,
			Score:       p.hit.Score,
			ProfileName: p.hit.ProfileName,
		})
	}
	return out
}
