package stats

import "github.com/verte-zerg/pitchcoach/internal/model"

// MissedKeywords returns up to top keywords with the lowest hit rate,
// ignoring keywords that were never missed.
func MissedKeywords(aggs []model.KeywordAggregate, top int) []string {
	candidates := make([]model.KeywordAggregate, 0, len(aggs))
	for _, agg := range aggs {
		if agg.Sessions > agg.Spoken {
			candidates = append(candidates, agg)
		}
	}
	candidates = SortByHitRate(candidates)
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	out := make([]string, 0, top)
	for i := 0; i < top; i++ {
		out = append(out, candidates[i].Keyword)
	}
	return out
}
