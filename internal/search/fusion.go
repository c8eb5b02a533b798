// Package search runs retrieval in the configured mode and fuses hybrid
// results with reciprocal rank fusion.
package search

import "sort"

// Candidate is one ranked hit from a retrieval channel.
type Candidate struct {
	ID    string
	Score float64
}

// FusedResult carries a fused score together with the per-channel scores that
// produced it. A zero channel score means that channel did not rank the
// document.
type FusedResult struct {
	DocumentID   string
	Score        float64
	VectorScore  float64
	KeywordScore float64
}

// FuseRRF merges two ranked candidate lists with reciprocal rank fusion: each
// list contributes 1/(c + rank) per document, rank starting at 1. Only ranks
// enter the fused score; the raw channel scores ride along for reporting but
// never mix, since vector similarities and keyword relevance live on
// incomparable scales. Equal fused scores order by document id so repeated
// queries return the same ranking.
func FuseRRF(vectorRanked, keywordRanked []Candidate, c float64) []*FusedResult {
	fused := make(map[string]*FusedResult, len(vectorRanked)+len(keywordRanked))
	for rank, cand := range vectorRanked {
		fused[cand.ID] = &FusedResult{
			DocumentID:  cand.ID,
			Score:       1 / (c + float64(rank+1)),
			VectorScore: cand.Score,
		}
	}
	for rank, cand := range keywordRanked {
		contribution := 1 / (c + float64(rank+1))
		if r, ok := fused[cand.ID]; ok {
			r.Score += contribution
			r.KeywordScore = cand.Score
		} else {
			fused[cand.ID] = &FusedResult{
				DocumentID:   cand.ID,
				Score:        contribution,
				KeywordScore: cand.Score,
			}
		}
	}
	results := make([]*FusedResult, 0, len(fused))
	for _, r := range fused {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocumentID < results[j].DocumentID
	})
	return results
}
