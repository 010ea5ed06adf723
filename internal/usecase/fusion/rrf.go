// Package fusion merges lexical and semantic rankings via Reciprocal
// Rank Fusion.
package fusion

import "sort"

// K is the RRF constant (standard value from Cormack et al. 2009).
// At k=60 the contribution of tail entries past rank 30 is near zero,
// which is what makes the orchestrator's hard candidate cap safe.
const K = 60

// Fused is a section id with its fused score.
type Fused struct {
	ID    string
	Score float64
}

// FuseRRF merges two rankings of section ids into one ordered list.
// score(d) = sum of 1/(K + rank(d)) over each ranking where d appears,
// rank starting at 1; ids absent from a ranking contribute zero for it.
// Ties break by position in the lexical ranking, then by id, so the
// fusion is deterministic and idempotent on identical inputs.
func FuseRRF(lexical, semantic []string) []Fused {
	scores := make(map[string]float64, len(lexical)+len(semantic))
	lexRank := make(map[string]int, len(lexical))

	for i, id := range lexical {
		scores[id] += 1.0 / float64(K+i+1)
		lexRank[id] = i + 1
	}
	for i, id := range semantic {
		scores[id] += 1.0 / float64(K+i+1)
	}

	fused := make([]Fused, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, Fused{ID: id, Score: score})
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		ri, iOK := lexRank[fused[i].ID]
		rj, jOK := lexRank[fused[j].ID]
		switch {
		case iOK && jOK:
			return ri < rj
		case iOK:
			return true
		case jOK:
			return false
		default:
			return fused[i].ID < fused[j].ID
		}
	})

	return fused
}
