package retrieval

import (
	"sort"
)

// DefaultRRFK is the reciprocal-rank constant from the original RRF paper.
const DefaultRRFK = 60

// FusedCandidate is one entry of a fused ranking.
type FusedCandidate struct {
	ID         string
	FusedScore float64
	// Method is MethodHybrid when the id appeared in more than one input
	// ranking, otherwise the method of the single ranking that produced it.
	Method Method
}

// Fuser merges one or more rankings into a single ordered, deduplicated
// result.
//
// With a single ranking the fused score is the raw (optionally
// max-normalized) score of that method. With multiple rankings it applies
// Reciprocal Rank Fusion over ranks: fusedScore(id) = sum of 1/(k+rank)
// across rankings containing id. Working on ranks rather than raw scores
// makes fusion robust to the incompatible scales of cosine similarity and
// BM25.
type Fuser struct {
	k         float64
	normalize bool
}

// NewFuser creates a fuser. k <= 0 defaults to DefaultRRFK.
func NewFuser(k float64, normalize bool) *Fuser {
	if k <= 0 {
		k = DefaultRRFK
	}
	return &Fuser{k: k, normalize: normalize}
}

// Scores returns the fused score per id without ordering or truncation.
// Re-running it on identical rankings yields an identical map.
func (f *Fuser) Scores(rankings []Ranking) map[string]float64 {
	scores := make(map[string]float64)

	if len(rankings) == 1 {
		r := rankings[0]
		var max float64
		for _, c := range r.Candidates {
			if c.Score > max {
				max = c.Score
			}
		}
		for _, c := range r.Candidates {
			s := c.Score
			if f.normalize && max > 0 {
				s = s / max
			}
			scores[c.ID] = s
		}
		return scores
	}

	for _, r := range rankings {
		for _, c := range r.Candidates {
			scores[c.ID] += 1.0 / (f.k + float64(c.Rank))
		}
	}
	return scores
}

// Fuse merges the rankings, sorts descending by fused score, filters by
// minScore, and truncates to topK (topK <= 0 keeps everything).
//
// Ties are broken by first-seen order: the order in which ids first appear
// while walking the rankings in their given order, each ranking by rank.
// The id is a final secondary key so the ordering is total.
func (f *Fuser) Fuse(rankings []Ranking, topK int, minScore float64) []FusedCandidate {
	scores := f.Scores(rankings)

	firstSeen := make(map[string]int, len(scores))
	methods := make(map[string]Method, len(scores))
	seenIn := make(map[string]int, len(scores))
	order := make([]string, 0, len(scores))

	for _, r := range rankings {
		for _, c := range r.Candidates {
			if _, ok := firstSeen[c.ID]; !ok {
				firstSeen[c.ID] = len(order)
				order = append(order, c.ID)
				methods[c.ID] = r.Method
			}
			seenIn[c.ID]++
		}
	}

	fused := make([]FusedCandidate, 0, len(order))
	for _, id := range order {
		if scores[id] < minScore {
			continue
		}
		method := methods[id]
		if seenIn[id] > 1 {
			method = MethodHybrid
		}
		fused = append(fused, FusedCandidate{ID: id, FusedScore: scores[id], Method: method})
	}

	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].FusedScore != fused[j].FusedScore {
			return fused[i].FusedScore > fused[j].FusedScore
		}
		if firstSeen[fused[i].ID] != firstSeen[fused[j].ID] {
			return firstSeen[fused[i].ID] < firstSeen[fused[j].ID]
		}
		return fused[i].ID < fused[j].ID
	})

	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	return fused
}
