package rag

import (
	"github.com/polai/polai-go/internal/embedder"
)

// DefaultLambda is the default MMR relevance/diversity trade-off. 0.6 keeps
// relevance as the primary force with diversity as a strong tie-breaker; it
// is a starting configuration, not a contract, and is overridable via config.
const DefaultLambda = 0.6

// MMR selects up to k chunks from candidates using Maximal Marginal
// Relevance: each pick maximizes
//
//	lambda*relevance(c) - (1-lambda)*max_{s in selected} similarity(c, s)
//
// where relevance is the candidate's search score and similarity is cosine
// between candidate vectors. The first pick is purely by relevance (the
// penalty term is 0 for an empty selection). Ties break by original candidate
// order, so output is deterministic for identical input.
//
// vectors must be parallel to candidates. If k >= len(candidates) the
// candidates are returned in their original relevance order without ranking.
func MMR(candidates []ScoredChunk, vectors [][]float32, k int, lambda float32) []ScoredChunk {
	if k <= 0 {
		return nil
	}
	if k >= len(candidates) {
		out := make([]ScoredChunk, len(candidates))
		copy(out, candidates)
		return out
	}
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}

	selected := make([]ScoredChunk, 0, k)
	selectedVecs := make([][]float32, 0, k)
	remaining := make([]int, len(candidates))
	for i := range remaining {
		remaining[i] = i
	}

	for len(selected) < k && len(remaining) > 0 {
		bestPos := 0
		bestScore := float32(0)
		for pos, ci := range remaining {
			// Raw max similarity, not floored at 0: a candidate pointing
			// away from everything selected earns a bonus, which signed
			// hashing vectors can produce.
			penalty := float32(0)
			for si, sv := range selectedVecs {
				sim := embedder.Cosine(vectors[ci], sv)
				if si == 0 || sim > penalty {
					penalty = sim
				}
			}
			score := lambda*candidates[ci].Score - (1-lambda)*penalty
			// Strict > keeps the earliest candidate on ties.
			if pos == 0 || score > bestScore {
				bestPos = pos
				bestScore = score
			}
		}

		pick := remaining[bestPos]
		selected = append(selected, candidates[pick])
		selectedVecs = append(selectedVecs, vectors[pick])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return selected
}
