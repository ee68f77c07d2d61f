package search

import (
	"sort"

	"github.com/ragline/ragline/internal/store"
)

// Candidate is one ranked hit from a retrieval sub-path, enriched with its
// chunk. Candidates arrive pre-sorted by descending native score.
type Candidate struct {
	Chunk *store.Chunk
	Score float64
}

// fused is a candidate after rank fusion, carrying the combined score and
// per-path provenance.
type fused struct {
	Chunk         *store.Chunk
	Score         float64
	SemanticScore float64
	KeywordScore  float64
	InBoth        bool
}

// Weight of the native score added to RRF contributions to break rank ties
// between candidates at equal positions.
const rrfScoreTieBreak = 0.1

type fusionKey struct {
	filename   string
	chunkIndex int
}

func keyOf(c *store.Chunk) fusionKey {
	if c == nil {
		return fusionKey{}
	}
	return fusionKey{filename: c.Filename, chunkIndex: c.ChunkIndex}
}

// fuseRRF merges two ranked lists with Reciprocal Rank Fusion. Each list
// contributes weight/(k+rank) per candidate plus a small native-score
// tie-break; duplicates keyed by (filename, chunk index) accumulate from
// both lists. The first occurrence of a key supplies the chunk.
func fuseRRF(semantic, keyword []Candidate, k int) []*fused {
	merged := make(map[fusionKey]*fused, len(semantic)+len(keyword))

	accumulate := func(list []Candidate, isSemantic bool) {
		for rank, c := range list {
			key := keyOf(c.Chunk)
			f, seen := merged[key]
			if !seen {
				f = &fused{Chunk: c.Chunk}
				merged[key] = f
			} else {
				f.InBoth = true
			}
			f.Score += 1.0/float64(k+rank+1) + rrfScoreTieBreak*c.Score
			if isSemantic {
				f.SemanticScore = c.Score
			} else {
				f.KeywordScore = c.Score
			}
		}
	}
	accumulate(semantic, true)
	accumulate(keyword, false)

	return sortFused(merged)
}

// fuseWeighted merges two ranked lists by weighted linear combination.
// Keyword scores are backend-relative, so they are normalized by the list
// maximum before weighting; semantic scores are already cosine similarities
// in [0, 1].
func fuseWeighted(semantic, keyword []Candidate, semWeight, kwWeight float64) []*fused {
	var kwMax float64
	for _, c := range keyword {
		if c.Score > kwMax {
			kwMax = c.Score
		}
	}

	merged := make(map[fusionKey]*fused, len(semantic)+len(keyword))
	for _, c := range semantic {
		key := keyOf(c.Chunk)
		merged[key] = &fused{
			Chunk:         c.Chunk,
			Score:         semWeight * c.Score,
			SemanticScore: c.Score,
		}
	}
	for _, c := range keyword {
		norm := c.Score
		if kwMax > 0 {
			norm = c.Score / kwMax
		}
		key := keyOf(c.Chunk)
		if f, seen := merged[key]; seen {
			f.Score += kwWeight * norm
			f.KeywordScore = norm
			f.InBoth = true
			continue
		}
		merged[key] = &fused{
			Chunk:        c.Chunk,
			Score:        kwWeight * norm,
			KeywordScore: norm,
		}
	}

	return sortFused(merged)
}

// sortFused orders fused candidates by descending score, preferring
// candidates found by both paths on ties, with a stable key-based final
// tie-break so output order is deterministic.
func sortFused(merged map[fusionKey]*fused) []*fused {
	out := make([]*fused, 0, len(merged))
	for _, f := range merged {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].InBoth != out[j].InBoth {
			return out[i].InBoth
		}
		ki, kj := keyOf(out[i].Chunk), keyOf(out[j].Chunk)
		if ki.filename != kj.filename {
			return ki.filename < kj.filename
		}
		return ki.chunkIndex < kj.chunkIndex
	})
	return out
}

// normalizeFusedScores rescales fused scores into [0, 1] by the list
// maximum, so MinRelevanceScore keeps a consistent meaning across fusion
// strategies.
func normalizeFusedScores(list []*fused) {
	if len(list) == 0 {
		return
	}
	max := list[0].Score
	if max <= 0 {
		return
	}
	for _, f := range list {
		f.Score /= max
	}
}
