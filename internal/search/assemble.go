package search

import (
	"math"
	"sort"

	"github.com/ragline/ragline/internal/store"
)

// scoredChunk is a chunk that survived scoring, before grouping and caps.
type scoredChunk struct {
	chunk   *store.Chunk
	score   float64
	fnMatch bool
}

// applyFilenameBoost boosts score when the chunk's filename is similar
// enough to the query. The boosted score is clamped to 1.0 and never drops
// below the input score.
func applyFilenameBoost(score float64, chunk *store.Chunk, query string, opts Options) (float64, bool) {
	if chunk.Filename == "" {
		return score, false
	}
	if FilenameSimilarity(query, chunk.Filename) < opts.FilenameSimilarityThreshold {
		return score, false
	}
	boosted := math.Min(1.0, score*opts.FilenameMatchBoost)
	if boosted < score {
		boosted = score
	}
	return boosted, true
}

// assembleResult turns scored chunks into the final ranked result: chunks
// are grouped by file, files ordered by their best chunk, per-file caps and
// the global result cap applied, content truncated, and the filename-match
// view built from every chunk whose filename met the threshold.
//
// relevant holds chunks that passed the relevance filter; fnMatched holds
// all filename-similar chunks regardless of relevance, so the filename view
// stays complete even under aggressive score filtering.
func assembleResult(relevant, fnMatched []scoredChunk, opts Options) *Result {
	res := &Result{
		SemanticResults: []Document{},
		FilenameMatches: map[string]*FileMatch{},
	}
	res.Stats.SemanticMatches = len(relevant)
	res.Stats.FilenameMatches = len(fnMatched)

	byFile := groupSorted(relevant, func(c *store.Chunk) string { return c.FileID })

	fileOrder := make([]string, 0, len(byFile))
	for fileID := range byFile {
		fileOrder = append(fileOrder, fileID)
	}
	sort.Slice(fileOrder, func(i, j int) bool {
		bi, bj := byFile[fileOrder[i]][0].score, byFile[fileOrder[j]][0].score
		if bi != bj {
			return bi > bj
		}
		return fileOrder[i] < fileOrder[j]
	})

emit:
	for _, fileID := range fileOrder {
		for _, sc := range capPerFile(byFile[fileID], opts.MaxChunksPerFile) {
			if len(res.SemanticResults) >= opts.MaxResults {
				break emit
			}
			res.SemanticResults = append(res.SemanticResults, toDocument(sc, opts))
		}
	}

	byName := groupSorted(fnMatched, func(c *store.Chunk) string { return c.Filename })
	for filename, group := range byName {
		fm := &FileMatch{TotalChunks: len(group)}
		for _, sc := range capPerFile(group, opts.MaxChunksPerFile) {
			fm.Chunks = append(fm.Chunks, toDocument(sc, opts))
		}
		res.FilenameMatches[filename] = fm
	}

	return res
}

// groupSorted groups scored chunks by key, each group sorted by descending
// score with chunk index as the deterministic tie-break.
func groupSorted(chunks []scoredChunk, key func(*store.Chunk) string) map[string][]scoredChunk {
	groups := make(map[string][]scoredChunk)
	for _, sc := range chunks {
		k := key(sc.chunk)
		groups[k] = append(groups[k], sc)
	}
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			if group[i].score != group[j].score {
				return group[i].score > group[j].score
			}
			return group[i].chunk.ChunkIndex < group[j].chunk.ChunkIndex
		})
	}
	return groups
}

func capPerFile(group []scoredChunk, max int) []scoredChunk {
	if max > 0 && len(group) > max {
		return group[:max]
	}
	return group
}

func toDocument(sc scoredChunk, opts Options) Document {
	return Document{
		Content: truncateContent(sc.chunk.Content, opts.MaxCharsPerChunk),
		Metadata: Metadata{
			Filename:        sc.chunk.Filename,
			FileID:          sc.chunk.FileID,
			OrganizationID:  sc.chunk.OrganizationID,
			ChunkIndex:      sc.chunk.ChunkIndex,
			RelevanceScore:  sc.score,
			IsFilenameMatch: sc.fnMatch,
		},
	}
}
