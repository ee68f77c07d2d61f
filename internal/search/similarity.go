package search

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

var separatorReplacer = strings.NewReplacer("_", " ", "-", " ", ".", " ")

// FilenameSimilarity scores how closely a query matches a filename, in
// [0, 1]. The extension is stripped and word separators are normalized
// before the character-level sequence ratio, so "machine learning" scores
// high against "machine_learning_guide.pdf". Empty inputs score 0.
func FilenameSimilarity(query, filename string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	f := strings.ToLower(strings.TrimSpace(separatorReplacer.Replace(base)))
	if q == "" || f == "" {
		return 0
	}
	if q == f {
		return 1
	}

	m := difflib.NewMatcher(splitChars(q), splitChars(f))
	ratio := m.Ratio()

	// A query fully contained in the filename is a strong signal the
	// sequence ratio undervalues for long filenames.
	if strings.Contains(f, q) {
		containment := float64(len(q)) / float64(len(f))
		ratio = math.Max(ratio, 0.6+0.4*containment)
	}
	return ratio
}

func splitChars(s string) []string {
	chars := make([]string, 0, len(s))
	for _, r := range s {
		chars = append(chars, string(r))
	}
	return chars
}
