package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilenameSimilarity_ExactMatchIgnoresExtension(t *testing.T) {
	assert.Equal(t, 1.0, FilenameSimilarity("report", "report.pdf"))
	assert.Equal(t, 1.0, FilenameSimilarity("Quarterly Report", "quarterly_report.docx"))
}

func TestFilenameSimilarity_PartialMatchAboveThreshold(t *testing.T) {
	score := FilenameSimilarity("machine learning", "machine_learning_guide.pdf")
	assert.GreaterOrEqual(t, score, DefaultFilenameSimilarityThreshold)
}

func TestFilenameSimilarity_UnrelatedBelowThreshold(t *testing.T) {
	score := FilenameSimilarity("machine learning", "cooking_recipes.pdf")
	assert.Less(t, score, DefaultFilenameSimilarityThreshold)
}

func TestFilenameSimilarity_EmptyInputs(t *testing.T) {
	assert.Equal(t, 0.0, FilenameSimilarity("", "doc.txt"))
	assert.Equal(t, 0.0, FilenameSimilarity("query", ""))
	assert.Equal(t, 0.0, FilenameSimilarity("   ", "doc.txt"))
}

func TestFilenameSimilarity_Bounded(t *testing.T) {
	inputs := [][2]string{
		{"a", "a.txt"},
		{"long query with many words", "short.md"},
		{"отчет за квартал", "отчет_за_квартал.pdf"},
	}
	for _, in := range inputs {
		score := FilenameSimilarity(in[0], in[1])
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestTruncateContent_ShortContentUnchanged(t *testing.T) {
	assert.Equal(t, "short text", truncateContent("short text", 100))
	assert.Equal(t, "no limit set", truncateContent("no limit set", 0))
}

func TestTruncateContent_CutsAtWordBoundary(t *testing.T) {
	out := truncateContent("the quick brown fox jumps over the lazy dog", 20)
	assert.Equal(t, "the quick brown...", out)
	assert.LessOrEqual(t, len([]rune(out)), 20)
}

func TestTruncateContent_Idempotent(t *testing.T) {
	content := "a sentence long enough to need truncation at some point in the middle"
	once := truncateContent(content, 30)
	twice := truncateContent(once, 30)
	assert.Equal(t, once, twice)
}

func TestTruncateContent_MultibyteSafe(t *testing.T) {
	content := "векторный поиск по документам организации работает быстро"
	out := truncateContent(content, 25)
	assert.LessOrEqual(t, len([]rune(out)), 25)
	// Cutting mid-rune would produce invalid UTF-8.
	assert.True(t, len(out) > 0)
}
