package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Lowercases(t *testing.T) {
	got := Normalize("Machine Learning GUIDE", LanguageEnglish)
	assert.Equal(t, "machine learning guide", got)
}

func TestNormalize_StripsURLs(t *testing.T) {
	got := Normalize("read https://example.com/docs and www.example.org today", LanguageEnglish)
	assert.NotContains(t, got, "example.com")
	assert.NotContains(t, got, "www")
	assert.Contains(t, got, "read")
}

func TestNormalize_StripsHTML(t *testing.T) {
	got := Normalize("<p>hello <b>world</b></p>", LanguageEnglish)
	assert.Equal(t, "hello world", got)
}

func TestNormalize_RemovesStopwordsAndShortTokens(t *testing.T) {
	got := Normalize("the cat is on a mat x", LanguageEnglish)
	assert.Equal(t, "cat mat", got)
}

func TestNormalize_RussianStopwords(t *testing.T) {
	got := Normalize("как работает поиск и индекс", LanguageRussian)
	assert.Equal(t, "работает поиск индекс", got)
}

func TestNormalize_RussianListNotAppliedForEnglish(t *testing.T) {
	// Russian stopwords stay when the requested language is English;
	// only English stopwords are unconditional.
	got := Normalize("поиск для документов", LanguageEnglish)
	assert.Contains(t, got, "для")
}

func TestNormalize_EmptyInput(t *testing.T) {
	assert.Equal(t, "", Normalize("", LanguageEnglish))
	assert.Equal(t, "", Normalize("   \t\n", LanguageRussian))
}

func TestNormalize_AllStopwordsYieldsEmpty(t *testing.T) {
	assert.Equal(t, "", Normalize("the and of is", LanguageEnglish))
}

func TestNormalizeQuery_StripsOperators(t *testing.T) {
	got := NormalizeQuery("machine AND learning OR filetype pdf site intitle", LanguageEnglish)
	assert.Equal(t, "machine learning pdf", got)
}

func TestNormalizeQuery_SamePipelineAsNormalize(t *testing.T) {
	assert.Equal(t,
		Normalize("vector search basics", LanguageEnglish),
		NormalizeQuery("vector search basics", LanguageEnglish))
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Language
	}{
		{"english", "hybrid vector search", LanguageEnglish},
		{"russian", "гибридный векторный поиск", LanguageRussian},
		{"mixed", "поиск search запрос query найти find", LanguageMulti},
		{"no letters", "123 456 !!!", LanguageMulti},
		{"empty", "", LanguageMulti},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.text))
		})
	}
}
