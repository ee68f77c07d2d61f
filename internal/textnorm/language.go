package textnorm

import "unicode"

// Script fraction thresholds for language detection. A query needs a clear
// majority of one script before it is treated as single-language; anything
// in between is multilingual and gets both analyzers at query time.
const (
	cyrillicMajority = 0.6
	latinMajority    = 0.6
)

// DetectLanguage classifies text by its letter script composition.
// Returns LanguageRussian when Cyrillic letters dominate, LanguageEnglish
// when Latin letters dominate, and LanguageMulti otherwise (including
// text with no letters at all).
func DetectLanguage(text string) Language {
	var cyrillic, latin, total int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}

	if total == 0 {
		return LanguageMulti
	}

	cyrFrac := float64(cyrillic) / float64(total)
	latFrac := float64(latin) / float64(total)

	switch {
	case cyrFrac >= cyrillicMajority:
		return LanguageRussian
	case latFrac >= latinMajority:
		return LanguageEnglish
	default:
		return LanguageMulti
	}
}
