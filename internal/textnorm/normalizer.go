// Package textnorm prepares text for indexing and querying.
// Indexed content and queries pass through the same pipeline so the
// vector and keyword spaces agree on what a token is.
package textnorm

import (
	"regexp"
	"strings"
)

// Language selects the stopword list applied during normalization.
// English stopwords are always applied in addition to the requested
// language because mixed-language documents are common.
type Language string

const (
	LanguageRussian Language = "russian"
	LanguageEnglish Language = "english"

	// LanguageMulti is returned by DetectLanguage when a query mixes
	// Cyrillic and Latin scripts. Normalization treats it as Russian
	// (both stopword lists apply either way).
	LanguageMulti Language = "multilingual"
)

var (
	urlRegex        = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	charWhitelist   = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?;:()\-]`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// searchOperators are boolean/advanced-search tokens stripped from queries
// before normalization. They carry no retrieval signal of their own.
var searchOperators = map[string]struct{}{
	"and": {}, "or": {}, "not": {},
	"filetype": {}, "site": {}, "intitle": {}, "inurl": {},
}

// Normalize lowercases text, strips URLs and HTML, removes characters
// outside the word/whitespace/punctuation whitelist, drops stopwords for
// lang plus English, drops tokens of length <= 1, and collapses whitespace.
// Empty input returns an empty string.
func Normalize(text string, lang Language) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	s := strings.ToLower(text)
	s = urlRegex.ReplaceAllString(s, " ")
	s = htmlTagRegex.ReplaceAllString(s, " ")
	s = charWhitelist.ReplaceAllString(s, " ")

	tokens := strings.Fields(s)
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		trimmed := strings.Trim(tok, ".,!?;:()-")
		if len([]rune(trimmed)) <= 1 {
			continue
		}
		if isStopword(trimmed, lang) {
			continue
		}
		kept = append(kept, trimmed)
	}

	return whitespaceRegex.ReplaceAllString(strings.Join(kept, " "), " ")
}

// NormalizeQuery strips search operators from a query and applies the same
// normalization as Normalize. Callers must treat an empty result as a
// terminal "no results" condition, not an error.
func NormalizeQuery(query string, lang Language) string {
	tokens := strings.Fields(strings.ToLower(query))
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := searchOperators[tok]; ok {
			continue
		}
		kept = append(kept, tok)
	}
	return Normalize(strings.Join(kept, " "), lang)
}

func isStopword(token string, lang Language) bool {
	// English stopwords always apply.
	if _, ok := englishStopwords[token]; ok {
		return true
	}
	if lang == LanguageRussian || lang == LanguageMulti {
		if _, ok := russianStopwords[token]; ok {
			return true
		}
	}
	return false
}
