package store

import (
	"strings"
	"unicode"
)

// TokenizeText splits text into lowercase word tokens.
//
// A token is a maximal run of Unicode letters and digits; everything else
// separates. This is the single definition of "word" for keyword search:
// the Bleve analyzer is built on it, and it matches what the SQLite FTS5
// unicode61 tokenizer produces, so a term search behaves the same on both
// backends. No length floor and no stop words: one-letter terms and short
// acronyms stay findable, and flood terms are bounded query-side by the
// per-term retrieval cap.
func TokenizeText(text string) []string {
	fields := strings.FieldsFunc(text, isTokenSeparator)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, strings.ToLower(f))
	}
	return tokens
}

func isTokenSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// tokenSpan is one token with its byte offsets in the original text.
// Offsets are what Bleve stores for match locations.
type tokenSpan struct {
	term  string
	start int
	end   int
}

// scanTokenSpans walks text and returns each letter/digit run with byte
// offsets. Case is preserved; the analyzer lowercases in a later filter.
func scanTokenSpans(text string) []tokenSpan {
	var spans []tokenSpan
	start := -1
	for i, r := range text {
		if isTokenSeparator(r) {
			if start >= 0 {
				spans = append(spans, tokenSpan{term: text[start:i], start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, tokenSpan{term: text[start:], start: start, end: len(text)})
	}
	return spans
}
