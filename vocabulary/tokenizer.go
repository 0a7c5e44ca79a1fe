package vocabulary

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer splits utterances into normalized word tokens for one language.
// It is safe for concurrent use.
type Tokenizer struct {
	lang Language
}

// NewTokenizer creates a tokenizer for lang.
func NewTokenizer(lang Language) *Tokenizer {
	return &Tokenizer{lang: lang}
}

// Language returns the tokenizer language.
func (t *Tokenizer) Language() Language {
	return t.lang
}

// Tokens returns every word of text in order, NFC-normalized and case folded.
// Nothing is filtered.
func (t *Tokenizer) Tokens(text string) []string {
	return fold(text)
}

// ExtractTokens returns the distinct tokens of text that are at least
// minLength runes long and are not stop words, in first-occurrence order.
func (t *Tokenizer) ExtractTokens(text string, minLength int) []string {
	words := fold(text)
	seen := make(map[string]struct{}, len(words))
	tokens := make([]string, 0, len(words))

	for _, w := range words {
		if utf8.RuneCountInString(w) < minLength {
			continue
		}
		if t.lang.IsStopWord(w) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		tokens = append(tokens, w)
	}
	return tokens
}

// fold normalizes and case-folds text, then splits it on anything that is
// not a letter, digit or combining mark. A cases.Caser is stateful, so one
// is created per call.
func fold(text string) []string {
	folded := cases.Fold().String(norm.NFC.String(text))
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
	})
}
