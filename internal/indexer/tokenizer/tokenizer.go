// Package tokenizer provides text tokenisation for the search engine.
// It folds case and diacritics and splits on non-alphanumeric boundaries.
// The same normalisation is used when indexing documents and when parsing
// queries, so a term produced here always matches a term looked up there.
package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// IsWordRune reports whether r is part of a word.
func IsWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Normalize lower-cases s and strips combining marks, so "Àfrica" and
// "africa" produce the same term.
func Normalize(s string) string {
	if isPlainASCII(s) {
		return strings.ToLower(s)
	}
	// transform.Chain keeps state, so one is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Tokenize breaks text into normalised Tokens. Positions count words, so
// adjacent words have consecutive positions.
func Tokenize(text string) []Token {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !IsWordRune(r)
	})
	tokens := make([]Token, 0, len(words))
	for pos, word := range words {
		term := Normalize(word)
		if term == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: pos,
		})
	}
	return tokens
}

func isPlainASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
