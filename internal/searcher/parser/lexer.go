package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/errors"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokPhrase
	tokWildcard
	tokOperator
)

type operator int

const (
	opNone operator = iota
	opAnd
	opOr
	opNot
	opAndNot
)

// token is one lexical item. offset is the byte offset of its first
// character, including any +/- prefix.
type token struct {
	kind   tokenKind
	offset int
	prefix byte
	term   string
	words  []string
	op     operator
}

// lex splits text into words, phrases, wildcards and boolean operators.
// Characters that start none of these are separators.
func lex(text string, flags Flags) ([]token, error) {
	var (
		tokens       []token
		prefix       byte
		prefixOffset = -1
	)
	take := func(t token) {
		if prefixOffset >= 0 {
			t.prefix = prefix
			t.offset = prefixOffset
		}
		tokens = append(tokens, t)
		prefix, prefixOffset = 0, -1
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case (r == '+' || r == '-') && flags.Has(FlagLoveHate) && prefixOffset < 0 &&
			!afterWord(text, i) && startsItem(text[i+size:], flags):
			prefix, prefixOffset = byte(r), i
			i += size

		case r == '"' && flags.Has(FlagPhrase):
			end := strings.IndexByte(text[i+1:], '"')
			if end < 0 {
				return nil, &apperrors.QuerySyntaxError{Offset: i, Message: "unterminated quote"}
			}
			content := text[i+1 : i+1+end]
			var words []string
			for _, tok := range tokenizer.Tokenize(content) {
				words = append(words, tok.Term)
			}
			take(token{kind: tokPhrase, offset: i, words: words})
			i += end + 2

		case tokenizer.IsWordRune(r):
			start := i
			for i < len(text) {
				r, size := utf8.DecodeRuneInString(text[i:])
				if !tokenizer.IsWordRune(r) {
					break
				}
				i += size
			}
			raw := text[start:i]
			if flags.Has(FlagWildcard) && i < len(text) && text[i] == '*' {
				i++
				// A prefix that normalizes away would match every term.
				if term := tokenizer.Normalize(raw); term != "" {
					take(token{kind: tokWildcard, offset: start, term: term})
				} else {
					prefix, prefixOffset = 0, -1
				}
				continue
			}
			if prefixOffset < 0 && flags.Has(FlagBoolean) {
				if op := operatorOf(raw, flags.Has(FlagBooleanAnyCase)); op != opNone {
					take(token{kind: tokOperator, offset: start, op: op})
					continue
				}
			}
			if term := tokenizer.Normalize(raw); term != "" {
				take(token{kind: tokWord, offset: start, term: term})
			} else {
				prefix, prefixOffset = 0, -1
			}

		default:
			i += size
		}
	}
	return tokens, nil
}

func afterWord(text string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return tokenizer.IsWordRune(r)
}

func startsItem(rest string, flags Flags) bool {
	if rest == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return tokenizer.IsWordRune(r) || (r == '"' && flags.Has(FlagPhrase))
}

func operatorOf(word string, anyCase bool) operator {
	if anyCase {
		word = strings.ToUpper(word)
	}
	switch word {
	case "AND":
		return opAnd
	case "OR":
		return opOr
	case "NOT":
		return opNot
	default:
		return opNone
	}
}

func (o operator) String() string {
	switch o {
	case opAnd:
		return "AND"
	case opOr:
		return "OR"
	case opNot:
		return "NOT"
	case opAndNot:
		return "AND NOT"
	default:
		return ""
	}
}
