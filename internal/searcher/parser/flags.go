package parser

import (
	"fmt"
	"strings"
)

// Flags select the query syntax features a parse may use. The bit values
// are stable; they are accepted as integers by the HTTP API.
type Flags uint32

const (
	FlagBoolean Flags = 1 << iota
	FlagPhrase
	FlagLoveHate
	FlagBooleanAnyCase
	FlagWildcard
	FlagPureNot
	FlagPartial
	FlagSpellingCorrection
	FlagSynonym
	FlagAutoSynonyms

	FlagDefault = FlagBoolean | FlagPhrase | FlagLoveHate

	knownFlags = FlagAutoSynonyms<<1 - 1
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagBoolean, "boolean"},
	{FlagPhrase, "phrase"},
	{FlagLoveHate, "love_hate"},
	{FlagBooleanAnyCase, "boolean_any_case"},
	{FlagWildcard, "wildcard"},
	{FlagPureNot, "pure_not"},
	{FlagPartial, "partial"},
	{FlagSpellingCorrection, "spelling_correction"},
	{FlagSynonym, "synonym"},
	{FlagAutoSynonyms, "auto_synonyms"},
}

func (f Flags) Has(flag Flags) bool { return f&flag == flag }

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	if rest := f &^ knownFlags; rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseFlags maps flag names such as "default" or "wildcard" to a mask.
func ParseFlags(names ...string) (Flags, error) {
	var f Flags
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if name == "default" {
			f |= FlagDefault
			continue
		}
		found := false
		for _, fn := range flagNames {
			if fn.name == name {
				f |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown query flag %q", raw)
		}
	}
	return f, nil
}
