// Package parser turns free-text queries into query trees.
//
// Grammar:
//
//	query    := clause*
//	clause   := [operator] item
//	operator := AND | OR | NOT | AND NOT
//	item     := ['+'|'-'] word ['*'] | ['+'|'-'] '"' word* '"'
//
// Words are runs of letters and digits; every other character separates
// them. Operators are recognised with FlagBoolean, in upper case only unless
// FlagBooleanAnyCase is set. A +/- prefix needs FlagLoveHate and must start
// a word; quotes need FlagPhrase; a trailing '*' needs FlagWildcard.
//
// Items are grouped into chains separated by OR. Within a chain, items
// without a prefix are joined by the default operator, '+' and AND items
// are required, and '-' and NOT items are excluded.
package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/stopper"
	apperrors "github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/errors"
)

// Dictionary lists the indexed terms wildcards expand against.
type Dictionary interface {
	TermsWithPrefix(prefix string) []string
}

// Operator joins unprefixed items within a chain.
type Operator int

const (
	OperatorOr Operator = iota
	OperatorAnd
)

// ParseOperator maps "or" or "and" to an Operator.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(s) {
	case "", "or":
		return OperatorOr, nil
	case "and":
		return OperatorAnd, nil
	default:
		return 0, fmt.Errorf("unknown default operator %q", s)
	}
}

// StopwordPolicy decides what a query made only of stopwords becomes.
type StopwordPolicy int

const (
	// StopwordKeep keeps the stopwords, so "the" searches for "the".
	StopwordKeep StopwordPolicy = iota
	// StopwordEmpty turns the query into query.Empty.
	StopwordEmpty
)

// ParseStopwordPolicy maps "keep" or "empty" to a StopwordPolicy.
func ParseStopwordPolicy(s string) (StopwordPolicy, error) {
	switch strings.ToLower(s) {
	case "", "keep":
		return StopwordKeep, nil
	case "empty":
		return StopwordEmpty, nil
	default:
		return 0, fmt.Errorf("unknown stopword policy %q", s)
	}
}

type Config struct {
	Dictionary      Dictionary
	DefaultOperator Operator
	// MaxWildcardExpansion bounds the terms one wildcard may expand to.
	// Zero means unlimited.
	MaxWildcardExpansion int
	StopwordPolicy       StopwordPolicy
}

// Parser is immutable; one Parser serves concurrent parses.
type Parser struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) (*Parser, error) {
	if cfg.MaxWildcardExpansion < 0 {
		return nil, fmt.Errorf("max wildcard expansion must be >= 0, got %d", cfg.MaxWildcardExpansion)
	}
	if cfg.DefaultOperator != OperatorOr && cfg.DefaultOperator != OperatorAnd {
		return nil, fmt.Errorf("unknown default operator %d", cfg.DefaultOperator)
	}
	if cfg.StopwordPolicy != StopwordKeep && cfg.StopwordPolicy != StopwordEmpty {
		return nil, fmt.Errorf("unknown stopword policy %d", cfg.StopwordPolicy)
	}
	return &Parser{
		cfg:    cfg,
		logger: slog.Default().With("component", "query-parser"),
	}, nil
}

type role int

const (
	roleDefault role = iota
	roleRequired
	roleExcluded
)

type item struct {
	tok  token
	role role
}

// Parse parses text with the given features. stop may be nil. Blank input
// gives query.Empty.
func (p *Parser) Parse(text string, flags Flags, stop stopper.Filter) (query.Node, error) {
	if err := p.checkFlags(flags); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return query.Empty{}, nil
	}
	tokens, err := lex(text, flags)
	if err != nil {
		return nil, err
	}
	chains, err := group(tokens, flags)
	if err != nil {
		return nil, err
	}

	dropped := stoppable(chains, stop)
	if allStopped(chains, dropped) {
		if p.cfg.StopwordPolicy == StopwordEmpty {
			p.logger.Debug("stopword-only query", "query", text)
			return query.Empty{}, nil
		}
		dropped = make([]map[int]bool, len(chains))
	}

	nodes := make([]query.Node, 0, len(chains))
	for ci, chain := range chains {
		n, err := p.buildChain(chain, dropped[ci], flags)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	root := query.NewOr(nodes...)
	p.logger.Debug("query parsed", "query", text, "flags", flags.String(), "tree", query.Description(root))
	return root, nil
}

func (p *Parser) checkFlags(flags Flags) error {
	unsupported := func(feature string) error {
		return &apperrors.UnsupportedFeatureError{Feature: feature}
	}
	switch {
	case flags&^knownFlags != 0:
		return unsupported(fmt.Sprintf("query flags 0x%x", uint32(flags&^knownFlags)))
	case flags.Has(FlagPartial):
		return unsupported("partial matching")
	case flags.Has(FlagSpellingCorrection):
		return unsupported("spelling correction")
	case flags.Has(FlagSynonym):
		return unsupported("synonyms")
	case flags.Has(FlagAutoSynonyms):
		return unsupported("automatic synonyms")
	case flags.Has(FlagBooleanAnyCase) && !flags.Has(FlagBoolean):
		return unsupported("any-case boolean operators without boolean operators")
	case flags.Has(FlagWildcard) && p.cfg.Dictionary == nil:
		return unsupported("wildcards without a term dictionary")
	}
	return nil
}

// group applies the operators and splits the items into OR chains.
func group(tokens []token, flags Flags) ([][]item, error) {
	var (
		chains  [][]item
		current []item
		pending = opNone
		opAt    int
	)
	dangling := func(offset int, op operator) error {
		return &apperrors.QuerySyntaxError{Offset: offset, Message: fmt.Sprintf("dangling %s", op)}
	}
	for _, tok := range tokens {
		if tok.kind == tokOperator {
			switch {
			case tok.op == opNot && pending == opAnd:
				pending = opAndNot
				continue
			case pending != opNone:
				return nil, dangling(tok.offset, tok.op)
			case len(current) == 0 && tok.op == opNot && flags.Has(FlagPureNot):
				return nil, &apperrors.UnsupportedFeatureError{Feature: "pure NOT queries"}
			case len(current) == 0:
				return nil, dangling(tok.offset, tok.op)
			}
			pending, opAt = tok.op, tok.offset
			continue
		}

		r := roleDefault
		switch tok.prefix {
		case '+':
			r = roleRequired
		case '-':
			r = roleExcluded
		}
		switch pending {
		case opOr:
			chains = append(chains, current)
			current = nil
		case opAnd:
			if last := len(current) - 1; current[last].role == roleDefault {
				current[last].role = roleRequired
			}
			if r == roleDefault {
				r = roleRequired
			}
		case opNot, opAndNot:
			r = roleExcluded
		}
		pending = opNone
		current = append(current, item{tok: tok, role: r})
	}
	if pending != opNone {
		return nil, dangling(opAt, pending)
	}
	if len(current) > 0 {
		chains = append(chains, current)
	}
	return chains, nil
}

// stoppable marks the unprefixed words found in stop, per chain.
func stoppable(chains [][]item, stop stopper.Filter) []map[int]bool {
	out := make([]map[int]bool, len(chains))
	if stop == nil {
		return out
	}
	for ci, chain := range chains {
		for i, it := range chain {
			if it.tok.kind == tokWord && it.role == roleDefault && stop.Contains(it.tok.term) {
				if out[ci] == nil {
					out[ci] = make(map[int]bool)
				}
				out[ci][i] = true
			}
		}
	}
	return out
}

func allStopped(chains [][]item, dropped []map[int]bool) bool {
	total := 0
	for ci, chain := range chains {
		if len(dropped[ci]) != len(chain) {
			return false
		}
		total += len(chain)
	}
	return total > 0
}

func (p *Parser) buildChain(chain []item, dropped map[int]bool, flags Flags) (query.Node, error) {
	var defaults, required, excluded []query.Node
	positives := 0
	for i, it := range chain {
		if dropped[i] {
			continue
		}
		n, err := p.itemNode(it.tok)
		if err != nil {
			return nil, err
		}
		if n == nil {
			continue
		}
		switch it.role {
		case roleRequired:
			required = append(required, n)
			positives++
		case roleExcluded:
			excluded = append(excluded, n)
		default:
			defaults = append(defaults, n)
			positives++
		}
	}

	if positives == 0 {
		if len(excluded) > 0 && flags.Has(FlagPureNot) {
			return nil, &apperrors.UnsupportedFeatureError{Feature: "pure NOT queries"}
		}
		return query.Empty{}, nil
	}

	if p.cfg.DefaultOperator == OperatorAnd {
		required = append(required, defaults...)
		defaults = nil
	}
	var pos query.Node
	if len(required) > 0 {
		pos = query.NewAndMaybe(query.NewAnd(mergeTerms(required)...), query.NewOr(mergeTerms(defaults)...))
	} else {
		pos = query.NewOr(mergeTerms(defaults)...)
	}
	return query.NewAndNot(pos, query.NewOr(mergeTerms(excluded)...)), nil
}

// itemNode builds the node for one word, phrase or wildcard. A nil node
// means the item carries no terms.
func (p *Parser) itemNode(tok token) (query.Node, error) {
	switch tok.kind {
	case tokWord:
		return query.Term{Name: tok.term}, nil
	case tokPhrase:
		switch len(tok.words) {
		case 0:
			return nil, nil
		case 1:
			return query.Term{Name: tok.words[0]}, nil
		default:
			return query.Phrase{Terms: tok.words}, nil
		}
	case tokWildcard:
		return p.expand(tok.term)
	default:
		return nil, fmt.Errorf("unexpected token kind %d", tok.kind)
	}
}

// expand replaces a wildcard prefix with the dictionary terms it matches:
// none gives Empty, one a Term, several an Or in dictionary order. An empty
// prefix expands to nothing.
func (p *Parser) expand(prefix string) (query.Node, error) {
	if prefix == "" {
		return query.Empty{}, nil
	}
	terms := p.cfg.Dictionary.TermsWithPrefix(prefix)
	if limit := p.cfg.MaxWildcardExpansion; limit > 0 && len(terms) > limit {
		return nil, &apperrors.ExpansionLimitError{Pattern: prefix + "*", Limit: limit, Candidates: len(terms)}
	}
	children := make([]query.Node, len(terms))
	for i, t := range terms {
		children[i] = query.Term{Name: t}
	}
	return query.NewOr(children...), nil
}

// mergeTerms folds repeated plain terms into one Term with a higher
// within-query frequency, keeping first-seen order.
func mergeTerms(nodes []query.Node) []query.Node {
	if len(nodes) < 2 {
		return nodes
	}
	out := make([]query.Node, 0, len(nodes))
	seen := make(map[string]int)
	for _, n := range nodes {
		t, ok := n.(query.Term)
		if !ok {
			out = append(out, n)
			continue
		}
		if at, dup := seen[t.Name]; dup {
			prev := out[at].(query.Term)
			prev.WQF = max(prev.WQF, 1) + 1
			out[at] = prev
			continue
		}
		seen[t.Name] = len(out)
		out = append(out, t)
	}
	return out
}
