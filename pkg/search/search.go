// Package search is the library surface of the query engine: open a
// database, parse a query against it, evaluate it into a ranked result set.
//
//	db, err := search.Open("/var/lib/rqe")
//	stop := search.NewStopper("drop", "me").Freeze()
//	q, err := db.ParseQuery("africa", search.FlagDefault, stop)
//	res, err := db.Evaluate(ctx, q, 0, 10)
//	for it := res.Iterator(); it.Next(); {
//		m, _ := it.Match()
//		payload, _ := m.Payload()
//	}
package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/mset"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/postingsource"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/stopper"
)

type (
	Query          = query.Node
	MSet           = mset.MSet
	Match          = mset.Match
	Iterator       = mset.Iterator
	Document       = index.Document
	Flags          = parser.Flags
	StopwordFilter = stopper.Filter
	Stopper        = stopper.Stopper
	PostingSource  = postingsource.Source
	Transform      = postingsource.Transform
	Weighting      = ranker.Weighting
	Combiner       = executor.Combiner
	StopwordPolicy = parser.StopwordPolicy
	Operator       = parser.Operator
)

const (
	FlagBoolean            = parser.FlagBoolean
	FlagPhrase             = parser.FlagPhrase
	FlagLoveHate           = parser.FlagLoveHate
	FlagBooleanAnyCase     = parser.FlagBooleanAnyCase
	FlagWildcard           = parser.FlagWildcard
	FlagPureNot            = parser.FlagPureNot
	FlagPartial            = parser.FlagPartial
	FlagSpellingCorrection = parser.FlagSpellingCorrection
	FlagSynonym            = parser.FlagSynonym
	FlagAutoSynonyms       = parser.FlagAutoSynonyms
	FlagDefault            = parser.FlagDefault

	CombineSum = executor.CombineSum
	CombineMax = executor.CombineMax

	StopwordKeep  = parser.StopwordKeep
	StopwordEmpty = parser.StopwordEmpty

	OperatorOr  = parser.OperatorOr
	OperatorAnd = parser.OperatorAnd
)

var (
	NewStopper     = stopper.New
	Wrap           = postingsource.Wrap
	WithTransform  = postingsource.WithTransform
	ParseFlags     = parser.ParseFlags
	ParseTransform = postingsource.ParseTransform
	Description    = query.Description
)

func Term(name string) Query { return query.Term{Name: name} }

func And(children ...Query) Query { return query.NewAnd(children...) }

func Or(children ...Query) Query { return query.NewOr(children...) }

func AndMaybe(required, optional Query) Query { return query.NewAndMaybe(required, optional) }

func AndNot(left, right Query) Query { return query.NewAndNot(left, right) }

func Source(src PostingSource) Query { return query.PostingSource{Source: src} }

func Phrase(terms ...string) Query { return query.Phrase{Terms: terms} }

// Wildcard expands prefix against the database's terms at evaluation time.
func Wildcard(prefix string) Query { return query.Wildcard{Prefix: prefix} }

type options struct {
	exec   executor.Config
	parser parser.Config
}

type Option func(*options)

func WithWeighting(w Weighting) Option {
	return func(o *options) { o.exec.Weighting = w }
}

// WithCombiners sets how Or and And nodes merge their children's weights.
func WithCombiners(or, and Combiner) Option {
	return func(o *options) {
		o.exec.OrCombiner = or
		o.exec.AndCombiner = and
	}
}

// WithMaxWildcardExpansion bounds wildcard expansion; zero is unlimited.
func WithMaxWildcardExpansion(n int) Option {
	return func(o *options) {
		o.exec.MaxWildcardExpansion = n
		o.parser.MaxWildcardExpansion = n
	}
}

func WithStopwordPolicy(p StopwordPolicy) Option {
	return func(o *options) { o.parser.StopwordPolicy = p }
}

func WithDefaultOperator(op Operator) Option {
	return func(o *options) { o.parser.DefaultOperator = op }
}

// Database is an open, read-only database. It is safe for concurrent use.
type Database struct {
	reader *segment.Reader
	exec   *executor.Executor
	parser *parser.Parser
	logger *slog.Logger
}

// Open opens the database at path, a database file or a directory holding
// database files. It fails with a DatabaseNotFoundError or a
// DatabaseCorruptError.
func Open(path string, opts ...Option) (*Database, error) {
	o := options{exec: executor.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	reader, err := segment.Open(path)
	if err != nil {
		return nil, err
	}
	o.parser.Dictionary = reader
	p, err := parser.New(o.parser)
	if err != nil {
		reader.Close()
		return nil, err
	}
	exec, err := executor.New(reader, o.exec)
	if err != nil {
		reader.Close()
		return nil, err
	}

	logger := slog.Default().With("component", "database")
	logger.Info("database opened",
		"path", reader.Path(),
		"documents", reader.DocCount(),
		"terms", reader.Terms(),
		"compression", reader.Header().Compression.String(),
	)
	return &Database{reader: reader, exec: exec, parser: p, logger: logger}, nil
}

// ParseQuery parses text against this database's term dictionary. stop
// may be nil.
func (d *Database) ParseQuery(text string, flags Flags, stop StopwordFilter) (Query, error) {
	return d.parser.Parse(text, flags, stop)
}

// Evaluate ranks the matches of q and returns those at ranks
// offset..offset+limit-1.
func (d *Database) Evaluate(ctx context.Context, q Query, offset, limit int) (*MSet, error) {
	return d.exec.Evaluate(ctx, q, offset, limit)
}

func (d *Database) Document(id uint32) (*Document, error) {
	return d.reader.Document(id)
}

func (d *Database) DocCount() uint32 { return d.reader.DocCount() }

func (d *Database) LastDocID() uint32 { return d.reader.LastDocID() }

func (d *Database) TermFreq(term string) int { return d.reader.TermFreq(term) }

// Terms returns the number of distinct terms.
func (d *Database) Terms() int { return d.reader.Terms() }

func (d *Database) AvgDocLength() float64 { return d.reader.AvgDocLength() }

func (d *Database) Path() string { return d.reader.Path() }

func (d *Database) String() string {
	return fmt.Sprintf("Database(%s, %d documents)", d.reader.Path(), d.reader.DocCount())
}

func (d *Database) Close() error {
	return d.reader.Close()
}
