// Package query defines the query tree evaluated by the executor.
//
// Node is a closed set of variants: the unexported isNode method keeps
// other packages from adding kinds, so a type switch over the types below
// is exhaustive.
package query

import (
	"fmt"
	"strings"
)

type Node interface {
	String() string
	isNode()
}

// Source is implemented by posting sources that can be placed in a tree.
type Source interface {
	String() string
}

// Empty matches nothing.
type Empty struct{}

// Term matches documents containing Name. WQF is the within-query
// frequency; zero means 1.
type Term struct {
	Name string
	WQF  uint32
}

// PostingSource matches the documents produced by Source.
type PostingSource struct {
	Source Source
}

// And matches documents matching every child.
type And struct {
	Children []Node
}

// Or matches documents matching any child.
type Or struct {
	Children []Node
}

// AndMaybe matches documents matching Required. Optional only adds
// weight to those documents.
type AndMaybe struct {
	Required Node
	Optional Node
}

// AndNot matches documents matching Left but not Right. Right contributes
// no weight.
type AndNot struct {
	Left  Node
	Right Node
}

// Phrase matches documents containing Terms at consecutive positions.
type Phrase struct {
	Terms []string
}

// Wildcard matches documents containing any term starting with Prefix.
// Limit bounds the expansion; zero defers to the executor configuration.
type Wildcard struct {
	Prefix string
	Limit  int
}

func (Empty) isNode()         {}
func (Term) isNode()          {}
func (PostingSource) isNode() {}
func (And) isNode()           {}
func (Or) isNode()            {}
func (AndMaybe) isNode()      {}
func (AndNot) isNode()        {}
func (Phrase) isNode()        {}
func (Wildcard) isNode()      {}

func (Empty) String() string { return "" }

func (t Term) String() string {
	if t.WQF > 1 {
		return fmt.Sprintf("%s#%d", t.Name, t.WQF)
	}
	return t.Name
}

func (p PostingSource) String() string {
	if p.Source == nil {
		return "PostingSource()"
	}
	return "PostingSource(" + p.Source.String() + ")"
}

func (a And) String() string { return join(a.Children, " AND ") }

func (o Or) String() string { return join(o.Children, " OR ") }

func (a AndMaybe) String() string {
	return "(" + describe(a.Required) + " AND_MAYBE " + describe(a.Optional) + ")"
}

func (a AndNot) String() string {
	return "(" + describe(a.Left) + " AND_NOT " + describe(a.Right) + ")"
}

func (p Phrase) String() string {
	return "(" + strings.Join(p.Terms, fmt.Sprintf(" PHRASE %d ", len(p.Terms))) + ")"
}

func (w Wildcard) String() string { return "WILDCARD " + w.Prefix + "*" }

func describe(n Node) string {
	if n == nil {
		return ""
	}
	return n.String()
}

func join(children []Node, op string) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = describe(c)
	}
	return "(" + strings.Join(parts, op) + ")"
}

// Description renders n the way query logs print it, e.g.
// "Query((africa OR african))".
func Description(n Node) string {
	return "Query(" + describe(n) + ")"
}

// IsEmpty reports whether n can match nothing by construction.
func IsEmpty(n Node) bool {
	switch v := n.(type) {
	case nil, Empty:
		return true
	case And:
		for _, c := range v.Children {
			if IsEmpty(c) {
				return true
			}
		}
		return len(v.Children) == 0
	case Or:
		for _, c := range v.Children {
			if !IsEmpty(c) {
				return false
			}
		}
		return true
	case AndMaybe:
		return IsEmpty(v.Required)
	case AndNot:
		return IsEmpty(v.Left)
	case Phrase:
		return len(v.Terms) == 0
	default:
		return false
	}
}

// Length is the total within-query frequency of the terms in n.
func Length(n Node) int {
	switch v := n.(type) {
	case Term:
		return int(max(v.WQF, 1))
	case Phrase:
		return len(v.Terms)
	case Wildcard:
		return 1
	case And:
		return sumLength(v.Children)
	case Or:
		return sumLength(v.Children)
	case AndMaybe:
		return Length(v.Required) + Length(v.Optional)
	case AndNot:
		return Length(v.Left) + Length(v.Right)
	default:
		return 0
	}
}

func sumLength(children []Node) int {
	n := 0
	for _, c := range children {
		n += Length(c)
	}
	return n
}

// Terms returns the distinct terms named in n in first-seen order.
// Wildcards contribute nothing until expanded.
func Terms(n Node) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(t string) {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case Term:
			add(v.Name)
		case Phrase:
			for _, t := range v.Terms {
				add(t)
			}
		case And:
			for _, c := range v.Children {
				walk(c)
			}
		case Or:
			for _, c := range v.Children {
				walk(c)
			}
		case AndMaybe:
			walk(v.Required)
			walk(v.Optional)
		case AndNot:
			walk(v.Left)
			walk(v.Right)
		}
	}
	walk(n)
	return out
}

// NewAnd builds an And, collapsing trivial cases: no children or any
// empty child gives Empty, one child is returned as is.
func NewAnd(children ...Node) Node {
	if len(children) == 0 {
		return Empty{}
	}
	for _, c := range children {
		if IsEmpty(c) {
			return Empty{}
		}
	}
	if len(children) == 1 {
		return children[0]
	}
	return And{Children: children}
}

// NewOr builds an Or without its empty children. No remaining children
// gives Empty, one is returned as is.
func NewOr(children ...Node) Node {
	kept := make([]Node, 0, len(children))
	for _, c := range children {
		if !IsEmpty(c) {
			kept = append(kept, c)
		}
	}
	switch len(kept) {
	case 0:
		return Empty{}
	case 1:
		return kept[0]
	default:
		return Or{Children: kept}
	}
}

// NewAndMaybe returns required alone when optional is empty.
func NewAndMaybe(required, optional Node) Node {
	if IsEmpty(required) {
		return Empty{}
	}
	if IsEmpty(optional) {
		return required
	}
	return AndMaybe{Required: required, Optional: optional}
}

// NewAndNot returns left alone when right is empty.
func NewAndNot(left, right Node) Node {
	if IsEmpty(left) {
		return Empty{}
	}
	if IsEmpty(right) {
		return left
	}
	return AndNot{Left: left, Right: right}
}
