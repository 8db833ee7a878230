package search

import "strings"

// Expression is an ordered conjunction of criteria. A message matches when
// it matches every condition.
//
// The zero value is an empty expression. An empty expression serializes to
// the empty string; Query turns that into ALL.
type Expression struct {
	conds []Criterion
}

// NewExpression returns an expression holding conds in order.
func NewExpression(conds ...Criterion) *Expression {
	e := &Expression{}
	for _, c := range conds {
		e.AddCondition(c)
	}
	return e
}

// AddCondition appends c and returns e for chaining. Duplicates are kept.
func (e *Expression) AddCondition(c Criterion) *Expression {
	e.conds = append(e.conds, c)
	return e
}

// Conditions returns a copy of the conditions in insertion order.
func (e *Expression) Conditions() []Criterion {
	if e == nil {
		return nil
	}
	out := make([]Criterion, len(e.conds))
	copy(out, e.conds)
	return out
}

// Len returns the number of conditions.
func (e *Expression) Len() int {
	if e == nil {
		return 0
	}
	return len(e.conds)
}

// String joins the serialized conditions with single spaces. Empty nested
// expressions contribute nothing.
func (e *Expression) String() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.conds))
	for _, c := range e.conds {
		if c == nil {
			continue
		}
		if s := c.String(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
