package exps

import (
	"fmt"

	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/schema"
	"github.com/pierpaolospaziani/openjpa/internal/sql"
)

// Factory builds the nodes of one compiled query, subqueries included. It
// numbers every node for the ExpState arena and resolves paths against the
// variables bound with Bind.
type Factory struct {
	next int
	vars map[string]*mapping.ClassMapping
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{vars: make(map[string]*mapping.ClassMapping)}
}

func (f *Factory) id() int {
	n := f.next
	f.next++
	return n
}

// Nodes returns how many nodes the factory has built.
func (f *Factory) Nodes() int { return f.next }

// Bind declares variable alias ranging over m.
func (f *Factory) Bind(alias string, m *mapping.ClassMapping) {
	f.vars[alias] = m
}

// Query returns empty expressions for candidate m bound to alias.
func (f *Factory) Query(m *mapping.ClassMapping, alias string) *QueryExpressions {
	f.Bind(alias, m)
	return &QueryExpressions{
		Candidate:  m,
		Alias:      alias,
		Subclasses: true,
		End:        sql.NoLimit,
		factory:    f,
	}
}

// Literal returns a literal. Date, time and timestamp literals are raw.
func (f *Factory) Literal(v any, parse LitType) *Lit {
	return &Lit{node: node{id: f.id()}, value: v, parse: parse, raw: isDateLit(parse), typ: schema.JavaDefault}
}

// Null returns the null literal.
func (f *Factory) Null() *Lit { return f.Literal(nil, LitObject) }

// Param returns a parameter of unknown type.
func (f *Factory) Param(key string) *Param {
	return &Param{node: node{id: f.id()}, Key: key, typ: schema.JavaObject}
}

// Path resolves names from variable alias. Every name but the last must be
// a relation.
func (f *Factory) Path(alias string, names ...string) (*Path, error) {
	m, ok := f.vars[alias]
	if !ok {
		return nil, invalid("unknown variable %q", alias)
	}
	p := &Path{node: node{id: f.id()}, Var: alias, Names: names, typ: schema.JavaEntity, meta: m}
	cur := m
	for i, name := range names {
		fm := cur.Field(name)
		if fm == nil {
			return nil, &QueryError{Code: ErrCodeUnknownField, Message: fmt.Sprintf("%s has no field %q", cur, name), Expr: p.String()}
		}
		last := i == len(names)-1
		if !last && !fm.IsRelation() {
			return nil, invalid("cannot navigate through %s in %s", fm, p)
		}
		p.kind = fm.Kind
		if fm.IsRelation() {
			cur = fm.Relation
			p.meta = cur
			p.typ = schema.JavaEntity
			if fm.Kind == mapping.ToMany {
				p.typ = schema.JavaCollection
			}
		} else {
			p.meta = nil
			p.typ = fm.Type
		}
	}
	return p, nil
}

// MustPath is Path for statically known paths; it panics on error.
func (f *Factory) MustPath(alias string, names ...string) *Path {
	p, err := f.Path(alias, names...)
	if err != nil {
		panic(err)
	}
	return p
}

// Unary returns op applied to v.
func (f *Factory) Unary(op UnaryOperator, v Val) *UnaryOp {
	return &UnaryOp{node: node{id: f.id()}, Op: op, Arg: v, cast: schema.JavaDefault}
}

// Index returns INDEX(v).
func (f *Factory) Index(v Val) *UnaryOp { return f.Unary(OpIndex, v) }

// TypeOf returns TYPE(v).
func (f *Factory) TypeOf(v Val) *UnaryOp { return f.Unary(OpType, v) }

// Size returns SIZE(v) for a subquery or collection-valued path.
func (f *Factory) Size(v Val) *UnaryOp { return f.Unary(OpSize, v) }

// Math returns l op r.
func (f *Factory) Math(op MathOperator, l, r Val) *MathOp {
	return &MathOp{node: node{id: f.id()}, Op: op, L: l, R: r, cast: schema.JavaDefault}
}

// Aggregate returns fn over v.
func (f *Factory) Aggregate(fn AggregateFunc, v Val, distinct bool) *Aggregate {
	return &Aggregate{node: node{id: f.id()}, Fn: fn, Arg: v, Distinct: distinct, cast: schema.JavaDefault}
}

func (f *Factory) Sum(v Val) *Aggregate   { return f.Aggregate(AggSum, v, false) }
func (f *Factory) Avg(v Val) *Aggregate   { return f.Aggregate(AggAvg, v, false) }
func (f *Factory) Count(v Val) *Aggregate { return f.Aggregate(AggCount, v, false) }
func (f *Factory) Min(v Val) *Aggregate   { return f.Aggregate(AggMin, v, false) }
func (f *Factory) Max(v Val) *Aggregate   { return f.Aggregate(AggMax, v, false) }

// Case returns a CASE expression; operand is nil for a general case.
func (f *Factory) Case(operand Val, whens []When, els Val) *Case {
	return &Case{node: node{id: f.id()}, Operand: operand, Whens: whens, Else: els, cast: schema.JavaDefault}
}

// Coalesce returns COALESCE(vals...).
func (f *Factory) Coalesce(vals ...Val) *Coalesce {
	return &Coalesce{node: node{id: f.id()}, Vals: vals, cast: schema.JavaDefault}
}

// NullIf returns NULLIF(l, r).
func (f *Factory) NullIf(l, r Val) *NullIf {
	return &NullIf{node: node{id: f.id()}, L: l, R: r, cast: schema.JavaDefault}
}

// Args returns an argument list, flattening nested lists.
func (f *Factory) Args(vals ...Val) *Args {
	a := &Args{node: node{id: f.id()}}
	for _, v := range vals {
		if nested, ok := v.(*Args); ok {
			a.Vals = append(a.Vals, nested.Vals...)
			continue
		}
		a.Vals = append(a.Vals, v)
	}
	return a
}

// TypeLit returns an entity type literal.
func (f *Factory) TypeLit(v any) *TypeLit {
	return &TypeLit{node: node{id: f.id()}, value: v}
}

// Subquery returns a subquery over candidate bound to alias, together with
// its empty expressions.
func (f *Factory) Subquery(candidate *mapping.ClassMapping, subs bool, alias string) (*SubQ, *QueryExpressions) {
	q := f.Query(candidate, alias)
	q.Subclasses = subs
	s := &SubQ{node: node{id: f.id()}, Candidate: candidate, Subs: subs, CandidateAlias: alias, exps: q, typ: schema.JavaDefault}
	return s, q
}

// Compare returns l op r. A literal or parameter compared with a typed
// value takes that value's type.
func (f *Factory) Compare(op CompareOp, l, r Val) *Compare {
	implicit(l, r)
	implicit(r, l)
	return &Compare{expNode: expNode{id: f.id()}, Op: op, L: l, R: r}
}

// Equal returns l = r.
func (f *Factory) Equal(l, r Val) *Compare { return f.Compare(OpEQ, l, r) }

// And returns l AND r. A nil side yields the other.
func (f *Factory) And(l, r Exp) Exp {
	switch {
	case l == nil:
		return r
	case r == nil:
		return l
	}
	return &And{expNode: expNode{id: f.id()}, L: l, R: r}
}

// Or returns l OR r.
func (f *Factory) Or(l, r Exp) *Or { return &Or{expNode: expNode{id: f.id()}, L: l, R: r} }

// Not returns NOT e.
func (f *Factory) Not(e Exp) *Not { return &Not{expNode: expNode{id: f.id()}, E: e} }

// IsNull returns v IS NULL, or IS NOT NULL with not.
func (f *Factory) IsNull(v Val, not bool) *IsNull {
	return &IsNull{expNode: expNode{id: f.id()}, V: v, Not: not}
}

// In returns v IN list.
func (f *Factory) In(v, list Val, not bool) *In {
	if a, ok := list.(*Args); ok {
		for _, item := range a.Vals {
			implicit(item, v)
		}
	} else {
		implicit(list, v)
	}
	return &In{expNode: expNode{id: f.id()}, V: v, List: list, Not: not}
}

// IsEmpty returns v IS EMPTY, or IS NOT EMPTY (EXISTS) with not.
func (f *Factory) IsEmpty(v Val, not bool) *Empty {
	return &Empty{expNode: expNode{id: f.id()}, V: v, Not: not}
}

// Like returns v LIKE pattern. escape is 0 for none.
func (f *Factory) Like(v, pattern Val, escape rune, not bool) *Like {
	narrow(pattern, schema.JavaString)
	return &Like{expNode: expNode{id: f.id()}, V: v, Pattern: pattern, Escape: escape, Not: not}
}

// implicit narrows a constant side to the type of the other side.
func implicit(v, other Val) {
	narrow(v, other.Type())
}

func narrow(v Val, t schema.JavaType) {
	switch x := v.(type) {
	case *Lit:
		if x.Value() == nil {
			return
		}
	case *Param, *SubQ:
	default:
		return
	}
	switch t {
	case schema.JavaObject, schema.JavaDefault, schema.JavaEntity, schema.JavaCollection, schema.JavaArray:
		return
	}
	v.SetImplicitType(t)
}
