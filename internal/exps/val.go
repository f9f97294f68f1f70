package exps

import (
	"fmt"
	"strings"

	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

// Val is a compiled query value. The set of node types is closed: Lit,
// Param, Path, UnaryOp, MathOp, Aggregate, Case, Coalesce, NullIf, SubQ,
// Args and TypeLit. Planning and evaluation dispatch on the concrete type.
//
// A Val tree is mutated only while it is compiled (SetImplicitType,
// SetAlias). Planning keeps per-statement data in an ExpState arena, so a
// compiled tree can be planned by several goroutines at once.
type Val interface {
	// ID is the node's index in the ExpState arena.
	ID() int
	Type() schema.JavaType
	SetImplicitType(t schema.JavaType)
	Alias() string
	SetAlias(alias string)
	// Meta returns the entity mapping of an entity-valued node, or nil.
	Meta() *mapping.ClassMapping
	String() string

	val()
}

type node struct {
	id    int
	alias string
}

func (n *node) ID() int                     { return n.id }
func (n *node) Alias() string               { return n.alias }
func (n *node) SetAlias(alias string)       { n.alias = alias }
func (n *node) Meta() *mapping.ClassMapping { return nil }
func (n *node) val()                        {}

// Param is a named query parameter, bound per execution.
type Param struct {
	node
	Key string
	typ schema.JavaType
}

func (p *Param) Type() schema.JavaType { return p.typ }

// SetImplicitType records the type bound values are converted to.
func (p *Param) SetImplicitType(t schema.JavaType) { p.typ = t }

func (p *Param) String() string { return ":" + p.Key }

// Path navigates from a query variable through fields. A path without
// fields is the variable itself.
type Path struct {
	node
	Var   string
	Names []string
	typ   schema.JavaType
	meta  *mapping.ClassMapping
	kind  mapping.RelationKind
	outer bool
}

func (p *Path) Type() schema.JavaType { return p.typ }

// SetImplicitType does nothing; a path's type comes from its mapping.
func (p *Path) SetImplicitType(schema.JavaType) {}

func (p *Path) Meta() *mapping.ClassMapping { return p.meta }

// Kind returns the relation kind of the last field; Basic for a variable.
func (p *Path) Kind() mapping.RelationKind { return p.kind }

// IsVariable reports whether the path has no fields.
func (p *Path) IsVariable() bool { return len(p.Names) == 0 }

// Outer makes the joins of the path outer joins.
func (p *Path) Outer() *Path {
	p.outer = true
	return p
}

// IsOuter reports whether the path uses outer joins.
func (p *Path) IsOuter() bool { return p.outer }

func (p *Path) String() string {
	return strings.Join(append([]string{p.Var}, p.Names...), ".")
}

// UnaryOperator is a function or operator of one argument.
type UnaryOperator string

const (
	OpAbs    UnaryOperator = "ABS"
	OpSqrt   UnaryOperator = "SQRT"
	OpNegate UnaryOperator = "-"
	OpUpper  UnaryOperator = "UPPER"
	OpLower  UnaryOperator = "LOWER"
	OpTrim   UnaryOperator = "TRIM"
	OpLength UnaryOperator = "LENGTH"
	// OpIndex is the position of an element in an ordered collection. It
	// has no in-memory form.
	OpIndex UnaryOperator = "INDEX"
	// OpType is the concrete entity type of an entity-valued argument.
	OpType UnaryOperator = "TYPE"
	// OpSize counts the rows of a subquery or the elements of a collection.
	OpSize UnaryOperator = "SIZE"
)

// UnaryOp applies a unary operator.
type UnaryOp struct {
	node
	Op   UnaryOperator
	Arg  Val
	cast schema.JavaType
}

func (u *UnaryOp) Type() schema.JavaType {
	if u.cast != schema.JavaDefault {
		return u.cast
	}
	switch u.Op {
	case OpSqrt:
		return schema.JavaDouble
	case OpUpper, OpLower, OpTrim:
		return schema.JavaString
	case OpLength, OpIndex:
		return schema.JavaInt
	case OpType:
		return schema.JavaString
	case OpSize:
		return schema.JavaLong
	}
	return u.Arg.Type()
}

func (u *UnaryOp) SetImplicitType(t schema.JavaType) { u.cast = t }

func (u *UnaryOp) String() string { return fmt.Sprintf("%s(%s)", u.Op, u.Arg) }

// MathOp applies a binary arithmetic operator.
type MathOp struct {
	node
	Op   MathOperator
	L, R Val
	cast schema.JavaType
}

// OpConcat concatenates two strings.
const OpConcat MathOperator = "||"

func (m *MathOp) Type() schema.JavaType {
	if m.cast != schema.JavaDefault {
		return m.cast
	}
	if m.Op == OpConcat {
		return schema.JavaString
	}
	return Promote(m.L.Type(), m.R.Type())
}

func (m *MathOp) SetImplicitType(t schema.JavaType) { m.cast = t }

func (m *MathOp) String() string { return fmt.Sprintf("(%s %s %s)", m.L, m.Op, m.R) }

// Case is a CASE expression. With an Operand it is a simple case whose
// whens compare Value to the operand; otherwise each when has a Cond.
type Case struct {
	node
	Operand Val
	Whens   []When
	Else    Val
	cast    schema.JavaType
}

// When is one branch of a Case.
type When struct {
	Cond   Exp
	Value  Val
	Result Val
}

func (c *Case) Type() schema.JavaType {
	if c.cast != schema.JavaDefault {
		return c.cast
	}
	t := schema.JavaObject
	for _, w := range c.Whens {
		t = Promote(t, w.Result.Type())
	}
	if c.Else != nil {
		t = Promote(t, c.Else.Type())
	}
	return t
}

func (c *Case) SetImplicitType(t schema.JavaType) { c.cast = t }

func (c *Case) String() string {
	var b strings.Builder
	b.WriteString("CASE")
	if c.Operand != nil {
		b.WriteString(" " + c.Operand.String())
	}
	for _, w := range c.Whens {
		if w.Cond != nil {
			fmt.Fprintf(&b, " WHEN %s THEN %s", w.Cond, w.Result)
		} else {
			fmt.Fprintf(&b, " WHEN %s THEN %s", w.Value, w.Result)
		}
	}
	if c.Else != nil {
		b.WriteString(" ELSE " + c.Else.String())
	}
	b.WriteString(" END")
	return b.String()
}

// Coalesce returns its first non-null argument.
type Coalesce struct {
	node
	Vals []Val
	cast schema.JavaType
}

func (c *Coalesce) Type() schema.JavaType {
	if c.cast != schema.JavaDefault {
		return c.cast
	}
	t := schema.JavaObject
	for _, v := range c.Vals {
		t = Promote(t, v.Type())
	}
	return t
}

func (c *Coalesce) SetImplicitType(t schema.JavaType) { c.cast = t }

func (c *Coalesce) String() string { return "COALESCE(" + joinVals(c.Vals) + ")" }

// NullIf returns null when its arguments are equal, and the first one
// otherwise.
type NullIf struct {
	node
	L, R Val
	cast schema.JavaType
}

func (n *NullIf) Type() schema.JavaType {
	if n.cast != schema.JavaDefault {
		return n.cast
	}
	if isRawLit(n.L) || isRawLit(n.R) {
		return schema.JavaString
	}
	return Promote(n.L.Type(), n.R.Type())
}

func (n *NullIf) SetImplicitType(t schema.JavaType) { n.cast = t }

func (n *NullIf) String() string { return fmt.Sprintf("NULLIF(%s, %s)", n.L, n.R) }

func isRawLit(v Val) bool {
	l, ok := v.(*Lit)
	return ok && l.IsRaw()
}

// SubQ is a subquery used as a value or tested for emptiness.
type SubQ struct {
	node
	Candidate *mapping.ClassMapping
	Subs      bool
	// CandidateAlias is the variable the subquery's paths use for its
	// candidate.
	CandidateAlias string

	exps *QueryExpressions
	typ  schema.JavaType
}

// SetQueryExpressions sets the compiled body of the subquery.
func (s *SubQ) SetQueryExpressions(q *QueryExpressions) { s.exps = q }

// QueryExpressions returns the compiled body.
func (s *SubQ) QueryExpressions() *QueryExpressions { return s.exps }

// Type is the single projection's type, the candidate's for a subquery
// without projections, or the implicit type once set.
func (s *SubQ) Type() schema.JavaType {
	if s.typ == schema.JavaDefault && s.exps != nil {
		switch len(s.exps.Projections) {
		case 0:
			return schema.JavaEntity
		case 1:
			return s.exps.Projections[0].Type()
		}
	}
	if s.typ == schema.JavaDefault {
		return schema.JavaObject
	}
	return s.typ
}

// SetImplicitType also narrows a single projection.
func (s *SubQ) SetImplicitType(t schema.JavaType) {
	if s.exps != nil && len(s.exps.Projections) == 1 {
		s.exps.Projections[0].SetImplicitType(t)
	}
	s.typ = t
}

func (s *SubQ) Meta() *mapping.ClassMapping {
	if s.exps != nil && len(s.exps.Projections) == 0 {
		return s.Candidate
	}
	return nil
}

func (s *SubQ) String() string {
	return fmt.Sprintf("(SUBQUERY %s %s)", s.Candidate, s.CandidateAlias)
}

// Args is an argument list. Nested lists are flattened.
type Args struct {
	node
	Vals []Val
}

// Type is always JavaArray.
func (a *Args) Type() schema.JavaType { return schema.JavaArray }

// Types returns the type of each argument.
func (a *Args) Types() []schema.JavaType {
	out := make([]schema.JavaType, len(a.Vals))
	for i, v := range a.Vals {
		out[i] = v.Type()
	}
	return out
}

func (a *Args) SetImplicitType(schema.JavaType) {}

func (a *Args) String() string { return "(" + joinVals(a.Vals) + ")" }

// TypeLit is an entity type literal, compared with TYPE(path).
type TypeLit struct {
	node
	value any
}

// Value returns the literal value: a class mapping, or whatever
// SetImplicitType converted it to.
func (t *TypeLit) Value() any { return t.value }

func (t *TypeLit) Type() schema.JavaType {
	if t.value == nil {
		return schema.JavaObject
	}
	if _, ok := t.value.(*mapping.ClassMapping); ok {
		return schema.JavaObject
	}
	return schema.TypeOf(t.value)
}

// SetImplicitType converts the value, keeping it when conversion fails.
func (t *TypeLit) SetImplicitType(jt schema.JavaType) {
	if v, err := Convert(t.value, jt); err == nil {
		t.value = v
	}
}

func (t *TypeLit) Meta() *mapping.ClassMapping {
	m, _ := t.value.(*mapping.ClassMapping)
	return m
}

func (t *TypeLit) String() string {
	if m := t.Meta(); m != nil {
		return m.Name
	}
	return fmt.Sprint(t.value)
}

func joinVals(vals []Val) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
