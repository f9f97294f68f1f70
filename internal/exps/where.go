package exps

import (
	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/sql"
)

// initExp allocates the state of condition e and its values. Constants are
// resolved against the values they are compared with.
func (p *pass) initExp(sel *sql.Select, e Exp) *ExpState {
	switch x := e.(type) {
	case *Compare:
		s1, s2 := p.initialize(sel, x.L, 0), p.initialize(sel, x.R, 0)
		st := p.setState(e.ID(), &ExpState{Joins: p.and(sel, s1.Joins, s2.Joins)})
		p.calculateValue(sel, x.L, x.R)
		p.calculateValue(sel, x.R, x.L)
		return st
	case *And:
		s1, s2 := p.initExp(sel, x.L), p.initExp(sel, x.R)
		return p.setState(e.ID(), &ExpState{Joins: p.and(sel, s1.Joins, s2.Joins)})
	case *Or:
		s1, s2 := p.initExp(sel, x.L), p.initExp(sel, x.R)
		j1, j2 := p.localize(sel, s1.Joins), p.localize(sel, s2.Joins)
		st := &ExpState{Joins: sel.Or(j1, j2), Branch: [2]*sql.Joins{j1, j2}}
		return p.setState(e.ID(), st)
	case *Not:
		s := p.initExp(sel, x.E)
		return p.setState(e.ID(), &ExpState{Joins: s.Joins})
	case *IsNull:
		s := p.initialize(sel, x.V, 0)
		p.calculateValue(sel, x.V, nil)
		return p.setState(e.ID(), &ExpState{Joins: s.Joins})
	case *In:
		s1 := p.initialize(sel, x.V, 0)
		s2 := p.initialize(sel, x.List, 0)
		p.calculateValue(sel, x.V, nil)
		if args, ok := x.List.(*Args); ok {
			for _, item := range args.Vals {
				p.calculateValue(sel, item, x.V)
			}
		} else {
			p.calculateValue(sel, x.List, x.V)
		}
		return p.setState(e.ID(), &ExpState{Joins: p.and(sel, s1.Joins, s2.Joins)})
	case *Empty:
		if _, ok := x.V.(*SubQ); ok {
			p.initialize(sel, x.V, 0)
			return p.setState(e.ID(), &ExpState{})
		}
		s := p.initialize(sel, x.V, flagEmpty)
		return p.setState(e.ID(), &ExpState{Joins: s.Joins})
	case *Like:
		s1, s2 := p.initialize(sel, x.V, 0), p.initialize(sel, x.Pattern, 0)
		p.calculateValue(sel, x.V, nil)
		p.calculateValue(sel, x.Pattern, x.V)
		return p.setState(e.ID(), &ExpState{Joins: p.and(sel, s1.Joins, s2.Joins)})
	}
	p.fail(invalid("unknown condition %T", e))
	return p.setState(e.ID(), &ExpState{})
}

// appendExp renders condition e into buf.
func (p *pass) appendExp(sel *sql.Select, e Exp, buf *sql.SQLBuffer) {
	switch x := e.(type) {
	case *Compare:
		p.appendCompare(sel, x, buf)
	case *And:
		p.appendExp(sel, x.L, buf)
		buf.Append(" AND ")
		p.appendExp(sel, x.R, buf)
	case *Or:
		st := p.state(e.ID())
		buf.Append("(")
		p.appendExp(sel, x.L, buf)
		sel.AppendBranchJoins(buf, st.Branch[0], st.Joins)
		buf.Append(" OR ")
		p.appendExp(sel, x.R, buf)
		sel.AppendBranchJoins(buf, st.Branch[1], st.Joins)
		buf.Append(")")
	case *Not:
		buf.Append("NOT (")
		p.appendExp(sel, x.E, buf)
		buf.Append(")")
	case *IsNull:
		p.appendIsNull(sel, x.V, x.Not, buf)
	case *In:
		p.appendIn(sel, x, buf)
	case *Empty:
		p.appendEmpty(sel, x, buf)
	case *Like:
		p.appendTo(sel, x.V, buf, 0)
		if x.Not {
			buf.Append(" NOT")
		}
		buf.Append(" LIKE ")
		p.appendTo(sel, x.Pattern, buf, 0)
		if x.Escape != 0 {
			buf.Append(" ESCAPE ").Append(p.ctx.Dict.StringLiteral(string(x.Escape)))
		}
	}
}

func isNullLit(v Val) bool {
	l, ok := v.(*Lit)
	return ok && l.Value() == nil
}

// appendCompare renders a comparison. Comparing with the null literal
// renders IS [NOT] NULL; a multi-column comparison is the conjunction of
// its per-column comparisons.
func (p *pass) appendCompare(sel *sql.Select, x *Compare, buf *sql.SQLBuffer) {
	if x.Op == OpEQ || x.Op == OpNE {
		switch {
		case isNullLit(x.R):
			p.appendIsNull(sel, x.L, x.Op == OpNE, buf)
			return
		case isNullLit(x.L):
			p.appendIsNull(sel, x.R, x.Op == OpNE, buf)
			return
		}
	}
	n1, n2 := p.length(x.L), p.length(x.R)
	n := max(n1, n2)
	if n == 1 {
		p.appendTo(sel, x.L, buf, 0)
		buf.Append(" " + string(x.Op) + " ")
		p.appendTo(sel, x.R, buf, 0)
		return
	}
	op := x.Op
	if op == OpNE {
		buf.Append("NOT (")
		op = OpEQ
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.Append(" AND ")
		}
		p.appendTo(sel, x.L, buf, min(i, n1-1))
		buf.Append(" " + string(op) + " ")
		p.appendTo(sel, x.R, buf, min(i, n2-1))
	}
	if x.Op == OpNE {
		buf.Append(")")
	}
}

func (p *pass) appendIsNull(sel *sql.Select, v Val, not bool, buf *sql.SQLBuffer) {
	n := p.length(v)
	if n > 1 && not {
		buf.Append("(")
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			if not {
				buf.Append(" OR ")
			} else {
				buf.Append(" AND ")
			}
		}
		p.appendTo(sel, v, buf, i)
		if not {
			buf.Append(" IS NOT NULL")
		} else {
			buf.Append(" IS NULL")
		}
	}
	if n > 1 && not {
		buf.Append(")")
	}
}

// appendIn renders v [NOT] IN list. An empty list matches nothing, or
// everything when negated.
func (p *pass) appendIn(sel *sql.Select, x *In, buf *sql.SQLBuffer) {
	empty := func() {
		if x.Not {
			buf.Append("1 = 1")
		} else {
			buf.Append("1 = 0")
		}
	}
	open := func() {
		p.appendTo(sel, x.V, buf, 0)
		if x.Not {
			buf.Append(" NOT")
		}
		buf.Append(" IN ")
	}
	switch list := x.List.(type) {
	case *SubQ:
		open()
		p.appendTo(sel, list, buf, 0)
	case *Args:
		if len(list.Vals) == 0 {
			empty()
			return
		}
		open()
		buf.Append("(")
		p.appendTo(sel, list, buf, 0)
		buf.Append(")")
	case *Param:
		st := p.state(list.ID())
		vals, ok := asSlice(st.Value)
		if !ok {
			vals = []any{st.Value}
		}
		if len(vals) == 0 {
			empty()
			return
		}
		open()
		buf.Append("(")
		for i, v := range vals {
			if i > 0 {
				buf.Append(", ")
			}
			if obj, ok := v.(*Object); ok && len(obj.ID) > 0 {
				v = obj.ID[0]
			}
			p.appendConstant(buf, v, st.col(0))
		}
		buf.Append(")")
	default:
		open()
		buf.Append("(")
		p.appendTo(sel, list, buf, 0)
		buf.Append(")")
	}
}

// appendEmpty renders [NOT] EXISTS over a subquery, or over a correlated
// subselect of the rows an inverse to-many path reaches.
func (p *pass) appendEmpty(sel *sql.Select, x *Empty, buf *sql.SQLBuffer) {
	exists := func() {
		if !x.Not {
			buf.Append("NOT ")
		}
		buf.Append("EXISTS ")
	}
	if sub, ok := x.V.(*SubQ); ok {
		exists()
		p.appendTo(sel, sub, buf, 0)
		return
	}
	if sub := p.collectionSubselect(x.V); sub != nil {
		exists()
		buf.AppendSubselect(sub)
	}
}

// collectionSubselect returns a subselect of the rows a to-many path
// reaches, correlated with the path's owner through the inverse foreign
// key.
func (p *pass) collectionSubselect(v Val) *sql.Select {
	path, ok := v.(*Path)
	st := p.state(v.ID())
	if !ok || st == nil || st.Field == nil || st.Field.Kind != mapping.ToMany {
		p.fail(invalid("%s is not a collection-valued path", v))
		return nil
	}
	f := st.Field
	if !f.Inverse || f.ForeignKey == nil {
		p.fail(unsupported(path.String(), "%s needs an inverse foreign key", f))
		return nil
	}
	owner := st.Joins.Select()
	sub := owner.NewSubselect(path.String())
	sj := sub.NewJoins()
	cond := sql.NewSQLBuffer(p.ctx.Dict)
	for i, c := range f.ForeignKey.Columns() {
		if i > 0 {
			cond.Append(" AND ")
		}
		cond.Append(sub.ColumnAlias(c, sj)).Append(" = ").
			Append(owner.ColumnAlias(f.ForeignKey.PrimaryKeyColumn(c), st.Joins))
	}
	sub.SelectPrimaryKey(f.Relation, sj)
	sub.Where(cond, sj)
	return sub
}
