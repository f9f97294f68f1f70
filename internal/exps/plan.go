package exps

import (
	"fmt"
	"reflect"

	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/schema"
	"github.com/pierpaolospaziani/openjpa/internal/sql"
)

// Initialization flags.
const (
	// flagProject marks a selected value: entity-valued paths join their
	// target so its columns can be loaded.
	flagProject = 1 << iota
	// flagEmpty marks a to-many path tested for emptiness: its last
	// relation is not joined.
	flagEmpty
)

// initialize allocates the state of v and its children, combining their
// joins.
func (p *pass) initialize(sel *sql.Select, v Val, flags int) *ExpState {
	switch x := v.(type) {
	case *Lit, *Param, *TypeLit:
		return p.setState(v.ID(), &ExpState{})
	case *Path:
		return p.setState(v.ID(), p.initPath(sel, x, flags))
	case *UnaryOp:
		argFlags := 0
		switch x.Op {
		case OpType:
			argFlags = flagProject
		case OpSize:
			argFlags = flagEmpty
		}
		s := p.initialize(sel, x.Arg, argFlags)
		return p.setState(v.ID(), &ExpState{Joins: s.Joins})
	case *MathOp:
		s1, s2 := p.initialize(sel, x.L, 0), p.initialize(sel, x.R, 0)
		return p.setState(v.ID(), &ExpState{Joins: p.and(sel, s1.Joins, s2.Joins)})
	case *NullIf:
		s1, s2 := p.initialize(sel, x.L, 0), p.initialize(sel, x.R, 0)
		return p.setState(v.ID(), &ExpState{Joins: p.and(sel, s1.Joins, s2.Joins)})
	case *Aggregate:
		s := p.initialize(sel, x.Arg, 0)
		return p.setState(v.ID(), &ExpState{Joins: s.Joins})
	case *Coalesce:
		return p.setState(v.ID(), &ExpState{Joins: p.initAll(sel, x.Vals)})
	case *Args:
		return p.setState(v.ID(), &ExpState{Joins: p.initAll(sel, x.Vals)})
	case *Case:
		var joins *sql.Joins
		if x.Operand != nil {
			joins = p.initialize(sel, x.Operand, 0).Joins
		}
		for _, w := range x.Whens {
			if w.Cond != nil {
				joins = p.and(sel, joins, p.initExp(sel, w.Cond).Joins)
			} else {
				joins = p.and(sel, joins, p.initialize(sel, w.Value, 0).Joins)
			}
			joins = p.and(sel, joins, p.initialize(sel, w.Result, 0).Joins)
		}
		if x.Else != nil {
			joins = p.and(sel, joins, p.initialize(sel, x.Else, 0).Joins)
		}
		return p.setState(v.ID(), &ExpState{Joins: joins})
	case *SubQ:
		return p.setState(v.ID(), &ExpState{Sub: p.subselect(sel, x)})
	}
	p.fail(invalid("unknown value %T", v))
	return p.setState(v.ID(), &ExpState{})
}

func (p *pass) initAll(sel *sql.Select, vals []Val) *sql.Joins {
	var joins *sql.Joins
	for _, v := range vals {
		joins = p.and(sel, joins, p.initialize(sel, v, 0).Joins)
	}
	return joins
}

// initPath resolves a path against the mapping its variable is bound to in
// this select and joins the relations it traverses. A to-one relation at
// the end of the path is compared through its foreign key columns without
// a join, unless its target is selected.
func (p *pass) initPath(sel *sql.Select, x *Path, flags int) *ExpState {
	sc, ok := p.lookup(x.Var)
	if !ok {
		p.fail(invalid("variable %q is not in scope", x.Var))
		return &ExpState{}
	}
	joins := sc.sel.NewJoins()
	if x.outer {
		joins = joins.Outer()
	}
	st := &ExpState{Joins: joins, Meta: sc.meta, Cols: sc.meta.PrimaryKey}
	cur := sc.meta
	for i, name := range x.Names {
		f := cur.Field(name)
		if f == nil {
			p.fail(&QueryError{Code: ErrCodeUnknownField, Message: fmt.Sprintf("%s has no field %q", cur, name), Expr: x.String()})
			return st
		}
		st.Field = f
		if !f.IsRelation() {
			st.Meta, st.Cols = nil, f.Columns
			break
		}
		last := i == len(x.Names)-1
		join := !last || f.Inverse || f.Kind == mapping.ToMany || flags&flagProject != 0
		if last && flags&flagEmpty != 0 {
			join = false
		}
		if !join {
			st.Meta, st.Cols = f.Relation, f.Columns
			break
		}
		joins.Join(name, f.ForeignKey, f.Inverse, f.Kind == mapping.ToMany)
		cur = f.Relation
		st.Meta, st.Cols = cur, cur.PrimaryKey
	}
	return st
}

// subselect builds the select of a subquery under sel.
func (p *pass) subselect(sel *sql.Select, x *SubQ) *sql.Select {
	q := x.exps
	sub := sel.NewSubselect(x.CandidateAlias)
	if q == nil {
		p.fail(invalid("subquery %s has no body", x))
		return sub
	}
	p.push(q.Alias, sub, x.Candidate)
	defer p.pop()
	p.buildBody(sub, q, x.Candidate, x.Subs, bodySubquery)
	return sub
}

// calculateValue resolves the data store value of constants, which may
// depend on the sibling other they are compared with. It runs after
// initialize and before any rendering.
func (p *pass) calculateValue(sel *sql.Select, v Val, other Val) {
	switch x := v.(type) {
	case *Lit:
		p.calcConstant(x, x.Value(), other)
	case *Param:
		val, ok := p.ctx.Params[x.Key]
		if !ok {
			p.fail(invalid("no value for parameter %q", x.Key))
			return
		}
		p.calcConstant(x, convertParam(val, x.Type()), other)
	case *TypeLit:
		st := p.state(x.ID())
		st.Value = x.Value()
		if m := x.Meta(); m != nil {
			if m.Discriminator != nil {
				st.Value = m.DiscriminatorValue
				st.OtherCols = []*schema.Column{m.Discriminator}
			} else {
				st.Value = sql.Raw(p.ctx.Dict.StringLiteral(m.Name))
			}
		}
	case *MathOp:
		p.calculateValue(sel, x.L, x.R)
		p.calculateValue(sel, x.R, x.L)
	case *NullIf:
		p.calculateValue(sel, x.L, x.R)
		p.calculateValue(sel, x.R, x.L)
	case *UnaryOp:
		p.calculateValue(sel, x.Arg, nil)
	case *Aggregate:
		p.calculateValue(sel, x.Arg, nil)
	case *Coalesce:
		for _, c := range x.Vals {
			p.calculateValue(sel, c, other)
		}
	case *Args:
		for _, c := range x.Vals {
			p.calculateValue(sel, c, other)
		}
	case *Case:
		if x.Operand != nil {
			p.calculateValue(sel, x.Operand, nil)
		}
		for _, w := range x.Whens {
			if w.Value != nil {
				p.calculateValue(sel, w.Value, x.Operand)
			}
			p.calculateValue(sel, w.Result, other)
		}
		if x.Else != nil {
			p.calculateValue(sel, x.Else, other)
		}
	}
}

// calcConstant stores the value of a literal or parameter. Compared with a
// multi-column sibling the value is split into one element per column.
func (p *pass) calcConstant(v Val, value any, other Val) {
	st := p.state(v.ID())
	if other != nil {
		if os := p.state(other.ID()); os != nil {
			st.OtherCols = os.Cols
			st.OtherLength = len(os.Cols)
		}
	}
	if obj, ok := value.(*Object); ok {
		if st.OtherLength > 1 {
			st.Value = obj.ID
			return
		}
		if len(obj.ID) > 0 {
			value = obj.ID[0]
		}
	}
	if st.OtherLength > 1 {
		vals, ok := value.([]any)
		if !ok || len(vals) != st.OtherLength {
			p.fail(invalid("%s needs %d values to compare with %s", v, st.OtherLength, other))
			st.OtherLength = 1
		}
	}
	st.Value = value
}

// convertParam converts a parameter value, or each element of a slice, to
// the type the parameter was narrowed to. Unconvertible values are kept.
func convertParam(val any, t schema.JavaType) any {
	if vals, ok := asSlice(val); ok {
		out := make([]any, len(vals))
		for i, v := range vals {
			out[i] = convertParam(v, t)
		}
		return out
	}
	switch t {
	case schema.JavaObject, schema.JavaDefault, schema.JavaEntity, schema.JavaCollection, schema.JavaArray:
		return val
	}
	if _, ok := val.(*Object); ok {
		return val
	}
	if c, err := Convert(val, t); err == nil {
		return c
	}
	return val
}

// asSlice returns the elements of a slice-valued parameter. Byte slices
// are single values.
func asSlice(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []byte, nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// length returns how many columns v renders.
func (p *pass) length(v Val) int {
	switch x := v.(type) {
	case *Path:
		if st := p.state(x.ID()); st != nil && len(st.Cols) > 0 {
			return len(st.Cols)
		}
	case *Args:
		return len(x.Vals)
	}
	return 1
}

// appendTo renders column index of v into buf.
func (p *pass) appendTo(sel *sql.Select, v Val, buf *sql.SQLBuffer, index int) {
	st := p.state(v.ID())
	if st == nil {
		p.fail(invalid("%s rendered before it was initialized", v))
		return
	}
	switch x := v.(type) {
	case *Lit:
		if st.OtherLength > 1 {
			buf.AppendValue(st.Value.([]any)[index], st.col(index))
			return
		}
		value := st.Value
		if x.IsRaw() {
			if raw, ok := x.rawSQL(p.ctx.Dict, value); ok {
				value = raw
			}
		}
		p.appendConstant(buf, value, st.col(index))
	case *Param:
		if st.OtherLength > 1 {
			buf.AppendValue(st.Value.([]any)[index], st.col(index))
			return
		}
		p.appendConstant(buf, st.Value, st.col(index))
	case *TypeLit:
		p.appendConstant(buf, st.Value, st.col(0))
	case *Path:
		if index >= len(st.Cols) {
			p.fail(invalid("%s has no column %d", x, index))
			return
		}
		buf.Append(sel.ColumnAlias(st.Cols[index], st.Joins))
	case *UnaryOp:
		switch x.Op {
		case OpNegate:
			buf.Append("-")
			p.appendTo(sel, x.Arg, buf, index)
		case OpType:
			p.appendType(sel, x.Arg, buf)
		case OpIndex:
			p.fail(unsupported(x.String(), "INDEX needs an ordered collection"))
		case OpSize:
			if sub, ok := x.Arg.(*SubQ); ok {
				buf.AppendCount(p.state(sub.ID()).Sub)
				return
			}
			if sub := p.collectionSubselect(x.Arg); sub != nil {
				buf.AppendCount(sub)
			}
		default:
			buf.Append(string(x.Op)).Append("(")
			p.appendTo(sel, x.Arg, buf, index)
			buf.Append(")")
		}
	case *MathOp:
		op := string(x.Op)
		if x.Op == OpMod {
			op = "%"
		}
		buf.Append("(")
		p.appendTo(sel, x.L, buf, 0)
		buf.Append(" " + op + " ")
		p.appendTo(sel, x.R, buf, 0)
		buf.Append(")")
	case *Aggregate:
		if x.Fn == AggCount && !x.Distinct && p.length(x.Arg) > 1 {
			buf.Append("COUNT(*)")
			return
		}
		buf.Append(string(x.Fn)).Append("(")
		if x.Distinct {
			buf.Append("DISTINCT ")
		}
		p.appendTo(sel, x.Arg, buf, 0)
		buf.Append(")")
	case *NullIf:
		buf.Append(" NULLIF(")
		p.appendTo(sel, x.L, buf, 0)
		buf.Append(",")
		p.appendTo(sel, x.R, buf, 0)
		buf.Append(")")
	case *Coalesce:
		buf.Append(" COALESCE(")
		for i, c := range x.Vals {
			if i > 0 {
				buf.Append(",")
			}
			p.appendTo(sel, c, buf, 0)
		}
		buf.Append(")")
	case *Case:
		buf.Append("CASE")
		if x.Operand != nil {
			buf.Append(" ")
			p.appendTo(sel, x.Operand, buf, 0)
		}
		for _, w := range x.Whens {
			buf.Append(" WHEN ")
			if w.Cond != nil {
				p.appendExp(sel, w.Cond, buf)
			} else {
				p.appendTo(sel, w.Value, buf, 0)
			}
			buf.Append(" THEN ")
			p.appendTo(sel, w.Result, buf, 0)
		}
		if x.Else != nil {
			buf.Append(" ELSE ")
			p.appendTo(sel, x.Else, buf, 0)
		}
		buf.Append(" END")
	case *Args:
		for i, c := range x.Vals {
			if i > 0 {
				buf.Append(", ")
			}
			p.appendTo(sel, c, buf, 0)
		}
	case *SubQ:
		buf.AppendSubselect(st.Sub)
	}
}

// appendConstant renders a value as a bind parameter, or inline when the
// fetch configuration asks for literals.
func (p *pass) appendConstant(buf *sql.SQLBuffer, value any, col *schema.Column) {
	if p.ctx.useLiteral() {
		buf.AppendLiteral(value, col)
		return
	}
	buf.AppendValue(value, col)
}

// appendType renders TYPE(arg): the discriminator column, or the entity
// name as a string literal for mappings without one.
func (p *pass) appendType(sel *sql.Select, arg Val, buf *sql.SQLBuffer) {
	st := p.state(arg.ID())
	if st == nil || st.Meta == nil {
		p.fail(invalid("TYPE needs an entity-valued argument, got %s", arg))
		return
	}
	if st.Meta.Discriminator != nil {
		buf.Append(sel.ColumnAlias(st.Meta.Discriminator, st.Joins))
		return
	}
	buf.Append(p.ctx.Dict.StringLiteral(st.Meta.Name))
}

// selectVal adds v to the projection of sel.
func (p *pass) selectVal(sel *sql.Select, v Val, subs bool) {
	st := p.state(v.ID())
	if path, ok := v.(*Path); ok {
		if st.Meta != nil {
			sel.SelectMapping(st.Meta, subs || !path.IsVariable(), st.Joins)
			return
		}
		sel.SelectColumns(st.Cols, st.Joins)
		return
	}
	buf := sql.NewSQLBuffer(p.ctx.Dict)
	p.appendTo(sel, v, buf, 0)
	sel.SelectExpr(buf, v, st.Joins)
}

func (p *pass) groupBy(sel *sql.Select, v Val, subs bool) {
	st := p.state(v.ID())
	if _, ok := v.(*Path); ok {
		if st.Meta != nil && sameColumns(st.Cols, st.Meta.PrimaryKey) {
			sel.GroupByMapping(st.Meta, subs, st.Joins)
			return
		}
		for _, c := range st.Cols {
			sel.GroupByColumn(c, st.Joins)
		}
		return
	}
	buf := sql.NewSQLBuffer(p.ctx.Dict)
	p.appendTo(sel, v, buf, 0)
	sel.GroupBy(buf, st.Joins)
}

func (p *pass) orderBy(sel *sql.Select, v Val, asc, selectToo bool) {
	st := p.state(v.ID())
	if _, ok := v.(*Path); ok {
		for _, c := range st.Cols {
			sel.OrderByColumn(c, asc, selectToo, st.Joins)
		}
		return
	}
	buf := sql.NewSQLBuffer(p.ctx.Dict)
	p.appendTo(sel, v, buf, 0)
	sel.OrderBy(buf, asc, selectToo, v, st.Joins)
}

func sameColumns(a, b []*schema.Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// orderIDs returns the result ids an ordering item was selected under.
func (p *pass) orderIDs(v Val) []any {
	st := p.state(v.ID())
	if _, ok := v.(*Path); ok {
		ids := make([]any, len(st.Cols))
		for i, c := range st.Cols {
			ids[i] = sql.At(c, st.Joins)
		}
		return ids
	}
	return []any{v}
}

// load reads the value of projection v from the current row of res.
func (p *pass) load(res sql.Result, v Val) (any, error) {
	st := p.state(v.ID())
	if path, ok := v.(*Path); ok {
		if st.Meta != nil {
			return LoadObject(res, st.Meta, st.Joins)
		}
		if len(st.Cols) == 1 {
			return res.GetObjectAs(sql.At(st.Cols[0], st.Joins), path.Type())
		}
		vals := make([]any, len(st.Cols))
		for i, c := range st.Cols {
			val, err := res.GetObjectAs(sql.At(c, st.Joins), c.JavaType())
			if err != nil {
				return nil, err
			}
			vals[i] = val
		}
		return vals, nil
	}
	t := v.Type()
	if !t.IsNumeric() && !t.IsTemporal() && !isText(t) && t != schema.JavaBoolean {
		t = schema.JavaObject
	}
	return res.GetObjectAs(v, t)
}
