package exps

import (
	"fmt"

	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/schema"
	"github.com/pierpaolospaziani/openjpa/internal/sql"
)

type bodyMode int

const (
	bodyTop bodyMode = iota
	bodySubquery
)

// SelectConstructor turns compiled query expressions into selects. A
// candidate whose hierarchy spans several tables gets one select per table,
// combined into a union.
type SelectConstructor struct {
	ctx *ExpContext
}

// NewSelectConstructor returns a constructor planning against ctx.
func NewSelectConstructor(ctx *ExpContext) *SelectConstructor {
	return &SelectConstructor{ctx: ctx}
}

// Member is one select of a plan and the mapping its rows belong to.
type Member struct {
	Select  *sql.Select
	Mapping *mapping.ClassMapping
	pass    *pass
}

// Plan is a query planned into executable selects.
type Plan struct {
	Query    *QueryExpressions
	Executor sql.SelectExecutor
	members  []*Member
}

// Members returns the selects of the plan, one per table of the candidate
// hierarchy.
func (p *Plan) Members() []*Member { return p.members }

// IsUnion reports whether the plan has several members.
func (p *Plan) IsUnion() bool { return len(p.members) > 1 }

// Evaluate plans q. Every parameter q uses must have a value in the
// context.
func (c *SelectConstructor) Evaluate(q *QueryExpressions) (*Plan, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	for _, key := range q.Params() {
		if _, ok := c.ctx.Params[key]; !ok {
			return nil, invalid("no value for parameter %q", key)
		}
	}
	nodes := 0
	if q.factory != nil {
		nodes = q.factory.Nodes()
	}
	groups := tableGroups(q.Candidate, q.Subclasses)
	var layout []slot
	if len(groups) > 1 && len(q.Projections) == 0 {
		layout = unionLayout(groups)
	}

	plan := &Plan{Query: q}
	sels := make([]*sql.Select, 0, len(groups))
	for _, gm := range groups {
		sel := sql.NewSelect(c.ctx.Dict)
		p := newPass(c.ctx, nodes)
		p.push(q.Alias, sel, gm)
		p.layout = layout
		p.union = len(groups) > 1
		p.buildBody(sel, q, gm, q.Subclasses, bodyTop)
		if len(groups) > 1 {
			sel.SelectExpr(sql.NewSQLBuffer(c.ctx.Dict).Append(c.ctx.Dict.StringLiteral(gm.Name)), ClassIndicator{}, nil)
		}
		if p.err != nil {
			return nil, p.err
		}
		plan.members = append(plan.members, &Member{Select: sel, Mapping: gm, pass: p})
		sels = append(sels, sel)
	}

	if len(sels) == 1 {
		sels[0].SetRange(q.Start, q.End)
		plan.Executor = sels[0]
	} else {
		u := sql.NewUnion(sels...)
		u.SetDistinct(q.Distinct)
		first := plan.members[0]
		for _, o := range q.Ordering {
			for _, id := range first.pass.orderIDs(o.Val) {
				pos := first.Select.IndexOf(id)
				if pos < 0 {
					return nil, invalid("ordering %s is not selected", o.Val)
				}
				u.OrderBy(pos+1, o.Asc)
			}
		}
		u.SetRange(q.Start, q.End)
		plan.Executor = u
	}
	c.ctx.logger().Debug("planned query",
		"candidate", q.Candidate.Name,
		"selects", len(sels),
		"projections", len(q.Projections))
	return plan, nil
}

// buildBody adds the filter, projections, grouping, having and ordering of
// q to sel, whose candidate rows are meta.
func (p *pass) buildBody(sel *sql.Select, q *QueryExpressions, meta *mapping.ClassMapping, subs bool, mode bodyMode) {
	// the candidate takes the first alias of its select
	sel.NewJoins().Alias(meta.Table)
	if q.Filter != nil {
		st := p.initExp(sel, q.Filter)
		buf := sql.NewSQLBuffer(p.ctx.Dict)
		p.appendExp(sel, q.Filter, buf)
		sel.Where(buf, st.Joins)
	}
	sel.WhereDiscriminator(meta, subs, nil)

	switch {
	case len(q.Projections) == 0 && mode == bodySubquery:
		sel.SelectPrimaryKey(meta, nil)
	case len(q.Projections) == 0 && p.layout != nil:
		p.selectLayout(sel, meta)
	case len(q.Projections) == 0:
		sel.SelectMapping(meta, subs, nil)
	}
	for _, v := range q.Projections {
		st := p.initialize(sel, v, flagProject)
		p.calculateValue(sel, v, nil)
		if mode == bodySubquery && st.Meta != nil {
			if _, ok := v.(*Path); ok {
				sel.SelectPrimaryKey(st.Meta, st.Joins)
				continue
			}
		}
		p.selectVal(sel, v, subs)
	}

	for _, g := range q.Grouping {
		if p.state(g.ID()) == nil {
			p.initialize(sel, g, flagProject)
			p.calculateValue(sel, g, nil)
		}
		p.groupBy(sel, g, subs)
	}
	if q.Having != nil {
		st := p.initExp(sel, q.Having)
		buf := sql.NewSQLBuffer(p.ctx.Dict)
		p.appendExp(sel, q.Having, buf)
		sel.Having(buf, st.Joins)
	}

	if mode == bodyTop {
		selectToo := q.Distinct || p.union
		for _, o := range q.Ordering {
			if p.state(o.Val.ID()) == nil {
				p.initialize(sel, o.Val, 0)
				p.calculateValue(sel, o.Val, nil)
			}
			p.orderBy(sel, o.Val, o.Asc, selectToo)
		}
	}

	if q.Distinct {
		sel.SetDistinct(true)
	} else if len(q.Grouping) == 0 && q.HasAggregate() {
		sel.SetDistinct(false)
	}
}

// tableGroups returns m followed by each subclass mapped to a table of its
// own. Subclasses sharing a table are covered by their table's select.
func tableGroups(m *mapping.ClassMapping, subs bool) []*mapping.ClassMapping {
	out := []*mapping.ClassMapping{m}
	if !subs {
		return out
	}
	var walk func(c *mapping.ClassMapping)
	walk = func(c *mapping.ClassMapping) {
		for _, sub := range c.Subclasses {
			if sub.Table != c.Table {
				out = append(out, sub)
			}
			walk(sub)
		}
	}
	walk(m)
	return out
}

// slot is one projected column of a polymorphic union: column index of a
// field, or the discriminator when field is empty.
type slot struct {
	field string
	index int
}

// unionLayout lists the non-key columns any member of groups selects, so
// every member projects them at the same positions.
func unionLayout(groups []*mapping.ClassMapping) []slot {
	var out []slot
	seen := make(map[slot]bool)
	add := func(s slot) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, gm := range groups {
		if gm.Discriminator != nil {
			add(slot{})
		}
		for _, f := range layoutFields(gm) {
			for i := range f.Columns {
				add(slot{field: f.Name, index: i})
			}
		}
	}
	return out
}

// layoutFields returns the column-backed fields of gm and its subclasses
// sharing its table, primary key columns excluded.
func layoutFields(gm *mapping.ClassMapping) []*mapping.FieldMapping {
	var out []*mapping.FieldMapping
	seen := make(map[string]bool)
	for _, cm := range gm.ConcreteMappings() {
		if cm.Table != gm.Table {
			continue
		}
		for _, f := range cm.AllFields() {
			if seen[f.Name] || f.Inverse || len(f.Columns) == 0 || isKey(gm, f) {
				continue
			}
			seen[f.Name] = true
			out = append(out, f)
		}
	}
	return out
}

func isKey(m *mapping.ClassMapping, f *mapping.FieldMapping) bool {
	for _, c := range f.Columns {
		for _, pk := range m.PrimaryKey {
			if c == pk {
				return true
			}
		}
	}
	return false
}

// selectLayout selects the identifier of meta followed by the union layout,
// with NULL for columns meta lacks.
func (p *pass) selectLayout(sel *sql.Select, meta *mapping.ClassMapping) {
	sel.SelectPrimaryKey(meta, nil)
	fields := make(map[string]*mapping.FieldMapping)
	for _, f := range layoutFields(meta) {
		fields[f.Name] = f
	}
	for _, s := range p.layout {
		var ok bool
		switch f := fields[s.field]; {
		case s.field == "" && meta.Discriminator != nil:
			ok = sel.Select(meta.Discriminator, nil)
		case f != nil && s.index < len(f.Columns):
			ok = sel.Select(f.Columns[s.index], nil)
		}
		if !ok {
			sel.SelectPlaceholder("NULL")
		}
	}
}

// Load reads the row at the cursor of res: the candidate object without
// projections, the single projected value, or a slice of projected values.
func (p *Plan) Load(res sql.Result) (any, error) {
	m, err := p.memberFor(res)
	if err != nil {
		return nil, err
	}
	if len(p.Query.Projections) == 0 {
		return LoadObject(res, m.Mapping, nil)
	}
	vals := make([]any, len(p.Query.Projections))
	for i, v := range p.Query.Projections {
		val, err := m.pass.load(res, v)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", v, err)
		}
		vals[i] = val
	}
	if len(vals) == 1 {
		return vals[0], nil
	}
	return vals, nil
}

// memberFor returns the member that produced the current row. Union rows
// name their member in the class indicator column; the result is pointed
// at that member's select so its ids resolve.
func (p *Plan) memberFor(res sql.Result) (*Member, error) {
	if len(p.members) == 1 {
		return p.members[0], nil
	}
	r, ok := res.(*sql.ResultSetResult)
	if !ok {
		return nil, fmt.Errorf("union rows need a select-backed result, got %T", res)
	}
	r.SetSelect(p.members[0].Select)
	v, err := r.GetObjectAs(ClassIndicator{}, schema.JavaString)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprint(v)
	for _, m := range p.members {
		if m.Mapping.Name == name {
			r.SetSelect(m.Select)
			return m, nil
		}
	}
	return nil, fmt.Errorf("row names unknown member %q", name)
}
