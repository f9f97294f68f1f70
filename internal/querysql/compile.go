package querysql

import (
	"fmt"

	"github.com/pierpaolospaziani/openjpa/internal/exps"
	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/schema"
	"github.com/pierpaolospaziani/openjpa/internal/sql"
)

// Statement is a query planned for execution: the selects of its plan plus
// the eager loads riding along with them.
//
// CRITICAL: eager loads never issue per-row follow-up statements. To-one
// fields join into the owner statement; to-many fields either join (rows
// multiply and are folded back by owner) or run as one parallel statement
// grouped by owner key.
type Statement struct {
	Plan  *exps.Plan
	Eager []*EagerLoad
}

// EagerLoad is one relation field loaded together with its owners.
type EagerLoad struct {
	Field *mapping.FieldMapping
	Mode  sql.EagerMode

	// Joins locates the related columns: in the owner select for join
	// modes, in Select for the parallel mode.
	Joins *sql.Joins
	// Select is the parallel statement; nil for join modes.
	Select *sql.Select
}

// Compile plans q with params. Unless eager is false, relation fields named
// by q.Fetch or marked eager in the mappings are scheduled for loading.
func (e *Executor) Compile(q *exps.QueryExpressions, params map[string]any, eager bool) (*Statement, error) {
	ctx := &exps.ExpContext{
		Dict:   e.store.Dictionary(),
		Fetch:  e.fetch,
		Params: params,
		Logger: e.logger,
	}
	plan, err := exps.NewSelectConstructor(ctx).Evaluate(q)
	if err != nil {
		return nil, err
	}
	st := &Statement{Plan: plan}
	if !eager || len(q.Projections) > 0 {
		return st, nil
	}
	fields := eagerFields(q)
	if len(fields) == 0 {
		return st, nil
	}
	if plan.IsUnion() {
		// union members must keep identical projections
		e.logger.Debug("eager loading skipped for union plan",
			"candidate", q.Candidate.Name,
			"fields", len(fields))
		return st, nil
	}
	sel := plan.Members()[0].Select

	// parallel clones first, so they copy none of the eager joins
	var joined []*mapping.FieldMapping
	for _, f := range fields {
		mode := eagerMode(f, e.fetch.EagerMode)
		switch mode {
		case sql.EagerNone:
			continue
		case sql.EagerParallel:
			st.Eager = append(st.Eager, parallel(sel, q.Candidate, f))
		default:
			joined = append(joined, f)
		}
	}
	for _, f := range joined {
		mode := eagerMode(f, e.fetch.EagerMode)
		sel.EagerClone(f.Name, mode, f.Kind == mapping.ToMany)
		joins := sel.NewJoins()
		if mode == sql.EagerOuter {
			joins = joins.Outer()
		}
		joins.Join(f.Name, f.ForeignKey, f.Inverse, f.Kind == mapping.ToMany)
		sel.SelectMapping(f.Relation, true, joins)
		st.Eager = append(st.Eager, &EagerLoad{Field: f, Mode: mode, Joins: joins})
	}
	return st, nil
}

// parallel builds the sibling select loading f for every owner sel
// matches. It selects the owner key ahead of the related object.
func parallel(sel *sql.Select, owner *mapping.ClassMapping, f *mapping.FieldMapping) *EagerLoad {
	clone := sel.EagerClone(f.Name, sql.EagerParallel, f.Kind == mapping.ToMany)
	joins := clone.NewJoins()
	joins.Join(f.Name, f.ForeignKey, f.Inverse, f.Kind == mapping.ToMany)
	clone.SelectPrimaryKey(owner, nil)
	clone.SelectMapping(f.Relation, true, joins)
	clone.OrderByPrimaryKey(owner, true, false, nil)
	clone.OrderByPrimaryKey(f.Relation, true, false, joins)
	return &EagerLoad{Field: f, Mode: sql.EagerParallel, Joins: joins, Select: clone}
}

// eagerFields returns the fields q fetches explicitly, then the fields the
// candidate mapping marks eager.
func eagerFields(q *exps.QueryExpressions) []*mapping.FieldMapping {
	var out []*mapping.FieldMapping
	seen := make(map[string]bool)
	add := func(f *mapping.FieldMapping) {
		if f == nil || !f.IsRelation() || seen[f.Name] {
			return
		}
		seen[f.Name] = true
		out = append(out, f)
	}
	for _, name := range q.Fetch {
		add(q.Candidate.Field(name))
	}
	for _, f := range q.Candidate.AllFields() {
		if f.Eager != mapping.EagerNone {
			add(f)
		}
	}
	return out
}

// eagerMode picks the strategy for f under the configured cap. To-one
// fields always join, inner only when the cap asks for it and the foreign
// key cannot be null. To-many fields run in parallel unless the mapping or
// the cap asks for a join, which is always outer so owners without
// related rows survive.
func eagerMode(f *mapping.FieldMapping, limit sql.EagerMode) sql.EagerMode {
	if limit == sql.EagerNone {
		return sql.EagerNone
	}
	if f.Kind == mapping.ToOne {
		if limit == sql.EagerInner && !f.Inverse && notNull(f.Columns) {
			return sql.EagerInner
		}
		return sql.EagerOuter
	}
	if limit == sql.EagerParallel && f.Eager != mapping.EagerJoin {
		return sql.EagerParallel
	}
	return sql.EagerOuter
}

func notNull(cols []*schema.Column) bool {
	for _, c := range cols {
		if !c.NotNull() {
			return false
		}
	}
	return len(cols) > 0
}

// Explanation describes the statements a query runs without running them.
// Count is the statement Executor.Count runs, which never carries eager
// joins.
type Explanation struct {
	SQL     string
	Params  []any
	Count   string
	Members []string
	Eager   []EagerExplanation
}

// EagerExplanation describes one eager load. SQL is empty for loads that
// join into the owner statement.
type EagerExplanation struct {
	Field  string `json:"field"`
	Mode   string `json:"mode"`
	SQL    string `json:"sql,omitempty"`
	Params []any  `json:"params,omitempty"`
}

// Explain renders the statements of st.
func (st *Statement) Explain() *Explanation {
	buf := st.Plan.Executor.ToSelect(false)
	out := &Explanation{
		SQL:    buf.SQL(),
		Params: buf.Params(),
	}
	for _, m := range st.Plan.Members() {
		out.Members = append(out.Members, m.Mapping.Name)
	}
	for _, el := range st.Eager {
		ex := EagerExplanation{Field: el.Field.String(), Mode: el.Mode.String()}
		if el.Select != nil {
			eb := el.Select.ToSelect(false)
			ex.SQL, ex.Params = eb.SQL(), eb.Params()
		}
		out.Eager = append(out.Eager, ex)
	}
	return out
}

func (x *Explanation) String() string {
	s := x.SQL
	for _, ex := range x.Eager {
		if ex.SQL == "" {
			s += fmt.Sprintf("\n-- %s: %s join", ex.Field, ex.Mode)
			continue
		}
		s += fmt.Sprintf("\n-- %s: %s\n%s", ex.Field, ex.Mode, ex.SQL)
	}
	return s
}
