package exps

import (
	"fmt"

	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/sql"
)

// Order is one ORDER BY item.
type Order struct {
	Val Val
	Asc bool
}

// QueryExpressions is a compiled query: the candidate, its filter, and what
// to project, group and order by.
type QueryExpressions struct {
	Candidate *mapping.ClassMapping
	// Alias is the variable paths use for the candidate.
	Alias string
	// Subclasses includes instances of subclasses of the candidate.
	Subclasses bool

	Filter      Exp
	Projections []Val
	Grouping    []Val
	Having      Exp
	Ordering    []Order
	Distinct    bool

	// Start and End bound the rows to [Start, End). End is sql.NoLimit
	// when unbounded.
	Start, End int64

	// Fetch names relation fields of the candidate to load eagerly.
	Fetch []string

	factory *Factory
}

// Factory returns the factory that built the expressions.
func (q *QueryExpressions) Factory() *Factory { return q.factory }

// HasAggregate reports whether any projection or the having condition
// aggregates.
func (q *QueryExpressions) HasAggregate() bool {
	found := false
	visit := func(v Val) bool {
		if _, ok := v.(*Aggregate); ok {
			found = true
		}
		return !found
	}
	for _, p := range q.Projections {
		walkVal(p, visit)
	}
	if q.Having != nil {
		walkExp(q.Having, visit)
	}
	return found
}

// Params returns the keys of the parameters the query uses, subqueries
// included, in first-use order.
func (q *QueryExpressions) Params() []string {
	var keys []string
	seen := make(map[string]bool)
	q.walk(func(v Val) bool {
		if p, ok := v.(*Param); ok && !seen[p.Key] {
			seen[p.Key] = true
			keys = append(keys, p.Key)
		}
		return true
	})
	return keys
}

func (q *QueryExpressions) walk(fn func(Val) bool) {
	for _, v := range q.Projections {
		walkVal(v, fn)
	}
	for _, v := range q.Grouping {
		walkVal(v, fn)
	}
	for _, o := range q.Ordering {
		walkVal(o.Val, fn)
	}
	if q.Filter != nil {
		walkExp(q.Filter, fn)
	}
	if q.Having != nil {
		walkExp(q.Having, fn)
	}
}

// Validate checks that the query can be planned: a candidate is set,
// ungrouped projections do not mix aggregates with plain values, and the
// range is well formed.
func (q *QueryExpressions) Validate() error {
	if q.Candidate == nil {
		return invalid("query has no candidate")
	}
	if q.Start < 0 || (q.End != sql.NoLimit && q.End < q.Start) {
		return invalid("invalid range [%d, %d)", q.Start, q.End)
	}
	if len(q.Grouping) == 0 && len(q.Projections) > 1 {
		aggs := 0
		for _, p := range q.Projections {
			if _, ok := p.(*Aggregate); ok {
				aggs++
			}
		}
		if aggs > 0 && aggs < len(q.Projections) {
			return invalid("projections mix aggregates and values without GROUP BY")
		}
	}
	if q.Having != nil && len(q.Grouping) == 0 && !q.HasAggregate() {
		return invalid("HAVING without GROUP BY or aggregate")
	}
	for _, name := range q.Fetch {
		f := q.Candidate.Field(name)
		if f == nil {
			return &QueryError{Code: ErrCodeUnknownField, Message: fmt.Sprintf("%s has no field %q", q.Candidate, name)}
		}
		if !f.IsRelation() {
			return invalid("fetch field %s is not a relation", f)
		}
	}
	return nil
}

// walkVal visits v and its children depth first until fn returns false.
func walkVal(v Val, fn func(Val) bool) bool {
	if v == nil {
		return true
	}
	if !fn(v) {
		return false
	}
	switch x := v.(type) {
	case *UnaryOp:
		return walkVal(x.Arg, fn)
	case *MathOp:
		return walkVal(x.L, fn) && walkVal(x.R, fn)
	case *Aggregate:
		return walkVal(x.Arg, fn)
	case *NullIf:
		return walkVal(x.L, fn) && walkVal(x.R, fn)
	case *Coalesce:
		for _, c := range x.Vals {
			if !walkVal(c, fn) {
				return false
			}
		}
	case *Args:
		for _, c := range x.Vals {
			if !walkVal(c, fn) {
				return false
			}
		}
	case *Case:
		if !walkVal(x.Operand, fn) {
			return false
		}
		for _, w := range x.Whens {
			if w.Cond != nil && !walkExp(w.Cond, fn) {
				return false
			}
			if !walkVal(w.Value, fn) || !walkVal(w.Result, fn) {
				return false
			}
		}
		return walkVal(x.Else, fn)
	case *SubQ:
		if x.exps != nil {
			cont := true
			x.exps.walk(func(c Val) bool {
				cont = cont && fn(c)
				return cont
			})
			return cont
		}
	}
	return true
}

func walkExp(e Exp, fn func(Val) bool) bool {
	switch x := e.(type) {
	case *Compare:
		return walkVal(x.L, fn) && walkVal(x.R, fn)
	case *And:
		return walkExp(x.L, fn) && walkExp(x.R, fn)
	case *Or:
		return walkExp(x.L, fn) && walkExp(x.R, fn)
	case *Not:
		return walkExp(x.E, fn)
	case *IsNull:
		return walkVal(x.V, fn)
	case *In:
		return walkVal(x.V, fn) && walkVal(x.List, fn)
	case *Empty:
		return walkVal(x.V, fn)
	case *Like:
		return walkVal(x.V, fn) && walkVal(x.Pattern, fn)
	}
	return true
}
