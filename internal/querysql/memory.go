package querysql

import (
	"fmt"
	"sort"

	"github.com/pierpaolospaziani/openjpa/internal/exps"
)

// EvaluateInMemory runs q over candidates already loaded, without SQL.
// Candidates that are not instances of the query's candidate (or, with
// Subclasses, of one of its subclasses) are skipped.
//
// Filtering, grouping, having, projection, ordering, distinct and range
// follow the SQL semantics: nulls sort first ascending and aggregates skip
// nulls. Constructs with no in-memory form, such as subqueries and INDEX,
// return an Unsupported error.
func EvaluateInMemory(q *exps.QueryExpressions, candidates []*exps.Object, params map[string]any) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	base := &exps.Env{Alias: q.Alias, Params: params}

	var matched []*exps.Object
	for _, c := range candidates {
		if c == nil || !instanceOf(q, c) {
			continue
		}
		if q.Filter != nil {
			ok, err := exps.Match(q.Filter, withCandidate(base, c, nil))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		matched = append(matched, c)
	}

	envs, err := groups(q, base, matched)
	if err != nil {
		return nil, err
	}

	rows := make([]memRow, 0, len(envs))
	for _, env := range envs {
		v, err := project(q, env)
		if err != nil {
			return nil, err
		}
		rows = append(rows, memRow{env: env, value: v})
	}

	if len(q.Ordering) > 0 {
		if err := order(q, rows); err != nil {
			return nil, err
		}
	}
	if q.Distinct {
		rows = distinct(rows)
	}

	out := &Result{Columns: Columns(q)}
	for i, r := range rows {
		if int64(i) < q.Start {
			continue
		}
		if int64(i) >= q.End {
			break
		}
		out.Rows = append(out.Rows, r.value)
	}
	return out, nil
}

type memRow struct {
	env   *exps.Env
	value any
	keys  []any
}

func instanceOf(q *exps.QueryExpressions, c *exps.Object) bool {
	if c.Mapping == q.Candidate {
		return true
	}
	return q.Subclasses && q.Candidate.IsAssignableFrom(c.Mapping)
}

func withCandidate(base *exps.Env, c any, group []any) *exps.Env {
	env := *base
	env.Candidate = c
	env.Group = group
	return &env
}

// groups returns one environment per output row. Grouped queries get one
// per group whose having condition matches; ungrouped aggregate queries
// get a single one over every match.
func groups(q *exps.QueryExpressions, base *exps.Env, matched []*exps.Object) ([]*exps.Env, error) {
	switch {
	case len(q.Grouping) > 0:
		var keys [][]any
		var members [][]any
		for _, c := range matched {
			env := withCandidate(base, c, nil)
			key := make([]any, len(q.Grouping))
			for i, g := range q.Grouping {
				v, err := exps.Eval(g, env)
				if err != nil {
					return nil, err
				}
				key[i] = v
			}
			idx := -1
			for i, k := range keys {
				if sameValues(k, key) {
					idx = i
					break
				}
			}
			if idx < 0 {
				keys = append(keys, key)
				members = append(members, nil)
				idx = len(keys) - 1
			}
			members[idx] = append(members[idx], c)
		}
		var out []*exps.Env
		for _, group := range members {
			env := withCandidate(base, group[0], group)
			if q.Having != nil {
				ok, err := exps.Match(q.Having, env)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}
			out = append(out, env)
		}
		return out, nil
	case q.HasAggregate():
		group := make([]any, len(matched))
		for i, c := range matched {
			group[i] = c
		}
		var first any
		if len(matched) > 0 {
			first = matched[0]
		}
		env := withCandidate(base, first, group)
		if q.Having != nil {
			ok, err := exps.Match(q.Having, env)
			if err != nil || !ok {
				return nil, err
			}
		}
		return []*exps.Env{env}, nil
	}
	out := make([]*exps.Env, len(matched))
	for i, c := range matched {
		out[i] = withCandidate(base, c, nil)
	}
	return out, nil
}

func project(q *exps.QueryExpressions, env *exps.Env) (any, error) {
	if len(q.Projections) == 0 {
		return env.Candidate, nil
	}
	vals := make([]any, len(q.Projections))
	for i, p := range q.Projections {
		v, err := exps.Eval(p, env)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", p, err)
		}
		vals[i] = v
	}
	if len(vals) == 1 {
		return vals[0], nil
	}
	return vals, nil
}

// order sorts rows stably by the ordering values. Values that cannot be
// compared keep their relative order.
func order(q *exps.QueryExpressions, rows []memRow) error {
	for i := range rows {
		rows[i].keys = make([]any, len(q.Ordering))
		for j, o := range q.Ordering {
			v, err := exps.Eval(o.Val, rows[i].env)
			if err != nil {
				return fmt.Errorf("order by %s: %w", o.Val, err)
			}
			rows[i].keys[j] = v
		}
	}
	sort.SliceStable(rows, func(a, b int) bool {
		for j, o := range q.Ordering {
			c := compareNullsFirst(rows[a].keys[j], rows[b].keys[j])
			if c == 0 {
				continue
			}
			if !o.Asc {
				c = -c
			}
			return c < 0
		}
		return false
	})
	return nil
}

func compareNullsFirst(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	c, err := exps.CompareValues(a, b)
	if err != nil {
		return 0
	}
	return c
}

func distinct(rows []memRow) []memRow {
	var out []memRow
	for _, r := range rows {
		dup := false
		for _, o := range out {
			if sameValue(o.value, r.value) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, r)
		}
	}
	return out
}

func sameValue(a, b any) bool {
	av, aok := a.([]any)
	bv, bok := b.([]any)
	if aok && bok {
		return sameValues(av, bv)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return exps.Equal(a, b)
}

func sameValues(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameValue(a[i], b[i]) {
			return false
		}
	}
	return true
}
