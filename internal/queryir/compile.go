package queryir

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pierpaolospaziani/openjpa/internal/exps"
	"github.com/pierpaolospaziani/openjpa/internal/mapping"
)

var (
	unaryOps = map[string]exps.UnaryOperator{
		"abs":    exps.OpAbs,
		"sqrt":   exps.OpSqrt,
		"negate": exps.OpNegate,
		"upper":  exps.OpUpper,
		"lower":  exps.OpLower,
		"trim":   exps.OpTrim,
		"length": exps.OpLength,
		"type":   exps.OpType,
		"size":   exps.OpSize,
		"index":  exps.OpIndex,
	}
	aggregates = map[string]exps.AggregateFunc{
		"sum":   exps.AggSum,
		"avg":   exps.AggAvg,
		"count": exps.AggCount,
		"min":   exps.AggMin,
		"max":   exps.AggMax,
	}
	mathOps = map[string]exps.MathOperator{
		"+":   exps.OpAdd,
		"-":   exps.OpSubtract,
		"*":   exps.OpMultiply,
		"/":   exps.OpDivide,
		"mod": exps.OpMod,
		"||":  exps.OpConcat,
	}
	compareOps = map[string]exps.CompareOp{
		"eq": exps.OpEQ,
		"ne": exps.OpNE,
		"lt": exps.OpLT,
		"le": exps.OpLE,
		"gt": exps.OpGT,
		"ge": exps.OpGE,
	}
)

// Compile builds the query expressions doc describes, resolving entities
// and paths against repo. Path errors keep their exps error code.
func Compile(doc *Document, repo *mapping.Repository) (*exps.QueryExpressions, error) {
	c := &compiler{repo: repo, f: exps.NewFactory()}
	m, alias, err := c.candidate(doc)
	if err != nil {
		return nil, err
	}
	q := c.f.Query(m, alias)
	q.Subclasses = doc.Subclasses == nil || *doc.Subclasses
	if err := c.body(q, doc); err != nil {
		return nil, err
	}
	return q, nil
}

type compiler struct {
	repo *mapping.Repository
	f    *exps.Factory
}

func (c *compiler) candidate(doc *Document) (*mapping.ClassMapping, string, error) {
	m, ok := c.repo.Mapping(doc.From)
	if !ok {
		return nil, "", fmt.Errorf("unknown entity %q", doc.From)
	}
	alias := doc.Alias
	if alias == "" {
		alias = strings.ToLower(doc.From[:1])
	}
	return m, alias, nil
}

func (c *compiler) body(q *exps.QueryExpressions, doc *Document) error {
	q.Distinct = doc.Distinct
	for i := range doc.Select {
		v, err := c.value(&doc.Select[i])
		if err != nil {
			return fmt.Errorf("select %d: %w", i, err)
		}
		q.Projections = append(q.Projections, v)
	}
	if doc.Filter != nil {
		e, err := c.cond(doc.Filter)
		if err != nil {
			return fmt.Errorf("filter: %w", err)
		}
		q.Filter = e
	}
	for i := range doc.GroupBy {
		v, err := c.value(&doc.GroupBy[i])
		if err != nil {
			return fmt.Errorf("group_by %d: %w", i, err)
		}
		q.Grouping = append(q.Grouping, v)
	}
	if doc.Having != nil {
		e, err := c.cond(doc.Having)
		if err != nil {
			return fmt.Errorf("having: %w", err)
		}
		q.Having = e
	}
	for i := range doc.Order {
		v, err := c.value(&doc.Order[i].By)
		if err != nil {
			return fmt.Errorf("order %d: %w", i, err)
		}
		q.Ordering = append(q.Ordering, exps.Order{Val: v, Asc: !doc.Order[i].Desc})
	}
	q.Fetch = doc.Fetch
	if r := doc.Range; r != nil {
		q.Start = r.Start
		if r.End > 0 {
			q.End = r.End
		}
	}
	return nil
}

func (c *compiler) subquery(doc *Document) (*exps.SubQ, error) {
	m, alias, err := c.candidate(doc)
	if err != nil {
		return nil, err
	}
	sub, q := c.f.Subquery(m, doc.Subclasses == nil || *doc.Subclasses, alias)
	if err := c.body(q, doc); err != nil {
		return nil, fmt.Errorf("subquery %s: %w", doc.From, err)
	}
	return sub, nil
}

func (c *compiler) value(v *Value) (exps.Val, error) {
	switch v.form() {
	case "path":
		parts := strings.Split(v.Path, ".")
		p, err := c.f.Path(parts[0], parts[1:]...)
		if err != nil {
			return nil, err
		}
		if v.Outer {
			p.Outer()
		}
		return p, nil
	case "lit":
		return c.literal(v)
	case "null":
		return c.f.Null(), nil
	case "param":
		return c.f.Param(v.Param), nil
	case "type":
		m, ok := c.repo.Mapping(v.Type)
		if !ok {
			return nil, fmt.Errorf("unknown entity type %q", v.Type)
		}
		return c.f.TypeLit(m), nil
	case "fn":
		op, ok := unaryOps[v.Fn]
		if !ok {
			return nil, fmt.Errorf("unknown function %q", v.Fn)
		}
		arg, err := c.operand(v.Of, v.Fn)
		if err != nil {
			return nil, err
		}
		return c.f.Unary(op, arg), nil
	case "agg":
		fn, ok := aggregates[v.Agg]
		if !ok {
			return nil, fmt.Errorf("unknown aggregate %q", v.Agg)
		}
		arg, err := c.operand(v.Of, v.Agg)
		if err != nil {
			return nil, err
		}
		return c.f.Aggregate(fn, arg, v.Distinct), nil
	case "op":
		op, ok := mathOps[v.Op]
		if !ok {
			return nil, fmt.Errorf("unknown operator %q", v.Op)
		}
		args, err := c.values(v.Args, 2, 2, v.Op)
		if err != nil {
			return nil, err
		}
		return c.f.Math(op, args[0], args[1]), nil
	case "case":
		return c.caseValue(v.Case)
	case "coalesce":
		args, err := c.values(v.Coalesce, 2, -1, "coalesce")
		if err != nil {
			return nil, err
		}
		return c.f.Coalesce(args...), nil
	case "nullif":
		args, err := c.values(v.NullIf, 2, 2, "nullif")
		if err != nil {
			return nil, err
		}
		return c.f.NullIf(args[0], args[1]), nil
	case "subquery":
		return c.subquery(v.Subquery)
	}
	return nil, fmt.Errorf("value must set exactly one of path, lit, null, param, type, fn, agg, op, case, coalesce, nullif, subquery")
}

func (c *compiler) operand(v *Value, name string) (exps.Val, error) {
	if v == nil {
		return nil, fmt.Errorf("%s needs an argument (of)", name)
	}
	return c.value(v)
}

// values compiles vs, checking there are at least lo and, unless hi is
// negative, at most hi of them.
func (c *compiler) values(vs []Value, lo, hi int, name string) ([]exps.Val, error) {
	if len(vs) < lo || (hi >= 0 && len(vs) > hi) {
		if lo == hi {
			return nil, fmt.Errorf("%s takes %d arguments, got %d", name, lo, len(vs))
		}
		return nil, fmt.Errorf("%s takes at least %d arguments, got %d", name, lo, len(vs))
	}
	out := make([]exps.Val, len(vs))
	for i := range vs {
		v, err := c.value(&vs[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

var timeLayouts = map[exps.LitType][]string{
	exps.LitDate:      {time.DateOnly},
	exps.LitTime:      {time.TimeOnly},
	exps.LitTimestamp: {time.RFC3339Nano, time.DateTime},
}

func (c *compiler) literal(v *Value) (exps.Val, error) {
	kind := exps.LitUnknown
	if v.Kind != "" {
		k, ok := exps.ParseLitType(v.Kind)
		if !ok {
			return nil, fmt.Errorf("unknown literal kind %q", v.Kind)
		}
		kind = k
	} else {
		switch v.Lit.(type) {
		case string:
			kind = exps.LitString
		case bool:
			kind = exps.LitBoolean
		case int, int64, uint64, float64:
			kind = exps.LitNumber
		}
	}
	val := v.Lit
	if layouts, ok := timeLayouts[kind]; ok {
		t, err := parseTime(val, layouts)
		if err != nil {
			return nil, fmt.Errorf("%s literal: %w", kind, err)
		}
		val = t
	}
	return c.f.Literal(val, kind), nil
}

func parseTime(v any, layouts []string) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		for _, layout := range layouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as %s", x, layouts[0])
	}
	return time.Time{}, fmt.Errorf("cannot parse %T as a time", v)
}

func (c *compiler) caseValue(cs *Case) (exps.Val, error) {
	var operand exps.Val
	if cs.Operand != nil {
		v, err := c.value(cs.Operand)
		if err != nil {
			return nil, fmt.Errorf("case operand: %w", err)
		}
		operand = v
	}
	if len(cs.Whens) == 0 {
		return nil, fmt.Errorf("case needs at least one when")
	}
	whens := make([]exps.When, len(cs.Whens))
	for i, w := range cs.Whens {
		switch {
		case operand != nil && w.Value != nil:
			v, err := c.value(w.Value)
			if err != nil {
				return nil, fmt.Errorf("when %d: %w", i, err)
			}
			whens[i].Value = v
		case operand == nil && w.If != nil:
			e, err := c.cond(w.If)
			if err != nil {
				return nil, fmt.Errorf("when %d: %w", i, err)
			}
			whens[i].Cond = e
		case operand != nil:
			return nil, fmt.Errorf("when %d: a case with an operand needs value", i)
		default:
			return nil, fmt.Errorf("when %d: a case without an operand needs if", i)
		}
		then, err := c.value(&w.Then)
		if err != nil {
			return nil, fmt.Errorf("when %d: then: %w", i, err)
		}
		whens[i].Result = then
	}
	var els exps.Val
	if cs.Else != nil {
		v, err := c.value(cs.Else)
		if err != nil {
			return nil, fmt.Errorf("case else: %w", err)
		}
		els = v
	}
	return c.f.Case(operand, whens, els), nil
}

func (c *compiler) cond(cd *Cond) (exps.Exp, error) {
	form := cd.form()
	if op, ok := compareOps[form]; ok {
		for _, cmp := range cd.comparisons() {
			if cmp.name != form {
				continue
			}
			args, err := c.values(cmp.args, 2, 2, form)
			if err != nil {
				return nil, err
			}
			return c.f.Compare(op, args[0], args[1]), nil
		}
	}
	switch form {
	case "and", "or":
		list := cd.And
		if form == "or" {
			list = cd.Or
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("%s needs at least one condition", form)
		}
		var out exps.Exp
		for i := range list {
			e, err := c.cond(&list[i])
			if err != nil {
				return nil, err
			}
			switch {
			case out == nil:
				out = e
			case form == "and":
				out = c.f.And(out, e)
			default:
				out = c.f.Or(out, e)
			}
		}
		return out, nil
	case "not":
		e, err := c.cond(cd.Not)
		if err != nil {
			return nil, err
		}
		return c.f.Not(e), nil
	case "is_null", "not_null":
		target := cd.IsNull
		if form == "not_null" {
			target = cd.NotNull
		}
		v, err := c.value(target)
		if err != nil {
			return nil, err
		}
		return c.f.IsNull(v, form == "not_null"), nil
	case "in":
		return c.in(cd.In)
	case "empty", "not_empty":
		target := cd.Empty
		if form == "not_empty" {
			target = cd.NotEmpty
		}
		v, err := c.value(target)
		if err != nil {
			return nil, err
		}
		return c.f.IsEmpty(v, form == "not_empty"), nil
	case "exists":
		sub, err := c.subquery(cd.Exists)
		if err != nil {
			return nil, err
		}
		return c.f.IsEmpty(sub, true), nil
	case "like":
		return c.like(cd.Like)
	}
	return nil, fmt.Errorf("condition must set exactly one of eq, ne, lt, le, gt, ge, and, or, not, is_null, not_null, in, empty, not_empty, exists, like")
}

func (c *compiler) in(in *In) (exps.Exp, error) {
	v, err := c.value(&in.Value)
	if err != nil {
		return nil, err
	}
	var list exps.Val
	switch {
	case in.Subquery != nil:
		list, err = c.subquery(in.Subquery)
		if err != nil {
			return nil, err
		}
	case in.Param != "":
		list = c.f.Param(in.Param)
	default:
		vals, err := c.values(in.List, 0, -1, "in")
		if err != nil {
			return nil, err
		}
		list = c.f.Args(vals...)
	}
	return c.f.In(v, list, in.Not), nil
}

func (c *compiler) like(l *Like) (exps.Exp, error) {
	v, err := c.value(&l.Value)
	if err != nil {
		return nil, err
	}
	pattern, err := c.value(&l.Pattern)
	if err != nil {
		return nil, err
	}
	var escape rune
	switch utf8.RuneCountInString(l.Escape) {
	case 0:
	case 1:
		escape, _ = utf8.DecodeRuneInString(l.Escape)
	default:
		return nil, fmt.Errorf("like escape %q must be one character", l.Escape)
	}
	return c.f.Like(v, pattern, escape, l.Not), nil
}
