package exps

import (
	"math"
	"math/big"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Env is what in-memory evaluation sees: the candidate bound to Alias, the
// other variables in scope, parameter values, and for aggregates the
// candidates of the current group.
type Env struct {
	Candidate any
	Alias     string
	Vars      map[string]any
	Params    map[string]any
	// Group is the candidates an aggregate reduces over; nil means the
	// candidate alone.
	Group []any
}

func (e *Env) lookup(alias string) any {
	if alias == "" || alias == e.Alias {
		return e.Candidate
	}
	return e.Vars[alias]
}

func (e *Env) with(candidate any) *Env {
	c := *e
	c.Candidate = candidate
	c.Group = nil
	return &c
}

// Eval evaluates v against the candidate in env without touching the
// database. Missing values, type mismatches and runtime faults evaluate to
// nil; only constructs with no in-memory form return an error.
func Eval(v Val, env *Env) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, nil
		}
	}()
	return eval(v, env)
}

// Match evaluates condition e against the candidate in env. A condition
// over mismatched values does not match.
func Match(e Exp, env *Env) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, nil
		}
	}()
	return match(e, env)
}

// soft turns data faults into nil and keeps errors for unsupported
// constructs.
func soft(v any, err error) (any, error) {
	if err != nil {
		if IsUnsupported(err) {
			return nil, err
		}
		return nil, nil
	}
	return v, nil
}

func eval(v Val, env *Env) (any, error) {
	switch x := v.(type) {
	case *Lit:
		return x.Value(), nil
	case *Param:
		val, ok := env.Params[x.Key]
		if !ok {
			return nil, nil
		}
		return convertParam(val, x.Type()), nil
	case *TypeLit:
		if m := x.Meta(); m != nil {
			return m.Name, nil
		}
		return x.Value(), nil
	case *Path:
		cur := env.lookup(x.Var)
		for _, name := range x.Names {
			obj, ok := cur.(*Object)
			if !ok || obj == nil {
				return nil, nil
			}
			cur = obj.Values[name]
		}
		return cur, nil
	case *UnaryOp:
		return evalUnary(x, env)
	case *MathOp:
		l, err := eval(x.L, env)
		if err != nil {
			return nil, err
		}
		r, err := eval(x.R, env)
		if err != nil {
			return nil, err
		}
		if l == nil || r == nil {
			return nil, nil
		}
		if x.Op == OpConcat {
			return toString(l) + toString(r), nil
		}
		return soft(Arithmetic(l, x.Op, r))
	case *Aggregate:
		group := env.Group
		if group == nil {
			group = []any{env.Candidate}
		}
		vals := make([]any, 0, len(group))
		for _, c := range group {
			val, err := eval(x.Arg, env.with(c))
			if err != nil {
				return nil, err
			}
			vals = append(vals, val)
		}
		return soft(x.reduce(vals))
	case *Case:
		return evalCase(x, env)
	case *Coalesce:
		for _, c := range x.Vals {
			val, err := eval(c, env)
			if err != nil || val != nil {
				return val, err
			}
		}
		return nil, nil
	case *NullIf:
		l, err := eval(x.L, env)
		if err != nil {
			return nil, err
		}
		r, err := eval(x.R, env)
		if err != nil {
			return nil, err
		}
		if Equal(l, r) {
			return nil, nil
		}
		return l, nil
	case *Args:
		out := make([]any, len(x.Vals))
		for i, c := range x.Vals {
			val, err := eval(c, env)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil
	case *SubQ:
		return nil, unsupported(x.String(), "subqueries cannot be evaluated in memory")
	}
	return nil, nil
}

func evalUnary(x *UnaryOp, env *Env) (any, error) {
	if x.Op == OpIndex {
		return nil, unsupported(x.String(), "INDEX cannot be evaluated in memory")
	}
	arg, err := eval(x.Arg, env)
	if err != nil || arg == nil {
		return nil, err
	}
	switch x.Op {
	case OpAbs:
		switch n := arg.(type) {
		case *big.Int:
			return new(big.Int).Abs(n), nil
		case *big.Float:
			return new(big.Float).Abs(n), nil
		}
		neg, err := CompareValues(arg, 0)
		if err != nil {
			return nil, nil
		}
		if neg < 0 {
			return soft(Arithmetic(0, OpSubtract, arg))
		}
		return arg, nil
	case OpSqrt:
		f, err := toFloat64(arg)
		if err != nil {
			return nil, nil
		}
		return math.Sqrt(f), nil
	case OpNegate:
		return soft(Arithmetic(0, OpSubtract, arg))
	case OpUpper:
		return strings.ToUpper(toString(arg)), nil
	case OpLower:
		return strings.ToLower(toString(arg)), nil
	case OpTrim:
		return strings.TrimSpace(toString(arg)), nil
	case OpLength:
		return int32(utf8.RuneCountInString(toString(arg))), nil
	case OpType:
		if obj, ok := arg.(*Object); ok {
			return obj.Mapping.Name, nil
		}
		return nil, nil
	case OpSize:
		switch c := arg.(type) {
		case []*Object:
			return int64(len(c)), nil
		case []any:
			return int64(len(c)), nil
		}
		return nil, nil
	}
	return nil, nil
}

func evalCase(x *Case, env *Env) (any, error) {
	var operand any
	if x.Operand != nil {
		v, err := eval(x.Operand, env)
		if err != nil {
			return nil, err
		}
		operand = v
	}
	for _, w := range x.Whens {
		var hit bool
		if w.Cond != nil {
			ok, err := match(w.Cond, env)
			if err != nil {
				return nil, err
			}
			hit = ok
		} else {
			v, err := eval(w.Value, env)
			if err != nil {
				return nil, err
			}
			hit = operand != nil && Equal(operand, v)
		}
		if hit {
			return eval(w.Result, env)
		}
	}
	if x.Else != nil {
		return eval(x.Else, env)
	}
	return nil, nil
}

func match(e Exp, env *Env) (bool, error) {
	switch x := e.(type) {
	case *Compare:
		l, err := eval(x.L, env)
		if err != nil {
			return false, err
		}
		r, err := eval(x.R, env)
		if err != nil {
			return false, err
		}
		switch x.Op {
		case OpEQ:
			return Equal(l, r), nil
		case OpNE:
			return !Equal(l, r), nil
		}
		if l == nil || r == nil {
			return false, nil
		}
		c, err := CompareValues(l, r)
		if err != nil {
			return false, nil
		}
		switch x.Op {
		case OpLT:
			return c < 0, nil
		case OpLE:
			return c <= 0, nil
		case OpGT:
			return c > 0, nil
		case OpGE:
			return c >= 0, nil
		}
	case *And:
		ok, err := match(x.L, env)
		if err != nil || !ok {
			return false, err
		}
		return match(x.R, env)
	case *Or:
		ok, err := match(x.L, env)
		if err != nil || ok {
			return ok, err
		}
		return match(x.R, env)
	case *Not:
		ok, err := match(x.E, env)
		return !ok && err == nil, err
	case *IsNull:
		v, err := eval(x.V, env)
		if err != nil {
			return false, err
		}
		return (v == nil) != x.Not, nil
	case *In:
		v, err := eval(x.V, env)
		if err != nil {
			return false, err
		}
		list, err := eval(x.List, env)
		if err != nil {
			return false, err
		}
		items, ok := asSlice(list)
		if !ok {
			items = []any{list}
		}
		found := false
		for _, item := range items {
			if Equal(v, item) {
				found = true
				break
			}
		}
		return found != x.Not, nil
	case *Empty:
		v, err := eval(x.V, env)
		if err != nil {
			return false, err
		}
		n := 0
		switch c := v.(type) {
		case []*Object:
			n = len(c)
		case []any:
			n = len(c)
		}
		return (n == 0) != x.Not, nil
	case *Like:
		v, err := eval(x.V, env)
		if err != nil {
			return false, err
		}
		pat, err := eval(x.Pattern, env)
		if err != nil {
			return false, err
		}
		if v == nil || pat == nil {
			return false, nil
		}
		re, err := likePattern(toString(pat), x.Escape)
		if err != nil {
			return false, nil
		}
		return re.MatchString(toString(v)) != x.Not, nil
	}
	return false, nil
}

// likePattern compiles a LIKE pattern: % matches any run, _ any single
// character, and escape makes the next character literal.
func likePattern(pattern string, escape rune) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?s)^")
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case escape != 0 && r == escape:
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
