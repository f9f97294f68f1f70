package exps

import (
	"fmt"

	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

// AggregateFunc is an aggregate function.
type AggregateFunc string

const (
	AggSum   AggregateFunc = "SUM"
	AggAvg   AggregateFunc = "AVG"
	AggCount AggregateFunc = "COUNT"
	AggMin   AggregateFunc = "MIN"
	AggMax   AggregateFunc = "MAX"
)

// Aggregate reduces a group of rows to one value.
type Aggregate struct {
	node
	Fn       AggregateFunc
	Arg      Val
	Distinct bool
	cast     schema.JavaType
}

func (a *Aggregate) Type() schema.JavaType {
	if a.cast != schema.JavaDefault {
		return a.cast
	}
	switch a.Fn {
	case AggCount:
		return schema.JavaLong
	case AggSum:
		return SumType(a.Arg.Type())
	}
	return a.Arg.Type()
}

func (a *Aggregate) SetImplicitType(t schema.JavaType) { a.cast = t }

func (a *Aggregate) String() string {
	if a.Distinct {
		return fmt.Sprintf("%s(DISTINCT %s)", a.Fn, a.Arg)
	}
	return fmt.Sprintf("%s(%s)", a.Fn, a.Arg)
}

// SumType is the type SUM produces over values of type t: byte, short and
// int widen to long, float and double to double, and anything else is
// unchanged.
func SumType(t schema.JavaType) schema.JavaType {
	switch t {
	case schema.JavaByte, schema.JavaShort, schema.JavaInt:
		return schema.JavaLong
	case schema.JavaFloat, schema.JavaDouble:
		return schema.JavaDouble
	}
	return t
}

// reduce applies the aggregate to the values of a group. Nulls are skipped
// by every function; SUM, AVG, MIN and MAX of no values are nil.
func (a *Aggregate) reduce(vals []any) (any, error) {
	if a.Distinct {
		vals = distinctValues(vals)
	}
	switch a.Fn {
	case AggCount:
		var n int64
		for _, v := range vals {
			if v != nil {
				n++
			}
		}
		return n, nil
	case AggSum:
		return sum(vals, a.Type())
	case AggAvg:
		return average(vals, a.Arg.Type())
	case AggMin, AggMax:
		var best any
		for _, v := range vals {
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			c, err := CompareValues(v, best)
			if err != nil {
				return nil, err
			}
			if (a.Fn == AggMin && c < 0) || (a.Fn == AggMax && c > 0) {
				best = v
			}
		}
		return best, nil
	}
	return nil, invalid("unknown aggregate %q", a.Fn)
}

func sum(vals []any, t schema.JavaType) (any, error) {
	var total any
	for _, v := range vals {
		if v == nil {
			continue
		}
		if total == nil {
			total = v
			continue
		}
		next, err := Arithmetic(total, OpAdd, v)
		if err != nil {
			return nil, err
		}
		total = next
	}
	if total == nil {
		return nil, nil
	}
	return Convert(total, t)
}

// average divides the sum of the non-null values by their count, in the
// values' own type. No values, or only nulls, average to nil.
func average(vals []any, t schema.JavaType) (any, error) {
	if len(vals) == 0 {
		return nil, nil
	}
	total, err := Convert(0, t)
	if err != nil || !isNumber(total) {
		total = int64(0)
	}
	n := 0
	for _, v := range vals {
		if v == nil {
			continue
		}
		if total, err = Arithmetic(total, OpAdd, v); err != nil {
			return nil, err
		}
		n++
	}
	if n == 0 {
		return nil, nil
	}
	avg, err := Arithmetic(total, OpDivide, int32(n))
	if err != nil {
		return nil, err
	}
	if !t.IsNumeric() {
		return avg, nil
	}
	return Convert(avg, t)
}

func distinctValues(vals []any) []any {
	var out []any
	for _, v := range vals {
		dup := false
		for _, seen := range out {
			if Equal(v, seen) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}
