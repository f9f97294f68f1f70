package exps

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"

	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

// numericRank orders the numeric types for promotion. Floating types rank
// above the integral ones.
var numericRank = map[schema.JavaType]int{
	schema.JavaByte:       1,
	schema.JavaShort:      2,
	schema.JavaInt:        3,
	schema.JavaLong:       4,
	schema.JavaBigInteger: 5,
	schema.JavaFloat:      6,
	schema.JavaDouble:     7,
	schema.JavaBigDecimal: 8,
}

// Promote returns the common type of t1 and t2. An unknown (object) side
// yields the other side.
func Promote(t1, t2 schema.JavaType) schema.JavaType {
	if t1 == t2 {
		return t1
	}
	if t1 == schema.JavaObject || t1 == schema.JavaDefault {
		return t2
	}
	if t2 == schema.JavaObject || t2 == schema.JavaDefault {
		return t1
	}
	r1, n1 := numericRank[t1]
	r2, n2 := numericRank[t2]
	if t1 == schema.JavaNumber || t2 == schema.JavaNumber {
		if (n1 || t1 == schema.JavaNumber) && (n2 || t2 == schema.JavaNumber) {
			return schema.JavaNumber
		}
		return schema.JavaObject
	}
	if n1 && n2 {
		// BigInteger mixed with a floating type loses nothing only as a
		// BigDecimal.
		if (t1 == schema.JavaBigInteger && r2 > r1) || (t2 == schema.JavaBigInteger && r1 > r2) {
			return schema.JavaBigDecimal
		}
		if r1 > r2 {
			return t1
		}
		return t2
	}
	switch {
	case isText(t1) && isText(t2):
		return schema.JavaString
	case t1.IsTemporal() && t2.IsTemporal():
		return schema.JavaTimestamp
	}
	return schema.JavaObject
}

func isText(t schema.JavaType) bool {
	return t == schema.JavaString || t == schema.JavaChar || t == schema.JavaClob
}

// Convert converts v to type t. Nil converts to nil. Types without a
// conversion rule keep the value unchanged.
func Convert(v any, t schema.JavaType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case schema.JavaBoolean:
		return toBool(v)
	case schema.JavaByte, schema.JavaShort, schema.JavaInt, schema.JavaLong:
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return narrowInt(n, t), nil
	case schema.JavaFloat:
		f, err := toFloat64(v)
		return float32(f), err
	case schema.JavaDouble:
		return toFloat64(v)
	case schema.JavaBigInteger:
		return toBigInt(v)
	case schema.JavaBigDecimal:
		return toBigFloat(v)
	case schema.JavaNumber:
		if isNumber(v) {
			return v, nil
		}
		return toFloat64(v)
	case schema.JavaString, schema.JavaClob:
		return toString(v), nil
	case schema.JavaChar:
		return toRune(v)
	case schema.JavaDate, schema.JavaSQLDate, schema.JavaTime, schema.JavaTimestamp:
		return toTime(v)
	case schema.JavaBytes, schema.JavaBlob:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			return []byte(x), nil
		}
		return nil, fmt.Errorf("cannot convert %T to bytes", v)
	case schema.JavaLocale:
		if tag, ok := v.(language.Tag); ok {
			return tag, nil
		}
		return language.Parse(strings.ReplaceAll(toString(v), "_", "-"))
	}
	return v, nil
}

func narrowInt(n int64, t schema.JavaType) any {
	switch t {
	case schema.JavaByte:
		return int8(n)
	case schema.JavaShort:
		return int16(n)
	case schema.JavaInt:
		return int32(n)
	}
	return n
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, float32, float64, *big.Int, *big.Float:
		return true
	}
	return false
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(x))
	}
	if isNumber(v) {
		f, err := toFloat64(v)
		return f != 0, err
	}
	return false, fmt.Errorf("cannot convert %T to boolean", v)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case float32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case *big.Int:
		return x.Int64(), nil
	case *big.Float:
		n, _ := x.Int64()
		return n, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	}
	return 0, fmt.Errorf("cannot convert %T to an integer", v)
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case *big.Float:
		f, _ := x.Float64()
		return f, nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %T to a floating point number", v)
	}
	return float64(n), nil
}

func toBigInt(v any) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		return x, nil
	case *big.Float:
		i, _ := x.Int(nil)
		return i, nil
	case string:
		i, ok := new(big.Int).SetString(strings.TrimSpace(x), 10)
		if !ok {
			return nil, fmt.Errorf("cannot convert %q to a big integer", x)
		}
		return i, nil
	}
	n, err := toInt64(v)
	return big.NewInt(n), err
}

func toBigFloat(v any) (*big.Float, error) {
	switch x := v.(type) {
	case *big.Float:
		return x, nil
	case *big.Int:
		return new(big.Float).SetInt(x), nil
	case string:
		f, _, err := big.ParseFloat(strings.TrimSpace(x), 10, 256, big.ToNearestEven)
		return f, err
	case float32, float64:
		f, _ := toFloat64(x)
		return big.NewFloat(f), nil
	}
	n, err := toInt64(v)
	return new(big.Float).SetInt64(n), err
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case *big.Float:
		return x.Text('f', -1)
	}
	return fmt.Sprint(v)
}

func toRune(v any) (rune, error) {
	switch x := v.(type) {
	case string:
		r, _ := utf8.DecodeRuneInString(x)
		return r, nil
	case int64:
		return rune(x), nil
	case int:
		return rune(x), nil
	}
	return 0, fmt.Errorf("cannot convert %T to a char", v)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"15:04:05",
}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot convert %q to a time", s)
	}
	return time.Time{}, fmt.Errorf("cannot convert %T to a time", v)
}

// MathOperator is a binary arithmetic operator.
type MathOperator string

const (
	OpAdd      MathOperator = "+"
	OpSubtract MathOperator = "-"
	OpMultiply MathOperator = "*"
	OpDivide   MathOperator = "/"
	OpMod      MathOperator = "MOD"
)

// Arithmetic applies op to a and b after promoting both to their common
// numeric type. A nil operand yields nil.
func Arithmetic(a any, op MathOperator, b any) (any, error) {
	if a == nil || b == nil {
		return nil, nil
	}
	t := Promote(schema.TypeOf(a), schema.TypeOf(b))
	if t == schema.JavaNumber {
		t = schema.JavaDouble
	}
	switch t {
	case schema.JavaByte, schema.JavaShort, schema.JavaInt, schema.JavaLong:
		x, _ := toInt64(a)
		y, _ := toInt64(b)
		var r int64
		switch op {
		case OpAdd:
			r = x + y
		case OpSubtract:
			r = x - y
		case OpMultiply:
			r = x * y
		case OpDivide, OpMod:
			if y == 0 {
				return nil, invalid("division by zero")
			}
			if op == OpDivide {
				r = x / y
			} else {
				r = x % y
			}
		default:
			return nil, invalid("unknown operator %q", op)
		}
		return narrowInt(r, t), nil
	case schema.JavaFloat, schema.JavaDouble:
		x, _ := toFloat64(a)
		y, _ := toFloat64(b)
		var r float64
		switch op {
		case OpAdd:
			r = x + y
		case OpSubtract:
			r = x - y
		case OpMultiply:
			r = x * y
		case OpDivide:
			if y == 0 {
				return nil, invalid("division by zero")
			}
			r = x / y
		default:
			return nil, unsupported(string(op), "operator on floating point operands")
		}
		if t == schema.JavaFloat {
			return float32(r), nil
		}
		return r, nil
	case schema.JavaBigInteger:
		x, _ := toBigInt(a)
		y, _ := toBigInt(b)
		r := new(big.Int)
		switch op {
		case OpAdd:
			return r.Add(x, y), nil
		case OpSubtract:
			return r.Sub(x, y), nil
		case OpMultiply:
			return r.Mul(x, y), nil
		}
		if y.Sign() == 0 {
			return nil, invalid("division by zero")
		}
		if op == OpMod {
			return r.Rem(x, y), nil
		}
		return r.Quo(x, y), nil
	case schema.JavaBigDecimal:
		x, _ := toBigFloat(a)
		y, _ := toBigFloat(b)
		r := new(big.Float)
		switch op {
		case OpAdd:
			return r.Add(x, y), nil
		case OpSubtract:
			return r.Sub(x, y), nil
		case OpMultiply:
			return r.Mul(x, y), nil
		case OpDivide:
			if y.Sign() == 0 {
				return nil, invalid("division by zero")
			}
			return r.Quo(x, y), nil
		}
		return nil, unsupported(string(op), "operator on decimal operands")
	}
	return nil, invalid("cannot apply %s to %T and %T", op, a, b)
}

// CompareValues orders a and b: negative, zero or positive. Numbers compare after
// promotion; strings, times and booleans compare naturally.
func CompareValues(a, b any) (int, error) {
	if isNumber(a) && isNumber(b) {
		t := Promote(schema.TypeOf(a), schema.TypeOf(b))
		switch {
		case t == schema.JavaBigDecimal || t == schema.JavaBigInteger:
			x, _ := toBigFloat(a)
			y, _ := toBigFloat(b)
			return x.Cmp(y), nil
		case t.IsIntegral():
			x, _ := toInt64(a)
			y, _ := toInt64(b)
			return cmp3(x < y, x > y), nil
		}
		x, _ := toFloat64(a)
		y, _ := toFloat64(b)
		return cmp3(x < y, x > y), nil
	}
	switch x := a.(type) {
	case string:
		return strings.Compare(x, toString(b)), nil
	case time.Time:
		y, err := toTime(b)
		if err != nil {
			return 0, err
		}
		return x.Compare(y), nil
	case bool:
		y, err := toBool(b)
		if err != nil {
			return 0, err
		}
		return cmp3(!x && y, x && !y), nil
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Compare(x, y), nil
		}
	}
	if s, ok := b.(string); ok {
		return strings.Compare(toString(a), s), nil
	}
	return 0, fmt.Errorf("cannot compare %T with %T", a, b)
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

// Equal reports whether a and b are equal in memory. Two nils are equal;
// an object equals its own single-column key.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	oa, aObj := a.(*Object)
	ob, bObj := b.(*Object)
	switch {
	case aObj && bObj:
		return oa.SameIdentity(ob)
	case aObj:
		return len(oa.ID) == 1 && Equal(oa.ID[0], b)
	case bObj:
		return len(ob.ID) == 1 && Equal(a, ob.ID[0])
	}
	c, err := CompareValues(a, b)
	return err == nil && c == 0
}
