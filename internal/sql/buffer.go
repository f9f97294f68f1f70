package sql

import (
	"math/big"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

// Raw is SQL text appended verbatim where a value is expected.
type Raw string

// SQLBuffer accumulates SQL text with '?' placeholders and the bind values
// for them. Use Dictionary.Rebind (or SQLBuffer.Rebound) to convert the
// placeholders for the target database.
type SQLBuffer struct {
	dict   Dictionary
	sql    strings.Builder
	params []any
	cols   []*schema.Column
	marks  []int // byte offsets of bind placeholders
}

// NewSQLBuffer returns an empty buffer rendering through dict.
func NewSQLBuffer(dict Dictionary) *SQLBuffer {
	return &SQLBuffer{dict: dict}
}

// Dictionary returns the buffer's dictionary.
func (b *SQLBuffer) Dictionary() Dictionary { return b.dict }

// Append appends SQL text.
func (b *SQLBuffer) Append(s string) *SQLBuffer {
	b.sql.WriteString(s)
	return b
}

// AppendBuffer appends the text and bind values of other.
func (b *SQLBuffer) AppendBuffer(other *SQLBuffer) *SQLBuffer {
	if other == nil {
		return b
	}
	off := b.sql.Len()
	for _, m := range other.marks {
		b.marks = append(b.marks, off+m)
	}
	b.sql.WriteString(other.sql.String())
	b.params = append(b.params, other.params...)
	b.cols = append(b.cols, other.cols...)
	return b
}

// AppendValue appends v as a bind parameter, or as NULL when v is nil. A Raw
// value is appended as text. col, when known, guides value conversion.
func (b *SQLBuffer) AppendValue(v any, col *schema.Column) *SQLBuffer {
	switch x := v.(type) {
	case nil:
		b.sql.WriteString("NULL")
	case Raw:
		b.sql.WriteString(string(x))
	default:
		b.marks = append(b.marks, b.sql.Len())
		b.sql.WriteByte('?')
		if b.dict != nil {
			v = b.dict.ToDataStoreValue(v, col)
		}
		b.params = append(b.params, v)
		b.cols = append(b.cols, col)
	}
	return b
}

// AppendLiteral appends v inline as a SQL literal rendered by the
// dictionary. Values without a literal form fall back to a bind parameter.
func (b *SQLBuffer) AppendLiteral(v any, col *schema.Column) *SQLBuffer {
	switch x := v.(type) {
	case nil, Raw:
		return b.AppendValue(v, col)
	case string:
		return b.Append(b.dict.StringLiteral(x))
	case bool:
		switch rep := b.dict.BooleanRepresentation().Represent(x).(type) {
		case string:
			return b.Append(b.dict.StringLiteral(rep))
		case bool:
			return b.Append(strings.ToUpper(strconv.FormatBool(rep)))
		case int:
			return b.Append(strconv.Itoa(rep))
		}
	case int:
		return b.Append(strconv.Itoa(x))
	case int8, int16, int32, int64:
		return b.Append(strconv.FormatInt(int64Of(x), 10))
	case float32:
		return b.Append(strconv.FormatFloat(float64(x), 'g', -1, 32))
	case float64:
		return b.Append(strconv.FormatFloat(x, 'g', -1, 64))
	case *big.Int:
		return b.Append(x.String())
	case *big.Float:
		return b.Append(x.Text('f', -1))
	case time.Time:
		kind := schema.JavaTimestamp
		if col != nil && col.JavaType().IsTemporal() {
			kind = col.JavaType()
		}
		return b.Append(b.dict.DateLiteral(kind, x))
	}
	return b.AppendValue(v, col)
}

func int64Of(v any) int64 {
	switch x := v.(type) {
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	}
	return 0
}

// AppendColumn appends an alias-qualified column reference.
func (b *SQLBuffer) AppendColumn(alias string, col *schema.Column) *SQLBuffer {
	if alias != "" {
		b.sql.WriteString(alias)
		b.sql.WriteByte('.')
	}
	b.sql.WriteString(b.dict.ColumnName(col))
	return b
}

// AppendSubselect appends a parenthesized subselect.
func (b *SQLBuffer) AppendSubselect(sub *Select) *SQLBuffer {
	b.sql.WriteByte('(')
	b.AppendBuffer(sub.ToSelect(false))
	b.sql.WriteByte(')')
	return b
}

// AppendCount appends a parenthesized COUNT(*) subselect.
func (b *SQLBuffer) AppendCount(sub *Select) *SQLBuffer {
	b.sql.WriteByte('(')
	b.AppendBuffer(sub.ToSelectCount())
	b.sql.WriteByte(')')
	return b
}

// IsEmpty reports whether no text was appended.
func (b *SQLBuffer) IsEmpty() bool { return b == nil || b.sql.Len() == 0 }

// Len returns the length of the SQL text.
func (b *SQLBuffer) Len() int { return b.sql.Len() }

// SQL returns the text with '?' placeholders.
func (b *SQLBuffer) SQL() string { return b.sql.String() }

// Rebound returns the text with dialect placeholders. Only placeholders
// appended for bind values are rewritten; a '?' inside an inlined literal
// is left as it is.
func (b *SQLBuffer) Rebound() string {
	text := b.SQL()
	if b.dict == nil || len(b.marks) == 0 {
		return text
	}
	binds := strings.Fields(b.dict.Rebind(strings.Repeat("? ", len(b.marks))))
	var out strings.Builder
	last := 0
	for i, at := range b.marks {
		out.WriteString(text[last:at])
		out.WriteString(binds[i])
		last = at + 1
	}
	out.WriteString(text[last:])
	return out.String()
}

// Params returns the bind values in placeholder order.
func (b *SQLBuffer) Params() []any { return slices.Clone(b.params) }

// ParamColumns returns the column of each bind value, or nil entries where
// unknown.
func (b *SQLBuffer) ParamColumns() []*schema.Column { return slices.Clone(b.cols) }

// Clone returns an independent copy.
func (b *SQLBuffer) Clone() *SQLBuffer {
	c := NewSQLBuffer(b.dict)
	c.AppendBuffer(b)
	return c
}

func (b *SQLBuffer) String() string { return b.SQL() }
