package exps

import (
	"fmt"
	"time"

	"github.com/pierpaolospaziani/openjpa/internal/schema"
	"github.com/pierpaolospaziani/openjpa/internal/sql"
)

// LitType is how a literal was written in the query text.
type LitType int

const (
	LitUnknown LitType = iota
	LitDate
	LitTime
	LitTimestamp
	LitString
	// LitSQString is a single-quoted string.
	LitSQString
	LitBoolean
	LitEnum
	LitNumber
	LitObject
	LitClass
)

var litTypeNames = map[LitType]string{
	LitUnknown:   "unknown",
	LitDate:      "date",
	LitTime:      "time",
	LitTimestamp: "timestamp",
	LitString:    "string",
	LitSQString:  "sqstring",
	LitBoolean:   "boolean",
	LitEnum:      "enum",
	LitNumber:    "number",
	LitObject:    "object",
	LitClass:     "class",
}

func (t LitType) String() string { return litTypeNames[t] }

// ParseLitType resolves a literal type name.
func ParseLitType(name string) (LitType, bool) {
	for t, n := range litTypeNames {
		if n == name {
			return t, true
		}
	}
	return LitUnknown, false
}

// Lit is a literal value.
type Lit struct {
	node
	value any
	parse LitType
	raw   bool
	typ   schema.JavaType
}

// Value returns the literal value.
func (l *Lit) Value() any { return l.value }

// ParseType returns how the literal was written.
func (l *Lit) ParseType() LitType { return l.parse }

// IsRaw reports whether the literal renders as SQL text rather than a bind
// value. Date, time and timestamp literals are raw from construction.
func (l *Lit) IsRaw() bool { return l.raw }

// SetRaw sets whether the literal renders as SQL text.
func (l *Lit) SetRaw(raw bool) { l.raw = raw }

func (l *Lit) Type() schema.JavaType {
	if l.typ != schema.JavaDefault {
		return l.typ
	}
	switch l.parse {
	case LitDate:
		return schema.JavaSQLDate
	case LitTime:
		return schema.JavaTime
	}
	return schema.TypeOf(l.value)
}

// SetImplicitType converts the value to t. When the value cannot be
// converted both value and type are kept.
func (l *Lit) SetImplicitType(t schema.JavaType) {
	v, err := Convert(l.value, t)
	if err != nil {
		return
	}
	l.value = v
	l.typ = t
}

func (l *Lit) String() string {
	switch x := l.value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + x + "'"
	case time.Time:
		return x.Format(time.RFC3339)
	}
	return fmt.Sprint(l.value)
}

func isDateLit(t LitType) bool {
	return t == LitDate || t == LitTime || t == LitTimestamp
}

// rawSQL renders the literal as SQL text. ok is false when the dictionary
// has no text form for it and the value must stay a bind value.
func (l *Lit) rawSQL(dict sql.Dictionary, sqlValue any) (sql.Raw, bool) {
	switch l.parse {
	case LitString, LitSQString:
		return sql.Raw(dict.StringLiteral(toString(l.value))), true
	case LitBoolean:
		b, ok := l.value.(bool)
		if !ok {
			return "", false
		}
		switch rep := dict.BooleanRepresentation().Represent(b).(type) {
		case string:
			return sql.Raw(dict.StringLiteral(rep)), true
		case bool, int:
			return sql.Raw(fmt.Sprint(rep)), true
		}
		return "", false
	case LitEnum:
		// An ordinal renders bare, a name quoted.
		switch x := sqlValue.(type) {
		case int, int32, int64:
			return sql.Raw(fmt.Sprint(x)), true
		}
		return sql.Raw(dict.StringLiteral(toString(sqlValue))), true
	case LitDate:
		return sql.Raw(dict.DateLiteral(schema.JavaSQLDate, l.value)), true
	case LitTime:
		return sql.Raw(dict.DateLiteral(schema.JavaTime, l.value)), true
	case LitTimestamp:
		return sql.Raw(dict.DateLiteral(schema.JavaTimestamp, l.value)), true
	case LitNumber:
		return sql.Raw(toString(l.value)), true
	}
	if s, ok := l.value.(string); ok {
		return sql.Raw(dict.StringLiteral(s)), true
	}
	return sql.Raw(toString(l.value)), true
}
