package sql

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

// NoLimit is the end index of an unbounded range.
const NoLimit int64 = math.MaxInt64

// JoinSyntax is how a dictionary renders joins.
type JoinSyntax int

const (
	// SyntaxSQL92 renders INNER JOIN / LEFT OUTER JOIN ... ON clauses.
	SyntaxSQL92 JoinSyntax = iota
	// SyntaxTraditional lists tables in FROM and puts join conditions in
	// WHERE. Statements with outer joins still use SQL92 syntax.
	SyntaxTraditional
)

func (s JoinSyntax) String() string {
	if s == SyntaxTraditional {
		return "traditional"
	}
	return "sql92"
}

// BooleanRepresentation maps boolean values to what the database stores.
// A string representation renders quoted; integer and boolean
// representations render bare.
type BooleanRepresentation struct {
	True, False any
}

// Represent returns the stored form of b.
func (r BooleanRepresentation) Represent(b bool) any {
	if b {
		return r.True
	}
	return r.False
}

// Common boolean representations.
var (
	BooleanNative = BooleanRepresentation{True: true, False: false}
	BooleanInt    = BooleanRepresentation{True: 1, False: 0}
	BooleanString = BooleanRepresentation{True: "1", False: "0"}
)

// Dictionary is a database dialect: SQL text variance and value conversion.
// It is passed explicitly to everything that renders SQL or reads results.
type Dictionary interface {
	// Platform names the database family.
	Platform() string

	// Rebind converts '?' bind variables to the dialect's placeholder style.
	Rebind(query string) string

	// TableName and ColumnName render identifiers.
	TableName(t *schema.Table) string
	ColumnName(c *schema.Column) string

	// StringLiteral renders s as a quoted SQL string literal.
	StringLiteral(s string) string
	// DateLiteral renders a DATE, TIME or TIMESTAMP literal. v is a
	// time.Time or an already formatted string.
	DateLiteral(kind schema.JavaType, v any) string

	BooleanRepresentation() BooleanRepresentation
	JoinSyntax() JoinSyntax
	SupportsUnion() bool
	SupportsLocking() bool
	ForUpdateClause() string

	// AppendRange restricts rows to the half-open range [start, end).
	AppendRange(buf *SQLBuffer, start, end int64)

	// ToDataStoreValue converts a bind value into what the driver accepts.
	ToDataStoreValue(v any, col *schema.Column) any

	// ReadValue converts a raw driver value into a value of type t. col may
	// be nil.
	ReadValue(raw any, t schema.JavaType, col *schema.Column) (any, error)
}

// SchemaCase is the case identifiers are converted to before rendering.
type SchemaCase int

const (
	CasePreserve SchemaCase = iota
	CaseUpper
	CaseLower
)

// BaseDictionary implements Dictionary for a generic SQL database. Dialects
// configure its fields or embed it and override methods.
type BaseDictionary struct {
	Name           string
	BindType       int
	SchemaCase     SchemaCase
	Booleans       BooleanRepresentation
	Syntax         JoinSyntax
	Union          bool
	Locking        bool
	ForUpdate      string
	UnboundedLimit string
	ReservedWords  map[string]bool
}

// NewBaseDictionary returns a dictionary for generic SQL92 databases.
func NewBaseDictionary() *BaseDictionary {
	return &BaseDictionary{
		Name:      "generic",
		BindType:  sqlx.QUESTION,
		Booleans:  BooleanInt,
		Syntax:    SyntaxSQL92,
		Union:     true,
		Locking:   true,
		ForUpdate: " FOR UPDATE",
		ReservedWords: reserved(
			"SELECT", "FROM", "WHERE", "ORDER", "GROUP", "BY", "USER", "TABLE", "KEY", "VALUE", "INDEX", "DESC",
		),
	}
}

func reserved(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func (d *BaseDictionary) Platform() string { return d.Name }

func (d *BaseDictionary) Rebind(query string) string {
	return sqlx.Rebind(d.BindType, query)
}

// ConvertSchemaCase applies the dictionary's identifier case.
func (d *BaseDictionary) ConvertSchemaCase(name string) string {
	switch d.SchemaCase {
	case CaseUpper:
		return cases.Upper(language.Und).String(name)
	case CaseLower:
		return cases.Lower(language.Und).String(name)
	}
	return name
}

// Identifier converts the case of name and quotes it when reserved.
func (d *BaseDictionary) Identifier(name string) string {
	name = d.ConvertSchemaCase(name)
	if d.ReservedWords[strings.ToUpper(name)] {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return name
}

func (d *BaseDictionary) TableName(t *schema.Table) string {
	if t.Schema() != "" {
		return d.Identifier(t.Schema()) + "." + d.Identifier(t.Name())
	}
	return d.Identifier(t.Name())
}

func (d *BaseDictionary) ColumnName(c *schema.Column) string {
	return d.Identifier(c.Name())
}

func (d *BaseDictionary) StringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (d *BaseDictionary) DateLiteral(kind schema.JavaType, v any) string {
	keyword, text := dateParts(kind, v)
	return keyword + " '" + text + "'"
}

// dateParts returns the SQL keyword and formatted text of a date literal.
func dateParts(kind schema.JavaType, v any) (string, string) {
	layout, keyword := "2006-01-02 15:04:05.999999999", "TIMESTAMP"
	switch kind {
	case schema.JavaSQLDate, schema.JavaDate:
		layout, keyword = "2006-01-02", "DATE"
	case schema.JavaTime:
		layout, keyword = "15:04:05", "TIME"
	}
	if t, ok := v.(time.Time); ok {
		return keyword, t.Format(layout)
	}
	return keyword, strings.Trim(fmt.Sprint(v), "'")
}

func (d *BaseDictionary) BooleanRepresentation() BooleanRepresentation { return d.Booleans }
func (d *BaseDictionary) JoinSyntax() JoinSyntax                       { return d.Syntax }
func (d *BaseDictionary) SupportsUnion() bool                          { return d.Union }
func (d *BaseDictionary) SupportsLocking() bool                        { return d.Locking }
func (d *BaseDictionary) ForUpdateClause() string                      { return d.ForUpdate }

// AppendRange renders LIMIT/OFFSET. An unbounded range with an offset uses
// UnboundedLimit as the LIMIT, or omits LIMIT when it is empty. An inverted
// range renders LIMIT 0.
func (d *BaseDictionary) AppendRange(buf *SQLBuffer, start, end int64) {
	if start <= 0 && end == NoLimit {
		return
	}
	switch {
	case end != NoLimit:
		buf.Append(" LIMIT ").Append(strconv.FormatInt(max(end-max(start, 0), 0), 10))
	case d.UnboundedLimit != "":
		buf.Append(" LIMIT ").Append(d.UnboundedLimit)
	}
	if start > 0 {
		buf.Append(" OFFSET ").Append(strconv.FormatInt(start, 10))
	}
}

func (d *BaseDictionary) ToDataStoreValue(v any, col *schema.Column) any {
	return toDataStoreValue(v, col)
}

func (d *BaseDictionary) ReadValue(raw any, t schema.JavaType, col *schema.Column) (any, error) {
	return readValue(raw, t, col)
}

var _ Dictionary = (*BaseDictionary)(nil)
