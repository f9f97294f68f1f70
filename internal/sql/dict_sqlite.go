package sql

import (
	"github.com/jmoiron/sqlx"

	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

// SQLiteDictionary is the dialect of SQLite 3.
type SQLiteDictionary struct {
	*BaseDictionary
}

// NewSQLiteDictionary returns the SQLite dialect.
func NewSQLiteDictionary() *SQLiteDictionary {
	d := NewBaseDictionary()
	d.Name = "sqlite"
	d.BindType = sqlx.QUESTION
	d.Booleans = BooleanInt
	d.Locking = false
	d.ForUpdate = ""
	d.UnboundedLimit = "-1"
	return &SQLiteDictionary{BaseDictionary: d}
}

// DateLiteral renders dates as quoted text, which is how SQLite compares
// them.
func (d *SQLiteDictionary) DateLiteral(kind schema.JavaType, v any) string {
	_, text := dateParts(kind, v)
	return d.StringLiteral(text)
}
