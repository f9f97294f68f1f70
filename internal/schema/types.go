package schema

import (
	"math/big"
	"time"

	"golang.org/x/text/language"
)

// JavaType identifies the value type a column or expression materializes to.
// The codes mirror the JDBC-era type codes used by the typed getters.
type JavaType int

const (
	// JavaDefault lets the accessor decide (JDBC_DEFAULT).
	JavaDefault JavaType = iota - 1
	JavaBoolean
	JavaByte
	JavaChar
	JavaDouble
	JavaFloat
	JavaInt
	JavaLong
	JavaShort
	JavaObject
	JavaString
	JavaNumber
	JavaBigDecimal
	JavaBigInteger
	JavaDate
	JavaLocale
	JavaArray
	JavaEntity
	JavaCollection
	JavaMap
	JavaSQLArray
	JavaAsciiStream
	JavaBinaryStream
	JavaBlob
	JavaBytes
	JavaCharStream
	JavaClob
	JavaSQLDate
	JavaSQLObject
	JavaTime
	JavaTimestamp
)

var javaTypeNames = map[JavaType]string{
	JavaDefault:      "default",
	JavaBoolean:      "boolean",
	JavaByte:         "byte",
	JavaChar:         "char",
	JavaDouble:       "double",
	JavaFloat:        "float",
	JavaInt:          "int",
	JavaLong:         "long",
	JavaShort:        "short",
	JavaObject:       "object",
	JavaString:       "string",
	JavaNumber:       "number",
	JavaBigDecimal:   "bigdecimal",
	JavaBigInteger:   "biginteger",
	JavaDate:         "date",
	JavaLocale:       "locale",
	JavaArray:        "array",
	JavaEntity:       "entity",
	JavaCollection:   "collection",
	JavaMap:          "map",
	JavaSQLArray:     "sqlarray",
	JavaAsciiStream:  "asciistream",
	JavaBinaryStream: "binarystream",
	JavaBlob:         "blob",
	JavaBytes:        "bytes",
	JavaCharStream:   "charstream",
	JavaClob:         "clob",
	JavaSQLDate:      "sqldate",
	JavaSQLObject:    "sqlobject",
	JavaTime:         "time",
	JavaTimestamp:    "timestamp",
}

func (t JavaType) String() string {
	if name, ok := javaTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseJavaType resolves a type name as written in mapping files.
func ParseJavaType(name string) (JavaType, bool) {
	for t, n := range javaTypeNames {
		if n == name {
			return t, true
		}
	}
	switch name {
	case "integer":
		return JavaInt, true
	case "bool":
		return JavaBoolean, true
	case "decimal":
		return JavaBigDecimal, true
	case "text":
		return JavaString, true
	}
	return JavaObject, false
}

// IsNumeric reports whether t is one of the numeric value types.
func (t JavaType) IsNumeric() bool {
	switch t {
	case JavaByte, JavaShort, JavaInt, JavaLong, JavaFloat, JavaDouble,
		JavaNumber, JavaBigDecimal, JavaBigInteger:
		return true
	}
	return false
}

// IsIntegral reports whether t holds whole numbers only.
func (t JavaType) IsIntegral() bool {
	switch t {
	case JavaByte, JavaShort, JavaInt, JavaLong, JavaBigInteger:
		return true
	}
	return false
}

// IsTemporal reports whether t is a date or time type.
func (t JavaType) IsTemporal() bool {
	switch t {
	case JavaDate, JavaSQLDate, JavaTime, JavaTimestamp:
		return true
	}
	return false
}

// TypeOf returns the JavaType of a Go value as produced by the typed getters
// and by in-memory evaluation.
func TypeOf(v any) JavaType {
	switch v.(type) {
	case nil:
		return JavaObject
	case bool:
		return JavaBoolean
	case int8:
		return JavaByte
	case int16:
		return JavaShort
	case int32:
		return JavaInt
	case int:
		return JavaLong
	case int64:
		return JavaLong
	case float32:
		return JavaFloat
	case float64:
		return JavaDouble
	case string:
		return JavaString
	case *big.Float:
		return JavaBigDecimal
	case *big.Int:
		return JavaBigInteger
	case time.Time:
		return JavaTimestamp
	case []byte:
		return JavaBytes
	case []any:
		return JavaArray
	case language.Tag:
		return JavaLocale
	case map[string]any:
		return JavaEntity
	}
	return JavaObject
}

// SQLType is the declared database type of a column.
type SQLType int

const (
	Varchar SQLType = iota
	Char
	Clob
	Integer
	Bigint
	Smallint
	Tinyint
	Double
	Real
	Numeric
	Decimal
	Boolean
	Bit
	Date
	Time
	Timestamp
	Blob
	Varbinary
	Array
	Other
)

var sqlTypeNames = [...]string{
	Varchar:   "VARCHAR",
	Char:      "CHAR",
	Clob:      "CLOB",
	Integer:   "INTEGER",
	Bigint:    "BIGINT",
	Smallint:  "SMALLINT",
	Tinyint:   "TINYINT",
	Double:    "DOUBLE",
	Real:      "REAL",
	Numeric:   "NUMERIC",
	Decimal:   "DECIMAL",
	Boolean:   "BOOLEAN",
	Bit:       "BIT",
	Date:      "DATE",
	Time:      "TIME",
	Timestamp: "TIMESTAMP",
	Blob:      "BLOB",
	Varbinary: "VARBINARY",
	Array:     "ARRAY",
	Other:     "OTHER",
}

func (t SQLType) String() string {
	if t >= 0 && int(t) < len(sqlTypeNames) {
		return sqlTypeNames[t]
	}
	return "OTHER"
}

// DefaultSQLType picks a column type for a value type when a mapping does
// not declare one.
func DefaultSQLType(t JavaType) SQLType {
	switch t {
	case JavaBoolean:
		return Boolean
	case JavaByte:
		return Tinyint
	case JavaShort:
		return Smallint
	case JavaInt:
		return Integer
	case JavaLong, JavaBigInteger:
		return Bigint
	case JavaFloat:
		return Real
	case JavaDouble:
		return Double
	case JavaBigDecimal, JavaNumber:
		return Decimal
	case JavaDate, JavaTimestamp:
		return Timestamp
	case JavaSQLDate:
		return Date
	case JavaTime:
		return Time
	case JavaBytes, JavaBlob:
		return Blob
	case JavaClob:
		return Clob
	case JavaSQLArray:
		return Array
	}
	return Varchar
}
