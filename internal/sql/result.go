package sql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/text/language"

	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

// Conn is a database connection owned by a store.
type Conn interface {
	Prepare(ctx context.Context, query string) (Stmt, error)
	Close() error
}

// Stmt is a prepared statement.
type Stmt interface {
	Query(ctx context.Context, args ...any) (RowSet, error)
	Close() error
}

// Store supplies connections and the dictionary for them. Transactions are
// the store's business.
type Store interface {
	Dictionary() Dictionary
	Connect(ctx context.Context) (Conn, error)
}

// Result is a cursor over query output rows. Rows are numbered from 0;
// columns are addressed by 1-based index, by label, by *schema.Column, by
// ColumnRef, or by any id the producing select was given.
type Result interface {
	Next() (bool, error)
	Absolute(row int) (bool, error)
	Size() (int, error)
	Row() int
	SupportsRandomAccess() bool

	Contains(id any) bool
	GetObject(id any) (any, error)
	GetObjectAs(id any, t schema.JavaType) (any, error)
	WasNull() bool

	BaseMapping() *mapping.ClassMapping
	Eager(key string) Result
	Close() error
}

// ResultSetResult is a Result over a RowSet. It owns the row set and, unless
// told otherwise, the statement and connection that produced it.
type ResultSetResult struct {
	conn Conn
	stmt Stmt
	rs   RowSet
	dict Dictionary
	sel  *Select

	closeStmt bool
	closeConn bool
	closed    bool

	row     int
	size    int
	wasNull bool
	base    *mapping.ClassMapping

	eager   map[string]*ResultSetResult
	closers []io.Closer
	logger  *slog.Logger
}

// NewResultSetResult wraps rs. conn and stmt may be nil.
func NewResultSetResult(conn Conn, stmt Stmt, rs RowSet, dict Dictionary) *ResultSetResult {
	return &ResultSetResult{
		conn:      conn,
		stmt:      stmt,
		rs:        rs,
		dict:      dict,
		closeStmt: true,
		closeConn: true,
		row:       -1,
		size:      -1,
	}
}

// SetSelect lets ids given to sel address columns of this result.
func (r *ResultSetResult) SetSelect(sel *Select) { r.sel = sel }

// Select returns the select that produced the result, or nil.
func (r *ResultSetResult) Select() *Select { return r.sel }

// SetLogger sets the logger for close failures and lookup misses.
func (r *ResultSetResult) SetLogger(l *slog.Logger) { r.logger = l }

func (r *ResultSetResult) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// SetCloseStatement sets whether Close closes the statement.
func (r *ResultSetResult) SetCloseStatement(b bool) { r.closeStmt = b }

// CloseStatement reports whether Close closes the statement.
func (r *ResultSetResult) CloseStatement() bool { return r.closeStmt }

// SetCloseConnection sets whether Close closes the connection.
func (r *ResultSetResult) SetCloseConnection(b bool) { r.closeConn = b }

// CloseConnection reports whether Close closes the connection.
func (r *ResultSetResult) CloseConnection() bool { return r.closeConn }

func (r *ResultSetResult) Connection() Conn       { return r.conn }
func (r *ResultSetResult) Statement() Stmt        { return r.stmt }
func (r *ResultSetResult) RowSet() RowSet         { return r.rs }
func (r *ResultSetResult) Dictionary() Dictionary { return r.dict }

// SetBaseMapping records the mapping of the current row's candidate.
func (r *ResultSetResult) SetBaseMapping(m *mapping.ClassMapping) { r.base = m }

// BaseMapping returns the mapping set for the current row, or nil.
func (r *ResultSetResult) BaseMapping() *mapping.ClassMapping { return r.base }

// addEager attaches the result of a parallel eager select. It is closed
// with r.
func (r *ResultSetResult) addEager(key string, er *ResultSetResult) {
	if r.eager == nil {
		r.eager = make(map[string]*ResultSetResult)
	}
	r.eager[key] = er
}

// Eager returns the parallel eager result registered under key, or nil.
func (r *ResultSetResult) Eager(key string) Result {
	if er, ok := r.eager[key]; ok {
		return er
	}
	return nil
}

// addCloser registers a resource closed with r.
func (r *ResultSetResult) addCloser(c io.Closer) {
	r.closers = append(r.closers, c)
}

// Next advances to the next row.
func (r *ResultSetResult) Next() (bool, error) {
	if r.closed {
		return false, ErrResultClosed
	}
	ok, err := r.rs.Next()
	if err != nil {
		return false, err
	}
	if ok {
		r.row++
		metricRowsFetched.Inc()
	}
	r.base = nil
	return ok, nil
}

// Absolute moves to the 0-based row. Moving to the row after the current
// one is a plain advance and works on forward-only cursors.
func (r *ResultSetResult) Absolute(row int) (bool, error) {
	if r.closed {
		return false, ErrResultClosed
	}
	if row == r.row+1 {
		return r.Next()
	}
	if r.rs.Type() == ForwardOnly {
		return false, ErrForwardOnly
	}
	ok, err := r.rs.Absolute(row + 1)
	if err != nil {
		return false, err
	}
	r.base = nil
	switch {
	case ok:
		r.row = row
	case row < 0:
		r.row = -1
	default:
		r.row = -1
		n, err := r.Size()
		if err != nil {
			return false, err
		}
		if err := r.rs.AfterLast(); err != nil {
			return false, err
		}
		r.row = n
	}
	return ok, nil
}

// Row returns the 0-based current row, -1 before the first. After a seek
// past the last row it is the row count.
func (r *ResultSetResult) Row() int { return r.row }

// SupportsRandomAccess reports whether Absolute and Size work.
func (r *ResultSetResult) SupportsRandomAccess() bool {
	return r.rs.Type() != ForwardOnly
}

// Size returns the number of rows. It moves to the last row once and puts the
// cursor back where it was.
func (r *ResultSetResult) Size() (int, error) {
	if r.closed {
		return 0, ErrResultClosed
	}
	if r.size != -1 {
		return r.size, nil
	}
	if r.rs.Type() == ForwardOnly {
		return 0, ErrForwardOnly
	}
	if _, err := r.rs.Last(); err != nil {
		return 0, err
	}
	n, err := r.rs.Row()
	if err != nil {
		return 0, err
	}
	if r.row == -1 {
		err = r.rs.BeforeFirst()
	} else {
		_, err = r.rs.Absolute(r.row + 1)
	}
	if err != nil {
		return 0, err
	}
	r.size = n
	return n, nil
}

// Close releases the row set, then the statement and connection when the
// result owns them. Each close is attempted regardless of earlier failures;
// failures are logged and counted, never returned.
func (r *ResultSetResult) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	for _, er := range r.eager {
		_ = er.Close()
	}
	if r.rs != nil {
		r.closeQuietly("rowset", r.rs)
	}
	if r.stmt != nil && r.closeStmt {
		r.closeQuietly("statement", r.stmt)
	}
	if r.conn != nil && r.closeConn {
		r.closeQuietly("connection", r.conn)
	}
	for _, c := range r.closers {
		r.closeQuietly("member", c)
	}
	return nil
}

func (r *ResultSetResult) closeQuietly(resource string, c io.Closer) {
	if err := c.Close(); err != nil {
		metricCloseErrors.WithLabelValues(resource).Inc()
		r.log().Warn("closing result resource", "resource", resource, "error", err)
	}
}

// translate maps a column id to a 1-based index, 0 when not found.
func (r *ResultSetResult) translate(id any) int {
	if n, ok := id.(int); ok {
		return n
	}
	if r.sel != nil {
		if pos := r.sel.IndexOf(id); pos >= 0 {
			return pos + 1
		}
	}
	switch x := id.(type) {
	case string:
		return r.findObject(x)
	case *schema.Column:
		return r.findObject(x.Name())
	case ColumnRef:
		if x.Path == "" {
			return r.findObject(x.Column.Name())
		}
	}
	return 0
}

// findObject looks a column up by label. A failed lookup means "not
// found" and yields 0.
func (r *ResultSetResult) findObject(name string) int {
	idx, err := r.rs.FindColumn(name)
	if err != nil {
		r.log().Debug("column lookup missed", "column", name, "error", err)
		return 0
	}
	return idx
}

func columnOf(id any) *schema.Column {
	switch x := id.(type) {
	case *schema.Column:
		return x
	case ColumnRef:
		return x.Column
	}
	return nil
}

// Contains reports whether id addresses a column of the result.
func (r *ResultSetResult) Contains(id any) bool {
	idx := r.translate(id)
	return idx > 0 && idx <= len(r.rs.Columns())
}

// ContainsAll reports whether every id addresses a column.
func (r *ResultSetResult) ContainsAll(ids ...any) bool {
	for _, id := range ids {
		if !r.Contains(id) {
			return false
		}
	}
	return true
}

// WasNull reports whether the last value read was SQL NULL.
func (r *ResultSetResult) WasNull() bool { return r.wasNull }

func (r *ResultSetResult) read(id any, t schema.JavaType) (any, error) {
	if r.closed {
		return nil, ErrResultClosed
	}
	idx := r.translate(id)
	if idx <= 0 {
		return nil, fmt.Errorf("column %v is not in the result", id)
	}
	raw, err := r.rs.Value(idx)
	if err != nil {
		return nil, err
	}
	r.wasNull = raw == nil
	v, err := r.dict.ReadValue(raw, t, columnOf(id))
	if err != nil {
		return nil, fmt.Errorf("column %v: %w", id, err)
	}
	return v, nil
}

// GetObject reads a value typed by the column's metadata. Character large
// objects read as strings and binary columns as bytes.
func (r *ResultSetResult) GetObject(id any) (any, error) {
	t := schema.JavaObject
	if col := columnOf(id); col != nil {
		t = col.JavaType()
		switch {
		case t == schema.JavaString && col.IsClob():
			t = schema.JavaClob
		case (t == schema.JavaObject || t == schema.JavaDefault) && (col.Type() == schema.Blob || col.Type() == schema.Varbinary):
			t = schema.JavaBytes
		}
	}
	return r.read(id, t)
}

// GetObjectAs reads a value converted to t.
func (r *ResultSetResult) GetObjectAs(id any, t schema.JavaType) (any, error) {
	return r.read(id, t)
}

func readAs[T any](r *ResultSetResult, id any, t schema.JavaType) (T, error) {
	var zero T
	v, err := r.read(id, t)
	if err != nil || v == nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("column %v: read %T, want %T", id, v, zero)
	}
	return typed, nil
}

func (r *ResultSetResult) GetBoolean(id any) (bool, error) {
	return readAs[bool](r, id, schema.JavaBoolean)
}

func (r *ResultSetResult) GetByte(id any) (int8, error) {
	return readAs[int8](r, id, schema.JavaByte)
}

func (r *ResultSetResult) GetChar(id any) (rune, error) {
	return readAs[rune](r, id, schema.JavaChar)
}

func (r *ResultSetResult) GetShort(id any) (int16, error) {
	return readAs[int16](r, id, schema.JavaShort)
}

func (r *ResultSetResult) GetInt(id any) (int32, error) {
	return readAs[int32](r, id, schema.JavaInt)
}

func (r *ResultSetResult) GetLong(id any) (int64, error) {
	return readAs[int64](r, id, schema.JavaLong)
}

func (r *ResultSetResult) GetFloat(id any) (float32, error) {
	return readAs[float32](r, id, schema.JavaFloat)
}

func (r *ResultSetResult) GetDouble(id any) (float64, error) {
	return readAs[float64](r, id, schema.JavaDouble)
}

func (r *ResultSetResult) GetBigDecimal(id any) (*big.Float, error) {
	return readAs[*big.Float](r, id, schema.JavaBigDecimal)
}

func (r *ResultSetResult) GetBigInteger(id any) (*big.Int, error) {
	return readAs[*big.Int](r, id, schema.JavaBigInteger)
}

// GetNumber reads an integer or floating point value as stored.
func (r *ResultSetResult) GetNumber(id any) (any, error) {
	return r.read(id, schema.JavaNumber)
}

// GetString reads a string. Columns flagged CLOB are read through the
// large-object path.
func (r *ResultSetResult) GetString(id any) (string, error) {
	t := schema.JavaString
	if col := columnOf(id); col != nil && col.IsClob() {
		t = schema.JavaClob
	}
	return readAs[string](r, id, t)
}

func (r *ResultSetResult) GetBytes(id any) ([]byte, error) {
	return readAs[[]byte](r, id, schema.JavaBytes)
}

func (r *ResultSetResult) GetDate(id any) (time.Time, error) {
	return readAs[time.Time](r, id, schema.JavaDate)
}

func (r *ResultSetResult) GetTime(id any) (time.Time, error) {
	return readAs[time.Time](r, id, schema.JavaTime)
}

func (r *ResultSetResult) GetTimestamp(id any) (time.Time, error) {
	return readAs[time.Time](r, id, schema.JavaTimestamp)
}

func (r *ResultSetResult) GetArray(id any) ([]any, error) {
	return readAs[[]any](r, id, schema.JavaArray)
}

func (r *ResultSetResult) GetLocale(id any) (language.Tag, error) {
	return readAs[language.Tag](r, id, schema.JavaLocale)
}

// GetCharacterStream reads a character large object as a stream.
func (r *ResultSetResult) GetCharacterStream(id any) (io.Reader, error) {
	return readAs[io.Reader](r, id, schema.JavaCharStream)
}

func (r *ResultSetResult) GetASCIIStream(id any) (io.Reader, error) {
	return readAs[io.Reader](r, id, schema.JavaAsciiStream)
}

func (r *ResultSetResult) GetBinaryStream(id any) (io.Reader, error) {
	return readAs[io.Reader](r, id, schema.JavaBinaryStream)
}

var _ Result = (*ResultSetResult)(nil)

// IsCursorError reports whether err is a cursor misuse error.
func IsCursorError(err error) bool {
	return errors.Is(err, ErrForwardOnly) || errors.Is(err, ErrResultClosed) ||
		errors.Is(err, ErrAbsoluteUnsupported) || errors.Is(err, ErrNoRow)
}
