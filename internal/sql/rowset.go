package sql

import (
	dbsql "database/sql"
	"errors"
	"fmt"
	"strings"
)

// RowSet is a cursor over the rows of one executed statement. Rows and
// columns are numbered from 1.
type RowSet interface {
	Next() (bool, error)
	First() (bool, error)
	Last() (bool, error)
	Absolute(row int) (bool, error)
	BeforeFirst() error
	AfterLast() error

	// Row returns the current row number, 0 when not on a row.
	Row() (int, error)
	Type() ResultSetType

	Columns() []string
	FindColumn(name string) (int, error)
	Value(idx int) (any, error)

	Close() error
}

func findColumn(cols []string, name string) (int, error) {
	for i, c := range cols {
		if strings.EqualFold(c, name) {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("column %q not found", name)
}

func valueAt(cur []any, idx int) (any, error) {
	if cur == nil {
		return nil, ErrNoRow
	}
	if idx < 1 || idx > len(cur) {
		return nil, fmt.Errorf("column index %d out of range [1, %d]", idx, len(cur))
	}
	return cur[idx-1], nil
}

// RowsRowSet streams rows from the driver. It is forward-only.
type RowsRowSet struct {
	rows   *dbsql.Rows
	cols   []string
	cur    []any
	row    int
	done   bool
	closed bool
}

// NewRowsRowSet wraps rows. The row set owns rows and closes them.
func NewRowsRowSet(rows *dbsql.Rows) (*RowsRowSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	return &RowsRowSet{rows: rows, cols: cols}, nil
}

func (rs *RowsRowSet) Next() (bool, error) {
	if rs.closed {
		return false, ErrResultClosed
	}
	if rs.done {
		return false, nil
	}
	if !rs.rows.Next() {
		rs.done = true
		rs.cur = nil
		if err := rs.rows.Err(); err != nil {
			return false, fmt.Errorf("iterating rows: %w", err)
		}
		return false, nil
	}
	vals := make([]any, len(rs.cols))
	ptrs := make([]any, len(rs.cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rs.rows.Scan(ptrs...); err != nil {
		return false, fmt.Errorf("scanning row: %w", err)
	}
	rs.cur = vals
	rs.row++
	return true, nil
}

func (rs *RowsRowSet) First() (bool, error) {
	if rs.row == 0 && !rs.done {
		return rs.Next()
	}
	return false, ErrForwardOnly
}

func (rs *RowsRowSet) Absolute(row int) (bool, error) {
	if row == rs.row+1 {
		return rs.Next()
	}
	return false, ErrForwardOnly
}

func (rs *RowsRowSet) Last() (bool, error) { return false, ErrForwardOnly }
func (rs *RowsRowSet) BeforeFirst() error  { return ErrForwardOnly }
func (rs *RowsRowSet) AfterLast() error    { return ErrForwardOnly }

func (rs *RowsRowSet) Row() (int, error) {
	if rs.cur == nil {
		return 0, nil
	}
	return rs.row, nil
}

func (rs *RowsRowSet) Type() ResultSetType { return ForwardOnly }
func (rs *RowsRowSet) Columns() []string   { return rs.cols }

func (rs *RowsRowSet) FindColumn(name string) (int, error) {
	return findColumn(rs.cols, name)
}

func (rs *RowsRowSet) Value(idx int) (any, error) {
	return valueAt(rs.cur, idx)
}

// Close is idempotent.
func (rs *RowsRowSet) Close() error {
	if rs.closed {
		return nil
	}
	rs.closed = true
	return rs.rows.Close()
}

// BufferedRowSet holds all rows in memory and supports every movement.
type BufferedRowSet struct {
	cols   []string
	rows   [][]any
	pos    int
	closed bool
}

// NewBufferedRowSet returns a row set over rows.
func NewBufferedRowSet(cols []string, rows [][]any) *BufferedRowSet {
	return &BufferedRowSet{cols: cols, rows: rows}
}

// BufferRowSet reads every remaining row of src into memory and closes src.
func BufferRowSet(src RowSet) (*BufferedRowSet, error) {
	defer src.Close()
	cols := src.Columns()
	var rows [][]any
	for {
		ok, err := src.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		row := make([]any, len(cols))
		for i := range row {
			v, err := src.Value(i + 1)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return NewBufferedRowSet(cols, rows), nil
}

// Len returns the number of rows.
func (rs *BufferedRowSet) Len() int { return len(rs.rows) }

func (rs *BufferedRowSet) Next() (bool, error) {
	if rs.closed {
		return false, ErrResultClosed
	}
	if rs.pos <= len(rs.rows) {
		rs.pos++
	}
	return rs.pos <= len(rs.rows), nil
}

func (rs *BufferedRowSet) First() (bool, error) { return rs.Absolute(1) }

func (rs *BufferedRowSet) Last() (bool, error) {
	if len(rs.rows) == 0 {
		rs.pos = 0
		return false, nil
	}
	return rs.Absolute(len(rs.rows))
}

func (rs *BufferedRowSet) Absolute(row int) (bool, error) {
	if rs.closed {
		return false, ErrResultClosed
	}
	switch {
	case row < 1:
		rs.pos = 0
		return false, nil
	case row > len(rs.rows):
		rs.pos = len(rs.rows) + 1
		return false, nil
	}
	rs.pos = row
	return true, nil
}

func (rs *BufferedRowSet) BeforeFirst() error {
	rs.pos = 0
	return nil
}

func (rs *BufferedRowSet) AfterLast() error {
	rs.pos = len(rs.rows) + 1
	return nil
}

func (rs *BufferedRowSet) Row() (int, error) {
	if rs.pos < 1 || rs.pos > len(rs.rows) {
		return 0, nil
	}
	return rs.pos, nil
}

func (rs *BufferedRowSet) Type() ResultSetType { return ScrollInsensitive }
func (rs *BufferedRowSet) Columns() []string   { return rs.cols }

func (rs *BufferedRowSet) FindColumn(name string) (int, error) {
	return findColumn(rs.cols, name)
}

func (rs *BufferedRowSet) Value(idx int) (any, error) {
	if rs.pos < 1 || rs.pos > len(rs.rows) {
		return nil, ErrNoRow
	}
	return valueAt(rs.rows[rs.pos-1], idx)
}

func (rs *BufferedRowSet) Close() error {
	rs.closed = true
	return nil
}

// DistributedRowSet chains several same-shaped row sets into one
// forward cursor. Empty members are dropped when added. SetRange limits the
// chain to a window of its rows.
type DistributedRowSet struct {
	members []RowSet
	cur     int
	pos     int64 // chain rows consumed, 1-based row of the cursor
	start   int64
	end     int64
}

// NewDistributedRowSet returns an empty chain.
func NewDistributedRowSet() *DistributedRowSet {
	return &DistributedRowSet{cur: -1, end: NoLimit}
}

// SetRange restricts the chain to its rows in the half-open range
// [start, end), counted across members.
func (d *DistributedRowSet) SetRange(start, end int64) {
	d.start, d.end = max(start, 0), end
}

func (d *DistributedRowSet) windowed() bool { return d.start > 0 || d.end != NoLimit }

// Add appends rs when it has at least one row, and closes it otherwise.
// Forward-only members are buffered first so they can be tested for rows.
func (d *DistributedRowSet) Add(rs RowSet) (bool, error) {
	if rs.Type() == ForwardOnly {
		buffered, err := BufferRowSet(rs)
		if err != nil {
			return false, err
		}
		rs = buffered
	}
	ok, err := rs.First()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, rs.Close()
	}
	if err := rs.BeforeFirst(); err != nil {
		return false, err
	}
	d.members = append(d.members, rs)
	return true, nil
}

// Members returns the non-empty members.
func (d *DistributedRowSet) Members() []RowSet { return d.members }

func (d *DistributedRowSet) Next() (bool, error) {
	for d.pos < d.start {
		ok, err := d.advance()
		if err != nil || !ok {
			return false, err
		}
	}
	if d.pos >= d.end {
		d.cur = len(d.members)
		return false, nil
	}
	return d.advance()
}

func (d *DistributedRowSet) advance() (bool, error) {
	if d.cur < 0 {
		d.cur = 0
	}
	for d.cur < len(d.members) {
		ok, err := d.members[d.cur].Next()
		if err != nil {
			return false, err
		}
		if ok {
			d.pos++
			return true, nil
		}
		d.cur++
	}
	return false, nil
}

func (d *DistributedRowSet) First() (bool, error) {
	if err := d.BeforeFirst(); err != nil {
		return false, err
	}
	return d.Next()
}

func (d *DistributedRowSet) Last() (bool, error) {
	if len(d.members) == 0 {
		return false, nil
	}
	if d.windowed() {
		last, err := d.lastRow()
		if err != nil {
			return false, err
		}
		if err := d.BeforeFirst(); err != nil {
			return false, err
		}
		if last <= d.start {
			return false, d.AfterLast()
		}
		for d.pos < last {
			if ok, err := d.advance(); err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
	for _, m := range d.members[:len(d.members)-1] {
		if err := m.AfterLast(); err != nil {
			return false, err
		}
	}
	d.cur = len(d.members) - 1
	ok, err := d.members[d.cur].Last()
	if ok {
		if n, lerr := d.lastRow(); lerr == nil {
			d.pos = n
		}
	}
	return ok, err
}

// lastRow returns the 1-based chain row of the last row in the window. It
// needs members that know their length.
func (d *DistributedRowSet) lastRow() (int64, error) {
	var total int64
	for _, m := range d.members {
		b, ok := m.(interface{ Len() int })
		if !ok {
			return 0, ErrForwardOnly
		}
		total += int64(b.Len())
	}
	return min(total, d.end), nil
}

func (d *DistributedRowSet) BeforeFirst() error {
	for _, m := range d.members {
		if err := m.BeforeFirst(); err != nil {
			return err
		}
	}
	d.cur = -1
	d.pos = 0
	return nil
}

func (d *DistributedRowSet) AfterLast() error {
	for _, m := range d.members {
		if err := m.AfterLast(); err != nil {
			return err
		}
	}
	d.cur = len(d.members)
	return nil
}

// IsFirst reports whether the cursor is on the first row of the window.
func (d *DistributedRowSet) IsFirst() (bool, error) {
	if _, err := d.current(); err != nil {
		return false, nil
	}
	return d.pos == d.start+1, nil
}

// IsLast reports whether the cursor is on the last row of the window.
func (d *DistributedRowSet) IsLast() (bool, error) {
	if _, err := d.current(); err != nil {
		return false, nil
	}
	last, err := d.lastRow()
	if errors.Is(err, ErrForwardOnly) {
		return false, nil
	}
	return d.pos > d.start && d.pos == last, err
}

func (d *DistributedRowSet) Absolute(int) (bool, error) { return false, ErrAbsoluteUnsupported }
func (d *DistributedRowSet) Row() (int, error)          { return 0, ErrAbsoluteUnsupported }
func (d *DistributedRowSet) Type() ResultSetType        { return ForwardOnly }

func (d *DistributedRowSet) Columns() []string {
	if len(d.members) == 0 {
		return nil
	}
	return d.members[0].Columns()
}

func (d *DistributedRowSet) current() (RowSet, error) {
	if d.cur < 0 || d.cur >= len(d.members) {
		return nil, ErrNoRow
	}
	return d.members[d.cur], nil
}

func (d *DistributedRowSet) FindColumn(name string) (int, error) {
	if len(d.members) == 0 {
		return 0, fmt.Errorf("column %q not found", name)
	}
	return d.members[0].FindColumn(name)
}

func (d *DistributedRowSet) Value(idx int) (any, error) {
	m, err := d.current()
	if err != nil {
		return nil, err
	}
	return m.Value(idx)
}

// Close closes every member, returning all failures.
func (d *DistributedRowSet) Close() error {
	var errs []error
	for _, m := range d.members {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
