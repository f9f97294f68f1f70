package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/pierpaolospaziani/openjpa/internal/sql"
)

// ErrFakeClose is the error fakes return from Close when told to fail.
var ErrFakeClose = errors.New("fake close failure")

// CloseLog records the order in which fake resources were closed.
type CloseLog struct {
	mu     sync.Mutex
	closed []string
}

func (l *CloseLog) record(name string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = append(l.closed, name)
}

// Closed returns the names of closed resources in close order.
func (l *CloseLog) Closed() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.closed...)
}

// FakeRowSet is a buffered row set that records and optionally fails Close.
type FakeRowSet struct {
	*sql.BufferedRowSet
	Log       *CloseLog
	FailClose bool
	Closes    int
}

// NewFakeRowSet returns a scrollable row set over rows.
func NewFakeRowSet(log *CloseLog, cols []string, rows ...[]any) *FakeRowSet {
	return &FakeRowSet{BufferedRowSet: sql.NewBufferedRowSet(cols, rows), Log: log}
}

func (f *FakeRowSet) Close() error {
	f.Closes++
	f.Log.record("rowset")
	_ = f.BufferedRowSet.Close()
	if f.FailClose {
		return ErrFakeClose
	}
	return nil
}

// ForwardRowSet restricts a row set to forward movement.
type ForwardRowSet struct {
	sql.RowSet
}

func (f ForwardRowSet) Type() sql.ResultSetType { return sql.ForwardOnly }

func (f ForwardRowSet) Absolute(row int) (bool, error) {
	cur, _ := f.RowSet.Row()
	if row == cur+1 {
		return f.RowSet.Next()
	}
	return false, sql.ErrForwardOnly
}

func (f ForwardRowSet) Last() (bool, error) { return false, sql.ErrForwardOnly }
func (f ForwardRowSet) BeforeFirst() error  { return sql.ErrForwardOnly }

// FakeStmt serves a fixed row set and records queries.
type FakeStmt struct {
	Rows      sql.RowSet
	QueryErr  error
	Log       *CloseLog
	FailClose bool
	Closes    int
	Args      [][]any
}

func (s *FakeStmt) Query(ctx context.Context, args ...any) (sql.RowSet, error) {
	s.Args = append(s.Args, args)
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	return s.Rows, nil
}

func (s *FakeStmt) Close() error {
	s.Closes++
	s.Log.record("statement")
	if s.FailClose {
		return ErrFakeClose
	}
	return nil
}

// FakeConn hands out Stmt for every Prepare.
type FakeConn struct {
	Stmt       *FakeStmt
	PrepareErr error
	Log        *CloseLog
	FailClose  bool
	Closes     int
	Queries    []string
}

func (c *FakeConn) Prepare(ctx context.Context, query string) (sql.Stmt, error) {
	c.Queries = append(c.Queries, query)
	if c.PrepareErr != nil {
		return nil, c.PrepareErr
	}
	return c.Stmt, nil
}

func (c *FakeConn) Close() error {
	c.Closes++
	c.Log.record("connection")
	if c.FailClose {
		return ErrFakeClose
	}
	return nil
}

// FakeStore hands out Conn for every Connect.
type FakeStore struct {
	Dict       sql.Dictionary
	Conn       *FakeConn
	ConnectErr error
	Connects   int
}

func (s *FakeStore) Dictionary() sql.Dictionary { return s.Dict }

func (s *FakeStore) Connect(ctx context.Context) (sql.Conn, error) {
	s.Connects++
	if s.ConnectErr != nil {
		return nil, s.ConnectErr
	}
	return s.Conn, nil
}

// NewFakeStore wires a store, connection, statement and row set that all
// record closes into one log.
func NewFakeStore(dict sql.Dictionary, rows *FakeRowSet) (*FakeStore, *CloseLog) {
	log := &CloseLog{}
	rows.Log = log
	stmt := &FakeStmt{Rows: rows, Log: log}
	conn := &FakeConn{Stmt: stmt, Log: log}
	return &FakeStore{Dict: dict, Conn: conn}, log
}
