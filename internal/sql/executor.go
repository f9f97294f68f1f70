package sql

import (
	"context"
	"fmt"
	"time"
)

// SelectExecutor is a statement that can be rendered and run: a Select or a
// Union.
type SelectExecutor interface {
	Dictionary() Dictionary

	ToSelect(forUpdate bool) *SQLBuffer
	ToSelectCount() *SQLBuffer
	SQL() string

	Execute(ctx context.Context, store Store, fetch *FetchConfiguration) (*ResultSetResult, error)
	Count(ctx context.Context, store Store, fetch *FetchConfiguration) (int64, error)

	SetRange(start, end int64)
	StartIndex() int64
	EndIndex() int64

	SetDistinct(distinct bool)
	IsDistinct() bool
	SetLRS(lrs bool)
	IsLRS() bool
	SetExpectedResultCount(n int, force bool)
	ExpectedResultCount() int

	SupportsRandomAccess(forUpdate bool) bool
	SupportsLocking() bool
	HasMultipleSelects() bool

	String() string
}

// Execute runs the statement, then each parallel eager select, and returns
// a result owning all of them.
func (s *Select) Execute(ctx context.Context, store Store, fetch *FetchConfiguration) (*ResultSetResult, error) {
	if fetch == nil {
		fetch = NewFetchConfiguration()
	}
	forUpdate := fetch.ForUpdate && s.SupportsLocking()
	rsType := fetch.ResultSetType
	if s.lrs {
		rsType = ForwardOnly
	}
	res, err := execute(ctx, store, s.ToSelect(forUpdate), fetch, kindSelect, rsType)
	if err != nil {
		return nil, err
	}
	res.SetSelect(s)
	for _, key := range s.eagerKeys {
		er, err := s.eager[key].Execute(ctx, store, fetch)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("eager select %s: %w", key, err)
		}
		res.addEager(key, er)
	}
	return res, nil
}

// Count runs the COUNT(*) form of the statement.
func (s *Select) Count(ctx context.Context, store Store, fetch *FetchConfiguration) (int64, error) {
	if fetch == nil {
		fetch = NewFetchConfiguration()
	}
	return count(ctx, store, s.ToSelectCount(), fetch)
}

func count(ctx context.Context, store Store, buf *SQLBuffer, fetch *FetchConfiguration) (int64, error) {
	res, err := execute(ctx, store, buf, fetch, kindCount, ForwardOnly)
	if err != nil {
		return 0, err
	}
	defer res.Close()
	ok, err := res.Next()
	if err != nil || !ok {
		return 0, err
	}
	return res.GetLong(1)
}

// execute prepares and runs buf on a new connection from store.
func execute(ctx context.Context, store Store, buf *SQLBuffer, fetch *FetchConfiguration, kind string, rsType ResultSetType) (*ResultSetResult, error) {
	log := fetch.logger()
	id := fetch.nextID()
	query := buf.Rebound()
	params := buf.Params()
	log.Debug("executing statement", "id", id, "kind", kind, "sql", query, "params", len(params))

	start := time.Now()
	fail := func(format string, err error) error {
		metricStatementErrors.WithLabelValues(kind).Inc()
		log.Debug("statement failed", "id", id, "error", err)
		return fmt.Errorf(format+": %w", id, err)
	}

	conn, err := store.Connect(ctx)
	if err != nil {
		return nil, fail("statement %s: connecting", err)
	}
	stmt, err := conn.Prepare(ctx, query)
	if err != nil {
		_ = conn.Close()
		return nil, fail("statement %s: preparing", err)
	}
	rs, err := stmt.Query(ctx, params...)
	if err != nil {
		_ = stmt.Close()
		_ = conn.Close()
		return nil, fail("statement %s: executing", err)
	}
	if rsType == ScrollInsensitive && rs.Type() == ForwardOnly {
		buffered, err := BufferRowSet(rs)
		if err != nil {
			_ = stmt.Close()
			_ = conn.Close()
			return nil, fail("statement %s: reading rows", err)
		}
		rs = buffered
	}
	metricStatements.WithLabelValues(kind).Inc()
	metricStatementDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	res := NewResultSetResult(conn, stmt, rs, store.Dictionary())
	res.SetCloseStatement(fetch.CloseStatement)
	res.SetCloseConnection(fetch.CloseConnection)
	res.SetLogger(log)
	return res, nil
}
