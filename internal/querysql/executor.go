package querysql

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pierpaolospaziani/openjpa/internal/exps"
	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/sql"
)

// Executor runs compiled queries against a store.
type Executor struct {
	store  sql.Store
	fetch  *sql.FetchConfiguration
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithFetchConfiguration sets the fetch configuration used for every query.
func WithFetchConfiguration(f *sql.FetchConfiguration) Option {
	return func(e *Executor) { e.fetch = f }
}

// WithLogger sets the executor's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an executor over store.
func NewExecutor(store sql.Store, opts ...Option) *Executor {
	e := &Executor{store: store}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.fetch == nil {
		e.fetch = sql.NewFetchConfiguration()
	}
	if e.fetch.Logger == nil {
		e.fetch.Logger = e.logger
	}
	return e
}

// Fetch returns the executor's fetch configuration.
func (e *Executor) Fetch() *sql.FetchConfiguration { return e.fetch }

// Result is the loaded output of a query. Each row is an *exps.Object when
// the query has no projections, the projected value for one projection, or
// a []any of projected values.
type Result struct {
	Columns []string
	Rows    []any
}

// Execute runs q and loads every row, with its eager relations.
func (e *Executor) Execute(ctx context.Context, q *exps.QueryExpressions, params map[string]any) (*Result, error) {
	st, err := e.Compile(q, params, true)
	if err != nil {
		return nil, err
	}
	res, err := st.Plan.Executor.Execute(ctx, e.store, e.fetch)
	if err != nil {
		return nil, fmt.Errorf("execute %s query: %w", q.Candidate.Name, err)
	}
	defer func() {
		if err := res.Close(); err != nil {
			e.logger.Warn("closing query result failed", "candidate", q.Candidate.Name, "error", err)
		}
	}()

	l := newLoader(st)
	for {
		ok, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("read %s row: %w", q.Candidate.Name, err)
		}
		if !ok {
			break
		}
		if err := l.row(res); err != nil {
			return nil, err
		}
	}
	if err := l.parallel(res); err != nil {
		return nil, err
	}
	e.logger.Debug("query executed",
		"candidate", q.Candidate.Name,
		"rows", len(l.rows),
		"eager", len(st.Eager))
	return &Result{Columns: Columns(q), Rows: l.rows}, nil
}

// Count returns how many rows q returns. Eager loads are never part of the
// count.
func (e *Executor) Count(ctx context.Context, q *exps.QueryExpressions, params map[string]any) (int64, error) {
	st, err := e.Compile(q, params, false)
	if err != nil {
		return 0, err
	}
	n, err := st.Plan.Executor.Count(ctx, e.store, e.fetch)
	if err != nil {
		return 0, fmt.Errorf("count %s query: %w", q.Candidate.Name, err)
	}
	return n, nil
}

// Explain describes the statements Execute and Count would run for q.
func (e *Executor) Explain(q *exps.QueryExpressions, params map[string]any) (*Explanation, error) {
	st, err := e.Compile(q, params, true)
	if err != nil {
		return nil, err
	}
	out := st.Explain()
	counted, err := e.Compile(q, params, false)
	if err != nil {
		return nil, err
	}
	out.Count = counted.Plan.Executor.ToSelectCount().SQL()
	return out, nil
}

// Columns names the columns of a query's rows: the projections, or the
// candidate's fields for object rows.
func Columns(q *exps.QueryExpressions) []string {
	if len(q.Projections) > 0 {
		out := make([]string, len(q.Projections))
		for i, v := range q.Projections {
			out[i] = v.String()
		}
		return out
	}
	var out []string
	for _, f := range q.Candidate.AllFields() {
		if f.Kind == mapping.ToMany && !fetched(q, f) {
			continue
		}
		out = append(out, f.Name)
	}
	return out
}

func fetched(q *exps.QueryExpressions, f *mapping.FieldMapping) bool {
	if f.Eager != mapping.EagerNone {
		return true
	}
	for _, name := range q.Fetch {
		if name == f.Name {
			return true
		}
	}
	return false
}
