package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pierpaolospaziani/openjpa/internal/exps"
	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/queryir"
	"github.com/pierpaolospaziani/openjpa/internal/querysql"
	"github.com/pierpaolospaziani/openjpa/internal/sql"
	"github.com/pierpaolospaziani/openjpa/internal/store"
	"github.com/pierpaolospaziani/openjpa/internal/testutil"
)

// Harness runs one scenario against its own database.
type Harness struct {
	store  *store.Store
	repo   *mapping.Repository
	exec   *querysql.Executor
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, and
// statement ids come from a sequence named after the scenario, so results
// are reproducible.
//
// Execution flow:
// 1. Load the mappings and create their tables
// 2. Insert the seed rows
// 3. Compile, explain and execute the query
// 4. Evaluate assertions
//
// An error is returned when the scenario cannot be set up. Query failures
// are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo, err := loadMappings(scenario)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(":memory:", store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	if err := st.SyncSchema(ctx, repo); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	h := &Harness{
		store:  st,
		repo:   repo,
		exec:   querysql.NewExecutor(st, querysql.WithFetchConfiguration(fetchConfiguration(scenario, logger)), querysql.WithLogger(logger)),
		logger: logger,
	}
	if err := h.seed(ctx, scenario.Seed); err != nil {
		return nil, fmt.Errorf("failed to seed: %w", err)
	}

	result := NewResult()
	q, res, err := h.query(ctx, scenario, result)
	if scenario.ExpectError != "" {
		switch {
		case err == nil:
			result.AddError(fmt.Sprintf("expected %s error, query succeeded", scenario.ExpectError))
		case !hasErrorCode(err, scenario.ExpectError):
			result.AddError(fmt.Sprintf("expected %s error, got: %v", scenario.ExpectError, err))
		}
		if err != nil {
			result.Error = err.Error()
		}
		return result, nil
	}
	if err != nil {
		result.AddError(err.Error())
		return result, nil
	}

	result.Columns = res.Columns
	result.Rows = NormalizeRows(res.Rows)

	actx := &AssertionContext{
		Ctx:      ctx,
		Executor: h.exec,
		Scenario: scenario,
		Query:    q,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func loadMappings(s *Scenario) (*mapping.Repository, error) {
	var (
		repo *mapping.Repository
		err  error
	)
	if s.Mapping != "" {
		repo, err = mapping.LoadString(s.Mapping)
	} else {
		repo, err = mapping.LoadDir(s.Mappings)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}
	return repo, nil
}

func fetchConfiguration(s *Scenario, logger *slog.Logger) *sql.FetchConfiguration {
	fetch := sql.NewFetchConfiguration()
	if s.EagerMode != "" {
		fetch.EagerMode, _ = sql.ParseEagerMode(s.EagerMode)
	}
	if s.UseLiteralInSQL {
		fetch.SetHint(sql.HintUseLiteralInSQL, true)
	}
	fetch.IDs = testutil.NewSequenceIDGenerator(s.Name)
	fetch.Logger = logger
	return fetch
}

// seed inserts rows in order.
func (h *Harness) seed(ctx context.Context, rows []SeedRow) error {
	for i, row := range rows {
		m, ok := h.repo.Mapping(row.Entity)
		if !ok {
			return fmt.Errorf("seed[%d]: unknown entity %q", i, row.Entity)
		}
		if err := h.store.InsertEntity(ctx, m, row.Values); err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
	}
	h.logger.Debug("seeded", "rows", len(rows))
	return nil
}

// query compiles, explains and executes the scenario's query, recording
// the explained SQL in result.
func (h *Harness) query(ctx context.Context, s *Scenario, result *Result) (*exps.QueryExpressions, *querysql.Result, error) {
	q, err := queryir.Compile(s.Document(), h.repo)
	if err != nil {
		return nil, nil, err
	}
	explained, err := h.exec.Explain(q, s.Params)
	if err != nil {
		return nil, nil, err
	}
	result.SQL = explained.String()
	res, err := h.exec.Execute(ctx, q, s.Params)
	if err != nil {
		return nil, nil, err
	}
	return q, res, nil
}

func hasErrorCode(err error, code string) bool {
	switch code {
	case ErrorUnsupported:
		return exps.IsUnsupported(err)
	case ErrorInvalidQuery:
		return exps.IsInvalidQuery(err)
	case ErrorUnknownField:
		return exps.IsUnknownField(err)
	}
	return false
}
