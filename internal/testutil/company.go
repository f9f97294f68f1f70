package testutil

import (
	"context"
	_ "embed"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/store"
)

// CompanyCUE is the mapping of the company fixture: departments, employees
// with a manager subclass in the same table, and documents with an invoice
// subclass in its own table.
//
//go:embed testdata/company/company.cue
var CompanyCUE string

// CompanyDir is the directory of the company mapping, relative to this
// package.
const CompanyDir = "testdata/company"

// Company loads the company mappings.
func Company(t testing.TB) *mapping.Repository {
	t.Helper()
	repo, err := mapping.LoadString(CompanyCUE)
	require.NoError(t, err)
	return repo
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CompanyStore opens an in-memory SQLite store with the company schema and
// seed rows:
//
//	DEPT      1 Engineering, 2 Sales, 3 Research (no employees)
//	EMPLOYEE  1 Alice (1), 2 Bob (1), 3 Carol MGR (2), 4 Dan (2), 5 Eve (no dept, no salary)
//	DOC       1 Handbook
//	INVOICE   2 Bill
func CompanyStore(t testing.TB) (*store.Store, *mapping.Repository) {
	t.Helper()
	repo := Company(t)
	s, err := store.Open(":memory:", store.WithLogger(DiscardLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.SyncSchema(ctx, repo))
	SeedCompany(t, s, repo)
	return s, repo
}

// SeedCompany inserts the company seed rows.
func SeedCompany(t testing.TB, s *store.Store, repo *mapping.Repository) {
	t.Helper()
	ctx := context.Background()
	dept, _ := repo.Mapping("Department")
	emp, _ := repo.Mapping("Employee")
	mgr, _ := repo.Mapping("Manager")
	doc, _ := repo.Mapping("Document")
	inv, _ := repo.Mapping("Invoice")

	day := func(d int) time.Time { return time.Date(2020, time.January, d, 0, 0, 0, 0, time.UTC) }

	rows := []struct {
		m      *mapping.ClassMapping
		fields map[string]any
	}{
		{dept, map[string]any{"id": 1, "name": "Engineering", "budget": 500000.0}},
		{dept, map[string]any{"id": 2, "name": "Sales", "budget": 200000.0}},
		{dept, map[string]any{"id": 3, "name": "Research", "budget": 0.0}},
		{emp, map[string]any{"id": 1, "name": "Alice", "salary": 120000.0, "active": true, "hired": day(1), "dept": 1}},
		{emp, map[string]any{"id": 2, "name": "Bob", "salary": 90000.0, "active": true, "hired": day(2), "dept": 1}},
		{mgr, map[string]any{"id": 3, "name": "Carol", "salary": 150000.0, "active": true, "hired": day(3), "dept": 2, "bonus": 20000.0}},
		{emp, map[string]any{"id": 4, "name": "Dan", "salary": 70000.0, "active": false, "hired": day(4), "dept": 2}},
		{emp, map[string]any{"id": 5, "name": "Eve", "active": true, "hired": day(5)}},
		{doc, map[string]any{"id": 1, "title": "Handbook"}},
		{inv, map[string]any{"id": 2, "title": "Bill", "amount": 99.5}},
	}
	for _, r := range rows {
		require.NoError(t, s.InsertEntity(ctx, r.m, r.fields))
	}
}
