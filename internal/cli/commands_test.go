package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pierpaolospaziani/openjpa/internal/store"
	"github.com/pierpaolospaziani/openjpa/internal/testutil"
)

const companyMappings = "../testutil/testdata/company"

// companyDB writes the seeded company database to a temporary SQLite file
// and returns its path.
func companyDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "company.db")
	s, err := store.Open(path, store.WithLogger(testutil.DiscardLogger()))
	require.NoError(t, err)
	repo := testutil.Company(t)
	require.NoError(t, s.SyncSchema(context.Background(), repo))
	testutil.SeedCompany(t, s, repo)
	require.NoError(t, s.Close())
	return path
}

// companyOptions returns options for the company database. HOME is moved
// so no config file of the user is picked up.
func companyOptions(t *testing.T, format string) *RootOptions {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	return &RootOptions{Format: format, URL: companyDB(t), Mappings: companyMappings}
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decodeData decodes the data of a JSON CLIResponse into v.
func decodeData(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if v != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, v))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

func TestQuery_Table(t *testing.T) {
	opts := companyOptions(t, "text")
	out, err := execute(t, NewQueryCommand(opts), "testdata/queries/staff.yaml", "--param", "dept=Engineering")
	require.NoError(t, err)

	assert.Contains(t, out, "e.name")
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "Bob")
	assert.NotContains(t, out, "Carol")
	assert.Contains(t, out, "(2 row(s))")
}

func TestQuery_JSON(t *testing.T) {
	opts := companyOptions(t, "json")
	out, err := execute(t, NewQueryCommand(opts), "testdata/queries/staff.yaml", "-p", "dept=Sales")
	require.NoError(t, err)

	var data QueryResult
	resp := decodeData(t, out, &data)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"e.name"}, data.Columns)
	assert.Equal(t, []any{"Carol", "Dan"}, data.Rows)
	assert.Equal(t, int64(2), data.Count)
}

func TestQuery_Count(t *testing.T) {
	opts := companyOptions(t, "text")
	out, err := execute(t, NewQueryCommand(opts), "testdata/queries/staff.yaml", "--param", "dept=Engineering", "--count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestQuery_EntityRowsWithEagerRelation(t *testing.T) {
	opts := companyOptions(t, "json")
	out, err := execute(t, NewQueryCommand(opts), "testdata/queries/departments.yaml")
	require.NoError(t, err)

	var data struct {
		Rows []map[string]any `json:"rows"`
	}
	decodeData(t, out, &data)
	require.Len(t, data.Rows, 3)

	var names []any
	for _, r := range data.Rows {
		names = append(names, r["name"])
	}
	assert.Equal(t, []any{"Engineering", "Sales", "Research"}, names)

	staff, ok := data.Rows[0]["employees"].([]any)
	require.True(t, ok, "employees loaded eagerly: %v", data.Rows[0])
	assert.Len(t, staff, 2)
	research, ok := data.Rows[2]["employees"].([]any)
	require.True(t, ok)
	assert.Empty(t, research)
}

func TestQuery_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		code     string
		exitCode int
	}{
		{"unknown_field", []string{"testdata/queries/unknown_field.yaml"}, ErrCodeUnknownField, ExitFailure},
		{"missing_file", []string{"testdata/queries/missing.yaml"}, ErrCodeNotFound, ExitCommandError},
		{"bad_param", []string{"testdata/queries/staff.yaml", "--param", "dept"}, ErrCodeParam, ExitCommandError},
		{"bad_eager", []string{"testdata/queries/staff.yaml", "--eager", "sideways"}, ErrCodeConfig, ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := companyOptions(t, "json")
			out, err := execute(t, NewQueryCommand(opts), tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))

			resp := decodeData(t, out, nil)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestQuery_MissingMappings(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	opts := &RootOptions{Format: "text", Mappings: filepath.Join(t.TempDir(), "none")}
	out, err := execute(t, NewQueryCommand(opts), "testdata/queries/staff.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
	assert.Contains(t, out, "mappings directory not found")
}

func TestQuery_SyncCreatesTables(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	opts := &RootOptions{
		Format:   "text",
		URL:      filepath.Join(t.TempDir(), "empty.db"),
		Mappings: companyMappings,
	}
	out, err := execute(t, NewQueryCommand(opts), "testdata/queries/staff.yaml", "-p", "dept=Sales", "--sync")
	require.NoError(t, err)
	assert.Contains(t, out, "(0 row(s))")
}

func TestExplain_Text(t *testing.T) {
	opts := companyOptions(t, "text")
	out, err := execute(t, NewExplainCommand(opts), "testdata/queries/staff.yaml", "--param", "dept=Engineering")
	require.NoError(t, err)

	assert.Contains(t, out, "SELECT t0.NAME FROM EMPLOYEE t0 INNER JOIN DEPT t1 ON t0.DEPT_ID = t1.ID")
	assert.Contains(t, out, "-- params: ")
	assert.Contains(t, out, "Engineering")
	assert.Contains(t, out, "-- count\nSELECT COUNT(")
}

func TestExplain_JSON(t *testing.T) {
	opts := companyOptions(t, "json")
	out, err := execute(t, NewExplainCommand(opts), "testdata/queries/staff.yaml", "--param", "dept=Engineering")
	require.NoError(t, err)

	var data ExplainResult
	resp := decodeData(t, out, &data)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Employee", data.Candidate)
	assert.Equal(t,
		"SELECT t0.NAME FROM EMPLOYEE t0 INNER JOIN DEPT t1 ON t0.DEPT_ID = t1.ID WHERE t1.NAME = ? AND t0.TYPE IN (?, ?) ORDER BY t0.NAME ASC",
		data.SQL)
	require.NotEmpty(t, data.Params)
	assert.Equal(t, "Engineering", data.Params[0])
	assert.Contains(t, data.Count, "COUNT(")
}

func TestExplain_EagerOverride(t *testing.T) {
	opts := companyOptions(t, "text")
	out, err := execute(t, NewExplainCommand(opts), "testdata/queries/departments.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "-- Department.employees: parallel")

	opts = companyOptions(t, "text")
	out, err = execute(t, NewExplainCommand(opts), "testdata/queries/departments.yaml", "--eager", "none")
	require.NoError(t, err)
	assert.NotContains(t, out, "Department.employees")
}

func TestMappings_Table(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	opts := &RootOptions{Format: "text", Mappings: companyMappings}
	out, err := execute(t, NewMappingsCommand(opts))
	require.NoError(t, err)

	for _, want := range []string{"Entity", "Department", "DEPT", "Employee", "Manager", "MGR", "Invoice", "INVOICE"} {
		assert.Contains(t, out, want)
	}
}

func TestMappings_JSON(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	opts := &RootOptions{Format: "json", Mappings: companyMappings}
	out, err := execute(t, NewMappingsCommand(opts))
	require.NoError(t, err)

	var data MappingsResult
	decodeData(t, out, &data)

	byName := make(map[string]MappingInfo)
	for _, m := range data.Mappings {
		byName[m.Name] = m
	}
	require.Contains(t, byName, "Manager")
	assert.Equal(t, "Employee", byName["Manager"].Superclass)
	assert.Equal(t, "EMPLOYEE", byName["Manager"].Table)
	assert.Equal(t, "MGR", byName["Manager"].Discriminator)

	require.Contains(t, byName, "Department")
	var employees *FieldInfo
	for i, f := range byName["Department"].Fields {
		if f.Name == "employees" {
			employees = &byName["Department"].Fields[i]
		}
	}
	require.NotNil(t, employees)
	assert.Equal(t, "to-many", employees.Kind)
	assert.Equal(t, "Employee", employees.Relation)
	assert.Equal(t, "dept", employees.MappedBy)
	assert.Empty(t, data.DDL)
}

func TestMappings_DDL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	opts := &RootOptions{Format: "text", Mappings: companyMappings}
	out, err := execute(t, NewMappingsCommand(opts), "--ddl")
	require.NoError(t, err)

	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS DEPT (")
	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS EMPLOYEE (")
	assert.Contains(t, out, ");\n")
}

func TestValidate_Portable(t *testing.T) {
	opts := companyOptions(t, "text")
	out, err := execute(t, NewValidateCommand(opts), "testdata/queries/staff.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "is valid and portable")
}

func TestValidate_NotPortable(t *testing.T) {
	opts := companyOptions(t, "json")
	out, err := execute(t, NewValidateCommand(opts), "testdata/queries/above_average.yaml")
	require.NoError(t, err)

	var data ValidationResult
	decodeData(t, out, &data)
	assert.True(t, data.Valid)
	assert.False(t, data.Portable)
	assert.NotEmpty(t, data.Warnings)
}

func TestValidate_UnknownField(t *testing.T) {
	opts := companyOptions(t, "text")
	out, err := execute(t, NewValidateCommand(opts), "testdata/queries/unknown_field.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeUnknownField+"]")
}

func TestRootCommand_RunsWithBoundFlags(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	db := companyDB(t)

	cmd := NewRootCommand()
	out, err := execute(t, cmd,
		"--url", db,
		"--mappings", companyMappings,
		"--format", "json",
		"query", "testdata/queries/staff.yaml", "--param", "dept=Engineering")
	require.NoError(t, err)

	var data QueryResult
	decodeData(t, out, &data)
	assert.Equal(t, []any{"Alice", "Bob"}, data.Rows)
}

func TestRootCommand_EnvironmentConfiguration(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENJPA_MAPPINGS", companyMappings)
	t.Setenv("OPENJPA_CONNECTION_URL", companyDB(t))

	out, err := execute(t, NewRootCommand(), "query", "testdata/queries/staff.yaml", "--param", "dept=Sales", "--count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestParseParams(t *testing.T) {
	params, err := ParseParams([]string{"dept=Sales", "min=203", "active=true", "ratio=0.5", "quoted='42'", "empty=", "list=[1, 2]"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"dept":   "Sales",
		"min":    203,
		"active": true,
		"ratio":  0.5,
		"quoted": "42",
		"empty":  nil,
		"list":   "[1, 2]",
	}, params)

	_, err = ParseParams([]string{"=x"})
	require.Error(t, err)
	_, err = ParseParams([]string{"novalue"})
	require.Error(t, err)
}
