package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pierpaolospaziani/openjpa/internal/harness"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Params []string // name=value
	Eager  string   // eager mode override
	Count  bool     // print the row count only
	Sync   bool     // create mapped tables before running
}

// QueryResult is the JSON payload of query.
type QueryResult struct {
	Columns []string `json:"columns,omitempty"`
	Rows    []any    `json:"rows,omitempty"`
	Count   int64    `json:"count"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <query-file>",
		Short: "Run a query and print its rows",
		Long: `Compile a query document against the mappings and run it against the
configured database. Entity rows print their loaded fields, with eager
relations nested.

Exit codes:
  0 - Query ran
  1 - Query did not compile or failed in the database
  2 - Command error (invalid paths, bad configuration)

Examples:
  openjpa query queries/staff.yaml --url company.db
  openjpa query queries/staff.yaml --param dept=Sales --format json
  openjpa query queries/staff.yaml --count`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "query parameter as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.Eager, "eager", "", "eager mode (none|inner|outer|parallel)")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print the number of rows only")
	cmd.Flags().BoolVar(&opts.Sync, "sync", false, "create missing mapped tables first")

	return cmd
}

func runQuery(opts *QueryOptions, queryFile string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	ctx := cmd.Context()

	params, err := ParseParams(opts.Params)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	env, err := LoadEnvironment(ctx, opts.RootOptions, formatter.GetErrWriter(), opts.Sync)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	defer env.Close()

	_, q, err := LoadQuery(queryFile, env.Repo)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	exec, err := env.Executor(opts.Eager)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	if opts.Count {
		n, err := exec.Count(ctx, q, params)
		if err != nil {
			return reportLoadError(formatter, &LoadError{Code: QueryErrorCode(err), Message: "counting rows", Err: err})
		}
		if opts.Format == "json" {
			return formatter.Success(QueryResult{Count: n})
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	}

	res, err := exec.Execute(ctx, q, params)
	if err != nil {
		return reportLoadError(formatter, &LoadError{Code: QueryErrorCode(err), Message: "running query", Err: err})
	}
	formatter.VerboseLog("Loaded %d row(s) of %s", len(res.Rows), q.Candidate.Name)

	rows := harness.NormalizeRows(res.Rows)
	if opts.Format == "json" {
		return formatter.Success(QueryResult{
			Columns: res.Columns,
			Rows:    rows,
			Count:   int64(len(rows)),
		})
	}

	w := cmd.OutOrStdout()
	RenderTable(w, res.Columns, tableRows(res.Columns, rows, len(q.Projections) == 0))
	fmt.Fprintf(w, "(%d row(s))\n", len(rows))
	return nil
}

// tableRows lays normalized query rows out as table cells. Entity rows are
// maps keyed by field; projection rows are a value or a list of values.
func tableRows(columns []string, rows []any, entities bool) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells := make([]string, len(columns))
		switch {
		case entities:
			fields, _ := r.(map[string]any)
			for i, c := range columns {
				cells[i] = formatCell(fields[c])
			}
		case len(columns) == 1:
			cells[0] = formatCell(r)
		default:
			vals, _ := r.([]any)
			for i := range cells {
				if i < len(vals) {
					cells[i] = formatCell(vals[i])
				}
			}
		}
		out = append(out, cells)
	}
	return out
}
