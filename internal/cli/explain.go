package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pierpaolospaziani/openjpa/internal/querysql"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Params []string // name=value
	Eager  string   // eager mode override
}

// ExplainResult is the JSON payload of explain.
type ExplainResult struct {
	Candidate string                      `json:"candidate"`
	SQL       string                      `json:"sql"`
	Params    []any                       `json:"params"`
	Count     string                      `json:"count"`
	Members   []string                    `json:"members,omitempty"`
	Eager     []querysql.EagerExplanation `json:"eager,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <query-file>",
		Short: "Show the SQL a query runs",
		Long: `Compile a query document against the mappings and print the statements
it runs with the configured dictionary: the select, its bound parameters,
the count variant and one statement per parallel eager load.

Nothing is executed.

Examples:
  openjpa explain queries/staff.yaml --mappings ./mappings
  openjpa explain queries/staff.yaml --param dept=Sales --eager outer
  openjpa explain queries/staff.yaml --dictionary postgres --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "query parameter as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.Eager, "eager", "", "eager mode (none|inner|outer|parallel)")

	return cmd
}

func runExplain(opts *ExplainOptions, queryFile string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	params, err := ParseParams(opts.Params)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	env, err := LoadEnvironment(cmd.Context(), opts.RootOptions, formatter.GetErrWriter(), false)
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
	formatter.VerboseLog("Explaining %s query from %s", q.Candidate.Name, queryFile)

	explained, err := exec.Explain(q, params)
	if err != nil {
		return reportLoadError(formatter, &LoadError{Code: QueryErrorCode(err), Message: "explaining query", Err: err})
	}

	if opts.Format == "json" {
		return formatter.Success(ExplainResult{
			Candidate: q.Candidate.Name,
			SQL:       explained.SQL,
			Params:    nonNil(explained.Params),
			Count:     explained.Count,
			Members:   explained.Members,
			Eager:     explained.Eager,
		})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, explained.String())
	if len(explained.Params) > 0 {
		fmt.Fprintf(w, "-- params: %s\n", formatCell(explained.Params))
	}
	fmt.Fprintf(w, "-- count\n%s\n", explained.Count)
	return nil
}

// nonNil keeps empty parameter lists as [] in JSON.
func nonNil(v []any) []any {
	if v == nil {
		return []any{}
	}
	return v
}
