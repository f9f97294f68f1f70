package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pierpaolospaziani/openjpa/internal/queryir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Portable bool     `json:"portable"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <query-file>",
		Short: "Check a query compiles and report its portability",
		Long: `Compile a query document against the mappings without running it, then
report whether it stays inside the portable fragment: the queries that
render the same on every dictionary and can also be evaluated in memory.

Non-portable queries are valid; their warnings name the features that
tie them to SQL.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, queryFile string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	env, err := LoadEnvironment(cmd.Context(), opts, formatter.GetErrWriter(), false)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	defer env.Close()

	doc, q, err := LoadQuery(queryFile, env.Repo)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	formatter.VerboseLog("Compiled %s query from %s", q.Candidate.Name, queryFile)

	report := queryir.Validate(doc)
	result := ValidationResult{
		Valid:    true,
		Portable: report.IsPortable,
		Warnings: report.Warnings,
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	if result.Portable {
		fmt.Fprintf(w, "✓ %s is valid and portable\n", queryFile)
		return nil
	}
	fmt.Fprintf(w, "✓ %s is valid\n", queryFile)
	fmt.Fprintf(w, "⚠ not portable:\n")
	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "  - %s\n", warn)
	}
	return nil
}
