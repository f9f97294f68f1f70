package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pierpaolospaziani/openjpa/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	ConfigFile string
	Driver     string
	URL        string
	Mappings   string
	Dictionary string

	config *config.Configuration
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// boundFlags pairs the persistent flags with the configuration keys they
// override.
var boundFlags = map[string]string{
	"driver":     config.KeyDriver,
	"url":        config.KeyURL,
	"mappings":   config.KeyMappings,
	"dictionary": config.KeyDictionary,
}

// NewRootCommand creates the root command for the openjpa CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "openjpa",
		Short: "openjpa - mapped queries over SQL",
		Long: `Compile query documents against CUE entity mappings, render them to SQL
for the configured dictionary, and run them against a database.

Settings come from flags, OPENJPA_* environment variables and an
openjpa.yaml config file, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return bindConfiguration(cmd.Root(), opts)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./openjpa.yaml or $HOME/openjpa.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "database driver (sqlite3|postgres)")
	cmd.PersistentFlags().StringVar(&opts.URL, "url", "", "database URL or SQLite path")
	cmd.PersistentFlags().StringVar(&opts.Mappings, "mappings", "", "directory of CUE entity mappings")
	cmd.PersistentFlags().StringVar(&opts.Dictionary, "dictionary", "", "SQL dictionary, defaults to the driver's")

	// Add subcommands
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewMappingsCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// bindConfiguration loads the config file and binds the persistent flags of
// root over it.
func bindConfiguration(root *cobra.Command, opts *RootOptions) error {
	c, err := config.Load(opts.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading configuration", err)
	}
	for name, key := range boundFlags {
		if err := c.BindFlag(key, root.PersistentFlags().Lookup(name)); err != nil {
			return WrapExitError(ExitCommandError, "binding flags", err)
		}
	}
	if opts.Verbose {
		c.Set(config.KeyLogLevel, "debug")
	}
	opts.config = c
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
