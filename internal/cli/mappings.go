package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pierpaolospaziani/openjpa/internal/mapping"
)

// MappingsOptions holds flags for the mappings command.
type MappingsOptions struct {
	*RootOptions
	DDL bool // print CREATE TABLE statements instead
}

// MappingInfo describes one class mapping in JSON output.
type MappingInfo struct {
	Name          string      `json:"name"`
	Table         string      `json:"table"`
	Superclass    string      `json:"superclass,omitempty"`
	Discriminator any         `json:"discriminator,omitempty"`
	PrimaryKey    []string    `json:"primary_key"`
	Fields        []FieldInfo `json:"fields"`
}

// FieldInfo describes one field mapping in JSON output.
type FieldInfo struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Kind     string   `json:"kind"`
	Columns  []string `json:"columns,omitempty"`
	Relation string   `json:"relation,omitempty"`
	MappedBy string   `json:"mapped_by,omitempty"`
	Eager    string   `json:"eager,omitempty"`
}

// MappingsResult is the JSON payload of mappings.
type MappingsResult struct {
	Mappings []MappingInfo `json:"mappings"`
	DDL      []string      `json:"ddl,omitempty"`
}

// NewMappingsCommand creates the mappings command.
func NewMappingsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MappingsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "List the compiled entity mappings",
		Long: `Compile the CUE mappings directory and list each entity with its table,
inheritance and fields. With --ddl, print the CREATE TABLE statements the
configured dictionary would run instead.

Examples:
  openjpa mappings --mappings ./mappings
  openjpa mappings --ddl --dictionary postgres
  openjpa mappings --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMappings(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DDL, "ddl", false, "print CREATE TABLE statements")

	return cmd
}

func runMappings(opts *MappingsOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	env, err := LoadEnvironment(cmd.Context(), opts.RootOptions, formatter.GetErrWriter(), false)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	defer env.Close()

	ms := env.Repo.Mappings()
	formatter.VerboseLog("Compiled %d mapping(s) from %s", len(ms), env.Config.MappingsDir())

	var ddl []string
	if opts.DDL {
		for _, t := range env.Repo.Tables() {
			ddl = append(ddl, env.Store.CreateTableSQL(t))
		}
	}

	if opts.Format == "json" {
		result := MappingsResult{Mappings: make([]MappingInfo, 0, len(ms)), DDL: ddl}
		for _, m := range ms {
			result.Mappings = append(result.Mappings, describeMapping(m))
		}
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	if opts.DDL {
		for _, stmt := range ddl {
			fmt.Fprintf(w, "%s;\n", stmt)
		}
		return nil
	}
	rows := make([][]string, 0, len(ms))
	for _, m := range ms {
		info := describeMapping(m)
		rows = append(rows, []string{
			info.Name,
			info.Table,
			info.Superclass,
			formatDiscriminator(m),
			fieldSummary(info.Fields),
		})
	}
	RenderTable(w, []string{"Entity", "Table", "Extends", "Discriminator", "Fields"}, rows)
	return nil
}

func describeMapping(m *mapping.ClassMapping) MappingInfo {
	info := MappingInfo{
		Name:          m.Name,
		Table:         m.Table.FullName(),
		Discriminator: m.DiscriminatorValue,
		PrimaryKey:    make([]string, 0, len(m.PrimaryKey)),
		Fields:        make([]FieldInfo, 0, len(m.Fields)),
	}
	if m.Superclass != nil {
		info.Superclass = m.Superclass.Name
	}
	for _, c := range m.PrimaryKey {
		info.PrimaryKey = append(info.PrimaryKey, c.Name())
	}
	for _, f := range m.AllFields() {
		fi := FieldInfo{
			Name:     f.Name,
			Type:     f.Type.String(),
			Kind:     f.Kind.String(),
			MappedBy: f.MappedBy,
		}
		for _, c := range f.Columns {
			fi.Columns = append(fi.Columns, c.Name())
		}
		if f.Relation != nil {
			fi.Relation = f.Relation.Name
			fi.Eager = f.Eager.String()
		}
		info.Fields = append(info.Fields, fi)
	}
	return info
}

func formatDiscriminator(m *mapping.ClassMapping) string {
	if m.Discriminator == nil {
		return ""
	}
	return fmt.Sprintf("%s=%v", m.Discriminator.Name(), m.DiscriminatorValue)
}

func fieldSummary(fields []FieldInfo) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		if f.Relation != "" {
			parts[i] = fmt.Sprintf("%s -> %s (%s, %s)", f.Name, f.Relation, f.Kind, f.Eager)
			continue
		}
		parts[i] = fmt.Sprintf("%s %s", f.Name, f.Type)
	}
	return strings.Join(parts, "\n")
}
