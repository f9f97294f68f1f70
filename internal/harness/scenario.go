package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pierpaolospaziani/openjpa/internal/queryir"
	"github.com/pierpaolospaziani/openjpa/internal/sql"
)

// Scenario is one query run against a seeded database.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Mappings is a directory of CUE mappings, relative to the scenario
	// file. Exactly one of Mappings and Mapping is set.
	Mappings string `yaml:"mappings,omitempty"`

	// Mapping is inline CUE mapping source.
	Mapping string `yaml:"mapping,omitempty"`

	// Seed rows are inserted in order before the query runs.
	Seed []SeedRow `yaml:"seed,omitempty"`

	// Query is a query document (see package queryir).
	Query yaml.Node `yaml:"query"`

	Params map[string]any `yaml:"params,omitempty"`

	// EagerMode caps eager loading: none, inner, outer or parallel.
	// Defaults to parallel.
	EagerMode string `yaml:"eager_mode,omitempty"`

	// UseLiteralInSQL inlines literals instead of binding them.
	UseLiteralInSQL bool `yaml:"use_literal_in_sql,omitempty"`

	// ExpectError names the error code the query must fail with:
	// "unsupported", "invalid_query" or "unknown_field". Assertions are
	// not evaluated for failing scenarios.
	ExpectError string `yaml:"expect_error,omitempty"`

	Assertions []Assertion `yaml:"assertions,omitempty"`

	doc *queryir.Document
}

// SeedRow is one entity instance to insert. Values is keyed by field name;
// to-one fields take the related primary key.
type SeedRow struct {
	Entity string         `yaml:"entity"`
	Values map[string]any `yaml:"values"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "rows": rows match Rows, in order, subset match per row
	// - "row_count": Execute returned Count rows
	// - "count": Executor.Count returned Count
	// - "sql_contains": the explained SQL contains SQL
	// - "sql_not_contains": the explained SQL does not contain SQL
	// - "in_memory": evaluating in memory gives the same rows as SQL
	// - "portable": the document's portability matches Portable, and every
	//   string of Warnings appears in some warning
	Type string `yaml:"type"`

	Rows     []any    `yaml:"rows,omitempty"`
	Count    int64    `yaml:"count,omitempty"`
	SQL      string   `yaml:"sql,omitempty"`
	Portable *bool    `yaml:"portable,omitempty"`
	Warnings []string `yaml:"warnings,omitempty"`
}

// Assertion type constants.
const (
	AssertRows           = "rows"
	AssertRowCount       = "row_count"
	AssertCount          = "count"
	AssertSQLContains    = "sql_contains"
	AssertSQLNotContains = "sql_not_contains"
	AssertInMemory       = "in_memory"
	AssertPortable       = "portable"
)

// Expected error codes.
const (
	ErrorUnsupported  = "unsupported"
	ErrorInvalidQuery = "invalid_query"
	ErrorUnknownField = "unknown_field"
)

// Document returns the decoded query document.
func (s *Scenario) Document() *queryir.Document { return s.doc }

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// errors, and the mappings directory resolves against the file's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Mappings != "" && !filepath.IsAbs(s.Mappings) {
		s.Mappings = filepath.Join(filepath.Dir(path), s.Mappings)
	}
	if s.Mappings != "" {
		if _, err := os.Stat(s.Mappings); os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: mappings directory not found: %s", path, s.Mappings)
		}
	}
	return s, nil
}

// ParseScenario parses scenario YAML. A mappings directory is left as
// written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and decodes the query document.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.Mappings == "") == (s.Mapping == "") {
		return fmt.Errorf("exactly one of mappings and mapping is required")
	}
	if s.Query.Kind == 0 {
		return fmt.Errorf("query is required")
	}
	if _, ok := sql.ParseEagerMode(s.EagerMode); !ok {
		return fmt.Errorf("unknown eager_mode %q", s.EagerMode)
	}
	switch s.ExpectError {
	case "", ErrorUnsupported, ErrorInvalidQuery, ErrorUnknownField:
	default:
		return fmt.Errorf("unknown expect_error %q", s.ExpectError)
	}
	if s.ExpectError == "" && len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, row := range s.Seed {
		if row.Entity == "" {
			return fmt.Errorf("seed[%d]: entity is required", i)
		}
		if len(row.Values) == 0 {
			return fmt.Errorf("seed[%d]: values are required", i)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(&s.Query)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	doc, err := queryir.Decode(data)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	s.doc = doc
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRows:
		if a.Rows == nil {
			return fmt.Errorf("assertions[%d]: rows is required for rows (use [] for none)", index)
		}
	case AssertRowCount, AssertCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertSQLContains, AssertSQLNotContains:
		if a.SQL == "" {
			return fmt.Errorf("assertions[%d]: sql is required for %s", index, a.Type)
		}
	case AssertInMemory:
	case AssertPortable:
		if a.Portable == nil && len(a.Warnings) == 0 {
			return fmt.Errorf("assertions[%d]: portable or warnings is required for portable", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
