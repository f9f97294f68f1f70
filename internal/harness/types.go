package harness

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass" yaml:"pass"`

	// SQL is the explained statement text, eager statements included.
	SQL string `json:"sql" yaml:"sql"`

	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`

	// Rows holds the normalized rows: objects become field maps, times
	// RFC 3339 strings and integers int64.
	Rows []any `json:"rows" yaml:"rows"`

	// Error is the query error of a scenario expecting one.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Rows:   []any{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
