package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/pierpaolospaziani/openjpa/internal/exps"
	"github.com/pierpaolospaziani/openjpa/internal/queryir"
	"github.com/pierpaolospaziani/openjpa/internal/querysql"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	SQL      string // Explained SQL for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.SQL != "" {
		fmt.Fprintf(&buf, "\nSQL:\n%s\n", e.SQL)
	}
	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx      context.Context
	Executor *querysql.Executor
	Scenario *Scenario
	Query    *exps.QueryExpressions
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter is needed by count and in_memory assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRows:
			err = assertRows(result, assertion)
		case AssertRowCount:
			err = assertRowCount(result, assertion)
		case AssertSQLContains, AssertSQLNotContains:
			err = assertSQL(result, assertion)
		case AssertPortable:
			if actx == nil || actx.Scenario == nil {
				err = fmt.Errorf("assertion[%d]: portable requires the scenario", i)
			} else {
				err = assertPortable(actx.Scenario.Document(), assertion)
			}
		case AssertCount:
			if actx == nil || actx.Executor == nil {
				err = fmt.Errorf("assertion[%d]: count requires an executor", i)
			} else {
				err = assertCount(actx, result, assertion)
			}
		case AssertInMemory:
			if actx == nil || actx.Executor == nil {
				err = fmt.Errorf("assertion[%d]: in_memory requires an executor", i)
			} else {
				err = assertInMemory(actx, result)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertRows checks the rows in order. Each expected row is a subset
// match of the actual one.
func assertRows(result *Result, assertion Assertion) error {
	if len(result.Rows) != len(assertion.Rows) {
		return &AssertionError{
			Type:     AssertRows,
			Expected: fmt.Sprintf("%d rows: %v", len(assertion.Rows), assertion.Rows),
			Actual:   fmt.Sprintf("%d rows: %v", len(result.Rows), result.Rows),
			SQL:      result.SQL,
		}
	}
	for i, want := range assertion.Rows {
		if !matchValue(want, result.Rows[i]) {
			return &AssertionError{
				Type:     AssertRows,
				Expected: fmt.Sprintf("row %d = %v", i, want),
				Actual:   fmt.Sprintf("row %d = %v", i, result.Rows[i]),
				SQL:      result.SQL,
			}
		}
	}
	return nil
}

func assertRowCount(result *Result, assertion Assertion) error {
	if int64(len(result.Rows)) != assertion.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows", assertion.Count),
			Actual:   fmt.Sprintf("%d rows", len(result.Rows)),
			SQL:      result.SQL,
		}
	}
	return nil
}

func assertSQL(result *Result, assertion Assertion) error {
	contains := strings.Contains(result.SQL, assertion.SQL)
	if contains == (assertion.Type == AssertSQLContains) {
		return nil
	}
	expected := "SQL containing " + assertion.SQL
	if !contains {
		return &AssertionError{Type: assertion.Type, Expected: expected, Actual: "not found", SQL: result.SQL}
	}
	return &AssertionError{Type: assertion.Type, Expected: "SQL without " + assertion.SQL, Actual: "found", SQL: result.SQL}
}

// assertCount runs the count statement for the query.
func assertCount(actx *AssertionContext, result *Result, assertion Assertion) error {
	n, err := actx.Executor.Count(actx.Ctx, actx.Query, actx.Scenario.Params)
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	if n != assertion.Count {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("count %d", assertion.Count),
			Actual:   fmt.Sprintf("count %d", n),
			SQL:      result.SQL,
		}
	}
	return nil
}

// assertInMemory loads every candidate and evaluates the query over them
// without SQL. Rows must match in order when the query is ordered, and as
// a multiset otherwise.
func assertInMemory(actx *AssertionContext, result *Result) error {
	q := actx.Query
	f := exps.NewFactory()
	all := f.Query(q.Candidate, q.Alias)
	all.Fetch = q.Fetch
	loaded, err := actx.Executor.Execute(actx.Ctx, all, nil)
	if err != nil {
		return fmt.Errorf("in_memory: load candidates: %w", err)
	}
	candidates := make([]*exps.Object, 0, len(loaded.Rows))
	for _, r := range loaded.Rows {
		if obj, ok := r.(*exps.Object); ok {
			candidates = append(candidates, obj)
		}
	}

	mem, err := querysql.EvaluateInMemory(q, candidates, actx.Scenario.Params)
	if err != nil {
		return fmt.Errorf("in_memory: %w", err)
	}
	rows := NormalizeRows(mem.Rows)

	same := len(rows) == len(result.Rows)
	if same && len(q.Ordering) > 0 {
		for i := range rows {
			if !matchValue(result.Rows[i], rows[i]) {
				same = false
				break
			}
		}
	} else if same {
		same = sameMultiset(result.Rows, rows)
	}
	if !same {
		return &AssertionError{
			Type:     AssertInMemory,
			Expected: fmt.Sprintf("SQL rows %v", result.Rows),
			Actual:   fmt.Sprintf("in-memory rows %v", rows),
			SQL:      result.SQL,
		}
	}
	return nil
}

func assertPortable(doc *queryir.Document, assertion Assertion) error {
	v := queryir.Validate(doc)
	if assertion.Portable != nil && *assertion.Portable != v.IsPortable {
		return &AssertionError{
			Type:     AssertPortable,
			Expected: fmt.Sprintf("portable = %t", *assertion.Portable),
			Actual:   fmt.Sprintf("portable = %t, warnings %q", v.IsPortable, v.Warnings),
		}
	}
	for _, want := range assertion.Warnings {
		found := false
		for _, w := range v.Warnings {
			if strings.Contains(w, want) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertPortable,
				Expected: fmt.Sprintf("warning containing %q", want),
				Actual:   fmt.Sprintf("warnings %q", v.Warnings),
			}
		}
	}
	return nil
}

func sameMultiset(a, b []any) bool {
	used := make([]bool, len(b))
	for _, x := range a {
		found := false
		for j, y := range b {
			if !used[j] && matchValue(x, y) && matchValue(y, x) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// NormalizeRows converts query rows to plain values: objects become maps
// of their loaded fields, integers int64, floats float64 and times RFC 3339
// strings.
func NormalizeRows(rows []any) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = Normalize(r)
	}
	return out
}

// Normalize converts one value the way NormalizeRows converts a row.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case *exps.Object:
		if x == nil {
			return nil
		}
		m := make(map[string]any, len(x.Values))
		for k, fv := range x.Values {
			m[k] = Normalize(fv)
		}
		return m
	case []*exps.Object:
		out := make([]any, len(x))
		for i, o := range x {
			out[i] = Normalize(o)
		}
		return out
	case []any:
		return NormalizeRows(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	}
	return v
}

// matchValue reports whether actual matches expected. Maps match as
// subsets, lists element by element, and numbers by value.
func matchValue(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for k, ev := range exp {
			av, exists := act[k]
			if !exists || !matchValue(ev, av) {
				return false
			}
		}
		return true
	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchValue(exp[i], act[i]) {
				return false
			}
		}
		return true
	case time.Time:
		return matchValue(Normalize(exp), actual)
	}
	if ef, ok := toFloat(expected); ok {
		af, ok := toFloat(actual)
		return ok && ef == af
	}
	return reflect.DeepEqual(Normalize(expected), actual)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	return 0, false
}
