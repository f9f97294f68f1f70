package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pierpaolospaziani/openjpa/internal/exps"
)

func TestNormalize(t *testing.T) {
	dept := &exps.Object{Values: map[string]any{"name": "Sales"}}
	emp := &exps.Object{Values: map[string]any{
		"id":    int32(3),
		"bonus": float32(1.5),
		"hired": time.Date(2020, time.January, 3, 0, 0, 0, 0, time.UTC),
		"dept":  dept,
		"boss":  (*exps.Object)(nil),
	}}
	owner := &exps.Object{Values: map[string]any{"employees": []*exps.Object{emp}}}

	got := Normalize(owner)
	assert.Equal(t, map[string]any{
		"employees": []any{
			map[string]any{
				"id":    int64(3),
				"bonus": 1.5,
				"hired": "2020-01-03T00:00:00Z",
				"dept":  map[string]any{"name": "Sales"},
				"boss":  nil,
			},
		},
	}, got)

	assert.Equal(t, []any{int64(1), "x", nil}, Normalize([]any{1, []byte("x"), nil}))
}

func TestMatchValue(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		want     bool
	}{
		{"nil", nil, nil, true},
		{"nil against value", nil, "a", false},
		{"value against nil", "a", nil, false},
		{"string", "a", "a", true},
		{"int against int64", 3, int64(3), true},
		{"int against float", 3, 3.0, true},
		{"number against string", 3, "3", false},
		{"bool", true, true, true},
		{"bool mismatch", true, false, false},
		{"map subset", map[string]any{"a": 1}, map[string]any{"a": int64(1), "b": "x"}, true},
		{"map missing key", map[string]any{"c": 1}, map[string]any{"a": int64(1)}, false},
		{"map against scalar", map[string]any{"a": 1}, "a", false},
		{"list", []any{1, "x"}, []any{int64(1), "x"}, true},
		{"list length", []any{1}, []any{int64(1), int64(2)}, false},
		{"time against string", time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC), "2020-01-03T00:00:00Z", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchValue(tt.expected, tt.actual))
		})
	}
}

func TestSameMultiset(t *testing.T) {
	a := []any{[]any{true, int64(2)}, []any{false, int64(1)}}
	b := []any{[]any{false, int64(1)}, []any{true, int64(2)}}
	assert.True(t, sameMultiset(a, b))

	c := []any{[]any{false, int64(1)}, []any{false, int64(1)}}
	assert.False(t, sameMultiset(a, c))
}

func TestAssertSQL(t *testing.T) {
	result := &Result{SQL: "SELECT t0.ID FROM DEPT t0"}

	assert.NoError(t, assertSQL(result, Assertion{Type: AssertSQLContains, SQL: "FROM DEPT"}))
	assert.NoError(t, assertSQL(result, Assertion{Type: AssertSQLNotContains, SQL: "JOIN"}))

	err := assertSQL(result, Assertion{Type: AssertSQLContains, SQL: "JOIN"})
	assert.ErrorContains(t, err, "not found")
	err = assertSQL(result, Assertion{Type: AssertSQLNotContains, SQL: "DEPT"})
	assert.ErrorContains(t, err, "SQL without DEPT")
}

func TestAssertPortable(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: s
description: d
mapping: "entity: {}"
query:
  version: 1
  from: A
  select: [{fn: index, of: {path: a.items}}]
assertions: [{type: portable, portable: false}]
`))
	if !assert.NoError(t, err) {
		return
	}
	portable := false
	assert.NoError(t, assertPortable(s.Document(), Assertion{Portable: &portable, Warnings: []string{"INDEX"}}))

	portable = true
	assert.Error(t, assertPortable(s.Document(), Assertion{Portable: &portable}))
	assert.Error(t, assertPortable(s.Document(), Assertion{Warnings: []string{"subquery"}}))
}
