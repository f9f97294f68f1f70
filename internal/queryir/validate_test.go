package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_PortableQuery(t *testing.T) {
	doc, err := DecodeFile("testdata/queries/engineering.yaml")
	require.NoError(t, err)

	result := Validate(doc)

	assert.True(t, result.IsPortable, "simple filter should be portable")
	assert.Empty(t, result.Warnings, "no warnings for portable query")
}

func TestValidate_AggregatesArePortable(t *testing.T) {
	doc, err := DecodeFile("testdata/queries/payroll.yaml")
	require.NoError(t, err)

	result := Validate(doc)

	assert.True(t, result.IsPortable)
	assert.Empty(t, result.Warnings)
}

func TestValidate_ExistsSubquery(t *testing.T) {
	doc, err := DecodeFile("testdata/queries/staffed_departments.yaml")
	require.NoError(t, err)

	result := Validate(doc)

	assert.False(t, result.IsPortable, "subqueries are not portable")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "filter: ")
	assert.Contains(t, result.Warnings[0], "Subquery over Employee")
}

func TestValidate_Nil(t *testing.T) {
	result := Validate(nil)

	assert.False(t, result.IsPortable)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "nil query")
}

func TestValidate_Warnings(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want []string
	}{
		{
			name: "eq null",
			doc: Document{From: "Employee", Filter: &Cond{
				Eq: []Value{{Path: "e.salary"}, {Null: true}},
			}},
			want: []string{"filter: Field compared to NULL with eq"},
		},
		{
			name: "ne null",
			doc: Document{From: "Employee", Filter: &Cond{
				Not: &Cond{Ne: []Value{{Null: true}, {Path: "e.salary"}}},
			}},
			want: []string{"filter: Field compared to NULL with ne"},
		},
		{
			name: "lt null is portable",
			doc: Document{From: "Employee", Filter: &Cond{
				Lt: []Value{{Path: "e.salary"}, {Null: true}},
			}},
		},
		{
			name: "date literal",
			doc: Document{From: "Employee", Filter: &Cond{
				Ge: []Value{{Path: "e.hired"}, {Lit: "2020-01-01", Kind: "date"}},
			}},
			want: []string{"filter: date literal renders dialect-specific SQL"},
		},
		{
			name: "index",
			doc: Document{From: "Department", Select: []Value{
				{Fn: "index", Of: &Value{Path: "d.employees"}},
			}},
			want: []string{"select 0: INDEX has no SQL or in-memory form"},
		},
		{
			name: "size",
			doc: Document{From: "Department", Order: []Order{
				{By: Value{Fn: "size", Of: &Value{Path: "d.employees"}}},
			}},
			want: []string{"order 0: SIZE needs a fetched collection"},
		},
		{
			name: "empty collection",
			doc: Document{From: "Department", Filter: &Cond{
				NotEmpty: &Value{Path: "d.employees"},
			}},
			want: []string{"filter: Emptiness of d.employees"},
		},
		{
			name: "in subquery",
			doc: Document{From: "Department", Filter: &Cond{
				In: &In{Value: Value{Path: "d"}, Subquery: &Document{From: "Employee", Select: []Value{{Path: "e.dept"}}}},
			}},
			want: []string{"filter: Subquery over Employee"},
		},
		{
			name: "nested subquery is walked",
			doc: Document{From: "Department", Select: []Value{
				{Subquery: &Document{From: "Employee", Select: []Value{
					{Agg: "max", Of: &Value{Lit: "2020-01-01T00:00:00Z", Kind: "timestamp"}},
				}}},
			}},
			want: []string{
				"select 0: Subquery over Employee",
				"select 0: subquery: select 0: timestamp literal",
			},
		},
		{
			name: "ambiguous value",
			doc: Document{From: "Employee", GroupBy: []Value{
				{Path: "e.name", Param: "p"},
			}},
			want: []string{"group_by 0: Value with no single form"},
		},
		{
			name: "warnings from every branch",
			doc: Document{From: "Employee", Having: &Cond{Or: []Cond{
				{Eq: []Value{{Path: "e.name"}, {Null: true}}},
				{Like: &Like{Value: Value{Path: "e.name"}, Pattern: Value{Lit: "A%"}}},
				{},
			}}},
			want: []string{
				"having: Field compared to NULL with eq",
				"having: Condition with no single form",
			},
		},
		{
			name: "case branches",
			doc: Document{From: "Employee", Select: []Value{
				{Case: &Case{
					Whens: []When{{If: &Cond{Exists: &Document{From: "Manager"}}, Then: Value{Lit: 1}}},
					Else:  &Value{Lit: "12:00:00", Kind: "time"},
				}},
			}},
			want: []string{
				"select 0: Subquery over Manager",
				"select 0: time literal",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(&tt.doc)

			assert.Equal(t, len(tt.want) == 0, result.IsPortable)
			require.Len(t, result.Warnings, len(tt.want), "warnings: %v", result.Warnings)
			for i, want := range tt.want {
				assert.Contains(t, result.Warnings[i], want)
			}
		})
	}
}
