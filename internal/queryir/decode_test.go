package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_FullDocument(t *testing.T) {
	doc, err := DecodeFile("testdata/queries/payroll.yaml")
	require.NoError(t, err)

	assert.Equal(t, Version, doc.Version)
	assert.Equal(t, "Employee", doc.From)
	assert.Empty(t, doc.Alias)
	require.Len(t, doc.Select, 3)
	assert.Equal(t, "path", doc.Select[0].form())
	assert.Equal(t, "agg", doc.Select[1].form())
	assert.Equal(t, "count", doc.Select[1].Agg)
	assert.Equal(t, "e.salary", doc.Select[2].Of.Path)
	require.Len(t, doc.GroupBy, 1)
	require.NotNil(t, doc.Having)
	assert.Equal(t, "gt", doc.Having.form())
	require.Len(t, doc.Order, 1)
	assert.True(t, doc.Order[0].Desc)
	assert.Equal(t, &Range{Start: 0, End: 10}, doc.Range)
}

func TestDecode_NestedDocument(t *testing.T) {
	doc, err := DecodeFile("testdata/queries/staffed_departments.yaml")
	require.NoError(t, err)

	require.NotNil(t, doc.Filter)
	assert.Equal(t, "exists", doc.Filter.form())
	sub := doc.Filter.Exists
	assert.Equal(t, "Employee", sub.From)
	assert.Equal(t, "x", sub.Alias)
	assert.Zero(t, sub.Version)
	assert.Equal(t, "eq", sub.Filter.form())
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "", "empty query document"},
		{"no version", "from: Employee\n", "no version"},
		{"future version", "version: 2\nfrom: Employee\n", "unsupported query document version 2"},
		{"no from", "version: 1\n", "no from"},
		{"unknown key", "version: 1\nfrom: Employee\nwhere: {}\n", "field where not found"},
		{"bad shape", "version: 1\nfrom: [Employee]\n", "decode query document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecode_JSON(t *testing.T) {
	doc, err := Decode([]byte(`{"version": 1, "from": "Department", "select": [{"path": "d.name"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Department", doc.From)
	assert.Equal(t, "d.name", doc.Select[0].Path)
}

func TestDecodeFile_NamesThePath(t *testing.T) {
	_, err := DecodeFile("testdata/queries/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read query document")
}

func TestEncode_StampsVersion(t *testing.T) {
	doc := &Document{
		From:   "Employee",
		Select: []Value{{Path: "e.name"}},
		Filter: &Cond{IsNull: &Value{Path: "e.salary"}},
	}
	data, err := Encode(doc)
	require.NoError(t, err)
	assert.Zero(t, doc.Version, "Encode must not modify its argument")

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Version, back.Version)
	assert.Equal(t, doc.Select, back.Select)
	assert.Equal(t, doc.Filter, back.Filter)
}

func TestForm_RejectsAmbiguousValues(t *testing.T) {
	assert.Equal(t, "", (&Value{}).form())
	assert.Equal(t, "", (&Value{Path: "e.name", Param: "p"}).form())
	assert.Equal(t, "null", (&Value{Null: true}).form())
	assert.Equal(t, "", (&Cond{}).form())
	assert.Equal(t, "", (&Cond{Eq: []Value{}, Ne: []Value{}}).form())
	assert.Equal(t, "ne", (&Cond{Ne: []Value{{Null: true}}}).form())
}
