package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

const companyCUE = `
entity: Department: {
	table: "DEPT"
	id: ["id"]
	fields: {
		id:   {column: "ID", type: "long"}
		name: {column: "NAME", type: "string", size: 64}
		employees: {relation: "Employee", mappedBy: "dept", many: true, eager: "parallel"}
	}
}
entity: Employee: {
	table: "EMPLOYEE"
	id: ["id"]
	discriminator: {column: "TYPE", value: "EMP"}
	fields: {
		id:     {column: "ID", type: "long"}
		name:   {column: "NAME", type: "string", notNull: true}
		salary: {column: "SALARY", type: "double"}
		dept:   {relation: "Department", column: "DEPT_ID", eager: "join"}
	}
}
entity: Manager: {
	extends: "Employee"
	discriminator: {column: "TYPE", value: "MGR"}
	fields: bonus: {column: "BONUS", type: "double"}
}
entity: Document: {
	table: "DOC"
	id: ["id"]
	fields: {
		id:    {type: "long"}
		title: {}
	}
}
entity: Invoice: {
	extends: "Document"
	table: "INVOICE"
	fields: amount: {type: "decimal"}
}
`

func TestCompile_BasicFields(t *testing.T) {
	repo, err := LoadString(companyCUE)
	require.NoError(t, err)

	emp, ok := repo.Mapping("Employee")
	require.True(t, ok)
	assert.Equal(t, "EMPLOYEE", emp.Table.Name())
	require.Len(t, emp.PrimaryKey, 1)
	assert.Equal(t, "ID", emp.PrimaryKey[0].Name())

	salary := emp.Field("salary")
	require.NotNil(t, salary)
	assert.Equal(t, schema.JavaDouble, salary.Type)
	assert.Equal(t, schema.Double, salary.Columns[0].Type())
	assert.True(t, emp.Field("name").Columns[0].NotNull())

	dept, _ := repo.Mapping("Department")
	assert.Equal(t, 64, dept.Field("name").Columns[0].Size())
}

func TestCompile_DefaultColumnNames(t *testing.T) {
	repo, err := LoadString(companyCUE)
	require.NoError(t, err)

	doc, _ := repo.Mapping("Document")
	assert.Equal(t, "TITLE", doc.Field("title").Columns[0].Name())
	assert.Equal(t, schema.JavaString, doc.Field("title").Type)
}

func TestCompile_ToOneRelation(t *testing.T) {
	repo, err := LoadString(companyCUE)
	require.NoError(t, err)

	emp, _ := repo.Mapping("Employee")
	dept := emp.Field("dept")
	require.NotNil(t, dept)
	assert.Equal(t, ToOne, dept.Kind)
	assert.False(t, dept.Inverse)
	assert.Equal(t, EagerJoin, dept.Eager)
	require.NotNil(t, dept.ForeignKey)
	assert.Equal(t, "DEPT", dept.ForeignKey.PrimaryKeyTable().Name())
	assert.Equal(t, "DEPT_ID", dept.Columns[0].Name())
	assert.Equal(t, schema.JavaLong, dept.Columns[0].JavaType())
}

func TestCompile_InverseToMany(t *testing.T) {
	repo, err := LoadString(companyCUE)
	require.NoError(t, err)

	dept, _ := repo.Mapping("Department")
	emps := dept.Field("employees")
	require.NotNil(t, emps)
	assert.Equal(t, ToMany, emps.Kind)
	assert.True(t, emps.Inverse)
	assert.Equal(t, EagerParallel, emps.Eager)
	assert.Equal(t, schema.JavaCollection, emps.Type)

	emp, _ := repo.Mapping("Employee")
	assert.Same(t, emp.Field("dept").ForeignKey, emps.ForeignKey)
}

func TestCompile_SingleTableInheritance(t *testing.T) {
	repo, err := LoadString(companyCUE)
	require.NoError(t, err)

	emp, _ := repo.Mapping("Employee")
	mgr, _ := repo.Mapping("Manager")
	assert.Same(t, emp.Table, mgr.Table)
	assert.True(t, emp.SharesTable(mgr))
	assert.True(t, emp.IsAssignableFrom(mgr))
	assert.False(t, mgr.IsAssignableFrom(emp))
	assert.Same(t, emp.Discriminator, mgr.Discriminator)
	assert.Equal(t, []any{"EMP", "MGR"}, emp.DiscriminatorValues(true))
	assert.Equal(t, []any{"EMP"}, emp.DiscriminatorValues(false))

	// inherited through the superclass chain
	assert.NotNil(t, mgr.Field("salary"))
	assert.Equal(t, "BONUS", mgr.Field("bonus").Columns[0].Name())
	assert.Equal(t, emp.PrimaryKey, mgr.PrimaryKey)
}

func TestCompile_TablePerClass(t *testing.T) {
	repo, err := LoadString(companyCUE)
	require.NoError(t, err)

	doc, _ := repo.Mapping("Document")
	inv, _ := repo.Mapping("Invoice")
	assert.False(t, doc.SharesTable(inv))
	assert.Equal(t, "INVOICE", inv.Table.Name())

	title := inv.Field("title")
	require.NotNil(t, title)
	assert.Same(t, inv, title.Owner)
	assert.Same(t, inv.Table, title.Columns[0].Table())
	assert.Same(t, inv.Table, inv.PrimaryKey[0].Table())
	assert.Equal(t, []*ClassMapping{doc, inv}, doc.ConcreteMappings())
}

func TestRepository_Listings(t *testing.T) {
	repo, err := LoadString(companyCUE)
	require.NoError(t, err)

	var names []string
	for _, m := range repo.Mappings() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"Department", "Document", "Employee", "Invoice", "Manager"}, names)

	var tables []string
	for _, tbl := range repo.Tables() {
		tables = append(tables, tbl.Name())
	}
	assert.Equal(t, []string{"DEPT", "DOC", "EMPLOYEE", "INVOICE"}, tables)
}

func TestAllFields_SuperclassFirst(t *testing.T) {
	repo, err := LoadString(companyCUE)
	require.NoError(t, err)

	mgr, _ := repo.Mapping("Manager")
	var names []string
	for _, f := range mgr.AllFields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"id", "name", "salary", "dept", "bonus"}, names)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "missing table",
			src:  `entity: A: {id: ["id"], fields: id: {type: "long"}}`,
			want: "table is required",
		},
		{
			name: "missing id",
			src:  `entity: A: {table: "A", fields: name: {}}`,
			want: "primary key is required",
		},
		{
			name: "unknown type",
			src:  `entity: A: {table: "A", id: ["id"], fields: id: {type: "quaternion"}}`,
			want: `unknown type "quaternion"`,
		},
		{
			name: "unknown relation",
			src:  `entity: A: {table: "A", id: ["id"], fields: {id: {type: "long"}, b: {relation: "B"}}}`,
			want: `unknown relation "B"`,
		},
		{
			name: "unknown parent",
			src:  `entity: A: {extends: "Z", table: "A", id: ["id"], fields: id: {}}`,
			want: `unknown entity "Z"`,
		},
		{
			name: "to-many without mappedBy",
			src:  `entity: A: {table: "A", id: ["id"], fields: {id: {}, bs: {relation: "A", many: true}}}`,
			want: "to-many relation requires mappedBy",
		},
		{
			name: "no entities",
			src:  `other: 1`,
			want: "no entity definitions",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadString(tt.src)
			require.Error(t, err)
			assert.True(t, IsCompileError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompile_MappedByMustBeOwningSide(t *testing.T) {
	src := `
entity: A: {table: "A", id: ["id"], fields: {id: {type: "long"}, bs: {relation: "B", mappedBy: "name", many: true}}}
entity: B: {table: "B", id: ["id"], fields: {id: {type: "long"}, name: {}}}
`
	_, err := LoadString(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not an owning to-one relation")
}

func TestParseEagerMode(t *testing.T) {
	m, ok := ParseEagerMode("outer")
	assert.True(t, ok)
	assert.Equal(t, EagerJoin, m)
	_, ok = ParseEagerMode("sometimes")
	assert.False(t, ok)
	assert.Equal(t, "parallel", EagerParallel.String())
}
