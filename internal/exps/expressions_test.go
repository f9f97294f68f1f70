package exps_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pierpaolospaziani/openjpa/internal/exps"
	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/schema"
	"github.com/pierpaolospaziani/openjpa/internal/testutil"
)

type company struct {
	repo *mapping.Repository
	dept *mapping.ClassMapping
	emp  *mapping.ClassMapping
	mgr  *mapping.ClassMapping
	doc  *mapping.ClassMapping
	inv  *mapping.ClassMapping
}

func loadCompany(t *testing.T) company {
	t.Helper()
	repo := testutil.Company(t)
	c := company{repo: repo}
	c.dept, _ = repo.Mapping("Department")
	c.emp, _ = repo.Mapping("Employee")
	c.mgr, _ = repo.Mapping("Manager")
	c.doc, _ = repo.Mapping("Document")
	c.inv, _ = repo.Mapping("Invoice")
	return c
}

func TestLit_OnlyTemporalLiteralsStartRaw(t *testing.T) {
	f := exps.NewFactory()
	day := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, f.Literal(day, exps.LitDate).IsRaw())
	assert.True(t, f.Literal(day, exps.LitTime).IsRaw())
	assert.True(t, f.Literal(day, exps.LitTimestamp).IsRaw())
	assert.False(t, f.Literal("x", exps.LitString).IsRaw())
	assert.False(t, f.Literal(1, exps.LitNumber).IsRaw())

	assert.Equal(t, schema.JavaSQLDate, f.Literal(day, exps.LitDate).Type())
}

func TestCompare_NarrowsConstantToPathType(t *testing.T) {
	c := loadCompany(t)
	f := exps.NewFactory()
	f.Query(c.emp, "e")
	lit := f.Literal(50000, exps.LitNumber)
	f.Compare(exps.OpGT, f.MustPath("e", "salary"), lit)
	assert.Equal(t, schema.JavaDouble, lit.Type())
	assert.Equal(t, 50000.0, lit.Value())

	param := f.Param("name")
	f.Equal(f.MustPath("e", "name"), param)
	assert.Equal(t, schema.JavaString, param.Type())
}

func TestArgs_FlattenNestedLists(t *testing.T) {
	f := exps.NewFactory()
	a := f.Literal("a", exps.LitString)
	b := f.Literal(int64(1), exps.LitNumber)
	c := f.Literal(true, exps.LitBoolean)
	args := f.Args(f.Args(a, b), c)
	require.Len(t, args.Vals, 3)
	assert.Equal(t, schema.JavaArray, args.Type())
	assert.Equal(t, []schema.JavaType{schema.JavaString, schema.JavaLong, schema.JavaBoolean}, args.Types())
}

func TestNullIf_Type(t *testing.T) {
	c := loadCompany(t)
	f := exps.NewFactory()
	f.Query(c.emp, "e")

	n := f.NullIf(f.MustPath("e", "salary"), f.Literal(int32(0), exps.LitNumber))
	assert.Equal(t, schema.JavaDouble, n.Type())

	day := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	raw := f.NullIf(f.MustPath("e", "hired"), f.Literal(day, exps.LitDate))
	assert.Equal(t, schema.JavaString, raw.Type())
}

func TestSubQ_Type(t *testing.T) {
	c := loadCompany(t)
	f := exps.NewFactory()
	f.Query(c.dept, "d")

	sub, sq := f.Subquery(c.emp, true, "e")
	assert.Equal(t, schema.JavaEntity, sub.Type())
	assert.Same(t, c.emp, sub.Meta())

	sq.Projections = []exps.Val{f.Max(f.MustPath("e", "salary"))}
	assert.Equal(t, schema.JavaDouble, sub.Type())
	assert.Nil(t, sub.Meta())

	sub.SetImplicitType(schema.JavaLong)
	assert.Equal(t, schema.JavaLong, sub.Type())
	assert.Equal(t, schema.JavaLong, sq.Projections[0].Type())
}

func TestPath_ResolvesTypes(t *testing.T) {
	c := loadCompany(t)
	f := exps.NewFactory()
	f.Query(c.emp, "e")

	name := f.MustPath("e", "dept", "name")
	assert.Equal(t, schema.JavaString, name.Type())
	assert.Nil(t, name.Meta())
	assert.Equal(t, "e.dept.name", name.String())

	dept := f.MustPath("e", "dept")
	assert.Equal(t, schema.JavaEntity, dept.Type())
	assert.Same(t, c.dept, dept.Meta())

	emps := f.MustPath("e", "dept", "employees")
	assert.Equal(t, schema.JavaCollection, emps.Type())
	assert.Equal(t, mapping.ToMany, emps.Kind())

	_, err := f.Path("e", "nickname")
	assert.True(t, exps.IsUnknownField(err))
	_, err = f.Path("e", "name", "length")
	assert.True(t, exps.IsInvalidQuery(err))
	_, err = f.Path("x", "name")
	assert.True(t, exps.IsInvalidQuery(err))
}

func TestQueryExpressions_Validate(t *testing.T) {
	c := loadCompany(t)

	t.Run("aggregate mixed with value", func(t *testing.T) {
		f := exps.NewFactory()
		q := f.Query(c.emp, "e")
		q.Projections = []exps.Val{f.MustPath("e", "name"), f.Count(f.MustPath("e"))}
		assert.True(t, exps.IsInvalidQuery(q.Validate()))

		q.Grouping = []exps.Val{q.Projections[0]}
		assert.NoError(t, q.Validate())
	})

	t.Run("unknown fetch field", func(t *testing.T) {
		q := exps.NewFactory().Query(c.emp, "e")
		q.Fetch = []string{"boss"}
		assert.True(t, exps.IsUnknownField(q.Validate()))
	})

	t.Run("fetch of a basic field", func(t *testing.T) {
		q := exps.NewFactory().Query(c.emp, "e")
		q.Fetch = []string{"name"}
		assert.True(t, exps.IsInvalidQuery(q.Validate()))
	})

	t.Run("having without grouping", func(t *testing.T) {
		f := exps.NewFactory()
		q := f.Query(c.emp, "e")
		q.Having = f.Compare(exps.OpGT, f.MustPath("e", "salary"), f.Literal(1, exps.LitNumber))
		assert.True(t, exps.IsInvalidQuery(q.Validate()))
	})

	t.Run("inverted range", func(t *testing.T) {
		q := exps.NewFactory().Query(c.emp, "e")
		q.Start, q.End = 10, 5
		assert.True(t, exps.IsInvalidQuery(q.Validate()))
	})
}

func TestQueryExpressions_ParamsIncludeSubqueries(t *testing.T) {
	c := loadCompany(t)
	f := exps.NewFactory()
	q := f.Query(c.dept, "d")
	sub, sq := f.Subquery(c.emp, true, "e")
	sq.Filter = f.Compare(exps.OpGT, f.MustPath("e", "salary"), f.Param("min"))
	q.Filter = f.And(
		f.Equal(f.MustPath("d", "name"), f.Param("name")),
		f.IsEmpty(sub, true))
	q.Ordering = []exps.Order{{Val: f.MustPath("d", "name"), Asc: true}}

	assert.Equal(t, []string{"name", "min"}, q.Params())
	assert.False(t, q.HasAggregate())
}
