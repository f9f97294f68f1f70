package exps_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pierpaolospaziani/openjpa/internal/exps"
	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

func TestPromote(t *testing.T) {
	tests := []struct {
		a, b, want schema.JavaType
	}{
		{schema.JavaInt, schema.JavaLong, schema.JavaLong},
		{schema.JavaLong, schema.JavaFloat, schema.JavaFloat},
		{schema.JavaShort, schema.JavaDouble, schema.JavaDouble},
		{schema.JavaBigInteger, schema.JavaDouble, schema.JavaBigDecimal},
		{schema.JavaBigInteger, schema.JavaLong, schema.JavaBigInteger},
		{schema.JavaObject, schema.JavaInt, schema.JavaInt},
		{schema.JavaString, schema.JavaChar, schema.JavaString},
		{schema.JavaSQLDate, schema.JavaTimestamp, schema.JavaTimestamp},
		{schema.JavaString, schema.JavaInt, schema.JavaObject},
		{schema.JavaNumber, schema.JavaInt, schema.JavaNumber},
	}
	for _, tt := range tests {
		t.Run(tt.a.String()+"/"+tt.b.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, exps.Promote(tt.a, tt.b))
			assert.Equal(t, tt.want, exps.Promote(tt.b, tt.a))
		})
	}
}

func TestSumType(t *testing.T) {
	tests := []struct {
		in, want schema.JavaType
	}{
		{schema.JavaByte, schema.JavaLong},
		{schema.JavaShort, schema.JavaLong},
		{schema.JavaInt, schema.JavaLong},
		{schema.JavaLong, schema.JavaLong},
		{schema.JavaFloat, schema.JavaDouble},
		{schema.JavaDouble, schema.JavaDouble},
		{schema.JavaBigDecimal, schema.JavaBigDecimal},
		{schema.JavaBigInteger, schema.JavaBigInteger},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exps.SumType(tt.in), "SUM over %s", tt.in)
	}
}

func TestConvert(t *testing.T) {
	v, err := exps.Convert(int64(7), schema.JavaInt)
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)

	v, err = exps.Convert(50000, schema.JavaDouble)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, v)

	v, err = exps.Convert("1.5", schema.JavaDouble)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	v, err = exps.Convert(42, schema.JavaString)
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	v, err = exps.Convert(nil, schema.JavaLong)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = exps.Convert("not a number", schema.JavaDouble)
	assert.Error(t, err)
}

func TestArithmetic(t *testing.T) {
	v, err := exps.Arithmetic(int32(7), exps.OpAdd, int64(5))
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)

	v, err = exps.Arithmetic(7, exps.OpMod, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	v, err = exps.Arithmetic(120000.0, exps.OpAdd, 1000)
	require.NoError(t, err)
	assert.Equal(t, 121000.0, v)

	v, err = exps.Arithmetic(big.NewInt(6), exps.OpMultiply, big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, 0, v.(*big.Int).Cmp(big.NewInt(42)))

	v, err = exps.Arithmetic(nil, exps.OpAdd, 1)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = exps.Arithmetic(1, exps.OpDivide, 0)
	assert.True(t, exps.IsInvalidQuery(err))
}

func TestCompareValuesAndEqual(t *testing.T) {
	c, err := exps.CompareValues(1, 2.5)
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = exps.CompareValues("b", "a")
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	day := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	c, err = exps.CompareValues(day, day.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	_, err = exps.CompareValues(true, []int{1})
	assert.Error(t, err)

	assert.True(t, exps.Equal(int64(3), int32(3)))
	assert.True(t, exps.Equal(nil, nil))
	assert.False(t, exps.Equal(nil, 0))
	assert.False(t, exps.Equal("a", "b"))
}

func TestEqual_ObjectMatchesItsKey(t *testing.T) {
	c := loadCompany(t)
	sales := &exps.Object{Mapping: c.dept, ID: []any{int64(2)}}
	same := &exps.Object{Mapping: c.dept, ID: []any{int64(2)}}
	other := &exps.Object{Mapping: c.dept, ID: []any{int64(3)}}

	assert.True(t, exps.Equal(sales, int64(2)))
	assert.True(t, exps.Equal(2, sales))
	assert.True(t, exps.Equal(sales, same))
	assert.False(t, exps.Equal(sales, other))
	assert.Equal(t, "Department:2", sales.Key())
}

func TestEqual_SubclassSharesIdentityWithRoot(t *testing.T) {
	c := loadCompany(t)
	carol := &exps.Object{Mapping: c.mgr, ID: []any{int64(3)}}
	asEmployee := &exps.Object{Mapping: c.emp, ID: []any{int64(3)}}
	assert.True(t, carol.SameIdentity(asEmployee))
	assert.Equal(t, "Employee:3", carol.Key())
}
