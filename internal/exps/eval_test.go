package exps_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pierpaolospaziani/openjpa/internal/exps"
)

func employees(c company) (alice, bob, eve *exps.Object) {
	eng := &exps.Object{Mapping: c.dept, ID: []any{int64(1)}, Values: map[string]any{"name": "Engineering"}}
	alice = &exps.Object{Mapping: c.emp, ID: []any{int64(1)}, Values: map[string]any{
		"name": "Alice", "salary": 120000.0, "active": true, "dept": eng,
	}}
	bob = &exps.Object{Mapping: c.emp, ID: []any{int64(2)}, Values: map[string]any{
		"name": "Bob", "salary": 90000.0, "active": true, "dept": int64(1),
	}}
	eve = &exps.Object{Mapping: c.emp, ID: []any{int64(5)}, Values: map[string]any{
		"name": "Eve", "active": true,
	}}
	eng.Values["employees"] = []*exps.Object{alice}
	return alice, bob, eve
}

func TestEval_NavigatesLoadedRelations(t *testing.T) {
	c := loadCompany(t)
	alice, bob, _ := employees(c)
	f := exps.NewFactory()
	f.Query(c.emp, "e")
	path := f.MustPath("e", "dept", "name")

	v, err := exps.Eval(path, &exps.Env{Candidate: alice, Alias: "e"})
	require.NoError(t, err)
	assert.Equal(t, "Engineering", v)

	// bob holds only the foreign key of his department
	v, err = exps.Eval(path, &exps.Env{Candidate: bob, Alias: "e"})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestEval_Arithmetic(t *testing.T) {
	c := loadCompany(t)
	alice, _, eve := employees(c)
	f := exps.NewFactory()
	f.Query(c.emp, "e")
	raise := f.Math(exps.OpAdd, f.MustPath("e", "salary"), f.Literal(1000, exps.LitNumber))

	v, err := exps.Eval(raise, &exps.Env{Candidate: alice, Alias: "e"})
	require.NoError(t, err)
	assert.Equal(t, 121000.0, v)

	v, err = exps.Eval(raise, &exps.Env{Candidate: eve, Alias: "e"})
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = exps.Eval(f.Math(exps.OpDivide, f.MustPath("e", "salary"), f.Literal(0, exps.LitNumber)),
		&exps.Env{Candidate: alice, Alias: "e"})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestEval_AggregatesOverGroup(t *testing.T) {
	c := loadCompany(t)
	alice, bob, eve := employees(c)
	f := exps.NewFactory()
	f.Query(c.emp, "e")
	salary := f.MustPath("e", "salary")

	env := &exps.Env{Alias: "e", Group: []any{alice, bob, eve}}
	v, err := exps.Eval(f.Avg(salary), env)
	require.NoError(t, err)
	assert.Equal(t, 105000.0, v)

	v, err = exps.Eval(f.Count(salary), env)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	v, err = exps.Eval(f.Max(salary), env)
	require.NoError(t, err)
	assert.Equal(t, 120000.0, v)

	empty := &exps.Env{Alias: "e", Group: []any{}}
	v, err = exps.Eval(f.Avg(salary), empty)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = exps.Eval(f.Sum(salary), &exps.Env{Alias: "e", Group: []any{eve}})
	require.NoError(t, err)
	assert.Nil(t, v)

	// every salary in the group is null
	allNull := &exps.Env{Alias: "e", Group: []any{eve, eve}}
	v, err = exps.Eval(f.Avg(salary), allNull)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = exps.Eval(f.Count(salary), allNull)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestEval_CaseCoalesceNullIf(t *testing.T) {
	c := loadCompany(t)
	alice, _, eve := employees(c)
	f := exps.NewFactory()
	f.Query(c.emp, "e")

	band := f.Case(nil, []exps.When{{
		Cond:   f.Compare(exps.OpGE, f.MustPath("e", "salary"), f.Literal(100000, exps.LitNumber)),
		Result: f.Literal("high", exps.LitString),
	}}, f.Literal("low", exps.LitString))
	v, err := exps.Eval(band, &exps.Env{Candidate: alice, Alias: "e"})
	require.NoError(t, err)
	assert.Equal(t, "high", v)
	v, err = exps.Eval(band, &exps.Env{Candidate: eve, Alias: "e"})
	require.NoError(t, err)
	assert.Equal(t, "low", v)

	salaryOrZero := f.Coalesce(f.MustPath("e", "salary"), f.Literal(0.0, exps.LitNumber))
	v, err = exps.Eval(salaryOrZero, &exps.Env{Candidate: eve, Alias: "e"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = exps.Eval(f.NullIf(f.MustPath("e", "name"), f.Literal("Alice", exps.LitString)),
		&exps.Env{Candidate: alice, Alias: "e"})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestEval_IndexIsUnsupported(t *testing.T) {
	c := loadCompany(t)
	alice, _, _ := employees(c)
	f := exps.NewFactory()
	f.Query(c.emp, "e")

	_, err := exps.Eval(f.Index(f.MustPath("e", "dept", "employees")), &exps.Env{Candidate: alice, Alias: "e"})
	require.Error(t, err)
	assert.True(t, exps.IsUnsupported(err))

	var qerr *exps.QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, exps.ErrCodeUnsupported, qerr.Code)
}

func TestMatch_Conditions(t *testing.T) {
	c := loadCompany(t)
	alice, bob, eve := employees(c)
	f := exps.NewFactory()
	f.Query(c.emp, "e")
	params := map[string]any{"names": []string{"Alice", "Eve"}, "min": 100000}

	tests := []struct {
		name string
		exp  exps.Exp
		want map[*exps.Object]bool
	}{
		{
			name: "greater than",
			exp:  f.Compare(exps.OpGT, f.MustPath("e", "salary"), f.Param("min")),
			want: map[*exps.Object]bool{alice: true, bob: false, eve: false},
		},
		{
			name: "in parameter list",
			exp:  f.In(f.MustPath("e", "name"), f.Param("names"), false),
			want: map[*exps.Object]bool{alice: true, bob: false, eve: true},
		},
		{
			name: "is null",
			exp:  f.IsNull(f.MustPath("e", "salary"), false),
			want: map[*exps.Object]bool{alice: false, bob: false, eve: true},
		},
		{
			name: "like",
			exp:  f.Like(f.MustPath("e", "name"), f.Literal("_l%", exps.LitString), 0, false),
			want: map[*exps.Object]bool{alice: true, bob: false, eve: false},
		},
		{
			name: "or",
			exp: f.Or(
				f.Equal(f.MustPath("e", "name"), f.Literal("Bob", exps.LitString)),
				f.IsNull(f.MustPath("e", "salary"), false)),
			want: map[*exps.Object]bool{alice: false, bob: true, eve: true},
		},
		{
			name: "not",
			exp:  f.Not(f.Equal(f.MustPath("e", "name"), f.Literal("Bob", exps.LitString))),
			want: map[*exps.Object]bool{alice: true, bob: false, eve: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for obj, want := range tt.want {
				got, err := exps.Match(tt.exp, &exps.Env{Candidate: obj, Alias: "e", Params: params})
				require.NoError(t, err)
				assert.Equal(t, want, got, "%s", obj.Values["name"])
			}
		})
	}
}

func TestMatch_LikeEscape(t *testing.T) {
	c := loadCompany(t)
	f := exps.NewFactory()
	f.Query(c.dept, "d")
	like := f.Like(f.MustPath("d", "name"), f.Literal(`100\%%`, exps.LitString), '\\', false)

	full := &exps.Object{Mapping: c.dept, Values: map[string]any{"name": "100% done"}}
	plain := &exps.Object{Mapping: c.dept, Values: map[string]any{"name": "1000 done"}}

	ok, err := exps.Match(like, &exps.Env{Candidate: full, Alias: "d"})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = exps.Match(like, &exps.Env{Candidate: plain, Alias: "d"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatch_IsEmptyOverLoadedCollection(t *testing.T) {
	c := loadCompany(t)
	alice, _, _ := employees(c)
	eng := alice.Values["dept"].(*exps.Object)
	research := &exps.Object{Mapping: c.dept, ID: []any{int64(3)}, Values: map[string]any{"employees": []*exps.Object{}}}

	f := exps.NewFactory()
	f.Query(c.dept, "d")
	empty := f.IsEmpty(f.MustPath("d", "employees"), false)

	ok, err := exps.Match(empty, &exps.Env{Candidate: eng, Alias: "d"})
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = exps.Match(empty, &exps.Env{Candidate: research, Alias: "d"})
	require.NoError(t, err)
	assert.True(t, ok)

	size, err := exps.Eval(f.Size(f.MustPath("d", "employees")), &exps.Env{Candidate: eng, Alias: "d"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}
