package sql_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pierpaolospaziani/openjpa/internal/sql"
)

func TestFetchConfiguration_Defaults(t *testing.T) {
	f := sql.NewFetchConfiguration()
	assert.Equal(t, sql.EagerParallel, f.EagerMode)
	assert.Equal(t, sql.ScrollInsensitive, f.ResultSetType)
	assert.True(t, f.CloseStatement)
	assert.True(t, f.CloseConnection)
	assert.False(t, f.UseLiteralInSQL())
}

func TestFetchConfiguration_Hints(t *testing.T) {
	f := sql.NewFetchConfiguration()
	f.SetHint(sql.HintUseLiteralInSQL, "true")
	assert.True(t, f.UseLiteralInSQL())

	f.SetHint(sql.HintUseLiteralInSQL, false)
	assert.False(t, f.UseLiteralInSQL())

	f.SetHint(sql.HintUseLiteralInSQL, "not a bool")
	assert.False(t, f.UseLiteralInSQL())

	clone := f.Clone()
	clone.SetHint(sql.HintUseLiteralInSQL, true)
	assert.False(t, f.UseLiteralInSQL())
	assert.True(t, clone.UseLiteralInSQL())

	f.SetHint(sql.HintUseLiteralInSQL, nil)
	assert.Empty(t, f.Hints())
	assert.Nil(t, f.Hint("missing"))
}

func TestParseModes(t *testing.T) {
	tests := []struct {
		in   string
		want sql.EagerMode
		ok   bool
	}{
		{"none", sql.EagerNone, true},
		{"inner", sql.EagerInner, true},
		{"outer", sql.EagerOuter, true},
		{"parallel", sql.EagerParallel, true},
		{"sideways", sql.EagerNone, false},
	}
	for _, tt := range tests {
		got, ok := sql.ParseEagerMode(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
			assert.Equal(t, tt.in, got.String())
		}
	}

	rt, ok := sql.ParseResultSetType("forward-only")
	assert.True(t, ok)
	assert.Equal(t, sql.ForwardOnly, rt)
	_, ok = sql.ParseResultSetType("sideways")
	assert.False(t, ok)

	assert.NotEqual(t, sql.UUIDGenerator{}.Generate(), sql.UUIDGenerator{}.Generate())
}
