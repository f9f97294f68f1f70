package sql_test

import (
	"io"
	"math/big"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/pierpaolospaziani/openjpa/internal/sql"
	"github.com/pierpaolospaziani/openjpa/internal/testutil"
)

func threeRows(log *testutil.CloseLog) *testutil.FakeRowSet {
	return testutil.NewFakeRowSet(log, []string{"ID", "NAME"},
		[]any{int64(1), "a"}, []any{int64(2), "b"}, []any{int64(3), "c"})
}

func TestResult_SizeRestoresUnpositionedCursor(t *testing.T) {
	res := sql.NewResultSetResult(nil, nil, threeRows(nil), sql.NewSQLiteDictionary())

	n, err := res.Size()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, -1, res.Row())

	ok, err := res.Next()
	require.NoError(t, err)
	require.True(t, ok)
	name, err := res.GetString("NAME")
	require.NoError(t, err)
	assert.Equal(t, "a", name)
}

func TestResult_SizeRestoresMidIteration(t *testing.T) {
	res := sql.NewResultSetResult(nil, nil, threeRows(nil), sql.NewSQLiteDictionary())
	for i := 0; i < 2; i++ {
		ok, err := res.Next()
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, 1, res.Row())

	n, err := res.Size()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	name, err := res.GetString(2)
	require.NoError(t, err)
	assert.Equal(t, "b", name)

	ok, err := res.Next()
	require.NoError(t, err)
	require.True(t, ok)
	name, _ = res.GetString(2)
	assert.Equal(t, "c", name)
	assert.Equal(t, 2, res.Row())
}

func TestResult_ForwardOnly(t *testing.T) {
	fwd := testutil.ForwardRowSet{RowSet: threeRows(nil)}
	res := sql.NewResultSetResult(nil, nil, fwd, sql.NewSQLiteDictionary())
	assert.False(t, res.SupportsRandomAccess())

	_, err := res.Size()
	assert.ErrorIs(t, err, sql.ErrForwardOnly)

	// the next row is reachable by absolute position
	ok, err := res.Absolute(0)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = res.Absolute(2)
	assert.ErrorIs(t, err, sql.ErrForwardOnly)
	assert.True(t, sql.IsCursorError(err))
}

func TestResult_AbsoluteOnScrollable(t *testing.T) {
	res := sql.NewResultSetResult(nil, nil, threeRows(nil), sql.NewSQLiteDictionary())
	ok, err := res.Absolute(2)
	require.NoError(t, err)
	require.True(t, ok)
	id, err := res.GetLong("ID")
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	ok, err = res.Absolute(0)
	require.NoError(t, err)
	require.True(t, ok)
	id, _ = res.GetLong(1)
	assert.Equal(t, int64(1), id)
}

func TestResult_AbsoluteOutOfRangeKeepsRowConsistent(t *testing.T) {
	res := sql.NewResultSetResult(nil, nil, threeRows(nil), sql.NewSQLiteDictionary())
	ok, err := res.Absolute(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, res.Row())

	ok, err = res.Absolute(5)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, res.Row())
	_, err = res.GetLong(1)
	assert.Error(t, err)
	ok, err = res.Next()
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = res.Absolute(-2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, -1, res.Row())

	ok, err = res.Absolute(0)
	require.NoError(t, err)
	require.True(t, ok)
	id, err := res.GetLong("ID")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, 0, res.Row())
}

func TestResult_CloseOrder(t *testing.T) {
	log := &testutil.CloseLog{}
	stmt := &testutil.FakeStmt{Log: log}
	conn := &testutil.FakeConn{Log: log}
	res := sql.NewResultSetResult(conn, stmt, threeRows(log), sql.NewSQLiteDictionary())

	require.NoError(t, res.Close())
	assert.Equal(t, []string{"rowset", "statement", "connection"}, log.Closed())

	// closing twice is a no-op
	require.NoError(t, res.Close())
	assert.Equal(t, 1, conn.Closes)

	_, err := res.Next()
	assert.ErrorIs(t, err, sql.ErrResultClosed)
}

func TestResult_CloseContinuesPastFailures(t *testing.T) {
	log := &testutil.CloseLog{}
	rows := threeRows(log)
	rows.FailClose = true
	stmt := &testutil.FakeStmt{Log: log, FailClose: true}
	conn := &testutil.FakeConn{Log: log}
	res := sql.NewResultSetResult(conn, stmt, rows, sql.NewSQLiteDictionary())
	res.SetLogger(testutil.DiscardLogger())

	stmtFailures := promtest.ToFloat64(sql.CloseErrors("statement"))
	rowFailures := promtest.ToFloat64(sql.CloseErrors("rowset"))

	require.NoError(t, res.Close())
	assert.Equal(t, []string{"rowset", "statement", "connection"}, log.Closed())
	assert.Equal(t, 1, conn.Closes)
	assert.Equal(t, stmtFailures+1, promtest.ToFloat64(sql.CloseErrors("statement")))
	assert.Equal(t, rowFailures+1, promtest.ToFloat64(sql.CloseErrors("rowset")))
}

func TestResult_CloseHonorsOwnership(t *testing.T) {
	log := &testutil.CloseLog{}
	stmt := &testutil.FakeStmt{Log: log}
	conn := &testutil.FakeConn{Log: log}
	res := sql.NewResultSetResult(conn, stmt, threeRows(log), sql.NewSQLiteDictionary())
	res.SetCloseStatement(false)
	res.SetCloseConnection(false)

	require.NoError(t, res.Close())
	assert.Equal(t, []string{"rowset"}, log.Closed())
	assert.Zero(t, stmt.Closes)
	assert.Zero(t, conn.Closes)
}

func TestResult_LookupMissIsNotFound(t *testing.T) {
	res := sql.NewResultSetResult(nil, nil, threeRows(nil), sql.NewSQLiteDictionary())
	res.SetLogger(testutil.DiscardLogger())
	_, _ = res.Next()

	assert.True(t, res.Contains("NAME"))
	assert.True(t, res.Contains(2))
	assert.False(t, res.Contains(3))
	assert.False(t, res.Contains("MISSING"))
	assert.True(t, res.ContainsAll("ID", "NAME"))
	assert.False(t, res.ContainsAll("ID", "MISSING"))

	_, err := res.GetObject("MISSING")
	assert.Error(t, err)
}

func TestResult_ColumnIDsResolveThroughSelect(t *testing.T) {
	c := loadCompany(t)
	sel := sql.NewSelect(sql.NewSQLiteDictionary())
	name := c.col(c.emp, "name")
	sel.Select(c.col(c.emp, "id"), sel.NewJoins())
	sel.Select(name, sel.NewJoins())

	rows := testutil.NewFakeRowSet(nil, []string{"C1", "C2"}, []any{int64(7), "Zed"})
	res := sql.NewResultSetResult(nil, nil, rows, sql.NewSQLiteDictionary())
	res.SetSelect(sel)
	_, _ = res.Next()

	v, err := res.GetObject(name)
	require.NoError(t, err)
	assert.Equal(t, "Zed", v)
	v, err = res.GetObject(sql.ColumnRef{Column: c.col(c.emp, "id")})
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
}

func TestResult_TypedGetters(t *testing.T) {
	when := time.Date(2021, time.March, 4, 5, 6, 7, 0, time.UTC)
	cols := []string{"B", "I", "F", "S", "D", "T", "BYTES", "L", "ARR", "N", "CH"}
	rows := testutil.NewFakeRowSet(nil, cols, []any{
		int64(1), int64(42), 2.5, []byte("text"), "2021-03-04", when, []byte{1, 2}, "en_US", "{a,b}", nil, "xyz",
	})
	res := sql.NewResultSetResult(nil, nil, rows, sql.NewSQLiteDictionary())
	_, _ = res.Next()

	b, err := res.GetBoolean("B")
	require.NoError(t, err)
	assert.True(t, b)

	i, err := res.GetInt("I")
	require.NoError(t, err)
	assert.Equal(t, int32(42), i)
	sh, _ := res.GetShort("I")
	assert.Equal(t, int16(42), sh)
	by, _ := res.GetByte("I")
	assert.Equal(t, int8(42), by)

	f, err := res.GetFloat("F")
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), f)
	d, _ := res.GetDouble("I")
	assert.Equal(t, 42.0, d)

	s, err := res.GetString("S")
	require.NoError(t, err)
	assert.Equal(t, "text", s)

	date, err := res.GetDate("D")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, time.March, 4, 0, 0, 0, 0, time.UTC), date)
	ts, err := res.GetTimestamp("T")
	require.NoError(t, err)
	assert.True(t, when.Equal(ts))

	raw, err := res.GetBytes("BYTES")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, raw)

	tag, err := res.GetLocale("L")
	require.NoError(t, err)
	assert.Equal(t, language.MustParse("en-US"), tag)

	arr, err := res.GetArray("ARR")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, arr)

	dec, err := res.GetBigDecimal("F")
	require.NoError(t, err)
	assert.Equal(t, 0, dec.Cmp(big.NewFloat(2.5)))
	bi, err := res.GetBigInteger("I")
	require.NoError(t, err)
	assert.Equal(t, int64(42), bi.Int64())

	num, err := res.GetNumber("F")
	require.NoError(t, err)
	assert.Equal(t, 2.5, num)

	ch, err := res.GetChar("CH")
	require.NoError(t, err)
	assert.Equal(t, 'x', ch)

	stream, err := res.GetCharacterStream("S")
	require.NoError(t, err)
	content, _ := io.ReadAll(stream)
	assert.Equal(t, "text", string(content))

	n, err := res.GetLong("N")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, res.WasNull())

	_, _ = res.GetLong("I")
	assert.False(t, res.WasNull())

	_, err = res.GetLong("S")
	assert.Error(t, err)
}
