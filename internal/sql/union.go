package sql

import (
	"context"
	"fmt"
	"strconv"
)

// Union combines selects with identical projections. When the dictionary
// cannot render UNION, each member runs separately and the result chains
// their rows.
type Union struct {
	sels      []*Select
	dict      Dictionary
	orderings []string
	start     int64
	end       int64
	all       bool
	lrs       bool
	expected  int
	force     bool
	cached    *SQLBuffer
}

// NewUnion returns a union of sels, which must share a dictionary.
func NewUnion(sels ...*Select) *Union {
	u := &Union{sels: sels, end: NoLimit}
	if len(sels) > 0 {
		u.dict = sels[0].dict
	}
	return u
}

// Selects returns the members.
func (u *Union) Selects() []*Select { return u.sels }

// Select calls fn for each member.
func (u *Union) Select(fn func(sel *Select, idx int) error) error {
	for i, s := range u.sels {
		if err := fn(s, i); err != nil {
			return err
		}
	}
	return nil
}

// IsUnion reports whether the members render as one UNION statement.
func (u *Union) IsUnion() bool {
	return len(u.sels) > 1 && u.dict.SupportsUnion()
}

func (u *Union) Dictionary() Dictionary { return u.dict }

// OrderBy orders the union by a 1-based projection position.
func (u *Union) OrderBy(pos int, asc bool) {
	dir := " ASC"
	if !asc {
		dir = " DESC"
	}
	u.orderings = append(u.orderings, strconv.Itoa(pos)+dir)
}

// ToSelect renders the UNION statement. Members that run separately are
// rendered one by one, separated by "; ", each limited to the rows the
// union's range can reach.
func (u *Union) ToSelect(forUpdate bool) *SQLBuffer {
	if len(u.sels) == 1 {
		u.sels[0].SetRange(u.start, u.end)
		u.cached = u.sels[0].ToSelect(forUpdate)
		return u.cached
	}
	buf := NewSQLBuffer(u.dict)
	if !u.IsUnion() {
		for i, s := range u.sels {
			if i > 0 {
				buf.Append("; ")
			}
			s.SetRange(0, u.end)
			buf.AppendBuffer(s.ToSelect(forUpdate))
		}
		u.cached = buf
		return buf
	}
	u.appendMembers(buf)
	if len(u.orderings) > 0 {
		buf.Append(" ORDER BY ")
		for i, o := range u.orderings {
			if i > 0 {
				buf.Append(", ")
			}
			buf.Append(o)
		}
	}
	u.dict.AppendRange(buf, u.start, u.end)
	u.cached = buf
	return buf
}

func (u *Union) SQL() string {
	if u.cached == nil {
		return ""
	}
	return u.cached.SQL()
}

// ToSelectCount counts the rows inside the union's range.
func (u *Union) ToSelectCount() *SQLBuffer {
	if len(u.sels) == 1 {
		u.sels[0].SetRange(u.start, u.end)
		return u.sels[0].ToSelectCount()
	}
	buf := NewSQLBuffer(u.dict)
	buf.Append("SELECT COUNT(*) FROM (")
	u.appendMembers(buf)
	u.dict.AppendRange(buf, u.start, u.end)
	buf.Append(") c")
	return buf
}

func (u *Union) appendMembers(buf *SQLBuffer) {
	sep := " UNION "
	if u.all {
		sep = " UNION ALL "
	}
	for i, s := range u.sels {
		if i > 0 {
			buf.Append(sep)
		}
		buf.AppendBuffer(s.render(renderOptions{noOrder: true, noRange: true}))
	}
}

// Execute runs the union. Without UNION support each member runs on its
// own and the rows are chained in member order; the union's ordering is
// then ignored and its range applies to the chain.
func (u *Union) Execute(ctx context.Context, store Store, fetch *FetchConfiguration) (*ResultSetResult, error) {
	if fetch == nil {
		fetch = NewFetchConfiguration()
	}
	if len(u.sels) == 0 {
		return nil, fmt.Errorf("union has no selects")
	}
	if len(u.sels) == 1 {
		u.sels[0].SetRange(u.start, u.end)
		return u.sels[0].Execute(ctx, store, fetch)
	}
	if u.IsUnion() {
		rsType := fetch.ResultSetType
		if u.lrs {
			rsType = ForwardOnly
		}
		res, err := execute(ctx, store, u.ToSelect(false), fetch, kindUnion, rsType)
		if err != nil {
			return nil, err
		}
		res.SetSelect(u.sels[0])
		return res, nil
	}

	dist := NewDistributedRowSet()
	var members []*ResultSetResult
	closeAll := func() {
		for _, m := range members {
			_ = m.Close()
		}
	}
	dist.SetRange(u.start, u.end)
	for _, s := range u.sels {
		s.SetRange(0, u.end)
		m, err := s.Execute(ctx, store, fetch)
		if err != nil {
			closeAll()
			return nil, err
		}
		members = append(members, m)
		if _, err := dist.Add(m.RowSet()); err != nil {
			closeAll()
			return nil, err
		}
	}
	res := NewResultSetResult(nil, nil, dist, u.dict)
	res.SetSelect(u.sels[0])
	res.SetLogger(fetch.logger())
	for _, m := range members {
		res.addCloser(m)
	}
	return res, nil
}

func (u *Union) Count(ctx context.Context, store Store, fetch *FetchConfiguration) (int64, error) {
	if fetch == nil {
		fetch = NewFetchConfiguration()
	}
	if len(u.sels) == 1 || u.IsUnion() {
		return count(ctx, store, u.ToSelectCount(), fetch)
	}
	var total int64
	for _, s := range u.sels {
		s.SetRange(0, u.end)
		n, err := s.Count(ctx, store, fetch)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return max(min(total, u.end)-u.start, 0), nil
}

func (u *Union) SetRange(start, end int64) { u.start, u.end = max(start, 0), end }
func (u *Union) StartIndex() int64         { return u.start }
func (u *Union) EndIndex() int64           { return u.end }

// SetDistinct chooses UNION (distinct) or UNION ALL.
func (u *Union) SetDistinct(distinct bool) { u.all = !distinct }
func (u *Union) IsDistinct() bool          { return !u.all }
func (u *Union) SetLRS(lrs bool)           { u.lrs = lrs }
func (u *Union) IsLRS() bool               { return u.lrs }

func (u *Union) SetExpectedResultCount(n int, force bool) { u.expected, u.force = n, force }

func (u *Union) ExpectedResultCount() int { return u.expected }

// SupportsRandomAccess is false when members are chained.
func (u *Union) SupportsRandomAccess(forUpdate bool) bool {
	if u.lrs {
		return false
	}
	return len(u.sels) == 1 || u.IsUnion()
}

func (u *Union) SupportsLocking() bool {
	if len(u.sels) == 1 {
		return u.sels[0].SupportsLocking()
	}
	return false
}

func (u *Union) HasMultipleSelects() bool { return len(u.sels) > 1 }

func (u *Union) String() string {
	return u.ToSelect(false).SQL()
}

var _ SelectExecutor = (*Union)(nil)
