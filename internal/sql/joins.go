package sql

import (
	"strconv"
	"strings"

	"github.com/google/btree"

	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

// JoinType is the kind of a join.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinOuter
)

func (t JoinType) String() string {
	if t == JoinOuter {
		return "LEFT OUTER JOIN"
	}
	return "INNER JOIN"
}

// Join connects the table at Alias1 to the table at Alias2 through a
// foreign key. When Inverse is set the key lives in Table2 and references
// Table1.
type Join struct {
	Alias1, Alias2 int
	Table1, Table2 *schema.Table
	ForeignKey     *schema.ForeignKey
	Inverse        bool
	Type           JoinType
	ToMany         bool
}

// AppendCondition renders the join condition.
func (j *Join) AppendCondition(buf *SQLBuffer) {
	fkAlias, pkAlias := j.Alias1, j.Alias2
	if j.Inverse {
		fkAlias, pkAlias = j.Alias2, j.Alias1
	}
	pks := j.ForeignKey.PrimaryKeyColumns()
	for i, col := range j.ForeignKey.Columns() {
		if i > 0 {
			buf.Append(" AND ")
		}
		buf.AppendColumn(aliasName(fkAlias), col).Append(" = ").AppendColumn(aliasName(pkAlias), pks[i])
	}
}

func (j *Join) String() string {
	var b strings.Builder
	b.WriteString(j.Table1.FullName() + " " + aliasName(j.Alias1))
	if j.Type == JoinOuter {
		b.WriteString(" (+)")
	}
	b.WriteString(" -> " + j.Table2.FullName() + " " + aliasName(j.Alias2))
	return b.String()
}

func joinLess(a, b *Join) bool {
	if a.Alias2 != b.Alias2 {
		return a.Alias2 < b.Alias2
	}
	return a.Alias1 < b.Alias1
}

type joinSet = btree.BTreeG[*Join]

func newJoinSet() *joinSet {
	return btree.NewG(8, joinLess)
}

// addJoin inserts j. An inner requirement wins over an outer one for the
// same aliases.
func addJoin(set *joinSet, j *Join) {
	if existing, ok := set.Get(j); ok {
		if existing.Type == JoinOuter && j.Type == JoinInner {
			set.ReplaceOrInsert(j)
		}
		return
	}
	set.ReplaceOrInsert(j)
}

func aliasName(n int) string {
	return "t" + strconv.Itoa(n)
}

// Joins is a set of joins required by one expression or projection,
// together with the relation path it has traversed. Table aliases are keyed
// by table and path, so two Joins that traverse the same path share
// aliases and joins.
type Joins struct {
	sel   *Select
	path  string
	outer bool
	set   *joinSet
	last  *Join
}

// Select returns the statement whose aliases this set resolves against.
func (j *Joins) Select() *Select { return j.sel }

// Path returns the traversed relation path; empty for the candidate.
func (j *Joins) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// IsEmpty reports whether no joins are required.
func (j *Joins) IsEmpty() bool { return j == nil || j.set.Len() == 0 }

// Len returns the number of joins.
func (j *Joins) Len() int {
	if j == nil {
		return 0
	}
	return j.set.Len()
}

// Joins returns the joins ordered by target alias.
func (j *Joins) Joins() []*Join {
	if j == nil {
		return nil
	}
	out := make([]*Join, 0, j.set.Len())
	j.set.Ascend(func(item *Join) bool {
		out = append(out, item)
		return true
	})
	return out
}

// Contains reports whether an equivalent join is in the set.
func (j *Joins) Contains(join *Join) bool {
	return j != nil && j.set.Has(join)
}

// Last returns the most recent join, or nil.
func (j *Joins) Last() *Join { return j.last }

// IsOuter reports whether new joins are outer joins.
func (j *Joins) IsOuter() bool { return j.outer }

// Outer makes subsequent joins outer joins.
func (j *Joins) Outer() *Joins {
	j.outer = true
	return j
}

// Join traverses a relation named name through fk. Without inverse the
// current table holds fk; with inverse the current table is the one fk
// references.
func (j *Joins) Join(name string, fk *schema.ForeignKey, inverse, toMany bool) *Joins {
	from, to := fk.Table(), fk.PrimaryKeyTable()
	if inverse {
		from, to = to, from
	}
	a1 := j.sel.tableIndex(from, j.path)
	j.path = joinPath(j.path, name)
	a2 := j.sel.tableIndex(to, j.path)
	join := &Join{
		Alias1:     a1,
		Alias2:     a2,
		Table1:     from,
		Table2:     to,
		ForeignKey: fk,
		Inverse:    inverse,
		ToMany:     toMany,
	}
	if j.outer {
		join.Type = JoinOuter
	}
	addJoin(j.set, join)
	j.last = join
	return j
}

// Alias returns the alias of table t at the current path, allocating it if
// needed.
func (j *Joins) Alias(t *schema.Table) string {
	return aliasName(j.sel.tableIndex(t, j.path))
}

// Clone returns an independent copy.
func (j *Joins) Clone() *Joins {
	c := *j
	c.set = j.set.Clone()
	return &c
}

// hollow drops the joins, keeping the path so aliases still resolve.
func (j *Joins) hollow() {
	if j != nil {
		j.set = newJoinSet()
	}
}

func (j *Joins) String() string {
	parts := make([]string, 0, j.Len())
	for _, join := range j.Joins() {
		parts = append(parts, join.String())
	}
	return "joins(" + j.Path() + ")[" + strings.Join(parts, ", ") + "]"
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
