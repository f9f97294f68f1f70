package sql

import (
	"maps"
	"slices"

	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/schema"
)

// ColumnRef identifies a column reached through a relation path.
type ColumnRef struct {
	Column *schema.Column
	Path   string
}

// At returns the reference to col at the path of joins.
func At(col *schema.Column, joins *Joins) ColumnRef {
	return ColumnRef{Column: col, Path: joins.Path()}
}

type aliasKey struct {
	table *schema.Table
	path  string
}

type selectItem struct {
	id          any
	sql         *SQLBuffer
	placeholder bool
}

// Select is a mutable builder of one SELECT statement, a subselect, or one
// member of a union.
type Select struct {
	dict Dictionary

	parent     *Select
	subPath    string
	subselects []*Select
	counter    *int

	aliases     map[aliasKey]int
	aliasTables map[int]*schema.Table
	aliasOrder  []int
	used        map[int]bool
	loose       map[int]bool
	joins       *joinSet

	selects   []selectItem
	selectIdx map[any]int

	where     *SQLBuffer
	having    *SQLBuffer
	groupings []*SQLBuffer
	orderings []*SQLBuffer

	start, end    int64
	distinct      bool
	autoDistinct  bool
	lrs           bool
	expected      int
	forceExpected bool

	eager      map[string]*Select
	eagerKeys  []string
	eagerToOne bool
	eagerMany  bool

	fromSelect *Select
	cached     *SQLBuffer
}

// NewSelect returns an empty select rendering through dict.
func NewSelect(dict Dictionary) *Select {
	n := 0
	return newSelect(dict, nil, &n)
}

func newSelect(dict Dictionary, parent *Select, counter *int) *Select {
	return &Select{
		dict:         dict,
		parent:       parent,
		counter:      counter,
		aliases:      make(map[aliasKey]int),
		aliasTables:  make(map[int]*schema.Table),
		used:         make(map[int]bool),
		loose:        make(map[int]bool),
		joins:        newJoinSet(),
		selectIdx:    make(map[any]int),
		end:          NoLimit,
		autoDistinct: true,
		eager:        make(map[string]*Select),
	}
}

// Dictionary returns the select's dictionary.
func (s *Select) Dictionary() Dictionary { return s.dict }

// NewSubselect returns a subselect of s. Subselect aliases are numbered
// after their parent's so they never collide.
func (s *Select) NewSubselect(path string) *Select {
	sub := newSelect(s.dict, s, s.counter)
	sub.subPath = path
	s.subselects = append(s.subselects, sub)
	return sub
}

// Parent returns the enclosing select of a subselect, or nil.
func (s *Select) Parent() *Select { return s.parent }

// Subselects returns the subselects created from s.
func (s *Select) Subselects() []*Select { return slices.Clone(s.subselects) }

// SubselectPath returns the path the subselect was created for.
func (s *Select) SubselectPath() string { return s.subPath }

// SetFromSelect makes s select from the result of sub instead of tables.
func (s *Select) SetFromSelect(sub *Select) { s.fromSelect = sub }

// FromSelect returns the select s selects from, or nil.
func (s *Select) FromSelect() *Select { return s.fromSelect }

// NewJoins returns an empty join set positioned at the candidate.
func (s *Select) NewJoins() *Joins {
	return &Joins{sel: s, set: newJoinSet()}
}

// tableIndex returns the alias number of t at path, allocating one if
// needed.
func (s *Select) tableIndex(t *schema.Table, path string) int {
	key := aliasKey{table: t, path: path}
	if n, ok := s.aliases[key]; ok {
		return n
	}
	n := *s.counter
	*s.counter++
	s.aliases[key] = n
	s.aliasTables[n] = t
	s.aliasOrder = append(s.aliasOrder, n)
	return n
}

// ColumnAlias returns the alias-qualified SQL of col at the path of joins,
// and marks its table as used by the statement that owns joins.
func (s *Select) ColumnAlias(col *schema.Column, joins *Joins) string {
	owner := s
	if joins != nil && joins.sel != nil {
		owner = joins.sel
	}
	n := owner.tableIndex(col.Table(), joins.Path())
	owner.used[n] = true
	return aliasName(n) + "." + s.dict.ColumnName(col)
}

// recordJoins adds the joins to the statement that owns them.
func (s *Select) recordJoins(j *Joins) {
	if j == nil {
		return
	}
	owner := j.sel
	if owner == nil {
		owner = s
	}
	j.set.Ascend(func(join *Join) bool {
		addJoin(owner.joins, join)
		return true
	})
}

// And combines joins required together for one row. Joins present on both
// sides appear once; one-sided joins are kept. The inputs are hollowed so
// their joins are recorded only through the result.
func (s *Select) And(j1, j2 *Joins) *Joins {
	if j1.IsEmpty() && j2.IsEmpty() {
		return pickPath(s, j1, j2)
	}
	out := pickPath(s, j1, j2)
	out.set = newJoinSet()
	for _, j := range []*Joins{j1, j2} {
		if j == nil {
			continue
		}
		j.set.Ascend(func(join *Join) bool {
			addJoin(out.set, join)
			return true
		})
	}
	if j1 != nil {
		j1.hollow()
	}
	if j2 != nil && j2 != j1 {
		j2.hollow()
	}
	return out
}

// Or keeps the joins common to both branches. Divergent joins stay on the
// branches and are rendered into each branch's condition by
// AppendBranchJoins.
func (s *Select) Or(j1, j2 *Joins) *Joins {
	out := pickPath(s, j1, j2)
	out.set = newJoinSet()
	if j1.IsEmpty() || j2.IsEmpty() {
		return out
	}
	j1.set.Ascend(func(join *Join) bool {
		if j2.set.Has(join) {
			addJoin(out.set, join)
		}
		return true
	})
	return out
}

// AppendBranchJoins renders the joins of one OR branch that are not in
// common as conditions, and lists their tables in FROM.
func (s *Select) AppendBranchJoins(buf *SQLBuffer, branch, common *Joins) {
	if branch.IsEmpty() {
		return
	}
	branch.set.Ascend(func(join *Join) bool {
		if common.Contains(join) {
			return true
		}
		owner := branch.sel
		owner.loose[join.Alias1] = true
		owner.loose[join.Alias2] = true
		buf.Append(" AND ")
		join.AppendCondition(buf)
		return true
	})
}

// Outer returns a copy of j whose joins, present and future, are outer.
func (s *Select) Outer(j *Joins) *Joins {
	if j == nil {
		return s.NewJoins().Outer()
	}
	c := j.Clone()
	c.set = newJoinSet()
	j.set.Ascend(func(join *Join) bool {
		o := *join
		o.Type = JoinOuter
		c.set.ReplaceOrInsert(&o)
		return true
	})
	c.outer = true
	return c
}

func pickPath(s *Select, j1, j2 *Joins) *Joins {
	for _, j := range []*Joins{j2, j1} {
		if j != nil {
			c := j.Clone()
			return c
		}
	}
	return s.NewJoins()
}

// Select adds col at the path of joins to the projection. It returns false
// when the column was already selected.
func (s *Select) Select(col *schema.Column, joins *Joins) bool {
	id := ColumnRef{Column: col, Path: joins.Path()}
	if _, ok := s.selectIdx[id]; ok {
		return false
	}
	buf := NewSQLBuffer(s.dict).Append(s.ColumnAlias(col, joins))
	s.recordJoins(joins)
	s.addSelect(id, buf, false)
	return true
}

// SelectColumns selects each column, returning how many were new.
func (s *Select) SelectColumns(cols []*schema.Column, joins *Joins) int {
	n := 0
	for _, c := range cols {
		if s.Select(c, joins) {
			n++
		}
	}
	return n
}

// SelectExpr adds a computed projection identified by id. It returns false
// when id was already selected.
func (s *Select) SelectExpr(sql *SQLBuffer, id any, joins *Joins) bool {
	if _, ok := s.selectIdx[normalizeID(id)]; ok {
		return false
	}
	s.recordJoins(joins)
	s.addSelect(normalizeID(id), sql, false)
	return true
}

// SelectPlaceholder adds a constant projection, used by union members that
// lack a column their siblings select.
func (s *Select) SelectPlaceholder(sql string) {
	s.addSelect(nil, NewSQLBuffer(s.dict).Append(sql), true)
}

func (s *Select) addSelect(id any, sql *SQLBuffer, placeholder bool) {
	if id != nil {
		s.selectIdx[id] = len(s.selects)
	}
	s.selects = append(s.selects, selectItem{id: id, sql: sql, placeholder: placeholder})
}

func normalizeID(id any) any {
	if c, ok := id.(*schema.Column); ok {
		return ColumnRef{Column: c}
	}
	return id
}

// IndexOf returns the 0-based projection position of id, or -1.
func (s *Select) IndexOf(id any) int {
	if n, ok := s.selectIdx[normalizeID(id)]; ok {
		return n
	}
	return -1
}

// IsSelected reports whether any column of t is projected or t is in FROM.
func (s *Select) IsSelected(t *schema.Table) bool {
	for key, n := range s.aliases {
		if key.table == t && s.inFrom(n) {
			return true
		}
	}
	return false
}

// SelectPrimaryKey selects the primary key columns of m.
func (s *Select) SelectPrimaryKey(m *mapping.ClassMapping, joins *Joins) {
	s.SelectColumns(m.PrimaryKey, joins)
}

// SelectIdentifier selects what identifies a row of m: its primary key and
// discriminator.
func (s *Select) SelectIdentifier(m *mapping.ClassMapping, joins *Joins) {
	s.SelectPrimaryKey(m, joins)
	if m.Discriminator != nil {
		s.Select(m.Discriminator, joins)
	}
}

// SelectMapping selects the identifier and every column-backed field of m.
// With subs, fields of subclasses sharing the table are selected too.
func (s *Select) SelectMapping(m *mapping.ClassMapping, subs bool, joins *Joins) {
	s.SelectIdentifier(m, joins)
	mappings := []*mapping.ClassMapping{m}
	if subs {
		mappings = m.ConcreteMappings()
	}
	for _, cm := range mappings {
		if cm.Table != m.Table {
			continue
		}
		for _, f := range cm.AllFields() {
			s.SelectColumns(f.Columns, joins)
		}
	}
}

// ClearSelects drops the projection.
func (s *Select) ClearSelects() {
	s.selects = nil
	s.selectIdx = make(map[any]int)
}

// SelectAliases returns the SQL of each projection.
func (s *Select) SelectAliases() []string {
	out := make([]string, len(s.selects))
	for i, item := range s.selects {
		out[i] = item.sql.SQL()
	}
	return out
}

// IdentifierAliases returns the ids of the projections in order; nil for
// placeholders.
func (s *Select) IdentifierAliases() []any {
	out := make([]any, len(s.selects))
	for i, item := range s.selects {
		out[i] = item.id
	}
	return out
}

// TableAliases returns "TABLE tN" for each table in FROM.
func (s *Select) TableAliases() []string {
	var out []string
	for _, n := range s.aliasOrder {
		if s.inFrom(n) {
			out = append(out, s.dict.TableName(s.aliasTables[n])+" "+aliasName(n))
		}
	}
	return out
}

// Where adds a condition, ANDed with the existing ones.
func (s *Select) Where(cond *SQLBuffer, joins *Joins) {
	if cond.IsEmpty() {
		s.recordJoins(joins)
		return
	}
	if s.where == nil {
		s.where = NewSQLBuffer(s.dict)
	} else {
		s.where.Append(" AND ")
	}
	s.where.AppendBuffer(cond)
	s.recordJoins(joins)
}

// WhereSQL is Where for a condition without bind values.
func (s *Select) WhereSQL(cond string, joins *Joins) {
	s.Where(NewSQLBuffer(s.dict).Append(cond), joins)
}

// WherePrimaryKey restricts m to the row with the given key values.
func (s *Select) WherePrimaryKey(m *mapping.ClassMapping, values []any, joins *Joins) {
	buf := NewSQLBuffer(s.dict)
	for i, col := range m.PrimaryKey {
		if i > 0 {
			buf.Append(" AND ")
		}
		buf.Append(s.ColumnAlias(col, joins)).Append(" = ").AppendValue(values[i], col)
	}
	s.Where(buf, joins)
}

// WhereForeignKey restricts rows to those whose fk columns reference the
// given primary key values.
func (s *Select) WhereForeignKey(fk *schema.ForeignKey, pkValues []any, joins *Joins) {
	buf := NewSQLBuffer(s.dict)
	for i, col := range fk.Columns() {
		if i > 0 {
			buf.Append(" AND ")
		}
		buf.Append(s.ColumnAlias(col, joins)).Append(" = ").AppendValue(pkValues[i], col)
	}
	s.Where(buf, joins)
}

// WhereDiscriminator restricts a single-table query to m (and, with subs,
// its subclasses). It does nothing when m has no discriminator.
func (s *Select) WhereDiscriminator(m *mapping.ClassMapping, subs bool, joins *Joins) {
	if m.Discriminator == nil {
		return
	}
	vals := m.DiscriminatorValues(subs)
	if len(vals) == 0 {
		return
	}
	buf := NewSQLBuffer(s.dict).Append(s.ColumnAlias(m.Discriminator, joins))
	if len(vals) == 1 {
		buf.Append(" = ").AppendValue(vals[0], m.Discriminator)
	} else {
		buf.Append(" IN (")
		for i, v := range vals {
			if i > 0 {
				buf.Append(", ")
			}
			buf.AppendValue(v, m.Discriminator)
		}
		buf.Append(")")
	}
	s.Where(buf, joins)
}

// Having adds a HAVING condition, ANDed with the existing ones.
func (s *Select) Having(cond *SQLBuffer, joins *Joins) {
	if s.having == nil {
		s.having = NewSQLBuffer(s.dict)
	} else {
		s.having.Append(" AND ")
	}
	s.having.AppendBuffer(cond)
	s.recordJoins(joins)
}

// GroupBy adds a grouping expression.
func (s *Select) GroupBy(sql *SQLBuffer, joins *Joins) {
	for _, g := range s.groupings {
		if g.SQL() == sql.SQL() && len(sql.params) == 0 {
			return
		}
	}
	s.groupings = append(s.groupings, sql)
	s.recordJoins(joins)
}

// GroupByColumn groups by col at the path of joins.
func (s *Select) GroupByColumn(col *schema.Column, joins *Joins) {
	s.GroupBy(NewSQLBuffer(s.dict).Append(s.ColumnAlias(col, joins)), joins)
}

// GroupByMapping groups by every column SelectMapping selects for m.
func (s *Select) GroupByMapping(m *mapping.ClassMapping, subs bool, joins *Joins) {
	cols := slices.Clone(m.PrimaryKey)
	if m.Discriminator != nil {
		cols = append(cols, m.Discriminator)
	}
	mappings := []*mapping.ClassMapping{m}
	if subs {
		mappings = m.ConcreteMappings()
	}
	for _, cm := range mappings {
		if cm.Table != m.Table {
			continue
		}
		for _, f := range cm.AllFields() {
			cols = append(cols, f.Columns...)
		}
	}
	for _, c := range cols {
		s.GroupByColumn(c, joins)
	}
}

// OrderBy adds an ordering. With sel, the expression is also selected
// under id so its value is readable from the result; the return value
// reports whether that selection was new.
func (s *Select) OrderBy(sql *SQLBuffer, asc, sel bool, id any, joins *Joins) bool {
	ord := sql.Clone()
	if asc {
		ord.Append(" ASC")
	} else {
		ord.Append(" DESC")
	}
	s.orderings = append(s.orderings, ord)
	s.recordJoins(joins)
	if sel && id != nil {
		return s.SelectExpr(sql, id, joins)
	}
	return false
}

// OrderByColumn orders by col at the path of joins.
func (s *Select) OrderByColumn(col *schema.Column, asc, sel bool, joins *Joins) bool {
	buf := NewSQLBuffer(s.dict).Append(s.ColumnAlias(col, joins))
	if sel {
		return s.OrderBy(buf, asc, false, nil, joins) || s.Select(col, joins)
	}
	return s.OrderBy(buf, asc, false, nil, joins)
}

// OrderByPrimaryKey orders by the primary key of m.
func (s *Select) OrderByPrimaryKey(m *mapping.ClassMapping, asc, sel bool, joins *Joins) {
	for _, col := range m.PrimaryKey {
		s.OrderByColumn(col, asc, sel, joins)
	}
}

// ClearOrdering drops all orderings.
func (s *Select) ClearOrdering() { s.orderings = nil }

// HasOrdering reports whether any ordering was added.
func (s *Select) HasOrdering() bool { return len(s.orderings) > 0 }

// HasGrouping reports whether any grouping was added.
func (s *Select) HasGrouping() bool { return len(s.groupings) > 0 }

// SetRange limits the rows to the half-open range [start, end). Use NoLimit
// for an unbounded end.
func (s *Select) SetRange(start, end int64) {
	s.start, s.end = max(start, 0), end
}

// StartIndex returns the range start.
func (s *Select) StartIndex() int64 { return s.start }

// EndIndex returns the range end.
func (s *Select) EndIndex() int64 { return s.end }

// SetDistinct forces DISTINCT on or off. Off also disables AutoDistinct.
func (s *Select) SetDistinct(distinct bool) {
	s.distinct = distinct
	if !distinct {
		s.autoDistinct = false
	}
}

// SetAutoDistinct enables DISTINCT whenever to-many joins could duplicate
// rows.
func (s *Select) SetAutoDistinct(auto bool) { s.autoDistinct = auto }

// AutoDistinct reports whether automatic DISTINCT is enabled.
func (s *Select) AutoDistinct() bool { return s.autoDistinct }

// IsDistinct reports whether the statement renders SELECT DISTINCT.
func (s *Select) IsDistinct() bool {
	if s.distinct {
		return true
	}
	return s.autoDistinct && len(s.groupings) == 0 && (s.HasJoin(true) || len(s.loose) > 0)
}

// SetLRS marks the select as a large result set, streamed rather than
// buffered.
func (s *Select) SetLRS(lrs bool) { s.lrs = lrs }

// IsLRS reports whether the select is a large result set.
func (s *Select) IsLRS() bool { return s.lrs }

// SetExpectedResultCount records how many rows the caller expects. Unless
// forced, the hint is ignored when to-many eager joins multiply rows.
func (s *Select) SetExpectedResultCount(n int, force bool) {
	s.expected, s.forceExpected = n, force
}

// ExpectedResultCount returns the expected row count, or 0 when unknown.
func (s *Select) ExpectedResultCount() int {
	if s.expected > 0 && !s.forceExpected && s.HasEagerJoin(true) {
		return 0
	}
	return s.expected
}

// HasJoin reports whether the statement joins any table; with toMany, only
// to-many joins count.
func (s *Select) HasJoin(toMany bool) bool {
	if !toMany {
		return s.joins.Len() > 0
	}
	found := false
	s.joins.Ascend(func(j *Join) bool {
		found = j.ToMany
		return !found
	})
	return found
}

// Joins returns the joins recorded by the statement.
func (s *Select) Joins() []*Join {
	out := make([]*Join, 0, s.joins.Len())
	s.joins.Ascend(func(j *Join) bool {
		out = append(out, j)
		return true
	})
	return out
}

// HasEagerJoin reports whether eager data rides in this statement's joins.
func (s *Select) HasEagerJoin(toMany bool) bool {
	if toMany {
		return s.eagerMany
	}
	return s.eagerToOne || s.eagerMany
}

// EagerClone returns the select that loads an eager field. Join modes reuse
// s; the parallel mode returns an independent clone with the same joins and
// conditions, executed alongside s and attached to its result under key.
func (s *Select) EagerClone(key string, mode EagerMode, toMany bool) *Select {
	switch mode {
	case EagerInner, EagerOuter:
		if toMany {
			s.eagerMany = true
		} else {
			s.eagerToOne = true
		}
		return s
	case EagerParallel:
		if existing, ok := s.eager[key]; ok {
			return existing
		}
		clone := s.WhereClone()
		s.eager[key] = clone
		s.eagerKeys = append(s.eagerKeys, key)
		return clone
	}
	return nil
}

// Eager returns the parallel select registered under key, or nil.
func (s *Select) Eager(key string) *Select { return s.eager[key] }

// EagerKeys returns the keys of parallel eager selects in creation order.
func (s *Select) EagerKeys() []string { return slices.Clone(s.eagerKeys) }

// HasMultipleSelects reports whether executing s runs more than one
// statement.
func (s *Select) HasMultipleSelects() bool { return len(s.eagerKeys) > 0 }

// SupportsRandomAccess reports whether results of s can be positioned
// absolutely. Large result sets are streamed and forward-only.
func (s *Select) SupportsRandomAccess(forUpdate bool) bool {
	return !s.lrs
}

// SupportsLocking reports whether FOR UPDATE can be applied.
func (s *Select) SupportsLocking() bool {
	return s.dict.SupportsLocking() && !s.IsDistinct() && len(s.groupings) == 0 && s.having == nil
}

// WhereClone returns a new select with the same tables, joins and
// conditions but no projection, ordering or range.
func (s *Select) WhereClone() *Select {
	n := *s.counter
	c := newSelect(s.dict, s.parent, &n)
	c.subPath = s.subPath
	c.aliases = maps.Clone(s.aliases)
	c.aliasTables = maps.Clone(s.aliasTables)
	c.aliasOrder = slices.Clone(s.aliasOrder)
	c.used = maps.Clone(s.used)
	c.loose = maps.Clone(s.loose)
	c.joins = s.joins.Clone()
	if s.where != nil {
		c.where = s.where.Clone()
	}
	c.autoDistinct = s.autoDistinct
	c.lrs = s.lrs
	c.fromSelect = s.fromSelect
	return c
}

// FullClone returns a copy of s including projection, grouping, ordering
// and range. Parallel eager selects are not copied.
func (s *Select) FullClone() *Select {
	c := s.WhereClone()
	for _, item := range s.selects {
		c.addSelect(item.id, item.sql.Clone(), item.placeholder)
	}
	if s.having != nil {
		c.having = s.having.Clone()
	}
	for _, g := range s.groupings {
		c.groupings = append(c.groupings, g.Clone())
	}
	for _, o := range s.orderings {
		c.orderings = append(c.orderings, o.Clone())
	}
	c.start, c.end = s.start, s.end
	c.distinct = s.distinct
	c.expected, c.forceExpected = s.expected, s.forceExpected
	c.eagerToOne, c.eagerMany = s.eagerToOne, s.eagerMany
	return c
}

// WhereClones returns n where-clones: the clone itself for n <= 1,
// otherwise a union of them.
func (s *Select) WhereClones(n int) SelectExecutor {
	if n <= 1 {
		return s.WhereClone()
	}
	sels := make([]*Select, n)
	for i := range sels {
		sels[i] = s.WhereClone()
	}
	return NewUnion(sels...)
}

// FullClones is WhereClones for full clones.
func (s *Select) FullClones(n int) SelectExecutor {
	if n <= 1 {
		return s.FullClone()
	}
	sels := make([]*Select, n)
	for i := range sels {
		sels[i] = s.FullClone()
	}
	return NewUnion(sels...)
}

func (s *Select) inFrom(n int) bool {
	if s.used[n] || s.loose[n] {
		return true
	}
	found := false
	s.joins.Ascend(func(j *Join) bool {
		found = j.Alias1 == n || j.Alias2 == n
		return !found
	})
	return found
}

type renderOptions struct {
	forUpdate bool
	noOrder   bool
	noRange   bool
}

// ToSelect renders the statement and caches it for SQL.
func (s *Select) ToSelect(forUpdate bool) *SQLBuffer {
	s.cached = s.render(renderOptions{forUpdate: forUpdate})
	return s.cached
}

// SQL returns the text rendered by the last ToSelect, or "" before it.
func (s *Select) SQL() string {
	if s.cached == nil {
		return ""
	}
	return s.cached.SQL()
}

// ToSelectCount renders a statement counting the rows s would return.
func (s *Select) ToSelectCount() *SQLBuffer {
	buf := NewSQLBuffer(s.dict)
	if s.IsDistinct() || len(s.groupings) > 0 || s.start > 0 || s.end != NoLimit {
		buf.Append("SELECT COUNT(*) FROM (")
		buf.AppendBuffer(s.render(renderOptions{noOrder: true}))
		buf.Append(") c")
		return buf
	}
	buf.Append("SELECT COUNT(*)")
	s.appendFromWhere(buf)
	return buf
}

func (s *Select) render(opts renderOptions) *SQLBuffer {
	buf := NewSQLBuffer(s.dict)
	buf.Append("SELECT ")
	if s.IsDistinct() {
		buf.Append("DISTINCT ")
	}
	if len(s.selects) == 0 {
		buf.Append("1")
	}
	for i, item := range s.selects {
		if i > 0 {
			buf.Append(", ")
		}
		buf.AppendBuffer(item.sql)
	}
	s.appendFromWhere(buf)
	if len(s.groupings) > 0 {
		buf.Append(" GROUP BY ")
		for i, g := range s.groupings {
			if i > 0 {
				buf.Append(", ")
			}
			buf.AppendBuffer(g)
		}
	}
	if s.having != nil {
		buf.Append(" HAVING ").AppendBuffer(s.having)
	}
	if !opts.noOrder && len(s.orderings) > 0 {
		buf.Append(" ORDER BY ")
		for i, o := range s.orderings {
			if i > 0 {
				buf.Append(", ")
			}
			buf.AppendBuffer(o)
		}
	}
	if !opts.noRange {
		s.dict.AppendRange(buf, s.start, s.end)
	}
	if opts.forUpdate && s.SupportsLocking() {
		buf.Append(s.dict.ForUpdateClause())
	}
	return buf
}

func (s *Select) appendFromWhere(buf *SQLBuffer) {
	var joinConds *SQLBuffer
	if s.fromSelect != nil {
		buf.Append(" FROM (").AppendBuffer(s.fromSelect.ToSelect(false)).Append(") s")
	} else {
		joinConds = s.appendFrom(buf)
	}
	if joinConds.IsEmpty() && s.where.IsEmpty() {
		return
	}
	buf.Append(" WHERE ")
	if !joinConds.IsEmpty() {
		buf.AppendBuffer(joinConds)
		if !s.where.IsEmpty() {
			buf.Append(" AND ")
		}
	}
	if !s.where.IsEmpty() {
		buf.AppendBuffer(s.where)
	}
}

// appendFrom renders the FROM clause and returns join conditions that
// belong in WHERE under traditional syntax.
func (s *Select) appendFrom(buf *SQLBuffer) *SQLBuffer {
	joined := make(map[int]bool)
	hasOuter := false
	s.joins.Ascend(func(j *Join) bool {
		joined[j.Alias2] = true
		hasOuter = hasOuter || j.Type == JoinOuter
		return true
	})

	var tables []int
	for _, n := range s.aliasOrder {
		if s.inFrom(n) {
			tables = append(tables, n)
		}
	}
	if len(tables) == 0 {
		return nil
	}

	buf.Append(" FROM ")
	if s.dict.JoinSyntax() == SyntaxTraditional && !hasOuter {
		for i, n := range tables {
			if i > 0 {
				buf.Append(", ")
			}
			buf.Append(s.tableRef(n))
		}
		conds := NewSQLBuffer(s.dict)
		s.joins.Ascend(func(j *Join) bool {
			if !conds.IsEmpty() {
				conds.Append(" AND ")
			}
			j.AppendCondition(conds)
			return true
		})
		return conds
	}

	first := true
	for _, n := range tables {
		if joined[n] {
			continue
		}
		if !first {
			buf.Append(" CROSS JOIN ")
		}
		buf.Append(s.tableRef(n))
		first = false
	}
	s.joins.Ascend(func(j *Join) bool {
		buf.Append(" ").Append(j.Type.String()).Append(" ").Append(s.tableRef(j.Alias2)).Append(" ON ")
		j.AppendCondition(buf)
		return true
	})
	return nil
}

func (s *Select) tableRef(n int) string {
	return s.dict.TableName(s.aliasTables[n]) + " " + aliasName(n)
}

// String renders the statement without caching it.
func (s *Select) String() string {
	return s.render(renderOptions{}).SQL()
}

// compile-time check
var _ SelectExecutor = (*Select)(nil)
