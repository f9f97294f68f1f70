package queryir

// Version is the document format this package reads and writes.
const Version = 1

// Document is the text form of a compiled query.
//
// Example:
//
//	version: 1
//	from: Employee
//	alias: e
//	select:
//	  - path: e.name
//	filter:
//	  eq:
//	    - path: e.dept.name
//	    - param: dept
//	order:
//	  - by: {path: e.name}
//
// Translates to SQL (SQLite):
//
//	SELECT t0.NAME FROM EMPLOYEE t0 INNER JOIN DEPT t1 ON t0.DEPT_ID = t1.ID
//	WHERE t1.NAME = ? AND t0.TYPE IN (?, ?) ORDER BY t0.NAME ASC
//
// Subqueries reuse Document without the version field.
type Document struct {
	Version int    `yaml:"version,omitempty" json:"version,omitempty"`
	From    string `yaml:"from" json:"from"`
	// Alias is the variable paths use for the candidate. Defaults to the
	// lower-cased first letter of From.
	Alias string `yaml:"alias,omitempty" json:"alias,omitempty"`
	// Subclasses includes instances of subclasses; nil means true.
	Subclasses *bool `yaml:"subclasses,omitempty" json:"subclasses,omitempty"`
	Distinct   bool  `yaml:"distinct,omitempty" json:"distinct,omitempty"`

	Select  []Value `yaml:"select,omitempty" json:"select,omitempty"`
	Filter  *Cond   `yaml:"filter,omitempty" json:"filter,omitempty"`
	GroupBy []Value `yaml:"group_by,omitempty" json:"group_by,omitempty"`
	Having  *Cond   `yaml:"having,omitempty" json:"having,omitempty"`
	Order   []Order `yaml:"order,omitempty" json:"order,omitempty"`

	// Fetch names relation fields of the candidate to load eagerly.
	Fetch []string `yaml:"fetch,omitempty" json:"fetch,omitempty"`
	Range *Range   `yaml:"range,omitempty" json:"range,omitempty"`
}

// Range bounds the rows to [Start, End). A zero End is unbounded.
type Range struct {
	Start int64 `yaml:"start,omitempty" json:"start,omitempty"`
	End   int64 `yaml:"end,omitempty" json:"end,omitempty"`
}

// Order is one ORDER BY item. Desc sorts descending.
type Order struct {
	By   Value `yaml:"by" json:"by"`
	Desc bool  `yaml:"desc,omitempty" json:"desc,omitempty"`
}

// Value is a scalar expression. Exactly one of its forms is set:
//
//	path: e.dept.name          field navigation; outer: true for outer joins
//	lit: 42                    literal; kind: date|time|timestamp|enum|...
//	null: true                 the null literal
//	param: name                named parameter
//	type: Manager              entity type literal
//	fn: upper, of: {...}       abs sqrt negate upper lower trim length type size index
//	agg: sum, of: {...}        sum avg count min max; distinct: true
//	op: "+", args: [a, b]      + - * / mod ||
//	case: {...}                CASE expression
//	coalesce: [a, b]
//	nullif: [a, b]
//	subquery: {...}            nested Document
type Value struct {
	Path  string `yaml:"path,omitempty" json:"path,omitempty"`
	Outer bool   `yaml:"outer,omitempty" json:"outer,omitempty"`

	Lit  any    `yaml:"lit,omitempty" json:"lit,omitempty"`
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
	Null bool   `yaml:"null,omitempty" json:"null,omitempty"`

	Param string `yaml:"param,omitempty" json:"param,omitempty"`
	Type  string `yaml:"type,omitempty" json:"type,omitempty"`

	Fn       string `yaml:"fn,omitempty" json:"fn,omitempty"`
	Agg      string `yaml:"agg,omitempty" json:"agg,omitempty"`
	Distinct bool   `yaml:"distinct,omitempty" json:"distinct,omitempty"`
	Of       *Value `yaml:"of,omitempty" json:"of,omitempty"`

	Op   string  `yaml:"op,omitempty" json:"op,omitempty"`
	Args []Value `yaml:"args,omitempty" json:"args,omitempty"`

	Case     *Case     `yaml:"case,omitempty" json:"case,omitempty"`
	Coalesce []Value   `yaml:"coalesce,omitempty" json:"coalesce,omitempty"`
	NullIf   []Value   `yaml:"nullif,omitempty" json:"nullif,omitempty"`
	Subquery *Document `yaml:"subquery,omitempty" json:"subquery,omitempty"`
}

// Case is a CASE expression. With an Operand each When compares Value with
// it; otherwise each When has a condition.
type Case struct {
	Operand *Value `yaml:"operand,omitempty" json:"operand,omitempty"`
	Whens   []When `yaml:"when" json:"when"`
	Else    *Value `yaml:"else,omitempty" json:"else,omitempty"`
}

// When is one branch of a Case.
type When struct {
	If    *Cond  `yaml:"if,omitempty" json:"if,omitempty"`
	Value *Value `yaml:"value,omitempty" json:"value,omitempty"`
	Then  Value  `yaml:"then" json:"then"`
}

// Cond is a condition. Exactly one of its forms is set:
//
//	eq|ne|lt|le|gt|ge: [a, b]
//	and: [...], or: [...], not: {...}
//	is_null: v, not_null: v
//	in: {value: v, list: [...] | param: p | subquery: {...}, not: true}
//	empty: v, not_empty: v    v is a collection path or a subquery
//	exists: {...}             sugar for not_empty over a subquery
//	like: {value: v, pattern: p, escape: "\\", not: true}
type Cond struct {
	Eq []Value `yaml:"eq,omitempty" json:"eq,omitempty"`
	Ne []Value `yaml:"ne,omitempty" json:"ne,omitempty"`
	Lt []Value `yaml:"lt,omitempty" json:"lt,omitempty"`
	Le []Value `yaml:"le,omitempty" json:"le,omitempty"`
	Gt []Value `yaml:"gt,omitempty" json:"gt,omitempty"`
	Ge []Value `yaml:"ge,omitempty" json:"ge,omitempty"`

	And []Cond `yaml:"and,omitempty" json:"and,omitempty"`
	Or  []Cond `yaml:"or,omitempty" json:"or,omitempty"`
	Not *Cond  `yaml:"not,omitempty" json:"not,omitempty"`

	IsNull  *Value `yaml:"is_null,omitempty" json:"is_null,omitempty"`
	NotNull *Value `yaml:"not_null,omitempty" json:"not_null,omitempty"`

	In *In `yaml:"in,omitempty" json:"in,omitempty"`

	Empty    *Value    `yaml:"empty,omitempty" json:"empty,omitempty"`
	NotEmpty *Value    `yaml:"not_empty,omitempty" json:"not_empty,omitempty"`
	Exists   *Document `yaml:"exists,omitempty" json:"exists,omitempty"`

	Like *Like `yaml:"like,omitempty" json:"like,omitempty"`
}

// In tests membership of Value in a literal list, a list parameter or a
// subquery.
type In struct {
	Value    Value     `yaml:"value" json:"value"`
	List     []Value   `yaml:"list,omitempty" json:"list,omitempty"`
	Param    string    `yaml:"param,omitempty" json:"param,omitempty"`
	Subquery *Document `yaml:"subquery,omitempty" json:"subquery,omitempty"`
	Not      bool      `yaml:"not,omitempty" json:"not,omitempty"`
}

// Like matches Value against a pattern. Escape is at most one character.
type Like struct {
	Value   Value  `yaml:"value" json:"value"`
	Pattern Value  `yaml:"pattern" json:"pattern"`
	Escape  string `yaml:"escape,omitempty" json:"escape,omitempty"`
	Not     bool   `yaml:"not,omitempty" json:"not,omitempty"`
}

// form names the form a Value uses, or "" when none or several are set.
func (v *Value) form() string {
	var forms []string
	add := func(set bool, name string) {
		if set {
			forms = append(forms, name)
		}
	}
	add(v.Path != "", "path")
	add(v.Lit != nil, "lit")
	add(v.Null, "null")
	add(v.Param != "", "param")
	add(v.Type != "", "type")
	add(v.Fn != "", "fn")
	add(v.Agg != "", "agg")
	add(v.Op != "", "op")
	add(v.Case != nil, "case")
	add(v.Coalesce != nil, "coalesce")
	add(v.NullIf != nil, "nullif")
	add(v.Subquery != nil, "subquery")
	if len(forms) != 1 {
		return ""
	}
	return forms[0]
}

// form names the form a Cond uses, or "" when none or several are set.
func (c *Cond) form() string {
	var forms []string
	add := func(set bool, name string) {
		if set {
			forms = append(forms, name)
		}
	}
	for _, cmp := range c.comparisons() {
		add(cmp.args != nil, cmp.name)
	}
	add(c.And != nil, "and")
	add(c.Or != nil, "or")
	add(c.Not != nil, "not")
	add(c.IsNull != nil, "is_null")
	add(c.NotNull != nil, "not_null")
	add(c.In != nil, "in")
	add(c.Empty != nil, "empty")
	add(c.NotEmpty != nil, "not_empty")
	add(c.Exists != nil, "exists")
	add(c.Like != nil, "like")
	if len(forms) != 1 {
		return ""
	}
	return forms[0]
}

type comparison struct {
	name string
	args []Value
}

func (c *Cond) comparisons() []comparison {
	return []comparison{
		{"eq", c.Eq}, {"ne", c.Ne},
		{"lt", c.Lt}, {"le", c.Le},
		{"gt", c.Gt}, {"ge", c.Ge},
	}
}
