package exps

import (
	"log/slog"

	"github.com/pierpaolospaziani/openjpa/internal/mapping"
	"github.com/pierpaolospaziani/openjpa/internal/schema"
	"github.com/pierpaolospaziani/openjpa/internal/sql"
)

// ExpContext carries what planning needs beyond the expressions: the
// dictionary, the fetch configuration and the parameter values.
type ExpContext struct {
	Dict   sql.Dictionary
	Fetch  *sql.FetchConfiguration
	Params map[string]any
	Logger *slog.Logger
}

func (c *ExpContext) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *ExpContext) useLiteral() bool {
	return c.Fetch != nil && c.Fetch.UseLiteralInSQL()
}

// ExpState is the per-statement state of one node: the joins it requires
// and what planning computed for it. States live in an arena indexed by node
// id and are discarded with the statement.
type ExpState struct {
	Joins *sql.Joins

	// Cols are the columns a path renders, in the select that owns Joins.
	Cols []*schema.Column
	// Meta is the mapping an entity-valued path resolved to in this select.
	Meta *mapping.ClassMapping
	// Field is the last field of a path.
	Field *mapping.FieldMapping

	// Value is a constant's data store value after calculateValue.
	Value any
	// OtherLength is the column count of the sibling a constant is
	// compared with; above one, Value holds one element per column.
	OtherLength int
	// OtherCols are the sibling's columns, guiding value conversion.
	OtherCols []*schema.Column

	// Sub is a subquery's select.
	Sub *sql.Select
	// Branch holds the joins of an OR side not required by every row.
	Branch [2]*sql.Joins
}

func (s *ExpState) col(index int) *schema.Column {
	if index < len(s.OtherCols) {
		return s.OtherCols[index]
	}
	return nil
}

// scope binds a query variable to the select its paths resolve in.
type scope struct {
	alias string
	sel   *sql.Select
	meta  *mapping.ClassMapping
}

// pass is one statement-build pass over a compiled query: the state arena,
// the variable scopes, and the first error met.
type pass struct {
	ctx    *ExpContext
	states []*ExpState
	scopes []scope
	err    error

	// union is set for members of a polymorphic union; layout lists the
	// columns every member projects for the candidate.
	union  bool
	layout []slot
}

func newPass(ctx *ExpContext, nodes int) *pass {
	return &pass{ctx: ctx, states: make([]*ExpState, nodes)}
}

// state returns the state of node id, nil before it is initialized.
func (p *pass) state(id int) *ExpState {
	if id < 0 || id >= len(p.states) {
		return nil
	}
	return p.states[id]
}

func (p *pass) setState(id int, s *ExpState) *ExpState {
	for id >= len(p.states) {
		p.states = append(p.states, nil)
	}
	p.states[id] = s
	return s
}

func (p *pass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *pass) push(alias string, sel *sql.Select, meta *mapping.ClassMapping) {
	p.scopes = append(p.scopes, scope{alias: alias, sel: sel, meta: meta})
}

func (p *pass) pop() { p.scopes = p.scopes[:len(p.scopes)-1] }

// lookup finds the innermost scope binding alias.
func (p *pass) lookup(alias string) (scope, bool) {
	for i := len(p.scopes) - 1; i >= 0; i-- {
		if p.scopes[i].alias == alias {
			return p.scopes[i], true
		}
	}
	return scope{}, false
}

// and combines the joins of two siblings. Joins owned by an enclosing
// select are recorded there directly so they never leak into a subselect.
func (p *pass) and(sel *sql.Select, j1, j2 *sql.Joins) *sql.Joins {
	return sel.And(p.localize(sel, j1), p.localize(sel, j2))
}

func (p *pass) localize(sel *sql.Select, j *sql.Joins) *sql.Joins {
	if j == nil || j.Select() == sel {
		return j
	}
	if !j.IsEmpty() {
		j.Select().Where(sql.NewSQLBuffer(p.ctx.Dict), j)
	}
	return nil
}
