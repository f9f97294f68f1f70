package exps

import "fmt"

// Exp is a compiled boolean expression: a WHERE or HAVING condition. Like
// Val, the set of node types is closed.
type Exp interface {
	ID() int
	String() string

	exp()
}

type expNode struct{ id int }

func (n *expNode) ID() int { return n.id }
func (n *expNode) exp()    {}

// CompareOp is a comparison operator.
type CompareOp string

const (
	OpEQ CompareOp = "="
	OpNE CompareOp = "<>"
	OpLT CompareOp = "<"
	OpLE CompareOp = "<="
	OpGT CompareOp = ">"
	OpGE CompareOp = ">="
)

// Compare compares two values.
type Compare struct {
	expNode
	Op   CompareOp
	L, R Val
}

func (c *Compare) String() string { return fmt.Sprintf("%s %s %s", c.L, c.Op, c.R) }

// And requires both conditions. Joins required by both sides are shared.
type And struct {
	expNode
	L, R Exp
}

func (a *And) String() string { return fmt.Sprintf("(%s AND %s)", a.L, a.R) }

// Or requires either condition. Only the joins common to both sides are
// required of every row.
type Or struct {
	expNode
	L, R Exp
}

func (o *Or) String() string { return fmt.Sprintf("(%s OR %s)", o.L, o.R) }

// Not negates a condition.
type Not struct {
	expNode
	E Exp
}

func (n *Not) String() string { return fmt.Sprintf("NOT %s", n.E) }

// IsNull tests a value for null.
type IsNull struct {
	expNode
	V   Val
	Not bool
}

func (n *IsNull) String() string {
	if n.Not {
		return fmt.Sprintf("%s IS NOT NULL", n.V)
	}
	return fmt.Sprintf("%s IS NULL", n.V)
}

// In tests membership of V in List: an Args, a Param bound to a slice, or
// a SubQ.
type In struct {
	expNode
	V    Val
	List Val
	Not  bool
}

func (i *In) String() string {
	if i.Not {
		return fmt.Sprintf("%s NOT IN %s", i.V, i.List)
	}
	return fmt.Sprintf("%s IN %s", i.V, i.List)
}

// Empty tests a subquery or a to-many path for emptiness. With Not it is
// EXISTS.
type Empty struct {
	expNode
	V   Val
	Not bool
}

func (e *Empty) String() string {
	if e.Not {
		return fmt.Sprintf("%s IS NOT EMPTY", e.V)
	}
	return fmt.Sprintf("%s IS EMPTY", e.V)
}

// Like matches a string against a pattern where % matches any run of
// characters and _ any single character.
type Like struct {
	expNode
	V       Val
	Pattern Val
	Escape  rune
	Not     bool
}

func (l *Like) String() string {
	if l.Not {
		return fmt.Sprintf("%s NOT LIKE %s", l.V, l.Pattern)
	}
	return fmt.Sprintf("%s LIKE %s", l.V, l.Pattern)
}
