// Package exps compiles query expressions into SQL.
//
// A query is a QueryExpressions: a candidate mapping, a filter condition
// (Exp) and projected, grouped and ordered values (Val). Nodes are built by
// a Factory, which numbers them. Both node sets are closed; planning
// dispatches over them in one place.
//
// PLANNING:
//
// A SelectConstructor plans a query into one sql.Select per table of the
// candidate hierarchy. Each select is built by a pass holding an ExpState
// per node in an arena indexed by node id, so the node tree itself is never
// mutated and can be planned concurrently. A pass runs in three steps:
//  1. initialize: resolve paths, allocate states, combine joins
//  2. calculateValue: resolve constants against their siblings
//  3. appendTo/appendExp: render SQL into the select's buffers
//
// EVALUATION:
//
// Eval and Match evaluate nodes against loaded objects without SQL. Data
// faults evaluate to nil (no match); constructs with no in-memory form
// such as INDEX return an Unsupported QueryError.
package exps
