// Package querysql executes compiled queries.
//
// An Executor plans query expressions into selects through the exps
// SelectConstructor, runs them against a sql.Store and loads the rows:
// entity objects for queries without projections, projected values
// otherwise.
//
// EAGER LOADING:
//
// Relation fields named by the query's fetch list, or marked eager in the
// mappings, load together with their owners:
//   - To-one fields join into the owner statement (outer, or inner when the
//     fetch configuration asks for it and the foreign key is not nullable)
//   - To-many fields run as one parallel statement sharing the owner
//     statement's joins and conditions, grouped back by owner key
//   - With a join cap, to-many fields join too and repeated owners fold
//
// Eager loading applies to single-table plans only; union members keep
// identical projections.
//
// IN MEMORY:
//
// EvaluateInMemory runs the same expressions over already loaded objects
// through exps.Eval and exps.Match, for queries in the portable fragment.
package querysql
