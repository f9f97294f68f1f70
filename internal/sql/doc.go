// Package sql builds SQL statements and reads their results.
//
// A Select accumulates the clauses of one SELECT statement (projections,
// joins, conditions, grouping, ordering and range) and renders itself into a
// SQLBuffer through a Dictionary, which owns every dialect difference. A
// Union combines several structurally identical selects. Executing either
// yields a ResultSetResult: a cursor over a RowSet that converts column
// values into typed values, again through the Dictionary.
//
// Selects and results are confined to one goroutine. Dictionaries are
// stateless and shared.
package sql
