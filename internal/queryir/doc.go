// Package queryir is the text form of a query: a versioned YAML (or JSON)
// document naming a candidate entity, its projections, filter, grouping,
// ordering, eager fetches and range.
//
// A document is the input of the explain, query and test commands. Decode
// reads and checks it, Compile turns it into exps query expressions bound
// to a mapping repository, and Validate reports which parts of it fall
// outside the portable fragment.
//
// PORTABLE FRAGMENT:
//
// A portable query renders the same SQL text for every dictionary and can
// also be evaluated against objects already in memory. It excludes:
//   - Subqueries (exists, in-subquery, scalar subqueries)
//   - INDEX and SIZE, and emptiness of collection paths
//   - Comparisons with NULL through eq/ne
//   - Date, time and timestamp literals
//
// Non-portable queries still compile and run through SQL; Validate only
// warns.
//
// Paths are written as dotted strings starting at a variable:
//
//	path: e.dept.name
//
// The candidate variable is Alias, or the lower-cased first letter of From.
// Subquery variables are the subquery's own alias and stay visible inside
// it, so correlated paths name the outer variable:
//
//	exists:
//	  from: Employee
//	  alias: x
//	  filter:
//	    eq: [{path: x.dept}, {path: d}]
package queryir
