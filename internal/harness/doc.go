// Package harness runs query scenarios: a mapping, seed rows and one query
// document, checked against expected rows and SQL.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: engineering_staff
//	description: "Employees of one department, by name"
//	mappings: ../mappings            # or mapping: <inline CUE>
//	seed:
//	  - entity: Department
//	    values: {id: 1, name: Engineering}
//	  - entity: Employee
//	    values: {id: 1, name: Alice, dept: 1}
//	query:
//	  version: 1
//	  from: Employee
//	  filter:
//	    eq: [{path: e.dept.name}, {param: dept}]
//	params: {dept: Engineering}
//	eager_mode: parallel
//	assertions:
//	  - type: rows
//	    rows:
//	      - {name: Alice}
//	  - type: sql_contains
//	    sql: "INNER JOIN DEPT t1"
//
// A scenario expecting the query to fail names the error code instead:
//
//	expect_error: unsupported
//
// # Assertion Types
//
//   - rows: the rows, in order; each expected row is a subset match
//   - row_count: the number of rows
//   - count: the result of the count statement
//   - sql_contains, sql_not_contains: the explained SQL
//   - in_memory: evaluating the query over every loaded candidate gives
//     the rows SQL gave
//   - portable: the document's portability verdict and warnings
//
// # Deterministic Testing
//
// Every scenario runs in its own in-memory SQLite database with statement
// ids from a sequence named after the scenario, so golden snapshots of
// the SQL and rows are reproducible.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/engineering.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
