// Package schema describes the relational schema that mappings are built on:
// tables, columns, primary keys and foreign keys, plus the Java-style type
// codes used to pick typed column accessors.
//
// Schema objects are built once at mapping time and are read-only afterwards.
// Statements refer to them by pointer identity (a *Column is the identity used
// for alias resolution), never by copy.
//
// Key design constraints:
//   - No exported mutable fields; construction goes through Table methods
//   - Column identity is pointer identity
//   - schema imports nothing internal
package schema
