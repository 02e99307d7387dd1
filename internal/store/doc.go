// Package store provides the SQLite-backed element store for the graph.
//
// Every vertex and edge has a surrogate int64 id allocated from a global
// registry (VERTICES or EDGES) and one row in the table of its label:
//   - Vertex rows live in V_<label> with one column per property
//   - Edge rows live in E_<label> with one foreign-key column per endpoint
//     label and side, named <schema>.<vertexLabel>__IN or __OUT
//
// Exactly one IN and one OUT column is populated per edge row. Reads decode
// columns by the PropertyType recorded in the topology, through the codec
// table in marshal.go.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - _txlock=immediate: Writing transactions serialize at BEGIN
//   - foreign_keys=ON: Edge endpoints must reference existing vertices
package store
