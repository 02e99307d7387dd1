// Package harness runs scripted graph scenarios and compares their traces
// against golden files.
//
// # Scenario Format
//
//	name: modern
//	description: "Builds the modern graph and walks it"
//	definitions: ../definitions/modern   # optional CUE directory
//	steps:
//	  - op: addVertex
//	    ref: marko
//	    label: Person
//	    properties: {name: marko, age: 29}
//	    types: {age: INTEGER}
//	  - op: addEdge
//	    ref: e1
//	    label: knows
//	    out: marko
//	    in: vadas
//	  - op: edges
//	    target: marko
//	    direction: out
//	  - op: commit
//	  - op: removeVertex
//	    target: ghost
//	    error: NOT_FOUND
//	assertions:
//	  - type: vertex_count
//	    label: Person
//	    count: 2
//	  - type: property
//	    target: marko
//	    key: age
//	    value: 29
//
// Ops are addVertex, addEdge, load, edges, vertices, setProperty,
// removeVertex, removeEdge, commit and rollback. Created elements are
// named by ref and later steps address them by target. A step with an
// error field must fail with that code.
//
// # Assertion Types
//
//   - vertex_count, edge_count: committed elements of a label
//   - property: a committed property value, or its absence for a null value
//   - missing: the target no longer exists
//   - trace_count: how many steps ran an op
//
// # Traces
//
// Every step produces one event. Events name elements by ref and render
// property values as text, so the canonical JSON trace is identical across
// runs. Each scenario gets a fresh SQLite database in a temporary directory
// and a fixed topology instance id.
package harness
