// Package model provides the shared vocabulary of the graph store.
//
// This package contains type definitions only: property types and their
// physical column layout, directions, schema-qualified label names, naming
// rules, and the error taxonomy. All other internal packages import model;
// model imports nothing internal.
//
// Key design constraints:
//   - PropertyType is a closed set; every Go value stored in the graph maps to
//     exactly one PropertyType (see TypeOf)
//   - Side is the two-variant direction used at the per-direction boundary;
//     Direction adds BOTH, which is always expanded one level up via Sides()
//   - Labels and schemas never contain '.', so "schema.label" parses uniquely
package model
