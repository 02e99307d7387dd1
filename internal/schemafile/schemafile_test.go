package schemafile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlgraph/internal/dialect"
	"github.com/roach88/sqlgraph/internal/model"
	"github.com/roach88/sqlgraph/internal/topology"
	"github.com/roach88/sqlgraph/internal/txn"
)

func TestLoad_Directory(t *testing.T) {
	defs, err := Load("testdata/social")
	require.NoError(t, err)

	assert.Equal(t, []string{"hr", "public"}, defs.Schemas)

	require.Len(t, defs.Vertices, 3)
	assert.Equal(t, model.ST("hr", "Employee"), defs.Vertices[0].Label)
	assert.Equal(t, map[string]model.PropertyType{
		"name":  model.TypeString,
		"tags":  model.TypeStringArray,
		"since": model.TypeZonedDateTime,
	}, defs.Vertices[0].Properties)
	assert.Equal(t, model.ST("public", "Person"), defs.Vertices[1].Label)
	assert.Equal(t, model.ST("public", "Software"), defs.Vertices[2].Label)

	require.Len(t, defs.Edges, 2)
	created := defs.Edges[0]
	assert.Equal(t, model.ST("public", "created"), created.Label)
	assert.Equal(t, []model.SchemaTable{model.ST("public", "Person")}, created.Out)
	assert.Equal(t, []model.SchemaTable{model.ST("public", "Software")}, created.In)
	assert.Equal(t, map[string]model.PropertyType{"weight": model.TypeDouble}, created.Properties)

	knows := defs.Edges[1]
	assert.Equal(t, []model.SchemaTable{model.ST("public", "Person"), model.ST("hr", "Employee")}, knows.In)
	assert.Empty(t, knows.Properties)
}

func TestLoad_UnknownTypeHasPosition(t *testing.T) {
	_, err := Load("testdata/badtype")
	require.Error(t, err)

	var defErr *Error
	require.True(t, errors.As(err, &defErr), "got %T: %v", err, err)
	assert.Equal(t, "schema.public.vertex.Person.age", defErr.Field)
	assert.True(t, defErr.Pos.IsValid())
	assert.Equal(t, 5, defErr.Pos.Line())
	assert.Contains(t, err.Error(), "graph.cue:5:")
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestLoad_EmptyDirectory(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE files")
}

func TestParseString_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"no schema", `vertex: Person: {}`, "schema"},
		{"bad label", `schema: public: vertex: "a.b": {}`, "schema.public.vertex.a.b"},
		{"id property", `schema: public: vertex: Person: {id: "LONG"}`, "schema.public.vertex.Person.id"},
		{"non string type", `schema: public: vertex: Person: {age: 4}`, "schema.public.vertex.Person.age"},
		{"missing out", `schema: public: edge: knows: {in: "Person"}`, "schema.public.edge.knows.out"},
		{"empty in", `schema: public: edge: knows: {out: "Person", in: []}`, "schema.public.edge.knows.in"},
		{"numeric endpoint", `schema: public: edge: knows: {out: 1, in: "Person"}`, "schema.public.edge.knows.out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.src, "inline.cue")
			require.Error(t, err)
			var defErr *Error
			require.True(t, errors.As(err, &defErr), "got %T: %v", err, err)
			assert.Equal(t, tt.field, defErr.Field)
		})
	}
}

func TestParseString_SyntaxError(t *testing.T) {
	_, err := ParseString("schema: {", "broken.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.cue")
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on", filepath.Join(t.TempDir(), "g.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, topology.Bootstrap(ctx, db, dialect.SQLite{}))

	topo := topology.New(db, topology.Options{IDGenerator: topology.NewFixedGenerator("apply")})
	require.NoError(t, topo.Load(ctx))

	defs, err := Load("testdata/social")
	require.NoError(t, err)

	tx := txn.NewManager(db, nil).Begin()
	require.NoError(t, Apply(ctx, topo, tx, defs))
	require.NoError(t, tx.Commit(ctx))

	assert.True(t, topo.HasSchema(nil, "hr"))
	props, ok := topo.Properties(nil, topology.KindVertex, model.ST("hr", "Employee"))
	require.True(t, ok)
	assert.Equal(t, model.TypeStringArray, props["tags"])

	eps := topo.Endpoints(nil, model.ST("public", "knows"))
	assert.Equal(t, []topology.Endpoint{
		{Vertex: model.ST("hr", "Employee"), Side: model.SideIn},
		{Vertex: model.ST("public", "Person"), Side: model.SideIn},
		{Vertex: model.ST("public", "Person"), Side: model.SideOut},
	}, eps)

	// Applying again changes nothing.
	before := topo.LogPosition()
	tx = txn.NewManager(db, nil).Begin()
	require.NoError(t, Apply(ctx, topo, tx, defs))
	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, before, topo.LogPosition())
}

func TestApply_TypeConflict(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_txlock=immediate", filepath.Join(t.TempDir(), "g.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, topology.Bootstrap(ctx, db, dialect.SQLite{}))
	topo := topology.New(db, topology.Options{IDGenerator: topology.NewFixedGenerator("apply")})

	first, err := ParseString(`schema: public: vertex: Person: {age: "INTEGER"}`, "a.cue")
	require.NoError(t, err)
	second, err := ParseString(`schema: public: vertex: Person: {age: "STRING"}`, "b.cue")
	require.NoError(t, err)

	tx := txn.NewManager(db, nil).Begin()
	defer tx.Rollback()
	require.NoError(t, Apply(ctx, topo, tx, first))
	err = Apply(ctx, topo, tx, second)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}
