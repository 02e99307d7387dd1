package topology

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sqlgraph/internal/dialect"
	"github.com/roach88/sqlgraph/internal/model"
)

func renderDDL(d dialect.Dialect) []byte {
	var b bytes.Buffer
	section := func(title string, stmts ...string) {
		fmt.Fprintf(&b, "-- %s\n", title)
		for _, s := range stmts {
			if s != "" {
				b.WriteString(s)
				b.WriteString("\n")
			}
		}
	}

	person := model.ST("hr", "Person")
	knows := model.ST("hr", "knows")

	section("bootstrap", BootstrapStatements(d)...)
	section("schema hr", createSchemaStatement(d, "hr"))
	section("vertex hr.Person", createLabelStatements(d, KindVertex, person, nil, map[string]model.PropertyType{
		"name": model.TypeString,
		"born": model.TypeZonedDateTime,
		"tags": model.TypeStringArray,
	})...)
	section("edge hr.knows", createLabelStatements(d, KindEdge, knows, []Endpoint{
		{Vertex: person, Side: model.SideOut},
		{Vertex: model.ST("public", "Dog"), Side: model.SideIn},
	}, map[string]model.PropertyType{
		"since": model.TypeDuration,
	})...)
	section("property hr.Person.score", addPropertyStatements(d, KindVertex, person, "score", model.TypeDouble)...)
	section("endpoint hr.knows public.Cat IN", addEndpointStatements(d, knows, Endpoint{Vertex: model.ST("public", "Cat"), Side: model.SideIn})...)
	return b.Bytes()
}

func TestDDLGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, d := range []dialect.Dialect{dialect.SQLite{}, dialect.Postgres{}} {
		t.Run(d.Name(), func(t *testing.T) {
			g.Assert(t, "ddl_"+d.Name(), renderDDL(d))
		})
	}
}
